package params

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/exp/constraints"
)

// Config holds every hyperparameter of one model instance and its training run.
// It is passed by value; nothing in the module keeps a package-level copy.
type Config struct {
	// Core transformer parameters
	BlockSize int     // context window (num of tokens)
	NEmbd     int     // model width
	NLayer    int     // how many times attn --> mlp happens
	NHead     int     // attention heads, dHead = NEmbd/NHead
	Dropout   float64 // 0 disables

	// Optimization parameters
	BatchSize    int
	MaxIters     int
	LR           float64
	EvalInterval int // report train/val loss every N steps
	EvalIters    int // validation batches averaged per report
	GradClip     float64 // global norm ceiling, <=0 disables
	WeightDecay  float64 // AdamW-style, applied to weight matrices only
	AdamBeta1    float64
	AdamBeta2    float64
	AdamEps      float64
	TrainFrac    float64 // contiguous head of the corpus used for training
	Seed         uint64
	Workers      int // grads-only clones per step, 1 = sequential

	// Data parameters
	Samples int // template samples for the tiny pipeline (0 = use the dataset file)
	Repeat  int // times the dataset lines are repeated into the corpus

	// Decode parameters
	MaxNewTokens int
	StopChar     string
}

// HeadDim is the width of one attention head.
func (c Config) HeadDim() int { return c.NEmbd / c.NHead }

// HiddenSize is the feed-forward expansion width.
func (c Config) HiddenSize() int { return 4 * c.NEmbd }

func defaults() Config {
	return Config{
		GradClip:     1.0,
		WeightDecay:  0.01,
		AdamBeta1:    0.9,
		AdamBeta2:    0.999,
		AdamEps:      1e-8,
		TrainFrac:    0.9,
		EvalIters:    10,
		Workers:      1,
		Repeat:       1,
		MaxNewTokens: 50,
		StopChar:     "}",
	}
}

// Tiny is the ~20k parameter model trained on single-template samples.
func Tiny() Config {
	c := defaults()
	c.BlockSize = 64
	c.BatchSize = 16
	c.NLayer = 3
	c.NHead = 2
	c.NEmbd = 96
	c.Dropout = 0.1
	c.MaxIters = 8000
	c.LR = 3e-3
	c.EvalInterval = 1000
	c.Samples = 2500
	return c
}

// Simple is the larger model trained on the generated dataset file.
func Simple() Config {
	c := defaults()
	c.BlockSize = 80
	c.BatchSize = 20
	c.NLayer = 4
	c.NHead = 4
	c.NEmbd = 128
	c.Dropout = 0.05
	c.MaxIters = 10000
	c.LR = 1e-3
	c.EvalInterval = 2000
	c.Repeat = 30
	c.MaxNewTokens = 80
	return c
}

// Preset returns a named preset.
func Preset(name string) (Config, error) {
	switch name {
	case "tiny", "":
		return Tiny(), nil
	case "simple":
		return Simple(), nil
	}
	return Config{}, fmt.Errorf("params: unknown preset %q", name)
}

// LoadConfig overlays the JSON document at path onto base.
// Fields absent from the file keep the base value.
func LoadConfig(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("params: decoding %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func positive[T constraints.Integer | constraints.Float](name string, v T) error {
	if v <= 0 {
		return fmt.Errorf("params: %s must be positive, got %v", name, v)
	}
	return nil
}

func within[T constraints.Float](name string, v, lo, hi T) error {
	if v < lo || v >= hi {
		return fmt.Errorf("params: %s must be in [%v, %v), got %v", name, lo, hi, v)
	}
	return nil
}

// Validate reports the first inconsistent field.
func (c Config) Validate() error {
	for _, chk := range []error{
		positive("BlockSize", c.BlockSize),
		positive("NEmbd", c.NEmbd),
		positive("NLayer", c.NLayer),
		positive("NHead", c.NHead),
		positive("BatchSize", c.BatchSize),
		positive("LR", c.LR),
		positive("EvalInterval", c.EvalInterval),
		positive("EvalIters", c.EvalIters),
		positive("Repeat", c.Repeat),
		within("Dropout", c.Dropout, 0, 1),
		within("AdamBeta1", c.AdamBeta1, 0, 1),
		within("AdamBeta2", c.AdamBeta2, 0, 1),
	} {
		if chk != nil {
			return chk
		}
	}
	if c.MaxIters < 0 {
		return fmt.Errorf("params: MaxIters must not be negative, got %d", c.MaxIters)
	}
	if c.TrainFrac <= 0 || c.TrainFrac >= 1 {
		return fmt.Errorf("params: TrainFrac must be in (0, 1), got %v", c.TrainFrac)
	}
	if c.NEmbd%c.NHead != 0 {
		return fmt.Errorf("params: NEmbd (%d) must be divisible by NHead (%d)", c.NEmbd, c.NHead)
	}
	if len([]rune(c.StopChar)) > 1 {
		return fmt.Errorf("params: StopChar must be a single character, got %q", c.StopChar)
	}
	return nil
}
