package transformer

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/commandGPT/optimizations"
	"github.com/manningwu07/commandGPT/params"
)

// ErrCheckpointMismatch is returned when a checkpoint's tensors do not fit the model.
var ErrCheckpointMismatch = errors.New("transformer: checkpoint does not match model")

// CheckpointFile is the default checkpoint name inside an export directory.
const CheckpointFile = "tiny_transformer.gob"

type tensorData struct {
	Name       string
	Rows, Cols int
	Data       []float64

	// Adam states
	M, V []float64
}

type modelData struct {
	Config    params.Config
	VocabSize int
	Vocab     string // itos concatenated, id order
	AdamT     int
	Tensors   []tensorData
}

func rawCopy(m *mat.Dense) []float64 {
	if m == nil {
		return nil
	}
	return append([]float64(nil), mat.DenseCopyOf(m).RawMatrix().Data...)
}

// SaveTransformer persists weights, Adam moments and the vocabulary to filename using gob.
// opt may be nil when only weights matter.
func SaveTransformer(gpt *Transformer, opt *optimizations.AdamW, vocab string, filename string) error {
	data := modelData{Config: gpt.Config, VocabSize: gpt.VocabSize, Vocab: vocab}
	if opt != nil {
		data.AdamT = opt.T
	}
	for _, p := range gpt.Params() {
		r, c := p.Value.Dims()
		data.Tensors = append(data.Tensors, tensorData{
			Name: p.Name, Rows: r, Cols: c,
			Data: rawCopy(p.Value),
			M:    rawCopy(p.M),
			V:    rawCopy(p.V),
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&data); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, buf.Bytes(), 0o644)
}

func readCheckpoint(filename string) (*modelData, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var data modelData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", filename, err)
	}
	return &data, nil
}

// LoadTransformer rebuilds the model stored in filename. It returns the model,
// the vocabulary string and the optimizer step count.
func LoadTransformer(filename string) (*Transformer, string, int, error) {
	data, err := readCheckpoint(filename)
	if err != nil {
		return nil, "", 0, err
	}
	gpt, err := CreateGPT(data.Config, data.VocabSize)
	if err != nil {
		return nil, "", 0, err
	}
	if err := gpt.restore(data); err != nil {
		return nil, "", 0, err
	}
	return gpt, data.Vocab, data.AdamT, nil
}

// Checkpoint is a decoded checkpoint file that has not been applied to a model.
type Checkpoint struct {
	Vocab string // itos concatenated, id order
	AdamT int
	data  *modelData
}

// ReadCheckpoint decodes filename without touching any model, so callers can
// inspect the vocabulary before committing to ApplyTo.
func ReadCheckpoint(filename string) (*Checkpoint, error) {
	data, err := readCheckpoint(filename)
	if err != nil {
		return nil, err
	}
	return &Checkpoint{Vocab: data.Vocab, AdamT: data.AdamT, data: data}, nil
}

// ApplyTo copies the tensors into gpt. Nothing is written unless every tensor fits.
func (c *Checkpoint) ApplyTo(gpt *Transformer) error {
	return gpt.restore(c.data)
}

// LoadInto copies the checkpoint's tensors into an existing model of the same
// architecture and returns the stored vocabulary and optimizer step count.
func LoadInto(gpt *Transformer, filename string) (string, int, error) {
	ckpt, err := ReadCheckpoint(filename)
	if err != nil {
		return "", 0, err
	}
	if err := ckpt.ApplyTo(gpt); err != nil {
		return "", 0, err
	}
	return ckpt.Vocab, ckpt.AdamT, nil
}

func (g *Transformer) restore(data *modelData) error {
	ps := g.Params()
	if len(ps) != len(data.Tensors) {
		return fmt.Errorf("%w: %d tensors, model has %d", ErrCheckpointMismatch, len(data.Tensors), len(ps))
	}
	for i, p := range ps {
		td := data.Tensors[i]
		r, c := p.Value.Dims()
		if td.Name != p.Name || td.Rows != r || td.Cols != c || len(td.Data) != r*c {
			return fmt.Errorf("%w: %s (%dx%d) vs %s (%dx%d)", ErrCheckpointMismatch, td.Name, td.Rows, td.Cols, p.Name, r, c)
		}
	}
	for i, p := range ps {
		td := data.Tensors[i]
		copy(p.Value.RawMatrix().Data, td.Data)
		if len(td.M) == len(td.Data) && len(td.V) == len(td.Data) {
			copy(p.M.RawMatrix().Data, td.M)
			copy(p.V.RawMatrix().Data, td.V)
		}
	}
	return nil
}
