// Package trainer runs the optimization loop of a Transformer over a token corpus.
package trainer

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/manningwu07/commandGPT/IO"
	"github.com/manningwu07/commandGPT/optimizations"
	"github.com/manningwu07/commandGPT/params"
	"github.com/manningwu07/commandGPT/runlog"
	"github.com/manningwu07/commandGPT/transformer"
	"github.com/manningwu07/commandGPT/utils"
)

var (
	ErrNonFiniteLoss = errors.New("trainer: non-finite loss")
	ErrVocabMismatch = errors.New("trainer: checkpoint vocabulary differs from corpus")
)

type State int

const (
	Training State = iota
	Evaluating
	Saved
)

func (s State) String() string {
	switch s {
	case Training:
		return "training"
	case Evaluating:
		return "evaluating"
	case Saved:
		return "saved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Trainer owns the model, its optimizer and both data splits for one run.
type Trainer struct {
	Config params.Config
	Model  *transformer.Transformer
	Vocab  *IO.Vocabulary
	Opt    *optimizations.AdamW

	Train, Val IO.Sampler
	Sink       runlog.Sink // receives every evaluation, may be nil
	Out        io.Writer   // summary lines, may be nil

	State State
	Iter  int
	Last  runlog.Eval // most recent evaluation
	rng   *rand.Rand
	start time.Time
}

// New tokenizes corpus, splits it and builds a fresh model for it.
func New(cfg params.Config, corpus string) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vocab := IO.BuildVocab(corpus)
	tokens, err := vocab.Encode(corpus)
	if err != nil {
		return nil, err
	}
	train, val := IO.SplitTokens(tokens, cfg.TrainFrac)
	if min(len(train), len(val)) <= cfg.BlockSize {
		return nil, fmt.Errorf("%w: %d train / %d val tokens, window %d", IO.ErrSplitTooShort, len(train), len(val), cfg.BlockSize)
	}
	model, err := transformer.CreateGPT(cfg, vocab.Size())
	if err != nil {
		return nil, err
	}
	return &Trainer{
		Config: cfg,
		Model:  model,
		Vocab:  vocab,
		Opt: &optimizations.AdamW{
			LR:          cfg.LR,
			Beta1:       cfg.AdamBeta1,
			Beta2:       cfg.AdamBeta2,
			Eps:         cfg.AdamEps,
			WeightDecay: cfg.WeightDecay,
		},
		Train: IO.Sampler{Data: train, Window: cfg.BlockSize, Batch: cfg.BatchSize},
		Val:   IO.Sampler{Data: val, Window: cfg.BlockSize, Batch: cfg.BatchSize},
		rng:   transformer.NewRNG(cfg.Seed ^ 0x5eed),
	}, nil
}

func (tr *Trainer) printf(format string, args ...any) {
	if tr.Out != nil {
		fmt.Fprintf(tr.Out, format, args...)
	}
}

// Step runs one optimization step and returns the batch loss.
func (tr *Trainer) Step() (float64, error) {
	batch, err := tr.Train.Sample(tr.rng)
	if err != nil {
		return 0, err
	}
	tr.Model.ZeroGrad()
	loss := tr.Model.ForwardBackwardParallel(batch.X, batch.Y, tr.Config.Workers)
	if !utils.AllFinite(loss) {
		return loss, fmt.Errorf("%w at step %d: %v", ErrNonFiniteLoss, tr.Iter, loss)
	}
	utils.ClipGrads(tr.Config.GradClip, tr.Model.Grads()...)
	tr.Opt.Step(tr.Model.Params())
	return loss, nil
}

// splitLoss averages the eval-mode loss over EvalIters batches of s.
func (tr *Trainer) splitLoss(s IO.Sampler) (float64, error) {
	losses := make([]float64, tr.Config.EvalIters)
	for i := range losses {
		batch, err := s.Sample(tr.rng)
		if err != nil {
			return 0, err
		}
		losses[i] = tr.Model.Forward(batch.X, batch.Y).Loss
	}
	return stat.Mean(losses, nil), nil
}

// Evaluate estimates train and validation loss with dropout disabled, then
// returns the model to training mode.
func (tr *Trainer) Evaluate() (runlog.Eval, error) {
	tr.State = Evaluating
	tr.Model.SetTraining(false)
	defer func() {
		tr.Model.SetTraining(true)
		tr.State = Training
	}()

	trainLoss, err := tr.splitLoss(tr.Train)
	if err != nil {
		return runlog.Eval{}, err
	}
	valLoss, err := tr.splitLoss(tr.Val)
	if err != nil {
		return runlog.Eval{}, err
	}
	if !utils.AllFinite(trainLoss, valLoss) {
		return runlog.Eval{}, fmt.Errorf("%w in evaluation at step %d", ErrNonFiniteLoss, tr.Iter)
	}
	return runlog.Eval{Step: tr.Iter, TrainLoss: trainLoss, ValLoss: valLoss, Elapsed: time.Since(tr.start)}, nil
}

// Run performs iterations 0..MaxIters. Evaluation happens at every multiple of
// EvalInterval and at the last iteration, before that iteration's step.
func (tr *Trainer) Run() error {
	tr.start = time.Now()
	tr.State = Training
	tr.Model.SetTraining(true)
	for tr.Iter = 0; tr.Iter <= tr.Config.MaxIters; tr.Iter++ {
		if tr.Iter%tr.Config.EvalInterval == 0 || tr.Iter == tr.Config.MaxIters {
			e, err := tr.Evaluate()
			if err != nil {
				return err
			}
			tr.Last = e
			if tr.Sink != nil {
				if err := tr.Sink.Record(e); err != nil {
					return err
				}
			}
		}
		if _, err := tr.Step(); err != nil {
			return err
		}
	}
	tr.Iter = tr.Config.MaxIters
	tr.printf("Model params: %.2fM\n", float64(tr.Model.NumParams())/1e6)
	tr.printf("Vocab size: %d\n", tr.Vocab.Size())
	return nil
}

// Resume loads weights and Adam state from a checkpoint written by Export.
// The checkpoint must share the corpus vocabulary and the model architecture;
// on any mismatch the model and optimizer are left untouched.
func (tr *Trainer) Resume(path string) error {
	ckpt, err := transformer.ReadCheckpoint(path)
	if err != nil {
		return err
	}
	if ckpt.Vocab != tr.Vocab.String() {
		return fmt.Errorf("%w: %q vs %q", ErrVocabMismatch, ckpt.Vocab, tr.Vocab.String())
	}
	if err := ckpt.ApplyTo(tr.Model); err != nil {
		return err
	}
	tr.Opt.T = ckpt.AdamT
	return nil
}

// Export writes the checkpoint, vocabulary, weights and forward graph into dir,
// copies vocabulary and weights into every asset directory and marks the run saved.
func (tr *Trainer) Export(dir string, assetDirs []string) error {
	ckpt := filepath.Join(dir, transformer.CheckpointFile)
	if err := transformer.SaveTransformer(tr.Model, tr.Opt, tr.Vocab.String(), ckpt); err != nil {
		return err
	}
	vocabPath := filepath.Join(dir, IO.VocabFile)
	if err := IO.SaveVocabJSON(vocabPath, tr.Vocab, tr.Config); err != nil {
		return err
	}
	weightsPath := filepath.Join(dir, IO.WeightsFile)
	if err := IO.WriteWeightsJSON(weightsPath, tr.Model.NamedTensors()); err != nil {
		return err
	}
	if err := IO.WriteGraph(filepath.Join(dir, IO.GraphFile), tr.Config, tr.Vocab.Size()); err != nil {
		return err
	}
	if err := IO.CopyAssets(assetDirs, vocabPath, weightsPath); err != nil {
		return err
	}
	tr.State = Saved
	tr.printf("Exported %s, %s, %s, %s to %s\n", transformer.CheckpointFile, IO.VocabFile, IO.WeightsFile, IO.GraphFile, dir)
	return nil
}
