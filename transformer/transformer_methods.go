package transformer

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/commandGPT/optimizations"
	"github.com/manningwu07/commandGPT/params"
	"github.com/manningwu07/commandGPT/utils"
)

// Transformer is a decoder-only GPT: token + position embeddings, pre-norm blocks,
// a final LayerNorm and an output head tied to the token embedding.
type Transformer struct {
	Config    params.Config
	VocabSize int

	// TokEmb is (vocab x dModel). It is both tok_emb.weight and head.weight:
	// one Param, so both uses accumulate into the same gradient.
	TokEmb *optimizations.Param
	PosEmb *optimizations.Param // (blockSize x dModel)
	Blocks []TransformerBlock
	LnF    *optimizations.LayerNorm

	Training bool
	rng      *rand.Rand

	// cache for backprop (one sequence)
	ids     []int
	embMask *mat.Dense
	hf      *mat.Dense

	workers []*Transformer
}

type TransformerBlock struct {
	Attn *Attention
	Mlp  *MLP
	Ln1  *optimizations.LayerNorm
	Ln2  *optimizations.LayerNorm
}

// Output is the result of a batched forward pass.
type Output struct {
	Logits  []*mat.Dense // per sequence (vocab x T)
	Loss    float64      // mean cross-entropy over all positions
	HasLoss bool         // false when no targets were given
}

// Initalization

func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// CreateGPT builds a freshly initialized model for a vocabulary of vocabSize characters.
func CreateGPT(cfg params.Config, vocabSize int) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocabSize <= 0 {
		return nil, fmt.Errorf("transformer: vocab size must be positive, got %d", vocabSize)
	}
	rng := NewRNG(cfg.Seed)
	C := cfg.NEmbd
	gpt := &Transformer{
		Config:    cfg,
		VocabSize: vocabSize,
		TokEmb:    optimizations.NewParam("tok_emb.weight", mat.NewDense(vocabSize, C, utils.NormalArray(vocabSize*C, 0.02, rng)), false, true),
		PosEmb:    optimizations.NewParam("pos_emb.weight", mat.NewDense(cfg.BlockSize, C, utils.NormalArray(cfg.BlockSize*C, 0.02, rng)), false, true),
		Blocks:    make([]TransformerBlock, cfg.NLayer),
		LnF:       optimizations.NewLayerNorm("ln_f", C, 1e-5),
		Training:  true,
		rng:       rng,
	}
	for i := range cfg.NLayer {
		prefix := fmt.Sprintf("blocks.%d", i)
		gpt.Blocks[i] = TransformerBlock{
			Ln1:  optimizations.NewLayerNorm(prefix+".ln1", C, 1e-5),
			Attn: NewAttention(prefix+".attn", C, cfg.NHead, cfg.Dropout, rng),
			Ln2:  optimizations.NewLayerNorm(prefix+".ln2", C, 1e-5),
			Mlp:  NewMLP(prefix+".mlp", C, cfg.HiddenSize(), cfg.Dropout, rng),
		}
	}
	return gpt, nil
}

// Block forward/backward with pre-norm residuals.
func (b *TransformerBlock) Forward(X *mat.Dense, training bool, rng *rand.Rand) *mat.Dense {
	xRes := utils.Add(X, b.Attn.Forward(b.Ln1.Forward(X), training, rng))
	return utils.Add(xRes, b.Mlp.Forward(b.Ln2.Forward(xRes), training, rng))
}

func (b *TransformerBlock) Backward(grad *mat.Dense) *mat.Dense {
	// Y = xRes + MLP(Ln2(xRes)); xRes = X + Attn(Ln1(X))
	dXres := utils.Add(grad, b.Ln2.Backward(b.Mlp.Backward(grad)))
	return utils.Add(dXres, b.Ln1.Backward(b.Attn.Backward(dXres)))
}

func (b *TransformerBlock) Params() []*optimizations.Param {
	ps := b.Ln1.Params()
	ps = append(ps, b.Attn.Params()...)
	ps = append(ps, b.Ln2.Params()...)
	return append(ps, b.Mlp.Params()...)
}

// SetTraining switches dropout on (train) or off (eval).
func (g *Transformer) SetTraining(on bool) {
	g.Training = on
	for _, w := range g.workers {
		w.Training = on
	}
}

// Params lists every learnable tensor exactly once; the tied head is not repeated.
func (g *Transformer) Params() []*optimizations.Param {
	ps := []*optimizations.Param{g.TokEmb, g.PosEmb}
	for i := range g.Blocks {
		ps = append(ps, g.Blocks[i].Params()...)
	}
	return append(ps, g.LnF.Params()...)
}

// NamedTensors lists the state-dict view: every Param plus head.weight aliasing tok_emb.weight.
func (g *Transformer) NamedTensors() []*optimizations.Param {
	ps := g.Params()
	head := *g.TokEmb
	head.Name = "head.weight"
	return append(ps, &head)
}

func (g *Transformer) NumParams() int {
	n := 0
	for _, p := range g.Params() {
		n += p.Size()
	}
	return n
}

func (g *Transformer) ZeroGrad() {
	for _, p := range g.Params() {
		p.ZeroGrad()
	}
}

// Grads returns the gradient buffers in Params order.
func (g *Transformer) Grads() []*mat.Dense {
	ps := g.Params()
	out := make([]*mat.Dense, len(ps))
	for i, p := range ps {
		out[i] = p.Grad
	}
	return out
}

// Logits runs one sequence of at most BlockSize ids and returns (vocab x T) logits.
func (g *Transformer) Logits(ids []int) *mat.Dense {
	T := len(ids)
	if T == 0 || T > g.Config.BlockSize {
		panic(fmt.Sprintf("transformer: sequence length %d outside [1, %d]", T, g.Config.BlockSize))
	}
	C := g.Config.NEmbd
	tok, pos := g.TokEmb.Value, g.PosEmb.Value
	X := mat.NewDense(C, T, nil)
	for t, id := range ids {
		if id < 0 || id >= g.VocabSize {
			panic(fmt.Sprintf("transformer: token id %d outside vocab of %d", id, g.VocabSize))
		}
		tr, pr := tok.RawRowView(id), pos.RawRowView(t)
		for i := 0; i < C; i++ {
			X.Set(i, t, tr[i]+pr[i])
		}
	}
	p := 0.0
	if g.Training {
		p = g.Config.Dropout
	}
	X, g.embMask = utils.Dropout(X, p, g.rng)
	for i := range g.Blocks {
		X = g.Blocks[i].Forward(X, g.Training, g.rng)
	}
	g.ids = ids
	g.hf = g.LnF.Forward(X)
	return utils.Dot(tok, g.hf)
}

// backwardSeq propagates dLogits for the sequence cached by the last Logits call.
func (g *Transformer) backwardSeq(dLogits *mat.Dense) {
	// logits = TokEmb * hf: the head contribution to the tied gradient
	utils.AccumulateProduct(g.TokEmb.Grad, dLogits, g.hf.T())
	dX := g.LnF.Backward(utils.Dot(g.TokEmb.Value.T(), dLogits))
	for i := len(g.Blocks) - 1; i >= 0; i-- {
		dX = g.Blocks[i].Backward(dX)
	}
	dX = utils.ApplyMask(dX, g.embMask)

	// X = tok[id_t] + pos[t]: the lookup contribution to the tied gradient
	C := g.Config.NEmbd
	col := make([]float64, C)
	tokGrad, posGrad := g.TokEmb.Grad, g.PosEmb.Grad
	for t, id := range g.ids {
		mat.Col(col, t, dX)
		tr, pr := tokGrad.RawRowView(id), posGrad.RawRowView(t)
		for i := 0; i < C; i++ {
			tr[i] += col[i]
			pr[i] += col[i]
		}
	}
}

// Forward returns logits for every sequence and, when targets is non-nil,
// the mean cross-entropy over all positions of the batch. No gradients are kept.
func (g *Transformer) Forward(idx, targets [][]int) Output {
	out := Output{Logits: make([]*mat.Dense, len(idx))}
	total, n := 0.0, 0
	for b, ids := range idx {
		out.Logits[b] = g.Logits(ids)
		if targets != nil {
			total += utils.CrossEntropyCols(out.Logits[b], targets[b], 1, nil)
			n += len(ids)
		}
	}
	if targets != nil && n > 0 {
		out.Loss = total / float64(n)
		out.HasLoss = true
	}
	return out
}

// ForwardBackward computes the mean batch loss and accumulates its gradient into
// every Param. Callers zero the gradients first.
func (g *Transformer) ForwardBackward(idx, targets [][]int) float64 {
	n := 0
	for _, ids := range idx {
		n += len(ids)
	}
	return g.forwardBackwardScaled(idx, targets, n) / float64(n)
}

// forwardBackwardScaled returns the summed loss; gradients are scaled by 1/n.
func (g *Transformer) forwardBackwardScaled(idx, targets [][]int, n int) float64 {
	scale := 1.0 / float64(n)
	total := 0.0
	for b, ids := range idx {
		logits := g.Logits(ids)
		r, c := logits.Dims()
		dLogits := mat.NewDense(r, c, nil)
		total += utils.CrossEntropyCols(logits, targets[b], scale, dLogits)
		g.backwardSeq(dLogits)
	}
	return total
}
