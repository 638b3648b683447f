package transformer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/commandGPT/optimizations"
	"github.com/manningwu07/commandGPT/utils"
)

// Attention is causal multi-head self-attention over a (dModel x T) input.
// Each projection is one (dModel x dModel) matrix; head h owns rows [h*dHead, (h+1)*dHead).
type Attention struct {
	H       int
	DModel  int
	DHead   int
	Dropout float64

	Wquery, Wkey, Wvalue *optimizations.Param
	Woutput              *optimizations.Param

	// cache for backprop
	X        *mat.Dense
	Q, K, V  *mat.Dense   // (dModel x T)
	A        []*mat.Dense // per head (T x T), post-softmax
	AttnMask []*mat.Dense // per head dropout multipliers, nil when disabled
	O_cat    *mat.Dense   // (dModel x T)
	ResMask  *mat.Dense

	maskCache map[int]*mat.Dense
}

func NewAttention(prefix string, dModel, nHeads int, dropout float64, rng *rand.Rand) *Attention {
	if dModel%nHeads != 0 {
		panic("dModel must be divisible by nHeads")
	}
	proj := func(name string) *optimizations.Param {
		w := mat.NewDense(dModel, dModel, utils.RandomArray(dModel*dModel, float64(dModel), rng))
		return optimizations.NewParam(fmt.Sprintf("%s.%s.weight", prefix, name), w, false, true)
	}
	return &Attention{
		H:         nHeads,
		DModel:    dModel,
		DHead:     dModel / nHeads,
		Dropout:   dropout,
		Wquery:    proj("query"),
		Wkey:      proj("key"),
		Wvalue:    proj("value"),
		Woutput:   proj("proj"),
		A:         make([]*mat.Dense, nHeads),
		AttnMask:  make([]*mat.Dense, nHeads),
		maskCache: make(map[int]*mat.Dense),
	}
}

func (attn *Attention) headRows(m *mat.Dense, h int) *mat.Dense {
	_, T := m.Dims()
	base := h * attn.DHead
	return m.Slice(base, base+attn.DHead, 0, T).(*mat.Dense)
}

// Forward computes Woutput * concat_h(V_h * softmax(mask(Q_h^T K_h / sqrt(dHead)))^T).
// rng is only consulted when training is true and Dropout > 0.
func (attn *Attention) Forward(X *mat.Dense, training bool, rng *rand.Rand) *mat.Dense {
	attn.X = X
	_, T := X.Dims()
	rescale := 1.0 / math.Sqrt(float64(attn.DHead))
	mask, ok := attn.maskCache[T]
	if !ok {
		mask = utils.CausalMask(T)
		attn.maskCache[T] = mask
	}
	p := 0.0
	if training {
		p = attn.Dropout
	}

	attn.Q = utils.Dot(attn.Wquery.Value, X)
	attn.K = utils.Dot(attn.Wkey.Value, X)
	attn.V = utils.Dot(attn.Wvalue.Value, X)
	headsCat := mat.NewDense(attn.DModel, T, nil)

	for h := 0; h < attn.H; h++ {
		q, k, v := attn.headRows(attn.Q, h), attn.headRows(attn.K, h), attn.headRows(attn.V, h)
		// S = (Q^T K)/sqrt, row = query position, col = key position
		scores := utils.Dot(q.T(), k)
		scores.Scale(rescale, scores)
		a := mat.NewDense(T, T, nil)
		utils.RowSoftmaxMaskedInPlace(a, scores, mask)
		attn.A[h] = a
		ad, dm := utils.Dropout(a, p, rng)
		attn.AttnMask[h] = dm
		// O = V * A^T
		attn.headRows(headsCat, h).Mul(v, ad.T())
	}
	attn.O_cat = headsCat

	Y := utils.Dot(attn.Woutput.Value, headsCat)
	out, rm := utils.Dropout(Y, p, rng)
	attn.ResMask = rm
	return out
}

// Backward accumulates the four projection gradients and returns dX.
func (attn *Attention) Backward(dY *mat.Dense) *mat.Dense {
	_, T := attn.X.Dims()
	dP := utils.ApplyMask(dY, attn.ResMask)

	utils.AccumulateProduct(attn.Woutput.Grad, dP, attn.O_cat.T())
	dOcat := utils.Dot(attn.Woutput.Value.T(), dP)

	dQ := mat.NewDense(attn.DModel, T, nil)
	dK := mat.NewDense(attn.DModel, T, nil)
	dV := mat.NewDense(attn.DModel, T, nil)
	rescale := 1.0 / math.Sqrt(float64(attn.DHead))

	for h := 0; h < attn.H; h++ {
		dO := attn.headRows(dOcat, h)
		q, k, v := attn.headRows(attn.Q, h), attn.headRows(attn.K, h), attn.headRows(attn.V, h)
		a := attn.A[h]
		ad := a
		if attn.AttnMask[h] != nil {
			ad = utils.Multiply(a, attn.AttnMask[h])
		}

		// O = V * Ad^T
		attn.headRows(dV, h).Mul(dO, ad)
		dAd := utils.Dot(dO.T(), v) // (T x T)
		dA := utils.ApplyMask(dAd, attn.AttnMask[h])

		// A = softmax_row(S)
		dS := utils.SoftmaxBackward(dA, a)

		// S = Q^T K / sqrt(dHead)
		attn.headRows(dQ, h).Mul(k, dS.T())
		attn.headRows(dK, h).Mul(q, dS)
	}
	dQ.Scale(rescale, dQ)
	dK.Scale(rescale, dK)

	utils.AccumulateProduct(attn.Wquery.Grad, dQ, attn.X.T())
	utils.AccumulateProduct(attn.Wkey.Grad, dK, attn.X.T())
	utils.AccumulateProduct(attn.Wvalue.Grad, dV, attn.X.T())

	dX := utils.Dot(attn.Wquery.Value.T(), dQ)
	dX.Add(dX, utils.Dot(attn.Wkey.Value.T(), dK))
	dX.Add(dX, utils.Dot(attn.Wvalue.Value.T(), dV))
	return dX
}

// AttentionWeights returns head h's post-softmax weights from the last forward pass.
func (attn *Attention) AttentionWeights(h int) *mat.Dense { return attn.A[h] }

func (attn *Attention) Params() []*optimizations.Param {
	return []*optimizations.Param{attn.Wquery, attn.Wkey, attn.Wvalue, attn.Woutput}
}
