package utils

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RandomArray returns size samples from U(-1/sqrt(v), 1/sqrt(v)).
func RandomArray(size int, v float64, src rand.Source) []float64 {
	dist := distuv.Uniform{
		Min: -1.0 / math.Sqrt(v+1e-12),
		Max: 1.0 / math.Sqrt(v+1e-12),
		Src: src,
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// NormalArray returns size samples from N(0, std^2).
func NormalArray(size int, std float64, src rand.Source) []float64 {
	dist := distuv.Normal{Mu: 0, Sigma: std, Src: src}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

func OnesLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(r, c, data)
}

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the pre-clip global norm.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := mat.Norm(g, 2)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if maxNorm <= 0 || gn <= maxNorm || gn == 0 {
		return gn
	}
	s := maxNorm / (gn + 1e-6)
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return gn
}

// Dropout zeroes entries of m with probability p and rescales the rest by 1/(1-p).
// The returned mask holds the per-entry multiplier for the backward pass.
// With p == 0 it returns m itself and a nil mask.
func Dropout(m *mat.Dense, p float64, rng *rand.Rand) (out, mask *mat.Dense) {
	if p <= 0 {
		return m, nil
	}
	r, c := m.Dims()
	keep := 1.0 / (1.0 - p)
	maskData := make([]float64, r*c)
	for i := range maskData {
		if rng.Float64() >= p {
			maskData[i] = keep
		}
	}
	mask = mat.NewDense(r, c, maskData)
	return Multiply(m, mask), mask
}

// ApplyMask multiplies grad by a dropout mask; a nil mask is the identity.
func ApplyMask(grad, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return grad
	}
	return Multiply(grad, mask)
}

// AllFinite reports whether every value is neither NaN nor Inf.
func AllFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Argmax returns the index of the largest value.
func Argmax(v []float64) int {
	return floats.MaxIdx(v)
}
