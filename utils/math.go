package utils

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Matrix functions used by the forward and backward passes.

// r = rows of matrix
// c = columns of matrix
// o = output
// m = matrix input number 1
// n = matrix input number 2

func Dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Scale(s float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func Multiply(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func Add(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

// AccumulateProduct does dst += m * n.
func AccumulateProduct(dst *mat.Dense, m, n mat.Matrix) {
	dst.Add(dst, Dot(m, n))
}

// -------- GELU activation (GPT-style) --------
// gelu(x) = 0.5 * x * (1 + tanh( sqrt(2/pi) * (x + 0.044715*x^3) ))

func GeluApply(i, j int, x float64) float64 {
	const k = 0.7978845608028654 // sqrt(2/pi)
	t := k * (x + 0.044715*x*x*x)
	return 0.5 * x * (1.0 + math.Tanh(t))
}

func GeluPrime(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	const k = 0.7978845608028654
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x := m.At(i, j)
			t := k * (x + 0.044715*x*x*x)
			th := math.Tanh(t)
			sech2 := 1.0 - th*th
			dt := k * (1.0 + 3.0*0.044715*x*x)
			out.Set(i, j, 0.5*(1.0+th)+0.5*x*sech2*dt)
		}
	}
	return out
}

func AddBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != r || cb != 1 {
		panic("addBias: bias must be (r x 1)")
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, j)+bias.At(i, 0))
		}
	}
	return out
}

// AccumulateRowSums does bias += sum over columns of m.
func AccumulateRowSums(bias, m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		bias.Set(i, 0, bias.At(i, 0)+floats.Sum(m.RawRowView(i)[:c]))
	}
}

func LastCol(m *mat.Dense) []float64 {
	r, c := m.Dims()
	return mat.Col(make([]float64, r), c-1, m)
}

// CausalMask returns (T x T) with 0 on and below the diagonal, -Inf above.
// Row = query position, column = key position.
func CausalMask(T int) *mat.Dense {
	out := mat.NewDense(T, T, nil)
	negInf := math.Inf(-1)
	for i := 0; i < T; i++ {
		for j := i + 1; j < T; j++ {
			out.Set(i, j, negInf)
		}
	}
	return out
}

// ---------- Softmax variants ----------

// RowSoftmaxMaskedInPlace writes softmax(m+mask) into dst row by row.
// Every row must keep at least one finite entry.
func RowSoftmaxMaskedInPlace(dst, m, mask *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	if dr, dc := dst.Dims(); dr != r || dc != c {
		panic("RowSoftmaxMaskedInPlace: dst shape mismatch")
	}
	if mr, mc := mask.Dims(); mr != r || mc != c {
		panic("RowSoftmaxMaskedInPlace: mask shape mismatch")
	}
	for i := 0; i < r; i++ {
		mx := math.Inf(-1)
		for j := 0; j < c; j++ {
			if v := m.At(i, j) + mask.At(i, j); v > mx {
				mx = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			e := math.Exp(m.At(i, j) + mask.At(i, j) - mx)
			dst.Set(i, j, e)
			sum += e
		}
		inv := 1.0 / sum
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)*inv)
		}
	}
	return dst
}

// Softmax returns a normalized copy of logits.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	lse := floats.LogSumExp(logits)
	for i, v := range logits {
		out[i] = math.Exp(v - lse)
	}
	return out
}

// Softmax backward for row-wise softmax used in attention.
// For each row i: s = sum_k dA[i,k]*A[i,k]; dS[i,j] = A[i,j]*(dA[i,j]-s)
func SoftmaxBackward(dA mat.Matrix, A *mat.Dense) *mat.Dense {
	r, c := A.Dims()
	dS := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		s := 0.0
		for k := 0; k < c; k++ {
			s += dA.At(i, k) * A.At(i, k)
		}
		for j := 0; j < c; j++ {
			aj := A.At(i, j)
			dS.Set(i, j, aj*(dA.At(i, j)-s))
		}
	}
	return dS
}

// ---------- Loss ----------

// CrossEntropyCols computes sum over columns t of -log softmax(logits[:,t])[gold[t]]
// and writes scale*(p - onehot) into grad when grad is non-nil.
// The loss is computed as logsumexp - logit so it is never negative.
func CrossEntropyCols(logits *mat.Dense, gold []int, scale float64, grad *mat.Dense) float64 {
	r, c := logits.Dims()
	if len(gold) != c {
		panic("CrossEntropyCols: target length mismatch")
	}
	col := make([]float64, r)
	total := 0.0
	for t := 0; t < c; t++ {
		mat.Col(col, t, logits)
		lse := floats.LogSumExp(col)
		g := gold[t]
		if g < 0 || g >= r {
			panic("CrossEntropyCols: target out of range")
		}
		loss := lse - col[g]
		if loss < 0 {
			loss = 0
		}
		total += loss
		if grad != nil {
			for i := 0; i < r; i++ {
				p := math.Exp(col[i] - lse)
				if i == g {
					p -= 1
				}
				grad.Set(i, t, scale*p)
			}
		}
	}
	return total
}

// ---------- Sampling ----------

// SampleFromProbs draws an index from probs after optional top-k / top-p filtering.
// topK <= 0 and topP outside (0,1) leave the full distribution.
func SampleFromProbs(probs []float64, topK int, topP float64, src rand.Source) int {
	type kv struct {
		id  int
		val float64
	}
	arr := make([]kv, len(probs))
	for i, p := range probs {
		arr[i] = kv{id: i, val: p}
	}
	filtered := false
	if topK > 0 && topK < len(arr) || topP > 0 && topP < 1 {
		filtered = true
		sort.SliceStable(arr, func(i, j int) bool { return arr[i].val > arr[j].val })
	}
	if topK > 0 && topK < len(arr) {
		arr = arr[:topK]
	}
	if topP > 0 && topP < 1 {
		sum := 0.0
		for _, e := range arr {
			sum += e.val
		}
		cum := 0.0
		cut := len(arr)
		for i, e := range arr {
			cum += e.val / sum
			if cum >= topP {
				cut = i + 1
				break
			}
		}
		arr = arr[:cut]
	}
	weights := make([]float64, len(arr))
	for i, e := range arr {
		weights[i] = e.val
	}
	cat := distuv.NewCategorical(weights, src)
	idx := int(cat.Rand())
	if !filtered {
		return idx
	}
	return arr[idx].id
}
