package utils

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGeluPrimeMatchesFiniteDiff(t *testing.T) {
	xs := []float64{-3, -1.2, -0.1, 0, 0.4, 2.5}
	m := mat.NewDense(1, len(xs), xs)
	d := GeluPrime(m)
	eps := 1e-6
	for j, x := range xs {
		num := (GeluApply(0, 0, x+eps) - GeluApply(0, 0, x-eps)) / (2 * eps)
		if math.Abs(num-d.At(0, j)) > 1e-6 {
			t.Fatalf("gelu'(%v): num=%v ana=%v", x, num, d.At(0, j))
		}
	}
}

func TestMaskedSoftmaxZeroesFuture(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	T := 5
	s := mat.NewDense(T, T, RandomArray(T*T, 0.1, rng))
	a := mat.NewDense(T, T, nil)
	RowSoftmaxMaskedInPlace(a, s, CausalMask(T))
	for i := 0; i < T; i++ {
		sum := 0.0
		for j := 0; j < T; j++ {
			if j > i && a.At(i, j) != 0 {
				t.Fatalf("A[%d,%d] = %v, want exactly 0", i, j, a.At(i, j))
			}
			sum += a.At(i, j)
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("row %d sums to %v", i, sum)
		}
	}
}

func TestCrossEntropyColsGradient(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	V, T := 6, 3
	logits := mat.NewDense(V, T, RandomArray(V*T, 0.5, rng))
	gold := []int{1, 5, 0}
	grad := mat.NewDense(V, T, nil)
	loss := CrossEntropyCols(logits, gold, 1, grad)
	if loss < 0 || !AllFinite(loss) {
		t.Fatalf("loss = %v", loss)
	}
	eps := 1e-6
	for i := 0; i < V; i++ {
		for j := 0; j < T; j++ {
			w := logits.At(i, j)
			logits.Set(i, j, w+eps)
			lp := CrossEntropyCols(logits, gold, 1, nil)
			logits.Set(i, j, w-eps)
			lm := CrossEntropyCols(logits, gold, 1, nil)
			logits.Set(i, j, w)
			num := (lp - lm) / (2 * eps)
			if math.Abs(num-grad.At(i, j)) > 1e-6 {
				t.Fatalf("dlogits[%d,%d]: num=%v ana=%v", i, j, num, grad.At(i, j))
			}
		}
	}
}

func TestSoftmaxBackwardMatchesFiniteDiff(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	T := 4
	s := mat.NewDense(T, T, RandomArray(T*T, 1, rng))
	w := mat.NewDense(T, T, RandomArray(T*T, 1, rng))
	mask := CausalMask(T)
	f := func() float64 {
		a := mat.NewDense(T, T, nil)
		RowSoftmaxMaskedInPlace(a, s, mask)
		return mat.Sum(Multiply(a, w))
	}
	a := mat.NewDense(T, T, nil)
	RowSoftmaxMaskedInPlace(a, s, mask)
	dS := SoftmaxBackward(w, a)
	eps := 1e-6
	for i := 0; i < T; i++ {
		for j := 0; j <= i; j++ {
			v := s.At(i, j)
			s.Set(i, j, v+eps)
			lp := f()
			s.Set(i, j, v-eps)
			lm := f()
			s.Set(i, j, v)
			num := (lp - lm) / (2 * eps)
			if math.Abs(num-dS.At(i, j)) > 1e-6 {
				t.Fatalf("dS[%d,%d]: num=%v ana=%v", i, j, num, dS.At(i, j))
			}
		}
	}
}

func TestSampleFromProbsRespectsTopK(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	probs := []float64{0.05, 0.6, 0.05, 0.3}
	for n := 0; n < 200; n++ {
		id := SampleFromProbs(probs, 2, 0, rng)
		if id != 1 && id != 3 {
			t.Fatalf("top-2 sample returned %d", id)
		}
	}
	// a one-hot distribution is always drawn
	for n := 0; n < 20; n++ {
		if id := SampleFromProbs([]float64{0, 0, 1}, 0, 0, rng); id != 2 {
			t.Fatalf("one-hot sample returned %d", id)
		}
	}
}

func TestClipGradsBoundsGlobalNorm(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{3, 0})
	b := mat.NewDense(1, 1, []float64{4})
	pre := ClipGrads(1, a, b)
	if math.Abs(pre-5) > 1e-12 {
		t.Fatalf("pre-clip norm = %v, want 5", pre)
	}
	post := math.Sqrt(a.At(0, 0)*a.At(0, 0) + b.At(0, 0)*b.At(0, 0))
	if post > 1+1e-9 {
		t.Fatalf("post-clip norm = %v", post)
	}
}

func TestDropoutMaskScales(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	m := OnesLike(mat.NewDense(10, 10, nil))
	out, mask := Dropout(m, 0.5, rng)
	r, c := out.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := out.At(i, j); v != 0 && v != 2 {
				t.Fatalf("unexpected dropout value %v", v)
			}
			if out.At(i, j) != mask.At(i, j) {
				t.Fatal("mask and output disagree")
			}
		}
	}
	same, nilMask := Dropout(m, 0, rng)
	if same != m || nilMask != nil {
		t.Fatal("p=0 dropout should be the identity")
	}
}
