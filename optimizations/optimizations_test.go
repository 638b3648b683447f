package optimizations

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/commandGPT/utils"
)

func TestLayerNormGradFiniteDiff(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	d, T := 5, 3
	ln := NewLayerNorm("ln", d, 1e-5)
	ln.Gamma.Value = mat.NewDense(d, 1, utils.RandomArray(d, 1, rng))
	ln.Beta.Value = mat.NewDense(d, 1, utils.RandomArray(d, 1, rng))
	x := mat.NewDense(d, T, utils.RandomArray(d*T, 1, rng))
	w := mat.NewDense(d, T, utils.RandomArray(d*T, 1, rng))

	loss := func() float64 { return mat.Sum(utils.Multiply(ln.Forward(x), w)) }

	ln.Forward(x)
	dX := ln.Backward(w)

	eps := 1e-6
	check := func(name string, m, g *mat.Dense, i, j int) {
		v := m.At(i, j)
		m.Set(i, j, v+eps)
		lp := loss()
		m.Set(i, j, v-eps)
		lm := loss()
		m.Set(i, j, v)
		num := (lp - lm) / (2 * eps)
		if math.Abs(num-g.At(i, j)) > 1e-5 {
			t.Fatalf("%s[%d,%d]: num=%v ana=%v", name, i, j, num, g.At(i, j))
		}
	}
	for i := 0; i < d; i++ {
		check("gamma", ln.Gamma.Value, ln.Gamma.Grad, i, 0)
		check("beta", ln.Beta.Value, ln.Beta.Grad, i, 0)
		for j := 0; j < T; j++ {
			check("x", x, dX, i, j)
		}
	}
}

func TestAdamWStepMovesAgainstGradient(t *testing.T) {
	p := NewParam("w", mat.NewDense(1, 2, []float64{1, -1}), false, true)
	p.Grad.Set(0, 0, 0.5)
	p.Grad.Set(0, 1, -0.5)
	opt := &AdamW{LR: 0.1, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}
	opt.Step([]*Param{p})
	// first bias-corrected Adam step moves each weight by ~lr*sign(g)
	if math.Abs(p.Value.At(0, 0)-0.9) > 1e-6 || math.Abs(p.Value.At(0, 1)+0.9) > 1e-6 {
		t.Fatalf("unexpected values after step: %v", mat.Formatted(p.Value))
	}
	if opt.T != 1 {
		t.Fatalf("T = %d", opt.T)
	}
}

func TestAdamWDecayOnlyOnWeights(t *testing.T) {
	w := NewParam("w", mat.NewDense(1, 1, []float64{2}), false, true)
	b := NewParam("b", mat.NewDense(1, 1, []float64{2}), true, false)
	opt := &AdamW{LR: 0.1, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, WeightDecay: 0.5}
	opt.Step([]*Param{w, b})
	if b.Value.At(0, 0) != 2 {
		t.Fatalf("bias moved with zero grad: %v", b.Value.At(0, 0))
	}
	if w.Value.At(0, 0) >= 2 {
		t.Fatalf("weight not decayed: %v", w.Value.At(0, 0))
	}
	if len(b.Shape) != 1 || b.Shape[0] != 1 {
		t.Fatalf("vector shape = %v", b.Shape)
	}
}
