package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/commandGPT/utils"
)

// Param is one learnable tensor together with its gradient buffer and Adam moments.
// Shape is the logical shape used in exported documents (1-D for vectors).
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
	M, V  *mat.Dense
	Shape []int
	Decay bool // AdamW weight decay applies (weight matrices only)
}

// NewParam wraps value; vector marks a (d x 1) tensor exported as 1-D.
func NewParam(name string, value *mat.Dense, vector, decay bool) *Param {
	r, c := value.Dims()
	shape := []int{r, c}
	if vector {
		shape = []int{r}
	}
	return &Param{
		Name:  name,
		Value: value,
		Grad:  utils.ZerosLike(value),
		M:     utils.ZerosLike(value),
		V:     utils.ZerosLike(value),
		Shape: shape,
		Decay: decay,
	}
}

// GradOnlyCopy shares Value but owns a fresh gradient buffer and no moments.
func (p *Param) GradOnlyCopy() *Param {
	return &Param{Name: p.Name, Value: p.Value, Grad: utils.ZerosLike(p.Value), Shape: p.Shape, Decay: p.Decay}
}

func (p *Param) ZeroGrad() { p.Grad.Zero() }

func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

// AdamW is the decoupled-weight-decay Adam optimizer over a fixed parameter list.
type AdamW struct {
	LR, Beta1, Beta2, Eps, WeightDecay float64
	T                                  int
}

// Step applies one update to every parameter using its accumulated gradient.
func (opt *AdamW) Step(ps []*Param) {
	opt.T++
	for _, p := range ps {
		wd := 0.0
		if p.Decay {
			wd = opt.WeightDecay
		}
		AdamUpdateInPlace(p.Value, p.Grad, p.M, p.V, opt.T, opt.LR, opt.Beta1, opt.Beta2, opt.Eps, wd)
	}
}

// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p) with bias correction (AdamW).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	c1 := 1.0 / (1.0 - math.Pow(beta1, float64(t)))
	c2 := 1.0 / (1.0 - math.Pow(beta2, float64(t)))
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			update := (mij*c1)/(math.Sqrt(vij*c2)+eps) + weightDecay*p.At(i, j)
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, p.At(i, j)-lr*update)
		}
	}
}
