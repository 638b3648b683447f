package transformer

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/commandGPT/optimizations"
	"github.com/manningwu07/commandGPT/utils"
)

// MLP is the per-position feed-forward block: expand, GELU, contract, dropout.
type MLP struct {
	Inputs, Hiddens int
	Dropout         float64

	HiddenWeights, HiddenBias *optimizations.Param
	OutputWeights, OutputBias *optimizations.Param

	// cache for backprop
	lastInput, hiddenPreAct, hiddenOutputs, dropMask *mat.Dense
}

func NewMLP(prefix string, dModel, hidden int, dropout float64, rng *rand.Rand) *MLP {
	name := func(layer int, kind string) string { return fmt.Sprintf("%s.net.%d.%s", prefix, layer, kind) }
	return &MLP{
		Inputs:  dModel,
		Hiddens: hidden,
		Dropout: dropout,
		HiddenWeights: optimizations.NewParam(name(0, "weight"),
			mat.NewDense(hidden, dModel, utils.RandomArray(dModel*hidden, float64(dModel), rng)), false, true),
		HiddenBias: optimizations.NewParam(name(0, "bias"), mat.NewDense(hidden, 1, nil), true, false),
		OutputWeights: optimizations.NewParam(name(2, "weight"),
			mat.NewDense(dModel, hidden, utils.RandomArray(hidden*dModel, float64(hidden), rng)), false, true),
		OutputBias: optimizations.NewParam(name(2, "bias"), mat.NewDense(dModel, 1, nil), true, false),
	}
}

func (mlp *MLP) Forward(X *mat.Dense, training bool, rng *rand.Rand) *mat.Dense {
	mlp.lastInput = X
	hiddenLin := utils.Dot(mlp.HiddenWeights.Value, X)               // (h x T)
	mlp.hiddenPreAct = utils.AddBias(hiddenLin, mlp.HiddenBias.Value) // (h x T)
	mlp.hiddenOutputs = mat.NewDense(mlp.Hiddens, X.RawMatrix().Cols, nil)
	mlp.hiddenOutputs.Apply(utils.GeluApply, mlp.hiddenPreAct)
	finalLin := utils.Dot(mlp.OutputWeights.Value, mlp.hiddenOutputs) // (d x T)
	out := utils.AddBias(finalLin, mlp.OutputBias.Value)
	p := 0.0
	if training {
		p = mlp.Dropout
	}
	out, mlp.dropMask = utils.Dropout(out, p, rng)
	return out
}

// Backward accumulates weight/bias gradients and returns dX.
func (mlp *MLP) Backward(grad *mat.Dense) *mat.Dense {
	grad = utils.ApplyMask(grad, mlp.dropMask)

	utils.AccumulateProduct(mlp.OutputWeights.Grad, grad, mlp.hiddenOutputs.T())
	utils.AccumulateRowSums(mlp.OutputBias.Grad, grad)

	hiddenGradOut := utils.Dot(mlp.OutputWeights.Value.T(), grad) // dL/d(hidden_out)
	hiddenErrors := utils.Multiply(hiddenGradOut, utils.GeluPrime(mlp.hiddenPreAct))

	utils.AccumulateProduct(mlp.HiddenWeights.Grad, hiddenErrors, mlp.lastInput.T())
	utils.AccumulateRowSums(mlp.HiddenBias.Grad, hiddenErrors)

	return utils.Dot(mlp.HiddenWeights.Value.T(), hiddenErrors)
}

func (mlp *MLP) Params() []*optimizations.Param {
	return []*optimizations.Param{mlp.HiddenWeights, mlp.HiddenBias, mlp.OutputWeights, mlp.OutputBias}
}
