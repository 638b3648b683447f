package transformer

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// CloneForGradsOnly creates a shallow clone of the model where all weights/biases
// are shared (read-only), but gradients and per-module caches are private.
// No optimizer state is copied. Safe for concurrent ForwardBackward calls.
func (g *Transformer) CloneForGradsOnly(seed uint64) *Transformer {
	out := &Transformer{
		Config:    g.Config,
		VocabSize: g.VocabSize,
		TokEmb:    g.TokEmb.GradOnlyCopy(),
		PosEmb:    g.PosEmb.GradOnlyCopy(),
		Blocks:    make([]TransformerBlock, len(g.Blocks)),
		LnF:       g.LnF.CloneForGrads(),
		Training:  g.Training,
		rng:       NewRNG(seed),
	}
	for i := range g.Blocks {
		src := &g.Blocks[i]
		out.Blocks[i] = TransformerBlock{
			Attn: cloneAttentionForGrads(src.Attn),
			Mlp:  cloneMLPForGrads(src.Mlp),
			Ln1:  src.Ln1.CloneForGrads(),
			Ln2:  src.Ln2.CloneForGrads(),
		}
	}
	return out
}

func cloneAttentionForGrads(src *Attention) *Attention {
	return &Attention{
		H:       src.H,
		DModel:  src.DModel,
		DHead:   src.DHead,
		Dropout: src.Dropout,
		Wquery:  src.Wquery.GradOnlyCopy(),
		Wkey:    src.Wkey.GradOnlyCopy(),
		Wvalue:  src.Wvalue.GradOnlyCopy(),
		Woutput: src.Woutput.GradOnlyCopy(),
		// private caches
		A:         make([]*mat.Dense, src.H),
		AttnMask:  make([]*mat.Dense, src.H),
		maskCache: make(map[int]*mat.Dense),
	}
}

func cloneMLPForGrads(src *MLP) *MLP {
	return &MLP{
		Inputs:        src.Inputs,
		Hiddens:       src.Hiddens,
		Dropout:       src.Dropout,
		HiddenWeights: src.HiddenWeights.GradOnlyCopy(),
		HiddenBias:    src.HiddenBias.GradOnlyCopy(),
		OutputWeights: src.OutputWeights.GradOnlyCopy(),
		OutputBias:    src.OutputBias.GradOnlyCopy(),
	}
}

// AccumulateGrads adds every gradient of clone into g. Both must share a layout.
func (g *Transformer) AccumulateGrads(clone *Transformer) {
	dst, src := g.Params(), clone.Params()
	for i := range dst {
		dst[i].Grad.Add(dst[i].Grad, src[i].Grad)
	}
}

// ForwardBackwardParallel splits the batch into contiguous shards, runs each on
// a grads-only clone and sums the shard gradients into g in shard order, so the
// result only depends on the seed and the worker count.
func (g *Transformer) ForwardBackwardParallel(idx, targets [][]int, workers int) float64 {
	if workers <= 1 || len(idx) < 2 {
		return g.ForwardBackward(idx, targets)
	}
	workers = min(workers, len(idx))
	for len(g.workers) < workers {
		g.workers = append(g.workers, g.CloneForGradsOnly(g.rng.Uint64()))
	}

	n := 0
	for _, ids := range idx {
		n += len(ids)
	}
	losses := make([]float64, workers)
	chunk := (len(idx) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(idx))
		if lo >= hi {
			continue
		}
		clone := g.workers[w]
		clone.Training = g.Training
		clone.ZeroGrad()
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			losses[w] = clone.forwardBackwardScaled(idx[lo:hi], targets[lo:hi], n)
		}(w, lo, hi)
	}
	wg.Wait()

	total := 0.0
	for w := 0; w < workers; w++ {
		if w*chunk >= len(idx) {
			continue
		}
		g.AccumulateGrads(g.workers[w])
		total += losses[w]
	}
	return total / float64(n)
}
