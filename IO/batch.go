package IO

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrSplitTooShort = errors.New("split is not longer than the window")

// SplitTokens returns the contiguous head (frac of the tokens, floored) and the tail.
func SplitTokens(tokens []int, frac float64) (train, val []int) {
	n := int(frac * float64(len(tokens)))
	n = min(max(n, 0), len(tokens))
	return tokens[:n], tokens[n:]
}

// Batch holds B windows and their next-token targets.
type Batch struct {
	X, Y    [][]int
	Offsets []int
}

// Sampler draws shifted windows of one split.
type Sampler struct {
	Data   []int
	Window int
	Batch  int
}

// Sample draws Batch offsets uniformly from [0, len(Data)-Window) and returns
// Data[i:i+Window] as input and Data[i+1:i+Window+1] as target for each.
// Windows alias Data.
func (s Sampler) Sample(rng *rand.Rand) (Batch, error) {
	if len(s.Data) <= s.Window {
		return Batch{}, fmt.Errorf("%w: %d tokens, window %d", ErrSplitTooShort, len(s.Data), s.Window)
	}
	b := Batch{
		X:       make([][]int, s.Batch),
		Y:       make([][]int, s.Batch),
		Offsets: make([]int, s.Batch),
	}
	span := len(s.Data) - s.Window
	for k := 0; k < s.Batch; k++ {
		i := rng.IntN(span)
		b.Offsets[k] = i
		b.X[k] = s.Data[i : i+s.Window]
		b.Y[k] = s.Data[i+1 : i+s.Window+1]
	}
	return b, nil
}
