package transformer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/manningwu07/commandGPT/IO"
	"github.com/manningwu07/commandGPT/utils"
)

// GenerateOptions controls one decoding run.
type GenerateOptions struct {
	MaxNewTokens int
	Greedy       bool    // argmax; otherwise sample from the softmax
	Temperature  float64 // sampled mode only, <=0 means 1
	TopK         int     // sampled mode only, <=0 disables
	TopP         float64 // sampled mode only, outside (0,1) disables
	StopID       int     // generation ends after emitting it; <0 disables
	Seed         uint64  // sampled mode only, 0 draws a fresh seed per call
}

// Generate extends ids by at most opts.MaxNewTokens tokens and returns prompt + continuation.
// Each step recomputes the full forward pass over the last BlockSize tokens.
// The model runs in eval mode and is restored to its previous mode afterwards.
func (g *Transformer) Generate(ids []int, opts GenerateOptions) ([]int, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("transformer: generate needs a non-empty prompt")
	}
	wasTraining := g.Training
	g.SetTraining(false)
	defer g.SetTraining(wasTraining)

	temp := opts.Temperature
	if temp <= 0 {
		temp = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := NewRNG(seed)
	out := append([]int(nil), ids...)
	for range opts.MaxNewTokens {
		ctx := out
		if len(ctx) > g.Config.BlockSize {
			ctx = ctx[len(ctx)-g.Config.BlockSize:]
		}
		last := utils.LastCol(g.Logits(ctx))
		if !utils.AllFinite(last...) {
			return out, fmt.Errorf("transformer: non-finite logits after %d tokens", len(out))
		}

		var next int
		if opts.Greedy {
			next = utils.Argmax(last)
		} else {
			for i := range last {
				last[i] /= temp
			}
			next = utils.SampleFromProbs(utils.Softmax(last), opts.TopK, opts.TopP, rng)
		}
		out = append(out, next)
		if opts.StopID >= 0 && next == opts.StopID {
			break
		}
	}
	return out, nil
}

// PromptFor builds the text the model continues for a user command.
func PromptFor(command string) string {
	return "INPUT: " + command + " OUTPUT: "
}

// CompleteCommand greedily completes one command and returns the JSON text the
// model produced, cut at its last closing brace. The output is not validated.
func CompleteCommand(g *Transformer, vocab *IO.Vocabulary, command string, maxNew int) (string, error) {
	ids, err := vocab.EncodeWithPolicy(PromptFor(command), IO.OOVFold)
	if err != nil {
		return "", err
	}
	stop := -1
	if id, ok := vocab.ID(g.stopChar()); ok {
		stop = id
	}
	gen, err := g.Generate(ids, GenerateOptions{MaxNewTokens: maxNew, Greedy: true, StopID: stop})
	if err != nil {
		return "", err
	}
	text, err := vocab.Decode(gen)
	if err != nil {
		return "", err
	}
	return ExtractOutput(text), nil
}

// ExtractOutput returns the part after the first "OUTPUT: " marker, trimmed
// after the last '}' when there is one.
func ExtractOutput(text string) string {
	_, after, found := strings.Cut(text, "OUTPUT: ")
	if !found {
		after = text
	}
	if i := strings.LastIndexByte(after, '}'); i >= 0 {
		after = after[:i+1]
	}
	return strings.TrimSpace(after)
}

func (g *Transformer) stopChar() rune {
	for _, r := range g.Config.StopChar {
		return r
	}
	return '}'
}

// Perplexity is exp(loss) for a mean cross-entropy in nats.
func Perplexity(loss float64) float64 { return math.Exp(loss) }
