package trainer

import (
	"fmt"

	"github.com/manningwu07/commandGPT/IO"
	"github.com/manningwu07/commandGPT/transformer"
)

var tinyPrompts = []string{
	"show alert with message Hello",
	"navigate to settings",
	"toggle dark_mode",
	"go back",
	"refresh the page",
}

var simplePrompts = []string{
	"show alert Hello",
	"alert Test",
	"show alert Hello world",
	"navigate to settings",
	"hello",
	"hi",
}

// PromptsFor returns the sample commands checked after training with a preset.
func PromptsFor(preset string) []string {
	if preset == "simple" {
		return simplePrompts
	}
	return tinyPrompts
}

// Completion is the greedy answer to one sample command.
type Completion struct {
	Command string
	Output  string
	Parsed  IO.Command
	Err     error // nil when Output matches the action schema
}

// Complete runs every prompt through the greedy decoder and prints
// "'<command>' -> <json>" for each.
func (tr *Trainer) Complete(prompts []string) ([]Completion, error) {
	out := make([]Completion, 0, len(prompts))
	for _, p := range prompts {
		text, err := transformer.CompleteCommand(tr.Model, tr.Vocab, p, tr.Config.MaxNewTokens)
		if err != nil {
			return out, fmt.Errorf("complete %q: %w", p, err)
		}
		c := Completion{Command: p, Output: text}
		c.Parsed, c.Err = IO.ParseCommand(text)
		tr.printf("'%s' -> %s\n", p, text)
		out = append(out, c)
	}
	return out, nil
}
