package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/manningwu07/commandGPT/IO"
	"github.com/manningwu07/commandGPT/params"
	"github.com/manningwu07/commandGPT/transformer"
)

// CommandCLI loads the model exported to dir and completes every line read from in.
func CommandCLI(dir string, base params.Config, in io.Reader, out io.Writer) error {
	vocab, cfg, err := IO.LoadVocabJSON(filepath.Join(dir, IO.VocabFile), base)
	if err != nil {
		return err
	}
	gpt, chars, _, err := transformer.LoadTransformer(filepath.Join(dir, transformer.CheckpointFile))
	if err != nil {
		return err
	}
	if chars != vocab.String() {
		return fmt.Errorf("%s and %s were exported from different corpora", IO.VocabFile, transformer.CheckpointFile)
	}
	gpt.SetTraining(false)

	fmt.Fprintf(out, "Loaded %d params, vocab %d, window %d. Type 'exit' to quit.\n",
		gpt.NumParams(), vocab.Size(), gpt.Config.BlockSize)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		input := strings.TrimSpace(sc.Text())
		if input == "exit" {
			break
		}
		if input == "" {
			continue
		}
		text, err := transformer.CompleteCommand(gpt, vocab, input, cfg.MaxNewTokens)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			continue
		}
		fmt.Fprintln(out, text)
		if cmd, err := IO.ParseCommand(text); err != nil {
			fmt.Fprintln(out, "  invalid:", err)
		} else {
			fmt.Fprintln(out, "  valid:", cmd.Action)
		}
	}
	return sc.Err()
}
