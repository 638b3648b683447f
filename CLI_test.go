package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/manningwu07/commandGPT/IO"
	"github.com/manningwu07/commandGPT/params"
	"github.com/manningwu07/commandGPT/trainer"
)

func TestCommandCLI(t *testing.T) {
	cfg := params.Tiny()
	cfg.BlockSize, cfg.NEmbd, cfg.NLayer, cfg.NHead = 16, 8, 1, 2
	cfg.MaxIters, cfg.EvalIters, cfg.BatchSize = 0, 1, 2
	cfg.MaxNewTokens = 6
	text := IO.BuildCorpus(IO.Lines([]IO.Sample{{Input: "go back", Command: IO.System("back")}}), 10)

	tr, err := trainer.New(cfg, text)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := tr.Export(dir, nil); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	in := strings.NewReader("go back\n\ngo bäck\nexit\nnever read\n")
	if err := CommandCLI(dir, params.Tiny(), in, &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if strings.Count(got, "> ") != 4 {
		t.Fatalf("prompts in %q", got)
	}
	if strings.Count(got, "valid:") != 2 {
		t.Fatalf("expected a verdict per command, got %q", got)
	}
}

func TestSplitDirs(t *testing.T) {
	got := splitDirs(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitDirs = %q", got)
	}
	if splitDirs("") != nil {
		t.Fatal("empty list")
	}
}
