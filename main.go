package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manningwu07/commandGPT/IO"
	"github.com/manningwu07/commandGPT/params"
	"github.com/manningwu07/commandGPT/runlog"
	"github.com/manningwu07/commandGPT/trainer"
	"github.com/manningwu07/commandGPT/transformer"
)

var (
	generateFlag bool
	trainFlag    bool
	cliFlag      bool

	presetFlag  string
	configFlag  string
	datasetFlag string
	outFlag     string
	assetsFlag  string
	dbFlag      string
	resumeFlag  string
	itersFlag   int
	workersFlag int
	seedFlag    uint64
)

func init() {
	flag.BoolVar(&generateFlag, "generate", false, "Write the synthetic dataset file")
	flag.BoolVar(&trainFlag, "train", false, "Train a model and export it")
	flag.BoolVar(&cliFlag, "cli", false, "Complete commands typed on stdin with an exported model")

	flag.StringVar(&presetFlag, "preset", "tiny", "Hyperparameter preset: tiny or simple")
	flag.StringVar(&configFlag, "config", "", "JSON file overlaid on the preset")
	flag.StringVar(&datasetFlag, "dataset", "simple_dataset.txt", "Dataset file read by the simple preset")
	flag.StringVar(&outFlag, "out", "export", "Directory for the checkpoint, vocab, weights and graph")
	flag.StringVar(&assetsFlag, "assets", strings.Join(IO.AppAssetDirs, ","), "Comma-separated app asset directories, empty to skip")
	flag.StringVar(&dbFlag, "db", "", "SQLite run history, empty to disable")
	flag.StringVar(&resumeFlag, "resume", "", "Checkpoint to continue training from")
	flag.IntVar(&itersFlag, "iters", -1, "Override MaxIters")
	flag.IntVar(&workersFlag, "workers", 0, "Override data-parallel workers")
	flag.Uint64Var(&seedFlag, "seed", 0, "Override the seed (0 keeps the preset's)")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}

	if generateFlag {
		lines := IO.Lines((&IO.Builder{}).Dataset())
		if err := IO.WriteDataset(datasetFlag, lines); err != nil {
			fatal(err)
		}
		fmt.Printf("Wrote %d samples to %s\n", len(lines), datasetFlag)
	}

	if trainFlag {
		if err := train(cfg); err != nil {
			fatal(err)
		}
	}

	if cliFlag {
		if err := CommandCLI(outFlag, cfg, os.Stdin, os.Stdout); err != nil {
			fatal(err)
		}
		return
	}

	if !generateFlag && !trainFlag {
		fmt.Println("No flag passed. Use -generate, -train or -cli.")
	}
}

func loadConfig() (params.Config, error) {
	cfg, err := params.Preset(presetFlag)
	if err != nil {
		return cfg, err
	}
	if configFlag != "" {
		if cfg, err = params.LoadConfig(configFlag, cfg); err != nil {
			return cfg, err
		}
	}
	if itersFlag >= 0 {
		cfg.MaxIters = itersFlag
	}
	if workersFlag > 0 {
		cfg.Workers = workersFlag
	}
	if seedFlag != 0 {
		cfg.Seed = seedFlag
	}
	return cfg, cfg.Validate()
}

// corpus builds the training text: template samples for the tiny preset, the
// dataset file (generated when missing) repeated for the others.
func corpus(cfg params.Config) (string, error) {
	if cfg.Samples > 0 {
		b := &IO.Builder{Rng: transformer.NewRNG(cfg.Seed)}
		return IO.BuildCorpus(IO.Lines(b.TemplateSamples(cfg.Samples)), cfg.Repeat), nil
	}
	lines, err := IO.ReadDataset(datasetFlag)
	if errors.Is(err, os.ErrNotExist) {
		lines = IO.Lines((&IO.Builder{}).Dataset())
		if err = IO.WriteDataset(datasetFlag, lines); err == nil {
			fmt.Printf("Wrote %d samples to %s\n", len(lines), datasetFlag)
		}
	}
	if err != nil {
		return "", err
	}
	return IO.BuildCorpus(lines, cfg.Repeat), nil
}

func train(cfg params.Config) error {
	text, err := corpus(cfg)
	if err != nil {
		return err
	}
	tr, err := trainer.New(cfg, text)
	if err != nil {
		return err
	}
	tr.Out = os.Stdout
	if resumeFlag != "" {
		if err := tr.Resume(resumeFlag); err != nil {
			return err
		}
		fmt.Printf("Resumed from %s at step %d\n", resumeFlag, tr.Opt.T)
	}

	csvLog, err := runlog.NewCSVLog(filepath.Join(outFlag, "training_log.csv"))
	if err != nil {
		return err
	}
	defer csvLog.Close()
	sinks := runlog.Multi{runlog.Console{W: os.Stdout}, csvLog}

	var store *runlog.Store
	if dbFlag != "" {
		if store, err = runlog.OpenStore(dbFlag); err != nil {
			return err
		}
		defer store.Close()
		if _, err := store.StartRun(cfg, tr.Vocab.Size(), tr.Model.NumParams()); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}
	tr.Sink = sinks

	fmt.Printf("Training %s preset: %d layers, %d heads, width %d, window %d, %d iterations\n",
		presetFlag, cfg.NLayer, cfg.NHead, cfg.NEmbd, cfg.BlockSize, cfg.MaxIters)
	if err := tr.Run(); err != nil {
		return err
	}
	fmt.Printf("Final val perplexity: %.3f\n", transformer.Perplexity(tr.Last.ValLoss))

	if err := tr.Export(outFlag, splitDirs(assetsFlag)); err != nil {
		return err
	}
	if store != nil {
		if err := store.FinishRun(); err != nil {
			return err
		}
	}

	fmt.Println("\nTest generation:")
	_, err = tr.Complete(trainer.PromptsFor(presetFlag))
	return err
}

func splitDirs(s string) []string {
	var dirs []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
