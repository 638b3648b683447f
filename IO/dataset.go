package IO

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

var ErrMalformedLine = errors.New("dataset line is not INPUT: ... OUTPUT: ...")

const (
	inputTag  = "INPUT: "
	outputTag = " OUTPUT: "
)

// Sample is one (phrase, command) training pair.
type Sample struct {
	Input   string
	Command Command
}

// Line renders the sample in dataset form.
func (s Sample) Line() string {
	return inputTag + s.Input + outputTag + s.Command.Canonical()
}

// ParseLine splits a dataset line back into its phrase and JSON text.
func ParseLine(line string) (input, output string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), inputTag)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	input, output, ok = strings.Cut(rest, outputTag)
	if !ok || output == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}
	return input, output, nil
}

// Builder generates synthetic samples. Rng nil means an unseeded source.
type Builder struct {
	Rng *rand.Rand
}

func (b *Builder) rng() *rand.Rand {
	if b.Rng == nil {
		b.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return b.Rng
}

func fill(tmpl, value string) string {
	return strings.Replace(tmpl, "{}", value, 1)
}

func (b *Builder) pick(pool []string) string {
	return pool[b.rng().IntN(len(pool))]
}

// randomCombos joins 1-4 random words, count times.
func (b *Builder) randomCombos(count int) []string {
	rng := b.rng()
	out := make([]string, count)
	for i := range out {
		words := make([]string, 1+rng.IntN(4))
		for j := range words {
			words[j] = b.pick(comboWords)
		}
		out[i] = strings.Join(words, " ")
	}
	return out
}

// Dataset produces the full multi-category dataset: one sample per pool value,
// each phrased with a random template, then shuffled.
func (b *Builder) Dataset() []Sample {
	var samples []Sample
	add := func(tmpls []string, values []string, build func(string) Command) {
		for _, v := range values {
			samples = append(samples, Sample{Input: fill(b.pick(tmpls), v), Command: build(v)})
		}
	}

	add(alertTemplates, alertMessages, Alert)
	add(alertTemplates, arbitraryMessages, Alert)
	synthetic := make([]string, 50)
	for i := range synthetic {
		synthetic[i] = fmt.Sprintf("message %d", 1+b.rng().IntN(999))
	}
	add(alertTemplates, synthetic, Alert)
	add(alertTemplates, b.randomCombos(150), Alert)
	add(navigateTemplates, navigateTargets, Navigate)
	add(toggleTemplates, toggleSettings, Toggle)
	for _, p := range systemPhrases {
		samples = append(samples, Sample{Input: p.text, Command: System(p.action)})
	}
	for _, in := range unrecognizedInputs {
		samples = append(samples, Sample{Input: in, Command: Unrecognized(in)})
	}

	b.shuffle(samples)
	return samples
}

// TemplateSamples draws n samples, each from a random template of the compact table.
func (b *Builder) TemplateSamples(n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		t := tinyTemplates[b.rng().IntN(len(tinyTemplates))]
		if t.pool == nil {
			samples[i] = Sample{Input: t.text, Command: t.build("")}
			continue
		}
		v := b.pick(t.pool)
		samples[i] = Sample{Input: fill(t.text, v), Command: t.build(v)}
	}
	return samples
}

func (b *Builder) shuffle(samples []Sample) {
	b.rng().Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })
}

// Lines renders samples in dataset form.
func Lines(samples []Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Line()
	}
	return out
}

// BuildCorpus joins lines repeated repeat times with newlines.
func BuildCorpus(lines []string, repeat int) string {
	all := make([]string, 0, len(lines)*max(repeat, 1))
	for range max(repeat, 1) {
		all = append(all, lines...)
	}
	return strings.Join(all, "\n")
}

// WriteDataset writes one line per sample to path.
func WriteDataset(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadDataset returns the non-empty trimmed lines of path. Every line must parse.
func ReadDataset(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if _, _, err := ParseLine(line); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
