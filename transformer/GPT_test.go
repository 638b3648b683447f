package transformer

import (
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/commandGPT/IO"
	"github.com/manningwu07/commandGPT/optimizations"
	"github.com/manningwu07/commandGPT/params"
	"github.com/manningwu07/commandGPT/utils"
)

func finiteDiffCheck(t *testing.T, name string, param *mat.Dense, grad *mat.Dense,
	forward func() float64, i, j int) {
	t.Helper()

	eps := 1e-5
	w0 := param.At(i, j)

	// Perturb +eps
	param.Set(i, j, w0+eps)
	lp := forward()

	// Perturb -eps
	param.Set(i, j, w0-eps)
	lm := forward()

	// Restore
	param.Set(i, j, w0)

	numGrad := (lp - lm) / (2.0 * eps)
	anaGrad := grad.At(i, j)

	if math.Abs(numGrad-anaGrad) > 1e-4+1e-3*math.Abs(numGrad) {
		t.Fatalf("%s[%d,%d] grad mismatch: num=%.6g ana=%.6g",
			name, i, j, numGrad, anaGrad)
	}
}

// weightedSum is a scalar loss whose gradient with respect to Y is w.
func weightedSum(y, w *mat.Dense) float64 {
	return mat.Sum(utils.Multiply(y, w))
}

func smallConfig() params.Config {
	cfg := params.Tiny()
	cfg.BlockSize = 6
	cfg.NEmbd = 8
	cfg.NLayer = 2
	cfg.NHead = 2
	cfg.Dropout = 0
	cfg.BatchSize = 2
	cfg.Seed = 7
	return cfg
}

// ---- Attention ----
func TestAttentionGradCheck(t *testing.T) {
	rng := rand.New(rand.NewPCG(123, 1))
	dModel, T := 4, 3
	attn := NewAttention("attn", dModel, 2, 0.0, rng)

	x := mat.NewDense(dModel, T, utils.RandomArray(dModel*T, 1, rng))
	w := mat.NewDense(dModel, T, utils.RandomArray(dModel*T, 1, rng))
	forward := func() float64 { return weightedSum(attn.Forward(x, false, nil), w) }

	attn.Forward(x, false, nil)
	dX := attn.Backward(w)

	for _, p := range attn.Params() {
		finiteDiffCheck(t, p.Name, p.Value, p.Grad, forward, 0, 0)
		finiteDiffCheck(t, p.Name, p.Value, p.Grad, forward, 3, 1)
	}
	for j := 0; j < T; j++ {
		finiteDiffCheck(t, "x", x, dX, forward, 1, j)
	}
}

// ---- MLP ----
func TestMLPGradCheck(t *testing.T) {
	rng := rand.New(rand.NewPCG(123, 2))
	dModel, T := 4, 2
	mlp := NewMLP("mlp", dModel, 5, 0.0, rng)
	mlp.HiddenBias.Value = mat.NewDense(5, 1, utils.RandomArray(5, 1, rng))

	x := mat.NewDense(dModel, T, utils.RandomArray(dModel*T, 1, rng))
	w := mat.NewDense(dModel, T, utils.RandomArray(dModel*T, 1, rng))
	forward := func() float64 { return weightedSum(mlp.Forward(x, false, nil), w) }

	mlp.Forward(x, false, nil)
	dX := mlp.Backward(w)

	for _, p := range mlp.Params() {
		finiteDiffCheck(t, p.Name, p.Value, p.Grad, forward, 0, 0)
	}
	finiteDiffCheck(t, "x", x, dX, forward, 2, 1)
}

// ---- Transformer Block ----
func TestBlockGradCheck(t *testing.T) {
	cfg := smallConfig()
	gpt, err := CreateGPT(cfg, 5)
	if err != nil {
		t.Fatal(err)
	}
	block := &gpt.Blocks[0]
	rng := rand.New(rand.NewPCG(5, 5))
	x := mat.NewDense(cfg.NEmbd, 4, utils.RandomArray(cfg.NEmbd*4, 1, rng))
	w := mat.NewDense(cfg.NEmbd, 4, utils.RandomArray(cfg.NEmbd*4, 1, rng))
	forward := func() float64 { return weightedSum(block.Forward(x, false, nil), w) }

	block.Forward(x, false, nil)
	dX := block.Backward(w)

	for _, p := range block.Params() {
		finiteDiffCheck(t, p.Name, p.Value, p.Grad, forward, 1, 0)
	}
	finiteDiffCheck(t, "x", x, dX, forward, 0, 3)
}

// ---- Full model, tied embedding included ----
func TestModelGradCheck(t *testing.T) {
	gpt, err := CreateGPT(smallConfig(), 5)
	if err != nil {
		t.Fatal(err)
	}
	xs := [][]int{{0, 1, 2, 3}, {4, 4, 1, 0}}
	ys := [][]int{{1, 2, 3, 4}, {4, 1, 0, 2}}
	forward := func() float64 { return gpt.Forward(xs, ys).Loss }

	gpt.ZeroGrad()
	loss := gpt.ForwardBackward(xs, ys)
	if math.Abs(loss-forward()) > 1e-12 {
		t.Fatalf("ForwardBackward loss %v != Forward loss %v", loss, forward())
	}

	for _, p := range gpt.Params() {
		finiteDiffCheck(t, p.Name, p.Value, p.Grad, forward, 0, 0)
	}
	// rows of the tied matrix reached only through the head, and through both uses
	finiteDiffCheck(t, "tok_emb.weight", gpt.TokEmb.Value, gpt.TokEmb.Grad, forward, 3, 5)
	finiteDiffCheck(t, "tok_emb.weight", gpt.TokEmb.Value, gpt.TokEmb.Grad, forward, 4, 2)
	finiteDiffCheck(t, "pos_emb.weight", gpt.PosEmb.Value, gpt.PosEmb.Grad, forward, 3, 7)
}

func TestLossIsFiniteAndNonNegative(t *testing.T) {
	cfg := smallConfig()
	cfg.Dropout = 0.2
	gpt, err := CreateGPT(cfg, 7)
	if err != nil {
		t.Fatal(err)
	}
	xs := [][]int{{0, 1, 2, 3, 4, 5}, {6, 5, 4, 3, 2, 1}}
	ys := [][]int{{1, 2, 3, 4, 5, 6}, {5, 4, 3, 2, 1, 0}}
	for _, training := range []bool{true, false} {
		gpt.SetTraining(training)
		out := gpt.Forward(xs, ys)
		if !out.HasLoss || math.IsNaN(out.Loss) || math.IsInf(out.Loss, 0) || out.Loss < 0 {
			t.Fatalf("training=%v: bad loss %v", training, out.Loss)
		}
		if r, c := out.Logits[1].Dims(); r != 7 || c != 6 {
			t.Fatalf("logits dims = %dx%d", r, c)
		}
	}
	if out := gpt.Forward(xs, nil); out.HasLoss {
		t.Fatal("loss reported without targets")
	}
}

func TestCausalMaskExactZeros(t *testing.T) {
	gpt, err := CreateGPT(smallConfig(), 5)
	if err != nil {
		t.Fatal(err)
	}
	gpt.SetTraining(false)
	ids := []int{0, 1, 2, 3, 4}
	before := gpt.Logits(ids)
	for _, b := range gpt.Blocks {
		for h := 0; h < b.Attn.H; h++ {
			a := b.Attn.AttentionWeights(h)
			for i := 0; i < len(ids); i++ {
				for j := i + 1; j < len(ids); j++ {
					if a.At(i, j) != 0 {
						t.Fatalf("head %d weight[%d,%d] = %v", h, i, j, a.At(i, j))
					}
				}
			}
		}
	}

	// changing the last token must not move any earlier position's logits
	before = mat.DenseCopyOf(before)
	after := gpt.Logits([]int{0, 1, 2, 3, 0})
	r, _ := before.Dims()
	for tpos := 0; tpos < len(ids)-1; tpos++ {
		for i := 0; i < r; i++ {
			if math.Abs(before.At(i, tpos)-after.At(i, tpos)) > 1e-12 {
				t.Fatalf("position %d changed by a future token", tpos)
			}
		}
	}
}

func TestWeightTyingSharesStorage(t *testing.T) {
	gpt, err := CreateGPT(smallConfig(), 5)
	if err != nil {
		t.Fatal(err)
	}
	var head, tok *optimizations.Param
	for _, p := range gpt.NamedTensors() {
		switch p.Name {
		case "head.weight":
			head = p
		case "tok_emb.weight":
			tok = p
		}
	}
	if head == nil || tok == nil {
		t.Fatal("missing tied tensors")
	}
	if head.Value != tok.Value {
		t.Fatal("head.weight and tok_emb.weight do not share storage")
	}
	tok.Value.Set(2, 1, 42)
	if head.Value.At(2, 1) != 42 {
		t.Fatal("write through tok_emb.weight not visible in head.weight")
	}
	for _, p := range gpt.Params() {
		if p.Name == "head.weight" {
			t.Fatal("tied head listed as a separate parameter")
		}
	}
}

func TestParallelGradsMatchSequential(t *testing.T) {
	xs := [][]int{{0, 1, 2}, {2, 3, 4}, {4, 0, 1}, {1, 1, 3}}
	ys := [][]int{{1, 2, 3}, {3, 4, 0}, {0, 1, 2}, {1, 3, 4}}

	seq, _ := CreateGPT(smallConfig(), 5)
	par, _ := CreateGPT(smallConfig(), 5)
	seq.ZeroGrad()
	par.ZeroGrad()
	l1 := seq.ForwardBackward(xs, ys)
	l2 := par.ForwardBackwardParallel(xs, ys, 3)
	if math.Abs(l1-l2) > 1e-12 {
		t.Fatalf("loss %v vs %v", l1, l2)
	}
	a, b := seq.Params(), par.Params()
	for i := range a {
		if !mat.EqualApprox(a[i].Grad, b[i].Grad, 1e-12) {
			t.Fatalf("%s gradients differ", a[i].Name)
		}
	}
	for i, p := range par.workers[0].Params() {
		if p.Value != b[i].Value {
			t.Fatalf("%s clone does not share weights", p.Name)
		}
	}
}

func TestGenerateTerminatesWithinBudget(t *testing.T) {
	gpt, _ := CreateGPT(smallConfig(), 5)
	prompt := []int{0, 1, 2, 3, 4, 0, 1, 2} // longer than BlockSize
	out, err := gpt.Generate(prompt, GenerateOptions{MaxNewTokens: 9, Greedy: true, StopID: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(prompt)+9 {
		t.Fatalf("len = %d", len(out))
	}
	for i, id := range prompt {
		if out[i] != id {
			t.Fatal("prompt not preserved")
		}
	}

	// stop on whatever greedy emits first
	first := out[len(prompt)]
	out, _ = gpt.Generate(prompt, GenerateOptions{MaxNewTokens: 9, Greedy: true, StopID: first})
	if len(out) != len(prompt)+1 {
		t.Fatalf("stop id ignored: len = %d", len(out))
	}

	sampled, err := gpt.Generate([]int{0}, GenerateOptions{MaxNewTokens: 4, TopK: 2, Seed: 3})
	if err != nil || len(sampled) > 5 {
		t.Fatalf("sampled = %v, %v", sampled, err)
	}
	if !gpt.Training {
		t.Fatal("training mode not restored")
	}
}

func TestSampledDecodingSeeds(t *testing.T) {
	gpt, _ := CreateGPT(smallConfig(), 5)
	opts := GenerateOptions{MaxNewTokens: 24, StopID: -1, Seed: 11}
	a, _ := gpt.Generate([]int{0}, opts)
	b, _ := gpt.Generate([]int{0}, opts)
	if !slices.Equal(a, b) {
		t.Fatalf("fixed seed differs: %v vs %v", a, b)
	}

	// an untrained model is close to uniform over 5 ids, so 24 unseeded
	// draws repeating across all tries is vanishingly unlikely
	opts.Seed = 0
	first, _ := gpt.Generate([]int{0}, opts)
	for range 4 {
		next, _ := gpt.Generate([]int{0}, opts)
		if !slices.Equal(first, next) {
			return
		}
	}
	t.Fatalf("unseeded sampling repeated %v", first)
}

func TestExtractOutput(t *testing.T) {
	cases := map[string]string{
		`INPUT: go back OUTPUT: {"action": "back"}zz`:     `{"action": "back"}`,
		`INPUT: hi OUTPUT: {"action": "unrecognized"`:     `{"action": "unrecognized"`,
		`INPUT: a OUTPUT: {"a": {"b": 1}} OUTPUT: x} tail`: `{"a": {"b": 1}} OUTPUT: x}`,
	}
	for in, want := range cases {
		if got := ExtractOutput(in); got != want {
			t.Errorf("ExtractOutput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	gpt, _ := CreateGPT(smallConfig(), 5)
	gpt.SetTraining(false)
	opt := &optimizations.AdamW{LR: 1e-3, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}
	gpt.ZeroGrad()
	gpt.ForwardBackward([][]int{{0, 1, 2}}, [][]int{{1, 2, 3}})
	opt.Step(gpt.Params())

	path := filepath.Join(t.TempDir(), CheckpointFile)
	if err := SaveTransformer(gpt, opt, "abcde", path); err != nil {
		t.Fatal(err)
	}
	loaded, vocab, step, err := LoadTransformer(path)
	if err != nil {
		t.Fatal(err)
	}
	if vocab != "abcde" || step != 1 {
		t.Fatalf("vocab=%q step=%d", vocab, step)
	}
	loaded.SetTraining(false)
	ids := []int{4, 3, 2, 1}
	if !mat.EqualApprox(gpt.Logits(ids), loaded.Logits(ids), 0) {
		t.Fatal("logits differ after reload")
	}
	if !mat.Equal(gpt.TokEmb.M, loaded.TokEmb.M) {
		t.Fatal("adam moments not restored")
	}

	bigger := smallConfig()
	bigger.NLayer = 3
	other, _ := CreateGPT(bigger, 5)
	if _, _, err := LoadInto(other, path); !errors.Is(err, ErrCheckpointMismatch) {
		t.Fatalf("err = %v, want ErrCheckpointMismatch", err)
	}
}

func TestExportConsistency(t *testing.T) {
	gpt, _ := CreateGPT(smallConfig(), 5)
	dir := t.TempDir()
	if err := SaveTransformer(gpt, nil, "abcde", filepath.Join(dir, CheckpointFile)); err != nil {
		t.Fatal(err)
	}
	weights := filepath.Join(dir, IO.WeightsFile)
	if err := IO.WriteWeightsJSON(weights, gpt.NamedTensors()); err != nil {
		t.Fatal(err)
	}
	shapes, err := IO.ReadWeightShapes(weights)
	if err != nil {
		t.Fatal(err)
	}
	data, err := readCheckpoint(filepath.Join(dir, CheckpointFile))
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]*optimizations.Param{}
	for _, p := range gpt.Params() {
		byName[p.Name] = p
	}
	for _, td := range data.Tensors {
		got, ok := shapes[td.Name]
		if !ok {
			t.Fatalf("%s missing from weights document", td.Name)
		}
		if !slices.Equal(got, byName[td.Name].Shape) || td.Rows*td.Cols != product(got) {
			t.Fatalf("%s: weights shape %v, checkpoint %dx%d", td.Name, got, td.Rows, td.Cols)
		}
	}
	if !slices.Equal(shapes["head.weight"], shapes["tok_emb.weight"]) {
		t.Fatal("tied head shape differs")
	}

	// every tensor the forward graph references is exported
	g, err := IO.BuildForwardGraph(gpt.Config, gpt.VocabSize)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range g.ParamNames() {
		if _, ok := shapes[name]; !ok {
			t.Fatalf("graph references unknown tensor %s", name)
		}
	}
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
