package IO

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/manningwu07/commandGPT/optimizations"
	"github.com/manningwu07/commandGPT/params"
)

const (
	WeightsFile = "weights.json"
	GraphFile   = "tiny_transformer.dot"
)

// AppAssetDirs are the mobile asset directories the vocabulary and weights are copied into.
var AppAssetDirs = []string{
	"mobile-app/composeApp/src/androidMain/assets",
	"mobile-app/iosApp/iosApp",
}

// ---------- weights.json ----------

// nested turns a Param into nested arrays of its logical shape.
func nested(p *optimizations.Param) any {
	r, c := p.Value.Dims()
	if len(p.Shape) == 1 {
		out := make([]float64, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out[i*c+j] = p.Value.At(i, j)
			}
		}
		return out
	}
	out := make([][]float64, r)
	for i := range out {
		out[i] = append([]float64(nil), p.Value.RawRowView(i)...)
	}
	return out
}

// WriteWeightsJSON writes name -> nested arrays for every tensor.
// Tied tensors appear once per name.
func WriteWeightsJSON(path string, tensors []*optimizations.Param) error {
	doc := make(map[string]any, len(tensors))
	for _, p := range tensors {
		if _, dup := doc[p.Name]; dup {
			return fmt.Errorf("weights: duplicate tensor name %q", p.Name)
		}
		doc[p.Name] = nested(p)
	}
	return writeJSON(path, doc)
}

// shapeOf infers the shape of a nested numeric array.
func shapeOf(raw json.RawMessage) ([]int, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if len(arr) == 0 {
		return []int{0}, nil
	}
	inner, err := shapeOf(arr[0])
	if err != nil {
		return nil, err
	}
	return append([]int{len(arr)}, inner...), nil
}

// ReadWeightShapes returns the shape of every tensor in a weights document.
func ReadWeightShapes(path string) (map[string][]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	shapes := make(map[string][]int, len(doc))
	for name, v := range doc {
		s, err := shapeOf(v)
		if err != nil {
			return nil, fmt.Errorf("%s: tensor %s: %w", path, name, err)
		}
		shapes[name] = s
	}
	return shapes, nil
}

// ---------- forward graph ----------

// opNode is one operation of the forward computation.
type opNode struct {
	id     int64
	name   string
	op     string
	params []string
	order  int
}

func (n *opNode) ID() int64     { return n.id }
func (n *opNode) DOTID() string { return n.name }

func (n *opNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{
		{Key: "op", Value: n.op},
		{Key: "order", Value: fmt.Sprint(n.order)},
	}
	if len(n.params) > 0 {
		attrs = append(attrs, encoding.Attribute{Key: "params", Value: strings.Join(n.params, ",")})
	}
	return attrs
}

type attrList []encoding.Attribute

func (a attrList) Attributes() []encoding.Attribute { return a }

// ForwardGraph is the operator graph of one forward pass.
type ForwardGraph struct {
	*simple.DirectedGraph
	Name  string
	attrs attrList
	nodes map[string]*opNode
}

func (g *ForwardGraph) DOTID() string { return g.Name }

func (g *ForwardGraph) DOTAttributers() (graphAttrs, nodeAttrs, edgeAttrs encoding.Attributer) {
	return g.attrs, attrList{{Key: "shape", Value: "box"}}, attrList{}
}

func (g *ForwardGraph) add(name, op string, tensors []string, inputs ...string) string {
	n := &opNode{id: int64(len(g.nodes)), name: name, op: op, params: tensors}
	g.nodes[name] = n
	g.AddNode(n)
	for _, in := range inputs {
		g.SetEdge(g.NewEdge(g.nodes[in], n))
	}
	return name
}

// BuildForwardGraph describes the forward pass of a model with the given
// architecture, from input_ids to logits.
func BuildForwardGraph(cfg params.Config, vocabSize int) (*ForwardGraph, error) {
	g := &ForwardGraph{
		DirectedGraph: simple.NewDirectedGraph(),
		Name:          "tiny_transformer",
		attrs: attrList{
			{Key: "input_names", Value: "input_ids"},
			{Key: "output_names", Value: "logits"},
			{Key: "dynamic_axes", Value: "input_ids:0=batch,1=seq;logits:0=batch,1=seq"},
			{Key: "vocab_size", Value: fmt.Sprint(vocabSize)},
			{Key: "block_size", Value: fmt.Sprint(cfg.BlockSize)},
		},
		nodes: make(map[string]*opNode),
	}

	g.add("input_ids", "Input", nil)
	g.add("tok_emb", "Gather", []string{"tok_emb.weight"}, "input_ids")
	g.add("positions", "Range", nil, "input_ids")
	g.add("pos_emb", "Gather", []string{"pos_emb.weight"}, "positions")
	x := g.add("embed", "Add", nil, "tok_emb", "pos_emb")
	x = g.add("embed_drop", "Dropout", nil, x)

	for i := range cfg.NLayer {
		p := fmt.Sprintf("blocks.%d", i)
		ln1 := g.add(p+".ln1", "LayerNorm", []string{p + ".ln1.weight", p + ".ln1.bias"}, x)
		attn := g.add(p+".attn", "CausalSelfAttention", []string{
			p + ".attn.query.weight", p + ".attn.key.weight", p + ".attn.value.weight", p + ".attn.proj.weight",
		}, ln1)
		x = g.add(p+".res1", "Add", nil, x, attn)
		ln2 := g.add(p+".ln2", "LayerNorm", []string{p + ".ln2.weight", p + ".ln2.bias"}, x)
		mlp := g.add(p+".mlp", "FeedForward", []string{
			p + ".mlp.net.0.weight", p + ".mlp.net.0.bias", p + ".mlp.net.2.weight", p + ".mlp.net.2.bias",
		}, ln2)
		x = g.add(p+".res2", "Add", nil, x, mlp)
	}
	x = g.add("ln_f", "LayerNorm", []string{"ln_f.weight", "ln_f.bias"}, x)
	g.add("logits", "MatMul", []string{"head.weight"}, x)

	sorted, err := topo.Sort(g)
	if err != nil {
		return nil, fmt.Errorf("forward graph: %w", err)
	}
	for i, n := range sorted {
		n.(*opNode).order = i
	}
	return g, nil
}

// Ops returns the operation names in topological order.
func (g *ForwardGraph) Ops() []string {
	sorted, _ := topo.Sort(g)
	out := make([]string, len(sorted))
	for i, n := range sorted {
		out[i] = n.(*opNode).name
	}
	return out
}

// ParamNames lists every parameter referenced by the graph.
func (g *ForwardGraph) ParamNames() []string {
	var out []string
	for _, name := range g.Ops() {
		out = append(out, g.nodes[name].params...)
	}
	return out
}

// WriteGraph writes the forward graph of cfg in DOT form to path.
func WriteGraph(path string, cfg params.Config, vocabSize int) error {
	g, err := BuildForwardGraph(cfg, vocabSize)
	if err != nil {
		return err
	}
	b, err := dot.Marshal(g, "", "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

var _ graph.Directed = (*ForwardGraph)(nil)
