package IO

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/manningwu07/commandGPT/params"
)

var (
	ErrUnknownChar = errors.New("character not in vocabulary")
	ErrTokenRange  = errors.New("token id out of range")
)

// OOVPolicy decides what Encode does with characters missing from the vocabulary.
type OOVPolicy int

const (
	OOVReject OOVPolicy = iota // fail with ErrUnknownChar
	OOVFold                    // strip accents, then map leftovers to the placeholder
	OOVSkip                    // drop unknown characters
)

// Vocabulary is the character-level tokenizer: ids are the positions of the
// distinct corpus characters sorted by code point.
type Vocabulary struct {
	itos []rune
	stoi map[rune]int
}

// BuildVocab collects the distinct characters of corpus. The result depends on
// the set of characters only, never on their order or frequency.
func BuildVocab(corpus string) *Vocabulary {
	seen := make(map[rune]struct{})
	for _, r := range corpus {
		seen[r] = struct{}{}
	}
	chars := make([]rune, 0, len(seen))
	for r := range seen {
		chars = append(chars, r)
	}
	slices.Sort(chars)
	return newVocabulary(chars)
}

func newVocabulary(chars []rune) *Vocabulary {
	v := &Vocabulary{itos: chars, stoi: make(map[rune]int, len(chars))}
	for i, r := range chars {
		v.stoi[r] = i
	}
	return v
}

func (v *Vocabulary) Size() int { return len(v.itos) }

// ID returns the id of r.
func (v *Vocabulary) ID(r rune) (int, bool) {
	id, ok := v.stoi[r]
	return id, ok
}

// String returns every character in id order.
func (v *Vocabulary) String() string { return string(v.itos) }

// Encode maps every character of s to its id.
func (v *Vocabulary) Encode(s string) ([]int, error) {
	return v.EncodeWithPolicy(s, OOVReject)
}

// EncodeWithPolicy encodes s, treating unknown characters according to policy.
func (v *Vocabulary) EncodeWithPolicy(s string, policy OOVPolicy) ([]int, error) {
	if policy == OOVFold {
		s = v.fold(s)
	}
	ids := make([]int, 0, len(s))
	pos := 0
	for _, r := range s {
		id, ok := v.stoi[r]
		switch {
		case ok:
			ids = append(ids, id)
		case policy == OOVSkip:
		default:
			return nil, fmt.Errorf("encode %q at %d: %w", r, pos, ErrUnknownChar)
		}
		pos++
	}
	return ids, nil
}

// fold strips combining marks from unknown characters and replaces whatever is
// still unknown with a space (or drops it when the vocabulary has no space).
func (v *Vocabulary) fold(s string) string {
	out := make([]rune, 0, len(s))
	_, hasSpace := v.stoi[' ']
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	for _, r := range s {
		if _, ok := v.stoi[r]; ok {
			out = append(out, r)
			continue
		}
		stripped, _, err := transform.String(stripMarks, string(r))
		if err == nil {
			known := true
			for _, sr := range stripped {
				if _, ok := v.stoi[sr]; !ok {
					known = false
					break
				}
			}
			if known && stripped != "" {
				out = append(out, []rune(stripped)...)
				continue
			}
		}
		if hasSpace {
			out = append(out, ' ')
		}
	}
	return string(out)
}

// Decode maps ids back to text.
func (v *Vocabulary) Decode(ids []int) (string, error) {
	out := make([]rune, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(v.itos) {
			return "", fmt.Errorf("decode id %d (vocab size %d): %w", id, len(v.itos), ErrTokenRange)
		}
		out[i] = v.itos[id]
	}
	return string(out), nil
}

// VocabFile is the vocabulary document name inside an export directory.
const VocabFile = "vocab.json"

// vocabDoc is the mobile runtime's vocabulary document. Mapping keys are strings;
// itos keys are decimal ids.
type vocabDoc struct {
	Stoi      map[string]int    `json:"stoi"`
	Itos      map[string]string `json:"itos"`
	VocabSize int               `json:"vocab_size"`
	BlockSize int               `json:"block_size"`
	NEmbd     int               `json:"n_embd"`
	NLayer    int               `json:"n_layer"`
	NHead     int               `json:"n_head"`
}

// SaveVocabJSON writes the vocabulary and the architecture hyperparameters to path.
func SaveVocabJSON(path string, v *Vocabulary, cfg params.Config) error {
	doc := vocabDoc{
		Stoi:      make(map[string]int, v.Size()),
		Itos:      make(map[string]string, v.Size()),
		VocabSize: v.Size(),
		BlockSize: cfg.BlockSize,
		NEmbd:     cfg.NEmbd,
		NLayer:    cfg.NLayer,
		NHead:     cfg.NHead,
	}
	for i, r := range v.itos {
		doc.Stoi[string(r)] = i
		doc.Itos[strconv.Itoa(i)] = string(r)
	}
	return writeJSON(path, doc)
}

// LoadVocabJSON reads a vocabulary document and overlays its architecture on base.
func LoadVocabJSON(path string, base params.Config) (*Vocabulary, params.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, base, err
	}
	var doc vocabDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, base, fmt.Errorf("decode %s: %w", path, err)
	}
	if doc.VocabSize != len(doc.Itos) {
		return nil, base, fmt.Errorf("%s: vocab_size %d but %d itos entries", path, doc.VocabSize, len(doc.Itos))
	}
	chars := make([]rune, doc.VocabSize)
	for i := range chars {
		s, ok := doc.Itos[strconv.Itoa(i)]
		rs := []rune(s)
		if !ok || len(rs) != 1 {
			return nil, base, fmt.Errorf("%s: bad itos entry %d: %q", path, i, s)
		}
		chars[i] = rs[0]
	}
	cfg := base
	cfg.BlockSize, cfg.NEmbd, cfg.NLayer, cfg.NHead = doc.BlockSize, doc.NEmbd, doc.NLayer, doc.NHead
	return newVocabulary(chars), cfg, cfg.Validate()
}
