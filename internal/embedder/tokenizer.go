package embedder

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	clsToken     = "[CLS]"
	sepToken     = "[SEP]"
	unkToken     = "[UNK]"
	padToken     = "[PAD]"
	wordpieceMax = 100 // longest single subword lookup before giving up on a token
)

// Tokenizer implements WordPiece tokenization matching the MiniLM-
// family model schema. Tokenization must match the model's expected
// schema. The vocabulary is loaded from a HuggingFace-style
// tokenizer.json; the algorithm itself is a few dozen lines, so this
// is implemented directly against encoding/json rather than pulling in
// a second out-of-pack tokenizer dependency.
type Tokenizer struct {
	vocab     map[string]int64
	unkID     int64
	clsID     int64
	sepID     int64
	padID     int64
	maxSeqLen int
}

// tokenizerFile is the subset of a HuggingFace tokenizer.json this
// loader needs: the flat vocab map under model.vocab.
type tokenizerFile struct {
	Model struct {
		Vocab map[string]int64 `json:"vocab"`
	} `json:"model"`
}

// LoadTokenizer reads a tokenizer.json vocab file.
func LoadTokenizer(path string, maxSeqLen int) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer vocab %s: %w", path, err)
	}
	var tf tokenizerFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("decode tokenizer vocab %s: %w", path, err)
	}
	if len(tf.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer vocab %s is empty", path)
	}
	if maxSeqLen <= 0 {
		maxSeqLen = 512
	}

	t := &Tokenizer{vocab: tf.Model.Vocab, maxSeqLen: maxSeqLen}
	t.unkID = t.vocab[unkToken]
	t.clsID = t.vocab[clsToken]
	t.sepID = t.vocab[sepToken]
	t.padID = t.vocab[padToken]
	return t, nil
}

// Encoded holds the three input tensors a BERT/MiniLM-family ONNX
// graph expects.
type Encoded struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Encode tokenizes text into a fixed-schema input, truncating to the
// model's max sequence length rather than silently dropping the chunk.
func (t *Tokenizer) Encode(text string) Encoded {
	ids := []int64{t.clsID}
	for _, word := range basicSplit(text) {
		ids = append(ids, t.wordpiece(word)...)
		if len(ids) >= t.maxSeqLen-1 {
			break
		}
	}
	if len(ids) > t.maxSeqLen-1 {
		ids = ids[:t.maxSeqLen-1]
	}
	ids = append(ids, t.sepID)

	mask := make([]int64, len(ids))
	types := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}

	for len(ids) < t.maxSeqLen {
		ids = append(ids, t.padID)
		mask = append(mask, 0)
		types = append(types, 0)
	}

	return Encoded{InputIDs: ids, AttentionMask: mask, TokenTypeIDs: types}
}

// basicSplit lowercases and splits on whitespace and punctuation, the
// pre-tokenization step ahead of WordPiece.
func basicSplit(text string) []string {
	text = strings.ToLower(text)
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isWhitespace(r):
			flush()
		case isPunct(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isPunct(r rune) bool {
	switch {
	case r >= '!' && r <= '/', r >= ':' && r <= '@', r >= '[' && r <= '`', r >= '{' && r <= '~':
		return true
	default:
		return false
	}
}

// wordpiece applies the greedy longest-match-first subword algorithm:
// find the longest vocabulary entry that prefixes the remaining word,
// prefixing continuation pieces with "##"; fall back to [UNK].
func (t *Tokenizer) wordpiece(word string) []int64 {
	if len(word) > wordpieceMax {
		return []int64{t.unkID}
	}
	var pieces []int64
	start := 0
	for start < len(word) {
		end := len(word)
		var matchID int64 = -1
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				matchID = id
				break
			}
			end--
		}
		if matchID < 0 {
			return []int64{t.unkID}
		}
		pieces = append(pieces, matchID)
		start = end
	}
	return pieces
}
