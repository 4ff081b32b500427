package embedder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeTestVocab(t *testing.T) string {
	t.Helper()
	vocab := map[string]int64{
		"[PAD]": 0, "[UNK]": 1, "[CLS]": 2, "[SEP]": 3,
		"hello": 4, "world": 5, "##ing": 6, "run": 7, "test": 8,
	}
	data, err := json.Marshal(map[string]any{
		"model": map[string]any{"vocab": vocab},
	})
	if err != nil {
		t.Fatalf("marshal vocab: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	return path
}

func TestTokenizerEncodeAddsSpecialTokens(t *testing.T) {
	path := writeTestVocab(t)
	tok, err := LoadTokenizer(path, 16)
	if err != nil {
		t.Fatalf("LoadTokenizer: %v", err)
	}
	enc := tok.Encode("hello world")
	if enc.InputIDs[0] != tok.clsID {
		t.Errorf("first token = %d, want CLS %d", enc.InputIDs[0], tok.clsID)
	}
	if len(enc.InputIDs) != 16 {
		t.Fatalf("expected padded length 16, got %d", len(enc.InputIDs))
	}
	nonPad := 0
	for _, id := range enc.InputIDs {
		if id != tok.padID {
			nonPad++
		}
	}
	// [CLS] hello world [SEP] = 4 real tokens.
	if nonPad != 4 {
		t.Errorf("expected 4 non-pad tokens, got %d", nonPad)
	}
}

func TestTokenizerUnknownWordFallsBackToUNK(t *testing.T) {
	path := writeTestVocab(t)
	tok, err := LoadTokenizer(path, 16)
	if err != nil {
		t.Fatalf("LoadTokenizer: %v", err)
	}
	enc := tok.Encode("zzzznotinvocab")
	found := false
	for _, id := range enc.InputIDs {
		if id == tok.unkID {
			found = true
		}
	}
	if !found {
		t.Error("expected [UNK] for out-of-vocabulary word")
	}
}

func TestTokenizerTruncatesLongSequences(t *testing.T) {
	path := writeTestVocab(t)
	tok, err := LoadTokenizer(path, 8)
	if err != nil {
		t.Fatalf("LoadTokenizer: %v", err)
	}
	long := ""
	for i := 0; i < 50; i++ {
		long += "hello world "
	}
	enc := tok.Encode(long)
	if len(enc.InputIDs) != 8 {
		t.Fatalf("expected truncation to maxSeqLen 8, got %d", len(enc.InputIDs))
	}
	if enc.InputIDs[7] != tok.sepID && enc.InputIDs[7] != tok.padID {
		t.Errorf("last token should be SEP or PAD, got %d", enc.InputIDs[7])
	}
}

func TestL2Normalize(t *testing.T) {
	vec := []float32{3, 4}
	l2Normalize(vec)
	if got := vec[0]*vec[0] + vec[1]*vec[1]; got < 0.99 || got > 1.01 {
		t.Errorf("expected unit norm, got squared sum %f", got)
	}
}
