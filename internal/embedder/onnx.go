package embedder

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// session wraps the loaded ONNX model. The model and tokenizer are
// loaded once at daemon start; failure to load is fatal.
type session struct {
	model  *ort.DynamicAdvancedSession
	dim    int
	maxLen int
}

func newSession(modelPath string, dim, maxLen int) (*session, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	s, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("load onnx model %s: %w", modelPath, err)
	}

	return &session{model: s, dim: dim, maxLen: maxLen}, nil
}

// run executes one forward pass over a batch of encoded sequences and
// returns mean-pooled (not yet L2-normalized) sentence vectors.
func (s *session) run(batch []Encoded) ([][]float32, error) {
	n := len(batch)
	seqLen := s.maxLen

	inputIDs := make([]int64, 0, n*seqLen)
	attnMask := make([]int64, 0, n*seqLen)
	tokenTypes := make([]int64, 0, n*seqLen)
	for _, e := range batch {
		inputIDs = append(inputIDs, e.InputIDs...)
		attnMask = append(attnMask, e.AttentionMask...)
		tokenTypes = append(tokenTypes, e.TokenTypeIDs...)
	}

	shape := ort.NewShape(int64(n), int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("build input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, attnMask)
	if err != nil {
		return nil, fmt.Errorf("build attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, tokenTypes)
	if err != nil {
		return nil, fmt.Errorf("build token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outShape := ort.NewShape(int64(n), int64(seqLen), int64(s.dim))
	output, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	defer output.Destroy()

	if err := s.model.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}

	return meanPool(output.GetData(), batch, n, seqLen, s.dim), nil
}

// meanPool averages the token-level hidden states over the attended
// (non-padding) positions, the standard sentence-embedding pooling for
// MiniLM-family models.
func meanPool(hidden []float32, batch []Encoded, n, seqLen, dim int) [][]float32 {
	out := make([][]float32, n)
	for b := 0; b < n; b++ {
		vec := make([]float32, dim)
		var count float32
		for t := 0; t < seqLen; t++ {
			if batch[b].AttentionMask[t] == 0 {
				continue
			}
			base := (b*seqLen + t) * dim
			for d := 0; d < dim; d++ {
				vec[d] += hidden[base+d]
			}
			count++
		}
		if count > 0 {
			for d := range vec {
				vec[d] /= count
			}
		}
		out[b] = vec
	}
	return out
}

func (s *session) close() error {
	if s.model == nil {
		return nil
	}
	return s.model.Destroy()
}
