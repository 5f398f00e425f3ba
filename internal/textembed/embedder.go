// Package textembed runs the CLAP text tower on a single query at a time —
// no batching, unlike audioembed, since interactive queries arrive one at a
// time and latency matters more than throughput. CLAP's text tower returns
// a single pooled 512-dim vector per input, so no pooling step is needed on
// this side.
package textembed

import (
	"fmt"
	"runtime"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
)

// EmbeddingDim is the output dimension of the CLAP text tower.
const EmbeddingDim = 512

// shortPromptThreshold is the character length at or below which the
// "The sound of " prefix is prepended, an empirical improvement to
// embedding quality for short prompts.
const shortPromptThreshold = 10

const shortPromptPrefix = "The sound of "

// Embedder wraps an ONNX session and tokenizer for the CLAP text tower.
type Embedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
}

// New loads the CLAP text tower and tokenizer from modelPath/tokenizerPath.
func New(modelPath, tokenizerPath, ortLibPath string, numThreads int) (*Embedder, error) {
	if ortLibPath != "" {
		ort.SetSharedLibraryPath(ortLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("textembed: init ort: %w", err)
	}

	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
		if numThreads > 4 {
			numThreads = 4
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("textembed: session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("textembed: set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("textembed: set inter threads: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask"}
	outputNames := []string{"text_embeds"}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("textembed: create session: %w", err)
	}

	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("textembed: load tokenizer: %w", err)
	}

	return &Embedder{session: session, tokenizer: tk}, nil
}

// Close releases the ONNX session and tokenizer.
func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.tokenizer != nil {
		e.tokenizer.Close()
	}
}

// Preprocess applies the short-prompt prefix rule.
func Preprocess(query string) string {
	if len([]rune(query)) <= shortPromptThreshold {
		return shortPromptPrefix + query
	}
	return query
}

// Embed preprocesses, tokenizes, and embeds a single query string, returning
// its 512-dim CLAP text embedding.
func (e *Embedder) Embed(query string) ([]float32, error) {
	text := Preprocess(query)

	enc := e.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnAttentionMask())
	if len(enc.IDs) == 0 {
		return nil, &TokenizeError{Err: fmt.Errorf("query tokenized to zero length")}
	}

	seqLen := len(enc.IDs)
	ids := make([]int64, seqLen)
	mask := make([]int64, seqLen)
	for i, v := range enc.IDs {
		ids[i] = int64(v)
		mask[i] = 1
	}
	if len(enc.AttentionMask) == seqLen {
		for i := range mask {
			mask[i] = int64(enc.AttentionMask[i])
		}
	}

	shape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, &TokenizeError{Err: fmt.Errorf("input_ids tensor: %w", err)}
	}
	defer inputIDs.Destroy()

	attnMask, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, &TokenizeError{Err: fmt.Errorf("attention_mask tensor: %w", err)}
	}
	defer attnMask.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputIDs, attnMask}, outputs); err != nil {
		return nil, &InferenceError{Err: err}
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, &InferenceError{Err: fmt.Errorf("unexpected output type (want *Tensor[float32])")}
	}
	data := outTensor.GetData()
	if len(data) < EmbeddingDim {
		return nil, &InferenceError{Err: fmt.Errorf("output has %d values, want at least %d", len(data), EmbeddingDim)}
	}

	vec := make([]float32, EmbeddingDim)
	copy(vec, data[:EmbeddingDim])
	return vec, nil
}
