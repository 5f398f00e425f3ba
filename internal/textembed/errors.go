package textembed

import "fmt"

// TokenizeError wraps a tokenizer failure.
type TokenizeError struct {
	Err error
}

func (e *TokenizeError) Error() string { return fmt.Sprintf("textembed: tokenize: %v", e.Err) }
func (e *TokenizeError) Unwrap() error { return e.Err }

// InferenceError wraps a failure from the text tower's ONNX session.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return fmt.Sprintf("textembed: inference: %v", e.Err) }
func (e *InferenceError) Unwrap() error { return e.Err }
