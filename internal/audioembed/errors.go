package audioembed

import "fmt"

// EmbedderClosedError is returned from Submit when the worker has already
// stopped. Submissions enqueued before the worker stops are still answered.
type EmbedderClosedError struct{}

func (e *EmbedderClosedError) Error() string {
	return "audioembed: embedder worker is closed"
}

// InferenceError wraps a failure from the underlying ONNX session. It is
// delivered only to the waiters in the batch that failed; the worker keeps
// running afterward.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("audioembed: inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
