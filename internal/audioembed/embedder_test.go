package audioembed

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/screenager/sonicsearch/internal/audio"
)

// newTestEmbedder builds an Embedder wired to a fake batch runner so the
// queue/drain/ordering logic can be exercised without a loaded ONNX model.
func newTestEmbedder(fn func([]job) ([][]float32, error)) *Embedder {
	e := &Embedder{
		queueHasContents: make(chan struct{}, 1),
		stopRequested:    make(chan struct{}, 1),
	}
	e.runBatchFn = fn
	return e
}

func echoBatch(batch []job) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i := range batch {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func tinyMel() audio.MelSpec {
	return audio.MelSpec{{1, 2}, {3, 4}}
}

func TestSubmitAndRunRoundTrip(t *testing.T) {
	e := newTestEmbedder(echoBatch)
	go e.Run()

	vec, err := e.Submit(tinyMel())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(vec) != 1 {
		t.Fatalf("expected 1-element vector from echo batch, got %v", vec)
	}

	e.Stop()
}

func TestBatchPreservesSubmissionOrder(t *testing.T) {
	e := newTestEmbedder(func(batch []job) ([][]float32, error) {
		out := make([][]float32, len(batch))
		for i, j := range batch {
			out[i] = []float32{float32(len(j.mel))}
		}
		return out, nil
	})
	go e.Run()
	defer e.Stop()

	const n = 20
	var wg sync.WaitGroup
	results := make([][]float32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mel := make(audio.MelSpec, i+1)
			for r := range mel {
				mel[r] = []float64{0}
			}
			vec, err := e.Submit(mel)
			if err != nil {
				t.Errorf("Submit %d: %v", i, err)
				return
			}
			results[i] = vec
		}(i)
	}
	wg.Wait()

	for i, vec := range results {
		if len(vec) != 1 || vec[0] != float32(i+1) {
			t.Errorf("result %d: expected [%d], got %v", i, i+1, vec)
		}
	}
}

func TestInferenceErrorDeliveredToWaiters(t *testing.T) {
	wantErr := fmt.Errorf("boom")
	e := newTestEmbedder(func(batch []job) ([][]float32, error) {
		return nil, wantErr
	})
	go e.Run()
	defer e.Stop()

	_, err := e.Submit(tinyMel())
	if err == nil {
		t.Fatal("expected inference error")
	}
	ierr, ok := err.(*InferenceError)
	if !ok {
		t.Fatalf("expected *InferenceError, got %T", err)
	}
	if ierr.Err != wantErr {
		t.Errorf("expected wrapped error %v, got %v", wantErr, ierr.Err)
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	e := newTestEmbedder(echoBatch)
	go e.Run()

	e.Stop()
	// Give the worker a moment to observe the stop signal on an empty queue.
	time.Sleep(20 * time.Millisecond)

	if _, err := e.Submit(tinyMel()); err == nil {
		t.Fatal("expected EmbedderClosedError after Stop")
	} else if _, ok := err.(*EmbedderClosedError); !ok {
		t.Fatalf("expected *EmbedderClosedError, got %T", err)
	}
}

func TestMismatchedOutputCountIsInferenceError(t *testing.T) {
	e := newTestEmbedder(func(batch []job) ([][]float32, error) {
		return make([][]float32, len(batch)+1), nil
	})
	go e.Run()
	defer e.Stop()

	if _, err := e.Submit(tinyMel()); err == nil {
		t.Fatal("expected error on output count mismatch")
	}
}
