// Package audioembed batches many concurrent mel-spectrogram submissions
// into single ONNX inference calls against the CLAP audio tower. Many
// in-flight file-segment tasks share one session; a lock-protected FIFO and
// a pair of wake channels coordinate the single worker goroutine that owns
// the session during each batched run.
package audioembed

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/screenager/sonicsearch/internal/audio"
	ort "github.com/yalue/onnxruntime_go"
)

// EmbeddingDim is the output dimension of the CLAP audio tower.
const EmbeddingDim = 512

// Embedder owns a single ONNX session and the FIFO of pending submissions.
// At most one goroutine (Run's caller) ever touches the session.
type Embedder struct {
	session *ort.DynamicAdvancedSession

	mu     sync.Mutex
	queue  []job
	closed bool

	queueHasContents chan struct{}
	stopRequested    chan struct{}

	// runBatchFn performs one batched inference call. It defaults to e.infer
	// (the real ONNX path); tests substitute a fake to exercise the
	// queue/drain/ordering logic without a loaded model.
	runBatchFn func([]job) ([][]float32, error)
}

type job struct {
	mel   audio.MelSpec
	reply chan replyMsg
}

type replyMsg struct {
	vec []float32
	err error
}

// New loads the CLAP audio tower from modelPath. ortLibPath is the path to
// onnxruntime's shared library; pass "" to use the system default.
func New(modelPath, ortLibPath string, numThreads int) (*Embedder, error) {
	if ortLibPath != "" {
		ort.SetSharedLibraryPath(ortLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("audioembed: init ort: %w", err)
	}

	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
		if numThreads > 4 {
			numThreads = 4
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("audioembed: session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("audioembed: set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("audioembed: set inter threads: %w", err)
	}

	inputNames := []string{"input_features"}
	outputNames := []string{"audio_embeds"}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("audioembed: create session: %w", err)
	}

	e := &Embedder{
		session:          session,
		queueHasContents: make(chan struct{}, 1),
		stopRequested:    make(chan struct{}, 1),
	}
	e.runBatchFn = e.infer
	return e, nil
}

// Close releases the ONNX session. Call after Run has returned.
func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
}

// Submit enqueues mel for embedding and blocks until the worker replies (or
// the embedder is closed). Safe to call from many goroutines concurrently.
func (e *Embedder) Submit(mel audio.MelSpec) ([]float32, error) {
	reply := make(chan replyMsg, 1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, &EmbedderClosedError{}
	}
	e.queue = append(e.queue, job{mel: mel, reply: reply})
	e.mu.Unlock()

	select {
	case e.queueHasContents <- struct{}{}:
	default:
	}

	msg := <-reply
	return msg.vec, msg.err
}

// drain atomically removes and returns every pending job.
func (e *Embedder) drain() []job {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil
	}
	batch := e.queue
	e.queue = nil
	return batch
}

// Run is the worker loop: repeatedly drain the queue, wait on whichever wake
// fires first when empty, and run one batched inference call per non-empty
// drain. Submissions drained together reply in their enqueue order;
// ordering across separate batches is not guaranteed. Returns when stopped
// with an empty queue. Run may be called again after it returns; each call
// reopens the embedder for submissions.
func (e *Embedder) Run() {
	e.mu.Lock()
	e.closed = false
	e.mu.Unlock()
	for {
		batch := e.drain()
		if len(batch) == 0 {
			select {
			case <-e.stopRequested:
				e.mu.Lock()
				e.closed = true
				e.mu.Unlock()
				// Jobs enqueued after the last drain still get a reply.
				if rest := e.drain(); len(rest) > 0 {
					e.runBatch(rest)
				}
				return
			case <-e.queueHasContents:
				continue
			}
		}
		e.runBatch(batch)
	}
}

// Stop signals the worker to exit once the queue next drains empty.
// Already-enqueued submissions are still processed first.
func (e *Embedder) Stop() {
	select {
	case e.stopRequested <- struct{}{}:
	default:
	}
}

func (e *Embedder) runBatch(batch []job) {
	vecs, err := e.runBatchFn(batch)
	if err != nil {
		ierr := &InferenceError{Err: err}
		for _, j := range batch {
			j.reply <- replyMsg{err: ierr}
		}
		return
	}
	if len(vecs) != len(batch) {
		ierr := &InferenceError{Err: fmt.Errorf("expected %d outputs, session returned %d", len(batch), len(vecs))}
		for _, j := range batch {
			j.reply <- replyMsg{err: ierr}
		}
		return
	}
	for i, j := range batch {
		j.reply <- replyMsg{vec: vecs[i]}
	}
}

// infer stacks each job's mel spectrogram along a new leading batch axis,
// casts to float32, runs the session once, and splits the output rows back
// out per job in submission order.
func (e *Embedder) infer(batch []job) ([][]float32, error) {
	batchSize := len(batch)
	t := len(batch[0].mel)
	nMels := 0
	if t > 0 {
		nMels = len(batch[0].mel[0])
	}

	flat := make([]float32, 0, batchSize*t*nMels)
	for _, j := range batch {
		if len(j.mel) != t {
			return nil, fmt.Errorf("inconsistent mel spectrogram length in batch: %d vs %d", len(j.mel), t)
		}
		for _, row := range j.mel {
			for _, v := range row {
				flat = append(flat, float32(v))
			}
		}
	}

	shape := ort.NewShape(int64(batchSize), 1, int64(t), int64(nMels))
	input, err := ort.NewTensor(shape, flat)
	if err != nil {
		return nil, fmt.Errorf("input_features tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("ort run: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want *Tensor[float32])")
	}
	data := outTensor.GetData()

	result := make([][]float32, batchSize)
	for i := 0; i < batchSize; i++ {
		vec := make([]float32, EmbeddingDim)
		copy(vec, data[i*EmbeddingDim:(i+1)*EmbeddingDim])
		result[i] = vec
	}
	return result, nil
}
