package ingest

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/screenager/sonicsearch/internal/audio"
	"github.com/screenager/sonicsearch/internal/catalog"
	"github.com/screenager/sonicsearch/internal/codec"
	"github.com/screenager/sonicsearch/internal/status"
	"github.com/screenager/sonicsearch/internal/vindex"
)

func writeTestWAV(t *testing.T, dir, name string, seconds float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, audio.TargetSampleRate, 16, 1, 1)
	n := int(seconds * audio.TargetSampleRate)
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/audio.TargetSampleRate))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: audio.TargetSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write PCM: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

// fakeStore is an in-memory stand-in for *catalog.Store.
type fakeStore struct {
	mu       sync.Mutex
	byHash   map[string]*catalog.AudioFileRow
	segments map[string][]catalog.SegmentInsert
	nextRow  int64
	rows     []catalog.EmbeddingRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: make(map[string]*catalog.AudioFileRow), segments: make(map[string][]catalog.SegmentInsert)}
}

func (f *fakeStore) LookupByHash(ctx context.Context, hash string) (*catalog.AudioFileRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byHash[hash], nil
}

func (f *fakeStore) UpdatePath(ctx context.Context, hash, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byHash[hash]; ok {
		r.FilePath = newPath
	}
	return nil
}

func (f *fakeStore) InsertSegments(ctx context.Context, hash, path string, segments []catalog.SegmentInsert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[hash] = &catalog.AudioFileRow{FileHash: hash, FilePath: path}
	f.segments[hash] = segments
	for _, seg := range segments {
		f.nextRow++
		f.rows = append(f.rows, catalog.EmbeddingRow{RowID: f.nextRow, Embedding: seg.Embedding})
	}
	return nil
}

func (f *fakeStore) ListEmbeddingsWithRowID(ctx context.Context) ([]catalog.EmbeddingRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalog.EmbeddingRow, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

// fakeIndex counts Synchronize calls.
type fakeIndex struct {
	calls int
}

func (f *fakeIndex) Synchronize(ctx context.Context, src vindex.EmbeddingSource) (int, error) {
	f.calls++
	rows, _ := src.ListEmbeddingsWithRowID(ctx)
	return len(rows), nil
}

// fakeEmbedder returns a deterministic embedding per call, no ONNX needed.
type fakeEmbedder struct {
	submitted int
}

func (f *fakeEmbedder) Submit(mel audio.MelSpec) ([]float32, error) {
	f.submitted++
	return make([]float32, codec.Dim), nil
}
func (f *fakeEmbedder) Run()  {}
func (f *fakeEmbedder) Stop() {}

func TestUpdateAudioIndexNewFile(t *testing.T) {
	dir := t.TempDir()
	writeTestWAV(t, dir, "a.wav", 3)

	s := newFakeStore()
	idx := &fakeIndex{}
	emb := &fakeEmbedder{}
	o := newOrchestrator(s, idx, emb, status.New())

	res, err := o.UpdateAudioIndex(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("UpdateAudioIndex: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 0 {
		t.Fatalf("expected 1 success, got %+v", res)
	}
	if idx.calls != 1 {
		t.Errorf("expected index resync once, got %d", idx.calls)
	}
	if emb.submitted == 0 {
		t.Error("expected at least one embed submission")
	}
}

func TestUpdateAudioIndexUnchangedFileNoOps(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWAV(t, dir, "a.wav", 3)

	s := newFakeStore()
	idx := &fakeIndex{}
	emb := &fakeEmbedder{}
	o := newOrchestrator(s, idx, emb, status.New())

	if _, err := o.UpdateAudioIndex(context.Background(), []string{dir}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstSubmits := emb.submitted

	// Second run over the same unchanged file should not re-embed.
	if _, err := o.UpdateAudioIndex(context.Background(), []string{dir}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if emb.submitted != firstSubmits {
		t.Errorf("expected no new embed submissions for unchanged file, got %d -> %d", firstSubmits, emb.submitted)
	}
	_ = path
}

func TestUpdateAudioIndexRejectsConcurrentRun(t *testing.T) {
	dir := t.TempDir()
	s := newFakeStore()
	idx := &fakeIndex{}
	emb := &fakeEmbedder{}
	o := newOrchestrator(s, idx, emb, status.New())

	o.running.Store(true)
	_, err := o.UpdateAudioIndex(context.Background(), []string{dir})
	if err == nil {
		t.Fatal("expected IndexingAlreadyInProgressError")
	}
	if _, ok := err.(*IndexingAlreadyInProgressError); !ok {
		t.Fatalf("expected *IndexingAlreadyInProgressError, got %T", err)
	}
}
