// Package ingest drives decode/segment/mel and batched embedding over every
// file discovered in the configured directories, persists results to the
// catalog, and resynchronizes the vector index, fanning file-level work out
// with golang.org/x/sync/errgroup.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/screenager/sonicsearch/internal/audio"
	"github.com/screenager/sonicsearch/internal/audioembed"
	"github.com/screenager/sonicsearch/internal/catalog"
	"github.com/screenager/sonicsearch/internal/codec"
	"github.com/screenager/sonicsearch/internal/status"
	"github.com/screenager/sonicsearch/internal/vindex"
)

// Result summarizes one UpdateAudioIndex run.
type Result struct {
	Succeeded int
	Failed    int
}

// store is the slice of catalog.Store's API the orchestrator needs, kept as
// an interface so tests can substitute a fake without standing up SQLite.
type store interface {
	LookupByHash(ctx context.Context, hash string) (*catalog.AudioFileRow, error)
	UpdatePath(ctx context.Context, hash, newPath string) error
	InsertSegments(ctx context.Context, hash, path string, segments []catalog.SegmentInsert) error
	vindex.EmbeddingSource
}

// vectorIndex is the resync surface the orchestrator needs from vindex.Index.
type vectorIndex interface {
	Synchronize(ctx context.Context, src vindex.EmbeddingSource) (int, error)
}

// embedder is the submission surface the orchestrator needs from
// audioembed.Embedder.
type embedder interface {
	Submit(mel audio.MelSpec) ([]float32, error)
	Run()
	Stop()
}

// Orchestrator coordinates a single indexing pass. Exactly one
// UpdateAudioIndex call runs at a time, enforced by the running flag.
type Orchestrator struct {
	store    store
	index    vectorIndex
	embedder embedder
	status   *status.Broadcaster

	running atomic.Bool
}

// New builds an Orchestrator over the given catalog, vector index, audio
// embedder, and status broadcaster.
func New(s *catalog.Store, idx *vindex.Index, emb *audioembed.Embedder, bc *status.Broadcaster) *Orchestrator {
	return newOrchestrator(s, idx, emb, bc)
}

// newOrchestrator builds an Orchestrator directly over the narrow
// interfaces, letting tests substitute fakes for the catalog, index, and
// embedder without standing up SQLite or ONNX Runtime.
func newOrchestrator(s store, idx vectorIndex, emb embedder, bc *status.Broadcaster) *Orchestrator {
	return &Orchestrator{store: s, index: idx, embedder: emb, status: bc}
}

// UpdateAudioIndex walks dirs, hashes and upserts every discovered file
// concurrently, drains the embedder, and resynchronizes the vector index.
// Fails immediately with IndexingAlreadyInProgressError if another run is
// active; per-file failures are counted, not fatal.
func (o *Orchestrator) UpdateAudioIndex(ctx context.Context, dirs []string) (Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Result{}, &IndexingAlreadyInProgressError{}
	}
	defer o.running.Store(false)

	o.status.Start()

	files, err := walkWAVFiles(dirs)
	if err != nil {
		o.status.SetIdle()
		return Result{}, fmt.Errorf("ingest: %w", err)
	}
	o.status.BeginPreIndexing(len(files))
	if err := o.status.BeginIndexing(len(files)); err != nil {
		o.status.SetIdle()
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	workerDone := make(chan struct{})
	go func() {
		o.embedder.Run()
		close(workerDone)
	}()

	var succeeded, failed int64
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range files {
		path := path
		g.Go(func() error {
			isNew, err := o.upsertAudioFile(gctx, path)
			if err != nil {
				atomic.AddInt64(&failed, 1)
			} else {
				atomic.AddInt64(&succeeded, 1)
				if isNew {
					_ = o.status.IncrementIndexed()
				}
			}
			_ = o.status.IncrementPreindexed()
			return nil
		})
	}
	_ = g.Wait()

	o.embedder.Stop()
	<-workerDone

	if _, err := o.index.Synchronize(ctx, o.store); err != nil {
		o.status.SetIdle()
		return Result{}, fmt.Errorf("ingest: resync index: %w", err)
	}

	o.status.SetIdle()
	return Result{Succeeded: int(succeeded), Failed: int(failed)}, nil
}

// upsertAudioFile hashes path, looks it up, and either embeds a brand-new
// file, retargets the path of a moved one, or no-ops for an unchanged one.
// Returns whether this call indexed new content.
func (o *Orchestrator) upsertAudioFile(ctx context.Context, path string) (bool, error) {
	hash, err := hashFile(path)
	if err != nil {
		return false, err
	}

	existing, err := o.store.LookupByHash(ctx, hash)
	if err != nil {
		return false, err
	}

	if existing == nil {
		return true, o.indexNewFile(ctx, hash, path)
	}
	if existing.FilePath != path {
		return false, o.store.UpdatePath(ctx, hash, path)
	}
	return false, nil
}

// indexNewFile decodes/segments/embeds path, submitting every segment to the
// embedder concurrently, and persists every segment plus the file row in a
// single transaction.
func (o *Orchestrator) indexNewFile(ctx context.Context, hash, path string) error {
	segments, err := audio.Process(path)
	if err != nil {
		return fmt.Errorf("process %s: %w", path, err)
	}

	inserts := make([]catalog.SegmentInsert, len(segments))
	var eg errgroup.Group
	for i, seg := range segments {
		i, seg := i, seg
		eg.Go(func() error {
			vec, err := o.embedder.Submit(seg.Mel)
			if err != nil {
				return fmt.Errorf("embed segment %d of %s: %w", i, path, err)
			}
			inserts[i] = catalog.SegmentInsert{
				StartingTimestamp: seg.StartingTimestamp,
				Embedding:         codec.Encode(vec),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	return o.store.InsertSegments(ctx, hash, path, inserts)
}
