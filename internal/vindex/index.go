package vindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/screenager/sonicsearch/internal/catalog"
	"github.com/screenager/sonicsearch/internal/codec"
)

// EmbeddingSource is the subset of the catalog the index needs to hydrate
// itself. internal/catalog.Store satisfies this.
type EmbeddingSource interface {
	ListEmbeddingsWithRowID(ctx context.Context) ([]catalog.EmbeddingRow, error)
}

// Index is the vector index's public face: a Graph plus the bookkeeping
// needed to make Synchronize idempotent and safe to call repeatedly.
type Index struct {
	graph *Graph

	// syncMu serializes Synchronize calls (exclusive access); Search only
	// touches graph's own RWMutex (shared access).
	syncMu sync.Mutex
}

// Open creates a fresh in-memory index sized for nbElem vectors (0 = default).
func Open(nbElem int) *Index {
	return &Index{graph: New(nbElem)}
}

// Len returns the number of vectors currently indexed.
func (idx *Index) Len() int { return idx.graph.Len() }

// Synchronize queries src for all (rowid, embedding) pairs, decodes each,
// skips rowids already indexed, and inserts the rest. The graph is taken out
// of searching mode for the duration of the bulk insert and restored
// afterward. Returns the count of newly inserted vectors.
func (idx *Index) Synchronize(ctx context.Context, src EmbeddingSource) (int, error) {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()

	rows, err := src.ListEmbeddingsWithRowID(ctx)
	if err != nil {
		return 0, fmt.Errorf("synchronize: list embeddings: %w", err)
	}

	type decoded struct {
		rowid int64
		vec   []float32
	}
	var fresh []decoded
	for _, r := range rows {
		if idx.graph.Has(r.RowID) {
			continue
		}
		vec, err := codec.Decode(r.Embedding)
		if err != nil {
			return 0, fmt.Errorf("synchronize: decode rowid %d: %w", r.RowID, err)
		}
		fresh = append(fresh, decoded{rowid: r.RowID, vec: vec})
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	idx.graph.SetSearching(false)
	defer idx.graph.SetSearching(true)

	var wg sync.WaitGroup
	for _, d := range fresh {
		wg.Add(1)
		go func(d decoded) {
			defer wg.Done()
			idx.graph.Insert(d.rowid, d.vec)
		}(d)
	}
	wg.Wait()

	return len(fresh), nil
}

// KNN searches for the k nearest neighbours to query with candidate pool
// size ef, returning results sorted ascending by distance. Graph.Search
// already returns its results sorted; the re-sort here just keeps that
// contract explicit and cheap to verify at this layer.
func (idx *Index) KNN(query []float32, k, ef int) []Result {
	results := idx.graph.Search(query, k, ef)
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Distance < results[j-1].Distance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	return results
}

// Save persists the graph to path.
func (idx *Index) Save(path string) error { return idx.graph.Save(path) }

// Load replaces the in-memory graph with one loaded from path.
func (idx *Index) Load(path string) error {
	g, err := Load(path)
	if err != nil {
		return err
	}
	idx.graph = g
	return nil
}
