// Package query implements the search pipeline: text query -> text tower ->
// vector index KNN -> catalog join -> ranked results.
package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/screenager/sonicsearch/internal/catalog"
	"github.com/screenager/sonicsearch/internal/vindex"
)

// Result is one ranked hit: the source file, the segment's starting
// timestamp within it, and its distance from the query.
type Result struct {
	FilePath          string
	StartingTimestamp float64
	Distance          float32
}

// textEmbedder is the subset of textembed.Embedder the coordinator needs.
type textEmbedder interface {
	Embed(query string) ([]float32, error)
}

// vectorIndex is the subset of vindex.Index the coordinator needs.
type vectorIndex interface {
	KNN(query []float32, k, ef int) []vindex.Result
}

// segmentStore is the subset of catalog.Store the coordinator needs.
type segmentStore interface {
	FetchSegment(ctx context.Context, rowid int64) (catalog.SegmentLocation, error)
}

// Coordinator runs searches one at a time: Search holds a single mutex for
// the whole query, although the vector index's own search takes only a
// read lock.
type Coordinator struct {
	mu    sync.Mutex
	text  textEmbedder
	index vectorIndex
	store segmentStore
}

// New builds a Coordinator over a text embedder, vector index, and catalog.
func New(text textEmbedder, index vectorIndex, store segmentStore) *Coordinator {
	return &Coordinator{text: text, index: index, store: store}
}

// Search embeds queryStr, runs a KNN search, and joins each hit back to its
// source file and timestamp. Results are sorted ascending by distance and
// capped at vindex.SearchK.
func (c *Coordinator) Search(ctx context.Context, queryStr string) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vec, err := c.text.Embed(queryStr)
	if err != nil {
		return nil, fmt.Errorf("query: embed: %w", err)
	}

	hits := c.index.KNN(vec, vindex.SearchK, vindex.SearchEf)
	sortHitsAscending(hits)

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		loc, err := c.store.FetchSegment(ctx, h.RowID)
		if err != nil {
			return nil, fmt.Errorf("query: fetch segment %d: %w", h.RowID, err)
		}
		results = append(results, Result{
			FilePath:          loc.FilePath,
			StartingTimestamp: loc.StartingTimestamp,
			Distance:          h.Distance,
		})
	}
	return results, nil
}

// sortHitsAscending is the coordinator's own defensive re-sort: KNN already
// returns results sorted, but the caller does not rely on that contract.
func sortHitsAscending(hits []vindex.Result) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Distance < hits[j-1].Distance; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}
