// Package appstate holds every long-lived handle the CLI/bridge layer needs
// in one struct, passed by pointer through command closures. It is a plain
// Go value with no process-wide singleton.
package appstate

import (
	"context"
	"sync"

	"github.com/screenager/sonicsearch/internal/audioembed"
	"github.com/screenager/sonicsearch/internal/catalog"
	"github.com/screenager/sonicsearch/internal/ingest"
	"github.com/screenager/sonicsearch/internal/query"
	"github.com/screenager/sonicsearch/internal/status"
	"github.com/screenager/sonicsearch/internal/textembed"
	"github.com/screenager/sonicsearch/internal/vindex"
)

// State bundles the catalog, vector index, both embedders, the status
// broadcaster, and the orchestrator/coordinator built over them.
//
// indexMu serializes the operations that touch the vector index end to
// end: Search and UpdateAudioIndex both take the write lock, since
// concurrent Insert+Search against the HNSW graph is not proven safe;
// Load/Save of the persisted graph file also take the write lock, since
// Index.Load replaces the graph pointer outright with no locking of its
// own.
type State struct {
	Store         *catalog.Store
	Index         *vindex.Index
	AudioEmbedder *audioembed.Embedder
	TextEmbedder  *textembed.Embedder
	Status        *status.Broadcaster
	Orchestrator  *ingest.Orchestrator
	Query         *query.Coordinator

	indexMu sync.RWMutex
}

// New wires an Orchestrator and Coordinator over the given handles and
// returns the assembled State.
func New(store *catalog.Store, idx *vindex.Index, audioEmb *audioembed.Embedder, textEmb *textembed.Embedder) *State {
	bc := status.New()
	return &State{
		Store:         store,
		Index:         idx,
		AudioEmbedder: audioEmb,
		TextEmbedder:  textEmb,
		Status:        bc,
		Orchestrator:  ingest.New(store, idx, audioEmb, bc),
		Query:         query.New(textEmb, idx, store),
	}
}

// Close releases every owned resource. Safe to call once, after any
// in-flight Search/UpdateAudioIndex calls have returned.
func (s *State) Close() error {
	s.AudioEmbedder.Close()
	s.TextEmbedder.Close()
	return s.Store.Close()
}

// Search runs a query, serialized against any in-flight index mutation.
func (s *State) Search(ctx context.Context, queryStr string) ([]query.Result, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.Query.Search(ctx, queryStr)
}

// UpdateAudioIndex runs an ingestion pass, serialized against any in-flight
// search or index load/save.
func (s *State) UpdateAudioIndex(ctx context.Context, dirs []string) (ingest.Result, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.Orchestrator.UpdateAudioIndex(ctx, dirs)
}

// SaveIndex persists the in-memory graph to path.
func (s *State) SaveIndex(path string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.Index.Save(path)
}

// LoadIndex replaces the in-memory graph with one loaded from path.
func (s *State) LoadIndex(path string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.Index.Load(path)
}
