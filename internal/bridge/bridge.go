// Package bridge is the UI-facing command/event adapter: search_index,
// add_path_to_index, add_paths_to_index, get_paths_from_index,
// delete_path_from_index, initialize_backend, plus the
// IndexingStatusChanged event. It carries no business logic of its own —
// every method calls straight into internal/appstate. This is the only
// place UI-shaped command naming survives in the codebase.
package bridge

import (
	"context"
	"fmt"

	"github.com/screenager/sonicsearch/internal/appstate"
	"github.com/screenager/sonicsearch/internal/status"
)

// Hit is one ranked search result, the shape the external UI receives.
type Hit struct {
	FilePath          string  `json:"file_path"`
	StartingTimestamp float64 `json:"starting_timestamp"`
	Distance          float32 `json:"distance"`
}

// Bridge adapts a *appstate.State to the external command/event surface.
type Bridge struct {
	state *appstate.State
}

// New builds a Bridge over state.
func New(state *appstate.State) *Bridge {
	return &Bridge{state: state}
}

// SearchIndex runs query and returns ranked hits.
func (b *Bridge) SearchIndex(ctx context.Context, query string) ([]Hit, error) {
	results, err := b.state.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("bridge: search_index: %w", err)
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{FilePath: r.FilePath, StartingTimestamp: r.StartingTimestamp, Distance: r.Distance}
	}
	return hits, nil
}

// AddPathToIndex registers path, synchronously indexes it, and returns the
// full updated list of registered paths.
func (b *Bridge) AddPathToIndex(ctx context.Context, path string) ([]string, error) {
	return b.AddPathsToIndex(ctx, []string{path})
}

// AddPathsToIndex registers every path in paths not already registered, runs
// one ingestion pass over all of them, and returns the full updated list of
// registered paths.
func (b *Bridge) AddPathsToIndex(ctx context.Context, paths []string) ([]string, error) {
	existing, err := b.GetPathsFromIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("bridge: add_paths_to_index: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p] = true
	}
	for _, p := range paths {
		if known[p] {
			continue
		}
		if err := b.state.Store.AddDir(ctx, p); err != nil {
			return nil, fmt.Errorf("bridge: add_paths_to_index: register %s: %w", p, err)
		}
		known[p] = true
	}
	if _, err := b.state.UpdateAudioIndex(ctx, paths); err != nil {
		return nil, fmt.Errorf("bridge: add_paths_to_index: %w", err)
	}
	return b.GetPathsFromIndex(ctx)
}

// GetPathsFromIndex returns every registered directory.
func (b *Bridge) GetPathsFromIndex(ctx context.Context) ([]string, error) {
	paths, err := b.state.Store.ListDirs(ctx)
	if err != nil {
		return nil, fmt.Errorf("bridge: get_paths_from_index: %w", err)
	}
	return paths, nil
}

// DeletePathFromIndex unregisters path and returns the remaining list.
// Already-ingested segments from that directory are left in the catalog;
// pruning them is out of scope.
func (b *Bridge) DeletePathFromIndex(ctx context.Context, path string) ([]string, error) {
	if err := b.state.Store.RemoveDir(ctx, path); err != nil {
		return nil, fmt.Errorf("bridge: delete_path_from_index: %w", err)
	}
	return b.GetPathsFromIndex(ctx)
}

// InitializeBackend re-runs an ingestion pass over every registered path.
// Idempotent: safe to call on every app start.
func (b *Bridge) InitializeBackend(ctx context.Context) error {
	paths, err := b.GetPathsFromIndex(ctx)
	if err != nil {
		return fmt.Errorf("bridge: initialize_backend: %w", err)
	}
	if len(paths) == 0 {
		return nil
	}
	if _, err := b.state.UpdateAudioIndex(ctx, paths); err != nil {
		return fmt.Errorf("bridge: initialize_backend: %w", err)
	}
	return nil
}

// Subscribe returns a channel of IndexingStatusChanged snapshots.
func (b *Bridge) Subscribe() <-chan status.Snapshot {
	return b.state.Status.Subscribe()
}
