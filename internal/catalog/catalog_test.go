package catalog

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	segs := []SegmentInsert{
		{StartingTimestamp: 0.0, Embedding: []byte{1, 2, 3, 4}},
		{StartingTimestamp: 5.0, Embedding: []byte{5, 6, 7, 8}},
	}
	if err := s.InsertSegments(ctx, "hash1", "/a.wav", segs); err != nil {
		t.Fatalf("InsertSegments: %v", err)
	}

	row, err := s.LookupByHash(ctx, "hash1")
	if err != nil {
		t.Fatalf("LookupByHash: %v", err)
	}
	if row == nil || row.FilePath != "/a.wav" {
		t.Fatalf("expected row with path /a.wav, got %+v", row)
	}

	rows, err := s.ListEmbeddingsWithRowID(ctx)
	if err != nil {
		t.Fatalf("ListEmbeddingsWithRowID: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 embedding rows, got %d", len(rows))
	}

	loc, err := s.FetchSegment(ctx, rows[0].RowID)
	if err != nil {
		t.Fatalf("FetchSegment: %v", err)
	}
	if loc.FilePath != "/a.wav" {
		t.Errorf("expected /a.wav, got %s", loc.FilePath)
	}
}

func TestLookupMissing(t *testing.T) {
	s := openTestStore(t)
	row, err := s.LookupByHash(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row != nil {
		t.Errorf("expected nil row, got %+v", row)
	}
}

func TestUpdatePathPreservesHashAndSegments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	segs := []SegmentInsert{{StartingTimestamp: 0, Embedding: []byte{1, 2, 3, 4}}}
	if err := s.InsertSegments(ctx, "hash1", "/a.wav", segs); err != nil {
		t.Fatalf("InsertSegments: %v", err)
	}
	if err := s.UpdatePath(ctx, "hash1", "/b.wav"); err != nil {
		t.Fatalf("UpdatePath: %v", err)
	}

	row, err := s.LookupByHash(ctx, "hash1")
	if err != nil {
		t.Fatalf("LookupByHash: %v", err)
	}
	if row.FilePath != "/b.wav" {
		t.Errorf("expected /b.wav, got %s", row.FilePath)
	}

	rows, err := s.ListEmbeddingsWithRowID(ctx)
	if err != nil {
		t.Fatalf("ListEmbeddingsWithRowID: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected segments to be preserved across move, got %d", len(rows))
	}
}

func TestDirPaths(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddDir(ctx, "/music"); err != nil {
		t.Fatalf("AddDir: %v", err)
	}
	if err := s.AddDir(ctx, "/podcasts"); err != nil {
		t.Fatalf("AddDir: %v", err)
	}
	dirs, err := s.ListDirs(ctx)
	if err != nil {
		t.Fatalf("ListDirs: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 dirs, got %d", len(dirs))
	}

	if err := s.RemoveDir(ctx, "/music"); err != nil {
		t.Fatalf("RemoveDir: %v", err)
	}
	dirs, err = s.ListDirs(ctx)
	if err != nil {
		t.Fatalf("ListDirs: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != "/podcasts" {
		t.Errorf("expected only /podcasts to remain, got %v", dirs)
	}
}

func TestInsertSegmentsIsTransactional(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Duplicate starting_timestamp in the same file violates the primary
	// key, so the whole batch (including the audio_file row) must roll back.
	segs := []SegmentInsert{
		{StartingTimestamp: 0, Embedding: []byte{1, 2, 3, 4}},
		{StartingTimestamp: 0, Embedding: []byte{5, 6, 7, 8}},
	}
	if err := s.InsertSegments(ctx, "hash1", "/a.wav", segs); err == nil {
		t.Fatal("expected error from duplicate primary key")
	}

	row, err := s.LookupByHash(ctx, "hash1")
	if err != nil {
		t.Fatalf("LookupByHash: %v", err)
	}
	if row != nil {
		t.Errorf("expected no audio_file row after rolled-back transaction, got %+v", row)
	}
}
