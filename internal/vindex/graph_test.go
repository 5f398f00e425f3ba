package vindex

import (
	"math/rand"
	"path/filepath"
	"sort"
	"testing"
)

func randomVec(rng *rand.Rand, d int) []float32 {
	v := make([]float32, d)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

func TestInsertSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g := New(200)

	const n = 200
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = randomVec(rng, codecDim)
		g.Insert(int64(i), vecs[i])
	}

	results := g.Search(vecs[0], 5, SearchEf)
	if len(results) == 0 {
		t.Fatal("no results returned")
	}
	if results[0].RowID != 0 {
		t.Errorf("expected self (rowid=0) as top result, got rowid=%d dist=%.4f", results[0].RowID, results[0].Distance)
	}
	if results[0].Distance > 0.01 {
		t.Errorf("self-distance should be ~0, got %.4f", results[0].Distance)
	}
}

func TestLayerCount(t *testing.T) {
	cases := []struct {
		nbElem int
		want   int
	}{
		{1, 1},
		{5000, 8},
		{1_000_000, 8},
	}
	for _, c := range cases {
		if got := layerCount(c.nbElem); got != c.want {
			t.Errorf("layerCount(%d) = %d, want %d", c.nbElem, got, c.want)
		}
	}
}

func TestInsertIgnoresDuplicateRowID(t *testing.T) {
	g := New(10)
	v := []float32{1, 0, 0, 0}
	g.Insert(1, v)
	g.Insert(1, []float32{0, 1, 0, 0})
	if g.Len() != 1 {
		t.Fatalf("expected duplicate insert to be a no-op, got len %d", g.Len())
	}
}

func TestNonSearchingModeReturnsEmpty(t *testing.T) {
	g := New(10)
	g.Insert(1, []float32{1, 0, 0, 0})
	g.SetSearching(false)
	if got := g.Search([]float32{1, 0, 0, 0}, 1, SearchEf); got != nil {
		t.Errorf("expected nil results while non-searching, got %v", got)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := New(100)

	const n = 100
	for i := 0; i < n; i++ {
		g.Insert(int64(i+1000), randomVec(rng, 64))
	}

	path := filepath.Join(t.TempDir(), "test.svix")
	if err := g.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g2, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g2.Len() != n {
		t.Errorf("expected %d nodes after load, got %d", n, g2.Len())
	}

	q := randomVec(rng, 64)
	r1 := g.Search(q, 1, SearchEf)
	r2 := g2.Search(q, 1, SearchEf)
	if len(r1) == 0 || len(r2) == 0 {
		t.Fatal("no results from one of the graphs")
	}
	if r1[0].RowID != r2[0].RowID {
		t.Errorf("top result mismatch: original=%d loaded=%d", r1[0].RowID, r2[0].RowID)
	}
}

// TestRecallAt10 measures recall@10 of the graph vs brute force.
func TestRecallAt10(t *testing.T) {
	const (
		dim    = 128
		nIndex = 1000
		nQuery = 20
		k      = 10
	)
	rng := rand.New(rand.NewSource(42))
	g := New(nIndex)

	vecs := make(map[int64][]float32, nIndex)
	for i := 0; i < nIndex; i++ {
		rowid := int64(i)
		v := randomVec(rng, dim)
		vecs[rowid] = v
		g.Insert(rowid, v)
	}

	var totalRecall float64
	for q := 0; q < nQuery; q++ {
		query := randomVec(rng, dim)

		type sc struct {
			rowid int64
			sim   float32
		}
		scores := make([]sc, 0, nIndex)
		for rowid, v := range vecs {
			scores = append(scores, sc{rowid: rowid, sim: cosineSim(query, l2norm(query), v, l2norm(v))})
		}
		sort.Slice(scores, func(i, j int) bool { return scores[i].sim > scores[j].sim })
		groundTruth := make(map[int64]bool, k)
		for i := 0; i < k && i < len(scores); i++ {
			groundTruth[scores[i].rowid] = true
		}

		results := g.Search(query, k, SearchEf)
		var hits int
		for _, r := range results {
			if groundTruth[r.RowID] {
				hits++
			}
		}
		totalRecall += float64(hits) / float64(k)
	}

	recall := totalRecall / float64(nQuery)
	if recall < 0.70 {
		t.Errorf("recall@10 too low: %.3f (want >= 0.70)", recall)
	}
}

const codecDim = 512
