package recall

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/moviekit/core"
)

// 4 部电影的二维嵌入：0/1/3 同向，2 正交。
// 1 与 3 和查询 0 的相似度完全相同，用于验证平局规则。
func indexFixture(precomputeK int) *core.ModelArtifact {
	cfg := core.DefaultTrainConfig()
	cfg.PrecomputeTopK = precomputeK
	return &core.ModelArtifact{
		SchemaVersion: core.ArtifactSchemaVersion,
		Config:        cfg,
		Movies: []core.MovieRecord{
			{ID: 1, Title: "Query", VoteCount: 10},
			{ID: 2, Title: "Beta", VoteCount: 100},
			{ID: 3, Title: "Orthogonal", VoteCount: 500},
			{ID: 4, Title: "Alpha", VoteCount: 100},
		},
		Embeddings: [][]float64{
			{1, 0},
			{1, 0},
			{0, 1},
			{1, 0},
		},
	}
}

func TestSimilarityIndex_TopK(t *testing.T) {
	idx := NewSimilarityIndex(indexFixture(0))

	got := idx.TopK(0, 2)
	if len(got) != 2 {
		t.Fatalf("TopK() returned %d, want 2", len(got))
	}

	// 行 1 与行 3 同分（vote_count 也同），title 升序：Alpha(3) 在 Beta(1) 前
	if got[0].Row != 3 || got[1].Row != 1 {
		t.Errorf("TopK() rows = [%d, %d], want [3, 1]", got[0].Row, got[1].Row)
	}
	if math.Abs(got[0].Score-1) > 1e-9 {
		t.Errorf("top score = %v, want 1", got[0].Score)
	}
}

func TestSimilarityIndex_SelfExcluded(t *testing.T) {
	idx := NewSimilarityIndex(indexFixture(0))

	for _, s := range idx.TopK(0, 10) {
		if s.Row == 0 {
			t.Error("TopK() contains the query row itself")
		}
	}
}

func TestSimilarityIndex_KLargerThanCorpus(t *testing.T) {
	idx := NewSimilarityIndex(indexFixture(0))

	got := idx.TopK(0, 100)
	if len(got) != 3 {
		t.Errorf("TopK(100) returned %d, want all 3 others", len(got))
	}
}

func TestSimilarityIndex_EdgeInputs(t *testing.T) {
	idx := NewSimilarityIndex(indexFixture(0))

	if got := idx.TopK(0, 0); got != nil {
		t.Errorf("TopK(k=0) = %v, want nil", got)
	}
	if got := idx.TopK(-1, 5); got != nil {
		t.Errorf("TopK(row=-1) = %v, want nil", got)
	}
}

func TestSimilarityIndex_PrecomputedMatchesOnDemand(t *testing.T) {
	onDemand := NewSimilarityIndex(indexFixture(0))
	precomputed := NewSimilarityIndex(indexFixture(3))

	for row := 0; row < onDemand.Size(); row++ {
		a := onDemand.TopK(row, 3)
		b := precomputed.TopK(row, 3)
		if len(a) != len(b) {
			t.Fatalf("row %d: lengths differ %d vs %d", row, len(a), len(b))
		}
		for i := range a {
			if a[i].Row != b[i].Row || math.Abs(a[i].Score-b[i].Score) > 1e-12 {
				t.Errorf("row %d rank %d: on-demand %v vs precomputed %v", row, i, a[i], b[i])
			}
		}
	}
}

func TestSimilarRecall_Process(t *testing.T) {
	artifact := indexFixture(0)
	idx := NewSimilarityIndex(artifact)
	node := NewSimilarRecall(idx, 2)

	rctx := &core.RecommendContext{
		Query:      "Query",
		QueryMovie: &artifact.Movies[0],
		QueryRow:   0,
	}
	items, err := node.Process(context.Background(), rctx, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Process() returned %d items, want 2", len(items))
	}
	for _, item := range items {
		if item.Row == 0 {
			t.Error("recall output contains the query movie")
		}
		if item.Movie == nil {
			t.Error("recall item missing movie record")
		}
		if _, ok := item.Labels["recall"]; !ok {
			t.Error("recall item missing recall label")
		}
	}
}

func TestSimilarRecall_NoQueryMovie(t *testing.T) {
	idx := NewSimilarityIndex(indexFixture(0))
	node := NewSimilarRecall(idx, 2)

	_, err := node.Process(context.Background(), &core.RecommendContext{}, nil)
	if err == nil {
		t.Fatal("Process() expected error without resolved query movie")
	}
}
