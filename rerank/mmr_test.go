package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/moviekit/core"
)

// fakeSimilarity 用行号对的静态表提供相似度。
type fakeSimilarity struct {
	sims map[[2]int]float64
}

func (f *fakeSimilarity) Similarity(a, b int) float64 {
	if s, ok := f.sims[[2]int{a, b}]; ok {
		return s
	}
	return f.sims[[2]int{b, a}]
}

func scoredItem(id int64, row int, score float64) *core.Item {
	it := core.NewItem(id, row, &core.MovieRecord{ID: id})
	it.Score = score
	return it
}

func TestTopNNode(t *testing.T) {
	items := []*core.Item{
		scoredItem(1, 0, 0.9),
		scoredItem(2, 1, 0.8),
		scoredItem(3, 2, 0.7),
	}

	tests := []struct {
		name string
		n    int
		want int
	}{
		{"truncates", 2, 2},
		{"zero keeps all", 0, 3},
		{"larger than input keeps all", 10, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &TopNNode{N: tt.n}
			out, err := node.Process(context.Background(), nil, items)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(out) != tt.want {
				t.Errorf("Process() kept %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestMMRNode_ZeroWeightKeepsScoreOrder(t *testing.T) {
	items := []*core.Item{
		scoredItem(1, 0, 0.9),
		scoredItem(2, 1, 0.8),
		scoredItem(3, 2, 0.7),
	}
	node := &MMRNode{Index: &fakeSimilarity{sims: map[[2]int]float64{}}, DiversityWeight: 0, N: 3}

	out, err := node.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for i, wantID := range []int64{1, 2, 3} {
		if out[i].ID != wantID {
			t.Errorf("out[%d].ID = %d, want %d", i, out[i].ID, wantID)
		}
	}
}

// 与已选结果高度相似的候选应被多样性权重压后。
func TestMMRNode_DiversityDemotesNearDuplicates(t *testing.T) {
	// 候选 1 与 0 几乎相同（sim 0.99），候选 2 分数稍低但与 0 不相似
	items := []*core.Item{
		scoredItem(1, 0, 0.90),
		scoredItem(2, 1, 0.88),
		scoredItem(3, 2, 0.80),
	}
	sims := &fakeSimilarity{sims: map[[2]int]float64{
		{0, 1}: 0.99,
		{0, 2}: 0.05,
		{1, 2}: 0.05,
	}}
	node := &MMRNode{Index: sims, DiversityWeight: 0.5, N: 2}

	out, err := node.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Process() kept %d, want 2", len(out))
	}
	// 第一名仍是相关度最高的候选
	if out[0].ID != 1 {
		t.Errorf("out[0].ID = %d, want 1", out[0].ID)
	}
	// 第二名应为多样的候选 3，而非近重复的候选 2
	// mmr(候选2) = 0.5*0.88 - 0.5*0.99 < mmr(候选3) = 0.5*0.80 - 0.5*0.05
	if out[1].ID != 3 {
		t.Errorf("out[1].ID = %d, want 3 (diverse candidate)", out[1].ID)
	}
}

func TestMMRNode_WeightClamping(t *testing.T) {
	items := []*core.Item{
		scoredItem(1, 0, 0.9),
		scoredItem(2, 1, 0.8),
	}
	node := &MMRNode{Index: &fakeSimilarity{sims: map[[2]int]float64{}}, DiversityWeight: 5, N: 2}

	out, err := node.Process(context.Background(), nil, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 2 {
		t.Errorf("Process() kept %d, want 2", len(out))
	}
}

func TestMMRNode_EmptyInput(t *testing.T) {
	node := &MMRNode{Index: &fakeSimilarity{}, DiversityWeight: 0.3, N: 5}
	out, err := node.Process(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Process() = %v, want empty", out)
	}
}
