package model

import (
	"math"
	"testing"

	"github.com/rushteam/moviekit/core"
)

// 6 docs x 4 vocab 的小语料：前三行集中在 0/1 维，后三行集中在 2/3 维。
func svdFixture() ([]SparseVector, int) {
	rows := []SparseVector{
		{Indices: []int{0, 1}, Values: []float64{0.8, 0.6}},
		{Indices: []int{0, 1}, Values: []float64{0.6, 0.8}},
		{Indices: []int{0}, Values: []float64{1}},
		{Indices: []int{2, 3}, Values: []float64{0.8, 0.6}},
		{Indices: []int{2, 3}, Values: []float64{0.6, 0.8}},
		{Indices: []int{3}, Values: []float64{1}},
	}
	return rows, 4
}

func TestSVDReducer_FitTransform(t *testing.T) {
	rows, vocab := svdFixture()
	r := NewSVDReducer(2)

	embeddings, err := r.FitTransform(rows, vocab)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	if len(embeddings) != len(rows) {
		t.Fatalf("got %d embeddings, want %d", len(embeddings), len(rows))
	}

	for i, emb := range embeddings {
		if len(emb) != 2 {
			t.Fatalf("embedding %d has dim %d, want 2", i, len(emb))
		}
		var norm float64
		for _, v := range emb {
			norm += v * v
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Errorf("embedding %d norm^2 = %v, want 1", i, norm)
		}
	}

	// 同簇文档应比跨簇文档更相似
	sameCluster := dot(embeddings[0], embeddings[1])
	crossCluster := dot(embeddings[0], embeddings[3])
	if sameCluster <= crossCluster {
		t.Errorf("same-cluster sim %v <= cross-cluster sim %v", sameCluster, crossCluster)
	}
}

func TestSVDReducer_Deterministic(t *testing.T) {
	rows, vocab := svdFixture()

	first, err := NewSVDReducer(2).FitTransform(rows, vocab)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	second, err := NewSVDReducer(2).FitTransform(rows, vocab)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("embedding[%d][%d] differs between runs", i, j)
			}
		}
	}
}

func TestSVDReducer_Transform(t *testing.T) {
	rows, vocab := svdFixture()
	r := NewSVDReducer(2)
	embeddings, err := r.FitTransform(rows, vocab)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	// 对训练行重放 Transform 应得到一致的嵌入
	for i, row := range rows {
		got := r.Transform(row)
		for j := range got {
			if math.Abs(got[j]-embeddings[i][j]) > 1e-9 {
				t.Errorf("Transform(row %d)[%d] = %v, want %v", i, j, got[j], embeddings[i][j])
			}
		}
	}
}

func TestSVDReducer_DimValidation(t *testing.T) {
	rows, vocab := svdFixture()

	tests := []struct {
		name string
		dim  int
	}{
		{"zero", 0},
		{"equals vocab", 4},
		{"exceeds docs", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSVDReducer(tt.dim).FitTransform(rows, vocab)
			if !core.IsConfiguration(err) {
				t.Errorf("FitTransform() error = %v, want CONFIGURATION", err)
			}
		})
	}
}

func TestReducerFromParams(t *testing.T) {
	rows, vocab := svdFixture()
	r := NewSVDReducer(2)
	if _, err := r.FitTransform(rows, vocab); err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	restored, err := ReducerFromParams(r.Params())
	if err != nil {
		t.Fatalf("ReducerFromParams() error = %v", err)
	}
	query := SparseVector{Indices: []int{0, 1}, Values: []float64{0.7, 0.7}}
	a, b := r.Transform(query), restored.Transform(query)
	for j := range a {
		if a[j] != b[j] {
			t.Fatalf("restored Transform differs at dim %d", j)
		}
	}

	if _, err := ReducerFromParams(nil); !core.IsDataLoad(err) {
		t.Errorf("ReducerFromParams(nil) error = %v, want DATA_LOAD", err)
	}
	if _, err := ReducerFromParams(&core.ReducerParams{Dim: 2, Components: [][]float64{{1}}}); !core.IsDataLoad(err) {
		t.Errorf("ReducerFromParams(bad) error = %v, want DATA_LOAD", err)
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
