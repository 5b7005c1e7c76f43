// Package recall 实现候选召回：基于嵌入矩阵的相似度索引与召回节点。
package recall

import (
	"sort"

	"github.com/rushteam/moviekit/core"
)

// Scored 是一条打分结果：工件内行号 + 相似度。
type Scored struct {
	Row   int
	Score float64
}

// SimilarityIndex 提供按需的相似电影查询。
//
// 相似度打分为矩阵-向量乘（查询行嵌入点乘全部行），O(N*dim)，
// 刻意不物化 O(N^2) 的全量相似度矩阵。PrecomputeTopK > 0 时
// 构建期为每行预计算 TopK 表，查询命中表内时零计算直接切片。
//
// 排序全序：score 降序 -> vote_count 降序 -> title 升序，平局输出确定。
type SimilarityIndex struct {
	movies     []core.MovieRecord
	embeddings [][]float64

	precomputed [][]Scored // 行号 -> TopK 表，未启用时为 nil
	precomputeK int
}

// NewSimilarityIndex 基于工件构建索引。
// artifact.Config.PrecomputeTopK > 0 时同步构建预计算表。
func NewSimilarityIndex(artifact *core.ModelArtifact) *SimilarityIndex {
	idx := &SimilarityIndex{
		movies:     artifact.Movies,
		embeddings: artifact.Embeddings,
	}
	if k := artifact.Config.PrecomputeTopK; k > 0 {
		idx.precomputeK = k
		idx.precomputed = make([][]Scored, len(artifact.Movies))
		for row := range artifact.Movies {
			idx.precomputed[row] = idx.scoreTopK(row, k)
		}
	}
	return idx
}

// Size 返回语料规模。
func (idx *SimilarityIndex) Size() int { return len(idx.movies) }

// Similarity 计算两行嵌入的余弦相似度（行已 L2 归一化，退化为点积）。
func (idx *SimilarityIndex) Similarity(a, b int) float64 {
	return dot(idx.embeddings[a], idx.embeddings[b])
}

// TopK 返回与 row 最相似的 k 行（不含 row 本身）。
// k >= 语料规模时返回除自身外的全部行；k <= 0 返回空。
func (idx *SimilarityIndex) TopK(row, k int) []Scored {
	if k <= 0 || row < 0 || row >= len(idx.movies) {
		return nil
	}
	if idx.precomputed != nil && k <= idx.precomputeK {
		table := idx.precomputed[row]
		if k < len(table) {
			table = table[:k]
		}
		out := make([]Scored, len(table))
		copy(out, table)
		return out
	}
	return idx.scoreTopK(row, k)
}

// scoreTopK 按需全量打分并取 TopK。
func (idx *SimilarityIndex) scoreTopK(row, k int) []Scored {
	query := idx.embeddings[row]
	scored := make([]Scored, 0, len(idx.movies)-1)
	for i := range idx.movies {
		if i == row {
			continue
		}
		scored = append(scored, Scored{Row: i, Score: dot(query, idx.embeddings[i])})
	}
	idx.sortScored(scored)
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// sortScored 按全序规则排序：score 降序 -> vote_count 降序 -> title 升序。
func (idx *SimilarityIndex) sortScored(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		mi, mj := &idx.movies[scored[i].Row], &idx.movies[scored[j].Row]
		if mi.VoteCount != mj.VoteCount {
			return mi.VoteCount > mj.VoteCount
		}
		return mi.Title < mj.Title
	})
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
