package rerank

import (
	"context"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/pipeline"
	"github.com/rushteam/moviekit/pkg/utils"
)

// Similarity 提供两个工件行号之间的相似度（MMR 需要候选间的两两相似度）。
type Similarity interface {
	Similarity(a, b int) float64
}

// MMRNode 是 MMR（Maximal Marginal Relevance）多样性重排节点。
//
// 贪心迭代选择，每轮选出 mmr 分最高的候选：
//
//	mmr = (1 - w) * relevance - w * max(sim(candidate, selected))
//
// relevance 为候选与查询电影的相似度（item.Score）；
// w 为 DiversityWeight（0-1，越大越多样）。w=0 退化为纯相似度排序。
// 输出 item.Score 保持与查询的相似度，顺序为 MMR 选择顺序。
type MMRNode struct {
	Index Similarity

	// DiversityWeight 多样性权重，取值 [0, 1]。
	DiversityWeight float64

	// N 最终保留的候选数量，<= 0 时保留全部。
	N int
}

func (n *MMRNode) Name() string {
	return "rerank.mmr"
}

func (n *MMRNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *MMRNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	limit := n.N
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	w := n.DiversityWeight
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}

	remaining := make([]*core.Item, len(items))
	copy(remaining, items)
	selected := make([]*core.Item, 0, limit)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0

		for i, cand := range remaining {
			relevance := cand.Score

			maxSim := 0.0
			for _, sel := range selected {
				if sim := n.Index.Similarity(cand.Row, sel.Row); sim > maxSim {
					maxSim = sim
				}
			}

			mmr := (1-w)*relevance - w*maxSim
			if bestIdx < 0 || mmr > bestScore {
				bestIdx = i
				bestScore = mmr
			}
		}

		best := remaining[bestIdx]
		best.PutLabel("rerank", utils.Label{Value: n.Name(), Source: n.Name()})
		selected = append(selected, best)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected, nil
}
