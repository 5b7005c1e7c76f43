// Package rerank 实现重排节点：Top-N 截断与 MMR 多样性重排。
package rerank

import (
	"context"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/pipeline"
)

// TopNNode 是 Top-N 截断节点，在排序结果上截取前 N 个候选。
//
// 使用场景：
//   - Recall + Filter 之后截取最终返回数量
//   - 配合 MMR 多样性重排限定候选池
type TopNNode struct {
	// N 要保留的候选数量（Top N）
	// N <= 0 或候选不足 N 个时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 {
		return items, nil
	}
	if len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
