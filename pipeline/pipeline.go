package pipeline

import (
	"context"

	"github.com/rushteam/moviekit/core"
)

// Pipeline 是推理链路的核心抽象：把推荐逻辑拆成可组合的 Node 链。
// Recommend 走 Recall → Filter → TopN；RecommendDiverse 把 TopN 换成 MMR。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
