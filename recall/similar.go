package recall

import (
	"context"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/pipeline"
	"github.com/rushteam/moviekit/pkg/conv"
	"github.com/rushteam/moviekit/pkg/utils"
)

// 召回上限默认值：后续 Filter/ReRank 会收缩结果，这里取较大的候选超集。
const defaultRecallLimit = 200

// SimilarRecall 是基于相似度索引的召回节点。
// 从 rctx.QueryRow 出发取 TopK 候选，查询电影自身不会进入候选集。
type SimilarRecall struct {
	name  string
	index *SimilarityIndex
	limit int
}

// NewSimilarRecall 创建召回节点。limit <= 0 时取默认候选上限。
func NewSimilarRecall(index *SimilarityIndex, limit int) *SimilarRecall {
	if limit <= 0 {
		limit = defaultRecallLimit
	}
	return &SimilarRecall{name: "recall.similar", index: index, limit: limit}
}

// NewSimilarRecallFromConfig 从节点配置构建（config: limit）。
func NewSimilarRecallFromConfig(index *SimilarityIndex, config map[string]any) *SimilarRecall {
	limit := int(conv.ConfigGetInt64(config, "limit", 0))
	return NewSimilarRecall(index, limit)
}

func (n *SimilarRecall) Name() string        { return n.name }
func (n *SimilarRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *SimilarRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if rctx.QueryMovie == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInternalError,
			"recall invoked without resolved query movie")
	}

	scored := n.index.TopK(rctx.QueryRow, n.limit)
	out := make([]*core.Item, 0, len(items)+len(scored))
	out = append(out, items...)

	for _, s := range scored {
		movie := &n.index.movies[s.Row]
		item := core.NewItem(movie.ID, s.Row, movie)
		item.Score = s.Score
		item.PutLabel("recall", utils.Label{Value: n.name, Source: n.name})
		out = append(out, item)
	}
	return out, nil
}
