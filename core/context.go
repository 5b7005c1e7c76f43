package core

import "github.com/rushteam/moviekit/pkg/utils"

// RecommendContext 承载一次推荐请求的查询信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	Query string // 用户输入的原始标题（未归一化）

	// QueryMovie 是解析后的查询电影；QueryRow 为其在工件内的行号。
	// 由服务层在标题解析成功后填入，Recall/Filter/ReRank 节点只读。
	QueryMovie *MovieRecord
	QueryRow   int

	// Labels 是请求级标签，可驱动整个 Pipeline 行为（如解析方式 exact/fuzzy）。
	Labels map[string]utils.Label

	// Params 请求级上下文参数（如 n、diversity_weight 等），供自定义节点使用。
	Params map[string]any
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
