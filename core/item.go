package core

import "github.com/rushteam/moviekit/pkg/utils"

// Item 是推荐链路中的统一承载结构：候选电影、相似度分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 为与查询电影的相似度，用于排序决策。
type Item struct {
	ID    int64   // 电影 ID
	Row   int     // 工件内的行号（嵌入/元数据下标）
	Score float64 // 与查询电影的相似度

	Movie  *MovieRecord
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id int64, row int, movie *MovieRecord) *Item {
	return &Item{
		ID:     id,
		Row:    row,
		Movie:  movie,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}
