package feast

import (
	"context"
	"fmt"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/pipeline"
	"github.com/rushteam/moviekit/pkg/utils"
)

// 默认的实体 key 与特征列表。
const defaultEntityKey = "movie_id"

// StatsEnricher 是后处理节点：从 Feast 在线存储批量拉取候选电影的
// 实时统计特征（近期热度、点击率等），写入 item.Meta 供调用方消费。
//
// 补充是尽力而为的：Feast 不可用或特征缺失时结果原样返回，
// 推荐主链路不因实时特征失败而失败。
type StatsEnricher struct {
	Client Client

	// Features 要拉取的特征，例如 ["movie_stats:popularity_7d", "movie_stats:click_rate"]
	Features []string

	// EntityKey 实体 key，默认 "movie_id"
	EntityKey string
}

func (n *StatsEnricher) Name() string {
	return "postprocess.feast_stats"
}

func (n *StatsEnricher) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *StatsEnricher) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Client == nil || len(n.Features) == 0 || len(items) == 0 {
		return items, nil
	}

	entityKey := n.EntityKey
	if entityKey == "" {
		entityKey = defaultEntityKey
	}

	entityRows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		entityRows = append(entityRows, map[string]interface{}{entityKey: item.ID})
	}

	resp, err := n.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   n.Features,
		EntityRows: entityRows,
	})
	if err != nil {
		// 尽力而为：实时特征失败不影响主链路
		return items, nil
	}
	if len(resp.FeatureVectors) != len(items) {
		return items, nil
	}

	for i, item := range items {
		for name, value := range resp.FeatureVectors[i].Values {
			item.Meta[name] = value
		}
		item.PutLabel("enriched", utils.Label{
			Value:  fmt.Sprintf("%d", len(resp.FeatureVectors[i].Values)),
			Source: n.Name(),
		})
	}
	return items, nil
}

var _ pipeline.Node = (*StatsEnricher)(nil)
