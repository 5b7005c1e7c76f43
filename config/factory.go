package config

import (
	"fmt"

	"github.com/rushteam/moviekit/feast"
	"github.com/rushteam/moviekit/filter"
	"github.com/rushteam/moviekit/pipeline"
	"github.com/rushteam/moviekit/pkg/conv"
	"github.com/rushteam/moviekit/recall"
	"github.com/rushteam/moviekit/rerank"
)

// Runtime 是节点构建所需的模型运行时资源（装载工件后才可用）。
type Runtime struct {
	// Index 相似度索引（recall.similar / rerank.mmr 依赖）
	Index *recall.SimilarityIndex

	// Feast 在线特征客户端（postprocess.feast_stats 依赖，可为 nil）
	Feast feast.Client
}

// NewFactory 返回绑定运行时资源的 NodeFactory，
// 包含全部内置节点与通过 Register 注册的自定义节点。
func NewFactory(rt *Runtime) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	factory.Register("recall.similar", func(cfg map[string]interface{}) (pipeline.Node, error) {
		if rt.Index == nil {
			return nil, fmt.Errorf("recall.similar requires a loaded similarity index")
		}
		return recall.NewSimilarRecallFromConfig(rt.Index, cfg), nil
	})

	factory.Register("filter.movie", buildMovieFilterNode)

	factory.Register("filter.expr", func(cfg map[string]interface{}) (pipeline.Node, error) {
		expr := conv.ConfigGet[string](cfg, "expr", "")
		if expr == "" {
			return nil, fmt.Errorf("filter.expr requires an expr")
		}
		f, err := filter.NewExprFilter(expr)
		if err != nil {
			return nil, err
		}
		return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
	})

	factory.Register("rerank.topn", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
	})

	factory.Register("rerank.mmr", func(cfg map[string]interface{}) (pipeline.Node, error) {
		if rt.Index == nil {
			return nil, fmt.Errorf("rerank.mmr requires a loaded similarity index")
		}
		return &rerank.MMRNode{
			Index:           rt.Index,
			DiversityWeight: conv.ConfigGetFloat64(cfg, "diversity_weight", 0.3),
			N:               int(conv.ConfigGetInt64(cfg, "n", 0)),
		}, nil
	})

	factory.Register("postprocess.feast_stats", func(cfg map[string]interface{}) (pipeline.Node, error) {
		if rt.Feast == nil {
			return nil, fmt.Errorf("postprocess.feast_stats requires a feast client")
		}
		features := conv.SliceAnyToString(cfg["features"])
		if len(features) == 0 {
			return nil, fmt.Errorf("postprocess.feast_stats requires features")
		}
		return &feast.StatsEnricher{
			Client:    rt.Feast,
			Features:  features,
			EntityKey: conv.ConfigGet[string](cfg, "entity_key", ""),
		}, nil
	})

	// 追加全局注册表中的自定义节点
	defaultBuildersMu.RLock()
	for typeName, builder := range defaultBuilders {
		if !factory.Has(typeName) {
			factory.Register(typeName, builder)
		}
	}
	defaultBuildersMu.RUnlock()

	return factory
}

// buildMovieFilterNode 从配置构建查询级约束过滤节点。
func buildMovieFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	criteria := &filter.Criteria{
		MinYear:            int(conv.ConfigGetInt64(cfg, "min_year", 0)),
		MaxYear:            int(conv.ConfigGetInt64(cfg, "max_year", 0)),
		MinRating:          conv.ConfigGetFloat64(cfg, "min_rating", 0),
		Genres:             conv.SliceAnyToString(cfg["genres"]),
		ExcludeSameCompany: conv.ConfigGet[bool](cfg, "exclude_same_company", false),
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: criteria.Filters()}, nil
}
