package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/pipeline"
	"github.com/rushteam/moviekit/recall"
)

func factoryArtifact() *core.ModelArtifact {
	movies := []core.MovieRecord{
		{ID: 1, Title: "Alpha Strike", ReleaseDate: "2000-03-01", Genres: []string{"Action"}, VoteAverage: 7.0, VoteCount: 1000},
		{ID: 2, Title: "Beta Strike", ReleaseDate: "2005-07-15", Genres: []string{"Action"}, VoteAverage: 8.0, VoteCount: 500},
		{ID: 3, Title: "Gamma Love", ReleaseDate: "2010-02-14", Genres: []string{"Romance"}, VoteAverage: 9.0, VoteCount: 2000},
		{ID: 4, Title: "Delta Strike", ReleaseDate: "1995-11-20", Genres: []string{"Action"}, VoteAverage: 6.0, VoteCount: 100},
	}
	return &core.ModelArtifact{
		Movies: movies,
		Embeddings: [][]float64{
			{1, 0},
			{0.9, 0.436},
			{0, 1},
			{0.8, 0.6},
		},
		TitleIndex: core.BuildTitleIndex(movies),
	}
}

func queryContext(a *core.ModelArtifact) *core.RecommendContext {
	return &core.RecommendContext{
		Query:      "Alpha Strike",
		QueryMovie: &a.Movies[0],
		QueryRow:   0,
	}
}

const pipelineYAML = `
pipeline:
  name: similar-movies
  nodes:
    - type: recall.similar
      config:
        limit: 3
    - type: filter.movie
      config:
        min_year: 2000
    - type: rerank.topn
      config:
        n: 2
`

func TestBuildPipelineFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(pipelineYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := pipeline.LoadFromYAML(path)
	if err != nil {
		t.Fatalf("LoadFromYAML() error = %v", err)
	}
	if cfg.Pipeline.Name != "similar-movies" || len(cfg.Pipeline.Nodes) != 3 {
		t.Fatalf("config = %+v", cfg.Pipeline)
	}

	artifact := factoryArtifact()
	factory := NewFactory(&Runtime{Index: recall.NewSimilarityIndex(artifact)})

	if err := ValidatePipelineConfig(cfg, factory); err != nil {
		t.Fatalf("ValidatePipelineConfig() error = %v", err)
	}
	p, err := cfg.BuildPipeline(factory)
	if err != nil {
		t.Fatalf("BuildPipeline() error = %v", err)
	}

	items, err := p.Run(context.Background(), queryContext(artifact), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 召回 3 -> 年份过滤掉 Delta(1995) -> 截断 2
	if len(items) != 2 || items[0].ID != 2 || items[1].ID != 3 {
		t.Fatalf("Run() = %v, want items [2 3]", items)
	}
}

func TestValidatePipelineConfig_UnsupportedType(t *testing.T) {
	cfg := &pipeline.Config{}
	cfg.Pipeline.Nodes = []pipeline.NodeConfig{{Type: "rerank.nonexistent"}}

	factory := NewFactory(&Runtime{})
	err := ValidatePipelineConfig(cfg, factory)
	if err == nil || !strings.Contains(err.Error(), "rerank.nonexistent") {
		t.Errorf("ValidatePipelineConfig() error = %v, want unsupported type", err)
	}
}

func TestFactory_ExprFilterNode(t *testing.T) {
	artifact := factoryArtifact()
	factory := NewFactory(&Runtime{Index: recall.NewSimilarityIndex(artifact)})

	node, err := factory.Build("filter.expr", map[string]interface{}{
		"expr": "movie.rating >= 7.0",
	})
	if err != nil {
		t.Fatalf("Build(filter.expr) error = %v", err)
	}

	rctx := queryContext(artifact)
	items := []*core.Item{
		core.NewItem(2, 1, &artifact.Movies[1]), // rating 8.0
		core.NewItem(4, 3, &artifact.Movies[3]), // rating 6.0
	}
	out, err := node.Process(context.Background(), rctx, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("Process() = %v, want only item 2", out)
	}

	if _, err := factory.Build("filter.expr", map[string]interface{}{}); err == nil {
		t.Error("Build(filter.expr) without expr expected error")
	}
	if _, err := factory.Build("filter.expr", map[string]interface{}{"expr": "movie.rating >=> 1"}); err == nil {
		t.Error("Build(filter.expr) with malformed expr expected error")
	}
}

func TestFactory_RequiresRuntime(t *testing.T) {
	factory := NewFactory(&Runtime{})

	if _, err := factory.Build("recall.similar", nil); err == nil {
		t.Error("Build(recall.similar) without index expected error")
	}
	if _, err := factory.Build("rerank.mmr", nil); err == nil {
		t.Error("Build(rerank.mmr) without index expected error")
	}
	if _, err := factory.Build("postprocess.feast_stats", map[string]interface{}{
		"features": []interface{}{"movie_stats:view_count"},
	}); err == nil {
		t.Error("Build(postprocess.feast_stats) without client expected error")
	}
}

func TestRegister_CustomNode(t *testing.T) {
	Register("rerank.noop", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &noopNode{}, nil
	})

	found := false
	for _, typ := range SupportedTypes() {
		if typ == "rerank.noop" {
			found = true
		}
	}
	if !found {
		t.Fatal("registered type missing from SupportedTypes()")
	}

	factory := NewFactory(&Runtime{})
	if _, err := factory.Build("rerank.noop", nil); err != nil {
		t.Errorf("Build(rerank.noop) error = %v", err)
	}
}

type noopNode struct{}

func (n *noopNode) Name() string        { return "rerank.noop" }
func (n *noopNode) Kind() pipeline.Kind { return pipeline.KindReRank }
func (n *noopNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	return items, nil
}
