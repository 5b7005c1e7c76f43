// Package trainer 实现离线训练管道：
// 数据集 -> 质量过滤 -> 特征 soup -> TF-IDF -> （可选）SVD 降维 -> 工件持久化。
package trainer

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/dataset"
	"github.com/rushteam/moviekit/feature"
	"github.com/rushteam/moviekit/model"
	"github.com/rushteam/moviekit/store"
)

// Trainer 执行一次完整的离线训练并产出可持久化的模型工件。
// 训练是纯离线过程，推理侧只消费产出的工件，两侧只通过工件衔接。
type Trainer struct {
	cfg core.TrainConfig
	ms  *store.ModelStore
	log zerolog.Logger
}

// Option 配置 Trainer 可选项。
type Option func(*Trainer)

// WithLogger 注入结构化日志。
func WithLogger(log zerolog.Logger) Option {
	return func(t *Trainer) { t.log = log }
}

// New 创建 Trainer。ms 为 nil 时 Train 只产出工件不持久化。
func New(cfg core.TrainConfig, ms *store.ModelStore, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Trainer{cfg: cfg, ms: ms, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TrainFromCSV 从 CSV 数据集训练。
func (t *Trainer) TrainFromCSV(ctx context.Context, path string) (*core.ModelArtifact, error) {
	movies, err := dataset.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	t.log.Info().Str("path", path).Int("movies", len(movies)).Msg("dataset loaded")
	return t.Train(ctx, movies)
}

// Train 在给定语料上执行训练。
//
// 产出的工件内各部分严格对齐：Movies 第 i 行对应 Embeddings 第 i 行，
// TitleIndex 的值为行号。配置指纹随工件一同持久化，装载时校验。
func (t *Trainer) Train(ctx context.Context, movies []core.MovieRecord) (*core.ModelArtifact, error) {
	// 1. 质量过滤
	qf := &feature.QualityFilter{Tier: t.cfg.Tier, MaxMovies: t.cfg.MaxMovies}
	kept := qf.Apply(movies)
	t.log.Info().
		Str("tier", string(t.cfg.Tier)).
		Int("input", len(movies)).
		Int("kept", len(kept)).
		Msg("quality filter applied")
	if len(kept) == 0 {
		return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeConfiguration,
			"no movies survive quality filtering")
	}

	// 同名电影仅保留票数最高的一条（与标题索引口径一致），
	// 落选记录不进入语料、不产生嵌入，因此不可能出现在推荐结果里
	deduped := dedupeByTitle(kept)
	if len(deduped) < len(kept) {
		t.log.Info().Int("dropped_duplicates", len(kept)-len(deduped)).Msg("duplicate titles removed")
	}
	kept = deduped

	// 2. 特征 soup，过短的记录剔除（soup 无信息量，嵌入无意义）
	sb := feature.NewSoupBuilder(t.cfg.Soup)
	corpus := make([]core.MovieRecord, 0, len(kept))
	soups := make([]string, 0, len(kept))
	for i := range kept {
		soup := sb.Build(&kept[i])
		if len(soup) < t.cfg.Soup.MinSoupLength {
			continue
		}
		corpus = append(corpus, kept[i])
		soups = append(soups, soup)
	}
	t.log.Info().Int("corpus", len(corpus)).Int("dropped_short", len(kept)-len(corpus)).Msg("soup built")
	if len(corpus) == 0 {
		return nil, core.NewDomainError(core.ModuleTrainer, core.ErrorCodeConfiguration,
			"no movies survive soup construction")
	}

	// 3. TF-IDF：Fit 串行，Transform 分片并行
	vectorizer := model.NewTFIDFVectorizer(t.cfg)
	if err := vectorizer.Fit(soups); err != nil {
		return nil, err
	}
	sparse, err := t.transformParallel(ctx, vectorizer, soups)
	if err != nil {
		return nil, err
	}
	t.log.Info().Int("vocab", vectorizer.VocabSize()).Msg("vectorizer fitted")

	// 4. 嵌入矩阵：降维或稠密展开（行均已 L2 归一化）
	artifact := &core.ModelArtifact{
		SchemaVersion: core.ArtifactSchemaVersion,
		Fingerprint:   t.cfg.Fingerprint(),
		Config:        t.cfg,
		Movies:        corpus,
		TitleIndex:    core.BuildTitleIndex(corpus),
		Vectorizer:    vectorizer.Params(),
	}
	if t.cfg.ReduceDim > 0 {
		reducer := model.NewSVDReducer(t.cfg.ReduceDim)
		embeddings, err := reducer.FitTransform(sparse, vectorizer.VocabSize())
		if err != nil {
			return nil, err
		}
		artifact.Embeddings = embeddings
		artifact.Reducer = reducer.Params()
		t.log.Info().Int("dim", t.cfg.ReduceDim).Msg("svd reduction applied")
	} else {
		embeddings := make([][]float64, len(sparse))
		for i, v := range sparse {
			embeddings[i] = v.Dense(vectorizer.VocabSize())
		}
		artifact.Embeddings = embeddings
	}

	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	// 5. 持久化
	if t.ms != nil {
		if err := t.ms.Save(ctx, artifact); err != nil {
			return nil, err
		}
		t.log.Info().Str("fingerprint", artifact.Fingerprint).Msg("artifact saved")
	}
	return artifact, nil
}

// dedupeByTitle 按归一化标题去重，票数最高的记录胜出，输出保持原有顺序。
// 标题为空的记录无法被查询到，一并剔除。
func dedupeByTitle(movies []core.MovieRecord) []core.MovieRecord {
	best := make(map[string]int, len(movies))
	for i := range movies {
		key := core.NormalizeTitle(movies[i].Title)
		if key == "" {
			continue
		}
		if j, ok := best[key]; ok && movies[j].VoteCount >= movies[i].VoteCount {
			continue
		}
		best[key] = i
	}

	keep := make(map[int]bool, len(best))
	for _, i := range best {
		keep[i] = true
	}
	out := make([]core.MovieRecord, 0, len(best))
	for i := range movies {
		if keep[i] {
			out = append(out, movies[i])
		}
	}
	return out
}

// transformParallel 对语料分片并行向量化。
func (t *Trainer) transformParallel(
	ctx context.Context, vectorizer *model.TFIDFVectorizer, soups []string,
) ([]model.SparseVector, error) {
	out := make([]model.SparseVector, len(soups))

	workers := runtime.GOMAXPROCS(0)
	if workers > len(soups) {
		workers = len(soups)
	}
	chunk := (len(soups) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(soups) {
			end = len(soups)
		}
		if start >= end {
			break
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				out[i] = vectorizer.Transform(soups[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
