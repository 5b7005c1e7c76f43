// Package service 实现推理门面：模型懒加载、标题解析、推荐/搜索/详情查询。
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/feature"
	"github.com/rushteam/moviekit/filter"
	"github.com/rushteam/moviekit/matcher"
	"github.com/rushteam/moviekit/pipeline"
	"github.com/rushteam/moviekit/recall"
	"github.com/rushteam/moviekit/rerank"
	"github.com/rushteam/moviekit/store"
)

// State 是推理服务的模型装载状态。
type State string

const (
	StateUnloaded State = "unloaded" // 尚未尝试装载
	StateLoading  State = "loading"  // 装载进行中
	StateReady    State = "ready"    // 模型可用
	StateFailed   State = "failed"   // 上次装载失败，下次请求会重试
)

// 结果数量的默认值与上限。
const (
	defaultRecommendN = 10
	maxRecommendN     = 50
	defaultSearchN    = 10
	maxSearchN        = 20
	defaultTopRatedN  = 10
	defaultMinVotes   = 1000
)

// RecommendResult 是一次推荐请求的完整结果。
type RecommendResult struct {
	QueryMovie      string              `json:"query_movie"`
	QueryDetails    core.MovieSummary   `json:"query_details"`
	MatchedFuzzy    bool                `json:"matched_fuzzy,omitempty"`
	Recommendations []core.MovieSummary `json:"recommendations"`
}

// MovieDetails 是单部电影的详情。
type MovieDetails struct {
	core.MovieSummary
	Overview string `json:"overview,omitempty"`
	Tagline  string `json:"tagline,omitempty"`
}

// Status 是服务健康状态。
type Status struct {
	State       State  `json:"state"`
	Movies      int    `json:"movies,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// modelRuntime 是装载完成后的只读推理状态，整体替换、从不原地修改。
type modelRuntime struct {
	artifact *core.ModelArtifact
	index    *recall.SimilarityIndex
	matcher  *matcher.TitleMatcher
	titles   []string // 归一化标题升序，装载时排序一次供 Search 复用
}

// Recommender 是推理门面。
//
// 模型懒加载：首次请求触发装载，singleflight 保证并发请求只装载一次，
// 其余请求等待同一次装载结果。装载失败进入 Failed 态，后续请求会重试
// （模型可能刚刚训练完成），失败不会被永久缓存。
type Recommender struct {
	ms   *store.ModelStore
	log  zerolog.Logger
	post []pipeline.Node // 追加在链路末尾的后处理节点（如实时特征补充）

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	lastErr error
	runtime *modelRuntime
}

// Option 配置 Recommender 可选项。
type Option func(*Recommender)

// WithLogger 注入结构化日志。
func WithLogger(log zerolog.Logger) Option {
	return func(r *Recommender) { r.log = log }
}

// WithPostProcess 追加后处理节点（按注册顺序执行）。
func WithPostProcess(nodes ...pipeline.Node) Option {
	return func(r *Recommender) { r.post = append(r.post, nodes...) }
}

// NewRecommender 创建推理门面。创建即返回，不触发模型装载。
func NewRecommender(ms *store.ModelStore, opts ...Option) *Recommender {
	r := &Recommender{ms: ms, log: zerolog.Nop(), state: StateUnloaded}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Health 返回当前状态，不触发装载。
func (r *Recommender) Health() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Status{State: r.state}
	if r.runtime != nil {
		s.Movies = len(r.runtime.artifact.Movies)
		s.Fingerprint = r.runtime.artifact.Fingerprint
	}
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	return s
}

// ensureLoaded 获取就绪的推理状态，必要时触发（去重的）装载。
func (r *Recommender) ensureLoaded(ctx context.Context) (*modelRuntime, error) {
	r.mu.RLock()
	if r.state == StateReady {
		rt := r.runtime
		r.mu.RUnlock()
		return rt, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do("load", func() (any, error) {
		// 装载期间的并发请求已在 Do 上合并，这里重查一次避免重复装载
		r.mu.RLock()
		if r.state == StateReady {
			rt := r.runtime
			r.mu.RUnlock()
			return rt, nil
		}
		r.mu.RUnlock()

		r.mu.Lock()
		r.state = StateLoading
		r.mu.Unlock()

		artifact, err := r.ms.Load(ctx)
		if err != nil {
			r.mu.Lock()
			r.state = StateFailed
			r.lastErr = err
			r.mu.Unlock()
			r.log.Error().Err(err).Msg("model load failed")
			return nil, err
		}

		rt := &modelRuntime{
			artifact: artifact,
			index:    recall.NewSimilarityIndex(artifact),
			matcher:  matcher.NewTitleMatcher(artifact, artifact.Config.FuzzyThreshold),
			titles:   artifact.SortedTitles(),
		}

		r.mu.Lock()
		r.state = StateReady
		r.lastErr = nil
		r.runtime = rt
		r.mu.Unlock()

		r.log.Info().
			Int("movies", len(artifact.Movies)).
			Str("fingerprint", artifact.Fingerprint).
			Msg("model loaded")
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*modelRuntime), nil
}

// Recommend 返回与 title 最相似的 n 部电影，按相似度降序。
// criteria 为 nil 时不做约束过滤。查询电影自身永不出现在结果里。
func (r *Recommender) Recommend(
	ctx context.Context, title string, n int, criteria *filter.Criteria,
) (*RecommendResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	n = clampN(n, defaultRecommendN, maxRecommendN)

	rt, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	match, rctx, err := r.resolve(rt, title)
	if err != nil {
		return nil, err
	}

	// 无约束时召回 n 个即可；有约束时召回全量，保证过滤后仍能凑满 n 个
	limit := n
	if !criteria.Empty() {
		limit = rt.index.Size()
	}

	nodes := []pipeline.Node{recall.NewSimilarRecall(rt.index, limit)}
	if fs := criteria.Filters(); len(fs) > 0 {
		nodes = append(nodes, &filter.FilterNode{Filters: fs})
	}
	nodes = append(nodes, &rerank.TopNNode{N: n})
	nodes = append(nodes, r.post...)

	items, err := (&pipeline.Pipeline{Nodes: nodes}).Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	return r.buildResult(rt, match, items), nil
}

// RecommendDiverse 返回 MMR 多样性重排后的 n 部电影。
//
// diversityWeight 取值 [0, 1]，方向为越大越多样：
// 每轮按 (1-w)*相似度 - w*max(与已选结果的相似度) 贪心选择，
// w=0 退化为纯相似度排序（等同 Recommend），w=1 只看与已选结果的差异。
func (r *Recommender) RecommendDiverse(
	ctx context.Context, title string, n int, diversityWeight float64,
) (*RecommendResult, error) {
	if diversityWeight < 0 || diversityWeight > 1 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeValidation,
			fmt.Sprintf("diversity weight %.2f must be in [0, 1]", diversityWeight))
	}
	n = clampN(n, defaultRecommendN, maxRecommendN)

	rt, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	match, rctx, err := r.resolve(rt, title)
	if err != nil {
		return nil, err
	}

	// MMR 在全量候选上贪心选择
	nodes := []pipeline.Node{
		recall.NewSimilarRecall(rt.index, rt.index.Size()),
		&rerank.MMRNode{Index: rt.index, DiversityWeight: diversityWeight, N: n},
	}
	nodes = append(nodes, r.post...)

	items, err := (&pipeline.Pipeline{Nodes: nodes}).Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	return r.buildResult(rt, match, items), nil
}

// Search 按子串匹配搜索标题（大小写不敏感），按质量分降序，最多 maxSearchN 条。
// minRating > 0 时附加最低评分过滤。
func (r *Recommender) Search(
	ctx context.Context, query string, n int, minRating float64,
) ([]core.MovieSummary, error) {
	n = clampN(n, defaultSearchN, maxSearchN)

	rt, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	normalized := core.NormalizeTitle(query)
	if normalized == "" {
		return nil, nil
	}

	var matched []core.MovieRecord
	for _, title := range rt.titles {
		if !strings.Contains(title, normalized) {
			continue
		}
		m := rt.artifact.Movies[rt.artifact.TitleIndex[title]]
		if minRating > 0 && m.VoteAverage < minRating {
			continue
		}
		matched = append(matched, m)
	}

	feature.SortByQuality(matched)
	if len(matched) > n {
		matched = matched[:n]
	}

	out := make([]core.MovieSummary, 0, len(matched))
	for i := range matched {
		out = append(out, core.Summarize(&matched[i], 0))
	}
	return out, nil
}

// Details 返回单部电影的详情（标题解析规则与 Recommend 一致）。
func (r *Recommender) Details(ctx context.Context, title string) (*MovieDetails, error) {
	rt, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	match, err := rt.matcher.Resolve(title)
	if err != nil {
		return nil, err
	}

	m := &rt.artifact.Movies[match.Row]
	return &MovieDetails{
		MovieSummary: core.Summarize(m, 0),
		Overview:     truncate(m.Overview, 200),
		Tagline:      m.Tagline,
	}, nil
}

// TopRated 返回评分最高的 n 部电影。
// minVotes <= 0 时取默认阈值；genres 非空时要求至少命中一个类型。
func (r *Recommender) TopRated(
	ctx context.Context, n int, minVotes int64, genres []string,
) ([]core.MovieSummary, error) {
	if n <= 0 {
		n = defaultTopRatedN
	}
	if minVotes <= 0 {
		minVotes = defaultMinVotes
	}

	rt, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	normalized := make([]string, 0, len(genres))
	for _, g := range genres {
		if t := core.NormalizeToken(g); t != "" {
			normalized = append(normalized, t)
		}
	}

	var matched []core.MovieRecord
	for i := range rt.artifact.Movies {
		m := &rt.artifact.Movies[i]
		if m.VoteCount < minVotes {
			continue
		}
		if len(normalized) > 0 && !hasAnyGenre(m, normalized) {
			continue
		}
		matched = append(matched, *m)
	}

	// vote_average 降序，平局按 vote_count 降序、title 升序
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].VoteAverage != matched[j].VoteAverage {
			return matched[i].VoteAverage > matched[j].VoteAverage
		}
		if matched[i].VoteCount != matched[j].VoteCount {
			return matched[i].VoteCount > matched[j].VoteCount
		}
		return matched[i].Title < matched[j].Title
	})
	if len(matched) > n {
		matched = matched[:n]
	}

	out := make([]core.MovieSummary, 0, len(matched))
	for i := range matched {
		out = append(out, core.Summarize(&matched[i], 0))
	}
	return out, nil
}

// resolve 解析查询标题并构建请求上下文。
func (r *Recommender) resolve(
	rt *modelRuntime, title string,
) (*matcher.Match, *core.RecommendContext, error) {
	match, err := rt.matcher.Resolve(title)
	if err != nil {
		return nil, nil, err
	}
	rctx := &core.RecommendContext{
		Query:      title,
		QueryMovie: &rt.artifact.Movies[match.Row],
		QueryRow:   match.Row,
	}
	return match, rctx, nil
}

// buildResult 把链路输出转为对外结果。
func (r *Recommender) buildResult(
	rt *modelRuntime, match *matcher.Match, items []*core.Item,
) *RecommendResult {
	recs := make([]core.MovieSummary, 0, len(items))
	for _, item := range items {
		if item == nil || item.Movie == nil {
			continue
		}
		recs = append(recs, core.Summarize(item.Movie, item.Score))
	}
	return &RecommendResult{
		QueryMovie:      match.Title,
		QueryDetails:    core.Summarize(&rt.artifact.Movies[match.Row], 1),
		MatchedFuzzy:    match.Fuzzy,
		Recommendations: recs,
	}
}

func clampN(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func hasAnyGenre(m *core.MovieRecord, normalized []string) bool {
	for _, g := range normalized {
		if m.HasGenre(g) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
