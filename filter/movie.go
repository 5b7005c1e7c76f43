package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/moviekit/core"
)

// Criteria 是查询级的结果约束。零值字段不生效。
type Criteria struct {
	MinYear   int     `json:"min_year,omitempty"`
	MaxYear   int     `json:"max_year,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`

	// Genres 非空时，候选至少包含其中一个类型（归一化 token 比较）。
	Genres []string `json:"genres,omitempty"`

	// ExcludeSameCompany 为 true 时剔除与查询电影同主公司的候选。
	ExcludeSameCompany bool `json:"exclude_same_company,omitempty"`
}

// Empty 判断是否没有任何生效约束。
func (c *Criteria) Empty() bool {
	return c == nil ||
		(c.MinYear == 0 && c.MaxYear == 0 && c.MinRating == 0 &&
			len(c.Genres) == 0 && !c.ExcludeSameCompany)
}

// Validate 校验约束参数，非法时返回 VALIDATION 错误（由调用方提示用户）。
func (c *Criteria) Validate() error {
	if c == nil {
		return nil
	}
	if c.MinYear < 0 || c.MaxYear < 0 {
		return core.NewDomainError(core.ModuleFilter, core.ErrorCodeValidation, "year must be >= 0")
	}
	if c.MinYear > 0 && c.MaxYear > 0 && c.MinYear > c.MaxYear {
		return core.NewDomainError(core.ModuleFilter, core.ErrorCodeValidation,
			fmt.Sprintf("min_year %d > max_year %d", c.MinYear, c.MaxYear))
	}
	if c.MinRating < 0 || c.MinRating > 10 {
		return core.NewDomainError(core.ModuleFilter, core.ErrorCodeValidation,
			fmt.Sprintf("min_rating %.1f must be in [0, 10]", c.MinRating))
	}
	return nil
}

// Filters 把约束展开为过滤器列表。
func (c *Criteria) Filters() []Filter {
	if c.Empty() {
		return nil
	}
	var fs []Filter
	if c.MinYear > 0 || c.MaxYear > 0 {
		fs = append(fs, &YearRangeFilter{Min: c.MinYear, Max: c.MaxYear})
	}
	if c.MinRating > 0 {
		fs = append(fs, &MinRatingFilter{Min: c.MinRating})
	}
	if len(c.Genres) > 0 {
		fs = append(fs, NewGenreFilter(c.Genres))
	}
	if c.ExcludeSameCompany {
		fs = append(fs, &SameCompanyFilter{})
	}
	return fs
}

// YearRangeFilter 按上映年份过滤。约束生效时年份无法解析的候选一并剔除。
type YearRangeFilter struct {
	Min int // 0 表示不限
	Max int // 0 表示不限
}

func (f *YearRangeFilter) Name() string { return "filter.year_range" }

func (f *YearRangeFilter) ShouldFilter(
	_ context.Context, _ *core.RecommendContext, item *core.Item,
) (bool, error) {
	year, ok := item.Movie.Year()
	if !ok {
		return true, nil
	}
	if f.Min > 0 && year < f.Min {
		return true, nil
	}
	if f.Max > 0 && year > f.Max {
		return true, nil
	}
	return false, nil
}

// MinRatingFilter 按最低评分过滤。
type MinRatingFilter struct {
	Min float64
}

func (f *MinRatingFilter) Name() string { return "filter.min_rating" }

func (f *MinRatingFilter) ShouldFilter(
	_ context.Context, _ *core.RecommendContext, item *core.Item,
) (bool, error) {
	return item.Movie.VoteAverage < f.Min, nil
}

// GenreFilter 要求候选至少命中一个请求类型（归一化 token 比较）。
type GenreFilter struct {
	genres []string
}

func NewGenreFilter(genres []string) *GenreFilter {
	normalized := make([]string, 0, len(genres))
	for _, g := range genres {
		if t := core.NormalizeToken(g); t != "" {
			normalized = append(normalized, t)
		}
	}
	return &GenreFilter{genres: normalized}
}

func (f *GenreFilter) Name() string { return "filter.genre" }

func (f *GenreFilter) ShouldFilter(
	_ context.Context, _ *core.RecommendContext, item *core.Item,
) (bool, error) {
	if len(f.genres) == 0 {
		return false, nil
	}
	for _, g := range f.genres {
		if item.Movie.HasGenre(g) {
			return false, nil
		}
	}
	return true, nil
}

// SameCompanyFilter 剔除与查询电影同主公司的候选。
// 查询电影无主公司时不过滤任何候选。
type SameCompanyFilter struct{}

func (f *SameCompanyFilter) Name() string { return "filter.same_company" }

func (f *SameCompanyFilter) ShouldFilter(
	_ context.Context, rctx *core.RecommendContext, item *core.Item,
) (bool, error) {
	if rctx.QueryMovie == nil {
		return false, nil
	}
	source := rctx.QueryMovie.PrimaryCompany()
	if source == "" {
		return false, nil
	}
	return item.Movie.PrimaryCompany() == source, nil
}

// ExcludeRowsFilter 按工件行号剔除候选（如强制排除查询电影自身）。
type ExcludeRowsFilter struct {
	rows map[int]struct{}
}

func NewExcludeRowsFilter(rows ...int) *ExcludeRowsFilter {
	m := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		m[r] = struct{}{}
	}
	return &ExcludeRowsFilter{rows: m}
}

func (f *ExcludeRowsFilter) Name() string { return "filter.exclude_rows" }

func (f *ExcludeRowsFilter) ShouldFilter(
	_ context.Context, _ *core.RecommendContext, item *core.Item,
) (bool, error) {
	_, ok := f.rows[item.Row]
	return ok, nil
}
