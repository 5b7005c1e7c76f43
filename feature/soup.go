package feature

import (
	"strings"

	"github.com/rushteam/moviekit/core"
)

// SoupBuilder 把一条 MovieRecord 转为加权文本 soup（向量化输入）。
//
// 核心思想："类型/公司等强信号字段通过 token 重复次数加权"，
// 权重表达在 soup 本身而非向量化器参数里，换一种 Vectorizer 口径不变。
//
// 契约：
//   - 纯函数，无副作用，不会失败
//   - 缺失字段不产生任何 token（没有占位符）
//   - 同一 MovieRecord + 同一 SoupConfig 产出确定性结果
type SoupBuilder struct {
	Config core.SoupConfig
}

// NewSoupBuilder 创建 SoupBuilder，零值配置回退到默认权重方案。
func NewSoupBuilder(cfg core.SoupConfig) *SoupBuilder {
	def := core.DefaultTrainConfig().Soup
	if cfg.GenreWeight <= 0 {
		cfg.GenreWeight = def.GenreWeight
	}
	if cfg.CompanyWeight <= 0 {
		cfg.CompanyWeight = def.CompanyWeight
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = def.MaxKeywords
	}
	if cfg.MaxCompanies <= 0 {
		cfg.MaxCompanies = def.MaxCompanies
	}
	if cfg.MaxCountries <= 0 {
		cfg.MaxCountries = def.MaxCountries
	}
	if cfg.OverviewWords <= 0 {
		cfg.OverviewWords = def.OverviewWords
	}
	return &SoupBuilder{Config: cfg}
}

// Build 构建单条记录的 soup。只含标题的记录产出合法（可能近空）的 soup。
func (b *SoupBuilder) Build(m *core.MovieRecord) string {
	cfg := b.Config
	tokens := make([]string, 0, 64)

	// 关键词：截断 + 归一化（小写、去空格）
	for i, kw := range m.Keywords {
		if i >= cfg.MaxKeywords {
			break
		}
		if t := core.NormalizeToken(kw); t != "" {
			tokens = append(tokens, t)
		}
	}

	// 类型：重复 GenreWeight 次表达权重
	for _, g := range m.Genres {
		t := core.NormalizeToken(g)
		if t == "" {
			continue
		}
		for i := 0; i < cfg.GenreWeight; i++ {
			tokens = append(tokens, t)
		}
	}

	// 主公司加权 + 公司列表截断
	if primary := core.NormalizeToken(m.PrimaryCompany()); primary != "" {
		for i := 0; i < cfg.CompanyWeight; i++ {
			tokens = append(tokens, primary)
		}
	}
	for i, c := range m.Companies {
		if i >= cfg.MaxCompanies {
			break
		}
		if t := core.NormalizeToken(c); t != "" {
			tokens = append(tokens, t)
		}
	}

	// 国家截断
	for i, c := range m.Countries {
		if i >= cfg.MaxCountries {
			break
		}
		if t := core.NormalizeToken(c); t != "" {
			tokens = append(tokens, t)
		}
	}

	// 简介取前 N 词、宣传语全量，仅做小写化
	tokens = appendLoweredWords(tokens, m.Overview, cfg.OverviewWords)
	tokens = appendLoweredWords(tokens, m.Tagline, -1)

	return strings.Join(tokens, " ")
}

// appendLoweredWords 追加文本的前 limit 个小写词；limit < 0 表示不截断。
func appendLoweredWords(tokens []string, text string, limit int) []string {
	if text == "" {
		return tokens
	}
	for i, w := range strings.Fields(text) {
		if limit >= 0 && i >= limit {
			break
		}
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}
