// Package matcher 实现标题解析：精确命中优先，失败后做模糊匹配。
package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rushteam/moviekit/core"
)

// DefaultThreshold 是模糊匹配的默认最低接受分数。
const DefaultThreshold = 0.6

// suggestionLimit 解析失败时返回的近似候选数量。
const suggestionLimit = 5

// Match 是一次标题解析结果。
type Match struct {
	Row   int     // 工件内行号
	Title string  // 命中的原始标题
	Score float64 // 匹配分数，精确命中为 1
	Fuzzy bool    // 是否经过模糊匹配
}

// TitleMatcher 把用户输入的标题解析为工件内的电影行。
//
// 两段式解析：
//  1. 归一化后精确查表（小写 + 空白折叠）
//  2. 未命中时对全部标题打模糊分，取最高分且 >= 阈值的候选
//
// 模糊分 = max(Levenshtein 比率, token 集合 Jaccard)，
// 前者容忍拼写错误，后者容忍词序颠倒与缺词。
// 平局规则：分数降序 -> vote_count 降序 -> 标题升序。
type TitleMatcher struct {
	movies    []core.MovieRecord
	index     map[string]int // 归一化标题 -> 行号
	titles    []string       // 归一化标题（升序，确定性遍历）
	threshold float64
}

// NewTitleMatcher 基于工件构建解析器。threshold <= 0 时取默认阈值。
func NewTitleMatcher(artifact *core.ModelArtifact, threshold float64) *TitleMatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &TitleMatcher{
		movies:    artifact.Movies,
		index:     artifact.TitleIndex,
		titles:    artifact.SortedTitles(),
		threshold: threshold,
	}
}

// Resolve 解析标题。失败时返回 NOT_FOUND 错误，附带近似候选建议。
func (m *TitleMatcher) Resolve(query string) (*Match, error) {
	normalized := core.NormalizeTitle(query)
	if normalized == "" {
		return nil, core.NewDomainError(core.ModuleMatcher, core.ErrorCodeNotFound, "empty title")
	}

	// 精确命中
	if row, ok := m.index[normalized]; ok {
		return &Match{Row: row, Title: m.movies[row].Title, Score: 1}, nil
	}

	// 模糊匹配
	scored := m.scoreAll(normalized)
	if len(scored) > 0 && scored[0].score >= m.threshold {
		best := scored[0]
		row := m.index[best.title]
		return &Match{Row: row, Title: m.movies[row].Title, Score: best.score, Fuzzy: true}, nil
	}

	err := core.NewDomainError(core.ModuleMatcher, core.ErrorCodeNotFound,
		fmt.Sprintf("movie %q not found", query))
	for i, s := range scored {
		if i >= suggestionLimit {
			break
		}
		err.Suggestions = append(err.Suggestions, m.movies[m.index[s.title]].Title)
	}
	return nil, err
}

// Suggest 返回与输入最接近的 n 个标题（按模糊分降序），不做阈值过滤。
func (m *TitleMatcher) Suggest(query string, n int) []string {
	normalized := core.NormalizeTitle(query)
	if normalized == "" || n <= 0 {
		return nil
	}
	scored := m.scoreAll(normalized)
	if n > len(scored) {
		n = len(scored)
	}
	out := make([]string, 0, n)
	for _, s := range scored[:n] {
		out = append(out, m.movies[m.index[s.title]].Title)
	}
	return out
}

type scoredTitle struct {
	title string
	score float64
}

// scoreAll 对全部标题打模糊分并按全序排序。
func (m *TitleMatcher) scoreAll(normalized string) []scoredTitle {
	queryTokens := tokenSet(normalized)
	scored := make([]scoredTitle, 0, len(m.titles))
	for _, title := range m.titles {
		score := levenshteinRatio(normalized, title)
		if j := jaccard(queryTokens, tokenSet(title)); j > score {
			score = j
		}
		scored = append(scored, scoredTitle{title: title, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		mi := &m.movies[m.index[scored[i].title]]
		mj := &m.movies[m.index[scored[j].title]]
		if mi.VoteCount != mj.VoteCount {
			return mi.VoteCount > mj.VoteCount
		}
		return scored[i].title < scored[j].title
	})
	return scored
}

// levenshteinRatio 计算归一化编辑距离相似度：1 - dist/max(len)。
func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein 计算编辑距离（两行滚动 DP）。
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard 计算两个 token 集合的 Jaccard 相似度。
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
