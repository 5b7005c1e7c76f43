package feature

import (
	"sort"

	"github.com/rushteam/moviekit/core"
)

// QualityFilter 按投票数档位与质量分对语料做子集化。
//
// 算法：
//  1. 剔除投票数低于档位阈值的记录
//  2. 对幸存记录按 quality_score 降序排序
//  3. 设置了 MaxMovies 时保留前 N 条
//
// 排序的平局规则固定为：vote_count 降序、title 升序，保证确定性输出。
// 不变式：更严档位的输出（加 cap 前）恒为更松档位输出的子集。
type QualityFilter struct {
	Tier      core.QualityTier
	MaxMovies int // 0 表示不设上限
}

// Apply 返回过滤后的新切片，不修改输入。
func (f *QualityFilter) Apply(movies []core.MovieRecord) []core.MovieRecord {
	minVotes := f.Tier.MinVotes()

	out := make([]core.MovieRecord, 0, len(movies))
	for _, m := range movies {
		if m.VoteCount < minVotes {
			continue
		}
		out = append(out, m)
	}

	SortByQuality(out)

	if f.MaxMovies > 0 && len(out) > f.MaxMovies {
		out = out[:f.MaxMovies]
	}
	return out
}

// SortByQuality 按 quality_score 降序原地排序，平局按 vote_count 降序、title 升序。
func SortByQuality(movies []core.MovieRecord) {
	sort.SliceStable(movies, func(i, j int) bool {
		qi, qj := movies[i].QualityScore(), movies[j].QualityScore()
		if qi != qj {
			return qi > qj
		}
		if movies[i].VoteCount != movies[j].VoteCount {
			return movies[i].VoteCount > movies[j].VoteCount
		}
		return movies[i].Title < movies[j].Title
	})
}
