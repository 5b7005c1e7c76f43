package feature

import (
	"testing"

	"github.com/rushteam/moviekit/core"
)

func movieWithVotes(title string, avg float64, votes int64) core.MovieRecord {
	return core.MovieRecord{Title: title, VoteAverage: avg, VoteCount: votes}
}

// 质量分对两个输入各自单调不减：固定一个，抬高另一个，分数不会变低。
func TestQualityScore_Monotonic(t *testing.T) {
	t.Run("vote_average", func(t *testing.T) {
		for _, votes := range []int64{0, 5, 500, 100000} {
			prev := -1.0
			for _, avg := range []float64{0, 2.5, 5.0, 7.5, 10} {
				m := movieWithVotes("m", avg, votes)
				got := m.QualityScore()
				if got < prev {
					t.Errorf("QualityScore(avg=%v, votes=%d) = %v, below previous %v", avg, votes, got, prev)
				}
				prev = got
			}
		}
	})

	t.Run("vote_count", func(t *testing.T) {
		for _, avg := range []float64{0, 5.0, 10} {
			prev := -1.0
			for _, votes := range []int64{0, 1, 50, 500, 100000} {
				m := movieWithVotes("m", avg, votes)
				got := m.QualityScore()
				if got < prev {
					t.Errorf("QualityScore(avg=%v, votes=%d) = %v, below previous %v", avg, votes, got, prev)
				}
				prev = got
			}
		}
	})
}

func TestQualityFilter_TierThresholds(t *testing.T) {
	movies := []core.MovieRecord{
		movieWithVotes("tiny", 9.0, 3),
		movieWithVotes("small", 8.0, 10),
		movieWithVotes("mid", 7.0, 100),
		movieWithVotes("big", 6.0, 1000),
	}

	tests := []struct {
		tier core.QualityTier
		want []string
	}{
		{core.TierLow, []string{"small", "mid", "big"}},
		{core.TierMedium, []string{"mid", "big"}},
		{core.TierHigh, []string{"big"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			f := &QualityFilter{Tier: tt.tier}
			got := f.Apply(movies)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() kept %d movies, want %d", len(got), len(tt.want))
			}
			seen := make(map[string]bool)
			for _, m := range got {
				seen[m.Title] = true
			}
			for _, title := range tt.want {
				if !seen[title] {
					t.Errorf("Apply() dropped %q", title)
				}
			}
		})
	}
}

// 更严档位的输出恒为更松档位输出的子集。
func TestQualityFilter_TierSubset(t *testing.T) {
	movies := []core.MovieRecord{
		movieWithVotes("a", 7.5, 6),
		movieWithVotes("b", 8.2, 60),
		movieWithVotes("c", 6.9, 600),
		movieWithVotes("d", 9.1, 2),
	}

	low := (&QualityFilter{Tier: core.TierLow}).Apply(movies)
	medium := (&QualityFilter{Tier: core.TierMedium}).Apply(movies)
	high := (&QualityFilter{Tier: core.TierHigh}).Apply(movies)

	inLow := make(map[string]bool)
	for _, m := range low {
		inLow[m.Title] = true
	}
	inMedium := make(map[string]bool)
	for _, m := range medium {
		inMedium[m.Title] = true
	}

	for _, m := range medium {
		if !inLow[m.Title] {
			t.Errorf("medium output %q not in low output", m.Title)
		}
	}
	for _, m := range high {
		if !inMedium[m.Title] {
			t.Errorf("high output %q not in medium output", m.Title)
		}
	}
}

func TestQualityFilter_SortAndCap(t *testing.T) {
	movies := []core.MovieRecord{
		movieWithVotes("low score", 2.0, 100),
		movieWithVotes("high score", 9.0, 100),
		movieWithVotes("mid score", 5.0, 100),
	}

	f := &QualityFilter{Tier: core.TierLow, MaxMovies: 2}
	got := f.Apply(movies)

	if len(got) != 2 {
		t.Fatalf("Apply() kept %d movies, want 2", len(got))
	}
	if got[0].Title != "high score" || got[1].Title != "mid score" {
		t.Errorf("Apply() order = [%s, %s], want [high score, mid score]", got[0].Title, got[1].Title)
	}
}

func TestSortByQuality_TieBreak(t *testing.T) {
	// 相同 quality_score：vote_count 降序，再 title 升序
	movies := []core.MovieRecord{
		movieWithVotes("zeta", 7.0, 100),
		movieWithVotes("alpha", 7.0, 100),
		movieWithVotes("more votes", 7.0, 200),
	}
	SortByQuality(movies)

	if movies[0].Title != "more votes" {
		t.Errorf("first = %q, want %q", movies[0].Title, "more votes")
	}
	if movies[1].Title != "alpha" || movies[2].Title != "zeta" {
		t.Errorf("tie order = [%s, %s], want [alpha, zeta]", movies[1].Title, movies[2].Title)
	}
}

func TestQualityFilter_DoesNotMutateInput(t *testing.T) {
	movies := []core.MovieRecord{
		movieWithVotes("b", 5.0, 100),
		movieWithVotes("a", 9.0, 100),
	}
	(&QualityFilter{Tier: core.TierLow}).Apply(movies)

	if movies[0].Title != "b" {
		t.Errorf("input slice reordered: first = %q", movies[0].Title)
	}
}
