package feature

import (
	"strings"
	"testing"

	"github.com/rushteam/moviekit/core"
)

func TestSoupBuilder_Build(t *testing.T) {
	tests := []struct {
		name  string
		cfg   core.SoupConfig
		movie core.MovieRecord
		want  string
	}{
		{
			name: "weighted fields repeat tokens",
			cfg: core.SoupConfig{
				GenreWeight: 2, CompanyWeight: 2,
				MaxKeywords: 15, MaxCompanies: 3, MaxCountries: 2, OverviewWords: 50,
			},
			movie: core.MovieRecord{
				Title:     "Star Wars",
				Keywords:  []string{"Space War"},
				Genres:    []string{"Science Fiction"},
				Companies: []string{"Lucasfilm", "Fox"},
				Countries: []string{"United States"},
				Overview:  "A galaxy far away",
				Tagline:   "May the Force",
			},
			want: "spacewar sciencefiction sciencefiction lucasfilm lucasfilm lucasfilm fox unitedstates a galaxy far away may the force",
		},
		{
			name: "missing fields produce no tokens",
			cfg: core.SoupConfig{
				GenreWeight: 2, CompanyWeight: 2,
				MaxKeywords: 15, MaxCompanies: 3, MaxCountries: 2, OverviewWords: 50,
			},
			movie: core.MovieRecord{Title: "Untitled", Genres: []string{"Drama"}},
			want:  "drama drama",
		},
		{
			name: "keyword and company truncation",
			cfg: core.SoupConfig{
				GenreWeight: 1, CompanyWeight: 1,
				MaxKeywords: 2, MaxCompanies: 1, MaxCountries: 1, OverviewWords: 50,
			},
			movie: core.MovieRecord{
				Keywords:  []string{"one", "two", "three"},
				Companies: []string{"Alpha", "Beta"},
				Countries: []string{"US", "UK"},
			},
			want: "one two alpha alpha us",
		},
		{
			name: "overview truncated to word limit",
			cfg: core.SoupConfig{
				GenreWeight: 1, CompanyWeight: 1,
				MaxKeywords: 15, MaxCompanies: 3, MaxCountries: 2, OverviewWords: 3,
			},
			movie: core.MovieRecord{
				Overview: "One Two Three Four Five",
			},
			want: "one two three",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewSoupBuilder(tt.cfg)
			got := b.Build(&tt.movie)
			if got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSoupBuilder_Deterministic(t *testing.T) {
	m := core.MovieRecord{
		Keywords:  []string{"heist", "crew"},
		Genres:    []string{"Thriller", "Crime"},
		Companies: []string{"Warner Bros."},
		Overview:  "A team plans a heist",
	}
	b := NewSoupBuilder(core.DefaultTrainConfig().Soup)

	first := b.Build(&m)
	for i := 0; i < 10; i++ {
		if got := b.Build(&m); got != first {
			t.Fatalf("Build() not deterministic: %q vs %q", got, first)
		}
	}
	if first == "" || !strings.Contains(first, "thriller") {
		t.Errorf("unexpected soup: %q", first)
	}
}
