package filter

import (
	"context"
	"testing"

	"github.com/rushteam/moviekit/core"
)

func itemFor(m core.MovieRecord, row int) *core.Item {
	it := core.NewItem(m.ID, row, &m)
	return it
}

func TestCriteria_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       *Criteria
		wantErr bool
	}{
		{"nil", nil, false},
		{"empty", &Criteria{}, false},
		{"valid range", &Criteria{MinYear: 2000, MaxYear: 2010, MinRating: 7}, false},
		{"inverted years", &Criteria{MinYear: 2010, MaxYear: 2000}, true},
		{"negative year", &Criteria{MinYear: -1}, true},
		{"rating too high", &Criteria{MinRating: 11}, true},
		{"rating negative", &Criteria{MinRating: -0.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr && !core.IsValidation(err) {
				t.Errorf("Validate() = %v, want VALIDATION error", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestYearRangeFilter(t *testing.T) {
	f := &YearRangeFilter{Min: 2000, Max: 2010}
	rctx := &core.RecommendContext{}

	tests := []struct {
		name    string
		date    string
		dropped bool
	}{
		{"in range", "2005-06-01", false},
		{"too old", "1999-01-01", true},
		{"too new", "2011-01-01", true},
		{"boundary min", "2000-01-01", false},
		{"unparseable dropped when constrained", "n/a", true},
		{"empty dropped when constrained", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{ReleaseDate: tt.date}, 0))
			if err != nil {
				t.Fatalf("ShouldFilter() error = %v", err)
			}
			if got != tt.dropped {
				t.Errorf("ShouldFilter(%q) = %v, want %v", tt.date, got, tt.dropped)
			}
		})
	}
}

func TestGenreFilter_AnyMatch(t *testing.T) {
	f := NewGenreFilter([]string{"Science Fiction", "Action"})
	rctx := &core.RecommendContext{}

	keep, _ := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{Genres: []string{"Drama", "Action"}}, 0))
	if keep {
		t.Error("movie with one matching genre should be kept")
	}
	drop, _ := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{Genres: []string{"Drama"}}, 0))
	if !drop {
		t.Error("movie with no matching genre should be dropped")
	}
	// 归一化比较："science fiction" 命中 "Science Fiction"
	norm, _ := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{Genres: []string{"science fiction"}}, 0))
	if norm {
		t.Error("genre match should be normalized")
	}
}

func TestSameCompanyFilter(t *testing.T) {
	f := &SameCompanyFilter{}
	rctx := &core.RecommendContext{
		QueryMovie: &core.MovieRecord{Companies: []string{"Marvel Studios", "Disney"}},
	}

	same, _ := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{Companies: []string{"Marvel Studios"}}, 0))
	if !same {
		t.Error("same primary company should be dropped")
	}
	// 主公司不同（即使次要公司相同）不过滤
	other, _ := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{Companies: []string{"Pixar", "Marvel Studios"}}, 0))
	if other {
		t.Error("different primary company should be kept")
	}

	// 查询电影无公司信息时不做过滤
	noCompany := &core.RecommendContext{QueryMovie: &core.MovieRecord{}}
	kept, _ := f.ShouldFilter(context.Background(), noCompany, itemFor(core.MovieRecord{Companies: []string{"Marvel Studios"}}, 0))
	if kept {
		t.Error("filter should be inert without a source company")
	}
}

func TestFilterNode_LabelsDropped(t *testing.T) {
	node := &FilterNode{Filters: []Filter{&MinRatingFilter{Min: 7}}}
	rctx := &core.RecommendContext{}

	low := itemFor(core.MovieRecord{ID: 1, VoteAverage: 5}, 0)
	high := itemFor(core.MovieRecord{ID: 2, VoteAverage: 8}, 1)

	out, err := node.Process(context.Background(), rctx, []*core.Item{low, high})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("Process() = %v, want only item 2", out)
	}

	lbl, ok := low.Labels["filtered"]
	if !ok {
		t.Fatal("dropped item missing filtered label")
	}
	if lbl.Source != "filter.min_rating" {
		t.Errorf("filtered label source = %q, want filter.min_rating", lbl.Source)
	}
}

func TestCriteria_Filters(t *testing.T) {
	c := &Criteria{MinYear: 2000, MinRating: 7, Genres: []string{"Action"}, ExcludeSameCompany: true}
	if got := len(c.Filters()); got != 4 {
		t.Errorf("Filters() = %d filters, want 4", got)
	}
	if got := (&Criteria{}).Filters(); got != nil {
		t.Errorf("empty criteria Filters() = %v, want nil", got)
	}
}

func TestExcludeRowsFilter(t *testing.T) {
	f := NewExcludeRowsFilter(0, 5)
	rctx := &core.RecommendContext{}

	drop, _ := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{}, 5))
	if !drop {
		t.Error("excluded row should be dropped")
	}
	keep, _ := f.ShouldFilter(context.Background(), rctx, itemFor(core.MovieRecord{}, 3))
	if keep {
		t.Error("non-excluded row should be kept")
	}
}
