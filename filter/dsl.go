package filter

import (
	"context"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/moviekit/core"
	"github.com/rushteam/moviekit/pkg/dsl"
)

// ExprFilter 是表达式过滤器：CEL 表达式为 true 时保留候选。
// 表达式在构建期编译一次，对每个候选复用。
//
// 示例：
//   - movie.rating >= 7.0 && movie.year >= 2000
//   - "action" in movie.genres
//   - movie.company != rctx.query_company
type ExprFilter struct {
	expr string
	prg  cel.Program
}

// NewExprFilter 创建表达式过滤器，表达式非法时返回 VALIDATION 错误。
func NewExprFilter(expr string) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleFilter, core.ErrorCodeValidation,
			"invalid filter expression: "+err.Error())
	}
	return &ExprFilter{expr: expr, prg: prg}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) ShouldFilter(
	_ context.Context, rctx *core.RecommendContext, item *core.Item,
) (bool, error) {
	keep, err := dsl.NewEval(item, rctx).EvaluateProgram(f.prg)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
