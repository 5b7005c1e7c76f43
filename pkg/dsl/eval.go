package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/moviekit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("movie", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	if celEnv == nil && err == nil {
		err = fmt.Errorf("cel environment not initialized")
	}
	return celEnv, err
}

// Compile 预编译 CEL 表达式，返回可复用的程序。
// 表达式编译一次，多次对不同候选求值。
func Compile(expr string) (cel.Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}
	return prg, nil
}

// Eval 是候选表达式的 CEL 解释器。
//
// 表达式语法（CEL 标准语法）：
//   - 电影字段：movie.rating >= 7.0 / movie.year > 2010 / movie.votes > 1000
//   - 类型包含："action" in movie.genres
//   - 分数：item.score > 0.3
//   - 标签：label.recall == "recall.similar"
//   - 逻辑组合：movie.rating >= 7.0 && movie.year >= 2000
//
// 注意：访问不存在的 key 会报错，用 label.key != null 检查存在性。
type Eval struct {
	item *core.Item
	rctx *core.RecommendContext
}

// NewEval 创建一个新的 DSL 解释器。
func NewEval(item *core.Item, rctx *core.RecommendContext) *Eval {
	return &Eval{item: item, rctx: rctx}
}

// Evaluate 解析并执行 DSL 表达式，返回布尔结果。空表达式恒为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return e.EvaluateProgram(prg)
}

// EvaluateProgram 对预编译程序求值。
func (e *Eval) EvaluateProgram(prg cel.Program) (bool, error) {
	out, _, err := prg.Eval(e.buildInput())
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func (e *Eval) buildInput() map[string]interface{} {
	labels := make(map[string]interface{})
	labelAccessor := make(map[string]interface{})
	for k, v := range e.item.Labels {
		labels[k] = map[string]interface{}{
			"value":  v.Value,
			"source": v.Source,
		}
		// label.key 直接访问 value
		labelAccessor[k] = v.Value
	}

	item := map[string]interface{}{
		"id":     e.item.ID,
		"score":  e.item.Score,
		"meta":   e.item.Meta,
		"labels": labels,
	}

	movie := map[string]interface{}{}
	if m := e.item.Movie; m != nil {
		genres := make([]interface{}, 0, len(m.Genres))
		for _, g := range m.Genres {
			genres = append(genres, core.NormalizeToken(g))
		}
		year, _ := m.Year()
		movie = map[string]interface{}{
			"id":         m.ID,
			"title":      m.Title,
			"year":       year,
			"genres":     genres,
			"company":    m.PrimaryCompany(),
			"rating":     m.VoteAverage,
			"votes":      m.VoteCount,
			"popularity": m.Popularity,
		}
	}

	rctx := map[string]interface{}{
		"query":  e.rctx.Query,
		"params": e.rctx.Params,
	}
	if qm := e.rctx.QueryMovie; qm != nil {
		rctx["query_title"] = qm.Title
		rctx["query_company"] = qm.PrimaryCompany()
	}

	return map[string]interface{}{
		"item":  item,
		"movie": movie,
		"label": labelAccessor,
		"rctx":  rctx,
	}
}
