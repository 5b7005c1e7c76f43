package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rushteam/moviekit/core"
)

// 子空间迭代轮数。TF-IDF 矩阵奇异值衰减快，十余轮即可收敛到稳定子空间。
const svdIterations = 15

// 固定随机种子，同语料同配置产出确定性分解结果。
const svdSeed = 42

// SVDReducer 对 TF-IDF 矩阵做截断 SVD 降维。
//
// 实现为对 XᵀX 的子空间迭代：维护 vocab x dim 的正交基 Q，
// 反复计算 Q ← orth(Xᵀ(X·Q))，收敛后 Q 即右奇异子空间 V 的近似。
// 降维结果 = X·V（doc 侧），新文本变换 = 稀疏向量点乘 V 各列。
type SVDReducer struct {
	Dim        int
	components [][]float64 // vocab x dim
}

// NewSVDReducer 创建降维器，dim 必须为正。
func NewSVDReducer(dim int) *SVDReducer {
	return &SVDReducer{Dim: dim}
}

// FitTransform 在语料矩阵上学习投影并返回降维后的嵌入（每行 L2 归一化）。
// dim >= min(docs, vocab) 时无法降维，返回 CONFIGURATION 错误。
func (s *SVDReducer) FitTransform(rows []SparseVector, vocabSize int) ([][]float64, error) {
	docs := len(rows)
	if s.Dim <= 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeConfiguration,
			"reduce_dim must be > 0")
	}
	if s.Dim >= docs || s.Dim >= vocabSize {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeConfiguration,
			fmt.Sprintf("reduce_dim %d must be < min(docs=%d, vocab=%d)", s.Dim, docs, vocabSize))
	}

	rng := rand.New(rand.NewSource(svdSeed))

	// 随机初始化正交基
	q := make([][]float64, vocabSize)
	for i := range q {
		q[i] = make([]float64, s.Dim)
		for j := range q[i] {
			q[i][j] = rng.NormFloat64()
		}
	}
	orthonormalize(q)

	b := make([][]float64, docs)
	for i := range b {
		b[i] = make([]float64, s.Dim)
	}

	for iter := 0; iter < svdIterations; iter++ {
		// B = X·Q（docs x dim）
		for i, row := range rows {
			for j := 0; j < s.Dim; j++ {
				b[i][j] = 0
			}
			for k, idx := range row.Indices {
				v := row.Values[k]
				for j := 0; j < s.Dim; j++ {
					b[i][j] += v * q[idx][j]
				}
			}
		}
		// Q = Xᵀ·B（vocab x dim），再正交化
		for i := range q {
			for j := 0; j < s.Dim; j++ {
				q[i][j] = 0
			}
		}
		for i, row := range rows {
			for k, idx := range row.Indices {
				v := row.Values[k]
				for j := 0; j < s.Dim; j++ {
					q[idx][j] += v * b[i][j]
				}
			}
		}
		orthonormalize(q)
	}

	s.components = q

	// 降维嵌入 = X·V，逐行 L2 归一化
	out := make([][]float64, docs)
	for i, row := range rows {
		emb := make([]float64, s.Dim)
		for k, idx := range row.Indices {
			v := row.Values[k]
			for j := 0; j < s.Dim; j++ {
				emb[j] += v * q[idx][j]
			}
		}
		normalizeVector(emb)
		out[i] = emb
	}
	return out, nil
}

// Transform 对新文本的稀疏向量应用已学习的投影（L2 归一化）。
func (s *SVDReducer) Transform(v SparseVector) []float64 {
	out := make([]float64, s.Dim)
	for k, idx := range v.Indices {
		if idx < 0 || idx >= len(s.components) {
			continue
		}
		val := v.Values[k]
		for j := 0; j < s.Dim; j++ {
			out[j] += val * s.components[idx][j]
		}
	}
	normalizeVector(out)
	return out
}

// Params 导出持久化参数。
func (s *SVDReducer) Params() *core.ReducerParams {
	return &core.ReducerParams{Dim: s.Dim, Components: s.components}
}

// ReducerFromParams 从持久化参数还原降维器（仅 Transform 可用）。
func ReducerFromParams(p *core.ReducerParams) (*SVDReducer, error) {
	if p == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeDataLoad, "nil reducer params")
	}
	if p.Dim <= 0 || len(p.Components) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeDataLoad,
			fmt.Sprintf("invalid reducer params: dim=%d components=%d", p.Dim, len(p.Components)))
	}
	for i, row := range p.Components {
		if len(row) != p.Dim {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeDataLoad,
				fmt.Sprintf("reducer component row %d has %d columns, want %d", i, len(row), p.Dim))
		}
	}
	return &SVDReducer{Dim: p.Dim, components: p.Components}, nil
}

// orthonormalize 对列向量做修正 Gram-Schmidt 正交化（原地）。
// 近零列保持为零，不影响其余列的正交性。
func orthonormalize(m [][]float64) {
	if len(m) == 0 {
		return
	}
	dim := len(m[0])
	for j := 0; j < dim; j++ {
		for k := 0; k < j; k++ {
			var dot float64
			for i := range m {
				dot += m[i][j] * m[i][k]
			}
			for i := range m {
				m[i][j] -= dot * m[i][k]
			}
		}
		var norm float64
		for i := range m {
			norm += m[i][j] * m[i][j]
		}
		norm = math.Sqrt(norm)
		if norm < 1e-12 {
			continue
		}
		for i := range m {
			m[i][j] /= norm
		}
	}
}

// normalizeVector 原地 L2 归一化，零向量保持不变。
func normalizeVector(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
}
