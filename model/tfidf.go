// Package model 实现文本向量化（TF-IDF）与降维（截断 SVD）。
// 训练期 Fit 出参数，参数可持久化并在推理期重放出一致的变换。
package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rushteam/moviekit/core"
)

// 英文停用词表（向量化前剔除，仅作用于一元词）。
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "all": {},
	"am": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "because": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "but": {}, "by": {}, "can": {}, "did": {},
	"do": {}, "does": {}, "doing": {}, "down": {}, "during": {}, "each": {},
	"few": {}, "for": {}, "from": {}, "further": {}, "had": {}, "has": {},
	"have": {}, "having": {}, "he": {}, "her": {}, "here": {}, "hers": {},
	"him": {}, "his": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {},
	"is": {}, "it": {}, "its": {}, "just": {}, "me": {}, "more": {},
	"most": {}, "my": {}, "no": {}, "nor": {}, "not": {}, "now": {}, "of": {},
	"off": {}, "on": {}, "once": {}, "only": {}, "or": {}, "other": {},
	"our": {}, "out": {}, "over": {}, "own": {}, "same": {}, "she": {},
	"so": {}, "some": {}, "such": {}, "than": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "through": {}, "to": {}, "too": {}, "under": {},
	"until": {}, "up": {}, "very": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "while": {}, "who": {},
	"whom": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
	"yours": {},
}

// SparseVector 是稀疏向量，Indices 严格升序，与 Values 一一对应。
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dot 计算两个稀疏向量的点积（双指针归并）。
func (v SparseVector) Dot(other SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] < other.Indices[j]:
			i++
		case v.Indices[i] > other.Indices[j]:
			j++
		default:
			sum += v.Values[i] * other.Values[j]
			i++
			j++
		}
	}
	return sum
}

// Dense 展开为 dim 维稠密向量。
func (v SparseVector) Dense(dim int) []float64 {
	out := make([]float64, dim)
	for k, idx := range v.Indices {
		if idx >= 0 && idx < dim {
			out[idx] = v.Values[k]
		}
	}
	return out
}

// TFIDFVectorizer 把文本 soup 转为 L2 归一化的 TF-IDF 向量。
//
// 口径：
//   - n-gram 范围 [NGramMin, NGramMax]，n-gram 以空格连接作为词项
//   - 一元词剔除停用词，高阶 n-gram 不再单独过滤
//   - 平滑 IDF：ln((1+n)/(1+df)) + 1
//   - SublinearTF 时 tf = 1 + ln(count)
//   - 词表按字典序编号，同配置同语料产出确定性词表
//   - Transform 对未登录词静默忽略
type TFIDFVectorizer struct {
	NGramMin    int
	NGramMax    int
	MinDocFreq  int
	MaxDocRatio float64
	MaxFeatures int // 0 表示按语料规模自适应
	Sublinear   bool

	terms []string
	vocab map[string]int
	idf   []float64
}

// NewTFIDFVectorizer 按训练配置创建向量化器。
func NewTFIDFVectorizer(cfg core.TrainConfig) *TFIDFVectorizer {
	return &TFIDFVectorizer{
		NGramMin:    cfg.NGramMin,
		NGramMax:    cfg.NGramMax,
		MinDocFreq:  cfg.MinDocFreq,
		MaxDocRatio: cfg.MaxDocRatio,
		MaxFeatures: cfg.MaxFeatures,
		Sublinear:   cfg.SublinearTF,
	}
}

// VocabSize 返回词表大小（Fit 前为 0）。
func (t *TFIDFVectorizer) VocabSize() int { return len(t.terms) }

// autoMaxFeatures 按语料规模选择词表上限。
func autoMaxFeatures(docs int) int {
	switch {
	case docs < 10_000:
		return 10_000
	case docs < 100_000:
		return 15_000
	default:
		return 20_000
	}
}

// tokenize 产出一篇文档的全部词项（含重复）。
func (t *TFIDFVectorizer) tokenize(doc string) []string {
	words := strings.Fields(strings.ToLower(doc))
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; !stop {
			kept = append(kept, w)
		}
	}

	var terms []string
	for n := t.NGramMin; n <= t.NGramMax; n++ {
		for i := 0; i+n <= len(kept); i++ {
			terms = append(terms, strings.Join(kept[i:i+n], " "))
		}
	}
	return terms
}

// termCounts 统计一篇文档的词项频次。
func (t *TFIDFVectorizer) termCounts(doc string) map[string]int {
	counts := make(map[string]int)
	for _, term := range t.tokenize(doc) {
		counts[term]++
	}
	return counts
}

// Fit 在语料上学习词表与 IDF。
func (t *TFIDFVectorizer) Fit(docs []string) error {
	if len(docs) == 0 {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeConfiguration, "empty corpus")
	}

	// 文档频率与语料总频次
	df := make(map[string]int)
	total := make(map[string]int)
	for _, doc := range docs {
		counts := t.termCounts(doc)
		for term, c := range counts {
			df[term]++
			total[term] += c
		}
	}

	// minDF / maxDocRatio 过滤
	maxDF := int(t.MaxDocRatio * float64(len(docs)))
	candidates := make([]string, 0, len(df))
	for term, d := range df {
		if d < t.MinDocFreq || d > maxDF {
			continue
		}
		candidates = append(candidates, term)
	}
	if len(candidates) == 0 {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeConfiguration,
			"empty vocabulary after document-frequency pruning")
	}

	// 词表截断：按语料总频次取 TopN，平局按字典序
	limit := t.MaxFeatures
	if limit <= 0 {
		limit = autoMaxFeatures(len(docs))
	}
	if len(candidates) > limit {
		sort.Slice(candidates, func(i, j int) bool {
			if total[candidates[i]] != total[candidates[j]] {
				return total[candidates[i]] > total[candidates[j]]
			}
			return candidates[i] < candidates[j]
		})
		candidates = candidates[:limit]
	}

	// 词表按字典序编号
	sort.Strings(candidates)
	t.terms = candidates
	t.vocab = make(map[string]int, len(candidates))
	for i, term := range candidates {
		t.vocab[term] = i
	}

	// 平滑 IDF
	n := float64(len(docs))
	t.idf = make([]float64, len(candidates))
	for i, term := range candidates {
		t.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return nil
}

// Transform 把单篇文档变换为 L2 归一化的稀疏向量。
// 全部词项都未登录时返回零向量（空 Indices）。
func (t *TFIDFVectorizer) Transform(doc string) SparseVector {
	counts := t.termCounts(doc)

	indices := make([]int, 0, len(counts))
	for term := range counts {
		if idx, ok := t.vocab[term]; ok {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for k, idx := range indices {
		tf := float64(counts[t.terms[idx]])
		if t.Sublinear {
			tf = 1 + math.Log(tf)
		}
		v := tf * t.idf[idx]
		values[k] = v
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range values {
			values[k] /= norm
		}
	}
	return SparseVector{Indices: indices, Values: values}
}

// FitTransform 学习参数并变换整个语料。
func (t *TFIDFVectorizer) FitTransform(docs []string) ([]SparseVector, error) {
	if err := t.Fit(docs); err != nil {
		return nil, err
	}
	out := make([]SparseVector, len(docs))
	for i, doc := range docs {
		out[i] = t.Transform(doc)
	}
	return out, nil
}

// Params 导出持久化参数。
func (t *TFIDFVectorizer) Params() *core.VectorizerParams {
	return &core.VectorizerParams{
		Terms:     t.terms,
		IDF:       t.idf,
		NGramMin:  t.NGramMin,
		NGramMax:  t.NGramMax,
		Sublinear: t.Sublinear,
	}
}

// VectorizerFromParams 从持久化参数还原向量化器（仅 Transform 可用）。
func VectorizerFromParams(p *core.VectorizerParams) (*TFIDFVectorizer, error) {
	if p == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeDataLoad, "nil vectorizer params")
	}
	if len(p.Terms) != len(p.IDF) {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeDataLoad,
			fmt.Sprintf("vectorizer terms %d != idf %d", len(p.Terms), len(p.IDF)))
	}
	t := &TFIDFVectorizer{
		NGramMin:  p.NGramMin,
		NGramMax:  p.NGramMax,
		Sublinear: p.Sublinear,
		terms:     p.Terms,
		idf:       p.IDF,
		vocab:     make(map[string]int, len(p.Terms)),
	}
	for i, term := range p.Terms {
		t.vocab[term] = i
	}
	return t, nil
}
