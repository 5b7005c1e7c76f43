package core

import (
	"fmt"
	"sort"
)

// ArtifactSchemaVersion 是工件布局版本号，布局不兼容变更时递增。
// Recommender 拒绝加载版本不匹配的工件。
const ArtifactSchemaVersion = 1

// VectorizerParams 是持久化的 TF-IDF 模型参数，
// 足以对新文本应用与训练期完全一致的变换（未登录词静默忽略）。
type VectorizerParams struct {
	Terms     []string  `json:"terms"` // 词表，下标即向量维度
	IDF       []float64 `json:"idf"`
	NGramMin  int       `json:"ngram_min"`
	NGramMax  int       `json:"ngram_max"`
	Sublinear bool      `json:"sublinear"`
}

// ReducerParams 是持久化的 SVD 降维参数。
// Components 为词表维 x 降维维的投影矩阵，新文本降维 = 稀疏向量点乘各列。
type ReducerParams struct {
	Dim        int         `json:"dim"`
	Components [][]float64 `json:"components"`
}

// ModelArtifact 是训练产物的完整内存形态：
// 元数据表、嵌入矩阵、标题索引、向量化/降维参数与训练配置。
// 由 Trainer 创建，ModelStore 原子持久化，Recommender 只读加载。
type ModelArtifact struct {
	SchemaVersion int
	Fingerprint   string // Config 的指纹，持久化后用于完整性校验
	Config        TrainConfig

	Movies     []MovieRecord
	Embeddings [][]float64    // 每行 L2 归一化，余弦相似度退化为点积
	TitleIndex map[string]int // 归一化标题 -> 行号，每个标题唯一

	Vectorizer *VectorizerParams
	Reducer    *ReducerParams // 未启用降维时为 nil
}

// Validate 校验工件结构完整性与指纹一致性。
// 任何不一致都视为损坏，返回 DATA_LOAD 错误而非暴露部分数据。
func (a *ModelArtifact) Validate() error {
	if a.SchemaVersion != ArtifactSchemaVersion {
		return NewDomainError(ModuleStore, ErrorCodeDataLoad,
			fmt.Sprintf("artifact schema version %d, want %d", a.SchemaVersion, ArtifactSchemaVersion))
	}
	if a.Fingerprint != a.Config.Fingerprint() {
		return NewDomainError(ModuleStore, ErrorCodeDataLoad, "artifact fingerprint does not match config")
	}
	if len(a.Movies) == 0 {
		return NewDomainError(ModuleStore, ErrorCodeDataLoad, "artifact has no movies")
	}
	if len(a.Embeddings) != len(a.Movies) {
		return NewDomainError(ModuleStore, ErrorCodeDataLoad,
			fmt.Sprintf("embeddings rows %d != movies %d", len(a.Embeddings), len(a.Movies)))
	}
	if len(a.TitleIndex) == 0 {
		return NewDomainError(ModuleStore, ErrorCodeDataLoad, "artifact has empty title index")
	}
	for title, row := range a.TitleIndex {
		if row < 0 || row >= len(a.Movies) {
			return NewDomainError(ModuleStore, ErrorCodeDataLoad,
				fmt.Sprintf("title index entry %q points to row %d out of range", title, row))
		}
	}
	return nil
}

// BuildTitleIndex 构建归一化标题到行号的映射。
// 重复标题时投票数更高的记录胜出，落选记录被丢弃而非合并。
func BuildTitleIndex(movies []MovieRecord) map[string]int {
	index := make(map[string]int, len(movies))
	for row := range movies {
		key := NormalizeTitle(movies[row].Title)
		if key == "" {
			continue
		}
		if old, ok := index[key]; ok {
			if movies[old].VoteCount >= movies[row].VoteCount {
				continue
			}
		}
		index[key] = row
	}
	return index
}

// SortedTitles 返回索引中所有归一化标题（升序），用于确定性遍历。
func (a *ModelArtifact) SortedTitles() []string {
	titles := make([]string, 0, len(a.TitleIndex))
	for t := range a.TitleIndex {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}
