package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QualityTier 是语料质量档位，按投票数划分。
type QualityTier string

const (
	TierLow    QualityTier = "low"    // 5+ 票
	TierMedium QualityTier = "medium" // 50+ 票（推荐）
	TierHigh   QualityTier = "high"   // 500+ 票（仅高质量）
)

// MinVotes 返回档位对应的最小投票数阈值，未知档位按 medium 处理。
func (t QualityTier) MinVotes() int64 {
	switch t {
	case TierLow:
		return 5
	case TierHigh:
		return 500
	default:
		return 50
	}
}

// SoupConfig 是特征 soup 的加权方案。权重通过 token 重复次数表达，
// 与具体向量化实现解耦（换一种 Vectorizer 权重口径不变）。
type SoupConfig struct {
	GenreWeight    int `yaml:"genre_weight" json:"genre_weight"`       // 类型 token 重复次数
	CompanyWeight  int `yaml:"company_weight" json:"company_weight"`   // 主公司 token 重复次数
	MaxKeywords    int `yaml:"max_keywords" json:"max_keywords"`       // 关键词截断
	MaxCompanies   int `yaml:"max_companies" json:"max_companies"`     // 公司截断
	MaxCountries   int `yaml:"max_countries" json:"max_countries"`     // 国家截断
	OverviewWords  int `yaml:"overview_words" json:"overview_words"`   // 简介取前 N 词
	MinSoupLength  int `yaml:"min_soup_length" json:"min_soup_length"` // soup 最短长度，过短的记录被剔除
}

// TrainConfig 是一次训练的完整配置。其指纹参与工件版本化：
// 配置变更 => 指纹变更 => 旧工件被整体替换，而非原地修补。
type TrainConfig struct {
	Tier      QualityTier `yaml:"quality_tier" json:"quality_tier"`
	MaxMovies int         `yaml:"max_movies" json:"max_movies"` // 0 表示不设上限
	Soup      SoupConfig  `yaml:"soup" json:"soup"`

	// TF-IDF 参数
	NGramMin    int     `yaml:"ngram_min" json:"ngram_min"`
	NGramMax    int     `yaml:"ngram_max" json:"ngram_max"`
	MinDocFreq  int     `yaml:"min_doc_freq" json:"min_doc_freq"`   // 词最少出现的文档数
	MaxDocRatio float64 `yaml:"max_doc_ratio" json:"max_doc_ratio"` // 词最多出现的文档比例
	MaxFeatures int     `yaml:"max_features" json:"max_features"`   // 0 表示按语料规模自适应
	SublinearTF bool    `yaml:"sublinear_tf" json:"sublinear_tf"`   // TF 取对数缩放

	// ReduceDim > 0 时启用 SVD 降维到该维度；必须小于语料数和词表大小。
	ReduceDim int `yaml:"reduce_dim" json:"reduce_dim"`

	// PrecomputeTopK > 0 时训练期预计算每部电影的 TopK 相似表；
	// 0 表示查询期按需打分（矩阵-向量乘），避免 O(N^2) 全量矩阵。
	PrecomputeTopK int `yaml:"precompute_topk" json:"precompute_topk"`

	// FuzzyThreshold 是模糊标题匹配的最低接受分数（0-1）。
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
}

// DefaultTrainConfig 返回与原始数据集规模匹配的默认配置。
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Tier: TierMedium,
		Soup: SoupConfig{
			GenreWeight:   2,
			CompanyWeight: 2,
			MaxKeywords:   15,
			MaxCompanies:  3,
			MaxCountries:  2,
			OverviewWords: 50,
			MinSoupLength: 20,
		},
		NGramMin:       1,
		NGramMax:       2,
		MinDocFreq:     3,
		MaxDocRatio:    0.7,
		SublinearTF:    true,
		FuzzyThreshold: 0.6,
	}
}

// LoadTrainConfig 从 YAML 文件加载训练配置（基于默认值覆盖）。
func LoadTrainConfig(path string) (TrainConfig, error) {
	cfg := DefaultTrainConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Validate 校验训练参数。配置错误在训练期抛出，不应到达查询期。
func (c *TrainConfig) Validate() error {
	switch c.Tier {
	case TierLow, TierMedium, TierHigh, "":
	default:
		return NewDomainError(ModuleTrainer, ErrorCodeConfiguration,
			fmt.Sprintf("unknown quality tier %q (want low/medium/high)", c.Tier))
	}
	if c.MaxMovies < 0 {
		return NewDomainError(ModuleTrainer, ErrorCodeConfiguration, "max_movies must be >= 0")
	}
	if c.NGramMin < 1 || c.NGramMax < c.NGramMin {
		return NewDomainError(ModuleTrainer, ErrorCodeConfiguration,
			fmt.Sprintf("invalid ngram range [%d, %d]", c.NGramMin, c.NGramMax))
	}
	if c.MinDocFreq < 1 {
		return NewDomainError(ModuleTrainer, ErrorCodeConfiguration, "min_doc_freq must be >= 1")
	}
	if c.MaxDocRatio <= 0 || c.MaxDocRatio > 1 {
		return NewDomainError(ModuleTrainer, ErrorCodeConfiguration, "max_doc_ratio must be in (0, 1]")
	}
	if c.ReduceDim < 0 {
		return NewDomainError(ModuleTrainer, ErrorCodeConfiguration, "reduce_dim must be >= 0")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return NewDomainError(ModuleTrainer, ErrorCodeConfiguration, "fuzzy_threshold must be in [0, 1]")
	}
	return nil
}

// Fingerprint 计算配置指纹：规范化 JSON 的 SHA-256。
// 工件加载时据此校验配置与数据是否匹配。
func (c *TrainConfig) Fingerprint() string {
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
