package core

import (
	"math"
	"strconv"
	"strings"
)

// MovieRecord 是一条电影元数据记录，训练期构建后不可变。
// 可选字段缺失时保持零值（空串/空切片），特征构建时缺失字段不产生任何 token。
type MovieRecord struct {
	ID          int64    // 数据集内的电影 ID（TMDB ID）
	Title       string   // 原始标题
	ReleaseDate string   // 上映日期，"2006-01-02" 或仅年份
	Genres      []string // 有序类型列表
	Keywords    []string // 关键词集合
	Companies   []string // 制作公司（首个为主公司）
	Countries   []string // 制作国家
	Overview    string   // 剧情简介
	Tagline     string   // 宣传语
	VoteAverage float64  // 0-10
	VoteCount   int64    // >= 0
	Popularity  float64
	IMDBID      string // 外部库 ID（如 tt0137523）
	PosterPath  string // 海报引用（TMDB 相对路径）
}

// QualityScore 是评分与热度的复合指标：vote_average * ln(1 + vote_count)。
// 由输入字段确定性派生，不单独持久化。
func (m *MovieRecord) QualityScore() float64 {
	return m.VoteAverage * math.Log1p(float64(m.VoteCount))
}

// PrimaryCompany 返回主制作公司（列表首个），缺失时返回空串。
func (m *MovieRecord) PrimaryCompany() string {
	if len(m.Companies) == 0 {
		return ""
	}
	return m.Companies[0]
}

// Year 解析上映年份。支持 "2006-01-02"、"2006" 与 "02-01-2006" 三种形态。
func (m *MovieRecord) Year() (int, bool) {
	s := strings.TrimSpace(m.ReleaseDate)
	if len(s) < 4 {
		return 0, false
	}
	if i := strings.IndexByte(s, '-'); i == 4 {
		s = s[:4]
	} else if i >= 0 {
		// 日期在前的形态，年份取最后一段
		parts := strings.Split(s, "-")
		s = parts[len(parts)-1]
	} else {
		s = s[:4]
	}
	year, err := strconv.Atoi(s)
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

// HasGenre 判断电影是否包含指定类型（按归一化 token 比较）。
func (m *MovieRecord) HasGenre(genre string) bool {
	want := NormalizeToken(genre)
	for _, g := range m.Genres {
		if NormalizeToken(g) == want {
			return true
		}
	}
	return false
}

// NormalizeTitle 将标题归一化用于索引：小写 + 空白折叠。
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// NormalizeToken 将类别/公司等 token 归一化：小写 + 去空格。
// 与特征 soup 中的 token 形态保持一致，保证过滤与向量化口径统一。
func NormalizeToken(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
}

// MovieSummary 是返回给调用方的推荐条目。
type MovieSummary struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Production  string   `json:"production,omitempty"`
	Rating      float64  `json:"rating"`
	Votes       int64    `json:"votes"`
	Popularity  float64  `json:"popularity,omitempty"`
	Similarity  float64  `json:"similarity_score"`
	IMDBID      string   `json:"imdb_id,omitempty"`
	IMDBLink    string   `json:"imdb_link,omitempty"`
	PosterURL   string   `json:"poster_url,omitempty"`
}

// TMDB 图片服务前缀与 IMDB 链接前缀。
const (
	PosterBaseURL = "https://image.tmdb.org/t/p/w500"
	IMDBBaseURL   = "https://www.imdb.com/title/"
)

// Summarize 将 MovieRecord 转为对外的 MovieSummary。
func Summarize(m *MovieRecord, similarity float64) MovieSummary {
	s := MovieSummary{
		ID:          m.ID,
		Title:       m.Title,
		ReleaseDate: m.ReleaseDate,
		Genres:      m.Genres,
		Production:  m.PrimaryCompany(),
		Rating:      m.VoteAverage,
		Votes:       m.VoteCount,
		Popularity:  m.Popularity,
		Similarity:  similarity,
		IMDBID:      m.IMDBID,
	}
	if m.IMDBID != "" {
		s.IMDBLink = IMDBBaseURL + m.IMDBID
	}
	if m.PosterPath != "" {
		s.PosterURL = PosterBaseURL + m.PosterPath
	}
	return s
}
