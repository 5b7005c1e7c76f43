// Package dataset 负责训练输入的加载：把表格数据集（CSV）解析为强类型 MovieRecord。
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rushteam/moviekit/core"
)

// 必需列；其余列（companies/countries/overview/tagline/votes 等）缺失时对应字段保持零值。
var requiredColumns = []string{"title", "genres", "keywords"}

// LoadCSV 从 CSV 文件加载电影记录。
func LoadCSV(path string) ([]core.MovieRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read 从 reader 解析 CSV 数据集。第一行必须是表头。
//
// 列表类列（genres/keywords/production_companies/production_countries）兼容三种形态：
//   - JSON 数组对象：[{"id": 28, "name": "Action"}]（含 Python 单引号变体）
//   - JSON 字符串数组：["Action", "Thriller"]
//   - 逗号分隔文本：Action, Thriller
//
// 带 status 列的数据集只保留 Released 记录。
func Read(r io.Reader) ([]core.MovieRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeConfiguration,
				fmt.Sprintf("dataset missing required column %q", name))
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	_, hasStatus := cols["status"]

	var movies []core.MovieRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 坏行跳过，不中断整体加载
			continue
		}

		title := field(row, "title")
		if title == "" {
			continue
		}
		if hasStatus && field(row, "status") != "Released" {
			continue
		}

		m := core.MovieRecord{
			Title:       title,
			ReleaseDate: field(row, "release_date"),
			Genres:      ParseList(field(row, "genres")),
			Keywords:    ParseList(field(row, "keywords")),
			Companies:   ParseList(field(row, "production_companies")),
			Countries:   ParseList(field(row, "production_countries")),
			Overview:    field(row, "overview"),
			Tagline:     field(row, "tagline"),
			PosterPath:  field(row, "poster_path"),
		}
		m.ID, _ = strconv.ParseInt(field(row, "id"), 10, 64)
		m.VoteAverage, _ = strconv.ParseFloat(field(row, "vote_average"), 64)
		m.VoteCount, _ = strconv.ParseInt(field(row, "vote_count"), 10, 64)
		m.Popularity, _ = strconv.ParseFloat(field(row, "popularity"), 64)

		// 部分数据集用 tconst 列承载 IMDB ID
		m.IMDBID = field(row, "imdb_id")
		if m.IMDBID == "" {
			m.IMDBID = field(row, "tconst")
		}

		movies = append(movies, m)
	}

	return movies, nil
}

var namePattern = regexp.MustCompile(`['"]name['"]\s*:\s*(?:'([^']*)'|"([^"]*)")`)

// ParseList 解析列表类列的单元格值，见 Read 的形态说明。
func ParseList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil
	}

	if strings.HasPrefix(s, "[") {
		// JSON 数组：对象取 name 字段，字符串直接保留
		var raw []any
		if err := json.Unmarshal([]byte(s), &raw); err == nil {
			out := make([]string, 0, len(raw))
			for _, e := range raw {
				switch v := e.(type) {
				case string:
					if t := strings.TrimSpace(v); t != "" {
						out = append(out, t)
					}
				case map[string]any:
					if name, ok := v["name"].(string); ok && name != "" {
						out = append(out, name)
					}
				}
			}
			return out
		}
		// Python 字面量变体（单引号 dict）：正则提取 name
		if matches := namePattern.FindAllStringSubmatch(s, -1); len(matches) > 0 {
			out := make([]string, 0, len(matches))
			for _, m := range matches {
				name := m[1]
				if name == "" {
					name = m[2]
				}
				if name != "" {
					out = append(out, name)
				}
			}
			return out
		}
	}

	// 逗号分隔回退
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
