package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rushteam/moviekit/core"
)

// 工件各部分的 key 后缀。manifest 必须最后写入：
// 读者以 manifest 为入口，manifest 不存在即视为无模型，
// 部分写入的工件对读者永远不可见。
const (
	partManifest   = "manifest"
	partConfig     = "config"
	partMovies     = "movies"
	partEmbeddings = "embeddings"
	partTitleIndex = "title_index"
	partVectorizer = "vectorizer"
	partReducer    = "reducer"
)

// manifest 是工件的入口元数据，校验信息齐备后才指向数据部分。
type manifest struct {
	SchemaVersion int      `json:"schema_version"`
	Fingerprint   string   `json:"fingerprint"`
	Movies        int      `json:"movies"`
	Parts         []string `json:"parts"`
	CreatedAt     string   `json:"created_at"`
}

// ModelStore 负责模型工件在 Store 上的持久化与装载。
//
// 布局：工件拆为多个 KV 条目（config/movies/embeddings/...），
// 外加一个 manifest 条目。写入顺序为"数据部分 -> manifest"，
// 配合 FileStore 的原子 rename，崩溃只会留下无 manifest 的孤儿部分。
type ModelStore struct {
	store  core.Store
	prefix string
}

// NewModelStore 创建模型存储。prefix 区分同一 Store 上的多个模型。
func NewModelStore(s core.Store, prefix string) *ModelStore {
	if prefix == "" {
		prefix = "model"
	}
	return &ModelStore{store: s, prefix: prefix}
}

func (ms *ModelStore) key(part string) string {
	return ms.prefix + ":" + part
}

// Save 持久化完整工件。任何部分写入失败都不会产生可见的新 manifest。
func (ms *ModelStore) Save(ctx context.Context, artifact *core.ModelArtifact) error {
	if err := artifact.Validate(); err != nil {
		return err
	}

	parts := map[string]any{
		partConfig:     artifact.Config,
		partMovies:     artifact.Movies,
		partTitleIndex: artifact.TitleIndex,
		partVectorizer: artifact.Vectorizer,
	}
	if artifact.Reducer != nil {
		parts[partReducer] = artifact.Reducer
	}

	kvs := make(map[string][]byte, len(parts)+1)
	names := make([]string, 0, len(parts)+1)
	for name, v := range parts {
		data, err := json.Marshal(v)
		if err != nil {
			return core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError,
				fmt.Sprintf("marshal artifact part %s: %v", name, err))
		}
		kvs[ms.key(name)] = data
		names = append(names, name)
	}

	// 嵌入矩阵走二进制编码（float64 LE），体积小且 round-trip 精确
	embData, err := encodeMatrix(artifact.Embeddings)
	if err != nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError,
			fmt.Sprintf("encode embeddings: %v", err))
	}
	kvs[ms.key(partEmbeddings)] = embData
	names = append(names, partEmbeddings)

	if err := ms.store.BatchSet(ctx, kvs); err != nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError,
			fmt.Sprintf("write artifact parts: %v", err))
	}

	m := manifest{
		SchemaVersion: artifact.SchemaVersion,
		Fingerprint:   artifact.Fingerprint,
		Movies:        len(artifact.Movies),
		Parts:         names,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError,
			fmt.Sprintf("marshal manifest: %v", err))
	}
	if err := ms.store.Set(ctx, ms.key(partManifest), data); err != nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInternalError,
			fmt.Sprintf("write manifest: %v", err))
	}
	return nil
}

// Load 装载并校验完整工件。
// 模型缺失、部分缺失、反序列化失败、指纹不匹配都返回 DATA_LOAD 错误。
func (ms *ModelStore) Load(ctx context.Context) (*core.ModelArtifact, error) {
	data, err := ms.store.Get(ctx, ms.key(partManifest))
	if core.IsStoreNotFound(err) {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
			"model not found: train a model first")
	}
	if err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
			fmt.Sprintf("read manifest: %v", err))
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
			fmt.Sprintf("corrupt manifest: %v", err))
	}
	if m.SchemaVersion != core.ArtifactSchemaVersion {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
			fmt.Sprintf("artifact schema version %d, want %d", m.SchemaVersion, core.ArtifactSchemaVersion))
	}

	keys := make([]string, 0, len(m.Parts))
	for _, name := range m.Parts {
		keys = append(keys, ms.key(name))
	}
	kvs, err := ms.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
			fmt.Sprintf("read artifact parts: %v", err))
	}

	part := func(name string) ([]byte, error) {
		data, ok := kvs[ms.key(name)]
		if !ok {
			return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
				fmt.Sprintf("artifact part %s missing", name))
		}
		return data, nil
	}
	unmarshalPart := func(name string, v any) error {
		data, err := part(name)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, v); err != nil {
			return core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
				fmt.Sprintf("corrupt artifact part %s: %v", name, err))
		}
		return nil
	}

	artifact := &core.ModelArtifact{
		SchemaVersion: m.SchemaVersion,
		Fingerprint:   m.Fingerprint,
	}
	if err := unmarshalPart(partConfig, &artifact.Config); err != nil {
		return nil, err
	}
	if err := unmarshalPart(partMovies, &artifact.Movies); err != nil {
		return nil, err
	}
	embData, err := part(partEmbeddings)
	if err != nil {
		return nil, err
	}
	artifact.Embeddings, err = decodeMatrix(embData)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeDataLoad,
			fmt.Sprintf("corrupt artifact part %s: %v", partEmbeddings, err))
	}
	if err := unmarshalPart(partTitleIndex, &artifact.TitleIndex); err != nil {
		return nil, err
	}
	if err := unmarshalPart(partVectorizer, &artifact.Vectorizer); err != nil {
		return nil, err
	}
	for _, name := range m.Parts {
		if name == partReducer {
			if err := unmarshalPart(partReducer, &artifact.Reducer); err != nil {
				return nil, err
			}
		}
	}

	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}

// encodeMatrix 把嵌入矩阵编码为二进制：uint32 行数 + uint32 列数 + float64 LE 数据。
// 所有行必须等长。
func encodeMatrix(m [][]float64) ([]byte, error) {
	rows := len(m)
	cols := 0
	if rows > 0 {
		cols = len(m[0])
	}
	buf := make([]byte, 8+rows*cols*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cols))
	off := 8
	for i, row := range m {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(v))
			off += 8
		}
	}
	return buf, nil
}

// decodeMatrix 是 encodeMatrix 的逆操作。
func decodeMatrix(data []byte) ([][]float64, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("matrix data too short: %d bytes", len(data))
	}
	rows := int(binary.LittleEndian.Uint32(data[0:4]))
	cols := int(binary.LittleEndian.Uint32(data[4:8]))
	if want := 8 + rows*cols*8; len(data) != want {
		return nil, fmt.Errorf("matrix data %d bytes, want %d", len(data), want)
	}
	m := make([][]float64, rows)
	off := 8
	for i := range m {
		row := make([]float64, cols)
		for j := range row {
			row[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
			off += 8
		}
		m[i] = row
	}
	return m, nil
}

// Exists 判断是否存在可装载的模型（只看 manifest）。
func (ms *ModelStore) Exists(ctx context.Context) (bool, error) {
	_, err := ms.store.Get(ctx, ms.key(partManifest))
	if core.IsStoreNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete 删除工件的全部条目（manifest 先删，读者立即看不到模型）。
func (ms *ModelStore) Delete(ctx context.Context) error {
	if err := ms.store.Delete(ctx, ms.key(partManifest)); err != nil {
		return err
	}
	for _, name := range []string{partConfig, partMovies, partEmbeddings, partTitleIndex, partVectorizer, partReducer} {
		if err := ms.store.Delete(ctx, ms.key(name)); err != nil {
			return err
		}
	}
	return nil
}
