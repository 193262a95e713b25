// Package entry 定义索引输出的数据模型
package entry

import (
	"encoding/json"
	"io"
	"time"

	"hashdex/pkg/hashing"
	"hashdex/pkg/types"
)

// SchemaVersion 输出格式版本，永远是 JSON 的第一个字段
const SchemaVersion = 2

// Timestamp 同时给出人类可读和机器可读的时间
type Timestamp struct {
	ISO    string `json:"iso"`
	UnixMS int64  `json:"unix_ms"`
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{
		ISO:    t.UTC().Format(time.RFC3339Nano),
		UnixMS: t.UnixMilli(),
	}
}

type Timestamps struct {
	Created  Timestamp `json:"created"`
	Modified Timestamp `json:"modified"`
}

type Attributes struct {
	StorageName string `json:"storage_name"`
	IsLink      bool   `json:"is_link"`
}

// MetadataAttributes 描述一条元数据贡献的来源和格式
type MetadataAttributes struct {
	Type       string   `json:"type"`                 // 例如 "json_metadata", "exiftool"
	Format     string   `json:"format"`               // json | text | base64 | lines
	Transforms []string `json:"transforms,omitempty"` // 例如 ["base64_encode"]
	SourcePath string   `json:"source_path,omitempty"`
	Error      string   `json:"error,omitempty"` // 降级贡献：解析失败的原因
}

// Metadata 是一条元数据贡献 (exif 提取结果、合并进来的侧车文件)
type Metadata struct {
	Origin     string             `json:"origin"` // sidecar | generated
	Name       string             `json:"name,omitempty"`
	Size       int64              `json:"size,omitempty"`
	Hashes     map[string]string  `json:"hashes,omitempty"`
	Timestamps *Timestamps        `json:"timestamps,omitempty"`
	Attributes MetadataAttributes `json:"attributes"`
	Data       any                `json:"data"`
}

const (
	OriginSidecar   = "sidecar"
	OriginGenerated = "generated"
)

// Degraded 标记为解析失败的贡献
func (m *Metadata) Degraded() bool {
	return m.Attributes.Error != ""
}

// DuplicateRecord 记录一个被吸收的重复文件的身份
type DuplicateRecord struct {
	Name       string            `json:"name"`
	Path       string            `json:"path"`
	Size       int64             `json:"size"`
	Timestamps Timestamps        `json:"timestamps"`
	Hashes     map[string]string `json:"hashes"`

	absPath string
}

// AbsPath 重复文件在磁盘上的位置 (不参与序列化)
func (d *DuplicateRecord) AbsPath() string { return d.absPath }

// SetAbsPath 记录磁盘位置
func (d *DuplicateRecord) SetAbsPath(p string) { d.absPath = p }

// IndexEntry 是一个文件系统条目的规范输出记录
// 字段顺序即序列化顺序，不要调整
type IndexEntry struct {
	SchemaVersion int               `json:"schema_version"`
	ID            types.ID          `json:"id"`
	IDAlgorithm   hashing.Algorithm `json:"id_algorithm"`
	Type          types.ItemType    `json:"type"`
	Name          string            `json:"name"`
	Extension     string            `json:"extension"`
	Path          string            `json:"path"`
	Size          int64             `json:"size"`
	Timestamps    Timestamps        `json:"timestamps"`
	Hashes        map[string]string `json:"hashes"`
	Attributes    Attributes        `json:"attributes"`

	// Items: 文件为 nil (序列化为 null)，展开的空目录为 [] (序列化为 [])
	Items      []*IndexEntry     `json:"items"`
	Metadata   []Metadata        `json:"metadata"`
	Duplicates []DuplicateRecord `json:"duplicates,omitempty"`

	absPath  string
	sidecars []SidecarRef
}

// SidecarRef 是与条目关联、仍留在磁盘上的侧车文件
type SidecarRef struct {
	Path   string // 磁盘路径
	Suffix string // 主文件名之后的部分，例如 doc.txt.json 相对 doc.txt 为 ".json"
	ByStem bool   // 是否通过去扩展名前缀关联 (video.description -> video.mp4)
	Queued bool   // 已进入删除队列
}

func (e *IndexEntry) IsDir() bool { return e.Type == types.TypeDirectory }

// AbsPath 条目在磁盘上的当前位置
func (e *IndexEntry) AbsPath() string { return e.absPath }

// SetAbsPath 在构建或重命名后更新磁盘位置
func (e *IndexEntry) SetAbsPath(p string) { e.absPath = p }

// Sidecars 关联的侧车文件 (只读副本)
func (e *IndexEntry) Sidecars() []SidecarRef {
	out := make([]SidecarRef, len(e.sidecars))
	copy(out, e.sidecars)
	return out
}

// AddSidecar 只由构建器和重命名器调用
func (e *IndexEntry) AddSidecar(ref SidecarRef) {
	e.sidecars = append(e.sidecars, ref)
}

// SetSidecarPath 重命名侧车文件后更新记录
func (e *IndexEntry) SetSidecarPath(i int, p string) {
	if i >= 0 && i < len(e.sidecars) {
		e.sidecars[i].Path = p
	}
}

// AddMetadata 追加一条元数据贡献
func (e *IndexEntry) AddMetadata(m Metadata) {
	e.Metadata = append(e.Metadata, m)
}

// AddDuplicate 追加一个重复文件记录 (只挂在规范条目上)
func (e *IndexEntry) AddDuplicate(d DuplicateRecord) {
	e.Duplicates = append(e.Duplicates, d)
}

// Walk 深度优先遍历，顺序与构建顺序一致；fn 返回 false 时停止
func (e *IndexEntry) Walk(fn func(*IndexEntry) bool) bool {
	if !fn(e) {
		return false
	}
	for _, child := range e.Items {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// WriteJSON 把条目树写成规范的 JSON 产物
func WriteJSON(w io.Writer, e *IndexEntry, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(e)
}
