package registry

import (
	"fmt"
	"io"

	"hashdex/pkg/entry"
	"hashdex/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// 快照使用确定性编码：相同的注册表内容得到相同的字节
var encOptions = cbor.EncOptions{
	// 1. Map Key 排序
	Sort: cbor.SortCanonical,
	// 2. 时间为 Unix 整数，不带 Tag
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,
	// 3. 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 快照可能很大，但仍然限制嵌套深度
	MaxArrayElements: 1 << 24,
	MaxMapPairs:      1 << 20,
	MaxNestedLevels:  16,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

const snapshotVersion = 1

type snapshotFile struct {
	Version int              `cbor:"v"`
	Records []snapshotRecord `cbor:"r"`
}

type snapshotRecord struct {
	Hash       types.Hash        `cbor:"h"`
	ID         types.ID          `cbor:"i"`
	Name       string            `cbor:"n"`
	Path       string            `cbor:"p"`
	Size       int64             `cbor:"s"`
	Hashes     map[string]string `cbor:"d"`
	Duplicates []snapshotDup     `cbor:"u,omitempty"`
}

type snapshotDup struct {
	Name string `cbor:"n"`
	Path string `cbor:"p"`
}

// Snapshot 按哈希顺序写出全部规范条目的身份信息
func (m *Memory) Snapshot(w io.Writer) error {
	m.mu.Lock()
	file := snapshotFile{Version: snapshotVersion, Records: make([]snapshotRecord, 0, m.records.Len())}
	m.records.Scan(func(hash types.Hash, rec *record) bool {
		e := rec.canonical
		sr := snapshotRecord{
			Hash:   hash,
			ID:     e.ID,
			Name:   e.Name,
			Path:   e.Path,
			Size:   e.Size,
			Hashes: e.Hashes,
		}
		for _, d := range e.Duplicates {
			sr.Duplicates = append(sr.Duplicates, snapshotDup{Name: d.Name, Path: d.Path})
		}
		file.Records = append(file.Records, sr)
		return true
	})
	m.mu.Unlock()

	data, err := em.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode registry snapshot: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write registry snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot 用之前保存的快照预填充注册表
// 已存在的哈希保持不变 (先到先得)
func (m *Memory) LoadSnapshot(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read registry snapshot: %w", err)
	}
	var file snapshotFile
	if err := dm.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to decode registry snapshot: %w", err)
	}
	if file.Version != snapshotVersion {
		return 0, fmt.Errorf("unsupported registry snapshot version %d", file.Version)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	loaded := 0
	for _, sr := range file.Records {
		if sr.Hash.IsZero() {
			continue
		}
		if _, ok := m.records.Get(sr.Hash); ok {
			continue
		}
		e := &entry.IndexEntry{
			SchemaVersion: entry.SchemaVersion,
			ID:            sr.ID,
			Type:          types.TypeFile,
			Name:          sr.Name,
			Path:          sr.Path,
			Size:          sr.Size,
			Hashes:        sr.Hashes,
		}
		for _, d := range sr.Duplicates {
			e.AddDuplicate(entry.DuplicateRecord{Name: d.Name, Path: d.Path})
		}
		m.records.Set(sr.Hash, &record{canonical: e, seeded: true})
		loaded++
	}
	return loaded, nil
}
