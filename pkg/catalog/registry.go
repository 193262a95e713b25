package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"hashdex/pkg/entry"
	"hashdex/pkg/hashing"
	"hashdex/pkg/registry"
	"hashdex/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// Registry 持久化注册表
// 本次运行内的规范条目仍由内存注册表持有 (重复记录要挂到条目树上)，
// 数据库只补充之前运行留下的规范文件
type Registry struct {
	db    *DB
	run   *registry.Memory
	runID string
}

var _ registry.Registry = (*Registry)(nil)

func NewRegistry(db *DB, runID string) *Registry {
	return &Registry{db: db, run: registry.NewMemory(), runID: runID}
}

// Lookup 先查本次运行，再查数据库
func (r *Registry) Lookup(ctx context.Context, hash types.Hash) (*entry.IndexEntry, bool, error) {
	if e, ok, err := r.run.Lookup(ctx, hash); err != nil || ok {
		return e, ok, err
	}

	// 未命中是常态，用 Find 而不是 First，避免 gorm 把 record not found 记成错误
	var row CanonicalFile
	tx := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", hash.String()).
		Limit(1).
		Find(&row)
	if tx.Error != nil {
		return nil, false, fmt.Errorf("catalog lookup failed: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, false, nil
	}

	e, err := row.toEntry()
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// Register 幂等写入，已存在的哈希保持第一次的记录
func (r *Registry) Register(ctx context.Context, hash types.Hash, e *entry.IndexEntry) error {
	if err := r.run.Register(ctx, hash, e); err != nil {
		return err
	}

	hashesJSON, err := json.Marshal(e.Hashes)
	if err != nil {
		return fmt.Errorf("failed to marshal hashes: %w", err)
	}
	row := CanonicalFile{
		Hash:      hash.String(),
		EntryID:   e.ID.String(),
		Name:      e.Name,
		Path:      e.Path,
		Size:      e.Size,
		Extension: e.Extension,
		Hashes:    datatypes.JSON(hashesJSON),
		RunID:     r.runID,
	}
	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to register canonical file: %w", err)
	}
	return nil
}

// Adopt 数据库中的规范文件在本次运行中再次出现：条目归入本次运行，数据库行改记本次的 run id
func (r *Registry) Adopt(ctx context.Context, hash types.Hash, e *entry.IndexEntry) error {
	if err := r.run.Adopt(ctx, hash, e); err != nil {
		return err
	}
	err := r.db.GetConn().WithContext(ctx).
		Model(&CanonicalFile{}).
		Where("hash = ?", hash.String()).
		Update("run_id", r.runID).Error
	if err != nil {
		return fmt.Errorf("failed to adopt canonical file: %w", err)
	}
	return nil
}

// RecordDuplicate 规范条目属于本次运行时同时挂到条目上
func (r *Registry) RecordDuplicate(ctx context.Context, hash types.Hash, d entry.DuplicateRecord) error {
	_, inRun, err := r.run.Lookup(ctx, hash)
	if err != nil {
		return err
	}
	if inRun {
		if err := r.run.RecordDuplicate(ctx, hash, d); err != nil {
			return err
		}
	}

	row := DuplicateFile{
		Hash:       hash.String(),
		Name:       d.Name,
		Path:       d.Path,
		Size:       d.Size,
		ModifiedMS: d.Timestamps.Modified.UnixMS,
		RunID:      r.runID,
	}
	if err := r.db.GetConn().WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record duplicate: %w", err)
	}
	return nil
}

// Relocate 重命名之后把本次运行的规范文件的新路径写回数据库
// 下一次运行据此认出同一个文件
func (r *Registry) Relocate(ctx context.Context, root *entry.IndexEntry) error {
	var firstErr error
	root.Walk(func(e *entry.IndexEntry) bool {
		if e.IsDir() || e.Attributes.IsLink {
			return true
		}
		hash := types.Hash(e.Hashes[string(hashing.DedupKey)])
		canonical, ok, err := r.run.Lookup(ctx, hash)
		if err != nil || !ok || canonical != e {
			return true
		}
		err = r.db.GetConn().WithContext(ctx).
			Model(&CanonicalFile{}).
			Where("hash = ?", hash.String()).
			Update("path", e.Path).Error
		if err != nil {
			firstErr = fmt.Errorf("failed to relocate canonical file: %w", err)
			return false
		}
		return true
	})
	return firstErr
}

// Duplicates 某个哈希下记录过的全部重复文件 (按写入顺序)
func (r *Registry) Duplicates(ctx context.Context, hash types.Hash) ([]DuplicateFile, error) {
	var rows []DuplicateFile
	err := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", hash.String()).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Stats 数据库中的规范文件数和重复文件数
func (r *Registry) Stats(ctx context.Context) (canonical, duplicates int64, err error) {
	conn := r.db.GetConn().WithContext(ctx)
	if err = conn.Model(&CanonicalFile{}).Count(&canonical).Error; err != nil {
		return 0, 0, err
	}
	if err = conn.Model(&DuplicateFile{}).Count(&duplicates).Error; err != nil {
		return 0, 0, err
	}
	return canonical, duplicates, nil
}

func (row *CanonicalFile) toEntry() (*entry.IndexEntry, error) {
	var hashes map[string]string
	if len(row.Hashes) > 0 {
		if err := json.Unmarshal(row.Hashes, &hashes); err != nil {
			return nil, fmt.Errorf("corrupt hashes for %s: %w", row.Hash, err)
		}
	}
	return &entry.IndexEntry{
		SchemaVersion: entry.SchemaVersion,
		ID:            types.ID(row.EntryID),
		Type:          types.TypeFile,
		Name:          row.Name,
		Extension:     row.Extension,
		Path:          row.Path,
		Size:          row.Size,
		Hashes:        hashes,
	}, nil
}
