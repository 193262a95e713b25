package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// CanonicalFile 某个内容哈希第一次出现时的文件
type CanonicalFile struct {
	// Hash 去重键 (sha256)，主键
	Hash string `gorm:"primaryKey;type:char(64)"`

	EntryID   string `gorm:"index;type:varchar(200);not null"`
	Name      string `gorm:"type:text"`
	Path      string `gorm:"type:text"`
	Size      int64
	Extension string `gorm:"type:varchar(16)"`

	// Hashes 全部算法的摘要 {"md5": "...", "sha256": "..."}
	Hashes datatypes.JSON

	RunID     string `gorm:"index;type:varchar(64)"`
	CreatedAt time.Time
}

func (CanonicalFile) TableName() string {
	return "canonical_files"
}

// DuplicateFile 被吸收到规范文件下的重复文件
type DuplicateFile struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Hash string `gorm:"index;type:char(64);not null"`
	Name string `gorm:"type:text"`
	Path string `gorm:"type:text"`
	Size int64

	ModifiedMS int64
	RunID      string `gorm:"index;type:varchar(64)"`
	CreatedAt  time.Time
}

func (DuplicateFile) TableName() string {
	return "duplicate_files"
}
