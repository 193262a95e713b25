// Package registry 维护 内容哈希 -> 规范条目 的映射，判定重复文件
package registry

import (
	"context"

	"hashdex/pkg/entry"
	"hashdex/pkg/types"
)

// Registry 去重注册表
// 哈希一律使用去重键算法 (sha256)
// 先出现者为规范条目：Register 对已存在的哈希是空操作
// Adopt 用于之前运行留下的规范条目再次被遍历到 (同一路径)：本次的条目取而代之
type Registry interface {
	Lookup(ctx context.Context, hash types.Hash) (*entry.IndexEntry, bool, error)
	Register(ctx context.Context, hash types.Hash, e *entry.IndexEntry) error
	Adopt(ctx context.Context, hash types.Hash, e *entry.IndexEntry) error
	RecordDuplicate(ctx context.Context, hash types.Hash, d entry.DuplicateRecord) error
}
