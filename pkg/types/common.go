// pkg/types/common.go
package types

import "strings"

// Hash 代表一个摘要值 (大写 Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }

// IsValid 只做字符集检查，长度取决于算法
func (h Hash) IsValid() bool {
	if h == "" {
		return false
	}
	for _, r := range string(h) {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return false
		}
	}
	return true
}

// ItemType 区分条目是文件还是目录
type ItemType string

const (
	TypeFile      ItemType = "file"
	TypeDirectory ItemType = "directory"
)

// 类型前缀：y = 文件，x = 目录
const (
	FilePrefix      = "y"
	DirectoryPrefix = "x"
)

// ID 是带类型前缀的 Hash，例如 "yA1B2..."
type ID string

// NewID 根据条目类型拼接前缀
func NewID(t ItemType, h Hash) ID {
	if t == TypeDirectory {
		return ID(DirectoryPrefix + string(h))
	}
	return ID(FilePrefix + string(h))
}

func (id ID) String() string { return string(id) }
func (id ID) IsZero() bool   { return id == "" }

// Type 根据前缀还原条目类型，未知前缀返回空
func (id ID) Type() ItemType {
	switch {
	case strings.HasPrefix(string(id), FilePrefix):
		return TypeFile
	case strings.HasPrefix(string(id), DirectoryPrefix):
		return TypeDirectory
	default:
		return ""
	}
}

// Hash 去掉类型前缀
func (id ID) Hash() Hash {
	if id.Type() == "" {
		return Hash(id)
	}
	return Hash(id[1:])
}
