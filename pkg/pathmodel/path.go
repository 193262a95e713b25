// Package pathmodel 把文件系统路径拆解为名称、父目录、扩展名和存储名
// 所有函数都是纯函数，不做任何 I/O
package pathmodel

import (
	"path/filepath"
	"regexp"
	"strings"

	"hashdex/pkg/types"
)

// 只有短的字母数字后缀才算扩展名，"report.final draft" 这种不算
var extPattern = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

// Components 是一个路径解析后的各个组成部分
type Components struct {
	Path       string // 清洗后的绝对/相对路径 (原样的分隔符)
	Name       string // base name，例如 "photo.jpg"
	Stem       string // 去掉扩展名的部分，例如 "photo"
	Extension  string // 小写、无点，例如 "jpg"；没有则为 ""
	Parent     string // 父目录路径
	ParentName string // 父目录的 base name
}

// Split 解析路径
func Split(path string) Components {
	clean := filepath.Clean(path)
	name := filepath.Base(clean)
	parent := filepath.Dir(clean)

	ext := Extension(name)
	stem := name
	if ext != "" {
		stem = name[:len(name)-len(ext)-1]
	}

	return Components{
		Path:       clean,
		Name:       name,
		Stem:       stem,
		Extension:  ext,
		Parent:     parent,
		ParentName: baseName(parent),
	}
}

// Extension 返回小写且不带点的扩展名
// ".bashrc" 这种只有前导点的隐藏文件没有扩展名
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	ext := strings.ToLower(name[idx+1:])
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// StorageName 生成内容寻址的文件名: {id}{.ext}
func StorageName(id types.ID, ext string) string {
	if ext == "" {
		return id.String()
	}
	return id.String() + "." + ext
}

// CleanPath 统一成 "/" 分隔的干净路径 (用于输出和匹配)
func CleanPath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

// Rel 返回相对 root 的 "/" 分隔路径；失败时退回到 base name
func Rel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return CleanPath(rel)
}

// baseName 处理根目录等特殊情况 ("/" 或 "C:\" 的 base 视为空字符串)
func baseName(p string) string {
	b := filepath.Base(p)
	if b == string(filepath.Separator) || b == "." || strings.HasSuffix(b, ":"+string(filepath.Separator)) {
		return ""
	}
	return b
}
