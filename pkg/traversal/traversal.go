// Package traversal 列出目录的直接子项，并依次应用两层过滤
package traversal

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"hashdex/pkg/pathmodel"
)

// Excluder 是 Layer-1 谓词：索引产物和配置的排除规则
// isDir 让 "build/" 这种只匹配目录的规则生效
type Excluder interface {
	Matches(relPath string, isDir bool) bool
}

// SidecarFilter 是 Layer-2 谓词：名称是否匹配侧车文件模式
type SidecarFilter interface {
	IsSidecar(name string) bool
}

// Child 是目录中的一个直接子项 (Lstat 语义，不跟随链接)
type Child struct {
	Name   string
	Path   string
	Rel    string // 相对遍历根目录的 "/" 路径
	Info   fs.FileInfo
	IsDir  bool
	IsLink bool
}

// Listing 同一份目录列表的两个视图
type Listing struct {
	// Siblings 应用 Layer-1 之后的全部子项，侧车发现总是看这个列表
	Siblings []Child
	// Candidates 在 Siblings 基础上去掉侧车文件，只有它们会成为独立条目
	Candidates []Child
}

// Lister 绑定了根目录和两层过滤器
type Lister struct {
	root     string
	exclude  Excluder
	sidecars SidecarFilter
}

func NewLister(root string, exclude Excluder, sidecars SidecarFilter) *Lister {
	return &Lister{root: root, exclude: exclude, sidecars: sidecars}
}

// List 读取 dir 的直接子项
// 顺序：按名称字节序排序，与区域设置无关，保证重复运行输出一致
func (l *Lister) List(dir string) (*Listing, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	listing := &Listing{
		Siblings:   make([]Child, 0, len(dirEntries)),
		Candidates: make([]Child, 0, len(dirEntries)),
	}

	for _, de := range dirEntries {
		path := filepath.Join(dir, de.Name())
		rel := pathmodel.Rel(l.root, path)

		// Layer-1：排除的产物直接消失，下游永远看不到
		if l.exclude != nil && l.exclude.Matches(rel, de.IsDir()) {
			continue
		}

		info, err := os.Lstat(path)
		if err != nil {
			// 列出之后被删除等竞争情况：跳过这一项
			continue
		}

		child := Child{
			Name:   de.Name(),
			Path:   path,
			Rel:    rel,
			Info:   info,
			IsLink: info.Mode()&fs.ModeSymlink != 0,
		}
		child.IsDir = info.IsDir()
		listing.Siblings = append(listing.Siblings, child)
	}

	sort.Slice(listing.Siblings, func(i, j int) bool {
		return listing.Siblings[i].Name < listing.Siblings[j].Name
	})

	for _, c := range listing.Siblings {
		// Layer-2：侧车文件只通过合并流程被消费 (目录永远不是侧车)
		if !c.IsDir && l.sidecars != nil && l.sidecars.IsSidecar(c.Name) {
			continue
		}
		listing.Candidates = append(listing.Candidates, c)
	}

	return listing, nil
}

// Stat 以 Lstat 语义构造单个路径的 Child (用于遍历根)
func (l *Lister) Stat(path string) (Child, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Child{}, err
	}
	return Child{
		Name:   filepath.Base(path),
		Path:   path,
		Rel:    pathmodel.Rel(l.root, path),
		Info:   info,
		IsDir:  info.IsDir(),
		IsLink: info.Mode()&fs.ModeSymlink != 0,
	}, nil
}
