package builder

import (
	"context"
	"fmt"

	"hashdex/pkg/entry"
	"hashdex/pkg/traversal"
	"hashdex/pkg/types"

	"golang.org/x/sync/errgroup"
)

// dir 构建目录条目
// 目录身份只取决于自身名称和父目录名称，与内容无关
func (w *walk) dir(ctx context.Context, c traversal.Child, parentName string, siblings []traversal.Child) (*entry.IndexEntry, error) {
	listing, err := w.lister.List(c.Path)
	if err != nil {
		w.itemError(c.Path, err)
		return nil, err
	}

	e := w.base(c, types.TypeDirectory, w.nameDigests(c.Name, parentName))
	e.Items = make([]*entry.IndexEntry, 0, len(listing.Candidates))
	w.attachSidecars(e, siblings)
	w.res.Dirs++

	// 1. 并行：兄弟文件的哈希和 exif 互相独立
	prepared, err := w.prepareAll(ctx, listing.Candidates)
	if err != nil {
		return e, err
	}

	// 2. 顺序：按排序后的顺序完成条目，保证去重的先后是确定的
	for i, child := range listing.Candidates {
		if err := ctx.Err(); err != nil {
			return e, err
		}

		var item *entry.IndexEntry
		if child.IsDir {
			item, err = w.dir(ctx, child, c.Name, listing.Siblings)
			if ctx.Err() != nil {
				if item != nil {
					e.Items = append(e.Items, item)
				}
				return e, ctx.Err()
			}
		} else {
			item, err = w.file(ctx, prepared[i], listing.Siblings)
		}
		if err != nil {
			// 重复或单项失败：跳过，不影响兄弟条目
			continue
		}
		e.Items = append(e.Items, item)
		e.Size += item.Size
	}

	w.reportOrphans(listing)
	return e, nil
}

// prepareAll 用有限的 worker 并发处理文件，结果按下标对齐
func (w *walk) prepareAll(ctx context.Context, children []traversal.Child) ([]prepared, error) {
	out := make([]prepared, len(children))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, w.b.cfg.Workers))
	for i, child := range children {
		if child.IsDir {
			continue
		}
		i, child := i, child
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = w.prepare(gctx, child)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hashing interrupted: %w", err)
	}
	return out, nil
}

// reportOrphans 没有任何候选条目认领的侧车文件既不是独立条目也不会被合并
// 重复文件的侧车也算被认领：它们留在磁盘上
func (w *walk) reportOrphans(listing *traversal.Listing) {
	claimed := make(map[string]struct{})
	for _, cand := range listing.Candidates {
		for _, sc := range w.b.classifier.Discover(cand.Name, listing.Siblings) {
			claimed[sc.Name] = struct{}{}
		}
	}
	for _, s := range listing.Siblings {
		if s.IsDir || !w.b.classifier.IsSidecar(s.Name) {
			continue
		}
		if _, ok := claimed[s.Name]; ok {
			continue
		}
		w.res.Orphans = append(w.res.Orphans, s.Path)
		w.b.logger.Warnw("sidecar without a primary item is not indexed", "path", s.Path)
	}
}
