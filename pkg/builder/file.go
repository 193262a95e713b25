package builder

import (
	"context"
	"errors"
	"fmt"

	"hashdex/pkg/entry"
	"hashdex/pkg/exif"
	"hashdex/pkg/hashing"
	"hashdex/pkg/pathmodel"
	"hashdex/pkg/traversal"
	"hashdex/pkg/types"
)

// prepared 一个文件可并行计算的部分 (哈希、exif)
type prepared struct {
	child   traversal.Child
	digests hashing.Digests
	exif    map[string]any
	err     error
}

// prepare 只读文件，不触碰共享状态以外的任何东西，可以并发调用
func (w *walk) prepare(ctx context.Context, c traversal.Child) prepared {
	p := prepared{child: c}
	if c.IsLink {
		return p
	}

	p.digests, p.err = hashing.HashFile(c.Path, w.b.cfg.Algorithms)
	if p.err != nil {
		return p
	}
	p.exif = w.extract(ctx, c.Path)
	return p
}

// extract 二进制缺失只记录一次，之后整个运行都跳过
func (w *walk) extract(ctx context.Context, path string) map[string]any {
	b := w.b
	if b.exifOff.Load() {
		return nil
	}
	data, err := b.extractor.Extract(ctx, path)
	switch {
	case errors.Is(err, exif.ErrUnavailable):
		b.exifOff.Store(true)
		b.exifOnce.Do(func() {
			b.logger.Warnw("metadata extractor unavailable, skipping for this run", "error", err)
		})
		return nil
	case err != nil:
		if ctx.Err() == nil {
			b.logger.Warnw("metadata extraction failed", "path", path, "error", err)
		}
		return nil
	}
	return data
}

// file 顺序地完成一个文件条目：身份、侧车、去重
func (w *walk) file(ctx context.Context, p prepared, siblings []traversal.Child) (*entry.IndexEntry, error) {
	c := p.child
	if p.err != nil {
		w.itemError(c.Path, p.err)
		return nil, p.err
	}

	// 1. 符号链接：按名称确定身份，不跟随
	if c.IsLink {
		parentName := pathmodel.Split(c.Path).ParentName
		e := w.base(c, types.TypeFile, w.nameDigests(c.Name, parentName))
		e.Size = c.Info.Size()
		w.res.Files++
		return e, nil
	}

	e := w.base(c, types.TypeFile, p.digests)
	e.Size = c.Info.Size()

	// 2. 去重：先到者为规范条目
	key := p.digests.Get(hashing.DedupKey)
	canonical, found, err := w.b.registry.Lookup(ctx, key)
	if err != nil {
		w.itemError(c.Path, err)
		return nil, err
	}
	// 之前运行留下的规范条目就是这个文件本身：重新成为本次运行的规范条目
	adopt := found && canonical.Path == e.Path
	if found && !adopt {
		dup := entry.DuplicateRecord{
			Name:       e.Name,
			Path:       e.Path,
			Size:       e.Size,
			Timestamps: e.Timestamps,
			Hashes:     e.Hashes,
		}
		dup.SetAbsPath(c.Path)
		if err := w.b.registry.RecordDuplicate(ctx, key, dup); err != nil {
			w.itemError(c.Path, err)
			return nil, err
		}
		w.res.Duplicates++
		w.b.logger.Infow("duplicate absorbed", "path", c.Path, "canonical", canonical.Path)
		return nil, ErrAbsorbed
	}

	// 3. 元数据：exif 在前，侧车按发现顺序在后
	if p.exif != nil {
		e.AddMetadata(entry.Metadata{
			Origin: entry.OriginGenerated,
			Attributes: entry.MetadataAttributes{
				Type:   "exiftool",
				Format: "json",
			},
			Data: p.exif,
		})
	}
	w.attachSidecars(e, siblings)

	register := w.b.registry.Register
	if adopt {
		register = w.b.registry.Adopt
	}
	if err := register(ctx, key, e); err != nil {
		w.itemError(c.Path, fmt.Errorf("failed to register: %w", err))
		return nil, err
	}
	w.res.Files++
	return e, nil
}
