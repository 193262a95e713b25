// Package builder 把文件系统条目构建成 IndexEntry 树
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"hashdex/pkg/config"
	"hashdex/pkg/deletequeue"
	"hashdex/pkg/entry"
	"hashdex/pkg/exif"
	"hashdex/pkg/hashing"
	"hashdex/pkg/ignore"
	"hashdex/pkg/pathmodel"
	"hashdex/pkg/registry"
	"hashdex/pkg/sidecar"
	"hashdex/pkg/traversal"
	"hashdex/pkg/types"

	"go.uber.org/zap"
)

// ErrAbsorbed 条目的内容已有规范条目，被记录为重复文件而不是独立条目
var ErrAbsorbed = errors.New("absorbed as duplicate")

// ItemError 单个条目构建失败 (不影响兄弟条目)
type ItemError struct {
	Path string
	Err  error
}

func (e ItemError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e ItemError) Unwrap() error { return e.Err }

// Result 一次构建的产物
type Result struct {
	Root   *entry.IndexEntry
	Errors []ItemError

	Files      int
	Dirs       int
	Duplicates int
	// Orphans 匹配侧车模式但没有任何主条目认领的文件，它们不会被索引
	Orphans []string
}

type Options struct {
	Config    *config.Config
	Registry  registry.Registry
	Queue     *deletequeue.Queue
	Extractor exif.Extractor       // 可选
	Resolver  sidecar.LinkResolver // 可选
	Logger    *zap.SugaredLogger
}

// Builder 持有构建所需的全部协作者
type Builder struct {
	cfg        *config.Config
	registry   registry.Registry
	queue      *deletequeue.Queue
	extractor  exif.Extractor
	classifier *sidecar.Classifier
	merger     *sidecar.Merger
	logger     *zap.SugaredLogger

	exifOff  atomic.Bool
	exifOnce sync.Once
}

func New(opts Options) (*Builder, error) {
	if opts.Config == nil || opts.Registry == nil || opts.Queue == nil {
		return nil, fmt.Errorf("builder: config, registry and queue are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	classifier, err := sidecar.NewClassifier(opts.Config.Sidecars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	b := &Builder{
		cfg:        opts.Config,
		registry:   opts.Registry,
		queue:      opts.Queue,
		extractor:  opts.Extractor,
		classifier: classifier,
		merger:     sidecar.NewMerger(opts.Config.Algorithms, opts.Resolver, logger.Named("sidecar")),
		logger:     logger,
	}
	if !opts.Config.Exif.Enabled || opts.Extractor == nil {
		b.exifOff.Store(true)
	}
	return b, nil
}

// Build 构建 path 的条目树，path 可以是文件或目录
// 返回的 Result 在出错时也可能包含部分结果
func (b *Builder) Build(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}

	// 1. Layer-1 规则相对"遍历根"计算：目录就是它自己，文件是其父目录
	root := abs
	if !info.IsDir() {
		root = filepath.Dir(abs)
	}
	matcher, err := ignore.NewMatcherForRoot(root, b.cfg.Exclude...)
	if err != nil {
		return nil, err
	}

	w := &walk{
		b:      b,
		lister: traversal.NewLister(root, matcher, b.classifier),
		res:    &Result{},
	}

	// 2. 根是目录：递归
	if info.IsDir() {
		rootChild, err := w.lister.Stat(abs)
		if err != nil {
			return nil, err
		}
		parentName := pathmodel.Split(abs).ParentName
		// 根目录没有兄弟列表，不在这里合并侧车
		e, err := w.dir(ctx, rootChild, parentName, nil)
		w.res.Root = e
		return w.res, err
	}

	// 3. 根是文件：兄弟列表来自父目录
	listing, err := w.lister.List(root)
	if err != nil {
		return nil, err
	}
	rootChild, err := w.lister.Stat(abs)
	if err != nil {
		return nil, err
	}
	prepared := w.prepare(ctx, rootChild)
	e, err := w.file(ctx, prepared, listing.Siblings)
	switch {
	case errors.Is(err, ErrAbsorbed):
		return w.res, nil
	case err != nil:
		return w.res, err
	}
	w.res.Root = e
	return w.res, nil
}

// walk 单次构建的可变状态，只在顺序阶段修改
type walk struct {
	b      *Builder
	lister *traversal.Lister
	res    *Result
}

func (w *walk) itemError(path string, err error) {
	w.res.Errors = append(w.res.Errors, ItemError{Path: path, Err: err})
	w.b.logger.Warnw("item skipped", "path", path, "error", err)
}

// base 填充文件和目录共有的字段
func (w *walk) base(c traversal.Child, t types.ItemType, digests hashing.Digests) *entry.IndexEntry {
	cfg := w.b.cfg
	comps := pathmodel.Split(c.Path)

	ext := comps.Extension
	if t == types.TypeDirectory {
		ext = ""
	}
	id := types.NewID(t, digests.Get(cfg.IDAlgorithm))

	e := &entry.IndexEntry{
		SchemaVersion: entry.SchemaVersion,
		ID:            id,
		IDAlgorithm:   cfg.IDAlgorithm,
		Type:          t,
		Name:          comps.Name,
		Extension:     ext,
		Path:          pathmodel.CleanPath(c.Path),
		Hashes:        digests.Strings(),
		Attributes: entry.Attributes{
			StorageName: pathmodel.StorageName(id, ext),
			IsLink:      c.IsLink,
		},
	}
	if c.Info != nil {
		e.Timestamps = entry.TimestampsFromInfo(c.Info)
	}
	e.SetAbsPath(c.Path)
	return e
}

// nameDigests 目录和链接的身份：H(name) 与 H(parentName) 拼接后再哈希
func (w *walk) nameDigests(name, parentName string) hashing.Digests {
	algs := w.b.cfg.Algorithms
	return hashing.Combine(hashing.HashString(name, algs), hashing.HashString(parentName, algs), algs)
}

// attachSidecars 发现并 (按策略) 合并与 e 关联的侧车文件
func (w *walk) attachSidecars(e *entry.IndexEntry, siblings []traversal.Child) {
	if siblings == nil {
		return
	}
	cfg := w.b.cfg
	for _, c := range w.b.classifier.Discover(e.Name, siblings) {
		ref := entry.SidecarRef{Path: c.Path, Suffix: c.Suffix, ByStem: c.ByStem}

		if cfg.MergeEnabled() {
			md, ok := w.b.merger.Merge(c)
			e.AddMetadata(md)
			// 降级的贡献永远不删除源文件
			if ok && cfg.MergeDelete {
				w.b.queue.Enqueue(c.Path)
				ref.Queued = true
			}
		}
		e.AddSidecar(ref)
	}
}
