// Package rename 把条目重命名为内容寻址的存储名，并删除已吸收的重复文件
package rename

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hashdex/pkg/deletequeue"
	"hashdex/pkg/entry"
	"hashdex/pkg/pathmodel"
	"hashdex/pkg/types"

	"go.uber.org/zap"
)

type Status string

const (
	StatusRenamed          Status = "renamed"
	StatusSkippedCollision Status = "skipped-collision"
	StatusSkippedDryRun    Status = "skipped-dry-run"
	// StatusAlreadyNamed 之前的运行已经完成了重命名
	StatusAlreadyNamed Status = "already-named"
	StatusFailed       Status = "failed"
)

// Result 一次重命名尝试的结果
// 只有 renamed 和 skipped-dry-run 带 NewPath
type Result struct {
	Status  Status
	Path    string
	NewPath string
	Sidecar bool
	Err     error
}

type Report struct {
	Results []Result
	// Deleted 已删除的重复文件
	Deleted []string
	Failed  []deletequeue.Failure
}

// Count 统计某个状态的结果数
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

type Options struct {
	DryRun bool
	// Queue 目录改名后需要同步队列里的路径
	Queue  *deletequeue.Queue
	Logger *zap.SugaredLogger
}

type Orchestrator struct {
	dryRun bool
	queue  *deletequeue.Queue
	logger *zap.SugaredLogger
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{dryRun: opts.DryRun, queue: opts.Queue, logger: logger}
}

// Run 按遍历顺序处理条目树，子条目先于所在目录
// 根目录本身从不重命名；根是文件时照常重命名
func (o *Orchestrator) Run(ctx context.Context, root *entry.IndexEntry) (*Report, error) {
	report := &Report{}
	if root == nil {
		return report, nil
	}
	err := o.visit(ctx, root, true, report)
	return report, err
}

func (o *Orchestrator) visit(ctx context.Context, e *entry.IndexEntry, isRoot bool, report *Report) error {
	for _, child := range e.Items {
		if err := o.visit(ctx, child, false, report); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// 1. 规范条目的身份已经确定，可以删除它的重复文件
	o.deleteDuplicates(e, report)

	if isRoot && e.IsDir() {
		return nil
	}
	// 2. 重命名条目，成功后再处理留在磁盘上的侧车
	res := o.renameItem(e)
	report.Results = append(report.Results, res)
	if res.Status == StatusRenamed || res.Status == StatusSkippedDryRun {
		o.renameSidecars(e, report)
	}
	return nil
}

func (o *Orchestrator) renameItem(e *entry.IndexEntry) Result {
	src := e.AbsPath()
	dst := filepath.Join(filepath.Dir(src), e.Attributes.StorageName)
	res := Result{Path: src}

	if alreadyNamed(e, filepath.Base(src)) {
		res.Status = StatusAlreadyNamed
		return res
	}
	if o.dryRun {
		res.Status = StatusSkippedDryRun
		res.NewPath = dst
		return res
	}

	// 从不覆盖已经存在的目标
	if err := moveNoClobber(src, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			o.logger.Warnw("rename destination exists, keeping original name", "path", src, "destination", dst)
			res.Status = StatusSkippedCollision
			return res
		}
		o.logger.Warnw("rename failed", "path", src, "error", err)
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	res.Status = StatusRenamed
	res.NewPath = dst
	e.SetAbsPath(dst)
	e.Path = pathmodel.CleanPath(dst)
	if e.IsDir() {
		o.rebase(e, src, dst)
	}
	o.logger.Debugw("renamed", "from", src, "to", dst)
	return res
}

// renameSidecars 跟随主条目重命名仍留在磁盘上的侧车
// 去扩展名关联的侧车用 id 作前缀，完整名称关联的用存储名，保证下次运行仍能关联上
func (o *Orchestrator) renameSidecars(e *entry.IndexEntry, report *Report) {
	for i, ref := range e.Sidecars() {
		if ref.Queued {
			continue
		}
		base := e.Attributes.StorageName
		if ref.ByStem {
			base = e.ID.String()
		}
		dst := filepath.Join(filepath.Dir(ref.Path), base+ref.Suffix)
		if dst == ref.Path {
			continue
		}
		res := Result{Path: ref.Path, Sidecar: true}

		switch {
		case o.dryRun:
			res.Status = StatusSkippedDryRun
			res.NewPath = dst
		case !exists(ref.Path):
			// 共享的侧车已经被另一个主条目带走
			o.logger.Debugw("sidecar already moved", "path", ref.Path)
			continue
		default:
			err := moveNoClobber(ref.Path, dst)
			switch {
			case errors.Is(err, os.ErrExist):
				o.logger.Warnw("sidecar destination exists, keeping original name", "path", ref.Path, "destination", dst)
				res.Status = StatusSkippedCollision
			case err != nil:
				o.logger.Warnw("sidecar rename failed", "path", ref.Path, "error", err)
				res.Status = StatusFailed
				res.Err = err
			default:
				res.Status = StatusRenamed
				res.NewPath = dst
				e.SetSidecarPath(i, dst)
			}
		}
		report.Results = append(report.Results, res)
	}
}

// deleteDuplicates 只有在规范文件仍在磁盘上时才删除重复文件
func (o *Orchestrator) deleteDuplicates(e *entry.IndexEntry, report *Report) {
	if o.dryRun || len(e.Duplicates) == 0 {
		return
	}
	if !exists(e.AbsPath()) {
		o.logger.Warnw("canonical file missing, keeping duplicates", "path", e.AbsPath())
		return
	}
	for i := range e.Duplicates {
		p := e.Duplicates[i].AbsPath()
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Errorw("failed to delete duplicate", "path", p, "error", err)
			report.Failed = append(report.Failed, deletequeue.Failure{Path: p, Err: err})
			continue
		}
		report.Deleted = append(report.Deleted, p)
		o.logger.Infow("deleted duplicate", "path", p, "canonical", e.AbsPath())
	}
}

// rebase 目录改名后更新所有后代的磁盘路径
func (o *Orchestrator) rebase(dir *entry.IndexEntry, oldPrefix, newPrefix string) {
	move := func(p string) (string, bool) {
		rest, ok := strings.CutPrefix(p, oldPrefix+string(filepath.Separator))
		if !ok {
			return p, false
		}
		return filepath.Join(newPrefix, rest), true
	}

	for _, child := range dir.Items {
		child.Walk(func(d *entry.IndexEntry) bool {
			if p, ok := move(d.AbsPath()); ok {
				d.SetAbsPath(p)
				d.Path = pathmodel.CleanPath(p)
			}
			for i, ref := range d.Sidecars() {
				p, ok := move(ref.Path)
				if !ok {
					continue
				}
				d.SetSidecarPath(i, p)
				if ref.Queued && o.queue != nil {
					o.queue.Replace(ref.Path, p)
				}
			}
			return true
		})
	}
	// 目录自己的侧车在父目录里，不受影响
}

// alreadyNamed 目录身份取决于名称，改名后的目录在下次运行会得到新的 id，
// 所以形如存储名的目录名也算已命名
func alreadyNamed(e *entry.IndexEntry, base string) bool {
	if base == e.Attributes.StorageName {
		return true
	}
	if !e.IsDir() || len(base) != len(e.ID) {
		return false
	}
	id := types.ID(base)
	return id.Type() == types.TypeDirectory && id.Hash().IsValid()
}

// moveNoClobber 把 src 移到 dst，dst 已存在时返回 os.ErrExist
// 普通文件先建硬链接再删除源文件，链接在目标存在时原子地失败
// 目录、符号链接和不支持硬链接的文件系统退回到检查后 Rename，两步之间仍有竞争窗口
func moveNoClobber(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode().IsRegular() {
		err := os.Link(src, dst)
		switch {
		case err == nil:
			if err := os.Remove(src); err != nil {
				_ = os.Remove(dst)
				return err
			}
			return nil
		case errors.Is(err, os.ErrExist):
			return os.ErrExist
		}
	}
	if exists(dst) {
		return os.ErrExist
	}
	return os.Rename(src, dst)
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

func (r Result) String() string {
	if r.NewPath != "" {
		return fmt.Sprintf("%s: %s -> %s", r.Status, r.Path, r.NewPath)
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Path)
}
