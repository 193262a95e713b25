// Package deletequeue 收集运行中可以安全删除的文件，运行结束时统一执行
package deletequeue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

var ErrAlreadyDrained = errors.New("delete queue already drained")

// Failure 一次删除失败
type Failure struct {
	Path string
	Err  error
}

// DrainReport 执行结果
type DrainReport struct {
	Deleted []string
	Missing []string // 删除前已经不存在
	Failed  []Failure
}

// Queue 有序、去重、并发安全
// 同一个侧车文件可能被多个主条目认领，只会出现一次
type Queue struct {
	mu      sync.Mutex
	paths   []string
	seen    map[string]struct{}
	drained bool
	logger  *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger) *Queue {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Queue{seen: make(map[string]struct{}), logger: logger}
}

// Enqueue 返回 false 表示该路径已在队列中
func (q *Queue) Enqueue(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.seen[path]; ok {
		return false
	}
	q.seen[path] = struct{}{}
	q.paths = append(q.paths, path)
	return true
}

// Replace 重命名后更新队列中的路径，保持原来的位置
func (q *Queue) Replace(oldPath, newPath string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.seen[oldPath]; !ok {
		return false
	}
	for i, p := range q.paths {
		if p == oldPath {
			q.paths[i] = newPath
			break
		}
	}
	delete(q.seen, oldPath)
	q.seen[newPath] = struct{}{}
	return true
}

func (q *Queue) Contains(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[path]
	return ok
}

// Paths 入队顺序的副本
func (q *Queue) Paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.paths))
	copy(out, q.paths)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.paths)
}

// Drain 按入队顺序删除全部文件，只能调用一次
// 单个文件失败不会中断；ctx 取消时停止并返回已完成的部分
func (q *Queue) Drain(ctx context.Context) (*DrainReport, error) {
	q.mu.Lock()
	if q.drained {
		q.mu.Unlock()
		return nil, ErrAlreadyDrained
	}
	q.drained = true
	paths := make([]string, len(q.paths))
	copy(paths, q.paths)
	q.mu.Unlock()

	report := &DrainReport{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("drain interrupted: %w", err)
		}

		err := os.Remove(p)
		switch {
		case err == nil:
			report.Deleted = append(report.Deleted, p)
			q.logger.Infow("deleted merged sidecar", "path", p)
		case errors.Is(err, os.ErrNotExist):
			report.Missing = append(report.Missing, p)
		default:
			report.Failed = append(report.Failed, Failure{Path: p, Err: err})
			q.logger.Errorw("failed to delete", "path", p, "error", err)
		}
	}
	return report, nil
}
