// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hashdex/pkg/builder"
	"hashdex/pkg/catalog"
	"hashdex/pkg/config"
	"hashdex/pkg/deletequeue"
	"hashdex/pkg/entry"
	"hashdex/pkg/exif"
	"hashdex/pkg/logger"
	"hashdex/pkg/registry"
	"hashdex/pkg/rename"
	"hashdex/pkg/sidecar"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrRootNotFound = errors.New("target path not found")

// App 是一次调用的依赖容器
// 注册表和删除队列都属于这一次调用，App 不可重复使用
type App struct {
	Config   *config.Config
	Logger   *zap.SugaredLogger
	RunID    string
	Registry registry.Registry
	Queue    *deletequeue.Queue
	Builder  *builder.Builder
	Renamer  *rename.Orchestrator

	memory  *registry.Memory // 没有启用 catalog 时的注册表，用于快照
	catalog *catalog.DB
	catReg  *catalog.Registry
}

type Options struct {
	RunID     string
	Extractor exif.Extractor       // 为空且配置启用时使用 exiftool
	Resolver  sidecar.LinkResolver // 可选
}

// Report 一次运行的全部结果
type Report struct {
	RunID   string
	Root    *entry.IndexEntry
	Build   *builder.Result
	Renames *rename.Report // 未启用重命名时为 nil
	Drain   *deletequeue.DrainReport
}

// NewApp 组装全部组件
// 结构不合法的配置在这里直接失败，此时还没有任何文件系统改动
func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	// 1. 配置校验
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logger.NewLogger("app").With("run_id", runID)

	a := &App{
		Config: cfg,
		Logger: log,
		RunID:  runID,
		Queue:  deletequeue.New(logger.NewLogger("deletequeue")),
	}

	// 2. 注册表：持久化 catalog 或者进程内存
	if err := a.initRegistry(ctx); err != nil {
		return nil, err
	}

	// 3. 元数据提取
	extractor := opts.Extractor
	if extractor == nil && cfg.Exif.Enabled {
		extractor = exif.NewExifTool(cfg.Exif.Binary, cfg.Exif.ExcludeExtensions)
	}

	b, err := builder.New(builder.Options{
		Config:    cfg,
		Registry:  a.Registry,
		Queue:     a.Queue,
		Extractor: extractor,
		Resolver:  opts.Resolver,
		Logger:    logger.NewLogger("builder").With("run_id", runID),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Builder = b

	a.Renamer = rename.New(rename.Options{
		DryRun: cfg.DryRun,
		Queue:  a.Queue,
		Logger: logger.NewLogger("rename").With("run_id", runID),
	})
	return a, nil
}

func (a *App) initRegistry(ctx context.Context) error {
	cfg := a.Config
	if cfg.Catalog.Enabled {
		db, err := catalog.Open(ctx, cfg.Catalog)
		if err != nil {
			return err
		}
		a.catalog = db
		a.catReg = catalog.NewRegistry(db, a.RunID)
		a.Registry = a.catReg
		if cfg.Registry.Snapshot != "" {
			a.Logger.Warnw("catalog enabled, registry snapshot ignored", "snapshot", cfg.Registry.Snapshot)
		}
		return nil
	}

	a.memory = registry.NewMemory()
	a.Registry = a.memory
	if cfg.Registry.Snapshot == "" {
		return nil
	}
	f, err := os.Open(cfg.Registry.Snapshot)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open registry snapshot: %w", err)
	}
	defer f.Close()
	n, err := a.memory.LoadSnapshot(f)
	if err != nil {
		return err
	}
	a.Logger.Infow("registry pre-seeded", "snapshot", cfg.Registry.Snapshot, "entries", n)
	return nil
}

// Run 构建 -> 重命名 -> 清空删除队列
// 被取消的运行不会清空队列：已合并的侧车文件原样留在磁盘上
func (a *App) Run(ctx context.Context, target string) (*Report, error) {
	report := &Report{RunID: a.RunID}

	// 1. 致命检查先于任何改动
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotFound, target, err)
	}
	if _, err := os.Lstat(abs); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotFound, target, err)
	}

	// 2. 构建条目树
	a.Logger.Infow("indexing", "target", abs, "rename", a.Config.Rename, "dry_run", a.Config.DryRun)
	res, err := a.Builder.Build(ctx, abs)
	report.Build = res
	if res != nil {
		report.Root = res.Root
	}
	if err != nil {
		return report, fmt.Errorf("build failed: %w", err)
	}

	// 3. 重命名
	if a.Config.Rename {
		renames, err := a.Renamer.Run(ctx, report.Root)
		report.Renames = renames
		if err != nil {
			return report, fmt.Errorf("rename interrupted: %w", err)
		}
		if a.catReg != nil && report.Root != nil && !a.Config.DryRun {
			if err := a.catReg.Relocate(ctx, report.Root); err != nil {
				return report, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		a.Logger.Warnw("run cancelled, delete queue not drained", "pending", a.Queue.Len())
		return report, err
	}

	// 4. 删除队列，只在完整且非演练的运行之后执行
	if a.Config.DryRun {
		a.Logger.Infow("dry run, delete queue not drained", "pending", a.Queue.Len())
	} else {
		drain, err := a.Queue.Drain(ctx)
		report.Drain = drain
		if err != nil {
			return report, err
		}
	}

	// 5. 写回快照
	if err := a.saveSnapshot(); err != nil {
		return report, err
	}
	return report, nil
}

// saveSnapshot 先写临时文件再替换，避免留下半个快照
func (a *App) saveSnapshot() error {
	path := a.Config.Registry.Snapshot
	if a.memory == nil || path == "" || a.Config.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := a.memory.Snapshot(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.Logger.Warnw("failed to close catalog", "error", err)
		}
	}
}
