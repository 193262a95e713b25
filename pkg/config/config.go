package config

import (
	"errors"
	"fmt"
	"slices"

	"hashdex/pkg/hashing"
)

// ErrInvalidConfig 配置结构不合法，整个调用在任何文件改动之前就会中止
var ErrInvalidConfig = errors.New("invalid configuration")

// 侧车文件的负载类型 (和 sidecar.Kind 一一对应)
var sidecarKinds = []string{"json", "text", "binary", "link"}

// SidecarRule 描述一类侧车文件：它的用途、负载类型和文件名模式 (gitignore 语法)
type SidecarRule struct {
	Type     string   `mapstructure:"type"`
	Kind     string   `mapstructure:"kind"`
	Patterns []string `mapstructure:"patterns"`
}

type ExifConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Binary            string   `mapstructure:"binary"`
	ExcludeExtensions []string `mapstructure:"exclude_extensions"`
}

type CatalogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // sqlite | postgres
	DSN     string `mapstructure:"dsn"`
}

type RegistryConfig struct {
	// Snapshot 非空时，运行前从此文件预加载去重注册表，运行后写回
	Snapshot string `mapstructure:"snapshot"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // console | json
	File   string `mapstructure:"file"`
}

// Config 是一次调用的完整配置
// 由外部加载器构建后只读传递给每个组件，任何组件都不修改它
type Config struct {
	Algorithms  []hashing.Algorithm
	IDAlgorithm hashing.Algorithm

	Exclude  []string
	Sidecars []SidecarRule

	MergeSidecars bool
	MergeDelete   bool
	Rename        bool
	DryRun        bool

	Workers int

	Exif     ExifConfig
	Catalog  CatalogConfig
	Registry RegistryConfig
	Log      LogConfig
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Algorithms:    hashing.DefaultAlgorithms(),
		IDAlgorithm:   hashing.MD5,
		Sidecars:      DefaultSidecarRules(),
		MergeSidecars: true,
		Workers:       4,
		Exif: ExifConfig{
			Binary:            "exiftool",
			ExcludeExtensions: []string{"csv", "htm", "html", "json", "tsv", "xml", "txt", "md"},
		},
		Catalog: CatalogConfig{Driver: "sqlite"},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// DefaultSidecarRules 默认的侧车文件约定
func DefaultSidecarRules() []SidecarRule {
	return []SidecarRule{
		{Type: "json_metadata", Kind: "json", Patterns: []string{"*.*.json"}},
		{Type: "description", Kind: "text", Patterns: []string{"*.description"}},
		{Type: "hash", Kind: "text", Patterns: []string{"*.md5", "*.sha1", "*.sha256", "*.sha512"}},
		{Type: "subtitles", Kind: "text", Patterns: []string{"*.srt", "*.vtt"}},
		{Type: "thumbnail", Kind: "binary", Patterns: []string{"*_thumb.jpg", "*_thumb.png", "*.thumb.webp"}},
		{Type: "link", Kind: "link", Patterns: []string{"*.url", "*.lnk"}},
	}
}

// MergeEnabled 合并并删除隐含了合并
func (c *Config) MergeEnabled() bool {
	return c.MergeSidecars || c.MergeDelete
}

// Destructive 是否会真正改动文件系统 (重命名 / 删除重复文件)
func (c *Config) Destructive() bool {
	return c.Rename && !c.DryRun
}

// Validate 检查配置的结构合法性，并规范化算法列表
func (c *Config) Validate() error {
	names := make([]string, len(c.Algorithms))
	for i, a := range c.Algorithms {
		names[i] = string(a)
	}
	algs, err := hashing.ParseAlgorithms(names)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.Algorithms = algs

	if c.IDAlgorithm == "" {
		c.IDAlgorithm = hashing.MD5
	}
	if !slices.Contains(c.Algorithms, c.IDAlgorithm) {
		return fmt.Errorf("%w: id algorithm %q is not in the selected algorithms %v", ErrInvalidConfig, c.IDAlgorithm, c.Algorithms)
	}

	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	}

	for i, r := range c.Sidecars {
		if r.Type == "" {
			return fmt.Errorf("%w: sidecar rule %d has no type", ErrInvalidConfig, i)
		}
		if !slices.Contains(sidecarKinds, r.Kind) {
			return fmt.Errorf("%w: sidecar rule %q has unknown kind %q", ErrInvalidConfig, r.Type, r.Kind)
		}
		if len(r.Patterns) == 0 {
			return fmt.Errorf("%w: sidecar rule %q has no patterns", ErrInvalidConfig, r.Type)
		}
	}

	if c.Catalog.Enabled {
		switch c.Catalog.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("%w: unsupported catalog driver %q", ErrInvalidConfig, c.Catalog.Driver)
		}
		if c.Catalog.DSN == "" {
			return fmt.Errorf("%w: catalog dsn is required", ErrInvalidConfig)
		}
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unsupported log format %q", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}
