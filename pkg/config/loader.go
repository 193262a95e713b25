package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hashdex/pkg/hashing"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .hdx
		viper.AddConfigPath(".hdx")
		// 3. 用户主目录下的 .hdx
		viper.AddConfigPath(filepath.Join(home, ".hdx"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("hdx") // 找 hdx.yaml
	}

	// 3. 读取环境变量 (HDX_RENAME, HDX_CATALOG_DSN 等)
	viper.SetEnvPrefix("HDX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，格式错才是错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}

	// 输出到 stderr，stdout 留给索引结果
	fmt.Fprintln(os.Stderr, "🔧 Using config file:", viper.ConfigFileUsed())
	return nil
}

func setDefaults() {
	d := Default()

	// 哈希
	names := make([]string, len(d.Algorithms))
	for i, a := range d.Algorithms {
		names[i] = string(a)
	}
	viper.SetDefault("hash.algorithms", names)
	viper.SetDefault("hash.id_algorithm", string(d.IDAlgorithm))

	// 过滤与侧车
	viper.SetDefault("exclude", []string{})
	viper.SetDefault("sidecars", d.Sidecars)

	// 策略开关
	viper.SetDefault("merge", d.MergeSidecars)
	viper.SetDefault("merge_delete", false)
	viper.SetDefault("rename", false)
	viper.SetDefault("dry_run", false)
	viper.SetDefault("workers", d.Workers)

	// 外部协作者
	viper.SetDefault("exif.enabled", false)
	viper.SetDefault("exif.binary", d.Exif.Binary)
	viper.SetDefault("exif.exclude_extensions", d.Exif.ExcludeExtensions)
	viper.SetDefault("catalog.enabled", false)
	viper.SetDefault("catalog.driver", d.Catalog.Driver)
	viper.SetDefault("catalog.dsn", "")
	viper.SetDefault("registry.snapshot", "")

	// 日志
	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
	viper.SetDefault("log.file", "")
}

// FromViper 把 Viper 中的设置解析成不可变的 Config 并校验
func FromViper() (*Config, error) {
	cfg := Default()

	names := viper.GetStringSlice("hash.algorithms")
	cfg.Algorithms = make([]hashing.Algorithm, len(names))
	for i, n := range names {
		cfg.Algorithms[i] = hashing.Algorithm(n)
	}
	cfg.IDAlgorithm = hashing.Algorithm(viper.GetString("hash.id_algorithm"))

	cfg.Exclude = viper.GetStringSlice("exclude")
	if viper.IsSet("sidecars") {
		var rules []SidecarRule
		if err := viper.UnmarshalKey("sidecars", &rules); err != nil {
			return nil, fmt.Errorf("%w: sidecars: %w", ErrInvalidConfig, err)
		}
		cfg.Sidecars = rules
	}

	cfg.MergeSidecars = viper.GetBool("merge")
	cfg.MergeDelete = viper.GetBool("merge_delete")
	cfg.Rename = viper.GetBool("rename")
	cfg.DryRun = viper.GetBool("dry_run")
	cfg.Workers = viper.GetInt("workers")

	// 逐个 key 读取：UnmarshalKey 对嵌套 key 不会合并默认值
	cfg.Exif = ExifConfig{
		Enabled:           viper.GetBool("exif.enabled"),
		Binary:            viper.GetString("exif.binary"),
		ExcludeExtensions: viper.GetStringSlice("exif.exclude_extensions"),
	}
	cfg.Catalog = CatalogConfig{
		Enabled: viper.GetBool("catalog.enabled"),
		Driver:  viper.GetString("catalog.driver"),
		DSN:     viper.GetString("catalog.dsn"),
	}
	cfg.Registry = RegistryConfig{Snapshot: viper.GetString("registry.snapshot")}
	cfg.Log = LogConfig{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		File:   viper.GetString("log.file"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
