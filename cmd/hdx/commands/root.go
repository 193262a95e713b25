package commands

import (
	"context"
	"fmt"
	"os"

	"hashdex/pkg/config"
	"hashdex/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hdx",
	Short: "hashdex: content-addressed file indexing",
	// 错误由 main 统一输出
	SilenceUsage:  true,
	SilenceErrors: true,
	// 所有子命令执行前初始化日志
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.InitLogger(logger.Options{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			File:   viper.GetString("log.file"),
			Output: cmd.ErrOrStderr(),
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 是入口
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// 1. 全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./hdx.yaml or $HOME/.hdx/hdx.yaml)")

	// 2. 日志参数，绑定到 Viper，yaml 里的 log.* 也可以设置
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotated file")
	mustBind(rootCmd, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
		"log.file":   "log-file",
	}, true)
}

// mustBind 把 flag 绑定到 viper key
func mustBind(cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
