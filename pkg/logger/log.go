// Package logger 提供按组件命名的 zap 日志
// 用法：logger.InitLogger(...) 一次，然后各组件 logger.NewLogger("builder")
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
	root   *zap.SugaredLogger
	atom   = zap.NewAtomicLevel()
)

// Options 控制日志输出
type Options struct {
	Level  string    // debug | info | warn | error
	Format string    // console | json
	File   string    // 非空时额外写入滚动日志文件
	Output io.Writer // 终端输出，默认 os.Stderr (stdout 留给索引结果)
}

// 日志文件滚动参数
const (
	rotateMaxSizeMB  = 64
	rotateMaxBackups = 5
	rotateMaxAgeDays = 14
)

// InitLogger 初始化全局根日志
func InitLogger(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	atom.SetLevel(parseLevel(opts.Level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	var encoder zapcore.Encoder
	if opts.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	sinks := []zapcore.WriteSyncer{zapcore.Lock(zapcore.AddSync(out))}

	if opts.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    rotateMaxSizeMB,
			MaxBackups: rotateMaxBackups,
			MaxAge:     rotateMaxAgeDays,
		}))
	}

	logger = zap.New(zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), atom))
	root = logger.Sugar()
}

// Sync 刷新缓冲
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		_ = logger.Sync()
	}
}

// NewLogger 返回命名子日志；未初始化时返回 Nop，测试里无需额外准备
func NewLogger(name string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		return zap.NewNop().Sugar()
	}
	return root.Named(name)
}

func SetDebug(enable bool) {
	if enable {
		atom.SetLevel(zap.DebugLevel)
		return
	}
	atom.SetLevel(zap.InfoLevel)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
