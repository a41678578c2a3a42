package logger

import (
	"context"

	"go.uber.org/zap"

	"mailtriage/pkg/trace"
)

var Log *zap.Logger

// Options 日志配置
type Options struct {
	Level string // debug, info, warn, error；为空时使用 info
	File  string // 日志文件路径；为空时输出到 stdout
}

// NewLogger 创建 production logger（JSON，一行一个事件）
func NewLogger(opts Options) *zap.Logger {
	cfg := zap.NewProductionConfig()

	if opts.Level != "" {
		level, err := zap.ParseAtomicLevel(opts.Level)
		if err != nil {
			panic(err)
		}
		cfg.Level = level
	}

	// 同时写 stdout 和日志文件
	if opts.File != "" {
		cfg.OutputPaths = []string{"stdout", opts.File}
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
