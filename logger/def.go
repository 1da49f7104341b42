package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Options 对应 config.yaml 里的 log 段
type Options struct {
	Development bool   // true: 彩色控制台输出；false: JSON
	Level       string // debug / info / warn / error，空串使用 zap 默认级别
}

// Init 按 Options 构建进程级 logger（供 main 调用）
// 两种模式都使用 ISO8601 的 timestamp 字段
func Init(opts Options) error {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	setLogger(l)
	return nil
}

// Use 安装一个已构建好的 logger（测试里传 observer / zaptest）
func Use(l *zap.Logger) {
	setLogger(l)
}

// setLogger 替换本包实例和 zap 全局，旧实例先 flush
func setLogger(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	// zap.L()/zap.S() 与 Log()/S() 返回同一实例
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
	sugar = l.Sugar()
}

// Log 返回 *zap.Logger（非 nil）
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	// 未 Init 时退回 zap 全局（可能是 noop）
	return zap.L()
}

// S 返回 *zap.SugaredLogger（非 nil）
func S() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	if sugar != nil {
		return sugar
	}
	return zap.S()
}

// Sync flush logs
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
