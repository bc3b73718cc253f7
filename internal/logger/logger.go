package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu   sync.RWMutex
	base = newLogger()
)

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Level = level
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	l, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// SetDebug 设置是否开启调试模式
func SetDebug(debug bool) {
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

// IsDebug 当前是否为调试模式
func IsDebug() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// Replace 替换底层 logger，测试中可传入 zaptest/observer 的实例
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// L 返回底层 zap logger，用于需要结构化字段的场景
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Info 打印信息日志
func Info(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

// Debug 打印调试日志
func Debug(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

// Error 打印错误日志
func Error(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

// Fatal 打印错误日志并退出
func Fatal(format string, v ...interface{}) {
	sugar().Fatalf(format, v...)
}

// Sync 刷新缓冲
func Sync() {
	_ = sugar().Sync()
}
