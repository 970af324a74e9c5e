package logger

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/goadmin/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu        sync.RWMutex
	defLogger *zap.Logger
)

// Init 初始化全局日志
func Init(cfg *config.LogConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Replace(l)
	return nil
}

// New 按配置创建日志实例
func New(cfg *config.LogConfig) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := parseLevel(cfg.Level)
	var cores []zapcore.Core

	switch cfg.Output {
	case "file":
		w, err := fileWriter(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, w, level))
	case "both":
		w, err := fileWriter(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores,
			zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(encoder, w, level),
		)
	default:
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// parseLevel 解析日志级别
func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// fileWriter 基于 lumberjack 的滚动文件输出
func fileWriter(cfg *config.LogConfig) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		return nil, err
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}), nil
}

// Replace 替换全局日志实例，测试中可传入 zap.NewNop()
func Replace(l *zap.Logger) {
	mu.Lock()
	defLogger = l
	mu.Unlock()
}

// Get 获取日志实例
func Get() *zap.Logger {
	mu.RLock()
	l := defLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	l, _ = New(&config.LogConfig{Level: "debug", Format: "console", Output: "console"})
	mu.Lock()
	if defLogger == nil {
		defLogger = l
	}
	l = defLogger
	mu.Unlock()
	return l
}

// Sync 同步日志
func Sync() error {
	return Get().Sync()
}

// Debug 调试日志
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// Info 信息日志
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// Warn 警告日志
func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// Error 错误日志
func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

// Fatal 致命错误日志
func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}
