// Package logging holds the process-wide zap logger
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger outputs
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
	// LogFile enables a rotated JSON log next to the console output
	LogFile    string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"maxSize"` // megabytes
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"` // days
	Compress   bool   `mapstructure:"compress"`
	AddSource  bool   `mapstructure:"addSource"`
}

// DefaultConfig logs info and above to the terminal
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

// Initialize builds the global logger once; later calls are ignored
func Initialize(cfg Config, console zapcore.WriteSyncer) {
	once.Do(func() {
		globalLogger.Store(build(cfg, console))
		zap.ReplaceGlobals(globalLogger.Load())
	})
}

// InitializeLogger writes console output to stderr, leaving stdout for command output
func InitializeLogger(cfg Config) {
	Initialize(cfg, zapcore.Lock(os.Stderr))
}

func build(cfg Config, console zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(cfg.Format), console, level)}

	if cfg.LogFile != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder("json"), file, level))
	}

	options := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		options = append(options, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), options...).Named("autosearch")
}

func encoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

// ResetForTest clears the global logger so a test can initialize its own
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// GetLogger returns the global logger, or a no-op logger before Initialize
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

// Sync flushes buffered entries. Errors from syncing a terminal are expected and dropped.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil {
		msg := err.Error()
		if !strings.Contains(msg, "/dev/std") &&
			!strings.Contains(msg, "invalid argument") &&
			!strings.Contains(msg, "inappropriate ioctl") {
			fmt.Fprintln(os.Stderr, "failed to sync logger:", err)
		}
	}
}
