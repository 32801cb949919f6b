package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/livrasand/gitdeposit/internal/config"
)

var logger = newLogger("text", "info")

// InitLogger replaces the package logger according to LOG_FORMAT and LOG_LEVEL.
func InitLogger(config *config.Config) {
	logger = newLogger(config.LogFormat, config.LogLevel)
}

func newLogger(format, level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = zapcore.InfoLevel
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl)
	return zap.New(core).Named("gitdeposit").Sugar()
}

// Logger exposes the underlying zap logger for structured fields.
func Logger() *zap.Logger {
	return logger.Desugar()
}

func Log(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func LogDebug(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// LogError logs at error level. Callers must not pass credentials.
func LogError(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = logger.Sync()
}
