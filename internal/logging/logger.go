// Package logging builds the zap loggers used across the application.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a level name to a zap level. Unknown names yield info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a console logger writing to out, or to stderr when out is nil.
func New(level string, out io.Writer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var writer zapcore.WriteSyncer
	if out != nil {
		writer = zapcore.AddSync(out)
	} else {
		writer = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), writer, ParseLevel(level))
	return zap.New(core).Named("contacts")
}

// Sync flushes buffered entries, ignoring the errors stderr reports on
// some platforms.
func Sync(l *zap.Logger) {
	_ = l.Sync()
}
