package log

import (
	"encoding/json"
	//nolint:depguard
	"log"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/imtaco/rtms-bridge/internal/errors"
)

const ErrLoggerConfig errors.Code = "logger_config"

// Fatal is for startup errors before a Logger exists.
func Fatal(v ...any) {
	log.Fatal(v...)
}

// Logger is a zap logger that knows its module path. Module loggers pick
// their level from LOG_LEVEL__<MODULE> env keys.
type Logger struct {
	*zap.Logger
	names      []string
	moduleFunc func(names []string) *zap.Logger
}

func (l *Logger) Module(name string) *Logger {
	names := append(append(make([]string, 0, len(l.names)+1), l.names...), name)
	return &Logger{
		Logger:     l.moduleFunc(names),
		names:      names,
		moduleFunc: l.moduleFunc,
	}
}

// With returns a logger that adds fields to every entry, keeping the module chain.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{
		Logger:     l.Logger.With(fields...),
		names:      l.names,
		moduleFunc: l.moduleFunc,
	}
}

// NewLogger builds the process logger. An empty configFile selects the
// console logger; otherwise the file holds a JSON zap.Config.
func NewLogger(configFile string) (*Logger, error) {
	if configFile == "" {
		return newConsoleLogger(), nil
	}
	return loadLoggerFromFile(configFile)
}

func loadLoggerFromFile(configFile string) (*Logger, error) {
	bs, err := os.ReadFile(configFile)
	if err != nil {
		return nil, errors.Wrap(ErrLoggerConfig, err, "read")
	}
	var cfg zap.Config
	if err := json.Unmarshal(bs, &cfg); err != nil {
		return nil, errors.Wrap(ErrLoggerConfig, err, "decode")
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(ErrLoggerConfig, err, "build")
	}

	return &Logger{
		Logger: base.Named("main"),
		moduleFunc: func(names []string) *zap.Logger {
			return base.Named(strings.Join(names, "."))
		},
	}, nil
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	cfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func newConsoleLogger() *Logger {
	encoder := consoleEncoder()
	writer := zapcore.Lock(zapcore.AddSync(os.Stdout))

	build := func(lv zapcore.Level) *zap.Logger {
		core := zapcore.NewCore(encoder, writer, zap.NewAtomicLevelAt(lv))
		return zap.New(core, zap.AddStacktrace(zapcore.FatalLevel))
	}

	level := zapcore.InfoLevel
	if lv, ok := parseLevelFromEnv(levelEnv); ok {
		level = lv
	}

	return &Logger{
		Logger: build(level).Named("main"),
		moduleFunc: func(names []string) *zap.Logger {
			lv := moduleLevel(names)
			logger := build(lv).Named(strings.Join(names, "."))
			logger.Debug("module logger ready", zap.Stringer("level", lv))
			return logger
		},
	}
}

func NewTest(t *testing.T) *Logger {
	logger := zaptest.NewLogger(t)
	return &Logger{
		Logger: logger,
		moduleFunc: func(names []string) *zap.Logger {
			return logger.Named(strings.Join(names, "."))
		},
	}
}

func NewNop() *Logger {
	logger := zap.NewNop()
	return &Logger{
		Logger: logger,
		moduleFunc: func([]string) *zap.Logger {
			return logger
		},
	}
}
