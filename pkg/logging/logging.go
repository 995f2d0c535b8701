package logging

import (
	"strings"

	"github.com/canopy-network/lootboard/pkg/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level and encoder of the process logger. Empty fields
// fall back to LOG_LEVEL and LOG_ENCODING.
type Options struct {
	Level    string
	Encoding string
}

// New builds the process logger from LOG_LEVEL and LOG_ENCODING.
func New() (*zap.Logger, error) {
	return NewWithOptions(Options{})
}

// NewWithOptions builds a production zap logger writing to stdout/stderr.
func NewWithOptions(o Options) (*zap.Logger, error) {
	level := o.Level
	if level == "" {
		level = utils.Env("LOG_LEVEL", "info")
	}
	encoding := o.Encoding
	if encoding == "" {
		encoding = utils.Env("LOG_ENCODING", "json")
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = encoding
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	if strings.EqualFold(level, "debug") {
		cfg.Development = true
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ParseLevel maps a level name to a zap level; unknown names mean info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
