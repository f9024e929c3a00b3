package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

// NewLogger builds a JSON logger for production and a console logger for
// anything else
func NewLogger(level, environment string) (*Logger, error) {
	config := zap.NewProductionConfig()
	if environment != "production" {
		config = zap.NewDevelopmentConfig()
		config.DisableStacktrace = true
	}
	// Keep stdout for command output
	config.OutputPaths = []string{"stderr"}

	// Parse log level
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// Component tags every entry with the subsystem that wrote it
func (l *Logger) Component(name string) *zap.Logger {
	return l.With(zap.String("component", name))
}
