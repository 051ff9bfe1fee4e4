package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the service logger. Production emits JSON; anything else gets
// the colored console encoder. level is one of debug, info, warn, error; an
// empty or unknown level keeps the env default.
func New(env, level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		config = zap.NewProductionConfig()
		config.Encoding = "json"
	}

	if lvl, err := zapcore.ParseLevel(level); level != "" && err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	// Registers run under a supervisor that collects stdout
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.InitialFields = map[string]interface{}{"service": "pos-core"}

	return config.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
