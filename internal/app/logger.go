package app

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. Production mode writes JSON, anything
// else writes the console encoding. With file set, entries are teed into a
// rotated JSON log as well. The returned close func flushes the logger and
// releases the log file.
func NewLogger(mode string, file string) (*zap.Logger, func() error, error) {
	var zapConfig zap.Config
	if mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	if file == "" {
		logger, err := zapConfig.Build(zap.AddCaller())
		if err != nil {
			return nil, nil, err
		}
		return logger, func() error {
			_ = logger.Sync()
			return nil
		}, nil
	}

	rotated := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}

	stdoutEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	if mode == "production" {
		stdoutEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotated),
			zapConfig.Level,
		),
		zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), zapConfig.Level),
	)
	logger := zap.New(core, zap.AddCaller())
	return logger, func() error {
		_ = logger.Sync()
		return rotated.Close()
	}, nil
}
