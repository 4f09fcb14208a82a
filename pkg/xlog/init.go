package xlog

import (
	"os"
	"strings"

	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置, 由xenv加载
type Options struct {
	Level  string `env:"LOG_LEVEL" yaml:"level"`
	JSON   bool   `env:"LOG_JSON" yaml:"json"`
	Silent bool   `env:"LOG_SILENT" yaml:"silent"` // 关闭标准输出(测试用)
}

var gLogger Logger

func init() {
	gLogger = newCoreLogger(zapcore.DebugLevel, false, os.Stdout)
}

// Init replaces the global logger. Unknown levels fall back to debug.
func Init(opts Options) {
	sink := zapcore.AddSync(os.Stdout)
	if opts.Silent {
		sink = zapcore.AddSync(zapcore.NewMultiWriteSyncer())
	}
	gLogger = newCoreLogger(parseLevel(opts.Level), opts.JSON, sink)
}

func parseLevel(lvl string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
		return zapcore.DebugLevel
	}
	return l
}

func getEncoder(isProd bool) zapcore.Encoder {
	withColor := !isProd
	config := ecsCompatibleEncoder(withColor)
	config.TimeKey = FieldTimestamp
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	if isProd {
		return zapcore.NewJSONEncoder(config)
	}
	return zapcore.NewConsoleEncoder(config)
}

// Elastic Common Schema (ECS) 兼容的encoder格式, 便于日志被ELK归档
func ecsCompatibleEncoder(withColor bool) zapcore.EncoderConfig {
	return ecszap.EncoderConfig{
		EnableName:       true,
		EncodeName:       zapcore.FullNameEncoder,
		EnableStackTrace: true,
		EnableCaller:     true,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      customLevelEncoder(withColor),
		EncodeDuration:   zapcore.StringDurationEncoder,
	}.ToZapCoreEncoderConfig()
}

func defaultOptions() []zap.Option {
	return []zap.Option{
		zap.WithCaller(true),
		// DPanic时自动增加Stacktrace
		zap.AddStacktrace(zap.NewAtomicLevelAt(zap.DPanicLevel)),
	}
}

func newCoreLogger(logLvl zapcore.Level, isProd bool, sink zapcore.WriteSyncer) Logger {
	core := zapcore.NewCore(getEncoder(isProd), zapcore.Lock(sink), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= logLvl
	}))
	return newLogger(zap.New(core, defaultOptions()...))
}
