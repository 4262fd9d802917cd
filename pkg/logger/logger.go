package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志格式
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config 日志配置
// Filename 为空时输出到标准错误，否则写入文件并按大小滚动
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxSize"`    // 单个文件最大 MB
	MaxBackups int    `mapstructure:"maxBackups"` // 保留的旧文件数
	MaxAge     int    `mapstructure:"maxAge"`     // 保留天数
	Compress   bool   `mapstructure:"compress"`
}

// ParseLevel 解析日志级别，无法识别时使用 info
func ParseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// New 按配置创建日志器
func New(cfg Config) *zap.Logger {
	return NewWithWriter(cfg, writer(cfg))
}

// NewWithWriter 使用指定输出创建日志器
func NewWithWriter(cfg Config, w io.Writer) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, FormatConsole) {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), ParseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller())
}

func writer(cfg Config) io.Writer {
	if cfg.Filename == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}
