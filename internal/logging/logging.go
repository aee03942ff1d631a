package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/elera-assistant/console/internal/config"
)

// Setup 根据配置初始化全局 zerolog 日志器并返回它。
func Setup(cfg config.LogConfig) zerolog.Logger {
	return setup(cfg, os.Stderr)
}

func setup(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel 解析日志级别，无法识别时回退到 info。
func ParseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Component 返回带 component 字段的子日志器。
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
