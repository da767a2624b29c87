package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认级别
	DefaultLevel slog.Level

	// Subsystems 子系统级别
	Subsystems map[string]slog.Level

	// Format 输出格式
	Format Format

	// AddSource 是否输出源码位置
	AddSource bool
}

// LevelFor 返回子系统的日志级别
func (c *Config) LevelFor(subsystem string) slog.Level {
	if lv, ok := c.Subsystems[subsystem]; ok {
		return lv
	}
	return c.DefaultLevel
}

var (
	envCfg *Config
	envMu  sync.Mutex
)

// ConfigFromEnv 从环境变量读取配置（结果缓存）
//
//   - RSOCKET_LOG_LEVEL: subsystem=level,...,default
//   - RSOCKET_LOG_FORMAT: text | json
//   - RSOCKET_LOG_SOURCE: true | false
func ConfigFromEnv() *Config {
	envMu.Lock()
	defer envMu.Unlock()
	if envCfg == nil {
		envCfg = parseEnv()
	}
	return envCfg
}

// ResetConfig 清除配置缓存（仅用于测试）
func ResetConfig() {
	envMu.Lock()
	envCfg = nil
	envMu.Unlock()
}

func parseEnv() *Config {
	cfg := &Config{
		DefaultLevel: slog.LevelInfo,
		Subsystems:   make(map[string]slog.Level),
		Format:       FormatText,
	}
	if s := os.Getenv("RSOCKET_LOG_LEVEL"); s != "" {
		cfg.parseLevels(s)
	}
	if strings.EqualFold(os.Getenv("RSOCKET_LOG_FORMAT"), "json") {
		cfg.Format = FormatJSON
	}
	if s := os.Getenv("RSOCKET_LOG_SOURCE"); s != "" {
		cfg.AddSource = s != "false" && s != "0"
	}
	return cfg
}

// parseLevels 解析 "socket=debug,transport=warn,info"
func (c *Config) parseLevels(spec string) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lvl, found := strings.Cut(part, "=")
		if !found {
			if lv, ok := parseLevel(name); ok {
				c.DefaultLevel = lv
			}
			continue
		}
		if lv, ok := parseLevel(strings.TrimSpace(lvl)); ok {
			c.Subsystems[strings.TrimSpace(name)] = lv
		}
	}
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
