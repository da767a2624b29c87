// Package logger 提供 go-rsocket 的统一日志系统
//
// 基于标准库 log/slog，每个子系统一个 Logger：
//
//	var log = logger.Logger("socket")
//
//	log.Debug("收到帧", "stream", id, "type", f.Type)
//	log.Warn("丢弃未知流的帧", "stream", id)
//
// 环境变量配置:
//
//	# socket 子系统 debug，其余 info
//	RSOCKET_LOG_LEVEL=socket=debug,info
//
//	# JSON 输出
//	RSOCKET_LOG_FORMAT=json
//
//	# 不输出源码位置
//	RSOCKET_LOG_SOURCE=false
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	// loggers 子系统 Logger 缓存
	loggers sync.Map // map[string]*slog.Logger

	// levels 子系统级别，可在运行时调整
	levels sync.Map // map[string]*slog.LevelVar

	output   io.Writer = os.Stderr
	outputMu sync.RWMutex
)

// Logger 获取子系统 Logger
//
// 同一子系统多次调用返回同一实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	lv := levelVar(subsystem, cfg.LevelFor(subsystem))
	l := slog.New(newHandler(subsystem, lv, cfg))

	actual, _ := loggers.LoadOrStore(subsystem, l)
	return actual.(*slog.Logger)
}

// SetLevel 调整子系统日志级别，对已创建的 Logger 立即生效
func SetLevel(subsystem string, level slog.Level) {
	levelVar(subsystem, level).Set(level)
}

// SetLevels 按 "subsystem=level,...,default" 格式批量调整级别
//
// 用于命令行参数，格式与 RSOCKET_LOG_LEVEL 相同。
func SetLevels(spec string) {
	base := ConfigFromEnv()
	cfg := &Config{DefaultLevel: base.DefaultLevel, Subsystems: map[string]slog.Level{}}
	cfg.parseLevels(spec)
	levels.Range(func(key, value any) bool {
		value.(*slog.LevelVar).Set(cfg.LevelFor(key.(string)))
		return true
	})
	envMu.Lock()
	merged := *base
	merged.DefaultLevel = cfg.DefaultLevel
	merged.Subsystems = cfg.Subsystems
	envCfg = &merged
	envMu.Unlock()
}

// SetOutput 设置全局日志输出目标，已创建的 Logger 同样生效
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃所有日志的 Logger（用于测试）
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// With 创建带预设属性的子系统 Logger
func With(subsystem string, args ...any) *slog.Logger {
	return Logger(subsystem).With(args...)
}

func levelVar(subsystem string, initial slog.Level) *slog.LevelVar {
	if v, ok := levels.Load(subsystem); ok {
		return v.(*slog.LevelVar)
	}
	lv := new(slog.LevelVar)
	lv.Set(initial)
	actual, _ := levels.LoadOrStore(subsystem, lv)
	return actual.(*slog.LevelVar)
}
