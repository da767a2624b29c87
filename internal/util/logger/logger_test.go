package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSetOutput_ExistingLogger 测试切换输出对已创建的 Logger 生效
func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test-output")

	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log.Info("after switch", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "after switch")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "subsystem=test-output")
}

// TestSetLevel 测试运行时调整级别
func TestSetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log := Logger("test-level")
	SetLevel("test-level", slog.LevelWarn)
	log.Info("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	SetLevel("test-level", slog.LevelDebug)
	log.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "level=debug")

	SetLevels("test-level=error,info")
	log.Warn("suppressed")
	assert.NotContains(t, buf.String(), "suppressed")
}

// TestConfig_ParseLevels 测试级别配置解析
func TestConfig_ParseLevels(t *testing.T) {
	cfg := &Config{DefaultLevel: slog.LevelInfo, Subsystems: map[string]slog.Level{}}
	cfg.parseLevels("socket=debug, transport = warn ,error,bogus=loud")

	assert.Equal(t, slog.LevelDebug, cfg.LevelFor("socket"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelFor("transport"))
	assert.Equal(t, slog.LevelError, cfg.LevelFor("server"))
	_, ok := cfg.Subsystems["bogus"]
	assert.False(t, ok)
}

// TestDiscard 测试丢弃 Logger
func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	log.Error("nothing")
}
