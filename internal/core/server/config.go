package server

import (
	"time"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/socket"
)

// 默认值
const (
	DefaultSetupTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config 多传输服务端配置
type Config struct {
	// Conn 每条入站连接使用的连接配置（MTU、租约、半关闭等）
	Conn socket.Config

	// AcceptRate 每个监听每秒接受的新连接数上限，0 表示不限
	AcceptRate float64
	// AcceptBurst 接受速率的突发容量，0 时取 max(1, AcceptRate)
	AcceptBurst int

	// MaxConnections 同时存活的连接上限，0 表示不限
	MaxConnections int

	// SetupTimeout 等待 SETUP 的期限
	SetupTimeout time.Duration

	// ShutdownTimeout Close 等待连接关闭的期限
	ShutdownTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Conn:            socket.DefaultConfig(),
		SetupTimeout:    DefaultSetupTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// ConfigFromUnified 从统一配置创建服务端配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Conn:            socket.ConfigFromUnified(cfg),
		AcceptRate:      cfg.Server.AcceptRate,
		AcceptBurst:     cfg.Server.AcceptBurst,
		MaxConnections:  cfg.Server.MaxConnections,
		SetupTimeout:    cfg.Server.SetupTimeout.Duration(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}
}

func (c Config) withDefaults() Config {
	if c.SetupTimeout <= 0 {
		c.SetupTimeout = DefaultSetupTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.AcceptRate > 0 && c.AcceptBurst <= 0 {
		c.AcceptBurst = int(c.AcceptRate)
		if c.AcceptBurst < 1 {
			c.AcceptBurst = 1
		}
	}
	return c
}
