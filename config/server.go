package config

import (
	"errors"
	"fmt"
	"time"
)

// ServerConfig 多传输服务端配置
type ServerConfig struct {
	// Listeners 监听列表
	Listeners []ListenerConfig `json:"listeners"`

	// AcceptRate 每秒接受的新连接数上限，0 表示不限
	AcceptRate float64 `json:"accept_rate,omitempty"`
	// AcceptBurst 接受速率的突发容量
	AcceptBurst int `json:"accept_burst,omitempty"`

	// MaxConnections 同时存活的连接上限，0 表示不限
	MaxConnections int `json:"max_connections,omitempty"`

	// SetupTimeout 等待 SETUP 帧的期限
	SetupTimeout Duration `json:"setup_timeout"`

	// ShutdownTimeout 停止时等待连接关闭的期限
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// ListenerConfig 单个监听
type ListenerConfig struct {
	// Transport 传输标签：tcp、websocket、quic、p2p、mem
	Transport string `json:"transport"`
	// Addr 监听地址
	Addr string `json:"addr"`
}

// DefaultServerConfig 返回默认服务端配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		SetupTimeout:    Duration(10 * time.Second),
		ShutdownTimeout: Duration(10 * time.Second),
	}
}

var knownTransports = map[string]bool{
	"tcp": true, "websocket": true, "quic": true, "p2p": true, "mem": true,
}

// Validate 验证服务端配置
func (c ServerConfig) Validate() error {
	for i, l := range c.Listeners {
		if !knownTransports[l.Transport] {
			return fmt.Errorf("listener %d: unknown transport %q", i, l.Transport)
		}
		if l.Addr == "" {
			return fmt.Errorf("listener %d: empty address", i)
		}
	}
	if c.AcceptRate < 0 || c.AcceptBurst < 0 || c.MaxConnections < 0 {
		return errors.New("limits must not be negative")
	}
	if c.AcceptRate > 0 && c.AcceptBurst == 0 {
		return errors.New("accept burst must be positive when accept rate is set")
	}
	if c.SetupTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}
