// Package config 提供统一的配置管理
//
// 主 Config 嵌入各子配置，每个子配置在独立文件中定义并提供
// Default...Config() 与 Validate()。支持从 JSON 加载与预设。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Connection.KeepaliveInterval = config.Duration(10 * time.Second)
//
//	cfg, err := config.LoadFile("rsocket.json")
//	err = config.ApplyPreset(cfg, "server")
package config

import (
	"errors"
	"fmt"
)

// ErrNilConfig 配置为空
var ErrNilConfig = errors.New("config is nil")

// Config 完整配置
type Config struct {
	// Connection 连接层参数（心跳、流控、分片、租约）
	Connection ConnectionConfig `json:"connection"`

	// Transport 各传输载体的参数
	Transport TransportConfig `json:"transport"`

	// Server 多传输服务端
	Server ServerConfig `json:"server"`

	// Metrics 指标导出
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Connection: DefaultConnectionConfig(),
		Transport:  DefaultTransportConfig(),
		Server:     DefaultServerConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

// Validate 依次校验全部子配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
