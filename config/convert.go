package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FromJSON 在默认配置之上叠加 JSON 内容
//
//	{
//	  "connection": {"keepalive_interval": "10s", "initial_request_n": 64},
//	  "server": {"listeners": [{"transport": "tcp", "addr": "127.0.0.1:7878"}]}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 读取并校验 JSON 配置文件
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyPreset 应用预设
//
//   - "default": 不做修改
//   - "server": 启用租约、接受限速与指标
//   - "test": 关闭心跳，缩短各类超时
func ApplyPreset(cfg *Config, name string) error {
	if cfg == nil {
		return ErrNilConfig
	}
	switch name {
	case "", "default":
		return nil
	case "server":
		applyServerPreset(cfg)
		return nil
	case "test":
		applyTestPreset(cfg)
		return nil
	default:
		return fmt.Errorf("unknown preset: %s", name)
	}
}

func applyServerPreset(cfg *Config) {
	cfg.Connection.LeaseRequests = 10000
	cfg.Connection.LeaseTTL = Duration(30 * time.Second)
	cfg.Connection.HalfCloseTimeout = Duration(time.Minute)

	cfg.Server.AcceptRate = 500
	cfg.Server.AcceptBurst = 100
	cfg.Server.MaxConnections = 10000

	cfg.Metrics.Enabled = true
}

func applyTestPreset(cfg *Config) {
	cfg.Connection.KeepaliveInterval = 0
	cfg.Connection.CloseTimeout = Duration(time.Second)
	cfg.Connection.CancelGrace = Duration(time.Second)

	cfg.Transport.DialTimeout = Duration(2 * time.Second)
	cfg.Server.SetupTimeout = Duration(2 * time.Second)
	cfg.Server.ShutdownTimeout = Duration(2 * time.Second)
}

// Clone 深拷贝配置
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Server.Listeners = append([]ListenerConfig(nil), c.Server.Listeners...)
	return &out
}
