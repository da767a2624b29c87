package config

import "errors"

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否采集并导出指标
	Enabled bool `json:"enabled"`
	// Addr Prometheus 导出地址
	Addr string `json:"addr,omitempty"`
	// Namespace 指标名前缀
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr:      "127.0.0.1:9464",
		Namespace: "rsocket",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return errors.New("metrics addr must be set when enabled")
	}
	if c.Namespace == "" {
		return errors.New("metrics namespace must not be empty")
	}
	return nil
}
