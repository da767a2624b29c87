package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/dep2p/go-rsocket/config"
)

// ============================================================================
//                              环境变量覆盖（CLI 专用）
// ============================================================================

// 环境变量名
const (
	envPrefix          = "RSOCKET_"
	envListeners       = "LISTENERS"
	envInitialRequestN = "INITIAL_REQUEST_N"
	envMaxConnections  = "MAX_CONNECTIONS"
	envMetricsAddr     = "METRICS_ADDR"
	envP2PSeed         = "P2P_SEED"
)

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数：
//   - RSOCKET_LISTENERS: transport=addr，逗号分隔，如 tcp=:7878,quic=:7880
//   - RSOCKET_INITIAL_REQUEST_N: 初始请求数
//   - RSOCKET_MAX_CONNECTIONS: 最大连接数
//   - RSOCKET_METRICS_ADDR: 启用指标并设置导出地址
//   - RSOCKET_P2P_SEED: p2p 身份种子
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envPrefix + envListeners); v != "" {
		if ls := parseListeners(v); len(ls) > 0 {
			cfg.Server.Listeners = ls
		}
	}

	if v := os.Getenv(envPrefix + envInitialRequestN); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Connection.InitialRequestN = uint32(n)
		}
	}

	if v := os.Getenv(envPrefix + envMaxConnections); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConnections = n
		}
	}

	if v := os.Getenv(envPrefix + envMetricsAddr); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
	}

	if v := os.Getenv(envPrefix + envP2PSeed); v != "" {
		cfg.Transport.P2P.IdentitySeed = v
	}
}

// parseListeners 解析 transport=addr 列表，忽略格式错误的项
func parseListeners(s string) []config.ListenerConfig {
	var out []config.ListenerConfig
	for _, item := range strings.Split(s, ",") {
		transport, addr, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || transport == "" || addr == "" {
			continue
		}
		out = append(out, config.ListenerConfig{Transport: transport, Addr: addr})
	}
	return out
}
