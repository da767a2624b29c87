package rsocket

import (
	"github.com/dep2p/go-rsocket/config"
)

// ════════════════════════════════════════════════════════════════════════════
//                              预设配置常量
// ════════════════════════════════════════════════════════════════════════════

// 预设名称常量
const (
	// PresetDefault 默认预设：不修改配置
	PresetDefault = "default"

	// PresetServer 服务端预设：签发租约、接受限速、启用指标导出
	PresetServer = "server"

	// PresetTest 测试预设：关闭心跳，缩短各类超时
	PresetTest = "test"
)

// ════════════════════════════════════════════════════════════════════════════
//                              预设配置获取
// ════════════════════════════════════════════════════════════════════════════

// DefaultConfig 返回默认配置
func DefaultConfig() *config.Config {
	return config.NewConfig()
}

// PresetConfig 返回应用了预设的配置
//
// 示例：
//
//	cfg, err := rsocket.PresetConfig(rsocket.PresetServer)
func PresetConfig(name string) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := config.ApplyPreset(cfg, name); err != nil {
		return nil, err
	}
	return cfg, nil
}
