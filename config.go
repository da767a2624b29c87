package rsocket

import (
	"github.com/dep2p/go-rsocket/config"
)

// Config 统一配置
//
// 应用层负责读取文件与环境变量，库只提供加载与校验：
//
//	cfg, err := rsocket.LoadConfig("rsocket.json")
//	c, err := rsocket.Connect(ctx, ct, rsocket.WithConfig(cfg))
type Config = config.Config

// LoadConfig 读取并校验 JSON 配置文件
func LoadConfig(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig 在默认配置之上叠加 JSON 内容并校验
func ParseConfig(data []byte) (*Config, error) {
	cfg, err := config.FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
