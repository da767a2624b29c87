package transport

import (
	"fmt"
	"sort"
	"time"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/transport/mem"
	"github.com/dep2p/go-rsocket/internal/core/transport/p2p"
	"github.com/dep2p/go-rsocket/internal/core/transport/quic"
	"github.com/dep2p/go-rsocket/internal/core/transport/tcp"
	"github.com/dep2p/go-rsocket/internal/core/transport/websocket"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// Config 各载体的配置
type Config struct {
	// DialTimeout 客户端拨号超时
	DialTimeout time.Duration

	TCP       tcp.Config
	WebSocket websocket.Config
	QUIC      quic.Config
	P2P       p2p.Config

	// P2PSeed p2p 身份种子，为 nil 时随机生成
	P2PSeed []byte
}

// NewConfig 返回默认配置
func NewConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		TCP:         tcp.DefaultConfig(),
		WebSocket:   websocket.DefaultConfig(),
		QUIC:        quic.DefaultConfig(),
		P2P:         p2p.DefaultConfig(),
	}
}

// ConfigFromUnified 从统一配置创建传输配置
func ConfigFromUnified(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return NewConfig(), nil
	}
	tc := cfg.Transport
	seed, err := tc.P2P.Seed()
	if err != nil {
		return Config{}, err
	}
	tcpConf := tcp.Config{
		DialTimeout: tc.DialTimeout.Duration(),
		KeepAlive:   tc.TCP.KeepAlive.Duration(),
		NoDelay:     tc.TCP.NoDelay,
	}
	return Config{
		DialTimeout: tc.DialTimeout.Duration(),
		TCP:         tcpConf,
		WebSocket: websocket.Config{
			ReadBufferSize:    tc.WebSocket.ReadBufferSize,
			WriteBufferSize:   tc.WebSocket.WriteBufferSize,
			HandshakeTimeout:  tc.WebSocket.HandshakeTimeout.Duration(),
			EnableCompression: tc.WebSocket.EnableCompression,
			Path:              tc.WebSocket.Path,
		},
		QUIC: quic.Config{
			MaxIdleTimeout:   tc.QUIC.MaxIdleTimeout.Duration(),
			KeepAlivePeriod:  tc.QUIC.KeepAlivePeriod.Duration(),
			HandshakeTimeout: tc.QUIC.HandshakeTimeout.Duration(),
		},
		P2P: p2p.Config{
			TCP:              tcpConf,
			HandshakeTimeout: tc.P2P.HandshakeTimeout.Duration(),
		},
		P2PSeed: seed,
	}, nil
}

// Factory 创建一个传输实例
type Factory func(cfg Config) (interfaces.Transport, error)

// registry 标签到构造函数，初始化后只读
var registry = map[string]Factory{
	tcp.Protocol: func(cfg Config) (interfaces.Transport, error) {
		return tcp.New(cfg.TCP), nil
	},
	websocket.Protocol: func(cfg Config) (interfaces.Transport, error) {
		return websocket.New(cfg.WebSocket), nil
	},
	quic.Protocol: func(cfg Config) (interfaces.Transport, error) {
		return quic.New(cfg.QUIC)
	},
	p2p.Protocol: func(cfg Config) (interfaces.Transport, error) {
		id, err := p2p.NewIdentity(cfg.P2PSeed)
		if err != nil {
			return nil, err
		}
		return p2p.New(id, cfg.P2P), nil
	},
	mem.Protocol: func(Config) (interfaces.Transport, error) {
		return mem.New(), nil
	},
}

// Labels 返回已注册的标签（有序）
func Labels() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New 按标签创建传输
func New(label string, cfg Config) (interfaces.Transport, error) {
	f, ok := registry[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, label)
	}
	return f(cfg)
}
