package config

import (
	"encoding/hex"
	"errors"
	"time"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// DialTimeout 客户端拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	TCP       TCPConfig       `json:"tcp"`
	WebSocket WebSocketConfig `json:"websocket"`
	QUIC      QUICConfig      `json:"quic"`
	P2P       P2PConfig       `json:"p2p"`
}

// TCPConfig TCP 传输配置
type TCPConfig struct {
	// KeepAlive TCP keepalive 周期
	KeepAlive Duration `json:"keep_alive"`
	// NoDelay 禁用 Nagle
	NoDelay bool `json:"no_delay"`
}

// WebSocketConfig WebSocket 传输配置
type WebSocketConfig struct {
	ReadBufferSize    int      `json:"read_buffer_size,omitempty"`
	WriteBufferSize   int      `json:"write_buffer_size,omitempty"`
	HandshakeTimeout  Duration `json:"handshake_timeout"`
	EnableCompression bool     `json:"enable_compression"`
	// Path 升级路径
	Path string `json:"path"`
}

// QUICConfig QUIC 传输配置
type QUICConfig struct {
	MaxIdleTimeout   Duration `json:"max_idle_timeout"`
	KeepAlivePeriod  Duration `json:"keep_alive_period"`
	HandshakeTimeout Duration `json:"handshake_timeout"`
}

// P2PConfig p2p 传输配置
type P2PConfig struct {
	HandshakeTimeout Duration `json:"handshake_timeout"`
	// IdentitySeed 十六进制编码的 32 字节身份种子，为空时随机生成
	IdentitySeed string `json:"identity_seed,omitempty"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout: Duration(10 * time.Second),
		TCP: TCPConfig{
			KeepAlive: Duration(30 * time.Second),
			NoDelay:   true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: Duration(10 * time.Second),
			Path:             "/rsocket",
		},
		QUIC: QUICConfig{
			MaxIdleTimeout:   Duration(30 * time.Second),
			KeepAlivePeriod:  Duration(10 * time.Second),
			HandshakeTimeout: Duration(10 * time.Second),
		},
		P2P: P2PConfig{
			HandshakeTimeout: Duration(10 * time.Second),
		},
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be positive")
	}
	if c.TCP.KeepAlive < 0 {
		return errors.New("tcp keep alive must not be negative")
	}
	if c.WebSocket.ReadBufferSize < 0 || c.WebSocket.WriteBufferSize < 0 {
		return errors.New("websocket buffer sizes must not be negative")
	}
	if c.WebSocket.HandshakeTimeout <= 0 {
		return errors.New("websocket handshake timeout must be positive")
	}
	if c.WebSocket.Path == "" || c.WebSocket.Path[0] != '/' {
		return errors.New("websocket path must start with /")
	}
	if c.QUIC.MaxIdleTimeout <= 0 || c.QUIC.HandshakeTimeout <= 0 {
		return errors.New("quic timeouts must be positive")
	}
	if c.P2P.HandshakeTimeout <= 0 {
		return errors.New("p2p handshake timeout must be positive")
	}
	if _, err := c.P2P.Seed(); err != nil {
		return err
	}
	return nil
}

// Seed 解码身份种子，未配置时返回 nil
func (c P2PConfig) Seed() ([]byte, error) {
	if c.IdentitySeed == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(c.IdentitySeed)
	if err != nil {
		return nil, errors.New("p2p identity seed must be hex")
	}
	if len(b) != 32 {
		return nil, errors.New("p2p identity seed must be 32 bytes")
	}
	return b, nil
}
