package p2p

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-rsocket/internal/core/transport/tcp"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

var log = logger.Logger("transport/p2p")

// Protocol 协议名称
const Protocol = "p2p"

// Config p2p 传输配置
type Config struct {
	// TCP 底层 TCP 配置
	TCP tcp.Config
	// HandshakeTimeout Noise 握手超时
	HandshakeTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		TCP:              tcp.DefaultConfig(),
		HandshakeTimeout: 10 * time.Second,
	}
}

// Transport 基于 TCP + Noise 的 p2p 传输
type Transport struct {
	id     *Identity
	config Config
	tcp    *tcp.Transport
	closed atomic.Bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 p2p 传输
func New(id *Identity, config Config) *Transport {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	return &Transport{id: id, config: config, tcp: tcp.New(config.TCP)}
}

// Identity 本地身份
func (t *Transport) Identity() *Identity {
	return t.id
}

// Protocol 返回协议名称
func (t *Transport) Protocol() string {
	return Protocol
}

// Dial 连接对端并完成握手，地址带 nodeID@ 时校验对端身份
func (t *Transport) Dial(ctx context.Context, addr string) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	expect, hostport, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	nc, err := t.tcp.DialRaw(ctx, hostport)
	if err != nil {
		return nil, err
	}
	c, err := t.secure(ctx, nc, expect, true)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	log.Debug("握手完成", "remote", hostport, "peer", c.RemoteNodeID())
	return c, nil
}

// Listen 监听入站连接，每个连接在独立 goroutine 中完成握手
func (t *Transport) Listen(addr string) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	_, hostport, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	l, err := t.tcp.ListenUpgrade(hostport, func(nc net.Conn) (interfaces.Conn, error) {
		return t.secure(context.Background(), nc, "", false)
	})
	if err != nil {
		return nil, err
	}
	log.Info("p2p 监听已启动", "addr", l.Addr().String(), "node", t.id.NodeID())
	return l, nil
}

func (t *Transport) secure(ctx context.Context, nc net.Conn, expect string, initiator bool) (*Conn, error) {
	deadline := time.Now().Add(t.config.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := nc.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = nc.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	sc, err := handshake(nc, t.id, expect, initiator)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("p2p: %w", err)
	}
	if !stop() {
		return nil, ctx.Err()
	}
	if err := nc.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return newConn(sc), nil
}

// Close 关闭传输及其全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.tcp.Close()
}
