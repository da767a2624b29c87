package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"

	"github.com/dep2p/go-rsocket/internal/core/transport/netconn"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

var log = logger.Logger("transport/quic")

// Protocol 协议名称
const Protocol = "quic"

// Config QUIC 传输配置
type Config struct {
	// MaxIdleTimeout 连接空闲超时
	MaxIdleTimeout time.Duration
	// KeepAlivePeriod QUIC 层保活间隔，0 表示关闭
	KeepAlivePeriod time.Duration
	// HandshakeTimeout 握手与首个流建立的超时
	HandshakeTimeout time.Duration
	// ServerTLS 服务端 TLS 配置，为 nil 时生成自签名证书
	ServerTLS *tls.Config
	// ClientTLS 客户端 TLS 配置，为 nil 时使用 ClientTLS()
	ClientTLS *tls.Config
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxIdleTimeout:   30 * time.Second,
		KeepAlivePeriod:  10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport QUIC 传输
//
// 每个监听器独占一个 UDP socket；拨号共用一个随机端口的 quic.Transport。
type Transport struct {
	mu sync.Mutex

	config    Config
	quicConf  *quic.Config
	serverTLS *tls.Config
	clientTLS *tls.Config

	dialer    *quic.Transport
	listeners map[*netconn.Listener]struct{}
	closed    bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建 QUIC 传输
func New(config Config) (*Transport, error) {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultConfig().HandshakeTimeout
	}
	serverTLS := config.ServerTLS
	if serverTLS == nil {
		var err error
		if serverTLS, err = GenerateServerTLS(); err != nil {
			return nil, err
		}
	}
	clientTLS := config.ClientTLS
	if clientTLS == nil {
		clientTLS = ClientTLS()
	}
	return &Transport{
		config: config,
		quicConf: &quic.Config{
			MaxIdleTimeout:       config.MaxIdleTimeout,
			KeepAlivePeriod:      config.KeepAlivePeriod,
			HandshakeIdleTimeout: config.HandshakeTimeout,
			MaxIncomingStreams:   1,
		},
		serverTLS: serverTLS,
		clientTLS: clientTLS,
		listeners: make(map[*netconn.Listener]struct{}),
	}, nil
}

// Protocol 返回协议名称
func (t *Transport) Protocol() string {
	return Protocol
}

// Dial 建立 QUIC 连接并打开唯一的双向流
func (t *Transport) Dial(ctx context.Context, addr string) (interfaces.Conn, error) {
	udpAddr, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	qt, err := t.dialTransport()
	if err != nil {
		return nil, err
	}
	tlsConf := t.clientTLS.Clone()
	if tlsConf.ServerName == "" {
		tlsConf.ServerName = udpAddr.IP.String()
	}
	qc, err := qt.Dial(ctx, udpAddr, tlsConf, t.quicConf)
	if err != nil {
		return nil, fmt.Errorf("quic: dial %s: %w", udpAddr, err)
	}
	c, err := openStream(ctx, qc)
	if err != nil {
		return nil, fmt.Errorf("quic: open stream: %w", err)
	}
	log.Debug("建立出站连接", "remote", udpAddr.String())
	return c, nil
}

func (t *Transport) dialTransport() (*quic.Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	if t.dialer == nil {
		udp, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
		if err != nil {
			return nil, fmt.Errorf("quic: listen udp for dial: %w", err)
		}
		t.dialer = &quic.Transport{Conn: udp}
	}
	return t.dialer, nil
}

// Listen 在 UDP 地址上监听
func (t *Transport) Listen(addr string) (interfaces.Listener, error) {
	udpAddr, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}

	udp, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("quic: listen %s: %w", udpAddr, err)
	}
	qt := &quic.Transport{Conn: udp}
	qln, err := qt.Listen(t.serverTLS, t.quicConf)
	if err != nil {
		_ = qt.Close()
		_ = udp.Close()
		return nil, fmt.Errorf("quic: listen %s: %w", udpAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var l *netconn.Listener
	l = netconn.NewListener(udp.LocalAddr(), func() error {
		cancel()
		t.mu.Lock()
		delete(t.listeners, l)
		t.mu.Unlock()
		return multierr.Combine(qln.Close(), qt.Close(), udp.Close())
	})
	t.listeners[l] = struct{}{}

	go t.serve(ctx, l, qln)
	log.Info("QUIC 监听已启动", "addr", udp.LocalAddr().String())
	return l, nil
}

func (t *Transport) serve(ctx context.Context, l *netconn.Listener, qln *quic.Listener) {
	for {
		qc, err := qln.Accept(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, quic.ErrServerClosed) {
				l.Fail(err)
			}
			return
		}
		go func() {
			sctx, cancel := context.WithTimeout(ctx, t.config.HandshakeTimeout)
			defer cancel()
			c, err := acceptStream(sctx, qc)
			if err != nil {
				log.Debug("等待首个流失败", "remote", qc.RemoteAddr().String(), "err", err)
				return
			}
			l.Deliver(c)
		}()
	}
}

// Close 关闭传输及其全部监听器
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	ls := make([]*netconn.Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	dialer := t.dialer
	t.dialer = nil
	t.mu.Unlock()

	var err error
	for _, l := range ls {
		err = multierr.Append(err, l.Close())
	}
	if dialer != nil {
		err = multierr.Append(err, dialer.Close())
		err = multierr.Append(err, dialer.Conn.Close())
	}
	return err
}

// ParseAddress 解析 host:port 或 quic://host:port
func ParseAddress(addr string) (*net.UDPAddr, error) {
	addr = strings.TrimPrefix(addr, "quic://")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return udpAddr, nil
}
