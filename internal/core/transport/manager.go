package transport

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

var log = logger.Logger("transport")

// Manager 按标签缓存传输实例
type Manager struct {
	config Config

	mu         sync.Mutex
	transports map[string]interfaces.Transport
	closed     bool
}

// NewManager 创建传输管理器
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg, transports: make(map[string]interfaces.Transport)}
}

// Config 返回传输配置
func (m *Manager) Config() Config {
	return m.config
}

// Transport 返回标签对应的传输，首次访问时创建
func (m *Manager) Transport(label string) (interfaces.Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if t, ok := m.transports[label]; ok {
		return t, nil
	}
	t, err := New(label, m.config)
	if err != nil {
		return nil, err
	}
	m.transports[label] = t
	log.Debug("传输已创建", "transport", label)
	return t, nil
}

// Client 返回绑定目标地址的客户端传输
func (m *Manager) Client(label, addr string) (*ClientTransport, error) {
	t, err := m.Transport(label)
	if err != nil {
		return nil, err
	}
	return &ClientTransport{t: t, addr: addr, timeout: m.config.DialTimeout}, nil
}

// Server 返回绑定监听地址的服务端传输
func (m *Manager) Server(label, bind string) (*ServerTransport, error) {
	t, err := m.Transport(label)
	if err != nil {
		return nil, err
	}
	return &ServerTransport{t: t, bind: bind}, nil
}

// Close 关闭全部传输
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ts := m.transports
	m.transports = nil
	m.mu.Unlock()

	var err error
	for label, t := range ts {
		if cerr := t.Close(); cerr != nil {
			log.Warn("关闭传输失败", "transport", label, "err", cerr)
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

// ============================================================================
//                              客户端/服务端适配
// ============================================================================

// ClientTransport 绑定目标地址的客户端传输
type ClientTransport struct {
	t       interfaces.Transport
	addr    string
	timeout time.Duration
	owned   bool
}

var _ interfaces.ClientTransport = (*ClientTransport)(nil)

// NewClient 创建独占一个传输实例的客户端传输，Close 时一并关闭
func NewClient(label, addr string, cfg Config) (*ClientTransport, error) {
	t, err := New(label, cfg)
	if err != nil {
		return nil, err
	}
	return &ClientTransport{t: t, addr: addr, timeout: cfg.DialTimeout, owned: true}, nil
}

// Connect 拨出一条新连接
func (c *ClientTransport) Connect(ctx context.Context) (interfaces.Conn, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.t.Dial(ctx, c.addr)
}

// Protocol 传输标签
func (c *ClientTransport) Protocol() string {
	return c.t.Protocol()
}

// Addr 目标地址
func (c *ClientTransport) Addr() string {
	return c.addr
}

// Transport 底层传输
func (c *ClientTransport) Transport() interfaces.Transport {
	return c.t
}

// Close 关闭独占的传输实例
func (c *ClientTransport) Close() error {
	if !c.owned {
		return nil
	}
	return c.t.Close()
}

// ServerTransport 绑定监听地址的服务端传输
type ServerTransport struct {
	t     interfaces.Transport
	bind  string
	owned bool
}

var _ interfaces.ServerTransport = (*ServerTransport)(nil)

// NewServer 创建独占一个传输实例的服务端传输
func NewServer(label, bind string, cfg Config) (*ServerTransport, error) {
	t, err := New(label, cfg)
	if err != nil {
		return nil, err
	}
	return &ServerTransport{t: t, bind: bind, owned: true}, nil
}

// Listen 在绑定地址上监听
func (s *ServerTransport) Listen() (interfaces.Listener, error) {
	return s.t.Listen(s.bind)
}

// Protocol 传输标签
func (s *ServerTransport) Protocol() string {
	return s.t.Protocol()
}

// Addr 绑定地址
func (s *ServerTransport) Addr() string {
	return s.bind
}

// Transport 底层传输
func (s *ServerTransport) Transport() interfaces.Transport {
	return s.t
}

// Close 关闭独占的传输实例
func (s *ServerTransport) Close() error {
	if !s.owned {
		return nil
	}
	return s.t.Close()
}
