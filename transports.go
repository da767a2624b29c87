package rsocket

import (
	"github.com/dep2p/go-rsocket/internal/core/transport"
	"github.com/dep2p/go-rsocket/internal/core/transport/mem"
	"github.com/dep2p/go-rsocket/internal/core/transport/p2p"
	"github.com/dep2p/go-rsocket/internal/core/transport/quic"
	"github.com/dep2p/go-rsocket/internal/core/transport/tcp"
	"github.com/dep2p/go-rsocket/internal/core/transport/websocket"
)

// ════════════════════════════════════════════════════════════════════════════
//                              传输描述
// ════════════════════════════════════════════════════════════════════════════
//
// 构造函数只记录协议与地址，传输实例在 Connect 或 Serve 时按选项创建，
// 随客户端或服务端一起关闭。

// ClientTransport 客户端传输：协议加目标地址
type ClientTransport struct {
	label string
	addr  string
	seed  []byte
}

// Protocol 传输协议
func (c *ClientTransport) Protocol() string {
	return c.label
}

// Addr 目标地址
func (c *ClientTransport) Addr() string {
	return c.addr
}

func (c *ClientTransport) build(o *options) (*transport.ClientTransport, error) {
	cfg, err := o.transportConfig()
	if err != nil {
		return nil, err
	}
	if c.seed != nil {
		cfg.P2PSeed = c.seed
	}
	return transport.NewClient(c.label, c.addr, cfg)
}

// ServerTransport 服务端传输：协议加监听地址
type ServerTransport struct {
	label string
	bind  string
	seed  []byte
}

// Protocol 传输协议
func (s *ServerTransport) Protocol() string {
	return s.label
}

// Addr 监听地址
func (s *ServerTransport) Addr() string {
	return s.bind
}

func (s *ServerTransport) build(o *options) (*transport.ServerTransport, error) {
	cfg, err := o.transportConfig()
	if err != nil {
		return nil, err
	}
	if s.seed != nil {
		cfg.P2PSeed = s.seed
	}
	return transport.NewServer(s.label, s.bind, cfg)
}

// ════════════════════════════════════════════════════════════════════════════
//                              客户端传输
// ════════════════════════════════════════════════════════════════════════════

// TCPClientTransport TCP 客户端传输，addr 形如 "127.0.0.1:7878"
func TCPClientTransport(addr string) *ClientTransport {
	return &ClientTransport{label: tcp.Protocol, addr: addr}
}

// WebSocketClientTransport WebSocket 客户端传输
//
// url 形如 "ws://127.0.0.1:7879/rsocket"，省略路径时使用配置中的路径。
func WebSocketClientTransport(url string) *ClientTransport {
	return &ClientTransport{label: websocket.Protocol, addr: url}
}

// QUICClientTransport QUIC 客户端传输
func QUICClientTransport(addr string) *ClientTransport {
	return &ClientTransport{label: quic.Protocol, addr: addr}
}

// P2PClientTransport p2p 客户端传输
//
// addr 形如 "nodeID@host:port" 时校验对端身份，只给 "host:port" 时接受任意身份。
// seed 为本端 32 字节身份种子，nil 时随机生成。
func P2PClientTransport(addr string, seed []byte) *ClientTransport {
	return &ClientTransport{label: p2p.Protocol, addr: addr, seed: seed}
}

// MemClientTransport 进程内客户端传输
func MemClientTransport(name string) *ClientTransport {
	return &ClientTransport{label: mem.Protocol, addr: name}
}

// ════════════════════════════════════════════════════════════════════════════
//                              服务端传输
// ════════════════════════════════════════════════════════════════════════════

// TCPServerTransport TCP 服务端传输
func TCPServerTransport(bind string) *ServerTransport {
	return &ServerTransport{label: tcp.Protocol, bind: bind}
}

// WebSocketServerTransport WebSocket 服务端传输，升级路径取自配置
func WebSocketServerTransport(bind string) *ServerTransport {
	return &ServerTransport{label: websocket.Protocol, bind: bind}
}

// QUICServerTransport QUIC 服务端传输，使用自签名证书
func QUICServerTransport(bind string) *ServerTransport {
	return &ServerTransport{label: quic.Protocol, bind: bind}
}

// P2PServerTransport p2p 服务端传输
//
// seed 为 32 字节身份种子，nil 时随机生成；节点 ID 可用 P2PNodeID 预先计算。
func P2PServerTransport(bind string, seed []byte) *ServerTransport {
	return &ServerTransport{label: p2p.Protocol, bind: bind, seed: seed}
}

// MemServerTransport 进程内服务端传输
func MemServerTransport(name string) *ServerTransport {
	return &ServerTransport{label: mem.Protocol, bind: name}
}

// P2PNodeID 返回身份种子对应的节点 ID
func P2PNodeID(seed []byte) (string, error) {
	id, err := p2p.NewIdentity(seed)
	if err != nil {
		return "", err
	}
	return id.NodeID(), nil
}
