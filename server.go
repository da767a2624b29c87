package rsocket

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/multierr"

	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/internal/core/server"
	"github.com/dep2p/go-rsocket/internal/core/transport"
)

// ════════════════════════════════════════════════════════════════════════════
//                              ServerBuilder
// ════════════════════════════════════════════════════════════════════════════

// ServerBuilder 多传输服务端构建器
//
// 示例：
//
//	err := rsocket.NewServerBuilder().
//	    AddTransport("tcp", rsocket.TCPServerTransport("127.0.0.1:7878")).
//	    AddTransport("ws", rsocket.WebSocketServerTransport("127.0.0.1:7879")).
//	    Handlers(&rsocket.HandlerSet{RequestResponse: pong}).
//	    OnStart(func() { fmt.Println("ready") }).
//	    Serve(ctx)
//
// 构建过程中的第一个错误会保留到 Build 或 Serve 时返回。
type ServerBuilder struct {
	opts       []Option
	transports []labeled
	acceptor   Acceptor
	mtu        *int
	onStart    func()
	err        error
}

type labeled struct {
	label string
	st    *ServerTransport
}

// NewServerBuilder 创建构建器，opts 作用于每条入站连接
func NewServerBuilder(opts ...Option) *ServerBuilder {
	return &ServerBuilder{opts: opts}
}

// AddTransport 以 label 注册一个服务端传输
func (b *ServerBuilder) AddTransport(label string, st *ServerTransport) *ServerBuilder {
	if st == nil {
		b.fail(fmt.Errorf("%w: %s", ErrNilTransport, label))
		return b
	}
	for _, t := range b.transports {
		if t.label == label {
			b.fail(fmt.Errorf("%w: %s", ErrDuplicateLabel, label))
			return b
		}
	}
	b.transports = append(b.transports, labeled{label: label, st: st})
	return b
}

// Acceptor 设置 SETUP 处理函数，可按 SETUP 内容为每条连接选择处理函数
func (b *ServerBuilder) Acceptor(a Acceptor) *ServerBuilder {
	b.acceptor = a
	return b
}

// Handlers 所有连接共用 h
//
// h 可以是 *HandlerSet 或实现了任意处理器接口的值，能力在这里一次确定。
func (b *ServerBuilder) Handlers(h any) *ServerBuilder {
	b.acceptor = server.HandlerAcceptor(h)
	return b
}

// Echo 所有连接使用回显处理
func (b *ServerBuilder) Echo() *ServerBuilder {
	b.acceptor = server.EchoAcceptor()
	return b
}

// Fragment 设置出站帧的分片阈值，0 表示不分片
func (b *ServerBuilder) Fragment(mtu int) *ServerBuilder {
	if mtu != 0 && mtu < frame.MinMTU {
		b.fail(fmt.Errorf("%w: %d", frame.ErrInvalidMTU, mtu))
		return b
	}
	b.mtu = &mtu
	return b
}

// OnStart 设置全部监听就绪后调用一次的回调
func (b *ServerBuilder) OnStart(fn func()) *ServerBuilder {
	b.onStart = fn
	return b
}

func (b *ServerBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build 创建传输并返回尚未启动的服务端
func (b *ServerBuilder) Build() (*Server, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.transports) == 0 {
		return nil, ErrNoTransports
	}
	o, err := applyOptions(b.opts)
	if err != nil {
		return nil, err
	}
	if b.mtu != nil {
		o.cfg.Connection.FragmentMTU = *b.mtu
	}

	cfg := server.ConfigFromUnified(o.cfg)
	cfg.Conn = o.connConfig()
	srv := server.New(cfg)
	acceptor := b.acceptor
	if acceptor == nil && o.responder == nil {
		acceptor = server.EchoAcceptor()
	}
	srv.SetAcceptor(acceptor)
	srv.OnStart(b.onStart)

	s := &Server{srv: srv}
	for _, t := range b.transports {
		st, err := t.st.build(o)
		if err != nil {
			_ = s.closeTransports()
			return nil, fmt.Errorf("transport %s: %w", t.label, err)
		}
		s.transports = append(s.transports, st)
		if err := srv.Add(t.label, st); err != nil {
			_ = s.closeTransports()
			return nil, err
		}
	}
	return s, nil
}

// Serve 构建并运行服务端，阻塞到 ctx 结束或监听发生致命错误
func (b *ServerBuilder) Serve(ctx context.Context) error {
	s, err := b.Build()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Serve(ctx)
}

// ════════════════════════════════════════════════════════════════════════════
//                              Server
// ════════════════════════════════════════════════════════════════════════════

// Server 已构建的多传输服务端
type Server struct {
	srv        *server.Server
	transports []*transport.ServerTransport
}

// Serve 绑定全部监听并阻塞
//
// ctx 结束或 Close 时返回 nil；任一监听绑定失败或运行中致命出错时，
// 全部监听一起关闭并返回该错误。
func (s *Server) Serve(ctx context.Context) error {
	return s.srv.Serve(ctx)
}

// Ready 全部监听就绪后关闭
func (s *Server) Ready() <-chan struct{} {
	return s.srv.Ready()
}

// Addrs 各传输的实际监听地址
func (s *Server) Addrs() map[string]net.Addr {
	return s.srv.Addrs()
}

// ConnCount 存活连接数
func (s *Server) ConnCount() int {
	return s.srv.ConnCount()
}

// Close 关闭监听、连接与传输
func (s *Server) Close() error {
	return multierr.Append(s.srv.Close(), s.closeTransports())
}

func (s *Server) closeTransports() error {
	var err error
	for _, t := range s.transports {
		err = multierr.Append(err, t.Close())
	}
	s.transports = nil
	return err
}
