package interfaces

import (
	"context"
	"net"
)

// Conn 传输连接
//
// 有序、可靠、双向的字节或消息通道。引擎对所有载体一视同仁：
// Send 的参数总是一个或多个带 24 位长度前缀的完整帧，Receive 返回的
// 数据块可以任意切分（字节流载体没有消息边界）。
type Conn interface {
	// Send 发送数据，ctx 的截止时间作为写超时
	Send(ctx context.Context, b []byte) error

	// Receive 接收下一个数据块，连接关闭时返回 io.EOF
	Receive() ([]byte, error)

	// Close 关闭连接
	Close() error

	// LocalAddr 返回本地地址
	LocalAddr() net.Addr

	// RemoteAddr 返回远端地址
	RemoteAddr() net.Addr
}

// Listener 传输监听器
type Listener interface {
	// Accept 接受新连接，监听器关闭后返回 net.ErrClosed
	Accept(ctx context.Context) (Conn, error)

	// Addr 返回实际监听地址
	Addr() net.Addr

	// Close 关闭监听器
	Close() error
}

// Transport 传输协议
type Transport interface {
	// Dial 连接到指定地址
	Dial(ctx context.Context, addr string) (Conn, error)

	// Listen 在指定地址监听
	Listen(addr string) (Listener, error)

	// Protocol 返回协议标签（tcp, websocket, quic, p2p, mem）
	Protocol() string

	// Close 关闭传输及其创建的全部监听器与连接
	Close() error
}

// ClientTransport 绑定了目标地址的客户端传输
type ClientTransport interface {
	Connect(ctx context.Context) (Conn, error)
	Protocol() string
}

// ServerTransport 绑定了监听地址的服务端传输
type ServerTransport interface {
	Listen() (Listener, error)
	Protocol() string
}
