package netconn

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// ErrListenerClosed 监听器已关闭
var ErrListenerClosed = fmt.Errorf("netconn: listener closed: %w", net.ErrClosed)

// Listener 由后台接受循环喂入连接的监听器
//
// 各传输在自己的 goroutine 里接受并完成握手后调用 Deliver，
// Accept 只负责从队列取出已就绪的连接。
type Listener struct {
	addr    net.Addr
	closeFn func() error

	conns  chan interfaces.Conn
	closed chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	closeErr  error
}

var _ interfaces.Listener = (*Listener)(nil)

// NewListener 创建监听器，closeFn 负责关闭底层监听 socket
func NewListener(addr net.Addr, closeFn func() error) *Listener {
	return &Listener{
		addr:    addr,
		closeFn: closeFn,
		conns:   make(chan interfaces.Conn, 16),
		closed:  make(chan struct{}),
	}
}

// Deliver 投递一个就绪连接；监听器已关闭时关闭该连接并返回 false
func (l *Listener) Deliver(c interfaces.Conn) bool {
	select {
	case <-l.closed:
		_ = c.Close()
		return false
	default:
	}
	select {
	case l.conns <- c:
		return true
	case <-l.closed:
		_ = c.Close()
		return false
	}
}

// Fail 记录致命的接受错误并关闭监听器
func (l *Listener) Fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	_ = l.Close()
}

// Closed 监听器关闭时关闭的 channel
func (l *Listener) Closed() <-chan struct{} {
	return l.closed
}

// Accept 等待下一个就绪连接
func (l *Listener) Accept(ctx context.Context) (interfaces.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.err != nil {
			return nil, l.err
		}
		return nil, ErrListenerClosed
	}
}

// Addr 监听地址
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Close 关闭监听器，排队中尚未被取走的连接一并关闭
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		if l.closeFn != nil {
			l.closeErr = l.closeFn()
		}
		for {
			select {
			case c := <-l.conns:
				_ = c.Close()
			default:
				return
			}
		}
	})
	return l.closeErr
}

// Serve 在 ln 上循环接受连接，upgrade 在独立 goroutine 中完成握手
//
// upgrade 失败只丢弃该连接；ln 的接受错误在监听器未关闭时视为致命错误。
func Serve(l *Listener, ln net.Listener, upgrade func(net.Conn) (interfaces.Conn, error), onError func(error)) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-l.closed:
			default:
				l.Fail(err)
			}
			return
		}
		go func() {
			c, err := upgrade(nc)
			if err != nil {
				_ = nc.Close()
				if onError != nil {
					onError(err)
				}
				return
			}
			l.Deliver(c)
		}()
	}
}
