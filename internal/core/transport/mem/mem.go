// Package mem 提供进程内传输，基于 net.Pipe，主要用于测试
//
// 监听地址是任意名称，空名称时自动分配；同一进程内按名称拨号。
package mem

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dep2p/go-rsocket/internal/core/transport/netconn"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// Protocol 协议名称
const Protocol = "mem"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("mem: transport closed")
	// ErrAddressInUse 名称已被监听
	ErrAddressInUse = errors.New("mem: address in use")
	// ErrNoListener 名称上没有监听器
	ErrNoListener = errors.New("mem: no listener")
)

// Addr 进程内地址
type Addr string

// Network 实现 net.Addr
func (a Addr) Network() string { return Protocol }

// String 实现 net.Addr
func (a Addr) String() string { return string(a) }

var (
	hubMu sync.Mutex
	hub   = make(map[string]*netconn.Listener)
)

// Transport 进程内传输
type Transport struct {
	mu        sync.Mutex
	listeners map[*netconn.Listener]struct{}
	closed    atomic.Bool
}

var _ interfaces.Transport = (*Transport)(nil)

// New 创建进程内传输
func New() *Transport {
	return &Transport{listeners: make(map[*netconn.Listener]struct{})}
}

// Protocol 返回协议名称
func (t *Transport) Protocol() string {
	return Protocol
}

// Listen 以名称注册监听器
func (t *Transport) Listen(addr string) (interfaces.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	name := strings.TrimPrefix(addr, "mem://")
	if name == "" {
		name = uuid.NewString()
	}

	hubMu.Lock()
	defer hubMu.Unlock()
	if _, ok := hub[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAddressInUse, name)
	}
	var l *netconn.Listener
	l = netconn.NewListener(Addr(name), func() error {
		hubMu.Lock()
		if hub[name] == l {
			delete(hub, name)
		}
		hubMu.Unlock()
		t.mu.Lock()
		delete(t.listeners, l)
		t.mu.Unlock()
		return nil
	})
	hub[name] = l

	t.mu.Lock()
	t.listeners[l] = struct{}{}
	t.mu.Unlock()
	return l, nil
}

// Dial 按名称连接
func (t *Transport) Dial(ctx context.Context, addr string) (interfaces.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(addr, "mem://")

	hubMu.Lock()
	l, ok := hub[name]
	hubMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoListener, name)
	}

	client, server := Pipe(name)
	if !l.Deliver(server) {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoListener, name)
	}
	return client, nil
}

// Close 关闭全部监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	ls := make([]*netconn.Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	t.mu.Unlock()

	var err error
	for _, l := range ls {
		err = multierr.Append(err, l.Close())
	}
	return err
}

// Pipe 返回一对直接相连的连接，name 用作双方的地址
func Pipe(name string) (client, server *netconn.Conn) {
	a, b := net.Pipe()
	client = netconn.New(a, Addr(name+"/client"), Addr(name))
	server = netconn.New(b, Addr(name), Addr(name+"/client"))
	return client, server
}
