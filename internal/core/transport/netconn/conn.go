// Package netconn 把字节流连接适配为 interfaces.Conn
//
// tcp、quic、p2p 与 mem 传输都建立在有序字节流之上，帧的边界由连接层的
// 解码器恢复，这里只负责按块读写。
package netconn

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// DefaultReadSize 每次 Receive 的最大读取量
const DefaultReadSize = 32 << 10

// deadliner 支持写超时的底层连接
type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Conn 字节流连接
type Conn struct {
	rw     io.ReadWriteCloser
	local  net.Addr
	remote net.Addr

	writeMu sync.Mutex
	buf     []byte

	closeOnce sync.Once
	closeErr  error
}

var _ interfaces.Conn = (*Conn)(nil)

// New 包装字节流，local/remote 为 nil 时尝试从 net.Conn 获取
func New(rw io.ReadWriteCloser, local, remote net.Addr) *Conn {
	if nc, ok := rw.(net.Conn); ok {
		if local == nil {
			local = nc.LocalAddr()
		}
		if remote == nil {
			remote = nc.RemoteAddr()
		}
	}
	return &Conn{rw: rw, local: local, remote: remote, buf: make([]byte, DefaultReadSize)}
}

// Send 写入一段完整的编码帧
//
// ctx 结束时通过写超时打断阻塞的写入。
func (c *Conn) Send(ctx context.Context, b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := c.rw.(deadliner); ok && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			_ = d.SetWriteDeadline(time.Unix(1, 0))
		})
		defer func() {
			if !stop() {
				_ = d.SetWriteDeadline(time.Time{})
			}
		}()
	}

	_, err := c.rw.Write(b)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Receive 读取下一块数据，只允许读循环调用
func (c *Conn) Receive() ([]byte, error) {
	n, err := c.rw.Read(c.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, c.buf[:n])
		return out, nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil, io.EOF
	}
	return nil, err
}

// Close 关闭底层连接，重复调用返回第一次的结果
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

// LocalAddr 本地地址
func (c *Conn) LocalAddr() net.Addr {
	return c.local
}

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr {
	return c.remote
}
