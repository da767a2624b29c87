package websocket

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// lengthSize 帧长度前缀字节数
const lengthSize = 3

// wsConn 把 websocket.Conn 适配为 interfaces.Conn
type wsConn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

var _ interfaces.Conn = (*wsConn)(nil)

func newConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

// Send 逐帧去掉长度前缀后写为二进制消息
func (c *wsConn) Send(ctx context.Context, b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			_ = c.ws.SetWriteDeadline(time.Unix(1, 0))
		})
		defer stop()
	}

	for len(b) > 0 {
		if len(b) < lengthSize {
			return ErrShortFrame
		}
		n := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
		if len(b) < lengthSize+n {
			return ErrShortFrame
		}
		if err := c.ws.WriteMessage(websocket.BinaryMessage, b[lengthSize:lengthSize+n]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		b = b[lengthSize+n:]
	}
	return nil
}

// Receive 读取下一条二进制消息并补回长度前缀
func (c *wsConn) Receive() ([]byte, error) {
	for {
		mt, msg, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) || errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		out := make([]byte, lengthSize+len(msg))
		out[0] = byte(len(msg) >> 16)
		out[1] = byte(len(msg) >> 8)
		out[2] = byte(len(msg))
		copy(out[lengthSize:], msg)
		return out, nil
	}
}

// Close 发送关闭消息后关闭底层连接
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// LocalAddr 本地地址
func (c *wsConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

// RemoteAddr 远端地址
func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
