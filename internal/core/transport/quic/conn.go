package quic

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-rsocket/internal/core/transport/netconn"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// streamRW 把 QUIC 流与其所属连接绑定为一个字节流
//
// 关闭时先关闭流再以应用错误码 0 关闭连接；对端以码 0 关闭视为正常结束。
type streamRW struct {
	quic.Stream
	conn quic.Connection

	closeOnce sync.Once
}

func (s *streamRW) Read(p []byte) (int, error) {
	n, err := s.Stream.Read(p)
	if err != nil && isNormalClose(err) {
		err = io.EOF
	}
	return n, err
}

func (s *streamRW) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.Stream.CancelRead(0)
		_ = s.Stream.Close()
		err = s.conn.CloseWithError(0, "")
	})
	return err
}

func isNormalClose(err error) bool {
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) && appErr.ErrorCode == 0 {
		return true
	}
	var idle *quic.IdleTimeoutError
	if errors.As(err, &idle) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

func newConn(qc quic.Connection, s quic.Stream) interfaces.Conn {
	return netconn.New(&streamRW{Stream: s, conn: qc}, qc.LocalAddr(), qc.RemoteAddr())
}

// openStream 客户端在新连接上打开唯一的双向流
func openStream(ctx context.Context, qc quic.Connection) (interfaces.Conn, error) {
	s, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(1, "open stream failed")
		return nil, err
	}
	return newConn(qc, s), nil
}

// acceptStream 服务端等待客户端打开的双向流
//
// QUIC 流在首个字节到达时才对服务端可见，即客户端的 SETUP 帧。
func acceptStream(ctx context.Context, qc quic.Connection) (interfaces.Conn, error) {
	s, err := qc.AcceptStream(ctx)
	if err != nil {
		_ = qc.CloseWithError(1, "accept stream failed")
		return nil, err
	}
	return newConn(qc, s), nil
}
