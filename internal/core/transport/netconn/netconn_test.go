package netconn

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

func TestConn_SendReceive(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := New(a, nil, nil), New(b, nil, nil)
	defer ca.Close()
	defer cb.Close()

	go func() {
		_ = ca.Send(context.Background(), []byte("hello"))
	}()
	got, err := cb.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
	assert.NotNil(t, ca.LocalAddr())
	assert.NotNil(t, cb.RemoteAddr())
}

func TestConn_SendContextCancel(t *testing.T) {
	a, b := net.Pipe()
	ca := New(a, nil, nil)
	defer ca.Close()
	defer b.Close()

	// 对端不读取，写入阻塞直到 ctx 结束
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := ca.Send(ctx, []byte("blocked"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_ReceiveAfterClose(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := New(a, nil, nil), New(b, nil, nil)
	require.NoError(t, ca.Close())
	require.NoError(t, ca.Close())

	_, err := cb.Receive()
	assert.ErrorIs(t, err, io.EOF)
	_, err = ca.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

func TestListener_DeliverAccept(t *testing.T) {
	closed := 0
	l := NewListener(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}, func() error {
		closed++
		return nil
	})

	a, b := net.Pipe()
	defer b.Close()
	require.True(t, l.Deliver(New(a, nil, nil)))

	c, err := l.Accept(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
	c.Close()

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Equal(t, 1, closed)

	_, err = l.Accept(context.Background())
	assert.ErrorIs(t, err, ErrListenerClosed)
	assert.True(t, errors.Is(err, net.ErrClosed))

	x, y := net.Pipe()
	defer y.Close()
	assert.False(t, l.Deliver(New(x, nil, nil)))
}

func TestListener_AcceptContext(t *testing.T) {
	l := NewListener(nil, nil)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Accept(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListener_Fail(t *testing.T) {
	l := NewListener(nil, nil)
	boom := errors.New("boom")
	l.Fail(boom)

	_, err := l.Accept(context.Background())
	assert.ErrorIs(t, err, boom)
	select {
	case <-l.Closed():
	default:
		t.Fatal("listener not closed")
	}
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l := NewListener(ln.Addr(), ln.Close)
	defer l.Close()

	upgradeErr := make(chan error, 1)
	reject := true
	go Serve(l, ln, func(nc net.Conn) (interfaces.Conn, error) {
		if reject {
			reject = false
			return nil, errors.New("rejected")
		}
		return New(nc, nil, nil), nil
	}, func(err error) { upgradeErr <- err })

	c1, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c1.Close()
	assert.EqualError(t, <-upgradeErr, "rejected")

	c2, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c2.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := l.Accept(ctx)
	require.NoError(t, err)
	c.Close()
}
