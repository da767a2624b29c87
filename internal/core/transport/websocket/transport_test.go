package websocket

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"127.0.0.1:7879", "ws://127.0.0.1:7879/rsocket", true},
		{"ws://127.0.0.1:7879", "ws://127.0.0.1:7879/rsocket", true},
		{"ws://127.0.0.1:7879/custom", "ws://127.0.0.1:7879/custom", true},
		{"http://localhost:80/", "ws://localhost:80/rsocket", true},
		{"https://localhost:443/x", "wss://localhost:443/x", true},
		{"ftp://localhost:21", "", false},
		{"ws://localhost", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := ParseURL(tt.in, "")
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestTransport_FramesAsMessages(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()
	assert.Equal(t, "websocket", tr.Protocol())

	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := tr.Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server, err := ln.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()

	// 两个帧在一次 Send 中，应拆成两条消息
	frames := []byte{0, 0, 2, 'h', 'i', 0, 0, 1, '!'}
	require.NoError(t, client.Send(ctx, frames))

	first, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 2, 'h', 'i'}, first)
	second, err := server.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, '!'}, second)

	require.NoError(t, server.Send(ctx, []byte{0, 0, 0}))
	echo, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, echo)
}

func TestTransport_ShortFrame(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := tr.Dial(ctx, "ws://"+ln.Addr().String()+DefaultPath)
	require.NoError(t, err)
	defer c.Close()

	assert.ErrorIs(t, c.Send(ctx, []byte{0, 0, 5, 1}), ErrShortFrame)
	assert.ErrorIs(t, c.Send(ctx, []byte{0}), ErrShortFrame)
}

func TestTransport_CloseReachesPeer(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := tr.Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	s, err := ln.Accept(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	_, err = s.Receive()
	assert.Error(t, err)
	s.Close()
}

func TestTransport_Close(t *testing.T) {
	tr := New(DefaultConfig())
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	_, err = ln.Accept(context.Background())
	assert.True(t, errors.Is(err, net.ErrClosed))
	_, err = tr.Dial(context.Background(), ln.Addr().String())
	assert.ErrorIs(t, err, ErrTransportClosed)
}
