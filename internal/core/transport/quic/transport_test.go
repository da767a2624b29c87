package quic

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("quic://127.0.0.1:7880")
	require.NoError(t, err)
	assert.Equal(t, 7880, a.Port)

	_, err = ParseAddress("127.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestGenerateServerTLS(t *testing.T) {
	conf, err := GenerateServerTLS()
	require.NoError(t, err)
	require.Len(t, conf.Certificates, 1)
	assert.Equal(t, []string{ALPN}, conf.NextProtos)

	raw := conf.Certificates[0].Certificate
	require.NoError(t, verifyPeerCertificate(raw, nil))

	cert, err := x509.ParseCertificate(raw[0])
	require.NoError(t, err)
	assert.True(t, cert.NotAfter.After(time.Now()))

	assert.ErrorIs(t, verifyPeerCertificate(nil, nil), ErrNoCertificate)
}

func TestTransport_DialListen(t *testing.T) {
	tr := newTestTransport(t)
	assert.Equal(t, "quic", tr.Protocol())

	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := tr.Dial(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	// 服务端在首个字节到达后才能看到流
	msg := []byte{0, 0, 4, 'p', 'i', 'n', 'g'}
	require.NoError(t, client.Send(ctx, msg))

	server, err := ln.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()

	var got []byte
	for len(got) < len(msg) {
		b, err := server.Receive()
		require.NoError(t, err)
		got = append(got, b...)
	}
	assert.Equal(t, msg, got)

	require.NoError(t, server.Send(ctx, []byte{0, 0, 0}))
	b, err := client.Receive()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, b)

	require.NoError(t, client.Close())
	for {
		_, err = server.Receive()
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, io.EOF)
}

func TestTransport_Close(t *testing.T) {
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	ln, err := tr.Listen("127.0.0.1:0")
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err = ln.Accept(context.Background())
	assert.True(t, errors.Is(err, net.ErrClosed))
	_, err = tr.Dial(context.Background(), ln.Addr().String())
	assert.ErrorIs(t, err, ErrTransportClosed)
	_, err = tr.Listen("127.0.0.1:0")
	assert.ErrorIs(t, err, ErrTransportClosed)
}
