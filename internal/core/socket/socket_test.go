package socket

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/internal/core/transport/mem"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

func testConfig() Config {
	return Config{
		Logger:       logger.Discard(),
		CloseTimeout: time.Second,
	}
}

func pl(s string) types.Payload {
	return types.NewPayloadString(s)
}

func str(p types.Payload) string {
	s, _ := p.DataUTF8()
	return s
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// connect 在内存管道上建立一对连接
func connect(t *testing.T, ccfg, scfg Config, acceptor Acceptor) (client, server *Conn) {
	t.Helper()
	ctx := testContext(t)
	a, b := mem.Pipe(t.Name())

	type result struct {
		c   *Conn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := Server(ctx, b, scfg, acceptor)
		ch <- result{c, err}
	}()

	client, err := Client(ctx, a, ccfg)
	require.NoError(t, err)
	r := <-ch
	require.NoError(t, r.err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = r.c.Close()
	})
	return client, r.c
}

// serve 以 r 为服务端响应方建立连接
func serve(t *testing.T, r *Responder) (client, server *Conn) {
	t.Helper()
	scfg := testConfig()
	scfg.Responder = r
	return connect(t, testConfig(), scfg, nil)
}

func collect(t *testing.T, src bridge.Source) ([]string, error) {
	t.Helper()
	ctx := testContext(t)
	var out []string
	for {
		p, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, str(p))
	}
}

func echoResponder() *Responder {
	return &Responder{
		RequestResponse: func(_ context.Context, p types.Payload) (types.Payload, error) {
			return p, nil
		},
		RequestStream: func(_ context.Context, p types.Payload) (bridge.Source, error) {
			items := make([]types.Payload, 5)
			for i := range items {
				items[i] = pl(str(p) + "-" + string(rune('0'+i)))
			}
			return bridge.FromSlice(items), nil
		},
		RequestChannel: func(_ context.Context, in bridge.Source) (bridge.Source, error) {
			return bridge.Map(in, func(p types.Payload) (types.Payload, error) {
				return pl("echo:" + str(p)), nil
			}), nil
		},
	}
}

func requireErrorCode(t *testing.T, err error, code types.ErrorCode) *types.Error {
	t.Helper()
	require.Error(t, err)
	var e *types.Error
	require.True(t, errors.As(err, &e), "want *types.Error, got %T: %v", err, err)
	assert.Equal(t, code, e.Code)
	return e
}

// ============================================================================
//                              SETUP
// ============================================================================

func TestSetup_AcceptorSeesSetup(t *testing.T) {
	ccfg := testConfig()
	ccfg.KeepaliveInterval = time.Minute
	ccfg.MetadataMIME = "message/x.rsocket.routing.v0"
	ccfg.DataMIME = "application/json"
	ccfg.SetupPayload = types.NewPayload([]byte("hello"), []byte("meta"))

	var got types.SetupInfo
	acceptor := func(_ context.Context, s types.SetupInfo, c *Conn) (*Responder, error) {
		got = s
		assert.Equal(t, RoleServer, c.Role())
		return echoResponder(), nil
	}
	client, _ := connect(t, ccfg, testConfig(), acceptor)

	assert.Equal(t, uint16(frame.MajorVersion), got.MajorVersion)
	assert.Equal(t, time.Minute, got.KeepaliveInterval)
	assert.Equal(t, DefaultMaxLifetime, got.MaxLifetime)
	assert.Equal(t, "message/x.rsocket.routing.v0", got.MetadataMIME)
	assert.Equal(t, "application/json", got.DataMIME)
	assert.Equal(t, "hello", str(got.Payload))
	assert.Equal(t, []byte("meta"), got.Payload.Metadata())
	assert.False(t, got.Lease)

	// acceptor 返回的响应方生效
	res, err := client.RequestResponse(testContext(t), pl("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ping", str(res))
}

func TestSetup_Rejected(t *testing.T) {
	ctx := testContext(t)
	a, b := mem.Pipe(t.Name())

	srvErr := make(chan error, 1)
	go func() {
		_, err := Server(ctx, b, testConfig(), func(context.Context, types.SetupInfo, *Conn) (*Responder, error) {
			return nil, errors.New("go away")
		})
		srvErr <- err
	}()

	client, err := Client(ctx, a, testConfig())
	require.NoError(t, err)
	defer client.Close()

	err = <-srvErr
	assert.ErrorIs(t, err, ErrInvalidSetup)

	select {
	case <-client.Done():
	case <-ctx.Done():
		t.Fatal("客户端未关闭")
	}
	e := requireErrorCode(t, client.Err(), types.ErrorCodeRejectedSetup)
	assert.Equal(t, "go away", e.Message)
}

func TestSetup_FirstFrameNotSetup(t *testing.T) {
	ctx := testContext(t)
	a, b := mem.Pipe(t.Name())
	defer a.Close()

	srvErr := make(chan error, 1)
	go func() {
		_, err := Server(ctx, b, testConfig(), nil)
		srvErr <- err
	}()

	buf, err := frame.Encode(frame.NewRequestResponse(1, pl("x")))
	require.NoError(t, err)
	require.NoError(t, a.Send(ctx, buf))

	// 服务端回复 INVALID_SETUP
	reply, err := a.Receive()
	require.NoError(t, err)
	f, _, err := frame.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, frame.TypeError, f.Type)
	assert.Equal(t, types.ErrorCodeInvalidSetup, f.ErrorCode)

	assert.ErrorIs(t, <-srvErr, ErrInvalidSetup)
}

func TestSetup_ServerContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, b := mem.Pipe(t.Name())

	srvErr := make(chan error, 1)
	go func() {
		_, err := Server(ctx, b, testConfig(), nil)
		srvErr <- err
	}()
	cancel()

	select {
	case err := <-srvErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Server 未返回")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	cfg.MTU = 10
	assert.ErrorIs(t, cfg.Validate(), frame.ErrInvalidMTU)

	cfg = testConfig()
	cfg.LeaseRequests = 10
	assert.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.InitialRequestN = frame.MaxRequestN + 1
	assert.Error(t, cfg.Validate())

	d := DefaultConfig()
	assert.Equal(t, DefaultKeepaliveInterval, d.KeepaliveInterval)
	assert.Equal(t, uint32(DefaultInitialRequestN), d.InitialRequestN)
	assert.Equal(t, DefaultMIME, d.DataMIME)
}

// ============================================================================
//                              请求-响应
// ============================================================================

func TestRequestResponse(t *testing.T) {
	client, server := serve(t, echoResponder())
	ctx := testContext(t)

	res, err := client.RequestResponse(ctx, types.NewPayload([]byte("data"), []byte("meta")))
	require.NoError(t, err)
	assert.Equal(t, "data", str(res))
	assert.Equal(t, []byte("meta"), res.Metadata())

	require.Eventually(t, func() bool {
		return client.ActiveStreams() == 0 && server.ActiveStreams() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequestResponse_Concurrent(t *testing.T) {
	client, _ := serve(t, echoResponder())
	ctx := testContext(t)

	const n = 32
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			want := strings.Repeat("x", i+1)
			res, err := client.RequestResponse(ctx, pl(want))
			if err == nil && str(res) != want {
				err = errors.New("mismatched response " + str(res))
			}
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestRequestResponse_HandlerError(t *testing.T) {
	client, _ := serve(t, &Responder{
		RequestResponse: func(_ context.Context, p types.Payload) (types.Payload, error) {
			if str(p) == "typed" {
				return types.Payload{}, types.NewError(types.ErrorCodeRejected, "nope")
			}
			return types.Payload{}, errors.New("boom")
		},
	})
	ctx := testContext(t)

	_, err := client.RequestResponse(ctx, pl("plain"))
	e := requireErrorCode(t, err, types.ErrorCodeApplicationError)
	assert.Equal(t, "boom", e.Message)

	_, err = client.RequestResponse(ctx, pl("typed"))
	e = requireErrorCode(t, err, types.ErrorCodeRejected)
	assert.Equal(t, "nope", e.Message)
}

func TestRequestResponse_HandlerPanic(t *testing.T) {
	client, server := serve(t, &Responder{
		RequestResponse: func(context.Context, types.Payload) (types.Payload, error) {
			panic("kaboom")
		},
	})

	_, err := client.RequestResponse(testContext(t), pl("x"))
	e := requireErrorCode(t, err, types.ErrorCodeApplicationError)
	assert.Contains(t, e.Message, "panic: kaboom")

	// panic 不影响连接
	select {
	case <-server.Done():
		t.Fatal("服务端连接被关闭")
	default:
	}
}

func TestRequestResponse_NotImplemented(t *testing.T) {
	client, _ := serve(t, &Responder{})
	ctx := testContext(t)

	_, err := client.RequestResponse(ctx, pl("x"))
	e := requireErrorCode(t, err, types.ErrorCodeApplicationError)
	assert.Equal(t, "not implemented: "+types.KindRequestResponse.String(), e.Message)

	s, err := client.OpenStream(ctx, pl("x"), 0)
	require.NoError(t, err)
	_, err = collect(t, s)
	requireErrorCode(t, err, types.ErrorCodeApplicationError)
}

func TestRequestResponse_ContextCancel(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	client, server := serve(t, &Responder{
		RequestResponse: func(ctx context.Context, _ types.Payload) (types.Payload, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return types.Payload{}, ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := client.RequestResponse(ctx, pl("x"))
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("服务端处理器未被取消")
	}
	require.Eventually(t, func() bool {
		return client.ActiveStreams() == 0 && server.ActiveStreams() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// ============================================================================
//                              单向请求与元数据推送
// ============================================================================

func TestFireAndForget(t *testing.T) {
	got := make(chan string, 1)
	client, server := serve(t, &Responder{
		FireAndForget: func(_ context.Context, p types.Payload) error {
			got <- str(p)
			return nil
		},
	})

	require.NoError(t, client.FireAndForget(testContext(t), pl("fire")))
	select {
	case s := <-got:
		assert.Equal(t, "fire", s)
	case <-time.After(5 * time.Second):
		t.Fatal("未收到单向请求")
	}
	assert.Zero(t, client.ActiveStreams())
	assert.Zero(t, server.ActiveStreams())
}

func TestFireAndForget_NotImplemented(t *testing.T) {
	client, server := serve(t, &Responder{})
	require.NoError(t, client.FireAndForget(testContext(t), pl("x")))

	// 未实现的单向请求被静默丢弃，连接保持可用
	time.Sleep(20 * time.Millisecond)
	select {
	case <-server.Done():
		t.Fatal("连接被关闭")
	default:
	}
}

func TestMetadataPush(t *testing.T) {
	got := make(chan []byte, 1)
	client, _ := serve(t, &Responder{
		MetadataPush: func(_ context.Context, p types.Payload) error {
			got <- p.Metadata()
			return nil
		},
	})
	ctx := testContext(t)

	assert.ErrorIs(t, client.MetadataPush(ctx, types.NewPayload([]byte("d"), []byte("m"))), types.ErrMetadataPushData)
	assert.ErrorIs(t, client.MetadataPush(ctx, types.EmptyPayload()), types.ErrMetadataPushEmpty)

	require.NoError(t, client.MetadataPush(ctx, types.NewPayload(nil, []byte("routes"))))
	select {
	case m := <-got:
		assert.Equal(t, []byte("routes"), m)
	case <-time.After(5 * time.Second):
		t.Fatal("未收到元数据推送")
	}
}

// ============================================================================
//                              服务端发起请求
// ============================================================================

func TestServerRequestsClient(t *testing.T) {
	ccfg := testConfig()
	ccfg.Responder = &Responder{
		RequestResponse: func(_ context.Context, p types.Payload) (types.Payload, error) {
			return pl("client:" + str(p)), nil
		},
	}
	_, server := connect(t, ccfg, testConfig(), nil)

	res, err := server.RequestResponse(testContext(t), pl("hi"))
	require.NoError(t, err)
	assert.Equal(t, "client:hi", str(res))
}

// ============================================================================
//                              连接关闭
// ============================================================================

func TestClose_TerminatesStreams(t *testing.T) {
	client, server := serve(t, &Responder{
		RequestStream: func(context.Context, types.Payload) (bridge.Source, error) {
			return bridge.SourceFunc(func(ctx context.Context) (types.Payload, error) {
				<-ctx.Done()
				return types.Payload{}, ctx.Err()
			}), nil
		},
	})
	ctx := testContext(t)

	s, err := client.OpenStream(ctx, pl("x"), 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return server.ActiveStreams() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Close())
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, client.Err(), ErrClosed)
	assert.Zero(t, client.ActiveStreams())

	select {
	case <-server.Done():
	case <-ctx.Done():
		t.Fatal("服务端未检测到断开")
	}
	assert.ErrorIs(t, server.Err(), ErrConnectionLost)

	// 关闭后的请求立即失败
	_, err = client.RequestResponse(ctx, pl("late"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, client.FireAndForget(ctx, pl("late")), ErrClosed)
}

func TestProtocolError_WrongParity(t *testing.T) {
	ctx := testContext(t)
	a, b := mem.Pipe(t.Name())
	defer a.Close()

	srv := make(chan *Conn, 1)
	go func() {
		c, err := Server(ctx, b, testConfig(), nil)
		assert.NoError(t, err)
		srv <- c
	}()

	setup, err := frame.Encode(frame.NewSetup(frame.SetupParams{
		MaxLifetime:  60000,
		MetadataMIME: DefaultMIME,
		DataMIME:     DefaultMIME,
	}, types.EmptyPayload()))
	require.NoError(t, err)
	require.NoError(t, a.Send(ctx, setup))
	server := <-srv
	require.NotNil(t, server)
	defer server.Close()

	// 客户端不能使用偶数流 ID
	req, err := frame.Encode(frame.NewRequestResponse(2, pl("x")))
	require.NoError(t, err)
	go func() {
		for {
			if _, err := a.Receive(); err != nil {
				return
			}
		}
	}()
	require.NoError(t, a.Send(ctx, req))

	select {
	case <-server.Done():
	case <-ctx.Done():
		t.Fatal("服务端未关闭")
	}
	assert.ErrorIs(t, server.Err(), ErrProtocol)
}

func TestConfigFromUnified(t *testing.T) {
	d := ConfigFromUnified(nil)
	assert.Equal(t, DefaultKeepaliveInterval, d.KeepaliveInterval)
	assert.Equal(t, DefaultMaxLifetime, d.MaxLifetime)
	assert.Equal(t, uint32(DefaultInitialRequestN), d.InitialRequestN)
	assert.Equal(t, DefaultMIME, d.MetadataMIME)
	require.NoError(t, d.Validate())

	cfg := config.NewConfig()
	cfg.Connection.FragmentMTU = 128
	cfg.Connection.LeaseRequests = 8
	cfg.Connection.HalfCloseTimeout = config.Duration(3 * time.Second)
	c := ConfigFromUnified(cfg)
	assert.Equal(t, 128, c.MTU)
	assert.Equal(t, uint32(8), c.LeaseRequests)
	assert.Equal(t, 30*time.Second, c.LeaseTTL)
	assert.Equal(t, 3*time.Second, c.HalfCloseTimeout)
	require.NoError(t, c.Validate())
}
