package rsocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-rsocket/internal/util/logger"
)

// ============================================================================
//                              测试辅助
// ============================================================================

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testOptions(extra ...Option) []Option {
	return append([]Option{WithPreset(PresetTest), WithLogger(logger.Discard())}, extra...)
}

// startServer 构建并在后台运行服务端，等待全部监听就绪
func startServer(t *testing.T, b *ServerBuilder) *Server {
	t.Helper()
	s, err := b.Build()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background()) }()
	select {
	case <-s.Ready():
	case err := <-errCh:
		t.Fatalf("serve: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server not ready")
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func connectTo(t *testing.T, ct *ClientTransport, opts ...Option) *Client {
	t.Helper()
	c, err := Connect(testContext(t), ct, testOptions(opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func text(p Payload) string {
	s, _ := p.DataUTF8()
	return s
}

func texts(ps []Payload) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, text(p))
	}
	return out
}

func payloads(ss ...string) []Payload {
	out := make([]Payload, 0, len(ss))
	for _, s := range ss {
		out = append(out, NewPayloadString(s))
	}
	return out
}

// demoHandlers 覆盖四种请求交互的处理函数
func demoHandlers() *HandlerSet {
	return &HandlerSet{
		RequestResponse: func(_ context.Context, p Payload) (Payload, error) {
			if text(p) == "ping" {
				return NewPayloadString("pong"), nil
			}
			return Payload{}, NewError(ErrorCodeInvalid, "expected ping")
		},
		RequestStream: func(_ context.Context, p Payload) (Source, error) {
			return FromGenerator(func(yield func(Payload) bool) {
				for i := 0; i < 5; i++ {
					time.Sleep(5 * time.Millisecond)
					if !yield(NewPayloadString(fmt.Sprintf("%s-%d", text(p), i))) {
						return
					}
				}
			}), nil
		},
		RequestChannel: func(_ context.Context, in Source) (Source, error) {
			return Map(in, func(p Payload) (Payload, error) {
				return NewPayloadString("echo:" + text(p)), nil
			}), nil
		},
	}
}

func memPair(t *testing.T, b *ServerBuilder, opts ...Option) (*Server, *Client) {
	t.Helper()
	name := t.Name()
	s := startServer(t, b.AddTransport("mem", MemServerTransport(name)))
	return s, connectTo(t, MemClientTransport(name), opts...)
}

// ============================================================================
//                              交互场景
// ============================================================================

func TestScenario_PingPong(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))

	resp, err := c.RequestResponse(testContext(t), NewPayloadString("ping"))
	require.NoError(t, err)
	assert.Equal(t, "pong", text(resp))

	_, err = c.RequestResponse(testContext(t), NewPayloadString("pang"))
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrorCodeInvalid, perr.Code)
	assert.Equal(t, "expected ping", perr.Message)
}

func TestScenario_StreamCallbackWithSmallWindow(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()),
		WithInitialRequestN(2))

	var (
		mu       sync.Mutex
		indices  []int
		items    []string
		complete int
		total    int
		success  bool
	)
	err := c.RequestStreamWithCallback(testContext(t), NewPayloadString("s"),
		func(p Payload, index int) {
			mu.Lock()
			defer mu.Unlock()
			indices = append(indices, index)
			items = append(items, text(p))
		},
		func(n int, ok bool, err error) {
			mu.Lock()
			defer mu.Unlock()
			complete++
			total, success = n, ok
			assert.NoError(t, err)
		})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, indices)
	assert.Equal(t, []string{"s-0", "s-1", "s-2", "s-3", "s-4"}, items)
	assert.Equal(t, 1, complete)
	assert.Equal(t, 5, total)
	assert.True(t, success)
}

func TestScenario_ChannelEcho(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))

	out, err := c.RequestChannelCollect(testContext(t), payloads("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"echo:a", "echo:b", "echo:c"}, texts(out))
}

func TestScenario_NotImplemented(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(&HandlerSet{}))
	ctx := testContext(t)

	_, err := c.RequestResponse(ctx, NewPayloadString("ping"))
	require.Error(t, err)
	assert.True(t, IsNotImplemented(err))
	assert.Contains(t, err.Error(), "not implemented")

	var (
		calls  int
		cbErr  error
		cbOK   = true
		called = make(chan struct{})
	)
	err = c.RequestStreamWithCallback(ctx, NewPayloadString("s"), nil, func(_ int, ok bool, err error) {
		calls++
		cbOK, cbErr = ok, err
		close(called)
	})
	require.Error(t, err)
	<-called
	assert.Equal(t, 1, calls)
	assert.False(t, cbOK)
	assert.True(t, IsNotImplemented(cbErr))
}

// ============================================================================
//                              流与通道变体
// ============================================================================

func TestClient_StreamPullAndCollect(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))
	ctx := testContext(t)

	items, err := c.RequestStreamCollect(ctx, NewPayloadString("x"))
	require.NoError(t, err)
	assert.Len(t, items, 5)

	src, err := c.RequestStream(ctx, NewPayloadString("y"))
	require.NoError(t, err)
	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "y-0", text(first))
	CancelSource(src)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestClient_ChannelReactiveGenerator(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))

	gen := func(yield func(Payload) bool) {
		for _, s := range []string{"x", "y"} {
			if !yield(NewPayloadString(s)) {
				return
			}
		}
	}
	var got []string
	var total int
	err := c.RequestChannelReactive(testContext(t), gen,
		func(p Payload, _ int) { got = append(got, text(p)) },
		func(n int, ok bool, err error) {
			total = n
			assert.True(t, ok)
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo:x", "echo:y"}, got)
	assert.Equal(t, 2, total)
}

func TestClient_ChannelReactiveRejectsEagerInput(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))

	called := false
	err := c.RequestChannelReactive(testContext(t), payloads("a", "b"), nil, func(int, bool, error) {
		called = true
	})
	assert.ErrorIs(t, err, ErrNotLazySource)
	assert.False(t, called)
	assert.Equal(t, 0, c.Conn().ActiveStreams())
}

func TestClient_ChannelInputError(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))

	broken := errors.New("input broke")
	src := SourceFunc(func(context.Context) (Payload, error) {
		return Payload{}, broken
	})

	var completeErr error
	err := c.RequestChannelReactive(testContext(t), src, nil, func(_ int, ok bool, err error) {
		assert.False(t, ok)
		completeErr = err
	})
	assert.ErrorIs(t, err, broken)
	assert.ErrorIs(t, completeErr, broken)
	assert.Equal(t, 0, c.Conn().ActiveStreams())
}

func TestClient_ChannelInputErrorMidStream(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))

	broken := errors.New("input broke")
	n := 0
	src := SourceFunc(func(context.Context) (Payload, error) {
		n++
		if n > 2 {
			return Payload{}, broken
		}
		return NewPayloadString(fmt.Sprintf("in-%d", n)), nil
	})

	var (
		mu          sync.Mutex
		completions int
		completeErr error
	)
	err := c.RequestChannelReactive(testContext(t), src, nil, func(_ int, ok bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		completions++
		assert.False(t, ok)
		completeErr = err
	})
	assert.ErrorIs(t, err, broken)

	mu.Lock()
	assert.Equal(t, 1, completions)
	assert.ErrorIs(t, completeErr, broken)
	mu.Unlock()
	require.Eventually(t, func() bool { return c.Conn().ActiveStreams() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ChannelWithCallback(t *testing.T) {
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(demoHandlers()))

	var got []string
	err := c.RequestChannelWithCallback(testContext(t), payloads("p", "q"),
		func(p Payload, _ int) { got = append(got, text(p)) }, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo:p", "echo:q"}, got)
}

func TestClient_FireAndForgetAndMetadataPush(t *testing.T) {
	got := make(chan string, 2)
	_, c := memPair(t, NewServerBuilder(testOptions()...).Handlers(&HandlerSet{
		FireAndForget: func(_ context.Context, p Payload) error {
			got <- "fnf:" + text(p)
			return nil
		},
		MetadataPush: func(_ context.Context, p Payload) error {
			m, _ := p.MetadataUTF8()
			got <- "meta:" + m
			return nil
		},
	}))
	ctx := testContext(t)

	require.NoError(t, c.FireAndForget(ctx, NewPayloadString("hello")))
	require.NoError(t, c.MetadataPush(ctx, NewPayload(nil, []byte("route"))))
	assert.ErrorIs(t, c.MetadataPush(ctx, NewPayload([]byte("data"), []byte("m"))), ErrMetadataPushData)

	received := []string{<-got, <-got}
	assert.ElementsMatch(t, []string{"fnf:hello", "meta:route"}, received)
}

// ============================================================================
//                              服务端构建
// ============================================================================

func TestServerBuilder_Errors(t *testing.T) {
	_, err := NewServerBuilder().Build()
	assert.ErrorIs(t, err, ErrNoTransports)

	_, err = NewServerBuilder().
		AddTransport("a", MemServerTransport("x")).
		AddTransport("a", MemServerTransport("y")).
		Build()
	assert.ErrorIs(t, err, ErrDuplicateLabel)

	_, err = NewServerBuilder().AddTransport("a", nil).Build()
	assert.ErrorIs(t, err, ErrNilTransport)

	_, err = NewServerBuilder().AddTransport("a", MemServerTransport("z")).Fragment(10).Build()
	assert.Error(t, err)

	_, err = NewServerBuilder(WithInitialRequestN(0)).AddTransport("a", MemServerTransport("z")).Build()
	assert.Error(t, err)
}

func TestServerBuilder_OnStartAndEchoDefault(t *testing.T) {
	started := make(chan struct{})
	_, c := memPair(t, NewServerBuilder(testOptions()...).OnStart(func() { close(started) }))

	select {
	case <-started:
	default:
		t.Fatal("on start not called before ready")
	}
	resp, err := c.RequestResponse(testContext(t), NewPayloadString("echo me"))
	require.NoError(t, err)
	assert.Equal(t, "echo me", text(resp))
}

func TestServerBuilder_AcceptorRejects(t *testing.T) {
	name := t.Name()
	startServer(t, NewServerBuilder(testOptions()...).
		AddTransport("mem", MemServerTransport(name)).
		Acceptor(func(_ context.Context, setup SetupInfo, _ *Conn) (*HandlerSet, error) {
			if text(setup.Payload) != "token" {
				return nil, errors.New("unauthorized")
			}
			return demoHandlers(), nil
		}))

	c := connectTo(t, MemClientTransport(name), WithSetupPayload(NewPayloadString("token")))
	resp, err := c.RequestResponse(testContext(t), NewPayloadString("ping"))
	require.NoError(t, err)
	assert.Equal(t, "pong", text(resp))

	bad, err := Connect(testContext(t), MemClientTransport(name), testOptions()...)
	if err == nil {
		defer bad.Close()
		select {
		case <-bad.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("rejected connection still open")
		}
		var perr *Error
		require.ErrorAs(t, bad.Err(), &perr)
		assert.Equal(t, ErrorCodeRejectedSetup, perr.Code)
	}
}

func TestServerBuilder_Fragment(t *testing.T) {
	big := make([]byte, 4096)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	_, c := memPair(t, NewServerBuilder(testOptions()...).Fragment(128), WithFragment(64))

	resp, err := c.RequestResponse(testContext(t), NewPayload(big, []byte("meta")))
	require.NoError(t, err)
	assert.Equal(t, big, resp.Data())
	m, _ := resp.MetadataUTF8()
	assert.Equal(t, "meta", m)
}

func TestConnect_Errors(t *testing.T) {
	_, err := Connect(testContext(t), nil)
	assert.ErrorIs(t, err, ErrNilTransport)

	_, err = Connect(testContext(t), MemClientTransport("nobody-listens"), testOptions()...)
	assert.Error(t, err)

	_, err = Connect(testContext(t), MemClientTransport("x"), WithFragment(10))
	assert.Error(t, err)
}

func TestPresetConfig(t *testing.T) {
	cfg, err := PresetConfig(PresetServer)
	require.NoError(t, err)
	assert.True(t, cfg.Metrics.Enabled)

	_, err = PresetConfig("nope")
	assert.Error(t, err)

	cfg, err = ParseConfig([]byte(`{"connection":{"initial_request_n":8}}`))
	require.NoError(t, err)
	assert.Equal(t, uint32(8), cfg.Connection.InitialRequestN)

	_, err = ParseConfig([]byte(`{"connection":{"initial_request_n":0}}`))
	assert.Error(t, err)
}

func TestVersionInfo(t *testing.T) {
	assert.Contains(t, VersionInfo(), Version)
}

// ============================================================================
//                              网络传输回环
// ============================================================================

func TestScenario_AllTransports(t *testing.T) {
	if testing.Short() {
		t.Skip("network transports")
	}
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	nodeID, err := P2PNodeID(seed)
	require.NoError(t, err)

	s := startServer(t, NewServerBuilder(testOptions()...).
		AddTransport("tcp", TCPServerTransport("127.0.0.1:0")).
		AddTransport("ws", WebSocketServerTransport("127.0.0.1:0")).
		AddTransport("quic", QUICServerTransport("127.0.0.1:0")).
		AddTransport("p2p", P2PServerTransport("127.0.0.1:0", seed)).
		Handlers(demoHandlers()))

	addrs := s.Addrs()
	require.Len(t, addrs, 4)

	clients := map[string]*ClientTransport{
		"tcp":  TCPClientTransport(addrs["tcp"].String()),
		"ws":   WebSocketClientTransport("ws://" + addrs["ws"].String()),
		"quic": QUICClientTransport(addrs["quic"].String()),
		"p2p":  P2PClientTransport(nodeID+"@"+addrs["p2p"].String(), nil),
	}
	for label, ct := range clients {
		t.Run(label, func(t *testing.T) {
			c := connectTo(t, ct)
			ctx := testContext(t)

			resp, err := c.RequestResponse(ctx, NewPayloadString("ping"))
			require.NoError(t, err)
			assert.Equal(t, "pong", text(resp))

			out, err := c.RequestChannelCollect(ctx, payloads("a", "b", "c"))
			require.NoError(t, err)
			assert.Equal(t, []string{"echo:a", "echo:b", "echo:c"}, texts(out))
		})
	}
}

func TestConnect_P2PWrongIdentity(t *testing.T) {
	if testing.Short() {
		t.Skip("network transports")
	}
	s := startServer(t, NewServerBuilder(testOptions()...).
		AddTransport("p2p", P2PServerTransport("127.0.0.1:0", nil)))

	other, err := P2PNodeID(make([]byte, 32))
	require.NoError(t, err)
	_, err = Connect(testContext(t), P2PClientTransport(other+"@"+s.Addrs()["p2p"].String(), nil), testOptions()...)
	assert.Error(t, err)
}
