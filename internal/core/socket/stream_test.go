package socket

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/internal/core/transport/mem"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// rawClient 以原始帧驱动服务端连接，返回客户端一侧的载体与帧通道
func rawClient(t *testing.T, r *Responder) (*Conn, interfaces.Conn, <-chan *frame.Frame) {
	t.Helper()
	ctx := testContext(t)
	a, b := mem.Pipe(t.Name())
	frames := rawPeer(a)

	scfg := testConfig()
	scfg.Responder = r
	srvCh := make(chan *Conn, 1)
	go func() {
		s, err := Server(ctx, b, scfg, nil)
		if err != nil {
			close(srvCh)
			return
		}
		srvCh <- s
	}()

	sendRaw(t, a, frame.NewSetup(frame.SetupParams{
		MetadataMIME: "text/plain",
		DataMIME:     "text/plain",
	}, types.EmptyPayload()))
	server, ok := <-srvCh
	require.True(t, ok, "服务端未接受 SETUP")
	t.Cleanup(func() {
		_ = server.Close()
		_ = a.Close()
	})
	return server, a, frames
}

func sendRaw(t *testing.T, tr interfaces.Conn, f *frame.Frame) {
	t.Helper()
	buf, err := frame.Encode(f)
	require.NoError(t, err)
	require.NoError(t, tr.Send(testContext(t), buf))
}

func nextFrame(t *testing.T, frames <-chan *frame.Frame) *frame.Frame {
	t.Helper()
	select {
	case f, ok := <-frames:
		require.True(t, ok, "连接已关闭")
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("等待帧超时")
		return nil
	}
}

// ============================================================================
//                              请求-流
// ============================================================================

func TestRequestStream(t *testing.T) {
	client, server := serve(t, echoResponder())

	// 初始请求数小于数据项数量，依赖 REQUEST_N 补充
	s, err := client.OpenStream(testContext(t), pl("s"), 2)
	require.NoError(t, err)
	got, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-0", "s-1", "s-2", "s-3", "s-4"}, got)

	require.Eventually(t, func() bool {
		return client.ActiveStreams() == 0 && server.ActiveStreams() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequestStream_Deliver(t *testing.T) {
	client, _ := serve(t, echoResponder())
	ctx := testContext(t)

	s, err := client.OpenStream(ctx, pl("d"), 1)
	require.NoError(t, err)
	col := bridge.NewCollector()
	go s.Deliver(ctx, col)

	items, err := col.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, "d-4", str(items[4]))
}

func TestRequestStream_Empty(t *testing.T) {
	client, _ := serve(t, &Responder{
		RequestStream: func(context.Context, types.Payload) (bridge.Source, error) {
			return bridge.Empty(), nil
		},
	})
	s, err := client.RequestStream(testContext(t), pl("x"))
	require.NoError(t, err)
	got, err := collect(t, s)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRequestStream_SourceError(t *testing.T) {
	client, _ := serve(t, &Responder{
		RequestStream: func(context.Context, types.Payload) (bridge.Source, error) {
			n := 0
			return bridge.SourceFunc(func(context.Context) (types.Payload, error) {
				n++
				if n > 2 {
					return types.Payload{}, errors.New("source broke")
				}
				return pl("ok"), nil
			}), nil
		},
	})

	s, err := client.OpenStream(testContext(t), pl("x"), 0)
	require.NoError(t, err)
	got, err := collect(t, s)
	assert.Equal(t, []string{"ok", "ok"}, got)
	e := requireErrorCode(t, err, types.ErrorCodeApplicationError)
	assert.Equal(t, "source broke", e.Message)
}

// 对端恰好请求全部数据项时，终止帧不需要额外的 REQUEST_N
func TestRequestStream_TerminalNeedsNoCredit(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		server, tr, frames := rawClient(t, &Responder{
			RequestStream: func(context.Context, types.Payload) (bridge.Source, error) {
				return bridge.FromSlice([]types.Payload{pl("only")}), nil
			},
		})
		sendRaw(t, tr, frame.NewRequestStream(1, 1, pl("x")))

		f := nextFrame(t, frames)
		assert.Equal(t, frame.TypePayload, f.Type)
		assert.Equal(t, uint32(1), f.StreamID)
		assert.True(t, f.Flags.Has(frame.FlagNext))
		assert.Equal(t, "only", string(f.Data))

		f = nextFrame(t, frames)
		assert.Equal(t, frame.TypePayload, f.Type)
		assert.True(t, f.Flags.Has(frame.FlagComplete))
		assert.False(t, f.Flags.Has(frame.FlagNext))
		require.Eventually(t, func() bool { return server.ActiveStreams() == 0 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("error", func(t *testing.T) {
		server, tr, frames := rawClient(t, &Responder{
			RequestStream: func(context.Context, types.Payload) (bridge.Source, error) {
				n := 0
				return bridge.SourceFunc(func(context.Context) (types.Payload, error) {
					n++
					if n > 2 {
						return types.Payload{}, errors.New("source broke")
					}
					return pl("ok"), nil
				}), nil
			},
		})
		sendRaw(t, tr, frame.NewRequestStream(1, 2, pl("x")))

		for i := 0; i < 2; i++ {
			f := nextFrame(t, frames)
			assert.Equal(t, frame.TypePayload, f.Type)
			assert.True(t, f.Flags.Has(frame.FlagNext))
		}
		f := nextFrame(t, frames)
		require.Equal(t, frame.TypeError, f.Type)
		assert.Equal(t, types.ErrorCodeApplicationError, f.ErrorCode)
		assert.Equal(t, "source broke", string(f.Data))
		require.Eventually(t, func() bool { return server.ActiveStreams() == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestRequestStream_Cancel(t *testing.T) {
	cancelled := make(chan struct{})
	client, server := serve(t, &Responder{
		RequestStream: func(ctx context.Context, _ types.Payload) (bridge.Source, error) {
			go func() {
				<-ctx.Done()
				close(cancelled)
			}()
			return bridge.SourceFunc(func(ctx context.Context) (types.Payload, error) {
				if err := ctx.Err(); err != nil {
					return types.Payload{}, err
				}
				return pl("tick"), nil
			}), nil
		},
	})
	ctx := testContext(t)

	s, err := client.OpenStream(ctx, pl("x"), 1)
	require.NoError(t, err)
	p, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tick", str(p))

	s.Cancel()
	select {
	case <-cancelled:
	case <-ctx.Done():
		t.Fatal("服务端未收到取消")
	}
	require.Eventually(t, func() bool { return server.ActiveStreams() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, bridge.ErrCancelled)
}

func TestRequestStream_ContextCancel(t *testing.T) {
	client, server := serve(t, &Responder{
		RequestStream: func(context.Context, types.Payload) (bridge.Source, error) {
			return bridge.SourceFunc(func(ctx context.Context) (types.Payload, error) {
				<-ctx.Done()
				return types.Payload{}, ctx.Err()
			}), nil
		},
	})

	s, err := client.OpenStream(testContext(t), pl("x"), 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return server.ActiveStreams() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Next 因 ctx 结束返回时取消整条流
	require.Eventually(t, func() bool { return server.ActiveStreams() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// ============================================================================
//                              通道
// ============================================================================

func TestRequestChannel(t *testing.T) {
	client, server := serve(t, echoResponder())

	in := bridge.FromSlice([]types.Payload{pl("a"), pl("b"), pl("c")})
	s, err := client.OpenChannel(testContext(t), in, 1)
	require.NoError(t, err)
	got, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo:a", "echo:b", "echo:c"}, got)

	require.Eventually(t, func() bool {
		return client.ActiveStreams() == 0 && server.ActiveStreams() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequestChannel_EmptyInput(t *testing.T) {
	client, _ := serve(t, echoResponder())

	// 输入立即结束时发送带 COMPLETE 的空载荷
	s, err := client.RequestChannel(testContext(t), bridge.Empty())
	require.NoError(t, err)
	got, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo:"}, got)
}

func TestRequestChannel_NilInput(t *testing.T) {
	client, _ := serve(t, echoResponder())
	_, err := client.OpenChannel(testContext(t), nil, 0)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestRequestChannel_InputError(t *testing.T) {
	client, _ := serve(t, echoResponder())
	_, err := client.OpenChannel(testContext(t), bridge.Failed(errors.New("no input")), 0)
	assert.EqualError(t, err, "no input")
	assert.Zero(t, client.ActiveStreams())
}

// 本端输入在发送若干项后出错，对端接收半边收到同一错误，两端都释放流 ID
func TestRequestChannel_InputErrorMidStream(t *testing.T) {
	type inputResult struct {
		items []string
		err   error
	}
	seen := make(chan inputResult, 1)
	client, server := serve(t, &Responder{
		RequestChannel: func(ctx context.Context, in bridge.Source) (bridge.Source, error) {
			var items []string
			for {
				p, err := in.Next(ctx)
				if err != nil {
					seen <- inputResult{items, err}
					return bridge.Empty(), nil
				}
				items = append(items, str(p))
			}
		},
	})

	n := 0
	in := bridge.SourceFunc(func(context.Context) (types.Payload, error) {
		n++
		if n > 3 {
			return types.Payload{}, errors.New("input broke")
		}
		return pl(string(rune('a' + n - 1))), nil
	})
	ctx := testContext(t)
	s, err := client.OpenChannel(ctx, in, 0)
	require.NoError(t, err)

	_, err = collect(t, s)
	assert.EqualError(t, err, "input broke")

	select {
	case r := <-seen:
		assert.Equal(t, []string{"a", "b", "c"}, r.items)
		e := requireErrorCode(t, r.err, types.ErrorCodeApplicationError)
		assert.Equal(t, "input broke", e.Message)
	case <-ctx.Done():
		t.Fatal("对端接收半边未收到终止信号")
	}
	require.Eventually(t, func() bool {
		return client.ActiveStreams() == 0 && server.ActiveStreams() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequestChannel_ResponderReadsAll(t *testing.T) {
	sum := make(chan int, 1)
	client, _ := serve(t, &Responder{
		RequestChannel: func(ctx context.Context, in bridge.Source) (bridge.Source, error) {
			total := 0
			for {
				p, err := in.Next(ctx)
				if err != nil {
					break
				}
				total += len(p.Data())
			}
			sum <- total
			return bridge.Single(pl("done")), nil
		},
	})

	items := make([]types.Payload, 20)
	for i := range items {
		items[i] = pl("xx")
	}
	s, err := client.OpenChannel(testContext(t), bridge.FromSlice(items), 0)
	require.NoError(t, err)
	got, err := collect(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, got)
	assert.Equal(t, 40, <-sum)
}

// ============================================================================
//                              分片
// ============================================================================

func TestFragmentation(t *testing.T) {
	ccfg := testConfig()
	ccfg.MTU = 64
	scfg := testConfig()
	scfg.MTU = 64
	scfg.Responder = echoResponder()
	client, _ := connect(t, ccfg, scfg, nil)

	data := bytes.Repeat([]byte("d"), 1000)
	meta := bytes.Repeat([]byte("m"), 300)
	res, err := client.RequestResponse(testContext(t), types.NewPayload(data, meta))
	require.NoError(t, err)
	assert.Equal(t, data, res.Data())
	assert.Equal(t, meta, res.Metadata())

	s, err := client.OpenChannel(testContext(t), bridge.Single(types.NewPayload(data, nil)), 0)
	require.NoError(t, err)
	got, err := collect(t, s)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "echo:"+string(data), got[0])
}
