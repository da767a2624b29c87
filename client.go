package rsocket

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/multierr"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/internal/core/transport"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

var log = logger.Logger("rsocket")

// Client RSocket 客户端
//
// 一个 Client 对应一条连接，所有方法并发安全。
type Client struct {
	conn *socket.Conn
	ct   *transport.ClientTransport
}

var _ interfaces.Requester = (*Client)(nil)

// Connect 通过 ct 建立连接并完成 SETUP
//
// 示例：
//
//	c, err := rsocket.Connect(ctx, rsocket.TCPClientTransport("127.0.0.1:7878"),
//	    rsocket.WithKeepalive(10*time.Second, time.Minute),
//	)
//	resp, err := c.RequestResponse(ctx, rsocket.NewPayloadString("ping"))
func Connect(ctx context.Context, ct *ClientTransport, opts ...Option) (*Client, error) {
	if ct == nil {
		return nil, ErrNilTransport
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	t, err := ct.build(o)
	if err != nil {
		return nil, err
	}

	tr, err := t.Connect(ctx)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("connect %s %s: %w", ct.label, ct.addr, err)
	}
	cc := o.connConfig()
	cc.Transport = ct.label
	conn, err := socket.Client(ctx, tr, cc)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	log.Debug("已连接", "transport", ct.label, "addr", ct.addr, "remote", tr.RemoteAddr())
	return &Client{conn: conn, ct: t}, nil
}

// Conn 底层连接
func (c *Client) Conn() *Conn {
	return c.conn
}

// RemoteAddr 对端地址
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Done 连接终止时关闭
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

// Err 连接终止的原因
func (c *Client) Err() error {
	return c.conn.Err()
}

// Close 关闭连接与传输
func (c *Client) Close() error {
	return multierr.Combine(c.conn.Close(), c.ct.Close())
}

// ════════════════════════════════════════════════════════════════════════════
//                              单次交互
// ════════════════════════════════════════════════════════════════════════════

// FireAndForget 单向发送，帧写出即返回
func (c *Client) FireAndForget(ctx context.Context, p Payload) error {
	return c.conn.FireAndForget(ctx, p)
}

// MetadataPush 推送连接级元数据，p 不能携带数据
func (c *Client) MetadataPush(ctx context.Context, p Payload) error {
	return c.conn.MetadataPush(ctx, p)
}

// RequestResponse 请求-响应
//
// 对端返回 ERROR 时错误可以用 errors.As 取出 *Error。
func (c *Client) RequestResponse(ctx context.Context, p Payload) (Payload, error) {
	return c.conn.RequestResponse(ctx, p)
}

// ════════════════════════════════════════════════════════════════════════════
//                              请求-流
// ════════════════════════════════════════════════════════════════════════════

// RequestStream 请求-流，返回按需拉取的数据源
//
// 拉取到 io.EOF 表示正常结束；不再需要时调用 CancelSource 或
// 让 ctx 结束以取消。
func (c *Client) RequestStream(ctx context.Context, p Payload) (Source, error) {
	return c.conn.RequestStream(ctx, p)
}

// RequestStreamCollect 请求-流，收集全部数据项后返回
func (c *Client) RequestStreamCollect(ctx context.Context, p Payload) ([]Payload, error) {
	in, err := c.conn.OpenStream(ctx, p, 0)
	if err != nil {
		return nil, err
	}
	return collect(ctx, in)
}

// RequestStreamWithCallback 请求-流，逐项回调
//
// onItem 按到达顺序调用，index 从 1 开始；onComplete 恰好调用一次，
// 包括发起失败的情况。阻塞到流终止，返回终止错误。
func (c *Client) RequestStreamWithCallback(ctx context.Context, p Payload, onItem ItemFunc, onComplete CompleteFunc) error {
	sink := bridge.NewCallbacks(onItem, onComplete)
	in, err := c.conn.OpenStream(ctx, p, 0)
	if err != nil {
		sink.OnComplete(0, err)
		return err
	}
	return deliver(ctx, in, sink)
}

// ════════════════════════════════════════════════════════════════════════════
//                              双向通道
// ════════════════════════════════════════════════════════════════════════════

// RequestChannel 双向通道，in 为惰性输入，返回对端输出
func (c *Client) RequestChannel(ctx context.Context, in Source) (Source, error) {
	return c.conn.RequestChannel(ctx, in)
}

// RequestChannelCollect 发送 inputs 并收集对端的全部输出
func (c *Client) RequestChannelCollect(ctx context.Context, inputs []Payload) ([]Payload, error) {
	in, err := c.conn.OpenChannel(ctx, bridge.FromSlice(inputs), 0)
	if err != nil {
		return nil, err
	}
	return collect(ctx, in)
}

// RequestChannelWithCallback 发送 inputs，逐项回调对端输出
func (c *Client) RequestChannelWithCallback(ctx context.Context, inputs []Payload, onItem ItemFunc, onComplete CompleteFunc) error {
	return c.channel(ctx, bridge.FromSlice(inputs), onItem, onComplete)
}

// RequestChannelReactive 以惰性输入发起通道，逐项回调对端输出
//
// input 必须是惰性的：Source、Generator、func(yield func(Payload) bool)、
// func(ctx) (Payload, error) 或 channel。切片等已物化的值在发送任何帧之前
// 以 ErrNotLazySource 拒绝，此时 onComplete 不会被调用。
func (c *Client) RequestChannelReactive(ctx context.Context, input any, onItem ItemFunc, onComplete CompleteFunc) error {
	src, err := bridge.AsSource(input)
	if err != nil {
		return err
	}
	return c.channel(ctx, src, onItem, onComplete)
}

func (c *Client) channel(ctx context.Context, src Source, onItem ItemFunc, onComplete CompleteFunc) error {
	sink := bridge.NewCallbacks(onItem, onComplete)
	in, err := c.conn.OpenChannel(ctx, src, 0)
	if err != nil {
		sink.OnComplete(0, err)
		return err
	}
	return deliver(ctx, in, sink)
}

// ════════════════════════════════════════════════════════════════════════════
//                              交付辅助
// ════════════════════════════════════════════════════════════════════════════

func collect(ctx context.Context, in *socket.Inbound) ([]Payload, error) {
	col := bridge.NewCollector()
	in.Deliver(ctx, col)
	return col.Wait(ctx)
}

// errSink 在完成时记录终止错误
type errSink struct {
	bridge.Sink
	err error
}

func (s *errSink) OnComplete(total int, err error) {
	s.err = err
	s.Sink.OnComplete(total, err)
}

func deliver(ctx context.Context, in *socket.Inbound, sink bridge.Sink) error {
	es := &errSink{Sink: sink}
	in.Deliver(ctx, es)
	return es.err
}
