package socket

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// ============================================================================
//                              请求入口
// ============================================================================

// admit 在分配流 ID 之前检查连接状态与租约
func (c *Conn) admit() error {
	if c.isClosed() {
		return c.closedErr()
	}
	return c.lease.use()
}

// openFailed 处理流 ID 分配失败
func (c *Conn) openFailed(err error) error {
	if errors.Is(err, ErrStreamIDExhausted) {
		c.protocolError(err)
		return err
	}
	if errors.Is(err, ErrClosed) {
		return c.closedErr()
	}
	return err
}

// FireAndForget 发送单向请求，帧写入传输层后返回
func (c *Conn) FireAndForget(ctx context.Context, p types.Payload) error {
	if err := c.admit(); err != nil {
		return err
	}
	id, err := c.table.open(nil)
	if err != nil {
		return c.openFailed(err)
	}
	return c.write(ctx, frame.NewRequestFNF(id, p))
}

// MetadataPush 在流 0 上推送元数据
//
// 载荷必须只有元数据，违反时同步返回错误且不发送任何帧。
func (c *Conn) MetadataPush(ctx context.Context, p types.Payload) error {
	if p.HasData() {
		return types.ErrMetadataPushData
	}
	if !p.HasMetadata() {
		return types.ErrMetadataPushEmpty
	}
	if c.isClosed() {
		return c.closedErr()
	}
	return c.write(ctx, frame.NewMetadataPush(p.Metadata()))
}

// RequestResponse 发送请求并等待单个响应
//
// ctx 结束时向对端发送 CANCEL。
func (c *Conn) RequestResponse(ctx context.Context, p types.Payload) (types.Payload, error) {
	if err := c.admit(); err != nil {
		return types.Payload{}, err
	}
	var h *requestResponse
	id, err := c.table.open(func(id uint32) handler {
		h = &requestResponse{id: id, w: c, result: make(chan rrResult, 1)}
		return h
	})
	if err != nil {
		return types.Payload{}, c.openFailed(err)
	}
	c.obs.StreamOpened(types.KindRequestResponse.String())
	if err := c.write(ctx, frame.NewRequestResponse(id, p)); err != nil {
		h.abandon(false)
		return types.Payload{}, err
	}

	select {
	case r := <-h.result:
		return r.p, r.err
	case <-ctx.Done():
		h.abandon(true)
		return types.Payload{}, ctx.Err()
	}
}

// OpenStream 发起请求-流，n 为初始请求数（0 使用 InitialRequestN）
func (c *Conn) OpenStream(ctx context.Context, p types.Payload, n uint32) (*Inbound, error) {
	if err := c.admit(); err != nil {
		return nil, err
	}
	n = c.requestN(n)
	var h *fluxRequester
	id, err := c.table.open(func(id uint32) handler {
		h = c.newFluxRequester(id, types.KindRequestStream, n, nil)
		return h
	})
	if err != nil {
		return nil, c.openFailed(err)
	}
	c.obs.StreamOpened(types.KindRequestStream.String())
	if err := c.write(ctx, frame.NewRequestStream(id, n, p)); err != nil {
		h.fail(err)
		return nil, err
	}
	return &Inbound{id: id, inbox: h.inbox, h: h}, nil
}

// OpenChannel 发起双向通道，in 为本端输入
//
// in 的第一项随 REQUEST_CHANNEL 发送，之后的每一项都要等对端的 REQUEST_N
// 授权后才会被拉取。in 立即结束时发送带 COMPLETE 的空载荷。
func (c *Conn) OpenChannel(ctx context.Context, in bridge.Source, n uint32) (*Inbound, error) {
	if in == nil {
		return nil, ErrNilSource
	}
	if err := c.admit(); err != nil {
		return nil, err
	}
	n = c.requestN(n)

	first, err := in.Next(ctx)
	inputDone := false
	switch {
	case errors.Is(err, io.EOF):
		first, inputDone = types.EmptyPayload(), true
	case err != nil:
		bridge.CancelSource(in)
		return nil, err
	}

	var h *fluxRequester
	id, err := c.table.open(func(id uint32) handler {
		h = c.newFluxRequester(id, types.KindRequestChannel, n, in)
		h.sendDone = inputDone
		return h
	})
	if err != nil {
		bridge.CancelSource(in)
		return nil, c.openFailed(err)
	}
	c.obs.StreamOpened(types.KindRequestChannel.String())
	if err := c.write(ctx, frame.NewRequestChannel(id, n, first, inputDone)); err != nil {
		h.fail(err)
		return nil, err
	}
	if inputDone {
		h.maybeFinish()
	} else {
		go h.sendLoop()
	}
	return &Inbound{id: id, inbox: h.inbox, h: h}, nil
}

// RequestStream 实现 interfaces.Requester
func (c *Conn) RequestStream(ctx context.Context, p types.Payload) (bridge.Source, error) {
	s, err := c.OpenStream(ctx, p, 0)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RequestChannel 实现 interfaces.Requester
func (c *Conn) RequestChannel(ctx context.Context, in bridge.Source) (bridge.Source, error) {
	s, err := c.OpenChannel(ctx, in, 0)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Conn) requestN(n uint32) uint32 {
	if n == 0 {
		n = c.cfg.InitialRequestN
	}
	if n > frame.MaxRequestN {
		n = frame.MaxRequestN
	}
	return n
}

// ============================================================================
//                              请求-响应
// ============================================================================

type rrResult struct {
	p   types.Payload
	err error
}

type requestResponse struct {
	id     uint32
	w      wire
	once   sync.Once
	result chan rrResult
}

func (h *requestResponse) kind() types.InteractionKind {
	return types.KindRequestResponse
}

func (h *requestResponse) onFrame(f *frame.Frame) {
	switch f.Type {
	case frame.TypePayload:
		p := types.EmptyPayload()
		if f.Flags.Has(frame.FlagNext) {
			p = f.Payload()
		}
		h.resolve(rrResult{p: p}, true)
	case frame.TypeError:
		h.resolve(rrResult{err: f.Err()}, true)
	}
}

func (h *requestResponse) terminate(err error) {
	h.resolve(rrResult{err: err}, false)
}

func (h *requestResponse) resolve(r rrResult, release bool) {
	h.once.Do(func() {
		h.result <- r
		if release {
			h.w.release(h.id)
		}
	})
}

// abandon 调用方放弃等待
func (h *requestResponse) abandon(cancel bool) {
	h.once.Do(func() {
		if cancel {
			h.w.post(frame.NewCancel(h.id))
		}
		h.w.release(h.id)
	})
}
