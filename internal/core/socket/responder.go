package socket

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// ============================================================================
//                              Responder - 响应方能力集
// ============================================================================

// Responder 本端作为响应方时的处理函数，未设置的交互模式视为未实现
type Responder struct {
	FireAndForget   func(ctx context.Context, p types.Payload) error
	MetadataPush    func(ctx context.Context, p types.Payload) error
	RequestResponse func(ctx context.Context, p types.Payload) (types.Payload, error)
	RequestStream   func(ctx context.Context, p types.Payload) (bridge.Source, error)
	RequestChannel  func(ctx context.Context, in bridge.Source) (bridge.Source, error)
}

// ResponderOf 把处理器转换为 Responder
//
// 接受 *Responder、Responder 以及实现了 interfaces 中任意处理器接口的值；
// 能力在这里一次性确定，之后不再做类型断言。
func ResponderOf(v any) *Responder {
	switch r := v.(type) {
	case nil:
		return &Responder{}
	case *Responder:
		if r == nil {
			return &Responder{}
		}
		return r
	case Responder:
		return &r
	}
	r := &Responder{}
	if h, ok := v.(interfaces.FireAndForgetHandler); ok {
		r.FireAndForget = h.FireAndForget
	}
	if h, ok := v.(interfaces.MetadataPushHandler); ok {
		r.MetadataPush = h.MetadataPush
	}
	if h, ok := v.(interfaces.RequestResponseHandler); ok {
		r.RequestResponse = h.RequestResponse
	}
	if h, ok := v.(interfaces.RequestStreamHandler); ok {
		r.RequestStream = h.RequestStream
	}
	if h, ok := v.(interfaces.RequestChannelHandler); ok {
		r.RequestChannel = h.RequestChannel
	}
	return r
}

// Implemented 是否实现了指定交互模式
func (r *Responder) Implemented(k types.InteractionKind) bool {
	switch k {
	case types.KindFireAndForget:
		return r.FireAndForget != nil
	case types.KindMetadataPush:
		return r.MetadataPush != nil
	case types.KindRequestResponse:
		return r.RequestResponse != nil
	case types.KindRequestStream:
		return r.RequestStream != nil
	case types.KindRequestChannel:
		return r.RequestChannel != nil
	}
	return false
}

func kindOf(t frame.Type) types.InteractionKind {
	switch t {
	case frame.TypeRequestFNF:
		return types.KindFireAndForget
	case frame.TypeRequestResponse:
		return types.KindRequestResponse
	case frame.TypeRequestStream:
		return types.KindRequestStream
	case frame.TypeRequestChannel:
		return types.KindRequestChannel
	case frame.TypeMetadataPush:
		return types.KindMetadataPush
	}
	return types.KindUnknown
}

// panicError 把处理器 panic 转换为应用错误
func panicError(v any) error {
	return types.Errorf(types.ErrorCodeApplicationError, "panic: %v", v)
}

func logPanic(log *slog.Logger, id uint32, v any) {
	log.Error("处理器 panic", "stream", id, "panic", v, "stack", string(debug.Stack()))
}

// ============================================================================
//                              入站请求分发
// ============================================================================

func noHandler() handler { return nil }

// accept 处理对端发起的新请求，只在读循环中调用
func (c *Conn) accept(f *frame.Frame) {
	id := f.StreamID
	k := kindOf(f.Type)

	if !c.issuer.admit() {
		if err := c.table.accept(id, noHandler); err != nil {
			c.protocolError(err)
			return
		}
		if k != types.KindFireAndForget {
			c.post(frame.NewError(id, types.ErrorCodeRejected, "lease exhausted"))
		}
		return
	}

	r := c.responder
	if !r.Implemented(k) {
		if err := c.table.accept(id, noHandler); err != nil {
			c.protocolError(err)
			return
		}
		if k == types.KindFireAndForget {
			c.log.Debug("未实现的交互模式", "kind", k.String(), "stream", id)
			return
		}
		c.post(frame.NewError(id, types.ErrorCodeApplicationError, types.ErrNotImplemented.Error()+": "+k.String()))
		return
	}

	var start func()
	err := c.table.accept(id, func() handler {
		switch f.Type {
		case frame.TypeRequestFNF:
			start = func() { c.runFireAndForget(id, f.Payload()) }
			return nil
		case frame.TypeRequestResponse:
			h := c.newRespondRR(id)
			start = func() { h.run(r.RequestResponse, f.Payload()) }
			return h
		case frame.TypeRequestStream:
			h := c.newRespondStream(id, f.RequestN)
			start = func() { h.run(r.RequestStream, f.Payload()) }
			return h
		default:
			h := c.newRespondChannel(id, f)
			start = func() { h.run(r.RequestChannel) }
			return h
		}
	})
	if err != nil {
		c.protocolError(err)
		return
	}
	if k != types.KindFireAndForget {
		c.obs.StreamOpened(k.String())
	}
	go start()
}

func (c *Conn) runFireAndForget(id uint32, p types.Payload) {
	defer func() {
		if v := recover(); v != nil {
			logPanic(c.log, id, v)
		}
	}()
	if err := c.responder.FireAndForget(c.ctx, p); err != nil {
		c.log.Debug("单向请求处理失败", "stream", id, "err", err)
	}
}

func (c *Conn) onMetadataPush(f *frame.Frame) {
	r := c.responder
	if r.MetadataPush == nil {
		c.log.Debug("未实现的交互模式", "kind", types.KindMetadataPush.String())
		return
	}
	p := f.Payload()
	go func() {
		defer func() {
			if v := recover(); v != nil {
				logPanic(c.log, 0, v)
			}
		}()
		if err := r.MetadataPush(c.ctx, p); err != nil {
			c.log.Debug("元数据推送处理失败", "err", err)
		}
	}()
}

// ============================================================================
//                              响应方：请求-响应
// ============================================================================

type respondRR struct {
	id     uint32
	w      wire
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (c *Conn) newRespondRR(id uint32) *respondRR {
	ctx, cancel := context.WithCancel(c.ctx)
	return &respondRR{id: id, w: c, log: c.log, ctx: ctx, cancel: cancel}
}

func (h *respondRR) kind() types.InteractionKind {
	return types.KindRequestResponse
}

func (h *respondRR) run(fn func(context.Context, types.Payload) (types.Payload, error), p types.Payload) {
	defer h.finish()
	defer func() {
		if v := recover(); v != nil {
			logPanic(h.log, h.id, v)
			if h.ctx.Err() == nil {
				h.w.post(frame.NewErrorFrom(h.id, panicError(v)))
			}
		}
	}()

	res, err := fn(h.ctx, p)
	if h.ctx.Err() != nil {
		return
	}
	if err != nil {
		h.w.post(frame.NewErrorFrom(h.id, err))
		return
	}
	h.w.post(frame.NewPayloadFrame(h.id, res, true, true))
}

func (h *respondRR) finish() {
	h.once.Do(func() {
		h.cancel()
		h.w.release(h.id)
	})
}

func (h *respondRR) onFrame(f *frame.Frame) {
	if f.Type == frame.TypeCancel {
		h.finish()
	}
}

func (h *respondRR) terminate(error) {
	h.cancel()
}

// ============================================================================
//                              响应方：请求-流
// ============================================================================

type respondStream struct {
	id     uint32
	w      wire
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	credit *bridge.Credit
	once   sync.Once
}

func (c *Conn) newRespondStream(id, n uint32) *respondStream {
	ctx, cancel := context.WithCancel(c.ctx)
	return &respondStream{
		id:     id,
		w:      c,
		log:    c.log,
		ctx:    ctx,
		cancel: cancel,
		credit: bridge.NewCredit(n),
	}
}

func (h *respondStream) kind() types.InteractionKind {
	return types.KindRequestStream
}

func (h *respondStream) run(fn func(context.Context, types.Payload) (bridge.Source, error), p types.Payload) {
	defer h.finish()
	var src bridge.Source
	defer func() {
		if v := recover(); v != nil {
			logPanic(h.log, h.id, v)
			if h.ctx.Err() == nil {
				h.w.post(frame.NewErrorFrom(h.id, panicError(v)))
			}
		}
		if src != nil && h.ctx.Err() != nil {
			bridge.CancelSource(src)
		}
	}()

	src, err := fn(h.ctx, p)
	if h.ctx.Err() != nil {
		return
	}
	if err != nil {
		h.w.post(frame.NewErrorFrom(h.id, err))
		return
	}
	if src == nil {
		src = bridge.Empty()
	}
	_, _ = emit(h.ctx, h.w, h.id, h.credit, src)
}

func (h *respondStream) finish() {
	h.once.Do(func() {
		h.cancel()
		h.credit.Close(bridge.ErrCancelled)
		h.w.release(h.id)
	})
}

func (h *respondStream) onFrame(f *frame.Frame) {
	switch f.Type {
	case frame.TypeRequestN:
		h.credit.Grant(f.RequestN)
	case frame.TypeCancel:
		h.finish()
	}
}

func (h *respondStream) terminate(err error) {
	h.cancel()
	h.credit.Close(err)
}

// ============================================================================
//                              响应方：通道
// ============================================================================

// respondChannel 响应方的通道处理器
//
// REQUEST_CHANNEL 携带的第一项不占用本端授予的窗口，接收半边在建立时
// 授予 InitialRequestN。
type respondChannel struct {
	id        uint32
	w         wire
	log       *slog.Logger
	clk       clock.Clock
	halfClose time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	credit *bridge.Credit
	window *bridge.Window
	inbox  *bridge.Inbox

	mu        sync.Mutex
	state     streamState
	skipFirst bool
	sendDone  bool
	recvDone  bool
	timer     *clock.Timer
}

func (c *Conn) newRespondChannel(id uint32, f *frame.Frame) *respondChannel {
	ctx, cancel := context.WithCancel(c.ctx)
	n := c.cfg.InitialRequestN
	h := &respondChannel{
		id:        id,
		w:         c,
		log:       c.log,
		clk:       c.clk,
		halfClose: c.cfg.HalfCloseTimeout,
		ctx:       ctx,
		cancel:    cancel,
		credit:    bridge.NewCredit(f.RequestN),
		window:    bridge.NewWindow(n),
		skipFirst: true,
	}
	capacity := inboxCapacity(n)
	if capacity > 0 {
		capacity++
	}
	h.inbox = bridge.NewInbox(capacity, h.onConsumed)
	_ = h.inbox.Push(ctx, f.Payload())
	if f.Flags.Has(frame.FlagComplete) {
		h.recvDone = true
		h.inbox.Close(nil)
	} else {
		c.post(frame.NewRequestN(id, n))
	}
	return h
}

func (h *respondChannel) kind() types.InteractionKind {
	return types.KindRequestChannel
}

func (h *respondChannel) onConsumed() {
	h.mu.Lock()
	if h.skipFirst {
		h.skipFirst = false
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	g := h.window.Consumed()
	if g == 0 {
		return
	}
	h.mu.Lock()
	active := h.state == stateActive && !h.recvDone
	h.mu.Unlock()
	if active {
		h.w.post(frame.NewRequestN(h.id, g))
	}
}

func (h *respondChannel) run(fn func(context.Context, bridge.Source) (bridge.Source, error)) {
	var out bridge.Source
	defer func() {
		if v := recover(); v != nil {
			logPanic(h.log, h.id, v)
			err := panicError(v)
			if h.ctx.Err() == nil {
				h.w.post(frame.NewErrorFrom(h.id, err))
			}
			h.fail(err)
		}
		if out != nil && h.ended() {
			bridge.CancelSource(out)
		}
	}()

	out, err := fn(h.ctx, h.inbox)
	if h.ended() {
		return
	}
	if err != nil {
		h.w.post(frame.NewErrorFrom(h.id, err))
		h.fail(err)
		return
	}
	if out == nil {
		out = bridge.Empty()
	}
	completed, err := emit(h.ctx, h.w, h.id, h.credit, out)
	switch {
	case completed:
		h.mu.Lock()
		h.sendDone = true
		h.mu.Unlock()
		h.maybeFinish()
	case err != nil:
		h.fail(err)
	}
}

func (h *respondChannel) onFrame(f *frame.Frame) {
	h.mu.Lock()
	st := h.state
	h.mu.Unlock()
	if st != stateActive {
		return
	}

	switch f.Type {
	case frame.TypePayload:
		if f.Flags.Has(frame.FlagNext) {
			if err := h.window.Received(); err != nil {
				h.w.post(frame.NewError(h.id, types.ErrorCodeInvalid, err.Error()))
				h.fail(err)
				return
			}
			if err := h.inbox.Push(h.ctx, f.Payload()); err != nil {
				return
			}
		}
		if f.Flags.Has(frame.FlagComplete) {
			h.mu.Lock()
			h.recvDone = true
			h.mu.Unlock()
			h.inbox.Close(nil)
			h.maybeFinish()
		}
	case frame.TypeRequestN:
		h.credit.Grant(f.RequestN)
	case frame.TypeCancel:
		// 请求方取消整个通道
		h.fail(bridge.ErrCancelled)
	case frame.TypeError:
		h.fail(f.Err())
	}
}

func (h *respondChannel) maybeFinish() {
	h.mu.Lock()
	if h.state != stateActive {
		h.mu.Unlock()
		return
	}
	if h.sendDone && h.recvDone {
		h.state = stateDone
		h.stopTimer()
		h.mu.Unlock()
		h.cancel()
		h.w.release(h.id)
		return
	}
	if h.sendDone && h.halfClose > 0 && h.timer == nil {
		h.timer = h.clk.AfterFunc(h.halfClose, h.halfCloseExpired)
	}
	h.mu.Unlock()
}

func (h *respondChannel) halfCloseExpired() {
	h.mu.Lock()
	active := h.state == stateActive
	h.mu.Unlock()
	if !active {
		return
	}
	h.w.post(frame.NewCancel(h.id))
	h.fail(ErrHalfCloseTimeout)
}

func (h *respondChannel) fail(err error) {
	if h.end(err) {
		h.w.release(h.id)
	}
}

func (h *respondChannel) terminate(err error) {
	h.end(err)
}

// end 进入终止状态，返回是否由本次调用完成转换
func (h *respondChannel) end(err error) bool {
	h.mu.Lock()
	if h.state == stateDone {
		h.mu.Unlock()
		return false
	}
	h.state = stateDone
	h.stopTimer()
	h.mu.Unlock()
	// 先投递终止信号再取消 ctx，处理函数读取输入时得到 err 而不是 ctx 错误
	h.inbox.Close(err)
	h.credit.Close(err)
	h.cancel()
	return true
}

// ended 通道已终止或连接已关闭
func (h *respondChannel) ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateDone || h.ctx.Err() != nil
}

func (h *respondChannel) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}
