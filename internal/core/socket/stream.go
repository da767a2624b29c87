package socket

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// streamState 流处理器状态
type streamState int

const (
	stateActive streamState = iota
	// stateCancelled 本端已取消，正在丢弃在途帧
	stateCancelled
	stateDone
)

// ============================================================================
//                              Inbound - 调用方句柄
// ============================================================================

// Inbound 请求-流/通道的接收端
//
// 实现 bridge.Source，可以拉取（Next）或推送（Deliver）两种方式消费，
// 两者不能混用。
type Inbound struct {
	id    uint32
	inbox *bridge.Inbox
	h     *fluxRequester
}

// StreamID 流 ID
func (s *Inbound) StreamID() uint32 {
	return s.id
}

// Next 拉取下一项，流正常结束时返回 io.EOF
//
// ctx 结束时取消整条流。
func (s *Inbound) Next(ctx context.Context) (types.Payload, error) {
	p, err := s.inbox.Next(ctx)
	if err != nil && ctx.Err() != nil {
		s.Cancel()
	}
	return p, err
}

// Deliver 把数据项依次推送给 sink，阻塞直到流终止
//
// sink.OnComplete 恰好调用一次；ctx 结束时取消整条流。
func (s *Inbound) Deliver(ctx context.Context, sink bridge.Sink) {
	s.inbox.Deliver(ctx, sink)
	if ctx.Err() != nil {
		s.Cancel()
	}
}

// Cancel 取消流：停止交付、停止本端输入并通知对端
func (s *Inbound) Cancel() {
	s.h.cancelByCaller()
}

// ============================================================================
//                              fluxRequester
// ============================================================================

// fluxRequester 请求方的流/通道处理器
//
// 接收半边：入站 PAYLOAD 经 Window 记账后进入 Inbox，每消费一项按窗口策略
// 补充 REQUEST_N。发送半边（仅通道）：按对端授予的 Credit 拉取本地输入。
type fluxRequester struct {
	id        uint32
	k         types.InteractionKind
	w         wire
	clk       clock.Clock
	halfClose time.Duration
	grace     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	window *bridge.Window
	inbox  *bridge.Inbox

	src      bridge.Source
	credit   *bridge.Credit
	stopOnce sync.Once

	mu        sync.Mutex
	state     streamState
	sendDone  bool
	recvDone  bool
	drainLeft int64
	timer     *clock.Timer
}

func (c *Conn) newFluxRequester(id uint32, k types.InteractionKind, n uint32, src bridge.Source) *fluxRequester {
	ctx, cancel := context.WithCancel(c.ctx)
	h := &fluxRequester{
		id:        id,
		k:         k,
		w:         c,
		clk:       c.clk,
		halfClose: c.cfg.HalfCloseTimeout,
		grace:     c.cfg.CancelGrace,
		ctx:       ctx,
		cancel:    cancel,
		window:    bridge.NewWindow(n),
		src:       src,
		sendDone:  src == nil,
	}
	h.inbox = bridge.NewInbox(inboxCapacity(n), h.onConsumed)
	if src != nil {
		// 第一项已随 REQUEST_CHANNEL 发出，后续额度全部来自对端 REQUEST_N
		h.credit = bridge.NewCredit(0)
	}
	return h
}

func inboxCapacity(n uint32) int {
	if n >= bridge.Unbounded {
		return 0
	}
	return int(n)
}

func (h *fluxRequester) kind() types.InteractionKind {
	return h.k
}

func (h *fluxRequester) onConsumed() {
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

func (h *fluxRequester) onFrame(f *frame.Frame) {
	h.mu.Lock()
	st := h.state
	h.mu.Unlock()
	switch st {
	case stateCancelled:
		h.drain(f)
		return
	case stateDone:
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
		if h.credit != nil {
			h.credit.Grant(f.RequestN)
		}
	case frame.TypeCancel:
		// 对端不再接收本端输入
		h.stopSending()
		h.mu.Lock()
		h.sendDone = true
		h.mu.Unlock()
		h.maybeFinish()
	case frame.TypeError:
		h.fail(f.Err())
	}
}

// maybeFinish 两个半边都完成时释放流；只有发送半边完成时启动半关闭计时
func (h *fluxRequester) maybeFinish() {
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
	if h.sendDone && h.halfClose > 0 && h.timer == nil && h.k == types.KindRequestChannel {
		h.timer = h.clk.AfterFunc(h.halfClose, h.halfCloseExpired)
	}
	h.mu.Unlock()
}

func (h *fluxRequester) halfCloseExpired() {
	h.mu.Lock()
	if h.state != stateActive {
		h.mu.Unlock()
		return
	}
	h.state = stateDone
	h.mu.Unlock()
	h.w.post(frame.NewCancel(h.id))
	h.cancel()
	h.stopSending()
	h.inbox.Close(ErrHalfCloseTimeout)
	h.w.release(h.id)
}

// fail 以 err 终止整条流并释放流 ID
func (h *fluxRequester) fail(err error) {
	h.mu.Lock()
	if h.state == stateDone {
		h.mu.Unlock()
		return
	}
	h.state = stateDone
	h.stopTimer()
	h.mu.Unlock()
	h.cancel()
	h.stopSending()
	h.inbox.Close(err)
	h.w.release(h.id)
}

func (h *fluxRequester) terminate(err error) {
	h.mu.Lock()
	if h.state == stateDone {
		h.mu.Unlock()
		return
	}
	h.state = stateDone
	h.stopTimer()
	h.mu.Unlock()
	h.cancel()
	h.stopSending()
	h.inbox.Close(err)
}

// cancelByCaller 调用方取消
//
// 接收半边尚未完成时，流 ID 在收到终止帧、丢弃完在途数据项或
// CancelGrace 到期之后才释放，期间到达的帧被静默丢弃。
func (h *fluxRequester) cancelByCaller() {
	h.mu.Lock()
	if h.state != stateActive {
		h.mu.Unlock()
		return
	}
	h.state = stateCancelled
	h.stopTimer()
	recvDone := h.recvDone
	h.drainLeft = h.window.Outstanding()
	left := h.drainLeft
	h.mu.Unlock()

	h.inbox.Cancel()
	h.cancel()
	h.stopSending()
	if recvDone {
		h.releaseDrained()
		return
	}
	h.w.post(frame.NewCancel(h.id))
	if left <= 0 {
		h.releaseDrained()
		return
	}
	h.mu.Lock()
	if h.state == stateCancelled {
		h.timer = h.clk.AfterFunc(h.grace, h.releaseDrained)
	}
	h.mu.Unlock()
}

func (h *fluxRequester) drain(f *frame.Frame) {
	switch f.Type {
	case frame.TypePayload:
		left := int64(1)
		if f.Flags.Has(frame.FlagNext) {
			h.mu.Lock()
			h.drainLeft--
			left = h.drainLeft
			h.mu.Unlock()
		}
		if left <= 0 || f.Flags.Has(frame.FlagComplete) {
			h.releaseDrained()
		}
	case frame.TypeError, frame.TypeCancel:
		h.releaseDrained()
	}
}

func (h *fluxRequester) releaseDrained() {
	h.mu.Lock()
	if h.state != stateCancelled {
		h.mu.Unlock()
		return
	}
	h.state = stateDone
	h.stopTimer()
	h.mu.Unlock()
	h.w.release(h.id)
}

// stopTimer 需持有 mu
func (h *fluxRequester) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *fluxRequester) stopSending() {
	if h.src == nil {
		return
	}
	h.stopOnce.Do(func() {
		h.credit.Close(bridge.ErrCancelled)
		bridge.CancelSource(h.src)
	})
}

// sendLoop 通道的发送半边
func (h *fluxRequester) sendLoop() {
	completed, err := emit(h.ctx, h.w, h.id, h.credit, h.src)
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

// ============================================================================
//                              发送循环
// ============================================================================

// emit 拉取 src 并按额度逐项发送
//
// 先拉取再等待额度：额度耗尽时最多预取一项并保留到对端补充 REQUEST_N。
// 终止帧不占用额度，对端恰好请求全部数据项时同样能收到 COMPLETE 或 ERROR。
//
// src 正常结束时发送 COMPLETE 并返回 true；src 出错时发送 ERROR 并返回该错误；
// 被取消或连接关闭时两者都为零值。
func emit(ctx context.Context, w wire, id uint32, credit *bridge.Credit, src bridge.Source) (bool, error) {
	for {
		p, err := src.Next(ctx)
		if ctx.Err() != nil {
			return false, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				w.post(frame.NewPayloadFrame(id, types.Payload{}, false, true))
				return true, nil
			}
			w.post(frame.NewErrorFrom(id, err))
			return false, err
		}
		if err := credit.Acquire(ctx); err != nil {
			return false, nil
		}
		if err := w.write(ctx, frame.NewPayloadFrame(id, p, true, false)); err != nil {
			return false, nil
		}
	}
}
