package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// wire 流处理器看到的连接视图
//
// 处理器只持有流 ID 与该接口，不直接访问连接内部状态。
type wire interface {
	// write 发送帧并等待写入传输层
	write(ctx context.Context, f *frame.Frame) error
	// post 发送帧，不等待写入结果
	post(f *frame.Frame)
	// release 释放流 ID
	release(id uint32)
}

// Conn 一条多路复用连接
//
// 每条连接有一个读循环和一个写循环；所有出站帧经写队列串行写入传输层，
// 所有入站帧在读循环中解码并按流 ID 分发。
type Conn struct {
	id   string
	role Role
	cfg  Config
	tr   interfaces.Conn
	log  *slog.Logger
	clk  clock.Clock
	obs  interfaces.Observer

	table     *streamTable
	responder *Responder

	ctx    context.Context
	cancel context.CancelFunc

	wq          *writeQueue
	writeCtx    context.Context
	writeCancel context.CancelFunc
	writerDone  chan struct{}

	dec    *frame.Decoder
	joiner *frame.Joiner

	lease  *leaseState
	issuer *leaseIssuer
	ka     *keepalive

	dropLog *rate.Limiter

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(tr interfaces.Conn, role Role, cfg Config) *Conn {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	wctx, wcancel := context.WithCancel(context.Background())
	c := &Conn{
		id:          cfg.ID,
		role:        role,
		cfg:         cfg,
		tr:          tr,
		clk:         cfg.Clock,
		obs:         cfg.Observer,
		table:       newStreamTable(role),
		responder:   ResponderOf(cfg.Responder),
		ctx:         ctx,
		cancel:      cancel,
		wq:          newWriteQueue(),
		writeCtx:    wctx,
		writeCancel: wcancel,
		writerDone:  make(chan struct{}),
		dec:         frame.NewDecoder(),
		joiner:      frame.NewJoiner(cfg.MaxReassembly),
		lease:       newLeaseState(cfg.Clock, role == RoleClient && cfg.Lease),
		dropLog:     rate.NewLimiter(rate.Every(time.Second), 5),
		done:        make(chan struct{}),
	}
	c.log = cfg.Logger.With("conn", cfg.ID, "role", role.String())
	c.ka = newKeepalive(c)
	if role == RoleServer && cfg.LeaseRequests > 0 {
		c.issuer = newLeaseIssuer(c, cfg.LeaseTTL, cfg.LeaseRequests)
	}
	c.obs.ConnOpened(cfg.Transport)
	go c.writeLoop()
	return c
}

// ============================================================================
//                              公共接口
// ============================================================================

// ID 连接标识
func (c *Conn) ID() string {
	return c.id
}

// Role 连接角色
func (c *Conn) Role() Role {
	return c.role
}

// LocalAddr 本地地址
func (c *Conn) LocalAddr() net.Addr {
	return c.tr.LocalAddr()
}

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr {
	return c.tr.RemoteAddr()
}

// Context 连接存活期间有效的 context
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Close 关闭连接
//
// 所有活跃流以 ErrClosed 终止，写队列在 CloseTimeout 内排空后关闭传输。
func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	<-c.done
	return nil
}

// Done 连接完全关闭后关闭的 channel
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err 返回连接关闭的原因，连接存活时返回 nil
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ActiveStreams 返回活跃流数量
func (c *Conn) ActiveStreams() int {
	return c.table.len()
}

func (c *Conn) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrClosed
}

func (c *Conn) isClosed() bool {
	return c.Err() != nil
}

// ============================================================================
//                              写路径
// ============================================================================

type outbound struct {
	bufs  [][]byte
	types []frame.Type
	done  chan error
}

// writeQueue 无界写队列，保证同一连接上帧的写入顺序
type writeQueue struct {
	mu     sync.Mutex
	items  []outbound
	closed bool
	signal chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{signal: make(chan struct{}, 1)}
}

func (q *writeQueue) push(o outbound) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, o)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// next 取出全部排队项，队列关闭且为空时返回 false
func (q *writeQueue) next() ([]outbound, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			batch := q.items
			q.items = nil
			q.mu.Unlock()
			return batch, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// enqueue 分片、编码并排队，编码错误同步返回
func (c *Conn) enqueue(f *frame.Frame, done chan error) error {
	frames, err := frame.Fragment(f, c.cfg.MTU)
	if err != nil {
		return err
	}
	o := outbound{
		bufs:  make([][]byte, 0, len(frames)),
		types: make([]frame.Type, 0, len(frames)),
		done:  done,
	}
	for _, fr := range frames {
		b, err := frame.Encode(fr)
		if err != nil {
			return err
		}
		o.bufs = append(o.bufs, b)
		o.types = append(o.types, fr.Type)
	}
	return c.wq.push(o)
}

func (c *Conn) write(ctx context.Context, f *frame.Frame) error {
	done := make(chan error, 1)
	if err := c.enqueue(f, done); err != nil {
		if errors.Is(err, ErrClosed) {
			return c.closedErr()
		}
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closedErr()
	}
}

func (c *Conn) post(f *frame.Frame) {
	if err := c.enqueue(f, nil); err != nil && !errors.Is(err, ErrClosed) {
		c.log.Warn("发送帧失败", "type", f.Type.String(), "stream", f.StreamID, "err", err)
	}
}

func (c *Conn) release(id uint32) {
	if h, ok := c.table.remove(id); ok {
		c.obs.StreamClosed(h.kind().String())
	}
}

func (c *Conn) writeLoop() {
	defer close(c.writerDone)
	var failed error
	for {
		batch, ok := c.wq.next()
		if !ok {
			return
		}
		for _, o := range batch {
			err := failed
			if err == nil {
				if err = c.send(o); err != nil {
					failed = err
					c.shutdown(fmt.Errorf("%w: %v", ErrTransport, err))
				}
			}
			if o.done != nil {
				o.done <- err
			}
		}
	}
}

func (c *Conn) send(o outbound) error {
	for i, b := range o.bufs {
		if err := c.tr.Send(c.writeCtx, b); err != nil {
			return err
		}
		c.obs.FrameSent(uint8(o.types[i]), len(b))
	}
	return nil
}

// ============================================================================
//                              读路径
// ============================================================================

func (c *Conn) readLoop() {
	for {
		for {
			f, err := c.dec.Next()
			if errors.Is(err, frame.ErrNeedMoreData) {
				break
			}
			if err != nil {
				c.protocolError(err)
				return
			}
			c.obs.FrameReceived(uint8(f.Type), frame.EncodedLen(f))
			if f, err = c.joiner.Push(f); err != nil {
				c.protocolError(err)
				return
			}
			if f == nil {
				continue
			}
			c.dispatch(f)
			if c.isClosed() {
				return
			}
		}

		chunk, err := c.tr.Receive()
		if err != nil {
			if c.isClosed() {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.shutdown(ErrConnectionLost)
			} else {
				c.shutdown(fmt.Errorf("%w: %v", ErrTransport, err))
			}
			return
		}
		c.dec.Feed(chunk)
	}
}

func (c *Conn) dispatch(f *frame.Frame) {
	if !f.Type.Known() {
		c.log.Debug("忽略未知帧", "type", f.Type.String(), "stream", f.StreamID)
		return
	}
	if f.StreamID == 0 {
		c.onConnectionFrame(f)
		return
	}
	if h, ok := c.table.get(f.StreamID); ok {
		h.onFrame(f)
		return
	}
	if f.Type.IsRequest() {
		c.accept(f)
		return
	}
	c.drop(f)
}

func (c *Conn) onConnectionFrame(f *frame.Frame) {
	switch f.Type {
	case frame.TypeKeepalive:
		c.ka.seen()
		if f.Flags.Has(frame.FlagRespond) {
			c.post(frame.NewKeepalive(0, f.Data, false))
		}
	case frame.TypeLease:
		if c.role != RoleClient {
			c.log.Warn("服务端收到 LEASE，忽略")
			return
		}
		c.lease.update(time.Duration(f.TTL)*time.Millisecond, f.NumberOfRequests)
	case frame.TypeMetadataPush:
		c.onMetadataPush(f)
	case frame.TypeError:
		c.log.Info("对端关闭连接", "code", f.ErrorCode.String(), "msg", string(f.Data))
		c.shutdown(f.Err())
	case frame.TypeSetup:
		c.protocolError(errors.New("duplicate SETUP"))
	default:
		c.drop(f)
	}
}

// drop 丢弃不属于任何活跃流的帧
func (c *Conn) drop(f *frame.Frame) {
	switch {
	case f.Type == frame.TypeRequestN || f.Type == frame.TypeCancel:
		// 与本端取消或完成交错到达，属于正常情况
		c.log.Debug("丢弃迟到帧", "type", f.Type.String(), "stream", f.StreamID)
	case c.dropLog.Allow():
		c.log.Warn("丢弃未知流上的帧", "type", f.Type.String(), "stream", f.StreamID,
			"late", c.table.used(f.StreamID))
	}
}

// protocolError 发送 CONNECTION_ERROR 并关闭连接
func (c *Conn) protocolError(err error) {
	c.log.Warn("协议错误", "err", err)
	c.post(frame.NewError(0, types.ErrorCodeConnectionError, err.Error()))
	c.shutdown(fmt.Errorf("%w: %v", ErrProtocol, err))
}

// ============================================================================
//                              关闭
// ============================================================================

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		if errors.Is(err, ErrClosed) {
			c.log.Debug("连接关闭")
		} else {
			c.log.Info("连接终止", "err", err)
		}

		c.cancel()
		c.ka.stop()
		c.issuer.stop()
		c.lease.close(err)
		for _, h := range c.table.close() {
			h.terminate(err)
			c.obs.StreamClosed(h.kind().String())
		}
		c.wq.close()
		go c.finish()
	})
}

func (c *Conn) finish() {
	t := time.NewTimer(c.cfg.CloseTimeout)
	select {
	case <-c.writerDone:
	case <-t.C:
		c.log.Debug("写队列排空超时")
	}
	t.Stop()
	c.writeCancel()
	_ = c.tr.Close()
	c.obs.ConnClosed(c.cfg.Transport)
	close(c.done)
}
