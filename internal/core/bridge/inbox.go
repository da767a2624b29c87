package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dep2p/go-rsocket/pkg/types"
)

// ErrInboxClosed 终止信号之后继续投递
var ErrInboxClosed = errors.New("bridge: inbox closed")

// Inbox 读循环与调用方之间的有界交接队列
//
// 读循环通过 Push 投递数据项，队列满时 Push 阻塞（背压传导到线路读取）。
// 调用方通过 Next（拉取）或 Deliver（推送到 Sink）消费；每消费一项调用
// 一次 onConsumed，推送模式下在 Sink.OnNext 返回之后才算消费完成，
// 因此慢回调会延迟 REQUEST_N 的补充。
type Inbox struct {
	mu        sync.Mutex
	items     []types.Payload
	capacity  int
	closed    bool
	err       error
	cancelled bool
	delivered int

	onConsumed func()

	ready    chan struct{}
	space    chan struct{}
	cancelCh chan struct{}
}

// NewInbox 创建交接队列
//
// capacity <= 0 表示不限制队列长度。
func NewInbox(capacity int, onConsumed func()) *Inbox {
	return &Inbox{
		capacity:   capacity,
		onConsumed: onConsumed,
		ready:      make(chan struct{}, 1),
		space:      make(chan struct{}, 1),
		cancelCh:   make(chan struct{}),
	}
}

// Push 投递一项
//
// 已取消时返回 ErrCancelled（数据项被丢弃），已终止时返回 ErrInboxClosed。
func (b *Inbox) Push(ctx context.Context, p types.Payload) error {
	for {
		b.mu.Lock()
		switch {
		case b.cancelled:
			b.mu.Unlock()
			return ErrCancelled
		case b.closed:
			b.mu.Unlock()
			return ErrInboxClosed
		case b.capacity <= 0 || len(b.items) < b.capacity:
			b.items = append(b.items, p)
			b.mu.Unlock()
			notify(b.ready)
			return nil
		}
		b.mu.Unlock()

		select {
		case <-b.space:
		case <-b.cancelCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close 投递终止信号，err 为 nil 表示正常完成
//
// 已排队的数据项仍会被消费，之后消费方得到 io.EOF 或 err。
// 重复调用只有第一次生效。
func (b *Inbox) Close(err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.err = err
	b.mu.Unlock()
	notify(b.ready)
}

// Cancel 本端取消：丢弃已排队与之后到达的数据项
func (b *Inbox) Cancel() {
	b.mu.Lock()
	if b.cancelled {
		b.mu.Unlock()
		return
	}
	b.cancelled = true
	b.items = nil
	b.mu.Unlock()
	close(b.cancelCh)
}

// Cancelled 是否已取消
func (b *Inbox) Cancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelled
}

// Next 实现 Source
func (b *Inbox) Next(ctx context.Context) (types.Payload, error) {
	p, err := b.take(ctx)
	if err != nil {
		return p, err
	}
	b.ack()
	return p, nil
}

// Deliver 把数据项依次推送给 sink，并在终止时恰好调用一次 OnComplete
//
// 阻塞直到流终止、被取消或 ctx 结束。
func (b *Inbox) Deliver(ctx context.Context, sink Sink) {
	total := 0
	for {
		p, err := b.take(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			sink.OnComplete(total, err)
			return
		}
		total++
		sink.OnNext(p, total)
		b.ack()
	}
}

// Delivered 返回已交付的数据项数量
func (b *Inbox) Delivered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delivered
}

// Len 返回排队中的数据项数量
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Inbox) take(ctx context.Context) (types.Payload, error) {
	for {
		b.mu.Lock()
		if b.cancelled {
			b.mu.Unlock()
			return types.Payload{}, ErrCancelled
		}
		if len(b.items) > 0 {
			p := b.items[0]
			b.items[0] = types.Payload{}
			b.items = b.items[1:]
			b.delivered++
			b.mu.Unlock()
			notify(b.space)
			return p, nil
		}
		if b.closed {
			err := b.err
			b.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return types.Payload{}, err
		}
		b.mu.Unlock()

		select {
		case <-b.ready:
		case <-b.cancelCh:
		case <-ctx.Done():
			if ok, err := b.terminal(); ok {
				return types.Payload{}, err
			}
			return types.Payload{}, ctx.Err()
		}
	}
}

// terminal 队列已空且已投递终止信号时返回该信号
func (b *Inbox) terminal() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed || b.cancelled || len(b.items) > 0 {
		return false, nil
	}
	if b.err == nil {
		return true, io.EOF
	}
	return true, b.err
}

func (b *Inbox) ack() {
	if b.onConsumed != nil {
		b.onConsumed()
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
