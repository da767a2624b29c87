package bridge

import (
	"context"
	"sync"

	"github.com/dep2p/go-rsocket/pkg/types"
)

// Sink 数据项接收方
//
// OnNext 按到达顺序调用，index 从 1 开始；OnComplete 在流进入终止状态时
// 恰好调用一次，err 为 nil 表示正常完成。
type Sink interface {
	OnNext(p types.Payload, index int)
	OnComplete(total int, err error)
}

// ============================================================================
//                              Callbacks
// ============================================================================

// ItemFunc 逐项回调
type ItemFunc func(p types.Payload, index int)

// CompleteFunc 完成回调
//
// success 为 true 时 err 为 nil。
type CompleteFunc func(total int, success bool, err error)

// Callbacks 由两个函数组成的 Sink
type Callbacks struct {
	item     ItemFunc
	complete CompleteFunc
	once     sync.Once
}

// NewCallbacks 创建回调形式的 Sink，两个函数都可以为 nil
func NewCallbacks(onItem ItemFunc, onComplete CompleteFunc) *Callbacks {
	return &Callbacks{item: onItem, complete: onComplete}
}

// OnNext 实现 Sink
func (c *Callbacks) OnNext(p types.Payload, index int) {
	if c.item != nil {
		c.item(p, index)
	}
}

// OnComplete 实现 Sink（重复调用被忽略）
func (c *Callbacks) OnComplete(total int, err error) {
	c.once.Do(func() {
		if c.complete != nil {
			c.complete(total, err == nil, err)
		}
	})
}

// ============================================================================
//                              Collector
// ============================================================================

// Collector 收集全部数据项直到完成
type Collector struct {
	mu    sync.Mutex
	items []types.Payload
	err   error
	done  chan struct{}
	once  sync.Once
}

// NewCollector 创建收集器
func NewCollector() *Collector {
	return &Collector{done: make(chan struct{})}
}

// OnNext 实现 Sink
func (c *Collector) OnNext(p types.Payload, _ int) {
	c.mu.Lock()
	c.items = append(c.items, p)
	c.mu.Unlock()
}

// OnComplete 实现 Sink
func (c *Collector) OnComplete(_ int, err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Wait 等待完成并返回按顺序收集的数据项
//
// 流以错误结束时同时返回已收到的数据项与错误。
func (c *Collector) Wait(ctx context.Context) ([]types.Payload, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return c.Items(), ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.err
}

// Items 返回当前已收集的数据项副本
func (c *Collector) Items() []types.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Payload, len(c.items))
	copy(out, c.items)
	return out
}

// Done 完成信号
func (c *Collector) Done() <-chan struct{} {
	return c.done
}
