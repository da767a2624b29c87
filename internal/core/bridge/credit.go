package bridge

import (
	"context"
	"sync"
)

// Unbounded REQUEST_N 累计达到该值即视为无界
const Unbounded = 0x7FFFFFFF

// ============================================================================
//                              Credit - 发送额度
// ============================================================================

// Credit 对端授予的发送额度
//
// 生产方每发送一项前调用 Acquire，额度耗尽时阻塞，直到对端通过
// REQUEST_N 追加额度。生产方先拉取再获取额度，本地数据源被拉取的次数
// 最多比对端的授权多一项。终止信号不需要额度。
type Credit struct {
	mu        sync.Mutex
	n         int64
	unbounded bool
	err       error

	signal chan struct{}
	closed chan struct{}
}

// NewCredit 创建额度计数器
func NewCredit(initial uint32) *Credit {
	c := &Credit{
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	c.Grant(initial)
	return c
}

// Grant 追加额度，累计达到 Unbounded 后不再计数
func (c *Credit) Grant(n uint32) {
	if n == 0 {
		return
	}
	c.mu.Lock()
	if !c.unbounded {
		c.n += int64(n)
		if c.n >= Unbounded {
			c.unbounded = true
		}
	}
	c.mu.Unlock()
	notify(c.signal)
}

// Acquire 获取一个额度，额度不足时阻塞
func (c *Credit) Acquire(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.err != nil {
			err := c.err
			c.mu.Unlock()
			return err
		}
		if c.unbounded {
			c.mu.Unlock()
			return nil
		}
		if c.n > 0 {
			c.n--
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		select {
		case <-c.signal:
		case <-c.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close 终止额度计数，阻塞中的 Acquire 返回 err
func (c *Credit) Close(err error) {
	if err == nil {
		err = ErrCancelled
	}
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	c.err = err
	c.mu.Unlock()
	close(c.closed)
}

// Available 返回剩余额度，无界时返回 Unbounded
func (c *Credit) Available() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unbounded {
		return Unbounded
	}
	return c.n
}

// ============================================================================
//                              Window - 接收窗口
// ============================================================================

// Window 接收方向的 REQUEST_N 补充策略
//
// outstanding 为已授权但尚未收到的数量，ungranted 为已消费但尚未重新授权的数量。
// 始终满足 outstanding + 排队中 + ungranted == size，因此在途数据项不超过 size。
// 当 outstanding 降到低水位（size/2）时，把 ungranted 一次性补给对端，
// 稳定消费下对端的额度不会归零。
type Window struct {
	mu          sync.Mutex
	size        int64
	lowWater    int64
	outstanding int64
	ungranted   int64
	unbounded   bool
}

// NewWindow 创建接收窗口，size 为初始请求数
func NewWindow(size uint32) *Window {
	if size == 0 {
		size = 1
	}
	return &Window{
		size:        int64(size),
		lowWater:    int64(size) / 2,
		outstanding: int64(size),
		unbounded:   size >= Unbounded,
	}
}

// Size 初始请求数
func (w *Window) Size() uint32 {
	return uint32(w.size)
}

// Received 记录收到一项，超过授权时返回 ErrCreditViolation
func (w *Window) Received() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unbounded {
		return nil
	}
	if w.outstanding <= 0 {
		return ErrCreditViolation
	}
	w.outstanding--
	return nil
}

// Consumed 记录消费一项，返回需要补充给对端的 REQUEST_N（0 表示暂不补充）
func (w *Window) Consumed() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unbounded {
		return 0
	}
	w.ungranted++
	if w.outstanding > w.lowWater {
		return 0
	}
	g := w.ungranted
	w.ungranted = 0
	w.outstanding += g
	return uint32(g)
}

// Outstanding 返回已授权但尚未收到的数量
func (w *Window) Outstanding() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outstanding
}
