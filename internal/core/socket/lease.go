package socket

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rsocket/internal/core/frame"
)

// ============================================================================
//                              请求方租约
// ============================================================================

// leaseState 请求方持有的租约
//
// 未启用租约时 use 总是成功。启用后在收到第一个 LEASE 之前以及租约
// 过期或用尽时，新请求以 ErrLeaseExhausted 同步失败。
type leaseState struct {
	clk     clock.Clock
	enabled bool

	mu        sync.Mutex
	expires   time.Time
	remaining uint32
	err       error
	ready     chan struct{}
	readyOnce sync.Once
}

func newLeaseState(clk clock.Clock, enabled bool) *leaseState {
	return &leaseState{clk: clk, enabled: enabled, ready: make(chan struct{})}
}

func (l *leaseState) use() error {
	if !l.enabled {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining == 0 || !l.clk.Now().Before(l.expires) {
		return ErrLeaseExhausted
	}
	l.remaining--
	return nil
}

func (l *leaseState) update(ttl time.Duration, n uint32) {
	if !l.enabled {
		return
	}
	l.mu.Lock()
	l.expires = l.clk.Now().Add(ttl)
	l.remaining = n
	l.mu.Unlock()
	l.readyOnce.Do(func() { close(l.ready) })
}

// wait 等待第一个 LEASE
func (l *leaseState) wait(ctx context.Context) error {
	if !l.enabled {
		return nil
	}
	select {
	case <-l.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *leaseState) close(err error) {
	l.mu.Lock()
	if l.err == nil && l.remaining == 0 {
		l.err = err
	}
	l.remaining = 0
	l.mu.Unlock()
	l.readyOnce.Do(func() { close(l.ready) })
}

// available 返回剩余请求数与过期时间
func (l *leaseState) available() (uint32, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining, l.expires
}

// ============================================================================
//                              响应方租约
// ============================================================================

// leaseIssuer 服务端按 TTL 周期签发租约并记账
//
// 只有客户端在 SETUP 中要求租约时才会 start，未启动时不限制入站请求。
type leaseIssuer struct {
	c   *Conn
	ttl time.Duration
	n   uint32

	mu        sync.Mutex
	active    bool
	expires   time.Time
	remaining uint32
	ticker    *clock.Ticker
	stopCh    chan struct{}
	stopped   bool
}

func newLeaseIssuer(c *Conn, ttl time.Duration, n uint32) *leaseIssuer {
	return &leaseIssuer{c: c, ttl: ttl, n: n, stopCh: make(chan struct{})}
}

func (l *leaseIssuer) start() {
	l.mu.Lock()
	l.active = true
	l.mu.Unlock()
	l.issue()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.ticker = l.c.clk.Ticker(l.ttl)
	go l.loop(l.ticker)
}

func (l *leaseIssuer) loop(t *clock.Ticker) {
	for {
		select {
		case <-l.stopCh:
			return
		case <-t.C:
			l.issue()
		}
	}
}

func (l *leaseIssuer) issue() {
	l.mu.Lock()
	l.expires = l.c.clk.Now().Add(l.ttl)
	l.remaining = l.n
	l.mu.Unlock()
	l.c.post(frame.NewLease(millis(l.ttl), l.n, nil))
}

// admit 为一个入站请求扣减租约
func (l *leaseIssuer) admit() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return true
	}
	if l.remaining == 0 || !l.c.clk.Now().Before(l.expires) {
		return false
	}
	l.remaining--
	return true
}

func (l *leaseIssuer) stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	if l.ticker != nil {
		l.ticker.Stop()
	}
	close(l.stopCh)
}
