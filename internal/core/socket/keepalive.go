package socket

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// keepalive 心跳检测
//
// 每个周期检查一次是否收到过对端的 KEEPALIVE，连续错过 MissedKeepalives
// 个周期后以 ErrKeepaliveTimeout 关闭连接。客户端每个周期还会发送一次
// 要求回应的 KEEPALIVE，服务端只负责回应与检测。
type keepalive struct {
	c *Conn

	mu      sync.Mutex
	peer    bool
	missed  int
	ticker  *clock.Ticker
	stopCh  chan struct{}
	stopped bool
}

func newKeepalive(c *Conn) *keepalive {
	return &keepalive{c: c, peer: true, stopCh: make(chan struct{})}
}

// start 按 interval 启动心跳，interval 为 0 时不启动
func (k *keepalive) start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped || k.ticker != nil {
		return
	}
	k.ticker = k.c.clk.Ticker(interval)
	go k.loop(k.ticker)
}

func (k *keepalive) seen() {
	k.mu.Lock()
	k.peer = true
	k.mu.Unlock()
}

func (k *keepalive) stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stopped {
		return
	}
	k.stopped = true
	if k.ticker != nil {
		k.ticker.Stop()
	}
	close(k.stopCh)
}

func (k *keepalive) loop(t *clock.Ticker) {
	for {
		select {
		case <-k.stopCh:
			return
		case <-t.C:
		}
		if k.tick() {
			return
		}
	}
}

// tick 返回 true 表示已判定超时
func (k *keepalive) tick() bool {
	k.mu.Lock()
	if k.peer {
		k.missed = 0
	} else {
		k.missed++
	}
	k.peer = false
	missed := k.missed
	k.mu.Unlock()

	c := k.c
	if missed >= c.cfg.MissedKeepalives {
		c.log.Warn("心跳超时", "missed", missed)
		c.post(frame.NewError(0, types.ErrorCodeConnectionError, "keepalive timeout"))
		c.shutdown(ErrKeepaliveTimeout)
		return true
	}
	if c.role == RoleClient {
		c.post(frame.NewKeepalive(0, nil, true))
	}
	return false
}
