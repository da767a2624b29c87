package socket

import (
	"fmt"
	"sync"

	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// handler 流处理器
//
// onFrame 只在读循环中调用；terminate 在连接关闭时调用，此时处理器
// 已经从流表中移除。
type handler interface {
	kind() types.InteractionKind
	onFrame(f *frame.Frame)
	terminate(err error)
}

// streamTable 流 ID 到流处理器的映射
//
// 由读循环与调用方的 open/cancel 入口共同访问，所有修改在同一把锁下进行。
type streamTable struct {
	mu       sync.Mutex
	streams  map[uint32]handler
	next     uint32
	lastPeer uint32
	localOdd bool
	closed   bool
}

func newStreamTable(role Role) *streamTable {
	t := &streamTable{streams: make(map[uint32]handler)}
	if role == RoleClient {
		t.next, t.localOdd = 1, true
	} else {
		t.next = 2
	}
	return t
}

// open 分配本端流 ID 并登记 build 创建的处理器
//
// build 在锁内执行，返回 nil 表示不需要登记（如 fire-and-forget）。
func (t *streamTable) open(build func(id uint32) handler) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrClosed
	}
	if t.next > frame.MaxStreamID {
		return 0, ErrStreamIDExhausted
	}
	id := t.next
	t.next += 2
	if build != nil {
		if h := build(id); h != nil {
			t.streams[id] = h
		}
	}
	return id, nil
}

// accept 登记对端发起的流
//
// 对端的流 ID 必须与本端奇偶相反且严格递增。
func (t *streamTable) accept(id uint32, build func() handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if (id%2 == 1) == t.localOdd {
		return fmt.Errorf("%w: %d has local parity", ErrInvalidStreamID, id)
	}
	if id <= t.lastPeer {
		return fmt.Errorf("%w: %d not greater than %d", ErrInvalidStreamID, id, t.lastPeer)
	}
	t.lastPeer = id
	if h := build(); h != nil {
		t.streams[id] = h
	}
	return nil
}

func (t *streamTable) get(id uint32) (handler, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.streams[id]
	return h, ok
}

// remove 释放流 ID，返回被移除的处理器
func (t *streamTable) remove(id uint32) (handler, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.streams[id]
	if ok {
		delete(t.streams, id)
	}
	return h, ok
}

// used 流 ID 是否曾经被分配过（用于区分迟到帧与非法帧）
func (t *streamTable) used(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if (id%2 == 1) == t.localOdd {
		return id < t.next
	}
	return id <= t.lastPeer
}

// close 关闭流表并取出全部处理器，之后的 open/accept 返回 ErrClosed
func (t *streamTable) close() []handler {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	out := make([]handler, 0, len(t.streams))
	for _, h := range t.streams {
		out = append(out, h)
	}
	t.streams = make(map[uint32]handler)
	return out
}

func (t *streamTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streams)
}
