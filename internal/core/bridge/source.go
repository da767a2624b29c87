package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dep2p/go-rsocket/pkg/interfaces"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// Source 惰性拉取的数据源
//
// 实现不要求并发安全，同一时刻只会有一个调用方拉取。
type Source = interfaces.Source

// Canceler 可被提前终止的数据源
type Canceler interface {
	Cancel()
}

// SourceFunc 函数形式的数据源
type SourceFunc func(ctx context.Context) (types.Payload, error)

// Next 实现 Source
func (f SourceFunc) Next(ctx context.Context) (types.Payload, error) {
	return f(ctx)
}

// Generator 生成器：依次调用 yield 产出数据项，yield 返回 false 时应立即停止
type Generator func(yield func(types.Payload) bool)

// CancelSource 终止数据源（若支持）
func CancelSource(src Source) {
	if c, ok := src.(Canceler); ok {
		c.Cancel()
	}
}

// ============================================================================
//                              切片
// ============================================================================

type sliceSource struct {
	items []types.Payload
	pos   int
}

// FromSlice 由切片创建数据源
func FromSlice(items []types.Payload) Source {
	return &sliceSource{items: items}
}

func (s *sliceSource) Next(ctx context.Context) (types.Payload, error) {
	if err := ctx.Err(); err != nil {
		return types.Payload{}, err
	}
	if s.pos >= len(s.items) {
		return types.Payload{}, io.EOF
	}
	p := s.items[s.pos]
	s.pos++
	return p, nil
}

// ============================================================================
//                              Channel
// ============================================================================

type chanSource struct {
	ch <-chan types.Payload
}

// FromChan 由 channel 创建数据源，channel 关闭即耗尽
func FromChan(ch <-chan types.Payload) Source {
	return &chanSource{ch: ch}
}

func (s *chanSource) Next(ctx context.Context) (types.Payload, error) {
	select {
	case p, ok := <-s.ch:
		if !ok {
			return types.Payload{}, io.EOF
		}
		return p, nil
	case <-ctx.Done():
		return types.Payload{}, ctx.Err()
	}
}

// ============================================================================
//                              生成器
// ============================================================================

type genSource struct {
	gen Generator

	once  sync.Once
	pull  chan struct{}
	items chan types.Payload
	stop  chan struct{}

	stopOnce sync.Once
	err      error
}

// FromGenerator 由生成器创建数据源
//
// 生成器只在每次 Next 时恢复执行一步，不会提前产出未被拉取的数据项。
func FromGenerator(gen Generator) Source {
	return &genSource{
		gen:   gen,
		pull:  make(chan struct{}),
		items: make(chan types.Payload),
		stop:  make(chan struct{}),
	}
}

func (g *genSource) run() {
	defer close(g.items)
	defer func() {
		if r := recover(); r != nil {
			g.err = &GeneratorPanic{Value: r}
		}
	}()

	select {
	case <-g.pull:
	case <-g.stop:
		return
	}
	g.gen(func(p types.Payload) bool {
		select {
		case g.items <- p:
		case <-g.stop:
			return false
		}
		select {
		case <-g.pull:
			return true
		case <-g.stop:
			return false
		}
	})
}

func (g *genSource) Next(ctx context.Context) (types.Payload, error) {
	if g.stopped() {
		return types.Payload{}, ErrCancelled
	}
	g.once.Do(func() { go g.run() })

	select {
	case g.pull <- struct{}{}:
	case p, ok := <-g.items:
		if ok {
			return p, nil
		}
		return types.Payload{}, g.finish()
	case <-g.stop:
		return types.Payload{}, ErrCancelled
	case <-ctx.Done():
		return types.Payload{}, ctx.Err()
	}

	select {
	case p, ok := <-g.items:
		if !ok {
			return types.Payload{}, g.finish()
		}
		if g.stopped() {
			return types.Payload{}, ErrCancelled
		}
		return p, nil
	case <-g.stop:
		return types.Payload{}, ErrCancelled
	case <-ctx.Done():
		return types.Payload{}, ctx.Err()
	}
}

// finish 在 items 关闭后调用，此时 g.err 已经写入完毕
func (g *genSource) finish() error {
	if g.err != nil {
		return g.err
	}
	return io.EOF
}

func (g *genSource) stopped() bool {
	select {
	case <-g.stop:
		return true
	default:
		return false
	}
}

// Cancel 停止生成器
func (g *genSource) Cancel() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// ============================================================================
//                              变换
// ============================================================================

type mapSource struct {
	src Source
	fn  func(types.Payload) (types.Payload, error)
}

// Map 对数据源的每一项做变换
func Map(src Source, fn func(types.Payload) (types.Payload, error)) Source {
	return &mapSource{src: src, fn: fn}
}

func (m *mapSource) Next(ctx context.Context) (types.Payload, error) {
	p, err := m.src.Next(ctx)
	if err != nil {
		return p, err
	}
	return m.fn(p)
}

func (m *mapSource) Cancel() {
	CancelSource(m.src)
}

// Single 只产出一项的数据源
func Single(p types.Payload) Source {
	return FromSlice([]types.Payload{p})
}

// Empty 空数据源
func Empty() Source {
	return FromSlice(nil)
}

// Failed 立即以错误结束的数据源
func Failed(err error) Source {
	return SourceFunc(func(context.Context) (types.Payload, error) {
		return types.Payload{}, err
	})
}

// ============================================================================
//                              AsSource
// ============================================================================

// AsSource 将调用方传入的值转换为惰性数据源
//
// 只接受惰性的值：Source、SourceFunc、Generator、
// func(context.Context) (types.Payload, error)、func(func(types.Payload) bool)
// 以及 channel。切片等预先物化的值返回 ErrNotLazySource。
func AsSource(v any) (Source, error) {
	switch s := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrNotLazySource)
	case Source:
		return s, nil
	case Generator:
		return FromGenerator(s), nil
	case func(yield func(types.Payload) bool):
		return FromGenerator(s), nil
	case func(ctx context.Context) (types.Payload, error):
		return SourceFunc(s), nil
	case <-chan types.Payload:
		return FromChan(s), nil
	case chan types.Payload:
		return FromChan(s), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotLazySource, v)
	}
}
