package metrics

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// numFrameTypes 帧类型字段为 6 位
const numFrameTypes = 64

// Counter 引擎计数器
//
// 实现 interfaces.Observer，由连接在读写路径上调用。所有计数使用原子
// 操作；按标签（交互模式、传输协议）分组的计数在首次出现时创建。
type Counter struct {
	bytesIn  atomic.Int64
	bytesOut atomic.Int64

	framesIn  [numFrameTypes]atomic.Int64
	framesOut [numFrameTypes]atomic.Int64

	inRate  *RateMeter
	outRate *RateMeter

	mu      sync.RWMutex
	streams map[string]*gauge
	conns   map[string]*gauge
}

// gauge 累计打开数与当前活跃数
type gauge struct {
	opened atomic.Int64
	active atomic.Int64
}

var _ interfaces.Observer = (*Counter)(nil)

// NewCounter 创建计数器，clk 为 nil 时使用系统时钟
func NewCounter(clk clock.Clock) *Counter {
	return &Counter{
		inRate:  NewRateMeter(clk),
		outRate: NewRateMeter(clk),
		streams: make(map[string]*gauge),
		conns:   make(map[string]*gauge),
	}
}

// ============================================================================
//                              Observer 实现
// ============================================================================

// FrameSent 记录发送的帧
func (c *Counter) FrameSent(t uint8, size int) {
	c.framesOut[t%numFrameTypes].Add(1)
	c.bytesOut.Add(int64(size))
	c.outRate.Add(int64(size))
}

// FrameReceived 记录接收的帧
func (c *Counter) FrameReceived(t uint8, size int) {
	c.framesIn[t%numFrameTypes].Add(1)
	c.bytesIn.Add(int64(size))
	c.inRate.Add(int64(size))
}

// StreamOpened 记录流建立
func (c *Counter) StreamOpened(kind string) {
	g := c.gaugeFor(c.streams, kind)
	g.opened.Add(1)
	g.active.Add(1)
}

// StreamClosed 记录流终止
func (c *Counter) StreamClosed(kind string) {
	c.gaugeFor(c.streams, kind).active.Add(-1)
}

// ConnOpened 记录连接建立
func (c *Counter) ConnOpened(protocol string) {
	g := c.gaugeFor(c.conns, protocol)
	g.opened.Add(1)
	g.active.Add(1)
}

// ConnClosed 记录连接关闭
func (c *Counter) ConnClosed(protocol string) {
	c.gaugeFor(c.conns, protocol).active.Add(-1)
}

func (c *Counter) gaugeFor(m map[string]*gauge, label string) *gauge {
	c.mu.RLock()
	g := m[label]
	c.mu.RUnlock()
	if g != nil {
		return g
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g = m[label]; g == nil {
		g = &gauge{}
		m[label] = g
	}
	return g
}

// ============================================================================
//                              查询
// ============================================================================

// Totals 返回总体统计
func (c *Counter) Totals() Stats {
	s := Stats{
		TotalIn:  c.bytesIn.Load(),
		TotalOut: c.bytesOut.Load(),
		RateIn:   c.inRate.Rate(),
		RateOut:  c.outRate.Rate(),
	}
	for i := range c.framesIn {
		s.FramesIn += c.framesIn[i].Load()
		s.FramesOut += c.framesOut[i].Load()
	}
	c.mu.RLock()
	for _, g := range c.streams {
		s.ActiveStreams += g.active.Load()
	}
	for _, g := range c.conns {
		s.ActiveConns += g.active.Load()
	}
	c.mu.RUnlock()
	return s
}

// Frames 返回按帧类型名称分组的收发帧数，只包含出现过的类型
func (c *Counter) Frames() map[string]FrameStats {
	out := make(map[string]FrameStats)
	for i := range c.framesIn {
		in, sent := c.framesIn[i].Load(), c.framesOut[i].Load()
		if in == 0 && sent == 0 {
			continue
		}
		out[frame.Type(i).String()] = FrameStats{In: in, Out: sent}
	}
	return out
}

// Streams 返回按交互模式分组的流统计
func (c *Counter) Streams() map[string]GaugeStats {
	return c.snapshot(c.streams)
}

// Conns 返回按传输协议分组的连接统计
func (c *Counter) Conns() map[string]GaugeStats {
	return c.snapshot(c.conns)
}

func (c *Counter) snapshot(m map[string]*gauge) map[string]GaugeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]GaugeStats, len(m))
	for k, g := range m {
		out[k] = GaugeStats{Opened: g.opened.Load(), Active: g.active.Load()}
	}
	return out
}

// Labels 返回已出现的流与连接标签（已排序）
func (c *Counter) Labels() (streams, conns []string) {
	c.mu.RLock()
	for k := range c.streams {
		streams = append(streams, k)
	}
	for k := range c.conns {
		conns = append(conns, k)
	}
	c.mu.RUnlock()
	sort.Strings(streams)
	sort.Strings(conns)
	return streams, conns
}

// Reset 清除所有统计
func (c *Counter) Reset() {
	c.bytesIn.Store(0)
	c.bytesOut.Store(0)
	for i := range c.framesIn {
		c.framesIn[i].Store(0)
		c.framesOut[i].Store(0)
	}
	c.inRate.Reset()
	c.outRate.Reset()
	c.mu.Lock()
	c.streams = make(map[string]*gauge)
	c.conns = make(map[string]*gauge)
	c.mu.Unlock()
}
