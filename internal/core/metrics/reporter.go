package metrics

import "github.com/dep2p/go-rsocket/pkg/interfaces"

// Reporter 记录并查询引擎指标
type Reporter interface {
	interfaces.Observer

	// Totals 总体统计
	Totals() Stats

	// Frames 按帧类型分组的收发数量
	Frames() map[string]FrameStats

	// Streams 按交互模式分组的流统计
	Streams() map[string]GaugeStats

	// Conns 按传输协议分组的连接统计
	Conns() map[string]GaugeStats

	// Reset 重置所有统计
	Reset()
}

var _ Reporter = (*Counter)(nil)
