package metrics

// Stats 统计快照
//
// TotalIn / TotalOut 为累计收发字节数，RateIn / RateOut 为最近 60 秒
// 的平均每秒字节数。
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64
	RateOut  float64

	FramesIn  int64
	FramesOut int64

	ActiveStreams int64
	ActiveConns   int64
}

// FrameStats 单个帧类型的收发数量
type FrameStats struct {
	In  int64
	Out int64
}

// GaugeStats 累计打开数与当前活跃数
type GaugeStats struct {
	Opened int64
	Active int64
}
