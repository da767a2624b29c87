package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector 把 Reporter 的统计导出为 Prometheus 指标
//
// 每次抓取时读取一次快照，不在读写路径上维护 Prometheus 对象。
type Collector struct {
	r Reporter

	bytes         *prometheus.Desc
	frames        *prometheus.Desc
	streamsOpened *prometheus.Desc
	streamsActive *prometheus.Desc
	connsOpened   *prometheus.Desc
	connsActive   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector，namespace 为指标名前缀
func NewCollector(namespace string, r Reporter) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "", n)
	}
	return &Collector{
		r: r,
		bytes: prometheus.NewDesc(name("bytes_total"),
			"Encoded frame bytes by direction.", []string{"direction"}, nil),
		frames: prometheus.NewDesc(name("frames_total"),
			"Frames by type and direction.", []string{"type", "direction"}, nil),
		streamsOpened: prometheus.NewDesc(name("streams_opened_total"),
			"Streams opened by interaction kind.", []string{"kind"}, nil),
		streamsActive: prometheus.NewDesc(name("streams_active"),
			"Active streams by interaction kind.", []string{"kind"}, nil),
		connsOpened: prometheus.NewDesc(name("connections_opened_total"),
			"Connections opened by transport.", []string{"transport"}, nil),
		connsActive: prometheus.NewDesc(name("connections_active"),
			"Active connections by transport.", []string{"transport"}, nil),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytes
	ch <- c.frames
	ch <- c.streamsOpened
	ch <- c.streamsActive
	ch <- c.connsOpened
	ch <- c.connsActive
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	t := c.r.Totals()
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(t.TotalIn), "in")
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(t.TotalOut), "out")

	for typ, f := range c.r.Frames() {
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(f.In), typ, "in")
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(f.Out), typ, "out")
	}
	for kind, g := range c.r.Streams() {
		ch <- prometheus.MustNewConstMetric(c.streamsOpened, prometheus.CounterValue, float64(g.Opened), kind)
		ch <- prometheus.MustNewConstMetric(c.streamsActive, prometheus.GaugeValue, float64(g.Active), kind)
	}
	for proto, g := range c.r.Conns() {
		ch <- prometheus.MustNewConstMetric(c.connsOpened, prometheus.CounterValue, float64(g.Opened), proto)
		ch <- prometheus.MustNewConstMetric(c.connsActive, prometheus.GaugeValue, float64(g.Active), proto)
	}
}
