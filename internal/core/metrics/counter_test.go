package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-rsocket/internal/core/frame"
)

// ============================================================================
// 基础功能测试
// ============================================================================

func TestCounter_Frames(t *testing.T) {
	c := NewCounter(clock.NewMock())

	c.FrameSent(uint8(frame.TypeRequestResponse), 100)
	c.FrameSent(uint8(frame.TypePayload), 50)
	c.FrameReceived(uint8(frame.TypePayload), 30)
	c.FrameReceived(uint8(frame.TypePayload), 20)

	s := c.Totals()
	assert.Equal(t, int64(150), s.TotalOut)
	assert.Equal(t, int64(50), s.TotalIn)
	assert.Equal(t, int64(2), s.FramesOut)
	assert.Equal(t, int64(2), s.FramesIn)

	frames := c.Frames()
	assert.Len(t, frames, 2)
	assert.Equal(t, FrameStats{In: 0, Out: 1}, frames[frame.TypeRequestResponse.String()])
	assert.Equal(t, FrameStats{In: 2, Out: 1}, frames[frame.TypePayload.String()])
}

func TestCounter_StreamsAndConns(t *testing.T) {
	c := NewCounter(nil)

	c.ConnOpened("tcp")
	c.ConnOpened("tcp")
	c.ConnOpened("quic")
	c.ConnClosed("tcp")

	c.StreamOpened("request_stream")
	c.StreamOpened("request_stream")
	c.StreamOpened("request_channel")
	c.StreamClosed("request_stream")

	s := c.Totals()
	assert.Equal(t, int64(2), s.ActiveConns)
	assert.Equal(t, int64(2), s.ActiveStreams)

	assert.Equal(t, GaugeStats{Opened: 2, Active: 1}, c.Conns()["tcp"])
	assert.Equal(t, GaugeStats{Opened: 1, Active: 1}, c.Conns()["quic"])
	assert.Equal(t, GaugeStats{Opened: 2, Active: 1}, c.Streams()["request_stream"])

	streams, conns := c.Labels()
	assert.Equal(t, []string{"request_channel", "request_stream"}, streams)
	assert.Equal(t, []string{"quic", "tcp"}, conns)
}

func TestCounter_Reset(t *testing.T) {
	c := NewCounter(nil)
	c.FrameSent(1, 10)
	c.FrameReceived(1, 10)
	c.ConnOpened("mem")
	c.StreamOpened("request_response")

	c.Reset()
	assert.Equal(t, Stats{}, c.Totals())
	assert.Empty(t, c.Frames())
	assert.Empty(t, c.Streams())
	assert.Empty(t, c.Conns())
}

// ============================================================================
// 并发测试
// ============================================================================

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter(nil)

	const goroutines, ops = 50, 100
	var wg sync.WaitGroup
	wg.Add(goroutines * 2)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				c.FrameSent(uint8(frame.TypePayload), 10)
				c.StreamOpened("request_stream")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				c.FrameReceived(uint8(frame.TypePayload), 20)
				_ = c.Totals()
			}
		}()
	}
	wg.Wait()

	s := c.Totals()
	assert.Equal(t, int64(goroutines*ops*10), s.TotalOut)
	assert.Equal(t, int64(goroutines*ops*20), s.TotalIn)
	assert.Equal(t, int64(goroutines*ops), s.ActiveStreams)
}

// ============================================================================
// 速率测试
// ============================================================================

func TestRateMeter(t *testing.T) {
	mock := clock.NewMock()
	r := NewRateMeter(mock)

	r.Add(600)
	assert.Equal(t, int64(600), r.Total())
	assert.InDelta(t, 10.0, r.Rate(), 0.001)

	// 窗口内的数据保留
	mock.Add(30 * time.Second)
	r.Add(600)
	assert.Equal(t, int64(1200), r.Total())

	// 最早的桶滑出窗口
	mock.Add(40 * time.Second)
	assert.Equal(t, int64(600), r.Total())

	// 超过整个窗口后清空
	mock.Add(2 * time.Minute)
	assert.Zero(t, r.Total())

	r.Add(5)
	r.Reset()
	assert.Zero(t, r.Total())
}
