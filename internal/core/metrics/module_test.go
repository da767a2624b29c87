package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// ============================================================================
// Prometheus 测试
// ============================================================================

func TestCollector(t *testing.T) {
	c := NewCounter(nil)
	c.FrameSent(uint8(frame.TypeSetup), 40)
	c.FrameReceived(uint8(frame.TypePayload), 12)
	c.ConnOpened("tcp")
	c.StreamOpened("request_response")

	col := NewCollector("rsocket", c)
	assert.Equal(t, 2, testutil.CollectAndCount(col, "rsocket_bytes_total"))
	assert.Equal(t, 4, testutil.CollectAndCount(col, "rsocket_frames_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(col, "rsocket_connections_active"))
	assert.Equal(t, 1, testutil.CollectAndCount(col, "rsocket_streams_opened_total"))

	expected := `
# HELP rsocket_connections_opened_total Connections opened by transport.
# TYPE rsocket_connections_opened_total counter
rsocket_connections_opened_total{transport="tcp"} 1
`
	require.NoError(t, testutil.CollectAndCompare(col, strings.NewReader(expected), "rsocket_connections_opened_total"))
}

func TestExporter(t *testing.T) {
	c := NewCounter(nil)
	c.FrameSent(uint8(frame.TypeKeepalive), 9)

	e, err := NewExporter("127.0.0.1:0", NewCollector("rsocket", c))
	require.NoError(t, err)
	require.NoError(t, e.Start())
	defer e.Stop(context.Background())
	require.NotNil(t, e.Addr())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + e.Addr().String() + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `rsocket_bytes_total{direction="out"} 9`)

	require.NoError(t, e.Stop(context.Background()))
	assert.Nil(t, e.Addr())
}

// ============================================================================
// Fx 模块测试
// ============================================================================

func TestModule_Provides(t *testing.T) {
	var (
		reporter Reporter
		observer interfaces.Observer
		counter  *Counter
	)
	app := fxtest.New(t,
		Module,
		fx.Populate(&reporter, &observer, &counter),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, reporter)
	observer.FrameSent(uint8(frame.TypePayload), 100)
	assert.Equal(t, int64(100), reporter.Totals().TotalOut)
	assert.Same(t, counter, reporter.(*Counter))
}

func TestModule_Exporter(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "127.0.0.1:0"

	var reporter Reporter
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module,
		fx.Populate(&reporter),
	)
	app.RequireStart()
	app.RequireStop()
	assert.NotNil(t, reporter)
}
