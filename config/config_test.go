package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 默认配置有效
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, 20*time.Second, cfg.Connection.KeepaliveInterval.Duration())
	assert.Equal(t, uint32(256), cfg.Connection.InitialRequestN)
	assert.Equal(t, "/rsocket", cfg.Transport.WebSocket.Path)

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

func TestDuration_JSON(t *testing.T) {
	var v struct {
		D Duration `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"1m30s"}`), &v))
	assert.Equal(t, 90*time.Second, v.D.Duration())

	require.NoError(t, json.Unmarshal([]byte(`{"d":1000}`), &v))
	assert.Equal(t, time.Microsecond, v.D.Duration())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"soon"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"d":true}`), &v))

	b, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(b))
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ConnectionConfig)
	}{
		{"NegativeKeepalive", func(c *ConnectionConfig) { c.KeepaliveInterval = -1 }},
		{"ZeroLifetime", func(c *ConnectionConfig) { c.MaxLifetime = 0 }},
		{"ZeroMissed", func(c *ConnectionConfig) { c.MissedKeepalives = 0 }},
		{"ZeroRequestN", func(c *ConnectionConfig) { c.InitialRequestN = 0 }},
		{"RequestNTooLarge", func(c *ConnectionConfig) { c.InitialRequestN = 0x80000000 }},
		{"SmallMTU", func(c *ConnectionConfig) { c.FragmentMTU = 10 }},
		{"EmptyMIME", func(c *ConnectionConfig) { c.DataMIME = "" }},
		{"LongMIME", func(c *ConnectionConfig) { c.MetadataMIME = strings.Repeat("a", 256) }},
		{"LeaseWithoutTTL", func(c *ConnectionConfig) { c.LeaseRequests = 1; c.LeaseTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConnectionConfig()
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := DefaultConnectionConfig()
	c.FragmentMTU = 64
	c.KeepaliveInterval = 0
	assert.NoError(t, c.Validate())
}

func TestTransportConfig_Validate(t *testing.T) {
	c := DefaultTransportConfig()
	require.NoError(t, c.Validate())

	c.WebSocket.Path = "rsocket"
	assert.Error(t, c.Validate())

	c = DefaultTransportConfig()
	c.P2P.IdentitySeed = "zz"
	assert.Error(t, c.Validate())

	c.P2P.IdentitySeed = strings.Repeat("ab", 16)
	assert.Error(t, c.Validate(), "16 字节种子无效")

	c.P2P.IdentitySeed = strings.Repeat("ab", 32)
	require.NoError(t, c.Validate())
	seed, err := c.P2P.Seed()
	require.NoError(t, err)
	assert.Len(t, seed, 32)

	seed, err = DefaultTransportConfig().P2P.Seed()
	require.NoError(t, err)
	assert.Nil(t, seed)
}

func TestServerConfig_Validate(t *testing.T) {
	c := DefaultServerConfig()
	c.Listeners = []ListenerConfig{{Transport: "tcp", Addr: "127.0.0.1:7878"}}
	require.NoError(t, c.Validate())

	c.Listeners = append(c.Listeners, ListenerConfig{Transport: "udp", Addr: "x"})
	assert.Error(t, c.Validate())

	c = DefaultServerConfig()
	c.Listeners = []ListenerConfig{{Transport: "quic"}}
	assert.Error(t, c.Validate())

	c = DefaultServerConfig()
	c.AcceptRate = 10
	assert.Error(t, c.Validate())
	c.AcceptBurst = 5
	assert.NoError(t, c.Validate())
}

func TestMetricsConfig_Validate(t *testing.T) {
	c := DefaultMetricsConfig()
	assert.NoError(t, c.Validate())
	c.Enabled = true
	c.Addr = ""
	assert.Error(t, c.Validate())
}

func TestApplyPreset(t *testing.T) {
	for _, name := range []string{"", "default", "server", "test"} {
		t.Run(name, func(t *testing.T) {
			cfg := NewConfig()
			require.NoError(t, ApplyPreset(cfg, name))
			assert.NoError(t, cfg.Validate())
		})
	}

	cfg := NewConfig()
	require.NoError(t, ApplyPreset(cfg, "server"))
	assert.True(t, cfg.Metrics.Enabled)
	assert.NotZero(t, cfg.Connection.LeaseRequests)

	cfg = NewConfig()
	require.NoError(t, ApplyPreset(cfg, "test"))
	assert.Zero(t, cfg.Connection.KeepaliveInterval)

	assert.Error(t, ApplyPreset(NewConfig(), "mobile"))
	assert.ErrorIs(t, ApplyPreset(nil, "server"), ErrNilConfig)
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"connection": {"keepalive_interval": "5s", "initial_request_n": 64},
		"server": {"listeners": [{"transport": "tcp", "addr": "127.0.0.1:7878"}]}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Connection.KeepaliveInterval.Duration())
	assert.Equal(t, uint32(64), cfg.Connection.InitialRequestN)
	// 未出现的字段保持默认
	assert.Equal(t, 90*time.Second, cfg.Connection.MaxLifetime.Duration())
	require.Len(t, cfg.Server.Listeners, 1)

	_, err = FromJSON([]byte(`{`))
	assert.Error(t, err)

	b, err := cfg.ToJSON()
	require.NoError(t, err)
	again, err := FromJSON(b)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"metrics": {"namespace": "edge"}}`), 0o600))
	cfg, err := LoadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "edge", cfg.Metrics.Namespace)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"connection": {"max_lifetime": "0s"}}`), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.Listeners = []ListenerConfig{{Transport: "tcp", Addr: "a:1"}}
	cp := cfg.Clone()
	cp.Server.Listeners[0].Addr = "b:2"
	assert.Equal(t, "a:1", cfg.Server.Listeners[0].Addr)
	assert.Nil(t, (*Config)(nil).Clone())
}
