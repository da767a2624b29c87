// Package main 提供 rsocket 服务端命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dep2p/go-rsocket"
	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/metrics"
	"github.com/dep2p/go-rsocket/internal/core/server"
	"github.com/dep2p/go-rsocket/internal/util/addrutil"
	"github.com/dep2p/go-rsocket/internal/util/logger"
)

var log = logger.Logger("cmd/server")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖，优先级最高
//   环境变量（RSOCKET_*）：覆盖配置文件
//   JSON 配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径")
	preset     = flag.String("preset", rsocket.PresetServer, "预设配置 (default/server/test)")

	// ─────────────────────────────────────────────────────────────────────
	// 监听（可组合，至少一个）
	// ─────────────────────────────────────────────────────────────────────
	tcpAddr  = flag.String("tcp", "", "TCP 监听地址，如 127.0.0.1:7878")
	wsAddr   = flag.String("ws", "", "WebSocket 监听地址，如 127.0.0.1:7879")
	quicAddr = flag.String("quic", "", "QUIC 监听地址，如 127.0.0.1:7880")
	p2pAddr  = flag.String("p2p", "", "p2p 监听地址，如 127.0.0.1:7881")
	p2pSeed  = flag.String("p2p-seed", "", "p2p 身份种子（64 位十六进制）")

	// ─────────────────────────────────────────────────────────────────────
	// 行为
	// ─────────────────────────────────────────────────────────────────────
	mode        = flag.String("mode", "demo", "处理模式 (echo/demo)")
	metricsAddr = flag.String("metrics", "", "Prometheus 导出地址，空表示按配置")
	logLevel    = flag.String("log", "", "日志级别，如 info 或 socket=debug,info")
	statsEvery  = flag.Duration("stats", 30*time.Second, "统计输出间隔，0 关闭")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(rsocket.VersionInfo())
		return nil
	}
	if *logLevel != "" {
		logger.SetLevels(*logLevel)
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	zl, err := newZapLogger(*logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	var (
		srv     *server.Server
		counter *metrics.Counter
	)
	extra := []fx.Option{fx.Populate(&srv, &counter)}
	if *mode == "demo" {
		extra = append(extra, rsocket.ProvideHandlers(demoHandlers()))
	} else if *mode != "echo" {
		return fmt.Errorf("未知模式: %s", *mode)
	}

	app, err := rsocket.NewApp(cfg, zl, extra...)
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("启动 rsocket 服务端", "version", rsocket.Version, "commit", rsocket.GitCommit, "mode", *mode)
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	printServerInfo(srv, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *statsEvery > 0 {
		go reportStats(ctx, srv, counter, *statsEvery)
	}
	<-ctx.Done()

	fmt.Println("\n正在关闭服务端...")
	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration()+5*time.Second)
	defer cancelStop()
	return app.Stop(stopCtx)
}

// buildConfig 合并配置文件、预设、环境变量与命令行参数
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := rsocket.LoadConfig(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}
	if isFlagSet("preset") || *configFile == "" {
		if err := config.ApplyPreset(cfg, *preset); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	listeners := []config.ListenerConfig{}
	add := func(transport, addr string) {
		if addr != "" {
			listeners = append(listeners, config.ListenerConfig{Transport: transport, Addr: addr})
		}
	}
	add("tcp", *tcpAddr)
	add("websocket", *wsAddr)
	add("quic", *quicAddr)
	add("p2p", *p2pAddr)
	if len(listeners) > 0 {
		cfg.Server.Listeners = listeners
	}
	if len(cfg.Server.Listeners) == 0 {
		cfg.Server.Listeners = []config.ListenerConfig{{Transport: "tcp", Addr: "127.0.0.1:7878"}}
	}
	if *p2pSeed != "" {
		cfg.Transport.P2P.IdentitySeed = *p2pSeed
	}

	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}
	return cfg, cfg.Validate()
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// newZapLogger 创建 Fx 事件日志，级别取 -log 的默认部分
func newZapLogger(spec string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if spec == "debug" {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// printServerInfo 打印监听信息
func printServerInfo(srv *server.Server, cfg *config.Config) {
	fmt.Printf("📦 %s\n", rsocket.VersionInfo())
	fmt.Println("监听地址:")
	addrs := srv.Addrs()
	labels := make([]string, 0, len(addrs))
	for l := range addrs {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		a := addrs[l].String()
		fmt.Printf("  • %-10s %s (%s)\n", l, a, addrutil.AddrType(a))
		if addrutil.IsUnspecifiedAddr(a) {
			for _, d := range addrutil.DialableAddrs(a) {
				fmt.Printf("      ↳ %s\n", d)
			}
		}
	}
	if seed, err := cfg.Transport.P2P.Seed(); err == nil && seed != nil {
		if id, err := rsocket.P2PNodeID(seed); err == nil {
			fmt.Printf("p2p 节点 ID: %s\n", id)
		}
	}
	if cfg.Metrics.Enabled {
		fmt.Printf("指标: http://%s/metrics\n", cfg.Metrics.Addr)
	}
	fmt.Println("服务端已启动，按 Ctrl+C 退出")
}

// reportStats 定期输出统计
func reportStats(ctx context.Context, srv *server.Server, c *metrics.Counter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Totals()
			log.Info("统计",
				"conns", srv.ConnCount(),
				"streams", s.ActiveStreams,
				"framesIn", s.FramesIn,
				"framesOut", s.FramesOut,
				"rateIn", fmt.Sprintf("%.0fB/s", s.RateIn),
				"rateOut", fmt.Sprintf("%.0fB/s", s.RateOut))
		}
	}
}
