package rsocket

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/metrics"
	"github.com/dep2p/go-rsocket/internal/core/server"
	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/internal/core/transport"
)

// ════════════════════════════════════════════════════════════════════════════
//                              Fx 组装
// ════════════════════════════════════════════════════════════════════════════
//
// 加载顺序（按依赖）：
//  1. 配置注入
//  2. Transport：按标签缓存传输实例，停止时关闭
//  3. Metrics：帧与流计数，配置启用时导出 Prometheus
//  4. Server：按配置中的监听列表注册传输，启动时开始 Serve

// Module 返回完整服务端的 Fx 模块组合
func Module(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		transport.Module(),
		metrics.Module,
		server.Module,
	)
}

// ProvideAcceptor 为服务端模块提供 Acceptor，未提供时使用回显
func ProvideAcceptor(a Acceptor) fx.Option {
	return fx.Provide(func() socket.Acceptor { return a })
}

// ProvideHandlers 以处理函数集作为服务端模块的 Acceptor
func ProvideHandlers(h any) fx.Option {
	return ProvideAcceptor(server.HandlerAcceptor(h))
}

// NewApp 创建服务端 Fx 应用
//
// zl 记录 Fx 事件，为 nil 时不输出；extra 追加用户模块（如 fx.Invoke）。
func NewApp(cfg *config.Config, zl *zap.Logger, extra ...fx.Option) (*fx.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if zl == nil {
		zl = zap.NewNop()
	}
	modules := []fx.Option{Module(cfg)}
	modules = append(modules, extra...)
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zl}
		}),
	)
	return fx.New(modules...), nil
}
