package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// Params 指标模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result 指标模块输出
type Result struct {
	fx.Out

	Counter  *Counter
	Reporter Reporter
	Observer interfaces.Observer
}

// Module 指标的 Fx 模块
//
// 始终提供计数器；配置启用指标时额外启动 Prometheus 导出服务。
var Module = fx.Module("metrics",
	fx.Provide(NewFromParams),
	fx.Invoke(registerExporter),
)

// NewFromParams 创建计数器
func NewFromParams(Params) Result {
	c := NewCounter(nil)
	return Result{Counter: c, Reporter: c, Observer: c}
}

func registerExporter(lc fx.Lifecycle, p Params, c *Counter) error {
	cfg := config.DefaultMetricsConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Metrics
	}
	if !cfg.Enabled {
		return nil
	}
	e, err := NewExporter(cfg.Addr, NewCollector(cfg.Namespace, c))
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return e.Start()
		},
		OnStop: func(ctx context.Context) error {
			return e.Stop(ctx)
		},
	})
	return nil
}
