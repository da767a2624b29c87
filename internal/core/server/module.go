package server

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/internal/core/transport"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
)

// Params 服务端模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Transports *transport.Manager
	Observer   interfaces.Observer `optional:"true"`
	Acceptor   socket.Acceptor     `optional:"true"`
}

// Module 服务端的 Fx 模块
//
// 按配置中的监听列表注册传输；未提供 Acceptor 时使用回显。
// 启动时在后台运行 Serve 并等待全部监听就绪，停止时关闭服务。
var Module = fx.Module("server",
	fx.Provide(NewFromParams),
	fx.Invoke(registerLifecycle),
)

// NewFromParams 从统一配置创建服务端
func NewFromParams(p Params) (*Server, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if p.Observer != nil {
		cfg.Conn.Observer = p.Observer
	}
	s := New(cfg)

	acceptor := p.Acceptor
	if acceptor == nil {
		acceptor = EchoAcceptor()
	}
	s.SetAcceptor(acceptor)

	if p.UnifiedCfg == nil {
		return s, nil
	}
	seen := make(map[string]int)
	for _, l := range p.UnifiedCfg.Server.Listeners {
		st, err := p.Transports.Server(l.Transport, l.Addr)
		if err != nil {
			return nil, err
		}
		label := l.Transport
		if n := seen[l.Transport]; n > 0 {
			label = fmt.Sprintf("%s-%d", l.Transport, n)
		}
		seen[l.Transport]++
		if err := s.Add(label, st); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func registerLifecycle(lc fx.Lifecycle, s *Server) {
	errCh := make(chan error, 1)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				errCh <- s.Serve(context.Background())
			}()
			select {
			case <-s.Ready():
				return nil
			case err := <-errCh:
				return err
			case <-ctx.Done():
				_ = s.Close()
				return ctx.Err()
			}
		},
		OnStop: func(_ context.Context) error {
			return s.Close()
		},
	})
}
