package rsocket

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rsocket/config"
	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/internal/core/transport"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// Option 客户端与服务端共用的配置选项
type Option func(*options) error

// options 内部选项结构
//
// 选项按传入顺序应用，WithConfig 与 WithConfigFile 会替换此前设置的全部配置。
type options struct {
	cfg *config.Config

	setupPayload *types.Payload
	responder    any
	observer     Observer
	logger       *slog.Logger
	clock        clock.Clock
}

func newOptions() *options {
	return &options{cfg: config.NewConfig()}
}

// applyOptions 依次应用选项并校验结果
func applyOptions(opts []Option) (*options, error) {
	o := newOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return o, nil
}

// connConfig 转换为连接配置
func (o *options) connConfig() socket.Config {
	cc := socket.ConfigFromUnified(o.cfg)
	if o.setupPayload != nil {
		cc.SetupPayload = *o.setupPayload
	}
	cc.Responder = o.responder
	cc.Observer = o.observer
	cc.Logger = o.logger
	cc.Clock = o.clock
	return cc
}

func (o *options) transportConfig() (transport.Config, error) {
	return transport.ConfigFromUnified(o.cfg)
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 以 cfg 的副本为基础配置
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return config.ErrNilConfig
		}
		o.cfg = cfg.Clone()
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载基础配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.cfg = cfg
		return nil
	}
}

// WithPreset 在当前配置上应用预设（default、server、test）
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.cfg, name)
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              连接选项
// ════════════════════════════════════════════════════════════════════════════

// WithKeepalive 设置心跳间隔与最大存活时间
//
// interval 为 0 时禁用心跳，maxLifetime 为 0 时保持原值。
func WithKeepalive(interval, maxLifetime time.Duration) Option {
	return func(o *options) error {
		if interval < 0 || maxLifetime < 0 {
			return errors.New("keepalive durations must not be negative")
		}
		o.cfg.Connection.KeepaliveInterval = config.Duration(interval)
		if maxLifetime > 0 {
			o.cfg.Connection.MaxLifetime = config.Duration(maxLifetime)
		}
		return nil
	}
}

// WithMissedKeepalives 设置连续错过多少次心跳判定连接失效
func WithMissedKeepalives(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return errors.New("missed keepalives must be positive")
		}
		o.cfg.Connection.MissedKeepalives = n
		return nil
	}
}

// WithInitialRequestN 设置请求流与通道的初始请求数
func WithInitialRequestN(n uint32) Option {
	return func(o *options) error {
		if n == 0 || n > frame.MaxRequestN {
			return fmt.Errorf("initial request n out of range: %d", n)
		}
		o.cfg.Connection.InitialRequestN = n
		return nil
	}
}

// WithSetupPayload 设置 SETUP 帧携带的载荷
func WithSetupPayload(p Payload) Option {
	return func(o *options) error {
		o.setupPayload = &p
		return nil
	}
}

// WithMIME 设置 SETUP 声明的元数据与数据 MIME 类型
func WithMIME(metadataMIME, dataMIME string) Option {
	return func(o *options) error {
		o.cfg.Connection.MetadataMIME = metadataMIME
		o.cfg.Connection.DataMIME = dataMIME
		return nil
	}
}

// WithFragment 设置分片阈值，0 表示不分片
func WithFragment(mtu int) Option {
	return func(o *options) error {
		if mtu != 0 && mtu < frame.MinMTU {
			return fmt.Errorf("%w: %d", frame.ErrInvalidMTU, mtu)
		}
		o.cfg.Connection.FragmentMTU = mtu
		return nil
	}
}

// WithLease 客户端要求服务端签发租约
func WithLease() Option {
	return func(o *options) error {
		o.cfg.Connection.Lease = true
		return nil
	}
}

// WithLeaseIssuer 服务端每 ttl 签发一次可发起 n 个请求的租约
func WithLeaseIssuer(ttl time.Duration, n uint32) Option {
	return func(o *options) error {
		if ttl <= 0 || n == 0 {
			return errors.New("lease ttl and requests must be positive")
		}
		o.cfg.Connection.LeaseTTL = config.Duration(ttl)
		o.cfg.Connection.LeaseRequests = n
		return nil
	}
}

// WithHalfCloseTimeout 设置通道一侧完成后等待另一侧的期限，0 表示无限等待
func WithHalfCloseTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("half-close timeout must not be negative")
		}
		o.cfg.Connection.HalfCloseTimeout = config.Duration(d)
		return nil
	}
}

// WithDialTimeout 设置客户端拨号超时
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("dial timeout must be positive")
		}
		o.cfg.Transport.DialTimeout = config.Duration(d)
		return nil
	}
}

// WithResponder 设置客户端作为响应方的处理函数，用于服务端发起的反向请求
//
// h 可以是 *HandlerSet 或实现了任意处理器接口的值。
func WithResponder(h any) Option {
	return func(o *options) error {
		o.responder = h
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              可观测性
// ════════════════════════════════════════════════════════════════════════════

// WithObserver 设置指标观察者
func WithObserver(obs Observer) Option {
	return func(o *options) error {
		o.observer = obs
		return nil
	}
}

// WithLogger 设置连接日志
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		o.logger = l
		return nil
	}
}

// WithClock 替换时间源（测试用）
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}
