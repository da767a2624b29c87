package socket

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-rsocket/internal/core/frame"
	"github.com/dep2p/go-rsocket/internal/util/logger"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// Role 连接角色
type Role int

const (
	// RoleClient 客户端：发送 SETUP，使用奇数流 ID
	RoleClient Role = iota
	// RoleServer 服务端：接收 SETUP，使用偶数流 ID
	RoleServer
)

// String 返回角色名称
func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// 默认值
const (
	DefaultKeepaliveInterval = 20 * time.Second
	DefaultMaxLifetime       = 90 * time.Second
	DefaultMissedKeepalives  = 2
	DefaultInitialRequestN   = 256
	DefaultCloseTimeout      = 5 * time.Second
	DefaultCancelGrace       = 10 * time.Second
	DefaultMaxReassembly     = 16 << 20
	DefaultMIME              = "application/binary"
)

// Config 连接配置
type Config struct {
	// ID 连接标识，用于日志
	ID string

	// Transport 传输协议名称，用于日志与指标标签
	Transport string

	// KeepaliveInterval 客户端发送心跳的间隔，0 表示禁用
	KeepaliveInterval time.Duration

	// MaxLifetime 写入 SETUP 的最大存活时间
	MaxLifetime time.Duration

	// MissedKeepalives 连续错过多少次心跳视为断开
	MissedKeepalives int

	// InitialRequestN 请求流/通道的默认初始请求数
	InitialRequestN uint32

	// MTU 分片阈值，0 表示不分片
	MTU int

	// MaxReassembly 单个重组帧的最大载荷
	MaxReassembly int

	// HalfCloseTimeout 通道本端发送完成后等待对端完成的期限，0 表示无限等待
	HalfCloseTimeout time.Duration

	// CloseTimeout 关闭时等待写队列排空的期限
	CloseTimeout time.Duration

	// CancelGrace 取消后继续丢弃在途帧的期限
	CancelGrace time.Duration

	// MetadataMIME / DataMIME 写入 SETUP 的 MIME 类型
	MetadataMIME string
	DataMIME     string

	// SetupPayload SETUP 帧携带的载荷
	SetupPayload types.Payload

	// Lease 客户端要求使用租约
	Lease bool

	// LeaseTTL / LeaseRequests 服务端每轮签发的租约，LeaseRequests 为 0 表示不支持租约
	LeaseTTL      time.Duration
	LeaseRequests uint32

	// Responder 本端作为响应方的处理器（客户端可选）
	Responder any

	// Clock 时间源（测试可替换为 clock.NewMock）
	Clock clock.Clock

	// Observer 指标观察者
	Observer interfaces.Observer

	// Logger 日志
	Logger *slog.Logger
}

// withDefaults 填充未设置的字段
func (c Config) withDefaults() Config {
	if c.KeepaliveInterval < 0 {
		c.KeepaliveInterval = 0
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = DefaultMaxLifetime
	}
	if c.MissedKeepalives <= 0 {
		c.MissedKeepalives = DefaultMissedKeepalives
	}
	if c.InitialRequestN == 0 {
		c.InitialRequestN = DefaultInitialRequestN
	}
	if c.MaxReassembly == 0 {
		c.MaxReassembly = DefaultMaxReassembly
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = DefaultCancelGrace
	}
	if c.MetadataMIME == "" {
		c.MetadataMIME = DefaultMIME
	}
	if c.DataMIME == "" {
		c.DataMIME = DefaultMIME
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.Logger == nil {
		c.Logger = logger.Logger("socket")
	}
	return c
}

// Validate 校验配置
func (c Config) Validate() error {
	if err := frame.ValidateMTU(c.MTU); err != nil {
		return err
	}
	if c.InitialRequestN > frame.MaxRequestN {
		return fmt.Errorf("socket: initial request n %d exceeds %d", c.InitialRequestN, frame.MaxRequestN)
	}
	if c.LeaseRequests > 0 && c.LeaseTTL <= 0 {
		return fmt.Errorf("socket: lease ttl must be positive")
	}
	return nil
}

// DefaultConfig 返回默认连接配置
func DefaultConfig() Config {
	return Config{KeepaliveInterval: DefaultKeepaliveInterval}.withDefaults()
}

type nopObserver struct{}

func (nopObserver) FrameSent(uint8, int)     {}
func (nopObserver) FrameReceived(uint8, int) {}
func (nopObserver) StreamOpened(string)      {}
func (nopObserver) StreamClosed(string)      {}
func (nopObserver) ConnOpened(string)        {}
func (nopObserver) ConnClosed(string)        {}

func millis(d time.Duration) uint32 {
	ms := d / time.Millisecond
	if ms > 0x7FFFFFFF {
		return 0x7FFFFFFF
	}
	return uint32(ms)
}
