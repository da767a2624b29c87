package rsocket

import (
	"context"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/pkg/interfaces"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              载荷
// ════════════════════════════════════════════════════════════════════════════

// Payload 数据加可选元数据
type Payload = types.Payload

// PayloadBuilder 载荷构建器
type PayloadBuilder = types.PayloadBuilder

// NewPayload 创建载荷，metadata 为 nil 表示不携带元数据
func NewPayload(data, metadata []byte) Payload {
	return types.NewPayload(data, metadata)
}

// NewPayloadString 创建只携带 UTF-8 数据的载荷
func NewPayloadString(data string) Payload {
	return types.NewPayloadString(data)
}

// Builder 返回载荷构建器
func Builder() *PayloadBuilder {
	return types.Builder()
}

// ════════════════════════════════════════════════════════════════════════════
//                              错误
// ════════════════════════════════════════════════════════════════════════════

// Error 对端 ERROR 帧携带的错误
type Error = types.Error

// ErrorCode 协议错误码
type ErrorCode = types.ErrorCode

// 常用错误码
const (
	ErrorCodeApplicationError = types.ErrorCodeApplicationError
	ErrorCodeRejected         = types.ErrorCodeRejected
	ErrorCodeCanceled         = types.ErrorCodeCanceled
	ErrorCodeInvalid          = types.ErrorCodeInvalid
	ErrorCodeRejectedSetup    = types.ErrorCodeRejectedSetup
)

// NewError 创建带错误码的错误，处理器返回它时对端收到对应的 ERROR 帧
func NewError(code ErrorCode, msg string) *Error {
	return types.NewError(code, msg)
}

// IsNotImplemented 判断错误是否表示对端未实现该交互
func IsNotImplemented(err error) bool {
	return types.IsNotImplemented(err)
}

// ════════════════════════════════════════════════════════════════════════════
//                              数据源与回调
// ════════════════════════════════════════════════════════════════════════════

// Source 惰性拉取的数据源，耗尽时 Next 返回 io.EOF
type Source = interfaces.Source

// Generator 生成器：每次 yield 都等待下游拉取，yield 返回 false 时应停止
type Generator = bridge.Generator

// ItemFunc 逐项回调，index 从 1 开始
type ItemFunc = bridge.ItemFunc

// CompleteFunc 完成回调，每个流恰好调用一次
type CompleteFunc = bridge.CompleteFunc

// FromSlice 由切片创建数据源
func FromSlice(items []Payload) Source {
	return bridge.FromSlice(items)
}

// FromChan 由 channel 创建数据源，channel 关闭即结束
func FromChan(ch <-chan Payload) Source {
	return bridge.FromChan(ch)
}

// FromGenerator 由生成器创建数据源
func FromGenerator(gen Generator) Source {
	return bridge.FromGenerator(gen)
}

// SourceFunc 由函数创建数据源
func SourceFunc(fn func(ctx context.Context) (Payload, error)) Source {
	return bridge.SourceFunc(fn)
}

// Map 逐项转换数据源
func Map(src Source, fn func(Payload) (Payload, error)) Source {
	return bridge.Map(src, fn)
}

// Single 只产出一项的数据源
func Single(p Payload) Source {
	return bridge.Single(p)
}

// CancelSource 取消数据源：请求流被取消时通知对端，生成器停止执行
func CancelSource(src Source) {
	bridge.CancelSource(src)
}

// ════════════════════════════════════════════════════════════════════════════
//                              服务端处理
// ════════════════════════════════════════════════════════════════════════════

// HandlerSet 按交互模式注册的处理函数，未设置的模式回复 "not implemented"
type HandlerSet = socket.Responder

// SetupInfo 客户端 SETUP 携带的信息
type SetupInfo = types.SetupInfo

// Conn 一条已建立的 RSocket 连接
type Conn = socket.Conn

// Acceptor 处理 SETUP 并为连接选择处理函数
//
// 返回错误时连接以 REJECTED_SETUP 拒绝。conn 可用于向客户端发起反向请求。
type Acceptor = socket.Acceptor

// Observer 指标观察者
type Observer = interfaces.Observer
