package rsocket

import (
	"errors"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/server"
	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// 公共错误定义
//
// 对端 ERROR 帧以 *Error 返回，可用 errors.As 取出错误码与原因。
var (
	// ────────────────────────────────────────────────────────────────────────
	// 连接错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrClosed 连接已被本端关闭
	ErrClosed = socket.ErrClosed

	// ErrConnectionLost 对端关闭了传输连接
	ErrConnectionLost = socket.ErrConnectionLost

	// ErrKeepaliveTimeout 连续错过对端心跳
	ErrKeepaliveTimeout = socket.ErrKeepaliveTimeout

	// ErrProtocol 对端违反协议
	ErrProtocol = socket.ErrProtocol

	// ErrInvalidSetup SETUP 被拒绝或无效
	ErrInvalidSetup = socket.ErrInvalidSetup

	// ErrLeaseExhausted 没有可用租约
	ErrLeaseExhausted = socket.ErrLeaseExhausted

	// ErrHalfCloseTimeout 通道一侧完成后另一侧未在期限内完成
	ErrHalfCloseTimeout = socket.ErrHalfCloseTimeout

	// ────────────────────────────────────────────────────────────────────────
	// 调用约定错误（不会发送任何帧）
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotLazySource 传入的通道输入不是惰性数据源
	ErrNotLazySource = bridge.ErrNotLazySource

	// ErrMetadataPushData metadata-push 载荷携带了数据
	ErrMetadataPushData = types.ErrMetadataPushData

	// ErrMetadataPushEmpty metadata-push 载荷没有元数据
	ErrMetadataPushEmpty = types.ErrMetadataPushEmpty

	// ErrNilTransport 传输为空
	ErrNilTransport = errors.New("rsocket: nil transport")

	// ────────────────────────────────────────────────────────────────────────
	// 流错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrCancelled 流已被本端取消
	ErrCancelled = bridge.ErrCancelled

	// ErrNotImplemented 对端未实现该交互
	ErrNotImplemented = types.ErrNotImplemented

	// ────────────────────────────────────────────────────────────────────────
	// 服务端错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNoTransports 服务端没有注册任何传输
	ErrNoTransports = server.ErrNoTransports

	// ErrDuplicateLabel 传输标签重复
	ErrDuplicateLabel = server.ErrDuplicateLabel
)
