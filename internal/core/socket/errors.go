package socket

import "errors"

var (
	// ErrClosed 连接已关闭
	ErrClosed = errors.New("socket: connection closed")

	// ErrConnectionLost 对端关闭了传输连接
	ErrConnectionLost = errors.New("socket: connection lost")

	// ErrTransport 传输层读写失败
	ErrTransport = errors.New("socket: transport failure")

	// ErrProtocol 协议错误（格式错误的帧、非法流 ID）
	ErrProtocol = errors.New("socket: protocol error")

	// ErrKeepaliveTimeout 连续错过对端心跳
	ErrKeepaliveTimeout = errors.New("socket: keepalive timeout")

	// ErrStreamIDExhausted 流 ID 耗尽
	ErrStreamIDExhausted = errors.New("socket: stream id exhausted")

	// ErrInvalidStreamID 对端使用了非法的流 ID
	ErrInvalidStreamID = errors.New("socket: invalid stream id")

	// ErrLeaseExhausted 没有可用租约（调用方约定错误，不会发送任何帧）
	ErrLeaseExhausted = errors.New("socket: lease exhausted")

	// ErrHalfCloseTimeout 通道一侧完成后另一侧未在期限内完成
	ErrHalfCloseTimeout = errors.New("socket: half-close timeout")

	// ErrInvalidSetup 首帧不是合法的 SETUP
	ErrInvalidSetup = errors.New("socket: invalid setup")

	// ErrNilSource 通道输入为空
	ErrNilSource = errors.New("socket: nil channel input")
)
