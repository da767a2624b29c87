package transport

import "errors"

var (
	// ErrUnknownTransport 未注册的传输标签
	ErrUnknownTransport = errors.New("transport: unknown transport")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("transport: manager closed")
)
