package server

import "errors"

var (
	// ErrNoTransports 没有注册任何传输
	ErrNoTransports = errors.New("server: no transports configured")

	// ErrDuplicateLabel 传输标签重复
	ErrDuplicateLabel = errors.New("server: duplicate transport label")

	// ErrAlreadyStarted Serve 已经调用过
	ErrAlreadyStarted = errors.New("server: already started")

	// ErrServerClosed 服务已关闭
	ErrServerClosed = errors.New("server: closed")
)
