package tcp

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("tcp: transport closed")

	// ErrInvalidAddress 无效地址
	ErrInvalidAddress = errors.New("tcp: invalid address")
)
