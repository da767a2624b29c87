package websocket

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("websocket: transport closed")

	// ErrInvalidAddress 无效地址
	ErrInvalidAddress = errors.New("websocket: invalid address")

	// ErrShortFrame 发送数据不足一个完整帧
	ErrShortFrame = errors.New("websocket: short frame")
)
