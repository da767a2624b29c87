package p2p

import "errors"

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("p2p: transport closed")

	// ErrInvalidAddress 无效地址
	ErrInvalidAddress = errors.New("p2p: invalid address")

	// ErrInvalidSeed 身份种子长度不是 32 字节
	ErrInvalidSeed = errors.New("p2p: identity seed must be 32 bytes")

	// ErrInvalidNodeID 无效节点 ID
	ErrInvalidNodeID = errors.New("p2p: invalid node id")

	// ErrPeerMismatch 对端身份与期望不一致
	ErrPeerMismatch = errors.New("p2p: peer id mismatch")

	// ErrInvalidPayload 握手 payload 无法解析
	ErrInvalidPayload = errors.New("p2p: invalid handshake payload")

	// ErrInvalidSignature 对端签名校验失败
	ErrInvalidSignature = errors.New("p2p: invalid signature")
)
