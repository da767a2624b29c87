package types

import "time"

// SetupInfo 连接建立时客户端 SETUP 帧携带的信息
type SetupInfo struct {
	MajorVersion      uint16
	MinorVersion      uint16
	KeepaliveInterval time.Duration
	MaxLifetime       time.Duration
	MetadataMIME      string
	DataMIME          string
	Lease             bool
	Payload           Payload
}
