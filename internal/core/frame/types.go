package frame

import "fmt"

// ============================================================================
//                              Type - 帧类型
// ============================================================================

// Type 帧类型（6 位）
type Type uint8

const (
	// TypeReserved 保留
	TypeReserved Type = 0x00
	// TypeSetup 连接建立
	TypeSetup Type = 0x01
	// TypeLease 租约
	TypeLease Type = 0x02
	// TypeKeepalive 心跳
	TypeKeepalive Type = 0x03
	// TypeRequestResponse 请求-响应
	TypeRequestResponse Type = 0x04
	// TypeRequestFNF 单向请求
	TypeRequestFNF Type = 0x05
	// TypeRequestStream 请求-流
	TypeRequestStream Type = 0x06
	// TypeRequestChannel 双向通道
	TypeRequestChannel Type = 0x07
	// TypeRequestN 流控授权
	TypeRequestN Type = 0x08
	// TypeCancel 取消
	TypeCancel Type = 0x09
	// TypePayload 载荷
	TypePayload Type = 0x0A
	// TypeError 错误
	TypeError Type = 0x0B
	// TypeMetadataPush 元数据推送
	TypeMetadataPush Type = 0x0C
	// TypeResume 恢复（不支持）
	TypeResume Type = 0x0D
	// TypeResumeOK 恢复确认（不支持）
	TypeResumeOK Type = 0x0E
	// TypeExt 扩展帧（不支持）
	TypeExt Type = 0x3F
)

// String 返回帧类型名称
func (t Type) String() string {
	switch t {
	case TypeSetup:
		return "SETUP"
	case TypeLease:
		return "LEASE"
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeRequestResponse:
		return "REQUEST_RESPONSE"
	case TypeRequestFNF:
		return "REQUEST_FNF"
	case TypeRequestStream:
		return "REQUEST_STREAM"
	case TypeRequestChannel:
		return "REQUEST_CHANNEL"
	case TypeRequestN:
		return "REQUEST_N"
	case TypeCancel:
		return "CANCEL"
	case TypePayload:
		return "PAYLOAD"
	case TypeError:
		return "ERROR"
	case TypeMetadataPush:
		return "METADATA_PUSH"
	case TypeResume:
		return "RESUME"
	case TypeResumeOK:
		return "RESUME_OK"
	case TypeExt:
		return "EXT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}

// IsRequest 是否为发起新流的 REQUEST_* 帧
func (t Type) IsRequest() bool {
	switch t {
	case TypeRequestResponse, TypeRequestFNF, TypeRequestStream, TypeRequestChannel:
		return true
	}
	return false
}

// IsConnectionLevel 是否只能出现在 stream 0 上
func (t Type) IsConnectionLevel() bool {
	switch t {
	case TypeSetup, TypeLease, TypeKeepalive, TypeMetadataPush, TypeResume, TypeResumeOK:
		return true
	}
	return false
}

// Known 是否为本实现能够解析的帧类型
func (t Type) Known() bool {
	return t.known()
}

func (t Type) known() bool {
	return t >= TypeSetup && t <= TypeMetadataPush
}

// fragmentable 是否可以分片
func (t Type) fragmentable() bool {
	return t.IsRequest() || t == TypePayload
}

// ============================================================================
//                              Flags - 标志位
// ============================================================================

// Flags 帧标志位（10 位）
type Flags uint16

const (
	// FlagIgnore 无法识别时可忽略
	FlagIgnore Flags = 0x200
	// FlagMetadata 携带元数据
	FlagMetadata Flags = 0x100
	// FlagFollows 后续还有分片
	FlagFollows Flags = 0x80
	// FlagComplete 流结束
	FlagComplete Flags = 0x40
	// FlagNext 携带数据项
	FlagNext Flags = 0x20

	// FlagRespond KEEPALIVE 要求对端回应
	FlagRespond Flags = 0x80
	// FlagResume SETUP 携带恢复令牌
	FlagResume Flags = 0x80
	// FlagLease SETUP 要求使用租约
	FlagLease Flags = 0x40

	flagMask Flags = 0x3FF
)

// Has 是否包含指定标志
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// ============================================================================
//                              协议常量
// ============================================================================

const (
	// MaxFrameLength 24 位长度前缀能表示的最大帧长
	MaxFrameLength = 0xFFFFFF

	// MaxStreamID 最大流 ID（31 位）
	MaxStreamID = 0x7FFFFFFF

	// MaxRequestN REQUEST_N 最大值，等价于无界
	MaxRequestN = 0x7FFFFFFF

	// MinMTU 分片允许的最小 MTU
	MinMTU = 64

	// MajorVersion 协议主版本
	MajorVersion uint16 = 1

	// MinorVersion 协议次版本
	MinorVersion uint16 = 0

	lengthFieldSize   = 3
	headerSize        = 6
	metadataFieldSize = 3
)
