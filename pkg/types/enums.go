package types

import "fmt"

// ============================================================================
//                              InteractionKind - 交互类型
// ============================================================================

// InteractionKind 交互类型
type InteractionKind int

const (
	// KindUnknown 未知交互
	KindUnknown InteractionKind = iota
	// KindFireAndForget 单向发送，无响应
	KindFireAndForget
	// KindMetadataPush 仅推送元数据
	KindMetadataPush
	// KindRequestResponse 请求-响应
	KindRequestResponse
	// KindRequestStream 请求-流
	KindRequestStream
	// KindRequestChannel 双向通道
	KindRequestChannel
)

// String 返回交互类型的字符串表示
func (k InteractionKind) String() string {
	switch k {
	case KindFireAndForget:
		return "fire_and_forget"
	case KindMetadataPush:
		return "metadata_push"
	case KindRequestResponse:
		return "request_response"
	case KindRequestStream:
		return "request_stream"
	case KindRequestChannel:
		return "request_channel"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ErrorCode - 协议错误码
// ============================================================================

// ErrorCode ERROR 帧携带的错误码
type ErrorCode uint32

const (
	// ErrorCodeInvalidSetup SETUP 帧无效
	ErrorCodeInvalidSetup ErrorCode = 0x00000001
	// ErrorCodeUnsupportedSetup SETUP 参数不被支持
	ErrorCodeUnsupportedSetup ErrorCode = 0x00000002
	// ErrorCodeRejectedSetup 服务端拒绝 SETUP
	ErrorCodeRejectedSetup ErrorCode = 0x00000003
	// ErrorCodeRejectedResume 服务端拒绝 RESUME
	ErrorCodeRejectedResume ErrorCode = 0x00000004
	// ErrorCodeConnectionError 连接级错误
	ErrorCodeConnectionError ErrorCode = 0x00000101
	// ErrorCodeConnectionClose 连接正常关闭
	ErrorCodeConnectionClose ErrorCode = 0x00000102
	// ErrorCodeApplicationError 应用层错误
	ErrorCodeApplicationError ErrorCode = 0x00000201
	// ErrorCodeRejected 请求被拒绝（未处理）
	ErrorCodeRejected ErrorCode = 0x00000202
	// ErrorCodeCanceled 请求被取消
	ErrorCodeCanceled ErrorCode = 0x00000203
	// ErrorCodeInvalid 请求无效
	ErrorCodeInvalid ErrorCode = 0x00000204
)

// String 返回错误码的字符串表示
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeInvalidSetup:
		return "INVALID_SETUP"
	case ErrorCodeUnsupportedSetup:
		return "UNSUPPORTED_SETUP"
	case ErrorCodeRejectedSetup:
		return "REJECTED_SETUP"
	case ErrorCodeRejectedResume:
		return "REJECTED_RESUME"
	case ErrorCodeConnectionError:
		return "CONNECTION_ERROR"
	case ErrorCodeConnectionClose:
		return "CONNECTION_CLOSE"
	case ErrorCodeApplicationError:
		return "APPLICATION_ERROR"
	case ErrorCodeRejected:
		return "REJECTED"
	case ErrorCodeCanceled:
		return "CANCELED"
	case ErrorCodeInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("ERROR_CODE(0x%08X)", uint32(c))
	}
}

// IsConnectionLevel 是否为连接级错误码（只能出现在 stream 0 上）
func (c ErrorCode) IsConnectionLevel() bool {
	return c < 0x00000201
}
