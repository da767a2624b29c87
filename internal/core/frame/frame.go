package frame

import (
	"fmt"

	"github.com/dep2p/go-rsocket/pkg/types"
)

// Frame 协议帧
//
// 所有帧类型共用一个扁平结构，只有与 Type 对应的字段有意义。
// Metadata 为 nil 表示不携带元数据；非 nil（包括空切片）时编码会设置
// METADATA 标志位。Data 为空时解码结果为 nil。
type Frame struct {
	StreamID uint32
	Type     Type
	Flags    Flags

	// SETUP
	MajorVersion      uint16
	MinorVersion      uint16
	KeepaliveInterval uint32 // 毫秒
	MaxLifetime       uint32 // 毫秒
	ResumeToken       []byte
	MetadataMIME      string
	DataMIME          string

	// LEASE
	TTL              uint32 // 毫秒
	NumberOfRequests uint32

	// KEEPALIVE
	LastReceivedPosition uint64

	// REQUEST_STREAM / REQUEST_CHANNEL / REQUEST_N
	RequestN uint32

	// ERROR（原因字符串保存在 Data 中）
	ErrorCode types.ErrorCode

	Metadata []byte
	Data     []byte
}

// Payload 返回帧携带的载荷
func (f *Frame) Payload() types.Payload {
	return types.NewPayload(f.Data, f.Metadata)
}

// Err 将 ERROR 帧转换为协议错误
func (f *Frame) Err() *types.Error {
	return types.NewError(f.ErrorCode, string(f.Data))
}

// String 返回调试用的字符串表示
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{stream=%d type=%s flags=0x%03X meta=%d data=%d}",
		f.StreamID, f.Type, uint16(f.Flags), len(f.Metadata), len(f.Data))
}

// ============================================================================
//                              构造函数
// ============================================================================

// SetupParams SETUP 帧参数
type SetupParams struct {
	KeepaliveInterval uint32
	MaxLifetime       uint32
	MetadataMIME      string
	DataMIME          string
	Lease             bool
	ResumeToken       []byte
}

// NewSetup 创建 SETUP 帧
func NewSetup(params SetupParams, p types.Payload) *Frame {
	f := &Frame{
		Type:              TypeSetup,
		MajorVersion:      MajorVersion,
		MinorVersion:      MinorVersion,
		KeepaliveInterval: params.KeepaliveInterval,
		MaxLifetime:       params.MaxLifetime,
		MetadataMIME:      params.MetadataMIME,
		DataMIME:          params.DataMIME,
	}
	if params.Lease {
		f.Flags |= FlagLease
	}
	if params.ResumeToken != nil {
		f.Flags |= FlagResume
		f.ResumeToken = params.ResumeToken
	}
	withPayload(f, p)
	return f
}

// NewLease 创建 LEASE 帧
func NewLease(ttl, n uint32, metadata []byte) *Frame {
	f := &Frame{Type: TypeLease, TTL: ttl, NumberOfRequests: n, Metadata: metadata}
	if metadata != nil {
		f.Flags |= FlagMetadata
	}
	return f
}

// NewKeepalive 创建 KEEPALIVE 帧
func NewKeepalive(position uint64, data []byte, respond bool) *Frame {
	f := &Frame{Type: TypeKeepalive, LastReceivedPosition: position, Data: nonEmpty(data)}
	if respond {
		f.Flags |= FlagRespond
	}
	return f
}

// NewRequestResponse 创建 REQUEST_RESPONSE 帧
func NewRequestResponse(id uint32, p types.Payload) *Frame {
	return withPayload(&Frame{StreamID: id, Type: TypeRequestResponse}, p)
}

// NewRequestFNF 创建 REQUEST_FNF 帧
func NewRequestFNF(id uint32, p types.Payload) *Frame {
	return withPayload(&Frame{StreamID: id, Type: TypeRequestFNF}, p)
}

// NewRequestStream 创建 REQUEST_STREAM 帧
func NewRequestStream(id, n uint32, p types.Payload) *Frame {
	return withPayload(&Frame{StreamID: id, Type: TypeRequestStream, RequestN: n}, p)
}

// NewRequestChannel 创建 REQUEST_CHANNEL 帧
//
// complete 表示请求方的输入在首个载荷后即结束。
func NewRequestChannel(id, n uint32, p types.Payload, complete bool) *Frame {
	f := withPayload(&Frame{StreamID: id, Type: TypeRequestChannel, RequestN: n}, p)
	if complete {
		f.Flags |= FlagComplete
	}
	return f
}

// NewRequestN 创建 REQUEST_N 帧
func NewRequestN(id, n uint32) *Frame {
	return &Frame{StreamID: id, Type: TypeRequestN, RequestN: n}
}

// NewCancel 创建 CANCEL 帧
func NewCancel(id uint32) *Frame {
	return &Frame{StreamID: id, Type: TypeCancel}
}

// NewPayloadFrame 创建 PAYLOAD 帧
//
// next 表示携带数据项，complete 表示流结束；两者至少一个为 true。
func NewPayloadFrame(id uint32, p types.Payload, next, complete bool) *Frame {
	f := &Frame{StreamID: id, Type: TypePayload}
	if next {
		f.Flags |= FlagNext
		withPayload(f, p)
	}
	if complete {
		f.Flags |= FlagComplete
	}
	return f
}

// NewError 创建 ERROR 帧
func NewError(id uint32, code types.ErrorCode, msg string) *Frame {
	return &Frame{StreamID: id, Type: TypeError, ErrorCode: code, Data: nonEmpty([]byte(msg))}
}

// NewErrorFrom 由错误创建 ERROR 帧
func NewErrorFrom(id uint32, err error) *Frame {
	e := types.AsError(err)
	return NewError(id, e.Code, e.Message)
}

// NewMetadataPush 创建 METADATA_PUSH 帧
func NewMetadataPush(metadata []byte) *Frame {
	if metadata == nil {
		metadata = []byte{}
	}
	return &Frame{Type: TypeMetadataPush, Flags: FlagMetadata, Metadata: metadata}
}

func withPayload(f *Frame, p types.Payload) *Frame {
	f.Data = nonEmpty(p.Data())
	if p.HasMetadata() {
		f.Metadata = p.Metadata()
		f.Flags |= FlagMetadata
	}
	return f
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
