package interfaces

import (
	"context"

	"github.com/dep2p/go-rsocket/pkg/types"
)

// 响应方能力集：每种交互一个可选接口。处理器只需实现自己支持的交互，
// 未实现的交互在注册时确定，请求到达时直接回复 "not implemented" 错误。

// FireAndForgetHandler 处理单向请求
type FireAndForgetHandler interface {
	FireAndForget(ctx context.Context, p types.Payload) error
}

// MetadataPushHandler 处理元数据推送
type MetadataPushHandler interface {
	MetadataPush(ctx context.Context, p types.Payload) error
}

// RequestResponseHandler 处理请求-响应
type RequestResponseHandler interface {
	RequestResponse(ctx context.Context, p types.Payload) (types.Payload, error)
}

// RequestStreamHandler 处理请求-流
//
// 返回的 Source 按对端的 REQUEST_N 额度被拉取。
type RequestStreamHandler interface {
	RequestStream(ctx context.Context, p types.Payload) (Source, error)
}

// RequestChannelHandler 处理双向通道
//
// in 的第一项是 REQUEST_CHANNEL 帧携带的载荷。
type RequestChannelHandler interface {
	RequestChannel(ctx context.Context, in Source) (Source, error)
}
