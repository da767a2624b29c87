package interfaces

import (
	"context"

	"github.com/dep2p/go-rsocket/pkg/types"
)

// Requester 请求方能力
//
// 连接建立后双方对称，服务端也可以通过 Requester 向客户端发起请求。
type Requester interface {
	// FireAndForget 单向发送，写入失败同步返回
	FireAndForget(ctx context.Context, p types.Payload) error

	// MetadataPush 推送元数据，载荷携带数据时同步返回 types.ErrMetadataPushData
	MetadataPush(ctx context.Context, p types.Payload) error

	// RequestResponse 请求-响应
	RequestResponse(ctx context.Context, p types.Payload) (types.Payload, error)

	// RequestStream 请求-流，返回的 Source 拉取完毕即流结束
	RequestStream(ctx context.Context, p types.Payload) (Source, error)

	// RequestChannel 双向通道，in 为本端的惰性输入
	RequestChannel(ctx context.Context, in Source) (Source, error)
}
