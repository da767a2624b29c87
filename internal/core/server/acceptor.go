package server

import (
	"context"

	"github.com/dep2p/go-rsocket/internal/core/bridge"
	"github.com/dep2p/go-rsocket/internal/core/socket"
	"github.com/dep2p/go-rsocket/pkg/types"
)

// ============================================================================
//                              Acceptor 策略
// ============================================================================

// EchoResponder 返回回显响应方
//
// 请求-响应原样返回，请求-流回显一次请求，通道逐项回显输入；
// 单向请求与元数据推送只记录日志。
func EchoResponder() *socket.Responder {
	return &socket.Responder{
		FireAndForget: func(_ context.Context, p types.Payload) error {
			log.Debug("收到单向请求", "len", len(p.Data()))
			return nil
		},
		MetadataPush: func(_ context.Context, p types.Payload) error {
			log.Debug("收到元数据推送", "len", len(p.Metadata()))
			return nil
		},
		RequestResponse: func(_ context.Context, p types.Payload) (types.Payload, error) {
			return p, nil
		},
		RequestStream: func(_ context.Context, p types.Payload) (bridge.Source, error) {
			return bridge.Single(p), nil
		},
		RequestChannel: func(_ context.Context, in bridge.Source) (bridge.Source, error) {
			return in, nil
		},
	}
}

// EchoAcceptor 每条连接都使用回显响应方
func EchoAcceptor() socket.Acceptor {
	r := EchoResponder()
	return func(_ context.Context, _ types.SetupInfo, _ *socket.Conn) (*socket.Responder, error) {
		return r, nil
	}
}

// HandlerAcceptor 每条连接都使用 handlers 提供的处理函数
//
// handlers 可以是 *socket.Responder 或实现了任意处理器接口的值，
// 能力在这里一次确定；未实现的交互回复 "not implemented"。
func HandlerAcceptor(handlers any) socket.Acceptor {
	r := socket.ResponderOf(handlers)
	return func(_ context.Context, _ types.SetupInfo, _ *socket.Conn) (*socket.Responder, error) {
		return r, nil
	}
}
