package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dep2p/go-rsocket"
)

// demoHandlers 演示用处理函数
//
//   - RequestResponse: "ping" 回复 "pong"，其余原样返回
//   - RequestStream: 数据为数字 n 时产出 n 项（默认 5），每项间隔 100ms
//   - RequestChannel: 每项加上 "echo:" 前缀
//   - FireAndForget / MetadataPush: 只记录日志
func demoHandlers() *rsocket.HandlerSet {
	return &rsocket.HandlerSet{
		FireAndForget: func(_ context.Context, p rsocket.Payload) error {
			log.Info("收到 fire-and-forget", "payload", p.String())
			return nil
		},
		MetadataPush: func(_ context.Context, p rsocket.Payload) error {
			log.Info("收到 metadata-push", "bytes", len(p.Metadata()))
			return nil
		},
		RequestResponse: func(_ context.Context, p rsocket.Payload) (rsocket.Payload, error) {
			if s, _ := p.DataUTF8(); s == "ping" {
				return rsocket.NewPayloadString("pong"), nil
			}
			return p, nil
		},
		RequestStream: func(ctx context.Context, p rsocket.Payload) (rsocket.Source, error) {
			n := 5
			if s, ok := p.DataUTF8(); ok && s != "" {
				v, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil || v < 0 {
					return nil, rsocket.NewError(rsocket.ErrorCodeInvalid, "stream count must be a non-negative integer")
				}
				n = v
			}
			return rsocket.FromGenerator(func(yield func(rsocket.Payload) bool) {
				for i := 1; i <= n; i++ {
					select {
					case <-ctx.Done():
						return
					case <-time.After(100 * time.Millisecond):
					}
					if !yield(rsocket.NewPayloadString("item-" + strconv.Itoa(i))) {
						return
					}
				}
			}), nil
		},
		RequestChannel: func(_ context.Context, in rsocket.Source) (rsocket.Source, error) {
			return rsocket.Map(in, func(p rsocket.Payload) (rsocket.Payload, error) {
				s, _ := p.DataUTF8()
				return rsocket.NewPayloadString("echo:" + s), nil
			}), nil
		},
	}
}
