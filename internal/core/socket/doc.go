// Package socket 实现 RSocket 连接
//
// 一个 Conn 独占一个传输连接，负责：
//   - 串行化写：所有流的帧经由同一写队列，不会在线路上交错
//   - 多路分解读：单个读循环解码并按流 ID 分发到流处理器
//   - 流表：分配流 ID（客户端奇数、服务端偶数，严格递增），终止时回收
//   - 五种交互的状态机（请求方与响应方各一套）
//   - 心跳：按间隔发送 KEEPALIVE，连续错过阈值次数即断开
//   - 租约：LEASE 帧限制对端在有效期内可发起的请求数
//
// # 状态机
//
//	Requested → Active → {Completed | Cancelled | Errored}
//
// 流处理器只持有流 ID 与一个窄写接口，不直接引用 Conn。
//
// # 快速开始
//
//	// 客户端
//	c, _ := socket.Client(ctx, tr, socket.Config{})
//	resp, _ := c.RequestResponse(ctx, types.NewPayloadString("ping"))
//
//	// 服务端
//	c, _ := socket.Server(ctx, tr, socket.Config{}, func(ctx context.Context, setup types.SetupInfo, r *socket.Conn) (*socket.Responder, error) {
//	    return socket.ResponderOf(handlers), nil
//	})
//
// # 架构定位
//
// Tier: Core Layer Level 2
//
// 依赖关系：
//   - 依赖：frame, bridge, pkg/interfaces, pkg/types
//   - 被依赖：server, rsocket
package socket
