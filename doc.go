// Package rsocket 提供 RSocket 1.0 协议的客户端与多传输服务端
//
// 一条连接上多路复用任意数量的流，支持五种交互：
//
//   - FireAndForget: 单向发送，不等待响应
//   - MetadataPush: 推送连接级元数据
//   - RequestResponse: 一个请求对应一个响应
//   - RequestStream: 一个请求对应有限或无限的响应流，按 REQUEST_N 流控
//   - RequestChannel: 双向流，两个方向各自独立流控与完成
//
// 传输载体：tcp、websocket、quic、p2p（Noise 加密，Ed25519 身份）以及
// 进程内的 mem。
//
// # 快速开始
//
//	// 服务端
//	err := rsocket.NewServerBuilder().
//	    AddTransport("tcp", rsocket.TCPServerTransport("127.0.0.1:7878")).
//	    Handlers(&rsocket.HandlerSet{
//	        RequestResponse: func(ctx context.Context, p rsocket.Payload) (rsocket.Payload, error) {
//	            return rsocket.NewPayloadString("pong"), nil
//	        },
//	    }).
//	    Serve(ctx)
//
//	// 客户端
//	c, err := rsocket.Connect(ctx, rsocket.TCPClientTransport("127.0.0.1:7878"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	resp, err := c.RequestResponse(ctx, rsocket.NewPayloadString("ping"))
//
// # 流与回调
//
// 请求流与通道有三种消费方式：
//
//	src, _ := c.RequestStream(ctx, p)                  // 拉取：src.Next(ctx) 直到 io.EOF
//	items, _ := c.RequestStreamCollect(ctx, p)         // 收集全部
//	_ = c.RequestStreamWithCallback(ctx, p, onItem, onComplete) // 逐项回调
//
// 逐项回调的 index 从 1 开始；onComplete 无论成功、失败还是取消都恰好调用一次。
// 回调执行得慢会推迟 REQUEST_N 的补充，从而限制对端的发送速度。
//
// 通道的输入必须是惰性的（Source、Generator、channel 等）：
//
//	gen := func(yield func(rsocket.Payload) bool) {
//	    for _, s := range []string{"a", "b", "c"} {
//	        if !yield(rsocket.NewPayloadString(s)) {
//	            return
//	        }
//	    }
//	}
//	_ = c.RequestChannelReactive(ctx, gen, onItem, onComplete)
//
// 生成器只在对端授予额度后才会被推进一步。
//
// # 错误
//
// 对端 ERROR 帧以 *Error 返回；处理器返回普通错误时对端收到
// APPLICATION_ERROR，返回 *Error 时使用其错误码。未注册的交互回复
// "not implemented"，可用 IsNotImplemented 判断。
//
// # 配置
//
// 选项按顺序应用：
//
//	rsocket.WithConfigFile("rsocket.json")
//	rsocket.WithPreset("server")
//	rsocket.WithKeepalive(10*time.Second, time.Minute)
//	rsocket.WithInitialRequestN(64)
//	rsocket.WithFragment(1024)
//
// 服务端也可以通过 NewApp 以 Fx 应用的形式运行，监听列表取自配置。
package rsocket
