// Package server 实现多传输 RSocket 服务端
//
// 一个 Server 持有多个按标签注册的服务端传输，每个传输一个接受循环，
// 全部入站连接共用同一个 Acceptor：
//   - EchoAcceptor：五种交互全部回显
//   - HandlerAcceptor：按交互模式注册的处理函数，未注册的模式回复 "not implemented"
//
// # 生命周期
//
//	s := server.New(server.DefaultConfig())
//	_ = s.Add("tcp", tcpServerTransport)
//	_ = s.Add("ws", wsServerTransport)
//	s.SetAcceptor(server.EchoAcceptor())
//	s.OnStart(func() { fmt.Println("ready") })
//	err := s.Serve(ctx) // 阻塞到 Close、ctx 结束或监听致命错误
//
// 任一监听绑定失败时已绑定的监听全部关闭；运行中某个监听致命出错时，
// 其余监听一起关闭，Serve 返回该错误。单条连接的握手或 SETUP 失败
// 只记录日志。
//
// # 限流
//
// AcceptRate 限制每个监听每秒接受的连接数，MaxConnections 限制同时存活的
// 连接总数，超出时新连接直接关闭。
package server
