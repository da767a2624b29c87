// Package transport 管理传输载体
//
// 载体按标签静态注册（tcp、websocket、quic、p2p、mem），注册表在包初始化时
// 建立，此后只读。Manager 按标签惰性创建并缓存传输实例，统一负责关闭。
//
// # 客户端与服务端适配
//
// ClientTransport 绑定目标地址，Connect 每次拨出一条新连接；
// ServerTransport 绑定监听地址，Listen 返回监听器。
//
//	m := transport.NewManager(transport.NewConfig())
//	ct, err := m.Client("tcp", "127.0.0.1:7878")
//	conn, err := ct.Connect(ctx)
//
// # Fx 模块集成
//
//	app := fx.New(
//	    fx.Supply(config.NewConfig()),
//	    transport.Module(),
//	    fx.Invoke(func(m *transport.Manager) { ... }),
//	)
package transport
