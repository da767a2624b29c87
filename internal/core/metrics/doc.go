// Package metrics 提供引擎指标收集与导出
//
// Counter 实现 interfaces.Observer，连接在读写路径上调用它记录：
//   - 按帧类型与方向的帧数量、编码字节数
//   - 最近 60 秒的收发速率
//   - 按交互模式的流打开数与活跃数
//   - 按传输协议的连接打开数与活跃数
//
// # 快速开始
//
//	counter := metrics.NewCounter(nil)
//	cfg.Observer = counter
//
//	stats := counter.Totals()
//	fmt.Printf("In: %d, Out: %d, Streams: %d\n", stats.TotalIn, stats.TotalOut, stats.ActiveStreams)
//
// # Prometheus
//
// Collector 在每次抓取时读取 Counter 快照，Exporter 在独立端口提供 /metrics：
//
//	e, _ := metrics.NewExporter("127.0.0.1:9464", metrics.NewCollector("rsocket", counter))
//	_ = e.Start()
//	defer e.Stop(ctx)
//
// # Fx 模块
//
//	app := fx.New(
//	    metrics.Module,
//	    fx.Invoke(func(r metrics.Reporter) { ... }),
//	)
//
// 统一配置中 metrics.enabled 为 true 时模块随应用启动导出服务。
//
// # 并发安全
//
// 所有方法都是并发安全的，Observer 方法只做原子操作，不会阻塞读写路径。
package metrics
