// Package tcp 实现 TCP 传输
//
// 帧以 RSocket 的 24 位长度前缀直接写入 TCP 字节流，读取端按块接收，
// 由连接层的解码器恢复帧边界。
//
// # 地址格式
//
//	127.0.0.1:7878
//	tcp://127.0.0.1:7878
//
// # 使用示例
//
//	t := tcp.New(tcp.DefaultConfig())
//	ln, err := t.Listen("127.0.0.1:7878")
//	conn, err := t.Dial(ctx, "127.0.0.1:7878")
package tcp
