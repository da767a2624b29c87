// Package quic 实现 QUIC 传输
//
// 每个 QUIC 连接只承载一条由客户端打开的双向流，RSocket 帧按字节流写入。
// QUIC 内置 TLS 1.3，服务端使用启动时生成的自签名证书，ALPN 为 "rsocket"，
// 客户端不做 CA 校验，只检查证书有效期。
//
// # 地址格式
//
//	127.0.0.1:7880
//	quic://127.0.0.1:7880
//
// # 使用示例
//
//	t, err := quic.New(quic.DefaultConfig())
//	ln, err := t.Listen("127.0.0.1:7880")
//	conn, err := t.Dial(ctx, "127.0.0.1:7880")
package quic
