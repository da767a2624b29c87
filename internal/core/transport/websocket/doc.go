// Package websocket 实现 WebSocket 传输
//
// 每个 RSocket 帧对应一条二进制消息，消息本身即帧边界，因此发送时去掉
// 24 位长度前缀，接收时再补回，连接层看到的仍是带前缀的帧流。
//
// # 地址格式
//
//	客户端: ws://127.0.0.1:7879/rsocket 或 127.0.0.1:7879（使用默认路径）
//	服务端: 127.0.0.1:7879 或 ws://127.0.0.1:7879/rsocket
package websocket
