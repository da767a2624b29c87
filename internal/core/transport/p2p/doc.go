// Package p2p 实现带身份认证的点对点传输
//
// 连接建立在 TCP 之上，先完成 Noise XX 握手（25519 / ChaChaPoly / SHA256），
// 之后所有字节都经加密消息承载。每个节点持有一个 Ed25519 身份，Noise
// 静态密钥由身份私钥转换得到，握手 payload 携带身份公钥及其对静态公钥的签名，
// 双方据此确认对端身份。
//
// 节点 ID 为 base58(sha256(Ed25519 公钥))。
//
// # 地址格式
//
//	127.0.0.1:7881                         不校验对端身份
//	<nodeID>@127.0.0.1:7881                要求对端身份与 nodeID 一致
//	p2p://<nodeID>@127.0.0.1:7881
//
// # 使用示例
//
//	id, _ := p2p.NewIdentity(seed)
//	t := p2p.New(id, p2p.DefaultConfig())
//	ln, err := t.Listen("127.0.0.1:7881")
//	conn, err := t.Dial(ctx, id.NodeID()+"@127.0.0.1:7881")
package p2p
