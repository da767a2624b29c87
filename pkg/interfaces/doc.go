// Package interfaces 定义 go-rsocket 的公共接口
//
// 采用扁平命名，一个接口文件对应一个实现目录：
//   - transport.go  - 传输适配层（tcp, websocket, quic, p2p, mem）
//   - source.go     - 惰性数据源
//   - rsocket.go    - 请求方能力（五种交互）
//   - responder.go  - 响应方能力集（每种交互一个可选接口）
//   - metrics.go    - 指标观察者
//
// # 依赖方向
//
//	rsocket → server → socket → frame / bridge → pkg/interfaces → pkg/types
//
// 禁止反向依赖。
package interfaces
