// Package bridge 实现响应式桥接
//
// 在调用方的拉取/推送语义与线路上受 REQUEST_N 约束的帧之间做适配：
//   - Source: 惰性拉取的数据源（切片、channel、生成器、函数）
//   - Sink: 逐项回调 + 恰好一次的完成回调
//   - Inbox: 读循环与调用方之间的有界交接队列，消费进度驱动 REQUEST_N 补充
//   - Credit: 对端授予的发送额度，生产方在额度耗尽时阻塞
//   - Window: 接收方向的补充策略（低水位 = 初始额度的一半）
//
// 调用方代码从不在网络读路径上直接执行：读循环只向 Inbox 投递，
// 由独立的投递 goroutine 调用 Sink。
//
// # 架构定位
//
// Tier: Core Layer Level 1（无依赖）
//
// 依赖关系：
//   - 依赖：pkg/types
//   - 被依赖：socket, rsocket
package bridge
