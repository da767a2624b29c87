// Package frame 实现 RSocket 1.0 帧编解码
//
// 编解码是纯函数：输入字节，输出帧，不持有连接状态。支持：
//   - 24 位长度前缀（字节流载体上的帧边界）
//   - 12 种帧类型（SETUP 至 METADATA_PUSH）
//   - 元数据"存在但为空"的表达（由 METADATA 标志位而非长度决定）
//   - 流式解码（TCP 分片到达时返回 ErrNeedMoreData）
//   - 分片与重组（FOLLOWS 标志位，MTU 不小于 64）
//
// # 帧格式
//
//	+-----------------------------------------------+
//	|                 Frame Length (24)             |
//	+-----------------------------------------------+
//	|0|              Stream ID (31)                 |
//	+-----------+-------------------+---------------+
//	| Type (6)  |     Flags (10)    |  Body ...     |
//	+-----------+-------------------+---------------+
//
// # 快速开始
//
//	buf := frame.Encode(frame.NewRequestResponse(1, payload))
//
//	dec := frame.NewDecoder()
//	dec.Feed(chunk)
//	for {
//	    f, err := dec.Next()
//	    if errors.Is(err, frame.ErrNeedMoreData) {
//	        break
//	    }
//	    ...
//	}
//
// # 架构定位
//
// Tier: Core Layer Level 1（无依赖）
//
// 依赖关系：
//   - 依赖：pkg/types
//   - 被依赖：socket, transport/websocket
package frame
