// Package types 定义 go-rsocket 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在引擎各模块与调用方之间传递数据。
//
// # 文件组织
//
//   - payload.go  - Payload 不可变载荷及其构建器
//   - enums.go    - InteractionKind 交互类型, ErrorCode 协议错误码
//   - errors.go   - 协议错误 Error 与公共错误定义
//
// # 不可变性
//
// Payload 一旦构建完成便不再修改，可以在多个 goroutine 之间只读共享。
// 构建器 PayloadBuilder 在 Build 时复制内部缓冲区，之后对构建器的修改
// 不会影响已经冻结的 Payload。
package types
