package interfaces

// Observer 引擎指标观察者
//
// 由连接在读写路径上调用，实现必须并发安全且不能阻塞。
type Observer interface {
	// FrameSent 记录发送的帧
	FrameSent(frameType uint8, size int)

	// FrameReceived 记录接收的帧
	FrameReceived(frameType uint8, size int)

	// StreamOpened 记录流建立
	StreamOpened(kind string)

	// StreamClosed 记录流终止
	StreamClosed(kind string)

	// ConnOpened 记录连接建立
	ConnOpened(protocol string)

	// ConnClosed 记录连接关闭
	ConnClosed(protocol string)
}
