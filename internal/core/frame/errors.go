package frame

import "errors"

var (
	// ErrNeedMoreData 缓冲区中没有完整的帧
	ErrNeedMoreData = errors.New("frame: need more data")

	// ErrMalformed 帧格式错误（连接级致命错误）
	ErrMalformed = errors.New("frame: malformed")

	// ErrFrameTooLarge 帧超过 24 位长度上限
	ErrFrameTooLarge = errors.New("frame: too large")

	// ErrInvalidMTU 分片 MTU 过小
	ErrInvalidMTU = errors.New("frame: invalid fragment mtu")

	// ErrUnexpectedFragment 收到不属于任何分片序列的续片
	ErrUnexpectedFragment = errors.New("frame: unexpected fragment")
)
