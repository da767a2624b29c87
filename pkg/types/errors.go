package types

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
//                              协议错误
// ============================================================================

// Error 对端通过 ERROR 帧传递的协议错误
//
// 调用方通过 errors.As 取出错误码与原因字符串。
type Error struct {
	Code    ErrorCode
	Message string
}

// NewError 创建协议错误
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Errorf 使用格式化字符串创建协议错误
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 错误码相同即视为同一类错误
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// AsError 将任意错误转换为协议错误
//
// 已经是 *Error 的保持不变，其余按 APPLICATION_ERROR 处理。
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: ErrorCodeApplicationError, Message: err.Error()}
}

// ============================================================================
//                              通用错误
// ============================================================================

var (
	// ErrMetadataPushData metadata-push 载荷携带了数据（调用方约定错误）
	ErrMetadataPushData = errors.New("metadata push must not carry data")

	// ErrMetadataPushEmpty metadata-push 载荷没有元数据
	ErrMetadataPushEmpty = errors.New("metadata push requires metadata")

	// ErrNotImplemented 交互类型未实现
	ErrNotImplemented = errors.New("not implemented")
)

// IsNotImplemented 判断错误是否是对端因未实现该交互而返回的 ERROR
func IsNotImplemented(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return errors.Is(err, ErrNotImplemented)
	}
	return e.Code == ErrorCodeApplicationError && strings.HasPrefix(e.Message, ErrNotImplemented.Error())
}
