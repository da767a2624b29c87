package bridge

import "errors"

var (
	// ErrNotLazySource 传入的值不是惰性数据源
	ErrNotLazySource = errors.New("bridge: value is not a lazy item source")

	// ErrCancelled 流已被本端取消
	ErrCancelled = errors.New("bridge: cancelled")

	// ErrCreditViolation 对端发送的数据项超过授予的额度
	ErrCreditViolation = errors.New("bridge: peer exceeded granted request-n")
)

// GeneratorPanic 生成器执行时发生 panic
type GeneratorPanic struct {
	Value any
}

func (e *GeneratorPanic) Error() string {
	return "bridge: generator panicked"
}
