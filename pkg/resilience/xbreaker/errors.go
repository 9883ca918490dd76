package xbreaker

import (
	"errors"
	"fmt"
)

// BreakerError 熔断器错误包装类型
//
// 包装 ErrOpenState / ErrTooManyRequests，Retryable() 返回 false，
// 让 xretry 不再重试熔断器拒绝的请求。
type BreakerError struct {
	Err   error
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error { return e.Err }

// Retryable 熔断器错误不可重试
func (e *BreakerError) Retryable() bool { return false }

// wrapBreakerError 熔断器 sentinel 错误包装为 BreakerError，其余原样返回
//
// 只比较直接的 sentinel，不遍历错误链，避免把内层熔断器的错误归因到外层。
// 状态由错误类型推导，不回查 State()，避免 TOCTOU。
func wrapBreakerError(err error, name string) error {
	switch {
	case err == nil:
		return nil
	case err == ErrOpenState: //nolint:errorlint // 只匹配直接 sentinel
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case err == ErrTooManyRequests: //nolint:errorlint // 只匹配直接 sentinel
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	default:
		return err
	}
}

// IsOpen 检查错误是否是熔断器打开错误
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpenState)
}

// IsTooManyRequests 检查错误是否是半开状态请求过多错误
func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

// IsBreakerError 检查错误是否是熔断器拒绝
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
