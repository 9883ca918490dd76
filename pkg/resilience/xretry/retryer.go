package xretry

import (
	"context"
	"math"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Retryer 重试执行器
//
// 底层使用 avast/retry-go/v5，每次 Do 独立构建选项，实例可并发复用。
type Retryer struct {
	attempts int
	backoff  BackoffPolicy
	retryIf  func(error) bool
	onRetry  func(attempt int, err error)
}

// RetryerOption 执行器配置选项
type RetryerOption func(*Retryer)

// WithAttempts 设置最大尝试次数（包含首次），小于 1 时按 1 处理
func WithAttempts(n int) RetryerOption {
	return func(r *Retryer) {
		r.attempts = max(n, 1)
	}
}

// WithBackoff 设置退避策略，nil 忽略
func WithBackoff(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoff = p
		}
	}
}

// WithRetryIf 追加重试条件，与 [IsRetryable] 同时满足才重试
func WithRetryIf(fn func(error) bool) RetryerOption {
	return func(r *Retryer) {
		r.retryIf = fn
	}
}

// WithOnRetry 设置重试回调（attempt 从 1 开始），nil 忽略
func WithOnRetry(fn func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if fn != nil {
			r.onRetry = fn
		}
	}
}

// NewRetryer 创建重试执行器，默认 3 次尝试、指数退避
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		attempts: 3,
		backoff:  NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attempts 最大尝试次数
func (r *Retryer) Attempts() int { return r.attempts }

// Do 执行带重试的操作，只返回最后一次错误
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// DoWithResult 执行带重试的操作（有返回值）
//
// 泛型函数，必须作为包级函数使用。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrNilRetryer
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.buildOptions(ctx)...).Do(func() (T, error) {
		return fn(ctx)
	})
}

// buildOptions 构建 retry-go 选项
func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	backoff := r.backoff
	if backoff == nil {
		backoff = NewExponentialBackoff()
	}
	retryIf := r.retryIf

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(max(r.attempts, 1))),
		retry.RetryIf(func(err error) bool {
			if !retry.IsRecoverable(err) || !IsRetryable(err) {
				return false
			}
			return retryIf == nil || retryIf(err)
		}),
		// retry-go v5 中 DelayType 的 n 从 1 开始
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			return backoff.NextDelay(clampUint(n))
		}),
		retry.LastErrorOnly(true),
	}
	if r.onRetry != nil {
		// OnRetry 的 n 从 0 开始
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			r.onRetry(clampUint(n)+1, err)
		}))
	}
	return opts
}

// clampUint 将 uint 安全转换为 int
func clampUint(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
