// Package xretry 提供基于 [avast/retry-go/v5] 的重试执行器。
//
// 日志库本身不重试（上传失败时保留本地文件，由调用方决定是否重试），
// xretry 供调用方（如 xlogctl upload）组合使用：
//
//	r := xretry.NewRetryer(
//	    xretry.WithAttempts(3),
//	    xretry.WithBackoff(xretry.NewExponentialBackoff()),
//	)
//	resp, err := xretry.DoWithResult(ctx, r, func(ctx context.Context) (*xlogfile.Response, error) {
//	    return store.Upload(ctx, url).Wait(ctx)
//	})
//
// 实现 [RetryableError] 的错误按其 Retryable() 判定，其余错误默认可重试；
// 用 [NewPermanentError] 包装的错误立即终止重试。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
