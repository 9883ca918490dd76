// Package xbreaker 在 [sony/gobreaker/v2] 之上提供熔断器。
//
// 上传日志的 HTTP 传输用它隔离不可用的接收端：连续失败达到阈值后
// 熔断器打开，后续上传立即失败（本地文件保持不变），超时后半开探测。
//
// 熔断器错误包装为 [BreakerError]，其 Retryable() 返回 false，
// 与 xretry 组合时不会对打开状态反复退避重试。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
