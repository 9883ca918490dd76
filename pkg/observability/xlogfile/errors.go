package xlogfile

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

var (
	// ErrClosed Store 已关闭
	ErrClosed = errors.New("xlogfile: store closed")

	// ErrNotFound 没有可上传的活动文件
	ErrNotFound = errors.New("xlogfile: no active log")

	// ErrInvalidDestination 上传目标不是合法的 http/https 绝对地址
	ErrInvalidDestination = errors.New("xlogfile: invalid destination")

	// ErrTransport 传输层失败，本地文件保持不变
	ErrTransport = errors.New("xlogfile: transport failed")

	// ErrRead 聚合时某个文件无法读取（跳过，不中断）
	ErrRead = errors.New("xlogfile: read failed")

	// ErrCommit 上传已成功但本地删除失败，记录可能被重复上传
	ErrCommit = errors.New("xlogfile: uploaded but local cleanup failed")

	// ErrInvalidExportName 导出文件名非法或与日志文件重名
	ErrInvalidExportName = errors.New("xlogfile: invalid export name")

	// ErrResponseTooLarge 上传响应体超过上限
	ErrResponseTooLarge = errors.New("xlogfile: response too large")

	// ErrQueueFull 队列已满，非阻塞提交被拒绝
	ErrQueueFull = errors.New("xlogfile: queue full")

	// ErrInvalidQueueSize 队列长度必须为正数
	ErrInvalidQueueSize = errors.New("xlogfile: queue size must be positive")

	// ErrPanic 任务执行时发生 panic（已恢复）
	ErrPanic = errors.New("xlogfile: job panicked")
)

// WriteError 追加或轮转失败，与 xrotate 共用同一类型
type WriteError = xrotate.WriteError

// ErrRotationExhausted 轮转序号耗尽，记录仍已写入活动文件
var ErrRotationExhausted = xrotate.ErrRotationExhausted

// StatusError 接收端返回了 >= 400 的状态码
type StatusError struct {
	StatusCode int
	// Body 响应体前 512 字节，便于诊断
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("xlogfile: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("xlogfile: unexpected status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Retryable 5xx 和 429 可重试，其余客户端错误不可重试
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable 判断上传错误是否值得重试
//
// 只有传输层错误可能重试；NotFound、InvalidDestination、Commit 等都不应重试。
// 传输层错误中，4xx 与熔断器拒绝不可重试。
func IsRetryable(err error) bool {
	if !errors.Is(err, ErrTransport) {
		return false
	}
	var re interface{ Retryable() bool }
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}
