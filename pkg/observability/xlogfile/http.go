package xlogfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/omeyang/xdevlog/pkg/resilience/xbreaker"
)

const (
	// DefaultUploadTimeout 单次上传默认超时
	DefaultUploadTimeout = 30 * time.Second

	// DefaultMaxResponseSize 响应体默认上限（10 MiB）
	DefaultMaxResponseSize int64 = 10 * 1024 * 1024

	// HeaderRequestID 每次请求唯一的请求 ID
	HeaderRequestID = "X-Request-Id"

	// HeaderChecksum 请求体的 xxhash64（16 进制）
	HeaderChecksum = "X-Content-Checksum"

	// maxErrorBody StatusError 保留的响应体长度
	maxErrorBody = 512
)

// HTTPTransport 基于 net/http 的上传传输层
//
// 请求受熔断器保护：接收端连续失败后快速失败，本地文件保持不变。
// 4xx（429 除外）说明请求本身有问题，不计入熔断失败。
type HTTPTransport struct {
	client  *http.Client
	timeout time.Duration
	breaker *xbreaker.Breaker
	maxBody int64
	headers http.Header
}

// HTTPOption HTTPTransport 配置选项
type HTTPOption func(*HTTPTransport)

// WithHTTPClient 使用自定义 http.Client，nil 忽略
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithUploadTimeout 设置请求超时，只作用于默认 client
func WithUploadTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithMaxResponseSize 设置响应体上限
func WithMaxResponseSize(n int64) HTTPOption {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.maxBody = n
		}
	}
}

// WithBreaker 使用自定义熔断器，nil 忽略
func WithBreaker(b *xbreaker.Breaker) HTTPOption {
	return func(t *HTTPTransport) {
		if b != nil {
			t.breaker = b
		}
	}
}

// WithHeader 为每个请求附加固定请求头（如鉴权）
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) {
		t.headers.Add(key, value)
	}
}

// NewHTTPTransport 创建 HTTP 传输层
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		timeout: DefaultUploadTimeout,
		maxBody: DefaultMaxResponseSize,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: t.timeout}
	}
	if t.breaker == nil {
		t.breaker = xbreaker.NewBreaker("xlogfile.upload",
			xbreaker.WithSuccessPolicy(xbreaker.SuccessFunc(breakerSuccess)),
		)
	}
	return t
}

// Breaker 返回熔断器
func (t *HTTPTransport) Breaker() *xbreaker.Breaker { return t.breaker }

// Post 实现 Transport
func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte, contentType string) (*Response, error) {
	return xbreaker.Execute(ctx, t.breaker, func() (*Response, error) {
		return t.post(ctx, url, body, contentType)
	})
}

func (t *HTTPTransport) post(ctx context.Context, url string, body []byte, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("xlogfile: create request: %w", err)
	}
	for k, v := range t.headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderRequestID, uuid.NewString())
	req.Header.Set(HeaderChecksum, strconv.FormatUint(xxhash.Sum64(body), 16))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xlogfile: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // Close 错误无法传播

	// 多读 1 字节用于检测截断
	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("xlogfile: read response: %w", err)
	}
	if int64(len(data)) > t.maxBody {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, t.maxBody)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		snippet := data
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// breakerSuccess 不可重试的状态码错误不代表接收端不可用
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && !se.Retryable()
}
