package xlogfile

import (
	"context"
	"net/http"
)

// ContentTypeText 上传请求的内容类型
const ContentTypeText = "text/plain; charset=utf-8"

//go:generate mockgen -source=transport.go -destination=transport_mock_test.go -package=xlogfile

// Transport 上传传输层
//
// Post 返回 nil error 即视为接收端已确认收到，Store 随后删除本地已上传的内容。
type Transport interface {
	Post(ctx context.Context, url string, body []byte, contentType string) (*Response, error)
}

// TransportFunc 函数形式的 Transport
type TransportFunc func(ctx context.Context, url string, body []byte, contentType string) (*Response, error)

// Post 实现 Transport
func (f TransportFunc) Post(ctx context.Context, url string, body []byte, contentType string) (*Response, error) {
	return f(ctx, url, body, contentType)
}

// Response 接收端的响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Empty 接收端成功但没有返回响应体
func (r *Response) Empty() bool {
	return r == nil || len(r.Body) == 0
}

// String 响应体文本
func (r *Response) String() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}
