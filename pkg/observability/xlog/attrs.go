package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key
const (
	KeyError       = "error"
	KeyStack       = "stack"
	KeyDuration    = "duration"
	KeyCount       = "count"
	KeyComponent   = "component"
	KeyOperation   = "operation"
	KeyPath        = "path"
	KeyBytes       = "bytes"
	KeySequence    = "sequence"
	KeyDestination = "destination"
	KeyStatusCode  = "status_code"
)

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建人类可读的耗时属性（如 "1.5s"）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Path 创建文件路径属性
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Bytes 创建字节数属性
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Sequence 创建轮转序号属性
func Sequence(n int) slog.Attr {
	return slog.Int(KeySequence, n)
}

// Destination 创建上传目标属性
//
// 只保留 scheme/host/path，去掉查询参数（可能携带令牌）。
func Destination(url string) slog.Attr {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' || url[i] == '#' {
			url = url[:i]
			break
		}
	}
	return slog.String(KeyDestination, url)
}

// StatusCode 创建 HTTP 状态码属性
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}
