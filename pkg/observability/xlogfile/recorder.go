package xlogfile

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Recorder 面向业务代码的尽力而为日志入口
//
// 格式化消息并提交到 Store，从不向调用方返回错误。写入失败由 Store 的
// OnError 回调上报；提交失败（Store 已关闭，或非阻塞模式下队列已满）计入
// [Recorder.Dropped] 并回调 onDrop。
// Recorder 同时实现 io.Writer，可作为 slog Handler 的输出。
type Recorder struct {
	store       *Store
	formatter   *Formatter
	identity    IdentityProvider
	now         func() time.Time
	nonBlocking bool
	onDrop      func(error)
	dropped     atomic.Uint64
}

// RecorderOption Recorder 配置选项
type RecorderOption func(*Recorder)

// WithIdentity 设置身份信息来源
func WithIdentity(p IdentityProvider) RecorderOption {
	return func(r *Recorder) {
		r.identity = p
	}
}

// WithClock 设置时间来源
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithNonBlocking 队列满时丢弃记录而不是阻塞调用方
func WithNonBlocking() RecorderOption {
	return func(r *Recorder) {
		r.nonBlocking = true
	}
}

// WithOnDrop 设置记录被丢弃时的回调
func WithOnDrop(fn func(error)) RecorderOption {
	return func(r *Recorder) {
		r.onDrop = fn
	}
}

// NewRecorder 创建 Recorder
func NewRecorder(store *Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	r.formatter = NewFormatter(r.identity)
	if r.now != nil {
		r.formatter.now = r.now
	}
	return r
}

// Log 记录一条消息，调用位置取 Log 的调用方
func (r *Recorder) Log(msg string) {
	r.submit([]byte(r.formatter.Format(msg, CallerAt(1))))
}

// Logf 格式化并记录一条消息
func (r *Recorder) Logf(format string, args ...any) {
	r.submit([]byte(r.formatter.Format(fmt.Sprintf(format, args...), CallerAt(1))))
}

// Write 原样追加 p（不加装饰），总是返回 len(p), nil
func (r *Recorder) Write(p []byte) (int, error) {
	r.submit(p)
	return len(p), nil
}

// Dropped 未能提交到 Store 的记录数
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) submit(record []byte) {
	if r.nonBlocking {
		r.observe(r.store.TryAppend(record))
		return
	}
	r.observe(r.store.Append(record))
}

// observe 只检查提交阶段的失败，不等待写入完成
func (r *Recorder) observe(f *Future[int]) {
	// Ready 之后读取 err 是安全的（done 关闭先于读取）
	if !f.Ready() || !isSubmitError(f.err) {
		return
	}
	r.dropped.Add(1)
	if r.onDrop != nil {
		func() {
			defer func() { recover() }() //nolint:errcheck // 隔离回调 panic
			r.onDrop(f.err)
		}()
	}
}

// isSubmitError 提交阶段产生的错误，写入阶段的错误由 Store 上报
func isSubmitError(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, ErrQueueFull)
}
