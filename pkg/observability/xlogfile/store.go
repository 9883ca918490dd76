package xlogfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/observability/xmetrics"
	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

// componentName 日志与观测中的组件名
const componentName = "xlogfile"

// noticeBuffer 等待 OnError 回调处理的错误上限，超出的通知被丢弃
const noticeBuffer = 64

// Store 日志文件生命周期管理器
//
// 所有文件系统操作都在同一个 worker goroutine 上按提交顺序执行。
// 多个 Store 指向同一目录是不安全的。
type Store struct {
	dir        string
	layout     xrotate.Layout
	fileMode   os.FileMode
	exportName string
	rotator    *xrotate.SequenceRotator
	transport  Transport
	logger     xlog.Logger
	observer   xmetrics.Observer
	onError    func(error)
	notices    chan error // 非 nil 当且仅当设置了 onError
	noticeDone chan struct{}

	jobs       chan func()
	mu         sync.RWMutex // 保护 closed 与向 jobs 发送
	closed     bool
	done       chan struct{}
	uploads    singleflight.Group
	errorCount atomic.Uint64
}

// New 创建 Store 并启动 worker
//
// 存储目录不存在时自动创建。
func New(opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.queueSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQueueSize, o.queueSize)
	}
	if o.logger == nil {
		o.logger = xlog.Discard()
	}
	if o.observer == nil {
		o.observer = xmetrics.NoopObserver{}
	}
	if o.transport == nil {
		o.transport = NewHTTPTransport()
	}

	dir, err := resolveDir(o.location)
	if err != nil {
		return nil, fmt.Errorf("xlogfile: resolve location: %w", err)
	}

	s := &Store{
		dir:        dir,
		layout:     o.layout,
		fileMode:   o.fileMode,
		exportName: o.exportName,
		transport:  o.transport,
		logger:     o.logger.With(xlog.Component(componentName)),
		observer:   o.observer,
		onError:    o.onError,
		jobs:       make(chan func(), o.queueSize),
		done:       make(chan struct{}),
	}

	rotator, err := xrotate.NewSequence(dir,
		xrotate.WithThreshold(o.threshold),
		xrotate.WithLayout(o.layout),
		xrotate.WithSequenceFileMode(o.fileMode),
		xrotate.WithSequenceOnError(s.report),
	)
	if err != nil {
		return nil, err
	}
	s.rotator = rotator

	if s.onError != nil {
		s.notices = make(chan error, noticeBuffer)
		s.noticeDone = make(chan struct{})
		go s.notify()
	}
	go s.run()

	s.logger.Debug(context.Background(), "store opened",
		xlog.Path(dir), xlog.Bytes(o.threshold), slog.Int("queue_size", o.queueSize))
	return s, nil
}

// Dir 存储目录
func (s *Store) Dir() string { return s.dir }

// Layout 文件命名布局
func (s *Store) Layout() xrotate.Layout { return s.layout }

// Threshold 轮转阈值（字节）
func (s *Store) Threshold() int64 { return s.rotator.Threshold() }

// ActivePath 活动文件路径
func (s *Store) ActivePath() string { return s.rotator.ActivePath() }

// ErrorCount 尽力而为路径上累计的错误数（回调 panic 也计入）
func (s *Store) ErrorCount() uint64 { return s.errorCount.Load() }

// Append 追加一条记录
//
// 立即返回，记录按提交顺序写入；调用方可以忽略返回的 Future。
// 记录不以换行结尾时自动补一个换行。队列满时阻塞调用方直到有空位。
// 关闭后返回以 [ErrClosed] 完成的 Future。
func (s *Store) Append(record []byte) *Future[int] {
	buf := make([]byte, len(record))
	copy(buf, record)
	return s.append(buf)
}

// AppendString 追加一条字符串记录
func (s *Store) AppendString(record string) *Future[int] {
	return s.append([]byte(record))
}

// TryAppend 与 Append 相同，但队列满时不阻塞，返回以 [ErrQueueFull] 完成的 Future
func (s *Store) TryAppend(record []byte) *Future[int] {
	buf := make([]byte, len(record))
	copy(buf, record)
	f := newFuture[int]()
	if err := s.tryEnqueue(func() { f.resolve(runJob(s, "append", s.writeRecord(buf))) }); err != nil {
		f.resolve(0, err)
	}
	return f
}

func (s *Store) append(buf []byte) *Future[int] {
	return submit(s, "append", s.writeRecord(buf))
}

func (s *Store) writeRecord(buf []byte) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		n, err := s.rotator.Write(buf)
		if err != nil {
			s.report(err)
		}
		return n, err
	}
}

// Rotate 立即轮转活动文件（活动文件不存在或为空时无操作）
func (s *Store) Rotate() *Future[struct{}] {
	return submit(s, "rotate", func(context.Context) (struct{}, error) {
		return struct{}{}, s.rotator.Rotate()
	})
}

// Close 停止接收新任务，执行完已入队的任务后退出
//
// ctx 只限制等待时间，超时后队列仍会在后台执行完。重复调用返回 [ErrClosed]。
// 已经发出的上传请求若在关闭后才成功，本地文件保留（返回 [ErrCommit]）。
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	select {
	case <-s.done:
		s.logger.Debug(ctx, "store closed", xlog.Path(s.dir))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run worker 主循环
func (s *Store) run() {
	defer close(s.done)
	for job := range s.jobs {
		job()
	}
	_ = s.rotator.Close() //nolint:errcheck // 只会返回 ErrClosed

	// report 只在 worker 上调用，此后不会再有通知写入
	if s.notices != nil {
		close(s.notices)
		<-s.noticeDone
	}
}

// notify 在独立 goroutine 上依次执行 OnError 回调
func (s *Store) notify() {
	defer close(s.noticeDone)
	for err := range s.notices {
		s.callOnError(err)
	}
}

func (s *Store) callOnError(err error) {
	defer func() {
		if r := recover(); r != nil {
			s.errorCount.Add(1)
			s.logger.Error(context.Background(), "onError callback panicked", slog.Any("panic", r))
		}
	}()
	s.onError(err)
}

// enqueue 提交任务，队列满时阻塞
func (s *Store) enqueue(job func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.jobs <- job
	return nil
}

// tryEnqueue 提交任务，队列满时返回 ErrQueueFull
func (s *Store) tryEnqueue(job func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// submit 将 fn 作为一个任务提交到串行化点
func submit[T any](s *Store, op string, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	err := s.enqueue(func() {
		f.resolve(runJob(s, op, fn))
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}

// runJob 在 worker 上执行任务，panic 转为 [ErrPanic]
func runJob[T any](s *Store, op string, fn func(ctx context.Context) (T, error)) (val T, err error) {
	ctx, span := xmetrics.Start(context.Background(), s.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: op,
		Kind:      xmetrics.KindInternal,
	})
	defer func() {
		if r := recover(); r != nil {
			var zero T
			val = zero
			err = fmt.Errorf("%w: %s: %v", ErrPanic, op, r)
			s.errorCount.Add(1)
			s.logger.Stack(ctx, "job panicked", xlog.Operation(op), slog.Any("panic", r))
		}
		span.End(xmetrics.Result{Err: err})
	}()
	return fn(ctx)
}

// report 上报尽力而为路径上的错误
//
// 只在 worker 上调用。回调异步执行，worker 从不等待回调；
// 回调积压超过 noticeBuffer 时丢弃通知，错误仍计入 ErrorCount。
func (s *Store) report(err error) {
	if err == nil {
		return
	}
	s.errorCount.Add(1)
	s.logger.Warn(context.Background(), "best-effort operation failed", xlog.Err(err))
	if s.notices == nil {
		return
	}
	select {
	case s.notices <- err:
	default:
		s.logger.Warn(context.Background(), "onError backlog full, notification dropped", xlog.Err(err))
	}
}
