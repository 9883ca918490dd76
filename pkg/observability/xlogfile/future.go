package xlogfile

import "context"

// Future 异步操作的结果
//
// 操作完成后结果不再变化，可被多个 goroutine 同时等待。
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolvedFuture 直接以给定结果完成的 Future
func resolvedFuture[T any](val T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(val, err)
	return f
}

// resolve 只能调用一次
func (f *Future[T]) resolve(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Done 操作完成时关闭
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Ready 操作是否已完成
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait 等待操作完成
//
// ctx 只限制本次等待；ctx 结束后操作本身仍会继续执行。
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then 操作完成后在新的 goroutine 中回调 fn
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.val, f.err)
	}()
}
