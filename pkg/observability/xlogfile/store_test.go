package xlogfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdevlog/pkg/observability/xmetrics"
	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// blockWorker 提交一个阻塞 worker 的任务，返回释放函数
func blockWorker(t *testing.T, s *Store) (release func()) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	submit(s, "block", func(context.Context) (struct{}, error) {
		close(started)
		<-gate
		return struct{}{}, nil
	})
	<-started
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := newTestStore(t)
		assert.Equal(t, xrotate.DefaultThreshold, s.Threshold())
		assert.Equal(t, xrotate.DefaultLayout(), s.Layout())
		assert.Equal(t, filepath.Join(s.Dir(), "devlog.log"), s.ActivePath())
	})

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		s := newTestStore(t, WithDir(dir))
		assert.Equal(t, dir, s.Dir())
		assert.DirExists(t, dir)
	})

	t.Run("trailing separator ignored", func(t *testing.T) {
		dir := t.TempDir()
		s := newTestStore(t, WithDir(dir+string(filepath.Separator)))
		assert.Equal(t, dir, s.Dir())
	})

	t.Run("invalid queue size", func(t *testing.T) {
		_, err := New(WithDir(t.TempDir()), WithQueueSize(0))
		assert.ErrorIs(t, err, ErrInvalidQueueSize)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := New(WithDir(t.TempDir()), WithThreshold(0))
		assert.ErrorIs(t, err, xrotate.ErrInvalidThreshold)
	})

	t.Run("location error", func(t *testing.T) {
		boom := errors.New("no home")
		_, err := New(WithLocation(LocationFunc(func() (string, error) { return "", boom })))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nil options ignored", func(t *testing.T) {
		s := newTestStore(t, nil, WithLogger(nil), WithObserver(nil), WithLocation(nil))
		assert.NotEmpty(t, s.Dir())
	})
}

func TestStore_AppendOrdering(t *testing.T) {
	s := newTestStore(t)

	var want strings.Builder
	for i := range 100 {
		rec := fmt.Sprintf("record-%03d", i)
		s.AppendString(rec)
		want.WriteString(rec + "\n")
	}

	got := mustWait(t, s.ReadAll())
	assert.Equal(t, want.String(), got)
}

func TestStore_AppendNewline(t *testing.T) {
	s := newTestStore(t)

	n := mustWait(t, s.AppendString("no newline"))
	assert.Equal(t, len("no newline"), n)
	mustWait(t, s.AppendString("has newline\n"))
	mustWait(t, s.AppendString(""))

	assert.Equal(t, "no newline\nhas newline\n\n", readFile(t, s.ActivePath()))
}

func TestStore_AppendCopiesBuffer(t *testing.T) {
	s := newTestStore(t)
	release := blockWorker(t, s)

	buf := []byte("original")
	f := s.Append(buf)
	copy(buf, "mutated!")
	release()

	mustWait(t, f)
	assert.Equal(t, "original\n", readFile(t, s.ActivePath()))
}

func TestStore_HelloWorldThresholdOne(t *testing.T) {
	s := newTestStore(t, WithThreshold(1))

	s.AppendString("hello")
	mustWait(t, s.AppendString("world"))

	artifacts := mustWait(t, s.Artifacts())
	require.Len(t, artifacts, 2)
	assert.Equal(t, xrotate.RoleRotated, artifacts[0].Role)
	assert.Equal(t, 1, artifacts[0].Sequence)
	assert.Equal(t, "hello\n", readFile(t, artifacts[0].Path))
	assert.Equal(t, xrotate.RoleActive, artifacts[1].Role)
	assert.Equal(t, "world\n", readFile(t, artifacts[1].Path))
}

func TestStore_RotationThreshold(t *testing.T) {
	// 每条记录 6 字节，前两条累计达到阈值 12，第三条写入前轮转
	s := newTestStore(t, WithThreshold(12))

	s.AppendString("rec-0")
	s.AppendString("rec-1")
	mustWait(t, s.AppendString("rec-2"))

	rotated := filepath.Join(s.Dir(), s.Layout().RotatedName(1))
	assert.Equal(t, "rec-0\nrec-1\n", readFile(t, rotated))
	assert.Equal(t, "rec-2\n", readFile(t, s.ActivePath()))
}

func TestStore_RotationNumbering(t *testing.T) {
	s := newTestStore(t)

	for i := range 3 {
		mustWait(t, s.AppendString(fmt.Sprintf("batch-%d", i)))
		mustWait(t, s.Rotate())
	}

	artifacts := mustWait(t, s.Artifacts())
	require.Len(t, artifacts, 3)
	seen := make(map[int]bool)
	for i, a := range artifacts {
		assert.Equal(t, xrotate.RoleRotated, a.Role)
		assert.False(t, seen[a.Sequence], "duplicate sequence %d", a.Sequence)
		seen[a.Sequence] = true
		assert.Equal(t, fmt.Sprintf("batch-%d\n", i), readFile(t, a.Path))
	}
	assert.NoFileExists(t, s.ActivePath())
}

func TestStore_RotationSkipsOccupiedNames(t *testing.T) {
	dir := t.TempDir()
	l := xrotate.DefaultLayout()
	occupied := filepath.Join(dir, l.RotatedName(1))
	require.NoError(t, os.WriteFile(occupied, []byte("old\n"), 0o600))

	s := newTestStore(t, WithDir(dir))
	mustWait(t, s.AppendString("new"))
	mustWait(t, s.Rotate())

	assert.Equal(t, "old\n", readFile(t, occupied))
	assert.Equal(t, "new\n", readFile(t, filepath.Join(dir, l.RotatedName(2))))
}

func TestStore_RotateEmpty(t *testing.T) {
	s := newTestStore(t)

	mustWait(t, s.Rotate())
	assert.Empty(t, mustWait(t, s.Artifacts()))
}

func TestStore_ConcurrentAppend(t *testing.T) {
	const (
		writers = 8
		perW    = 50
	)
	s := newTestStore(t, WithThreshold(512))

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perW {
				s.AppendString(fmt.Sprintf("w%d-%03d", w, i))
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(mustWait(t, s.ReadAll()), "\n"), "\n")
	require.Len(t, lines, writers*perW)

	// 每个写入方自己的记录保持提交顺序
	next := make(map[int]int)
	for _, line := range lines {
		var w, i int
		_, err := fmt.Sscanf(line, "w%d-%03d", &w, &i)
		require.NoError(t, err, line)
		assert.Equal(t, next[w], i, "writer %d out of order", w)
		next[w] = i + 1
	}
}

func TestStore_QueueFullBlocksProducer(t *testing.T) {
	s := newTestStore(t, WithQueueSize(1))
	release := blockWorker(t, s)
	defer release()

	s.AppendString("queued")

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		s.AppendString("blocked")
	}()

	select {
	case <-returned:
		t.Fatal("Append returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	<-returned
	assert.Equal(t, "queued\nblocked\n", mustWait(t, s.ReadAll()))
}

func TestStore_TryAppend(t *testing.T) {
	s := newTestStore(t, WithQueueSize(1))
	release := blockWorker(t, s)

	queued := s.TryAppend([]byte("queued"))
	_, err := s.TryAppend([]byte("rejected")).Wait(context.Background())
	require.ErrorIs(t, err, ErrQueueFull)

	release()
	mustWait(t, queued)
	assert.Equal(t, "queued\n", mustWait(t, s.ReadAll()))

	require.NoError(t, s.Close(context.Background()))
	_, err = s.TryAppend([]byte("late")).Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_Close(t *testing.T) {
	t.Run("drains queued jobs", func(t *testing.T) {
		s := newTestStore(t)
		futures := make([]*Future[int], 0, 20)
		for i := range 20 {
			futures = append(futures, s.AppendString(fmt.Sprintf("r%d", i)))
		}
		require.NoError(t, s.Close(context.Background()))

		for _, f := range futures {
			assert.True(t, f.Ready())
			_, err := f.Wait(context.Background())
			assert.NoError(t, err)
		}
		assert.Len(t, strings.Split(strings.TrimSpace(readFile(t, s.ActivePath())), "\n"), 20)
	})

	t.Run("operations after close", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Close(context.Background()))
		assert.ErrorIs(t, s.Close(context.Background()), ErrClosed)

		f := s.AppendString("late")
		assert.True(t, f.Ready())
		_, err := f.Wait(context.Background())
		assert.ErrorIs(t, err, ErrClosed)

		_, err = s.ReadAll().Wait(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		_, err = s.ClearAll().Wait(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		_, err = s.Export("").Wait(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		_, err = s.Upload(context.Background(), "http://example.com").Wait(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		assert.NoFileExists(t, s.ActivePath())
	})

	t.Run("context bounds wait only", func(t *testing.T) {
		s := newTestStore(t)
		release := blockWorker(t, s)
		f := s.AppendString("pending")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)

		release()
		mustWait(t, f)
		<-s.done
		assert.Equal(t, "pending\n", readFile(t, s.ActivePath()))
	})
}

func TestStore_JobPanic(t *testing.T) {
	s := newTestStore(t)

	_, err := submit(s, "boom", func(context.Context) (int, error) {
		panic("kaboom")
	}).Wait(context.Background())
	require.ErrorIs(t, err, ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, uint64(1), s.ErrorCount())

	// worker 仍然可用
	mustWait(t, s.AppendString("after panic"))
	assert.Equal(t, "after panic\n", mustWait(t, s.ReadAll()))
}

func TestStore_OnError(t *testing.T) {
	t.Run("panicking callback isolated", func(t *testing.T) {
		s := newTestStore(t, WithOnError(func(error) { panic("callback") }))
		s.report(errors.New("advisory"))
		require.NoError(t, s.Close(context.Background()))
		assert.Equal(t, uint64(2), s.ErrorCount())
	})

	t.Run("nil error ignored", func(t *testing.T) {
		called := false
		s := newTestStore(t, WithOnError(func(error) { called = true }))
		s.report(nil)
		assert.False(t, called)
		assert.Zero(t, s.ErrorCount())
	})
}

func TestStore_OnErrorMayAppend(t *testing.T) {
	dir := t.TempDir()
	// 活动文件位置被目录占据，每次追加都失败
	require.NoError(t, os.Mkdir(filepath.Join(dir, "devlog.log"), 0o750))

	var (
		s     *Store
		calls atomic.Int32
	)
	s = newTestStore(t, WithDir(dir), WithQueueSize(1), WithOnError(func(error) {
		if calls.Add(1) == 1 {
			s.AppendString("from callback 1")
			s.AppendString("from callback 2")
		}
	}))

	_, err := s.AppendString("x").Wait(context.Background())
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	content, err := s.ReadAll().Wait(ctx)
	require.NoError(t, err, "worker must stay responsive")
	assert.Empty(t, content)

	// 第一次回调追加的两条记录同样失败并各自回调一次
	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, uint64(3), s.ErrorCount())
}

func TestStore_OnErrorBacklogDropped(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	s := newTestStore(t, WithOnError(func(error) {
		calls.Add(1)
		<-release
	}))

	// 回调阻塞期间 worker 继续上报，超出的通知被丢弃
	for i := 0; i < noticeBuffer*2; i++ {
		mustWait(t, submit(s, "report", func(context.Context) (struct{}, error) {
			s.report(errors.New("advisory"))
			return struct{}{}, nil
		}))
	}
	assert.Equal(t, uint64(noticeBuffer*2), s.ErrorCount())

	close(release)
	require.NoError(t, s.Close(context.Background()))
	assert.LessOrEqual(t, calls.Load(), int32(noticeBuffer+1))
	assert.Positive(t, calls.Load())
}

func TestStore_AppendRecreatesDeletedActive(t *testing.T) {
	s := newTestStore(t)
	mustWait(t, s.AppendString("first"))
	require.NoError(t, os.Remove(s.ActivePath()))

	mustWait(t, s.AppendString("second"))
	assert.Equal(t, "second\n", readFile(t, s.ActivePath()))
}

// recordingObserver 记录每个 span 的操作名与结果
type recordingObserver struct {
	mu    sync.Mutex
	spans []string
	errs  []error
}

func (o *recordingObserver) Start(ctx context.Context, opts xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
	return ctx, &recordingSpan{obs: o, op: opts.Component + "." + opts.Operation}
}

func (o *recordingObserver) operations() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.spans...)
}

type recordingSpan struct {
	obs *recordingObserver
	op  string
}

func (s *recordingSpan) End(result xmetrics.Result) {
	s.obs.mu.Lock()
	defer s.obs.mu.Unlock()
	s.obs.spans = append(s.obs.spans, s.op)
	s.obs.errs = append(s.obs.errs, result.Err)
}

func TestStore_Observer(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStore(t, WithObserver(obs))

	mustWait(t, s.AppendString("x"))
	mustWait(t, s.ReadAll())
	mustWait(t, s.ClearAll())

	assert.Equal(t, []string{"xlogfile.append", "xlogfile.read_all", "xlogfile.clear_all"}, obs.operations())
}

func TestStore_RotationExhausted(t *testing.T) {
	dir := t.TempDir()
	l := xrotate.Layout{Prefix: "devlog", Ext: ".log", Width: 1}
	for seq := 1; seq <= l.MaxSequence(); seq++ {
		seed(t, dir, map[string]string{l.RotatedName(seq): "old\n"})
	}

	var reported []error
	s := newTestStore(t, WithDir(dir), WithLayout(l), WithThreshold(1),
		WithOnError(func(err error) { reported = append(reported, err) }))

	mustWait(t, s.AppendString("first"))
	n, err := s.AppendString("second").Wait(context.Background())
	assert.Equal(t, len("second"), n)
	require.ErrorIs(t, err, ErrRotationExhausted)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "rotate", we.Op)

	// 记录仍写入活动文件
	assert.Equal(t, "first\nsecond\n", readFile(t, s.ActivePath()))
	require.NoError(t, s.Close(context.Background()))
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrRotationExhausted)
}
