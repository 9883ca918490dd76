package xrotate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xdevlog/pkg/util/xfile"
)

// DefaultThreshold 默认轮转阈值（100 KiB）
const DefaultThreshold int64 = 100 * 1024

// defaultFileMode 日志文件默认权限
const defaultFileMode os.FileMode = 0o600

// sequenceConfig 序号轮转器配置
type sequenceConfig struct {
	layout    Layout
	threshold int64
	fileMode  os.FileMode
	onError   func(error)
}

// SequenceOption 序号轮转器配置选项
type SequenceOption func(*sequenceConfig)

// WithThreshold 设置轮转阈值（字节）
func WithThreshold(bytes int64) SequenceOption {
	return func(c *sequenceConfig) {
		c.threshold = bytes
	}
}

// WithLayout 设置文件命名布局
func WithLayout(l Layout) SequenceOption {
	return func(c *sequenceConfig) {
		c.layout = l
	}
}

// WithSequenceFileMode 设置新建日志文件的权限（默认 0600）
func WithSequenceFileMode(mode os.FileMode) SequenceOption {
	return func(c *sequenceConfig) {
		c.fileMode = mode
	}
}

// WithSequenceOnError 设置建议性错误（如轮转重命名失败）的回调
//
// 回调不得向同一 Rotator 写入数据，否则会导致死锁。
func WithSequenceOnError(fn func(error)) SequenceOption {
	return func(c *sequenceConfig) {
		c.onError = fn
	}
}

// SequenceRotator 按字节阈值轮转、按序号命名备份的 Rotator
//
// 每次 Write 视为一条记录：检查轮转 → 追加记录与换行 → fsync，
// 三步在同一把锁内完成，并发写入不会交错，也不会与轮转竞争。
// 文件按需打开、写完即关闭，活动文件被外部删除后下一次写入自动重建。
type SequenceRotator struct {
	dir      string
	layout   Layout
	policy   Policy
	fileMode os.FileMode
	onError  func(error)

	mu     sync.Mutex
	closed atomic.Bool

	// 可注入的系统调用（nil 时使用 os 标准库），仅用于测试
	renameFn func(oldpath, newpath string) error
}

var _ Rotator = (*SequenceRotator)(nil)

// NewSequence 创建序号轮转器
//
// dir 不存在时以 0750 创建。
func NewSequence(dir string, opts ...SequenceOption) (*SequenceRotator, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}

	cfg := sequenceConfig{
		layout:    DefaultLayout(),
		threshold: DefaultThreshold,
		fileMode:  defaultFileMode,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.threshold <= 0 {
		return nil, fmt.Errorf("%w: got %d, want > 0", ErrInvalidThreshold, cfg.threshold)
	}
	if err := cfg.layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.fileMode == 0 || cfg.fileMode&^os.FileMode(0o777) != 0 {
		return nil, fmt.Errorf("%w: got %04o, only permission bits (0001~0777) allowed",
			ErrInvalidFileMode, cfg.fileMode)
	}

	if err := xfile.EnsureDirPath(dir, xfile.DefaultDirPerm); err != nil {
		return nil, err
	}

	return &SequenceRotator{
		dir:      filepath.Clean(dir),
		layout:   cfg.layout,
		policy:   Policy{Threshold: cfg.threshold},
		fileMode: cfg.fileMode,
		onError:  cfg.onError,
	}, nil
}

// Dir 日志目录
func (r *SequenceRotator) Dir() string { return r.dir }

// Layout 命名布局
func (r *SequenceRotator) Layout() Layout { return r.layout }

// Threshold 轮转阈值（字节）
func (r *SequenceRotator) Threshold() int64 { return r.policy.Threshold }

// ActivePath 活动文件完整路径
func (r *SequenceRotator) ActivePath() string {
	return filepath.Join(r.dir, r.layout.ActiveName())
}

// Write 写入一条记录
//
// p 不以换行结尾时自动补一个换行。成功时返回 len(p)。
// 序号耗尽时记录仍会写入，返回 len(p) 与 [ErrRotationExhausted]。
func (r *SequenceRotator) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 后置检查：Close 可能在等锁期间完成
	if r.closed.Load() {
		return 0, ErrClosed
	}

	active := r.ActivePath()
	size, err := fileSize(active)
	if err != nil {
		return 0, &WriteError{Op: "stat", Path: active, Err: err}
	}

	var rotateErr error
	if r.policy.MaybeRotate(size) {
		if err := r.rotateLocked(); err != nil {
			// 设计决策: 轮转是建议性的，重命名失败时继续写入超限文件，
			// 只有序号耗尽作为错误返回给调用方。
			if errors.Is(err, ErrRotationExhausted) {
				rotateErr = err
			} else {
				r.reportError(err)
			}
		}
	}

	if err := r.appendLocked(active, p); err != nil {
		return 0, err
	}
	if rotateErr != nil {
		return len(p), rotateErr
	}
	return len(p), nil
}

// Rotate 手动触发轮转
//
// 活动文件不存在或为空时不做任何事。
func (r *SequenceRotator) Rotate() error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return ErrClosed
	}
	return r.rotateLocked()
}

// Close 关闭轮转器
//
// 关闭后调用 Write 或 Rotate 将返回 [ErrClosed]，重复调用 Close 也返回 [ErrClosed]。
// 文件按次打开，没有需要释放的句柄；Close 会等待进行中的写入完成。
func (r *SequenceRotator) Close() error {
	if r.closed.Swap(true) {
		return ErrClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return nil
}

// rotateLocked 将活动文件重命名为下一个空闲序号的备份文件，调用方持有 mu
func (r *SequenceRotator) rotateLocked() error {
	active := r.ActivePath()
	size, err := fileSize(active)
	if err != nil {
		return &WriteError{Op: "rotate", Path: active, Err: err}
	}
	if size == 0 {
		return nil
	}

	seq, err := NextSequence(r.dir, r.layout)
	if err != nil {
		return &WriteError{Op: "rotate", Path: active, Err: err}
	}

	rename := r.renameFn
	if rename == nil {
		rename = os.Rename
	}
	target := filepath.Join(r.dir, r.layout.RotatedName(seq))
	if err := rename(active, target); err != nil {
		return &WriteError{Op: "rotate", Path: target, Err: err}
	}
	return nil
}

// appendLocked 追加记录并 fsync，调用方持有 mu
func (r *SequenceRotator) appendLocked(path string, p []byte) error {
	record := p
	if len(p) == 0 || p[len(p)-1] != '\n' {
		record = make([]byte, len(p)+1)
		copy(record, p)
		record[len(p)] = '\n'
	}

	//#nosec G304 -- 路径由目录与固定布局拼接而成
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, r.fileMode)
	if err != nil {
		return &WriteError{Op: "open", Path: path, Err: err}
	}
	if _, err := f.Write(record); err != nil {
		_ = f.Close() //nolint:errcheck // 已有写入错误
		return &WriteError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close() //nolint:errcheck // 已有同步错误
		return &WriteError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// reportError 通过回调上报建议性错误
//
// 回调 panic 被 recover 隔离，防止错误通知反向中断写入。
func (r *SequenceRotator) reportError(err error) {
	if err != nil && r.onError != nil {
		defer func() { recover() }() //nolint:errcheck // recover 返回值无需检查
		r.onError(err)
	}
}

// fileSize 返回文件大小，文件不存在时返回 0
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
