package xlogfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

// DefaultPollInterval Follow 的兜底轮询间隔
const DefaultPollInterval = time.Second

type followConfig struct {
	fromStart bool
	interval  time.Duration
	onReady   func()
}

// FollowOption Follow 配置选项
type FollowOption func(*followConfig)

// WithFromStart 先输出活动文件的现有内容
func WithFromStart() FollowOption {
	return func(c *followConfig) {
		c.fromStart = true
	}
}

// WithPollInterval 设置兜底轮询间隔（默认 1s）
//
// 部分文件系统（如网络挂载）不产生 fsnotify 事件，轮询保证最终可见。
func WithPollInterval(d time.Duration) FollowOption {
	return func(c *followConfig) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Follow 持续把活动文件新追加的内容写入 w，直到 ctx 结束
//
// 监视存储目录而不是活动文件本身：轮转、上传和清理都会替换活动文件。
// 两次读取之间发生的轮转不会丢失记录：先读完被轮转走的文件剩余部分，
// 再按序号输出期间新产生的轮转文件，最后从头读取新的活动文件。
// 上传或清理删除的内容不再输出；上传后保留的尾部写入新文件，可能重复输出。
// ctx 结束时返回 nil；Store 关闭时返回 [ErrClosed]。
func (s *Store) Follow(ctx context.Context, w io.Writer, opts ...FollowOption) error {
	cfg := followConfig{interval: DefaultPollInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xlogfile: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }() //nolint:errcheck // 只读监视
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("xlogfile: watch %s: %w", s.dir, err)
	}

	path := s.rotator.ActivePath()
	cur := &followCursor{store: s}
	if _, err := submit(s, "follow.start", func(context.Context) (struct{}, error) {
		return struct{}{}, cur.start(cfg.fromStart)
	}).Wait(ctx); err != nil {
		return ignoreCanceled(ctx, err)
	}

	pull := func() error {
		chunk, err := submit(s, "follow.read", func(context.Context) ([]byte, error) {
			return cur.read()
		}).Wait(ctx)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			return nil
		}
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("xlogfile: follow output: %w", err)
		}
		return nil
	}
	if err := pull(); err != nil {
		return ignoreCanceled(ctx, err)
	}
	if cfg.onReady != nil {
		cfg.onReady()
	}

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	active := filepath.Base(path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != active {
				continue
			}
			if err := pull(); err != nil {
				return ignoreCanceled(ctx, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// 事件丢失时依靠轮询补齐
			s.logger.Warn(ctx, "watch error", xlog.Path(s.dir), xlog.Err(err))

		case <-ticker.C:
			if err := pull(); err != nil {
				return ignoreCanceled(ctx, err)
			}
		}
	}
}

// ignoreCanceled ctx 结束导致的等待失败视为正常退出
func ignoreCanceled(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// followCursor Follow 的读取位置，只在 worker 上访问
type followCursor struct {
	store  *Store
	info   os.FileInfo         // 正在追踪的活动文件，nil 表示从新活动文件开头读
	offset int64               // info 已输出的字节数
	seen   map[int]os.FileInfo // 上次读取时已存在的轮转文件
}

// start 记录已有的轮转文件；fromStart 为 false 时跳过活动文件的现有内容
func (c *followCursor) start(fromStart bool) error {
	rotated, err := c.rotated()
	if err != nil {
		return err
	}
	c.seen = make(map[int]os.FileInfo, len(rotated))
	for _, r := range rotated {
		c.seen[r.seq] = r.info
	}
	if fromStart {
		return nil
	}

	path := c.store.rotator.ActivePath()
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	c.info, c.offset = info, info.Size()
	return nil
}

// read 返回上次读取之后追加的内容
func (c *followCursor) read() ([]byte, error) {
	rotated, err := c.rotated()
	if err != nil {
		return nil, err
	}

	var out []byte
	seen := make(map[int]os.FileInfo, len(rotated))
	for _, r := range rotated {
		seen[r.seq] = r.info
		if prev, ok := c.seen[r.seq]; ok && os.SameFile(prev, r.info) {
			continue
		}
		// 上次读取之后轮转出的文件：追踪中的文件从 offset 续读，其余整读
		var from int64
		if c.info != nil && os.SameFile(r.info, c.info) {
			from = c.offset
			c.info, c.offset = nil, 0
		}
		data, err := readFrom(r.path, from)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	c.seen = seen

	data, err := c.readActive(c.store.rotator.ActivePath())
	if err != nil {
		return nil, err
	}
	return append(out, data...), nil
}

// readActive 读取活动文件新追加的部分
func (c *followCursor) readActive(path string) ([]byte, error) {
	//#nosec G304 -- 路径由目录与固定布局拼接而成
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.info, c.offset = nil, 0
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // 只读文件

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	if c.info == nil || !os.SameFile(info, c.info) || info.Size() < c.offset {
		c.offset = 0
	}
	c.info = info
	if info.Size() == c.offset {
		return nil, nil
	}

	data := make([]byte, info.Size()-c.offset)
	n, err := f.ReadAt(data, c.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	c.offset += int64(n)
	return data[:n], nil
}

type rotatedFile struct {
	seq  int
	path string
	info os.FileInfo
}

// rotated 按序号升序列出轮转文件
func (c *followCursor) rotated() ([]rotatedFile, error) {
	artifacts, err := c.store.scan()
	if err != nil {
		return nil, err
	}
	files := make([]rotatedFile, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Role != xrotate.RoleRotated {
			continue
		}
		info, err := os.Stat(a.Path)
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{seq: a.Sequence, path: a.Path, info: info})
	}
	return files, nil
}

// readFrom 读取轮转文件 offset 之后的内容，文件已被删除时返回空
func readFrom(path string, offset int64) ([]byte, error) {
	//#nosec G304 -- 路径来自存储目录枚举
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	if offset > int64(len(data)) {
		return nil, nil
	}
	return data[offset:], nil
}
