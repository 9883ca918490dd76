package xlogfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
	"github.com/omeyang/xdevlog/pkg/util/xfile"
)

// Artifact 存储目录中的一个日志文件
type Artifact struct {
	Name     string
	Path     string
	Role     xrotate.Role
	Sequence int // 仅 RoleRotated 有效
	Size     int64
	ModTime  time.Time
}

// Artifacts 列出全部日志文件，按聚合顺序排列
func (s *Store) Artifacts() *Future[[]Artifact] {
	return submit(s, "artifacts", func(context.Context) ([]Artifact, error) {
		return s.scan()
	})
}

// ReadAll 按创建顺序拼接全部日志文件
//
// 轮转文件按序号升序，活动文件最后。无法读取的文件跳过并通过 OnError 上报。
// 没有任何日志文件时返回空字符串。
func (s *Store) ReadAll() *Future[string] {
	return submit(s, "read_all", func(ctx context.Context) (string, error) {
		data, err := s.aggregate(ctx)
		return string(data), err
	})
}

// Export 将聚合结果原子写入存储目录下的 name 文件，返回完整路径
//
// name 为空时使用默认导出名。name 必须是相对路径，不能逃逸出存储目录，
// 也不能与日志文件重名。导出文件不属于日志文件，不会被 ClearAll 删除。
func (s *Store) Export(name string) *Future[string] {
	if name == "" {
		name = s.exportName
	}
	path, err := s.exportPath(name)
	if err != nil {
		return resolvedFuture("", err)
	}
	return submit(s, "export", func(ctx context.Context) (string, error) {
		data, err := s.aggregate(ctx)
		if err != nil {
			return "", err
		}
		if err := xfile.EnsureDir(path); err != nil {
			return "", err
		}
		if err := xfile.WriteFileAtomic(path, data, s.fileMode); err != nil {
			return "", err
		}
		s.logger.Info(ctx, "logs exported", xlog.Path(path), xlog.Bytes(int64(len(data))))
		return path, nil
	})
}

// exportPath 校验导出文件名
func (s *Store) exportPath(name string) (string, error) {
	path, err := xfile.SafeJoin(s.dir, name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidExportName, err)
	}
	if _, _, ok := s.layout.Parse(filepath.Base(path)); ok {
		return "", fmt.Errorf("%w: %q collides with log files", ErrInvalidExportName, name)
	}
	return path, nil
}

// aggregate 读取并拼接全部日志文件，调用方在 worker 上
func (s *Store) aggregate(ctx context.Context) ([]byte, error) {
	artifacts, err := s.scan()
	if err != nil {
		return nil, err
	}

	var total int64
	for _, a := range artifacts {
		total += a.Size
	}
	var buf bytes.Buffer
	buf.Grow(int(total))

	for _, a := range artifacts {
		//#nosec G304 -- 路径来自存储目录枚举
		data, err := os.ReadFile(a.Path)
		if err != nil {
			// 文件在枚举后消失不算错误
			if !errors.Is(err, fs.ErrNotExist) {
				s.report(fmt.Errorf("%w: %s: %w", ErrRead, a.Name, err))
			}
			continue
		}
		buf.Write(data)
	}
	s.logger.Debug(ctx, "logs aggregated", xlog.Count(int64(len(artifacts))), xlog.Bytes(int64(buf.Len())))
	return buf.Bytes(), nil
}

// scan 枚举存储目录中的日志文件
//
// 目录不存在视为没有日志；非普通文件与不属于日志族的文件被忽略。
func (s *Store) scan() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRead, s.dir, err)
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		role, seq, ok := s.layout.Parse(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:     e.Name(),
			Path:     filepath.Join(s.dir, e.Name()),
			Role:     role,
			Sequence: seq,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	slices.SortFunc(artifacts, func(a, b Artifact) int {
		return s.layout.Compare(a.Name, b.Name)
	})
	return artifacts, nil
}
