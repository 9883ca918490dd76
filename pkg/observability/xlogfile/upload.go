package xlogfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/observability/xmetrics"
	"github.com/omeyang/xdevlog/pkg/util/xfile"
)

// snapshot 上传时读取的活动文件内容
type snapshot struct {
	data []byte
	info os.FileInfo
}

// Upload 上传活动文件，成功后删除本地已上传的内容
//
// 步骤：在 worker 上读取活动文件（不存在返回 [ErrNotFound]，空文件照常上传）→ 校验目标地址
// （[ErrInvalidDestination]）→ 在 worker 之外调用传输层 → 失败返回包装了原因的
// [ErrTransport]，本地文件保持不变 → 成功后回到 worker 删除已上传内容。
//
// 上传期间追加的记录会保留；活动文件在上传期间被轮转时已上传内容留在轮转文件中
// （宁可重复，不可丢失）。同一目标的并发调用合并为一次。
// ctx 传递给传输层；传输成功后的本地删除不受 ctx 取消影响。
func (s *Store) Upload(ctx context.Context, destination string) *Future[*Response] {
	f := newFuture[*Response]()
	go func() {
		v, err, _ := s.uploads.Do(destination, func() (any, error) {
			return s.upload(ctx, destination)
		})
		resp, _ := v.(*Response) //nolint:errcheck // 失败时为 nil
		f.resolve(resp, err)
	}()
	return f
}

func (s *Store) upload(ctx context.Context, destination string) (resp *Response, err error) {
	ctx, span := xmetrics.Start(ctx, s.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "upload",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("destination", xlog.Destination(destination).Value.String())},
	})
	var size int
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("bytes", size)}})
	}()

	snap, err := submit(s, "upload.read", s.readActive).Wait(ctx)
	if err != nil {
		return nil, err
	}
	size = len(snap.data)

	if err := validateDestination(destination); err != nil {
		return nil, err
	}

	resp, err = s.transport.Post(ctx, destination, snap.data, ContentTypeText)
	if err != nil {
		s.logger.Warn(ctx, "upload failed, active log kept",
			xlog.Destination(destination), xlog.Bytes(int64(size)), xlog.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp == nil {
		resp = &Response{}
	}

	_, err = submit(s, "upload.commit", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.commitUpload(ctx, snap)
	}).Wait(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error(ctx, "upload succeeded but local cleanup failed",
			xlog.Destination(destination), xlog.Err(err))
		return resp, fmt.Errorf("%w: %w", ErrCommit, err)
	}

	s.logger.Info(ctx, "log uploaded",
		xlog.Destination(destination), xlog.Bytes(int64(size)), xlog.StatusCode(resp.StatusCode))
	return resp, nil
}

// readActive 读取活动文件与其元数据，调用方在 worker 上
func (s *Store) readActive(context.Context) (snapshot, error) {
	path := s.rotator.ActivePath()
	//#nosec G304 -- 路径由目录与固定布局拼接而成
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot{}, ErrNotFound
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // 只读文件

	info, err := f.Stat()
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	data := make([]byte, info.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return snapshot{}, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
	}
	return snapshot{data: data, info: info}, nil
}

// commitUpload 删除已上传的内容，调用方在 worker 上
//
// 只有活动文件仍是上传时的同一文件且以已上传内容开头时才修改它：
// 长度相同则删除，变长则只保留上传之后追加的部分。
// 其余情况（已被轮转、清理或外部修改）保持不动。
func (s *Store) commitUpload(ctx context.Context, snap snapshot) error {
	path := s.rotator.ActivePath()
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !os.SameFile(info, snap.info) {
		s.logger.Warn(ctx, "active log replaced during upload, uploaded records kept", xlog.Path(path))
		return nil
	}

	//#nosec G304 -- 路径由目录与固定布局拼接而成
	current, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(current, snap.data) {
		s.logger.Warn(ctx, "active log modified during upload, uploaded records kept", xlog.Path(path))
		return nil
	}

	if len(current) == len(snap.data) {
		_, err := xfile.RemoveIfExists(path)
		return err
	}

	tail := current[len(snap.data):]
	s.logger.Debug(ctx, "keeping records appended during upload", xlog.Bytes(int64(len(tail))))
	return xfile.WriteFileAtomic(path, tail, s.fileMode)
}

// validateDestination 目标必须是带主机名的 http/https 绝对地址
func validateDestination(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDestination)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDestination, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDestination, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidDestination)
	}
	return nil
}
