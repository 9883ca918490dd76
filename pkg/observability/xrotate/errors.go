package xrotate

import (
	"errors"
	"fmt"
)

// 配置校验错误
var (
	// ErrEmptyFilename 文件名为空
	ErrEmptyFilename = errors.New("xrotate: filename is required")

	// ErrEmptyDir 日志目录为空
	ErrEmptyDir = errors.New("xrotate: directory is required")

	// ErrInvalidMaxSize MaxSizeMB 值无效（必须在 1~10240 范围内）
	ErrInvalidMaxSize = errors.New("xrotate: invalid MaxSizeMB")

	// ErrInvalidMaxBackups MaxBackups 值无效（必须在 0~1024 范围内）
	ErrInvalidMaxBackups = errors.New("xrotate: invalid MaxBackups")

	// ErrInvalidMaxAge MaxAgeDays 值无效（必须在 0~3650 范围内）
	ErrInvalidMaxAge = errors.New("xrotate: invalid MaxAgeDays")

	// ErrNoCleanupPolicy MaxBackups 和 MaxAgeDays 不能同时为 0
	ErrNoCleanupPolicy = errors.New("xrotate: no cleanup policy configured")

	// ErrInvalidThreshold 轮转阈值必须 > 0
	ErrInvalidThreshold = errors.New("xrotate: invalid rotation threshold")

	// ErrInvalidLayout 文件命名布局无效
	ErrInvalidLayout = errors.New("xrotate: invalid layout")

	// ErrInvalidFileMode FileMode 包含非权限位（仅允许低 9 位 0000~0777）
	ErrInvalidFileMode = errors.New("xrotate: invalid FileMode")
)

// 运行期错误
var (
	// ErrClosed 轮转器已关闭
	ErrClosed = errors.New("xrotate: rotator is closed")

	// ErrRotationExhausted 序号空间已满，找不到可用的备份文件名
	ErrRotationExhausted = errors.New("xrotate: no free rotation sequence")
)

// WriteError 文件系统拒绝了写入或轮转
//
// Op 取值：stat、rotate、open、write、sync。
// 通过 errors.As 获取；Unwrap 返回底层错误，
// 因此 errors.Is(err, ErrRotationExhausted) 等判断仍然有效。
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("xrotate: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
