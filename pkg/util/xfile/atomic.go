package xfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic 原子地写入整个文件。
//
// 数据先写入同目录下的临时文件并 fsync，再 rename 到 path。
// 失败时临时文件会被删除，path 保持原状。
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	cleaned, err := SanitizePath(path)
	if err != nil {
		return err
	}

	dir, base := filepath.Split(cleaned)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("xfile: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()        //nolint:errcheck // 已有更重要的错误
			_ = os.Remove(tmpName) //nolint:errcheck // 尽力清理
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("xfile: write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("xfile: sync temp file: %w", err)
	}
	//#nosec G302 -- 权限由调用方决定
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("xfile: chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("xfile: close temp file: %w", err)
	}
	if err = os.Rename(tmpName, cleaned); err != nil {
		return fmt.Errorf("xfile: rename temp file: %w", err)
	}
	return nil
}

// RemoveIfExists 删除文件，文件不存在不视为错误。
//
// 返回值 removed 表示本次调用是否真正删除了文件。
func RemoveIfExists(path string) (removed bool, err error) {
	err = os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
