package xlogfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/omeyang/xdevlog/pkg/util/xfile"
)

// DefaultSubdir TempDir 默认使用的子目录名
const DefaultSubdir = "xdevlog"

// Location 解析日志存储目录
type Location interface {
	Dir() (string, error)
}

// LocationFunc 函数形式的 Location
type LocationFunc func() (string, error)

// Dir 实现 Location
func (f LocationFunc) Dir() (string, error) { return f() }

// FixedDir 固定目录，末尾的路径分隔符会被忽略
func FixedDir(dir string) Location {
	return LocationFunc(func() (string, error) {
		return xfile.SanitizePath(strings.TrimRight(dir, `/\`))
	})
}

// TempDir 系统临时目录下的子目录，sub 为空时使用 [DefaultSubdir]
func TempDir(sub string) Location {
	return LocationFunc(func() (string, error) {
		if sub == "" {
			sub = DefaultSubdir
		}
		return xfile.SafeJoin(os.TempDir(), sub)
	})
}

// UserCacheDir 用户缓存目录下的子目录，sub 为空时使用 [DefaultSubdir]
func UserCacheDir(sub string) Location {
	return LocationFunc(func() (string, error) {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		if sub == "" {
			sub = DefaultSubdir
		}
		return xfile.SafeJoin(base, sub)
	})
}

// resolveDir 解析并规范化目录
func resolveDir(loc Location) (string, error) {
	dir, err := loc.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}
