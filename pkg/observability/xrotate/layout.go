package xrotate

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// 默认命名布局
const (
	// DefaultPrefix 默认文件名前缀
	DefaultPrefix = "devlog"

	// DefaultExt 默认扩展名
	DefaultExt = ".log"

	// DefaultWidth 默认序号宽度（最多 999999 个备份）
	DefaultWidth = 6

	// maxWidth 序号宽度上限，保证 MaxSequence 不溢出 int
	maxWidth = 9
)

// Role 日志文件角色
type Role int

const (
	// RoleActive 当前正在写入的活动文件（唯一）
	RoleActive Role = iota + 1

	// RoleRotated 已轮转的备份文件（只读）
	RoleRotated
)

// String 返回角色名称
func (r Role) String() string {
	switch r {
	case RoleActive:
		return "active"
	case RoleRotated:
		return "rotated"
	default:
		return "unknown"
	}
}

// Layout 日志文件命名布局
//
//	活动文件: <Prefix><Ext>              devlog.log
//	备份文件: <Prefix>.<序号><Ext>       devlog.000001.log
//
// 序号零填充到 Width 位。
type Layout struct {
	Prefix string
	Ext    string
	Width  int
}

// DefaultLayout 返回默认布局
func DefaultLayout() Layout {
	return Layout{Prefix: DefaultPrefix, Ext: DefaultExt, Width: DefaultWidth}
}

// Validate 校验布局
func (l Layout) Validate() error {
	if l.Prefix == "" {
		return fmt.Errorf("%w: prefix is required", ErrInvalidLayout)
	}
	if strings.ContainsAny(l.Prefix, "/\\\x00") {
		return fmt.Errorf("%w: prefix %q contains a path separator", ErrInvalidLayout, l.Prefix)
	}
	if !strings.HasPrefix(l.Ext, ".") || len(l.Ext) < 2 || strings.ContainsAny(l.Ext, "/\\\x00") {
		return fmt.Errorf("%w: ext %q must look like \".log\"", ErrInvalidLayout, l.Ext)
	}
	// 扩展名首字符若为数字，活动文件名会与备份文件名的字典序交错
	if c := l.Ext[1]; c >= '0' && c <= '9' {
		return fmt.Errorf("%w: ext %q must not start with a digit", ErrInvalidLayout, l.Ext)
	}
	if l.Width < 1 || l.Width > maxWidth {
		return fmt.Errorf("%w: width %d, want 1~%d", ErrInvalidLayout, l.Width, maxWidth)
	}
	return nil
}

// ActiveName 活动文件名
func (l Layout) ActiveName() string {
	return l.Prefix + l.Ext
}

// RotatedName 序号为 seq 的备份文件名
func (l Layout) RotatedName(seq int) string {
	return fmt.Sprintf("%s.%0*d%s", l.Prefix, l.Width, seq, l.Ext)
}

// MaxSequence 可用的最大序号（10^Width - 1）
func (l Layout) MaxSequence() int {
	n := 1
	for range l.Width {
		n *= 10
	}
	return n - 1
}

// Parse 判断文件名是否属于本布局的日志族
//
// 返回角色与序号（活动文件序号为 0）。
// 序号位数不等于 Width、含非数字或为 0 的名字不属于日志族。
func (l Layout) Parse(name string) (Role, int, bool) {
	if name == l.ActiveName() {
		return RoleActive, 0, true
	}
	head := l.Prefix + "."
	if len(name) != len(head)+l.Width+len(l.Ext) ||
		!strings.HasPrefix(name, head) || !strings.HasSuffix(name, l.Ext) {
		return 0, 0, false
	}
	digits := name[len(head) : len(head)+l.Width]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, 0, false
		}
	}
	seq, err := strconv.Atoi(digits)
	if err != nil || seq < 1 {
		return 0, 0, false
	}
	return RoleRotated, seq, true
}

// Compare 按创建顺序比较两个日志族文件名，用于 slices.SortFunc
//
// 备份文件按序号升序，活动文件排在最后；不属于日志族的名字排在最前并按字典序。
func (l Layout) Compare(a, b string) int {
	ka, kb := l.sortKey(a), l.sortKey(b)
	if c := cmp.Compare(ka, kb); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func (l Layout) sortKey(name string) int {
	role, seq, ok := l.Parse(name)
	switch {
	case !ok:
		return -1
	case role == RoleActive:
		return l.MaxSequence() + 1
	default:
		return seq
	}
}

// NextSequence 返回 dir 中未被占用的最小序号（>= 1）
//
// 线性探测：轮转频率低且目录很小，探测成本可以接受。
// 序号空间已满时返回 [ErrRotationExhausted]。
func NextSequence(dir string, l Layout) (int, error) {
	for seq := 1; seq <= l.MaxSequence(); seq++ {
		_, err := os.Lstat(filepath.Join(dir, l.RotatedName(seq)))
		if errors.Is(err, os.ErrNotExist) {
			return seq, nil
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, ErrRotationExhausted
}

// Policy 轮转策略：活动文件大小达到阈值时轮转
type Policy struct {
	Threshold int64
}

// MaybeRotate 判断写入下一条记录前是否需要轮转
func (p Policy) MaybeRotate(activeSize int64) bool {
	return activeSize >= p.Threshold
}
