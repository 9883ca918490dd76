package xlogfile

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// 身份字段缺失时的占位值
const (
	UnknownApp     = "UnknownApp"
	UnknownVersion = "?.?.?"
	UnknownField   = "?"
)

// Identity 用于装饰日志行的设备/应用身份，只读
type Identity struct {
	AppName     string
	AppVersion  string
	Build       string
	DeviceID    string
	DeviceModel string
	OS          string
	TimeZone    string
}

// withDefaults 填充缺失字段
func (i Identity) withDefaults() Identity {
	if i.AppName == "" {
		i.AppName = UnknownApp
	}
	if i.AppVersion == "" {
		i.AppVersion = UnknownVersion
	}
	for _, f := range []*string{&i.Build, &i.DeviceID, &i.DeviceModel, &i.OS} {
		if *f == "" {
			*f = UnknownField
		}
	}
	if i.TimeZone == "" {
		i.TimeZone = time.Local.String()
	}
	return i
}

// IdentityProvider 提供身份信息
type IdentityProvider interface {
	Identity() Identity
}

// StaticIdentity 固定身份
type StaticIdentity Identity

// Identity 实现 IdentityProvider
func (s StaticIdentity) Identity() Identity { return Identity(s) }

// HostIdentity 从当前主机推断设备信息，结果只计算一次
//
// DeviceID 取主机名，DeviceModel 取 CPU 架构，OS 取操作系统，TimeZone 取本地时区缩写。
func HostIdentity(app, version, build string) IdentityProvider {
	return hostIdentity{load: sync.OnceValue(func() Identity {
		host, _ := os.Hostname() //nolint:errcheck // 失败时使用占位值
		zone, _ := time.Now().Zone()
		return Identity{
			AppName:     app,
			AppVersion:  version,
			Build:       build,
			DeviceID:    host,
			DeviceModel: runtime.GOARCH,
			OS:          runtime.GOOS,
			TimeZone:    zone,
		}
	})}
}

type hostIdentity struct {
	load func() Identity
}

func (h hostIdentity) Identity() Identity { return h.load() }

// Caller 日志调用位置
type Caller struct {
	File     string
	Line     int
	Function string
}

// CallerAt 返回调用栈上第 skip 层的位置（0 为 CallerAt 的调用方）
func CallerAt(skip int) Caller {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Caller{File: UnknownField, Function: UnknownField}
	}
	fn := UnknownField
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
		// 去掉包路径：github.com/x/y/pkg.(*T).Method → (*T).Method
		if i := strings.LastIndexByte(fn, '/'); i >= 0 {
			fn = fn[i+1:]
		}
		if i := strings.IndexByte(fn, '.'); i >= 0 {
			fn = fn[i+1:]
		}
	}
	return Caller{File: filepath.Base(file), Line: line, Function: fn}
}

// Formatter 渲染日志行
//
//	[2026-01-02T15:04:05Z][App][1.2.3][CST][linux][main.go:42 → main] message
type Formatter struct {
	identity IdentityProvider
	now      func() time.Time
}

// NewFormatter 创建 Formatter，p 为 nil 时所有身份字段使用占位值
func NewFormatter(p IdentityProvider) *Formatter {
	if p == nil {
		p = StaticIdentity{}
	}
	return &Formatter{identity: p, now: time.Now}
}

// Format 渲染一条日志行（不含换行）
func (f *Formatter) Format(msg string, c Caller) string {
	id := f.identity.Identity().withDefaults()

	var b strings.Builder
	b.Grow(len(msg) + 96)
	b.WriteByte('[')
	b.WriteString(f.now().UTC().Format(time.RFC3339))
	for _, field := range []string{id.AppName, id.AppVersion, id.TimeZone, id.OS} {
		b.WriteString("][")
		b.WriteString(field)
	}
	b.WriteString("][")
	b.WriteString(c.File)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(c.Line))
	b.WriteString(" → ")
	b.WriteString(c.Function)
	b.WriteString("] ")
	b.WriteString(msg)
	return b.String()
}
