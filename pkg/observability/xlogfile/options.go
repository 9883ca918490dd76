package xlogfile

import (
	"os"

	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/observability/xmetrics"
	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

// DefaultQueueSize 默认任务队列长度
const DefaultQueueSize = 1024

// DefaultExportName 默认导出文件名
const DefaultExportName = "devlog_full.log"

// options Store 配置
type options struct {
	location   Location
	threshold  int64
	layout     xrotate.Layout
	fileMode   os.FileMode
	queueSize  int
	exportName string
	transport  Transport
	logger     xlog.Logger
	observer   xmetrics.Observer
	onError    func(error)
}

// Option Store 配置选项
type Option func(*options)

func defaultOptions() options {
	return options{
		location:   TempDir(DefaultSubdir),
		threshold:  xrotate.DefaultThreshold,
		layout:     xrotate.DefaultLayout(),
		fileMode:   0o600,
		queueSize:  DefaultQueueSize,
		exportName: DefaultExportName,
	}
}

// WithLocation 设置存储目录（默认系统临时目录下的 xdevlog），nil 忽略
func WithLocation(loc Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithDir 等价于 WithLocation(FixedDir(dir))
func WithDir(dir string) Option {
	return WithLocation(FixedDir(dir))
}

// WithThreshold 设置轮转阈值（字节，默认 100 KiB）
func WithThreshold(bytes int64) Option {
	return func(o *options) {
		o.threshold = bytes
	}
}

// WithLayout 设置文件命名布局
func WithLayout(l xrotate.Layout) Option {
	return func(o *options) {
		o.layout = l
	}
}

// WithFileMode 设置日志文件权限（默认 0600）
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		o.fileMode = mode
	}
}

// WithQueueSize 设置任务队列长度（默认 1024），队列满时 Append 阻塞调用方
func WithQueueSize(n int) Option {
	return func(o *options) {
		o.queueSize = n
	}
}

// WithExportName 设置 Export 的默认文件名
func WithExportName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.exportName = name
		}
	}
}

// WithTransport 设置上传传输层（默认 [NewHTTPTransport]）
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithLogger 设置内部诊断日志（默认丢弃）
//
// 诊断日志永远不会写回 Store 自身。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置可观测性（默认空实现）
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithOnError 设置尽力而为路径上的错误回调
//
// 轮转重命名失败、聚合/清理跳过的文件、追加失败都会回调。
// 回调在独立的 goroutine 上按发生顺序执行，可以调用 Append 等方法；
// 回调处理不过来时超出的通知被丢弃。Close 返回前所有已排队的回调执行完毕。
func WithOnError(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
