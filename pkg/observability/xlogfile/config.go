package xlogfile

import (
	"fmt"
	"os"
	"strconv"

	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

// Config 可从配置文件加载的 Store 配置
//
// 零值字段使用默认值。
type Config struct {
	// Dir 存储目录，空值使用系统临时目录
	Dir string `koanf:"dir" json:"dir" yaml:"dir"`
	// Threshold 轮转阈值（字节）
	Threshold int64 `koanf:"threshold" json:"threshold" yaml:"threshold"`
	// Prefix 文件名前缀（默认 devlog）
	Prefix string `koanf:"prefix" json:"prefix" yaml:"prefix"`
	// Ext 文件扩展名（默认 .log）
	Ext string `koanf:"ext" json:"ext" yaml:"ext"`
	// Width 轮转序号宽度（默认 6）
	Width int `koanf:"width" json:"width" yaml:"width"`
	// FileMode 八进制权限字符串，如 "0640"
	FileMode string `koanf:"file_mode" json:"file_mode" yaml:"file_mode"`
	// QueueSize 任务队列长度
	QueueSize int `koanf:"queue_size" json:"queue_size" yaml:"queue_size"`
	// ExportName 默认导出文件名
	ExportName string `koanf:"export_name" json:"export_name" yaml:"export_name"`
	// Upload 上传配置
	Upload UploadConfig `koanf:"upload" json:"upload" yaml:"upload"`
}

// UploadConfig 上传相关配置
type UploadConfig struct {
	// URL 默认上传地址
	URL string `koanf:"url" json:"url" yaml:"url"`
	// Timeout 单次请求超时，如 "30s"
	Timeout string `koanf:"timeout" json:"timeout" yaml:"timeout"`
	// Retries 最大尝试次数（调用方重试使用）
	Retries int `koanf:"retries" json:"retries" yaml:"retries"`
}

// Options 转换为 Store 选项
func (c Config) Options() ([]Option, error) {
	var opts []Option
	if c.Dir != "" {
		opts = append(opts, WithDir(c.Dir))
	}
	if c.Threshold != 0 {
		opts = append(opts, WithThreshold(c.Threshold))
	}
	if c.Prefix != "" || c.Ext != "" || c.Width != 0 {
		l := xrotate.DefaultLayout()
		if c.Prefix != "" {
			l.Prefix = c.Prefix
		}
		if c.Ext != "" {
			l.Ext = c.Ext
		}
		if c.Width != 0 {
			l.Width = c.Width
		}
		if err := l.Validate(); err != nil {
			return nil, err
		}
		opts = append(opts, WithLayout(l))
	}
	if c.FileMode != "" {
		mode, err := strconv.ParseUint(c.FileMode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", xrotate.ErrInvalidFileMode, c.FileMode)
		}
		opts = append(opts, WithFileMode(os.FileMode(mode)))
	}
	if c.QueueSize != 0 {
		opts = append(opts, WithQueueSize(c.QueueSize))
	}
	if c.ExportName != "" {
		opts = append(opts, WithExportName(c.ExportName))
	}
	return opts, nil
}
