package xconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// koanfConfig 是 Config 接口的 koanf 实现。
type koanfConfig struct {
	k      atomic.Pointer[koanf.Koanf]
	layers []string // 声明的全部配置层
	loaded atomic.Pointer[[]string]
	opts   *Options
	reload sync.Mutex // 串行化 Reload，防止配置回退
}

// New 从单个配置文件创建配置，根据扩展名检测格式。
func New(path string, opts ...Option) (Config, error) {
	return NewLayered([]string{path}, opts...)
}

// NewLayered 按顺序加载多个配置文件，后面的层覆盖前面的层。
func NewLayered(paths []string, opts ...Option) (Config, error) {
	if len(paths) == 0 {
		return nil, ErrEmptyPath
	}
	for _, p := range paths {
		if p == "" {
			return nil, ErrEmptyPath
		}
		if _, err := detectFormat(p); err != nil {
			return nil, err
		}
	}

	c := &koanfConfig{
		layers: slices.Clone(paths),
		opts:   applyOptions(opts),
	}
	if err := c.loadFiles(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromBytes 从字节数据创建配置，需要显式指定格式。
// 空数据创建空配置，Unmarshal 得到目标结构体的零值。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}

	c := &koanfConfig{opts: applyOptions(opts)}
	k := koanf.New(c.opts.Delim)
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
	}
	c.k.Store(k)
	c.loaded.Store(&[]string{})
	return c, nil
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Client 返回当前配置快照。
func (c *koanfConfig) Client() *koanf.Koanf {
	return c.k.Load()
}

// Unmarshal 将 path 下的配置反序列化到 target。
func (c *koanfConfig) Unmarshal(path string, target any) error {
	if err := c.k.Load().UnmarshalWithConf(path, target, koanf.UnmarshalConf{
		Tag: c.opts.Tag,
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload 重新加载全部配置层，失败时保留旧配置。
func (c *koanfConfig) Reload() error {
	if c.layers == nil {
		return ErrNotReloadable
	}
	c.reload.Lock()
	defer c.reload.Unlock()
	return c.loadFiles()
}

// Paths 返回实际加载的配置文件。
func (c *koanfConfig) Paths() []string {
	return slices.Clone(*c.loaded.Load())
}

// loadFiles 读取并合并全部层，成功后原子替换快照
func (c *koanfConfig) loadFiles() error {
	k := koanf.New(c.opts.Delim)
	loaded := make([]string, 0, len(c.layers))

	for _, path := range c.layers {
		//#nosec G304 -- 配置路径由调用方提供
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) && c.opts.Optional {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		format, err := detectFormat(path)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			if err := loadData(k, data, format); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		loaded = append(loaded, path)
	}

	c.k.Store(k)
	c.loaded.Store(&loaded)
	return nil
}

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

// loadData 把一层数据合并进 k。
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
