package xconf

import "github.com/knadh/koanf/v2"

// Format 配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（.yaml/.yml）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式（.json）。
	FormatJSON Format = "json"
)

// Config 已加载的配置。
// 只提供增值功能，基础操作请直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回当前配置快照对应的 koanf 实例。
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置反序列化到 target，path 为空时反序列化整个配置。
	Unmarshal(path string, target any) error

	// Reload 重新加载全部配置层，并发安全。
	// 从字节数据创建的 Config 返回 [ErrNotReloadable]。
	Reload() error

	// Paths 返回实际加载的配置文件（跳过的可选层不在其中）。
	Paths() []string
}

// MustUnmarshal 与 Config.Unmarshal 相同，但失败时 panic。
// 适用于程序启动时的必要配置加载。
func MustUnmarshal(cfg Config, path string, target any) {
	if err := cfg.Unmarshal(path, target); err != nil {
		panic(err)
	}
}
