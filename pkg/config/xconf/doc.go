// Package xconf 基于 koanf 的分层配置加载器。
//
// # 分层
//
// NewLayered 按顺序加载多个配置文件，后加载的层覆盖先加载的同名键：
//
//	cfg, err := xconf.NewLayered([]string{
//	    "/etc/xdevlog/config.yaml",   // 系统默认
//	    userConfigPath,              // 用户覆盖
//	}, xconf.WithOptional())
//
// 每一层根据扩展名检测格式（.yaml/.yml 或 .json），不同层可以使用不同格式。
// WithOptional 时不存在的文件被跳过；否则任何一层缺失都返回 [ErrLoadFailed]。
//
// # 并发安全
//
// Reload 重新读取全部层，解析成功后原子替换内部的 koanf 实例；解析失败时保留旧配置。
// Client 返回的实例是快照，Reload 之后仍可使用但数据已过期，建议每次使用时重新获取。
//
// # Unmarshal
//
// Unmarshal 使用 mapstructure 反序列化，默认允许弱类型转换
// （例如字符串 "8080" 可转为 int 8080）。
package xconf
