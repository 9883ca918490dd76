// Package xlog 基于 log/slog 的结构化诊断日志。
//
// xlog 服务于日志设施自身：记录轮转失败、跳过的文件、上传结果等内部事件。
// 设备日志本身由 xlogfile 写入，二者互不混用，避免诊断日志递归写入设备日志。
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，Build 返回该错误）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevel(xlog.LevelDebug).
//		SetFormat("json").
//		SetRotation("/var/log/xlogctl.log").
//		Build()
//	defer cleanup()
//
// [Discard] 返回丢弃一切输出的 Logger，作为库内部的默认值。
//
// # 日志级别
//
// LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// Level 实现 encoding.TextUnmarshaler，可直接出现在 koanf 配置结构体中。
//
// # 便捷属性
//
// [Err]、[Duration]、[Component]、[Operation]、[Count]、[Path]、[Bytes]、
// [Sequence]、[Destination]、[StatusCode]。
package xlog
