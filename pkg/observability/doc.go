// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化诊断日志，基于 log/slog 扩展
//   - xmetrics: 统一可观测性接口（指标、追踪）
//   - xrotate: 日志文件轮转（序号轮转与 lumberjack）
//   - xlogfile: 开发日志存储，追加、轮转、聚合、清理与上传
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 诊断日志与被管理的日志文件互不混写
//   - 所有文件变更经由单一串行点
package observability
