// Package xrotate 提供日志文件轮转功能。
//
// Rotator 接口定义了轮转器的核心行为（Write/Close/Rotate），所有实现并发安全。
//
// # 当前实现
//
//   - [NewSequence]: 按字节阈值轮转，备份文件使用零填充序号命名
//     （devlog.000001.log），每次 Write 视为一条记录并在返回前 fsync
//   - [NewLumberjack]: 基于 lumberjack v2 的按 MB 轮转，备份按时间戳命名
//
// # 序号命名
//
// [Layout] 固定了活动文件与备份文件的命名方式。序号宽度固定，
// 因此按文件名字典序排序与按序号排序一致，活动文件总是排在最后。
// 新备份取当前未被占用的最小序号（从 1 开始线性探测）。
//
// # 轮转语义
//
// 轮转在写入之前检查：活动文件大小 >= 阈值时先重命名，再写入新文件。
// 重命名失败时轮转是建议性的，记录仍追加到超限的活动文件，错误通过
// OnError 回调上报；序号耗尽时记录同样写入，但 Write 返回
// [ErrRotationExhausted]（包装在 [*WriteError] 中）。
//
// # 扩展新实现
//
//  1. 创建新文件实现 Rotator 接口
//  2. 定义独立的 Config 和 Option
//  3. 提供独立的构造函数
//  4. 不修改 Rotator 接口
package xrotate
