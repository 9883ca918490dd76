// Package xlogfile 管理设备端日志文件的完整生命周期。
//
// 一个 [Store] 对应一个存储目录和一个串行化点：所有文件系统操作
// （追加、轮转、聚合读取、清理、导出、上传后的删除）都由同一个 worker
// goroutine 按 FIFO 顺序执行，调用方通过 [Future] 异步获取结果。
//
// # 文件布局
//
// 活动文件固定名为 devlog.log；超过阈值（默认 100 KiB）后在下一次写入前
// 重命名为 devlog.NNNNNN.log，序号取当前未占用的最小正整数，定宽补零，
// 保证字典序等于创建顺序，活动文件排在最后。
//
// # 基本用法
//
//	store, err := xlogfile.New(xlogfile.WithLocation(xlogfile.FixedDir("/var/log/app")))
//	if err != nil {
//	    return err
//	}
//	defer store.Close(context.Background())
//
//	store.AppendString("boot ok")                // fire-and-forget
//	all, err := store.ReadAll().Wait(ctx)         // 聚合全部文件
//	resp, err := store.Upload(ctx, url).Wait(ctx) // 成功后删除本地活动文件
//
// # 上传语义
//
// 只有传输层确认成功后才删除本地活动文件；任何失败都保证本地文件不变。
// 上传期间新追加的记录会被保留（只截掉已上传的前缀）。
// 网络 I/O 不占用串行化点，挂起的上传不阻塞追加。
// 同一目标的并发上传会被合并为一次。
//
// # 尽力而为
//
// [Recorder] 是面向业务代码的外层：格式化消息并吞掉所有写入错误，
// 错误只通过回调和计数暴露，日志永远不会中断宿主程序。
//
// ClearAll 与并发追加之间存在可接受的竞争：在清理任务之前入队的记录会被删除，
// 之后入队的记录会保留。
package xlogfile
