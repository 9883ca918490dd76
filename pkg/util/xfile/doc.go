// Package xfile 提供日志目录相关的文件系统工具。
//
// # 路径安全函数对比
//
//   - SanitizePath: 检查路径格式，防止相对路径穿越，不限制目标目录
//   - SafeJoin: 确保结果路径始终在指定的 base 目录内，用于处理调用方给定的文件名
//
// 路径穿越检测使用精确的路径段匹配，只有 ".." 作为独立路径段时才被视为穿越：
//
//	SafeJoin("/var/log", "..config")      // ✓ 合法 -> "/var/log/..config"
//	SafeJoin("/var/log", "../etc/passwd") // ✗ 拒绝 -> 路径穿越
//
// # 原子写入
//
// [WriteFileAtomic] 先写同目录临时文件并 fsync，再 rename 覆盖目标，
// 读者要么看到旧内容，要么看到完整的新内容。
//
// # 错误处理
//
// 预定义错误变量支持 [errors.Is] 判断：
//
//	_, err := xfile.SafeJoin("/var/log", "../etc/passwd")
//	if errors.Is(err, xfile.ErrPathTraversal) {
//	    // 处理路径穿越
//	}
package xfile
