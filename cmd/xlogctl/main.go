// xlogctl 是设备日志存储目录的命令行运维工具。
//
// 用法:
//
//	xlogctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-d, --dir        日志存储目录 (默认: 系统临时目录下的 xdevlog)
//	-c, --config     配置文件（YAML/JSON，可重复，后者覆盖前者）
//	    --threshold  轮转阈值（字节）
//	    --diag-log   诊断日志文件（按大小轮转）
//	    --log-level  诊断日志级别 (默认: warn)
//
// 命令:
//
//	append <msg...>  追加一条日志（"-" 表示逐行读取标准输入）
//	cat              按创建顺序输出全部日志
//	ls               列出日志文件
//	clear            删除全部日志文件
//	export [name]    导出全部日志到存储目录下的文件
//	upload [url]     上传活动日志，成功后删除本地已上传内容
//	follow           持续输出新追加的日志
//
// 未指定 --config 时尝试加载用户配置目录下的 xdevlog/config.yaml（不存在则忽略）。
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败
//	2: 参数错误（缺少必需参数、未知 flag 等）
//
// 示例:
//
//	xlogctl append "user tapped checkout"
//	xlogctl -d /data/app/logs cat
//	xlogctl upload --retries 5 https://collector.example.com/logs
//	journalctl -f | xlogctl append -
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	setupSignalHandler(cancel)
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// createApp 创建 CLI 应用。
func createApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xlogctl",
		Usage:     "设备日志存储目录运维工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Reader:    stdin,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "日志存储目录",
			},
			&cli.StringSliceFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件（可重复，后者覆盖前者）",
			},
			&cli.Int64Flag{
				Name:  "threshold",
				Usage: "轮转阈值（字节）",
			},
			&cli.StringFlag{
				Name:  "diag-log",
				Usage: "诊断日志文件",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "诊断日志级别 (debug/info/warn/error)",
				Value: "warn",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		OnUsageError:   onUsageError,
		// 禁止 urfave/cli 直接调用 os.Exit，由 run() 统一映射退出码
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				_, _ = fmt.Fprintln(cmd.Root().ErrWriter, err) //nolint:errcheck // 输出到终端
			}
		},
	}
}

// run 执行命令并返回退出码。
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := createApp(stdin, stdout, stderr)

	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			_, _ = fmt.Fprintf(stderr, "参数错误: %v\n", usageErr) //nolint:errcheck // 输出到终端
			return 2
		}
		if isCLIUsageError(err) {
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "错误: %v\n", err) //nolint:errcheck // 输出到终端
		return 1
	}
	return 0
}
