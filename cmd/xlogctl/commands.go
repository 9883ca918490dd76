package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/observability/xlogfile"
	"github.com/omeyang/xdevlog/pkg/resilience/xretry"
)

const (
	// defaultRetries 上传默认最大尝试次数
	defaultRetries = 3
	// defaultRetryDelay 上传重试的初始间隔
	defaultRetryDelay = time.Second
	// maxRetryDelay 上传重试间隔上限
	maxRetryDelay = 30 * time.Second
	// maxStdinRecord 从标准输入读取的单条记录上限
	maxStdinRecord = 1024 * 1024
)

// createCommands 创建所有子命令。
func createCommands() []*cli.Command {
	cmds := []*cli.Command{
		createAppendCommand(),
		createCatCommand(),
		createListCommand(),
		createClearCommand(),
		createExportCommand(),
		createUploadCommand(),
		createFollowCommand(),
	}
	for _, c := range cmds {
		c.OnUsageError = onUsageError
	}
	return cmds
}

func createAppendCommand() *cli.Command {
	return &cli.Command{
		Name:      "append",
		Aliases:   []string{"a"},
		Usage:     "追加一条日志",
		ArgsUsage: "<message...> | -",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "原样追加，不添加时间与设备信息",
			},
			&cli.StringFlag{
				Name:  "app",
				Usage: "日志行中的应用名",
				Value: "xlogctl",
			},
		},
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return &usageError{msg: "append 需要日志内容，或使用 - 从标准输入读取"}
			}
			var f *xlogfile.Formatter
			if !cmd.Bool("raw") {
				f = xlogfile.NewFormatter(xlogfile.HostIdentity(cmd.String("app"), Version, GitCommit))
			}
			if len(args) == 1 && args[0] == "-" {
				return cmdAppendStdin(ctx, s, f)
			}
			return appendRecord(ctx, s, strings.Join(args, " "), f, recordSource("args", 1))
		}),
	}
}

// recordSource 日志行中的来源位置：命令行参数或标准输入的行号。
func recordSource(source string, line int) xlogfile.Caller {
	return xlogfile.Caller{File: source, Line: line, Function: "xlogctl append"}
}

// appendRecord 追加一条记录并等待写入完成，f 为 nil 时原样追加。
func appendRecord(ctx context.Context, s *session, msg string, f *xlogfile.Formatter, src xlogfile.Caller) error {
	if f != nil {
		msg = f.Format(msg, src)
	}
	if _, err := s.store.AppendString(msg).Wait(ctx); err != nil {
		return fmt.Errorf("追加失败: %w", err)
	}
	return nil
}

// cmdAppendStdin 将标准输入的每一行作为一条记录。
func cmdAppendStdin(ctx context.Context, s *session, f *xlogfile.Formatter) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdinRecord)

	var n int64
	for scanner.Scan() {
		n++
		if err := appendRecord(ctx, s, scanner.Text(), f, recordSource("stdin", int(n))); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取标准输入失败: %w", err)
	}
	s.logger.Info(ctx, "stdin appended", xlog.Count(n))
	return nil
}

func createCatCommand() *cli.Command {
	return &cli.Command{
		Name:  "cat",
		Usage: "按创建顺序输出全部日志",
		Action: withSession(func(ctx context.Context, _ *cli.Command, s *session) error {
			content, err := s.store.ReadAll().Wait(ctx)
			if err != nil {
				return fmt.Errorf("读取日志失败: %w", err)
			}
			_, err = fmt.Fprint(s.out, content)
			return err
		}),
	}
}

func createListCommand() *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Usage:   "列出日志文件",
		Action: withSession(func(ctx context.Context, _ *cli.Command, s *session) error {
			artifacts, err := s.store.Artifacts().Wait(ctx)
			if err != nil {
				return fmt.Errorf("列出日志失败: %w", err)
			}
			return printArtifacts(s, artifacts)
		}),
	}
}

func printArtifacts(s *session, artifacts []xlogfile.Artifact) error {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tROLE\tSIZE\tMODIFIED") //nolint:errcheck // Flush 统一返回错误
	var total int64
	for _, a := range artifacts {
		total += a.Size
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", //nolint:errcheck // Flush 统一返回错误
			a.Name, a.Role, a.Size, a.ModTime.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.out, "%d 个文件，共 %d 字节（%s）\n", len(artifacts), total, s.store.Dir())
	return err
}

func createClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "删除全部日志文件（导出文件保留）",
		Action: withSession(func(ctx context.Context, _ *cli.Command, s *session) error {
			n, err := s.store.ClearAll().Wait(ctx)
			if err != nil {
				return fmt.Errorf("清理失败: %w", err)
			}
			_, err = fmt.Fprintf(s.out, "已删除 %d 个日志文件\n", n)
			return err
		}),
	}
}

func createExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "导出全部日志到存储目录下的文件",
		ArgsUsage: "[name]",
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			if cmd.Args().Len() > 1 {
				return &usageError{msg: "export 最多接受一个文件名"}
			}
			path, err := s.store.Export(cmd.Args().First()).Wait(ctx)
			if errors.Is(err, xlogfile.ErrInvalidExportName) {
				return &usageError{msg: err.Error()}
			}
			if err != nil {
				return fmt.Errorf("导出失败: %w", err)
			}
			_, err = fmt.Fprintln(s.out, path)
			return err
		}),
	}
}

func createUploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Aliases:   []string{"up"},
		Usage:     "上传活动日志，成功后删除本地已上传内容",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "retries",
				Usage: "最大尝试次数（默认取配置文件，否则为 3）",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "首次重试前的等待时间，之后指数增长",
				Value: defaultRetryDelay,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "单次请求超时",
				Value: xlogfile.DefaultUploadTimeout,
			},
		},
		Action: withSession(cmdUpload),
	}
}

// cmdUpload 上传活动日志，可重试的失败按指数退避重试。
func cmdUpload(ctx context.Context, cmd *cli.Command, s *session) error {
	dest := cmd.Args().First()
	if dest == "" {
		dest = s.cfg.Store.Upload.URL
	}
	if dest == "" {
		return &usageError{msg: "upload 需要上传地址（参数或配置文件 store.upload.url）"}
	}

	attempts := defaultRetries
	switch {
	case cmd.IsSet("retries"):
		attempts = cmd.Int("retries")
	case s.cfg.Store.Upload.Retries > 0:
		attempts = s.cfg.Store.Upload.Retries
	}
	if attempts < 1 {
		return &usageError{msg: fmt.Sprintf("--retries 必须 >= 1，当前为 %d", attempts)}
	}

	retryer := xretry.NewRetryer(
		xretry.WithAttempts(attempts),
		xretry.WithBackoff(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(cmd.Duration("delay")),
			xretry.WithMaxDelay(maxRetryDelay),
		)),
		xretry.WithRetryIf(xlogfile.IsRetryable),
		xretry.WithOnRetry(func(attempt int, err error) {
			s.logger.Warn(ctx, "upload attempt failed",
				slog.Int("attempt", attempt), xlog.Destination(dest), xlog.Err(err))
		}),
	)

	resp, err := xretry.DoWithResult(ctx, retryer, func(ctx context.Context) (*xlogfile.Response, error) {
		return s.store.Upload(ctx, dest).Wait(ctx)
	})
	switch {
	case errors.Is(err, xlogfile.ErrNotFound):
		_, err = fmt.Fprintln(s.out, "没有待上传的日志")
		return err
	case errors.Is(err, xlogfile.ErrInvalidDestination):
		return &usageError{msg: err.Error()}
	case errors.Is(err, xlogfile.ErrCommit):
		return fmt.Errorf("上传成功但本地日志未删除，下次上传可能重复: %w", err)
	case err != nil:
		return fmt.Errorf("上传失败: %w", err)
	}

	if _, err := fmt.Fprintf(s.out, "上传完成: HTTP %d\n", resp.StatusCode); err != nil {
		return err
	}
	if !resp.Empty() {
		_, err = fmt.Fprintln(s.out, strings.TrimSpace(resp.String()))
	}
	return err
}

func createFollowCommand() *cli.Command {
	return &cli.Command{
		Name:    "follow",
		Aliases: []string{"f", "tail"},
		Usage:   "持续输出新追加的日志（Ctrl+C 退出）",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "from-start",
				Usage: "先输出活动文件的现有内容",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "兜底轮询间隔",
				Value: xlogfile.DefaultPollInterval,
			},
		},
		Action: withSession(func(ctx context.Context, cmd *cli.Command, s *session) error {
			opts := []xlogfile.FollowOption{xlogfile.WithPollInterval(cmd.Duration("interval"))}
			if cmd.Bool("from-start") {
				opts = append(opts, xlogfile.WithFromStart())
			}
			return s.store.Follow(ctx, s.out, opts...)
		}),
	}
}
