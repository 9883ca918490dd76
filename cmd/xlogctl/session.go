package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xdevlog/pkg/config/xconf"
	"github.com/omeyang/xdevlog/pkg/observability/xlog"
	"github.com/omeyang/xdevlog/pkg/observability/xlogfile"
	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

// fileConfig 配置文件结构。
//
//	store:
//	  dir: /data/app/logs
//	  threshold: 102400
//	  upload:
//	    url: https://collector.example.com/logs
//	    timeout: 30s
//	    retries: 3
//	log:
//	  level: info
//	  file: /var/log/xlogctl.log
type fileConfig struct {
	Store xlogfile.Config `koanf:"store"`
	Log   logConfig       `koanf:"log"`
}

// logConfig 诊断日志配置。
type logConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	File      string `koanf:"file"`
	MaxSizeMB int    `koanf:"max_size_mb"`
}

// session 一次命令执行期间打开的资源。
type session struct {
	cfg     fileConfig
	store   *xlogfile.Store
	logger  xlog.LoggerWithLevel
	cleanup func() error
	out     io.Writer
	in      io.Reader
}

// withSession 为命令打开 Store，命令结束后关闭。
func withSession(fn func(ctx context.Context, cmd *cli.Command, s *session) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.close(context.WithoutCancel(ctx)))
		}()
		return fn(ctx, cmd, s)
	}
}

// openSession 加载配置、构建诊断日志并打开 Store。
func openSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, cleanup, err := buildLogger(cmd, cfg.Log)
	if err != nil {
		return nil, err
	}

	opts, err := storeOptions(cmd, cfg.Store)
	if err != nil {
		_ = cleanup() //nolint:errcheck // 已有配置错误
		return nil, err
	}
	opts = append(opts, xlogfile.WithLogger(logger))

	store, err := xlogfile.New(opts...)
	if err != nil {
		_ = cleanup() //nolint:errcheck // 已有配置错误
		return nil, fmt.Errorf("打开日志目录失败: %w", err)
	}
	logger.Debug(ctx, "session opened", xlog.Path(store.Dir()))

	root := cmd.Root()
	return &session{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		cleanup: cleanup,
		out:     root.Writer,
		in:      root.Reader,
	}, nil
}

func (s *session) close(ctx context.Context) error {
	return errors.Join(s.store.Close(ctx), s.cleanup())
}

// loadConfig 加载配置文件。
// 显式指定的文件必须存在；未指定时尝试用户配置目录下的默认文件。
func loadConfig(cmd *cli.Command) (fileConfig, error) {
	var cfg fileConfig

	paths := cmd.StringSlice("config")
	var opts []xconf.Option
	if len(paths) == 0 {
		def, ok := defaultConfigPath()
		if !ok {
			return cfg, nil
		}
		paths = []string{def}
		opts = append(opts, xconf.WithOptional())
	}

	c, err := xconf.NewLayered(paths, opts...)
	if err != nil {
		return cfg, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := c.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// defaultConfigPath 用户配置目录下的 xdevlog/config.yaml。
func defaultConfigPath() (string, bool) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(dir, xlogfile.DefaultSubdir, "config.yaml"), true
}

// buildLogger 构建诊断日志，命令行参数优先于配置文件。
// 诊断日志写入 stderr 或独立的轮转文件，从不写入日志存储目录本身。
func buildLogger(cmd *cli.Command, cfg logConfig) (xlog.LoggerWithLevel, func() error, error) {
	level := cfg.Level
	if cmd.IsSet("log-level") || level == "" {
		level = cmd.String("log-level")
	}
	file := cfg.File
	if cmd.IsSet("diag-log") {
		file = cmd.String("diag-log")
	}

	b := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetLevelString(level).
		SetFormat(cfg.Format).
		SetAttrs(xlog.Component("xlogctl"))
	if file != "" {
		var opts []xrotate.LumberjackOption
		if cfg.MaxSizeMB > 0 {
			opts = append(opts, xrotate.WithMaxSize(cfg.MaxSizeMB))
		}
		b.SetRotation(file, opts...)
	}

	logger, cleanup, err := b.Build()
	if err != nil {
		return nil, nil, &usageError{msg: fmt.Sprintf("诊断日志配置无效: %v", err)}
	}
	return logger, cleanup, nil
}

// storeOptions 合并配置文件与命令行参数。
func storeOptions(cmd *cli.Command, cfg xlogfile.Config) ([]xlogfile.Option, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, fmt.Errorf("store 配置无效: %w", err)
	}

	if dir := cmd.String("dir"); dir != "" {
		opts = append(opts, xlogfile.WithDir(dir))
	}
	if cmd.IsSet("threshold") {
		threshold := cmd.Int64("threshold")
		if threshold <= 0 {
			return nil, &usageError{msg: fmt.Sprintf("--threshold 必须为正数，当前为 %d", threshold)}
		}
		opts = append(opts, xlogfile.WithThreshold(threshold))
	}

	timeout, err := uploadTimeout(cmd, cfg.Upload)
	if err != nil {
		return nil, err
	}
	opts = append(opts, xlogfile.WithTransport(xlogfile.NewHTTPTransport(
		xlogfile.WithUploadTimeout(timeout),
		xlogfile.WithHeader("User-Agent", "xlogctl/"+Version),
	)))
	return opts, nil
}

// uploadTimeout 上传超时：upload --timeout 优先，其次配置文件，最后默认值。
func uploadTimeout(cmd *cli.Command, cfg xlogfile.UploadConfig) (time.Duration, error) {
	if cmd.IsSet("timeout") {
		return cmd.Duration("timeout"), nil
	}
	if cfg.Timeout == "" {
		return xlogfile.DefaultUploadTimeout, nil
	}
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("store.upload.timeout 无效: %q", cfg.Timeout)
	}
	return d, nil
}
