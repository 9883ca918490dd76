package xconf

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeConfig struct {
	Dir       string       `koanf:"dir"`
	Threshold int64        `koanf:"threshold"`
	Upload    uploadConfig `koanf:"upload"`
}

type uploadConfig struct {
	URL     string `koanf:"url"`
	Retries int    `koanf:"retries"`
}

type fileConfig struct {
	Store storeConfig `koanf:"store"`
	Log   struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

const baseYAML = `
store:
  dir: /var/tmp/xdevlog
  threshold: 102400
  upload:
    url: https://collector.example.com/logs
    retries: 3
log:
  level: info
`

const overrideJSON = `{
  "store": {"threshold": "2048", "upload": {"retries": 5}},
  "log": {"level": "debug"}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", baseYAML)

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, cfg.Paths())

	var fc fileConfig
	require.NoError(t, cfg.Unmarshal("", &fc))
	assert.Equal(t, "/var/tmp/xdevlog", fc.Store.Dir)
	assert.Equal(t, int64(102400), fc.Store.Threshold)
	assert.Equal(t, "https://collector.example.com/logs", fc.Store.Upload.URL)
	assert.Equal(t, "info", fc.Log.Level)

	assert.Equal(t, 3, cfg.Client().Int("store.upload.retries"))
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = New(filepath.Join(dir, "config.toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	bad := writeFile(t, dir, "bad.json", "{not json")
	_, err = New(bad)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestNew_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yml", "")
	cfg, err := New(path)
	require.NoError(t, err)

	var fc fileConfig
	require.NoError(t, cfg.Unmarshal("", &fc))
	assert.Zero(t, fc)
}

func TestNewLayered(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baseYAML)
	override := writeFile(t, dir, "override.json", overrideJSON)

	cfg, err := NewLayered([]string{base, override})
	require.NoError(t, err)
	assert.Equal(t, []string{base, override}, cfg.Paths())

	var sc storeConfig
	require.NoError(t, cfg.Unmarshal("store", &sc))
	// 覆盖层修改的键
	assert.Equal(t, int64(2048), sc.Threshold)
	assert.Equal(t, 5, sc.Upload.Retries)
	// 未被覆盖的键保留
	assert.Equal(t, "/var/tmp/xdevlog", sc.Dir)
	assert.Equal(t, "https://collector.example.com/logs", sc.Upload.URL)
	assert.Equal(t, "debug", cfg.Client().String("log.level"))
}

func TestNewLayered_Optional(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", baseYAML)
	missing := filepath.Join(dir, "user.yaml")

	_, err := NewLayered([]string{base, missing})
	require.ErrorIs(t, err, ErrLoadFailed)

	cfg, err := NewLayered([]string{base, missing}, WithOptional())
	require.NoError(t, err)
	assert.Equal(t, []string{base}, cfg.Paths())
	assert.Equal(t, "info", cfg.Client().String("log.level"))

	// 缺失的层出现后 Reload 会加载它
	writeFile(t, dir, "user.yaml", "log:\n  level: warn\n")
	require.NoError(t, cfg.Reload())
	assert.Equal(t, []string{base, missing}, cfg.Paths())
	assert.Equal(t, "warn", cfg.Client().String("log.level"))
}

func TestNewLayered_Invalid(t *testing.T) {
	_, err := NewLayered(nil)
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = NewLayered([]string{"a.yaml", ""})
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = NewLayered([]string{"a.yaml", "b.ini"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewFromBytes(t *testing.T) {
	cfg, err := NewFromBytes([]byte(overrideJSON), FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, cfg.Paths())
	assert.Equal(t, 5, cfg.Client().Int("store.upload.retries"))
	assert.ErrorIs(t, cfg.Reload(), ErrNotReloadable)

	empty, err := NewFromBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, empty.Client().Keys())

	_, err = NewFromBytes([]byte("a=b"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewFromBytes([]byte("a: [unclosed"), FormatYAML)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", baseYAML)
	cfg, err := New(path)
	require.NoError(t, err)

	old := cfg.Client()
	writeFile(t, dir, "config.yaml", "log:\n  level: error\n")
	require.NoError(t, cfg.Reload())

	assert.Equal(t, "error", cfg.Client().String("log.level"))
	// 旧快照保持不变
	assert.Equal(t, "info", old.String("log.level"))

	// 解析失败时保留当前配置
	writeFile(t, dir, "config.yaml", "log: [")
	assert.ErrorIs(t, cfg.Reload(), ErrParseFailed)
	assert.Equal(t, "error", cfg.Client().String("log.level"))

	require.NoError(t, os.Remove(path))
	assert.ErrorIs(t, cfg.Reload(), ErrLoadFailed)
}

func TestReload_Concurrent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", baseYAML)
	cfg, err := New(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, cfg.Reload())
		}()
		go func() {
			defer wg.Done()
			var sc storeConfig
			assert.NoError(t, cfg.Unmarshal("store", &sc))
			assert.Equal(t, int64(102400), sc.Threshold)
		}()
	}
	wg.Wait()
}

func TestUnmarshal_Errors(t *testing.T) {
	cfg, err := NewFromBytes([]byte("store:\n  threshold: lots\n"), FormatYAML)
	require.NoError(t, err)

	var sc storeConfig
	assert.ErrorIs(t, cfg.Unmarshal("store", &sc), ErrUnmarshalFailed)
	assert.Panics(t, func() { MustUnmarshal(cfg, "store", &sc) })
}

func TestOptions(t *testing.T) {
	cfg, err := NewFromBytes([]byte(`{"store":{"dir":"/x"}}`), FormatJSON,
		WithDelim("/"), WithTag("json"), WithDelim(""), nil)
	require.NoError(t, err)
	assert.Equal(t, "/x", cfg.Client().String("store/dir"))

	var out struct {
		Store struct {
			Dir string `json:"dir"`
		} `json:"store"`
	}
	require.NoError(t, cfg.Unmarshal("store", &out.Store))
	assert.Equal(t, "/x", out.Store.Dir)
}
