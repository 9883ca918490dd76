package xlogfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

// seed 直接在目录中写入日志族文件
func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
}

func TestStore_ReadAllOrder(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, map[string]string{
		"devlog.000003.log": "three\n",
		"devlog.log":        "active\n",
		"devlog.000001.log": "one\n",
		"devlog.000010.log": "ten\n",
		"devlog.000002.log": "two\n",
	})
	s := newTestStore(t, WithDir(dir))

	assert.Equal(t, "one\ntwo\nthree\nten\nactive\n", mustWait(t, s.ReadAll()))
}

func TestStore_ReadAllAfterRotations(t *testing.T) {
	s := newTestStore(t)
	for _, rec := range []string{"a1", "a2", "a3"} {
		mustWait(t, s.AppendString(rec))
		mustWait(t, s.Rotate())
	}
	mustWait(t, s.AppendString("fresh"))

	assert.Equal(t, "a1\na2\na3\nfresh\n", mustWait(t, s.ReadAll()))
}

func TestStore_ReadAllEmpty(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		s := newTestStore(t)
		assert.Empty(t, mustWait(t, s.ReadAll()))
	})

	t.Run("directory removed", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, os.RemoveAll(s.Dir()))
		assert.Empty(t, mustWait(t, s.ReadAll()))
		assert.Empty(t, mustWait(t, s.Artifacts()))
	})
}

func TestStore_ReadAllIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, map[string]string{
		"devlog.log":        "active\n",
		"devlog.1.log":      "short sequence\n",
		"devlog.00000a.log": "not digits\n",
		"devlog.000000.log": "zero\n",
		"other.log":         "foreign\n",
		DefaultExportName:   "export\n",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "devlog.000001.log"), 0o750))
	s := newTestStore(t, WithDir(dir))

	assert.Equal(t, "active\n", mustWait(t, s.ReadAll()))

	artifacts := mustWait(t, s.Artifacts())
	require.Len(t, artifacts, 1)
	assert.Equal(t, "devlog.log", artifacts[0].Name)
	assert.Equal(t, xrotate.RoleActive, artifacts[0].Role)
	assert.Equal(t, int64(len("active\n")), artifacts[0].Size)
}

func TestStore_ReadAllSkipsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	dir := t.TempDir()
	seed(t, dir, map[string]string{
		"devlog.000001.log": "one\n",
		"devlog.000002.log": "secret\n",
		"devlog.log":        "active\n",
	})
	require.NoError(t, os.Chmod(filepath.Join(dir, "devlog.000002.log"), 0))

	var reported []error
	s := newTestStore(t, WithDir(dir), WithOnError(func(err error) { reported = append(reported, err) }))

	assert.Equal(t, "one\nactive\n", mustWait(t, s.ReadAll()))
	// Close 返回前回调全部执行完毕
	require.NoError(t, s.Close(context.Background()))
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrRead)
	assert.Equal(t, uint64(1), s.ErrorCount())
}

func TestStore_CustomLayout(t *testing.T) {
	l := xrotate.Layout{Prefix: "app", Ext: ".txt", Width: 3}
	s := newTestStore(t, WithLayout(l), WithThreshold(1))

	s.AppendString("first")
	mustWait(t, s.AppendString("second"))

	assert.FileExists(t, filepath.Join(s.Dir(), "app.001.txt"))
	assert.FileExists(t, filepath.Join(s.Dir(), "app.txt"))
	assert.Equal(t, "first\nsecond\n", mustWait(t, s.ReadAll()))
}

func TestStore_Export(t *testing.T) {
	t.Run("default name", func(t *testing.T) {
		s := newTestStore(t, WithThreshold(1))
		s.AppendString("one")
		s.AppendString("two")

		path := mustWait(t, s.Export(""))
		assert.Equal(t, filepath.Join(s.Dir(), DefaultExportName), path)
		assert.Equal(t, "one\ntwo\n", readFile(t, path))

		// 导出文件不参与聚合
		assert.Equal(t, "one\ntwo\n", mustWait(t, s.ReadAll()))
	})

	t.Run("configured default name", func(t *testing.T) {
		s := newTestStore(t, WithExportName("bundle.txt"))
		s.AppendString("x")
		path := mustWait(t, s.Export(""))
		assert.Equal(t, "bundle.txt", filepath.Base(path))
	})

	t.Run("subdirectory", func(t *testing.T) {
		s := newTestStore(t)
		s.AppendString("x")
		path := mustWait(t, s.Export("out/full.log"))
		assert.Equal(t, filepath.Join(s.Dir(), "out", "full.log"), path)
		assert.Equal(t, "x\n", readFile(t, path))
	})

	t.Run("overwrites previous export", func(t *testing.T) {
		s := newTestStore(t)
		s.AppendString("old")
		mustWait(t, s.Export(""))
		mustWait(t, s.ClearAll())
		s.AppendString("new")

		path := mustWait(t, s.Export(""))
		assert.Equal(t, "new\n", readFile(t, path))
	})

	t.Run("no logs writes empty file", func(t *testing.T) {
		s := newTestStore(t)
		path := mustWait(t, s.Export(""))
		assert.Empty(t, readFile(t, path))
	})

	t.Run("invalid names", func(t *testing.T) {
		s := newTestStore(t)
		for _, name := range []string{
			"../escape.log",
			"a/../../escape.log",
			"/etc/passwd",
			"devlog.log",
			"devlog.000001.log",
			".",
		} {
			f := s.Export(name)
			assert.True(t, f.Ready(), name)
			_, err := f.Wait(context.Background())
			assert.ErrorIs(t, err, ErrInvalidExportName, name)
		}
	})
}
