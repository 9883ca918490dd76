package xlogfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdevlog/pkg/observability/xrotate"
)

func TestConfig_Options(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Dir:        dir,
		Threshold:  2048,
		Prefix:     "app",
		Width:      4,
		FileMode:   "0640",
		QueueSize:  16,
		ExportName: "all.log",
	}
	opts, err := cfg.Options()
	require.NoError(t, err)

	s := newTestStore(t, opts...)
	assert.Equal(t, dir, s.Dir())
	assert.Equal(t, int64(2048), s.Threshold())
	assert.Equal(t, xrotate.Layout{Prefix: "app", Ext: ".log", Width: 4}, s.Layout())
	assert.Equal(t, os.FileMode(0o640), s.fileMode)
	assert.Equal(t, 16, cap(s.jobs))
	assert.Equal(t, "all.log", s.exportName)

	mustWait(t, s.AppendString("x"))
	info, err := os.Stat(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestConfig_ZeroValue(t *testing.T) {
	opts, err := Config{}.Options()
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"file mode", Config{FileMode: "rw-r--r--"}, xrotate.ErrInvalidFileMode},
		{"layout ext", Config{Ext: "log"}, xrotate.ErrInvalidLayout},
		{"layout width", Config{Width: -1}, xrotate.ErrInvalidLayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Options()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfig_InvalidQueueSizeRejectedByNew(t *testing.T) {
	opts, err := Config{Dir: t.TempDir(), QueueSize: -1}.Options()
	require.NoError(t, err)
	_, err = New(opts...)
	assert.ErrorIs(t, err, ErrInvalidQueueSize)
}
