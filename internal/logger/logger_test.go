package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.log")

	log := New(Options{
		Level: "debug",
		File:  FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2},
	})
	payload := strings.Repeat("v", 256)
	for i := 0; i < 6000; i++ {
		log.Info("frame", zap.Int("n", i), zap.String("payload", payload))
	}
	require.NoError(t, log.Sync())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var rotated []string
	for _, e := range entries {
		if e.Name() != "viewer.log" && strings.HasPrefix(e.Name(), "viewer-") {
			rotated = append(rotated, e.Name())
		}
	}
	assert.FileExists(t, path)
	assert.NotEmpty(t, rotated, "expected at least one rotated backup in %v", entries)
}

func TestLevelFiltering(t *testing.T) {
	cases := map[string][]bool{
		// debug, info, warn, error
		"debug": {true, true, true, true},
		"info":  {false, true, true, true},
		"warn":  {false, false, true, true},
		"error": {false, false, false, true},
	}
	for level, want := range cases {
		t.Run(level, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "level.log")
			log := New(Options{Level: level, File: FileConfig{Path: path, MaxSizeMB: 1}})

			log.Debug("m-debug")
			log.Info("m-info")
			log.Warn("m-warn")
			log.Error("m-error")
			require.NoError(t, log.Sync())

			out := readLog(t, path)
			for i, msg := range []string{"m-debug", "m-info", "m-warn", "m-error"} {
				assert.Equal(t, want[i], strings.Contains(out, msg), "%s at level %s", msg, level)
			}
		})
	}
}

func TestNewWithoutSinks(t *testing.T) {
	log := New(Options{Level: "debug"})
	require.NotNil(t, log)
	log.Info("discarded")
}

func TestSetupReplacesGlobal(t *testing.T) {
	saved, savedSugar := Log, Sugar
	t.Cleanup(func() { Log, Sugar = saved, savedSugar })

	path := filepath.Join(t.TempDir(), "global.log")
	require.NoError(t, Setup(Options{Level: "info", File: FileConfig{Path: path, MaxSizeMB: 1}}))
	require.NotNil(t, Sugar)

	Debug("hidden")
	Info("shown")
	Named("transition").Warn("blend started")
	Sync()

	out := readLog(t, path)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "transition")
	assert.Contains(t, out, "blend started")
}

func TestNamedBeforeInit(t *testing.T) {
	saved := Log
	Log = nil
	t.Cleanup(func() { Log = saved })

	l := Named("loader")
	require.NotNil(t, l)
	assert.NotPanics(t, func() {
		l.Info("dropped")
		Info("dropped too")
		Sync()
	})
}

func TestDefaultFileConfig(t *testing.T) {
	assert.Equal(t, FileConfig{
		Path:       "/tmp/charview.log",
		MaxSizeMB:  20,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}, DefaultFileConfig("/tmp/charview.log"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
