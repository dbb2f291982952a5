package iologger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/errcode"
	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in  string
		out slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, v := range tests {
		assert.Equal(t, v.out, parseLevel(v.in), v.in)
	}
}

func TestNewHandler(t *testing.T) {
	tests := []struct {
		format, want string
	}{
		{"json", `"msg":"hello"`},
		{"text", `msg=hello`},
		{"tint", `msg=hello`},
		{"", `"msg":"hello"`},
	}
	for _, v := range tests {
		var buf bytes.Buffer
		cfg := config.LogConfig{Format: v.format, Level: "info"}
		l := slog.New(newHandler(&buf, cfg))
		l.Debug("hidden")
		l.Info("hello")
		assert.Contains(t, buf.String(), v.want, v.format)
		assert.NotContains(t, buf.String(), "hidden", v.format)
	}
}

func TestInitFile(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	dir := t.TempDir()
	cfg := config.LogConfig{Format: "json", Level: "debug", Destination: "file"}
	require.NoError(t, Init(dir, cfg))
	slog.Debug("written to file")

	content, err := os.ReadFile(filepath.Join(dir, LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to file")
}

func TestInitBadDir(t *testing.T) {
	cfg := config.LogConfig{Destination: "file"}
	err := Init(filepath.Join(t.TempDir(), "missing"), cfg)
	require.Error(t, err)
	gnErr, ok := err.(*gn.Error)
	require.True(t, ok)
	assert.Equal(t, errcode.CreateLogFileError, gnErr.Code)
}
