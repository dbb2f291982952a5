package config_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that uses file system in short mode")
	}

	tempHome := t.TempDir()

	tests := []struct {
		msg string
		fn  func(string) string
		res string
	}{
		{
			msg: "config dir",
			fn:  config.ConfigDir,
			res: filepath.Join(tempHome, ".config", "gmlas"),
		},
		{
			msg: "cache dir",
			fn:  config.CacheDir,
			res: filepath.Join(tempHome, ".cache", "gmlas"),
		},
		{
			msg: "log dir",
			fn:  config.LogDir,
			res: filepath.Join(tempHome, ".local", "share", "gmlas", "logs"),
		},
		{
			msg: "config file",
			fn:  config.ConfigFilePath,
			res: filepath.Join(tempHome, ".config", "gmlas", "config.yaml"),
		},
	}

	for _, v := range tests {
		res := v.fn(tempHome)
		assert.Equal(t, v.res, res, v.msg)
	}
}

func TestNew(t *testing.T) {
	cfg := config.New()

	t.Run("creates valid default config", func(t *testing.T) {
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "gmlas", cfg.Database.Database)
		assert.Equal(t, 50_000, cfg.Database.BatchSize)

		assert.True(t, cfg.Analyzer.UseArrays)
		assert.False(t, cfg.Analyzer.UseNullState)
		assert.True(t, cfg.Analyzer.InstantiateGMLFeaturesOnly)
		assert.Equal(t, 0, cfg.Analyzer.IdentifierMaxLength)
		assert.Equal(t, 10, cfg.Analyzer.MaximumFieldsForFlattening)

		assert.Equal(t, 100, cfg.Reader.MaxLevel)
		assert.Equal(t, 512_000_000, cfg.Reader.MaxContentSize)
		assert.Equal(t, "auto", cfg.Reader.SwapCoordinates)
		assert.False(t, cfg.Reader.WarnUnexpected)

		assert.Equal(t, 10, cfg.XLink.Timeout)
		assert.Equal(t, "sqlite", cfg.Output.Format)
		assert.Equal(t, "gmlas", cfg.Writer.Wrapping)
		assert.Equal(t, 2, cfg.Writer.IndentSize)

		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "file", cfg.Log.Destination)

		assert.Equal(t, runtime.NumCPU(), cfg.JobsNumber)
	})
}

func TestOptionDatabaseHost(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "sets valid host",
			input:    "db.example.com",
			expected: "db.example.com",
		},
		{
			name:     "trims whitespace",
			input:    "  db.example.com  ",
			expected: "db.example.com",
		},
		{
			name:     "ignores empty string",
			input:    "",
			expected: "localhost", // Should keep default
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			opt := config.OptDatabaseHost(tt.input)
			cfg.Update([]config.Option{opt})
			assert.Equal(t, tt.expected, cfg.Database.Host)
		})
	}
}

func TestOptionIdentifierMaxLength(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"sets valid length", 31, 31},
		{"accepts minimal length", 10, 10},
		{"zero disables limit", 0, 0},
		{"ignores too short", 5, 0},
		{"ignores negative", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			opt := config.OptAnalyzerIdentifierMaxLength(tt.input)
			cfg.Update([]config.Option{opt})
			assert.Equal(t, tt.expected, cfg.Analyzer.IdentifierMaxLength)
		})
	}
}

func TestOptionSwapCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"sets yes", "yes", "yes"},
		{"sets no", "NO", "no"},
		{"ignores invalid value", "maybe", "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			opt := config.OptReaderSwapCoordinates(tt.input)
			cfg.Update([]config.Option{opt})
			assert.Equal(t, tt.expected, cfg.Reader.SwapCoordinates)
		})
	}
}

func TestOptionOutputFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"sets postgres", "postgres", "postgres"},
		{"sets summary", " Summary ", "summary"},
		{"ignores invalid value", "shapefile", "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			opt := config.OptOutputFormat(tt.input)
			cfg.Update([]config.Option{opt})
			assert.Equal(t, tt.expected, cfg.Output.Format)
		})
	}
}

func TestOptionJobsNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{
			name:     "sets valid jobs number",
			input:    8,
			expected: 8,
		},
		{
			name:     "ignores zero",
			input:    0,
			expected: runtime.NumCPU(), // Should keep default
		},
		{
			name:     "ignores negative",
			input:    -5,
			expected: runtime.NumCPU(), // Should keep default
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			opt := config.OptJobsNumber(tt.input)
			cfg.Update([]config.Option{opt})
			assert.Equal(t, tt.expected, cfg.JobsNumber)
		})
	}
}

func TestOptionIgnoredXPaths(t *testing.T) {
	cfg := config.New()
	cfg.Update([]config.Option{
		config.OptAnalyzerIgnoredXPaths([]config.IgnoredXPath{
			{XPath: " gml:boundedBy ", Warn: true},
			{XPath: ""},
			{XPath: "@gml:id"},
		}),
	})
	require.Len(t, cfg.Analyzer.IgnoredXPaths, 2)
	assert.Equal(t, "gml:boundedBy", cfg.Analyzer.IgnoredXPaths[0].XPath)
	assert.True(t, cfg.Analyzer.IgnoredXPaths[0].Warn)
	assert.Equal(t, "@gml:id", cfg.Analyzer.IgnoredXPaths[1].XPath)
}

func TestOptionXLinkRules(t *testing.T) {
	cfg := config.New()
	cfg.Update([]config.Option{
		config.OptXLinkRules([]config.XLinkRule{
			{URLPrefix: "http://example.com/", ResolutionMode: "RawContent"},
			{URLPrefix: "http://bad.com/", ResolutionMode: "Unknown"},
			{URLPrefix: " ", ResolutionMode: "RawContent"},
		}),
	})
	require.Len(t, cfg.XLink.Rules, 1)
	assert.Equal(t, "http://example.com/", cfg.XLink.Rules[0].URLPrefix)
}

func TestToOptionsRoundTrip(t *testing.T) {
	src := config.New()
	src.Update([]config.Option{
		config.OptDatabaseHost("db.local"),
		config.OptAnalyzerUseArrays(false),
		config.OptAnalyzerIdentifierMaxLength(63),
		config.OptAnalyzerForcedFlattenedXPaths([]string{"a:b"}),
		config.OptReaderWarnUnexpected(true),
		config.OptReaderSwapCoordinates("yes"),
		config.OptXLinkTimeout(30),
		config.OptOutputFormat("postgres"),
		config.OptWriterWrapping("WFS2"),
		config.OptWriterIndentSize(0),
		config.OptLogLevel("debug"),
		config.OptHomeDir("/home/user"),
		config.OptReaderSchemaFiles([]string{"a.xsd"}),
	})

	dst := config.New()
	dst.Update(src.ToOptions())

	assert.Equal(t, "db.local", dst.Database.Host)
	assert.False(t, dst.Analyzer.UseArrays)
	assert.Equal(t, 63, dst.Analyzer.IdentifierMaxLength)
	assert.Equal(t, []string{"a:b"}, dst.Analyzer.ForcedFlattenedXPaths)
	assert.True(t, dst.Reader.WarnUnexpected)
	assert.Equal(t, "yes", dst.Reader.SwapCoordinates)
	assert.Equal(t, 30, dst.XLink.Timeout)
	assert.Equal(t, "postgres", dst.Output.Format)
	assert.Equal(t, "wfs2", dst.Writer.Wrapping)
	assert.Equal(t, 0, dst.Writer.IndentSize)
	assert.Equal(t, "debug", dst.Log.Level)

	// runtime-only fields are not carried
	assert.Empty(t, dst.HomeDir)
	assert.Empty(t, dst.Reader.SchemaFiles)
}

func TestOptionWriter(t *testing.T) {
	tests := []struct {
		msg      string
		opt      config.Option
		wrapping string
		indent   int
	}{
		{"wfs2", config.OptWriterWrapping(" wfs2 "), "wfs2", 2},
		{"bad wrapping", config.OptWriterWrapping("atom"), "gmlas", 2},
		{"no indent", config.OptWriterIndentSize(0), "gmlas", 0},
		{"negative indent", config.OptWriterIndentSize(-1), "gmlas", 2},
	}
	for _, v := range tests {
		cfg := config.New()
		cfg.Update([]config.Option{v.opt})
		assert.Equal(t, v.wrapping, cfg.Writer.Wrapping, v.msg)
		assert.Equal(t, v.indent, cfg.Writer.IndentSize, v.msg)
	}
}
