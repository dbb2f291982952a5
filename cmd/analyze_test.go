package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testdata = filepath.Join("..", "internal", "ioconvert", "testdata")

func setTestConfig(t *testing.T) {
	t.Helper()
	cfg = config.New()
	cfg.Update([]config.Option{
		config.OptAnalyzerPGIdentifierLaundering(false),
	})
}

func TestGetAnalyzeCmd_Flags(t *testing.T) {
	cmd := getAnalyzeCmd()
	assert.Equal(t, "analyze", cmd.Name())
	for _, v := range []string{"xsd", "format", "documentation", "refresh-cache"} {
		assert.NotNil(t, cmd.Flags().Lookup(v), v)
	}
	assert.Equal(t, "text", cmd.Flags().Lookup("format").DefValue)
}

func TestSchemaArgs(t *testing.T) {
	tests := []struct {
		msg  string
		args []string
		res  []string
	}{
		{"document", []string{"a.gml"}, []string{}},
		{"document and schemas", []string{"a.gml", "a.xsd"}, []string{"a.xsd"}},
		{"single schema", []string{"a.xsd"}, nil},
		{"schemas", []string{"a.XSD", "b.xsd"}, []string{"a.XSD", "b.xsd"}},
	}
	for _, v := range tests {
		assert.Equal(t, v.res, schemaArgs(v.args), v.msg)
	}
}

func TestRunAnalyzeText(t *testing.T) {
	setTestConfig(t)
	cmd := getAnalyzeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(testdata, "roads.gml")})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "Road (TOP_LEVEL_ELEMENT)")
	assert.Contains(t, out, "Road_lane (NESTED_ELEMENT)")
	assert.Contains(t, out, "2 layers")
}

func TestRunAnalyzeYAML(t *testing.T) {
	setTestConfig(t)
	cmd := getAnalyzeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{
		filepath.Join(testdata, "no_schema.gml"),
		filepath.Join(testdata, "roads.xsd"),
		"--format", "yaml",
	})

	require.NoError(t, cmd.Execute())
	var res []layerDump
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &res))
	require.Len(t, res, 2)
	assert.Equal(t, "Road", res[0].Name)
	assert.Equal(t, "Road", res[1].Parent)

	var fields []string
	for _, v := range res[1].Fields {
		fields = append(fields, v.Name)
	}
	assert.Contains(t, fields, "width")
	assert.Contains(t, fields, "kind")
}

func TestRunAnalyzeBadFormat(t *testing.T) {
	setTestConfig(t)
	cmd := getAnalyzeCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{filepath.Join(testdata, "roads.gml"), "-f", "xml"})
	assert.Error(t, cmd.Execute())
}
