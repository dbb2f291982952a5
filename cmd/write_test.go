package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWriteCmd_Flags(t *testing.T) {
	cmd := getWriteCmd()
	assert.Equal(t, "write", cmd.Name())
	for _, v := range []string{"output", "wrapping", "indent", "comment", "layers"} {
		assert.NotNil(t, cmd.Flags().Lookup(v), v)
	}
	assert.Equal(t, "2", cmd.Flags().Lookup("indent").DefValue)
}

func TestXMLPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "roads.xml"),
		xmlPath(filepath.Join("data", "roads.sqlite"), ""))
	assert.Equal(t, "/tmp/out.gml", xmlPath("roads.sqlite", "/tmp/out.gml"))
}

// convertWithMetadata converts the roads document into a SQLite file
// with metadata tables.
func convertWithMetadata(t *testing.T) string {
	t.Helper()
	setTestConfig(t)
	path := filepath.Join(t.TempDir(), "roads.sqlite")
	cmd := getConvertCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{
		filepath.Join(testdata, "roads.gml"),
		"-o", path,
		"--metadata",
		"-q",
	})
	require.NoError(t, cmd.Execute())
	return path
}

func TestRunWrite(t *testing.T) {
	src := convertWithMetadata(t)
	out := filepath.Join(t.TempDir(), "roads.xml")

	cmd := getWriteCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{src, "-o", out, "--wrapping", "wfs2"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "wfs2", cfg.Writer.Wrapping)
	assert.Contains(t, buf.String(), "1 features")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	res := string(data)
	assert.Contains(t, res, "<wfs:FeatureCollection")
	assert.Contains(t, res, `numberReturned="1"`)
	assert.Contains(t, res, "<ex:name>Main</ex:name>")
	assert.Contains(t, res, "<ex:kind>bike</ex:kind>")
}

func TestRunWriteStdout(t *testing.T) {
	src := convertWithMetadata(t)

	cmd := getWriteCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{src, "-o", "-", "--indent", "0", "--comment", "roads"})
	require.NoError(t, cmd.Execute())
	res := buf.String()
	assert.Contains(t, res, "<!-- roads -->")
	assert.Contains(t, res, "<ogr_gmlas:featureMember><ex:Road")
	assert.Contains(t, res, "<ex:code>A</ex:code><ex:code>B</ex:code>")
}

func TestRunWriteNoMetadata(t *testing.T) {
	setTestConfig(t)
	src := filepath.Join(t.TempDir(), "roads.sqlite")
	cmd := getConvertCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{filepath.Join(testdata, "roads.gml"), "-o", src, "-q"})
	require.NoError(t, cmd.Execute())

	cmd = getWriteCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{src, "-o", "-"})
	assert.Error(t, cmd.Execute())
}
