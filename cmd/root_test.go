package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRootCmd(t *testing.T) {
	cmd := getRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "gmlas", cmd.Use)

	var names []string
	for _, v := range cmd.Commands() {
		names = append(names, v.Name())
	}
	assert.Contains(t, names, "analyze")
	assert.Contains(t, names, "convert")
	assert.Contains(t, names, "write")
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestGetRootCmd_Version(t *testing.T) {
	for _, flag := range []string{"--version", "-V"} {
		cmd := getRootCmd()
		cmd.Version = "version: v1.2.3\nbuild:   abc123"

		buf := new(bytes.Buffer)
		cmd.SetOut(buf)
		cmd.SetArgs([]string{flag})

		require.NoError(t, cmd.Execute(), flag)
		assert.Contains(t, buf.String(), "v1.2.3", flag)
		assert.Contains(t, buf.String(), "abc123", flag)
	}
}

func TestGetRootCmd_HelpText(t *testing.T) {
	cmd := getRootCmd()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	help := buf.String()
	assert.Contains(t, help, "relational layers")
	assert.Contains(t, help, "GMLAS_")
	assert.Contains(t, help, "analyze")
	assert.Contains(t, help, "convert")
}
