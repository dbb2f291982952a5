package ioreader_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gnames/gmlas/internal/ioreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlePool(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "doc.gml")
	err := os.WriteFile(path, []byte("<a/>"), 0644)
	require.Nil(t, err)

	p := ioreader.NewHandlePool(path)
	f1, err := p.Get()
	require.Nil(t, err)
	bs, err := io.ReadAll(f1)
	require.Nil(t, err)
	assert.Equal("<a/>", string(bs))
	p.Put(f1)

	f2, err := p.Get()
	require.Nil(t, err)
	assert.Same(f1, f2)
	bs, err = io.ReadAll(f2)
	require.Nil(t, err)
	assert.Equal("<a/>", string(bs), "handle is rewound")

	f3, err := p.Get()
	require.Nil(t, err)
	assert.NotSame(f2, f3)
	p.Put(f2)
	p.Put(f3)
	assert.Nil(p.Close())
}

func TestHandlePoolMissing(t *testing.T) {
	p := ioreader.NewHandlePool(filepath.Join(t.TempDir(), "none.gml"))
	_, err := p.Get()
	assert.NotNil(t, err)
}
