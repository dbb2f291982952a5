package xpathmatch_test

import (
	"testing"

	"github.com/gnames/gmlas/pkg/xpathmatch"
	"github.com/stretchr/testify/assert"
)

func TestMatchesRefXPath(t *testing.T) {
	tests := []struct {
		msg     string
		pattern string
		xpath   string
		match   bool
	}{
		{"any depth leaf", "b", "a/b", true},
		{"any depth leaf, not last", "b", "a/b/c", false},
		{"relative two steps", "a/b", "x/a/b", true},
		{"anchored", "/a/b", "a/b", true},
		{"anchored, extra parent", "/a/b", "x/a/b", false},
		{"anchored, extra child", "/a/b", "a/b/c", false},
		{"descendant step", "a//c", "a/b/c", true},
		{"descendant step, deep", "a//d", "a/b/c/d", true},
		{"leading descendant", "//c", "a/b/c", true},
		{"attribute", "a/@id", "x/a/@id", true},
		{"attribute, other name", "a/@id", "x/a/@gid", false},
		{"no partial name match", "a", "ab", false},
		{"prefixed", "gml:boundedBy", "ns:Road/gml:boundedBy", true},
		{"direct child mismatch", "a/b", "a/x/b", false},
	}

	for _, v := range tests {
		m := xpathmatch.New(nil, []string{v.pattern})
		res, ok := m.MatchesRefXPath(v.xpath)
		assert.Equal(t, v.match, ok, v.msg)
		if v.match {
			assert.Equal(t, v.pattern, res, v.msg)
		}
	}
}

func TestFirstMatchWins(t *testing.T) {
	m := xpathmatch.New(nil, []string{"x/y", "b", "a/b"})
	res, ok := m.MatchesRefXPath("a/b")
	assert.True(t, ok)
	assert.Equal(t, "b", res)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []string{"x/y", "b", "a/b"}, m.GetRefXPaths())
}

func TestDocumentPrefixes(t *testing.T) {
	cfgNS := map[string]string{"myns": "http://example.com/ns"}
	m := xpathmatch.New(cfgNS, []string{"myns:Road/@myns:code", "other:x"})

	// before mapping, prefixes are compared verbatim
	_, ok := m.MatchesRefXPath("ex:Road/@ex:code")
	assert.False(t, ok)

	m.SetDocumentMapURIToPrefix(map[string]string{
		"http://example.com/ns": "ex",
	})
	res, ok := m.MatchesRefXPath("ex:Road/@ex:code")
	assert.True(t, ok)
	assert.Equal(t, "myns:Road/@myns:code", res)

	// unknown prefixes are kept as they are
	_, ok = m.MatchesRefXPath("other:x")
	assert.True(t, ok)
}

func TestEmpty(t *testing.T) {
	m := xpathmatch.New(nil, nil)
	_, ok := m.MatchesRefXPath("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}
