// Package xpathmatch matches element and attribute paths of a document
// against a list of reference XPath patterns.
//
// Patterns are a small subset of XPath: steps separated by '/', attribute
// steps starting with '@', a leading '/' anchoring the first step as a
// direct child, and '//' allowing any number of intermediate elements.
// Prefixes in patterns refer to a caller supplied prefix to namespace map
// and are rewritten to the prefixes used in the document paths.
package xpathmatch

import (
	"strings"
)

type component struct {
	value       string
	directChild bool
}

// Matcher holds compiled reference XPaths.
type Matcher struct {
	prefixToURI map[string]string
	uncompiled  []string
	compiled    [][]component
}

// New creates a Matcher for patterns whose prefixes are resolved with
// prefixToURI. The patterns are compiled immediately with the identity
// mapping and can be recompiled with SetDocumentMapURIToPrefix once
// document prefixes are known.
func New(prefixToURI map[string]string, patterns []string) *Matcher {
	res := &Matcher{}
	res.SetRefXPaths(prefixToURI, patterns)
	return res
}

// SetRefXPaths sets the reference patterns.
func (m *Matcher) SetRefXPaths(prefixToURI map[string]string, patterns []string) {
	m.prefixToURI = prefixToURI
	m.uncompiled = patterns
	m.compile(nil)
}

// SetDocumentMapURIToPrefix rewrites pattern prefixes to the prefixes
// assigned to namespace URIs in analyzed documents.
func (m *Matcher) SetDocumentMapURIToPrefix(uriToPrefix map[string]string) {
	m.compile(uriToPrefix)
}

// GetRefXPaths returns the patterns as they were given.
func (m *Matcher) GetRefXPaths() []string {
	return m.uncompiled
}

// Len returns the number of patterns.
func (m *Matcher) Len() int {
	return len(m.uncompiled)
}

func (m *Matcher) compile(uriToPrefix map[string]string) {
	m.compiled = make([][]component, 0, len(m.uncompiled))
	for _, v := range m.uncompiled {
		m.compiled = append(m.compiled, m.compileOne(v, uriToPrefix))
	}
}

func (m *Matcher) compileOne(
	xpath string,
	uriToPrefix map[string]string,
) []component {
	var res []component
	cur := xpath
	for {
		var direct bool
		if strings.HasPrefix(cur, "//") {
			cur = cur[2:]
		} else if strings.HasPrefix(cur, "/") {
			cur = cur[1:]
			direct = true
		}

		node := cur
		pos := strings.IndexByte(cur, '/')
		if pos >= 0 {
			node = cur[:pos]
			cur = cur[pos:]
		}

		var attr bool
		if strings.HasPrefix(node, "@") {
			attr = true
			node = node[1:]
		}

		val := node
		if col := strings.IndexByte(node, ':'); col >= 0 && uriToPrefix != nil {
			prefix := node[:col]
			uri := m.prefixToURI[prefix]
			if docPrefix := uriToPrefix[uri]; docPrefix != "" {
				val = docPrefix + ":" + node[col+1:]
			}
		}
		if attr {
			val = "@" + val
		}

		res = append(res, component{value: val, directChild: direct})
		if pos < 0 {
			break
		}
	}
	return res
}

// MatchesRefXPath checks xpath against all patterns and returns the first
// matching pattern.
func (m *Matcher) MatchesRefXPath(xpath string) (string, bool) {
	for i, v := range m.compiled {
		if matches(xpath, v) {
			return m.uncompiled[i], true
		}
	}
	return "", false
}

func matches(xpath string, ref []component) bool {
	if len(ref) == 0 {
		return false
	}
	pos := 0
	idx := 0
	direct := ref[0].directChild
	for pos < len(xpath) && idx < len(ref) {
		direct = ref[idx].directChild
		next := strings.IndexByte(xpath[pos:], '/')

		var node string
		if next < 0 {
			node = xpath[pos:]
		} else {
			next += pos
			node = xpath[pos:next]
		}

		if node != ref[idx].value {
			if direct || next < 0 {
				return false
			}
			pos = next + 1
			continue
		}

		if next < 0 {
			pos = len(xpath)
		} else {
			pos = next + 1
		}
		idx++
		direct = true
	}

	return (!direct || pos == len(xpath)) && idx == len(ref)
}
