package analyzer

import (
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/gnames/gmlas/pkg/xsd"
)

// Registry assigns a prefix to every namespace URI met during analysis.
// Prefixes declared in schemas are reused, others are forged from the URI.
type Registry struct {
	uriToPrefix map[string]string
	prefixToURI map[string]string
}

// NewRegistry creates a Registry seeded with prefixes declared in schema
// documents. A declared prefix already taken by another URI is not reused.
func NewRegistry(declared map[string]string) *Registry {
	res := &Registry{
		uriToPrefix: make(map[string]string),
		prefixToURI: make(map[string]string),
	}
	res.set(xsd.NamespaceXMLNS, "xmlns")
	res.set(xsd.NamespaceXSI, "xsi")
	res.set(xsd.NamespaceXML, "xml")
	res.set(xsd.NamespaceXLink, "xlink")

	for _, uri := range slices.Sorted(maps.Keys(declared)) {
		prefix := declared[uri]
		if uri == "" || prefix == "" {
			continue
		}
		if _, ok := res.uriToPrefix[uri]; ok {
			continue
		}
		if _, ok := res.prefixToURI[prefix]; ok {
			continue
		}
		res.set(uri, prefix)
	}
	return res
}

func (r *Registry) set(uri, prefix string) {
	r.uriToPrefix[uri] = prefix
	r.prefixToURI[prefix] = uri
}

// Prefix returns the prefix of a namespace URI, forging a new one for
// unknown URIs. The empty namespace has an empty prefix.
func (r *Registry) Prefix(uri string) string {
	if uri == "" {
		return ""
	}
	if res, ok := r.uriToPrefix[uri]; ok {
		return res
	}

	res := ForgePrefix(uri)
	if other, ok := r.prefixToURI[res]; ok && other != uri {
		base := res
		for i := 2; ; i++ {
			res = base + strconv.Itoa(i)
			if _, ok := r.prefixToURI[res]; !ok {
				break
			}
		}
	}
	r.set(uri, res)
	slog.Debug("Cannot find prefix for namespace, forging one",
		"namespace", uri, "prefix", res,
	)
	return res
}

// XPath returns prefix:local, or local for the empty namespace.
func (r *Registry) XPath(uri, local string) string {
	prefix := r.Prefix(uri)
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// URI returns the namespace of a prefix.
func (r *Registry) URI(prefix string) (string, bool) {
	res, ok := r.prefixToURI[prefix]
	return res, ok
}

// URIToPrefix returns a copy of the namespace to prefix mapping.
func (r *Registry) URIToPrefix() map[string]string {
	return maps.Clone(r.uriToPrefix)
}

// IsGMLNamespace tells if uri is a GML namespace, either by its value or
// by the prefix it is bound to.
func (r *Registry) IsGMLNamespace(uri string) bool {
	if xsd.IsGMLNamespace(uri) {
		return true
	}
	return r.uriToPrefix[uri] == "gml"
}

// ForgePrefix builds a prefix from a namespace URI.
func ForgePrefix(uri string) string {
	res := uri
	switch {
	case strings.HasPrefix(res, "http://www.opengis.net/"):
		res = strings.TrimPrefix(res, "http://www.opengis.net/")
	case strings.HasPrefix(res, "http://"):
		res = strings.TrimPrefix(res, "http://")
	}
	b := []byte(res)
	for i, c := range b {
		if !isAlnum(c) {
			b[i] = '_'
		}
	}
	return string(b)
}

// NamespaceOfLastStep returns the prefix of the last element or attribute
// step of an XPath.
func NamespaceOfLastStep(xpath string) string {
	last := xpath
	if i := strings.LastIndexByte(xpath, '@'); i >= 0 {
		last = xpath[i+1:]
	} else if i := strings.LastIndexByte(xpath, '/'); i >= 0 {
		last = xpath[i+1:]
	}
	if i := strings.IndexByte(last, ':'); i >= 0 {
		return last[:i]
	}
	return ""
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
