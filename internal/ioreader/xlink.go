package ioreader

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/gnames/gmlas/internal/ioresource"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/gmlas"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/model"
)

// maxCacheSize limits the total size of resolved documents kept in
// memory.
const maxCacheSize = 10 * 1024 * 1024

const (
	modeRawContent      = "RawContent"
	modeFieldsFromXPath = "FieldsFromXPath"
)

// resolver downloads documents referenced by xlink:href.
type resolver struct {
	cfg    config.XLinkConfig
	loader gmlas.ResourceLoader

	cache     map[string]string
	cacheSize int
	failed    map[string]bool

	exprs map[string]*xpath.Expr
}

func newResolver(cfg config.XLinkConfig, loader gmlas.ResourceLoader) *resolver {
	return &resolver{
		cfg:    cfg,
		loader: loader,
		cache:  make(map[string]string),
		failed: make(map[string]bool),
		exprs:  make(map[string]*xpath.Expr),
	}
}

// matchingRule returns the index of the first rule with a prefix of url,
// or -1.
func (x *resolver) matchingRule(url string) int {
	for i, v := range x.cfg.Rules {
		if v.URLPrefix != "" && strings.HasPrefix(url, v.URLPrefix) {
			return i
		}
	}
	return -1
}

// content returns the document at url. Failures are reported once per
// url.
func (x *resolver) content(ctx context.Context, url string) (string, bool) {
	if res, ok := x.cache[url]; ok {
		return res, true
	}
	if x.loader == nil || x.failed[url] {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	bs, err := x.loader.Fetch(ctx, url)
	if err != nil {
		x.failed[url] = true
		slog.Warn("Cannot resolve xlink:href", "url", url, "error", err)
		return "", false
	}
	res := string(bs)
	if x.cacheSize+len(res) <= maxCacheSize {
		x.cache[url] = res
		x.cacheSize += len(res)
	}
	return res, true
}

func (x *resolver) compile(expr string, ns map[string]string) (*xpath.Expr, error) {
	if res, ok := x.exprs[expr]; ok {
		return res, nil
	}
	res, err := xpath.CompileWithNS(expr, ns)
	if err != nil {
		return nil, err
	}
	x.exprs[expr] = res
	return res, nil
}

// processXLinkHref handles the value of an xlink:href attribute mapped
// to a column.
func (r *Reader) processXLinkHref(attrXPath, href string) {
	f := r.cur.feature
	l := r.cur.layer

	if id, ok := strings.CutPrefix(href, "#"); ok {
		if idx := l.FieldIndex(model.PKIDXPath(attrXPath)); idx >= 0 {
			r.setField(f, idx, id)
		}
		return
	}
	if !ioresource.IsURL(href) {
		return
	}

	if ri := r.xlink.matchingRule(href); ri >= 0 {
		rule := r.cfg.XLink.Rules[ri]
		if r.firstPass {
			r.recordXLinkRule(l, attrXPath, ri)
			if rule.ResolutionMode == modeRawContent {
				r.setRawContent(f, l, attrXPath, "X")
			}
			return
		}
		switch rule.ResolutionMode {
		case modeRawContent:
			if s, ok := r.xlink.content(r.ctx, href); ok {
				r.setRawContent(f, l, attrXPath, s)
			}
		case modeFieldsFromXPath:
			r.fieldsFromXPath(f, l, attrXPath, href, rule)
		}
		return
	}

	if !r.cfg.XLink.ResolutionEnabled {
		return
	}
	if r.firstPass {
		r.setRawContent(f, l, attrXPath, "X")
		return
	}
	if s, ok := r.xlink.content(r.ctx, href); ok {
		r.setRawContent(f, l, attrXPath, s)
	}
}

func (r *Reader) recordXLinkRule(l *layer.Layer, attrXPath string, ri int) {
	byXPath := r.xlinkFields[l]
	if byXPath == nil {
		byXPath = make(map[string]map[int]struct{})
		r.xlinkFields[l] = byXPath
	}
	rules := byXPath[attrXPath]
	if rules == nil {
		rules = make(map[int]struct{})
		byXPath[attrXPath] = rules
	}
	rules[ri] = struct{}{}
}

func (r *Reader) setRawContent(f *layer.Feature, l *layer.Layer, attrXPath, s string) {
	if idx := l.FieldIndex(model.RawContentXPath(attrXPath)); idx >= 0 {
		r.setField(f, idx, s)
	}
}

// fieldsFromXPath evaluates the XPath expressions of a rule against the
// resolved document and fills the derived columns. Several matches of a
// string column are joined with a space.
func (r *Reader) fieldsFromXPath(
	f *layer.Feature,
	l *layer.Layer,
	attrXPath, href string,
	rule config.XLinkRule,
) {
	s, ok := r.xlink.content(r.ctx, href)
	if !ok {
		return
	}
	doc, err := xmlquery.Parse(bytes.NewReader([]byte(s)))
	if err != nil {
		r.warn("Cannot parse resolved document", "url", href, "error", err)
		return
	}
	for _, v := range rule.Fields {
		idx := l.FieldIndex(model.DerivedXPath(attrXPath, v.Name))
		if idx < 0 {
			continue
		}
		expr, err := r.xlink.compile(v.XPath, rule.Namespaces)
		if err != nil {
			r.warn("Invalid XPath of xlink rule", "xpath", v.XPath, "error", err)
			continue
		}
		nodes := xmlquery.QuerySelectorAll(doc, expr)
		if len(nodes) == 0 {
			continue
		}
		if l.Fields[idx].Type != layer.String {
			r.setField(f, idx, nodeValue(nodes[0]))
			continue
		}
		vals := make([]string, len(nodes))
		for i, n := range nodes {
			vals[i] = nodeValue(n)
		}
		r.setField(f, idx, strings.Join(vals, " "))
	}
}

// nodeValue returns the text of attributes and simple elements, and the
// serialized content of complex elements.
func nodeValue(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.AttributeNode, xmlquery.TextNode, xmlquery.CharDataNode:
		return n.InnerText()
	}
	simple := true
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			simple = false
			break
		}
	}
	if simple {
		return n.InnerText()
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(c.OutputXML(true))
	}
	return sb.String()
}

// xlinkFieldType converts the type of a rule field to a column type.
func xlinkFieldType(s string) layer.Type {
	switch s {
	case "integer":
		return layer.Integer
	case "long":
		return layer.Integer64
	case "double":
		return layer.Real
	case "dateTime":
		return layer.DateTime
	default:
		return layer.String
	}
}
