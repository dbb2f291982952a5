// Package ioreader streams a GML document and turns its elements into
// features of the layers built from the analyzed schemas.
//
// The reader is a push state machine fed by XML tokens (startElement,
// characters, endElement) with a pull interface on top: NextFeature
// reads tokens until at least one feature is complete. A document is
// read twice. The first pass only learns about the document (SRS of
// geometry columns, used layers and fields, xlink:href values matching
// URL rules, SWE content) and adjusts the layer set. The second pass
// emits the features.
package ioreader

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"maps"

	"github.com/beevik/etree"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/gmlas"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/xpathmatch"
	"github.com/gnames/gmlas/pkg/xsd"
	"github.com/gnames/gnuuid"
	"golang.org/x/net/html/charset"
)

// progressStep is the number of bytes between progress reports.
const progressStep = 100 * 1024

// Option configures a Reader.
type Option func(*Reader)

// OptName sets the document name used in messages and for the hash that
// prefixes generated identifiers of top-level features.
func OptName(name string) Option {
	return func(r *Reader) {
		r.name = name
		r.hash = gnuuid.New(name).String()
	}
}

// OptSize sets the document size in bytes for progress reports.
func OptSize(size int64) Option {
	return func(r *Reader) {
		r.size = size
	}
}

// OptProgress sets a function called while reading with the number of
// bytes read and the total size (0 if unknown). Returning false stops
// reading.
func OptProgress(fn func(read, total int64) bool) Option {
	return func(r *Reader) {
		r.progress = fn
	}
}

// OptLoader sets the loader used to resolve xlink:href values.
func OptLoader(l gmlas.ResourceLoader) Option {
	return func(r *Reader) {
		r.loader = l
	}
}

// Reader reads features of one document.
type Reader struct {
	cfg    *config.Config
	set    *layer.Set
	loader gmlas.ResourceLoader

	name string
	hash string
	size int64

	maxLevel   int
	maxContent int

	dec      *xml.Decoder
	ctx      context.Context
	progress func(read, total int64) bool
	lastPos  int64

	firstPass bool
	eof       bool
	err       error
	warnings  int

	uriToPrefix map[string]string
	swePrefix   string

	level       int
	xpathLens   []int
	curXPath    string
	curSubXPath string

	cur   frame
	stack []frame
	ready []*layer.Feature

	curField      int
	curGeomField  int
	curFieldLevel int
	silentLevel   int

	text         []byte
	textList     []string
	textListSize int

	blob      bool
	blobUpper bool
	blobRoot  *etree.Element
	blobStack []*etree.Element
	blobSize  int

	fids map[*layer.Layer]int64

	ignored     *xpathmatch.Matcher
	ignoredWarn map[string]bool

	swapAxes map[string]bool
	xlink    *resolver

	// first pass bookkeeping
	unknownSRS  map[geomKey]bool
	xlinkFields map[*layer.Layer]map[string]map[int]struct{}
	pending     *pending
}

// New creates a Reader of src for the layers of set.
func New(
	cfg *config.Config,
	set *layer.Set,
	src io.Reader,
	opts ...Option,
) *Reader {
	res := &Reader{
		cfg:           cfg,
		set:           set,
		name:          "document",
		cur:           newFrame(),
		curField:      -1,
		curGeomField:  -1,
		curFieldLevel: -1,
		silentLevel:   -1,
		maxLevel:      cfg.Reader.MaxLevel,
		maxContent:    cfg.Reader.MaxContentSize,
		fids:          make(map[*layer.Layer]int64),
		swapAxes:      make(map[string]bool),
		unknownSRS:    make(map[geomKey]bool),
		xlinkFields:   make(map[*layer.Layer]map[string]map[int]struct{}),
		pending:       newPending(),
	}
	if res.maxLevel <= 0 {
		res.maxLevel = 100
	}
	if res.maxContent <= 0 {
		res.maxContent = 512_000_000
	}
	res.hash = gnuuid.New(res.name).String()
	for _, opt := range opts {
		opt(res)
	}

	res.uriToPrefix = maps.Clone(set.URIToPrefix)
	if res.uriToPrefix == nil {
		res.uriToPrefix = make(map[string]string)
	}
	for uri, prefix := range map[string]string{
		xsd.NamespaceXSI:   "xsi",
		xsd.NamespaceXLink: "xlink",
		xsd.NamespaceXML:   "xml",
		xsd.NamespaceSWE:   "swe",
	} {
		if res.uriToPrefix[uri] == "" {
			res.uriToPrefix[uri] = prefix
		}
	}
	res.swePrefix = res.uriToPrefix[xsd.NamespaceSWE]

	patterns := make([]string, len(cfg.Analyzer.IgnoredXPaths))
	res.ignoredWarn = make(map[string]bool, len(patterns))
	for i, v := range cfg.Analyzer.IgnoredXPaths {
		patterns[i] = v.XPath
		res.ignoredWarn[v.XPath] = v.Warn
	}
	res.ignored = xpathmatch.New(cfg.Analyzer.Namespaces, patterns)
	res.ignored.SetDocumentMapURIToPrefix(set.URIToPrefix)

	res.xlink = newResolver(cfg.XLink, res.loader)

	res.dec = xml.NewDecoder(src)
	res.dec.CharsetReader = charset.NewReaderLabel
	return res
}

// Warnings returns the number of warnings reported so far.
func (r *Reader) Warnings() int {
	return r.warnings
}

// NextFeature returns the next complete feature, or io.EOF at the end of
// the document. Features completed before a read error are returned
// before the error.
func (r *Reader) NextFeature(ctx context.Context) (*layer.Feature, error) {
	r.ctx = ctx
	for {
		if len(r.ready) > 0 {
			f := r.ready[0]
			r.ready[0] = nil
			r.ready = r.ready[1:]
			return f, nil
		}
		if r.err != nil {
			return nil, r.err
		}
		if r.eof {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			r.err = err
			return nil, err
		}

		tok, err := r.dec.Token()
		if err == io.EOF {
			r.eof = true
			continue
		}
		if err != nil {
			r.err = XMLError(r.name, err)
			continue
		}

		switch t := tok.(type) {
		case xml.StartElement:
			r.startElement(t)
		case xml.EndElement:
			r.endElement()
		case xml.CharData:
			r.characters(t)
		}

		if r.err == nil && !r.reportProgress() {
			r.err = InterruptedError()
		}
	}
}

func (r *Reader) reportProgress() bool {
	if r.progress == nil {
		return true
	}
	pos := r.dec.InputOffset()
	if pos-r.lastPos < progressStep && len(r.ready) == 0 {
		return true
	}
	r.lastPos = pos
	return r.progress(pos, r.size)
}

func (r *Reader) warn(msg string, args ...any) {
	r.warnings++
	slog.Warn(msg, args...)
}

// unexpected reports content not described by the schemas.
func (r *Reader) unexpected(msg string, args ...any) {
	if r.cfg.Reader.WarnUnexpected {
		r.warn(msg, args...)
	} else {
		slog.Debug(msg, args...)
	}
	if r.cfg.Reader.Validate && !r.firstPass {
		r.validationError(msg, args...)
	}
}

func (r *Reader) validationError(msg string, args ...any) {
	if !r.cfg.Reader.Validate {
		return
	}
	if !r.cfg.Reader.WarnUnexpected {
		r.warn(msg, args...)
	}
	if r.cfg.Reader.FailIfValidationError && r.err == nil {
		r.err = ValidationError(msg)
	}
}

// qualified returns prefix:local for a namespace URI known to the
// layers, local otherwise.
func (r *Reader) qualified(n xml.Name) string {
	prefix := r.uriToPrefix[n.Space]
	if prefix == "" {
		return n.Local
	}
	return prefix + ":" + n.Local
}
