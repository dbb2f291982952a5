// Package ioconvert runs the whole conversion: loading schemas, analyzing
// them into layers, the first pass over the document that finalizes the
// layers, and the second pass that streams features into a sink.
package ioconvert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/gnames/gmlas/internal/ioreader"
	"github.com/gnames/gmlas/internal/ioresource"
	"github.com/gnames/gmlas/internal/ioxsd"
	"github.com/gnames/gmlas/pkg/analyzer"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/gmlas"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/schema"
	"github.com/gnames/gmlas/pkg/sink"
	"github.com/gnames/gnfmt"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// chanSize is the number of features buffered between the reader and
// the writer goroutines.
const chanSize = 1000

// Option configures the converter.
type Option func(*converter)

// OptProgressBar shows a progress bar on STDERR during the second pass.
func OptProgressBar(b bool) Option {
	return func(c *converter) {
		c.progressBar = b
	}
}

type converter struct {
	cfg         *config.Config
	loader      gmlas.ResourceLoader
	progressBar bool

	// locations of schema documents of the last analysis
	locations []string
}

// New creates a Converter that loads resources with loader.
func New(
	cfg *config.Config,
	loader gmlas.ResourceLoader,
	opts ...Option,
) gmlas.Converter {
	res := &converter{cfg: cfg, loader: loader}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Analyze implements gmlas.Converter.
func (c *converter) Analyze(ctx context.Context, src string) (*layer.Set, error) {
	schemas, base, err := c.schemas(ctx, src)
	if err != nil {
		return nil, err
	}

	ld := ioxsd.New(c.loader)
	xs, err := ld.Load(ctx, schemas, base)
	if err != nil {
		return nil, err
	}
	c.locations = ld.Locations()

	a := analyzer.New(c.cfg.Analyzer, xs)
	classes, err := a.Analyze()
	if err != nil {
		return nil, err
	}

	set := layer.NewSet(c.cfg, classes, a.Registry().URIToPrefix())
	set.Schemas = schemas
	slog.Info("Layers created",
		"source", src,
		"classes", len(classes),
		"layers", len(set.Layers),
	)
	return set, nil
}

// schemas returns schemas to analyze and the location relative
// references are resolved against.
func (c *converter) schemas(
	ctx context.Context,
	src string,
) ([]model.URIFilename, string, error) {
	if files := c.cfg.Reader.SchemaFiles; len(files) > 0 {
		res := make([]model.URIFilename, len(files))
		for i, v := range files {
			res[i] = model.URIFilename{Location: v}
		}
		return res, "", nil
	}

	if strings.EqualFold(filepath.Ext(src), ".xsd") {
		return []model.URIFilename{{Location: src}}, "", nil
	}

	rc, loc, err := c.loader.Open(ctx, src, "")
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	res, err := ioxsd.SniffSchemaLocations(rc)
	if err != nil {
		return nil, "", ioreader.XMLError(src, err)
	}
	slog.Debug("Schemas referenced by document",
		"document", loc, "schemas", len(res))
	return res, loc, nil
}

// Convert implements gmlas.Converter. The sink is closed at the end.
func (c *converter) Convert(
	ctx context.Context,
	src string,
	out sink.Sink,
) (*gmlas.Stats, error) {
	start := time.Now()
	if ioresource.IsURL(src) {
		return nil, RemoteDocumentError(src)
	}

	set, err := c.Analyze(ctx, src)
	if err != nil {
		return nil, err
	}

	pool := ioreader.NewHandlePool(src)
	defer pool.Close()

	var size int64
	if fi, err := os.Stat(src); err == nil {
		size = fi.Size()
	}

	stats := &gmlas.Stats{
		PerLayer:    make(map[string]int),
		SchemaFiles: c.locations,
	}

	fp, warnings, err := c.firstPass(ctx, set, pool, src, size)
	if err != nil {
		return nil, err
	}
	stats.Warnings += warnings
	stats.RemovedLayer = fp.RemovedLayers
	stats.Layers = len(set.Layers)

	if err = c.createLayers(ctx, set, out, src); err != nil {
		return nil, err
	}

	warnings, err = c.secondPass(ctx, set, pool, src, size, out, stats)
	stats.Warnings += warnings
	if cerr := out.Close(); err == nil && cerr != nil {
		err = SinkError("*", cerr)
	}
	if err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	slog.Info("Conversion is done",
		"document", src,
		"layers", stats.Layers,
		"features", humanize.Comma(int64(stats.Features)),
		"warnings", stats.Warnings,
		"duration", gnfmt.TimeString(stats.Duration.Seconds()),
	)
	return stats, nil
}

func (c *converter) readerOptions(src string, size int64) []ioreader.Option {
	return []ioreader.Option{
		ioreader.OptName(src),
		ioreader.OptSize(size),
		ioreader.OptLoader(c.loader),
	}
}

func (c *converter) firstPass(
	ctx context.Context,
	set *layer.Set,
	pool *ioreader.HandlePool,
	src string,
	size int64,
) (*ioreader.FirstPassResult, int, error) {
	f, err := pool.Get()
	if err != nil {
		return nil, 0, err
	}
	defer pool.Put(f)

	r := ioreader.New(c.cfg, set, f, c.readerOptions(src, size)...)
	res, err := r.RunFirstPass(ctx)
	if err != nil {
		return nil, r.Warnings(), err
	}
	if !res.Done {
		slog.Debug("First pass is not needed", "document", src)
	}
	for _, v := range res.RemovedLayers {
		slog.Debug("Layer removed", "layer", v)
	}
	return res, r.Warnings(), nil
}

func (c *converter) createLayers(
	ctx context.Context,
	set *layer.Set,
	out sink.Sink,
	src string,
) error {
	if err := sink.CreateLayers(ctx, out, set); err != nil {
		return SinkError("*", err)
	}
	if !c.cfg.Reader.ExposeMetadataLayers {
		return nil
	}

	mw, ok := out.(sink.MetadataWriter)
	if !ok {
		slog.Warn("Output does not support metadata layers")
		return nil
	}
	md := set.Metadata()
	md.Other = append(md.Other,
		schema.OtherMetadata{Key: "document", Value: src},
		schema.OtherMetadata{Key: "run_id", Value: uuid.NewString()},
		schema.OtherMetadata{
			Key:   "created_at",
			Value: time.Now().UTC().Format(time.RFC3339),
		},
	)
	if err := mw.WriteMetadata(ctx, md); err != nil {
		return SinkError("metadata", err)
	}
	return nil
}

// secondPass reads features in one goroutine and writes them into the
// sink in another one.
func (c *converter) secondPass(
	ctx context.Context,
	set *layer.Set,
	pool *ioreader.HandlePool,
	src string,
	size int64,
	out sink.Sink,
	stats *gmlas.Stats,
) (int, error) {
	f, err := pool.Get()
	if err != nil {
		return 0, err
	}
	defer pool.Put(f)

	opts := c.readerOptions(src, size)
	var bar *pb.ProgressBar
	if c.progressBar {
		bar = newProgressBar(size, "Converting ")
		defer bar.Finish()
		opts = append(opts, ioreader.OptProgress(func(read, _ int64) bool {
			bar.SetCurrent(read)
			return true
		}))
	}
	r := ioreader.New(c.cfg, set, f, opts...)

	ch := make(chan *layer.Feature, chanSize)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(ch)
		for {
			feat, err := r.NextFeature(gCtx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case ch <- feat:
			}
		}
	})

	g.Go(func() error {
		for feat := range ch {
			if err := out.Write(gCtx, feat); err != nil {
				return SinkError(feat.Layer.Name, err)
			}
			stats.Features++
			stats.PerLayer[feat.Layer.Name]++
		}
		return nil
	})

	err = g.Wait()
	if bar != nil && err == nil {
		bar.SetCurrent(size)
	}
	return r.Warnings(), err
}
