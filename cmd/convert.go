package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gnames/gmlas/internal/ioconvert"
	"github.com/gnames/gmlas/internal/iodb"
	"github.com/gnames/gmlas/internal/iopg"
	"github.com/gnames/gmlas/internal/ioresource"
	"github.com/gnames/gmlas/internal/ioschema"
	"github.com/gnames/gmlas/internal/iosqlite"
	"github.com/gnames/gmlas/pkg/gmlas"
	"github.com/gnames/gmlas/pkg/sink"
	"github.com/gnames/gn"
	"github.com/gnames/gnfmt"
	"github.com/gnames/gnlib"
	"github.com/spf13/cobra"
)

// getConvertCmd returns the convert command.
func getConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert <xml>",
		Short: "Convert a GML or XML document into relational layers",
		Long: `Convert a GML or XML document into relational layers.

This command:
  1. Loads schemas referenced by the document (or given with --xsd)
  2. Builds layers from the schemas
  3. Reads the document once to find out which layers and fields are
     used and which geometry types and SRS they have
  4. Reads the document again and writes features to the output

Output formats:
  sqlite    SQLite file, <document>.sqlite unless --output is given
  postgres  PostgreSQL database from the database section of config
  summary   number of features per layer, nothing is written

Examples:
  gmlas convert roads.gml
  gmlas convert roads.gml -o /tmp/roads.sqlite --remove-unused
  gmlas convert roads.gml --format postgres --metadata
  gmlas convert roads.gml --format summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runConvert(cmd, args[0])
			if err != nil {
				printError(err)
			}
			return err
		},
	}

	convertCmd.Flags().StringP("format", "f", "sqlite",
		"output format: sqlite, postgres or summary")
	convertCmd.Flags().StringP("output", "o", "",
		"SQLite file to create")
	convertCmd.Flags().StringSliceP("xsd", "x", nil,
		"schema files to use instead of the referenced ones")
	convertCmd.Flags().BoolP("remove-unused", "r", false,
		"skip layers and fields without data")
	convertCmd.Flags().BoolP("metadata", "m", false,
		"write layer, field and relationship metadata tables")
	convertCmd.Flags().Bool("validate", false,
		"report content that does not follow the schema")
	convertCmd.Flags().IntP("batch-size", "b", 0,
		"features buffered per layer before writing")
	convertCmd.Flags().BoolP("quiet", "q", false,
		"do not show the progress bar")
	convertCmd.Flags().Bool("refresh-cache", false,
		"remove cached remote schemas before the conversion")

	return convertCmd
}

func runConvert(cmd *cobra.Command, src string) error {
	ctx := context.Background()
	applyFlags(cmd,
		outputFormatFlag, outputFlag, xsdFlag, removeUnusedFlag,
		metadataFlag, validateFlag, batchSizeFlag,
	)
	if err := refreshCache(cmd); err != nil {
		return err
	}

	out, release, err := openSink(ctx, src)
	if err != nil {
		return err
	}
	defer release()

	quiet, _ := cmd.Flags().GetBool("quiet")
	conv := ioconvert.New(
		cfg,
		ioresource.New(cfg),
		ioconvert.OptProgressBar(!quiet),
	)

	stats, err := conv.Convert(ctx, src, out)
	if err != nil {
		return err
	}

	printStats(cmd.OutOrStdout(), stats)
	fmt.Fprintln(cmd.OutOrStdout(), successMessage(src))
	return nil
}

// openSink creates the output configured by Output.Format. The returned
// function closes the sink if the conversion did not get to it, and
// releases the database connection.
func openSink(ctx context.Context, src string) (sink.Sink, func(), error) {
	noop := func() {}
	batch := cfg.Database.BatchSize

	switch cfg.Output.Format {
	case "postgres":
		op := iodb.NewPgxOperator()
		if err := op.Connect(ctx, &cfg.Database); err != nil {
			return nil, noop, err
		}
		gn.Info("Connected to database: <em>%s@%s:%d/%s</em>",
			cfg.Database.User, cfg.Database.Host,
			cfg.Database.Port, cfg.Database.Database)
		out := iopg.New(op, ioschema.NewManager(op, batch), batch)
		release := func() {
			_ = out.Close()
			_ = op.Close()
		}
		return out, release, nil
	case "summary":
		return sink.NewMemory(false), noop, nil
	default:
		path := sqlitePath(src)
		out, err := iosqlite.New(path, batch)
		if err != nil {
			return nil, noop, err
		}
		gn.Info("Writing to <em>%s</em>", path)
		return out, func() { _ = out.Close() }, nil
	}
}

func sqlitePath(src string) string {
	if cfg.Output.Path != "" {
		return cfg.Output.Path
	}
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".sqlite"
}

func refreshCache(cmd *cobra.Command) error {
	b, _ := cmd.Flags().GetBool("refresh-cache")
	if !b || cfg.HomeDir == "" {
		return nil
	}
	return ioresource.CleanCache(cfg.HomeDir)
}

func printStats(w io.Writer, stats *gmlas.Stats) {
	names := slices.Sorted(maps.Keys(stats.PerLayer))
	for _, v := range names {
		fmt.Fprintf(w, "%-40s %12s\n", v, humanize.Comma(int64(stats.PerLayer[v])))
	}
	fmt.Fprintf(w, "\n%s features in %d layers, %s warnings, %s\n",
		humanize.Comma(int64(stats.Features)),
		stats.Layers,
		humanize.Comma(int64(stats.Warnings)),
		gnfmt.TimeString(stats.Duration.Seconds()),
	)
	for _, v := range stats.RemovedLayer {
		fmt.Fprintf(w, "skipped empty layer %s\n", v)
	}
}

func successMessage(src string) string {
	switch cfg.Output.Format {
	case "postgres":
		return gnlib.FormatMessage(
			"<em>✓ Document %s is loaded into database %s.</em>",
			[]any{src, cfg.Database.Database},
		)
	case "summary":
		return gnlib.FormatMessage("<em>✓ Document %s is analyzed.</em>",
			[]any{src})
	default:
		return gnlib.FormatMessage(
			"<em>✓ Document %s is converted to %s.</em>",
			[]any{src, sqlitePath(src)},
		)
	}
}
