package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gnames/gmlas/internal/iowriter"
	"github.com/gnames/gn"
	"github.com/gnames/gnlib"
	"github.com/spf13/cobra"
)

// getWriteCmd returns the write command.
func getWriteCmd() *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write <sqlite>",
		Short: "Write layers of a converted SQLite file back to XML",
		Long: `Rebuild an XML document from a SQLite file created by
"gmlas convert --metadata".

Metadata tables tell where every layer and field come from. Rows of
top-level layers become feature members, nested layers, repeated
groups and linked features are written back inside them.

Wrappings:
  gmlas  ogr_gmlas:FeatureCollection with ogr_gmlas:featureMember
  wfs2   wfs:FeatureCollection with wfs:member (WFS 2.0)

Examples:
  gmlas write roads.sqlite
  gmlas write roads.sqlite -o roads.xml --wrapping wfs2
  gmlas write roads.sqlite -o - --layers Road --indent 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runWrite(cmd, args[0])
			if err != nil {
				printError(err)
			}
			return err
		},
	}

	writeCmd.Flags().StringP("output", "o", "",
		`XML file to create, "-" for standard output`)
	writeCmd.Flags().StringP("wrapping", "w", "",
		"feature collection: gmlas or wfs2")
	writeCmd.Flags().IntP("indent", "i", 2,
		"spaces per indentation level, 0 for none")
	writeCmd.Flags().String("comment", "",
		"comment written after the XML declaration")
	writeCmd.Flags().StringSliceP("layers", "l", nil,
		"top-level layers to write, all by default")

	return writeCmd
}

func runWrite(cmd *cobra.Command, src string) error {
	ctx := context.Background()
	applyFlags(cmd, wrappingFlag, indentFlag, commentFlag)

	layers, _ := cmd.Flags().GetStringSlice("layers")
	w, err := iowriter.Open(ctx, cfg.Writer, src, iowriter.OptLayers(layers))
	if err != nil {
		return err
	}
	defer w.Close()

	output, _ := cmd.Flags().GetString("output")
	if output == "-" {
		_, err = w.Write(ctx, cmd.OutOrStdout())
		return err
	}

	path := xmlPath(src, output)
	gn.Info("Writing to <em>%s</em>", path)
	n, err := writeFile(ctx, w, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), gnlib.FormatMessage(
		"<em>✓ %d features of %s are written to %s.</em>",
		[]any{n, src, path},
	))
	return nil
}

func writeFile(ctx context.Context, w *iowriter.Writer, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, iowriter.OutputError(err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	n, err := w.Write(ctx, buf)
	if err != nil {
		return n, err
	}
	if err = buf.Flush(); err != nil {
		return n, iowriter.OutputError(err)
	}
	if err = f.Close(); err != nil {
		return n, iowriter.OutputError(err)
	}
	return n, nil
}

func xmlPath(src, output string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".xml"
}
