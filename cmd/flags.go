package cmd

import (
	"errors"

	"github.com/gnames/gmlas/internal/iodb"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gn"
	"github.com/gnames/gnlib"
	"github.com/spf13/cobra"
)

type funcFlag func(cmd *cobra.Command)

// applyFlags collects options from flags changed by the user and
// updates the configuration with them.
func applyFlags(cmd *cobra.Command, flags ...funcFlag) {
	opts = nil
	for _, f := range flags {
		f(cmd)
	}
	if cfg == nil {
		cfg = config.New()
	}
	cfg.Update(opts)
}

func xsdFlag(cmd *cobra.Command) {
	ss, _ := cmd.Flags().GetStringSlice("xsd")
	if len(ss) > 0 {
		opts = append(opts, config.OptReaderSchemaFiles(ss))
	}
}

func outputFormatFlag(cmd *cobra.Command) {
	if !cmd.Flags().Changed("format") {
		return
	}
	s, _ := cmd.Flags().GetString("format")
	opts = append(opts, config.OptOutputFormat(s))
}

func outputFlag(cmd *cobra.Command) {
	s, _ := cmd.Flags().GetString("output")
	if s != "" {
		opts = append(opts, config.OptOutputPath(s))
	}
}

func removeUnusedFlag(cmd *cobra.Command) {
	b, _ := cmd.Flags().GetBool("remove-unused")
	if b {
		opts = append(opts,
			config.OptReaderRemoveUnusedLayers(true),
			config.OptReaderRemoveUnusedFields(true),
		)
	}
}

func metadataFlag(cmd *cobra.Command) {
	b, _ := cmd.Flags().GetBool("metadata")
	if b {
		opts = append(opts, config.OptReaderExposeMetadataLayers(true))
	}
}

func validateFlag(cmd *cobra.Command) {
	b, _ := cmd.Flags().GetBool("validate")
	if b {
		opts = append(opts, config.OptReaderValidate(true))
	}
}

func batchSizeFlag(cmd *cobra.Command) {
	if !cmd.Flags().Changed("batch-size") {
		return
	}
	i, _ := cmd.Flags().GetInt("batch-size")
	opts = append(opts, config.OptDatabaseBatchSize(i))
}

func documentationFlag(cmd *cobra.Command) {
	b, _ := cmd.Flags().GetBool("documentation")
	if b {
		opts = append(opts, config.OptAnalyzerIncludeDocumentation(true))
	}
}

func wrappingFlag(cmd *cobra.Command) {
	s, _ := cmd.Flags().GetString("wrapping")
	if s != "" {
		opts = append(opts, config.OptWriterWrapping(s))
	}
}

func indentFlag(cmd *cobra.Command) {
	if !cmd.Flags().Changed("indent") {
		return
	}
	i, _ := cmd.Flags().GetInt("indent")
	opts = append(opts, config.OptWriterIndentSize(i))
}

func commentFlag(cmd *cobra.Command) {
	s, _ := cmd.Flags().GetString("comment")
	if s != "" {
		opts = append(opts, config.OptWriterComment(s))
	}
}

// printError shows an error to the user. Connection errors carry their
// own formatted help.
func printError(err error) {
	var connErr iodb.ConnectionError
	if errors.As(err, &connErr) {
		gnlib.PrintUserMessage(err)
		return
	}
	gn.PrintErrorMessage(err)
}
