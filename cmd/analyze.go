package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gnames/gmlas/internal/ioconvert"
	"github.com/gnames/gmlas/internal/ioresource"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// getAnalyzeCmd returns the analyze command.
func getAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze <xml|xsd> [xsd...]",
		Short: "Show layers generated from XML schemas",
		Long: `Load XML schemas and show layers and fields that a conversion
would create, without reading any features.

Schemas are taken from the xsi:schemaLocation of an XML document, or
given directly as XSD files. Additional XSD files after the document
replace the schemas it references.

Examples:
  gmlas analyze roads.gml
  gmlas analyze roads.xsd common.xsd
  gmlas analyze roads.gml --format yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runAnalyze(cmd, args)
			if err != nil {
				printError(err)
			}
			return err
		},
	}

	analyzeCmd.Flags().StringSliceP("xsd", "x", nil,
		"schema files to use instead of the referenced ones")
	analyzeCmd.Flags().StringP("format", "f", "text",
		"output format: text or yaml")
	analyzeCmd.Flags().Bool("documentation", false,
		"include xs:documentation in the yaml output")
	analyzeCmd.Flags().Bool("refresh-cache", false,
		"remove cached remote schemas before the analysis")

	return analyzeCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	applyFlags(cmd, xsdFlag, documentationFlag)
	if err := refreshCache(cmd); err != nil {
		return err
	}

	src := args[0]
	if xsds := schemaArgs(args); len(xsds) > 0 {
		cfg.Update([]config.Option{config.OptReaderSchemaFiles(xsds)})
	}

	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	if format != "text" && format != "yaml" {
		return fmt.Errorf("unknown format %q, use text or yaml", format)
	}

	conv := ioconvert.New(cfg, ioresource.New(cfg))
	set, err := conv.Analyze(context.Background(), src)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format == "yaml" {
		return dumpYAML(w, set)
	}
	printLayers(w, set)
	return nil
}

// schemaArgs returns XSD files given as arguments.
func schemaArgs(args []string) []string {
	if isXSD(args[0]) {
		if len(args) == 1 {
			return nil
		}
		return args
	}
	return args[1:]
}

func isXSD(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xsd")
}

type layerDump struct {
	Name          string      `yaml:"name"`
	XPath         string      `yaml:"xpath,omitempty"`
	Category      string      `yaml:"category"`
	Parent        string      `yaml:"parent,omitempty"`
	Documentation string      `yaml:"documentation,omitempty"`
	Fields        []fieldDump `yaml:"fields,omitempty"`
	Geometries    []geomDump  `yaml:"geometries,omitempty"`
}

type fieldDump struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	XPath    string `yaml:"xpath,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Default  string `yaml:"default,omitempty"`
}

type geomDump struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	XPath string `yaml:"xpath,omitempty"`
}

func dumpLayers(set *layer.Set) []layerDump {
	res := make([]layerDump, 0, len(set.Layers))
	for _, l := range set.Layers {
		d := layerDump{
			Name:     l.Name,
			XPath:    l.Class.XPath,
			Category: l.Category(),
		}
		if cfg.Analyzer.IncludeDocumentation {
			d.Documentation = l.Class.Documentation
		}
		if l.Parent != nil {
			d.Parent = l.Parent.Name
		}
		for _, v := range l.Fields {
			d.Fields = append(d.Fields, fieldDump{
				Name:     v.Name,
				Type:     v.Type.String(),
				XPath:    v.XPath,
				Nullable: v.Nullable,
				Default:  v.Default,
			})
		}
		for _, v := range l.GeomFields {
			d.Geometries = append(d.Geometries, geomDump{
				Name:  v.Name,
				Type:  v.GeomType.String(),
				XPath: v.XPath,
			})
		}
		res = append(res, d)
	}
	return res
}

func dumpYAML(w io.Writer, set *layer.Set) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(dumpLayers(set)); err != nil {
		return err
	}
	return enc.Close()
}

func printLayers(w io.Writer, set *layer.Set) {
	for _, l := range set.Layers {
		fmt.Fprintf(w, "%s (%s)\n", l.Name, l.Category())
		for _, v := range l.Fields {
			fmt.Fprintf(w, "  %-30s %-14s %s\n", v.Name, v.Type, v.XPath)
		}
		for _, v := range l.GeomFields {
			fmt.Fprintf(w, "  %-30s %-14s %s\n", v.Name, v.GeomType, v.XPath)
		}
	}
	fmt.Fprintf(w, "\n%d layers\n", len(set.Layers))
}
