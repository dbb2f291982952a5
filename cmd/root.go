/*
Copyright © 2025 Dmitry Mozzherin <dmozzherin@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gnames/gmlas/internal/ioconfig"
	"github.com/gnames/gmlas/internal/iofs"
	"github.com/gnames/gmlas/internal/iologger"
	app "github.com/gnames/gmlas/pkg"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gn"
	"github.com/spf13/cobra"
)

var (
	// cfgPath is a config file given with --config.
	cfgPath string
	opts    []config.Option
	cfg     *config.Config
)

// getRootCmd returns the root command with all subcommands attached.
func getRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Version: fmt.Sprintf("version: %s\nbuild:   %s", app.Version, app.Build),
		Use:     "gmlas",
		Short:   "Converts GML and XML documents into relational layers",
		Long: `GMLAS reads the XML Schemas of a document and turns them into
relational layers: tables with typed columns, primary keys and links
between parent and child tables. The document is then streamed into
these layers and written to SQLite, PostgreSQL or summarized.

Configuration precedence (highest to lowest):
  1. CLI flags
  2. Environment variables (GMLAS_*)
  3. Config file (~/.config/gmlas/config.yaml)
  4. Built-in defaults

Examples:
  gmlas analyze roads.gml
  gmlas analyze roads.xsd --format yaml
  gmlas convert roads.gml -o roads.sqlite
  gmlas convert roads.gml --format postgres
  gmlas write roads.sqlite -o roads.xml`,
		PersistentPreRunE: bootstrap,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}

	// Remove the automatic "gmlas version" prefix
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Flags().BoolP("version", "V", false, "version for gmlas")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"config file (default ~/.config/gmlas/config.yaml)")

	rootCmd.AddCommand(getAnalyzeCmd(), getConvertCmd(), getWriteCmd())
	return rootCmd
}

func bootstrap(cmd *cobra.Command, args []string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	if err = iofs.EnsureDirs(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	// Initialize logging with hardcoded defaults
	// Will be reconfigured later with user's config settings
	defaultLog := config.LogConfig{
		Format:      "json",
		Level:       "info",
		Destination: "file",
	}
	if err = iologger.Init(config.LogDir(homeDir), defaultLog); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	if err = iofs.EnsureConfigFile(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	path := cfgPath
	if path == "" {
		path = config.ConfigFilePath(homeDir)
	}
	cfgFile, err := ioconfig.Load(path)
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	cfg = config.New()
	cfg.Update(cfgFile.ToOptions())
	cfg.Update([]config.Option{config.OptHomeDir(homeDir)})

	if err = iologger.Init(config.LogDir(cfg.HomeDir), cfg.Log); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	slog.Info("Configuration loaded", "config_file", path)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := getRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
