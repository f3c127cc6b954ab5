// Package cli implements the markforest command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/config"
	"github.com/dgallion1/markforest/internal/parser"
)

// Version is set at build time.
var Version = "dev"

// app carries the state resolved by the root command for its children.
type app struct {
	// Flags
	output     string
	query      string
	configFile string
	debug      bool

	cfg      config.Config
	log      *slog.Logger
	analyzer *analysis.Analyzer
	printer  *Printer
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "markforest",
		Short: "Build marker forests and connector hierarchies from documents",
		Long: `markforest reads documents containing inline {id|parent|label} tree markers
and {identifier|options} connector markers, and reports the validated forest
of every paragraph together with the inferred connector hierarchy.

Environment Variables:
  MARKFOREST_OUTPUT           Default output format (text, json, yaml)
  CONNECTOR_BUCKET_WIDTH      Track bucket width for connector inference
  PDF_FALLBACK_PDFTOTEXT      Use pdftotext when PDF extraction fails`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "Output format: text, json or yaml")
	root.PersistentFlags().StringVar(&a.query, "query", "", "jq expression applied to JSON output")
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(newAnalyzeCmd(a), newNextIDCmd(a), newWatchCmd(a))
	return root
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a.cfg = config.Load()
	if a.configFile != "" {
		cfg, err := config.LoadFile(a.configFile, a.cfg)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	// Output format selection: --output > config > non-terminal json > text
	format := strings.ToLower(strings.TrimSpace(a.output))
	if format == "" {
		format = a.cfg.OutputFormat
	}
	if format == "" && !isTerminal(cmd.OutOrStdout()) {
		format = "json"
	}
	if format == "" {
		format = "text"
	}
	if err := config.ValidateOutput(format); err != nil {
		return err
	}
	if a.query != "" && format != "json" {
		return fmt.Errorf("--query requires json output")
	}

	a.printer = NewPrinter(cmd.OutOrStdout(), Format(format), a.query)
	a.analyzer = analysis.New(analysis.Options{Connector: a.cfg.Connector.Inference()}, nil, a.log).WithSource("cli")
	return nil
}

// analyzeFile parses path by extension and analyses it.
func (a *app) analyzeFile(path string) (*analysis.Result, error) {
	p, err := parser.ForFile(path, parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext})
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return a.analyzer.Analyze(doc), nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
