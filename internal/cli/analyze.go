package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/markforest/internal/analysis"
)

// FileResult pairs an input path with its analysis.
type FileResult struct {
	File   string           `json:"file"`
	Result *analysis.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Print the forests and connector hierarchy of documents",
		Example: `  markforest analyze notes.md
  markforest analyze -o json --query '.summary' notes.md
  markforest analyze chapter1.docx chapter2.docx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]FileResult, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(a.cfg.MaxBatchConcurrency)
			for i, path := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					res, err := a.analyzeFile(path)
					if err != nil {
						return err
					}
					results[i] = FileResult{File: path, Result: res}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if len(results) == 1 {
				return a.printer.PrintResult(results[0].File, results[0].Result)
			}
			return a.printer.PrintResults(results)
		},
	}
}
