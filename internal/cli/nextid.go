package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/idalloc"
)

func newNextIDCmd(a *app) *cobra.Command {
	var seed string
	var count int

	cmd := &cobra.Command{
		Use:   "next-id FILE",
		Short: "Allocate identifiers not yet used in a document",
		Long: `next-id increments the trailing lowercase suffix of --seed until it finds an
identifier that no marker in FILE uses (step1 -> step1a -> step1b ...).
FILE is read as raw text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			cache := idalloc.NewCache(a.cfg.IDCacheTTL)
			doc := analysis.TextSnapshot(data)
			ids := make([]string, 0, count)
			for range count {
				ids = append(ids, cache.Next(doc, seed))
			}
			return a.printer.PrintIDs(ids)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "Identifier to increment from")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of identifiers to allocate")
	return cmd
}
