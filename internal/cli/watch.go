package cli

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/markforest/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch FILE...",
		Short: "Re-analyse documents every time they change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := func(path string) {
				res, err := a.analyzeFile(path)
				if err != nil {
					a.log.Error("analysis failed", "file", path, "error", err)
					return
				}
				if err := a.printer.PrintResult(path, res); err != nil {
					a.log.Error("print failed", "file", path, "error", err)
				}
			}

			for _, path := range args {
				report(path)
			}

			w, err := watch.New(args, a.cfg.WatchDebounce, report, a.log)
			if err != nil {
				return err
			}
			a.log.Info("watching", "files", len(args))
			return w.Run(cmd.Context())
		},
	}
}
