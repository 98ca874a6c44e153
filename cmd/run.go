package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/opportunity-crawler/internal/report"
)

func (r *root) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one batch and prints the selected websites",
		Long: `Runs batch.tries independent search-loop instances, merges their
selections by link and writes the result to stdout as text, JSON or Markdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writer, err := report.New(report.Format(r.cfg.Output.Format), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			result, err := r.app.Batch().Run(cmd.Context(), r.cfg.Batch.Tries)
			if err != nil {
				return fmt.Errorf("run batch: %w", err)
			}
			return writer.Write(result)
		},
	}

	flags := cmd.Flags()
	flags.Int("tries", 0, "number of independent search-loop instances")
	flags.Int("min-iterations", 0, "minimum SEARCH iterations per instance")
	flags.Int("max-iterations", 0, "maximum SEARCH iterations per instance")
	flags.String("format", "", "report format: text, json or markdown")
	bindFlags(r, cmd, map[string]string{
		"batch.tries":         "tries",
		"loop.min_iterations": "min-iterations",
		"loop.max_iterations": "max-iterations",
		"output.format":       "format",
	})
	return cmd
}

func (r *root) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP run service",
		Long: `Serves the run API: batches submitted with POST /v1/runs are queued and
executed by a pool of workers, and their status and results stay available
for the lifetime of the process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.app.NewService().Serve(cmd.Context(), r.cfg.Server.Port)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP listen port")
	cmd.Flags().Int("workers", 0, "concurrent batch runs")
	bindFlags(r, cmd, map[string]string{
		"server.port":    "port",
		"server.workers": "workers",
	})
	return cmd
}

// bindFlags makes explicitly set flags override file and environment values.
func bindFlags(r *root, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		if err := r.v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
