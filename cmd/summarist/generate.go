package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ineyio/summarist/batch"
	"github.com/ineyio/summarist/prompt"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		booksPath string
		ids       []string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate summaries for books in a library",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			catalog, closeCatalog, err := openCatalog(booksPath)
			if err != nil {
				return err
			}
			defer closeCatalog()

			if len(ids) == 0 {
				ids, err = catalog.IDs(ctx)
				if err != nil {
					return err
				}
			}

			stderr := cmd.ErrOrStderr()
			orch := batch.New(a.client, catalog,
				batch.WithLogger(a.logger),
				batch.WithProgress(func(p batch.Progress) {
					status := "ok"
					if !p.Outcome.OK() {
						status = "failed"
					}
					fmt.Fprintf(stderr, "[%d/%d] %s: %s\n", p.Index, p.Total, p.Title, status)
				}),
			)

			tmpl := prompt.FromConfig(a.cfg.Prompts, a.cfg.MaxTokens)
			report := orch.Run(ctx, ids, tmpl.Render)

			if err := a.writeMetrics(); err != nil {
				a.logger.Warn("metrics not written", "error", err)
			}
			if outPath != "" {
				if err := writeReport(outPath, report); err != nil {
					return err
				}
			}

			printSummary(cmd.OutOrStdout(), report)
			return report.Err()
		},
	}

	cmd.Flags().StringVar(&booksPath, "books", "books.yaml", "library to read (YAML file, or .db for SQLite)")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "book ids to process (default: all)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the report as YAML")
	return cmd
}

func printSummary(w io.Writer, r batch.Report) {
	s := r.Summary()
	if s.AllFailed() {
		fmt.Fprintln(w, "All attempts failed. Check logs.")
	} else {
		fmt.Fprintf(w, "Generation complete. Success: %d, Failed: %d\n", s.Succeeded, s.Failed)
	}
	if r.Cancelled {
		fmt.Fprintf(w, "Cancelled after %d of the requested items.\n", s.Total)
	}
	for _, id := range r.Failures() {
		fmt.Fprintf(w, "\n%s (%s):\n%s\n", r.Titles[id], id, r.Outcomes[id].Reason)
	}
}

func writeReport(path string, r batch.Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func readReport(path string) (batch.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return batch.Report{}, fmt.Errorf("read report: %w", err)
	}
	var r batch.Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return batch.Report{}, fmt.Errorf("parse report: %w", err)
	}
	return r, nil
}
