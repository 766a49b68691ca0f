package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ineyio/summarist/review"
)

func newCommitCmd() *cobra.Command {
	var (
		booksPath  string
		reportPath string
		discard    []string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Write the summaries from a saved report back to the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := readReport(reportPath)
			if err != nil {
				return err
			}

			ledger := review.NewLedger(report)
			for _, id := range discard {
				if err := ledger.Set(id, review.Discard); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for _, it := range ledger.Items() {
					fmt.Fprintf(out, "%-8s %s (%s)\n", it.Decision, it.Title, it.ID)
				}
				apply, skip := ledger.Counts()
				fmt.Fprintf(out, "%d to apply, %d to discard\n", apply, skip)
				return nil
			}

			catalog, closeCatalog, err := openCatalog(booksPath)
			if err != nil {
				return err
			}
			defer closeCatalog()

			res, err := ledger.Commit(cmd.Context(), catalog)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Applied: %d, Discarded: %d, Errors: %d\n", res.Applied, res.Discarded, len(res.Errors))
			if len(res.Errors) == 0 {
				return nil
			}
			failed := make([]string, 0, len(res.Errors))
			for id := range res.Errors {
				failed = append(failed, id)
			}
			sort.Strings(failed)
			for _, id := range failed {
				fmt.Fprintf(out, "  %s: %v\n", id, res.Errors[id])
			}
			return fmt.Errorf("%d summaries could not be written", len(res.Errors))
		},
	}

	cmd.Flags().StringVar(&booksPath, "books", "books.yaml", "library to write (YAML file, or .db for SQLite)")
	cmd.Flags().StringVar(&reportPath, "report", "report.yaml", "report written by generate")
	cmd.Flags().StringSliceVar(&discard, "discard", nil, "book ids to discard")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list decisions without writing")
	return cmd
}
