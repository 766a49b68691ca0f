package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newQuotaCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show today's provider usage vs daily limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			providers := a.client.Providers()
			if len(providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers configured.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tPROVIDER\tMODEL\tLIMIT\tUSED\tREMAINING")
			for i, p := range providers {
				limit, remaining := "unlimited", "-"
				if left, limited := a.ledger.Remaining(p.ID); limited {
					limit = fmt.Sprintf("%d", p.DailyLimit)
					remaining = fmt.Sprintf("%d", left)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
					i+1, p.DisplayName(), p.Model, limit, a.ledger.Usage(p.ID), remaining)
			}
			return w.Flush()
		},
	}
}
