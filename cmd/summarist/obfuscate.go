package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ineyio/summarist"
)

func newObfuscateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "obfuscate KEY",
		Short: "Print the ENC: form of an API key for config files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), summarist.Obfuscate(args[0]))
			return nil
		},
	}
}
