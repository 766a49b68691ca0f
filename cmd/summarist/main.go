package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	loadDotenv(".env", os.Stderr)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadDotenv loads path into the environment. A missing file is normal; any
// other failure is reported and the real environment still applies.
func loadDotenv(path string, stderr io.Writer) {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}
	fmt.Fprintf(stderr, "warning: %s not loaded: %v\n", path, err)
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "summarist",
		Short:         "Generate book summaries with LLM provider failover",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "summarist.yaml", "path to config file")

	root.AddCommand(
		newGenerateCmd(&configPath),
		newCommitCmd(),
		newQuotaCmd(&configPath),
		newObfuscateCmd(),
	)
	return root
}
