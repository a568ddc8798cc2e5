package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "pricehawk",
	Short: "pricehawk tracks product prices against a scraping backend and alerts on target drops",
	Long: `pricehawk keeps a local mirror of tracked product listings in sync with a
remote price-check backend, schedules automatic checks, and raises an
alert when a price drops to or below its per-item target.

Run it as a daemon with "pricehawk run", or drive individual operations
(add, check, target, ...) as one-shot commands against the same store.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(targetCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(notifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
