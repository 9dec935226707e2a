// Package cli wires the seaportd commands: the settlement API server and
// version reporting.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seaportd",
	Short: "seaportd - off-chain order settlement daemon",
	Long: `seaportd settles signed marketplace orders: it validates signatures and
fill fractions, resolves criteria-based items, aggregates fulfillments into
minimal transfer executions and applies them atomically, exposing the whole
pipeline over an HTTP JSON API.`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
}
