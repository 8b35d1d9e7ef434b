// Package commands implements the sentinel binary's CLI surface.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "On-chain DeFi attack detection pipeline",
	Long: `sentinel watches decoded on-chain events for a target protocol and
flags transactions consistent with flash-loan arbitrage, price
manipulation, sandwich attacks, and oracle-manipulation-enabled lending
exploitation.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml/json/toml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var (
	version = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sentinel version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sentinel " + version)
	},
}
