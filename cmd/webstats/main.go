package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "webstats",
		Short: "serve player statistics over HTTP",
		Long: fmt.Sprintf(`webstats (v%s)

Collects per-player statistics from the scoreboard and from placeholder
values, keeps placeholder values in a database backed cache and serves the
merged document over HTTP.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of webstats",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webstats v%s\n", Version)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
