package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "analytics-ai",
	Short: "Analytics AI Platform API server",
	Long: `Serves the analytics API: accounts, the object storage browser and the
question-to-code pipeline that generates and runs pandas or SQL code.

Running without a subcommand is the same as "serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var sweepSessionsCmd = &cobra.Command{
	Use:   "sweep-sessions",
	Short: "Deactivate expired sessions and exit",
	RunE:  runSweepSessions,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml (default: ./config.yaml or ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, sweepSessionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
