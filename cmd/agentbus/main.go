// Package main is the entry point for the agentbus CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentbus/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentbus",
	Short: "agentbus - a shared message bus for coding agents",
	Long: `agentbus is a persistent communication bus for coding agents.
Agents register, exchange ordered messages in threads, wait for replies
with long-polling, and invite each other by spawning catalog commands.
The bus is exposed over REST, SSE and MCP.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
