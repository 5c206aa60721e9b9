package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Multi-agent customer service orchestrator",
	Long: `Quorum coordinates specialist workers to answer customer service
requests. Each request is classified, planned into tasks, dispatched to
data and support workers, and aggregated into one final answer, with a
full trace of every message exchanged along the way.

Core capabilities:
- Classifies request intent (data retrieval, support, escalation, multi-intent)
- Builds dependency-ordered task plans, extended at run time when workers
  ask for data they do not have
- Retries transient worker failures with exponential backoff
- Degrades gracefully to partial answers on supplementary failures
- Records a deterministic, step-numbered communication trace`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
