package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/pkg/models"
)

var (
	askShowTrace bool
	askVerbose   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one customer service request",
	Long: `Runs one request through the full pipeline: classification, task
planning, worker dispatch, and aggregation. Prints the final answer and,
with --trace, the complete communication trace.

The inference provider comes from configuration: Anthropic or OpenAI when
credentials are available, the offline keyword analyzer otherwise.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		eng, cleanup, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		question := strings.Join(args, " ")
		stopEvents := watchEvents(eng.Events(), askVerbose)
		out, err := eng.Handle(context.Background(), question)
		stopEvents()
		if err != nil {
			return err
		}

		printOutcome(out)
		if askShowTrace {
			fmt.Println()
			printFlow(out.Flow)
			fmt.Println()
			printTrace(out.Trace)
		}
		if out.Status == models.StatusFailed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askShowTrace, "trace", false, "Print the full communication trace")
	askCmd.Flags().BoolVar(&askVerbose, "verbose", false, "Print task progress while the request runs")
}

func printOutcome(out *models.Outcome) {
	switch out.Status {
	case models.StatusSuccess:
		fmt.Printf("%s %s\n\n", color.GreenString("✓"), color.New(color.Bold).Sprint("answered"))
	case models.StatusPartial:
		fmt.Printf("%s %s\n\n", color.YellowString("⚠"), color.New(color.Bold).Sprint("partial answer"))
	default:
		fmt.Printf("%s %s\n\n", color.RedString("✗"), color.New(color.Bold).Sprint("failed"))
	}
	fmt.Println(out.FinalResponse)
}
