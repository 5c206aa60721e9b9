package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/inference"
	"github.com/quorumhq/quorum/internal/orchestrator"
	"github.com/quorumhq/quorum/internal/planner"
	"github.com/quorumhq/quorum/internal/registry"
	"github.com/quorumhq/quorum/internal/toolstore"
	"github.com/quorumhq/quorum/internal/worker"
)

// demoScenarios each exercise a different path through the pipeline.
var demoScenarios = []struct {
	title string
	query string
}{
	{"Single record lookup", "Get customer information for ID 5"},
	{"Full listing", "List all customers"},
	{"Filtered listing", "Show me all active customers"},
	{"Plain support question", "How do I reset my password?"},
	{"Support that needs account data", "Why was my bill so high this month? I am customer 5"},
	{"Escalation", "I want to cancel my subscription, this service is terrible"},
	{"Multi-step record and history", "Get customer record for customer 5 and their ticket history"},
	{"Compound request", "Get my customer record id 5 and also explain how refunds work"},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the built-in demo scenarios offline",
	Long: `Runs a set of canned requests through the pipeline with the offline
keyword provider and a freshly seeded throwaway database. No API keys or
network access required. Each scenario prints its answer and full trace.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpDir, err := os.MkdirTemp("", "quorum-demo-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)

		store, err := toolstore.Open(filepath.Join(tmpDir, "demo.db"))
		if err != nil {
			return fmt.Errorf("open demo database: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migrate demo database: %w", err)
		}
		if err := store.Seed(); err != nil {
			return fmt.Errorf("seed demo database: %w", err)
		}

		provider := inference.NewKeywordProvider()
		reg := registry.Default()
		tools := toolstore.NewCaller(store)

		eng, err := orchestrator.New(orchestrator.Config{
			Classifier: worker.NewClassifierWorker("classifier", provider),
			Workers: []worker.Adapter{
				worker.NewDataWorker("data-worker", tools),
				worker.NewSupportWorker("support-worker", provider),
			},
			AggregatorID: "support-worker",
			Builder:      planner.NewBuilder(reg),
			Options: orchestrator.Options{
				BackoffBase:    100 * time.Millisecond,
				GlobalDeadline: 30 * time.Second,
			},
		})
		if err != nil {
			return fmt.Errorf("create engine: %w", err)
		}

		for i, scenario := range demoScenarios {
			fmt.Printf("%s %s\n", color.New(color.Bold).Sprintf("[%d/%d]", i+1, len(demoScenarios)), scenario.title)
			fmt.Printf("  %s %q\n\n", color.CyanString("query:"), scenario.query)

			out, err := eng.Handle(context.Background(), scenario.query)
			if err != nil {
				return err
			}

			printOutcome(out)
			fmt.Println()
			printTrace(out.Trace)
			fmt.Println()
		}
		return nil
	},
}
