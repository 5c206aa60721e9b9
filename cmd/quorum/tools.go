package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/toolserver"
	"github.com/quorumhq/quorum/internal/toolstore"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage the tool-execution service",
}

var toolsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool database over JSON-RPC",
	Long: `Starts the tool-execution server so workers on other machines can
share one customer database. Point their configuration at it with
tools.remote_url.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openToolStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return toolserver.NewServer(toolstore.NewCaller(store)).ListenAndServe(ctx, cfg.Tools.Addr)
	},
}

var toolsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create and seed the tool database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openToolStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Seed(); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
		fmt.Printf("%s Seeded sample customers and tickets at %s\n", color.GreenString("✓"), store.Path())
		return nil
	},
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available tool operations",
	Run: func(cmd *cobra.Command, args []string) {
		for _, tool := range toolstore.Tools() {
			fmt.Printf("  %s  %s\n", color.CyanString("%-14s", tool["name"]), tool["description"])
		}
	},
}

func openToolStore(cfg *config.Config) (*toolstore.Store, error) {
	path := cfg.Tools.DBPath
	if path == "" {
		path = toolstore.DefaultPath()
	}
	store, err := toolstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tool database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate tool database: %w", err)
	}
	return store, nil
}

func init() {
	toolsCmd.AddCommand(toolsServeCmd)
	toolsCmd.AddCommand(toolsSeedCmd)
	toolsCmd.AddCommand(toolsListCmd)
}
