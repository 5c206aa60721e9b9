package main

import (
	"fmt"
	"time"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/inference"
	"github.com/quorumhq/quorum/internal/orchestrator"
	"github.com/quorumhq/quorum/internal/planner"
	"github.com/quorumhq/quorum/internal/registry"
	"github.com/quorumhq/quorum/internal/toolserver"
	"github.com/quorumhq/quorum/internal/toolstore"
	"github.com/quorumhq/quorum/internal/worker"
)

// buildEngine wires a complete engine from configuration: the worker
// roster, the inference provider, the tool transport, and the retry
// policy. The returned cleanup closes whatever was opened.
func buildEngine(cfg *config.Config) (*orchestrator.Engine, func(), error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		reg.Close()
		return nil, nil, fmt.Errorf("create inference provider: %w", err)
	}

	tools, closeTools, err := buildToolCaller(cfg)
	if err != nil {
		reg.Close()
		return nil, nil, err
	}
	cleanup := func() {
		closeTools()
		reg.Close()
	}

	workers, aggregatorID, timeouts, err := buildWorkers(reg, provider, tools)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	eng, err := orchestrator.New(orchestrator.Config{
		Classifier:   worker.NewClassifierWorker("classifier", provider),
		Workers:      workers,
		AggregatorID: aggregatorID,
		Builder:      planner.NewBuilder(reg),
		Options: orchestrator.Options{
			MaxRetries:     cfg.Orchestrator.MaxRetries,
			BackoffBase:    cfg.Orchestrator.Backoff,
			GlobalDeadline: cfg.Orchestrator.GlobalDeadline,
			WorkerTimeout:  cfg.Orchestrator.WorkerTimeout,
			WorkerTimeouts: timeouts,
		},
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create engine: %w", err)
	}
	return eng, cleanup, nil
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.Registry.Path == "" {
		return registry.Default(), nil
	}
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load worker registry: %w", err)
	}
	if cfg.Registry.Watch {
		reg.Watch()
	}
	return reg, nil
}

func buildProvider(cfg *config.Config) (inference.Provider, error) {
	anthropicKey, _ := config.GetAnthropicKey(cfg)
	openaiKey, _ := config.GetOpenAIKey(cfg)
	return inference.New(inference.Config{
		Provider:        cfg.Inference.Provider,
		Model:           cfg.Inference.Model,
		AnthropicAPIKey: anthropicKey,
		OpenAIAPIKey:    openaiKey,
		UseAWSBedrock:   cfg.Inference.UseAWSBedrock,
		AWSRegion:       cfg.Inference.AWSRegion,
		AWSProfile:      cfg.Inference.AWSProfile,
	})
}

// buildToolCaller opens the tool transport: a remote JSON-RPC client when
// configured, the SQLite store in process otherwise.
func buildToolCaller(cfg *config.Config) (worker.ToolCaller, func(), error) {
	if cfg.Tools.RemoteURL != "" {
		return toolserver.NewClient(cfg.Tools.RemoteURL), func() {}, nil
	}

	path := cfg.Tools.DBPath
	if path == "" {
		path = toolstore.DefaultPath()
	}
	store, err := toolstore.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open tool database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("migrate tool database: %w", err)
	}
	return toolstore.NewCaller(store), func() { store.Close() }, nil
}

// buildWorkers turns the roster into adapters. The first support-capable
// worker doubles as the aggregator.
func buildWorkers(reg *registry.Registry, provider inference.Provider, tools worker.ToolCaller) ([]worker.Adapter, string, map[string]time.Duration, error) {
	var workers []worker.Adapter
	var aggregatorID string
	timeouts := make(map[string]time.Duration)

	for _, card := range reg.Workers() {
		adapter, err := adapterFor(card, provider, tools)
		if err != nil {
			return nil, "", nil, err
		}
		workers = append(workers, adapter)
		if card.TimeoutSeconds > 0 {
			timeouts[card.ID] = time.Duration(card.TimeoutSeconds) * time.Second
		}
		if aggregatorID == "" && hasCapability(card, planner.CapabilitySupport) {
			aggregatorID = card.ID
		}
	}

	if aggregatorID == "" {
		return nil, "", nil, fmt.Errorf("worker roster has no support-capable worker to aggregate with")
	}
	return workers, aggregatorID, timeouts, nil
}

func adapterFor(card registry.Card, provider inference.Provider, tools worker.ToolCaller) (worker.Adapter, error) {
	for _, capability := range card.Capabilities {
		switch capability {
		case planner.CapabilityData:
			return worker.NewDataWorker(card.ID, tools), nil
		case planner.CapabilitySupport:
			return worker.NewSupportWorker(card.ID, provider), nil
		}
	}
	return nil, fmt.Errorf("worker %q has no buildable capability", card.ID)
}

func hasCapability(card registry.Card, capability string) bool {
	for _, c := range card.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
