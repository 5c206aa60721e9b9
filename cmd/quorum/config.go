package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Displays the effective configuration after merging defaults, the
user config, the project config, and environment variables.

Configuration is stored at ~/.config/quorum/config.yaml
Project-specific overrides can be placed in .quorum.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		default:
			displayConfigKey(cfg, args[0])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys() {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}

	if path := config.GetProjectConfigPath(); path != "" {
		fmt.Printf("\nproject config: %s\n", path)
	}
	fmt.Printf("user config: %s\n", config.GetUserConfigPath())
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

func configKeys() []string {
	return []string{
		"inference.provider",
		"inference.model",
		"inference.anthropic_api_key",
		"inference.openai_api_key",
		"inference.use_aws_bedrock",
		"orchestrator.max_retries",
		"orchestrator.backoff",
		"orchestrator.worker_timeout",
		"orchestrator.global_deadline",
		"tools.db_path",
		"tools.addr",
		"tools.remote_url",
		"registry.path",
		"registry.watch",
	}
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "inference.provider":
		return cfg.Inference.Provider, nil
	case "inference.model":
		return cfg.Inference.Model, nil
	case "inference.anthropic_api_key":
		return config.MaskAPIKey(cfg.Inference.AnthropicAPIKey), nil
	case "inference.openai_api_key":
		return config.MaskAPIKey(cfg.Inference.OpenAIAPIKey), nil
	case "inference.use_aws_bedrock":
		return fmt.Sprintf("%t", cfg.Inference.UseAWSBedrock), nil
	case "orchestrator.max_retries":
		return fmt.Sprintf("%d", cfg.Orchestrator.MaxRetries), nil
	case "orchestrator.backoff":
		return cfg.Orchestrator.Backoff.String(), nil
	case "orchestrator.worker_timeout":
		return cfg.Orchestrator.WorkerTimeout.String(), nil
	case "orchestrator.global_deadline":
		return cfg.Orchestrator.GlobalDeadline.String(), nil
	case "tools.db_path":
		return cfg.Tools.DBPath, nil
	case "tools.addr":
		return cfg.Tools.Addr, nil
	case "tools.remote_url":
		return cfg.Tools.RemoteURL, nil
	case "registry.path":
		return cfg.Registry.Path, nil
	case "registry.watch":
		return fmt.Sprintf("%t", cfg.Registry.Watch), nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}
