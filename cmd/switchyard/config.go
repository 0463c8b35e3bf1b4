package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/switchyard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Inspect the effective Switchyard configuration.

Configuration is stored at ~/.config/switchyard/config.yaml
Project-specific overrides can be placed in .switchyard.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfigYAML(cmd.OutOrStdout(), cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show where configuration and API keys come from",
	Run: func(cmd *cobra.Command, args []string) {
		displayConfigSources(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// writeConfigYAML renders cfg as YAML with API keys and MCP secrets masked.
func writeConfigYAML(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// displayConfigSources prints the config files in use and each provider's key source.
func displayConfigSources(w io.Writer, c *config.Config) {
	fmt.Fprintf(w, "user config:    %s\n", config.GetUserConfigPath())
	project := config.GetProjectConfigPath()
	if project == "" {
		project = "(none)"
	}
	fmt.Fprintf(w, "project config: %s\n", project)
	if configPath != "" {
		fmt.Fprintf(w, "--config:       %s\n", configPath)
	}

	for _, p := range []string{config.ProviderAnthropic, config.ProviderGemini} {
		src := config.GetAPIKeySource(c, p)
		mark := color.New(color.FgGreen).Sprint("✓")
		if src == config.KeySourceNone {
			mark = color.New(color.FgYellow).Sprint("⚠")
		}
		fmt.Fprintf(w, "%s %s api key: %s\n", mark, p, src)
	}
}
