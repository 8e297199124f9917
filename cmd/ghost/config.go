package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ghosttest/ghost/internal/config"
	"github.com/ghosttest/ghost/internal/console"
)

var (
	configSetProvider string
	configSetModel    string
)

var configCmd = &cobra.Command{
	Use:   "config [path]",
	Short: "Show or update the project configuration",
	Long: `Without flags, prints the current ghost.yaml settings.

Examples:
  ghost config --show
  ghost config --set-provider anthropic
  ghost config --set-model claude-sonnet-4-20250514`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return err
		}

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		out := console.New()

		if configSetProvider == "" && configSetModel == "" {
			showConfig(out, root, cfg)
			return nil
		}

		if _, err := os.Stat(filepath.Join(root, config.FileName)); os.IsNotExist(err) {
			return fmt.Errorf("no %s found in %s; run 'ghost init' first", config.FileName, root)
		}

		if configSetProvider != "" {
			cfg.AI.Provider = configSetProvider
		}
		if configSetModel != "" {
			cfg.AI.Model = configSetModel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(root); err != nil {
			return err
		}
		out.Success("configuration updated")
		return nil
	},
}

func showConfig(out *console.Console, root string, cfg *config.Config) {
	out.Section("Current Configuration")

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  project\t%s\n", cfg.Project.Name)
	fmt.Fprintf(tw, "  root\t%s\n", root)
	fmt.Fprintf(tw, "  provider\t%s\n", cfg.AI.Provider)
	fmt.Fprintf(tw, "  model\t%s\n", cfg.AI.Model)
	fmt.Fprintf(tw, "  rate limit\t%d rpm\n", cfg.AI.RateLimitRPM)
	fmt.Fprintf(tw, "  framework\t%s\n", cfg.Tests.Framework)
	fmt.Fprintf(tw, "  output dir\t%s\n", cfg.Tests.OutputDir)
	fmt.Fprintf(tw, "  auto heal\t%t (max %d attempts)\n", cfg.Tests.AutoHeal, cfg.Tests.MaxHealAttempts)
	fmt.Fprintf(tw, "  use judge\t%t\n", cfg.Tests.UseJudge)
	fmt.Fprintf(tw, "  debounce\t%ds\n", cfg.Watcher.DebounceSeconds)
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().StringVar(&configSetProvider, "set-provider", "", "Set the AI provider")
	configCmd.Flags().StringVar(&configSetModel, "set-model", "", "Set the AI model")
	configCmd.Flags().BoolP("show", "s", false, "Show the current configuration (default)")
}
