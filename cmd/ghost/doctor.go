package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ghosttest/ghost/internal/config"
	"github.com/ghosttest/ghost/internal/console"
	"github.com/ghosttest/ghost/internal/runner"
	"github.com/ghosttest/ghost/internal/scanner"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [path]",
	Short: "Check that Ghost's environment is ready to use",
	Long: `Verifies the pieces a watch session depends on: a readable and valid
ghost.yaml, a Python interpreter with pytest, an API key for the configured
provider, and the context summary.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return err
		}

		out := console.New()
		out.Banner()
		out.Section("Health Check")

		healthy := true

		cfg, err := config.Load(root)
		if err != nil {
			out.Error("configuration: %v", err)
			return fmt.Errorf("doctor found problems")
		}
		if _, statErr := os.Stat(filepath.Join(root, config.FileName)); os.IsNotExist(statErr) {
			out.Warning("%s not found (defaults in effect); run 'ghost init'", config.FileName)
		} else {
			out.Success("%s loaded and valid", config.FileName)
		}

		python := runner.New().Python
		if path, lookErr := exec.LookPath(python); lookErr != nil {
			out.Error("python interpreter %q not found in PATH", python)
			healthy = false
		} else {
			out.Success("python interpreter: %s", path)

			version, runErr := exec.CommandContext(cmd.Context(),
				python, "-m", "pytest", "--version").CombinedOutput()
			if runErr != nil {
				out.Error("pytest not importable by %s (pip install pytest)", python)
				healthy = false
			} else {
				out.Success("pytest: %s", strings.TrimSpace(firstOutputLine(string(version))))
			}
		}

		switch provider := strings.ToLower(cfg.AI.Provider); provider {
		case "ollama", "lmstudio":
			out.Success("provider %s is local; no API key required", provider)
		default:
			if cfg.ResolveAPIKey() == "" {
				out.Error("no API key configured for provider %q", cfg.AI.Provider)
				healthy = false
			} else {
				out.Success("API key configured for provider %s", provider)
			}
		}

		if _, statErr := os.Stat(scanner.ContextPath(root)); statErr != nil {
			out.Warning("context summary missing; run 'ghost init' to build it")
		} else {
			out.Success("context summary present")
		}

		fmt.Println()
		if !healthy {
			return fmt.Errorf("doctor found problems")
		}
		out.Success("all checks passed; Ghost is ready")
		return nil
	},
}

func firstOutputLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
