package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ghosttest/ghost/internal/config"
	"github.com/ghosttest/ghost/internal/console"
	"github.com/ghosttest/ghost/internal/scanner"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize Ghost in a project directory",
	Long: `Initialize Ghost in the target directory (default: current directory).

This creates:
  - ghost.yaml (project configuration with defaults)
  - .ghost/ (Ghost's metadata directory)
  - .ghost/context.json (module summary consumed by prompt construction)`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return err
		}

		out := console.New()
		out.Banner()
		out.Info("initializing Ghost in %s", root)

		if err := initProject(root, config.Default(), out); err != nil {
			return err
		}

		out.Success("Ghost initialized")
		out.Info("run 'ghost watch' to start monitoring")
		return nil
	},
}

// initProject writes the config, creates the metadata directory, and builds
// the initial context summary. Shared by `ghost init` and the watch
// command's lazy initialization.
func initProject(root string, cfg *config.Config, out *console.Console) error {
	if err := cfg.Save(root); err != nil {
		return err
	}
	out.Success("created %s", config.FileName)

	ghostDir := filepath.Join(root, scanner.ContextDir)
	if err := os.MkdirAll(ghostDir, 0755); err != nil {
		return err
	}

	sc := scanner.New(root, cfg.Scanner.IgnoreDirs, cfg.Scanner.IgnoreFiles)
	summary, err := sc.Scan()
	if err != nil {
		return err
	}
	out.Success("generated context.json (%d modules)", len(summary))
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
