package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ghosttest/ghost/internal/ai"
	"github.com/ghosttest/ghost/internal/config"
	"github.com/ghosttest/ghost/internal/console"
	"github.com/ghosttest/ghost/internal/heal"
	"github.com/ghosttest/ghost/internal/runner"
	"github.com/ghosttest/ghost/internal/scanner"
	"github.com/ghosttest/ghost/internal/storage"
	"github.com/ghosttest/ghost/internal/watcher"
)

var generateForce bool

var generateCmd = &cobra.Command{
	Use:   "generate <file>",
	Short: "Generate (and heal) tests for one file without starting the watcher",
	Long: `Run the full generate/execute/classify/heal pipeline once, for an
explicit source file, and exit.

The project root is located by walking up from the file until ghost.yaml
is found. The test artifact lands in the configured output directory, the
same place 'ghost watch' would write it.

Examples:
  ghost generate app.py
  ghost generate src/utils.py --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcePath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[0], err)
		}
		if _, err := os.Stat(sourcePath); err != nil {
			return fmt.Errorf("source file %s: %w", args[0], err)
		}

		root, ok := findProjectRoot(filepath.Dir(sourcePath))
		if !ok {
			return fmt.Errorf("no %s found above %s; run 'ghost init' first", config.FileName, args[0])
		}

		out := console.New()
		out.Banner()

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		artifact := filepath.Join(root, cfg.Tests.OutputDir, "test_"+filepath.Base(sourcePath))
		if _, err := os.Stat(artifact); err == nil && !generateForce {
			return fmt.Errorf("%s already exists; pass --force to overwrite", artifact)
		}

		provider, err := ai.NewProvider(cfg.AI.Provider, cfg.ResolveAPIKey(), cfg.AI.BaseURL)
		if err != nil {
			return err
		}

		retry := ai.DefaultRetryConfig()
		if cfg.AI.MaxRetries > 0 {
			retry.MaxRetries = cfg.AI.MaxRetries
		}
		generator := ai.NewGenerator(provider, ai.NewRateLimiter(cfg.RateInterval()),
			retry, cfg.AI.Model, cfg.AI.Temperature)

		store, err := storage.Open(storage.DefaultPath(root))
		if err != nil {
			return err
		}
		defer store.Close()

		orch, err := heal.New(heal.Config{
			ProjectRoot:     root,
			OutputDir:       cfg.Tests.OutputDir,
			Framework:       cfg.Tests.Framework,
			IgnoreDirs:      cfg.Scanner.IgnoreDirs,
			MaxHealAttempts: cfg.Tests.MaxHealAttempts,
			AutoHeal:        cfg.Tests.AutoHeal,
			UseJudge:        cfg.Tests.UseJudge,
			Generator:       generator,
			Runner:          runner.New(),
			Registry:        watcher.NewRegistry(),
			Scanner:         scanner.New(root, cfg.Scanner.IgnoreDirs, cfg.Scanner.IgnoreFiles),
			Console:         out,
			Store:           store,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := orch.GenerateOnce(ctx, sourcePath)
		if err != nil {
			return err
		}

		out.Info("test file: %s", session.TestPath)
		if session.Outcome != heal.OutcomePassed {
			return fmt.Errorf("session ended %s: %s", session.Outcome, session.Diagnostic)
		}
		return nil
	},
}

// findProjectRoot walks up from start looking for ghost.yaml, mirroring how
// the watch and init commands anchor a project.
func findProjectRoot(start string) (string, bool) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "Overwrite an existing test file")
}
