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

var watchConcurrency int64

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a project and generate tests on every qualifying change",
	Long: `Watch the project tree rooted at path (default: current directory).

For each created or modified Python source file, Ghost:
1. Generates a pytest test file into the configured output directory
2. Runs it with the project root on PYTHONPATH
3. Classifies any failure (syntax vs. logic vs. unknown)
4. Heals syntax failures, arbitrates logic failures with an AI judge,
   and stops after the configured attempt bound

Ghost never writes to your source files. Stop with Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return err
		}

		out := console.New()
		out.Banner()

		cfg, err := config.Load(root)
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(filepath.Join(root, config.FileName)); os.IsNotExist(statErr) {
			out.Warning("%s not found, initializing with defaults", config.FileName)
			if err := initProject(root, cfg, out); err != nil {
				return err
			}
		}

		provider, err := ai.NewProvider(cfg.AI.Provider, cfg.ResolveAPIKey(), cfg.AI.BaseURL)
		if err != nil {
			return err
		}

		limiter := ai.NewRateLimiter(cfg.RateInterval())
		retry := ai.DefaultRetryConfig()
		if cfg.AI.MaxRetries > 0 {
			retry.MaxRetries = cfg.AI.MaxRetries
		}
		generator := ai.NewGenerator(provider, limiter, retry, cfg.AI.Model, cfg.AI.Temperature)

		store, err := storage.Open(storage.DefaultPath(root))
		if err != nil {
			return err
		}
		defer store.Close()

		registry := watcher.NewRegistry()
		w, err := watcher.New(root, registry, watcher.Options{
			OutputDir:   cfg.Tests.OutputDir,
			IgnoreDirs:  cfg.Scanner.IgnoreDirs,
			IgnoreFiles: cfg.Scanner.IgnoreFiles,
			Debounce:    cfg.Debounce(),
		})
		if err != nil {
			return err
		}

		orch, err := heal.New(heal.Config{
			ProjectRoot:           root,
			OutputDir:             cfg.Tests.OutputDir,
			Framework:             cfg.Tests.Framework,
			IgnoreDirs:            cfg.Scanner.IgnoreDirs,
			MaxHealAttempts:       cfg.Tests.MaxHealAttempts,
			AutoHeal:              cfg.Tests.AutoHeal,
			UseJudge:              cfg.Tests.UseJudge,
			MaxConcurrentSessions: watchConcurrency,
			Generator:             generator,
			Runner:                runner.New(),
			Registry:              registry,
			Scanner:               scanner.New(root, cfg.Scanner.IgnoreDirs, cfg.Scanner.IgnoreFiles),
			Console:               out,
			Store:                 store,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := w.Start(ctx); err != nil {
			return err
		}

		out.Section("Watching " + root)
		out.Info("provider: %s, model: %s, rate limit: %d rpm",
			provider.Name(), cfg.AI.Model, cfg.AI.RateLimitRPM)
		out.Info("press Ctrl+C to stop")

		// Blocks until the context is canceled and every session joined.
		done := make(chan struct{})
		go func() {
			orch.Run(ctx, w.Changes())
			close(done)
		}()

		<-ctx.Done()
		out.Info("shutting down, waiting for active sessions")
		w.Stop()
		<-done

		fmt.Println()
		out.Success("ghost stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Int64Var(&watchConcurrency, "max-sessions", 4, "Maximum concurrent healing sessions")
}
