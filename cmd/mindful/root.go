package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	"github.com/aretw0/mindful"
	"github.com/aretw0/mindful/pkg/core"
	"github.com/aretw0/mindful/pkg/relay"
)

var (
	verbose bool
	rootDir string
	adapter string
	owner   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mindful",
	Short: "Owner-scoped state for a personal-wellbeing app",
	Long: `mindful keeps per-user feature data (tasks, habits, finances, journal,
notes, mood) in named slots, one per feature and owner, and keeps every
process sharing the same storage in sync.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)

		if owner != "" {
			if err := core.ValidateOwner(owner); err != nil {
				fatal("Invalid owner", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Data root (default: nearest directory with .mindful or mindful.yaml, else the working directory)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter: fs, sqlite or memory (overrides configuration)")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", os.Getenv("MINDFUL_OWNER"), "Owner the keys belong to; keys are given as base keys when set")
}

// loadConfig resolves the data root and reads its configuration.
func loadConfig() *mindful.Config {
	root := rootDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}
		root = cwd
		if found, err := mindful.FindRoot(cwd); err == nil {
			root = found
		}
	}

	cfg, err := mindful.LoadConfig(root)
	if err != nil {
		fatal("Failed to load configuration", err)
	}
	if adapter != "" {
		cfg.Adapter = adapter
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration", err)
	}
	return cfg
}

// openService opens the configured storage. When a relay is configured the
// storage is wrapped so writes reach the other hosts; follow also starts
// consuming their changes. The returned function releases everything.
func openService(ctx context.Context, cfg *mindful.Config, follow bool) (*core.Service, func()) {
	opts := append(cfg.Options(), mindful.WithLogger(slog.Default()))
	storage, err := mindful.Init(cfg.Path, opts...)
	if err != nil {
		fatal("Failed to initialize storage", err)
	}

	closers := []io.Closer{}
	if c, ok := storage.(io.Closer); ok {
		closers = append(closers, c)
	}

	cancel := func() {}
	if cfg.AMQPURL != "" {
		transport, err := relay.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, slog.Default())
		if err != nil {
			fatal("Failed to connect to relay", err)
		}
		closers = append(closers, transport)
		relayed := relay.New(storage, transport, cfg.Host, relay.WithLogger(slog.Default()))
		storage = relayed

		if follow {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(ctx)
			lifecycle.Go(runCtx, relayed.Run, lifecycle.WithErrorHandler(func(err error) {
				slog.Error("relay stopped", "error", err)
			}))
		}
	}

	svc := core.NewService(storage, core.WithServiceLogger(slog.Default()))
	return svc, func() {
		cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				slog.Warn("failed to close", "error", err)
			}
		}
	}
}

// slotKey maps a command argument to a slot key, applying --owner.
func slotKey(arg string) string {
	if owner == "" {
		return arg
	}
	return core.SlotKey(arg, owner)
}
