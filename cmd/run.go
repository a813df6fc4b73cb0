// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/engager-cli/internal/browser"
	"github.com/xkilldash9x/engager-cli/internal/composer"
	"github.com/xkilldash9x/engager-cli/internal/engine"
	"github.com/xkilldash9x/engager-cli/internal/feed"
	"github.com/xkilldash9x/engager-cli/internal/humanize"
	"github.com/xkilldash9x/engager-cli/internal/llmclient"
	"github.com/xkilldash9x/engager-cli/internal/observability"
	"github.com/xkilldash9x/engager-cli/internal/reply"
	"github.com/xkilldash9x/engager-cli/internal/sink"
	"github.com/xkilldash9x/engager-cli/internal/store"
	"github.com/xkilldash9x/engager-cli/internal/submit"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Starts an engagement session against the configured feed",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind only flags the user actually set, so their zero
			// defaults never shadow config file or env values.
			bindings := map[string]string{
				"session.target":   "target",
				"session.query":    "query",
				"browser.headless": "headless",
			}
			for key, name := range bindings {
				if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
					if err := viper.BindPFlag(key, f); err != nil {
						return err
					}
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := rootConfig
			// Re-unmarshal so the flag bindings from PreRunE land with
			// the right precedence.
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}
			if cfg.Session.Query == "" {
				return errors.New("a feed query is required (--query, ENGAGER_SESSION_QUERY, or session.query)")
			}

			st, err := store.NewSQLiteStore(cfg.Storage.Path, logger)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logger.Warn("Closing session store failed", zap.Error(cerr))
				}
			}()

			llm, err := llmclient.NewClient(cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("build language model client: %w", err)
			}

			sim := humanize.New(cfg.Humanize)

			drv, err := browser.NewChromeDriver(ctx, cfg.Browser, sim, logger)
			if err != nil {
				return fmt.Errorf("launch browser: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if cerr := drv.Close(closeCtx); cerr != nil {
					logger.Warn("Closing browser failed", zap.Error(cerr))
				}
			}()

			eng := engine.New(
				drv,
				feed.NewLocator(drv, cfg.Session.Filter, logger),
				reply.NewGenerator(llm, cfg.Session.Reply, logger),
				composer.New(drv, sim, logger),
				submit.New(drv, sim, logger),
				st,
				sink.Multi{sink.NewLogSink(logger), sink.NewStoreSink(st, logger)},
				cfg.Session,
				logger,
			)

			runCtx, cancelRun := context.WithCancel(ctx)
			defer cancelRun()

			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error {
				defer cancelRun()
				return eng.Run(gctx)
			})
			g.Go(func() error {
				heartbeat(gctx, st, logger)
				return nil
			})

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				// Operator interrupt; the session state is already
				// persisted as stopped.
				return nil
			}
			return err
		},
	}

	runCmd.Flags().IntP("target", "t", 0, "number of successful replies to reach before stopping")
	runCmd.Flags().StringP("query", "q", "", `feed search query, e.g. "min_faves:500 lang:en"`)
	runCmd.Flags().Bool("headless", false, "run the browser headless")

	return runCmd
}

// heartbeat logs session progress periodically so a long run in a
// detached terminal stays observable.
func heartbeat(ctx context.Context, st store.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := st.LoadLatestSession(ctx)
			if err != nil {
				continue
			}
			logger.Info("Session heartbeat",
				zap.String("status", string(state.Status)),
				zap.Int("processed", state.Processed),
				zap.Int("target", state.Target),
				zap.Int("success", state.Success),
				zap.Int("failed", state.Failed))
		}
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
