package cli

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mstock-trader/internal/config"
	"mstock-trader/internal/engine"
	"mstock-trader/internal/history"
	"mstock-trader/internal/market"
	"mstock-trader/internal/notify"
	"mstock-trader/internal/quotes"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop",
		Long: `Run the trading loop until interrupted.

Each cycle fetches quotes and candles for every watchlist entry, computes
the RSI, applies the guardrails, and places CNC market orders through
mStock. Outside market hours the loop sleeps until the next session.`,
		Example: `  mstock-trader run
  mstock-trader run --interval 30s
  mstock-trader run --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			watchlistPath, _ := cmd.Flags().GetString("watchlist")
			if watchlistPath == "" {
				watchlistPath = filepath.Join(app.ConfigDir, "watchlist.csv")
				if err := config.WriteTemplateWatchlist(app.ConfigDir); err != nil {
					return err
				}
			}
			entries, err := config.LoadWatchlist(watchlistPath, app.Logger)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				output.Warning("Watchlist has no enabled entries, nothing to trade")
				return nil
			}

			if !app.Broker.IsAuthenticated() {
				output.Info("No session found, refreshing via TOTP...")
				if err := app.Broker.RefreshSession(cmd.Context()); err != nil {
					output.Error("Authentication failed: %v", err)
					output.Dim("Run 'mstock-trader auth setup' to store credentials.")
					return err
				}
			}

			j, err := app.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			var channels []notify.Notifier
			channels = append(channels, notify.NewTerminal(app.Logger))
			if tg := app.Config.Notifications.Telegram; app.Config.Notifications.Enabled && tg.Enabled {
				channels = append(channels, notify.NewTelegram(tg))
			}

			interval, _ := cmd.Flags().GetDuration("interval")
			eng := engine.New(engine.Deps{
				Config:    app.Config,
				Watchlist: entries,
				Broker:    app.Broker,
				Latch:     app.Latch,
				Quotes:    quotes.NewCache(app.Broker, app.Logger),
				History:   history.NewFetcher(app.Broker, app.Logger),
				Journal:   j,
				Notifier:  notify.NewMulti(channels...),
				Interval:  interval,
				Logger:    app.Logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			monitor := market.NewMonitor(app.Config.Broker.ProbeURL, 30*time.Second, app.Latch, app.Logger)
			go monitor.Run(ctx)

			if once, _ := cmd.Flags().GetBool("once"); once {
				eng.RunCycle(ctx)
				return nil
			}

			output.Info("Trading loop started with %d symbols", len(entries))
			err = eng.Run(ctx)
			if err == context.Canceled {
				output.Info("Trading loop stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().String("watchlist", "", "watchlist CSV path (default: <config>/watchlist.csv)")
	cmd.Flags().Duration("interval", time.Minute, "pause between cycles")
	cmd.Flags().Bool("once", false, "run a single cycle and exit")
	return cmd
}
