package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"mstock-trader/internal/config"
)

func newWatchlistCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Show the parsed watchlist",
		Long: `Show the watchlist as the engine will trade it: disabled rows,
duplicates and malformed rows already filtered out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = filepath.Join(app.ConfigDir, "watchlist.csv")
			}
			entries, err := config.LoadWatchlist(path, app.Logger)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Warning("No enabled entries in %s", path)
				return nil
			}

			output.Printf("%-12s %-4s %-5s %8s %8s %10s %10s %-14s %10s\n",
				"SYMBOL", "EXCH", "TF", "BUY RSI", "SELL RSI", "TARGET %", "STOP %", "QTY MODE", "QTY VALUE")
			for _, e := range entries {
				output.Printf("%-12s %-4s %-5s %8.1f %8.1f %10.1f %10.1f %-14s %10.2f\n",
					e.Symbol, e.Exchange, e.Timeframe, e.BuyRSI, e.SellRSI,
					e.ProfitTargetPct, e.StopLossPct, e.QtyMode, e.QtyValue)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a sample watchlist.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := config.WriteTemplateWatchlist(app.ConfigDir); err != nil {
				return err
			}
			output.Success("Wrote %s", filepath.Join(app.ConfigDir, "watchlist.csv"))
			return nil
		},
	})

	cmd.Flags().String("file", "", "watchlist CSV path (default: <config>/watchlist.csv)")
	return cmd
}
