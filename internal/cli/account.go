package cli

import (
	"github.com/spf13/cobra"

	"mstock-trader/pkg/utils"
)

// addAccountCommands adds account and order-book commands.
func addAccountCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newFundsCmd(app))
	rootCmd.AddCommand(newHoldingsCmd(app))
	rootCmd.AddCommand(newOrdersCmd(app))
}

func newFundsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "funds",
		Short: "Show the account cash summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			summary, err := app.Broker.GetFundSummary(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(summary)
			}
			output.Printf("Available balance: %s\n", utils.FormatIndianCurrency(summary.AvailableBalance))
			output.Printf("Used margin:       %s\n", utils.FormatIndianCurrency(summary.UsedMargin))
			output.Printf("Collateral:        %s\n", utils.FormatIndianCurrency(summary.Collateral))
			return nil
		},
	}
}

func newHoldingsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Show CNC holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			holdings, err := app.Broker.GetHoldings(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(holdings)
			}
			if len(holdings) == 0 {
				output.Dim("No holdings")
				return nil
			}
			output.Printf("%-12s %-4s %6s %6s %12s %12s %12s\n",
				"SYMBOL", "EXCH", "QTY", "USED", "AVG", "LTP", "PNL")
			for _, h := range holdings {
				output.Printf("%-12s %-4s %6d %6d %12s %12s %12s\n",
					h.Symbol, h.Exchange, h.Quantity, h.UsedQuantity,
					utils.FormatIndianCurrency(h.AveragePrice),
					utils.FormatIndianCurrency(h.LastPrice),
					utils.FormatPnL(h.PnL))
			}
			return nil
		},
	}
}

func newOrdersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Show today's order book",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			orders, err := app.Broker.GetOrders(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(orders)
			}
			if len(orders) == 0 {
				output.Dim("No orders today")
				return nil
			}
			output.Printf("%-14s %-12s %-4s %-4s %6s %12s %-10s\n",
				"ORDER ID", "SYMBOL", "EXCH", "SIDE", "QTY", "PRICE", "STATUS")
			for _, o := range orders {
				output.Printf("%-14s %-12s %-4s %-4s %6d %12s %-10s\n",
					o.ID, o.Symbol, o.Exchange, o.Side, o.Quantity,
					utils.FormatIndianCurrency(o.Price), o.Status)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel-all",
		Short: "Cancel every open order",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			count, err := app.Broker.CancelAllOrders(cmd.Context())
			if err != nil {
				return err
			}
			output.Success("Cancelled %d orders", count)
			return nil
		},
	})
	return cmd
}
