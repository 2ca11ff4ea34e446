package cli

import (
	"github.com/spf13/cobra"

	"mstock-trader/pkg/utils"
)

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded trade attempts",
		Long:  "List attempts from the journal, newest first. Skips are included.",
		Example: `  mstock-trader journal
  mstock-trader journal --days 7 --limit 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			j, err := app.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			days, _ := cmd.Flags().GetInt("days")
			limit, _ := cmd.Flags().GetInt("limit")
			since := utils.TodayIST().AddDate(0, 0, -(days - 1))

			attempts, err := j.ListAttempts(cmd.Context(), since, limit)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(attempts)
			}
			if len(attempts) == 0 {
				output.Dim("No attempts recorded since %s", since.Format("2006-01-02"))
				return nil
			}

			output.Printf("%-20s %-12s %-4s %-4s %6s %12s %-8s %-22s %6s\n",
				"TIME", "SYMBOL", "EXCH", "SIDE", "QTY", "PRICE", "STATUS", "REASON", "RSI")
			for _, a := range attempts {
				output.Printf("%-20s %-12s %-4s %-4s %6d %12s %-8s %-22s %6.1f\n",
					a.Timestamp.In(utils.IndiaLocation).Format("2006-01-02 15:04:05"),
					a.Symbol, a.Exchange, a.Side, a.Qty,
					utils.FormatIndianCurrency(a.Price), a.Status, a.Reason, a.RSI)
			}
			return nil
		},
	}

	cmd.Flags().Int("days", 1, "how many days back to list")
	cmd.Flags().Int("limit", 100, "maximum rows")
	return cmd
}
