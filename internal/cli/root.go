package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mstock-trader/internal/broker"
	"mstock-trader/internal/config"
	"mstock-trader/internal/journal"
	"mstock-trader/internal/logging"
	"mstock-trader/internal/security"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies shared across commands.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger
	Store     *security.Store
	Latch     *broker.OfflineLatch
	Broker    *broker.MStockBroker
	Journal   *journal.Journal
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "mstock-trader",
		Short: "RSI mean-reversion trading bot for NSE/BSE via mStock",
		Long: `mstock-trader runs an RSI mean-reversion strategy on a CSV watchlist
of NSE/BSE equities through the mStock Type A API. It buys oversold
names, exits at profit targets or overbought readings, and journals
every decision to SQLite.

Use 'mstock-trader run' to start the trading loop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			if configDir == "" {
				configDir = config.DefaultConfigDir()
			}
			app.ConfigDir = configDir

			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			app.Config = cfg

			logCfg := logging.DefaultLogConfig()
			logCfg.Level = cfg.Logging.Level
			logCfg.FilePath = filepath.Join(configDir, "logs", "bot.log")
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logCfg.Level = "debug"
			}
			app.Logger = logging.NewLoggerWithConfig(logCfg)

			app.Store = security.NewStore(configDir)
			if err := app.Store.Initialize(); err != nil {
				return err
			}
			app.Latch = broker.NewOfflineLatch()
			app.Broker = broker.NewMStockBroker(cfg.Broker.BaseURL, app.Store, app.Latch, app.Logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/mstock-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd(app))
	addAuthCommands(rootCmd, app)
	rootCmd.AddCommand(newWatchlistCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))
	addAccountCommands(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
				return
			}
			output.Printf("mstock-trader v%s\n", Version)
		},
	}
}

// openJournal opens the attempt journal lazily; only commands that need it
// pay the cost.
func (app *App) openJournal() (*journal.Journal, error) {
	if app.Journal != nil {
		return app.Journal, nil
	}
	j, err := journal.Open(filepath.Join(app.ConfigDir, "journal.db"))
	if err != nil {
		return nil, err
	}
	app.Journal = j
	return j, nil
}
