package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# mstock-trader configuration

[capital]
# Hard ceiling on the rupee value of open bot positions.
allocated_limit = 50000.0
# Per-stock ceiling on the rupee value of a single buy.
max_per_stock_fixed_amount = 5000.0
volume_filter_enabled = true
min_volume_shares = 50000
min_volume_value = 500000.0

[risk]
stop_loss_pct = 5.0
profit_target_pct = 10.0
trend_filter_enabled = true
never_sell_at_loss = true
auto_execute_stop_loss = false

[broker]
base_url = "https://api.mstock.trade/openapi/typea"
probe_url = "https://www.google.com/"
client_code = ""

[notifications]
enabled = false

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""

[logging]
level = "info"
`

const watchlistTemplate = `Symbol,Exchange,Timeframe,Buy RSI,Sell RSI,Profit Target %,Stop Loss %,Qty Mode,Qty Value,Enabled
RELIANCE,NSE,15m,30,70,5,3,fixed_qty,1,false
`

// writeTemplateConfig creates a commented config.toml for first runs.
func writeTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return AtomicWrite(path, []byte(configTemplate), 0644)
}

// WriteTemplateWatchlist creates a sample watchlist.csv if none exists.
func WriteTemplateWatchlist(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "watchlist.csv")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return AtomicWrite(path, []byte(watchlistTemplate), 0644)
}

// AtomicWrite writes data to path via a temp file and rename, so readers
// never observe a partial file.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
