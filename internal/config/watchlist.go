package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"mstock-trader/internal/models"
)

// watchlistRow is the raw CSV shape. All fields are strings so that a
// malformed value drops only its own row instead of failing the whole file.
type watchlistRow struct {
	Symbol          string `csv:"Symbol"`
	Exchange        string `csv:"Exchange"`
	Timeframe       string `csv:"Timeframe"`
	BuyRSI          string `csv:"Buy RSI"`
	SellRSI         string `csv:"Sell RSI"`
	ProfitTargetPct string `csv:"Profit Target %"`
	StopLossPct     string `csv:"Stop Loss %"`
	QtyMode         string `csv:"Qty Mode"`
	QtyValue        string `csv:"Qty Value"`
	Enabled         string `csv:"Enabled"`
}

// LoadWatchlist reads the watchlist CSV. Duplicate (symbol, exchange) pairs
// collapse to the first occurrence with a warning; rows with malformed
// numeric fields are dropped with a warning. A single bad row never aborts
// startup.
func LoadWatchlist(path string, logger zerolog.Logger) ([]models.WatchlistEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening watchlist %s: %w", path, err)
	}
	defer f.Close()

	var rows []*watchlistRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing watchlist %s: %w", path, err)
	}

	seen := make(map[models.PositionKey]bool)
	var entries []models.WatchlistEntry
	for i, row := range rows {
		entry, err := parseWatchlistRow(row)
		if err != nil {
			logger.Warn().Err(err).Int("row", i+1).Str("symbol", row.Symbol).
				Msg("Dropping malformed watchlist row")
			continue
		}
		if !entry.Enabled {
			continue
		}
		if seen[entry.Key()] {
			logger.Warn().Str("symbol", entry.Symbol).Str("exchange", string(entry.Exchange)).
				Msg("Duplicate watchlist entry, keeping first occurrence")
			continue
		}
		seen[entry.Key()] = true
		if entry.QtyMode == models.QtyModeFixedAmount && entry.QtyValue == 0 {
			logger.Warn().Str("symbol", entry.Symbol).
				Msg("fixed_amount is 0, entry will never buy")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseWatchlistRow(row *watchlistRow) (models.WatchlistEntry, error) {
	var entry models.WatchlistEntry

	sym := strings.ToUpper(strings.TrimSpace(row.Symbol))
	if sym == "" {
		return entry, fmt.Errorf("empty symbol")
	}

	buyRSI, err := parseFloatField("Buy RSI", row.BuyRSI, 30)
	if err != nil {
		return entry, err
	}
	sellRSI, err := parseFloatField("Sell RSI", row.SellRSI, 70)
	if err != nil {
		return entry, err
	}
	profitPct, err := parseFloatField("Profit Target %", row.ProfitTargetPct, 0)
	if err != nil {
		return entry, err
	}
	stopPct, err := parseFloatField("Stop Loss %", row.StopLossPct, 0)
	if err != nil {
		return entry, err
	}
	qtyValue, err := parseFloatField("Qty Value", row.QtyValue, 0)
	if err != nil {
		return entry, err
	}

	entry = models.WatchlistEntry{
		Symbol:          sym,
		Exchange:        models.ParseExchange(strings.ToUpper(strings.TrimSpace(row.Exchange))),
		Timeframe:       models.ParseTimeframe(strings.TrimSpace(row.Timeframe)),
		BuyRSI:          buyRSI,
		SellRSI:         sellRSI,
		ProfitTargetPct: profitPct,
		StopLossPct:     stopPct,
		QtyMode:         models.ParseQtyMode(strings.TrimSpace(row.QtyMode)),
		QtyValue:        qtyValue,
		Enabled:         strings.EqualFold(strings.TrimSpace(row.Enabled), "true"),
	}
	return entry, nil
}

func parseFloatField(name, raw string, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed %s %q", name, raw)
	}
	return v, nil
}
