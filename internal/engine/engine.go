// Package engine runs the per-cycle trading pipeline: quote, history, RSI,
// strategy, guardrails, gate, order.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"mstock-trader/internal/broker"
	"mstock-trader/internal/config"
	apperrors "mstock-trader/internal/errors"
	"mstock-trader/internal/guardrails"
	"mstock-trader/internal/history"
	"mstock-trader/internal/indicators"
	"mstock-trader/internal/logging"
	"mstock-trader/internal/market"
	"mstock-trader/internal/models"
	"mstock-trader/internal/notify"
	"mstock-trader/internal/positions"
	"mstock-trader/internal/quotes"
	"mstock-trader/internal/strategy"
	"mstock-trader/pkg/utils"
)

// rsiPeriod is the strategy's RSI lookback.
const rsiPeriod = 14

// defaultInterval is the pause between cycles.
const defaultInterval = time.Minute

// AttemptSink receives every attempt record. The SQLite journal implements
// it; tests use an in-memory sink.
type AttemptSink interface {
	RecordAttempt(ctx context.Context, a models.Attempt) error
}

// Deps wires the engine's collaborators.
type Deps struct {
	Config    *config.Config
	Watchlist []models.WatchlistEntry
	Broker    broker.Broker
	Latch     *broker.OfflineLatch
	Quotes    *quotes.Cache
	History   *history.Fetcher
	Journal   AttemptSink
	Notifier  notify.Notifier
	Clock     market.Clock
	Interval  time.Duration
	Logger    zerolog.Logger
}

// Engine evaluates the watchlist once per cycle. Each symbol gets exactly
// one decision per cycle; a failure in one symbol never aborts the rest.
type Engine struct {
	cfg      *config.Config
	entries  []models.WatchlistEntry
	broker   broker.Broker
	latch    *broker.OfflineLatch
	quotes   *quotes.Cache
	history  *history.Fetcher
	recon    *positions.Reconciler
	guards   *guardrails.Guardrails
	gate     *Gate
	placer   *Placer
	sink     AttemptSink
	notifier notify.Notifier
	clock    market.Clock
	interval time.Duration
	logger   zerolog.Logger

	// lastReason suppresses repeated identical skip logs across cycles.
	// The journal still records every attempt.
	lastReason map[models.PositionKey]string
}

// New creates an engine from its dependencies.
func New(deps Deps) *Engine {
	interval := deps.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = market.RealClock{}
	}
	return &Engine{
		cfg:        deps.Config,
		entries:    deps.Watchlist,
		broker:     deps.Broker,
		latch:      deps.Latch,
		quotes:     deps.Quotes,
		history:    deps.History,
		recon:      positions.NewReconciler(deps.Logger),
		guards:     guardrails.New(deps.Logger),
		gate:       NewGate(deps.Latch, deps.Logger),
		placer:     NewPlacer(deps.Broker, deps.Logger),
		sink:       deps.Journal,
		notifier:   deps.Notifier,
		clock:      clock,
		interval:   interval,
		logger:     deps.Logger,
		lastReason: make(map[models.PositionKey]string),
	}
}

// Run cycles until ctx is cancelled, sleeping through closed sessions.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := market.WaitUntilOpen(ctx, e.clock, e.logger); err != nil {
			return err
		}
		e.RunCycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.interval):
		}
	}
}

// RunCycle evaluates every watchlist entry once.
func (e *Engine) RunCycle(ctx context.Context) {
	e.quotes.ResetCycle()
	now := e.clock.Now().In(utils.IndiaLocation)

	if e.latch.Active() {
		e.logger.Warn().
			Time("offline_since", e.latch.Since()).
			Msg("Offline latch raised, skipping cycle")
		e.skipAll(ctx, now, models.ReasonOffline, nil)
		return
	}

	holdings, err := e.broker.GetHoldings(ctx)
	if err != nil {
		e.cycleFetchFailed(ctx, now, "holdings", err)
		return
	}
	orders, err := e.broker.GetOrders(ctx)
	if err != nil {
		e.cycleFetchFailed(ctx, now, "orders", err)
		return
	}

	pos := e.recon.Reconcile(holdings, orders, now)
	capitalUsed := positions.TotalCostBasis(pos)

	// Best effort: the balance snapshot is observability, not an input.
	if funds, err := e.broker.GetFundSummary(ctx); err == nil {
		e.logger.Debug().
			Float64("available_balance", funds.AvailableBalance).
			Float64("capital_used", capitalUsed).
			Msg("Cycle account snapshot")
	}

	for _, entry := range e.entries {
		e.processSymbol(ctx, entry, pos[entry.Key()], orders, &capitalUsed, now)
	}
}

func (e *Engine) cycleFetchFailed(ctx context.Context, now time.Time, what string, err error) {
	e.logger.Error().Err(err).Str("fetch", what).Msg("Cycle aborted, could not read account state")
	switch {
	case apperrors.Is(err, apperrors.ErrOffline):
		e.skipAll(ctx, now, models.ReasonOffline, err)
	case apperrors.Is(err, apperrors.ErrAuthExpired), apperrors.Is(err, apperrors.ErrNotAuthenticated):
		e.notify(ctx, notify.AuthAlert(err))
	}
}

// skipAll records one skipped attempt per entry with the given reason.
func (e *Engine) skipAll(ctx context.Context, now time.Time, reason string, err error) {
	for _, entry := range e.entries {
		e.recordSkip(ctx, e.baseAttempt(entry, now), reason, err)
	}
}

func (e *Engine) baseAttempt(entry models.WatchlistEntry, now time.Time) models.Attempt {
	return models.Attempt{
		Timestamp:    now,
		Symbol:       entry.Symbol,
		Exchange:     entry.Exchange,
		Side:         models.ActionHold,
		BuyRSI:       entry.BuyRSI,
		SellRSI:      entry.SellRSI,
		CapitalLimit: e.cfg.Capital.AllocatedLimit,
	}
}

func (e *Engine) processSymbol(ctx context.Context, entry models.WatchlistEntry, pos models.NetPosition, orders []models.Order, capitalUsed *float64, now time.Time) {
	attempt := e.baseAttempt(entry, now)
	attempt.CapitalUsed = *capitalUsed

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("symbol", entry.Symbol).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Symbol pipeline panicked")
			attempt.Status = models.AttemptFailed
			attempt.Error = fmt.Sprintf("panic: %v", r)
			e.record(ctx, attempt)
		}
	}()

	quote, err := e.quotes.Fetch(ctx, entry.Symbol, entry.Exchange)
	if err != nil {
		reason := models.ReasonBadQuote
		if apperrors.Is(err, apperrors.ErrOffline) {
			reason = models.ReasonOffline
		}
		e.recordSkip(ctx, attempt, reason, err)
		return
	}
	attempt.Price = quote.LastPrice

	candles, err := e.history.Fetch(ctx, entry, quote.InstrumentToken, rsiPeriod+1)
	if err != nil {
		reason := models.ReasonNoHistory
		if apperrors.Is(err, apperrors.ErrOffline) {
			reason = models.ReasonOffline
		}
		e.recordSkip(ctx, attempt, reason, err)
		return
	}

	// Fold the live price into the forming bar. Daily candles already
	// close on the live price, only intraday frames need it.
	if entry.Timeframe.IsIntraday() {
		candles = indicators.OverwriteLastClose(candles, quote.LastPrice)
	}

	rsi, err := indicators.NewRSI(rsiPeriod).Last(candles)
	if err != nil {
		e.recordSkip(ctx, attempt, models.ReasonNoHistory, err)
		return
	}
	attempt.RSI = rsi

	decision := strategy.Decide(strategy.Inputs{
		Entry:    entry,
		RSI:      rsi,
		Price:    quote.LastPrice,
		Position: pos,
		Risk:     e.cfg.Risk,
		Capital:  e.cfg.Capital,
	})

	if decision.IsHold() && decision.Reason == models.ReasonStopLoss {
		e.notify(ctx, notify.StopLossAlert(entry.Symbol, quote.LastPrice, pos.WAPEntry))
	}

	var daily []models.Candle
	if decision.Action == models.ActionBuy && e.cfg.Risk.TrendFilterEnabled {
		daily, err = e.history.FetchDaily(ctx, entry.Symbol, entry.Exchange, quote.InstrumentToken)
		if err != nil {
			// The trend filter fails open on missing history; treat a
			// failed fetch the same way.
			e.logger.Warn().Err(err).Str("symbol", entry.Symbol).Msg("Daily history fetch failed")
			daily = nil
		}
	}

	decision = e.guards.Apply(guardrails.Inputs{
		Entry:        entry,
		Decision:     decision,
		Quote:        quote,
		Position:     pos,
		DailyCandles: daily,
		CapitalUsed:  *capitalUsed,
		Capital:      e.cfg.Capital,
		Risk:         e.cfg.Risk,
	})

	if decision.IsHold() {
		reason := decision.Reason
		if reason == "" {
			reason = "HOLD"
		}
		e.recordSkip(ctx, attempt, reason, nil)
		return
	}

	attempt.Side = decision.Action
	attempt.Qty = decision.Qty
	attempt.Reason = decision.Reason

	if reason, ok := e.gate.Check(decision, entry, orders, e.clock.Now()); !ok {
		e.recordSkip(ctx, attempt, reason, nil)
		return
	}

	orderID, err := e.placer.Place(ctx, entry, decision, quote)
	if err != nil {
		attempt.Status = models.AttemptFailed
		attempt.Error = err.Error()
		e.record(ctx, attempt)
		if apperrors.Is(err, apperrors.ErrAuthExpired) {
			e.notify(ctx, notify.AuthAlert(err))
		}
		return
	}

	attempt.Status = models.AttemptSuccess
	attempt.OrderID = orderID
	if decision.Action == models.ActionBuy {
		*capitalUsed += float64(decision.Qty) * quote.LastPrice
	}
	e.record(ctx, attempt)
	e.notify(ctx, notify.TradeAlert(attempt))
}

// recordSkip journals a skipped attempt. A skip repeating the previous
// cycle's reason logs at debug so a closed market does not fill the log,
// but it still lands in the journal.
func (e *Engine) recordSkip(ctx context.Context, attempt models.Attempt, reason string, err error) {
	attempt.Status = models.AttemptSkipped
	attempt.Reason = reason
	if err != nil {
		attempt.Error = err.Error()
	}

	key := models.PositionKey{Symbol: attempt.Symbol, Exchange: attempt.Exchange}
	repeated := e.lastReason[key] == reason
	e.lastReason[key] = reason

	if e.sink != nil {
		if serr := e.sink.RecordAttempt(ctx, attempt); serr != nil {
			e.logger.Error().Err(serr).Msg("Journal write failed")
		}
	}
	if repeated {
		e.logger.Debug().
			Str("symbol", attempt.Symbol).
			Str("reason", reason).
			Msg("Skip repeated")
		return
	}
	logging.LogAttempt(e.logger, attempt)
}

func (e *Engine) record(ctx context.Context, attempt models.Attempt) {
	key := models.PositionKey{Symbol: attempt.Symbol, Exchange: attempt.Exchange}
	e.lastReason[key] = attempt.Reason

	if e.sink != nil {
		if err := e.sink.RecordAttempt(ctx, attempt); err != nil {
			e.logger.Error().Err(err).Msg("Journal write failed")
		}
	}
	logging.LogAttempt(e.logger, attempt)
}

func (e *Engine) notify(ctx context.Context, n notify.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, n); err != nil {
		e.logger.Warn().Err(err).Str("type", string(n.Type)).Msg("Notification failed")
	}
}
