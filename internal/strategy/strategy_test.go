package strategy

import (
	"testing"

	"mstock-trader/internal/config"
	"mstock-trader/internal/models"
)

func entry() models.WatchlistEntry {
	return models.WatchlistEntry{
		Symbol:   "INFY",
		Exchange: models.NSE,
		BuyRSI:   30,
		SellRSI:  70,
		QtyMode:  models.QtyModeFixedQty,
		QtyValue: 10,
		Enabled:  true,
	}
}

func risk() config.RiskConfig {
	return config.RiskConfig{
		StopLossPct:     5,
		ProfitTargetPct: 10,
		NeverSellAtLoss: true,
	}
}

func TestDecide_Precedence(t *testing.T) {
	held := models.NetPosition{NetQty: 10, WAPEntry: 100}

	tests := []struct {
		name       string
		in         Inputs
		wantAction models.Action
		wantReason string
		wantQty    int
	}{
		{
			name: "profit target fires first",
			in: Inputs{
				Entry: entry(), RSI: 90, Price: 111, Position: held, Risk: risk(),
			},
			wantAction: models.ActionSell,
			wantReason: models.ReasonProfitTarget,
			wantQty:    10,
		},
		{
			name: "stop loss breach holds with alert reason by default",
			in: Inputs{
				Entry: entry(), RSI: 50, Price: 94, Position: held, Risk: risk(),
			},
			wantAction: models.ActionHold,
			wantReason: models.ReasonStopLoss,
		},
		{
			name: "stop loss sells when auto execution is on",
			in: Inputs{
				Entry: entry(), RSI: 50, Price: 94, Position: held,
				Risk: config.RiskConfig{StopLossPct: 5, ProfitTargetPct: 10, AutoExecuteStopLoss: true},
			},
			wantAction: models.ActionSell,
			wantReason: models.ReasonStopLoss,
			wantQty:    10,
		},
		{
			name: "overbought exit needs a profit",
			in: Inputs{
				Entry: entry(), RSI: 75, Price: 100, Position: held, Risk: risk(),
			},
			wantAction: models.ActionHold,
		},
		{
			name: "overbought exit above entry sells",
			in: Inputs{
				Entry: entry(), RSI: 75, Price: 105, Position: held, Risk: risk(),
			},
			wantAction: models.ActionSell,
			wantReason: models.ReasonRSIOverbought,
			wantQty:    10,
		},
		{
			name: "oversold entry when nothing is held",
			in: Inputs{
				Entry: entry(), RSI: 25, Price: 100, Risk: risk(),
			},
			wantAction: models.ActionBuy,
			wantReason: models.ReasonRSIOversold,
			wantQty:    10,
		},
		{
			name: "oversold signal while holding does not pyramid",
			in: Inputs{
				Entry: entry(), RSI: 25, Price: 100, Position: held, Risk: risk(),
			},
			wantAction: models.ActionHold,
		},
		{
			name: "fully reserved position cannot exit but can be topped up",
			in: Inputs{
				Entry: entry(), RSI: 25, Price: 120,
				Position: models.NetPosition{NetQty: 10, UsedQty: 10, WAPEntry: 100},
				Risk:     risk(),
			},
			wantAction: models.ActionBuy,
			wantReason: models.ReasonRSIOversold,
			wantQty:    10,
		},
		{
			name: "per-entry stop loss overrides the global one",
			in: Inputs{
				Entry: func() models.WatchlistEntry {
					e := entry()
					e.StopLossPct = 2
					return e
				}(),
				RSI: 50, Price: 97, Position: held, Risk: risk(),
			},
			wantAction: models.ActionHold,
			wantReason: models.ReasonStopLoss,
		},
		{
			name: "quiet middle of the range holds",
			in: Inputs{
				Entry: entry(), RSI: 50, Price: 102, Position: held, Risk: risk(),
			},
			wantAction: models.ActionHold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.in)
			if got.Action != tt.wantAction {
				t.Errorf("Action = %v, want %v", got.Action, tt.wantAction)
			}
			if tt.wantReason != "" && got.Reason != tt.wantReason {
				t.Errorf("Reason = %v, want %v", got.Reason, tt.wantReason)
			}
			if tt.wantQty != 0 && got.Qty != tt.wantQty {
				t.Errorf("Qty = %d, want %d", got.Qty, tt.wantQty)
			}
		})
	}
}

func TestBuyQty_Sizing(t *testing.T) {
	capital := config.CapitalConfig{AllocatedLimit: 100000}

	tests := []struct {
		name  string
		mode  models.QtyMode
		value float64
		price float64
		want  int
	}{
		{"fixed qty passes through", models.QtyModeFixedQty, 10, 1500, 10},
		{"fixed amount floors shares", models.QtyModeFixedAmount, 5000, 1500, 3},
		{"fixed amount below one share is zero", models.QtyModeFixedAmount, 1000, 1500, 0},
		{"fixed amount zero is zero", models.QtyModeFixedAmount, 0, 1500, 0},
		{"pct of capital floors shares", models.QtyModePctOfCapital, 10, 3000, 3},
		{"zero price is zero", models.QtyModeFixedQty, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry()
			e.QtyMode = tt.mode
			e.QtyValue = tt.value
			if got := BuyQty(e, tt.price, capital); got != tt.want {
				t.Errorf("BuyQty = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecide_ZeroQtyEntryCollapsesToHold(t *testing.T) {
	e := entry()
	e.QtyMode = models.QtyModeFixedAmount
	e.QtyValue = 100 // too small for one share at this price

	got := Decide(Inputs{Entry: e, RSI: 20, Price: 1500, Risk: risk()})
	if got.Action != models.ActionHold || got.Reason != models.ReasonZeroQty {
		t.Errorf("got %+v, want Hold(ZERO_QTY)", got)
	}
}
