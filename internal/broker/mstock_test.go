package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	apperrors "mstock-trader/internal/errors"
	"mstock-trader/internal/models"
	"mstock-trader/internal/security"
)

// a syntactically valid base32 TOTP secret for tests
const testTOTPSecret = "JBSWY3DPEHPK3PXP"

func newTestStore(t *testing.T) *security.Store {
	t.Helper()
	store := security.NewStore(t.TempDir())
	if err := store.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	err := store.Update(func(c *security.Credentials) {
		c.APIKey = "apikey"
		c.APISecret = "apisecret"
		c.TOTPSecret = testTOTPSecret
		c.AccessToken = "token-1"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	return store
}

func newTestBroker(t *testing.T, handler http.Handler) (*MStockBroker, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	b := NewMStockBroker(server.URL, newTestStore(t), NewOfflineLatch(), zerolog.Nop())
	return b, server
}

func TestGetQuote_ParsesFlexibleTypes(t *testing.T) {
	var gotAuth, gotVersion string
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("X-Mirae-Version")
		if r.URL.Path != "/instruments/quote/ohlc" || r.URL.Query().Get("i") != "NSE:INFY" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		// volume and token arrive as strings, average_volume as a number
		w.Write([]byte(`{"status":"success","data":{"NSE:INFY":{
			"last_price":"1512.35","volume":"250000","average_volume":400000,
			"instrument_token":11536,
			"ohlc":{"open":1500,"high":"1520.5","low":1495,"close":1505}}}}`))
	}))

	quote, err := b.GetQuote(context.Background(), "INFY", models.NSE)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}

	if gotAuth != "token apikey:token-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotVersion != "1" {
		t.Errorf("X-Mirae-Version = %q", gotVersion)
	}
	if quote.LastPrice != 1512.35 {
		t.Errorf("LastPrice = %v", quote.LastPrice)
	}
	if quote.Volume != 250000 || quote.AvgVolume30D != 400000 {
		t.Errorf("Volume = %d, AvgVolume30D = %d", quote.Volume, quote.AvgVolume30D)
	}
	if quote.InstrumentToken != "11536" {
		t.Errorf("InstrumentToken = %q", quote.InstrumentToken)
	}
	if quote.High != 1520.5 || quote.PrevClose != 1505 {
		t.Errorf("High = %v, PrevClose = %v", quote.High, quote.PrevClose)
	}
}

func TestGetHistorical_SkipsMalformedRows(t *testing.T) {
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instruments/historical/NSE/11536/15minute" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("from") == "" || r.URL.Query().Get("to") == "" {
			t.Error("missing from/to query parameters")
		}
		w.Write([]byte(`{"status":"success","data":{"candles":[
			["2024-06-03T09:15:00+05:30",100,101,99,100.5,12000],
			["not a timestamp",1,2,3,4,5],
			["2024-06-03 09:30:00","100.5","102","100","101.5","8000"]]}}`))
	}))

	candles, err := b.GetHistorical(context.Background(), HistoricalRequest{
		Symbol: "INFY", Exchange: models.NSE, InstrumentToken: "11536",
		Timeframe: models.Timeframe15m,
	})
	if err != nil {
		t.Fatalf("GetHistorical: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2 (malformed row dropped)", len(candles))
	}
	if candles[0].Close != 100.5 || candles[0].Volume != 12000 {
		t.Errorf("candle 0 = %+v", candles[0])
	}
	if candles[1].Close != 101.5 {
		t.Errorf("candle 1 close = %v", candles[1].Close)
	}
}

func TestGetHoldings_AveragePriceFallback(t *testing.T) {
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[
			{"tradingsymbol":"infy","exchange":"NSE","quantity":"10","used_quantity":2,
			 "average_price":0,"price":"1480.5","last_price":1512,"pnl":"315"},
			{"tradingsymbol":"TCS","exchange":"BSE","quantity":5,
			 "average_price":4100,"last_price":4150,"pnl":250}]}`))
	}))

	holdings, err := b.GetHoldings(context.Background())
	if err != nil {
		t.Fatalf("GetHoldings: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("got %d holdings", len(holdings))
	}
	if holdings[0].Symbol != "INFY" || holdings[0].AveragePrice != 1480.5 {
		t.Errorf("holding 0 = %+v, want price fallback 1480.5", holdings[0])
	}
	if holdings[0].Quantity != 10 || holdings[0].UsedQuantity != 2 {
		t.Errorf("holding 0 quantities = %+v", holdings[0])
	}
	if holdings[1].Exchange != models.BSE || holdings[1].AveragePrice != 4100 {
		t.Errorf("holding 1 = %+v", holdings[1])
	}
}

func TestGetFundSummary_ArrayWithStringBalances(t *testing.T) {
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/fundsummary" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","data":[
			{"AVAILABLE_BALANCE":"52340.75","AMOUNT_UTILIZED":"1000","COLLATERAL_VALUE":0}]}`))
	}))

	summary, err := b.GetFundSummary(context.Background())
	if err != nil {
		t.Fatalf("GetFundSummary: %v", err)
	}
	if summary.AvailableBalance != 52340.75 || summary.UsedMargin != 1000 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestPlaceOrder_FormEncoding(t *testing.T) {
	var form map[string]string
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/regular" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		r.ParseForm()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Write([]byte(`{"status":"success","data":{"order_id":1234567890}}`))
	}))

	orderID, err := b.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "infy", Exchange: models.NSE, Side: models.OrderSideBuy,
		Quantity: 10, Price: 0, InstrumentToken: "11536",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if orderID != "1234567890" {
		t.Errorf("orderID = %q", orderID)
	}

	want := map[string]string{
		"tradingsymbol":    "INFY",
		"exchange":         "NSE",
		"transaction_type": "BUY",
		"order_type":       "MARKET",
		"quantity":         "10",
		"product":          "CNC",
		"validity":         "DAY",
		"price":            "0",
		"symboltoken":      "11536",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, form[k], v)
		}
	}
}

func TestPlaceOrder_LimitWhenPriceSet(t *testing.T) {
	var orderType string
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		orderType = r.PostForm.Get("order_type")
		w.Write([]byte(`{"status":"success","data":{"order_id":"1"}}`))
	}))

	if _, err := b.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "INFY", Exchange: models.NSE, Side: models.OrderSideSell,
		Quantity: 5, Price: 1520.5,
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if orderType != "LIMIT" {
		t.Errorf("order_type = %q, want LIMIT", orderType)
	}
}

func TestAuthorized_RefreshesExpiredSessionOnce(t *testing.T) {
	var quoteCalls, totpCalls int32
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instruments/quote/ohlc":
			n := atomic.AddInt32(&quoteCalls, 1)
			if n == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"status":"error","message":"TokenException"}`))
				return
			}
			if got := r.Header.Get("Authorization"); got != "token apikey:token-2" {
				t.Errorf("retry Authorization = %q", got)
			}
			w.Write([]byte(`{"status":"success","data":{"NSE:INFY":{"last_price":100,"ohlc":{}}}}`))
		case "/session/verifytotp":
			atomic.AddInt32(&totpCalls, 1)
			r.ParseForm()
			if r.PostForm.Get("api_key") != "apikey" || r.PostForm.Get("totp") == "" {
				t.Errorf("verifytotp form = %v", r.PostForm)
			}
			w.Write([]byte(`{"status":"success","data":{"access_token":"token-2"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	quote, err := b.GetQuote(context.Background(), "INFY", models.NSE)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.LastPrice != 100 {
		t.Errorf("LastPrice = %v", quote.LastPrice)
	}
	if quoteCalls != 2 || totpCalls != 1 {
		t.Errorf("quoteCalls = %d, totpCalls = %d, want 2 and 1", quoteCalls, totpCalls)
	}
}

func TestAuthorized_SecondAuthFailureSurfaces(t *testing.T) {
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// every endpoint, refresh included, rejects the session
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"error","message":"invalid session"}`))
	}))

	_, err := b.GetQuote(context.Background(), "INFY", models.NSE)
	if !apperrors.Is(err, apperrors.ErrAuthExpired) {
		t.Errorf("err = %v, want ErrAuthExpired", err)
	}
}

func TestDo_NetworkFailureRaisesLatch(t *testing.T) {
	store := newTestStore(t)
	latch := NewOfflineLatch()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	b := NewMStockBroker(server.URL, store, latch, zerolog.Nop())

	server.Close()
	_, err := b.GetOrders(context.Background())
	if !apperrors.Is(err, apperrors.ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
	if !latch.Active() {
		t.Error("latch should be raised after a network failure")
	}

	// A reachable endpoint lowers the latch again.
	server2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[]}`))
	}))
	defer server2.Close()
	b2 := NewMStockBroker(server2.URL, store, latch, zerolog.Nop())
	if _, err := b2.GetOrders(context.Background()); err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if latch.Active() {
		t.Error("latch should be lowered after a successful call")
	}
}

func TestGetOrders_ParsesBook(t *testing.T) {
	b, _ := newTestBroker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[
			{"order_id":"100","tradingsymbol":"INFY","exchange":"NSE",
			 "transaction_type":"buy","order_type":"MARKET","product":"CNC",
			 "quantity":10,"price":0,"average_price":"1500.5","status":"complete",
			 "order_timestamp":"2024-06-03 10:12:45"},
			{"order_id":200,"tradingsymbol":"TCS","exchange":"NSE",
			 "transaction_type":"SELL","quantity":"5","status":"OPEN"}]}`))
	}))

	orders, err := b.GetOrders(context.Background())
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders", len(orders))
	}

	first := orders[0]
	if first.ID != "100" || first.Side != models.OrderSideBuy || !first.IsExecuted() {
		t.Errorf("order 0 = %+v", first)
	}
	if first.PlacedAt.IsZero() || first.PlacedAt.Hour() != 10 {
		t.Errorf("PlacedAt = %v", first.PlacedAt)
	}
	if !orders[1].IsBlocking() || orders[1].Quantity != 5 {
		t.Errorf("order 1 = %+v", orders[1])
	}
}
