package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "mstock-trader/internal/errors"
	"mstock-trader/internal/logging"
	"mstock-trader/internal/models"
	"mstock-trader/internal/security"
	"mstock-trader/pkg/utils"
)

const (
	// DefaultBaseURL is the mStock Type A API root.
	DefaultBaseURL = "https://api.mstock.trade/openapi/typea"

	apiVersionHeader = "1"
	connectTimeout   = 5 * time.Second
	requestTimeout   = 15 * time.Second
)

// MStockBroker implements Broker against the mStock Type A REST API.
// Every call is a single attempt: retries across cycles come from the
// engine loop, not the transport.
type MStockBroker struct {
	baseURL string
	store   *security.Store
	latch   *OfflineLatch
	client  *http.Client
	logger  zerolog.Logger
}

// NewMStockBroker creates an mStock client backed by the credential store.
func NewMStockBroker(baseURL string, store *security.Store, latch *OfflineLatch, logger zerolog.Logger) *MStockBroker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &MStockBroker{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		latch:   latch,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		logger: logger,
	}
}

// apiResponse is the common mStock response envelope.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// IsAuthenticated reports whether an access token is stored. It does not
// validate the token; an expired one surfaces as ErrAuthExpired on the
// first call.
func (m *MStockBroker) IsAuthenticated() bool {
	token, err := m.store.AccessToken()
	return err == nil && token != ""
}

// RefreshSession obtains a fresh access token via TOTP verification.
// Concurrent callers are serialized through the store so only one refresh
// hits the API.
func (m *MStockBroker) RefreshSession(ctx context.Context) error {
	stale, err := m.store.AccessToken()
	if err != nil {
		return err
	}
	_, err = m.refresh(ctx, stale)
	return err
}

func (m *MStockBroker) refresh(ctx context.Context, stale string) (string, error) {
	return m.store.RefreshIfStale(stale, func(creds *security.Credentials) (string, error) {
		if creds.APIKey == "" || creds.TOTPSecret == "" {
			return "", apperrors.Wrap(apperrors.ErrNotAuthenticated, "API key or TOTP secret missing")
		}
		code, err := m.store.TOTPNow()
		if err != nil {
			return "", err
		}

		form := url.Values{}
		form.Set("api_key", creds.APIKey)
		form.Set("totp", code)

		body, err := m.do(ctx, http.MethodPost, "/session/verifytotp", nil, form, "")
		if err != nil {
			return "", apperrors.Wrap(err, "TOTP verification")
		}

		var data struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(body, &data); err != nil {
			return "", apperrors.Wrap(err, "parsing TOTP response")
		}
		if data.AccessToken == "" {
			return "", apperrors.Wrap(apperrors.ErrAuthExpired, "TOTP response had no access token")
		}
		m.logger.Info().
			Str("token", security.Mask(data.AccessToken)).
			Msg("Session refreshed via TOTP")
		return data.AccessToken, nil
	})
}

// GenerateSession completes the API-key login flow with a request token,
// exchanging api_key + request_token + sha256 checksum for an access token.
func (m *MStockBroker) GenerateSession(ctx context.Context, requestToken string) error {
	creds, err := m.store.Credentials()
	if err != nil {
		return err
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return apperrors.Wrap(apperrors.ErrNotAuthenticated, "API key or secret missing")
	}

	form := url.Values{}
	form.Set("api_key", creds.APIKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", security.Checksum(creds.APIKey, requestToken, creds.APISecret))

	body, err := m.do(ctx, http.MethodPost, "/session/token", nil, form, "")
	if err != nil {
		return apperrors.Wrap(err, "generating session")
	}

	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return apperrors.Wrap(err, "parsing session response")
	}
	if data.AccessToken == "" {
		return apperrors.Wrap(apperrors.ErrAuthExpired, "session response had no access token")
	}
	return m.store.SetAccessToken(data.AccessToken)
}

// Login starts the interactive login flow with the stored client code and
// password, returning the broker's response so the caller can prompt for
// the OTP or request token it triggers.
func (m *MStockBroker) Login(ctx context.Context) error {
	creds, err := m.store.Credentials()
	if err != nil {
		return err
	}
	if creds.ClientCode == "" || creds.Password == "" {
		return apperrors.Wrap(apperrors.ErrNotAuthenticated, "client code or password missing")
	}

	form := url.Values{}
	form.Set("username", creds.ClientCode)
	form.Set("password", creds.Password)

	_, err = m.do(ctx, http.MethodPost, "/connect/login", nil, form, "")
	if err != nil {
		return apperrors.Wrap(err, "login")
	}
	return nil
}

// GetQuote fetches the OHLC quote for one instrument.
func (m *MStockBroker) GetQuote(ctx context.Context, symbol string, exchange models.Exchange) (*models.Quote, error) {
	key := models.QuoteKey(symbol, exchange)
	query := url.Values{}
	query.Set("i", key)

	body, err := m.authorized(ctx, http.MethodGet, "/instruments/quote/ohlc", query, nil)
	if err != nil {
		return nil, err
	}

	var data map[string]struct {
		LastPrice       flexFloat  `json:"last_price"`
		Volume          flexInt    `json:"volume"`
		AverageVolume   flexInt    `json:"average_volume"`
		InstrumentToken flexString `json:"instrument_token"`
		OHLC            struct {
			Open  flexFloat `json:"open"`
			High  flexFloat `json:"high"`
			Low   flexFloat `json:"low"`
			Close flexFloat `json:"close"`
		} `json:"ohlc"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, apperrors.Wrap(err, "parsing quote response")
	}

	raw, ok := data[key]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrBadQuote, "no quote for %s", key)
	}

	return &models.Quote{
		Symbol:          strings.ToUpper(symbol),
		Exchange:        exchange,
		LastPrice:       float64(raw.LastPrice),
		Volume:          int64(raw.Volume),
		AvgVolume30D:    int64(raw.AverageVolume),
		InstrumentToken: string(raw.InstrumentToken),
		Open:            float64(raw.OHLC.Open),
		High:            float64(raw.OHLC.High),
		Low:             float64(raw.OHLC.Low),
		PrevClose:       float64(raw.OHLC.Close),
		FetchedAt:       time.Now().In(utils.IndiaLocation),
	}, nil
}

// GetHistorical fetches candles for the request window. Timestamps are
// returned in IST.
func (m *MStockBroker) GetHistorical(ctx context.Context, req HistoricalRequest) ([]models.Candle, error) {
	if req.InstrumentToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrBadQuote, "no instrument token for %s", req.Symbol)
	}

	path := fmt.Sprintf("/instruments/historical/%s/%s/%s",
		req.Exchange, req.InstrumentToken, req.Timeframe.APIInterval())
	query := url.Values{}
	query.Set("from", req.From.In(utils.IndiaLocation).Format("2006-01-02 15:04:05"))
	query.Set("to", req.To.In(utils.IndiaLocation).Format("2006-01-02 15:04:05"))

	body, err := m.authorized(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Candles [][]json.RawMessage `json:"candles"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, apperrors.Wrap(err, "parsing candle response")
	}

	candles := make([]models.Candle, 0, len(data.Candles))
	for _, row := range data.Candles {
		candle, err := parseCandle(row)
		if err != nil {
			m.logger.Debug().Err(err).Str("symbol", req.Symbol).Msg("Skipping malformed candle")
			continue
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// GetHoldings fetches CNC holdings.
func (m *MStockBroker) GetHoldings(ctx context.Context) ([]models.Holding, error) {
	body, err := m.authorized(ctx, http.MethodGet, "/portfolio/holdings", nil, nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		TradingSymbol string    `json:"tradingsymbol"`
		Exchange      string    `json:"exchange"`
		Quantity      flexInt   `json:"quantity"`
		UsedQuantity  flexInt   `json:"used_quantity"`
		AveragePrice  flexFloat `json:"average_price"`
		Price         flexFloat `json:"price"`
		LastPrice     flexFloat `json:"last_price"`
		PnL           flexFloat `json:"pnl"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.Wrap(err, "parsing holdings response")
	}

	holdings := make([]models.Holding, 0, len(raw))
	for _, h := range raw {
		avg := float64(h.AveragePrice)
		if avg == 0 {
			avg = float64(h.Price)
		}
		holdings = append(holdings, models.Holding{
			Symbol:       strings.ToUpper(h.TradingSymbol),
			Exchange:     models.ParseExchange(h.Exchange),
			Quantity:     int(h.Quantity),
			UsedQuantity: int(h.UsedQuantity),
			AveragePrice: avg,
			LastPrice:    float64(h.LastPrice),
			PnL:          float64(h.PnL),
		})
	}
	return holdings, nil
}

// GetOrders fetches today's order book.
func (m *MStockBroker) GetOrders(ctx context.Context) ([]models.Order, error) {
	body, err := m.authorized(ctx, http.MethodGet, "/orders", nil, nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		OrderID         flexString `json:"order_id"`
		TradingSymbol   string     `json:"tradingsymbol"`
		Exchange        string     `json:"exchange"`
		TransactionType string     `json:"transaction_type"`
		OrderType       string     `json:"order_type"`
		Product         string     `json:"product"`
		Validity        string     `json:"validity"`
		Quantity        flexInt    `json:"quantity"`
		Price           flexFloat  `json:"price"`
		AveragePrice    flexFloat  `json:"average_price"`
		Status          string     `json:"status"`
		InstrumentToken flexString `json:"instrument_token"`
		OrderTimestamp  string     `json:"order_timestamp"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.Wrap(err, "parsing orders response")
	}

	orders := make([]models.Order, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, models.Order{
			ID:              string(o.OrderID),
			Symbol:          strings.ToUpper(o.TradingSymbol),
			Exchange:        models.ParseExchange(o.Exchange),
			Side:            models.OrderSide(strings.ToUpper(o.TransactionType)),
			Type:            models.OrderType(strings.ToUpper(o.OrderType)),
			Product:         models.ProductType(strings.ToUpper(o.Product)),
			Validity:        o.Validity,
			Quantity:        int(o.Quantity),
			Price:           float64(o.Price),
			AveragePrice:    float64(o.AveragePrice),
			Status:          strings.ToUpper(o.Status),
			InstrumentToken: string(o.InstrumentToken),
			PlacedAt:        parseOrderTime(o.OrderTimestamp),
		})
	}
	return orders, nil
}

// GetFundSummary fetches the account cash summary.
func (m *MStockBroker) GetFundSummary(ctx context.Context) (*FundSummary, error) {
	body, err := m.authorized(ctx, http.MethodGet, "/user/fundsummary", nil, nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		AvailableBalance flexFloat `json:"AVAILABLE_BALANCE"`
		UsedMargin       flexFloat `json:"AMOUNT_UTILIZED"`
		Collateral       flexFloat `json:"COLLATERAL_VALUE"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.Wrap(err, "parsing fund summary")
	}
	if len(raw) == 0 {
		return &FundSummary{}, nil
	}
	return &FundSummary{
		AvailableBalance: float64(raw[0].AvailableBalance),
		UsedMargin:       float64(raw[0].UsedMargin),
		Collateral:       float64(raw[0].Collateral),
	}, nil
}

// PlaceOrder places a regular CNC day order and returns the order ID.
// Price 0 places a market order, anything else a limit order.
func (m *MStockBroker) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	orderType := models.OrderTypeMarket
	if req.Price != 0 {
		orderType = models.OrderTypeLimit
	}

	form := url.Values{}
	form.Set("tradingsymbol", strings.ToUpper(req.Symbol))
	form.Set("exchange", string(req.Exchange))
	form.Set("transaction_type", string(req.Side))
	form.Set("order_type", string(orderType))
	form.Set("quantity", strconv.Itoa(req.Quantity))
	form.Set("product", string(models.ProductCNC))
	form.Set("validity", "DAY")
	form.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
	form.Set("symboltoken", req.InstrumentToken)

	body, err := m.authorized(ctx, http.MethodPost, "/orders/regular", nil, form)
	if err != nil {
		return "", err
	}

	var data struct {
		OrderID flexString `json:"order_id"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", apperrors.Wrap(err, "parsing order response")
	}

	logging.LogOrder(m.logger, string(data.OrderID), req.Symbol, string(req.Side), req.Quantity)
	return string(data.OrderID), nil
}

// CancelOrder cancels one order by ID.
func (m *MStockBroker) CancelOrder(ctx context.Context, orderID string) error {
	form := url.Values{}
	form.Set("order_id", orderID)
	_, err := m.authorized(ctx, http.MethodPost, "/orders/cancel", nil, form)
	return err
}

// CancelAllOrders cancels every order still in a blocking state and
// returns how many were cancelled. Individual cancel failures are logged
// and skipped so one stuck order does not strand the rest.
func (m *MStockBroker) CancelAllOrders(ctx context.Context) (int, error) {
	orders, err := m.GetOrders(ctx)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, order := range orders {
		if !order.IsBlocking() {
			continue
		}
		if err := m.CancelOrder(ctx, order.ID); err != nil {
			m.logger.Warn().Err(err).Str("order_id", order.ID).Msg("Cancel failed")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// authorized performs an authenticated call. On ErrAuthExpired it refreshes
// the session once and retries once; a second failure surfaces to the
// caller.
func (m *MStockBroker) authorized(ctx context.Context, method, path string, query, form url.Values) (json.RawMessage, error) {
	token, err := m.store.AccessToken()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	body, err := m.do(ctx, method, path, query, form, token)
	if !apperrors.Is(err, apperrors.ErrAuthExpired) {
		return body, err
	}

	m.logger.Warn().Str("endpoint", path).Msg("Session expired, refreshing token")
	newToken, rerr := m.refresh(ctx, token)
	if rerr != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthExpired, "token refresh failed")
	}
	return m.do(ctx, method, path, query, form, newToken)
}

// do performs one HTTP round trip and unwraps the mStock envelope. Network
// failures raise the offline latch; any completed HTTP exchange lowers it.
func (m *MStockBroker) do(ctx context.Context, method, path string, query, form url.Values, token string) (json.RawMessage, error) {
	endpoint := m.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, apperrors.NewBrokerError(path, 0, "building request", err)
	}
	req.Header.Set("X-Mirae-Version", apiVersionHeader)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		apiKey, err := m.store.APIKey()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "token "+apiKey+":"+token)
	}

	start := time.Now()
	resp, err := m.client.Do(req)
	logging.LogAPICall(m.logger, method, path, time.Since(start), err)
	if err != nil {
		m.latch.Set()
		return nil, apperrors.Wrapf(apperrors.ErrOffline, "%s %s", method, path)
	}
	defer resp.Body.Close()
	m.latch.Clear()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.NewBrokerError(path, resp.StatusCode, "reading response", err)
	}

	if isAuthExpired(resp.StatusCode, payload) {
		return nil, apperrors.Wrapf(apperrors.ErrAuthExpired, "%s %s", method, path)
	}

	var envelope apiResponse
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, apperrors.NewBrokerError(path, resp.StatusCode, "malformed response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || envelope.Status != "success" {
		return nil, apperrors.NewBrokerError(path, resp.StatusCode, envelope.Message, nil)
	}
	return envelope.Data, nil
}

// isAuthExpired matches the broker's session-expiry signals: 401/403, or a
// TokenException / invalid session message in the body.
func isAuthExpired(statusCode int, body []byte) bool {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return true
	}
	text := string(body)
	return strings.Contains(text, "TokenException") ||
		strings.Contains(strings.ToLower(text), "invalid session")
}

func parseCandle(row []json.RawMessage) (models.Candle, error) {
	var candle models.Candle
	if len(row) < 5 {
		return candle, fmt.Errorf("candle has %d fields", len(row))
	}

	var tsRaw string
	if err := json.Unmarshal(row[0], &tsRaw); err != nil {
		return candle, fmt.Errorf("candle timestamp: %w", err)
	}
	ts, err := parseCandleTime(tsRaw)
	if err != nil {
		return candle, err
	}
	candle.Timestamp = ts

	fields := []*float64{&candle.Open, &candle.High, &candle.Low, &candle.Close}
	for i, dst := range fields {
		var v flexFloat
		if err := json.Unmarshal(row[i+1], &v); err != nil {
			return candle, fmt.Errorf("candle field %d: %w", i+1, err)
		}
		*dst = float64(v)
	}
	if len(row) > 5 {
		var v flexInt
		if err := json.Unmarshal(row[5], &v); err == nil {
			candle.Volume = int64(v)
		}
	}
	return candle, nil
}

var candleTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseCandleTime(raw string) (time.Time, error) {
	for _, layout := range candleTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, utils.IndiaLocation); err == nil {
			return ts.In(utils.IndiaLocation), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable candle timestamp %q", raw)
}

func parseOrderTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if ts, err := time.ParseInLocation(layout, raw, utils.IndiaLocation); err == nil {
			return ts.In(utils.IndiaLocation)
		}
	}
	return time.Time{}
}
