package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xvaler/sentinel/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WEEX ADAPTER - Authenticated REST execution against /capi/v2
// ═══════════════════════════════════════════════════════════════════════════════

const maxLeverage = 20

// Contract symbols the adapter will touch. Anything else is refused.
var allowedSymbols = map[string]bool{
	"cmt_btcusdt":  true,
	"cmt_ethusdt":  true,
	"cmt_solusdt":  true,
	"cmt_dogeusdt": true,
	"cmt_xrpusdt":  true,
	"cmt_adausdt":  true,
	"cmt_bnbusdt":  true,
	"cmt_ltcusdt":  true,
}

// WeexClient is the live Adapter implementation
type WeexClient struct {
	baseURL    string
	apiKey     string
	secretKey  string
	passphrase string
	dryRun     bool
	http       *http.Client

	// injectable clock for signing tests
	now func() time.Time
}

// Option configures the client
type Option func(*WeexClient)

// WithDryRun makes the client log instead of sending orders
func WithDryRun(dry bool) Option {
	return func(c *WeexClient) { c.dryRun = dry }
}

// WithTimeout overrides the default 10s HTTP timeout
func WithTimeout(d time.Duration) Option {
	return func(c *WeexClient) { c.http.Timeout = d }
}

// WithBaseURL overrides the API endpoint (tests)
func WithBaseURL(u string) Option {
	return func(c *WeexClient) { c.baseURL = u }
}

// NewWeexClient creates an authenticated WEEX futures client
func NewWeexClient(apiKey, secretKey, passphrase string, opts ...Option) *WeexClient {
	c := &WeexClient{
		baseURL:    "https://api-contract.weex.com",
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		http:       &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ────────────────────────────────────────────────────────────────────────────
// Signing
// ────────────────────────────────────────────────────────────────────────────

func (c *WeexClient) timestamp() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// sign produces the base64 HMAC-SHA256 of ts+METHOD+path+query+body
func (c *WeexClient) sign(ts, method, path, query, body string) string {
	msg := ts + method + path + query + body
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *WeexClient) headers(signature, ts string) http.Header {
	h := http.Header{}
	h.Set("ACCESS-KEY", c.apiKey)
	h.Set("ACCESS-SIGN", signature)
	h.Set("ACCESS-TIMESTAMP", ts)
	h.Set("ACCESS-PASSPHRASE", c.passphrase)
	h.Set("Content-Type", "application/json")
	h.Set("locale", "en-US")
	return h
}

// ────────────────────────────────────────────────────────────────────────────
// Core requests
// ────────────────────────────────────────────────────────────────────────────

func (c *WeexClient) get(ctx context.Context, path, query string, out any) error {
	ts := c.timestamp()
	sig := c.sign(ts, "GET", path, query, "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+query, nil)
	if err != nil {
		return &APIError{Class: ErrNetwork, Message: err.Error()}
	}
	req.Header = c.headers(sig, ts)
	return c.do(req, out)
}

func (c *WeexClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &APIError{Class: ErrRejected, Message: "marshal body: " + err.Error()}
	}

	ts := c.timestamp()
	sig := c.sign(ts, "POST", path, "", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &APIError{Class: ErrNetwork, Message: err.Error()}
	}
	req.Header = c.headers(sig, ts)
	return c.do(req, out)
}

func (c *WeexClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Class: ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Class: ErrNetwork, Message: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &APIError{Class: ErrAuth, Code: resp.StatusCode, Message: truncate(string(data), 200)}
	case resp.StatusCode != http.StatusOK:
		return &APIError{Class: ErrRejected, Code: resp.StatusCode, Message: truncate(string(data), 200)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Class: ErrRejected, Code: resp.StatusCode, Message: "decode: " + truncate(string(data), 200)}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ────────────────────────────────────────────────────────────────────────────
// Adapter implementation
// ────────────────────────────────────────────────────────────────────────────

// SetLeverage applies cross-margin leverage for both sides, capped at 20x
func (c *WeexClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := checkSymbol(symbol); err != nil {
		return err
	}
	if leverage > maxLeverage {
		leverage = maxLeverage
	}
	body := map[string]any{
		"symbol":        symbol,
		"marginMode":    1,
		"longLeverage":  strconv.Itoa(leverage),
		"shortLeverage": strconv.Itoa(leverage),
	}
	if c.dryRun {
		log.Info().Str("symbol", symbol).Int("leverage", leverage).Msg("🧪 [DRY RUN] Set leverage")
		return nil
	}
	return c.post(ctx, "/capi/v2/account/leverage", body, nil)
}

type tickerResponse struct {
	Last       string `json:"last"`
	BaseVolume string `json:"base_volume"`
	Timestamp  int64  `json:"timestamp"`
}

// GetTicker fetches the latest traded price and volume for a symbol
func (c *WeexClient) GetTicker(ctx context.Context, symbol string) (types.Tick, error) {
	if err := checkSymbol(symbol); err != nil {
		return types.Tick{}, err
	}
	var tr tickerResponse
	if err := c.get(ctx, "/capi/v2/market/ticker", "?symbol="+symbol, &tr); err != nil {
		return types.Tick{}, err
	}

	price, err := decimal.NewFromString(tr.Last)
	if err != nil || price.IsZero() {
		return types.Tick{}, &APIError{Class: ErrRejected, Message: "ticker returned no price"}
	}
	volume, _ := decimal.NewFromString(tr.BaseVolume)

	ts := time.Now().UTC()
	if tr.Timestamp > 0 {
		ts = time.UnixMilli(tr.Timestamp).UTC()
	}
	return types.Tick{Timestamp: ts, Price: price, Volume: volume}, nil
}

type orderResponse struct {
	OrderID  string `json:"order_id"`
	ClientID string `json:"client_oid"`
}

// PlaceOrder submits a limit entry order.
// Order type codes: 1=open long, 2=open short.
func (c *WeexClient) PlaceOrder(ctx context.Context, direction types.Direction, size, price decimal.Decimal, symbol string) (string, error) {
	if err := checkSymbol(symbol); err != nil {
		return "", err
	}
	if direction != types.DirectionLong && direction != types.DirectionShort {
		return "", &APIError{Class: ErrRejected, Message: "invalid direction " + string(direction)}
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return "", &APIError{Class: ErrRejected, Message: "invalid size " + size.String()}
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return "", &APIError{Class: ErrRejected, Message: "limit price required"}
	}

	typeCode := "1"
	if direction == types.DirectionShort {
		typeCode = "2"
	}
	body := map[string]any{
		"symbol":      symbol,
		"client_oid":  fmt.Sprintf("sentinel-%d", c.now().Unix()),
		"size":        size.String(),
		"type":        typeCode,
		"order_type":  "0", // limit
		"match_price": "0",
		"price":       price.String(),
	}

	if c.dryRun {
		id := fmt.Sprintf("DRY_RUN_%d", c.now().Unix())
		log.Info().
			Str("symbol", symbol).
			Str("direction", string(direction)).
			Str("size", size.String()).
			Str("price", price.String()).
			Msg("🧪 [DRY RUN] Place order")
		return id, nil
	}

	var or orderResponse
	if err := c.post(ctx, "/capi/v2/order/placeOrder", body, &or); err != nil {
		return "", err
	}
	if or.OrderID == "" {
		return "", &APIError{Class: ErrRejected, Message: "no order id in response"}
	}
	return or.OrderID, nil
}

type planOrderResponse struct {
	OrderID string `json:"orderId"`
	Success bool   `json:"success"`
}

// PlaceTPSLOrder submits a trigger plan order (take-profit or stop-loss) that
// executes at market when the trigger price is crossed.
func (c *WeexClient) PlaceTPSLOrder(ctx context.Context, kind PlanType, triggerPrice, size decimal.Decimal, symbol string) (string, error) {
	if err := checkSymbol(symbol); err != nil {
		return "", err
	}
	if triggerPrice.LessThanOrEqual(decimal.Zero) || size.LessThanOrEqual(decimal.Zero) {
		return "", &APIError{Class: ErrRejected, Message: "invalid trigger price or size"}
	}

	body := map[string]any{
		"symbol":        symbol,
		"clientOrderId": fmt.Sprintf("sentinel-%s-%d", kind, c.now().Unix()),
		"planType":      string(kind),
		"triggerPrice":  triggerPrice.String(),
		"executePrice":  "0", // market on trigger
		"size":          size.String(),
		"marginMode":    1,
	}

	if c.dryRun {
		id := fmt.Sprintf("DRY_RUN_%s_%d", kind, c.now().UnixNano())
		log.Info().
			Str("symbol", symbol).
			Str("plan", string(kind)).
			Str("trigger", triggerPrice.String()).
			Str("size", size.String()).
			Msg("🧪 [DRY RUN] Place TP/SL plan order")
		return id, nil
	}

	var pr planOrderResponse
	if err := c.post(ctx, "/capi/v2/order/placeTpSlOrder", body, &pr); err != nil {
		return "", err
	}
	if !pr.Success && pr.OrderID == "" {
		return "", &APIError{Class: ErrRejected, Message: "plan order not accepted"}
	}
	return pr.OrderID, nil
}

type positionResponse struct {
	Data []struct {
		Symbol   string `json:"symbol"`
		Side     string `json:"side"`
		Size     string `json:"size"`
		AvgPrice string `json:"avgPrice"`
	} `json:"data"`
}

// GetPosition returns the open position for a symbol, nil when flat
func (c *WeexClient) GetPosition(ctx context.Context, symbol string) (*PositionSnapshot, error) {
	if err := checkSymbol(symbol); err != nil {
		return nil, err
	}
	if c.dryRun {
		return nil, nil
	}

	var pr positionResponse
	if err := c.get(ctx, "/capi/v2/account/holds", "?symbol="+symbol, &pr); err != nil {
		return nil, err
	}

	for _, p := range pr.Data {
		if p.Symbol != symbol {
			continue
		}
		size, err := decimal.NewFromString(p.Size)
		if err != nil || size.IsZero() {
			continue
		}
		entry, _ := decimal.NewFromString(p.AvgPrice)
		dir := types.DirectionLong
		if p.Side == "short" || p.Side == "2" || p.Side == "SHORT" {
			dir = types.DirectionShort
		}
		return &PositionSnapshot{
			Symbol:     symbol,
			Direction:  dir,
			Size:       size.Abs(),
			EntryPrice: entry,
		}, nil
	}
	return nil, nil
}

func checkSymbol(symbol string) error {
	if !allowedSymbols[symbol] {
		return &APIError{Class: ErrRejected, Message: "symbol not allowed: " + symbol}
	}
	return nil
}
