// Package binance implements the USD-M futures transport: signed REST calls
// for orders and account state, and websocket streams for market data.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fandresen/trAIding/internal/broker"
	"github.com/fandresen/trAIding/internal/domain"
	"github.com/fandresen/trAIding/internal/infra"
)

const (
	defaultRecvWindow = 5000 * time.Millisecond
	requestTimeout    = 10 * time.Second
)

// APIError is a Binance error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: code %d: %s", e.Code, e.Message)
}

// Client is a USD-M futures REST client. All requests go through a
// token-bucket rate limiter and a circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	secret  []byte

	http    *http.Client
	limiter *infra.RateLimiter
	breaker *infra.Breaker
}

// NewClient creates a futures REST client for the given endpoint.
func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		secret:  []byte(apiSecret),
		http:    &http.Client{Timeout: requestTimeout},
		// 1200 request weight per minute on fapi; stay well under it.
		limiter: NewRestLimiter(),
		breaker: infra.NewBreaker("binance-rest"),
	}
}

// NewRestLimiter returns the rate limiter shared by REST calls.
func NewRestLimiter() *infra.RateLimiter {
	return infra.NewRateLimiter(10, 8)
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// do executes one request. Signed requests get timestamp, recvWindow and the
// HMAC signature appended.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("binance: circuit breaker open for %s", path)
	}
	c.limiter.Wait()

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.FormatInt(defaultRecvWindow.Milliseconds(), 10))
	}
	payload := params.Encode()
	if signed {
		// The signature covers everything before it and is appended last.
		payload += "&signature=" + c.sign(payload)
	}

	reqURL := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		reqURL += "?" + payload
	} else {
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.breaker.RecordFailure()
		var apiErr APIError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, raw)
	}

	c.breaker.RecordSuccess()
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Klines fetches up to limit closed candles for symbol/interval, oldest
// first. Used to seed the rolling cache at startup.
func (c *Client) Klines(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(tf))
	params.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/fapi/v1/klines", params, false, &rows); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: short row (%d fields)", i, len(row))
		}
		var candle domain.Candle
		if err := json.Unmarshal(row[0], &candle.OpenTime); err != nil {
			return nil, fmt.Errorf("kline %d: open time: %w", i, err)
		}
		fields := []*float64{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume}
		for j, dst := range fields {
			var s string
			if err := json.Unmarshal(row[j+1], &s); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j+1, err)
			}
			*dst = v
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// AggTrade is one aggregated trade as returned by the REST endpoint. Field
// names follow the wire format so recorded files replay byte-identical.
type AggTrade struct {
	ID       int64  `json:"a"`
	Price    string `json:"p"`
	Quantity string `json:"q"`
	Time     int64  `json:"T"`
}

// AggTrades fetches up to limit aggregated trades from startTime onward.
// Used by the tick recorder to build backtest datasets.
func (c *Client) AggTrades(ctx context.Context, symbol string, startTime int64, limit int) ([]AggTrade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("startTime", strconv.FormatInt(startTime, 10))
	params.Set("limit", strconv.Itoa(limit))

	var trades []AggTrade
	if err := c.do(ctx, http.MethodGet, "/fapi/v1/aggTrades", params, false, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

type accountResponse struct {
	TotalMarginBalance    string `json:"totalMarginBalance"`
	AvailableBalance      string `json:"availableBalance"`
	TotalUnrealizedProfit string `json:"totalUnrealizedProfit"`
}

// Balance is the account-level view used to build the cycle context.
type Balance struct {
	Equity           float64
	AvailableBalance float64
	UnrealizedPnl    float64
}

// AccountBalance fetches the current futures account balance (signed).
func (c *Client) AccountBalance(ctx context.Context) (Balance, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, "/fapi/v2/account", url.Values{}, true, &resp); err != nil {
		return Balance{}, err
	}

	var b Balance
	var err error
	if b.Equity, err = strconv.ParseFloat(resp.TotalMarginBalance, 64); err != nil {
		return Balance{}, fmt.Errorf("parse totalMarginBalance: %w", err)
	}
	if b.AvailableBalance, err = strconv.ParseFloat(resp.AvailableBalance, 64); err != nil {
		return Balance{}, fmt.Errorf("parse availableBalance: %w", err)
	}
	if b.UnrealizedPnl, err = strconv.ParseFloat(resp.TotalUnrealizedProfit, 64); err != nil {
		return Balance{}, fmt.Errorf("parse totalUnrealizedProfit: %w", err)
	}
	return b, nil
}

type positionResponse struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnrealizedProfit string `json:"unRealizedProfit"`
	LiquidationPrice string `json:"liquidationPrice"`
}

// Positions fetches the open positions for symbol (signed). Flat rows
// (positionAmt == 0) are filtered out.
func (c *Client) Positions(ctx context.Context, symbol string) ([]domain.Position, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var rows []positionResponse
	if err := c.do(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true, &rows); err != nil {
		return nil, err
	}

	var positions []domain.Position
	for _, row := range rows {
		amt, err := strconv.ParseFloat(row.PositionAmt, 64)
		if err != nil {
			return nil, fmt.Errorf("parse positionAmt: %w", err)
		}
		if amt == 0 {
			continue
		}
		p := domain.Position{Symbol: row.Symbol, PositionAmt: amt}
		p.EntryPrice, _ = strconv.ParseFloat(row.EntryPrice, 64)
		p.MarkPrice, _ = strconv.ParseFloat(row.MarkPrice, 64)
		p.UnrealizedProfit, _ = strconv.ParseFloat(row.UnrealizedProfit, 64)
		p.LiquidationPrice, _ = strconv.ParseFloat(row.LiquidationPrice, 64)
		positions = append(positions, p)
	}
	return positions, nil
}

type orderResponse struct {
	OrderID    int64  `json:"orderId"`
	AvgPrice   string `json:"avgPrice"`
	OrigQty    string `json:"origQty"`
	UpdateTime int64  `json:"updateTime"`
}

// SubmitOrder places one order (signed). Implements broker.OrderTransport.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	if req.StopPrice > 0 {
		params.Set("stopPrice", strconv.FormatFloat(req.StopPrice, 'f', -1, 64))
	}
	if req.CallbackRate > 0 {
		params.Set("callbackRate", strconv.FormatFloat(req.CallbackRate, 'f', -1, 64))
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	// MARKET fills synchronously; ask for the full result so avgPrice is set.
	params.Set("newOrderRespType", "RESULT")

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true, &resp); err != nil {
		return broker.OrderAck{}, err
	}

	ack := broker.OrderAck{
		OrderID:    strconv.FormatInt(resp.OrderID, 10),
		UpdateTime: resp.UpdateTime,
	}
	ack.AvgPrice, _ = strconv.ParseFloat(resp.AvgPrice, 64)
	ack.OrigQty, _ = strconv.ParseFloat(resp.OrigQty, 64)
	return ack, nil
}

// CancelOrder cancels one order by ID (signed). Implements
// broker.OrderTransport.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	return c.do(ctx, http.MethodDelete, "/fapi/v1/order", params, true, nil)
}
