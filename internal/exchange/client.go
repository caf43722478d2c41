package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Alias1177/ZeroEmotion/models"
)

const (
	mainnetBaseURL = "https://fapi.binance.com"
	testnetBaseURL = "https://testnet.binancefuture.com"

	recvWindow = "5000"
)

// Client talks to the Binance USD-M futures REST API. Requests are rate
// limited and retried with exponential backoff on transient failures.
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger

	// tickSize is the symbol's PRICE_FILTER tick, set once at startup
	// before any order is placed.
	tickSize float64
}

// ClientOptions configures a futures client.
type ClientOptions struct {
	APIKey    string
	SecretKey string
	Testnet   bool
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// NewClient creates a futures REST client with rate limiting.
func NewClient(opts ClientOptions) *Client {
	baseURL := mainnetBaseURL
	if opts.Testnet {
		baseURL = testnetBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:    opts.APIKey,
		secretKey: opts.SecretKey,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5), // 5 requests per second
		log:     opts.Logger.With().Str("component", "binance_client").Logger(),
	}
}

// APIError is a non-2xx response from Binance with a decoded error payload.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// FetchCandles returns up to limit closed candles for the symbol, oldest
// first. The in-progress candle is dropped so indicators only ever see
// finished bars.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))
	params.Set("interval", interval)
	// One extra bar to compensate for dropping the unfinished one.
	params.Set("limit", strconv.Itoa(limit+1))

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/klines", params, false)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 7 {
			continue
		}
		candle, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("parse klines: %w", err)
		}
		candles = append(candles, candle)
	}

	// The last kline is still open; everything before it is final.
	if len(candles) > 0 {
		candles = candles[:len(candles)-1]
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func parseKline(k []interface{}) (models.Candle, error) {
	openTime, ok := k[0].(float64)
	if !ok {
		return models.Candle{}, fmt.Errorf("unexpected open time %v", k[0])
	}
	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := k[i].(string)
		if !ok {
			return models.Candle{}, fmt.Errorf("unexpected kline field %v", k[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, err
		}
		fields[i-1] = v
	}
	return models.Candle{
		OpenTime: time.UnixMilli(int64(openTime)).UTC(),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}

// FetchBalance returns the available USDT balance of the futures wallet.
func (c *Client) FetchBalance(ctx context.Context) (float64, error) {
	body, err := c.do(ctx, http.MethodGet, "/fapi/v2/balance", url.Values{}, true)
	if err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}

	var entries []struct {
		Asset            string `json:"asset"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, fmt.Errorf("parse balance: %w", err)
	}
	for _, e := range entries {
		if e.Asset == "USDT" {
			return strconv.ParseFloat(e.AvailableBalance, 64)
		}
	}
	return 0, fmt.Errorf("fetch balance: no USDT entry in response")
}

// FetchPosition returns the signed position amount (negative = short) and
// entry price for the symbol. A zero quantity means flat.
func (c *Client) FetchPosition(ctx context.Context, symbol string) (float64, float64, error) {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))

	body, err := c.do(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch position: %w", err)
	}

	var entries []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, 0, fmt.Errorf("parse position: %w", err)
	}

	want := NormalizeSymbol(symbol)
	for _, e := range entries {
		if NormalizeSymbol(e.Symbol) != want {
			continue
		}
		qty, err := strconv.ParseFloat(e.PositionAmt, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parse position amount: %w", err)
		}
		entry, err := strconv.ParseFloat(e.EntryPrice, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parse entry price: %w", err)
		}
		return qty, entry, nil
	}
	return 0, 0, nil
}

// PlaceMarketOrder submits a market order and returns the fill details.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty float64) (*models.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))
	params.Set("side", orderSide(side))
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(qty))
	params.Set("newOrderRespType", "RESULT")

	body, err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, fmt.Errorf("market order: %w", err)
	}

	var resp struct {
		OrderID     int64  `json:"orderId"`
		AvgPrice    string `json:"avgPrice"`
		ExecutedQty string `json:"executedQty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}

	avg, _ := strconv.ParseFloat(resp.AvgPrice, 64)
	executed, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	return &models.OrderResult{
		ID:       strconv.FormatInt(resp.OrderID, 10),
		AvgPrice: avg,
		Quantity: executed,
	}, nil
}

// PlaceProtectiveStop arms a STOP_MARKET order that closes the whole
// position when the stop price trades.
func (c *Client) PlaceProtectiveStop(ctx context.Context, symbol string, posSide models.Side, stopPrice float64) error {
	return c.placeClosingTrigger(ctx, symbol, posSide, "STOP_MARKET", stopPrice)
}

// PlaceTakeProfit arms a TAKE_PROFIT_MARKET order that closes the whole
// position at the target price.
func (c *Client) PlaceTakeProfit(ctx context.Context, symbol string, posSide models.Side, targetPrice float64) error {
	return c.placeClosingTrigger(ctx, symbol, posSide, "TAKE_PROFIT_MARKET", targetPrice)
}

func (c *Client) placeClosingTrigger(ctx context.Context, symbol string, posSide models.Side, orderType string, triggerPrice float64) error {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))
	params.Set("side", orderSide(posSide.Opposite()))
	params.Set("type", orderType)
	params.Set("stopPrice", c.formatPrice(triggerPrice))
	params.Set("closePosition", "true")

	if _, err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true); err != nil {
		return fmt.Errorf("%s order: %w", orderType, err)
	}
	return nil
}

// CancelAllOrders removes every open order for the symbol, including armed
// stop and take-profit triggers.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))

	if _, err := c.do(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, true); err != nil {
		return fmt.Errorf("cancel open orders: %w", err)
	}
	return nil
}

// SetLeverage sets the leverage for the symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))
	params.Set("leverage", strconv.Itoa(leverage))

	if _, err := c.do(ctx, http.MethodPost, "/fapi/v1/leverage", params, true); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

// SetPriceTick fixes the tick used to align trigger prices before sending.
func (c *Client) SetPriceTick(tick float64) {
	c.tickSize = tick
}

// FetchSymbolFilters returns the LOT_SIZE quantity step and the PRICE_FILTER
// tick for the symbol from exchange metadata.
func (c *Client) FetchSymbolFilters(ctx context.Context, symbol string) (step, tick float64, err error) {
	params := url.Values{}
	params.Set("symbol", NormalizeSymbol(symbol))

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", params, false)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch exchange info: %w", err)
	}

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				TickSize   string `json:"tickSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, 0, fmt.Errorf("parse exchange info: %w", err)
	}

	want := NormalizeSymbol(symbol)
	for _, s := range info.Symbols {
		if NormalizeSymbol(s.Symbol) != want {
			continue
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				step, err = strconv.ParseFloat(f.StepSize, 64)
			case "PRICE_FILTER":
				tick, err = strconv.ParseFloat(f.TickSize, 64)
			}
			if err != nil {
				return 0, 0, fmt.Errorf("parse exchange info: %w", err)
			}
		}
	}
	if step == 0 || tick == 0 {
		return 0, 0, fmt.Errorf("no LOT_SIZE/PRICE_FILTER for %s", symbol)
	}
	return step, tick, nil
}

// do executes one API call: rate limit, sign if needed, retry transient
// failures. 4xx responses are permanent, 5xx and network errors retry.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	operation := func() error {
		query := cloneValues(params)
		if signed {
			query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
			query.Set("recvWindow", recvWindow)
			query.Set("signature", c.sign(query.Encode()))
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if signed {
			req.Header.Set("X-MBX-APIKEY", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			_ = json.Unmarshal(data, apiErr)
			// Client errors will not heal on retry; rate limit bans do.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}

		body = data
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("request failed after retries")
		return nil, err
	}
	return body, nil
}

// sign produces the HMAC-SHA256 signature Binance expects over the query
// string, signed requests only.
func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func orderSide(s models.Side) string {
	if s == models.SideLong {
		return "BUY"
	}
	return "SELL"
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// formatPrice aligns a trigger price to the symbol tick; off-tick prices are
// rejected by the exchange with -4014.
func (c *Client) formatPrice(p float64) string {
	if c.tickSize > 0 {
		p = math.Round(p/c.tickSize) * c.tickSize
		return strconv.FormatFloat(p, 'f', tickDecimals(c.tickSize), 64)
	}
	return strconv.FormatFloat(p, 'f', 4, 64)
}

func tickDecimals(tick float64) int {
	d := 0
	for tick < 0.9999999 && d < 8 {
		tick *= 10
		d++
	}
	return d
}
