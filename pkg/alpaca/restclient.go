package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rsiscalper/internal/dispatch"
	"rsiscalper/internal/memorystore"
)

// maxBarsPageSize is the largest page the bars endpoint serves.
const maxBarsPageSize = 10000

type RESTClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewRESTClient creates a client for either the trading or the data API;
// the two live on different hosts, so callers build one client per base URL.
func NewRESTClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetBars fetches crypto bars for symbols between start and end, following
// page tokens until the range is exhausted or limit bars per request are
// returned.
func (c *RESTClient) GetBars(ctx context.Context, symbols []string, tf Timeframe,
	start, end time.Time, limit int) (map[string][]memorystore.Bar, error) {
	if !tf.IsValid() {
		return nil, fmt.Errorf("invalid timeframe: %s", tf)
	}
	if limit <= 0 || limit > maxBarsPageSize {
		limit = maxBarsPageSize
	}

	raw := make(map[string][]RawBar)
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("symbols", strings.Join(symbols, ","))
		q.Set("timeframe", string(tf))
		q.Set("start", start.UTC().Format(time.RFC3339))
		q.Set("end", end.UTC().Format(time.RFC3339))
		q.Set("limit", strconv.Itoa(limit))
		q.Set("sort", "asc")
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}

		var page BarsResponse
		if err := c.do(ctx, http.MethodGet, "/v1beta3/crypto/us/bars?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for sym, bars := range page.Bars {
			raw[sym] = append(raw[sym], bars...)
		}

		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		pageToken = *page.NextPageToken
	}

	width := tf.Meta().Width
	out := make(map[string][]memorystore.Bar, len(raw))
	for sym, bars := range raw {
		out[sym] = ParseBars(sym, width, bars)
	}
	return out, nil
}

// SubmitOrder posts spec as a market order, with take-profit and stop-loss
// legs when spec is a bracket.
func (c *RESTClient) SubmitOrder(ctx context.Context, spec dispatch.OrderSpec) (dispatch.OrderAck, error) {
	body := OrderRequest{
		Symbol:        spec.Symbol,
		Qty:           spec.Quantity.String(),
		Side:          string(spec.Side),
		Type:          "market",
		TimeInForce:   string(spec.TimeInForce),
		ClientOrderID: spec.ClientOrderID,
	}
	if spec.Class() == dispatch.ClassBracket {
		body.OrderClass = string(dispatch.ClassBracket)
		body.TakeProfit = &TakeProfitParam{LimitPrice: spec.TakeProfit.LimitPrice.String()}
		body.StopLoss = &StopLossParam{StopPrice: spec.StopLoss.StopPrice.String()}
	}

	var resp OrderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/orders", body, &resp); err != nil {
		return dispatch.OrderAck{}, err
	}
	return dispatch.OrderAck{OrderID: resp.ID, Status: resp.Status}, nil
}

// HasOpenPosition reports whether the account holds a position in symbol.
// The API answers 404 when there is none.
func (c *RESTClient) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	path := "/v2/positions/" + url.PathEscape(PositionSymbol(symbol))

	var pos PositionResponse
	err := c.do(ctx, http.MethodGet, path, nil, &pos)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	qty, err := strconv.ParseFloat(pos.Qty, 64)
	if err != nil {
		return false, fmt.Errorf("parse position qty %q: %w", pos.Qty, err)
	}
	return qty != 0, nil
}

// PositionSymbol converts a pair like "BTC/USD" to the "BTCUSD" form used by
// the positions endpoint.
func PositionSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

func (c *RESTClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	// Construct the request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("APCA-API-KEY-ID", c.apiKey)
		req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	}

	// Execute the HTTP request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	// Check HTTP status code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// BarFetcher serves the most recent finished-or-forming bars of one width.
type BarFetcher struct {
	client    *RESTClient
	timeframe Timeframe
	now       func() time.Time
}

// NewBarFetcher returns a fetcher for bars of the given width.
func NewBarFetcher(client *RESTClient, width time.Duration) (*BarFetcher, error) {
	tf, err := TimeframeFor(width)
	if err != nil {
		return nil, err
	}
	return &BarFetcher{client: client, timeframe: tf, now: time.Now}, nil
}

// FetchRecentBars returns up to window of the latest bars for symbol, oldest
// first. The last bar may still be forming; callers decide what to keep.
func (f *BarFetcher) FetchRecentBars(ctx context.Context, symbol string, window int) ([]memorystore.Bar, error) {
	if window <= 0 {
		window = 1
	}
	width := f.timeframe.Meta().Width
	end := f.now().UTC()
	start := end.Add(-time.Duration(window+1) * width)

	bars, err := f.client.GetBars(ctx, []string{symbol}, f.timeframe, start, end, 0)
	if err != nil {
		return nil, err
	}
	series := bars[symbol]
	if len(series) > window {
		series = series[len(series)-window:]
	}
	return series, nil
}
