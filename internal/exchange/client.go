package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/quveo/marketscan/internal/domain"
)

const restTimeout = 5 * time.Second

// restClient is the shared HTTP layer for one-shot price fetches. Every
// adapter wraps one with its own base URL and response decoding.
type restClient struct {
	baseURL string
	http    *http.Client
}

func newRESTClient(baseURL string) *restClient {
	return &restClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: restTimeout},
	}
}

// getJSON issues a GET against the client's base URL and decodes the JSON
// body into out.
func (c *restClient) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// postJSON issues a POST with an empty body; some exchanges (KuCoin's
// bullet-public token handshake) hand out connection material this way.
func (c *restClient) postJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, out)
}

func (c *restClient) doJSON(ctx context.Context, method, path string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	if statusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, string(body))
	}
	return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
}

// parseFloat converts the string prices most venues return. An empty string
// parses to zero so optional depth fields stay at their zero value.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return v, nil
}

// newQuote assembles a normalized quote with the midpoint and observation
// time filled in.
func newQuote(e domain.Exchange, symbol string, bid, ask, bidQty, askQty float64) domain.Quote {
	return domain.Quote{
		Exchange:  e,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Mid:       domain.MidPrice(bid, ask),
		BidQty:    bidQty,
		AskQty:    askQty,
		Timestamp: time.Now().UTC(),
	}
}
