// Package pricing talks to the trade API: swap quotes, priority fees, token
// metadata, and the exchange rates derived from quotes.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPriorityFee is the micro-lamports-per-CU hint used when the fee
// endpoint is unreachable.
const DefaultPriorityFee int64 = 5000

// Quote is an opaque swap-quote response. The schema is not guaranteed
// stable, so the raw body is kept for re-submission to the transaction-build
// endpoint and fields are extracted defensively (see extract.go).
type Quote struct {
	Raw json.RawMessage
}

// OutAmount returns the quoted output in base units.
func (q Quote) OutAmount() (decimal.Decimal, error) {
	return ExtractOutAmount(q.Raw)
}

// Client issues requests against the swap-compute and v3 API hosts.
type Client struct {
	SwapHost    string
	APIHost     string
	SlippageBps int64
	Registry    *Registry
	HTTP        *http.Client
}

// NewClient builds a Client with the per-call timeout applied.
func NewClient(swapHost, apiHost string, slippageBps int64, reg *Registry) *Client {
	return &Client{
		SwapHost:    swapHost,
		APIHost:     apiHost,
		SlippageBps: slippageBps,
		Registry:    reg,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
	}
}

// ComputeSwap quotes swapping `amount` (UI units) of inputMint into
// outputMint. No retries; any transport or status failure propagates.
func (c *Client) ComputeSwap(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal) (Quote, error) {
	base := c.Registry.ToBase(amount, inputMint)

	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", base.String())
	q.Set("slippageBps", fmt.Sprintf("%d", c.SlippageBps))
	q.Set("txVersion", "V0")
	u := c.SwapHost + "/compute/swap-base-in?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("compute swap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("compute swap: status %d, body: %s", resp.StatusCode, string(body))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, fmt.Errorf("read quote body: %w", err)
	}
	return Quote{Raw: raw}, nil
}

// PriorityFee queries the "high" prioritization fee tier. It falls back to
// DefaultPriorityFee on any failure; a missing hint is not worth failing a
// cycle over.
func (c *Client) PriorityFee(ctx context.Context) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIHost+"/fee/prioritization", nil)
	if err != nil {
		return DefaultPriorityFee
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return DefaultPriorityFee
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return DefaultPriorityFee
	}
	var out struct {
		Data struct {
			Default struct {
				H int64 `json:"h"`
			} `json:"default"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Data.Default.H <= 0 {
		return DefaultPriorityFee
	}
	return out.Data.Default.H
}
