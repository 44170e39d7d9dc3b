package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Registry maps mints to their token decimals. It is filled once at startup
// from the published token list; unknown mints fall back to 9 for native SOL
// and 6 for everything else, matching the assets this bot trades.
type Registry struct {
	byMint  map[string]int32
	solMint string
}

type tokenListEntry struct {
	Mint     string `json:"mint"`
	Decimals int32  `json:"decimals"`
}

// LoadRegistry fetches decimals for the given mints. Fetch failures are
// logged and degrade to the fallback values; they do not fail startup.
func LoadRegistry(ctx context.Context, tokensURL, solMint string, mints []string, log zerolog.Logger) *Registry {
	reg := &Registry{byMint: make(map[string]int32), solMint: solMint}

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokensURL, nil)
	if err != nil {
		return reg
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("token list fetch failed, using fallback decimals")
		return reg
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("token list fetch failed, using fallback decimals")
		return reg
	}

	var list struct {
		Official   []tokenListEntry `json:"official"`
		UnOfficial []tokenListEntry `json:"unOfficial"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		log.Warn().Err(err).Msg("token list decode failed, using fallback decimals")
		return reg
	}

	wanted := make(map[string]bool, len(mints))
	for _, m := range mints {
		wanted[m] = true
	}
	for _, t := range append(list.Official, list.UnOfficial...) {
		if wanted[t.Mint] {
			reg.byMint[t.Mint] = t.Decimals
		}
	}
	log.Debug().Int("resolved", len(reg.byMint)).Int("wanted", len(mints)).Msg("token decimals loaded")
	return reg
}

// Decimals returns the decimals for a mint, falling back to 9 (SOL) or 6.
func (r *Registry) Decimals(mint string) int32 {
	if d, ok := r.byMint[mint]; ok {
		return d
	}
	if mint == r.solMint {
		return 9
	}
	return 6
}

// ToBase converts a UI amount into base units for a mint, truncating any
// sub-base fraction.
func (r *Registry) ToBase(amount decimal.Decimal, mint string) decimal.Decimal {
	return amount.Shift(r.Decimals(mint)).Truncate(0)
}

// FromBase converts base units into a UI amount for a mint.
func (r *Registry) FromBase(base decimal.Decimal, mint string) decimal.Decimal {
	return base.Shift(-r.Decimals(mint))
}
