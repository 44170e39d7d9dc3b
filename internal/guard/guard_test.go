package guard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CorridorBot/internal/model"
	"CorridorBot/internal/pricing"
)

const (
	gcMint   = "GC_MINT"
	usdcMint = "USDC_MINT"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// impactServer answers compute quotes keyed by the base-unit amount param.
// The token list endpoint 404s so the registry degrades to fallback decimals
// (6 for both mints here).
func impactServer(t *testing.T, outByAmount map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compute/swap-base-in" {
			http.NotFound(w, r)
			return
		}
		out, ok := outByAmount[r.URL.Query().Get("amount")]
		if !ok {
			http.Error(w, "no quote for amount", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"data":{"outAmount":"%s"}}`, out)
	}))
}

func guardOver(srv *httptest.Server, maxImpactBps, maxDivergenceBps int64) *Guard {
	reg := pricing.LoadRegistry(context.Background(), srv.URL+"/tokens", "SOL_MINT", nil, zerolog.Nop())
	client := pricing.NewClient(srv.URL, srv.URL, 500, reg)
	return New(client, gcMint, usdcMint, maxImpactBps, maxDivergenceBps)
}

func sellDecision(size string) model.Decision {
	return model.Decision{Action: model.ActionSell, SizeGC: dec(size)}
}

func TestCheck_LinearQuotesPass(t *testing.T) {
	// Per-unit output identical at half and full size: zero impact.
	srv := impactServer(t, map[string]string{
		"5000000":  "5000000",
		"10000000": "10000000",
	})
	defer srv.Close()

	g := guardOver(srv, 200, 150)
	ok, reason, err := g.Check(context.Background(), sellDecision("10"), dec("0.15"), dec("0.15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected pass, got reason %q", reason)
	}
}

func TestCheck_ImpactOverThresholdRejects(t *testing.T) {
	// Full size gets 5% worse per-unit output than half size: 500 bps.
	srv := impactServer(t, map[string]string{
		"5000000":  "5000000",
		"10000000": "9500000",
	})
	defer srv.Close()

	g := guardOver(srv, 200, 150)
	ok, reason, err := g.Check(context.Background(), sellDecision("10"), dec("0.15"), dec("0.15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected rejection")
	}
	if !strings.HasPrefix(reason, "price_impact_bps=") {
		t.Errorf("unexpected reason %q", reason)
	}
	if reason != "price_impact_bps=500" {
		t.Errorf("reason = %q, want price_impact_bps=500", reason)
	}
}

func TestCheck_DegenerateQuoteFailsClosed(t *testing.T) {
	// Zero output at full size must read as maximal impact, not zero.
	srv := impactServer(t, map[string]string{
		"5000000":  "5000000",
		"10000000": "0",
	})
	defer srv.Close()

	g := guardOver(srv, 200, 150)
	ok, reason, err := g.Check(context.Background(), sellDecision("10"), dec("0.15"), dec("0.15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected rejection on degenerate quote")
	}
	if !strings.HasPrefix(reason, "price_impact_bps=") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestCheck_BetterFullSizeClampsToZero(t *testing.T) {
	// Full size quoting better than half size is clamped, never negative.
	srv := impactServer(t, map[string]string{
		"5000000":  "5000000",
		"10000000": "11000000",
	})
	defer srv.Close()

	g := guardOver(srv, 0, 150)
	ok, reason, err := g.Check(context.Background(), sellDecision("10"), dec("0.15"), dec("0.15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected pass at zero impact, got %q", reason)
	}
}

func TestCheck_DivergenceRejectsBeforeQuoting(t *testing.T) {
	// No quote routes registered: a quote attempt would error, proving the
	// divergence gate fires first.
	srv := impactServer(t, map[string]string{})
	defer srv.Close()

	g := guardOver(srv, 200, 150)
	// spot 0.18 vs robust 0.15 is 2000 bps apart.
	ok, reason, err := g.Check(context.Background(), sellDecision("10"), dec("0.18"), dec("0.15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected divergence rejection")
	}
	if !strings.HasPrefix(reason, "spot_vs_twap_divergence_bps=") {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestCheck_ZeroRobustSkipsDivergence(t *testing.T) {
	srv := impactServer(t, map[string]string{
		"5000000":  "5000000",
		"10000000": "10000000",
	})
	defer srv.Close()

	g := guardOver(srv, 200, 150)
	ok, reason, err := g.Check(context.Background(), sellDecision("10"), dec("0.18"), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected pass when robust rate is zero, got %q", reason)
	}
}

func TestCheck_QuoteFailureIsError(t *testing.T) {
	srv := impactServer(t, map[string]string{})
	defer srv.Close()

	g := guardOver(srv, 200, 150)
	_, _, err := g.Check(context.Background(), sellDecision("10"), dec("0.15"), dec("0.15"))
	if err == nil {
		t.Fatal("expected error when no quote is obtainable")
	}
}

func TestCheck_BuyUsesChosenStableLeg(t *testing.T) {
	var seenInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compute/swap-base-in" {
			http.NotFound(w, r)
			return
		}
		seenInput = r.URL.Query().Get("inputMint")
		fmt.Fprint(w, `{"data":{"outAmount":"1000000"}}`)
	}))
	defer srv.Close()

	g := guardOver(srv, 10000, 150)
	d := model.Decision{Action: model.ActionBuy, SizeUSDT: dec("8"), StableMint: "USDT_MINT"}
	ok, reason, err := g.Check(context.Background(), d, dec("0.10"), dec("0.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected pass, got %q", reason)
	}
	if seenInput != "USDT_MINT" {
		t.Errorf("probe quoted input %q, want USDT_MINT", seenInput)
	}
}
