// Package guard runs the pre-trade health checks: spot/TWAP divergence and
// quoted price impact.
package guard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"CorridorBot/internal/model"
	"CorridorBot/internal/pricing"
)

var (
	bpsDenom = decimal.NewFromInt(10000)
	two      = decimal.NewFromInt(2)

	// maxImpactBps is the fail-closed impact assigned when either probe
	// quote returns a non-positive output.
	maxImpactBps = decimal.NewFromInt(100000)

	// minHalfSize keeps the half-size probe above quote-API dust limits.
	minHalfSize = decimal.RequireFromString("0.000001")
)

// Guard validates a proposed trade before execution is allowed.
type Guard struct {
	Client           *pricing.Client
	GCMint           string
	USDCMint         string
	MaxImpactBps     int64
	MaxDivergenceBps int64
}

// New builds a Guard over the quote client.
func New(client *pricing.Client, gcMint, usdcMint string, maxImpactBps, maxDivergenceBps int64) *Guard {
	return &Guard{
		Client:           client,
		GCMint:           gcMint,
		USDCMint:         usdcMint,
		MaxImpactBps:     maxImpactBps,
		MaxDivergenceBps: maxDivergenceBps,
	}
}

// Check runs both health checks. ok=false with a reason is a soft skip; an
// error means a quote could not be obtained at all.
func (g *Guard) Check(ctx context.Context, dec model.Decision, spot, robust decimal.Decimal) (bool, string, error) {
	// Spot vs TWAP divergence. Skipped when the robust rate is zero;
	// the ratio is undefined there.
	if robust.IsPositive() {
		dev := spot.Sub(robust).Abs().Div(robust).Mul(bpsDenom)
		if dev.GreaterThan(decimal.NewFromInt(g.MaxDivergenceBps)) {
			return false, fmt.Sprintf("spot_vs_twap_divergence_bps=%s", dev.Round(0)), nil
		}
	}

	// Price impact at the intended size.
	inputMint, outputMint, size := g.tradeLeg(dec)
	if size.IsPositive() {
		impact, err := g.priceImpactBps(ctx, inputMint, outputMint, size)
		if err != nil {
			return false, "", err
		}
		if impact.GreaterThan(decimal.NewFromInt(g.MaxImpactBps)) {
			return false, fmt.Sprintf("price_impact_bps=%s", impact.Round(0)), nil
		}
	}
	return true, "", nil
}

func (g *Guard) tradeLeg(dec model.Decision) (inputMint, outputMint string, size decimal.Decimal) {
	switch dec.Action {
	case model.ActionSell:
		return g.GCMint, g.USDCMint, dec.SizeGC
	case model.ActionBuy:
		return dec.StableMint, g.GCMint, dec.StableSize()
	default:
		return "", "", decimal.Zero
	}
}

// priceImpactBps estimates impact by comparing per-unit output at half the
// proposed size against full size. A degenerate (non-positive) output at
// either size is treated as maximal impact: when the venue returns garbage
// the trade is rejected, never waved through.
func (g *Guard) priceImpactBps(ctx context.Context, inputMint, outputMint string, size decimal.Decimal) (decimal.Decimal, error) {
	half := decimal.Max(size.Div(two), minHalfSize)

	halfQuote, err := g.Client.ComputeSwap(ctx, inputMint, outputMint, half)
	if err != nil {
		return decimal.Zero, fmt.Errorf("impact half quote: %w", err)
	}
	fullQuote, err := g.Client.ComputeSwap(ctx, inputMint, outputMint, size)
	if err != nil {
		return decimal.Zero, fmt.Errorf("impact full quote: %w", err)
	}
	outHalf, err := halfQuote.OutAmount()
	if err != nil {
		return maxImpactBps, nil
	}
	outFull, err := fullQuote.OutAmount()
	if err != nil {
		return maxImpactBps, nil
	}
	if !outHalf.IsPositive() || !outFull.IsPositive() {
		return maxImpactBps, nil
	}

	perUnitHalf := outHalf.Div(half)
	perUnitFull := outFull.Div(size)
	impact := decimal.NewFromInt(1).Sub(perUnitFull.Div(perUnitHalf)).Mul(bpsDenom)
	if impact.IsNegative() {
		return decimal.Zero, nil
	}
	return impact, nil
}
