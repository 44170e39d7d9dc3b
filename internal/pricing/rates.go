package pricing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Aggregator derives the exchange rates the decision engine consumes from
// unit-amount swap quotes.
type Aggregator struct {
	Client  *Client
	GCMint  string
	USDC    string
	SOLMint string
	Samples int
	Pause   time.Duration

	log zerolog.Logger
}

// NewAggregator wires an Aggregator over a quote client.
func NewAggregator(client *Client, gcMint, usdcMint, solMint string, samples int, pause time.Duration, log zerolog.Logger) *Aggregator {
	if samples < 1 {
		samples = 1
	}
	return &Aggregator{
		Client:  client,
		GCMint:  gcMint,
		USDC:    usdcMint,
		SOLMint: solMint,
		Samples: samples,
		Pause:   pause,
		log:     log,
	}
}

// SpotRate quotes one GC against SOL and returns SOL per GC.
func (a *Aggregator) SpotRate(ctx context.Context) (decimal.Decimal, error) {
	return a.unitRate(ctx, a.GCMint, a.SOLMint)
}

// ReferenceStableRate quotes one SOL against USDC and returns USDC per SOL,
// used to translate the USD band bounds into SOL terms.
func (a *Aggregator) ReferenceStableRate(ctx context.Context) (decimal.Decimal, error) {
	return a.unitRate(ctx, a.SOLMint, a.USDC)
}

// RobustRate collects spot samples with a fixed pause between each and
// returns the median. A single quote can be skewed by transient liquidity;
// the median of several closely spaced samples approximates a time-weighted
// price without an on-chain oracle. Sampling deliberately blocks the whole
// cycle.
func (a *Aggregator) RobustRate(ctx context.Context) (decimal.Decimal, error) {
	samples := make([]decimal.Decimal, 0, a.Samples)
	for i := 0; i < a.Samples; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			case <-time.After(a.Pause):
			}
		}
		s, err := a.SpotRate(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("robust sample %d/%d: %w", i+1, a.Samples, err)
		}
		samples = append(samples, s)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].LessThan(samples[j]) })
	mid := len(samples) / 2
	if len(samples)%2 == 0 {
		return samples[mid-1].Add(samples[mid]).Div(decimal.NewFromInt(2)), nil
	}
	return samples[mid], nil
}

func (a *Aggregator) unitRate(ctx context.Context, inputMint, outputMint string) (decimal.Decimal, error) {
	quote, err := a.Client.ComputeSwap(ctx, inputMint, outputMint, one)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := quote.OutAmount()
	if err != nil {
		return decimal.Zero, err
	}
	rate := a.Client.Registry.FromBase(out, outputMint)
	a.log.Debug().Str("in", inputMint).Str("out", outputMint).Stringer("rate", rate).Msg("unit quote")
	return rate, nil
}
