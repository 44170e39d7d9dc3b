// Package scheduler sequences the rebalance cycle and runs it on a fixed
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"CorridorBot/internal/engine"
	"CorridorBot/internal/governor"
	"CorridorBot/internal/metrics"
	"CorridorBot/internal/model"
	"CorridorBot/internal/notifier"
)

// BalanceSource reads the treasury holdings.
type BalanceSource interface {
	Snapshot(ctx context.Context) (model.Balances, error)
}

// RateSource derives the exchange rates the cycle consumes.
type RateSource interface {
	SpotRate(ctx context.Context) (decimal.Decimal, error)
	ReferenceStableRate(ctx context.Context) (decimal.Decimal, error)
	RobustRate(ctx context.Context) (decimal.Decimal, error)
}

// TradeGuard validates a proposed trade before execution.
type TradeGuard interface {
	Check(ctx context.Context, dec model.Decision, spot, robust decimal.Decimal) (bool, string, error)
}

// TradeExecutor submits an approved trade and returns submission signatures.
type TradeExecutor interface {
	Execute(ctx context.Context, dec model.Decision) ([]string, error)
}

// FlowGovernor owns the persisted daily ledger and the daily cap.
type FlowGovernor interface {
	Open(bals model.Balances) (governor.DayState, error)
	Check(dec model.Decision, ds governor.DayState) (bool, string)
	Record(dec model.Decision) error
	Today() (governor.DayState, error)
}

// CycleRecorder persists cycle outcomes for offline analysis.
type CycleRecorder interface {
	RecordCycle(res model.CycleResult) error
}

// Scheduler runs rebalance cycles strictly sequentially on a cron schedule.
type Scheduler struct {
	Cron     *cron.Cron
	Balances BalanceSource
	Rates    RateSource
	Guard    TradeGuard
	Exec     TradeExecutor
	Governor FlowGovernor
	Recorder CycleRecorder
	Notifier *notifier.TelegramNotifier
	Params   engine.Params
	Ctx      context.Context

	log zerolog.Logger

	mu   sync.Mutex // serializes cycles and protects last
	last *model.CycleResult
}

// NewScheduler creates a Scheduler.
func NewScheduler(ctx context.Context, bals BalanceSource, rates RateSource, g TradeGuard,
	exec TradeExecutor, gov FlowGovernor, rec CycleRecorder, tn *notifier.TelegramNotifier,
	params engine.Params, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(),
		Balances: bals,
		Rates:    rates,
		Guard:    g,
		Exec:     exec,
		Governor: gov,
		Recorder: rec,
		Notifier: tn,
		Params:   params,
		Ctx:      ctx,
		log:      log,
	}
}

// Register schedules the rebalance cycle.
func (s *Scheduler) Register(cycleCron string) error {
	if _, err := s.Cron.AddFunc(cycleCron, s.cycleTask); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes one cycle immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.cycleTask()
}

// cycleTask runs one full cycle and handles the terminal outcome: the
// process never exits on a cycle failure, it waits for the next tick.
func (s *Scheduler) cycleTask() {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.runCycle(s.Ctx)
	s.last = &res

	switch res.Status {
	case model.StatusError:
		metrics.CycleErrors.Inc()
		s.log.Error().Err(res.Err).Msg("cycle failed")
	case model.StatusSkip:
		s.log.Info().Str("action", string(res.Decision.Action)).Str("reason", res.Reason).Msg("cycle skipped")
	default:
		s.log.Info().Str("status", string(res.Status)).Msg("cycle summary")
	}

	if err := s.Recorder.RecordCycle(res); err != nil {
		s.log.Error().Err(err).Msg("record cycle")
	}
	s.trySend(notifier.FormatCycleReport(res))
}

// runCycle sequences one pass: snapshot -> rates -> decision -> governor ->
// health -> execute -> record. Soft skips are outcomes, not errors; any
// error aborts the cycle.
func (s *Scheduler) runCycle(ctx context.Context) model.CycleResult {
	var res model.CycleResult

	bals, err := s.Balances.Snapshot(ctx)
	if err != nil {
		return fail(res, fmt.Errorf("snapshot balances: %w", err))
	}
	res.Balances = bals
	metrics.TreasuryGC.Set(bals.TreasuryGC.InexactFloat64())
	metrics.VaultUSDC.Set(bals.VaultUSDC.InexactFloat64())
	metrics.VaultUSDT.Set(bals.VaultUSDT.InexactFloat64())

	spot, err := s.Rates.SpotRate(ctx)
	if err != nil {
		return fail(res, fmt.Errorf("spot rate: %w", err))
	}
	refRate, err := s.Rates.ReferenceStableRate(ctx)
	if err != nil {
		return fail(res, fmt.Errorf("reference rate: %w", err))
	}
	robust, err := s.Rates.RobustRate(ctx)
	if err != nil {
		return fail(res, fmt.Errorf("robust rate: %w", err))
	}
	res.Spot, res.SolPerUSDC, res.Robust = spot, refRate, robust
	metrics.PriceSolPerGC.Set(spot.InexactFloat64())
	metrics.SolUSDC.Set(refRate.InexactFloat64())

	dec, err := engine.Decide(spot, refRate, bals, s.Params)
	if err != nil {
		return fail(res, fmt.Errorf("decide: %w", err))
	}
	res.Decision = dec
	metrics.BandLowerSol.Set(dec.Band.Lower.InexactFloat64())
	metrics.BandUpperSol.Set(dec.Band.Upper.InexactFloat64())
	s.log.Info().
		Str("action", string(dec.Action)).
		Stringer("size_gc", dec.SizeGC).
		Stringer("size_usdc", dec.SizeUSDC).
		Stringer("size_usdt", dec.SizeUSDT).
		Stringer("spot", spot).
		Stringer("twap", robust).
		Stringer("band_lower", dec.Band.Lower).
		Stringer("band_upper", dec.Band.Upper).
		Msg("decision")

	// The day row is seeded from the first snapshot of the day no matter
	// what the decision is.
	ds, err := s.Governor.Open(bals)
	if err != nil {
		return fail(res, fmt.Errorf("open day state: %w", err))
	}

	if dec.Action == model.ActionHold {
		res.Status = model.StatusHold
		return res
	}

	if ok, why := s.Governor.Check(dec, ds); !ok {
		metrics.SkipCount.WithLabelValues(model.ReasonGovernor).Inc()
		return skip(res, model.ReasonGovernor, why)
	}

	ok, why, err := s.Guard.Check(ctx, dec, spot, robust)
	if err != nil {
		return fail(res, fmt.Errorf("health check: %w", err))
	}
	if !ok {
		metrics.SkipCount.WithLabelValues(model.ReasonHealth).Inc()
		return skip(res, model.ReasonHealth, why)
	}

	size := dec.SizeGC
	if dec.Action == model.ActionBuy {
		size = dec.StableSize()
	}
	if !size.IsPositive() {
		return skip(res, "", model.ReasonNoSize)
	}

	sigs, err := s.Exec.Execute(ctx, dec)
	if err != nil {
		return fail(res, fmt.Errorf("execute %s: %w", dec.Action, err))
	}
	res.Signatures = sigs

	if dec.Action == model.ActionSell {
		metrics.ExecSellCount.Inc()
	} else {
		metrics.ExecBuyCount.Inc()
	}
	if err := s.Governor.Record(dec); err != nil {
		// The trade is on-chain; a counter write failure must be loud but
		// cannot unwind it.
		s.log.Error().Err(err).Msg("record governor counters after execution")
	}

	res.Status = model.StatusExec
	return res
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/status":
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		if last == nil {
			return "no cycle has run yet"
		}
		return notifier.FormatCycleReport(*last)
	case "/day":
		ds, err := s.Governor.Today()
		if err != nil {
			return fmt.Sprintf("no day state yet: %v", err)
		}
		return notifier.FormatDayState(ds)
	case "/run":
		go s.RunNow()
		return "cycle started"
	default:
		return "commands:\n• /status — last cycle outcome\n• /day — today's flow ledger\n• /run — run a cycle now"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}

func fail(res model.CycleResult, err error) model.CycleResult {
	res.Status = model.StatusError
	res.Err = err
	return res
}

func skip(res model.CycleResult, gate, why string) model.CycleResult {
	res.Status = model.StatusSkip
	if gate != "" {
		res.Reason = gate + ": " + why
	} else {
		res.Reason = why
	}
	return res
}
