package verification

import (
	"context"
	"errors"
	"fmt"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/idhash"
	"swing-backtest-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when the run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrMissingReplay is returned when no replay function is configured.
	ErrMissingReplay = errors.New("replay function is required")
)

// ReplayFunc re-executes a stored run and returns its ledger and final equity.
type ReplayFunc func(ctx context.Context, run domain.RunSnapshot) (trades []domain.TradeRecord, finalEquity float64, err error)

// ReplayVerifier replays stored runs and compares ledgers.
type ReplayVerifier struct {
	runStore   storage.RunStore
	tradeStore storage.TradeRecordStore
	replay     ReplayFunc
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore   storage.RunStore
	TradeStore storage.TradeRecordStore
	Replay     ReplayFunc
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) (*ReplayVerifier, error) {
	if opts.Replay == nil {
		return nil, ErrMissingReplay
	}
	if opts.RunStore == nil || opts.TradeStore == nil {
		return nil, fmt.Errorf("%w: run and trade stores are required", storage.ErrInvalidInput)
	}
	return &ReplayVerifier{
		runStore:   opts.RunStore,
		tradeStore: opts.TradeStore,
		replay:     opts.Replay,
	}, nil
}

// VerifyRun replays runID with its stored parameters and compares the result
// with the stored ledger, trade by trade.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	// 1. Load stored run and ledger
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	ptrs, err := v.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	stored := make([]domain.TradeRecord, len(ptrs))
	for i, t := range ptrs {
		stored[i] = *t
	}

	// 2. Replay
	replayed, finalEquity, err := v.replay(ctx, *run)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}

	// 3. Compare
	report := CompareLedgers(runID, stored, replayed)

	hash, err := idhash.ComputeConfigHash(run.Params)
	if err != nil {
		return nil, err
	}
	if hash != run.ConfigHash {
		report.RunDivergences = append(report.RunDivergences, FieldDivergence{
			Field: "ConfigHash", Expected: run.ConfigHash, Actual: hash,
		})
	}
	if !floatEquals(run.FinalEquity, finalEquity) {
		report.RunDivergences = append(report.RunDivergences, FieldDivergence{
			Field: "FinalEquity", Expected: run.FinalEquity, Actual: finalEquity,
		})
	}

	return report, nil
}
