package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopledger-backend/internal/debts"
	"github.com/angelmondragon/shopledger-backend/pkg/logger"
)

type DebtBackfillJobParams struct {
	Logger *logger.Logger
	Debts  debtBackfiller
}

type debtBackfiller interface {
	EnsureDebtRecordsForAllShops(ctx context.Context) (*debts.BackfillResult, error)
}

func NewDebtBackfillJob(params DebtBackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Debts == nil {
		return nil, fmt.Errorf("debts service required")
	}
	return &debtBackfillJob{logg: params.Logger, debts: params.Debts}, nil
}

type debtBackfillJob struct {
	logg  *logger.Logger
	debts debtBackfiller
}

func (j *debtBackfillJob) Name() string { return "debt-backfill" }

// Run creates missing debt records for completed orders that still carry a
// balance. Per-shop failures are reported together after every shop ran.
func (j *debtBackfillJob) Run(ctx context.Context) error {
	result, err := j.debts.EnsureDebtRecordsForAllShops(ctx)
	if result != nil {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"scanned": result.Scanned,
			"created": result.Created,
			"skipped": result.Skipped,
		}), "debt backfill complete")
	}
	if err != nil {
		return fmt.Errorf("debt backfill: %w", err)
	}
	return nil
}
