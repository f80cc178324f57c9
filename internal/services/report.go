package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/creata-games/airdrop-engine/internal/repository"
	"github.com/creata-games/airdrop-engine/internal/utils"
)

type StatusStat struct {
	Count  uint64          `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type StatsReport struct {
	TotalQueued uint64                `json:"total_queued"` // pending + processing
	ByStatus    map[string]StatusStat `json:"by_status"`
	SuccessRate float64               `json:"success_rate"`
}

// Stats summarizes the ledger for the dashboard. SuccessRate only
// considers settled entries, an empty ledger reports 0.
func (e *Engine) Stats(ctx context.Context) (*StatsReport, error) {
	totals, err := e.Store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}

	report := &StatsReport{ByStatus: make(map[string]StatusStat)}
	var succeeded, settled uint64
	for _, t := range totals {
		report.ByStatus[t.Status.String()] = StatusStat{
			Count:  t.Count,
			Amount: utils.FromWei(new(big.Int).Set(t.Amount.Int)),
		}
		switch t.Status {
		case repository.EntryStatusPending, repository.EntryStatusProcessing:
			report.TotalQueued += t.Count
		case repository.EntryStatusSuccess:
			succeeded = t.Count
			settled += t.Count
		case repository.EntryStatusFailed:
			settled += t.Count
		}
	}
	if settled > 0 {
		report.SuccessRate = float64(succeeded) / float64(settled)
	}
	return report, nil
}

// History pages through the ledger, newest first.
func (e *Engine) History(ctx context.Context, status *repository.EntryStatus, page, pageSize int) ([]*repository.AirdropEntry, uint64, error) {
	entries, total, err := e.Store.History(ctx, status, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}
	return entries, total, nil
}
