package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// RankedBeneficiary is one row of the leaderboard, best score first.
type RankedBeneficiary struct {
	BeneficiaryId uint64 `json:"beneficiary_id"`
	Score         int64  `json:"score"`
}

// RankingSelector produces the leaderboard. Ordering (score descending,
// stable ties) is the selector's contract, the engine trusts it.
type RankingSelector interface {
	TopN(ctx context.Context, n int) ([]RankedBeneficiary, error)
}

type RankingReport struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

// GenerateRankingRewards queues one ranking reward per leaderboard
// position, amounts taken from the policy bands. A beneficiary who
// already has an open entry or is currently ineligible is skipped, not
// failed: ranking jobs re-run and must stay idempotent.
func (e *Engine) GenerateRankingRewards(ctx context.Context, topN int) (*RankingReport, error) {
	if e.Selector == nil {
		return nil, ErrNoSelector
	}
	if topN < 1 {
		return nil, fmt.Errorf("GenerateRankingRewards: topN must be positive, got %d", topN)
	}

	ranked, err := e.Selector.TopN(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("GenerateRankingRewards: %w", err)
	}

	report := new(RankingReport)
	for i, rb := range ranked {
		rank := i + 1
		amount := e.Policy.AmountForRank(rank)

		_, err := e.Enqueue(ctx, rb.BeneficiaryId, "ranking", amount, fmt.Sprintf("rank %d reward", rank))
		switch {
		case err == nil:
			report.Queued += 1
		case errors.Is(err, ErrDuplicatePending):
			report.Skipped += 1
		default:
			var notEligible *NotEligibleError
			if errors.As(err, &notEligible) {
				logrus.Infof("Ranking: beneficiary %d skipped: %s", rb.BeneficiaryId, notEligible.Reason)
				report.Skipped += 1
				continue
			}
			return nil, fmt.Errorf("GenerateRankingRewards: rank %d: %w", rank, err)
		}
	}
	return report, nil
}
