package request

import "github.com/shopspring/decimal"

type EnqueueRequest struct {
	BeneficiaryId uint64          `json:"beneficiary_id" binding:"required"`
	RewardType    string          `json:"reward_type" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Note          string          `json:"note"`
}

type ExecuteRequest struct {
	BatchSize int  `json:"batch_size"`
	DryRun    bool `json:"dry_run"`
}

type RankingRequest struct {
	TopN int `json:"top_n" binding:"required"`
}
