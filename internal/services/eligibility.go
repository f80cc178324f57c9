package services

import (
	"context"

	"github.com/creata-games/airdrop-engine/internal/repository"
	"github.com/creata-games/airdrop-engine/internal/utils"
)

const (
	ReasonNotFound           = "not_found"
	ReasonUnverified         = "unverified"
	ReasonWalletNotInstalled = "wallet_not_installed"
	ReasonBadAddress         = "bad_address"
)

type Eligibility struct {
	Eligible bool
	Reason   string
	Wallet   string
}

// BeneficiarySource is the read side of the beneficiary records.
type BeneficiarySource interface {
	GetBeneficiary(ctx context.Context, id uint64) (*repository.Beneficiary, error)
}

// CheckEligible fails closed: an unknown beneficiary, a wallet that is
// not verified or not installed, and a malformed address all reject.
// It never mutates anything and is safe to call repeatedly.
func CheckEligible(ctx context.Context, source BeneficiarySource, beneficiaryId uint64) (Eligibility, error) {
	b, err := source.GetBeneficiary(ctx, beneficiaryId)
	if err != nil {
		return Eligibility{}, err
	}

	switch {
	case b == nil:
		return Eligibility{Reason: ReasonNotFound}, nil
	case !b.WalletVerified:
		return Eligibility{Reason: ReasonUnverified}, nil
	case !b.WalletInstalled:
		return Eligibility{Reason: ReasonWalletNotInstalled}, nil
	case !utils.ValidAddress(b.WalletAddress):
		return Eligibility{Reason: ReasonBadAddress}, nil
	default:
		return Eligibility{Eligible: true, Wallet: b.WalletAddress}, nil
	}
}
