package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// GetBeneficiary returns nil without error when the id is unknown, the
// eligibility checker turns that into a fail-closed rejection.
func (m Airdrops) GetBeneficiary(ctx context.Context, id uint64) (*Beneficiary, error) {
	const query = "SELECT * FROM `beneficiaries` WHERE `id`=? LIMIT 1;"

	var b Beneficiary
	if err := m.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("GetBeneficiary: %w", err)
	}
	return &b, nil
}
