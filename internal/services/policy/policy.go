// Package policy holds the reward rules: which reward types are
// accepted, how large one entry may be, and how ranking positions map
// to amounts.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
)

// Band maps the ranks 1..UpTo (inclusive, after better bands) to Amount.
type Band struct {
	UpTo   int             `json:"up_to"`
	Amount decimal.Decimal `json:"amount"`
}

type Reward struct {
	RewardTypes   []string        `json:"reward_types"`
	MaxPerEntry   decimal.Decimal `json:"max_per_entry"`
	Bands         []Band          `json:"bands"`
	DefaultAmount decimal.Decimal `json:"default_amount"`

	allowed map[string]bool
}

// Default is the built-in table: rank 1 pays 100, ranks 2-5 pay 10,
// everyone else in the window pays 5 CTA.
func Default() *Reward {
	r := &Reward{
		RewardTypes: []string{"ranking", "event", "referral", "daily", "manual"},
		MaxPerEntry: decimal.NewFromInt(1000),
		Bands: []Band{
			{UpTo: 1, Amount: decimal.NewFromInt(100)},
			{UpTo: 5, Amount: decimal.NewFromInt(10)},
		},
		DefaultAmount: decimal.NewFromInt(5),
	}
	r.index()
	return r
}

// Load reads a policy file and validates it.
func Load(path string) (*Reward, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}

	var r Reward
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}

	if len(r.RewardTypes) == 0 {
		return nil, fmt.Errorf("policy: no reward types")
	}
	if !r.MaxPerEntry.IsPositive() {
		return nil, fmt.Errorf("policy: max_per_entry must be positive")
	}
	for _, b := range r.Bands {
		if b.UpTo < 1 || !b.Amount.IsPositive() {
			return nil, fmt.Errorf("policy: invalid band up_to=%d amount=%s", b.UpTo, b.Amount)
		}
	}
	if r.DefaultAmount.IsNegative() {
		return nil, fmt.Errorf("policy: default_amount must not be negative")
	}

	sort.Slice(r.Bands, func(i, j int) bool { return r.Bands[i].UpTo < r.Bands[j].UpTo })
	r.index()
	return &r, nil
}

func (r *Reward) index() {
	r.allowed = make(map[string]bool, len(r.RewardTypes))
	for _, t := range r.RewardTypes {
		r.allowed[t] = true
	}
}

func (r *Reward) TypeAllowed(rewardType string) bool {
	return r.allowed[rewardType]
}

// AmountInRange reports whether 0 < amount <= MaxPerEntry.
func (r *Reward) AmountInRange(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.LessThanOrEqual(r.MaxPerEntry)
}

// AmountForRank resolves the reward for a 1-based rank: the first band
// covering the rank wins, ranks beyond every band get DefaultAmount.
func (r *Reward) AmountForRank(rank int) decimal.Decimal {
	for _, b := range r.Bands {
		if rank <= b.UpTo {
			return b.Amount
		}
	}
	return r.DefaultAmount
}
