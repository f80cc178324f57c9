package repository

import (
	"database/sql"
	"time"

	"github.com/islishude/bigint"
)

type EntryStatus uint8

const (
	EntryStatusPending EntryStatus = iota
	EntryStatusProcessing
	EntryStatusSuccess
	EntryStatusFailed
)

func (s EntryStatus) String() string {
	switch s {
	case EntryStatusPending:
		return "pending"
	case EntryStatusProcessing:
		return "processing"
	case EntryStatusSuccess:
		return "success"
	case EntryStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is permitted.
func (s EntryStatus) Terminal() bool {
	return s == EntryStatusSuccess || s == EntryStatusFailed
}

// AirdropEntry is one intended token transfer. The table is an
// append-mostly ledger: entries are never deleted, a failed entry is
// retried by creating a new one.
type AirdropEntry struct {
	Id            uint64       `db:"id"`
	BeneficiaryId uint64       `db:"beneficiary_id"`
	RewardType    string       `db:"reward_type"`
	Amount        bigint.Int   `db:"amount"` // wei
	Status        EntryStatus  `db:"status"`
	TxHash        string       `db:"txhash"`
	RawTx         []byte       `db:"rawtx"`
	Note          string       `db:"note"`
	CreatedAt     time.Time    `db:"ctime"`
	ProcessedAt   sql.NullTime `db:"ptime"`
}

type Beneficiary struct {
	Id              uint64    `db:"id"`
	TelegramId      int64     `db:"telegram_id"`
	WalletAddress   string    `db:"wallet_address"`
	WalletVerified  bool      `db:"wallet_verified"`
	WalletInstalled bool      `db:"wallet_installed"`
	CreatedAt       time.Time `db:"ctime"`
	UpdatedAt       time.Time `db:"mtime"`
}

// StatusTotal is one row of the per-status ledger aggregate.
type StatusTotal struct {
	Status EntryStatus `db:"status"`
	Count  uint64      `db:"total"`
	Amount bigint.Int  `db:"amount"` // wei
}
