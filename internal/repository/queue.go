package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPendingExists is returned by Enqueue when the beneficiary
	// already has an entry that is not terminal yet.
	ErrPendingExists = errors.New("beneficiary already has an open entry")

	// ErrBadTransition is returned when a status update matched no row,
	// i.e. the entry does not exist or is already terminal.
	ErrBadTransition = errors.New("entry is not in a transitionable status")

	ErrUnknownBeneficiary = errors.New("unknown beneficiary")
)

// FindPendingFor returns the open (pending or processing) entry of the
// beneficiary, or nil when there is none.
func (m Airdrops) FindPendingFor(ctx context.Context, beneficiaryId uint64) (*AirdropEntry, error) {
	const query = "SELECT * FROM `airdrop_entries` WHERE `beneficiary_id`=? AND `status` IN (?,?) LIMIT 1;"

	var entry AirdropEntry
	err := m.db.GetContext(ctx, &entry, query, beneficiaryId, EntryStatusPending, EntryStatusProcessing)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("FindPendingFor: %w", err)
	}
	return &entry, nil
}

// Enqueue inserts a new pending entry. The beneficiary row is locked for
// the duration of the transaction so that two concurrent enqueues cannot
// both pass the duplicate check.
func (m Airdrops) Enqueue(ctx context.Context, entry *AirdropEntry) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Enqueue: begin tx %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rollbackError := tx.Rollback(); rollbackError != nil {
			logrus.Errorf("Enqueue: rollback: %s", rollbackError)
		}
	}()

	const lockQuery = "SELECT `id` FROM `beneficiaries` WHERE `id`=? FOR UPDATE;"
	var locked uint64
	if err = tx.QueryRowxContext(ctx, lockQuery, entry.BeneficiaryId).Scan(&locked); err != nil {
		if err == sql.ErrNoRows {
			return ErrUnknownBeneficiary
		}
		return fmt.Errorf("Enqueue: lock beneficiary: %w", err)
	}

	const dupQuery = "SELECT COUNT(*) FROM `airdrop_entries` WHERE `beneficiary_id`=? AND `status` IN (?,?);"
	var open int
	if err = tx.QueryRowxContext(ctx, dupQuery, entry.BeneficiaryId, EntryStatusPending, EntryStatusProcessing).Scan(&open); err != nil {
		return fmt.Errorf("Enqueue: count open entries: %w", err)
	}
	if open > 0 {
		err = ErrPendingExists
		return err
	}

	const insertQuery = "INSERT INTO `airdrop_entries` (`beneficiary_id`,`reward_type`,`amount`,`status`,`note`) VALUES (?,?,?,?,?);"
	res, err := tx.ExecContext(ctx, insertQuery, entry.BeneficiaryId, entry.RewardType, entry.Amount, EntryStatusPending, entry.Note)
	if err != nil {
		return fmt.Errorf("Enqueue: insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Enqueue: last insert id: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Enqueue: commit: %w", err)
	}

	entry.Id = uint64(id)
	entry.Status = EntryStatusPending
	entry.CreatedAt = time.Now()
	return nil
}

// ListPending selects up to limit pending entries, oldest first. FIFO
// ordering keeps old obligations from being starved by new ones.
func (m Airdrops) ListPending(ctx context.Context, limit int) ([]*AirdropEntry, error) {
	const query = "SELECT * FROM `airdrop_entries` WHERE `status`=? ORDER BY `ctime` ASC, `id` ASC LIMIT ?;"

	var entries []*AirdropEntry
	if err := m.db.SelectContext(ctx, &entries, query, EntryStatusPending, limit); err != nil {
		return nil, fmt.Errorf("ListPending: %w", err)
	}
	return entries, nil
}

// MarkProcessing records the signed transaction before it is broadcast,
// so a crash between broadcast and confirmation can be reconciled from
// the stored hash instead of double-paying.
func (m Airdrops) MarkProcessing(ctx context.Context, id uint64, txHash string, rawtx []byte) error {
	const query = "UPDATE `airdrop_entries` SET `status`=?,`txhash`=?,`rawtx`=? WHERE `id`=? AND `status`=?;"

	res, err := m.db.ExecContext(ctx, query, EntryStatusProcessing, txHash, rawtx, id, EntryStatusPending)
	if err != nil {
		return fmt.Errorf("MarkProcessing: %w", err)
	}
	if count, _ := res.RowsAffected(); count != 1 {
		return ErrBadTransition
	}
	return nil
}

// TransitionTerminal moves an open entry into success or failed and
// stamps ptime exactly once. Terminal entries never match the guard, so
// double-processing is rejected here no matter what the caller believes.
func (m Airdrops) TransitionTerminal(ctx context.Context, id uint64, status EntryStatus, txHash, note string) error {
	if !status.Terminal() {
		return fmt.Errorf("TransitionTerminal: %s is not a terminal status", status)
	}

	const query = "UPDATE `airdrop_entries` SET `status`=?,`txhash`=?,`note`=?,`ptime`=? WHERE `id`=? AND `status` IN (?,?);"
	res, err := m.db.ExecContext(ctx, query, status, txHash, note, time.Now(), id, EntryStatusPending, EntryStatusProcessing)
	if err != nil {
		return fmt.Errorf("TransitionTerminal: %w", err)
	}
	if count, _ := res.RowsAffected(); count != 1 {
		return ErrBadTransition
	}
	return nil
}

// ListProcessing returns entries whose transaction has been submitted but
// not confirmed yet. Bounded so one reconcile sweep stays cheap.
func (m Airdrops) ListProcessing(ctx context.Context) ([]*AirdropEntry, error) {
	const query = "SELECT * FROM `airdrop_entries` WHERE `status`=? ORDER BY `id` ASC LIMIT 50;"

	var entries []*AirdropEntry
	if err := m.db.SelectContext(ctx, &entries, query, EntryStatusProcessing); err != nil {
		return nil, fmt.Errorf("ListProcessing: %w", err)
	}
	return entries, nil
}

// History pages through the ledger, newest first. A nil status returns
// every entry.
func (m Airdrops) History(ctx context.Context, status *EntryStatus, page, pageSize int) ([]*AirdropEntry, uint64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var (
		entries []*AirdropEntry
		total   uint64
	)

	if status != nil {
		const countQuery = "SELECT COUNT(*) FROM `airdrop_entries` WHERE `status`=?;"
		if err := m.db.QueryRowxContext(ctx, countQuery, *status).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("History: count: %w", err)
		}
		const listQuery = "SELECT * FROM `airdrop_entries` WHERE `status`=? ORDER BY `id` DESC LIMIT ? OFFSET ?;"
		if err := m.db.SelectContext(ctx, &entries, listQuery, *status, pageSize, (page-1)*pageSize); err != nil {
			return nil, 0, fmt.Errorf("History: list: %w", err)
		}
		return entries, total, nil
	}

	const countQuery = "SELECT COUNT(*) FROM `airdrop_entries`;"
	if err := m.db.QueryRowxContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("History: count: %w", err)
	}
	const listQuery = "SELECT * FROM `airdrop_entries` ORDER BY `id` DESC LIMIT ? OFFSET ?;"
	if err := m.db.SelectContext(ctx, &entries, listQuery, pageSize, (page-1)*pageSize); err != nil {
		return nil, 0, fmt.Errorf("History: list: %w", err)
	}
	return entries, total, nil
}

// Stats aggregates entry count and wei amount per status.
func (m Airdrops) Stats(ctx context.Context) ([]*StatusTotal, error) {
	const query = "SELECT `status`, COUNT(*) AS `total`, COALESCE(SUM(`amount`),0) AS `amount` FROM `airdrop_entries` GROUP BY `status`;"

	var totals []*StatusTotal
	if err := m.db.SelectContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	return totals, nil
}
