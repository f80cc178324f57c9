package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/islishude/bigint"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/creata-games/airdrop-engine/internal/repository"
	"github.com/creata-games/airdrop-engine/internal/services/policy"
	"github.com/creata-games/airdrop-engine/internal/utils"
	"github.com/creata-games/airdrop-engine/internal/utils/lock"
)

var (
	ErrInvalidRewardType   = errors.New("reward type is not allowed")
	ErrAmountOutOfRange    = errors.New("amount is zero, negative or above the per-entry maximum")
	ErrDuplicatePending    = errors.New("beneficiary already has a pending airdrop")
	ErrBatchRunning        = errors.New("another batch is already running")
	ErrInsufficientFunding = errors.New("funding wallet balance is below batch total plus reserve")
	ErrNoSelector          = errors.New("no ranking selector configured")
)

// NotEligibleError carries the fail-closed reason from the eligibility
// check back to the enqueue caller.
type NotEligibleError struct {
	Reason string
}

func (e *NotEligibleError) Error() string {
	return "beneficiary is not eligible: " + e.Reason
}

// QueueStore is what the engine needs from the ledger. repository.Airdrops
// is the production implementation.
type QueueStore interface {
	BeneficiarySource
	FindPendingFor(ctx context.Context, beneficiaryId uint64) (*repository.AirdropEntry, error)
	Enqueue(ctx context.Context, entry *repository.AirdropEntry) error
	ListPending(ctx context.Context, limit int) ([]*repository.AirdropEntry, error)
	MarkProcessing(ctx context.Context, id uint64, txHash string, rawtx []byte) error
	TransitionTerminal(ctx context.Context, id uint64, status repository.EntryStatus, txHash, note string) error
	ListProcessing(ctx context.Context) ([]*repository.AirdropEntry, error)
	History(ctx context.Context, status *repository.EntryStatus, page, pageSize int) ([]*repository.AirdropEntry, uint64, error)
	Stats(ctx context.Context) ([]*repository.StatusTotal, error)
}

const (
	MaxBatchSize = 50

	batchLockKey = "airdrop:batch"
	batchLockTTL = time.Minute * 10
)

// Engine accumulates reward obligations and drives them on-chain.
// Enqueue is safe to call concurrently, batch execution is single-flight
// and strictly sequential: the funding wallet is one shared nonce and
// serializing transfers sidesteps nonce races entirely.
type Engine struct {
	Store    QueueStore
	Gateway  ChainGateway
	Policy   *policy.Reward
	Locker   lock.Locker
	Selector RankingSelector

	// Reserved stays untouched in the funding wallet for gas headroom.
	Reserved decimal.Decimal
	// ConfirmWait bounds how long one entry waits for its receipt before
	// the reconciler takes over.
	ConfirmWait time.Duration
	// PollInterval is the receipt polling period within ConfirmWait.
	PollInterval time.Duration
	// StaleAfter is how long a submitted transaction may stay unconfirmed
	// before the reconciler gives up on it.
	StaleAfter time.Duration
}

// Enqueue records the intent to pay. No chain call happens here: keeping
// "intent to pay" apart from "payment execution" is what allows batching
// and admin review in between.
func (e *Engine) Enqueue(ctx context.Context, beneficiaryId uint64, rewardType string, amount decimal.Decimal, note string) (*repository.AirdropEntry, error) {
	if !e.Policy.TypeAllowed(rewardType) {
		return nil, ErrInvalidRewardType
	}
	if !e.Policy.AmountInRange(amount) {
		return nil, ErrAmountOutOfRange
	}

	elig, err := CheckEligible(ctx, e.Store, beneficiaryId)
	if err != nil {
		return nil, fmt.Errorf("Enqueue: %w", err)
	}
	if !elig.Eligible {
		return nil, &NotEligibleError{Reason: elig.Reason}
	}

	if open, err := e.Store.FindPendingFor(ctx, beneficiaryId); err != nil {
		return nil, fmt.Errorf("Enqueue: %w", err)
	} else if open != nil {
		return nil, ErrDuplicatePending
	}

	entry := &repository.AirdropEntry{
		BeneficiaryId: beneficiaryId,
		RewardType:    rewardType,
		Amount:        bigint.FromBigInt(utils.ToWei(amount)),
		Note:          note,
	}
	if err := e.Store.Enqueue(ctx, entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrPendingExists):
			// lost the race against a concurrent enqueue
			return nil, ErrDuplicatePending
		case errors.Is(err, repository.ErrUnknownBeneficiary):
			return nil, &NotEligibleError{Reason: ReasonNotFound}
		default:
			return nil, fmt.Errorf("Enqueue: %w", err)
		}
	}
	return entry, nil
}

// EntryResult is the per-entry line of a batch report.
type EntryResult struct {
	EntryId       uint64 `json:"entry_id"`
	BeneficiaryId uint64 `json:"beneficiary_id"`
	Outcome       string `json:"outcome"`
	TxHash        string `json:"txhash,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeConfirming  = "confirming"
	OutcomeSkipped     = "skipped"
	OutcomeWouldSend   = "would_send"
	OutcomeWouldReject = "would_reject"
)

type BatchResult struct {
	DryRun     bool          `json:"dry_run"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"success_count"`
	Failed     int           `json:"failed_count"`
	Confirming int           `json:"confirming_count"`
	Skipped    int           `json:"skipped_count"`
	Results    []EntryResult `json:"results"`
}

// ExecuteBatch drains up to batchSize pending entries in FIFO order. A
// dry run only re-checks eligibility and never touches the store. A live
// run takes the single-flight lock, a second overlapping call fails fast
// with ErrBatchRunning.
//
// One bad transfer never aborts the batch: chain errors become failed
// entries and processing continues with the next one.
func (e *Engine) ExecuteBatch(basectx context.Context, batchSize int, dryRun bool) (*BatchResult, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	if dryRun {
		return e.simulateBatch(basectx, batchSize)
	}

	acquired, err := e.Locker.Acquire(basectx, batchLockKey, batchLockTTL)
	if err != nil {
		return nil, fmt.Errorf("ExecuteBatch: acquire lock: %w", err)
	}
	if !acquired {
		return nil, ErrBatchRunning
	}
	defer func() {
		// release with a fresh context so shutdown does not leak the lock
		releasectx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := e.Locker.Release(releasectx, batchLockKey); err != nil {
			logrus.Errorf("ExecuteBatch: release lock: %s", err)
		}
	}()

	entries, err := e.Store.ListPending(basectx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("ExecuteBatch: %w", err)
	}
	result := &BatchResult{Results: []EntryResult{}}
	if len(entries) == 0 {
		return result, nil
	}

	if err := e.Gateway.Refresh(basectx); err != nil {
		return nil, fmt.Errorf("ExecuteBatch: refresh nonce: %w", err)
	}
	if err := e.checkFunding(basectx, entries); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		result.Processed += 1
		result.Results = append(result.Results, e.processOne(basectx, entry))

		switch result.Results[len(result.Results)-1].Outcome {
		case OutcomeSuccess:
			result.Succeeded += 1
		case OutcomeConfirming:
			result.Confirming += 1
		case OutcomeSkipped:
			result.Skipped += 1
		default:
			result.Failed += 1
		}
	}
	return result, nil
}

func (e *Engine) simulateBatch(ctx context.Context, batchSize int) (*BatchResult, error) {
	entries, err := e.Store.ListPending(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("ExecuteBatch: %w", err)
	}

	result := &BatchResult{DryRun: true, Results: []EntryResult{}}
	for _, entry := range entries {
		result.Processed += 1

		elig, err := CheckEligible(ctx, e.Store, entry.BeneficiaryId)
		if err != nil {
			return nil, fmt.Errorf("ExecuteBatch: %w", err)
		}
		line := EntryResult{EntryId: entry.Id, BeneficiaryId: entry.BeneficiaryId}
		if elig.Eligible {
			line.Outcome = OutcomeWouldSend
			result.Succeeded += 1
		} else {
			line.Outcome = OutcomeWouldReject
			line.Reason = elig.Reason
			result.Failed += 1
		}
		result.Results = append(result.Results, line)
	}
	return result, nil
}

// processOne drives a single entry to success, failed or confirming. It
// only ever returns a report: errors are recorded on the entry and must
// not spill over to its batch siblings.
func (e *Engine) processOne(basectx context.Context, entry *repository.AirdropEntry) EntryResult {
	line := EntryResult{EntryId: entry.Id, BeneficiaryId: entry.BeneficiaryId}

	failEntry := func(txHash, reason string) {
		line.Outcome = OutcomeFailed
		line.TxHash = txHash
		line.Reason = reason
		if err := e.Store.TransitionTerminal(basectx, entry.Id, repository.EntryStatusFailed, txHash, trimNote(reason)); err != nil {
			logrus.Errorf("Batch: entry %d: mark failed: %s", entry.Id, err)
		}
	}

	// eligibility can regress between enqueue and execution. A store error
	// here is transient: the entry stays pending and gets retried next
	// batch, so it must not be reported as failed.
	elig, err := CheckEligible(basectx, e.Store, entry.BeneficiaryId)
	if err != nil {
		line.Outcome = OutcomeSkipped
		line.Reason = err.Error()
		logrus.Errorf("Batch: entry %d: eligibility: %s", entry.Id, err)
		return line
	}
	if !elig.Eligible {
		failEntry("", elig.Reason)
		return line
	}

	amount := new(big.Int).Set(entry.Amount.Int)
	txHash, rawtx, err := e.Gateway.SignTransfer(basectx, elig.Wallet, amount)
	if err != nil {
		failEntry("", err.Error())
		return line
	}

	// persist before broadcast: once the tx can be on the wire, its hash
	// must be recoverable from the ledger. Nothing was broadcast yet, so
	// the entry keeps its current status and is picked up again later.
	if err := e.Store.MarkProcessing(basectx, entry.Id, txHash, rawtx); err != nil {
		line.Outcome = OutcomeSkipped
		line.Reason = err.Error()
		logrus.Errorf("Batch: entry %d: mark processing: %s", entry.Id, err)
		return line
	}

	logrus.Infof("Batch: entry %d: send %s wei to %s [ Tx %s ]", entry.Id, amount, elig.Wallet, txHash)
	if err := e.Gateway.Broadcast(basectx, rawtx); err != nil {
		// the signed tx is persisted, the reconciler re-broadcasts it
		logrus.Errorf("Batch: entry %d: broadcast: %s", entry.Id, err)
		line.Outcome = OutcomeConfirming
		line.TxHash = txHash
		line.Reason = "broadcast failed, will retry"
		return line
	}

	switch e.waitForReceipt(basectx, txHash) {
	case TxStatusSuccess:
		line.Outcome = OutcomeSuccess
		line.TxHash = txHash
		if err := e.Store.TransitionTerminal(basectx, entry.Id, repository.EntryStatusSuccess, txHash, ""); err != nil {
			logrus.Errorf("Batch: entry %d: mark success: %s", entry.Id, err)
		}
	case TxStatusFailed:
		failEntry(txHash, "reverted on-chain")
	default:
		// receipt did not show up within ConfirmWait, the reconciler
		// owns this entry from now on
		line.Outcome = OutcomeConfirming
		line.TxHash = txHash
	}
	return line
}

func (e *Engine) waitForReceipt(basectx context.Context, txHash string) TxStatus {
	poll := e.PollInterval
	if poll <= 0 {
		poll = time.Second * 2
	}

	deadline := time.Now().Add(e.ConfirmWait)
	for {
		status, err := e.Gateway.TransactionStatus(basectx, txHash)
		if err != nil {
			logrus.Errorf("Batch: receipt of %s: %s", txHash, err)
		} else if status != TxStatusPending {
			return status
		}

		if time.Now().After(deadline) {
			return TxStatusPending
		}
		select {
		case <-basectx.Done():
			return TxStatusPending
		case <-time.After(poll):
		}
	}
}

// checkFunding aborts a batch up front when the wallet cannot cover the
// selected total plus the reserved gas floor. Nothing is touched yet at
// this point, so aborting is safe.
func (e *Engine) checkFunding(ctx context.Context, entries []*repository.AirdropEntry) error {
	balance, err := e.Gateway.Balance(ctx)
	if err != nil {
		return fmt.Errorf("ExecuteBatch: balance: %w", err)
	}

	need := utils.ToWei(e.Reserved)
	for _, entry := range entries {
		need.Add(need, entry.Amount.Int)
	}
	if balance.Cmp(need) < 0 {
		logrus.Errorf("Batch: balance %s wei < required %s wei", balance, need)
		return ErrInsufficientFunding
	}
	return nil
}

func trimNote(note string) string {
	const max = 500
	if len(note) > max {
		return note[:max]
	}
	return note
}
