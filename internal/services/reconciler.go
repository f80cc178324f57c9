package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creata-games/airdrop-engine/internal/repository"
)

// Reconcile settles entries whose transaction was submitted but not
// confirmed within a batch run (including after a crash): a mined
// receipt decides the terminal status, a missing receipt gets the stored
// raw tx re-broadcast, and a transaction that stays unseen past
// StaleAfter is written off so the queue cannot silently wedge.
func (e *Engine) Reconcile(basectx context.Context) error {
	entries, err := e.Store.ListProcessing(basectx)
	if err != nil {
		return fmt.Errorf("Reconcile: %w", err)
	}

	for _, entry := range entries {
		status, err := e.Gateway.TransactionStatus(basectx, entry.TxHash)
		if err != nil {
			logrus.Errorf("Reconcile: entry %d: receipt of %s: %s", entry.Id, entry.TxHash, err)
			continue
		}

		switch status {
		case TxStatusSuccess:
			logrus.Infof("Reconcile: entry %d confirmed [ Tx %s ]", entry.Id, entry.TxHash)
			if err := e.Store.TransitionTerminal(basectx, entry.Id, repository.EntryStatusSuccess, entry.TxHash, ""); err != nil {
				logrus.Errorf("Reconcile: entry %d: mark success: %s", entry.Id, err)
			}
		case TxStatusFailed:
			logrus.Infof("Reconcile: entry %d reverted [ Tx %s ]", entry.Id, entry.TxHash)
			if err := e.Store.TransitionTerminal(basectx, entry.Id, repository.EntryStatusFailed, entry.TxHash, "reverted on-chain"); err != nil {
				logrus.Errorf("Reconcile: entry %d: mark failed: %s", entry.Id, err)
			}
		default:
			if e.StaleAfter > 0 && time.Since(entry.CreatedAt) > e.StaleAfter {
				logrus.Errorf("Reconcile: entry %d unconfirmed for %s, giving up [ Tx %s ]", entry.Id, e.StaleAfter, entry.TxHash)
				if err := e.Store.TransitionTerminal(basectx, entry.Id, repository.EntryStatusFailed, entry.TxHash, "confirm_timeout"); err != nil {
					logrus.Errorf("Reconcile: entry %d: mark failed: %s", entry.Id, err)
				}
				continue
			}
			// same signed bytes, same hash: re-broadcasting is idempotent
			if err := e.Gateway.Broadcast(basectx, entry.RawTx); err != nil {
				logrus.Errorf("Reconcile: entry %d: re-broadcast: %s", entry.Id, err)
			}
		}
	}
	return nil
}
