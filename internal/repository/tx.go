package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/errs"
	"github.com/bankcards/card-service/internal/models"
)

// CardTx exposes the row-locked card operations available inside a transfer
// transaction. Rows fetched through GetForUpdate stay locked until the
// surrounding transaction commits or rolls back.
type CardTx interface {
	// GetForUpdate locks and returns a card scoped to its owner. A card
	// under another owner reads as errs.ErrCardNotFound.
	GetForUpdate(ctx context.Context, cardID, ownerID int64) (*models.Card, error)
	// UpdateBalance sets the card's balance inside the transaction.
	UpdateBalance(ctx context.Context, cardID int64, balance decimal.Decimal) error
}

// Bounded wait for row locks; exceeding it surfaces as errs.ErrBusy so the
// caller can retry instead of blocking indefinitely.
const lockTimeout = "3s"

// InTransferTx runs fn inside a repeatable-read transaction with a bounded
// lock wait. Everything fn does is committed atomically or not at all.
// Lock contention and serialization conflicts map to errs.ErrBusy.
func (r *CardRepository) InTransferTx(ctx context.Context, fn func(CardTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", lockTimeout)); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err := fn(&cardTx{tx: tx}); err != nil {
		return asBusy(err)
	}

	if err := tx.Commit(); err != nil {
		return asBusy(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

type cardTx struct {
	tx *sql.Tx
}

func (t *cardTx) GetForUpdate(ctx context.Context, cardID, ownerID int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	card, err := scanCard(t.tx.QueryRowContext(ctx, query, cardID, ownerID))
	if err == sql.ErrNoRows {
		return nil, errs.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock card: %w", err)
	}
	return card, nil
}

func (t *cardTx) UpdateBalance(ctx context.Context, cardID int64, balance decimal.Decimal) error {
	query := `
		UPDATE cards
		SET balance = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`
	result, err := t.tx.ExecContext(ctx, query, balance, cardID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.ErrCardNotFound
	}
	return nil
}

// asBusy rewraps lock-wait timeouts and serialization conflicts as the
// retryable errs.ErrBusy; every other error passes through unchanged.
func asBusy(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case "55P03", "40001": // lock_not_available, serialization_failure
			return fmt.Errorf("%w: %s", errs.ErrBusy, pqErr.Code.Name())
		}
	}
	return err
}
