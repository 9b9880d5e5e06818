package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/errs"
	"github.com/bankcards/card-service/internal/models"
)

const cardColumns = "id, owner_id, encrypted_number, expiration_date, status, balance, created_at, updated_at"

// CardRepository provides database operations for cards
type CardRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewCardRepository initializes a new card repository
func NewCardRepository(db *sql.DB, log *logrus.Logger) *CardRepository {
	return &CardRepository{db: db, log: log}
}

func scanCard(row interface{ Scan(...any) error }) (*models.Card, error) {
	var card models.Card
	err := row.Scan(
		&card.ID,
		&card.OwnerID,
		&card.EncryptedNumber,
		&card.ExpirationDate,
		&card.Status,
		&card.Balance,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// Create inserts a new card and fills in its store-assigned id
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (owner_id, encrypted_number, expiration_date, status, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		card.OwnerID, card.EncryptedNumber, card.ExpirationDate, card.Status, card.Balance).
		Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// GetByID retrieves a card by id without ownership scoping (admin paths)
func (r *CardRepository) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errs.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// GetByIDAndOwner retrieves a card only if it belongs to the given owner.
// An existing card under another owner is indistinguishable from a missing
// one: both return errs.ErrCardNotFound.
func (r *CardRepository) GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND owner_id = $2`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, errs.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// List returns all cards ordered by id (admin listing)
func (r *CardRepository) List(ctx context.Context) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// ListByOwner returns one page of the owner's cards, optionally filtered by
// persisted status, together with the total match count.
func (r *CardRepository) ListByOwner(ctx context.Context, ownerID int64, status *models.CardStatus, page, size int) ([]models.Card, int64, error) {
	offset := page * size

	var (
		rows  *sql.Rows
		total int64
		err   error
	)
	if status == nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE owner_id = $1`, ownerID).Scan(&total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count cards: %w", err)
		}
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+cardColumns+` FROM cards WHERE owner_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
			ownerID, size, offset)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE owner_id = $1 AND status = $2`, ownerID, *status).Scan(&total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count cards: %w", err)
		}
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+cardColumns+` FROM cards WHERE owner_id = $1 AND status = $2 ORDER BY id LIMIT $3 OFFSET $4`,
			ownerID, *status, size, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	cards, err := collectCards(rows)
	if err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

// UpdateStatus persists a lifecycle transition
func (r *CardRepository) UpdateStatus(ctx context.Context, id int64, status models.CardStatus) error {
	query := `
		UPDATE cards
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update card status: %w", err)
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

// Delete removes a card permanently
func (r *CardRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
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

// Exists reports whether a card with the given id exists
func (r *CardRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM cards WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check card existence: %w", err)
	}
	return exists, nil
}

// ExpiringCard pairs a card with its owner's contact details for the expiry
// reminder job.
type ExpiringCard struct {
	CardID          int64
	OwnerID         int64
	Username        string
	Email           string
	EncryptedNumber string
	ExpirationDate  time.Time
}

// ListExpiring returns active cards expiring on or before the given date
// whose owners have an email address on file.
func (r *CardRepository) ListExpiring(ctx context.Context, before time.Time) ([]ExpiringCard, error) {
	query := `
		SELECT c.id, c.owner_id, u.username, u.email, c.encrypted_number, c.expiration_date
		FROM cards c
		JOIN users u ON u.id = c.owner_id
		WHERE c.status = $1 AND c.expiration_date <= $2 AND u.email <> ''
		ORDER BY c.expiration_date, c.id`
	rows, err := r.db.QueryContext(ctx, query, models.CardStatusActive, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring cards: %w", err)
	}
	defer rows.Close()

	var result []ExpiringCard
	for rows.Next() {
		var ec ExpiringCard
		if err := rows.Scan(&ec.CardID, &ec.OwnerID, &ec.Username, &ec.Email, &ec.EncryptedNumber, &ec.ExpirationDate); err != nil {
			return nil, fmt.Errorf("failed to scan expiring card: %w", err)
		}
		result = append(result, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}

func collectCards(rows *sql.Rows) ([]models.Card, error) {
	var cards []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return cards, nil
}
