package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardStatus is the persisted lifecycle state of a card. Expiration is
// derived from the expiration date at read time and is never stored.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
)

// ParseCardStatus validates a status filter value from the request layer.
func ParseCardStatus(s string) (CardStatus, bool) {
	switch CardStatus(s) {
	case CardStatusActive, CardStatusBlocked:
		return CardStatus(s), true
	}
	return "", false
}

// Card represents a bank card. EncryptedNumber holds the ciphertext of the
// card number; the clear number is never stored, logged, or serialized.
type Card struct {
	ID              int64           `json:"id"`
	OwnerID         int64           `json:"owner_id"`
	EncryptedNumber string          `json:"-"`
	ExpirationDate  time.Time       `json:"expiration_date"`
	Status          CardStatus      `json:"status"`
	Balance         decimal.Decimal `json:"balance"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsExpired reports whether the card's expiration date has passed at the
// given point in time. Expiration is checked against calendar days.
func (c *Card) IsExpired(now time.Time) bool {
	return c.ExpirationDate.Before(truncateToDay(now))
}

// TransferEligible reports whether the card may participate in a transfer:
// persisted status ACTIVE and not expired.
func (c *Card) TransferEligible(now time.Time) bool {
	return c.Status == CardStatusActive && !c.IsExpired(now)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CardView is the external representation of a card. Number is always the
// masked form.
type CardView struct {
	ID      int64           `json:"id"`
	OwnerID int64           `json:"owner_id"`
	Number  string          `json:"number"`
	Status  CardStatus      `json:"status"`
	Expired bool            `json:"expired"`
	Balance decimal.Decimal `json:"balance"`
}

// CardPage is one page of cards for a paginated listing.
type CardPage struct {
	Items []CardView `json:"items"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
	Total int64      `json:"total"`
}
