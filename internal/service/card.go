package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/cardnum"
	"github.com/bankcards/card-service/internal/errs"
	"github.com/bankcards/card-service/internal/models"
	"github.com/bankcards/card-service/internal/repository"
)

// CardStore is the card persistence contract the service consumes.
// *repository.CardRepository satisfies it.
type CardStore interface {
	Create(ctx context.Context, card *models.Card) error
	GetByID(ctx context.Context, id int64) (*models.Card, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*models.Card, error)
	List(ctx context.Context) ([]models.Card, error)
	ListByOwner(ctx context.Context, ownerID int64, status *models.CardStatus, page, size int) ([]models.Card, int64, error)
	UpdateStatus(ctx context.Context, id int64, status models.CardStatus) error
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
	InTransferTx(ctx context.Context, fn func(repository.CardTx) error) error
}

// UserStore is the user persistence contract the card service consumes.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// TransferNotifier delivers out-of-band notifications after a successful
// transfer. Delivery failures never affect the transfer itself.
type TransferNotifier interface {
	SendTransferNotification(to, username string, amount decimal.Decimal, fromMasked, toMasked string) error
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CardService handles card business logic: provisioning, lifecycle
// transitions, listings, and transfers between cards of one owner.
type CardService struct {
	cards    CardStore
	users    UserStore
	codec    *cardnum.Codec
	notifier TransferNotifier
	log      *logrus.Logger
	now      func() time.Time
}

// NewCardService initializes a new card service. notifier may be nil.
func NewCardService(cards CardStore, users UserStore, codec *cardnum.Codec, notifier TransferNotifier, log *logrus.Logger) *CardService {
	return &CardService{
		cards:    cards,
		users:    users,
		codec:    codec,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// CreateCard validates and provisions a new card for the given owner. The
// number is checked against the Luhn checksum, encrypted for storage, and
// returned only in masked form.
func (s *CardService) CreateCard(ctx context.Context, ownerID int64, number string, expiration time.Time, initialBalance decimal.Decimal) (*models.CardView, error) {
	exists, err := s.users.Exists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: id %d", errs.ErrUserNotFound, ownerID)
	}

	if !cardnum.Valid(number) {
		return nil, fmt.Errorf("%w: checksum or format check failed", errs.ErrInvalidCardNumber)
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance must not be negative", errs.ErrInvalidCardNumber)
	}
	if initialBalance.Exponent() < -2 {
		return nil, fmt.Errorf("%w: initial balance must have at most two decimal places", errs.ErrInvalidCardNumber)
	}

	encrypted, err := s.codec.Encrypt(number)
	if err != nil {
		return nil, err
	}
	masked, err := cardnum.Mask(number)
	if err != nil {
		return nil, err
	}

	card := &models.Card{
		OwnerID:         ownerID,
		EncryptedNumber: encrypted,
		ExpirationDate:  expiration,
		Status:          models.CardStatusActive,
		Balance:         initialBalance,
	}
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, err
	}

	s.log.Infof("Card %d created for user %d", card.ID, ownerID)
	return s.view(card, masked), nil
}

// GetAllCards returns every card in the system with masked numbers
func (s *CardService) GetAllCards(ctx context.Context) ([]models.CardView, error) {
	cards, err := s.cards.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.CardView, 0, len(cards))
	for i := range cards {
		view, err := s.maskedView(&cards[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// GetUserCards returns one page of the owner's cards, optionally filtered
// by persisted status.
func (s *CardService) GetUserCards(ctx context.Context, ownerID int64, status *models.CardStatus, page, size int) (*models.CardPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	cards, total, err := s.cards.ListByOwner(ctx, ownerID, status, page, size)
	if err != nil {
		return nil, err
	}

	items := make([]models.CardView, 0, len(cards))
	for i := range cards {
		view, err := s.maskedView(&cards[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *view)
	}
	return &models.CardPage{Items: items, Page: page, Size: size, Total: total}, nil
}

// BlockCard blocks a card by id (admin operation)
func (s *CardService) BlockCard(ctx context.Context, cardID int64) (*models.CardView, error) {
	return s.setStatus(ctx, cardID, models.CardStatusBlocked)
}

// ActivateCard re-activates a blocked card (admin operation). The persisted
// status changes; an expired card stays unusable because expiration is
// derived from the date at every eligibility check.
func (s *CardService) ActivateCard(ctx context.Context, cardID int64) (*models.CardView, error) {
	return s.setStatus(ctx, cardID, models.CardStatusActive)
}

// RequestBlock blocks a card at its owner's request. Unlike the scoped
// lookups, a foreign card here is an explicit forbidden operation.
func (s *CardService) RequestBlock(ctx context.Context, actingUserID, cardID int64) (*models.CardView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerID != actingUserID {
		return nil, fmt.Errorf("%w: cannot block another user's card", errs.ErrForbidden)
	}
	if err := s.cards.UpdateStatus(ctx, cardID, models.CardStatusBlocked); err != nil {
		return nil, err
	}
	card.Status = models.CardStatusBlocked
	s.log.Infof("Card %d blocked at owner %d request", cardID, actingUserID)
	return s.maskedView(card)
}

// DeleteCard removes a card permanently. Deletion is allowed from any state.
func (s *CardService) DeleteCard(ctx context.Context, cardID int64) error {
	exists, err := s.cards.Exists(ctx, cardID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: id %d", errs.ErrCardNotFound, cardID)
	}
	if err := s.cards.Delete(ctx, cardID); err != nil {
		return err
	}
	s.log.Infof("Card %d deleted", cardID)
	return nil
}

// Transfer moves amount between two cards owned by the acting user. The
// read-validate-write sequence runs in a single store transaction with both
// rows locked in ascending id order, so concurrent transfers touching
// either card serialize and money is neither created nor destroyed.
func (s *CardService) Transfer(ctx context.Context, actingUserID, fromCardID, toCardID int64, amount decimal.Decimal) error {
	if fromCardID == toCardID {
		return fmt.Errorf("%w: same card", errs.ErrInvalidTransfer)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", errs.ErrInvalidTransfer)
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("%w: amount must have at most two decimal places", errs.ErrInvalidTransfer)
	}

	err := s.cards.InTransferTx(ctx, func(tx repository.CardTx) error {
		// Locks are always taken in ascending id order regardless of
		// transfer direction to avoid deadlock between opposing transfers
		// on the same pair.
		firstID, secondID := fromCardID, toCardID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}

		locked := make(map[int64]*models.Card, 2)
		for _, id := range []int64{firstID, secondID} {
			card, err := tx.GetForUpdate(ctx, id, actingUserID)
			if err != nil {
				return err
			}
			locked[id] = card
		}
		from, to := locked[fromCardID], locked[toCardID]

		now := s.now()
		if !from.TransferEligible(now) || !to.TransferEligible(now) {
			return fmt.Errorf("%w: cards must be active", errs.ErrInvalidTransfer)
		}
		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s", errs.ErrInsufficientFunds, from.Balance, amount)
		}

		if err := tx.UpdateBalance(ctx, from.ID, from.Balance.Sub(amount)); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, to.ID, to.Balance.Add(amount))
	})
	if err != nil {
		return err
	}

	s.log.Infof("Transferred %s from card %d to card %d for user %d", amount, fromCardID, toCardID, actingUserID)
	s.notifyTransfer(actingUserID, fromCardID, toCardID, amount)
	return nil
}

// notifyTransfer emails the owner about a completed transfer. Best effort.
func (s *CardService) notifyTransfer(actingUserID, fromCardID, toCardID int64, amount decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	ctx := context.Background()
	user, err := s.users.GetByID(ctx, actingUserID)
	if err != nil || user.Email == "" {
		return
	}
	fromMasked := s.maskedNumberOf(ctx, fromCardID, actingUserID)
	toMasked := s.maskedNumberOf(ctx, toCardID, actingUserID)
	go func() {
		if err := s.notifier.SendTransferNotification(user.Email, user.Username, amount, fromMasked, toMasked); err != nil {
			s.log.WithError(err).Warn("Failed to send transfer notification")
		}
	}()
}

func (s *CardService) maskedNumberOf(ctx context.Context, cardID, ownerID int64) string {
	card, err := s.cards.GetByIDAndOwner(ctx, cardID, ownerID)
	if err != nil {
		return ""
	}
	masked, err := s.codec.DecryptMasked(card.EncryptedNumber)
	if err != nil {
		return ""
	}
	return masked
}

func (s *CardService) setStatus(ctx context.Context, cardID int64, status models.CardStatus) (*models.CardView, error) {
	card, err := s.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := s.cards.UpdateStatus(ctx, cardID, status); err != nil {
		return nil, err
	}
	card.Status = status
	s.log.Infof("Card %d status set to %s", cardID, status)
	return s.maskedView(card)
}

// maskedView builds the external representation of a stored card: the
// number is decrypted only to produce its masked form.
func (s *CardService) maskedView(card *models.Card) (*models.CardView, error) {
	masked, err := s.codec.DecryptMasked(card.EncryptedNumber)
	if err != nil {
		return nil, err
	}
	return s.view(card, masked), nil
}

func (s *CardService) view(card *models.Card, masked string) *models.CardView {
	return &models.CardView{
		ID:      card.ID,
		OwnerID: card.OwnerID,
		Number:  masked,
		Status:  card.Status,
		Expired: card.IsExpired(s.now()),
		Balance: card.Balance,
	}
}
