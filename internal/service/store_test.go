package service

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/errs"
	"github.com/bankcards/card-service/internal/models"
	"github.com/bankcards/card-service/internal/repository"
)

// fakeCardStore is an in-memory CardStore. InTransferTx mirrors the
// database contract: the callback sees a consistent snapshot, balance
// writes are staged, and nothing is applied unless the callback succeeds.
type fakeCardStore struct {
	mu     sync.Mutex
	nextID int64
	cards  map[int64]*models.Card
}

func newFakeCardStore() *fakeCardStore {
	return &fakeCardStore{cards: make(map[int64]*models.Card)}
}

func (f *fakeCardStore) add(card models.Card) *models.Card {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	card.ID = f.nextID
	f.cards[card.ID] = &card
	copied := card
	return &copied
}

func (f *fakeCardStore) balanceOf(id int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cards[id].Balance
}

func (f *fakeCardStore) Create(ctx context.Context, card *models.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	card.ID = f.nextID
	stored := *card
	f.cards[card.ID] = &stored
	return nil
}

func (f *fakeCardStore) GetByID(ctx context.Context, id int64) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok {
		return nil, errs.ErrCardNotFound
	}
	copied := *card
	return &copied, nil
}

func (f *fakeCardStore) GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok || card.OwnerID != ownerID {
		return nil, errs.ErrCardNotFound
	}
	copied := *card
	return &copied, nil
}

func (f *fakeCardStore) List(ctx context.Context) ([]models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cards []models.Card
	for _, card := range f.cards {
		cards = append(cards, *card)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}

func (f *fakeCardStore) ListByOwner(ctx context.Context, ownerID int64, status *models.CardStatus, page, size int) ([]models.Card, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Card
	for _, card := range f.cards {
		if card.OwnerID != ownerID {
			continue
		}
		if status != nil && card.Status != *status {
			continue
		}
		matched = append(matched, *card)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	start := page * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (f *fakeCardStore) UpdateStatus(ctx context.Context, id int64, status models.CardStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok {
		return errs.ErrCardNotFound
	}
	card.Status = status
	return nil
}

func (f *fakeCardStore) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cards[id]; !ok {
		return errs.ErrCardNotFound
	}
	delete(f.cards, id)
	return nil
}

func (f *fakeCardStore) Exists(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.cards[id]
	return ok, nil
}

func (f *fakeCardStore) InTransferTx(ctx context.Context, fn func(repository.CardTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeCardTx{store: f, staged: make(map[int64]decimal.Decimal)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, balance := range tx.staged {
		f.cards[id].Balance = balance
	}
	return nil
}

type fakeCardTx struct {
	store  *fakeCardStore
	staged map[int64]decimal.Decimal
}

func (t *fakeCardTx) GetForUpdate(ctx context.Context, cardID, ownerID int64) (*models.Card, error) {
	card, ok := t.store.cards[cardID]
	if !ok || card.OwnerID != ownerID {
		return nil, errs.ErrCardNotFound
	}
	copied := *card
	if balance, ok := t.staged[cardID]; ok {
		copied.Balance = balance
	}
	return &copied, nil
}

func (t *fakeCardTx) UpdateBalance(ctx context.Context, cardID int64, balance decimal.Decimal) error {
	if _, ok := t.store.cards[cardID]; !ok {
		return errs.ErrCardNotFound
	}
	t.staged[cardID] = balance
	return nil
}

// fakeUserStore is an in-memory UserStore, UserAdminStore, and
// AuthUserStore.
type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*models.User)}
}

func (f *fakeUserStore) add(user models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	f.users[user.ID] = &user
	copied := user
	return &copied
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == user.Username {
			return errs.ErrUsernameTaken
		}
	}
	f.nextID++
	user.ID = f.nextID
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errs.ErrUserNotFound
}

func (f *fakeUserStore) List(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []models.User
	for _, user := range f.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUserStore) Update(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return errs.ErrUserNotFound
	}
	for _, existing := range f.users {
		if existing.ID != user.ID && existing.Username == user.Username {
			return errs.ErrUsernameTaken
		}
	}
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserStore) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return errs.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) Exists(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[id]
	return ok, nil
}
