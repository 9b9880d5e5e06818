package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankcards/card-service/internal/cardnum"
	"github.com/bankcards/card-service/internal/errs"
	"github.com/bankcards/card-service/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestCardService(t *testing.T) (*CardService, *fakeCardStore, *fakeUserStore, *cardnum.Codec) {
	t.Helper()
	codec, err := cardnum.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	cards := newFakeCardStore()
	users := newFakeUserStore()
	svc := NewCardService(cards, users, codec, nil, testLogger())
	return svc, cards, users, codec
}

func seedCard(t *testing.T, store *fakeCardStore, codec *cardnum.Codec, ownerID int64, number, balance string, status models.CardStatus, expiration time.Time) *models.Card {
	t.Helper()
	encrypted, err := codec.Encrypt(number)
	require.NoError(t, err)
	return store.add(models.Card{
		OwnerID:         ownerID,
		EncryptedNumber: encrypted,
		ExpirationDate:  expiration,
		Status:          status,
		Balance:         dec(balance),
	})
}

func futureDate() time.Time {
	return time.Now().AddDate(2, 0, 0)
}

func TestCreateCard(t *testing.T) {
	svc, _, users, _ := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})

	view, err := svc.CreateCard(context.Background(), owner.ID, "4532015112830366", futureDate(), dec("100.00"))
	require.NoError(t, err)

	assert.NotZero(t, view.ID)
	assert.Equal(t, owner.ID, view.OwnerID)
	assert.Equal(t, "**** **** **** 0366", view.Number)
	assert.Equal(t, models.CardStatusActive, view.Status)
	assert.False(t, view.Expired)
	assert.True(t, view.Balance.Equal(dec("100.00")))
}

func TestCreateCardUnknownOwner(t *testing.T) {
	svc, _, _, _ := newTestCardService(t)

	_, err := svc.CreateCard(context.Background(), 42, "4532015112830366", futureDate(), dec("0"))
	assert.ErrorIs(t, err, errs.ErrUserNotFound)
}

func TestCreateCardRejectsBadNumber(t *testing.T) {
	svc, _, users, _ := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})

	for _, number := range []string{"", "4532015112830367", "411111111111", "not-a-number"} {
		_, err := svc.CreateCard(context.Background(), owner.ID, number, futureDate(), dec("0"))
		assert.ErrorIs(t, err, errs.ErrInvalidCardNumber, "number %q", number)
	}
}

func TestCreateCardRejectsBadBalance(t *testing.T) {
	svc, _, users, _ := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})

	_, err := svc.CreateCard(context.Background(), owner.ID, "4532015112830366", futureDate(), dec("-1.00"))
	assert.ErrorIs(t, err, errs.ErrInvalidCardNumber)

	_, err = svc.CreateCard(context.Background(), owner.ID, "4532015112830366", futureDate(), dec("1.005"))
	assert.ErrorIs(t, err, errs.ErrInvalidCardNumber)
}

func TestTransfer(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	from := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusActive, futureDate())
	to := seedCard(t, cards, codec, owner.ID, "5555555555554444", "50.00", models.CardStatusActive, futureDate())

	err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("60.00"))
	require.NoError(t, err)

	assert.True(t, cards.balanceOf(from.ID).Equal(dec("40.00")))
	assert.True(t, cards.balanceOf(to.ID).Equal(dec("110.00")))
}

func TestTransferInsufficientFunds(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	from := seedCard(t, cards, codec, owner.ID, "4111111111111111", "10.00", models.CardStatusActive, futureDate())
	to := seedCard(t, cards, codec, owner.ID, "5555555555554444", "50.00", models.CardStatusActive, futureDate())

	err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("60.00"))
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)

	// balances unchanged on failure
	assert.True(t, cards.balanceOf(from.ID).Equal(dec("10.00")))
	assert.True(t, cards.balanceOf(to.ID).Equal(dec("50.00")))
}

func TestTransferExactBalanceSucceeds(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	from := seedCard(t, cards, codec, owner.ID, "4111111111111111", "60.00", models.CardStatusActive, futureDate())
	to := seedCard(t, cards, codec, owner.ID, "5555555555554444", "0.00", models.CardStatusActive, futureDate())

	require.NoError(t, svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("60.00")))
	assert.True(t, cards.balanceOf(from.ID).Equal(dec("0.00")))
	assert.True(t, cards.balanceOf(to.ID).Equal(dec("60.00")))
}

func TestTransferSameCard(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	card := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusActive, futureDate())

	err := svc.Transfer(context.Background(), owner.ID, card.ID, card.ID, dec("10.00"))
	assert.ErrorIs(t, err, errs.ErrInvalidTransfer)
}

func TestTransferRejectsBadAmount(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	from := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusActive, futureDate())
	to := seedCard(t, cards, codec, owner.ID, "5555555555554444", "50.00", models.CardStatusActive, futureDate())

	for _, amount := range []string{"0", "-5.00", "0.001", "10.555"} {
		err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec(amount))
		assert.ErrorIs(t, err, errs.ErrInvalidTransfer, "amount %s", amount)
	}

	assert.True(t, cards.balanceOf(from.ID).Equal(dec("100.00")))
	assert.True(t, cards.balanceOf(to.ID).Equal(dec("50.00")))
}

func TestTransferBlockedCard(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	from := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusBlocked, futureDate())
	to := seedCard(t, cards, codec, owner.ID, "5555555555554444", "50.00", models.CardStatusActive, futureDate())

	err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("10.00"))
	assert.ErrorIs(t, err, errs.ErrInvalidTransfer)

	// blocked receiver is just as ineligible
	err = svc.Transfer(context.Background(), owner.ID, to.ID, from.ID, dec("10.00"))
	assert.ErrorIs(t, err, errs.ErrInvalidTransfer)
}

func TestTransferExpiredCard(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	expired := time.Now().AddDate(0, 0, -1)
	from := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusActive, expired)
	to := seedCard(t, cards, codec, owner.ID, "5555555555554444", "50.00", models.CardStatusActive, futureDate())

	err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, dec("10.00"))
	assert.ErrorIs(t, err, errs.ErrInvalidTransfer)
}

func TestTransferForeignCardReadsAsNotFound(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	alice := users.add(models.User{Username: "alice", Role: models.RoleUser})
	bob := users.add(models.User{Username: "bob", Role: models.RoleUser})
	from := seedCard(t, cards, codec, alice.ID, "4111111111111111", "100.00", models.CardStatusActive, futureDate())
	foreign := seedCard(t, cards, codec, bob.ID, "5555555555554444", "50.00", models.CardStatusActive, futureDate())

	// the foreign card exists, but the scoped lookup must not reveal that
	err := svc.Transfer(context.Background(), alice.ID, from.ID, foreign.ID, dec("10.00"))
	assert.ErrorIs(t, err, errs.ErrCardNotFound)

	err = svc.Transfer(context.Background(), alice.ID, foreign.ID, from.ID, dec("10.00"))
	assert.ErrorIs(t, err, errs.ErrCardNotFound)

	assert.True(t, cards.balanceOf(from.ID).Equal(dec("100.00")))
	assert.True(t, cards.balanceOf(foreign.ID).Equal(dec("50.00")))
}

func TestTransferMissingCard(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	from := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusActive, futureDate())

	err := svc.Transfer(context.Background(), owner.ID, from.ID, 999, dec("10.00"))
	assert.ErrorIs(t, err, errs.ErrCardNotFound)
}

func TestConcurrentOpposingTransfers(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	a := seedCard(t, cards, codec, owner.ID, "4111111111111111", "1000.00", models.CardStatusActive, futureDate())
	b := seedCard(t, cards, codec, owner.ID, "5555555555554444", "1000.00", models.CardStatusActive, futureDate())

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, svc.Transfer(context.Background(), owner.ID, a.ID, b.ID, dec("3.00")))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			assert.NoError(t, svc.Transfer(context.Background(), owner.ID, b.ID, a.ID, dec("2.00")))
		}
	}()
	wg.Wait()

	finalA := cards.balanceOf(a.ID)
	finalB := cards.balanceOf(b.ID)
	// every leg applied exactly once, in some serial order
	assert.True(t, finalA.Equal(dec("950.00")), "got %s", finalA)
	assert.True(t, finalB.Equal(dec("1050.00")), "got %s", finalB)
	assert.True(t, finalA.Add(finalB).Equal(dec("2000.00")))
}

func TestBlockAndActivateCard(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	card := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusActive, futureDate())

	view, err := svc.BlockCard(context.Background(), card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardStatusBlocked, view.Status)

	view, err = svc.ActivateCard(context.Background(), card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardStatusActive, view.Status)

	_, err = svc.BlockCard(context.Background(), 999)
	assert.ErrorIs(t, err, errs.ErrCardNotFound)
}

func TestRequestBlock(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	alice := users.add(models.User{Username: "alice", Role: models.RoleUser})
	bob := users.add(models.User{Username: "bob", Role: models.RoleUser})
	card := seedCard(t, cards, codec, alice.ID, "4111111111111111", "100.00", models.CardStatusActive, futureDate())

	// foreign card is an explicit forbidden operation on this path
	_, err := svc.RequestBlock(context.Background(), bob.ID, card.ID)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	view, err := svc.RequestBlock(context.Background(), alice.ID, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardStatusBlocked, view.Status)

	_, err = svc.RequestBlock(context.Background(), alice.ID, 999)
	assert.ErrorIs(t, err, errs.ErrCardNotFound)
}

func TestDeleteCard(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	card := seedCard(t, cards, codec, owner.ID, "4111111111111111", "100.00", models.CardStatusBlocked, futureDate())

	require.NoError(t, svc.DeleteCard(context.Background(), card.ID))

	err := svc.DeleteCard(context.Background(), card.ID)
	assert.ErrorIs(t, err, errs.ErrCardNotFound)
}

func TestGetUserCards(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	alice := users.add(models.User{Username: "alice", Role: models.RoleUser})
	bob := users.add(models.User{Username: "bob", Role: models.RoleUser})

	seedCard(t, cards, codec, alice.ID, "4111111111111111", "1.00", models.CardStatusActive, futureDate())
	seedCard(t, cards, codec, alice.ID, "5555555555554444", "2.00", models.CardStatusBlocked, futureDate())
	seedCard(t, cards, codec, alice.ID, "4532015112830366", "3.00", models.CardStatusActive, futureDate())
	seedCard(t, cards, codec, bob.ID, "6011111111111117", "4.00", models.CardStatusActive, futureDate())

	page, err := svc.GetUserCards(context.Background(), alice.ID, nil, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 3)
	for _, item := range page.Items {
		assert.Equal(t, alice.ID, item.OwnerID)
		assert.Contains(t, item.Number, "**** **** **** ")
	}

	blocked := models.CardStatusBlocked
	page, err = svc.GetUserCards(context.Background(), alice.ID, &blocked, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.CardStatusBlocked, page.Items[0].Status)

	// pagination
	page, err = svc.GetUserCards(context.Background(), alice.ID, nil, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 1)
}

func TestGetAllCardsMasksNumbers(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	seedCard(t, cards, codec, owner.ID, "4111111111111111", "1.00", models.CardStatusActive, futureDate())
	seedCard(t, cards, codec, owner.ID, "5555555555554444", "2.00", models.CardStatusActive, futureDate())

	views, err := svc.GetAllCards(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "**** **** **** 1111", views[0].Number)
	assert.Equal(t, "**** **** **** 4444", views[1].Number)
}

func TestExpiredOverridesActiveStatus(t *testing.T) {
	svc, cards, users, codec := newTestCardService(t)
	owner := users.add(models.User{Username: "alice", Role: models.RoleUser})
	expired := time.Now().AddDate(0, 0, -10)
	seedCard(t, cards, codec, owner.ID, "4111111111111111", "1.00", models.CardStatusActive, expired)

	page, err := svc.GetUserCards(context.Background(), owner.ID, nil, 0, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.CardStatusActive, page.Items[0].Status)
	assert.True(t, page.Items[0].Expired)
}
