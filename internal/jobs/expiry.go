package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/cardnum"
	"github.com/bankcards/card-service/internal/repository"
)

// Cards expiring within this window trigger a reminder.
const reminderWindowDays = 30

// ExpiringCardStore lists cards close to expiration together with owner
// contact details.
type ExpiringCardStore interface {
	ListExpiring(ctx context.Context, before time.Time) ([]repository.ExpiringCard, error)
}

// ReminderSender delivers expiry reminder emails
type ReminderSender interface {
	SendExpiryReminder(to, username, maskedNumber string, expiration time.Time) error
}

// ExpiryReminder periodically emails owners of cards that are about to
// expire. It never mutates card state: expiration is derived from the date
// at read time, not flipped by a background writer.
type ExpiryReminder struct {
	cards  ExpiringCardStore
	codec  *cardnum.Codec
	sender ReminderSender
	log    *logrus.Logger
	cron   *cron.Cron
}

// NewExpiryReminder initializes the reminder job
func NewExpiryReminder(cards ExpiringCardStore, codec *cardnum.Codec, sender ReminderSender, log *logrus.Logger) *ExpiryReminder {
	return &ExpiryReminder{
		cards:  cards,
		codec:  codec,
		sender: sender,
		log:    log,
		cron:   cron.New(),
	}
}

// Start schedules the job with the given cron expression and begins running
func (j *ExpiryReminder) Start(schedule string) error {
	if _, err := j.cron.AddFunc(schedule, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Infof("Expiry reminder scheduled: %s", schedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish
func (j *ExpiryReminder) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Run performs one reminder sweep
func (j *ExpiryReminder) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	before := time.Now().AddDate(0, 0, reminderWindowDays)
	expiring, err := j.cards.ListExpiring(ctx, before)
	if err != nil {
		j.log.WithError(err).Error("Failed to list expiring cards")
		return
	}

	for _, ec := range expiring {
		masked, err := j.codec.DecryptMasked(ec.EncryptedNumber)
		if err != nil {
			j.log.WithError(err).Errorf("Failed to mask number for card %d", ec.CardID)
			continue
		}
		if err := j.sender.SendExpiryReminder(ec.Email, ec.Username, masked, ec.ExpirationDate); err != nil {
			j.log.WithError(err).Warnf("Failed to send expiry reminder for card %d", ec.CardID)
		}
	}

	j.log.Infof("Expiry reminder sweep finished: %d cards", len(expiring))
}
