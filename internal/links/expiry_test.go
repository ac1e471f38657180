package links_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bidtracker/internal/links"
	"bidtracker/internal/notify"
	"bidtracker/models"
)

type fakeStore struct {
	links  []models.ExpiringLink
	warned []string
	within time.Duration
}

func (f *fakeStore) ExpiringLinks(_ context.Context, _ time.Time, within time.Duration) ([]models.ExpiringLink, error) {
	f.within = within
	return f.links, nil
}

func (f *fakeStore) MarkLinkWarned(_ context.Context, token string, _ time.Time) error {
	f.warned = append(f.warned, token)
	return nil
}

type fakeNotifier struct {
	events []notify.Event
	failOn string
}

func (f *fakeNotifier) Notify(_ context.Context, ev notify.Event) error {
	if f.failOn != "" && ev.Recipient == f.failOn {
		return errors.New("mailbox unavailable")
	}
	f.events = append(f.events, ev)
	return nil
}

func expiring(token, email string) models.ExpiringLink {
	return models.ExpiringLink{
		PartnerLink:  models.PartnerLink{Token: token, BidID: 7, PartnerID: 3, ExpiresAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		BidNumber:    "40001",
		ContactEmail: email,
	}
}

func TestSweeperWarnsOncePerLink(t *testing.T) {
	store := &fakeStore{links: []models.ExpiringLink{
		expiring("11111111-aaaa", "a@panel.test"),
		expiring("22222222-bbbb", "b@panel.test"),
	}}
	notifier := &fakeNotifier{}
	s := &links.Sweeper{Store: store, Notifier: notifier, Within: 72 * time.Hour, BaseURL: "https://bids.test/"}

	sent, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sent)
	require.Equal(t, 72*time.Hour, store.within)
	require.Equal(t, []string{"11111111-aaaa", "22222222-bbbb"}, store.warned)
	require.Equal(t, notify.LinkExpiring, notifier.events[0].Kind)
	require.Equal(t, "https://bids.test/partner-link/11111111-aaaa", notifier.events[0].Link)
}

func TestSweeperSkipsFailedNotification(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := &fakeStore{links: []models.ExpiringLink{
		expiring("11111111-aaaa", "down@panel.test"),
		expiring("22222222-bbbb", "b@panel.test"),
	}}
	s := &links.Sweeper{
		Store:    store,
		Notifier: &fakeNotifier{failOn: "down@panel.test"},
		Log:      zap.New(core),
		Within:   time.Hour,
	}

	sent, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Equal(t, []string{"22222222-bbbb"}, store.warned)
	require.Equal(t, 1, logs.FilterMessage("failed to notify about expiring link").Len())
	require.Equal(t, "11111111", logs.All()[0].ContextMap()["token"])
}
