// Package links обслуживает ссылки партнёров: адрес формы и предупреждение об истечении срока.
package links

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bidtracker/internal/notify"
	"bidtracker/models"
)

type Store interface {
	ExpiringLinks(ctx context.Context, now time.Time, within time.Duration) ([]models.ExpiringLink, error)
	MarkLinkWarned(ctx context.Context, token string, at time.Time) error
}

// URL адрес формы партнёра
func URL(baseURL, token string) string {
	return fmt.Sprintf("%s/partner-link/%s", strings.TrimRight(baseURL, "/"), token)
}

// Short укороченный токен для логов
func Short(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}

// Sweeper находит ссылки, срок которых скоро истечёт, и однократно предупреждает о них
type Sweeper struct {
	Store    Store
	Notifier notify.Notifier
	Log      *zap.Logger
	Within   time.Duration
	BaseURL  string
	Now      func() time.Time
}

// Run возвращает число отправленных предупреждений.
// Ссылка, по которой уведомление не ушло, не помечается и попадёт в следующий запуск.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	expiring, err := s.Store.ExpiringLinks(ctx, now, s.Within)
	if err != nil {
		return 0, fmt.Errorf("failed to list expiring links: %w", err)
	}

	sent := 0
	for _, l := range expiring {
		ev := notify.Event{
			Kind:      notify.LinkExpiring,
			BidID:     l.BidID,
			BidNumber: l.BidNumber,
			StudyName: l.StudyName,
			PartnerID: l.PartnerID,
			Recipient: l.ContactEmail,
			ExpiresAt: l.ExpiresAt,
			Link:      URL(s.BaseURL, l.Token),
		}
		if err := s.Notifier.Notify(ctx, ev); err != nil {
			log.Warn("failed to notify about expiring link",
				zap.Int64("bid_id", l.BidID),
				zap.Int64("partner_id", l.PartnerID),
				zap.String("token", Short(l.Token)),
				zap.Error(err))
			continue
		}
		if err := s.Store.MarkLinkWarned(ctx, l.Token, now); err != nil {
			return sent, fmt.Errorf("failed to mark link warned: %w", err)
		}
		sent++
	}

	log.Info("link expiry sweep finished", zap.Int("found", len(expiring)), zap.Int("warned", sent))
	return sent, nil
}
