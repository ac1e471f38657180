// Package notify точка расширения для уведомлений о событиях заявки.
// Доставка писем не гарантируется: ошибки отправки только логируются вызывающим.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	AccessRequested Kind = "access_requested"
	AccessGranted   Kind = "access_granted"
	LinkExpiring    Kind = "link_expiring"
)

// Event событие для уведомления
type Event struct {
	Kind      Kind
	BidID     int64
	BidNumber string
	StudyName string
	UserID    string
	UserName  string
	Team      string
	// Recipient адрес получателя, если известен
	Recipient string
	PartnerID int64
	ExpiresAt time.Time
	Link      string
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Subject тема письма для события
func (e Event) Subject() string {
	switch e.Kind {
	case AccessRequested:
		return fmt.Sprintf("Access requested for bid %s", e.BidNumber)
	case AccessGranted:
		return fmt.Sprintf("Access granted to bid %s", e.BidNumber)
	case LinkExpiring:
		return fmt.Sprintf("Partner link for bid %s expires soon", e.BidNumber)
	default:
		return fmt.Sprintf("Bid %s update", e.BidNumber)
	}
}

// Body текст письма
func (e Event) Body() string {
	switch e.Kind {
	case AccessRequested:
		return fmt.Sprintf("%s (%s, team %s) requested access to bid %s %q.", e.UserName, e.UserID, e.Team, e.BidNumber, e.StudyName)
	case AccessGranted:
		return fmt.Sprintf("Access to bid %s %q was granted to %s.", e.BidNumber, e.StudyName, e.UserID)
	case LinkExpiring:
		return fmt.Sprintf("The response link for partner %d on bid %s expires at %s: %s", e.PartnerID, e.BidNumber, e.ExpiresAt.Format(time.RFC3339), e.Link)
	default:
		return e.Subject()
	}
}

// LogNotifier пишет события в лог
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.log.Info("notification",
		zap.String("kind", string(ev.Kind)),
		zap.Int64("bid_id", ev.BidID),
		zap.String("bid_number", ev.BidNumber),
		zap.String("user_id", ev.UserID),
		zap.Int64("partner_id", ev.PartnerID),
		zap.String("subject", ev.Subject()),
	)
	return nil
}
