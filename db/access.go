package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bidtracker/internal/access"
	"bidtracker/models"
)

const requestColumns = `id, bid_id, user_id, user_name, team, status, requested_on, decided_by, decided_at`

func loadGrants(ctx context.Context, q sqlx.QueryerContext, bidID int64) ([]models.AccessGrant, error) {
	var grants []models.AccessGrant
	query := `SELECT id, bid_id, user_id, team, granted_by, created_at FROM bid_access_grants WHERE bid_id = $1`
	if err := sqlx.SelectContext(ctx, q, &grants, query, bidID); err != nil {
		return nil, err
	}
	return grants, nil
}

// HasAccess может ли пользователь видеть заявку и действовать по ней
func (s *Storage) HasAccess(ctx context.Context, bidID int64, user models.Identity) (bool, error) {
	defer s.track("has_access")()

	bid, err := getBid(ctx, s.db, bidID)
	if err != nil {
		return false, classify(err)
	}
	grants, err := loadGrants(ctx, s.db, bidID)
	if err != nil {
		return false, err
	}
	return access.HasAccess(user, *bid, grants), nil
}

// RequestAccess создаёт или переоткрывает запрос доступа.
// notify=true только когда запрос действительно стал pending.
func (s *Storage) RequestAccess(ctx context.Context, bidID int64, user models.Identity) (req *models.AccessRequest, notify bool, err error) {
	err = s.withTx(ctx, "request_access", func(tx *sqlx.Tx) error {
		if err := bidExists(ctx, tx, bidID); err != nil {
			return err
		}

		existing := &models.AccessRequest{}
		query := `SELECT ` + requestColumns + ` FROM bid_access_requests WHERE bid_id = $1 AND user_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, existing, query, bidID, user.UserID); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			existing = nil
		}

		action := access.NextRequestAction(existing)
		switch action {
		case access.RequestCreate:
			req = &models.AccessRequest{}
			query := `
                INSERT INTO bid_access_requests (bid_id, user_id, user_name, team, status)
                VALUES ($1, $2, $3, $4, 'pending')
                ON CONFLICT ON CONSTRAINT bid_access_requests_key DO NOTHING
                RETURNING ` + requestColumns
			err := tx.GetContext(ctx, req, query, bidID, user.UserID, user.Name, user.Team)
			if errors.Is(err, sql.ErrNoRows) {
				// параллельный запрос успел вставить строку первым
				query := `SELECT ` + requestColumns + ` FROM bid_access_requests WHERE bid_id = $1 AND user_id = $2`
				return tx.GetContext(ctx, req, query, bidID, user.UserID)
			}
			if err != nil {
				return err
			}
			notify = action.Notify()
		case access.RequestReopen:
			req = &models.AccessRequest{}
			query := `
                UPDATE bid_access_requests
                SET status = 'pending', user_name = $2, team = $3, requested_on = NOW(),
                    decided_by = '', decided_at = NULL
                WHERE id = $1
                RETURNING ` + requestColumns
			if err := tx.GetContext(ctx, req, query, existing.ID, user.Name, user.Team); err != nil {
				return err
			}
			notify = action.Notify()
		default:
			req = existing
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return req, notify, nil
}

// GrantAccess одобряет запрос и выдаёт пользователю доступ; повторное одобрение ничего не меняет
func (s *Storage) GrantAccess(ctx context.Context, bidID, requestID int64, approver models.Identity) (*models.AccessRequest, error) {
	req := &models.AccessRequest{}
	err := s.withTx(ctx, "grant_access", func(tx *sqlx.Tx) error {
		query := `SELECT ` + requestColumns + ` FROM bid_access_requests WHERE id = $1 AND bid_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, req, query, requestID, bidID); err != nil {
			return err
		}
		if req.Status == models.AccessGranted {
			return nil
		}

		query = `
            UPDATE bid_access_requests
            SET status = 'granted', decided_by = $2, decided_at = NOW()
            WHERE id = $1
            RETURNING ` + requestColumns
		if err := tx.GetContext(ctx, req, query, requestID, approver.UserID); err != nil {
			return err
		}
		query = `
            INSERT INTO bid_access_grants (bid_id, user_id, team, granted_by)
            VALUES ($1, $2, '', $3)
            ON CONFLICT ON CONSTRAINT bid_access_grants_key DO NOTHING`
		_, err := tx.ExecContext(ctx, query, bidID, req.UserID, approver.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// DenyAccess отклоняет только запрос в статусе pending
func (s *Storage) DenyAccess(ctx context.Context, bidID, requestID int64, approver models.Identity) (*models.AccessRequest, error) {
	req := &models.AccessRequest{}
	err := s.withTx(ctx, "deny_access", func(tx *sqlx.Tx) error {
		query := `SELECT ` + requestColumns + ` FROM bid_access_requests WHERE id = $1 AND bid_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, req, query, requestID, bidID); err != nil {
			return err
		}
		if req.Status != models.AccessPending {
			return fmt.Errorf("%w: %s", ErrRequestState, req.Status)
		}
		query = `
            UPDATE bid_access_requests
            SET status = 'denied', decided_by = $2, decided_at = NOW()
            WHERE id = $1
            RETURNING ` + requestColumns
		return tx.GetContext(ctx, req, query, requestID, approver.UserID)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// RevokeAccess снимает доступ пользователя или команды и удаляет их запросы
func (s *Storage) RevokeAccess(ctx context.Context, bidID int64, userID, team string) (int64, error) {
	var removed int64
	err := s.withTx(ctx, "revoke_access", func(tx *sqlx.Tx) error {
		if err := bidExists(ctx, tx, bidID); err != nil {
			return err
		}
		norm := access.NormalizeTeam(team)
		queries := []string{
			`DELETE FROM bid_access_grants
             WHERE bid_id = $1
               AND (($2 <> '' AND user_id = $2)
                 OR ($3 <> '' AND lower(regexp_replace(team, '\s', '', 'g')) = $3))`,
			`DELETE FROM bid_access_requests
             WHERE bid_id = $1
               AND (($2 <> '' AND user_id = $2)
                 OR ($3 <> '' AND lower(regexp_replace(team, '\s', '', 'g')) = $3))`,
		}
		for _, query := range queries {
			res, err := tx.ExecContext(ctx, query, bidID, userID, norm)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	return removed, err
}

// ListAccessRequests запросы по заявке с нужным статусом
func (s *Storage) ListAccessRequests(ctx context.Context, bidID int64, status string) ([]models.AccessRequest, error) {
	defer s.track("list_access_requests")()

	if err := bidExists(ctx, s.db, bidID); err != nil {
		return nil, classify(err)
	}
	requests := []models.AccessRequest{}
	query := `SELECT ` + requestColumns + ` FROM bid_access_requests WHERE bid_id = $1 AND status = $2 ORDER BY requested_on`
	if err := s.db.SelectContext(ctx, &requests, query, bidID, status); err != nil {
		return nil, err
	}
	return requests, nil
}

// ListNotifications ожидающие запросы по заявкам, которые пользователь может одобрить
func (s *Storage) ListNotifications(ctx context.Context, user models.Identity) ([]models.Notification, error) {
	defer s.track("list_notifications")()

	var rows []struct {
		models.Notification
		CreatedBy string `db:"created_by"`
		BidTeam   string `db:"bid_team"`
	}
	query := `
        SELECT r.id, r.bid_id, r.user_id, r.user_name, r.team, r.status, r.requested_on,
               r.decided_by, r.decided_at, b.bid_number, b.study_name,
               b.created_by, b.team AS bid_team
        FROM bid_access_requests r
        JOIN bids b ON b.id = r.bid_id
        WHERE r.status = 'pending'
        ORDER BY r.requested_on DESC`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	grantsByBid := map[int64][]models.AccessGrant{}
	out := []models.Notification{}
	for _, r := range rows {
		grants, ok := grantsByBid[r.BidID]
		if !ok {
			var err error
			if grants, err = loadGrants(ctx, s.db, r.BidID); err != nil {
				return nil, err
			}
			grantsByBid[r.BidID] = grants
		}
		bid := models.Bid{ID: r.BidID, CreatedBy: r.CreatedBy, Team: r.BidTeam}
		if access.HasAccess(user, bid, grants) {
			out = append(out, r.Notification)
		}
	}
	return out, nil
}
