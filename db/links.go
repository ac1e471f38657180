package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bidtracker/internal/workflow"
	"bidtracker/models"
)

const linkColumns = `token, bid_id, partner_id, expires_at, warned_at, created_at`

// UpsertPartnerLink выпускает новую ссылку для партнёра заявки; прежний токен перестаёт действовать
func (s *Storage) UpsertPartnerLink(ctx context.Context, bidID, partnerID int64, ttl time.Duration) (*models.PartnerLink, error) {
	link := &models.PartnerLink{}
	err := s.withTx(ctx, "upsert_partner_link", func(tx *sqlx.Tx) error {
		if err := partnerOnBid(ctx, tx, bidID, partnerID); err != nil {
			return err
		}
		query := `
            INSERT INTO partner_links (token, bid_id, partner_id, expires_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT ON CONSTRAINT partner_links_key DO UPDATE
            SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at,
                warned_at = NULL, created_at = NOW()
            RETURNING ` + linkColumns
		return tx.GetContext(ctx, link, query, uuid.NewString(), bidID, partnerID, s.now().Add(ttl))
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ExtendPartnerLink продлевает существующую ссылку до now+ttl
func (s *Storage) ExtendPartnerLink(ctx context.Context, bidID, partnerID int64, ttl time.Duration) (*models.PartnerLink, error) {
	defer s.track("extend_partner_link")()

	link := &models.PartnerLink{}
	query := `
        UPDATE partner_links
        SET expires_at = $3, warned_at = NULL
        WHERE bid_id = $1 AND partner_id = $2
        RETURNING ` + linkColumns
	if err := s.db.GetContext(ctx, link, query, bidID, partnerID, s.now().Add(ttl)); err != nil {
		return nil, classify(err)
	}
	return link, nil
}

// ResolvePartnerLink неизвестный токен -> ErrNotFound, просроченный -> ErrLinkExpired
func (s *Storage) ResolvePartnerLink(ctx context.Context, token string) (*models.PartnerLink, error) {
	return resolveLink(ctx, s.db, token, s.now())
}

func resolveLink(ctx context.Context, q sqlx.QueryerContext, token string, now time.Time) (*models.PartnerLink, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, fmt.Errorf("%w: malformed token", ErrNotFound)
	}
	link := &models.PartnerLink{}
	if err := sqlx.GetContext(ctx, q, link, `SELECT `+linkColumns+` FROM partner_links WHERE token = $1`, token); err != nil {
		return nil, classify(err)
	}
	if link.Expired(now) {
		return nil, fmt.Errorf("%w: expired at %s", ErrLinkExpired, link.ExpiresAt.Format(time.RFC3339))
	}
	return link, nil
}

func partnerOnBid(ctx context.Context, q sqlx.QueryerContext, bidID, partnerID int64) error {
	var n int
	query := `SELECT COUNT(*) FROM partner_responses WHERE bid_id = $1 AND partner_id = $2`
	if err := sqlx.GetContext(ctx, q, &n, query, bidID, partnerID); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: partner %d is not on bid %d", ErrNotFound, partnerID, bidID)
	}
	return nil
}

// GetPartnerForm данные формы партнёра по действующему токену
func (s *Storage) GetPartnerForm(ctx context.Context, token string) (*models.PartnerForm, error) {
	defer s.track("get_partner_form")()

	link, err := resolveLink(ctx, s.db, token, s.now())
	if err != nil {
		return nil, err
	}
	bid, err := getBid(ctx, s.db, link.BidID)
	if err != nil {
		return nil, classify(err)
	}
	partner, err := getPartner(ctx, s.db, link.PartnerID)
	if err != nil {
		return nil, classify(err)
	}
	audiences, err := loadAudiences(ctx, s.db, link.BidID)
	if err != nil {
		return nil, err
	}
	responses, err := loadResponses(ctx, s.db, link.BidID)
	if err != nil {
		return nil, err
	}
	pars, err := loadAudienceResponses(ctx, s.db, link.BidID)
	if err != nil {
		return nil, err
	}

	form := &models.PartnerForm{
		BidID:             bid.ID,
		BidNumber:         bid.BidNumber,
		StudyName:         bid.StudyName,
		Methodology:       bid.Methodology,
		Partner:           *partner,
		ExpiresAt:         link.ExpiresAt,
		LOIs:              []int{},
		Audiences:         audiences,
		Responses:         []models.PartnerResponse{},
		AudienceResponses: []models.PartnerAudienceResponse{},
	}
	own := map[int64]bool{}
	for _, r := range responses {
		if r.PartnerID != link.PartnerID {
			continue
		}
		own[r.ID] = true
		form.Responses = append(form.Responses, r)
		form.LOIs = append(form.LOIs, r.LOI)
	}
	sort.Ints(form.LOIs)
	for _, par := range pars {
		if own[par.PartnerResponseID] {
			form.AudienceResponses = append(form.AudienceResponses, par)
		}
	}
	return form, nil
}

// SubmitPartnerForm сохраняет ответ партнёра по ссылке; принимаются только LOI, уже привязанные к заявке
func (s *Storage) SubmitPartnerForm(ctx context.Context, token string, in *models.PartnerFormInput) (*models.PartnerLink, error) {
	var link *models.PartnerLink
	err := s.withTx(ctx, "submit_partner_form", func(tx *sqlx.Tx) error {
		var err error
		if link, err = resolveLink(ctx, tx, token, s.now()); err != nil {
			return err
		}
		if err := lockBid(ctx, tx, link.BidID, workflow.RecordResponses); err != nil {
			return err
		}
		cells, err := loadCells(ctx, tx, link.BidID)
		if err != nil {
			return err
		}
		for _, l := range in.LOIs {
			if _, err := findResponse(ctx, tx, link.BidID, link.PartnerID, l.LOI); errors.Is(err, sql.ErrNoRows) {
				return invalid(fmt.Errorf("loi %d is not requested from this partner", l.LOI))
			} else if err != nil {
				return err
			}
			r := models.PartnerResponseInput{
				PartnerID: link.PartnerID,
				LOI:       l.LOI,
				Status:    models.ResponseSubmitted,
				Currency:  in.Currency,
				PMF:       in.PMF,
				Audiences: l.Audiences,
			}
			if _, err := upsertResponseTx(ctx, tx, link.BidID, cells, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ExpiringLinks ссылки, истекающие в окне within и ещё не предупреждённые
func (s *Storage) ExpiringLinks(ctx context.Context, now time.Time, within time.Duration) ([]models.ExpiringLink, error) {
	defer s.track("expiring_links")()

	links := []models.ExpiringLink{}
	query := `
        SELECT l.token, l.bid_id, l.partner_id, l.expires_at, l.warned_at, l.created_at,
               b.bid_number, b.study_name, p.partner_name, p.contact_email
        FROM partner_links l
        JOIN bids b ON b.id = l.bid_id
        JOIN partners p ON p.id = l.partner_id
        WHERE l.warned_at IS NULL AND l.expires_at > $1 AND l.expires_at <= $2
        ORDER BY l.expires_at`
	if err := s.db.SelectContext(ctx, &links, query, now, now.Add(within)); err != nil {
		return nil, err
	}
	return links, nil
}

func (s *Storage) MarkLinkWarned(ctx context.Context, token string, at time.Time) error {
	defer s.track("mark_link_warned")()

	res, err := s.db.ExecContext(ctx, `UPDATE partner_links SET warned_at = $2 WHERE token = $1`, token, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}
