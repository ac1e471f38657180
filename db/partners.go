package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bidtracker/models"
)

const partnerCodePrefix = "C5i_Partner_"

// CreatePartner добавляет партнёра в справочник с кодом C5i_Partner_<n>
func (s *Storage) CreatePartner(ctx context.Context, in *models.PartnerInput) (*models.Partner, error) {
	query := `
        INSERT INTO partners (partner_code, partner_name, contact_email)
        SELECT $1::text || (COALESCE(MAX(CAST(substring(partner_code FROM '([0-9]+)$') AS BIGINT)), 0) + 1)::text,
               $2, $3
        FROM partners
        WHERE partner_code LIKE $1::text || '%'
        RETURNING id, partner_code, partner_name, contact_email, created_at`

	for attempt := 0; ; attempt++ {
		p := &models.Partner{}
		err := s.withTx(ctx, "create_partner", func(tx *sqlx.Tx) error {
			return tx.GetContext(ctx, p, query, partnerCodePrefix, in.PartnerName, in.ContactEmail)
		})
		if errors.Is(err, ErrDuplicate) && attempt < maxNumberAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create partner: %w", err)
		}
		return p, nil
	}
}

func (s *Storage) ListPartners(ctx context.Context) ([]models.Partner, error) {
	defer s.track("list_partners")()

	partners := []models.Partner{}
	query := `SELECT id, partner_code, partner_name, contact_email, created_at FROM partners ORDER BY id`
	if err := s.db.SelectContext(ctx, &partners, query); err != nil {
		return nil, err
	}
	return partners, nil
}

func getPartner(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Partner, error) {
	p := &models.Partner{}
	query := `SELECT id, partner_code, partner_name, contact_email, created_at FROM partners WHERE id = $1`
	if err := sqlx.GetContext(ctx, q, p, query, id); err != nil {
		return nil, err
	}
	return p, nil
}
