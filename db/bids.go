package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bidtracker/internal/access"
	"bidtracker/internal/reconcile"
	"bidtracker/internal/workflow"
	"bidtracker/models"
)

const (
	firstBidNumber    = 40000
	maxNumberAttempts = 5
	bidColumns        = `b.id, b.bid_number, b.bid_date, b.study_name, b.methodology, b.status, b.client,
        b.sales_contact, b.vm_contact, b.project_requirement, b.created_by, b.team,
        b.rejection_reason, b.rejection_comments, b.version, b.created_at, b.updated_at,
        COALESCE(po.po_number, '') AS po_number`
	bidFrom = `bids b LEFT JOIN bid_po_numbers po ON po.bid_id = b.id`
)

// NextBidNumber следующий номер заявки: максимум числовых номеров + 1, не меньше 40000
func (s *Storage) NextBidNumber(ctx context.Context) (string, error) {
	return nextBidNumber(ctx, s.db)
}

func nextBidNumber(ctx context.Context, q sqlx.QueryerContext) (string, error) {
	var next int64
	query := `
        SELECT GREATEST(COALESCE(MAX(CAST(bid_number AS BIGINT)), 0) + 1, $1)
        FROM bids
        WHERE bid_number ~ '^[0-9]+$'`
	if err := sqlx.GetContext(ctx, q, &next, query, firstBidNumber); err != nil {
		return "", fmt.Errorf("next bid number: %w", err)
	}
	return fmt.Sprint(next), nil
}

// CreateBid создаёт заявку со всеми аудиториями, квотами и связками партнёр x LOI.
// Сгенерированный номер при гонке перевыбирается; явно переданный дубликат даёт ErrDuplicate.
func (s *Storage) CreateBid(ctx context.Context, in *models.BidInput, owner models.Identity) (*models.Bid, error) {
	if err := reconcile.ValidateAudiences(in.Audiences); err != nil {
		return nil, invalid(err)
	}

	generated := in.BidNumber == ""
	for attempt := 0; ; attempt++ {
		var bid *models.Bid
		err := s.withTx(ctx, "create_bid", func(tx *sqlx.Tx) error {
			number := in.BidNumber
			if generated {
				var err error
				if number, err = nextBidNumber(ctx, tx); err != nil {
					return err
				}
			}

			var id int64
			query := `
                INSERT INTO bids
                    (bid_number, bid_date, study_name, methodology, status, client,
                     sales_contact, vm_contact, project_requirement, created_by, team, version)
                VALUES
                    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
                RETURNING id`
			err := tx.QueryRowContext(ctx, query,
				number, nullIfEmpty(in.BidDate), in.StudyName, in.Methodology, string(workflow.Draft), in.Client,
				in.SalesContact, in.VMContact, in.ProjectRequirement, owner.UserID, owner.Team).
				Scan(&id)
			if err != nil {
				if generated && isConstraint(err, "bids_bid_number_key") {
					return errRetryNumber
				}
				return err
			}

			for _, a := range in.Audiences {
				if _, err := insertAudience(ctx, tx, id, a); err != nil {
					return err
				}
			}
			if err := renumberAudiences(ctx, tx, id); err != nil {
				return err
			}
			if err := associatePartners(ctx, tx, id, in.Partners, in.LOIs); err != nil {
				return err
			}
			if err := fanOutStubs(ctx, tx, id); err != nil {
				return err
			}

			bid, err = getBid(ctx, tx, id)
			return err
		})
		if errors.Is(err, errRetryNumber) && attempt < maxNumberAttempts {
			continue
		}
		if errors.Is(err, errRetryNumber) {
			return nil, fmt.Errorf("%w: bid_number", ErrDuplicate)
		}
		return bid, err
	}
}

var errRetryNumber = errors.New("generated bid number taken")

// GetBid заявка с номером PO
func (s *Storage) GetBid(ctx context.Context, id int64) (*models.Bid, error) {
	bid, err := getBid(ctx, s.db, id)
	return bid, classify(err)
}

func getBid(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Bid, error) {
	b := &models.Bid{}
	query := `SELECT ` + bidColumns + ` FROM ` + bidFrom + ` WHERE b.id = $1`
	if err := sqlx.GetContext(ctx, q, b, query, id); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBidDetail заявка с аудиториями, квотами и партнёрами
func (s *Storage) GetBidDetail(ctx context.Context, id int64) (*models.BidDetail, error) {
	bid, err := getBid(ctx, s.db, id)
	if err != nil {
		return nil, classify(err)
	}
	audiences, err := loadAudiences(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		models.BidPartner
		LOI int `db:"loi"`
	}
	query := `
        SELECT p.id AS partner_id, p.partner_code, p.partner_name, pr.loi
        FROM partner_responses pr
        JOIN partners p ON p.id = pr.partner_id
        WHERE pr.bid_id = $1
        ORDER BY p.id, pr.loi`
	if err := s.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, err
	}

	detail := &models.BidDetail{Bid: *bid, Audiences: audiences, Partners: []models.BidPartner{}, LOIs: []int{}}
	seenLOI := map[int]bool{}
	for _, r := range rows {
		n := len(detail.Partners)
		if n == 0 || detail.Partners[n-1].PartnerID != r.PartnerID {
			p := r.BidPartner
			p.LOIs = []int{}
			detail.Partners = append(detail.Partners, p)
			n++
		}
		detail.Partners[n-1].LOIs = append(detail.Partners[n-1].LOIs, r.LOI)
		if !seenLOI[r.LOI] {
			seenLOI[r.LOI] = true
			detail.LOIs = append(detail.LOIs, r.LOI)
		}
	}
	sort.Ints(detail.LOIs)
	return detail, nil
}

// ListBids список заявок с признаком доступа для текущего пользователя
func (s *Storage) ListBids(ctx context.Context, filter models.BidFilter, user models.Identity) ([]models.BidListItem, error) {
	args := []interface{}{user.UserID}
	where := ""
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = fmt.Sprintf(" WHERE b.status = $%d", len(args))
	}
	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + bidColumns + `, COALESCE(ar.status, '') AS request_status
        FROM ` + bidFrom + `
        LEFT JOIN bid_access_requests ar ON ar.bid_id = b.id AND ar.user_id = $1` + where +
		fmt.Sprintf(" ORDER BY b.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	items := []models.BidListItem{}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	var grants []models.AccessGrant
	if err := s.db.SelectContext(ctx, &grants,
		`SELECT id, bid_id, user_id, team, granted_by, created_at FROM bid_access_grants WHERE bid_id = ANY($1)`,
		pq.Array(ids)); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].HasAccess = access.HasAccess(user, items[i].Bid, grants)
	}
	return items, nil
}

// UpdateBid обновляет заявку и сверяет набор аудиторий в одной транзакции.
// Порядок: заявка, дочерние записи удаляемых аудиторий, сами аудитории,
// оставшиеся аудитории и их квоты, новые аудитории, заготовки ответов.
func (s *Storage) UpdateBid(ctx context.Context, id int64, in *models.BidInput) (*models.Bid, error) {
	var bid *models.Bid
	err := s.withTx(ctx, "update_bid", func(tx *sqlx.Tx) error {
		var current struct {
			Version int    `db:"version"`
			Status  string `db:"status"`
		}
		if err := tx.GetContext(ctx, &current, `SELECT version, status FROM bids WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if err := workflow.Guard(current.Status, workflow.EditBid); err != nil {
			return err
		}
		if in.Version != nil && *in.Version != current.Version {
			return fmt.Errorf("%w: have %d, got %d", ErrVersionConflict, current.Version, *in.Version)
		}

		query := `
            UPDATE bids
            SET bid_number = COALESCE(NULLIF($2, ''), bid_number),
                bid_date = COALESCE($3::date, bid_date),
                study_name = $4, methodology = $5, client = $6,
                sales_contact = $7, vm_contact = $8, project_requirement = $9,
                version = version + 1, updated_at = NOW()
            WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, id,
			in.BidNumber, nullIfEmpty(in.BidDate), in.StudyName, in.Methodology, in.Client,
			in.SalesContact, in.VMContact, in.ProjectRequirement); err != nil {
			return err
		}

		existing, err := loadAudiences(ctx, tx, id)
		if err != nil {
			return err
		}
		plan, err := reconcile.PlanAudiences(existing, in.Audiences)
		if err != nil {
			return invalid(err)
		}
		if err := deleteAudiences(ctx, tx, id, plan.Delete); err != nil {
			return err
		}
		for _, ch := range plan.Update {
			if err := updateAudience(ctx, tx, id, ch.ID, ch.Input); err != nil {
				return err
			}
		}
		for _, a := range plan.Insert {
			if _, err := insertAudience(ctx, tx, id, a); err != nil {
				return err
			}
		}
		if err := dropOrphanResponses(ctx, tx, id); err != nil {
			return err
		}
		if err := checkAllocations(ctx, tx, id); err != nil {
			return err
		}
		if err := renumberAudiences(ctx, tx, id); err != nil {
			return err
		}
		if err := associatePartners(ctx, tx, id, in.Partners, in.LOIs); err != nil {
			return err
		}
		if err := fanOutStubs(ctx, tx, id); err != nil {
			return err
		}

		bid, err = getBid(ctx, tx, id)
		return err
	})
	return bid, err
}

// TransitionStatus переводит заявку в новый статус; PO прикрепляется upsert-ом
func (s *Storage) TransitionStatus(ctx context.Context, id int64, change models.StatusChange) (*models.Bid, error) {
	var bid *models.Bid
	err := s.withTx(ctx, "transition_status", func(tx *sqlx.Tx) error {
		var current string
		if err := tx.GetContext(ctx, &current, `SELECT status FROM bids WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		to, err := workflow.Transition(current, change.Status)
		if err != nil {
			return err
		}
		if err := workflow.ValidateRejection(to, change.RejectionReason, change.RejectionComments); err != nil {
			return invalid(err)
		}

		reason, comments := "", ""
		if to == workflow.Rejected {
			reason, comments = workflow.CanonicalReason(change.RejectionReason), change.RejectionComments
		}
		query := `
            UPDATE bids
            SET status = $2,
                rejection_reason = CASE WHEN $2 = 'rejected' THEN $3 ELSE rejection_reason END,
                rejection_comments = CASE WHEN $2 = 'rejected' THEN $4 ELSE rejection_comments END,
                version = version + 1, updated_at = NOW()
            WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, id, string(to), reason, comments); err != nil {
			return err
		}

		if change.PONumber != "" {
			query := `
                INSERT INTO bid_po_numbers (bid_id, po_number, updated_at)
                VALUES ($1, $2, NOW())
                ON CONFLICT (bid_id) DO UPDATE SET po_number = EXCLUDED.po_number, updated_at = NOW()`
			if _, err := tx.ExecContext(ctx, query, id, change.PONumber); err != nil {
				return err
			}
		}

		bid, err = getBid(ctx, tx, id)
		return err
	})
	return bid, err
}

func bidExists(ctx context.Context, q sqlx.QueryerContext, id int64) error {
	var found int64
	return sqlx.GetContext(ctx, q, &found, `SELECT id FROM bids WHERE id = $1`, id)
}
