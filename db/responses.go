package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bidtracker/internal/reconcile"
	"bidtracker/internal/workflow"
	"bidtracker/models"
)

const (
	responseColumns = `pr.id, pr.bid_id, pr.partner_id, p.partner_name, pr.loi, pr.status, pr.currency, pr.pmf,
        pr.invoice_date, pr.invoice_sent, pr.invoice_serial, pr.invoice_number, pr.invoice_amount,
        pr.created_at, pr.updated_at`
	parColumns = `par.id, par.bid_id, par.partner_response_id, par.audience_id, par.country,
        par.commitment_type, par.commitment, par.is_best_efforts, par.cpi, par.timeline_days, par.comments,
        par.allocation, par.n_delivered, par.quality_rejects, par.final_loi, par.final_ir, par.final_timeline,
        par.final_cpi, par.communication_rating, par.engagement_rating, par.problem_solving_rating,
        par.additional_feedback, par.initial_cost_override, par.final_cost_override,
        par.initial_cost, par.final_cost, par.savings, par.field_close_date, par.updated_at`
)

var (
	errUnknownCountry = errors.New("country is not in audience samples")
	errNegativeCPI    = errors.New("cpi must not be negative")
)

func loadResponses(ctx context.Context, q sqlx.QueryerContext, bidID int64) ([]models.PartnerResponse, error) {
	responses := []models.PartnerResponse{}
	query := `SELECT ` + responseColumns + `
        FROM partner_responses pr
        JOIN partners p ON p.id = pr.partner_id
        WHERE pr.bid_id = $1
        ORDER BY pr.partner_id, pr.loi`
	if err := sqlx.SelectContext(ctx, q, &responses, query, bidID); err != nil {
		return nil, err
	}
	return responses, nil
}

func loadAudienceResponses(ctx context.Context, q sqlx.QueryerContext, bidID int64) ([]models.PartnerAudienceResponse, error) {
	pars := []models.PartnerAudienceResponse{}
	query := `SELECT ` + parColumns + `
        FROM partner_audience_responses par
        WHERE par.bid_id = $1
        ORDER BY par.partner_response_id, par.audience_id, par.id`
	if err := sqlx.SelectContext(ctx, q, &pars, query, bidID); err != nil {
		return nil, err
	}
	return pars, nil
}

// GetPartnerResponses журнал ответов: партнёр x LOI -> аудитория -> страна
func (s *Storage) GetPartnerResponses(ctx context.Context, bidID int64) (*models.ResponseLedger, error) {
	defer s.track("get_partner_responses")()

	if err := bidExists(ctx, s.db, bidID); err != nil {
		return nil, classify(err)
	}
	audiences, err := loadAudiences(ctx, s.db, bidID)
	if err != nil {
		return nil, err
	}
	responses, err := loadResponses(ctx, s.db, bidID)
	if err != nil {
		return nil, err
	}
	pars, err := loadAudienceResponses(ctx, s.db, bidID)
	if err != nil {
		return nil, err
	}

	type key struct {
		responseID int64
		audienceID int64
	}
	byCell := map[key][]models.PartnerAudienceResponse{}
	for _, par := range pars {
		k := key{par.PartnerResponseID, par.AudienceID}
		byCell[k] = append(byCell[k], par)
	}

	ledger := &models.ResponseLedger{BidID: bidID, Responses: make([]models.LedgerResponse, 0, len(responses))}
	for _, r := range responses {
		lr := models.LedgerResponse{PartnerResponse: r, Audiences: []models.LedgerAudience{}}
		for i, a := range audiences {
			rows := byCell[key{r.ID, a.ID}]
			la := models.LedgerAudience{
				AudienceID:   a.ID,
				Key:          reconcile.AudienceKey(i),
				AudienceName: a.AudienceName,
				Countries:    []models.PartnerAudienceResponse{},
			}
			if len(rows) > 0 {
				la.Timeline = rows[0].TimelineDays
				la.Comments = rows[0].Comments
				la.Countries = rows
			}
			lr.Audiences = append(lr.Audiences, la)
		}
		ledger.Responses = append(ledger.Responses, lr)
	}
	return ledger, nil
}

// UpsertPartnerResponses массовая запись ответов в одной транзакции.
// Повтор с тем же телом не создаёт новых строк.
func (s *Storage) UpsertPartnerResponses(ctx context.Context, bidID int64, in *models.PartnerResponsesInput) (*models.ResponseLedger, error) {
	err := s.withTx(ctx, "upsert_partner_responses", func(tx *sqlx.Tx) error {
		if err := lockBid(ctx, tx, bidID, workflow.RecordResponses); err != nil {
			return err
		}
		cells, err := loadCells(ctx, tx, bidID)
		if err != nil {
			return err
		}
		for _, r := range in.Responses {
			if _, err := upsertResponseTx(ctx, tx, bidID, cells, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPartnerResponses(ctx, bidID)
}

type cellRef struct {
	audienceID int64
	country    string
}

// loadCells квоты заявки: (аудитория, страна) -> best-efforts
func loadCells(ctx context.Context, q sqlx.QueryerContext, bidID int64) (map[cellRef]bool, error) {
	var samples []models.CountrySample
	query := `SELECT id, bid_id, audience_id, country, sample_size, is_best_efforts FROM bid_audience_countries WHERE bid_id = $1`
	if err := sqlx.SelectContext(ctx, q, &samples, query, bidID); err != nil {
		return nil, err
	}
	cells := make(map[cellRef]bool, len(samples))
	for _, cs := range samples {
		cells[cellRef{cs.AudienceID, cs.Country}] = cs.IsBestEfforts
	}
	return cells, nil
}

// lockBid блокирует заявку до конца транзакции и проверяет, что её статус допускает op
func lockBid(ctx context.Context, tx *sqlx.Tx, bidID int64, op workflow.Operation) error {
	var status string
	if err := tx.GetContext(ctx, &status, `SELECT status FROM bids WHERE id = $1 FOR UPDATE`, bidID); err != nil {
		return err
	}
	return workflow.Guard(status, op)
}

// upsertResponseTx пустые status/currency и отсутствующий pmf не затирают сохранённые
func upsertResponseTx(ctx context.Context, tx *sqlx.Tx, bidID int64, cells map[cellRef]bool, in models.PartnerResponseInput) (int64, error) {
	var responseID int64
	query := `
        INSERT INTO partner_responses (bid_id, partner_id, loi, status, currency, pmf)
        VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'draft'), COALESCE(NULLIF($5, ''), 'USD'), COALESCE($6::numeric, 0))
        ON CONFLICT ON CONSTRAINT partner_responses_key DO UPDATE
        SET status = COALESCE(NULLIF($4, ''), partner_responses.status),
            currency = COALESCE(NULLIF($5, ''), partner_responses.currency),
            pmf = COALESCE($6::numeric, partner_responses.pmf),
            updated_at = NOW()
        RETURNING id`
	if err := tx.QueryRowContext(ctx, query, bidID, in.PartnerID, in.LOI, in.Status, in.Currency, in.PMF).Scan(&responseID); err != nil {
		return 0, err
	}
	if err := fanOutStubs(ctx, tx, bidID); err != nil {
		return 0, err
	}

	parQuery := `
        INSERT INTO partner_audience_responses
            (bid_id, partner_response_id, audience_id, country, commitment_type, commitment, is_best_efforts, cpi)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT ON CONSTRAINT partner_audience_responses_key DO UPDATE
        SET commitment_type = EXCLUDED.commitment_type,
            commitment = EXCLUDED.commitment,
            cpi = EXCLUDED.cpi,
            updated_at = NOW()`
	metaQuery := `
        UPDATE partner_audience_responses
        SET timeline_days = COALESCE($3, timeline_days),
            comments = COALESCE($4, comments),
            updated_at = NOW()
        WHERE partner_response_id = $1 AND audience_id = $2`

	known := map[int64]bool{}
	for cell := range cells {
		known[cell.audienceID] = true
	}
	for _, a := range in.Audiences {
		if !known[a.AudienceID] {
			return 0, invalid(fmt.Errorf("%w: %d", reconcile.ErrUnknownAudience, a.AudienceID))
		}
		for _, c := range a.Countries {
			bestEfforts, ok := cells[cellRef{a.AudienceID, c.Country}]
			if !ok {
				return 0, invalid(fmt.Errorf("%w: audience %d %s", errUnknownCountry, a.AudienceID, c.Country))
			}
			if c.CPI.IsNegative() {
				return 0, invalid(fmt.Errorf("%w: audience %d %s", errNegativeCPI, a.AudienceID, c.Country))
			}
			commitmentType := c.CommitmentType
			if commitmentType == "" {
				commitmentType = models.CommitmentFixed
				if bestEfforts {
					commitmentType = models.CommitmentBeMax
				}
			}
			if _, err := tx.ExecContext(ctx, parQuery, bidID, responseID, a.AudienceID, c.Country,
				commitmentType, c.Commitment, bestEfforts, c.CPI); err != nil {
				return 0, err
			}
		}
		if a.Timeline != nil || a.Comments != nil {
			if _, err := tx.ExecContext(ctx, metaQuery, responseID, a.AudienceID, a.Timeline, a.Comments); err != nil {
				return 0, err
			}
		}
	}
	return responseID, nil
}

// GetProgressSummary сводка заполненности ответов партнёров
func (s *Storage) GetProgressSummary(ctx context.Context, bidID int64) (*models.ProgressSummary, error) {
	defer s.track("get_progress_summary")()

	bid, err := getBid(ctx, s.db, bidID)
	if err != nil {
		return nil, classify(err)
	}
	audiences, err := loadAudiences(ctx, s.db, bidID)
	if err != nil {
		return nil, err
	}

	// updated_at ответа с учётом последней правки его ячеек
	responses := []models.PartnerResponse{}
	query := `
        SELECT pr.id, pr.bid_id, pr.partner_id, p.partner_name, pr.loi, pr.status, pr.currency, pr.pmf,
               pr.invoice_date, pr.invoice_sent, pr.invoice_serial, pr.invoice_number, pr.invoice_amount,
               pr.created_at,
               GREATEST(pr.updated_at, COALESCE(MAX(par.updated_at), pr.updated_at)) AS updated_at
        FROM partner_responses pr
        JOIN partners p ON p.id = pr.partner_id
        LEFT JOIN partner_audience_responses par ON par.partner_response_id = pr.id
        WHERE pr.bid_id = $1
        GROUP BY pr.id, p.partner_name
        ORDER BY pr.partner_id, pr.loi`
	if err := s.db.SelectContext(ctx, &responses, query, bidID); err != nil {
		return nil, err
	}

	pars, err := loadAudienceResponses(ctx, s.db, bidID)
	if err != nil {
		return nil, err
	}
	summary := reconcile.Summarize(*bid, audiences, responses, pars)
	return &summary, nil
}
