package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bidtracker/internal/reconcile"
	"bidtracker/internal/workflow"
	"bidtracker/models"
)

const allocationRowColumns = `pr.partner_id, p.partner_name, pr.loi, par.audience_id, par.country,
        CASE WHEN par.commitment_type = 'be_max' THEN 'be_max' ELSE 'fixed' END AS commitment_type,
        par.commitment, par.cpi, par.allocation, par.n_delivered`

// findResponse ответ партнёра по (заявка, партнёр, LOI)
func findResponse(ctx context.Context, q sqlx.QueryerContext, bidID, partnerID int64, loi int) (int64, error) {
	var id int64
	query := `SELECT id FROM partner_responses WHERE bid_id = $1 AND partner_id = $2 AND loi = $3`
	if err := sqlx.GetContext(ctx, q, &id, query, bidID, partnerID, loi); err != nil {
		return 0, fmt.Errorf("partner %d loi %d: %w", partnerID, loi, err)
	}
	return id, nil
}

// SetAllocation назначает партнёру часть квоты страны.
// Строка квоты блокируется, чтобы параллельные назначения не превысили её в сумме.
func (s *Storage) SetAllocation(ctx context.Context, bidID int64, in *models.AllocationInput) (*models.AllocationRow, error) {
	row := &models.AllocationRow{}
	err := s.withTx(ctx, "set_allocation", func(tx *sqlx.Tx) error {
		if err := lockBid(ctx, tx, bidID, workflow.Allocate); err != nil {
			return err
		}
		var sample models.CountrySample
		query := `
            SELECT id, bid_id, audience_id, country, sample_size, is_best_efforts
            FROM bid_audience_countries
            WHERE bid_id = $1 AND audience_id = $2 AND country = $3
            FOR UPDATE`
		if err := tx.GetContext(ctx, &sample, query, bidID, in.AudienceID, in.Country); err != nil {
			return err
		}

		var par models.PartnerAudienceResponse
		query = `
            SELECT ` + parColumns + `
            FROM partner_audience_responses par
            JOIN partner_responses pr ON pr.id = par.partner_response_id
            WHERE pr.bid_id = $1 AND pr.partner_id = $2 AND pr.loi = $3
              AND par.audience_id = $4 AND par.country = $5`
		if err := tx.GetContext(ctx, &par, query, bidID, in.PartnerID, in.LOI, in.AudienceID, in.Country); err != nil {
			return err
		}

		var others int
		query = `
            SELECT COALESCE(SUM(allocation), 0)
            FROM partner_audience_responses
            WHERE audience_id = $1 AND country = $2 AND id <> $3`
		if err := tx.GetContext(ctx, &others, query, in.AudienceID, in.Country, par.ID); err != nil {
			return err
		}
		if err := reconcile.CheckAllocation(sample, reconcile.EffectiveType(par), others, in.Allocation); err != nil {
			return invalid(err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE partner_audience_responses SET allocation = $2, updated_at = NOW() WHERE id = $1`,
			par.ID, in.Allocation); err != nil {
			return err
		}

		query = `SELECT ` + allocationRowColumns + `
            FROM partner_audience_responses par
            JOIN partner_responses pr ON pr.id = par.partner_response_id
            JOIN partners p ON p.id = pr.partner_id
            WHERE par.id = $1`
		return tx.GetContext(ctx, row, query, par.ID)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// GetAllocationGrid сетка распределения по всем аудиториям и странам заявки
func (s *Storage) GetAllocationGrid(ctx context.Context, bidID int64) (*models.AllocationGrid, error) {
	defer s.track("get_allocation_grid")()

	if err := bidExists(ctx, s.db, bidID); err != nil {
		return nil, classify(err)
	}
	audiences, err := loadAudiences(ctx, s.db, bidID)
	if err != nil {
		return nil, err
	}

	var rows []models.AllocationRow
	query := `SELECT ` + allocationRowColumns + `
        FROM partner_audience_responses par
        JOIN partner_responses pr ON pr.id = par.partner_response_id
        JOIN partners p ON p.id = pr.partner_id
        WHERE par.bid_id = $1
        ORDER BY pr.partner_id, pr.loi`
	if err := s.db.SelectContext(ctx, &rows, query, bidID); err != nil {
		return nil, err
	}

	byCell := map[cellRef][]models.AllocationRow{}
	for _, r := range rows {
		k := cellRef{r.AudienceID, r.Country}
		byCell[k] = append(byCell[k], r)
	}

	grid := &models.AllocationGrid{BidID: bidID, Audiences: make([]models.AllocationAudience, 0, len(audiences))}
	for i, a := range audiences {
		ga := models.AllocationAudience{
			AudienceID:   a.ID,
			Key:          reconcile.AudienceKey(i),
			AudienceName: a.AudienceName,
			Countries:    make([]models.AllocationCountry, 0, len(a.CountrySamples)),
		}
		for _, cs := range a.CountrySamples {
			gc := models.AllocationCountry{
				Country:       cs.Country,
				SampleSize:    cs.SampleSize,
				IsBestEfforts: cs.IsBestEfforts,
				Rows:          []models.AllocationRow{},
			}
			for _, r := range byCell[cellRef{a.ID, cs.Country}] {
				gc.Allocated += r.Allocation
				gc.Rows = append(gc.Rows, r)
			}
			ga.Countries = append(ga.Countries, gc)
		}
		grid.Audiences = append(grid.Audiences, ga)
	}
	return grid, nil
}

// SaveClosure итоги поля по партнёру и LOI; затрагивает только строки с allocation > 0
func (s *Storage) SaveClosure(ctx context.Context, bidID int64, in *models.ClosureInput) ([]models.CostLine, error) {
	err := s.withTx(ctx, "save_closure", func(tx *sqlx.Tx) error {
		if err := lockBid(ctx, tx, bidID, workflow.RecordClosure); err != nil {
			return err
		}
		responseID, err := findResponse(ctx, tx, bidID, in.PartnerID, in.LOI)
		if err != nil {
			return err
		}
		cells, err := loadCells(ctx, tx, bidID)
		if err != nil {
			return err
		}

		audienceQuery := `
            UPDATE partner_audience_responses
            SET field_close_date = COALESCE($3::date, field_close_date),
                final_loi = COALESCE($4, final_loi),
                final_ir = COALESCE($5, final_ir),
                final_timeline = COALESCE($6, final_timeline),
                communication_rating = COALESCE($7, communication_rating),
                engagement_rating = COALESCE($8, engagement_rating),
                problem_solving_rating = COALESCE($9, problem_solving_rating),
                additional_feedback = COALESCE(NULLIF($10, ''), additional_feedback),
                updated_at = NOW()
            WHERE partner_response_id = $1 AND audience_id = $2 AND allocation > 0`
		countryQuery := `
            UPDATE partner_audience_responses
            SET n_delivered = $4, quality_rejects = $5, updated_at = NOW()
            WHERE partner_response_id = $1 AND audience_id = $2 AND country = $3 AND allocation > 0`

		for _, a := range in.Audiences {
			for _, c := range a.Countries {
				if _, ok := cells[cellRef{a.AudienceID, c.Country}]; !ok {
					return invalid(fmt.Errorf("%w: audience %d %s", errUnknownCountry, a.AudienceID, c.Country))
				}
			}
			if _, err := tx.ExecContext(ctx, audienceQuery, responseID, a.AudienceID,
				nullIfEmpty(a.FieldCloseDate), a.FinalLOI, a.FinalIR, a.FinalTimeline,
				a.CommunicationRating, a.EngagementRating, a.ProblemSolvingRating, a.AdditionalFeedback); err != nil {
				return err
			}
			for _, c := range a.Countries {
				if _, err := tx.ExecContext(ctx, countryQuery, responseID, a.AudienceID, c.Country,
					c.NDelivered, c.QualityRejects); err != nil {
					return err
				}
			}
		}
		return recomputeCosts(ctx, tx, responseID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCostLines(ctx, bidID)
}

// SaveInvoice реквизиты счёта и финальные CPI/стоимости по строкам
func (s *Storage) SaveInvoice(ctx context.Context, bidID int64, in *models.InvoiceInput) ([]models.CostLine, error) {
	err := s.withTx(ctx, "save_invoice", func(tx *sqlx.Tx) error {
		if err := lockBid(ctx, tx, bidID, workflow.RecordInvoice); err != nil {
			return err
		}
		responseID, err := findResponse(ctx, tx, bidID, in.PartnerID, in.LOI)
		if err != nil {
			return err
		}

		query := `
            UPDATE partner_responses
            SET invoice_date = COALESCE($2::date, invoice_date),
                invoice_sent = COALESCE($3::date, invoice_sent),
                invoice_serial = COALESCE(NULLIF($4, ''), invoice_serial),
                invoice_number = COALESCE(NULLIF($5, ''), invoice_number),
                invoice_amount = COALESCE($6::numeric, invoice_amount),
                updated_at = NOW()
            WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, responseID, nullIfEmpty(in.InvoiceDate), nullIfEmpty(in.InvoiceSent),
			in.InvoiceSerial, in.InvoiceNumber, in.InvoiceAmount); err != nil {
			return err
		}

		query = `
            UPDATE partner_audience_responses
            SET final_cpi = COALESCE($4::numeric, final_cpi),
                initial_cost_override = COALESCE($5::numeric, initial_cost_override),
                final_cost_override = COALESCE($6::numeric, final_cost_override),
                updated_at = NOW()
            WHERE partner_response_id = $1 AND audience_id = $2 AND country = $3`
		for _, d := range in.Deliverables {
			res, err := tx.ExecContext(ctx, query, responseID, d.AudienceID, d.Country, d.FinalCPI, d.InitialCost, d.FinalCost)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return fmt.Errorf("%w: deliverable audience %d %s", ErrNotFound, d.AudienceID, d.Country)
			}
		}
		return recomputeCosts(ctx, tx, responseID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCostLines(ctx, bidID)
}

// recomputeCosts пересчитывает стоимость и экономию по всем строкам ответа
func recomputeCosts(ctx context.Context, tx *sqlx.Tx, responseID int64) error {
	var rows []struct {
		ID                  int64               `db:"id"`
		NDelivered          int                 `db:"n_delivered"`
		CPI                 decimal.Decimal     `db:"cpi"`
		FinalCPI            decimal.NullDecimal `db:"final_cpi"`
		InitialCostOverride decimal.NullDecimal `db:"initial_cost_override"`
		FinalCostOverride   decimal.NullDecimal `db:"final_cost_override"`
	}
	query := `
        SELECT id, n_delivered, cpi, final_cpi, initial_cost_override, final_cost_override
        FROM partner_audience_responses
        WHERE partner_response_id = $1`
	if err := tx.SelectContext(ctx, &rows, query, responseID); err != nil {
		return err
	}

	update := `UPDATE partner_audience_responses SET initial_cost = $2, final_cost = $3, savings = $4 WHERE id = $1`
	for _, r := range rows {
		c := reconcile.Compute(reconcile.CostInput{
			NDelivered:          r.NDelivered,
			CPI:                 r.CPI,
			FinalCPI:            r.FinalCPI,
			InitialCostOverride: r.InitialCostOverride,
			FinalCostOverride:   r.FinalCostOverride,
		})
		if _, err := tx.ExecContext(ctx, update, r.ID, c.InitialCost, c.FinalCost, c.Savings); err != nil {
			return err
		}
	}
	return nil
}

// GetCostLines строки стоимости по заявке, округлённые для вывода
func (s *Storage) GetCostLines(ctx context.Context, bidID int64) ([]models.CostLine, error) {
	defer s.track("get_cost_lines")()

	if err := bidExists(ctx, s.db, bidID); err != nil {
		return nil, classify(err)
	}
	var lines []models.CostLine
	query := `
        SELECT pr.partner_id, p.partner_name, pr.loi, par.audience_id, par.country,
               par.allocation, par.n_delivered, par.cpi, par.final_cpi,
               par.initial_cost, par.final_cost, par.savings
        FROM partner_audience_responses par
        JOIN partner_responses pr ON pr.id = par.partner_response_id
        JOIN partners p ON p.id = pr.partner_id
        WHERE par.bid_id = $1
        ORDER BY pr.partner_id, pr.loi, par.audience_id, par.country`
	if err := s.db.SelectContext(ctx, &lines, query, bidID); err != nil {
		return nil, err
	}
	out := make([]models.CostLine, len(lines))
	for i, l := range lines {
		out[i] = l.Rounded()
	}
	return out, nil
}
