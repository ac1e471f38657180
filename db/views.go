package db

import (
	"context"

	"github.com/shopspring/decimal"

	"bidtracker/internal/workflow"
	"bidtracker/models"
)

// ClosureList заявки в статусе closure с итогами поставки.
// NULL в агрегатах считается нулём.
func (s *Storage) ClosureList(ctx context.Context) ([]models.ClosureSummary, error) {
	defer s.track("closure_list")()

	rows := []models.ClosureSummary{}
	query := `
        SELECT b.id AS bid_id, b.bid_number, b.study_name, b.client, b.status,
               COALESCE(SUM(par.n_delivered), 0) AS total_delivered,
               COALESCE(SUM(par.quality_rejects), 0) AS total_quality_rejects,
               COALESCE(AVG(COALESCE(par.final_loi, 0)), 0)::numeric AS avg_final_loi,
               COALESCE(AVG(COALESCE(par.final_ir, 0)), 0)::numeric AS avg_final_ir
        FROM bids b
        LEFT JOIN partner_audience_responses par ON par.bid_id = b.id AND par.allocation > 0
        WHERE b.status = $1
        GROUP BY b.id
        ORDER BY b.id DESC`
	if err := s.db.SelectContext(ctx, &rows, query, string(workflow.Closure)); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = rows[i].Rounded()
	}
	return rows, nil
}

// ReadyForInvoiceList заявки, готовые к выставлению счёта, со стоимостью и экономией.
// Учитываются только строки с фактической поставкой.
func (s *Storage) ReadyForInvoiceList(ctx context.Context) ([]models.InvoiceSummary, error) {
	defer s.track("ready_for_invoice_list")()

	rows := []models.InvoiceSummary{}
	query := `
        SELECT b.id AS bid_id, b.bid_number, b.study_name, b.client, b.status,
               COALESCE(po.po_number, '') AS po_number,
               COALESCE(AVG(par.cpi), 0) AS avg_initial_cpi,
               COALESCE(AVG(COALESCE(par.final_cpi, 0)), 0) AS avg_final_cpi,
               COALESCE(AVG(COALESCE(par.final_loi, 0)), 0)::numeric AS avg_final_loi,
               COALESCE(AVG(COALESCE(par.final_ir, 0)), 0)::numeric AS avg_final_ir,
               COALESCE(SUM(par.allocation), 0) AS total_allocation,
               COALESCE(SUM(par.n_delivered), 0) AS total_delivered,
               COALESCE(SUM(COALESCE(par.final_cost, 0)), 0) AS total_final_cost,
               COALESCE(SUM(COALESCE(par.initial_cost, 0) - COALESCE(par.final_cost, 0)), 0) AS total_savings
        FROM bids b
        LEFT JOIN bid_po_numbers po ON po.bid_id = b.id
        LEFT JOIN partner_audience_responses par ON par.bid_id = b.id AND par.n_delivered > 0
        WHERE b.status = $1
        GROUP BY b.id, po.po_number
        ORDER BY b.id DESC`
	if err := s.db.SelectContext(ctx, &rows, query, string(workflow.ReadyForInvoice)); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = rows[i].Rounded()
	}
	return rows, nil
}

// Dashboard сводка по всем заявкам
func (s *Storage) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	defer s.track("dashboard")()

	var counts []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &counts, `SELECT status, COUNT(*) AS count FROM bids GROUP BY status`); err != nil {
		return nil, err
	}

	d := &models.Dashboard{ByStatus: map[string]int{}}
	for _, st := range workflow.All {
		d.ByStatus[string(st)] = 0
	}
	for _, c := range counts {
		d.ByStatus[c.Status] = c.Count
		d.TotalBids += c.Count
		if workflow.Status(c.Status).Active() {
			d.ActiveBids += c.Count
		}
	}

	var savings decimal.Decimal
	query := `SELECT COALESCE(SUM(COALESCE(savings, 0)), 0) FROM partner_audience_responses`
	if err := s.db.GetContext(ctx, &savings, query); err != nil {
		return nil, err
	}
	d.TotalSavings = models.Money(savings)
	return d, nil
}
