package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bidtracker/internal/reconcile"
	"bidtracker/models"
)

const audienceColumns = `id, bid_id, audience_name, ta_category, broader_category, exact_ta_definition,
        mode, sample_required, ir, comments, is_best_efforts, created_at`

// loadAudiences аудитории заявки по порядку создания вместе с квотами по странам
func loadAudiences(ctx context.Context, q sqlx.QueryerContext, bidID int64) ([]models.TargetAudience, error) {
	audiences := []models.TargetAudience{}
	query := `SELECT ` + audienceColumns + ` FROM bid_target_audiences WHERE bid_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, q, &audiences, query, bidID); err != nil {
		return nil, err
	}

	var samples []models.CountrySample
	query = `
        SELECT id, bid_id, audience_id, country, sample_size, is_best_efforts
        FROM bid_audience_countries
        WHERE bid_id = $1
        ORDER BY audience_id, id`
	if err := sqlx.SelectContext(ctx, q, &samples, query, bidID); err != nil {
		return nil, err
	}

	idx := make(map[int64]int, len(audiences))
	for i := range audiences {
		audiences[i].CountrySamples = []models.CountrySample{}
		idx[audiences[i].ID] = i
	}
	for _, cs := range samples {
		if i, ok := idx[cs.AudienceID]; ok {
			audiences[i].CountrySamples = append(audiences[i].CountrySamples, cs)
		}
	}
	return audiences, nil
}

func insertAudience(ctx context.Context, tx *sqlx.Tx, bidID int64, a models.AudienceInput) (int64, error) {
	var id int64
	query := `
        INSERT INTO bid_target_audiences
            (bid_id, ta_category, broader_category, exact_ta_definition, mode,
             sample_required, ir, comments, is_best_efforts)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id`
	err := tx.QueryRowContext(ctx, query, bidID, a.TACategory, a.BroaderCategory, a.ExactTADefinition,
		a.Mode, a.SampleRequired, a.IR, a.Comments, a.IsBestEfforts).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, insertCountries(ctx, tx, bidID, id, a.CountrySamples)
}

func updateAudience(ctx context.Context, tx *sqlx.Tx, bidID, id int64, a models.AudienceInput) error {
	query := `
        UPDATE bid_target_audiences
        SET ta_category = $3, broader_category = $4, exact_ta_definition = $5, mode = $6,
            sample_required = $7, ir = $8, comments = $9, is_best_efforts = $10
        WHERE id = $1 AND bid_id = $2`
	if _, err := tx.ExecContext(ctx, query, id, bidID, a.TACategory, a.BroaderCategory,
		a.ExactTADefinition, a.Mode, a.SampleRequired, a.IR, a.Comments, a.IsBestEfforts); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bid_audience_countries WHERE audience_id = $1`, id); err != nil {
		return err
	}
	return insertCountries(ctx, tx, bidID, id, a.CountrySamples)
}

func insertCountries(ctx context.Context, tx *sqlx.Tx, bidID, audienceID int64, samples []models.CountrySampleInput) error {
	query := `
        INSERT INTO bid_audience_countries (bid_id, audience_id, country, sample_size, is_best_efforts)
        VALUES ($1, $2, $3, $4, $5)`
	for _, cs := range samples {
		if _, err := tx.ExecContext(ctx, query, bidID, audienceID, cs.Country, cs.SampleSize, cs.IsBestEfforts); err != nil {
			return err
		}
	}
	return nil
}

// deleteAudiences сначала ответы партнёров, затем квоты, затем сами аудитории
func deleteAudiences(ctx context.Context, tx *sqlx.Tx, bidID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, query := range []string{
		`DELETE FROM partner_audience_responses WHERE bid_id = $1 AND audience_id = ANY($2)`,
		`DELETE FROM bid_audience_countries WHERE bid_id = $1 AND audience_id = ANY($2)`,
		`DELETE FROM bid_target_audiences WHERE bid_id = $1 AND id = ANY($2)`,
	} {
		if _, err := tx.ExecContext(ctx, query, bidID, pq.Array(ids)); err != nil {
			return err
		}
	}
	return nil
}

// dropOrphanResponses удаляет ответы по странам, которых больше нет в квотах
func dropOrphanResponses(ctx context.Context, tx *sqlx.Tx, bidID int64) error {
	query := `
        DELETE FROM partner_audience_responses par
        WHERE par.bid_id = $1
          AND NOT EXISTS (
              SELECT 1 FROM bid_audience_countries c
              WHERE c.audience_id = par.audience_id AND c.country = par.country
          )`
	_, err := tx.ExecContext(ctx, query, bidID)
	return err
}

// renumberAudiences имена "Audience - n" по порядку id
func renumberAudiences(ctx context.Context, tx *sqlx.Tx, bidID int64) error {
	var ids []int64
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM bid_target_audiences WHERE bid_id = $1 ORDER BY id`, bidID); err != nil {
		return err
	}
	names := make([]string, len(ids))
	for i := range ids {
		names[i] = reconcile.DisplayName(i + 1)
	}
	query := `
        UPDATE bid_target_audiences a
        SET audience_name = n.name
        FROM unnest($2::bigint[], $3::text[]) AS n(id, name)
        WHERE a.id = n.id AND a.bid_id = $1 AND a.audience_name IS DISTINCT FROM n.name`
	_, err := tx.ExecContext(ctx, query, bidID, pq.Array(ids), pq.Array(names))
	return err
}

// checkAllocations после замены квот сумма распределений fixed-строк
// не должна превышать новый sample_size страны
func checkAllocations(ctx context.Context, tx *sqlx.Tx, bidID int64) error {
	var rows []struct {
		models.CountrySample
		Allocated int `db:"allocated"`
	}
	query := `
        SELECT c.id, c.bid_id, c.audience_id, c.country, c.sample_size, c.is_best_efforts,
               COALESCE(SUM(par.allocation) FILTER (WHERE par.commitment_type <> 'be_max'), 0) AS allocated
        FROM bid_audience_countries c
        LEFT JOIN partner_audience_responses par ON par.audience_id = c.audience_id AND par.country = c.country
        WHERE c.bid_id = $1
        GROUP BY c.id`
	if err := tx.SelectContext(ctx, &rows, query, bidID); err != nil {
		return err
	}
	for _, r := range rows {
		if err := reconcile.CheckAllocation(r.CountrySample, models.CommitmentFixed, 0, r.Allocated); err != nil {
			return invalid(err)
		}
	}
	return nil
}

// associatePartners создаёт пустые ответы для каждой пары партнёр x LOI
func associatePartners(ctx context.Context, tx *sqlx.Tx, bidID int64, partners []int64, lois []int) error {
	query := `
        INSERT INTO partner_responses (bid_id, partner_id, loi, status, currency)
        VALUES ($1, $2, $3, 'draft', 'USD')
        ON CONFLICT ON CONSTRAINT partner_responses_key DO NOTHING`
	for _, p := range partners {
		for _, loi := range lois {
			if _, err := tx.ExecContext(ctx, query, bidID, p, loi); err != nil {
				return err
			}
		}
	}
	return nil
}

// fanOutStubs заготовка ответа на каждую ячейку ответ x аудитория x страна
func fanOutStubs(ctx context.Context, tx sqlx.ExecerContext, bidID int64) error {
	query := `
        INSERT INTO partner_audience_responses
            (bid_id, partner_response_id, audience_id, country, commitment_type, is_best_efforts)
        SELECT pr.bid_id, pr.id, c.audience_id, c.country,
               CASE WHEN c.is_best_efforts THEN 'be_max' ELSE 'fixed' END,
               c.is_best_efforts
        FROM partner_responses pr
        JOIN bid_audience_countries c ON c.bid_id = pr.bid_id
        WHERE pr.bid_id = $1
        ON CONFLICT ON CONSTRAINT partner_audience_responses_key DO NOTHING`
	_, err := tx.ExecContext(ctx, query, bidID)
	return err
}
