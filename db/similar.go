package db

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bidtracker/internal/access"
	"bidtracker/models"
)

const defaultSimilarLimit = 20

// FindSimilarBids прошлые заявки с аудиториями, похожими по категории, широкой категории и режиму.
// Сравнение без учёта регистра по вхождению подстроки; цены партнёров видны только при доступе к заявке.
func (s *Storage) FindSimilarBids(ctx context.Context, in *models.FindSimilarInput, user models.Identity) ([]models.SimilarBid, error) {
	defer s.track("find_similar_bids")()

	limit := in.Limit
	if limit <= 0 {
		limit = defaultSimilarLimit
	}

	var audiences []models.SimilarAudience
	query := `
        SELECT ta.id, ta.bid_id, ta.audience_name, ta.ta_category, ta.broader_category,
               ta.exact_ta_definition, ta.mode, ta.sample_required, ta.ir
        FROM bid_target_audiences ta
        WHERE ta.bid_id IN (
            SELECT DISTINCT m.bid_id FROM bid_target_audiences m
            WHERE ($1::text = '' OR m.ta_category ILIKE '%' || $1::text || '%')
              AND ($2::text = '' OR m.broader_category ILIKE '%' || $2::text || '%')
              AND ($3::text = '' OR m.mode ILIKE '%' || $3::text || '%')
            ORDER BY m.bid_id DESC
            LIMIT $4)
          AND ($1::text = '' OR ta.ta_category ILIKE '%' || $1::text || '%')
          AND ($2::text = '' OR ta.broader_category ILIKE '%' || $2::text || '%')
          AND ($3::text = '' OR ta.mode ILIKE '%' || $3::text || '%')
        ORDER BY ta.bid_id DESC, ta.id`
	if err := s.db.SelectContext(ctx, &audiences, query, in.TACategory, in.BroaderCategory, in.Mode, limit); err != nil {
		return nil, err
	}
	if len(audiences) == 0 {
		return []models.SimilarBid{}, nil
	}

	bidIDs := []int64{}
	for _, a := range audiences {
		if len(bidIDs) == 0 || bidIDs[len(bidIDs)-1] != a.BidID {
			bidIDs = append(bidIDs, a.BidID)
		}
	}

	var bids []models.Bid
	query = `SELECT ` + bidColumns + ` FROM ` + bidFrom + ` WHERE b.id = ANY($1) ORDER BY b.id DESC`
	if err := s.db.SelectContext(ctx, &bids, query, pq.Array(bidIDs)); err != nil {
		return nil, err
	}
	var grants []models.AccessGrant
	if err := s.db.SelectContext(ctx, &grants,
		`SELECT id, bid_id, user_id, team, granted_by, created_at FROM bid_access_grants WHERE bid_id = ANY($1)`,
		pq.Array(bidIDs)); err != nil {
		return nil, err
	}

	result := make([]models.SimilarBid, len(bids))
	index := make(map[int64]int, len(bids))
	visible := []int64{}
	for i, b := range bids {
		result[i] = models.SimilarBid{Bid: b, HasAccess: access.HasAccess(user, b, grants), Audiences: []models.SimilarAudience{}}
		index[b.ID] = i
	}
	for _, a := range audiences {
		i := index[a.BidID]
		a.Partners = []models.SimilarRow{}
		if result[i].HasAccess {
			visible = append(visible, a.AudienceID)
		}
		result[i].Audiences = append(result[i].Audiences, a)
	}

	rows, err := similarRows(ctx, s.db, visible)
	if err != nil {
		return nil, err
	}
	for i := range result {
		for j := range result[i].Audiences {
			a := &result[i].Audiences[j]
			a.Partners = append(a.Partners, rows[a.AudienceID]...)
		}
	}
	return result, nil
}

// similarRows ответы партнёров с ценой по аудиториям
func similarRows(ctx context.Context, q sqlx.QueryerContext, audienceIDs []int64) (map[int64][]models.SimilarRow, error) {
	byAudience := map[int64][]models.SimilarRow{}
	if len(audienceIDs) == 0 {
		return byAudience, nil
	}
	var rows []models.SimilarRow
	query := `
        SELECT par.audience_id, pr.partner_id, p.partner_name, pr.loi, par.country,
               par.commitment_type, par.commitment, par.cpi, par.n_delivered
        FROM partner_audience_responses par
        JOIN partner_responses pr ON pr.id = par.partner_response_id
        JOIN partners p ON p.id = pr.partner_id
        WHERE par.audience_id = ANY($1) AND par.cpi > 0
        ORDER BY par.audience_id, p.partner_name, pr.loi, par.country`
	if err := sqlx.SelectContext(ctx, q, &rows, query, pq.Array(audienceIDs)); err != nil {
		return nil, err
	}
	for _, r := range rows {
		byAudience[r.AudienceID] = append(byAudience[r.AudienceID], r)
	}
	return byAudience, nil
}
