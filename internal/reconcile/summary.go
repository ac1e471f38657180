package reconcile

import (
	"sort"

	"bidtracker/models"
)

type cellKey struct {
	responseID int64
	audienceID int64
	country    string
}

// Summarize строит сводку заполненности по каждому партнёру и LOI.
// Ячейка без строки ответа считается missing.
func Summarize(bid models.Bid, audiences []models.TargetAudience, responses []models.PartnerResponse, pars []models.PartnerAudienceResponse) models.ProgressSummary {
	cells := make(map[cellKey]models.PartnerAudienceResponse, len(pars))
	for _, p := range pars {
		cells[cellKey{p.PartnerResponseID, p.AudienceID, p.Country}] = p
	}

	out := models.ProgressSummary{
		BidID:     bid.ID,
		BidNumber: bid.BidNumber,
		StudyName: bid.StudyName,
		LOIs:      []int{},
		Partners:  []models.PartnerProgress{},
	}

	loiSet := map[int]struct{}{}
	byPartner := map[int64]*models.PartnerProgress{}
	var order []int64

	for _, r := range responses {
		loiSet[r.LOI] = struct{}{}

		lp := models.LOIProgress{LOI: r.LOI, Audiences: []models.AudienceProgress{}}
		if !r.UpdatedAt.IsZero() {
			updated := r.UpdatedAt
			lp.UpdatedAt = &updated
		}
		for _, a := range audiences {
			ap := models.AudienceProgress{AudienceID: a.ID, AudienceName: a.AudienceName, Countries: []models.CellProgress{}}
			for _, cs := range a.CountrySamples {
				lp.TotalCount++
				cell := models.CellProgress{Name: cs.Country, Type: models.CommitmentFixed, Status: models.CellMissing}
				if cs.IsBestEfforts {
					cell.Type = models.CommitmentBeMax
				}
				if par, ok := cells[cellKey{r.ID, a.ID, cs.Country}]; ok {
					cell.Type = EffectiveType(par)
					if cell.Type == models.CommitmentBeMax {
						lp.BeMaxCount++
					} else if par.Commitment > 0 {
						lp.CommitmentCount++
					}
					if IsComplete(cell.Type, par.Commitment, par.CPI) {
						cell.Status = models.CellComplete
						lp.CompleteCount++
					}
				}
				ap.Countries = append(ap.Countries, cell)
			}
			lp.Audiences = append(lp.Audiences, ap)
		}
		lp.Status = RollupLOI(lp.CompleteCount, lp.TotalCount)

		pp, ok := byPartner[r.PartnerID]
		if !ok {
			pp = &models.PartnerProgress{PartnerID: r.PartnerID, PartnerName: r.PartnerName}
			byPartner[r.PartnerID] = pp
			order = append(order, r.PartnerID)
		}
		pp.LOIs = append(pp.LOIs, lp)
	}

	for _, id := range order {
		pp := byPartner[id]
		sort.Slice(pp.LOIs, func(i, j int) bool { return pp.LOIs[i].LOI < pp.LOIs[j].LOI })
		statuses := make([]string, 0, len(pp.LOIs))
		for _, l := range pp.LOIs {
			statuses = append(statuses, l.Status)
		}
		pp.Status = RollupPartner(statuses)
		switch pp.Status {
		case models.ProgressComplete:
			out.SummaryCounts.Complete++
		case models.ProgressPartial:
			out.SummaryCounts.Partial++
		default:
			out.SummaryCounts.NotStarted++
		}
		out.Partners = append(out.Partners, *pp)
	}

	for loi := range loiSet {
		out.LOIs = append(out.LOIs, loi)
	}
	sort.Ints(out.LOIs)
	return out
}
