package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bidtracker/models"
)

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name       string
		typ        string
		commitment int
		cpi        string
		want       bool
	}{
		{"be_max ignores commitment", models.CommitmentBeMax, 0, "1.5", true},
		{"be_max with commitment", models.CommitmentBeMax, 30, "1.5", true},
		{"be_max without cpi", models.CommitmentBeMax, 30, "0", false},
		{"fixed complete", models.CommitmentFixed, 50, "5", true},
		{"fixed without commitment", models.CommitmentFixed, 0, "5", false},
		{"fixed without cpi", models.CommitmentFixed, 50, "0", false},
		{"empty type treated as fixed", "", 0, "5", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsComplete(tt.typ, tt.commitment, decimal.RequireFromString(tt.cpi)))
		})
	}
}

func TestRollups(t *testing.T) {
	require.Equal(t, models.ProgressComplete, RollupLOI(4, 4))
	require.Equal(t, models.ProgressPartial, RollupLOI(1, 4))
	require.Equal(t, models.ProgressNotStarted, RollupLOI(0, 4))
	require.Equal(t, models.ProgressNotStarted, RollupLOI(0, 0))

	require.Equal(t, models.ProgressComplete, RollupPartner([]string{models.ProgressComplete, models.ProgressComplete}))
	require.Equal(t, models.ProgressPartial, RollupPartner([]string{models.ProgressComplete, models.ProgressNotStarted}))
	require.Equal(t, models.ProgressNotStarted, RollupPartner([]string{models.ProgressNotStarted}))
	require.Equal(t, models.ProgressNotStarted, RollupPartner(nil))
}

func TestSummarize(t *testing.T) {
	bid := models.Bid{ID: 1, BidNumber: "40000", StudyName: "Brand tracker"}
	audiences := []models.TargetAudience{{
		ID:           10,
		AudienceName: "Audience - 1",
		CountrySamples: []models.CountrySample{
			{Country: "USA", SampleSize: 100},
			{Country: "UK", SampleSize: 50, IsBestEfforts: true},
		},
	}}
	responses := []models.PartnerResponse{
		{ID: 100, PartnerID: 7, PartnerName: "Panel A", LOI: 10},
		{ID: 101, PartnerID: 7, PartnerName: "Panel A", LOI: 20},
		{ID: 102, PartnerID: 8, PartnerName: "Panel B", LOI: 10},
	}
	pars := []models.PartnerAudienceResponse{
		{PartnerResponseID: 100, AudienceID: 10, Country: "USA", CommitmentType: "fixed", Commitment: 50, CPI: dec("5")},
		{PartnerResponseID: 100, AudienceID: 10, Country: "UK", CommitmentType: "be_max", CPI: dec("4")},
		{PartnerResponseID: 101, AudienceID: 10, Country: "USA", CommitmentType: "fixed", Commitment: 0, CPI: dec("5")},
		{PartnerResponseID: 101, AudienceID: 10, Country: "UK", CommitmentType: "be_max", CPI: dec("4")},
	}

	s := Summarize(bid, audiences, responses, pars)
	require.Equal(t, []int{10, 20}, s.LOIs)
	require.Len(t, s.Partners, 2)

	a := s.Partners[0]
	require.Equal(t, int64(7), a.PartnerID)
	require.Equal(t, models.ProgressPartial, a.Status)
	require.Equal(t, models.ProgressComplete, a.LOIs[0].Status)
	require.Equal(t, 2, a.LOIs[0].CompleteCount)
	require.Equal(t, 1, a.LOIs[0].BeMaxCount)
	require.Equal(t, 1, a.LOIs[0].CommitmentCount)
	require.Equal(t, models.ProgressPartial, a.LOIs[1].Status)

	b := s.Partners[1]
	require.Equal(t, models.ProgressNotStarted, b.Status)
	require.Equal(t, models.CellMissing, b.LOIs[0].Audiences[0].Countries[0].Status)
	require.Equal(t, models.CommitmentBeMax, b.LOIs[0].Audiences[0].Countries[1].Type)

	require.Equal(t, models.ProgressCounts{Complete: 0, Partial: 1, NotStarted: 1}, s.SummaryCounts)
}
