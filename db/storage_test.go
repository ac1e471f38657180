package db_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bidtracker/db"
	"bidtracker/db/migrations"
	"bidtracker/internal/workflow"
	"bidtracker/models"
)

// newTestStorage поднимает схему в отдельной БД из TEST_POSTGRES_CONN
func newTestStorage(t *testing.T, opts ...db.Option) (*db.Storage, *sqlx.DB) {
	t.Helper()
	conn := os.Getenv("TEST_POSTGRES_CONN")
	if conn == "" {
		t.Skip("TEST_POSTGRES_CONN not set")
	}
	sqlDB, err := sqlx.Connect("postgres", conn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, migrations.Run(sqlDB.DB))
	_, err = sqlDB.Exec(`TRUNCATE partner_links, bid_access_requests, bid_access_grants,
        partner_audience_responses, partner_responses, partners,
        bid_audience_countries, bid_target_audiences, bid_po_numbers, bids RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db.NewStorage(sqlDB, opts...), sqlDB
}

func createPartner(t *testing.T, s *db.Storage, name string) *models.Partner {
	t.Helper()
	p, err := s.CreatePartner(context.Background(), &models.PartnerInput{PartnerName: name})
	require.NoError(t, err)
	return p
}

func usaBid(partnerID int64) *models.BidInput {
	return &models.BidInput{
		StudyName:   "Study",
		Methodology: "CAWI",
		Client:      "ACME",
		Audiences: []models.AudienceInput{{
			TACategory:     "B2C",
			SampleRequired: 100,
			CountrySamples: []models.CountrySampleInput{{Country: "USA", SampleSize: 100}},
		}},
		Partners: []int64{partnerID},
		LOIs:     []int{10},
	}
}

var owner = models.Identity{UserID: "u-owner", Team: "Ops"}

func TestCostReconciliationScenario(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	bid, err := s.CreateBid(ctx, usaBid(p.ID), owner)
	require.NoError(t, err)
	require.Equal(t, "40000", bid.BidNumber)
	require.Equal(t, "draft", bid.Status)

	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	require.Len(t, detail.Audiences, 1)
	audienceID := detail.Audiences[0].ID
	require.Equal(t, "Audience - 1", detail.Audiences[0].AudienceName)

	_, err = s.UpsertPartnerResponses(ctx, bid.ID, &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
		PartnerID: p.ID,
		LOI:       10,
		Audiences: []models.AudienceResponseInput{{
			AudienceID: audienceID,
			Countries: []models.CountryResponseInput{{
				Country: "USA", CommitmentType: "fixed", Commitment: 50, CPI: decimal.RequireFromString("5.00"),
			}},
		}},
	}}})
	require.NoError(t, err)

	grid, err := s.GetAllocationGrid(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, 0, grid.Audiences[0].Countries[0].Rows[0].Allocation)

	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{
		PartnerID: p.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 50,
	})
	require.NoError(t, err)

	lines, err := s.SaveClosure(ctx, bid.ID, &models.ClosureInput{
		PartnerID: p.ID, LOI: 10,
		Audiences: []models.ClosureAudienceInput{{
			AudienceID: audienceID,
			Countries:  []models.ClosureCountryInput{{Country: "USA", NDelivered: 40}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "200", lines[0].InitialCost.Decimal.String())
	require.False(t, lines[0].FinalCost.Valid)

	finalCPI := decimal.RequireFromString("4.50")
	lines, err = s.SaveInvoice(ctx, bid.ID, &models.InvoiceInput{
		PartnerID: p.ID, LOI: 10,
		Deliverables: []models.InvoiceDeliverableInput{{AudienceID: audienceID, Country: "USA", FinalCPI: &finalCPI}},
	})
	require.NoError(t, err)
	require.Equal(t, "180", lines[0].FinalCost.Decimal.String())
	require.Equal(t, "20", lines[0].Savings.Decimal.String())
}

func TestAllocationCannotExceedQuota(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	p1 := createPartner(t, s, "Panel One")
	p2 := createPartner(t, s, "Panel Two")
	in := usaBid(p1.ID)
	in.Partners = []int64{p1.ID, p2.ID}
	bid, err := s.CreateBid(ctx, in, owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	audienceID := detail.Audiences[0].ID

	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{PartnerID: p1.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 70})
	require.NoError(t, err)

	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{PartnerID: p2.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 40})
	var verr *db.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{PartnerID: p2.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 30})
	require.NoError(t, err)
}

func TestUpsertPartnerResponsesIsIdempotent(t *testing.T) {
	s, sqlDB := newTestStorage(t)
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	bid, err := s.CreateBid(ctx, usaBid(p.ID), owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)

	payload := &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
		PartnerID: p.ID, LOI: 10,
		Audiences: []models.AudienceResponseInput{{
			AudienceID: detail.Audiences[0].ID,
			Countries:  []models.CountryResponseInput{{Country: "USA", Commitment: 10, CPI: decimal.NewFromInt(3)}},
		}},
	}}}
	for i := 0; i < 2; i++ {
		_, err = s.UpsertPartnerResponses(ctx, bid.ID, payload)
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, sqlDB.Get(&n, `SELECT COUNT(*) FROM partner_audience_responses WHERE bid_id = $1`, bid.ID))
	require.Equal(t, 1, n)
}

func TestUpdateBidReconcilesAudiences(t *testing.T) {
	s, sqlDB := newTestStorage(t)
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	in := usaBid(p.ID)
	in.Audiences = append(in.Audiences, models.AudienceInput{
		TACategory:     "B2B",
		CountrySamples: []models.CountrySampleInput{{Country: "UK", SampleSize: 20}, {Country: "DE", SampleSize: 20}},
	})
	bid, err := s.CreateBid(ctx, in, owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	require.Len(t, detail.Audiences, 2)

	var pars int
	require.NoError(t, sqlDB.Get(&pars, `SELECT COUNT(*) FROM partner_audience_responses WHERE bid_id = $1`, bid.ID))
	require.Equal(t, 3, pars)

	// первая аудитория удаляется, у второй остаётся только UK, добавляется новая
	keep := detail.Audiences[1].ID
	version := detail.Version
	update := usaBid(p.ID)
	update.Version = &version
	update.Audiences = []models.AudienceInput{
		{ID: &keep, TACategory: "B2B", CountrySamples: []models.CountrySampleInput{{Country: "UK", SampleSize: 30}}},
		{TACategory: "Doctors", CountrySamples: []models.CountrySampleInput{{Country: "FR", SampleSize: 5, IsBestEfforts: true}}},
	}
	updated, err := s.UpdateBid(ctx, bid.ID, update)
	require.NoError(t, err)
	require.Equal(t, version+1, updated.Version)

	detail, err = s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	require.Len(t, detail.Audiences, 2)
	require.Equal(t, keep, detail.Audiences[0].ID)
	require.Equal(t, "Audience - 1", detail.Audiences[0].AudienceName)
	require.Equal(t, "Audience - 2", detail.Audiences[1].AudienceName)

	var rows []struct {
		Country        string `db:"country"`
		CommitmentType string `db:"commitment_type"`
	}
	require.NoError(t, sqlDB.Select(&rows, `SELECT country, commitment_type FROM partner_audience_responses WHERE bid_id = $1 ORDER BY country`, bid.ID))
	require.Len(t, rows, 2)
	require.Equal(t, "FR", rows[0].Country)
	require.Equal(t, models.CommitmentBeMax, rows[0].CommitmentType)
	require.Equal(t, "UK", rows[1].Country)

	_, err = s.UpdateBid(ctx, bid.ID, update)
	require.ErrorIs(t, err, db.ErrVersionConflict)
}

func TestCreateBidDuplicateNumber(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	in := usaBid(createPartner(t, s, "Panel One").ID)
	in.BidNumber = "41000"
	_, err := s.CreateBid(ctx, in, owner)
	require.NoError(t, err)

	_, err = s.CreateBid(ctx, in, owner)
	require.ErrorIs(t, err, db.ErrDuplicate)

	next, err := s.NextBidNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, "41001", next)
}

func TestPartnerCodesAreSequential(t *testing.T) {
	s, _ := newTestStorage(t)
	for i := 1; i <= 3; i++ {
		p := createPartner(t, s, fmt.Sprintf("Panel %d", i))
		require.Equal(t, fmt.Sprintf("C5i_Partner_%d", i), p.PartnerCode)
	}
}

func TestTransitionStatusStoresCanonicalAndPO(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	bid, err := s.CreateBid(ctx, usaBid(createPartner(t, s, "Panel One").ID), owner)
	require.NoError(t, err)

	got, err := s.TransitionStatus(ctx, bid.ID, models.StatusChange{Status: "in-field", PONumber: "PO-1"})
	require.NoError(t, err)
	require.Equal(t, "infield", got.Status)
	require.Equal(t, "PO-1", got.PONumber)

	got, err = s.TransitionStatus(ctx, bid.ID, models.StatusChange{Status: "infield", PONumber: "PO-2"})
	require.NoError(t, err)
	require.Equal(t, "PO-2", got.PONumber)

	_, err = s.TransitionStatus(ctx, bid.ID, models.StatusChange{Status: "invoiced"})
	require.Error(t, err)
}

func TestRequestAccessTwiceCreatesOnePending(t *testing.T) {
	s, sqlDB := newTestStorage(t)
	ctx := context.Background()

	bid, err := s.CreateBid(ctx, usaBid(createPartner(t, s, "Panel One").ID), owner)
	require.NoError(t, err)

	user := models.Identity{UserID: "u-2", Team: "Sales", Name: "Viewer"}
	_, notify, err := s.RequestAccess(ctx, bid.ID, user)
	require.NoError(t, err)
	require.True(t, notify)

	for i := 0; i < 2; i++ {
		req, notify, err := s.RequestAccess(ctx, bid.ID, user)
		require.NoError(t, err)
		require.False(t, notify)
		require.Equal(t, models.AccessPending, req.Status)
	}

	var n int
	require.NoError(t, sqlDB.Get(&n, `SELECT COUNT(*) FROM bid_access_requests WHERE bid_id = $1`, bid.ID))
	require.Equal(t, 1, n)
}

func TestGrantAndRevokeAccess(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	bid, err := s.CreateBid(ctx, usaBid(createPartner(t, s, "Panel One").ID), owner)
	require.NoError(t, err)
	user := models.Identity{UserID: "u-3", Team: "Sales"}

	ok, err := s.HasAccess(ctx, bid.ID, user)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.HasAccess(ctx, bid.ID, owner)
	require.NoError(t, err)
	require.True(t, ok)

	req, _, err := s.RequestAccess(ctx, bid.ID, user)
	require.NoError(t, err)
	_, err = s.GrantAccess(ctx, bid.ID, req.ID, owner)
	require.NoError(t, err)

	ok, err = s.HasAccess(ctx, bid.ID, user)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.DenyAccess(ctx, bid.ID, req.ID, owner)
	require.ErrorIs(t, err, db.ErrRequestState)

	removed, err := s.RevokeAccess(ctx, bid.ID, user.UserID, "")
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	ok, err = s.HasAccess(ctx, bid.ID, user)
	require.NoError(t, err)
	require.False(t, ok)

	pending, err := s.ListAccessRequests(ctx, bid.ID, models.AccessPending)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPartnerLinkLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s, _ := newTestStorage(t, db.WithClock(clock))
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	bid, err := s.CreateBid(ctx, usaBid(p.ID), owner)
	require.NoError(t, err)

	link, err := s.UpsertPartnerLink(ctx, bid.ID, p.ID, 48*time.Hour)
	require.NoError(t, err)

	form, err := s.GetPartnerForm(ctx, link.Token)
	require.NoError(t, err)
	require.Equal(t, []int{10}, form.LOIs)

	expiring, err := s.ExpiringLinks(ctx, now, 72*time.Hour)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	require.NoError(t, s.MarkLinkWarned(ctx, link.Token, now))
	expiring, err = s.ExpiringLinks(ctx, now, 72*time.Hour)
	require.NoError(t, err)
	require.Empty(t, expiring)

	_, err = s.SubmitPartnerForm(ctx, link.Token, &models.PartnerFormInput{
		LOIs: []models.PartnerFormLOI{{LOI: 20}},
	})
	var verr *db.ValidationError
	require.ErrorAs(t, err, &verr)

	now = now.Add(49 * time.Hour)
	_, err = s.GetPartnerForm(ctx, link.Token)
	require.ErrorIs(t, err, db.ErrLinkExpired)

	_, err = s.GetPartnerForm(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, db.ErrNotFound)
}

// closedBid заявка с двумя партнёрами: у первого поставка 40 из 50, у второго квота 30 без поставки
func closedBid(t *testing.T, s *db.Storage) (bid *models.Bid, audienceID int64, p1, p2 *models.Partner) {
	t.Helper()
	ctx := context.Background()

	p1 = createPartner(t, s, "Panel One")
	p2 = createPartner(t, s, "Panel Two")
	in := usaBid(p1.ID)
	in.Partners = []int64{p1.ID, p2.ID}
	bid, err := s.CreateBid(ctx, in, owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	audienceID = detail.Audiences[0].ID

	for _, r := range []struct {
		partnerID int64
		cpi       string
	}{{p1.ID, "5.00"}, {p2.ID, "6.00"}} {
		_, err = s.UpsertPartnerResponses(ctx, bid.ID, &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
			PartnerID: r.partnerID, LOI: 10,
			Audiences: []models.AudienceResponseInput{{
				AudienceID: audienceID,
				Countries: []models.CountryResponseInput{{
					Country: "USA", CommitmentType: "fixed", Commitment: 50, CPI: decimal.RequireFromString(r.cpi),
				}},
			}},
		}}})
		require.NoError(t, err)
	}
	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{PartnerID: p1.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 50})
	require.NoError(t, err)
	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{PartnerID: p2.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 30})
	require.NoError(t, err)

	for _, st := range []string{"infield", "closure"} {
		_, err = s.TransitionStatus(ctx, bid.ID, models.StatusChange{Status: st, PONumber: "PO-9"})
		require.NoError(t, err)
	}

	finalLOI := 10.0
	_, err = s.SaveClosure(ctx, bid.ID, &models.ClosureInput{
		PartnerID: p1.ID, LOI: 10,
		Audiences: []models.ClosureAudienceInput{{
			AudienceID: audienceID,
			FinalLOI:   &finalLOI,
			Countries:  []models.ClosureCountryInput{{Country: "USA", NDelivered: 40}},
		}},
	})
	require.NoError(t, err)
	return bid, audienceID, p1, p2
}

func TestReportingViews(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	bid, audienceID, p1, _ := closedBid(t, s)

	// у второго партнёра final_loi не заполнен и считается нулём
	closure, err := s.ClosureList(ctx)
	require.NoError(t, err)
	require.Len(t, closure, 1)
	require.Equal(t, bid.ID, closure[0].BidID)
	require.Equal(t, 40, closure[0].TotalDelivered)
	require.Equal(t, "5.00", closure[0].AvgFinalLOI.StringFixed(2))
	require.Equal(t, "0.00", closure[0].AvgFinalIR.StringFixed(2))

	finalCPI := decimal.RequireFromString("4.50")
	_, err = s.SaveInvoice(ctx, bid.ID, &models.InvoiceInput{
		PartnerID: p1.ID, LOI: 10,
		Deliverables: []models.InvoiceDeliverableInput{{AudienceID: audienceID, Country: "USA", FinalCPI: &finalCPI}},
	})
	require.NoError(t, err)
	_, err = s.TransitionStatus(ctx, bid.ID, models.StatusChange{Status: "ready_for_invoice"})
	require.NoError(t, err)

	closure, err = s.ClosureList(ctx)
	require.NoError(t, err)
	require.Empty(t, closure)

	// строка второго партнёра с квотой, но без поставки, в счёт не входит
	ready, err := s.ReadyForInvoiceList(ctx)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	got := ready[0]
	require.Equal(t, "PO-9", got.PONumber)
	require.Equal(t, "5.00", got.AvgInitialCPI.StringFixed(2))
	require.Equal(t, "4.50", got.AvgFinalCPI.StringFixed(2))
	require.Equal(t, "10.00", got.AvgFinalLOI.StringFixed(2))
	require.Equal(t, 50, got.TotalAllocation)
	require.Equal(t, 40, got.TotalDelivered)
	require.Equal(t, "180.00", got.TotalFinalCost.StringFixed(2))
	require.Equal(t, "20.00", got.TotalSavings.StringFixed(2))

	_, err = s.CreateBid(ctx, usaBid(p1.ID), owner)
	require.NoError(t, err)

	dash, err := s.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, dash.TotalBids)
	require.Equal(t, 1, dash.ActiveBids)
	require.Equal(t, 1, dash.ByStatus["ready_for_invoice"])
	require.Equal(t, 1, dash.ByStatus["draft"])
	require.Equal(t, 0, dash.ByStatus["rejected"])
	require.Equal(t, "20.00", dash.TotalSavings.StringFixed(2))
}

func TestInvoicedBidIsFrozen(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	bid, audienceID, p1, p2 := closedBid(t, s)
	for _, st := range []string{"ready_for_invoice", "invoiced"} {
		_, err := s.TransitionStatus(ctx, bid.ID, models.StatusChange{Status: st})
		require.NoError(t, err)
	}

	_, err := s.UpdateBid(ctx, bid.ID, usaBid(p1.ID))
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{PartnerID: p2.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 10})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = s.UpsertPartnerResponses(ctx, bid.ID, &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
		PartnerID: p2.ID, LOI: 10,
		Audiences: []models.AudienceResponseInput{{
			AudienceID: audienceID,
			Countries:  []models.CountryResponseInput{{Country: "USA", Commitment: 60, CPI: decimal.NewFromInt(1)}},
		}},
	}}})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = s.SaveClosure(ctx, bid.ID, &models.ClosureInput{
		PartnerID: p1.ID, LOI: 10,
		Audiences: []models.ClosureAudienceInput{{AudienceID: audienceID, Countries: []models.ClosureCountryInput{{Country: "USA", NDelivered: 45}}}},
	})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = s.TransitionStatus(ctx, bid.ID, models.StatusChange{Status: "invoiced", PONumber: "PO-10"})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	// данные счёта после закрытия ещё можно поправить
	_, err = s.SaveInvoice(ctx, bid.ID, &models.InvoiceInput{PartnerID: p1.ID, LOI: 10, InvoiceNumber: "INV-1"})
	require.NoError(t, err)

	lines, err := s.GetCostLines(ctx, bid.ID)
	require.NoError(t, err)
	for _, l := range lines {
		if l.PartnerID == p1.ID {
			require.Equal(t, 40, l.NDelivered)
		}
	}
}

func TestUpdateBidRejectsSampleBelowAllocation(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	bid, err := s.CreateBid(ctx, usaBid(p.ID), owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	audienceID := detail.Audiences[0].ID

	_, err = s.SetAllocation(ctx, bid.ID, &models.AllocationInput{PartnerID: p.ID, LOI: 10, AudienceID: audienceID, Country: "USA", Allocation: 70})
	require.NoError(t, err)

	update := usaBid(p.ID)
	update.Audiences[0].ID = &audienceID
	update.Audiences[0].CountrySamples[0].SampleSize = 50
	_, err = s.UpdateBid(ctx, bid.ID, update)
	var verr *db.ValidationError
	require.ErrorAs(t, err, &verr)

	detail, err = s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, 100, detail.Audiences[0].CountrySamples[0].SampleSize)
	require.Equal(t, bid.Version, detail.Version)

	update.Audiences[0].CountrySamples[0].SampleSize = 70
	_, err = s.UpdateBid(ctx, bid.ID, update)
	require.NoError(t, err)
}

func TestProgressAndGridKeepStoredFixedOnBestEffortsCountry(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	in := usaBid(p.ID)
	in.Audiences[0].CountrySamples = []models.CountrySampleInput{{Country: "FR", SampleSize: 0, IsBestEfforts: true}}
	bid, err := s.CreateBid(ctx, in, owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)
	audienceID := detail.Audiences[0].ID

	_, err = s.UpsertPartnerResponses(ctx, bid.ID, &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
		PartnerID: p.ID, LOI: 10,
		Audiences: []models.AudienceResponseInput{{
			AudienceID: audienceID,
			Countries:  []models.CountryResponseInput{{Country: "FR", CommitmentType: "fixed", CPI: decimal.NewFromInt(5)}},
		}},
	}}})
	require.NoError(t, err)

	summary, err := s.GetProgressSummary(ctx, bid.ID)
	require.NoError(t, err)
	require.Len(t, summary.Partners, 1)
	cell := summary.Partners[0].LOIs[0].Audiences[0].Countries[0]
	require.Equal(t, models.CommitmentFixed, cell.Type)
	require.Equal(t, models.CellMissing, cell.Status)
	require.Equal(t, models.ProgressNotStarted, summary.Partners[0].Status)

	grid, err := s.GetAllocationGrid(ctx, bid.ID)
	require.NoError(t, err)
	require.Len(t, grid.Audiences, 1)
	country := grid.Audiences[0].Countries[0]
	require.Equal(t, "FR", country.Country)
	require.True(t, country.IsBestEfforts)
	require.Equal(t, 0, country.Allocated)
	require.Len(t, country.Rows, 1)
	require.Equal(t, models.CommitmentFixed, country.Rows[0].CommitmentType)
	require.Equal(t, "5", country.Rows[0].CPI.String())

	// без явного типа страна с best efforts получает be_max
	_, err = s.UpsertPartnerResponses(ctx, bid.ID, &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
		PartnerID: p.ID, LOI: 10,
		Audiences: []models.AudienceResponseInput{{
			AudienceID: audienceID,
			Countries:  []models.CountryResponseInput{{Country: "FR", CPI: decimal.NewFromInt(5)}},
		}},
	}}})
	require.NoError(t, err)
	summary, err = s.GetProgressSummary(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressComplete, summary.Partners[0].Status)
}

func TestNegativeCPIIsValidationError(t *testing.T) {
	s, sqlDB := newTestStorage(t)
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	bid, err := s.CreateBid(ctx, usaBid(p.ID), owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)

	_, err = s.UpsertPartnerResponses(ctx, bid.ID, &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
		PartnerID: p.ID, LOI: 10,
		Audiences: []models.AudienceResponseInput{{
			AudienceID: detail.Audiences[0].ID,
			Countries:  []models.CountryResponseInput{{Country: "USA", Commitment: 10, CPI: decimal.RequireFromString("-1")}},
		}},
	}}})
	var verr *db.ValidationError
	require.ErrorAs(t, err, &verr)

	var cpi decimal.Decimal
	require.NoError(t, sqlDB.Get(&cpi, `SELECT cpi FROM partner_audience_responses WHERE bid_id = $1`, bid.ID))
	require.True(t, cpi.IsZero())
}

func TestFindSimilarBids(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	p := createPartner(t, s, "Panel One")
	in := usaBid(p.ID)
	in.Audiences[0].TACategory = "Doctors"
	in.Audiences[0].Mode = "Online"
	in.Audiences = append(in.Audiences, models.AudienceInput{
		TACategory:     "IT decision makers",
		CountrySamples: []models.CountrySampleInput{{Country: "UK", SampleSize: 10}},
	})
	bid, err := s.CreateBid(ctx, in, owner)
	require.NoError(t, err)
	detail, err := s.GetBidDetail(ctx, bid.ID)
	require.NoError(t, err)

	_, err = s.UpsertPartnerResponses(ctx, bid.ID, &models.PartnerResponsesInput{Responses: []models.PartnerResponseInput{{
		PartnerID: p.ID, LOI: 10,
		Audiences: []models.AudienceResponseInput{{
			AudienceID: detail.Audiences[0].ID,
			Countries:  []models.CountryResponseInput{{Country: "USA", Commitment: 50, CPI: decimal.RequireFromString("7.25")}},
		}},
	}}})
	require.NoError(t, err)

	other := usaBid(p.ID)
	other.Audiences[0].TACategory = "Consumers"
	_, err = s.CreateBid(ctx, other, owner)
	require.NoError(t, err)

	found, err := s.FindSimilarBids(ctx, &models.FindSimilarInput{TACategory: "doctor", Mode: "online"}, owner)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, bid.ID, found[0].ID)
	require.True(t, found[0].HasAccess)
	require.Len(t, found[0].Audiences, 1)
	rows := found[0].Audiences[0].Partners
	require.Len(t, rows, 1)
	require.Equal(t, "Panel One", rows[0].PartnerName)
	require.Equal(t, "7.25", rows[0].CPI.String())

	stranger := models.Identity{UserID: "u-9", Team: "Sales"}
	found, err = s.FindSimilarBids(ctx, &models.FindSimilarInput{TACategory: "Doctors"}, stranger)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.False(t, found[0].HasAccess)
	require.Empty(t, found[0].Audiences[0].Partners)

	found, err = s.FindSimilarBids(ctx, &models.FindSimilarInput{BroaderCategory: "Healthcare"}, owner)
	require.NoError(t, err)
	require.Empty(t, found)
}
