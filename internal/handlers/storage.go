package handlers

import (
	"context"
	"time"

	"bidtracker/models"
)

type StorageInterface interface {
	NextBidNumber(ctx context.Context) (string, error)
	CreateBid(ctx context.Context, in *models.BidInput, owner models.Identity) (*models.Bid, error)
	GetBid(ctx context.Context, id int64) (*models.Bid, error)
	GetBidDetail(ctx context.Context, id int64) (*models.BidDetail, error)
	ListBids(ctx context.Context, filter models.BidFilter, user models.Identity) ([]models.BidListItem, error)
	FindSimilarBids(ctx context.Context, in *models.FindSimilarInput, user models.Identity) ([]models.SimilarBid, error)
	UpdateBid(ctx context.Context, id int64, in *models.BidInput) (*models.Bid, error)
	TransitionStatus(ctx context.Context, id int64, change models.StatusChange) (*models.Bid, error)

	CreatePartner(ctx context.Context, in *models.PartnerInput) (*models.Partner, error)
	ListPartners(ctx context.Context) ([]models.Partner, error)

	GetPartnerResponses(ctx context.Context, bidID int64) (*models.ResponseLedger, error)
	UpsertPartnerResponses(ctx context.Context, bidID int64, in *models.PartnerResponsesInput) (*models.ResponseLedger, error)
	GetProgressSummary(ctx context.Context, bidID int64) (*models.ProgressSummary, error)

	SetAllocation(ctx context.Context, bidID int64, in *models.AllocationInput) (*models.AllocationRow, error)
	GetAllocationGrid(ctx context.Context, bidID int64) (*models.AllocationGrid, error)
	SaveClosure(ctx context.Context, bidID int64, in *models.ClosureInput) ([]models.CostLine, error)
	SaveInvoice(ctx context.Context, bidID int64, in *models.InvoiceInput) ([]models.CostLine, error)
	GetCostLines(ctx context.Context, bidID int64) ([]models.CostLine, error)

	ClosureList(ctx context.Context) ([]models.ClosureSummary, error)
	ReadyForInvoiceList(ctx context.Context) ([]models.InvoiceSummary, error)
	Dashboard(ctx context.Context) (*models.Dashboard, error)

	HasAccess(ctx context.Context, bidID int64, user models.Identity) (bool, error)
	RequestAccess(ctx context.Context, bidID int64, user models.Identity) (*models.AccessRequest, bool, error)
	GrantAccess(ctx context.Context, bidID, requestID int64, approver models.Identity) (*models.AccessRequest, error)
	DenyAccess(ctx context.Context, bidID, requestID int64, approver models.Identity) (*models.AccessRequest, error)
	RevokeAccess(ctx context.Context, bidID int64, userID, team string) (int64, error)
	ListAccessRequests(ctx context.Context, bidID int64, status string) ([]models.AccessRequest, error)
	ListNotifications(ctx context.Context, user models.Identity) ([]models.Notification, error)

	UpsertPartnerLink(ctx context.Context, bidID, partnerID int64, ttl time.Duration) (*models.PartnerLink, error)
	ExtendPartnerLink(ctx context.Context, bidID, partnerID int64, ttl time.Duration) (*models.PartnerLink, error)
	GetPartnerForm(ctx context.Context, token string) (*models.PartnerForm, error)
	SubmitPartnerForm(ctx context.Context, token string, in *models.PartnerFormInput) (*models.PartnerLink, error)
}
