package models

import "github.com/shopspring/decimal"

// BidInput тело POST /bids и PUT /bids/{id}
type BidInput struct {
	BidNumber          string          `json:"bid_number" validate:"omitempty,numeric,max=20"`
	BidDate            string          `json:"bid_date" validate:"omitempty,datetime=2006-01-02"`
	StudyName          string          `json:"study_name" validate:"required,max=255"`
	Methodology        string          `json:"methodology" validate:"required,max=100"`
	Client             string          `json:"client" validate:"required,max=255"`
	SalesContact       string          `json:"sales_contact" validate:"max=255"`
	VMContact          string          `json:"vm_contact" validate:"max=255"`
	ProjectRequirement string          `json:"project_requirement" validate:"max=4000"`
	Version            *int            `json:"version" validate:"omitempty,gt=0"`
	Audiences          []AudienceInput `json:"target_audiences" validate:"dive"`
	Partners           []int64         `json:"partners" validate:"dive,gt=0"`
	LOIs               []int           `json:"lois" validate:"dive,gt=0"`
}

type AudienceInput struct {
	ID                *int64               `json:"id" validate:"omitempty,gt=0"`
	TACategory        string               `json:"ta_category" validate:"required,max=100"`
	BroaderCategory   string               `json:"broader_category" validate:"max=100"`
	ExactTADefinition string               `json:"exact_ta_definition" validate:"max=1000"`
	Mode              string               `json:"mode" validate:"max=50"`
	SampleRequired    int                  `json:"sample_required" validate:"gte=0"`
	IR                float64              `json:"ir" validate:"gte=0,lte=100"`
	Comments          string               `json:"comments" validate:"max=2000"`
	IsBestEfforts     bool                 `json:"is_best_efforts"`
	CountrySamples    []CountrySampleInput `json:"country_samples" validate:"dive"`
}

type CountrySampleInput struct {
	Country       string `json:"country" validate:"required,max=100"`
	SampleSize    int    `json:"sample_size" validate:"gte=0"`
	IsBestEfforts bool   `json:"is_best_efforts"`
}

// StatusChange тело POST /bids/{id}/status
type StatusChange struct {
	Status            string `json:"status" validate:"required"`
	PONumber          string `json:"po_number" validate:"max=100"`
	RejectionReason   string `json:"rejection_reason"`
	RejectionComments string `json:"rejection_comments" validate:"max=2000"`
}

type PartnerResponsesInput struct {
	Responses []PartnerResponseInput `json:"responses" validate:"required,dive"`
}

type PartnerResponseInput struct {
	PartnerID int64                   `json:"partner_id" validate:"required,gt=0"`
	LOI       int                     `json:"loi" validate:"required,gt=0"`
	Status    string                  `json:"status" validate:"omitempty,oneof=draft pending submitted"`
	Currency  string                  `json:"currency" validate:"omitempty,len=3,alpha"`
	PMF       *decimal.Decimal        `json:"pmf"`
	Audiences []AudienceResponseInput `json:"audiences" validate:"dive"`
}

type AudienceResponseInput struct {
	AudienceID int64                  `json:"audience_id" validate:"required,gt=0"`
	Timeline   *int                   `json:"timeline" validate:"omitempty,gte=0"`
	Comments   *string                `json:"comments" validate:"omitempty,max=2000"`
	Countries  []CountryResponseInput `json:"countries" validate:"dive"`
}

type CountryResponseInput struct {
	Country        string          `json:"country" validate:"required"`
	CommitmentType string          `json:"commitment_type" validate:"omitempty,oneof=fixed be_max"`
	Commitment     int             `json:"commitment" validate:"gte=0"`
	CPI            decimal.Decimal `json:"cpi"`
}

// AllocationInput одна ячейка распределения квоты
type AllocationInput struct {
	PartnerID  int64  `json:"partner_id" validate:"required,gt=0"`
	LOI        int    `json:"loi" validate:"required,gt=0"`
	AudienceID int64  `json:"audience_id" validate:"required,gt=0"`
	Country    string `json:"country" validate:"required"`
	Allocation int    `json:"allocation" validate:"gte=0"`
}

// ClosureInput итоги поля по партнёру и LOI
type ClosureInput struct {
	PartnerID int64                  `json:"partner_id" validate:"required,gt=0"`
	LOI       int                    `json:"loi" validate:"required,gt=0"`
	Audiences []ClosureAudienceInput `json:"audiences" validate:"required,dive"`
}

type ClosureAudienceInput struct {
	AudienceID           int64                 `json:"audience_id" validate:"required,gt=0"`
	FieldCloseDate       string                `json:"field_close_date" validate:"omitempty,datetime=2006-01-02"`
	FinalLOI             *float64              `json:"final_loi" validate:"omitempty,gte=0"`
	FinalIR              *float64              `json:"final_ir" validate:"omitempty,gte=0,lte=100"`
	FinalTimeline        *int                  `json:"final_timeline" validate:"omitempty,gte=0"`
	CommunicationRating  *int                  `json:"communication_rating" validate:"omitempty,min=1,max=5"`
	EngagementRating     *int                  `json:"engagement_rating" validate:"omitempty,min=1,max=5"`
	ProblemSolvingRating *int                  `json:"problem_solving_rating" validate:"omitempty,min=1,max=5"`
	AdditionalFeedback   string                `json:"additional_feedback" validate:"max=2000"`
	Countries            []ClosureCountryInput `json:"countries" validate:"dive"`
}

type ClosureCountryInput struct {
	Country        string `json:"country" validate:"required"`
	NDelivered     int    `json:"n_delivered" validate:"gte=0"`
	QualityRejects int    `json:"quality_rejects" validate:"gte=0"`
}

// InvoiceInput данные счёта по партнёру и LOI
type InvoiceInput struct {
	PartnerID     int64                     `json:"partner_id" validate:"required,gt=0"`
	LOI           int                       `json:"loi" validate:"required,gt=0"`
	InvoiceDate   string                    `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	InvoiceSent   string                    `json:"invoice_sent" validate:"omitempty,datetime=2006-01-02"`
	InvoiceSerial string                    `json:"invoice_serial" validate:"max=100"`
	InvoiceNumber string                    `json:"invoice_number" validate:"max=100"`
	InvoiceAmount *decimal.Decimal          `json:"invoice_amount"`
	Deliverables  []InvoiceDeliverableInput `json:"deliverables" validate:"dive"`
}

type InvoiceDeliverableInput struct {
	AudienceID  int64            `json:"audience_id" validate:"required,gt=0"`
	Country     string           `json:"country" validate:"required"`
	FinalCPI    *decimal.Decimal `json:"final_cpi"`
	InitialCost *decimal.Decimal `json:"initial_cost"`
	FinalCost   *decimal.Decimal `json:"final_cost"`
}

// PartnerFormInput отправка формы по ссылке партнёра
type PartnerFormInput struct {
	Currency string           `json:"currency" validate:"omitempty,len=3,alpha"`
	PMF      *decimal.Decimal `json:"pmf"`
	LOIs     []PartnerFormLOI `json:"lois" validate:"required,dive"`
}

type PartnerFormLOI struct {
	LOI       int                     `json:"loi" validate:"required,gt=0"`
	Audiences []AudienceResponseInput `json:"audiences" validate:"dive"`
}

type GrantAccessInput struct {
	RequestID int64 `json:"request_id" validate:"required,gt=0"`
}

type RevokeAccessInput struct {
	UserID string `json:"user_id" validate:"required_without=Team"`
	Team   string `json:"team" validate:"required_without=UserID"`
}

type PartnerInput struct {
	PartnerName  string `json:"partner_name" validate:"required,max=255"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
}

// FindSimilarInput поиск прошлых заявок по описанию аудитории; пустые поля не фильтруют
type FindSimilarInput struct {
	TACategory      string `json:"ta_category" validate:"required_without_all=BroaderCategory Mode,max=100"`
	BroaderCategory string `json:"broader_category" validate:"max=100"`
	Mode            string `json:"mode" validate:"max=50"`
	Limit           int    `json:"limit" validate:"gte=0,lte=100"`
}

// BidFilter фильтр списка заявок
type BidFilter struct {
	Status string
	Limit  int
	Offset int
}
