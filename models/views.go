package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы заполненности ответа партнёра
const (
	ProgressComplete   = "complete"
	ProgressPartial    = "partial"
	ProgressNotStarted = "not started"
	CellComplete       = "complete"
	CellMissing        = "missing"
)

// BidDetail заявка со всеми аудиториями и привязанными партнёрами
type BidDetail struct {
	Bid
	Audiences []TargetAudience `json:"target_audiences"`
	Partners  []BidPartner     `json:"partners"`
	LOIs      []int            `json:"lois"`
}

type BidPartner struct {
	PartnerID   int64  `db:"partner_id" json:"partner_id"`
	PartnerCode string `db:"partner_code" json:"partner_code"`
	PartnerName string `db:"partner_name" json:"partner_name"`
	LOIs        []int  `db:"-" json:"lois"`
}

// BidListItem строка списка заявок с признаком доступа
type BidListItem struct {
	Bid
	HasAccess     bool   `db:"-" json:"has_access"`
	RequestStatus string `db:"request_status" json:"access_request_status,omitempty"`
}

// ResponseLedger все ответы партнёров по заявке
type ResponseLedger struct {
	BidID     int64            `json:"bid_id"`
	Responses []LedgerResponse `json:"responses"`
}

type LedgerResponse struct {
	PartnerResponse
	Audiences []LedgerAudience `json:"audiences"`
}

type LedgerAudience struct {
	AudienceID   int64                     `json:"audience_id"`
	Key          string                    `json:"key"`
	AudienceName string                    `json:"audience_name"`
	Timeline     int                       `json:"timeline"`
	Comments     string                    `json:"comments"`
	Countries    []PartnerAudienceResponse `json:"countries"`
}

// AllocationGrid сетка аудитория -> страна -> партнёры
type AllocationGrid struct {
	BidID     int64                `json:"bid_id"`
	Audiences []AllocationAudience `json:"audiences"`
}

type AllocationAudience struct {
	AudienceID   int64               `json:"audience_id"`
	Key          string              `json:"key"`
	AudienceName string              `json:"audience_name"`
	Countries    []AllocationCountry `json:"countries"`
}

type AllocationCountry struct {
	Country       string          `json:"country"`
	SampleSize    int             `json:"sample_size"`
	IsBestEfforts bool            `json:"is_best_efforts"`
	Allocated     int             `json:"allocated"`
	Rows          []AllocationRow `json:"partners"`
}

type AllocationRow struct {
	PartnerID      int64           `db:"partner_id" json:"partner_id"`
	PartnerName    string          `db:"partner_name" json:"partner_name"`
	LOI            int             `db:"loi" json:"loi"`
	AudienceID     int64           `db:"audience_id" json:"-"`
	Country        string          `db:"country" json:"-"`
	CommitmentType string          `db:"commitment_type" json:"commitment_type"`
	Commitment     int             `db:"commitment" json:"commitment"`
	CPI            decimal.Decimal `db:"cpi" json:"cpi"`
	Allocation     int             `db:"allocation" json:"allocation"`
	NDelivered     int             `db:"n_delivered" json:"n_delivered"`
}

// SimilarBid прошлая заявка с подходящими аудиториями.
// Ответы партнёров заполняются только при наличии доступа.
type SimilarBid struct {
	Bid
	HasAccess bool              `json:"has_access"`
	Audiences []SimilarAudience `json:"audiences"`
}

type SimilarAudience struct {
	AudienceID        int64        `db:"id" json:"audience_id"`
	BidID             int64        `db:"bid_id" json:"-"`
	AudienceName      string       `db:"audience_name" json:"audience_name"`
	TACategory        string       `db:"ta_category" json:"ta_category"`
	BroaderCategory   string       `db:"broader_category" json:"broader_category"`
	ExactTADefinition string       `db:"exact_ta_definition" json:"exact_ta_definition"`
	Mode              string       `db:"mode" json:"mode"`
	SampleRequired    int          `db:"sample_required" json:"sample_required"`
	IR                float64      `db:"ir" json:"ir"`
	Partners          []SimilarRow `db:"-" json:"partners"`
}

// SimilarRow цена партнёра по стране в прошлой заявке
type SimilarRow struct {
	AudienceID     int64           `db:"audience_id" json:"-"`
	PartnerID      int64           `db:"partner_id" json:"partner_id"`
	PartnerName    string          `db:"partner_name" json:"partner_name"`
	LOI            int             `db:"loi" json:"loi"`
	Country        string          `db:"country" json:"country"`
	CommitmentType string          `db:"commitment_type" json:"commitment_type"`
	Commitment     int             `db:"commitment" json:"commitment"`
	CPI            decimal.Decimal `db:"cpi" json:"cpi"`
	NDelivered     int             `db:"n_delivered" json:"n_delivered"`
}

// ClosureSummary строка списка заявок на этапе closure
type ClosureSummary struct {
	BidID               int64           `db:"bid_id" json:"bid_id"`
	BidNumber           string          `db:"bid_number" json:"bid_number"`
	StudyName           string          `db:"study_name" json:"study_name"`
	Client              string          `db:"client" json:"client"`
	Status              string          `db:"status" json:"status"`
	TotalDelivered      int             `db:"total_delivered" json:"total_delivered"`
	TotalQualityRejects int             `db:"total_quality_rejects" json:"total_quality_rejects"`
	AvgFinalLOI         decimal.Decimal `db:"avg_final_loi" json:"avg_final_loi"`
	AvgFinalIR          decimal.Decimal `db:"avg_final_ir" json:"avg_final_ir"`
}

// Rounded округление для отображения
func (c ClosureSummary) Rounded() ClosureSummary {
	c.AvgFinalLOI = Money(c.AvgFinalLOI)
	c.AvgFinalIR = Money(c.AvgFinalIR)
	return c
}

// InvoiceSummary строка списка заявок, готовых к выставлению счёта
type InvoiceSummary struct {
	BidID           int64           `db:"bid_id" json:"bid_id"`
	BidNumber       string          `db:"bid_number" json:"bid_number"`
	StudyName       string          `db:"study_name" json:"study_name"`
	Client          string          `db:"client" json:"client"`
	Status          string          `db:"status" json:"status"`
	PONumber        string          `db:"po_number" json:"po_number"`
	AvgInitialCPI   decimal.Decimal `db:"avg_initial_cpi" json:"avg_initial_cpi"`
	AvgFinalCPI     decimal.Decimal `db:"avg_final_cpi" json:"avg_final_cpi"`
	AvgFinalLOI     decimal.Decimal `db:"avg_final_loi" json:"avg_final_loi"`
	AvgFinalIR      decimal.Decimal `db:"avg_final_ir" json:"avg_final_ir"`
	TotalAllocation int             `db:"total_allocation" json:"total_allocation"`
	TotalDelivered  int             `db:"total_delivered" json:"total_delivered"`
	TotalFinalCost  decimal.Decimal `db:"total_final_cost" json:"total_final_cost"`
	TotalSavings    decimal.Decimal `db:"total_savings" json:"total_savings"`
}

func (s InvoiceSummary) Rounded() InvoiceSummary {
	s.AvgInitialCPI = Money(s.AvgInitialCPI)
	s.AvgFinalCPI = Money(s.AvgFinalCPI)
	s.AvgFinalLOI = Money(s.AvgFinalLOI)
	s.AvgFinalIR = Money(s.AvgFinalIR)
	s.TotalFinalCost = Money(s.TotalFinalCost)
	s.TotalSavings = Money(s.TotalSavings)
	return s
}

// CostLine строка расчёта стоимости по ячейке партнёр/LOI/аудитория/страна
type CostLine struct {
	PartnerID   int64               `db:"partner_id" json:"partner_id"`
	PartnerName string              `db:"partner_name" json:"partner_name"`
	LOI         int                 `db:"loi" json:"loi"`
	AudienceID  int64               `db:"audience_id" json:"audience_id"`
	Country     string              `db:"country" json:"country"`
	Allocation  int                 `db:"allocation" json:"allocation"`
	NDelivered  int                 `db:"n_delivered" json:"n_delivered"`
	CPI         decimal.Decimal     `db:"cpi" json:"cpi"`
	FinalCPI    decimal.NullDecimal `db:"final_cpi" json:"final_cpi"`
	InitialCost decimal.NullDecimal `db:"initial_cost" json:"initial_cost"`
	FinalCost   decimal.NullDecimal `db:"final_cost" json:"final_cost"`
	Savings     decimal.NullDecimal `db:"savings" json:"savings"`
}

func (l CostLine) Rounded() CostLine {
	l.CPI = Money(l.CPI)
	l.FinalCPI = roundNull(l.FinalCPI)
	l.InitialCost = roundNull(l.InitialCost)
	l.FinalCost = roundNull(l.FinalCost)
	l.Savings = roundNull(l.Savings)
	return l
}

// Money денежное значение для вывода: 2 знака. Хранится полная точность.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func roundNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(Money(d.Decimal))
}

// Dashboard сводка по всем заявкам
type Dashboard struct {
	TotalBids    int             `json:"total_bids"`
	ActiveBids   int             `json:"active_bids"`
	TotalSavings decimal.Decimal `json:"total_savings"`
	ByStatus     map[string]int  `json:"bids_by_status"`
}

// ProgressSummary заполненность ответов партнёров по заявке
type ProgressSummary struct {
	BidID         int64             `json:"bid_id"`
	BidNumber     string            `json:"bid_number"`
	StudyName     string            `json:"study_name"`
	LOIs          []int             `json:"lois"`
	SummaryCounts ProgressCounts    `json:"summary_counts"`
	Partners      []PartnerProgress `json:"partners"`
}

type ProgressCounts struct {
	Complete   int `json:"complete"`
	Partial    int `json:"partial"`
	NotStarted int `json:"not_started"`
}

type PartnerProgress struct {
	PartnerID   int64         `json:"partner_id"`
	PartnerName string        `json:"partner_name"`
	Status      string        `json:"status"`
	LOIs        []LOIProgress `json:"lois"`
}

type LOIProgress struct {
	LOI             int                `json:"loi"`
	Status          string             `json:"status"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty"`
	CompleteCount   int                `json:"complete_count"`
	TotalCount      int                `json:"total_count"`
	BeMaxCount      int                `json:"be_max_count"`
	CommitmentCount int                `json:"commitment_count"`
	Audiences       []AudienceProgress `json:"audiences"`
}

type AudienceProgress struct {
	AudienceID   int64          `json:"audience_id"`
	AudienceName string         `json:"audience_name"`
	Countries    []CellProgress `json:"countries"`
}

type CellProgress struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// PartnerForm данные формы, которую видит партнёр по ссылке
type PartnerForm struct {
	BidID             int64                     `json:"bid_id"`
	BidNumber         string                    `json:"bid_number"`
	StudyName         string                    `json:"study_name"`
	Methodology       string                    `json:"methodology"`
	Partner           Partner                   `json:"partner"`
	ExpiresAt         time.Time                 `json:"expires_at"`
	LOIs              []int                     `json:"lois"`
	Audiences         []TargetAudience          `json:"audiences"`
	Responses         []PartnerResponse         `json:"partner_responses"`
	AudienceResponses []PartnerAudienceResponse `json:"partner_audience_responses"`
}

// Notification ожидающий запрос доступа для согласующего
type Notification struct {
	AccessRequest
	BidNumber string `db:"bid_number" json:"bid_number"`
	StudyName string `db:"study_name" json:"study_name"`
}

// ExpiringLink ссылка партнёра, срок которой скоро истекает
type ExpiringLink struct {
	PartnerLink
	BidNumber    string `db:"bid_number" json:"bid_number"`
	StudyName    string `db:"study_name" json:"study_name"`
	PartnerName  string `db:"partner_name" json:"partner_name"`
	ContactEmail string `db:"contact_email" json:"contact_email"`
}
