package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Тип обязательства партнёра по стране
const (
	CommitmentFixed = "fixed"
	CommitmentBeMax = "be_max"
)

// Статусы ответа партнёра
const (
	ResponseDraft     = "draft"
	ResponsePending   = "pending"
	ResponseSubmitted = "submitted"
)

// Статусы запроса доступа
const (
	AccessPending = "pending"
	AccessGranted = "granted"
	AccessDenied  = "denied"
)

// Сущность Заявки (bid)
type Bid struct {
	ID                 int64      `db:"id" json:"id"`
	BidNumber          string     `db:"bid_number" json:"bid_number"`
	BidDate            *time.Time `db:"bid_date" json:"bid_date,omitempty"`
	StudyName          string     `db:"study_name" json:"study_name"`
	Methodology        string     `db:"methodology" json:"methodology"`
	Status             string     `db:"status" json:"status"`
	Client             string     `db:"client" json:"client"`
	SalesContact       string     `db:"sales_contact" json:"sales_contact"`
	VMContact          string     `db:"vm_contact" json:"vm_contact"`
	ProjectRequirement string     `db:"project_requirement" json:"project_requirement"`
	CreatedBy          string     `db:"created_by" json:"created_by"`
	Team               string     `db:"team" json:"team"`
	PONumber           string     `db:"po_number" json:"po_number"`
	RejectionReason    string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RejectionComments  string     `db:"rejection_comments" json:"rejection_comments,omitempty"`
	Version            int        `db:"version" json:"version"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Целевая аудитория заявки
type TargetAudience struct {
	ID                int64           `db:"id" json:"id"`
	BidID             int64           `db:"bid_id" json:"bid_id"`
	AudienceName      string          `db:"audience_name" json:"audience_name"`
	TACategory        string          `db:"ta_category" json:"ta_category"`
	BroaderCategory   string          `db:"broader_category" json:"broader_category"`
	ExactTADefinition string          `db:"exact_ta_definition" json:"exact_ta_definition"`
	Mode              string          `db:"mode" json:"mode"`
	SampleRequired    int             `db:"sample_required" json:"sample_required"`
	IR                float64         `db:"ir" json:"ir"`
	Comments          string          `db:"comments" json:"comments"`
	IsBestEfforts     bool            `db:"is_best_efforts" json:"is_best_efforts"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	CountrySamples    []CountrySample `db:"-" json:"country_samples"`
}

// Квота аудитории по стране
type CountrySample struct {
	ID            int64  `db:"id" json:"id"`
	BidID         int64  `db:"bid_id" json:"bid_id"`
	AudienceID    int64  `db:"audience_id" json:"audience_id"`
	Country       string `db:"country" json:"country"`
	SampleSize    int    `db:"sample_size" json:"sample_size"`
	IsBestEfforts bool   `db:"is_best_efforts" json:"is_best_efforts"`
}

// Партнёр (справочник)
type Partner struct {
	ID           int64     `db:"id" json:"id"`
	PartnerCode  string    `db:"partner_code" json:"partner_id"`
	PartnerName  string    `db:"partner_name" json:"partner_name"`
	ContactEmail string    `db:"contact_email" json:"contact_email"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Ответ партнёра на заявку для конкретного LOI
type PartnerResponse struct {
	ID            int64               `db:"id" json:"id"`
	BidID         int64               `db:"bid_id" json:"bid_id"`
	PartnerID     int64               `db:"partner_id" json:"partner_id"`
	PartnerName   string              `db:"partner_name" json:"partner_name"`
	LOI           int                 `db:"loi" json:"loi"`
	Status        string              `db:"status" json:"status"`
	Currency      string              `db:"currency" json:"currency"`
	PMF           decimal.Decimal     `db:"pmf" json:"pmf"`
	InvoiceDate   *time.Time          `db:"invoice_date" json:"invoice_date,omitempty"`
	InvoiceSent   *time.Time          `db:"invoice_sent" json:"invoice_sent,omitempty"`
	InvoiceSerial string              `db:"invoice_serial" json:"invoice_serial"`
	InvoiceNumber string              `db:"invoice_number" json:"invoice_number"`
	InvoiceAmount decimal.NullDecimal `db:"invoice_amount" json:"invoice_amount"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updated_at"`
}

// Ответ партнёра по аудитории и стране: самая мелкая единица учёта
type PartnerAudienceResponse struct {
	ID                   int64               `db:"id" json:"id"`
	BidID                int64               `db:"bid_id" json:"bid_id"`
	PartnerResponseID    int64               `db:"partner_response_id" json:"partner_response_id"`
	AudienceID           int64               `db:"audience_id" json:"audience_id"`
	Country              string              `db:"country" json:"country"`
	CommitmentType       string              `db:"commitment_type" json:"commitment_type"`
	Commitment           int                 `db:"commitment" json:"commitment"`
	IsBestEfforts        bool                `db:"is_best_efforts" json:"is_best_efforts"`
	CPI                  decimal.Decimal     `db:"cpi" json:"cpi"`
	TimelineDays         int                 `db:"timeline_days" json:"timeline_days"`
	Comments             string              `db:"comments" json:"comments"`
	Allocation           int                 `db:"allocation" json:"allocation"`
	NDelivered           int                 `db:"n_delivered" json:"n_delivered"`
	QualityRejects       int                 `db:"quality_rejects" json:"quality_rejects"`
	FinalLOI             *float64            `db:"final_loi" json:"final_loi"`
	FinalIR              *float64            `db:"final_ir" json:"final_ir"`
	FinalTimeline        *int                `db:"final_timeline" json:"final_timeline"`
	FinalCPI             decimal.NullDecimal `db:"final_cpi" json:"final_cpi"`
	CommunicationRating  *int                `db:"communication_rating" json:"communication_rating"`
	EngagementRating     *int                `db:"engagement_rating" json:"engagement_rating"`
	ProblemSolvingRating *int                `db:"problem_solving_rating" json:"problem_solving_rating"`
	AdditionalFeedback   string              `db:"additional_feedback" json:"additional_feedback"`
	InitialCostOverride  decimal.NullDecimal `db:"initial_cost_override" json:"-"`
	FinalCostOverride    decimal.NullDecimal `db:"final_cost_override" json:"-"`
	InitialCost          decimal.NullDecimal `db:"initial_cost" json:"initial_cost"`
	FinalCost            decimal.NullDecimal `db:"final_cost" json:"final_cost"`
	Savings              decimal.NullDecimal `db:"savings" json:"savings"`
	FieldCloseDate       *time.Time          `db:"field_close_date" json:"field_close_date,omitempty"`
	UpdatedAt            time.Time           `db:"updated_at" json:"updated_at"`
}

// Явный доступ к заявке пользователю или команде
type AccessGrant struct {
	ID        int64     `db:"id" json:"id"`
	BidID     int64     `db:"bid_id" json:"bid_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Team      string    `db:"team" json:"team"`
	GrantedBy string    `db:"granted_by" json:"granted_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Запрос доступа к заявке
type AccessRequest struct {
	ID          int64      `db:"id" json:"id"`
	BidID       int64      `db:"bid_id" json:"bid_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	UserName    string     `db:"user_name" json:"user_name"`
	Team        string     `db:"team" json:"team"`
	Status      string     `db:"status" json:"status"`
	RequestedOn time.Time  `db:"requested_on" json:"requested_on"`
	DecidedBy   string     `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time `db:"decided_at" json:"decided_at,omitempty"`
}

// Ссылка для партнёра на форму ответа
type PartnerLink struct {
	Token     string     `db:"token" json:"token"`
	BidID     int64      `db:"bid_id" json:"bid_id"`
	PartnerID int64      `db:"partner_id" json:"partner_id"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	WarnedAt  *time.Time `db:"warned_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	URL       string     `db:"-" json:"url,omitempty"`
}

// Expired истекла ли ссылка на момент now
func (l *PartnerLink) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Identity пользователь, переданный внешним auth-слоем через заголовки
type Identity struct {
	UserID string
	Team   string
	Role   string
	Name   string
}
