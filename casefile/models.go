package casefile

import (
	"math"
	"time"
)

// Category identifies the product category of a mortgage enquiry.
type Category string

const (
	CategoryResidential Category = "residential"
	CategoryBuyToLet    Category = "buy_to_let"
	CategoryLaterLife   Category = "later_life"
	CategoryLtdCompany  Category = "ltd_company"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryResidential, CategoryBuyToLet, CategoryLaterLife, CategoryLtdCompany:
		return true
	default:
		return false
	}
}

// IncomeType classifies how the client earns their income.
type IncomeType string

const (
	IncomeEmployed     IncomeType = "employed"
	IncomeSelfEmployed IncomeType = "self_employed"
	IncomeContractor   IncomeType = "contractor"
	IncomeRetired      IncomeType = "retired"
	IncomeMixed        IncomeType = "mixed"
)

func (t IncomeType) Valid() bool {
	switch t {
	case IncomeEmployed, IncomeSelfEmployed, IncomeContractor, IncomeRetired, IncomeMixed:
		return true
	default:
		return false
	}
}

// Purpose records why the client is borrowing.
type Purpose string

const (
	PurposePurchase   Purpose = "purchase"
	PurposeRemortgage Purpose = "remortgage"
	PurposeRateExpiry Purpose = "rate_expiry"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposePurchase, PurposeRemortgage, PurposeRateExpiry:
		return true
	default:
		return false
	}
}

// TimeSensitivity is the client-stated urgency of the enquiry.
type TimeSensitivity string

const (
	SensitivityUrgent   TimeSensitivity = "urgent"
	SensitivityStandard TimeSensitivity = "standard"
	SensitivityFlexible TimeSensitivity = "flexible"
)

func (s TimeSensitivity) Valid() bool {
	switch s {
	case SensitivityUrgent, SensitivityStandard, SensitivityFlexible:
		return true
	default:
		return false
	}
}

// ClientDecision records the client's response to a delivered report.
type ClientDecision string

const (
	DecisionPending    ClientDecision = "pending"
	DecisionProceeding ClientDecision = "proceeding"
	DecisionDeclined   ClientDecision = "declined"
	DecisionNoResponse ClientDecision = "no_response"
)

// AnalysisStatus is the visible outcome of the last automated analysis run.
type AnalysisStatus string

const (
	AnalysisNone     AnalysisStatus = "none"
	AnalysisComplete AnalysisStatus = "complete"
	AnalysisFailed   AnalysisStatus = "failed"
)

// LenderDecision is the cached per-lender outcome of the last matching run.
// Confidence is only populated for accepted lenders.
type LenderDecision struct {
	Name       string   `json:"name"`
	Confidence int      `json:"confidence,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Derived bundles every output the automated analysis caches on a case.
// The values are stored as plain identifiers so the case record does not
// depend on the engine packages that produce them.
type Derived struct {
	TriageScore   int
	TriageRating  string
	TriageFactors []string
	Matched       []LenderDecision
	Rejected      []LenderDecision
	Urgency       string
	DaysRemaining *int
}

// Case is the central entity: a single mortgage enquiry tracked from intake
// through to completion. It mirrors the cases table.
type Case struct {
	ID          string
	Reference   string
	ExternalRef *string

	ClientName  string
	ClientEmail *string
	ClientAge   int

	PropertyValue   float64
	LoanAmount      float64
	LTV             float64
	AnnualIncome    float64
	IncomeType      IncomeType
	Category        Category
	Purpose         Purpose
	TimeSensitivity TimeSensitivity
	TermYears       int
	Deadline        *time.Time

	Stage           Stage
	StageEnteredAt  time.Time
	Paused          bool
	AnalysisStatus  AnalysisStatus
	ScheduledSendAt *time.Time
	DeliveredAt     *time.Time
	ChaseCount      int
	LastChaseAt     *time.Time
	ClientDecision  ClientDecision

	TriageScore   *int
	TriageRating  *string
	TriageFactors []string
	TriagedAt     *time.Time

	Matched   []LenderDecision
	Rejected  []LenderDecision
	MatchedAt *time.Time

	Urgency       *string
	DaysRemaining *int
	UrgencyAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeLTV derives the loan-to-value percentage rounded to one decimal
// place. A zero property value yields zero rather than a division error.
func ComputeLTV(propertyValue, loanAmount float64) float64 {
	if propertyValue <= 0 {
		return 0
	}
	return math.Round(loanAmount/propertyValue*1000) / 10
}
