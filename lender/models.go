package lender

import "time"

// Lender is one entry in the external lender catalog. The catalog is
// read-only from the decision engines' perspective; rows are maintained
// administratively.
type Lender struct {
	ID       string
	Name     string
	Category string

	MaxLTVResidential    float64
	MaxLTVBuyToLet       float64
	MinIncomeResidential float64
	MinIncomeBuyToLet    float64

	SelfEmployedAccepted bool
	MinTradingYears      int
	MaxAgeAtTermEnd      int
	MaxLoanAtMaxLTV      float64
	FastProcessing       bool
	Active               bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
