// Package triage scores the risk/complexity of a mortgage enquiry from its
// financial and contextual attributes. Scoring is additive and deterministic:
// the same inputs always produce the same score, rating and factor list.
package triage

import (
	"fmt"

	"caseflow/casefile"
)

// Rating is the coarse complexity bucket assigned to a case.
type Rating string

const (
	RatingIdeal  Rating = "ideal"
	RatingStrong Rating = "strong"
	RatingReview Rating = "review"
	RatingUrgent Rating = "urgent"
)

// Band carries the fixed presentation pair for a rating. Only the Rating
// identifier matters downstream; label and colour are display hints.
type Band struct {
	Rating Rating
	Label  string
	Colour string
}

var bands = map[Rating]Band{
	RatingIdeal:  {Rating: RatingIdeal, Label: "Ideal", Colour: "blue"},
	RatingStrong: {Rating: RatingStrong, Label: "Strong", Colour: "green"},
	RatingReview: {Rating: RatingReview, Label: "Needs Review", Colour: "yellow"},
	RatingUrgent: {Rating: RatingUrgent, Label: "Urgent", Colour: "red"},
}

// Band returns the presentation pair for the rating.
func (r Rating) Band() Band {
	return bands[r]
}

// Input holds the case attributes the scoring engine reads. AnnualIncome is
// optional; zero means not provided. TimeSensitivity and Purpose may be empty
// and default to neutral contributions.
type Input struct {
	LTV             float64
	AnnualIncome    float64
	TimeSensitivity casefile.TimeSensitivity
	Category        casefile.Category
	IncomeType      casefile.IncomeType
	Purpose         casefile.Purpose
}

// Result is the triage outcome: an integer score, its rating bucket and the
// ordered human-readable factors that contributed to it.
type Result struct {
	Score   int
	Rating  Rating
	Factors []string
}

// Score evaluates the triage rules against the input. It is pure and never
// fails for valid enumerated inputs; unknown enum values are rejected up
// front rather than silently scored.
func Score(in Input) (Result, error) {
	if !in.Category.Valid() {
		return Result{}, fmt.Errorf("triage: invalid category %q", in.Category)
	}
	if !in.IncomeType.Valid() {
		return Result{}, fmt.Errorf("triage: invalid income type %q", in.IncomeType)
	}
	if in.Purpose != "" && !in.Purpose.Valid() {
		return Result{}, fmt.Errorf("triage: invalid purpose %q", in.Purpose)
	}
	sensitivity := in.TimeSensitivity
	if sensitivity == "" {
		sensitivity = casefile.SensitivityStandard
	}
	if !sensitivity.Valid() {
		return Result{}, fmt.Errorf("triage: invalid time sensitivity %q", in.TimeSensitivity)
	}

	score := 0
	factors := make([]string, 0, 6)
	add := func(points int, factor string) {
		score += points
		if factor != "" {
			factors = append(factors, factor)
		}
	}

	switch {
	case in.LTV > 90:
		add(30, "Very high loan-to-value (above 90%)")
	case in.LTV >= 75:
		add(20, "High loan-to-value (75-90%)")
	case in.LTV >= 60:
		add(5, "Moderate loan-to-value (60-75%)")
	default:
		score -= 10
	}

	if in.AnnualIncome > 0 {
		switch {
		case in.AnnualIncome < 20000:
			add(25, "Low annual income (below £20k)")
		case in.AnnualIncome < 30000:
			add(10, "Modest annual income (below £30k)")
		case in.AnnualIncome > 80000:
			add(-10, "")
		case in.AnnualIncome >= 50000:
			add(-5, "")
		}
	}

	switch in.IncomeType {
	case casefile.IncomeSelfEmployed:
		add(15, "Self-employed income")
	case casefile.IncomeContractor:
		add(10, "Contractor income")
	}

	switch sensitivity {
	case casefile.SensitivityUrgent:
		add(10, "Urgent timescale")
	case casefile.SensitivityFlexible:
		add(-5, "")
	}

	switch in.Category {
	case casefile.CategoryLaterLife, casefile.CategoryLtdCompany:
		add(15, "Specialist lending category")
	case casefile.CategoryBuyToLet:
		add(5, "Buy-to-let")
	}

	if in.Purpose == casefile.PurposeRateExpiry {
		add(-5, "")
	}

	return Result{
		Score:   score,
		Rating:  ratingFor(score),
		Factors: factors,
	}, nil
}

// ratingFor maps a score onto its band. Bands are mutually exclusive and
// evaluated in order.
func ratingFor(score int) Rating {
	switch {
	case score < 0:
		return RatingIdeal
	case score < 20:
		return RatingStrong
	case score < 40:
		return RatingReview
	default:
		return RatingUrgent
	}
}
