// Package lender implements the lender eligibility and confidence matching
// engine together with the catalog model and store. Matching is a pure
// filter-and-score function over a catalog snapshot: re-running it with the
// same inputs always yields the same partitions.
package lender

import (
	"fmt"
	"sort"

	"caseflow/casefile"
)

// Profile is the slice of case attributes the matching engine reads.
// AnnualIncome, ClientAge and TermYears are optional; zero means not
// provided and disables the rules that depend on them.
type Profile struct {
	LTV          float64
	Category     casefile.Category
	AnnualIncome float64
	IncomeType   casefile.IncomeType
	LoanAmount   float64
	ClientAge    int
	TermYears    int
}

// Acceptance is a lender that passed every applicable rule, with an
// indicative confidence and the plain-language reasons each rule was
// satisfied.
type Acceptance struct {
	Lender     string
	Confidence int
	Reasons    []string
}

// Rejection is a lender that failed at least one rule. Reasons accumulate:
// a lender can be rejected for several independent reasons at once.
type Rejection struct {
	Lender  string
	Reasons []string
}

// Result partitions the catalog for one case. Both lists are sorted
// alphabetically by lender name.
type Result struct {
	Accepted []Acceptance
	Rejected []Rejection
}

// Match partitions the catalog into accepted and rejected lenders for the
// given profile. Inactive lenders are ignored. The outcome is advisory and
// indicative only, not an underwriting decision.
func Match(profile Profile, catalog []Lender) (Result, error) {
	if !profile.Category.Valid() {
		return Result{}, fmt.Errorf("lender: invalid category %q", profile.Category)
	}
	if !profile.IncomeType.Valid() {
		return Result{}, fmt.Errorf("lender: invalid income type %q", profile.IncomeType)
	}

	res := Result{
		Accepted: make([]Acceptance, 0, len(catalog)),
		Rejected: make([]Rejection, 0, len(catalog)),
	}

	for _, l := range catalog {
		if !l.Active {
			continue
		}
		accept, reject := evaluate(profile, l)
		if len(reject) > 0 {
			res.Rejected = append(res.Rejected, Rejection{Lender: l.Name, Reasons: reject})
			continue
		}
		res.Accepted = append(res.Accepted, Acceptance{
			Lender:     l.Name,
			Confidence: confidence(profile, l),
			Reasons:    accept,
		})
	}

	sort.Slice(res.Accepted, func(i, j int) bool { return res.Accepted[i].Lender < res.Accepted[j].Lender })
	sort.Slice(res.Rejected, func(i, j int) bool { return res.Rejected[i].Lender < res.Rejected[j].Lender })

	return res, nil
}

// evaluate checks every applicable rule independently, accumulating the
// satisfied-rule reasons for accepted lenders and the failure reasons for
// rejected ones.
func evaluate(p Profile, l Lender) (satisfied, failed []string) {
	maxLTV, minIncome := categoryLimits(p.Category, l)

	if p.LTV > maxLTV {
		failed = append(failed, fmt.Sprintf("LTV %.1f%% exceeds maximum %.1f%%", p.LTV, maxLTV))
	} else {
		satisfied = append(satisfied, fmt.Sprintf("Within maximum LTV of %.1f%%", maxLTV))
	}

	if p.LoanAmount > 0 && l.MaxLoanAtMaxLTV > 0 {
		if p.LoanAmount > l.MaxLoanAtMaxLTV {
			failed = append(failed, fmt.Sprintf("Loan of £%.0f exceeds maximum £%.0f at this LTV", p.LoanAmount, l.MaxLoanAtMaxLTV))
		} else {
			satisfied = append(satisfied, "Loan within maximum size at this LTV")
		}
	}

	if minIncome > 0 {
		if p.AnnualIncome < minIncome {
			failed = append(failed, fmt.Sprintf("Income below minimum of £%.0f", minIncome))
		} else {
			satisfied = append(satisfied, fmt.Sprintf("Meets minimum income of £%.0f", minIncome))
		}
	}

	if p.IncomeType == casefile.IncomeSelfEmployed {
		if !l.SelfEmployedAccepted {
			failed = append(failed, "Does not accept self-employed applicants")
		} else {
			satisfied = append(satisfied, "Accepts self-employed applicants")
		}
	}

	if p.ClientAge > 0 && p.TermYears > 0 && l.MaxAgeAtTermEnd > 0 {
		ageAtEnd := p.ClientAge + p.TermYears
		if ageAtEnd > l.MaxAgeAtTermEnd {
			failed = append(failed, fmt.Sprintf("Age %d at end of term exceeds maximum %d", ageAtEnd, l.MaxAgeAtTermEnd))
		} else {
			satisfied = append(satisfied, fmt.Sprintf("Age %d at end of term within maximum %d", ageAtEnd, l.MaxAgeAtTermEnd))
		}
	}

	return satisfied, failed
}

// confidence scores an accepted lender from a base of 50 and clamps the
// result to [0, 100].
func confidence(p Profile, l Lender) int {
	maxLTV, _ := categoryLimits(p.Category, l)

	score := 50
	if maxLTV-p.LTV > 10 {
		score += 20
	}
	if p.AnnualIncome > 50000 {
		score += 15
	}
	if p.Category == casefile.CategoryResidential {
		score += 15
	}
	if l.FastProcessing {
		score += 10
	}
	if p.IncomeType == casefile.IncomeSelfEmployed {
		score -= 10
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// categoryLimits selects which lender fields apply: buy-to-let cases use the
// BTL limits, every other category uses the residential ones.
func categoryLimits(c casefile.Category, l Lender) (maxLTV, minIncome float64) {
	if c == casefile.CategoryBuyToLet {
		return l.MaxLTVBuyToLet, l.MinIncomeBuyToLet
	}
	return l.MaxLTVResidential, l.MinIncomeResidential
}
