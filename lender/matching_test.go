package lender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/casefile"
)

func standardLender(name string) Lender {
	return Lender{
		ID:                   "lender-" + name,
		Name:                 name,
		Category:             "residential",
		MaxLTVResidential:    85,
		MaxLTVBuyToLet:       75,
		MinIncomeResidential: 25000,
		MinIncomeBuyToLet:    30000,
		SelfEmployedAccepted: true,
		MaxAgeAtTermEnd:      75,
		MaxLoanAtMaxLTV:      500000,
		Active:               true,
	}
}

func standardProfile() Profile {
	return Profile{
		LTV:          70,
		Category:     casefile.CategoryResidential,
		AnnualIncome: 45000,
		IncomeType:   casefile.IncomeEmployed,
		LoanAmount:   280000,
		ClientAge:    40,
		TermYears:    25,
	}
}

func TestMatch_Accepts(t *testing.T) {
	res, err := Match(standardProfile(), []Lender{standardLender("Alpha Bank")})
	require.NoError(t, err)

	require.Len(t, res.Accepted, 1)
	assert.Empty(t, res.Rejected)
	assert.Equal(t, "Alpha Bank", res.Accepted[0].Lender)
	assert.NotEmpty(t, res.Accepted[0].Reasons)
}

func TestMatch_LTVBoundary(t *testing.T) {
	l := standardLender("Alpha Bank")

	p := standardProfile()
	p.LTV = 85 // exactly at the limit
	res, err := Match(p, []Lender{l})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1, "ltv equal to the maximum is accepted")

	p.LTV = 85.1
	res, err = Match(p, []Lender{l})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reasons[0], "exceeds maximum")
}

func TestMatch_AccumulatesRejectionReasons(t *testing.T) {
	l := standardLender("Fussy Bank")
	l.SelfEmployedAccepted = false

	p := standardProfile()
	p.LTV = 92
	p.AnnualIncome = 18000
	p.IncomeType = casefile.IncomeSelfEmployed

	res, err := Match(p, []Lender{l})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Len(t, res.Rejected[0].Reasons, 3, "each failed rule contributes a reason")
}

func TestMatch_BuyToLetUsesBTLLimits(t *testing.T) {
	l := standardLender("Split Bank")

	p := standardProfile()
	p.Category = casefile.CategoryBuyToLet
	p.LTV = 80 // above the 75 BTL cap, below the 85 residential cap
	p.AnnualIncome = 45000

	res, err := Match(p, []Lender{l})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)

	p.LTV = 70
	res, err = Match(p, []Lender{l})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1)
}

func TestMatch_OptionalRulesDisabledByZero(t *testing.T) {
	l := standardLender("Alpha Bank")
	l.MaxAgeAtTermEnd = 0
	l.MaxLoanAtMaxLTV = 0
	l.MinIncomeResidential = 0

	p := standardProfile()
	p.ClientAge = 70
	p.TermYears = 30
	p.AnnualIncome = 0
	p.LoanAmount = 2000000

	res, err := Match(p, []Lender{l})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1, "zero-valued limits disable their rules")
}

func TestMatch_AgeAtTermEnd(t *testing.T) {
	l := standardLender("Alpha Bank")

	p := standardProfile()
	p.ClientAge = 51
	p.TermYears = 25 // 76 > 75

	res, err := Match(p, []Lender{l})
	require.NoError(t, err)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reasons[0], "end of term")

	p.ClientAge = 50 // exactly 75
	res, err = Match(p, []Lender{l})
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 1)
}

func TestMatch_SkipsInactive(t *testing.T) {
	l := standardLender("Dormant Bank")
	l.Active = false

	res, err := Match(standardProfile(), []Lender{l})
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	assert.Empty(t, res.Rejected)
}

func TestMatch_SortedByName(t *testing.T) {
	res, err := Match(standardProfile(), []Lender{
		standardLender("Zeta Bank"),
		standardLender("Alpha Bank"),
		standardLender("Mid Bank"),
	})
	require.NoError(t, err)

	require.Len(t, res.Accepted, 3)
	assert.Equal(t, "Alpha Bank", res.Accepted[0].Lender)
	assert.Equal(t, "Mid Bank", res.Accepted[1].Lender)
	assert.Equal(t, "Zeta Bank", res.Accepted[2].Lender)
}

func TestConfidence(t *testing.T) {
	l := standardLender("Alpha Bank")

	// 50 base + 20 (headroom) + 15 (income) + 15 (residential) = 100
	p := standardProfile()
	p.LTV = 70
	p.AnnualIncome = 60000
	res, err := Match(p, []Lender{l})
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, 100, res.Accepted[0].Confidence)

	// Fast processing would push past 100; the clamp holds it there.
	l.FastProcessing = true
	res, err = Match(p, []Lender{l})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Accepted[0].Confidence)

	// Self-employed discount applies.
	p.IncomeType = casefile.IncomeSelfEmployed
	res, err = Match(p, []Lender{l})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Accepted[0].Confidence, "110-10 still clamps to 100")

	l.FastProcessing = false
	res, err = Match(p, []Lender{l})
	require.NoError(t, err)
	assert.Equal(t, 90, res.Accepted[0].Confidence)
}

func TestMatch_Idempotent(t *testing.T) {
	catalog := []Lender{standardLender("Alpha Bank"), standardLender("Zeta Bank")}
	p := standardProfile()

	first, err := Match(p, catalog)
	require.NoError(t, err)
	second, err := Match(p, catalog)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMatch_Validation(t *testing.T) {
	p := standardProfile()
	p.Category = "timeshare"
	_, err := Match(p, nil)
	assert.Error(t, err)

	p = standardProfile()
	p.IncomeType = "windfall"
	_, err = Match(p, nil)
	assert.Error(t, err)
}
