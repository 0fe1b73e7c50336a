package services

import (
	"testing"

	"hact-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func testRollup() *BudgetRollup {
	return &BudgetRollup{cfg: testHactConfig()}
}

func rollupGraph() *models.InterventionGraph {
	return &models.InterventionGraph{
		Intervention: models.Intervention{
			ID:            42,
			HQSupportCost: decimal.NewFromFloat(7.0),
		},
		Activities: []models.ResultActivity{
			{ID: 1, UnicefCash: decimal.NewFromInt(50000), CSOCash: decimal.NewFromInt(10000), IsActive: true},
			{ID: 2, UnicefCash: decimal.NewFromInt(30000), CSOCash: decimal.NewFromInt(5000), IsActive: true},
		},
		ManagementBudget: &models.ManagementBudget{
			ActInCountryUnicef: decimal.NewFromInt(4000),
			ActInCountryCSO:    decimal.NewFromInt(1000),
			ActOperationUnicef: decimal.NewFromInt(2000),
			ActPlanningCSO:     decimal.NewFromInt(500),
		},
		SupplyItems: []models.SupplyItem{
			{ID: 1, TotalPrice: decimal.NewFromInt(12000), ProvidedBy: models.ProvidedByUNICEF},
			{ID: 2, TotalPrice: decimal.NewFromInt(3000), ProvidedBy: models.ProvidedByPartner},
		},
	}
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, actual.Equal(decimal.RequireFromString(expected)),
		"expected %s, got %s", expected, actual)
}

// ============================================================================
// ROLL-UP ARITHMETIC
// ============================================================================

func TestBudgetRollup_FullGraph(t *testing.T) {
	budget := testRollup().Compute(rollupGraph())

	// Activity UNICEF 80000 + management UNICEF 6000 = 86000.
	assertDecimal(t, "86000", budget.TotalUnicefCashLocalWoHQ)
	// 7% HQ support on the cash base.
	assertDecimal(t, "6020", budget.TotalHQCashLocal)
	assertDecimal(t, "92020", budget.UnicefCashLocal)
	// Activity CSO 15000 + management CSO 1500.
	assertDecimal(t, "16500", budget.PartnerContributionLocal)
	assertDecimal(t, "12000", budget.InKindAmountLocal)
	assertDecimal(t, "3000", budget.PartnerSupplyLocal)
	assertDecimal(t, "123520", budget.TotalLocal)
	// Management total 7500 over 123520, one fractional digit.
	assertDecimal(t, "6.1", budget.ProgrammeEffectiveness)

	assert.Equal(t, int64(42), budget.InterventionID)
	assert.Equal(t, "USD", budget.Currency)
}

func TestBudgetRollup_TotalIsSumOfComponents(t *testing.T) {
	budget := testRollup().Compute(rollupGraph())

	sum := budget.UnicefCashLocal.
		Add(budget.InKindAmountLocal).
		Add(budget.PartnerContributionLocal).
		Add(budget.PartnerSupplyLocal)
	assert.True(t, budget.TotalLocal.Equal(sum), "total must equal the sum of its components")

	withHQ := budget.TotalUnicefCashLocalWoHQ.Add(budget.TotalHQCashLocal)
	assert.True(t, budget.UnicefCashLocal.Equal(withHQ))
}

func TestBudgetRollup_InactiveActivitiesExcluded(t *testing.T) {
	graph := rollupGraph()
	graph.Activities[1].IsActive = false

	budget := testRollup().Compute(graph)
	assertDecimal(t, "56000", budget.TotalUnicefCashLocalWoHQ, "only active activity cash counts")
	assertDecimal(t, "11500", budget.PartnerContributionLocal)
}

func TestBudgetRollup_HQCashRounding(t *testing.T) {
	graph := &models.InterventionGraph{
		Intervention: models.Intervention{ID: 42, HQSupportCost: decimal.NewFromFloat(7.0)},
		Activities: []models.ResultActivity{
			{ID: 1, UnicefCash: decimal.RequireFromString("333.33"), IsActive: true},
		},
	}

	budget := testRollup().Compute(graph)
	// 333.33 * 7% = 23.3331, rounded half-up to cents.
	assertDecimal(t, "23.33", budget.TotalHQCashLocal)
	assertDecimal(t, "356.66", budget.UnicefCashLocal)
}

func TestBudgetRollup_ZeroHQSupportCost(t *testing.T) {
	graph := rollupGraph()
	graph.Intervention.HQSupportCost = decimal.Zero

	budget := testRollup().Compute(graph)
	assert.True(t, budget.TotalHQCashLocal.IsZero())
	assert.True(t, budget.UnicefCashLocal.Equal(budget.TotalUnicefCashLocalWoHQ))
}

func TestBudgetRollup_EmptyGraph(t *testing.T) {
	graph := &models.InterventionGraph{
		Intervention: models.Intervention{ID: 42, HQSupportCost: decimal.NewFromFloat(7.0)},
	}

	budget := testRollup().Compute(graph)
	assert.True(t, budget.TotalLocal.IsZero())
	assert.True(t, budget.ProgrammeEffectiveness.IsZero(), "effectiveness of an empty budget is zero, not a division error")
}

func TestBudgetRollup_PreservesBudgetRowIdentity(t *testing.T) {
	graph := rollupGraph()
	graph.PlannedBudget = &models.PlannedBudget{ID: 9, InterventionID: 42, Currency: "KES"}

	budget := testRollup().Compute(graph)
	assert.Equal(t, int64(9), budget.ID, "recomputes update the existing row")
	assert.Equal(t, "KES", budget.Currency, "currency is frozen at creation")
}

// ============================================================================
// MANAGEMENT BUDGET AGGREGATES
// ============================================================================

func TestManagementBudget_ApplyItems(t *testing.T) {
	b := &models.ManagementBudget{}
	b.ApplyItems([]models.ManagementBudgetItem{
		{Kind: models.ActivityInCountry, UnicefCash: decimal.NewFromInt(300), CSOCash: decimal.NewFromInt(100)},
		{Kind: models.ActivityInCountry, UnicefCash: decimal.NewFromInt(200)},
		{Kind: models.ActivityOperation, CSOCash: decimal.NewFromInt(50)},
		{Kind: models.ActivityPlanning, UnicefCash: decimal.NewFromInt(80)},
	})

	assertDecimal(t, "500", b.ActInCountryUnicef)
	assertDecimal(t, "100", b.ActInCountryCSO)
	assertDecimal(t, "50", b.ActOperationCSO)
	assertDecimal(t, "80", b.ActPlanningUnicef)
	assertDecimal(t, "580", b.UnicefTotal())
	assertDecimal(t, "150", b.CSOTotal())
	assertDecimal(t, "730", b.Total())
}
