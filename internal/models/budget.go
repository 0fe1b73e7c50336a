package models

import (
	"github.com/shopspring/decimal"
)

// ============================================================================
// PLANNED BUDGET (1:1 WITH INTERVENTION)
// ============================================================================

// PlannedBudget holds the rolled-up totals. Every stored figure is a pure
// function of result-activity cash, management-budget items and supply
// items; the roll-up service is the only writer.
type PlannedBudget struct {
	ID             int64  `json:"id" db:"id"`
	InterventionID int64  `json:"intervention_id" db:"intervention_id"`
	Currency       string `json:"currency" db:"currency"`

	PartnerContributionLocal decimal.Decimal `json:"partner_contribution_local" db:"partner_contribution_local"`
	PartnerSupplyLocal       decimal.Decimal `json:"partner_supply_local" db:"partner_supply_local"`
	TotalUnicefCashLocalWoHQ decimal.Decimal `json:"total_unicef_cash_local_wo_hq" db:"total_unicef_cash_local_wo_hq"`
	TotalHQCashLocal         decimal.Decimal `json:"total_hq_cash_local" db:"total_hq_cash_local"`
	UnicefCashLocal          decimal.Decimal `json:"unicef_cash_local" db:"unicef_cash_local"`
	InKindAmountLocal        decimal.Decimal `json:"in_kind_amount_local" db:"in_kind_amount_local"`
	TotalLocal               decimal.Decimal `json:"total_local" db:"total_local"`

	// ProgrammeEffectiveness is a percentage with one fractional digit.
	ProgrammeEffectiveness decimal.Decimal `json:"programme_effectiveness" db:"programme_effectiveness"`
}

// ============================================================================
// MANAGEMENT BUDGET (1:1 WITH INTERVENTION)
// ============================================================================

// ManagementBudget carries the three fixed activity kinds; their cash
// columns are aggregates of the owned items.
type ManagementBudget struct {
	ID             int64 `json:"id" db:"id"`
	InterventionID int64 `json:"intervention_id" db:"intervention_id"`

	ActInCountryUnicef decimal.Decimal `json:"act1_unicef" db:"act_in_country_unicef"`
	ActInCountryCSO    decimal.Decimal `json:"act1_partner" db:"act_in_country_cso"`
	ActOperationUnicef decimal.Decimal `json:"act2_unicef" db:"act_operation_unicef"`
	ActOperationCSO    decimal.Decimal `json:"act2_partner" db:"act_operation_cso"`
	ActPlanningUnicef  decimal.Decimal `json:"act3_unicef" db:"act_planning_unicef"`
	ActPlanningCSO     decimal.Decimal `json:"act3_partner" db:"act_planning_cso"`
}

// UnicefTotal sums the UNICEF cash over the three activity kinds.
func (b *ManagementBudget) UnicefTotal() decimal.Decimal {
	return b.ActInCountryUnicef.Add(b.ActOperationUnicef).Add(b.ActPlanningUnicef)
}

// CSOTotal sums the partner cash over the three activity kinds.
func (b *ManagementBudget) CSOTotal() decimal.Decimal {
	return b.ActInCountryCSO.Add(b.ActOperationCSO).Add(b.ActPlanningCSO)
}

// Total is the full management cash used for programme effectiveness.
func (b *ManagementBudget) Total() decimal.Decimal {
	return b.UnicefTotal().Add(b.CSOTotal())
}

// ApplyItems recomputes the six activity aggregates from the item rows.
func (b *ManagementBudget) ApplyItems(items []ManagementBudgetItem) {
	b.ActInCountryUnicef = decimal.Zero
	b.ActInCountryCSO = decimal.Zero
	b.ActOperationUnicef = decimal.Zero
	b.ActOperationCSO = decimal.Zero
	b.ActPlanningUnicef = decimal.Zero
	b.ActPlanningCSO = decimal.Zero
	for _, it := range items {
		switch it.Kind {
		case ActivityInCountry:
			b.ActInCountryUnicef = b.ActInCountryUnicef.Add(it.UnicefCash)
			b.ActInCountryCSO = b.ActInCountryCSO.Add(it.CSOCash)
		case ActivityOperation:
			b.ActOperationUnicef = b.ActOperationUnicef.Add(it.UnicefCash)
			b.ActOperationCSO = b.ActOperationCSO.Add(it.CSOCash)
		case ActivityPlanning:
			b.ActPlanningUnicef = b.ActPlanningUnicef.Add(it.UnicefCash)
			b.ActPlanningCSO = b.ActPlanningCSO.Add(it.CSOCash)
		}
	}
}

type ManagementBudgetItem struct {
	ID                 int64                  `json:"id" db:"id"`
	ManagementBudgetID int64                  `json:"budget_id" db:"management_budget_id"`
	Name               string                 `json:"name" db:"name"`
	Kind               ManagementActivityKind `json:"kind" db:"kind"`
	Unit               string                 `json:"unit" db:"unit"`
	UnitPrice          decimal.Decimal        `json:"unit_price" db:"unit_price"`
	NoUnits            decimal.Decimal        `json:"no_units" db:"no_units"`
	UnicefCash         decimal.Decimal        `json:"unicef_cash" db:"unicef_cash"`
	CSOCash            decimal.Decimal        `json:"cso_cash" db:"cso_cash"`
}
