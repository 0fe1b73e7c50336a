package models

// Related-field names used as RelatedObjectsMap and Difference keys. They
// are part of the stored amendment document, so they are stable.
const (
	FieldResultLinks      = "result_links"
	FieldLowerResults     = "lower_results"
	FieldActivities       = "activities"
	FieldIndicators       = "applied_indicators"
	FieldPlannedBudget    = "planned_budget"
	FieldManagementBudget = "management_budget"
	FieldManagementItems  = "management_budget_items"
	FieldPlannedVisits    = "planned_visits"
	FieldSupplyItems      = "supply_items"
	FieldRisks            = "risks"
	FieldIntervention     = "intervention"
)

// InterventionGraph is the full cloned subgraph of an intervention: the
// document row plus every collection the amendment protocol forks.
type InterventionGraph struct {
	Intervention     Intervention
	ResultLinks      []ResultLink
	LowerResults     []LowerResult
	Activities       []ResultActivity
	Indicators       []AppliedIndicator
	PlannedBudget    *PlannedBudget
	ManagementBudget *ManagementBudget
	ManagementItems  []ManagementBudgetItem
	PlannedVisits    []PlannedVisit
	SupplyItems      []SupplyItem
	Risks            []InterventionRisk
}
