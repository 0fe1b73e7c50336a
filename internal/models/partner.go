package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// PARTNER (IMPLEMENTING PARTNER LEDGER ROW)
// ============================================================================

type Partner struct {
	ID              int64       `json:"id" db:"id"`
	VendorNumber    string      `json:"vendor_number" db:"vendor_number"`
	Name            string      `json:"name" db:"name"`
	PartnerType     PartnerType `json:"partner_type" db:"partner_type"`
	CSOType         *CSOType    `json:"cso_type,omitempty" db:"cso_type"`
	Hidden          bool        `json:"hidden" db:"hidden"`

	RatingGeneric    *GenericRiskRating `json:"rating,omitempty" db:"rating"`
	RatingPsea       *PseaRiskRating    `json:"psea_rating,omitempty" db:"psea_rating"`
	TypeOfAssessment *string            `json:"type_of_assessment,omitempty" db:"type_of_assessment"`

	LastAssessmentDate       *time.Time `json:"last_assessment_date,omitempty" db:"last_assessment_date"`
	CoreValuesAssessmentDate *time.Time `json:"core_values_assessment_date,omitempty" db:"core_values_assessment_date"`
	PseaAssessmentDate       *time.Time `json:"psea_assessment_date,omitempty" db:"psea_assessment_date"`
	BasisForRiskRatingDate   *time.Time `json:"basis_for_risk_rating_date,omitempty" db:"basis_for_risk_rating_date"`

	// Cached financials, authoritative for policy computation. Refreshed
	// wholesale by the external finance ingest via ApplyFinancials.
	TotalCTCP           decimal.Decimal `json:"total_ct_cp" db:"total_ct_cp"`
	TotalCTCY           decimal.Decimal `json:"total_ct_cy" db:"total_ct_cy"`
	NetCTCY             decimal.Decimal `json:"net_ct_cy" db:"net_ct_cy"`
	ReportedCY          decimal.Decimal `json:"reported_cy" db:"reported_cy"`
	OutstandingDCT6To9  decimal.Decimal `json:"outstanding_dct_amount_6_to_9_months_usd" db:"outstanding_dct_6_to_9"`
	OutstandingDCTOver9 decimal.Decimal `json:"outstanding_dct_amount_more_than_9_months_usd" db:"outstanding_dct_over_9"`

	// Derived snapshot, serialized as a document column. Never written
	// directly; the ledger owns it.
	Snapshot HactSnapshot `json:"hact_values" db:"hact_values"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RiskClass narrows whichever rating vocabulary the partner carries. The
// generic rating wins when both are present because it reflects the fuller
// micro assessment.
func (p *Partner) RiskClass() RiskClass {
	if p.RatingGeneric != nil {
		return NarrowGenericRating(*p.RatingGeneric)
	}
	if p.RatingPsea != nil {
		return NarrowPseaRating(*p.RatingPsea)
	}
	return RiskClassUnknown
}

// AssessmentExpired reports whether the last micro assessment is older than
// the configured limit (HACT re-assessment cycle).
func (p *Partner) AssessmentExpired(now time.Time, limitYears int) bool {
	if p.LastAssessmentDate == nil {
		return true
	}
	return p.LastAssessmentDate.AddDate(limitYears, 0, 0).Before(now)
}

// PartnerFinancials is the payload ApplyFinancials replaces the cached
// aggregates with. All figures come from the external finance system.
type PartnerFinancials struct {
	TotalCTCP           decimal.Decimal `json:"total_ct_cp"`
	TotalCTCY           decimal.Decimal `json:"total_ct_cy"`
	NetCTCY             decimal.Decimal `json:"net_ct_cy"`
	ReportedCY          decimal.Decimal `json:"reported_cy"`
	OutstandingDCT6To9  decimal.Decimal `json:"outstanding_dct_amount_6_to_9_months_usd"`
	OutstandingDCTOver9 decimal.Decimal `json:"outstanding_dct_amount_more_than_9_months_usd"`
}

// ============================================================================
// PLANNED ENGAGEMENT (0..1 PER PARTNER AND YEAR)
// ============================================================================

type PlannedEngagement struct {
	ID                 int64 `json:"id" db:"id"`
	PartnerID          int64 `json:"partner_id" db:"partner_id"`
	Year               int   `json:"year" db:"year"`
	SpotCheckPlannedQ1 int   `json:"spot_check_planned_q1" db:"spot_check_planned_q1"`
	SpotCheckPlannedQ2 int   `json:"spot_check_planned_q2" db:"spot_check_planned_q2"`
	SpotCheckPlannedQ3 int   `json:"spot_check_planned_q3" db:"spot_check_planned_q3"`
	SpotCheckPlannedQ4 int   `json:"spot_check_planned_q4" db:"spot_check_planned_q4"`
	SpotCheckFollowUp  int   `json:"spot_check_follow_up" db:"spot_check_follow_up"`
	ScheduledAudit     bool  `json:"scheduled_audit" db:"scheduled_audit"`
	SpecialAudit       bool  `json:"special_audit" db:"special_audit"`
}

// RequiredAudits sums the two audit flags the way the assurance policy
// counts them.
func (e *PlannedEngagement) RequiredAudits() int {
	n := 0
	if e.ScheduledAudit {
		n++
	}
	if e.SpecialAudit {
		n++
	}
	return n
}
