package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// ACTIVITY SOURCES (COMPLETED ASSURANCE FACTS)
// ============================================================================
//
// These rows are written by the external ingest pipelines; the core only
// reads them when counting completions.

// TravelActivity is a monitoring travel leg attributed to a partner.
type TravelActivity struct {
	ID              int64        `json:"id" db:"id"`
	PartnerID       int64        `json:"partner_id" db:"partner_id"`
	TravelerID      int64        `json:"traveler_id" db:"traveler_id"`
	PrimaryTraveler int64        `json:"primary_traveler_id" db:"primary_traveler_id"`
	Kind            TravelKind   `json:"travel_type" db:"travel_type"`
	Status          TravelStatus `json:"status" db:"status"`
	EndDate         time.Time    `json:"end_date" db:"end_date"`
}

// CountsAsProgrammaticVisit applies the travel-stream filter: programmatic
// kind, completed, reported by the primary traveler, ending in year.
func (t *TravelActivity) CountsAsProgrammaticVisit(year int) bool {
	return t.Kind == TravelProgrammeMonitoring &&
		t.Status == TravelCompleted &&
		t.TravelerID == t.PrimaryTraveler &&
		t.EndDate.Year() == year
}

// TPMActivity is a third-party monitoring visit.
type TPMActivity struct {
	ID        int64          `json:"id" db:"id"`
	PartnerID int64          `json:"partner_id" db:"partner_id"`
	IsPV      bool           `json:"is_pv" db:"is_pv"`
	Status    TPMVisitStatus `json:"status" db:"status"`
	Date      time.Time      `json:"date" db:"date"`
}

func (t *TPMActivity) CountsAsProgrammaticVisit(year int) bool {
	return t.IsPV && t.Status == TPMUNICEFApproved && t.Date.Year() == year
}

// FieldMonitoringActivity is a field-monitoring visit; it counts either
// through a covering activity group (once per group and quarter) or, when
// ungrouped, only if it produced an overall HACT rating for the partner.
type FieldMonitoringActivity struct {
	ID                int64                    `json:"id" db:"id"`
	PartnerID         int64                    `json:"partner_id" db:"partner_id"`
	Status            MonitoringActivityStatus `json:"status" db:"status"`
	EndDate           time.Time                `json:"end_date" db:"end_date"`
	HasOverallRating  bool                     `json:"has_overall_hact_rating" db:"has_overall_rating"`
	GroupID           *int64                   `json:"monitoring_activity_group_id,omitempty" db:"group_id"`
}

func (f *FieldMonitoringActivity) Eligible(year int) bool {
	return f.Status == MonitoringCompleted && f.EndDate.Year() == year
}

// MonitoringActivityGroup bundles field-monitoring activities covering one
// partner; a group contributes at most one visit per distinct quarter.
type MonitoringActivityGroup struct {
	ID        int64 `json:"id" db:"id"`
	PartnerID int64 `json:"partner_id" db:"partner_id"`
}

// ============================================================================
// FINANCIAL ENGAGEMENTS (SPOT CHECKS / AUDITS)
// ============================================================================

type SpotCheckEngagement struct {
	ID                     int64            `json:"id" db:"id"`
	PartnerID              int64            `json:"partner_id" db:"partner_id"`
	Status                 EngagementStatus `json:"status" db:"status"`
	DateOfDraftReportToIP  *time.Time       `json:"date_of_draft_report_to_ip,omitempty" db:"date_of_draft_report_to_ip"`
}

func (s *SpotCheckEngagement) Counts(year int) bool {
	return s.Status != EngagementCancelled &&
		s.DateOfDraftReportToIP != nil &&
		s.DateOfDraftReportToIP.Year() == year
}

type AuditEngagement struct {
	ID                     int64            `json:"id" db:"id"`
	PartnerID              int64            `json:"partner_id" db:"partner_id"`
	AuditType              AuditType        `json:"engagement_type" db:"audit_type"`
	Status                 EngagementStatus `json:"status" db:"status"`
	DateOfDraftReportToIP  *time.Time       `json:"date_of_draft_report_to_ip,omitempty" db:"date_of_draft_report_to_ip"`
	PendingUnsupportedAmt  *decimal.Decimal `json:"pending_unsupported_amount,omitempty" db:"pending_unsupported_amount"`
}

func (a *AuditEngagement) Counts(year int) bool {
	return a.Status != EngagementCancelled &&
		a.DateOfDraftReportToIP != nil &&
		a.DateOfDraftReportToIP.Year() == year
}

// QuarterOf maps a date onto 1..4.
func QuarterOf(d time.Time) int {
	return (int(d.Month())-1)/3 + 1
}
