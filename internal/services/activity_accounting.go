package services

import (
	"hact-service/internal/models"

	"github.com/shopspring/decimal"
)

// ActivityAccounting turns raw completed-activity rows into quarter
// buckets. All methods are pure so the counting rules are testable without
// a store; the ledger service feeds them the loaded rows.
type ActivityAccounting struct{}

func NewActivityAccounting() *ActivityAccounting {
	return &ActivityAccounting{}
}

// CompletedProgrammaticVisits merges the three heterogeneous sources into
// one per-quarter bucket for the given year.
func (a *ActivityAccounting) CompletedProgrammaticVisits(
	year int,
	travels []models.TravelActivity,
	tpm []models.TPMActivity,
	fm []models.FieldMonitoringActivity,
	groupIDs []int64,
) models.QuarterBucket {
	var bucket models.QuarterBucket

	for _, t := range travels {
		if t.CountsAsProgrammaticVisit(year) {
			bucket.Add(models.QuarterOf(t.EndDate), 1)
		}
	}
	for _, t := range tpm {
		if t.CountsAsProgrammaticVisit(year) {
			bucket.Add(models.QuarterOf(t.Date), 1)
		}
	}

	covered := make(map[int64]bool, len(groupIDs))
	for _, id := range groupIDs {
		covered[id] = true
	}
	// A covering group contributes once per distinct end-date quarter;
	// ungrouped activities count only when they carry an overall HACT
	// rating for the partner.
	type groupQuarter struct {
		group   int64
		quarter int
	}
	seen := make(map[groupQuarter]bool)
	for _, f := range fm {
		if !f.Eligible(year) {
			continue
		}
		if f.GroupID != nil && covered[*f.GroupID] {
			gq := groupQuarter{group: *f.GroupID, quarter: models.QuarterOf(f.EndDate)}
			if !seen[gq] {
				seen[gq] = true
				bucket.Add(gq.quarter, 1)
			}
			continue
		}
		if f.GroupID == nil && f.HasOverallRating {
			bucket.Add(models.QuarterOf(f.EndDate), 1)
		}
	}

	return bucket
}

// CompletedSpotChecks buckets non-cancelled spot-check engagements by the
// quarter of their draft report date.
func (a *ActivityAccounting) CompletedSpotChecks(year int, engagements []models.SpotCheckEngagement) models.QuarterBucket {
	var bucket models.QuarterBucket
	for _, e := range engagements {
		if e.Counts(year) {
			bucket.Add(models.QuarterOf(*e.DateOfDraftReportToIP), 1)
		}
	}
	return bucket
}

// CompletedAudits counts non-cancelled scheduled and special audits with a
// draft report in the year. Audits are not quartered.
func (a *ActivityAccounting) CompletedAudits(year int, engagements []models.AuditEngagement) int {
	n := 0
	for _, e := range engagements {
		if e.Counts(year) && (e.AuditType == models.AuditScheduled || e.AuditType == models.AuditSpecial) {
			n++
		}
	}
	return n
}

// OutstandingFindings sums the pending unsupported amounts over audits
// that carry one, whatever their report year.
func (a *ActivityAccounting) OutstandingFindings(engagements []models.AuditEngagement) decimal.Decimal {
	total := decimal.Zero
	for _, e := range engagements {
		if e.PendingUnsupportedAmt != nil {
			total = total.Add(*e.PendingUnsupportedAmt)
		}
	}
	return total
}

// PlannedProgrammaticVisits aggregates the partner's planned visits for
// the year into a quarter bucket. Government partners plan per partner,
// others per intervention; both row shapes land here.
func (a *ActivityAccounting) PlannedProgrammaticVisits(visits []models.PlannedVisit) models.QuarterBucket {
	var bucket models.QuarterBucket
	for _, v := range visits {
		bucket.Q1 += v.ProgrammaticQ1
		bucket.Q2 += v.ProgrammaticQ2
		bucket.Q3 += v.ProgrammaticQ3
		bucket.Q4 += v.ProgrammaticQ4
	}
	bucket.Normalize()
	return bucket
}
