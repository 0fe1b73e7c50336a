package services

import (
	"testing"
	"time"

	"hact-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func completedTravel(end time.Time) models.TravelActivity {
	return models.TravelActivity{
		TravelerID:      7,
		PrimaryTraveler: 7,
		Kind:            models.TravelProgrammeMonitoring,
		Status:          models.TravelCompleted,
		EndDate:         end,
	}
}

// ============================================================================
// PROGRAMMATIC VISIT COUNTING
// ============================================================================

func TestCompletedProgrammaticVisits_MergesSources(t *testing.T) {
	accounting := NewActivityAccounting()

	travels := []models.TravelActivity{
		completedTravel(day(2024, 2, 15)),
		completedTravel(day(2024, 5, 20)),
		completedTravel(day(2024, 11, 1)),
	}
	tpm := []models.TPMActivity{
		{IsPV: true, Status: models.TPMUNICEFApproved, Date: day(2024, 5, 30)},
	}

	bucket := accounting.CompletedProgrammaticVisits(2024, travels, tpm, nil, nil)

	assert.Equal(t, models.QuarterBucket{Q1: 1, Q2: 2, Q3: 0, Q4: 1, Total: 4}, bucket)
}

func TestCompletedProgrammaticVisits_TravelFilters(t *testing.T) {
	accounting := NewActivityAccounting()

	wrongYear := completedTravel(day(2023, 2, 15))
	notCompleted := completedTravel(day(2024, 2, 15))
	notCompleted.Status = models.TravelPlanned
	delegated := completedTravel(day(2024, 2, 15))
	delegated.TravelerID = 8

	bucket := accounting.CompletedProgrammaticVisits(2024,
		[]models.TravelActivity{wrongYear, notCompleted, delegated}, nil, nil, nil)

	assert.Equal(t, 0, bucket.Total, "only completed primary-traveler legs of the year count")
}

func TestCompletedProgrammaticVisits_TPMNeedsApprovalAndFlag(t *testing.T) {
	accounting := NewActivityAccounting()

	tpm := []models.TPMActivity{
		{IsPV: true, Status: models.TPMUNICEFApproved, Date: day(2024, 3, 1)},
		{IsPV: false, Status: models.TPMUNICEFApproved, Date: day(2024, 3, 2)},
		{IsPV: true, Status: models.TPMReported, Date: day(2024, 3, 3)},
	}

	bucket := accounting.CompletedProgrammaticVisits(2024, nil, tpm, nil, nil)

	assert.Equal(t, models.QuarterBucket{Q1: 1, Total: 1}, bucket)
}

func TestCompletedProgrammaticVisits_GroupCountsOncePerQuarter(t *testing.T) {
	accounting := NewActivityAccounting()
	groupID := int64(5)

	fm := []models.FieldMonitoringActivity{
		{Status: models.MonitoringCompleted, EndDate: day(2024, 1, 10), GroupID: &groupID},
		{Status: models.MonitoringCompleted, EndDate: day(2024, 2, 10), GroupID: &groupID},
		{Status: models.MonitoringCompleted, EndDate: day(2024, 7, 10), GroupID: &groupID},
	}

	bucket := accounting.CompletedProgrammaticVisits(2024, nil, nil, fm, []int64{groupID})

	assert.Equal(t, models.QuarterBucket{Q1: 1, Q3: 1, Total: 2},
		bucket, "a covering group contributes once per distinct quarter")
}

func TestCompletedProgrammaticVisits_UngroupedNeedsOverallRating(t *testing.T) {
	accounting := NewActivityAccounting()

	fm := []models.FieldMonitoringActivity{
		{Status: models.MonitoringCompleted, EndDate: day(2024, 4, 10), HasOverallRating: true},
		{Status: models.MonitoringCompleted, EndDate: day(2024, 4, 11), HasOverallRating: false},
	}

	bucket := accounting.CompletedProgrammaticVisits(2024, nil, nil, fm, nil)

	assert.Equal(t, models.QuarterBucket{Q2: 1, Total: 1}, bucket)
}

func TestCompletedProgrammaticVisits_UncoveredGroupIgnored(t *testing.T) {
	accounting := NewActivityAccounting()
	otherGroup := int64(9)

	fm := []models.FieldMonitoringActivity{
		{Status: models.MonitoringCompleted, EndDate: day(2024, 4, 10), GroupID: &otherGroup},
	}

	bucket := accounting.CompletedProgrammaticVisits(2024, nil, nil, fm, []int64{5})

	assert.Equal(t, 0, bucket.Total, "groups not covering the partner do not contribute")
}

// ============================================================================
// SPOT CHECKS AND AUDITS
// ============================================================================

func TestCompletedSpotChecks(t *testing.T) {
	accounting := NewActivityAccounting()
	q1 := day(2024, 3, 1)
	q3 := day(2024, 8, 1)
	lastYear := day(2023, 8, 1)

	engagements := []models.SpotCheckEngagement{
		{Status: models.EngagementFinal, DateOfDraftReportToIP: &q1},
		{Status: models.EngagementFinal, DateOfDraftReportToIP: &q3},
		{Status: models.EngagementCancelled, DateOfDraftReportToIP: &q3},
		{Status: models.EngagementFinal, DateOfDraftReportToIP: &lastYear},
		{Status: models.EngagementFinal},
	}

	bucket := accounting.CompletedSpotChecks(2024, engagements)

	assert.Equal(t, models.QuarterBucket{Q1: 1, Q3: 1, Total: 2}, bucket)
}

func TestCompletedAudits(t *testing.T) {
	accounting := NewActivityAccounting()
	reported := day(2024, 6, 1)

	engagements := []models.AuditEngagement{
		{AuditType: models.AuditScheduled, Status: models.EngagementFinal, DateOfDraftReportToIP: &reported},
		{AuditType: models.AuditSpecial, Status: models.EngagementFinal, DateOfDraftReportToIP: &reported},
		{AuditType: models.AuditScheduled, Status: models.EngagementCancelled, DateOfDraftReportToIP: &reported},
		{AuditType: models.AuditScheduled, Status: models.EngagementFinal},
	}

	assert.Equal(t, 2, accounting.CompletedAudits(2024, engagements))
}

func TestOutstandingFindings_SumsAcrossYears(t *testing.T) {
	accounting := NewActivityAccounting()
	old := day(2021, 6, 1)
	recent := day(2024, 6, 1)
	amtOld := decimal.NewFromInt(1200)
	amtRecent := decimal.NewFromFloat(350.50)

	engagements := []models.AuditEngagement{
		{AuditType: models.AuditScheduled, Status: models.EngagementFinal, DateOfDraftReportToIP: &old, PendingUnsupportedAmt: &amtOld},
		{AuditType: models.AuditSpecial, Status: models.EngagementFinal, DateOfDraftReportToIP: &recent, PendingUnsupportedAmt: &amtRecent},
		{AuditType: models.AuditScheduled, Status: models.EngagementFinal, DateOfDraftReportToIP: &recent},
	}

	total := accounting.OutstandingFindings(engagements)

	assert.True(t, total.Equal(decimal.NewFromFloat(1550.50)),
		"outstanding findings accumulate regardless of report year, got %s", total)
}

func TestPlannedProgrammaticVisits_AggregatesRows(t *testing.T) {
	accounting := NewActivityAccounting()

	visits := []models.PlannedVisit{
		{Year: 2024, ProgrammaticQ1: 1, ProgrammaticQ3: 2},
		{Year: 2024, ProgrammaticQ2: 1, ProgrammaticQ3: 1},
	}

	bucket := accounting.PlannedProgrammaticVisits(visits)

	assert.Equal(t, models.QuarterBucket{Q1: 1, Q2: 1, Q3: 3, Q4: 0, Total: 5}, bucket)
}

func TestQuarterOf(t *testing.T) {
	assert.Equal(t, 1, models.QuarterOf(day(2024, 3, 31)))
	assert.Equal(t, 2, models.QuarterOf(day(2024, 4, 1)))
	assert.Equal(t, 4, models.QuarterOf(day(2024, 12, 31)))
}
