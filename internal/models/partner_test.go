package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// RISK NARROWING
// ============================================================================

func TestRiskClass_GenericRatingWins(t *testing.T) {
	generic := RatingMedium
	psea := PseaHighRisk
	p := &Partner{RatingGeneric: &generic, RatingPsea: &psea}

	assert.Equal(t, RiskClassMedium, p.RiskClass(), "the micro assessment outranks the PSEA rating")
}

func TestRiskClass_PseaFallback(t *testing.T) {
	psea := PseaHighRisk
	p := &Partner{RatingPsea: &psea}

	assert.Equal(t, RiskClassHigh, p.RiskClass())
}

func TestRiskClass_Unrated(t *testing.T) {
	p := &Partner{}
	assert.Equal(t, RiskClassUnknown, p.RiskClass())
}

func TestNarrowGenericRating(t *testing.T) {
	assert.Equal(t, RiskClassHigh, NarrowGenericRating(RatingHigh))
	assert.Equal(t, RiskClassHigh, NarrowGenericRating(RatingSignificant))
	assert.Equal(t, RiskClassMedium, NarrowGenericRating(RatingMedium))
	assert.Equal(t, RiskClassLow, NarrowGenericRating(RatingLow))
	assert.Equal(t, RiskClassLow, NarrowGenericRating(RatingNotRequired))
	assert.Equal(t, RiskClassUnknown, NarrowGenericRating("nonsense"))
}

func TestNarrowPseaRating(t *testing.T) {
	assert.Equal(t, RiskClassHigh, NarrowPseaRating(PseaHighRisk))
	assert.Equal(t, RiskClassHigh, NarrowPseaRating(PseaEmergency))
	assert.Equal(t, RiskClassHigh, NarrowPseaRating(PseaNotAssessed))
	assert.Equal(t, RiskClassMedium, NarrowPseaRating(PseaModerate))
	assert.Equal(t, RiskClassLow, NarrowPseaRating(PseaLowRisk))
	assert.Equal(t, RiskClassLow, NarrowPseaRating(PseaNoContact))
}

// ============================================================================
// ASSESSMENT EXPIRY
// ============================================================================

func TestAssessmentExpired(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	p := &Partner{}
	assert.True(t, p.AssessmentExpired(now, 4), "never assessed means expired")

	fresh := now.AddDate(-3, 0, 0)
	p.LastAssessmentDate = &fresh
	assert.False(t, p.AssessmentExpired(now, 4))

	boundary := now.AddDate(-4, 0, 0)
	p.LastAssessmentDate = &boundary
	assert.False(t, p.AssessmentExpired(now, 4), "exactly at the limit is still valid")

	stale := now.AddDate(-4, 0, -1)
	p.LastAssessmentDate = &stale
	assert.True(t, p.AssessmentExpired(now, 4))
}

// ============================================================================
// PLANNED ENGAGEMENT
// ============================================================================

func TestPlannedEngagement_RequiredAudits(t *testing.T) {
	e := &PlannedEngagement{}
	assert.Equal(t, 0, e.RequiredAudits())

	e.ScheduledAudit = true
	assert.Equal(t, 1, e.RequiredAudits())

	e.SpecialAudit = true
	assert.Equal(t, 2, e.RequiredAudits())
}
