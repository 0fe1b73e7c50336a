package services

import (
	"testing"
	"time"

	"hact-service/internal/models"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func testInterventionService(now time.Time) *InterventionService {
	return &InterventionService{
		cfg: testHactConfig(),
		now: func() time.Time { return now },
	}
}

func testIntervention(status models.InterventionStatus) *models.Intervention {
	return &models.Intervention{
		ID:           42,
		AgreementID:  11,
		DocumentType: models.InterventionPD,
		Status:       status,
		Title:        "WASH programme",
		ReviewType:   models.ReviewNone,
	}
}

func interventionEdgeAllowed(from, to models.InterventionStatus) bool {
	for _, t := range interventionTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ============================================================================
// EDGE SET
// ============================================================================

func TestInterventionTransitions_LegalEdges(t *testing.T) {
	cases := []struct {
		from, to models.InterventionStatus
	}{
		{models.InterventionDraft, models.InterventionReview},
		{models.InterventionDraft, models.InterventionCancelled},
		{models.InterventionReview, models.InterventionSignature},
		{models.InterventionReview, models.InterventionCancelled},
		{models.InterventionSignature, models.InterventionSigned},
		{models.InterventionSigned, models.InterventionActive},
		{models.InterventionSigned, models.InterventionSuspended},
		{models.InterventionActive, models.InterventionEnded},
		{models.InterventionActive, models.InterventionTerminated},
		{models.InterventionSuspended, models.InterventionActive},
		{models.InterventionEnded, models.InterventionClosed},
		{models.InterventionEnded, models.InterventionActive},
	}
	for _, tc := range cases {
		assert.True(t, interventionEdgeAllowed(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestInterventionTransitions_IllegalEdges(t *testing.T) {
	cases := []struct {
		from, to models.InterventionStatus
	}{
		{models.InterventionDraft, models.InterventionSigned},
		{models.InterventionDraft, models.InterventionActive},
		{models.InterventionReview, models.InterventionDraft},
		{models.InterventionSigned, models.InterventionEnded},
		{models.InterventionSigned, models.InterventionCancelled},
		{models.InterventionActive, models.InterventionClosed},
		{models.InterventionClosed, models.InterventionActive},
		{models.InterventionTerminated, models.InterventionActive},
		{models.InterventionCancelled, models.InterventionDraft},
	}
	for _, tc := range cases {
		assert.False(t, interventionEdgeAllowed(tc.from, tc.to), "%s -> %s must be illegal", tc.from, tc.to)
	}
}

// ============================================================================
// TRANSITION GUARDS
// ============================================================================

func TestInterventionGuard_ReviewNeedsBothAcceptances(t *testing.T) {
	s := testInterventionService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	intervention := testIntervention(models.InterventionDraft)

	err := s.guardTransition(intervention, models.InterventionReview, models.Actor{UserID: "u1"})
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err))

	var guardErr *models.Error
	assert.ErrorAs(t, err, &guardErr)
	assert.Contains(t, guardErr.Fields, "unicef_accepted")
	assert.Contains(t, guardErr.Fields, "partner_accepted")

	intervention.UnicefAccepted = true
	err = s.guardTransition(intervention, models.InterventionReview, models.Actor{UserID: "u1"})
	assert.ErrorAs(t, err, &guardErr)
	assert.NotContains(t, guardErr.Fields, "unicef_accepted")
	assert.Contains(t, guardErr.Fields, "partner_accepted", "one acceptance is not enough")

	intervention.PartnerAccepted = true
	err = s.guardTransition(intervention, models.InterventionReview, models.Actor{UserID: "u1"})
	assert.NoError(t, err)
}

func TestInterventionGuard_SignedNeedsBothDates(t *testing.T) {
	s := testInterventionService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	intervention := testIntervention(models.InterventionSignature)

	err := s.guardTransition(intervention, models.InterventionSigned, models.Actor{UserID: "u1"})
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err))

	var guardErr *models.Error
	assert.ErrorAs(t, err, &guardErr)
	assert.Contains(t, guardErr.Fields, "signed_by_unicef_date")
	assert.Contains(t, guardErr.Fields, "signed_by_partner_date")

	partnerDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	unicefDate := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	intervention.SignedByPartnerDate = &partnerDate
	intervention.SignedByUnicefDate = &unicefDate
	err = s.guardTransition(intervention, models.InterventionSigned, models.Actor{UserID: "u1"})
	assert.NoError(t, err, "non-PRC documents sign on dates alone")
}

func TestInterventionGuard_EndedRequiresPastEndDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := testInterventionService(now)
	intervention := testIntervention(models.InterventionActive)

	err := s.guardTransition(intervention, models.InterventionEnded, models.Actor{UserID: "u1"})
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err), "missing end date")

	future := now.AddDate(0, 0, 7)
	intervention.EndDate = &future
	err = s.guardTransition(intervention, models.InterventionEnded, models.Actor{UserID: "u1"})
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err), "future end date")

	past := now.AddDate(0, 0, -7)
	intervention.EndDate = &past
	err = s.guardTransition(intervention, models.InterventionEnded, models.Actor{UserID: "u1"})
	assert.NoError(t, err)
}

func TestInterventionGuard_SuspendTerminateRequireManager(t *testing.T) {
	s := testInterventionService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	intervention := testIntervention(models.InterventionActive)

	for _, target := range []models.InterventionStatus{models.InterventionSuspended, models.InterventionTerminated} {
		err := s.guardTransition(intervention, target, models.Actor{UserID: "u1"})
		assert.Equal(t, models.ErrPermissionDenied, models.KindOf(err), "plain users cannot move to %s", target)

		err = s.guardTransition(intervention, target, models.Actor{UserID: "pm", IsPartnershipMgr: true})
		assert.NoError(t, err)
	}
}

func TestInterventionGuard_ResumeFromSuspensionIsUnconditional(t *testing.T) {
	s := testInterventionService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	intervention := testIntervention(models.InterventionSuspended)

	// The start-date and FR checks bind the signed->active edge only;
	// lifting a suspension restores the previous state as-is.
	err := s.guardTransition(intervention, models.InterventionActive, models.Actor{UserID: "u1"})
	assert.NoError(t, err)
}

// ============================================================================
// PATCH APPLICATION
// ============================================================================

func TestApplyPatch_ReportsSubstantiveEdits(t *testing.T) {
	intervention := testIntervention(models.InterventionDraft)

	title := "Revised WASH programme"
	edited := applyPatch(intervention, models.InterventionPatch{Title: &title})
	assert.True(t, edited)
	assert.Equal(t, title, intervention.Title)
}

func TestApplyPatch_SignatureMetadataIsNotAnEdit(t *testing.T) {
	intervention := testIntervention(models.InterventionSignature)

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	url := "https://docs.example.org/pd.pdf"
	edited := applyPatch(intervention, models.InterventionPatch{
		SignedByPartnerDate: &date,
		SignedByUnicefDate:  &date,
		SignedDocumentURL:   &url,
	})
	assert.False(t, edited, "recording signatures must not reset acceptances")
	assert.Equal(t, &date, intervention.SignedByPartnerDate)
	assert.Equal(t, &url, intervention.SignedDocumentURL)
}

func TestApplyPatch_EmptyPatchChangesNothing(t *testing.T) {
	intervention := testIntervention(models.InterventionDraft)
	before := *intervention

	edited := applyPatch(intervention, models.InterventionPatch{})
	assert.False(t, edited)
	assert.Equal(t, before, *intervention)
}

// ============================================================================
// AUTO TRANSITIONS
// ============================================================================

func TestAutoTarget_ActivePastEndDateEnds(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := testInterventionService(now)

	intervention := testIntervention(models.InterventionActive)
	past := now.AddDate(0, 0, -1)
	intervention.EndDate = &past

	target, ok := s.autoTarget(intervention)
	assert.True(t, ok)
	assert.Equal(t, models.InterventionEnded, target)
}

func TestAutoTarget_ActiveBeforeEndDateHolds(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := testInterventionService(now)

	intervention := testIntervention(models.InterventionActive)
	_, ok := s.autoTarget(intervention)
	assert.False(t, ok, "no end date, nothing to do")

	today := now
	intervention.EndDate = &today
	_, ok = s.autoTarget(intervention)
	assert.False(t, ok, "the end date itself has not passed yet")
}

func TestAutoTarget_EndedMovesTowardClosure(t *testing.T) {
	s := testInterventionService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	target, ok := s.autoTarget(testIntervention(models.InterventionEnded))
	assert.True(t, ok)
	assert.Equal(t, models.InterventionClosed, target, "closure is attempted nightly; the FR guard decides")
}

func TestAutoTarget_RestingStatesAreIgnored(t *testing.T) {
	s := testInterventionService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	for _, status := range []models.InterventionStatus{
		models.InterventionDraft,
		models.InterventionReview,
		models.InterventionSuspended,
		models.InterventionClosed,
		models.InterventionTerminated,
	} {
		_, ok := s.autoTarget(testIntervention(status))
		assert.False(t, ok, "%s has no date-driven transition", status)
	}
}
