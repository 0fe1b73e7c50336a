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

func testAgreementService(now time.Time) *AgreementService {
	return &AgreementService{
		cfg: testHactConfig(),
		now: func() time.Time { return now },
	}
}

func signedAgreement(agreementType models.AgreementType) *models.Agreement {
	partnerDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	unicefDate := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	url := "https://docs.example.org/agreement.pdf"
	cpID := int64(7)
	return &models.Agreement{
		ID:                   11,
		PartnerID:            1,
		AgreementType:        agreementType,
		Status:               models.AgreementDraft,
		CountryProgrammeID:   &cpID,
		SignedByPartnerDate:  &partnerDate,
		SignedByUnicefDate:   &unicefDate,
		AttachedAgreementURL: &url,
	}
}

// ============================================================================
// EDGE SET
// ============================================================================

func TestAgreementTransitions_LegalEdges(t *testing.T) {
	assert.True(t, transitionAllowed(agreementTransitions[models.AgreementDraft], models.AgreementSigned))
	assert.True(t, transitionAllowed(agreementTransitions[models.AgreementSigned], models.AgreementEnded))
	assert.True(t, transitionAllowed(agreementTransitions[models.AgreementSigned], models.AgreementSuspended))
	assert.True(t, transitionAllowed(agreementTransitions[models.AgreementSigned], models.AgreementTerminated))
}

func TestAgreementTransitions_IllegalEdges(t *testing.T) {
	assert.False(t, transitionAllowed(agreementTransitions[models.AgreementDraft], models.AgreementEnded), "draft cannot end directly")
	assert.False(t, transitionAllowed(agreementTransitions[models.AgreementDraft], models.AgreementSuspended))
	assert.False(t, transitionAllowed(agreementTransitions[models.AgreementSigned], models.AgreementDraft), "no way back to draft")
	assert.False(t, transitionAllowed(agreementTransitions[models.AgreementEnded], models.AgreementSigned), "ended is terminal")
	assert.False(t, transitionAllowed(agreementTransitions[models.AgreementTerminated], models.AgreementSigned))
}

// ============================================================================
// SIGNING GUARD
// ============================================================================

func TestAgreementGuard_SignedHappyPath(t *testing.T) {
	s := testAgreementService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	agreement := signedAgreement(models.AgreementPCA)

	err := s.guardTransition(agreement, models.AgreementSigned, models.Actor{UserID: "u1"})
	assert.NoError(t, err)
}

func TestAgreementGuard_SignedCollectsAllReasons(t *testing.T) {
	s := testAgreementService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	agreement := signedAgreement(models.AgreementPCA)
	agreement.SignedByPartnerDate = nil
	agreement.SignedByUnicefDate = nil
	agreement.CountryProgrammeID = nil
	agreement.AttachedAgreementURL = nil

	err := s.guardTransition(agreement, models.AgreementSigned, models.Actor{UserID: "u1"})
	assert.Error(t, err)
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err))

	var guardErr *models.Error
	assert.ErrorAs(t, err, &guardErr)
	assert.Len(t, guardErr.Fields, 4, "every failing reason must be reported at once")
	assert.Contains(t, guardErr.Fields, "signed_by_unicef_date")
	assert.Contains(t, guardErr.Fields, "signed_by_partner_date")
	assert.Contains(t, guardErr.Fields, "country_programme")
	assert.Contains(t, guardErr.Fields, "attached_agreement")
}

func TestAgreementGuard_SSFANeedsNoAttachment(t *testing.T) {
	s := testAgreementService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	agreement := signedAgreement(models.AgreementSSFA)
	agreement.AttachedAgreementURL = nil
	agreement.CountryProgrammeID = nil

	err := s.guardTransition(agreement, models.AgreementSigned, models.Actor{UserID: "u1"})
	assert.NoError(t, err, "SSFA agreements sign without a countersigned document")
}

func TestAgreementGuard_MOUNeedsNoCountryProgramme(t *testing.T) {
	s := testAgreementService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	agreement := signedAgreement(models.AgreementMOU)
	agreement.CountryProgrammeID = nil

	err := s.guardTransition(agreement, models.AgreementSigned, models.Actor{UserID: "u1"})
	assert.NoError(t, err, "the country programme rule binds PCA only")
}

// ============================================================================
// END GUARD
// ============================================================================

func TestAgreementGuard_EndedRequiresPastEndDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := testAgreementService(now)

	agreement := signedAgreement(models.AgreementPCA)
	agreement.Status = models.AgreementSigned

	future := now.AddDate(0, 1, 0)
	agreement.EndDate = &future
	err := s.guardTransition(agreement, models.AgreementEnded, models.Actor{UserID: "u1"})
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err), "a future end date holds the transition")

	past := now.AddDate(0, -1, 0)
	agreement.EndDate = &past
	err = s.guardTransition(agreement, models.AgreementEnded, models.Actor{UserID: "u1"})
	assert.NoError(t, err)

	agreement.EndDate = nil
	err = s.guardTransition(agreement, models.AgreementEnded, models.Actor{UserID: "u1"})
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err), "no end date, no ending")
}

// ============================================================================
// PRIVILEGED TRANSITIONS
// ============================================================================

func TestAgreementGuard_SuspendTerminateRequireManager(t *testing.T) {
	s := testAgreementService(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	agreement := signedAgreement(models.AgreementPCA)
	agreement.Status = models.AgreementSigned

	for _, target := range []models.AgreementStatus{models.AgreementSuspended, models.AgreementTerminated} {
		err := s.guardTransition(agreement, target, models.Actor{UserID: "u1"})
		assert.Equal(t, models.ErrPermissionDenied, models.KindOf(err), "plain users cannot move to %s", target)

		err = s.guardTransition(agreement, target, models.Actor{UserID: "pm", IsPartnershipMgr: true})
		assert.NoError(t, err, "partnership managers may move to %s", target)
	}
}

// ============================================================================
// CASCADES
// ============================================================================

func TestAgreementCascades_TargetMapping(t *testing.T) {
	assert.Equal(t, models.InterventionSuspended, agreementCascades[models.AgreementSuspended])
	assert.Equal(t, models.InterventionTerminated, agreementCascades[models.AgreementTerminated])

	_, ok := agreementCascades[models.AgreementEnded]
	assert.False(t, ok, "ending an agreement never cascades")
	_, ok = agreementCascades[models.AgreementSigned]
	assert.False(t, ok)
}

func TestAgreementCascades_SkipTerminalChildren(t *testing.T) {
	// The cascade loop skips children whose status is terminal; closed and
	// cancelled documents keep their status when the agreement is suspended.
	for _, status := range []models.InterventionStatus{
		models.InterventionClosed,
		models.InterventionTerminated,
		models.InterventionCancelled,
		models.InterventionExpired,
	} {
		assert.True(t, models.IsTerminalIntervention(status), "%s is terminal", status)
	}
	for _, status := range []models.InterventionStatus{
		models.InterventionSigned,
		models.InterventionActive,
		models.InterventionSuspended,
	} {
		assert.False(t, models.IsTerminalIntervention(status), "%s still cascades", status)
	}
}
