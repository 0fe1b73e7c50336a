package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// REFERENCE NUMBERS
// ============================================================================

func TestAgreementBaseNumber(t *testing.T) {
	created := time.Date(2023, 11, 2, 0, 0, 0, 0, time.UTC)
	signed := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	a := &Agreement{ID: 123, AgreementType: AgreementPCA, CreatedAt: created}
	assert.Equal(t, "KEN/PCA2023123", a.BaseNumber("KEN"), "unsigned agreements use the creation year")

	a.SignedByUnicefDate = &signed
	assert.Equal(t, "KEN/PCA2024123", a.BaseNumber("KEN"), "the signature year wins once known")
}

func TestAgreementFullNumber(t *testing.T) {
	a := &Agreement{AgreementNumber: "KEN/PCA2024123"}
	assert.Equal(t, "KEN/PCA2024123", a.FullNumber(), "no suffix without signed amendments")

	a.AmendmentCount = 2
	assert.Equal(t, "KEN/PCA2024123-02", a.FullNumber())

	a.AmendmentCount = 11
	assert.Equal(t, "KEN/PCA2024123-11", a.FullNumber())
}

func TestAgreementJSONCarriesSuffixedReference(t *testing.T) {
	a := &Agreement{AgreementNumber: "KEN/PCA2024123", AmendmentCount: 2}

	payload, err := json.Marshal(a)
	assert.NoError(t, err)
	assert.Contains(t, string(payload), `"reference_number":"KEN/PCA2024123-02"`)
	assert.Contains(t, string(payload), `"agreement_number":"KEN/PCA2024123"`, "the stable base number stays alongside")
}

func TestInterventionReferenceNumbers(t *testing.T) {
	base := InterventionBaseNumber("KEN/PCA2024123", InterventionPD, 2024, 999)
	assert.Equal(t, "KEN/PCA2024123/PD2024999", base)

	i := &Intervention{Number: base}
	assert.Equal(t, base, i.FullNumber())

	i.AmendmentCount = 1
	assert.Equal(t, "KEN/PCA2024123/PD2024999-01", i.FullNumber())
}

func TestInterventionJSONCarriesSuffixedReference(t *testing.T) {
	i := &Intervention{
		Number:         "KEN/PCA2024123/PD2024999",
		AmendmentCount: 1,
	}

	payload, err := json.Marshal(i)
	assert.NoError(t, err)
	assert.Contains(t, string(payload), `"reference_number":"KEN/PCA2024123/PD2024999-01"`,
		"a merged amendment must be visible in the rendered reference")

	i.AmendmentCount = 0
	payload, err = json.Marshal(i)
	assert.NoError(t, err)
	assert.Contains(t, string(payload), `"reference_number":"KEN/PCA2024123/PD2024999"`)
}
