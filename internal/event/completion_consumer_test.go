package event

import (
	"testing"

	"hact-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestActivityKind_AcceptsBothSpellings(t *testing.T) {
	cases := []struct {
		in       string
		expected models.ActivityKind
	}{
		{"programmatic_visit", models.KindProgrammaticVisit},
		{"pv", models.KindProgrammaticVisit},
		{"spot_check", models.KindSpotCheck},
		{"sc", models.KindSpotCheck},
		{"audit", models.KindAudit},
	}
	for _, tc := range cases {
		kind, err := activityKind(tc.in)
		assert.NoError(t, err, "kind %q", tc.in)
		assert.Equal(t, tc.expected, kind)
	}
}

func TestActivityKind_RejectsUnknown(t *testing.T) {
	_, err := activityKind("site_inspection")
	assert.Error(t, err)
	assert.Equal(t, models.ErrValidation, models.KindOf(err), "unknown kinds are poison messages, not retries")
}
