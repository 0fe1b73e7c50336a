package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// QUARTER BUCKETS
// ============================================================================

func TestQuarterBucket_AddKeepsTotalConsistent(t *testing.T) {
	b := QuarterBucket{}
	b.Add(1, 2)
	b.Add(3, 1)
	b.Add(4, 1)

	assert.Equal(t, 2, b.Q1)
	assert.Equal(t, 1, b.Q3)
	assert.Equal(t, 1, b.Q4)
	assert.Equal(t, 4, b.Total)
}

func TestQuarterBucket_AddIgnoresInvalidQuarter(t *testing.T) {
	b := QuarterBucket{Q1: 1, Total: 1}
	b.Add(0, 5)
	b.Add(5, 5)

	assert.Equal(t, 1, b.Total, "out-of-range quarters change nothing")
}

func TestQuarterBucket_NormalizeRecomputesTotal(t *testing.T) {
	b := QuarterBucket{Q1: 1, Q2: 2, Q3: 3, Q4: 4, Total: 99}
	b.Normalize()

	assert.Equal(t, 10, b.Total, "the stored total never survives a normalize")
}

// ============================================================================
// COVERAGE CLASSIFICATION
// ============================================================================

func TestDeriveCoverage_Complete(t *testing.T) {
	s := HactSnapshot{
		ProgrammaticVisits: ProgrammaticVisits{
			MinimumRequirements: 2,
			Completed:           QuarterBucket{Q1: 1, Q3: 1, Total: 2},
		},
		SpotChecks: SpotChecks{
			MinimumRequirements: 1,
			Completed:           QuarterBucket{Q2: 1, Total: 1},
		},
		Audits: Audits{MinimumRequirements: 1, Completed: 1},
	}

	assert.Equal(t, CoverageComplete, s.DeriveCoverage())
}

func TestDeriveCoverage_CompleteWhenNothingRequired(t *testing.T) {
	s := HactSnapshot{}
	assert.Equal(t, CoverageComplete, s.DeriveCoverage(), "zero requirements are trivially met")
}

func TestDeriveCoverage_Void(t *testing.T) {
	s := HactSnapshot{
		ProgrammaticVisits: ProgrammaticVisits{MinimumRequirements: 3},
		SpotChecks:         SpotChecks{MinimumRequirements: 1},
	}

	assert.Equal(t, CoverageVoid, s.DeriveCoverage(), "requirements exist and nothing at all was completed")
}

func TestDeriveCoverage_Partial(t *testing.T) {
	s := HactSnapshot{
		ProgrammaticVisits: ProgrammaticVisits{
			MinimumRequirements: 3,
			Completed:           QuarterBucket{Q1: 1, Total: 1},
		},
		SpotChecks: SpotChecks{MinimumRequirements: 1},
	}

	assert.Equal(t, CoveragePartial, s.DeriveCoverage())
}

func TestDeriveCoverage_ExcessDoesNotMaskShortfall(t *testing.T) {
	s := HactSnapshot{
		ProgrammaticVisits: ProgrammaticVisits{
			MinimumRequirements: 1,
			Completed:           QuarterBucket{Q1: 5, Total: 5},
		},
		Audits: Audits{MinimumRequirements: 1, Completed: 0},
	}

	assert.Equal(t, CoveragePartial, s.DeriveCoverage(), "surplus visits do not compensate a missing audit")
}

func TestSnapshotNormalize(t *testing.T) {
	s := HactSnapshot{
		ProgrammaticVisits: ProgrammaticVisits{
			MinimumRequirements: 1,
			Planned:             QuarterBucket{Q1: 2},
			Completed:           QuarterBucket{Q2: 1},
		},
		AssuranceCoverage: CoverageVoid,
	}
	s.Normalize()

	assert.Equal(t, 2, s.ProgrammaticVisits.Planned.Total)
	assert.Equal(t, 1, s.ProgrammaticVisits.Completed.Total)
	assert.Equal(t, CoverageComplete, s.AssuranceCoverage, "coverage is re-derived, never trusted")
}
