package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// QuarterBucket is a per-quarter count with its derived total. The total is
// never stored independently of the quarters.
type QuarterBucket struct {
	Q1    int `json:"q1"`
	Q2    int `json:"q2"`
	Q3    int `json:"q3"`
	Q4    int `json:"q4"`
	Total int `json:"total"`
}

// Normalize recomputes the total from the quarters.
func (b *QuarterBucket) Normalize() {
	b.Total = b.Q1 + b.Q2 + b.Q3 + b.Q4
}

// Add increments the bucket for the given quarter (1..4) and keeps the
// total consistent.
func (b *QuarterBucket) Add(quarter, n int) {
	switch quarter {
	case 1:
		b.Q1 += n
	case 2:
		b.Q2 += n
	case 3:
		b.Q3 += n
	case 4:
		b.Q4 += n
	}
	b.Normalize()
}

type ProgrammaticVisits struct {
	MinimumRequirements int           `json:"minimum_requirements"`
	Planned             QuarterBucket `json:"planned"`
	Completed           QuarterBucket `json:"completed"`
}

type SpotChecks struct {
	MinimumRequirements int           `json:"minimum_requirements"`
	Completed           QuarterBucket `json:"completed"`
	FollowUpRequired    int           `json:"follow_up_required"`
}

type Audits struct {
	MinimumRequirements int `json:"minimum_requirements"`
	Completed           int `json:"completed"`
}

// HactSnapshot is the derived assurance posture cached on the partner row.
// Downstream consumers depend on the exact field names, so the JSON shape
// here is a stable external contract.
type HactSnapshot struct {
	ProgrammaticVisits  ProgrammaticVisits `json:"programmatic_visits"`
	SpotChecks          SpotChecks         `json:"spot_checks"`
	Audits              Audits             `json:"audits"`
	OutstandingFindings decimal.Decimal    `json:"outstanding_findings"`
	AssuranceCoverage   AssuranceCoverage  `json:"assurance_coverage"`
}

// DeriveCoverage classifies the snapshot: complete when every completed
// count meets its minimum, void when nothing at all was completed, partial
// otherwise.
func (s *HactSnapshot) DeriveCoverage() AssuranceCoverage {
	pvOK := s.ProgrammaticVisits.Completed.Total >= s.ProgrammaticVisits.MinimumRequirements
	scOK := s.SpotChecks.Completed.Total >= s.SpotChecks.MinimumRequirements
	auOK := s.Audits.Completed >= s.Audits.MinimumRequirements
	if pvOK && scOK && auOK {
		return CoverageComplete
	}
	if s.ProgrammaticVisits.Completed.Total == 0 &&
		s.SpotChecks.Completed.Total == 0 &&
		s.Audits.Completed == 0 {
		return CoverageVoid
	}
	return CoveragePartial
}

// Normalize restores every local invariant: quarter totals and the coverage
// classification.
func (s *HactSnapshot) Normalize() {
	s.ProgrammaticVisits.Planned.Normalize()
	s.ProgrammaticVisits.Completed.Normalize()
	s.SpotChecks.Completed.Normalize()
	s.AssuranceCoverage = s.DeriveCoverage()
}

// Value serializes the snapshot into a jsonb column.
func (s HactSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan reads the snapshot back from a jsonb column.
func (s *HactSnapshot) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = HactSnapshot{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into HactSnapshot", src)
	}
}

// MinimumRequirements is the triple the assurance policy engine returns.
type MinimumRequirements struct {
	ProgrammaticVisits int `json:"programmatic_visits"`
	SpotChecks         int `json:"spot_checks"`
	Audits             int `json:"audits"`
}
