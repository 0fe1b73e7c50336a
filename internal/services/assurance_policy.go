package services

import (
	"hact-service/internal/config"
	"hact-service/internal/models"

	"github.com/shopspring/decimal"
)

// AssurancePolicy derives the minimum required assurance activities for a
// partner. It is pure: it never touches the store, it only maps the cached
// financials, risk rating and planned engagement onto the three minimums.
type AssurancePolicy struct {
	cfg config.HactConfig
}

func NewAssurancePolicy(cfg config.HactConfig) *AssurancePolicy {
	return &AssurancePolicy{cfg: cfg}
}

// MinimumRequirements computes the full triple.
func (p *AssurancePolicy) MinimumRequirements(partner *models.Partner, engagement *models.PlannedEngagement) models.MinimumRequirements {
	return models.MinimumRequirements{
		ProgrammaticVisits: p.RequiredProgrammaticVisits(partner),
		SpotChecks:         p.RequiredSpotChecks(partner, engagement),
		Audits:             p.RequiredAudits(partner, engagement),
	}
}

func exemptPartnerType(t models.PartnerType) bool {
	return t == models.PartnerUNAgency || t == models.PartnerBilateral
}

// RequiredProgrammaticVisits applies the cash-transfer bands. The three
// monetary breakpoints come from configuration and match the upstream
// trigger levels verbatim.
func (p *AssurancePolicy) RequiredProgrammaticVisits(partner *models.Partner) int {
	if exemptPartnerType(partner.PartnerType) {
		return 0
	}

	ct := partner.NetCTCY

	switch {
	case ct.LessThanOrEqual(decimal.NewFromInt(25000)):
		return 0
	case ct.LessThanOrEqual(p.cfg.CTMRAuditTriggerLevel2):
		return 1
	case ct.LessThanOrEqual(p.cfg.CTMRAuditTriggerLevel3):
		switch partner.RiskClass() {
		case models.RiskClassHigh:
			return 3
		case models.RiskClassMedium:
			return 2
		default:
			return 1
		}
	default:
		switch partner.RiskClass() {
		case models.RiskClassHigh:
			return 4
		case models.RiskClassMedium:
			return 3
		default:
			return 2
		}
	}
}

// RequiredSpotChecks is 0 for exempt partner types, low-risk-assumed
// assessments, partners below the CP audit trigger and whenever a
// scheduled audit is planned; otherwise 1.
func (p *AssurancePolicy) RequiredSpotChecks(partner *models.Partner, engagement *models.PlannedEngagement) int {
	if exemptPartnerType(partner.PartnerType) {
		return 0
	}
	if partner.TypeOfAssessment != nil && *partner.TypeOfAssessment == models.AssessmentLowRiskAssumed {
		return 0
	}
	if partner.ReportedCY.LessThanOrEqual(p.cfg.CTCPAuditTriggerLevel) {
		return 0
	}
	if engagement != nil && engagement.ScheduledAudit {
		return 0
	}
	return 1
}

// RequiredAudits counts the planned audit flags.
func (p *AssurancePolicy) RequiredAudits(partner *models.Partner, engagement *models.PlannedEngagement) int {
	if exemptPartnerType(partner.PartnerType) {
		return 0
	}
	if engagement == nil {
		return 0
	}
	return engagement.RequiredAudits()
}
