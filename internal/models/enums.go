package models

type PartnerType string

const (
	PartnerGovernment   PartnerType = "Government"
	PartnerCivilSociety PartnerType = "Civil Society Organization"
	PartnerUNAgency     PartnerType = "UN Agency"
	PartnerBilateral    PartnerType = "Bilateral / Multilateral"
)

type CSOType string

const (
	CSOInternational  CSOType = "International"
	CSONational       CSOType = "National"
	CSOCommunityBased CSOType = "Community Based Organization"
	CSOAcademic       CSOType = "Academic Institution"
)

// GenericRiskRating is assigned from micro assessments.
type GenericRiskRating string

const (
	RatingHigh        GenericRiskRating = "High"
	RatingSignificant GenericRiskRating = "Significant"
	RatingMedium      GenericRiskRating = "Medium"
	RatingLow         GenericRiskRating = "Low"
	RatingNotRequired GenericRiskRating = "Not Required"
)

// PseaRiskRating is assigned from PSEA capacity assessments and uses a
// disjoint vocabulary from the generic ratings.
type PseaRiskRating string

const (
	PseaHighRisk    PseaRiskRating = "Low Capacity (High Risk)"
	PseaModerate    PseaRiskRating = "Medium Capacity (Moderate Risk)"
	PseaLowRisk     PseaRiskRating = "Full Capacity (Low Risk)"
	PseaEmergency   PseaRiskRating = "Low Capacity - Assumed (Emergency)"
	PseaNoContact   PseaRiskRating = "No Contact with Beneficiaries"
	PseaNotAssessed PseaRiskRating = "Not Assessed"
)

// RiskClass is what the policy engine actually branches on after
// narrowing either rating vocabulary.
type RiskClass string

const (
	RiskClassHigh    RiskClass = "high"
	RiskClassMedium  RiskClass = "medium"
	RiskClassLow     RiskClass = "low"
	RiskClassUnknown RiskClass = "unknown"
)

type AssuranceCoverage string

const (
	CoverageVoid     AssuranceCoverage = "void"
	CoveragePartial  AssuranceCoverage = "partial"
	CoverageComplete AssuranceCoverage = "complete"
)

type AgreementType string

const (
	AgreementPCA  AgreementType = "PCA"
	AgreementSSFA AgreementType = "SSFA"
	AgreementMOU  AgreementType = "MOU"
)

type AgreementStatus string

const (
	AgreementDraft      AgreementStatus = "draft"
	AgreementSigned     AgreementStatus = "signed"
	AgreementEnded      AgreementStatus = "ended"
	AgreementSuspended  AgreementStatus = "suspended"
	AgreementTerminated AgreementStatus = "terminated"
)

type AgreementAmendmentKind string

const (
	AmendmentChangeLegalName AgreementAmendmentKind = "Change in legal name of Business Owner"
	AmendmentChangeOfficer   AgreementAmendmentKind = "Change of authorized officer"
	AmendmentBankingInfo     AgreementAmendmentKind = "Change of banking information"
	AmendmentClause          AgreementAmendmentKind = "Amendment to clause"
)

type InterventionType string

const (
	InterventionPD   InterventionType = "PD"
	InterventionSPD  InterventionType = "SPD"
	InterventionSSFA InterventionType = "SSFA"
)

type InterventionStatus string

const (
	InterventionDraft      InterventionStatus = "draft"
	InterventionReview     InterventionStatus = "review"
	InterventionSignature  InterventionStatus = "signature"
	InterventionSigned     InterventionStatus = "signed"
	InterventionActive     InterventionStatus = "active"
	InterventionSuspended  InterventionStatus = "suspended"
	InterventionEnded      InterventionStatus = "ended"
	InterventionClosed     InterventionStatus = "closed"
	InterventionTerminated InterventionStatus = "terminated"
	InterventionCancelled  InterventionStatus = "cancelled"
	InterventionExpired    InterventionStatus = "expired"
)

type CashTransferModality string

const (
	ModalityDirectPayment CashTransferModality = "direct_payment"
	ModalityReimbursement CashTransferModality = "reimbursement"
	ModalityDirectCash    CashTransferModality = "direct_cash_transfer"
)

type ReviewType string

const (
	ReviewNone             ReviewType = "none"
	ReviewPRC              ReviewType = "prc"
	ReviewNonPRC           ReviewType = "non-prc"
	ReviewNoReviewRequired ReviewType = "no-review" // amendments only
)

type ActorSide string

const (
	SideUNICEF  ActorSide = "unicef"
	SidePartner ActorSide = "partner"
)

type InterventionAmendmentKind string

const (
	AmendmentNormal      InterventionAmendmentKind = "normal"
	AmendmentContingency InterventionAmendmentKind = "contingency"
)

type InterventionAmendmentType string

const (
	AmendmentTypeAdminError    InterventionAmendmentType = "admin_error"
	AmendmentTypeBudgetLTE20   InterventionAmendmentType = "budget_lte_20"
	AmendmentTypeBudgetGT20    InterventionAmendmentType = "budget_gt_20"
	AmendmentTypeChangeResults InterventionAmendmentType = "change"
	AmendmentTypeNoCostExt     InterventionAmendmentType = "no_cost_extension"
	AmendmentTypeOther         InterventionAmendmentType = "other"
)

type ProvidedBy string

const (
	ProvidedByUNICEF  ProvidedBy = "unicef"
	ProvidedByPartner ProvidedBy = "partner"
)

type ManagementActivityKind string

const (
	ActivityInCountry ManagementActivityKind = "in_country"
	ActivityOperation ManagementActivityKind = "operational"
	ActivityPlanning  ManagementActivityKind = "planning"
)

// ActivityKind names the three assurance streams tracked per partner.
type ActivityKind string

const (
	KindProgrammaticVisit ActivityKind = "pv"
	KindSpotCheck         ActivityKind = "sc"
	KindAudit             ActivityKind = "audit"
)

type TravelKind string

const (
	TravelProgrammeMonitoring TravelKind = "Programmatic Visit"
	TravelSpotCheck           TravelKind = "Spot Check"
	TravelAdvocacy            TravelKind = "Advocacy"
	TravelTechnicalSupport    TravelKind = "Technical Support"
)

type TravelStatus string

const (
	TravelPlanned   TravelStatus = "planned"
	TravelApproved  TravelStatus = "approved"
	TravelCompleted TravelStatus = "completed"
	TravelCancelled TravelStatus = "cancelled"
)

type TPMVisitStatus string

const (
	TPMDraft          TPMVisitStatus = "draft"
	TPMAssigned       TPMVisitStatus = "assigned"
	TPMReported       TPMVisitStatus = "tpm_reported"
	TPMUNICEFApproved TPMVisitStatus = "unicef_approved"
	TPMCancelled      TPMVisitStatus = "cancelled"
)

type MonitoringActivityStatus string

const (
	MonitoringDraft     MonitoringActivityStatus = "draft"
	MonitoringReview    MonitoringActivityStatus = "review"
	MonitoringCompleted MonitoringActivityStatus = "completed"
	MonitoringCancelled MonitoringActivityStatus = "cancelled"
)

type EngagementStatus string

const (
	EngagementPartnerContacted EngagementStatus = "partner_contacted"
	EngagementReportSubmitted  EngagementStatus = "report_submitted"
	EngagementFinal            EngagementStatus = "final"
	EngagementCancelled        EngagementStatus = "cancelled"
)

type AuditType string

const (
	AuditScheduled AuditType = "audit"
	AuditSpecial   AuditType = "sa"
)

// TypeOfAssessment values the policy engine cares about.
const (
	AssessmentMicro           = "Micro Assessment"
	AssessmentLowRiskAssumed  = "Low Risk Assumed"
	AssessmentHighRiskAssumed = "High Risk Assumed"
	AssessmentNegativeAudit   = "Negative Audit Results"
	AssessmentSimplified      = "Simplified Checklist"
)

// NarrowGenericRating maps a micro-assessment rating onto the comparator
// class the visit policy branches on.
func NarrowGenericRating(r GenericRiskRating) RiskClass {
	switch r {
	case RatingHigh, RatingSignificant:
		return RiskClassHigh
	case RatingMedium:
		return RiskClassMedium
	case RatingLow, RatingNotRequired:
		return RiskClassLow
	default:
		return RiskClassUnknown
	}
}

// NarrowPseaRating maps a PSEA capacity rating onto the same comparator
// classes so both vocabularies share one policy table.
func NarrowPseaRating(r PseaRiskRating) RiskClass {
	switch r {
	case PseaHighRisk, PseaEmergency, PseaNotAssessed:
		return RiskClassHigh
	case PseaModerate:
		return RiskClassMedium
	case PseaLowRisk, PseaNoContact:
		return RiskClassLow
	default:
		return RiskClassUnknown
	}
}

// IsTerminalIntervention reports whether no further lifecycle transition is
// allowed out of the given status.
func IsTerminalIntervention(s InterventionStatus) bool {
	switch s {
	case InterventionClosed, InterventionTerminated, InterventionCancelled, InterventionExpired:
		return true
	default:
		return false
	}
}
