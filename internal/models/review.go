package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// REVIEW (PRC / NON-PRC APPROVAL)
// ============================================================================

// ReviewQuestions are the eight fixed questionnaire fields. Answers are a
// four-point ordinal scale ("a".."d"); empty means unanswered.
var ReviewQuestions = []string{
	"relationship_is_represented",
	"partner_comparative_advantage",
	"relationships_are_positive",
	"pd_is_relevant",
	"pd_is_guided",
	"ges_considered",
	"budget_is_aligned",
	"supply_issues_considered",
}

type ReviewAnswers struct {
	RelationshipIsRepresented   string `json:"relationship_is_represented" db:"relationship_is_represented"`
	PartnerComparativeAdvantage string `json:"partner_comparative_advantage" db:"partner_comparative_advantage"`
	RelationshipsArePositive    string `json:"relationships_are_positive" db:"relationships_are_positive"`
	PDIsRelevant                string `json:"pd_is_relevant" db:"pd_is_relevant"`
	PDIsGuided                  string `json:"pd_is_guided" db:"pd_is_guided"`
	GESConsidered               string `json:"ges_considered" db:"ges_considered"`
	BudgetIsAligned             string `json:"budget_is_aligned" db:"budget_is_aligned"`
	SupplyIssuesConsidered      string `json:"supply_issues_considered" db:"supply_issues_considered"`
}

type Review struct {
	ID             int64      `json:"id" db:"id"`
	InterventionID int64      `json:"intervention_id" db:"intervention_id"`
	AmendmentID    *uuid.UUID `json:"amendment_id,omitempty" db:"amendment_id"`
	ReviewType     ReviewType `json:"review_type" db:"review_type"`

	OverallApprover *string `json:"overall_approver,omitempty" db:"overall_approver"`
	OverallApproval *bool   `json:"overall_approval,omitempty" db:"overall_approval"`

	ReviewAnswers
	ActionsList string `json:"actions_list" db:"actions_list"`

	SubmittedBy   *string    `json:"submitted_by,omitempty" db:"submitted_by"`
	ReviewDate    *time.Time `json:"review_date,omitempty" db:"review_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Approved reports whether the review carries an affirmative overall
// approval, the condition PRC interventions need before signing.
func (r *Review) Approved() bool {
	return r.OverallApproval != nil && *r.OverallApproval
}

// PRCOfficerReview is one officer's individual questionnaire response
// under a PRC review.
type PRCOfficerReview struct {
	ID       int64  `json:"id" db:"id"`
	ReviewID int64  `json:"review_id" db:"review_id"`
	Officer  string `json:"user" db:"officer"`
	ReviewAnswers
	Approval   *bool      `json:"overall_approval,omitempty" db:"approval"`
	ReviewDate *time.Time `json:"review_date,omitempty" db:"review_date"`
}
