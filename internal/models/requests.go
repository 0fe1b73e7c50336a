package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterventionPatch is the partial update SaveIntervention applies. Nil
// pointers leave the field untouched.
type InterventionPatch struct {
	Title                  *string          `json:"title,omitempty"`
	StartDate              *time.Time       `json:"start,omitempty"`
	EndDate                *time.Time       `json:"end,omitempty"`
	DateSentToPartner      *time.Time       `json:"date_sent_to_partner,omitempty"`
	CashTransferModalities *Modalities      `json:"cash_transfer_modalities,omitempty"`
	ReviewType             *ReviewType      `json:"review_type,omitempty"`
	Contingency            *bool            `json:"contingency_pd,omitempty"`
	HQSupportCost          *decimal.Decimal `json:"hq_support_cost,omitempty"`
	SignedByPartnerDate    *time.Time       `json:"signed_by_partner_date,omitempty"`
	SignedByUnicefDate     *time.Time       `json:"signed_by_unicef_date,omitempty"`
	SignedDocumentURL      *string          `json:"signed_pd_document_url,omitempty"`

	// Accept marks the editing side's acknowledgement of the current text.
	Accept bool `json:"accept,omitempty"`
}

// Validate applies the structural checks that do not need database state.
func (p *InterventionPatch) Validate() error {
	fields := map[string]string{}
	if p.Title != nil && *p.Title == "" {
		fields["title"] = "must not be empty"
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		fields["end"] = "must not precede start"
	}
	if p.ReviewType != nil {
		switch *p.ReviewType {
		case ReviewNone, ReviewPRC, ReviewNonPRC:
		default:
			fields["review_type"] = "must be one of none, prc, non-prc"
		}
	}
	if p.CashTransferModalities != nil {
		for _, m := range *p.CashTransferModalities {
			switch m {
			case ModalityDirectPayment, ModalityReimbursement, ModalityDirectCash:
			default:
				fields["cash_transfer_modalities"] = "unknown modality " + string(m)
			}
		}
	}
	if p.HQSupportCost != nil && (p.HQSupportCost.IsNegative() || p.HQSupportCost.GreaterThan(decimal.NewFromInt(100))) {
		fields["hq_support_cost"] = "must be a percentage between 0 and 100"
	}
	if len(fields) > 0 {
		return &Error{Kind: ErrValidation, Message: "invalid intervention patch", Fields: fields}
	}
	return nil
}

// Actor identifies who requested a transition; permissions are resolved
// upstream and passed in as role flags.
type Actor struct {
	UserID           string    `json:"user_id"`
	IsPartnershipMgr bool      `json:"is_partnership_manager"`
	Side             ActorSide `json:"side"`
}
