package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// INTERVENTION (PROGRAMME DOCUMENT)
// ============================================================================

type Intervention struct {
	ID           int64              `json:"id" db:"id"`
	AgreementID  int64              `json:"agreement_id" db:"agreement_id"`
	DocumentType InterventionType   `json:"document_type" db:"document_type"`
	Status       InterventionStatus `json:"status" db:"status"`
	Title        string             `json:"title" db:"title"`

	// Number is the stable base reference number; like agreements, the
	// amendment suffix is rendered from the counter.
	Number         string `json:"number" db:"number"`
	AmendmentCount int    `json:"amendment_count" db:"amendment_count"`

	StartDate         *time.Time `json:"start,omitempty" db:"start_date"`
	EndDate           *time.Time `json:"end,omitempty" db:"end_date"`
	SubmissionDate    *time.Time `json:"submission_date,omitempty" db:"submission_date"`
	DateSentToPartner *time.Time `json:"date_sent_to_partner,omitempty" db:"date_sent_to_partner"`

	SignedByPartnerDate *time.Time `json:"signed_by_partner_date,omitempty" db:"signed_by_partner_date"`
	SignedByUnicefDate  *time.Time `json:"signed_by_unicef_date,omitempty" db:"signed_by_unicef_date"`
	SignedDocumentURL   *string    `json:"signed_pd_document_url,omitempty" db:"signed_document_url"`

	CashTransferModalities Modalities `json:"cash_transfer_modalities" db:"cash_transfer_modalities"`
	ReviewType             ReviewType `json:"review_type" db:"review_type"`

	// Bilateral negotiation state. UnicefCourt is the editing token: true
	// means the UNICEF side holds write rights, false the partner side.
	UnicefCourt     bool `json:"unicef_court" db:"unicef_court"`
	UnicefAccepted  bool `json:"unicef_accepted" db:"unicef_accepted"`
	PartnerAccepted bool `json:"partner_accepted" db:"partner_accepted"`

	Contingency       bool            `json:"contingency_pd" db:"contingency"`
	HQSupportCost     decimal.Decimal `json:"hq_support_cost" db:"hq_support_cost"`
	InAmendment       bool            `json:"in_amendment" db:"in_amendment"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// FullNumber renders the external reference number with the current
// amendment suffix, e.g. "KEN/PCA2024123/PD2024999-01".
func (i *Intervention) FullNumber() string {
	if i.AmendmentCount == 0 {
		return i.Number
	}
	return fmt.Sprintf("%s-%02d", i.Number, i.AmendmentCount)
}

// BaseNumber renders the stable reference number from the parent
// agreement's base number, e.g. "KEN/PCA2024123/PD2024999". For amendment
// clones the original's id is passed so the clone inherits it.
func InterventionBaseNumber(agreementBase string, t InterventionType, year int, id int64) string {
	return fmt.Sprintf("%s/%s%d%d", agreementBase, t, year, id)
}

// MarshalJSON adds the amendment-suffixed reference next to the stable
// base number so API consumers always see the current external number.
func (i Intervention) MarshalJSON() ([]byte, error) {
	type intervention Intervention
	return json.Marshal(struct {
		intervention
		ReferenceNumber string `json:"reference_number"`
	}{intervention(i), i.FullNumber()})
}

// Modalities is a jsonb array column of CashTransferModality.
type Modalities []CashTransferModality

func (m Modalities) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Modalities) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into Modalities", src)
	}
}

// ============================================================================
// RESULT STRUCTURE
// ============================================================================

// ResultLink ties an intervention to a CP output. Code is "0" when the
// link has no CP output, otherwise 1..n in insertion order with no gaps.
type ResultLink struct {
	ID             int64  `json:"id" db:"id"`
	InterventionID int64  `json:"intervention_id" db:"intervention_id"`
	CPOutputID     *int64 `json:"cp_output_id,omitempty" db:"cp_output_id"`
	Code           string `json:"code" db:"code"`
}

type LowerResult struct {
	ID           int64  `json:"id" db:"id"`
	ResultLinkID int64  `json:"result_link_id" db:"result_link_id"`
	Name         string `json:"name" db:"name"`
	Code         string `json:"code" db:"code"`
}

// ResultActivity is a programme activity under a lower result; its cash
// columns feed the budget roll-up.
type ResultActivity struct {
	ID            int64           `json:"id" db:"id"`
	LowerResultID int64           `json:"lower_result_id" db:"lower_result_id"`
	Name          string          `json:"name" db:"name"`
	Code          string          `json:"code" db:"code"`
	UnicefCash    decimal.Decimal `json:"unicef_cash" db:"unicef_cash"`
	CSOCash       decimal.Decimal `json:"cso_cash" db:"cso_cash"`
	IsActive      bool            `json:"is_active" db:"is_active"`
}

type AppliedIndicator struct {
	ID            int64  `json:"id" db:"id"`
	LowerResultID int64  `json:"lower_result_id" db:"lower_result_id"`
	Title         string `json:"title" db:"title"`
	Baseline      string `json:"baseline" db:"baseline"`
	Target        string `json:"target" db:"target"`
	IsActive      bool   `json:"is_active" db:"is_active"`
}

// ============================================================================
// PLANNED VISITS / SUPPLY / RISKS / FUNDS RESERVATIONS
// ============================================================================

// PlannedVisit is unique per (intervention, year); government partners plan
// visits per partner instead, with InterventionID null.
type PlannedVisit struct {
	ID             int64  `json:"id" db:"id"`
	InterventionID *int64 `json:"intervention_id,omitempty" db:"intervention_id"`
	PartnerID      *int64 `json:"partner_id,omitempty" db:"partner_id"`
	Year           int    `json:"year" db:"year"`
	ProgrammaticQ1 int    `json:"programmatic_q1" db:"programmatic_q1"`
	ProgrammaticQ2 int    `json:"programmatic_q2" db:"programmatic_q2"`
	ProgrammaticQ3 int    `json:"programmatic_q3" db:"programmatic_q3"`
	ProgrammaticQ4 int    `json:"programmatic_q4" db:"programmatic_q4"`
}

type SupplyItem struct {
	ID             int64           `json:"id" db:"id"`
	InterventionID int64           `json:"intervention_id" db:"intervention_id"`
	Title          string          `json:"title" db:"title"`
	UnitNumber     decimal.Decimal `json:"unit_number" db:"unit_number"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price" db:"total_price"`
	ProvidedBy     ProvidedBy      `json:"provided_by" db:"provided_by"`
}

// RecalcTotal keeps total_price derived from units and price.
func (s *SupplyItem) RecalcTotal() {
	s.TotalPrice = s.UnitNumber.Mul(s.UnitPrice).Round(2)
}

type InterventionRisk struct {
	ID             int64  `json:"id" db:"id"`
	InterventionID int64  `json:"intervention_id" db:"intervention_id"`
	RiskType       string `json:"risk_type" db:"risk_type"`
	Mitigation     string `json:"mitigation_measures" db:"mitigation_measures"`
}

// FundsReservationHeader mirrors the finance system's FR header; the
// lifecycle uses it to gate signed→active and ended→closed.
type FundsReservationHeader struct {
	ID                 int64           `json:"id" db:"id"`
	InterventionID     int64           `json:"intervention_id" db:"intervention_id"`
	FRNumber           string          `json:"fr_number" db:"fr_number"`
	Currency           string          `json:"currency" db:"currency"`
	TotalAmount        decimal.Decimal `json:"total_amt_local" db:"total_amount"`
	IntervenedAmount   decimal.Decimal `json:"intervention_amt" db:"intervened_amount"`
	OutstandingAmount  decimal.Decimal `json:"outstanding_amt_local" db:"outstanding_amount"`
	ActualAmount       decimal.Decimal `json:"actual_amt_local" db:"actual_amount"`
	Completed          bool            `json:"completed_flag" db:"completed"`
}

// Reconciles reports whether the header's amounts balance, the condition
// for the signed→active auto-transition.
func (h *FundsReservationHeader) Reconciles() bool {
	return h.IntervenedAmount.Equal(h.TotalAmount)
}
