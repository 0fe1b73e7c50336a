package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// COUNTRY PROGRAMME (OUTER ENVELOPE FOR PCA AGREEMENTS)
// ============================================================================

type CountryProgramme struct {
	ID       int64     `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	WBS      string    `json:"wbs" db:"wbs"`
	FromDate time.Time `json:"from_date" db:"from_date"`
	ToDate   time.Time `json:"to_date" db:"to_date"`
}

// ============================================================================
// AGREEMENT
// ============================================================================

type Agreement struct {
	ID                 int64           `json:"id" db:"id"`
	PartnerID          int64           `json:"partner_id" db:"partner_id"`
	AgreementType      AgreementType   `json:"agreement_type" db:"agreement_type"`
	Status             AgreementStatus `json:"status" db:"status"`
	CountryProgrammeID *int64          `json:"country_programme_id,omitempty" db:"country_programme_id"`

	// AgreementNumber is the stable base reference number; the amendment
	// suffix lives in AmendmentCount and is rendered on demand.
	AgreementNumber string `json:"agreement_number" db:"agreement_number"`
	AmendmentCount  int    `json:"amendment_count" db:"amendment_count"`

	StartDate           *time.Time `json:"start,omitempty" db:"start_date"`
	EndDate             *time.Time `json:"end,omitempty" db:"end_date"`
	SignedByPartnerDate *time.Time `json:"signed_by_partner_date,omitempty" db:"signed_by_partner_date"`
	SignedByUnicefDate  *time.Time `json:"signed_by_unicef_date,omitempty" db:"signed_by_unicef_date"`

	// URL of the countersigned agreement document; required to sign unless
	// the agreement is an SSFA.
	AttachedAgreementURL *string `json:"attached_agreement_url,omitempty" db:"attached_agreement_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReferenceYear is the year encoded in the base number: the UNICEF
// signature year once known, the creation year before that.
func (a *Agreement) ReferenceYear() int {
	if a.SignedByUnicefDate != nil {
		return a.SignedByUnicefDate.Year()
	}
	return a.CreatedAt.Year()
}

// BaseNumber renders the stable reference number,
// e.g. "KEN/PCA2024123". It never changes after the first save.
func (a *Agreement) BaseNumber(countryCode string) string {
	return fmt.Sprintf("%s/%s%d%d", countryCode, a.AgreementType, a.ReferenceYear(), a.ID)
}

// FullNumber appends the amendment suffix when any signed amendment exists:
// "KEN/PCA2024123-02".
func (a *Agreement) FullNumber() string {
	if a.AmendmentCount == 0 {
		return a.AgreementNumber
	}
	return fmt.Sprintf("%s-%02d", a.AgreementNumber, a.AmendmentCount)
}

// MarshalJSON adds the amendment-suffixed reference next to the stable
// base number so API consumers always see the current external number.
func (a Agreement) MarshalJSON() ([]byte, error) {
	type agreement Agreement
	return json.Marshal(struct {
		agreement
		ReferenceNumber string `json:"reference_number"`
	}{agreement(a), a.FullNumber()})
}

// ============================================================================
// AGREEMENT AMENDMENT
// ============================================================================

type AgreementAmendment struct {
	ID          int64          `json:"id" db:"id"`
	AgreementID int64          `json:"agreement_id" db:"agreement_id"`
	Number      string         `json:"number" db:"number"`
	Kinds       AmendmentKinds `json:"types" db:"types"`
	SignedDate  *time.Time     `json:"signed_date,omitempty" db:"signed_date"`
	SignedURL   *string        `json:"signed_amendment_url,omitempty" db:"signed_amendment_url"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// AmendmentKinds is a jsonb array column of AgreementAmendmentKind.
type AmendmentKinds []AgreementAmendmentKind

func (k AmendmentKinds) Value() (driver.Value, error) {
	return json.Marshal(k)
}

func (k *AmendmentKinds) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*k = nil
		return nil
	case []byte:
		return json.Unmarshal(v, k)
	case string:
		return json.Unmarshal([]byte(v), k)
	default:
		return fmt.Errorf("cannot scan %T into AmendmentKinds", src)
	}
}
