package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// INTERVENTION AMENDMENT (FORK / MERGE)
// ============================================================================

// IDPair records one old-row to cloned-row correspondence.
type IDPair struct {
	OldID int64 `json:"old_id"`
	NewID int64 `json:"new_id"`
}

// RelatedObjectsMap records, per related-field name, the id pairs of every
// cloned child row. Cloning walks the graph forward only, never through
// back-references, so the traversal stays a DAG.
type RelatedObjectsMap map[string][]IDPair

// NewFor looks up the clone id for an original row; ok is false when the
// row was not part of the fork.
func (m RelatedObjectsMap) NewFor(field string, oldID int64) (int64, bool) {
	for _, p := range m[field] {
		if p.OldID == oldID {
			return p.NewID, true
		}
	}
	return 0, false
}

// OldFor is the reverse lookup used when merging clone-side rows back.
func (m RelatedObjectsMap) OldFor(field string, newID int64) (int64, bool) {
	for _, p := range m[field] {
		if p.NewID == newID {
			return p.OldID, true
		}
	}
	return 0, false
}

func (m RelatedObjectsMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(RelatedObjectsMap{})
	}
	return json.Marshal(m)
}

func (m *RelatedObjectsMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = RelatedObjectsMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into RelatedObjectsMap", src)
	}
}

// FieldDelta is one whitelisted field change between original and clone.
type FieldDelta struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// ObjectDiff is the per-row diff: changed fields plus children that exist
// on only one side.
type ObjectDiff struct {
	Fields  map[string]FieldDelta `json:"fields,omitempty"`
	Added   []int64               `json:"added,omitempty"`
	Removed []int64               `json:"removed,omitempty"`
}

// Difference is the structural diff stored on the amendment, keyed by
// related-field name ("intervention" for the root pair).
type Difference map[string]ObjectDiff

// Empty reports whether the amendment changed nothing.
func (d Difference) Empty() bool {
	for _, od := range d {
		if len(od.Fields) > 0 || len(od.Added) > 0 || len(od.Removed) > 0 {
			return false
		}
	}
	return true
}

func (d Difference) Value() (driver.Value, error) {
	if d == nil {
		return json.Marshal(Difference{})
	}
	return json.Marshal(d)
}

func (d *Difference) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Difference{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan %T into Difference", src)
	}
}

// AmendmentTypes is a jsonb array column of InterventionAmendmentType.
type AmendmentTypes []InterventionAmendmentType

func (t AmendmentTypes) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *AmendmentTypes) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("cannot scan %T into AmendmentTypes", src)
	}
}

type InterventionAmendment struct {
	ID             uuid.UUID                 `json:"id" db:"id"`
	InterventionID int64                     `json:"intervention_id" db:"intervention_id"`
	Kind           InterventionAmendmentKind `json:"kind" db:"kind"`
	Number         string                    `json:"amendment_number" db:"number"`
	Types          AmendmentTypes            `json:"types" db:"types"`

	// AmendedInterventionID points at the clone while the amendment is
	// active; cleared on merge when the clone is deleted.
	AmendedInterventionID *int64            `json:"amended_intervention_id,omitempty" db:"amended_intervention_id"`
	RelatedObjects        RelatedObjectsMap `json:"related_objects_map" db:"related_objects_map"`
	Diff                  Difference        `json:"difference" db:"difference"`

	IsActive bool `json:"is_active" db:"is_active"`

	SignedByPartnerDate *time.Time `json:"signed_by_partner_date,omitempty" db:"signed_by_partner_date"`
	SignedByUnicefDate  *time.Time `json:"signed_by_unicef_date,omitempty" db:"signed_by_unicef_date"`
	SignedDocumentURL   *string    `json:"signed_amendment_document_url,omitempty" db:"signed_document_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AmendmentNumber renders "amd/N" or "camd/N" for the n-th amendment of
// the given kind.
func AmendmentNumber(kind InterventionAmendmentKind, n int) string {
	prefix := "amd"
	if kind == AmendmentContingency {
		prefix = "camd"
	}
	return fmt.Sprintf("%s/%d", prefix, n)
}
