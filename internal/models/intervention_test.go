package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// DERIVED AMOUNTS
// ============================================================================

func TestSupplyItemRecalcTotal(t *testing.T) {
	s := &SupplyItem{
		UnitNumber: decimal.RequireFromString("3"),
		UnitPrice:  decimal.RequireFromString("19.99"),
	}
	s.RecalcTotal()
	assert.True(t, s.TotalPrice.Equal(decimal.RequireFromString("59.97")))

	s.UnitNumber = decimal.RequireFromString("2.5")
	s.UnitPrice = decimal.RequireFromString("0.333")
	s.RecalcTotal()
	assert.True(t, s.TotalPrice.Equal(decimal.RequireFromString("0.83")), "totals are kept at cent precision")
}

func TestFundsReservationReconciles(t *testing.T) {
	h := &FundsReservationHeader{
		TotalAmount:      decimal.RequireFromString("10000"),
		IntervenedAmount: decimal.RequireFromString("10000"),
	}
	assert.True(t, h.Reconciles())

	h.IntervenedAmount = decimal.RequireFromString("9999.99")
	assert.False(t, h.Reconciles())
}

// ============================================================================
// PATCH VALIDATION
// ============================================================================

func TestInterventionPatchValidate_Empty(t *testing.T) {
	p := &InterventionPatch{}
	assert.NoError(t, p.Validate())
}

func TestInterventionPatchValidate_CollectsAllFields(t *testing.T) {
	title := ""
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	review := ReviewType("committee")
	cost := decimal.NewFromInt(150)

	p := &InterventionPatch{
		Title:         &title,
		StartDate:     &start,
		EndDate:       &end,
		ReviewType:    &review,
		HQSupportCost: &cost,
	}

	err := p.Validate()
	assert.Error(t, err)

	var vErr *Error
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, ErrValidation, vErr.Kind)
	assert.Contains(t, vErr.Fields, "title")
	assert.Contains(t, vErr.Fields, "end")
	assert.Contains(t, vErr.Fields, "review_type")
	assert.Contains(t, vErr.Fields, "hq_support_cost")
}

func TestInterventionPatchValidate_Modalities(t *testing.T) {
	good := Modalities{ModalityDirectPayment, ModalityReimbursement}
	p := &InterventionPatch{CashTransferModalities: &good}
	assert.NoError(t, p.Validate())

	bad := Modalities{ModalityDirectCash, "wire_transfer"}
	p.CashTransferModalities = &bad
	err := p.Validate()
	assert.Equal(t, ErrValidation, KindOf(err))
}

func TestInterventionPatchValidate_HQSupportCostRange(t *testing.T) {
	for _, v := range []string{"0", "7", "100"} {
		cost := decimal.RequireFromString(v)
		p := &InterventionPatch{HQSupportCost: &cost}
		assert.NoError(t, p.Validate(), "%s is a valid percentage", v)
	}
	for _, v := range []string{"-0.01", "100.01"} {
		cost := decimal.RequireFromString(v)
		p := &InterventionPatch{HQSupportCost: &cost}
		assert.Error(t, p.Validate(), "%s is out of range", v)
	}
}
