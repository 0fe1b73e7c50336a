package services

import (
	"testing"
	"time"

	"hact-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func forkedGraphs() (*models.InterventionGraph, *models.InterventionGraph, models.RelatedObjectsMap) {
	cpOutput := int64(900)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	original := &models.InterventionGraph{
		Intervention: models.Intervention{
			ID:            42,
			Title:         "WASH programme",
			Status:        models.InterventionActive,
			StartDate:     &start,
			EndDate:       &end,
			ReviewType:    models.ReviewNone,
			HQSupportCost: decimal.NewFromFloat(7.0),
		},
		ResultLinks: []models.ResultLink{
			{ID: 1, InterventionID: 42, CPOutputID: &cpOutput, Code: "1"},
		},
		LowerResults: []models.LowerResult{
			{ID: 10, ResultLinkID: 1, Name: "Safe water access", Code: "1.1"},
		},
		Activities: []models.ResultActivity{
			{ID: 100, LowerResultID: 10, Name: "Drill boreholes", UnicefCash: decimal.NewFromInt(5000), CSOCash: decimal.NewFromInt(1000), IsActive: true},
			{ID: 101, LowerResultID: 10, Name: "Train mechanics", UnicefCash: decimal.NewFromInt(800), IsActive: true},
		},
	}

	clone := &models.InterventionGraph{
		Intervention: models.Intervention{
			ID:            77,
			Title:         "[Amended] WASH programme",
			Status:        models.InterventionDraft,
			StartDate:     &start,
			EndDate:       &end,
			ReviewType:    models.ReviewNone,
			HQSupportCost: decimal.NewFromFloat(7.0),
		},
		ResultLinks: []models.ResultLink{
			{ID: 2, InterventionID: 77, CPOutputID: &cpOutput, Code: "1"},
		},
		LowerResults: []models.LowerResult{
			{ID: 20, ResultLinkID: 2, Name: "Safe water access", Code: "1.1"},
		},
		Activities: []models.ResultActivity{
			{ID: 200, LowerResultID: 20, Name: "Drill boreholes", UnicefCash: decimal.NewFromInt(5000), CSOCash: decimal.NewFromInt(1000), IsActive: true},
			{ID: 201, LowerResultID: 20, Name: "Train mechanics", UnicefCash: decimal.NewFromInt(800), IsActive: true},
		},
	}

	related := models.RelatedObjectsMap{
		models.FieldResultLinks:  {{OldID: 1, NewID: 2}},
		models.FieldLowerResults: {{OldID: 10, NewID: 20}},
		models.FieldActivities:   {{OldID: 100, NewID: 200}, {OldID: 101, NewID: 201}},
	}
	return original, clone, related
}

// ============================================================================
// GRAPH DIFFERENCE
// ============================================================================

func TestComputeGraphDifference_UntouchedCloneIsEmpty(t *testing.T) {
	original, clone, related := forkedGraphs()

	diff := ComputeGraphDifference(original, clone, related)
	assert.True(t, diff.Empty(), "the title prefix alone is not a change")
}

func TestComputeGraphDifference_RootFieldChanges(t *testing.T) {
	original, clone, related := forkedGraphs()

	clone.Intervention.Title = "[Amended] WASH programme phase II"
	newEnd := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	clone.Intervention.EndDate = &newEnd
	clone.Intervention.HQSupportCost = decimal.NewFromFloat(5.5)

	diff := ComputeGraphDifference(original, clone, related)
	root := diff[models.FieldIntervention]
	assert.Len(t, root.Fields, 3)

	assert.Equal(t, "WASH programme", root.Fields["title"].Before)
	assert.Equal(t, "WASH programme phase II", root.Fields["title"].After, "the prefix is stripped from the stored delta")
	assert.Equal(t, "2024-12-31", root.Fields["end"].Before)
	assert.Equal(t, "2025-06-30", root.Fields["end"].After)
	assert.Equal(t, "7", root.Fields["hq_support_cost"].Before)
	assert.Equal(t, "5.5", root.Fields["hq_support_cost"].After)
}

func TestComputeGraphDifference_ChangedChildField(t *testing.T) {
	original, clone, related := forkedGraphs()

	clone.Activities[0].UnicefCash = decimal.NewFromInt(7500)
	clone.Activities[0].Name = "Drill and equip boreholes"

	diff := ComputeGraphDifference(original, clone, related)
	activities := diff[models.FieldActivities]

	// Deltas are keyed by the original-side id so the stored document
	// survives the clone's deletion on merge.
	assert.Equal(t, "Drill boreholes", activities.Fields["100.name"].Before)
	assert.Equal(t, "Drill and equip boreholes", activities.Fields["100.name"].After)
	assert.Equal(t, "5000", activities.Fields["100.unicef_cash"].Before)
	assert.Equal(t, "7500", activities.Fields["100.unicef_cash"].After)
	assert.Empty(t, activities.Added)
	assert.Empty(t, activities.Removed)
}

func TestComputeGraphDifference_AddedAndRemovedChildren(t *testing.T) {
	original, clone, related := forkedGraphs()

	// The amendment drops one activity and adds a brand new one.
	clone.Activities = []models.ResultActivity{
		clone.Activities[0],
		{ID: 250, LowerResultID: 20, Name: "Water quality testing", UnicefCash: decimal.NewFromInt(600), IsActive: true},
	}

	diff := ComputeGraphDifference(original, clone, related)
	activities := diff[models.FieldActivities]

	assert.Equal(t, []int64{250}, activities.Added, "clone-only rows are additions")
	assert.Equal(t, []int64{101}, activities.Removed, "pairs whose clone side is gone are removals")
}

func TestComputeGraphDifference_NilCPOutput(t *testing.T) {
	original, clone, related := forkedGraphs()

	clone.ResultLinks[0].CPOutputID = nil

	diff := ComputeGraphDifference(original, clone, related)
	links := diff[models.FieldResultLinks]
	assert.Equal(t, int64(900), links.Fields["1.cp_output_id"].Before)
	assert.Nil(t, links.Fields["1.cp_output_id"].After)
}

// ============================================================================
// MERGE GUARD
// ============================================================================

func signedClone() *models.Intervention {
	partnerDate := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	unicefDate := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	return &models.Intervention{
		ID:                  77,
		Status:              models.InterventionSigned,
		SignedByPartnerDate: &partnerDate,
		SignedByUnicefDate:  &unicefDate,
	}
}

func TestGuardMerge_HappyPath(t *testing.T) {
	s := &AmendmentService{cfg: testHactConfig()}
	original := &models.Intervention{ID: 42, Status: models.InterventionActive}

	assert.NoError(t, s.guardMerge(original, signedClone()))
}

func TestGuardMerge_OriginalMovedToTerminalState(t *testing.T) {
	s := &AmendmentService{cfg: testHactConfig()}

	// An agreement-termination cascade or the nightly closure can move the
	// original while the amendment is still open; the merge must not
	// rewrite a terminal document.
	for _, status := range []models.InterventionStatus{
		models.InterventionTerminated,
		models.InterventionClosed,
		models.InterventionCancelled,
	} {
		original := &models.Intervention{ID: 42, Status: status}
		err := s.guardMerge(original, signedClone())
		assert.Equal(t, models.ErrAmendmentConflict, models.KindOf(err), "original in %s", status)
	}
}

func TestGuardMerge_EndedOriginalStaysMergeable(t *testing.T) {
	s := &AmendmentService{cfg: testHactConfig()}
	original := &models.Intervention{ID: 42, Status: models.InterventionEnded}

	assert.NoError(t, s.guardMerge(original, signedClone()), "the date-revert case merges onto an ended document")
}

func TestGuardMerge_UnsignedCloneCollectsReasons(t *testing.T) {
	s := &AmendmentService{cfg: testHactConfig()}
	original := &models.Intervention{ID: 42, Status: models.InterventionActive}
	clone := &models.Intervention{ID: 77, Status: models.InterventionDraft}

	err := s.guardMerge(original, clone)
	assert.Equal(t, models.ErrGuardFailed, models.KindOf(err))

	var guardErr *models.Error
	assert.ErrorAs(t, err, &guardErr)
	assert.Contains(t, guardErr.Fields, "status")
	assert.Contains(t, guardErr.Fields, "signed_by_partner_date")
	assert.Contains(t, guardErr.Fields, "signed_by_unicef_date")
}

// ============================================================================
// MERGED-PAIR ARCHIVAL
// ============================================================================

func TestRecordMergedPair_ResolvesAddedRows(t *testing.T) {
	original, clone, related := forkedGraphs()
	clone.Activities = append(clone.Activities, models.ResultActivity{
		ID: 250, LowerResultID: 20, Name: "Water quality testing", IsActive: true,
	})

	diff := ComputeGraphDifference(original, clone, related)
	assert.Equal(t, []int64{250}, diff[models.FieldActivities].Added)

	// The merge re-creates the added row on the original side (say id 102)
	// and archives the correspondence so the stored diff stays resolvable
	// after the clone is deleted.
	recordMergedPair(related, models.FieldActivities, 102, 250)

	oldID, ok := related.OldFor(models.FieldActivities, 250)
	assert.True(t, ok, "the stored map must cover rows added during the amendment")
	assert.Equal(t, int64(102), oldID)

	newID, ok := related.NewFor(models.FieldActivities, 102)
	assert.True(t, ok)
	assert.Equal(t, int64(250), newID)

	// Fork-time pairs survive the append.
	_, ok = related.NewFor(models.FieldActivities, 100)
	assert.True(t, ok)
}

// ============================================================================
// RESULT-LINK RENUMBERING
// ============================================================================

func TestRenumberResultLinkCodes_DenseSequence(t *testing.T) {
	out1, out2 := int64(900), int64(901)
	codes := RenumberResultLinkCodes([]models.ResultLink{
		{ID: 1, CPOutputID: &out1},
		{ID: 2, CPOutputID: nil},
		{ID: 3, CPOutputID: &out2},
	})

	assert.Equal(t, "1", codes[1])
	assert.Equal(t, "0", codes[2], "links without a CP output always carry code 0")
	assert.Equal(t, "2", codes[3], "numbered codes stay dense across unnumbered links")
}

func TestRenumberResultLinkCodes_Empty(t *testing.T) {
	assert.Empty(t, RenumberResultLinkCodes(nil))
}

// ============================================================================
// AMENDMENT NUMBERING
// ============================================================================

func TestAmendmentNumber_PerKindSequences(t *testing.T) {
	assert.Equal(t, "amd/1", models.AmendmentNumber(models.AmendmentNormal, 1))
	assert.Equal(t, "amd/3", models.AmendmentNumber(models.AmendmentNormal, 3))
	assert.Equal(t, "camd/1", models.AmendmentNumber(models.AmendmentContingency, 1))
	assert.Equal(t, "camd/2", models.AmendmentNumber(models.AmendmentContingency, 2))
}
