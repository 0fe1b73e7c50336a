package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// RELATED OBJECTS MAP
// ============================================================================

func TestRelatedObjectsMap_Lookups(t *testing.T) {
	m := RelatedObjectsMap{
		FieldResultLinks: {{OldID: 1, NewID: 2}, {OldID: 3, NewID: 4}},
		FieldActivities:  {{OldID: 100, NewID: 200}},
	}

	newID, ok := m.NewFor(FieldResultLinks, 3)
	assert.True(t, ok)
	assert.Equal(t, int64(4), newID)

	oldID, ok := m.OldFor(FieldActivities, 200)
	assert.True(t, ok)
	assert.Equal(t, int64(100), oldID)
}

func TestRelatedObjectsMap_MissingEntries(t *testing.T) {
	m := RelatedObjectsMap{
		FieldResultLinks: {{OldID: 1, NewID: 2}},
	}

	_, ok := m.NewFor(FieldResultLinks, 99)
	assert.False(t, ok, "rows outside the fork have no pair")

	_, ok = m.OldFor(FieldLowerResults, 2)
	assert.False(t, ok, "unknown field names resolve to nothing")
}

// ============================================================================
// DIFFERENCE DOCUMENT
// ============================================================================

func TestDifferenceEmpty(t *testing.T) {
	assert.True(t, Difference{}.Empty())
	assert.True(t, Difference{FieldActivities: {}}.Empty(), "an entry with no content is still empty")

	withField := Difference{
		FieldIntervention: {Fields: map[string]FieldDelta{"title": {Before: "a", After: "b"}}},
	}
	assert.False(t, withField.Empty())

	withAdded := Difference{FieldActivities: {Added: []int64{5}}}
	assert.False(t, withAdded.Empty())

	withRemoved := Difference{FieldRisks: {Removed: []int64{7}}}
	assert.False(t, withRemoved.Empty())
}
