package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trace-go/internal/types"
)

func strPtr(s string) *string { return &s }

func record(id string, a types.Analysis) types.AnalysisRecord {
	return types.AnalysisRecord{ID: id, SentAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), Analysis: a}
}

func TestSimilarIsSymmetric(t *testing.T) {
	assert.True(t, Similar("keys", "car keys"))
	assert.True(t, Similar("car keys", "keys"))
	assert.True(t, Similar("KEYS", "Car Keys"))
	assert.False(t, Similar("xyz", "abc"))
	assert.False(t, Similar("", "keys"))
	assert.False(t, Similar("keys", "  "))
}

func TestScoreAdditive(t *testing.T) {
	params := types.SearchParameters{
		TargetAction:   strPtr("left"),
		TargetObjects:  []string{"keys"},
		TargetLocation: strPtr("kitchen"),
	}
	rec := record("r1", types.Analysis{
		Actions:   []string{"walked", "left keys"},
		Objects:   []string{"car keys"},
		Locations: []string{"Kitchen counter"},
	})

	score, fields := Score(params, rec)
	assert.Equal(t, 6, score)
	assert.Equal(t, []string{"action", "object:keys", "location"}, fields)
}

func TestScoreObjectAndTagStack(t *testing.T) {
	params := types.SearchParameters{TargetObjects: []string{"wallet"}}
	rec := record("r1", types.Analysis{
		Objects: []string{"brown wallet", "wallet chain"},
		Tags:    []string{"wallet", "money"},
	})

	score, fields := Score(params, rec)
	assert.Equal(t, 3, score, "object and tag each count once")
	assert.Equal(t, []string{"object:wallet", "tag:wallet"}, fields)
}

func TestScoreActionCountsOnce(t *testing.T) {
	params := types.SearchParameters{TargetAction: strPtr("drink")}
	rec := record("r1", types.Analysis{Actions: []string{"drinking water", "drink coffee"}})

	score, _ := Score(params, rec)
	assert.Equal(t, 3, score)
}

func TestScoreNoMatchIsZero(t *testing.T) {
	params := types.SearchParameters{TargetAction: strPtr("xyz"), TargetObjects: []string{"xyz"}}
	rec := record("r1", types.Analysis{Actions: []string{"abc"}, Objects: []string{"abc"}})

	score, fields := Score(params, rec)
	assert.Zero(t, score)
	assert.Empty(t, fields)
}

func TestScoreEmptyParamsAndRecord(t *testing.T) {
	score, _ := Score(types.SearchParameters{TargetObjects: []string{}}, record("r1", types.Analysis{Objects: []string{"keys"}}))
	assert.Zero(t, score)

	score, _ = Score(types.SearchParameters{TargetObjects: []string{"keys"}}, record("r2", types.Analysis{}))
	assert.Zero(t, score)
}

func TestMatchOrdersAndExcludes(t *testing.T) {
	params := types.SearchParameters{TargetAction: strPtr("left"), TargetObjects: []string{"keys"}}
	corpus := []types.AnalysisRecord{
		record("object-only", types.Analysis{Objects: []string{"keys"}}),
		record("none", types.Analysis{Objects: []string{"phone"}}),
		record("both", types.Analysis{Actions: []string{"left"}, Objects: []string{"car keys"}}),
		record("object-only-2", types.Analysis{Objects: []string{"house keys"}}),
	}

	matches := Match(params, corpus)
	require.Len(t, matches, 3)
	assert.Equal(t, "both", matches[0].Record.ID)
	assert.Equal(t, 5, matches[0].Score)
	assert.Equal(t, "object-only", matches[1].Record.ID, "ties keep corpus order")
	assert.Equal(t, "object-only-2", matches[2].Record.ID)

	assert.Len(t, corpus, 4, "corpus untouched")
	assert.Equal(t, "object-only", corpus[0].ID)
}

func TestMatchDegradedParamsFindsNothing(t *testing.T) {
	corpus := []types.AnalysisRecord{record("r1", types.Analysis{Actions: []string{"left"}, Objects: []string{"keys"}})}
	matches := Match(types.SearchParameters{TargetObjects: []string{}}, corpus)

	assert.NotNil(t, matches)
	assert.Empty(t, matches)
	_, ok := Best(matches)
	assert.False(t, ok)
}

func TestMatchIsDeterministic(t *testing.T) {
	params := types.SearchParameters{TargetObjects: []string{"cup", "phone"}, TargetLocation: strPtr("desk")}
	corpus := []types.AnalysisRecord{
		record("a", types.Analysis{Objects: []string{"cup"}, Locations: []string{"desk"}}),
		record("b", types.Analysis{Objects: []string{"phone"}, Tags: []string{"cup"}}),
		record("c", types.Analysis{Tags: []string{"phone"}}),
	}

	first := Match(params, corpus)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Match(params, corpus))
	}
}
