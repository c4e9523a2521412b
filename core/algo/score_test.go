package algo

import (
	"testing"

	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is a small helper to build report outcomes.
func outcome(id string, c schema.Category, s schema.OutcomeStatus) schema.CheckOutcome {
	return schema.CheckOutcome{CheckID: id, Category: c, Status: s}
}

// evenWeights gives every category the same weight.
func evenWeights(checks map[string]uint) schema.WeightTable {
	cats := make(map[schema.Category]uint, len(schema.AllCategories))
	for _, c := range schema.AllCategories {
		cats[c] = 1
	}
	return schema.WeightTable{Checks: checks, Categories: cats}
}

func TestScoreCategoryWithTwoChecks(t *testing.T) {
	weights := evenWeights(map[string]uint{"a": 50, "b": 50})

	tests := []struct {
		name     string
		statusB  schema.OutcomeStatus
		expected int
	}{
		{name: "one passed one failed", statusB: schema.FailedStatus, expected: 50},
		{name: "failing check not applicable", statusB: schema.NotApplicableStatus, expected: 100},
		{name: "second check exempt", statusB: schema.ExemptStatus, expected: 100},
		{name: "second check errored", statusB: schema.ErrorStatus, expected: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &schema.Report{Outcomes: []schema.CheckOutcome{
				outcome("a", schema.LicenseCategory, schema.PassedStatus),
				outcome("b", schema.LicenseCategory, tt.statusB),
			}}
			score, _ := Score(report, weights)
			got, ok := score.Category(schema.LicenseCategory)
			require.True(t, ok)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected, score.Global)
		})
	}
}

func TestScoreErrorExcludedPolicy(t *testing.T) {
	weights := evenWeights(map[string]uint{"a": 1, "b": 3})
	weights.ErrorPolicy = schema.ErrorExcluded
	report := &schema.Report{Outcomes: []schema.CheckOutcome{
		outcome("a", schema.SecurityCategory, schema.PassedStatus),
		outcome("b", schema.SecurityCategory, schema.ErrorStatus),
	}}

	score, _ := Score(report, weights)
	assert.Equal(t, 100, score.Categories[schema.SecurityCategory])

	weights.ErrorPolicy = schema.ErrorAsFailed
	score, _ = Score(report, weights)
	assert.Equal(t, 25, score.Categories[schema.SecurityCategory])
}

func TestScoreUndefinedCategoryLeavesGlobalDenominator(t *testing.T) {
	weights := schema.WeightTable{
		Checks: map[string]uint{"doc": 1, "legal": 1},
		Categories: map[schema.Category]uint{
			schema.DocumentationCategory: 30,
			schema.LegalCategory:         10,
		},
	}
	report := &schema.Report{Outcomes: []schema.CheckOutcome{
		outcome("doc", schema.DocumentationCategory, schema.PassedStatus),
		outcome("legal", schema.LegalCategory, schema.FailedStatus),
	}}

	score, issues := Score(report, weights)
	// (30*100 + 10*0) / 40 = 75
	assert.Equal(t, 75, score.Global)
	assert.Equal(t, "a", score.Rating)
	assert.Len(t, issues, len(schema.AllCategories)-2)

	report.Outcomes[1].Status = schema.NotApplicableStatus
	score, issues = Score(report, weights)
	_, defined := score.Category(schema.LegalCategory)
	assert.False(t, defined)
	assert.Equal(t, 100, score.Global)
	assert.Contains(t, issues, Inconsistency{Category: schema.LegalCategory, Reason: "no applicable weight"})
}

func TestScoreNothingDefined(t *testing.T) {
	report := &schema.Report{Outcomes: []schema.CheckOutcome{
		outcome("a", schema.LicenseCategory, schema.NotApplicableStatus),
	}}
	score, issues := Score(report, evenWeights(map[string]uint{"a": 1}))
	assert.Equal(t, 0, score.Global)
	assert.Empty(t, score.Categories)
	assert.Len(t, issues, len(schema.AllCategories))
	assert.Equal(t, "d", score.Rating)
}

func TestScoreRoundsHalfUp(t *testing.T) {
	tests := []struct {
		name     string
		passed   uint
		failed   uint
		expected int
	}{
		{name: "two thirds", passed: 2, failed: 1, expected: 67},
		{name: "one third", passed: 1, failed: 2, expected: 33},
		{name: "exact half of a percent", passed: 1, failed: 199, expected: 1},
		{name: "just below half", passed: 1, failed: 201, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := evenWeights(map[string]uint{"p": tt.passed, "f": tt.failed})
			report := &schema.Report{Outcomes: []schema.CheckOutcome{
				outcome("p", schema.DocumentationCategory, schema.PassedStatus),
				outcome("f", schema.DocumentationCategory, schema.FailedStatus),
			}}
			score, _ := Score(report, weights)
			assert.Equal(t, tt.expected, score.Categories[schema.DocumentationCategory])
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	weights := evenWeights(map[string]uint{"a": 4, "b": 6, "c": 1})
	report := &schema.Report{Outcomes: []schema.CheckOutcome{
		outcome("a", schema.DocumentationCategory, schema.PassedStatus),
		outcome("b", schema.SecurityCategory, schema.FailedStatus),
		outcome("c", schema.BestPracticesCategory, schema.ExemptStatus),
	}}
	first, _ := Score(report, weights)
	for range 10 {
		again, _ := Score(report, weights)
		assert.True(t, first.Equal(again))
	}
}

func TestScoreIgnoresUnknownCategory(t *testing.T) {
	report := &schema.Report{Outcomes: []schema.CheckOutcome{
		outcome("x", schema.Category("speed"), schema.PassedStatus),
	}}
	score, _ := Score(report, evenWeights(map[string]uint{"x": 1}))
	assert.Empty(t, score.Categories)
}

// FuzzScore checks that scores stay in range for arbitrary outcome mixes.
func FuzzScore(f *testing.F) {
	f.Add(uint8(0), uint8(1), uint8(2), uint16(1), uint16(5), uint16(100), uint8(0))
	f.Add(uint8(4), uint8(3), uint8(3), uint16(0), uint16(0), uint16(0), uint8(1))
	f.Add(uint8(1), uint8(1), uint8(1), uint16(65535), uint16(1), uint16(7), uint8(3))

	statuses := []schema.OutcomeStatus{
		schema.PassedStatus, schema.FailedStatus, schema.ExemptStatus,
		schema.NotApplicableStatus, schema.ErrorStatus,
	}

	f.Fuzz(func(t *testing.T, s1, s2, s3 uint8, w1, w2, w3 uint16, policy uint8) {
		weights := evenWeights(map[string]uint{"a": uint(w1), "b": uint(w2), "c": uint(w3)})
		if policy%2 == 1 {
			weights.ErrorPolicy = schema.ErrorExcluded
		}
		report := &schema.Report{Outcomes: []schema.CheckOutcome{
			outcome("a", schema.DocumentationCategory, statuses[int(s1)%len(statuses)]),
			outcome("b", schema.DocumentationCategory, statuses[int(s2)%len(statuses)]),
			outcome("c", schema.SecurityCategory, statuses[int(s3)%len(statuses)]),
		}}

		score, _ := Score(report, weights)
		if score.Global < 0 || score.Global > 100 {
			t.Fatalf("global score out of range: %d", score.Global)
		}
		for c, v := range score.Categories {
			if v < 0 || v > 100 {
				t.Fatalf("category %s out of range: %d", c, v)
			}
		}
	})
}

func BenchmarkScore(b *testing.B) {
	weights := evenWeights(map[string]uint{"a": 4, "b": 6, "c": 1})
	report := &schema.Report{Outcomes: []schema.CheckOutcome{
		outcome("a", schema.DocumentationCategory, schema.PassedStatus),
		outcome("b", schema.SecurityCategory, schema.FailedStatus),
		outcome("c", schema.BestPracticesCategory, schema.ExemptStatus),
	}}
	for b.Loop() {
		Score(report, weights)
	}
}
