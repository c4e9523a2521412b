package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityText(t *testing.T) {
	tests := []struct {
		c    Capability
		text string
	}{
		{0, "none"},
		{TreeCapability, "tree"},
		{TreeCapability | HistoryCapability, "tree+history"},
		{TreeCapability | HistoryCapability | RemoteCapability, "tree+history+remote"},
		{RemoteCapability, "remote"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.c.String())

			var parsed Capability
			require.NoError(t, parsed.UnmarshalText([]byte(tt.text)))
			assert.Equal(t, tt.c, parsed)
		})
	}

	var c Capability
	assert.Error(t, c.UnmarshalText([]byte("tree+network")))
	assert.True(t, (TreeCapability | RemoteCapability).Has(RemoteCapability))
	assert.False(t, TreeCapability.Has(TreeCapability|HistoryCapability))
}

func TestCheckDefinitionJSON(t *testing.T) {
	def := CheckDefinition{
		ID:        "recent_release",
		Category:  BestPracticesCategory,
		Weight:    3,
		Requires:  RemoteCapability,
		CheckSets: []CheckSet{CodeCheckSet},
	}
	data, err := json.Marshal(def)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"requires":"remote"`)

	var back CheckDefinition
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, def, back)
}

func TestEffectiveCheckSets(t *testing.T) {
	primary := Repository{Role: PrimaryRole}
	assert.Equal(t, []CheckSet{CodeCheckSet, CommunityCheckSet}, primary.EffectiveCheckSets())
	assert.True(t, primary.HasCheckSet(CommunityCheckSet))

	secondary := Repository{Role: SecondaryRole}
	assert.Equal(t, []CheckSet{CodeLiteCheckSet}, secondary.EffectiveCheckSets())
	assert.False(t, secondary.HasCheckSet(CodeCheckSet))

	explicit := Repository{Role: SecondaryRole, CheckSets: []CheckSet{DocsCheckSet}}
	assert.Equal(t, []CheckSet{DocsCheckSet}, explicit.EffectiveCheckSets())
}

func TestRating(t *testing.T) {
	tests := map[int]string{100: "a", 75: "a", 74: "b", 50: "b", 49: "c", 25: "c", 24: "d", 0: "d"}
	for global, want := range tests {
		assert.Equal(t, want, Rating(global), "global %d", global)
	}
}

func TestScoreEqual(t *testing.T) {
	a := Score{Global: 80, Categories: map[Category]int{DocumentationCategory: 80}, Rating: "a"}
	b := Score{Global: 80, Categories: map[Category]int{DocumentationCategory: 80}}
	assert.True(t, a.Equal(b))

	c := Score{Global: 80, Categories: map[Category]int{DocumentationCategory: 80, LegalCategory: 80}}
	assert.False(t, a.Equal(c), "a newly defined category is a change")

	v, ok := c.Category(LegalCategory)
	assert.True(t, ok)
	assert.Equal(t, 80, v)
	_, ok = a.Category(SecurityCategory)
	assert.False(t, ok)
}

func TestReportEquivalent(t *testing.T) {
	base := Report{
		RepositoryID:    "p/r",
		Commit:          "abc",
		ChecksetVersion: "v1",
		CreatedAt:       time.Unix(100, 0),
		Outcomes: []CheckOutcome{
			{CheckID: "readme", Category: DocumentationCategory, Status: PassedStatus},
		},
	}
	later := base
	later.CreatedAt = time.Unix(200, 0)
	assert.True(t, base.Equivalent(&later))

	changed := later
	changed.Outcomes = []CheckOutcome{{CheckID: "readme", Category: DocumentationCategory, Status: FailedStatus}}
	assert.False(t, base.Equivalent(&changed))

	var none *Report
	assert.True(t, none.Equivalent(nil))
	assert.False(t, base.Equivalent(nil))

	o, ok := base.Outcome("readme")
	assert.True(t, ok)
	assert.Equal(t, PassedStatus, o.Status)
	_, ok = base.Outcome("missing")
	assert.False(t, ok)
}

func TestJobTransitions(t *testing.T) {
	path := []JobState{JobPending, JobFetching, JobLinting, JobScoring, JobComparing, JobArchived, JobDone}
	for i := 0; i < len(path)-1; i++ {
		assert.NoError(t, path[i].ValidateTransition(path[i+1]), "%s -> %s", path[i], path[i+1])
	}
	assert.True(t, JobComparing.CanTransition(JobStored))
	assert.True(t, JobFetching.CanTransition(JobPending), "retry returns to pending")
	assert.True(t, JobLinting.CanTransition(JobFailed))

	assert.Error(t, JobPending.ValidateTransition(JobLinting))
	assert.Error(t, JobDone.ValidateTransition(JobPending))
	assert.Error(t, JobStored.ValidateTransition(JobArchived))
	assert.True(t, JobDone.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.False(t, JobStored.Terminal())
}

func TestSummarize(t *testing.T) {
	s := Summarize([]JobOutcome{
		{State: JobDone, Archived: true},
		{State: JobDone},
		{State: JobFailed},
		{State: JobPending},
	})
	assert.Equal(t, SweepSummary{Total: 4, Done: 2, Archived: 1, Failed: 1, Pending: 1}, s)
}

func TestLatestRelease(t *testing.T) {
	var none *RemoteMetadata
	_, ok := none.LatestRelease()
	assert.False(t, ok)

	md := &RemoteMetadata{Releases: []ReleaseInfo{{Tag: "v2"}, {Tag: "v1"}}}
	r, ok := md.LatestRelease()
	require.True(t, ok)
	assert.Equal(t, "v2", r.Tag)
}
