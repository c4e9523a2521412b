package outwriter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func sampleRecord() schema.ReportRecord {
	return schema.ReportRecord{
		RepositoryID: "artifact-hub/hub",
		Report: schema.Report{
			RepositoryID:    "artifact-hub/hub",
			Commit:          "0123456789abcdef0123",
			ChecksetVersion: "2026.1:code+community",
			Outcomes: []schema.CheckOutcome{
				{CheckID: "readme", Category: schema.DocumentationCategory, Status: schema.PassedStatus, Detail: "README.md"},
				{CheckID: "adopters", Category: schema.DocumentationCategory, Status: schema.FailedStatus, Reason: "no adopters file"},
				{CheckID: "sbom", Category: schema.SecurityCategory, Status: schema.NotApplicableStatus},
			},
		},
		Score: schema.Score{
			Global:     50,
			Rating:     "b",
			Categories: map[schema.Category]int{schema.DocumentationCategory: 50},
		},
	}
}

func TestWriteReportTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReportTable(&buf, sampleRecord(), &contract.Config{Width: 120}))
	out := buf.String()

	assert.Contains(t, out, "adopters")
	assert.Contains(t, out, "no adopters file")
	assert.Contains(t, out, "artifact-hub/hub @ 0123456789ab")
	assert.Contains(t, out, "security        -")
	assert.Contains(t, out, "Global score: 50 (B)")
}

func TestWriteReportCSVAndJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReportCSV(&buf, sampleRecord()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "repository,commit,check,category,status,reason,detail", lines[0])
	assert.Contains(t, lines[2], "adopters,documentation,failed,no adopters file")

	buf.Reset()
	require.NoError(t, writeReportJSON(&buf, sampleRecord()))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "B", doc["label"])
	score := doc["score"].(map[string]any)
	assert.Equal(t, float64(50), score["global"])
}

func TestWriteSweep(t *testing.T) {
	outcomes := []schema.JobOutcome{
		{RepositoryID: "a/one", State: schema.JobDone, Archived: true, Attempts: 1, Duration: 1500 * time.Millisecond,
			Score: &schema.Score{Global: 80, Rating: "a"}},
		{RepositoryID: "a/two", State: schema.JobFailed, LastStage: schema.JobFetching, Attempts: 3, Error: "fetch a/two (network): connection reset"},
		{RepositoryID: "a/three", State: schema.JobPending},
	}
	summary := schema.Summarize(outcomes)
	summary.RunID = "run-1"

	var buf bytes.Buffer
	require.NoError(t, writeSweepTable(&buf, outcomes, summary, &contract.Config{Width: 160}))
	out := buf.String()
	assert.Contains(t, out, "done (archived)")
	assert.Contains(t, out, "connection reset")
	assert.Contains(t, out, "3 total, 1 done (1 archived), 1 failed, 1 pending")

	buf.Reset()
	require.NoError(t, writeSweepCSV(&buf, outcomes))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "a/one,done,,true,80,a,1,1500,", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "a/two,failed,fetching,false,,,3,0,"))

	buf.Reset()
	require.NoError(t, writeSweepJSON(&buf, nil, summary))
	assert.Contains(t, buf.String(), `"outcomes": []`)
}

func TestWriteChecks(t *testing.T) {
	defs := []schema.CheckDefinition{
		{ID: "readme", Category: schema.DocumentationCategory, Weight: 10, Requires: schema.TreeCapability,
			CheckSets: []schema.CheckSet{schema.CodeCheckSet, schema.CodeLiteCheckSet}, Description: "README file"},
		{ID: "recent_release", Category: schema.BestPracticesCategory, Weight: 3, Requires: schema.RemoteCapability,
			CheckSets: []schema.CheckSet{schema.CodeCheckSet}, Exemptable: true, Description: "Release in the last year"},
	}
	weights := schema.WeightTable{
		Checks:      map[string]uint{"readme": 25},
		Categories:  map[schema.Category]uint{schema.DocumentationCategory: 30},
		ErrorPolicy: schema.ErrorAsFailed,
	}
	rows := checkRows(defs, weights)
	assert.Equal(t, uint(25), rows[0].EffectiveWeight)
	assert.Equal(t, uint(3), rows[1].EffectiveWeight, "falls back to the registry weight")

	var buf bytes.Buffer
	require.NoError(t, writeChecksTable(&buf, rows, weights, "2026.1", &contract.Config{Width: 200}))
	assert.Contains(t, buf.String(), "code,code-lite")
	assert.Contains(t, buf.String(), "documentation=30")
	assert.Contains(t, buf.String(), "Errors count as failed")

	buf.Reset()
	require.NoError(t, writeChecksCSV(&buf, rows))
	assert.Contains(t, buf.String(), "readme,documentation,25,tree,code|code-lite,false,README file")

	buf.Reset()
	require.NoError(t, writeChecksJSON(&buf, rows, weights, "2026.1"))
	var doc struct {
		Version string `json:"version"`
		Checks  []struct {
			ID              string `json:"id"`
			Requires        string `json:"requires"`
			EffectiveWeight uint   `json:"effective_weight"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2026.1", doc.Version)
	assert.Equal(t, "remote", doc.Checks[1].Requires)
	assert.Equal(t, uint(25), doc.Checks[0].EffectiveWeight)
}

func TestWriteHistory(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := sampleRecord()
	snaps := []schema.Snapshot{{RepositoryID: rec.RepositoryID, Report: rec.Report, Score: rec.Score, CreatedAt: at}}

	var buf bytes.Buffer
	require.NoError(t, writeHistoryTable(&buf, rec.RepositoryID, nil))
	assert.Equal(t, "No snapshots recorded for artifact-hub/hub\n", buf.String())

	buf.Reset()
	require.NoError(t, writeHistoryTable(&buf, rec.RepositoryID, snaps))
	assert.Contains(t, buf.String(), "2026-05-01T10:00:00Z")
	assert.Contains(t, buf.String(), "Showing 1 snapshots")

	buf.Reset()
	require.NoError(t, writeHistoryCSV(&buf, snaps))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "artifact-hub/hub,2026-05-01T10:00:00Z,0123456789abcdef0123,2026.1:code+community,50,b,50,,,,", lines[1])
}

func TestDispatchToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: path}
	require.NoError(t, NewOutWriter().WriteReport(sampleRecord(), cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"repository_id": "artifact-hub/hub"`)
}

func TestGetMaxTextWidth(t *testing.T) {
	assert.Equal(t, 15, GetMaxTextWidth(&contract.Config{Width: 40}, 30))
	assert.Equal(t, 50, GetMaxTextWidth(&contract.Config{Width: 130}, 60))
	assert.Equal(t, 90, GetMaxTextWidth(&contract.Config{Width: 500}, 60))
}
