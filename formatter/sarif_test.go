package formatter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/moveaudit/internal/types"
)

type sarifDoc struct {
	Version string `json:"version"`
	Runs    []struct {
		Tool struct {
			Driver struct {
				Name  string `json:"name"`
				Rules []struct {
					ID string `json:"id"`
				} `json:"rules"`
			} `json:"driver"`
		} `json:"tool"`
		Results []struct {
			RuleID  string `json:"ruleId"`
			Level   string `json:"level"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
			Locations []struct {
				PhysicalLocation struct {
					ArtifactLocation struct {
						URI string `json:"uri"`
					} `json:"artifactLocation"`
					Region struct {
						StartLine   int `json:"startLine"`
						StartColumn int `json:"startColumn"`
						EndLine     int `json:"endLine"`
						EndColumn   int `json:"endColumn"`
					} `json:"region"`
				} `json:"physicalLocation"`
			} `json:"locations"`
		} `json:"results"`
	} `json:"runs"`
}

func TestWriteSARIF(t *testing.T) {
	t.Parallel()

	files := []FileReport{
		{
			Path: "sources/bank.move",
			Report: &tt.Report{Score: 75, Issues: []tt.Issue{
				{Rule: "missing-access-control", Title: "Missing access control", Description: "anyone can call", Severity: tt.SeverityCritical, Location: rng(4, 5, 4, 30)},
				{Rule: "resource-leak", Title: "Resource leak", Description: "leak", SuggestedFix: "deposit it", Severity: tt.SeverityMedium, Location: rng(9, 20, 9, 38), CodeSnippet: "c: Coin<AptosCoin>"},
			}},
		},
		{
			Path:   "sources/math.move",
			Report: &tt.Report{Score: 99, Issues: []tt.Issue{{Rule: "resource-leak", Title: "Resource leak", Description: "again", Severity: tt.SeverityMedium, Location: rng(2, 1, 2, 2)}}},
		},
		{Path: "sources/broken.move"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, files))

	var doc sarifDoc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)

	run := doc.Runs[0]
	assert.Equal(t, toolName, run.Tool.Driver.Name)
	assert.Len(t, run.Tool.Driver.Rules, 2)
	require.Len(t, run.Results, 3)

	first := run.Results[0]
	assert.Equal(t, "missing-access-control", first.RuleID)
	assert.Equal(t, "error", first.Level)
	assert.Equal(t, "anyone can call", first.Message.Text)
	require.Len(t, first.Locations, 1)
	loc := first.Locations[0].PhysicalLocation
	assert.Equal(t, "sources/bank.move", loc.ArtifactLocation.URI)
	assert.Equal(t, 4, loc.Region.StartLine)
	assert.Equal(t, 5, loc.Region.StartColumn)
	assert.Equal(t, 4, loc.Region.EndLine)
	assert.Equal(t, 30, loc.Region.EndColumn)

	assert.Equal(t, "warning", run.Results[1].Level)
	assert.Equal(t, "leak\ndeposit it", run.Results[1].Message.Text)
	assert.Equal(t, "sources/math.move", run.Results[2].Locations[0].PhysicalLocation.ArtifactLocation.URI)
}

func TestSarifLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "error", sarifLevel(tt.SeverityCritical))
	assert.Equal(t, "error", sarifLevel(tt.SeverityHigh))
	assert.Equal(t, "warning", sarifLevel(tt.SeverityMedium))
	assert.Equal(t, "note", sarifLevel(tt.SeverityLow))
	assert.Equal(t, "note", sarifLevel(tt.SeverityInfo))
	assert.Equal(t, "none", sarifLevel(tt.SeverityUnset))
}
