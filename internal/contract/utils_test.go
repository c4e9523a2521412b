package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A"},
		{75, "A"},
		{74, "B"},
		{50, "B"},
		{49, "C"},
		{25, "C"},
		{24, "D"},
		{0, "D"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetPlainLabel(tt.score), "score %d", tt.score)
	}
}

func TestGetColorLabel(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	assert.Equal(t, "A", GetColorLabel(80))
	assert.Equal(t, "D", GetColorLabel(10))
	assert.Equal(t, "passed", GetStatusLabel(schema.PassedStatus))
	assert.Equal(t, "not_applicable", GetStatusLabel(schema.NotApplicableStatus))
}

func TestSelectOutputFile(t *testing.T) {
	f, err := SelectOutputFile("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, f)

	path := filepath.Join(t.TempDir(), "out.json")
	f, err = SelectOutputFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, path, f.Name())
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abcdefg...", TruncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "abcdef", TruncateText("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("perhaps")
	assert.Error(t, err)
}
