package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		t.Run(mode, func(t *testing.T) {
			l, err := New(mode, "debug")
			require.NoError(t, err)
			require.NotNil(t, l)
			l.With("repository", "a/b").Debug("hello", "attempt", 1)
		})
	}

	_, err := New("dev", "loud")
	assert.Error(t, err)
}

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]any{"github_token", "ghp_abc", "url", "https://user:pw@github.com/a/b", "count", 3, "dangling"})
	assert.Equal(t, []any{
		"github_token", "[REDACTED]",
		"url", "https://***@github.com/a/b",
		"count", 3,
		"dangling",
	}, out)
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://github.com/a/b", "https://github.com/a/b"},
		{"https://x:y@github.com/a/b", "https://***@github.com/a/b"},
		{"https://github.com/a/b@v1", "https://github.com/a/b@v1"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactURL(tt.in))
	}
}
