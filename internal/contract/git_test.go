package contract

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfGitNotAvailable skips the test if git binary is not found in PATH
func skipIfGitNotAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git binary not found in PATH: %v", err)
	}
}

// initTestRepo creates a repository with one commit per message.
func initTestRepo(t *testing.T, messages ...string) string {
	t.Helper()
	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		full := append([]string{"-C", dir, "-c", "user.name=Tester", "-c", "user.email=tester@example.com"}, args...)
		out, err := exec.Command("git", full...).CombinedOutput()
		require.NoError(t, err, string(out))
	}
	git("init", "--quiet", "--initial-branch=main")
	for i, msg := range messages {
		name := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(name, []byte(msg+string(rune('a'+i))), 0o644))
		git("add", ".")
		git("commit", "--quiet", "-m", msg)
	}
	return dir
}

// TestMockGitClient_Run ensures the mock correctly records and returns
// expected values when its Run method is called.
func TestMockGitClient_Run(t *testing.T) {
	mockClient := new(MockGitClient)

	const expectedRepoPath = "/path/to/repo"
	expectedArgs := []string{"log", "-1", "--oneline"}
	expectedOutput := []byte("a1b2c3d commit message")
	expectedError := errors.New("mocked git error")

	// MockGitClient.Run flattens (ctx, repoPath, args...) into one argument list.
	ctx := context.Background()
	calledArgs := []any{ctx, expectedRepoPath}
	for _, arg := range expectedArgs {
		calledArgs = append(calledArgs, arg)
	}

	mockClient.
		On("Run", calledArgs...).
		Return(expectedOutput, expectedError).
		Once()

	actualOutput, actualError := mockClient.Run(ctx, expectedRepoPath, expectedArgs...)

	assert.Equal(t, expectedOutput, actualOutput)
	assert.Equal(t, expectedError, actualError)
	mockClient.AssertExpectations(t)
}

func TestLocalGitClient_Run(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient("")
	ctx := context.Background()
	repo := initTestRepo(t, "initial")

	tests := []struct {
		name        string
		repoPath    string
		args        []string
		expectError bool
	}{
		{name: "status", repoPath: repo, args: []string{"status", "--short"}},
		{name: "invalid repo path", repoPath: "/nonexistent/path", args: []string{"status"}, expectError: true},
		{name: "invalid git command", repoPath: repo, args: []string{"invalid-command"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Run(ctx, tt.repoPath, tt.args...)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalGitClient_RunErrorCarriesStderr(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient("secret-token")
	err := client.Clone(context.Background(), "/nonexistent/remote", filepath.Join(t.TempDir(), "dest"))
	require.Error(t, err)

	var gitErr *GitCommandError
	require.ErrorAs(t, err, &gitErr)
	assert.Equal(t, "clone", gitErr.Args[0])
	assert.NotEmpty(t, gitErr.Stderr)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestLocalGitClient_RunContextTimeout(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Run(ctx, initTestRepo(t, "initial"), "status")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalGitClient_CloneFetchCheckout(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient("")
	ctx := context.Background()
	remote := initTestRepo(t, "first", "second")
	dest := filepath.Join(t.TempDir(), "clone")

	require.NoError(t, client.Clone(ctx, remote, dest))
	head, err := client.GetRepoHash(ctx, dest)
	require.NoError(t, err)
	assert.Len(t, head, 40)

	require.NoError(t, client.Fetch(ctx, dest))

	// Untracked files disappear on checkout.
	stray := filepath.Join(dest, "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))
	require.NoError(t, client.Checkout(ctx, dest, "HEAD~1"))
	_, err = os.Stat(stray)
	assert.True(t, os.IsNotExist(err))

	parent, err := client.GetRepoHash(ctx, dest)
	require.NoError(t, err)
	assert.NotEqual(t, head, parent)

	root, err := client.GetRepoRoot(ctx, dest)
	require.NoError(t, err)
	assert.NotEmpty(t, root)
}

func TestLocalGitClient_GetRecentCommits(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient("")
	repo := initTestRepo(t, "first", "second\n\nSigned-off-by: Tester <tester@example.com>", "third")

	commits, err := client.GetRecentCommits(context.Background(), repo, 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "third", commits[0].Message)
	assert.Contains(t, commits[1].Message, "Signed-off-by:")
	assert.Equal(t, "Tester", commits[0].Author)
	assert.WithinDuration(t, time.Now(), commits[0].Date, time.Hour)

	h := &GitHistory{Client: client, Dir: repo}
	all, err := h.RecentCommits(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestParseCommitLog(t *testing.T) {
	out := []byte("\x1eabc\x1fAlice\x1f2024-01-02T03:04:05Z\x1ffix: thing\n\nbody\n\x1edef\x1fBob\x1f2024-01-01T00:00:00Z\x1f")
	commits, err := ParseCommitLog(out)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "abc", commits[0].Hash)
	assert.Equal(t, "fix: thing\n\nbody", commits[0].Message)
	assert.Equal(t, "", commits[1].Message)

	_, err = ParseCommitLog([]byte("\x1ebroken"))
	assert.Error(t, err)

	_, err = ParseCommitLog([]byte("\x1eabc\x1fAlice\x1fyesterday"))
	assert.Error(t, err)
}

func FuzzParseCommitLog(f *testing.F) {
	f.Add([]byte("\x1eabc\x1fAlice\x1f2024-01-02T03:04:05Z\x1fmsg"))
	f.Add([]byte(""))
	f.Add([]byte("\x1e\x1f\x1f"))
	f.Fuzz(func(_ *testing.T, data []byte) {
		_, _ = ParseCommitLog(data)
	})
}

func TestStripGlobalArgs(t *testing.T) {
	args := []string{"-C", "/tmp", "-c", "http.extraHeader=Authorization: Basic xyz", "fetch", "origin"}
	assert.Equal(t, []string{"fetch", "origin"}, stripGlobalArgs(args))
	assert.Equal(t, "fetch", firstVerb(args))
	assert.Nil(t, stripGlobalArgs([]string{"-C", "/tmp"}))
}
