//go:build basic || database

// Package integration runs the repohealth binary end to end.
// These tests are excluded from normal test runs due to build tags.
// To run them: go test -tags basic ./integration
// The database suite needs Docker: go test -tags database ./integration
package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// sharedBinaryPath holds the path to a repohealth binary built once for all tests.
	sharedBinaryPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getBinary returns the path to the repohealth binary, building it once if needed.
func getBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "repohealth-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		binPath := filepath.Join(tempDir, "repohealth")
		buildCmd := exec.Command("go", "build", "-o", binPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if out, err := buildCmd.CombinedOutput(); err != nil {
			panic(fmt.Sprintf("failed to build repohealth: %v\n%s", err, out))
		}

		sharedBinaryPath = binPath
	})

	return sharedBinaryPath
}

// env is an isolated environment: its own HOME, fetch cache and SQLite file.
type env struct {
	home string
	vars []string
}

func newEnv(t *testing.T, extra ...string) *env {
	t.Helper()
	home := t.TempDir()
	return &env{
		home: home,
		vars: append([]string{
			"HOME=" + home,
			"REPOHEALTH_CACHE_DIR=" + filepath.Join(home, "repos"),
			"REPOHEALTH_STORE_DB_CONNECT=" + filepath.Join(home, "repohealth.db"),
			"REPOHEALTH_COLOR=no",
			"REPOHEALTH_LOG_LEVEL=warn",
			"GIT_TERMINAL_PROMPT=0",
		}, extra...),
	}
}

// run executes the binary and returns its stdout. Stderr is logged on failure.
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getBinary(), args...)
	cmd.Dir = e.home
	cmd.Env = append(os.Environ(), e.vars...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		t.Logf("Command failed: %s\nStdout: %s\nStderr: %s", cmd.String(), stdout.String(), stderr.String())
	}
	return stdout.String(), err
}

const mitLicense = `MIT License

Copyright (c) 2024 Example Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`

// newFixtureRepo creates a git repository with a few community files and returns its path.
func newFixtureRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	files := map[string]string{
		"README.md":          "# Fixture\n\nA fixture repository.\n",
		"LICENSE":            mitLicense,
		"CONTRIBUTING.md":    "# Contributing\n",
		"CODE_OF_CONDUCT.md": "# Code of Conduct\n",
		"SECURITY.md":        "# Security Policy\n",
		"CHANGELOG.md":       "# Changelog\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	git := func(args ...string) {
		t.Helper()
		full := append([]string{"-C", dir, "-c", "user.name=Tester", "-c", "user.email=tester@example.com"}, args...)
		out, err := exec.Command("git", full...).CombinedOutput()
		require.NoError(t, err, string(out))
	}
	git("init", "--quiet", "--initial-branch=main")
	git("add", ".")
	git("commit", "--quiet", "-m", "initial commit", "-s")
	return dir
}

// commitFile adds or replaces a file in a fixture repository and commits it.
func commitFile(t *testing.T, repo, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(repo, name), []byte(content), 0o644))
	for _, args := range [][]string{
		{"add", name},
		{"commit", "--quiet", "-m", "update " + name},
	} {
		full := append([]string{"-C", repo, "-c", "user.name=Tester", "-c", "user.email=tester@example.com"}, args...)
		out, err := exec.Command("git", full...).CombinedOutput()
		require.NoError(t, err, string(out))
	}
}

// writeRegistry writes a data file with one project holding the given repositories (name -> url).
func writeRegistry(t *testing.T, dir string, repos map[string]string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("- name: fixture\n  display_name: Fixture\n  category: testing\n  maturity: sandbox\n  repositories:\n")
	for name, url := range repos {
		fmt.Fprintf(&b, "    - name: %s\n      url: %s\n", name, url)
	}
	path := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}
