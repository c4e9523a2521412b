package contract

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/repohealth/schema"
)

// GitCommandError carries the stderr of a failed git invocation.
type GitCommandError struct {
	Dir    string
	Args   []string
	Stderr string
	Err    error
}

func (e *GitCommandError) Error() string {
	verb := ""
	if len(e.Args) > 0 {
		verb = e.Args[0]
	}
	return fmt.Sprintf("git %s failed in %q: %s", verb, e.Dir, e.Stderr)
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct {
	token string // Injected as an HTTP header, never written to disk
}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
// A non-empty token is sent as HTTPS basic auth on every network operation.
func NewLocalGitClient(token string) *LocalGitClient {
	return &LocalGitClient{token: token}
}

// commitDelimiter separates records in the history log output.
const commitDelimiter = "\x1e"

// Run executes a git command and returns its stdout output.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	return c.exec(ctx, repoPath, fullArgs)
}

func (c *LocalGitClient) exec(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=true")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("git %s in %q: %w", firstVerb(args), dir, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &GitCommandError{Dir: dir, Args: stripGlobalArgs(args), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// authArgs returns the per-invocation config that injects the token.
func (c *LocalGitClient) authArgs() []string {
	if c.token == "" {
		return nil
	}
	creds := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + c.token))
	return []string{"-c", "http.extraHeader=Authorization: Basic " + creds}
}

// Clone implements the GitClient interface.
func (c *LocalGitClient) Clone(ctx context.Context, url, dest string) error {
	args := append(c.authArgs(), "clone", "--quiet", "--no-tags", url, dest)
	_, err := c.exec(ctx, dest, args)
	return err
}

// Fetch implements the GitClient interface.
func (c *LocalGitClient) Fetch(ctx context.Context, repoPath string) error {
	args := append([]string{"-C", repoPath}, c.authArgs()...)
	args = append(args, "fetch", "--quiet", "--prune", "--no-tags", "origin")
	if _, err := c.exec(ctx, repoPath, args); err != nil {
		return err
	}
	// Keep origin/HEAD pointing at the current remote default branch.
	args = append([]string{"-C", repoPath}, c.authArgs()...)
	args = append(args, "remote", "set-head", "origin", "--auto")
	_, err := c.exec(ctx, repoPath, args)
	return err
}

// Checkout implements the GitClient interface.
func (c *LocalGitClient) Checkout(ctx context.Context, repoPath, ref string) error {
	if _, err := c.Run(ctx, repoPath, "checkout", "--quiet", "--force", "--detach", ref); err != nil {
		return err
	}
	_, err := c.Run(ctx, repoPath, "clean", "--quiet", "-ffdx")
	return err
}

// GetRepoHash implements the GitClient interface.
func (c *LocalGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	out, err := c.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetRepoRoot implements the GitClient interface.
func (c *LocalGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	out, err := c.Run(ctx, contextPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetRecentCommits implements the GitClient interface.
func (c *LocalGitClient) GetRecentCommits(ctx context.Context, repoPath string, limit int) ([]schema.CommitInfo, error) {
	args := []string{
		"log",
		"--no-merges",
		"-n", strconv.Itoa(limit),
		"--pretty=format:" + commitDelimiter + "%H%x1f%an%x1f%ad%x1f%B",
		"--date=iso-strict",
	}
	out, err := c.Run(ctx, repoPath, args...)
	if err != nil {
		return nil, err
	}
	return ParseCommitLog(out)
}

// ParseCommitLog parses the output produced by GetRecentCommits.
func ParseCommitLog(out []byte) ([]schema.CommitInfo, error) {
	var commits []schema.CommitInfo
	for record := range strings.SplitSeq(string(out), commitDelimiter) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, "\x1f", 4)
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed commit record %q", record)
		}
		date, err := time.Parse(time.RFC3339, strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("invalid commit date for %s: %w", fields[0], err)
		}
		commit := schema.CommitInfo{Hash: fields[0], Author: fields[1], Date: date}
		if len(fields) == 4 {
			commit.Message = strings.TrimSpace(fields[3])
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// GitHistory adapts a GitClient and a working copy path to the History interface.
type GitHistory struct {
	Client GitClient
	Dir    string
}

var _ History = &GitHistory{} // Compile-time check

// RecentCommits implements the History interface.
func (h *GitHistory) RecentCommits(ctx context.Context, limit int) ([]schema.CommitInfo, error) {
	return h.Client.GetRecentCommits(ctx, h.Dir, limit)
}

func firstVerb(args []string) string {
	rest := stripGlobalArgs(args)
	if len(rest) == 0 {
		return ""
	}
	return rest[0]
}

// stripGlobalArgs drops -C and -c options so errors never echo credentials.
func stripGlobalArgs(args []string) []string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-C" || args[i] == "-c" {
			i++
			continue
		}
		return args[i:]
	}
	return nil
}
