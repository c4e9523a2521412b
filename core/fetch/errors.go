package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangsam/repohealth/internal/contract"
)

// Kind classifies why a fetch failed.
type Kind string

// Fetch failure kinds.
const (
	KindNetwork  Kind = "network"
	KindAuth     Kind = "auth"
	KindNotFound Kind = "not_found"
	KindProtocol Kind = "protocol"
	KindTimeout  Kind = "timeout"
)

// FetchError is a repository scoped fetch failure.
type FetchError struct {
	RepositoryID string
	Kind         Kind
	Err          error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.RepositoryID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
// Every kind is retryable; a missing repository may be a transient rename.
func (e *FetchError) Retryable() bool {
	return true
}

// NewError wraps err as a FetchError, classifying it from the git output.
func NewError(repoID string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{RepositoryID: repoID, Kind: classify(err), Err: err}
}

var kindPatterns = []struct {
	kind     Kind
	patterns []string
}{
	{KindAuth, []string{"authentication failed", "could not read username", "permission denied", "403", "invalid credentials"}},
	{KindNotFound, []string{"repository not found", "not found", "does not exist", "404"}},
	{KindNetwork, []string{"could not resolve host", "connection refused", "connection timed out", "connection reset", "network is unreachable", "unable to access", "early eof", "tls"}},
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var gitErr *contract.GitCommandError
	if !errors.As(err, &gitErr) {
		return KindProtocol
	}
	stderr := strings.ToLower(gitErr.Stderr)
	for _, kp := range kindPatterns {
		for _, p := range kp.patterns {
			if strings.Contains(stderr, p) {
				return kp.kind
			}
		}
	}
	return KindProtocol
}
