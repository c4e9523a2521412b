// Package license detects which license a repository tree carries.
package license

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/google/licensecheck"
)

// MinCoverage is the share of a candidate file that must match a known
// license text for the license to be accepted.
const MinCoverage = 75.0

// candidateDirs are the directories searched for license files, root first.
var candidateDirs = []string{".", ".github", "docs", "legal"}

// candidatePatterns are matched case-insensitively against file names.
var candidatePatterns = []string{"license*", "licence*", "copying*"}

// approved lists SPDX ids accepted by the license_approved check.
var approved = map[string]struct{}{
	"Apache-2.0":           {},
	"BSD-2-Clause":         {},
	"BSD-2-Clause-FreeBSD": {},
	"BSD-3-Clause":         {},
	"ISC":                  {},
	"MIT":                  {},
	"MPL-2.0":              {},
	"PostgreSQL":           {},
	"Python-2.0":           {},
	"X11":                  {},
	"Zlib":                 {},
}

var (
	scannerOnce sync.Once
	scanner     *licensecheck.Scanner
	scannerErr  error
)

// Detection is the license found in a tree.
type Detection struct {
	ID       string  // SPDX identifier
	Path     string  // File the license was found in
	Coverage float64 // Percent of the file covered by the match
}

// Load initializes the license corpus. It is safe to call many times;
// only the first call does any work.
func Load() error {
	scannerOnce.Do(func() {
		scanner, scannerErr = licensecheck.NewScanner(licensecheck.BuiltinLicenses())
	})
	return scannerErr
}

// Approved reports whether an SPDX id is on the approved list.
func Approved(id string) bool {
	_, ok := approved[id]
	return ok
}

// Candidates returns the license file candidates of a tree in sorted order.
func Candidates(tree fs.FS) ([]string, error) {
	var found []string
	for _, dir := range candidateDirs {
		entries, err := fs.ReadDir(tree, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !matchesCandidate(e.Name()) {
				continue
			}
			found = append(found, path.Join(dir, e.Name()))
		}
	}
	slices.Sort(found)
	return found, nil
}

// Detect classifies every candidate and returns the best match above
// MinCoverage, or nil when no candidate qualifies.
func Detect(tree fs.FS) (*Detection, error) {
	if err := Load(); err != nil {
		return nil, fmt.Errorf("loading license corpus: %w", err)
	}

	candidates, err := Candidates(tree)
	if err != nil {
		return nil, err
	}

	var best *Detection
	for _, name := range candidates {
		data, err := fs.ReadFile(tree, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		d := classify(name, data)
		if d == nil {
			continue
		}
		if best == nil || d.Coverage > best.Coverage {
			best = d
		}
	}
	return best, nil
}

// classify scans one file. The match covering the most text decides the id.
func classify(name string, data []byte) *Detection {
	cov := scanner.Scan(data)
	if cov.Percent < MinCoverage || len(cov.Match) == 0 {
		return nil
	}
	top := cov.Match[0]
	for _, m := range cov.Match[1:] {
		if m.End-m.Start > top.End-top.Start {
			top = m
		}
	}
	return &Detection{ID: top.ID, Path: name, Coverage: cov.Percent}
}

func matchesCandidate(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range candidatePatterns {
		if ok, _ := path.Match(p, lower); ok {
			return true
		}
	}
	return false
}
