// Package schema has the models and constants shared by all parts of repohealth.
package schema

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Capability is the kind of evidence a check needs from the analyzed repository.
type Capability uint8

// Capabilities a check can require. They combine as a bit set.
const (
	TreeCapability    Capability = 1 << iota // working tree contents
	HistoryCapability                        // commit history
	RemoteCapability                         // hosting platform metadata
)

// Has reports whether every capability in want is present in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// String returns a short name for the capability set.
func (c Capability) String() string {
	var names []string
	if c.Has(TreeCapability) {
		names = append(names, "tree")
	}
	if c.Has(HistoryCapability) {
		names = append(names, "history")
	}
	if c.Has(RemoteCapability) {
		names = append(names, "remote")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// MarshalText renders the capability set by name in JSON output.
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (c *Capability) UnmarshalText(text []byte) error {
	var out Capability
	s := string(text)
	if s == "none" || s == "" {
		*c = 0
		return nil
	}
	for _, name := range strings.Split(s, "+") {
		switch name {
		case "tree":
			out |= TreeCapability
		case "history":
			out |= HistoryCapability
		case "remote":
			out |= RemoteCapability
		default:
			return fmt.Errorf("unknown capability %q", name)
		}
	}
	*c = out
	return nil
}

// Repository is one entry of the population supplied by the registrar.
type Repository struct {
	ID         string         `json:"id"`          // Stable identifier, <project>/<name>
	Project    string         `json:"project"`     // Owning project name
	Name       string         `json:"name"`        // Repository name within the project
	URL        string         `json:"url"`         // Primary clone URL
	Role       RepositoryRole `json:"role"`        // Primary or secondary
	CheckSets  []CheckSet     `json:"check_sets"`  // Check sets that apply to it
	ReportOnly bool           `json:"report_only"` // Stored but never archived as snapshots
	Digest     string         `json:"digest"`      // Digest of the project entry it came from
}

// EffectiveCheckSets returns the configured check sets, or the defaults for the role.
func (r Repository) EffectiveCheckSets() []CheckSet {
	if len(r.CheckSets) > 0 {
		return r.CheckSets
	}
	if r.Role == SecondaryRole {
		return []CheckSet{CodeLiteCheckSet}
	}
	return []CheckSet{CodeCheckSet, CommunityCheckSet}
}

// HasCheckSet reports whether the repository is evaluated with the given check set.
func (r Repository) HasCheckSet(cs CheckSet) bool {
	return slices.Contains(r.EffectiveCheckSets(), cs)
}

// CheckDefinition describes a single check in the registry.
type CheckDefinition struct {
	ID          string     `json:"id"`
	Category    Category   `json:"category"`
	Weight      uint       `json:"weight"`
	Requires    Capability `json:"requires"`
	CheckSets   []CheckSet `json:"check_sets"`
	Exemptable  bool       `json:"exemptable"`
	Description string     `json:"description"`
}

// CommitInfo is a single commit from the repository history.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

// ReleaseInfo describes a published release on the hosting platform.
type ReleaseInfo struct {
	Tag         string    `json:"tag"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []string  `json:"assets"`
}

// RemoteMetadata is the subset of hosting platform metadata the checks look at.
type RemoteMetadata struct {
	Description    string        `json:"description"`
	Homepage       string        `json:"homepage"`
	Topics         []string      `json:"topics"`
	DefaultBranch  string        `json:"default_branch"`
	Archived       bool          `json:"archived"`
	HasDiscussions bool          `json:"has_discussions"`
	Releases       []ReleaseInfo `json:"releases"` // Newest first, drafts and prereleases excluded
}

// LatestRelease returns the newest release, if any.
func (m *RemoteMetadata) LatestRelease() (ReleaseInfo, bool) {
	if m == nil || len(m.Releases) == 0 {
		return ReleaseInfo{}, false
	}
	return m.Releases[0], true
}
