package checks

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"github.com/huangsam/repohealth/core/license"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
)

// Input is everything a check may look at for one repository.
// Tree, History and Metadata are optional; checks that need a missing
// one are not applicable. Derived evidence is computed once per input
// and shared by all checks, so an Input must not be reused across commits.
type Input struct {
	Repository schema.Repository
	Tree       fs.FS
	History    contract.History
	Metadata   *schema.RemoteMetadata
	Commit     string
	Now        time.Time

	ctx context.Context // set by Bind; governs shared loads

	licenseOnce sync.Once
	license     *license.Detection
	licenseErr  error

	exemptOnce sync.Once
	exempt     Exemptions
	exemptErr  error

	readmeOnce sync.Once
	readme     string
	readmeErr  error

	historyOnce sync.Once
	history     []schema.CommitInfo
	historyErr  error
}

// historyDepth is how many recent commits the history checks look at.
const historyDepth = 100

// Bind sets the context that shared evidence, such as commit history, is
// loaded under. It must be called before any check runs.
func (in *Input) Bind(ctx context.Context) {
	in.ctx = ctx
}

// Capabilities returns the evidence available in the input.
func (in *Input) Capabilities() schema.Capability {
	var c schema.Capability
	if in.Tree != nil {
		c |= schema.TreeCapability
	}
	if in.History != nil {
		c |= schema.HistoryCapability
	}
	if in.Metadata != nil {
		c |= schema.RemoteCapability
	}
	return c
}

// License returns the license detected in the tree, nil when none qualifies.
func (in *Input) License() (*license.Detection, error) {
	in.licenseOnce.Do(func() {
		in.license, in.licenseErr = license.Detect(in.Tree)
	})
	return in.license, in.licenseErr
}

// Exemptions returns the exemptions declared in the tree.
func (in *Input) Exemptions() (Exemptions, error) {
	in.exemptOnce.Do(func() {
		in.exempt, in.exemptErr = loadExemptions(in.Tree)
	})
	return in.exempt, in.exemptErr
}

// Readme returns the text of the README file, empty when there is none.
func (in *Input) Readme() (string, error) {
	in.readmeOnce.Do(func() {
		in.readme, in.readmeErr = readmeText(in.Tree)
	})
	return in.readme, in.readmeErr
}

// RecentCommits returns up to historyDepth commits, newest first.
func (in *Input) RecentCommits(ctx context.Context) ([]schema.CommitInfo, error) {
	in.historyOnce.Do(func() {
		if in.ctx != nil {
			ctx = in.ctx
		}
		in.history, in.historyErr = in.History.RecentCommits(ctx, historyDepth)
	})
	return in.history, in.historyErr
}
