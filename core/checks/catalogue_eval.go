package checks

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"
)

// skipDirs are never descended into when walking a tree.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	"testdata":     {},
}

// findBinaries returns the first committed binary artifact in walk order.
func findBinaries(ctx context.Context, tree fs.FS) (string, error) {
	var found string
	err := fs.WalkDir(tree, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && p != "." {
				return fs.SkipDir
			}
			return nil
		}
		if matchAny(d.Name(), binaryExtensions) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking tree: %w", err)
	}
	return found, nil
}

func evalDCO(ctx context.Context, in *Input) (Result, error) {
	if p, ok, err := findFile(in.Tree, []string{".github"}, "dco.yml", "dco.yaml"); err != nil {
		return Result{}, err
	} else if ok {
		return Passed(p), nil
	}

	commits, err := in.RecentCommits(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading history: %w", err)
	}
	if len(commits) == 0 {
		return NotApplicable("no commits"), nil
	}
	if len(commits) > dcoCommitWindow {
		commits = commits[:dcoCommitWindow]
	}
	signed := 0
	for _, c := range commits {
		if signedOffRe.MatchString(c.Message) {
			signed++
		}
	}
	detail := fmt.Sprintf("%d/%d commits signed off", signed, len(commits))
	if 2*signed >= len(commits) {
		return Passed(detail), nil
	}
	return Failed(detail), nil
}

func evalMaintained(ctx context.Context, in *Input) (Result, error) {
	if in.Metadata != nil && in.Metadata.Archived {
		return Failed("repository is archived"), nil
	}
	commits, err := in.RecentCommits(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading history: %w", err)
	}
	if len(commits) == 0 {
		return Failed("no commits"), nil
	}
	latest := commits[0].Date
	for _, c := range commits[1:] {
		if c.Date.After(latest) {
			latest = c.Date
		}
	}
	if in.Now.Sub(latest) > maintainedWindow {
		return Failed("no commits in the last 90 days"), nil
	}
	return Passed(latest.UTC().Format(time.DateOnly)), nil
}

func evalSignedReleases(_ context.Context, in *Input) (Result, error) {
	releases := in.Metadata.Releases
	if len(releases) == 0 {
		return Failed("no releases"), nil
	}
	if len(releases) > signedReleaseDepth {
		releases = releases[:signedReleaseDepth]
	}
	for _, rel := range releases {
		for _, asset := range rel.Assets {
			lower := strings.ToLower(asset)
			for _, ext := range signatureExtensions {
				if strings.HasSuffix(lower, ext) {
					return Passed(rel.Tag + "/" + asset), nil
				}
			}
		}
	}
	return Failed("no signature assets in recent releases"), nil
}

func evalTokenPermissions(_ context.Context, in *Input) (Result, error) {
	wfs, err := loadWorkflows(in.Tree)
	if err != nil {
		return Result{}, err
	}
	if len(wfs) == 0 {
		return NotApplicable("no workflows"), nil
	}
	for _, w := range wfs {
		if declared(w.Permissions) {
			continue
		}
		for _, name := range w.sortedJobs() {
			if !declared(w.Jobs[name].Permissions) {
				return Failed(fmt.Sprintf("%s: job %s has no token permissions", w.Path, name)), nil
			}
		}
	}
	return Passed(""), nil
}

// untrustedRefs are expressions naming code from a pull request head.
var untrustedRefs = []string{
	"github.event.pull_request.head",
	"github.head_ref",
	"github.event.workflow_run.head",
}

// privilegedTriggers run with write tokens and secrets even for forks.
var privilegedTriggers = map[string]struct{}{
	"pull_request_target": {},
	"workflow_run":        {},
}

func evalDangerousWorkflow(_ context.Context, in *Input) (Result, error) {
	wfs, err := loadWorkflows(in.Tree)
	if err != nil {
		return Result{}, err
	}
	if len(wfs) == 0 {
		return NotApplicable("no workflows"), nil
	}
	for _, w := range wfs {
		if !hasPrivilegedTrigger(w) {
			continue
		}
		for _, name := range w.sortedJobs() {
			for _, step := range w.Jobs[name].Steps {
				if !isCheckout(step.Uses) {
					continue
				}
				ref := step.with("ref")
				for _, u := range untrustedRefs {
					if strings.Contains(ref, u) {
						return Failed(fmt.Sprintf("%s: job %s checks out %s", w.Path, name, ref)), nil
					}
				}
			}
		}
	}
	return Passed(""), nil
}

func hasPrivilegedTrigger(w *workflow) bool {
	for _, t := range w.triggers() {
		if _, ok := privilegedTriggers[t]; ok {
			return true
		}
	}
	return false
}

func isCheckout(uses string) bool {
	name, _, _ := strings.Cut(uses, "@")
	return path.Clean(name) == "actions/checkout"
}
