package checks

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/huangsam/repohealth/schema"
	"gopkg.in/yaml.v3"
)

// evidenceDirs are the directories searched for community files, root first.
var evidenceDirs = []string{".", ".github", "docs", "doc"}

// findFile returns the first file, in sorted order per directory, whose base
// name matches one of the patterns case-insensitively. Directories are
// searched in order.
func findFile(tree fs.FS, dirs []string, patterns ...string) (string, bool, error) {
	for _, dir := range dirs {
		entries, err := fs.ReadDir(tree, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", false, fmt.Errorf("listing %s: %w", dir, err)
		}
		// fs.ReadDir returns entries sorted by file name.
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if matchAny(e.Name(), patterns) {
				return path.Join(dir, e.Name()), true, nil
			}
		}
	}
	return "", false, nil
}

// findDir reports whether a directory matching one of the patterns exists.
func findDir(tree fs.FS, dirs []string, patterns ...string) (string, bool, error) {
	for _, dir := range dirs {
		entries, err := fs.ReadDir(tree, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", false, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() && matchAny(e.Name(), patterns) {
				return path.Join(dir, e.Name()), true, nil
			}
		}
	}
	return "", false, nil
}

func matchAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if ok, _ := path.Match(p, lower); ok {
			return true
		}
	}
	return false
}

// fileCheck passes when a file matching the patterns exists in evidenceDirs.
func fileCheck(tree fs.FS, what string, patterns ...string) (Result, error) {
	p, ok, err := findFile(tree, evidenceDirs, patterns...)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Failed(what + " not found"), nil
	}
	return Passed(p), nil
}

// readmeText returns the contents of the first README found.
func readmeText(tree fs.FS) (string, error) {
	p, ok, err := findFile(tree, evidenceDirs, "readme", "readme.*")
	if err != nil || !ok {
		return "", err
	}
	data, err := fs.ReadFile(tree, p)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p, err)
	}
	return string(data), nil
}

// readmeCheck passes when the README matches re. A missing README fails.
func readmeCheck(in *Input, what string, re *regexp.Regexp) (Result, error) {
	text, err := in.Readme()
	if err != nil {
		return Result{}, err
	}
	if text == "" {
		return Failed("README not found"), nil
	}
	if m := re.FindString(text); m != "" {
		return Passed(strings.TrimSpace(m)), nil
	}
	return Failed(what + " not found in README"), nil
}

// fileOrReadmeCheck passes on a matching file first, then on a README match.
func fileOrReadmeCheck(in *Input, what string, re *regexp.Regexp, patterns ...string) (Result, error) {
	res, err := fileCheck(in.Tree, what, patterns...)
	if err != nil || res.Status == schema.PassedStatus {
		return res, err
	}
	return readmeCheck(in, what, re)
}

// workflow is the subset of a GitHub Actions workflow the checks inspect.
type workflow struct {
	Path        string                 `yaml:"-"`
	On          yaml.Node              `yaml:"on"`
	Permissions yaml.Node              `yaml:"permissions"`
	Jobs        map[string]workflowJob `yaml:"jobs"`
}

type workflowJob struct {
	Permissions yaml.Node      `yaml:"permissions"`
	Steps       []workflowStep `yaml:"steps"`
}

type workflowStep struct {
	Uses string         `yaml:"uses"`
	Run  string         `yaml:"run"`
	With map[string]any `yaml:"with"`
}

// triggers returns the event names a workflow runs on.
func (w *workflow) triggers() []string {
	var out []string
	switch w.On.Kind {
	case yaml.ScalarNode:
		out = append(out, w.On.Value)
	case yaml.SequenceNode:
		for _, n := range w.On.Content {
			out = append(out, n.Value)
		}
	case yaml.MappingNode:
		for i := 0; i < len(w.On.Content); i += 2 {
			out = append(out, w.On.Content[i].Value)
		}
	}
	return out
}

// sortedJobs returns job names in a stable order.
func (w *workflow) sortedJobs() []string {
	names := make([]string, 0, len(w.Jobs))
	for name := range w.Jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// with returns a step input as text.
func (s workflowStep) with(key string) string {
	v, ok := s.With[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// declared reports whether a permissions node was present in the document.
func declared(n yaml.Node) bool {
	return n.Kind != 0
}

// workflowsDir is where GitHub Actions workflows live.
const workflowsDir = ".github/workflows"

// loadWorkflows parses every workflow file in sorted order.
func loadWorkflows(tree fs.FS) ([]*workflow, error) {
	entries, err := fs.ReadDir(tree, workflowsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", workflowsDir, err)
	}
	var out []*workflow
	for _, e := range entries {
		if e.IsDir() || !matchAny(e.Name(), []string{"*.yml", "*.yaml"}) {
			continue
		}
		p := path.Join(workflowsDir, e.Name())
		data, err := fs.ReadFile(tree, p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		w := &workflow{Path: p}
		if err := yaml.Unmarshal(data, w); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
		out = append(out, w)
	}
	return out, nil
}
