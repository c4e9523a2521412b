package checks

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExemptionFiles are the tree-root files that may declare exemptions,
// in order of precedence.
var ExemptionFiles = []string{".repohealth.yml", ".repohealth.yaml", ".clomonitor.yml"}

// Exemption opts a repository out of one check.
type Exemption struct {
	Check  string `yaml:"check"`
	Reason string `yaml:"reason"`
}

// Exemptions maps a check id to the reason it is exempted.
type Exemptions map[string]string

// Reason returns the exemption reason for a check, if it has a usable one.
func (e Exemptions) Reason(checkID string) (string, bool) {
	r, ok := e[checkID]
	return r, ok && r != ""
}

type exemptionsFile struct {
	Exemptions []Exemption `yaml:"exemptions"`
}

// loadExemptions reads the first exemptions file present at the tree root.
// Entries without a reason are ignored.
func loadExemptions(tree fs.FS) (Exemptions, error) {
	for _, name := range ExemptionFiles {
		data, err := fs.ReadFile(tree, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return parseExemptions(name, data)
	}
	return Exemptions{}, nil
}

func parseExemptions(name string, data []byte) (Exemptions, error) {
	var f exemptionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	out := make(Exemptions, len(f.Exemptions))
	for _, e := range f.Exemptions {
		id := strings.TrimSpace(e.Check)
		reason := strings.TrimSpace(e.Reason)
		if id == "" || reason == "" {
			continue
		}
		out[id] = reason
	}
	return out, nil
}
