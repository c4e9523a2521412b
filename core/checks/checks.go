// Package checks holds the catalogue of repository checks and the registry
// that orders them.
package checks

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/huangsam/repohealth/schema"
)

// Version identifies the catalogue. It changes whenever a check is added,
// removed or changes meaning, so stored scores can be told apart.
const Version = "2026.1"

// Result is what a check reports for one repository.
type Result struct {
	Status schema.OutcomeStatus
	Reason string
	Detail string
}

// Passed returns a passing result with an optional detail.
func Passed(detail string) Result {
	return Result{Status: schema.PassedStatus, Detail: detail}
}

// Failed returns a failing result with the reason it failed.
func Failed(reason string) Result {
	return Result{Status: schema.FailedStatus, Reason: reason}
}

// NotApplicable returns a result for checks that have nothing to evaluate.
func NotApplicable(reason string) Result {
	return Result{Status: schema.NotApplicableStatus, Reason: reason}
}

// Check is a single criterion evaluated against a repository.
// Evaluate must only read from the input. Returned errors are recorded
// as an error outcome for this check alone.
type Check interface {
	Definition() schema.CheckDefinition
	Evaluate(ctx context.Context, in *Input) (Result, error)
}

// Registry is the ordered, read-only table of checks.
type Registry struct {
	checks  []Check
	defs    []schema.CheckDefinition
	index   map[string]int
	version string
}

// NewRegistry builds a registry from checks in the given order.
func NewRegistry(version string, list ...Check) (*Registry, error) {
	r := &Registry{
		checks:  make([]Check, 0, len(list)),
		defs:    make([]schema.CheckDefinition, 0, len(list)),
		index:   make(map[string]int, len(list)),
		version: version,
	}
	for _, c := range list {
		def := c.Definition()
		if def.ID == "" {
			return nil, fmt.Errorf("check with empty id")
		}
		if _, dup := r.index[def.ID]; dup {
			return nil, fmt.Errorf("duplicate check id %q", def.ID)
		}
		if def.Weight == 0 {
			return nil, fmt.Errorf("check %q has zero weight", def.ID)
		}
		if _, ok := schema.ValidCategories[def.Category]; !ok {
			return nil, fmt.Errorf("check %q has invalid category %q", def.ID, def.Category)
		}
		if len(def.CheckSets) == 0 {
			return nil, fmt.Errorf("check %q belongs to no check set", def.ID)
		}
		r.index[def.ID] = len(r.checks)
		r.checks = append(r.checks, c)
		r.defs = append(r.defs, def)
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry. It is built once and shared.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(Version, catalogue()...)
		if err != nil {
			panic(fmt.Sprintf("invalid built-in check catalogue: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Len returns the number of checks.
func (r *Registry) Len() int { return len(r.checks) }

// Version returns the catalogue version.
func (r *Registry) Version() string { return r.version }

// Checks returns the checks in registry order.
func (r *Registry) Checks() []Check { return slices.Clone(r.checks) }

// Definitions returns the check definitions in registry order.
func (r *Registry) Definitions() []schema.CheckDefinition { return slices.Clone(r.defs) }

// Lookup finds a check by id.
func (r *Registry) Lookup(id string) (Check, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.checks[i], true
}

// ChecksetVersion identifies the catalogue version plus the check sets used
// for a repository. A change in either invalidates score comparisons.
func (r *Registry) ChecksetVersion(repo schema.Repository) string {
	sets := make([]string, 0, len(repo.EffectiveCheckSets()))
	for _, cs := range repo.EffectiveCheckSets() {
		sets = append(sets, string(cs))
	}
	slices.Sort(sets)
	sets = slices.Compact(sets)
	return r.version + ":" + strings.Join(sets, ",")
}

// DefaultWeights returns the weight of every check.
func (r *Registry) DefaultWeights() map[string]uint {
	w := make(map[string]uint, len(r.defs))
	for _, d := range r.defs {
		w[d.ID] = d.Weight
	}
	return w
}

// WeightTable merges check weight overrides into the defaults.
// Overrides for unknown checks are rejected.
func (r *Registry) WeightTable(checkOverrides map[string]uint, categories map[schema.Category]uint, policy schema.ErrorPolicy) (schema.WeightTable, error) {
	w := r.DefaultWeights()
	for id, v := range checkOverrides {
		if _, ok := r.index[id]; !ok {
			return schema.WeightTable{}, fmt.Errorf("weight override for unknown check %q", id)
		}
		if v == 0 {
			return schema.WeightTable{}, fmt.Errorf("weight override for check %q must be greater than 0", id)
		}
		w[id] = v
	}
	cats := maps.Clone(schema.DefaultCategoryWeights)
	maps.Copy(cats, categories)
	if policy == "" {
		policy = schema.ErrorAsFailed
	}
	return schema.WeightTable{Checks: w, Categories: cats, ErrorPolicy: policy}, nil
}

// Applicable reports whether a check runs for a repository given the
// capabilities the input provides.
func Applicable(def schema.CheckDefinition, have schema.Capability, repo schema.Repository) bool {
	if !have.Has(def.Requires) {
		return false
	}
	for _, cs := range def.CheckSets {
		if repo.HasCheckSet(cs) {
			return true
		}
	}
	return false
}
