// Package registrar loads the repository population from a foundation data file.
package registrar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/logger"
	"github.com/huangsam/repohealth/schema"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds loading one data file.
const DefaultTimeout = 5 * time.Minute

// maxDataFileSize bounds the bytes read from a data file.
const maxDataFileSize = 32 << 20

// ErrUnknownRepository is returned when an id is not in the data file.
var ErrUnknownRepository = errors.New("unknown repository")

// Project is one project entry of the data file.
type Project struct {
	Name         string            `yaml:"name" json:"name"`
	DisplayName  string            `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description  string            `yaml:"description" json:"description"`
	Category     string            `yaml:"category" json:"category"`
	HomeURL      string            `yaml:"home_url,omitempty" json:"home_url,omitempty"`
	LogoURL      string            `yaml:"logo_url,omitempty" json:"logo_url,omitempty"`
	DevstatsURL  string            `yaml:"devstats_url,omitempty" json:"devstats_url,omitempty"`
	AcceptedAt   string            `yaml:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	Maturity     string            `yaml:"maturity" json:"maturity"`
	Repositories []RepositoryEntry `yaml:"repositories" json:"repositories"`

	Digest string `yaml:"-" json:"-"`
}

// RepositoryEntry is one repository of a project.
type RepositoryEntry struct {
	Name       string   `yaml:"name" json:"name"`
	URL        string   `yaml:"url" json:"url"`
	CheckSets  []string `yaml:"check_sets" json:"check_sets"`
	Role       string   `yaml:"role,omitempty" json:"role,omitempty"`
	ReportOnly bool     `yaml:"report_only,omitempty" json:"report_only,omitempty"`
}

// computeDigest hashes the project entry. Equal entries always produce equal digests.
func (p *Project) computeDigest() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Parse decodes a data file and sets the digest of every project.
func Parse(data []byte) ([]Project, error) {
	var projects []Project
	if err := yaml.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("invalid data file: %w", err)
	}
	for i := range projects {
		digest, err := projects[i].computeDigest()
		if err != nil {
			return nil, fmt.Errorf("failed to digest project %s: %w", projects[i].Name, err)
		}
		projects[i].Digest = digest
	}
	return projects, nil
}

// Flatten turns projects into repositories sorted by id.
func Flatten(projects []Project) ([]schema.Repository, error) {
	var repos []schema.Repository
	seen := make(map[string]struct{})
	for _, p := range projects {
		if p.Name == "" {
			return nil, errors.New("project without a name")
		}
		for _, entry := range p.Repositories {
			repo, err := toRepository(p, entry)
			if err != nil {
				return nil, fmt.Errorf("project %s: %w", p.Name, err)
			}
			if _, dup := seen[repo.ID]; dup {
				return nil, fmt.Errorf("duplicate repository id %s", repo.ID)
			}
			seen[repo.ID] = struct{}{}
			repos = append(repos, repo)
		}
	}
	slices.SortFunc(repos, func(a, b schema.Repository) int {
		return strings.Compare(a.ID, b.ID)
	})
	return repos, nil
}

func toRepository(p Project, entry RepositoryEntry) (schema.Repository, error) {
	if entry.Name == "" {
		return schema.Repository{}, errors.New("repository without a name")
	}
	if entry.URL == "" {
		return schema.Repository{}, fmt.Errorf("repository %s has no url", entry.Name)
	}

	role := schema.PrimaryRole
	switch schema.RepositoryRole(entry.Role) {
	case "", schema.PrimaryRole:
	case schema.SecondaryRole:
		role = schema.SecondaryRole
	default:
		return schema.Repository{}, fmt.Errorf("repository %s has invalid role %q", entry.Name, entry.Role)
	}

	checkSets := make([]schema.CheckSet, 0, len(entry.CheckSets))
	for _, cs := range entry.CheckSets {
		set := schema.CheckSet(strings.ToLower(strings.TrimSpace(cs)))
		if _, ok := schema.ValidCheckSets[set]; !ok {
			return schema.Repository{}, fmt.Errorf("repository %s has invalid check set %q", entry.Name, cs)
		}
		checkSets = append(checkSets, set)
	}

	return schema.Repository{
		ID:         p.Name + "/" + entry.Name,
		Project:    p.Name,
		Name:       entry.Name,
		URL:        entry.URL,
		Role:       role,
		CheckSets:  checkSets,
		ReportOnly: entry.ReportOnly,
		Digest:     p.Digest,
	}, nil
}

// Changes compares project digests against a previous load. Removed projects
// are only reported when the new data file has at least one project.
func Changes(previous map[string]string, projects []Project) (changed, removed []string) {
	current := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		current[p.Name] = struct{}{}
		if previous[p.Name] != p.Digest {
			changed = append(changed, p.Name)
		}
	}
	if len(projects) > 0 {
		for name := range previous {
			if _, ok := current[name]; !ok {
				removed = append(removed, name)
			}
		}
	}
	slices.Sort(changed)
	slices.Sort(removed)
	return changed, removed
}

// Registrar reads the data file on every call, so edits are picked up by the next sweep.
type Registrar struct {
	source  string
	client  *http.Client
	timeout time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	digests map[string]string
}

var _ contract.Registrar = &Registrar{} // Compile-time check

// Option configures a Registrar.
type Option func(*Registrar)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Registrar) { r.client = c }
}

// WithTimeout bounds a single load.
func WithTimeout(d time.Duration) Option {
	return func(r *Registrar) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Registrar) { r.log = log }
}

// New creates a registrar for a local path or an http(s) URL.
func New(source string, opts ...Option) (*Registrar, error) {
	if source == "" {
		return nil, errors.New("registry source is required")
	}
	r := &Registrar{
		source:  source,
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Repositories loads the data file and returns every repository sorted by id.
func (r *Registrar) Repositories(ctx context.Context) ([]schema.Repository, error) {
	projects, err := r.Projects(ctx)
	if err != nil {
		return nil, err
	}
	return Flatten(projects)
}

// Repository returns a single repository by id.
func (r *Registrar) Repository(ctx context.Context, id string) (schema.Repository, error) {
	repos, err := r.Repositories(ctx)
	if err != nil {
		return schema.Repository{}, err
	}
	i, found := slices.BinarySearchFunc(repos, id, func(repo schema.Repository, target string) int {
		return strings.Compare(repo.ID, target)
	})
	if !found {
		return schema.Repository{}, fmt.Errorf("%w: %s", ErrUnknownRepository, id)
	}
	return repos[i], nil
}

// Projects loads and parses the data file, logging projects that changed since the last load.
func (r *Registrar) Projects(ctx context.Context) ([]Project, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("error processing data file %s: %w", logger.RedactURL(r.source), err)
	}
	projects, err := Parse(data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed, removed := Changes(r.digests, projects)
	r.digests = make(map[string]string, len(projects))
	for _, p := range projects {
		r.digests[p.Name] = p.Digest
	}
	r.mu.Unlock()

	if len(changed) > 0 || len(removed) > 0 {
		r.log.Debug("registry changed", "changed", changed, "removed", removed)
	}
	return projects, nil
}

func (r *Registrar) read(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(r.source, "http://") && !strings.HasPrefix(r.source, "https://") {
		return os.ReadFile(r.source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code getting data file: %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDataFileSize))
}
