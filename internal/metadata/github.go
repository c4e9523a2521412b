// Package metadata reads hosting platform metadata for the remote checks.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/huangsam/repohealth/core/fetch"
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/internal/logger"
	"github.com/huangsam/repohealth/schema"
	"golang.org/x/time/rate"
)

// cacheVersion invalidates cached entries when RemoteMetadata changes shape.
const cacheVersion = 1

// maxReleases bounds the release page read per repository.
const maxReleases = 20

// GitHubProvider implements contract.MetadataProvider on the GitHub REST API.
type GitHubProvider struct {
	client  *github.Client
	limiter *rate.Limiter
	cache   contract.CacheStore
	ttl     time.Duration
	log     *logger.Logger
	now     func() time.Time
}

var _ contract.MetadataProvider = &GitHubProvider{} // Compile-time check

// Option configures a GitHubProvider.
type Option func(*GitHubProvider)

// WithCache stores responses in cs for ttl.
func WithCache(cs contract.CacheStore, ttl time.Duration) Option {
	return func(p *GitHubProvider) {
		p.cache = cs
		p.ttl = ttl
	}
}

// WithRateLimit caps requests per second with a burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(p *GitHubProvider) {
		p.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithBaseURL points the client at another API root, such as GitHub Enterprise.
func WithBaseURL(baseURL string) Option {
	return func(p *GitHubProvider) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		if u, err := url.Parse(baseURL); err == nil {
			p.client.BaseURL = u
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(p *GitHubProvider) {
		p.log = log
	}
}

// NewGitHubProvider creates a provider. An empty token uses anonymous access.
func NewGitHubProvider(token string, httpClient *http.Client, opts ...Option) *GitHubProvider {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	p := &GitHubProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Metadata returns the metadata of a GitHub repository. Repositories hosted
// elsewhere, or unknown to GitHub, have none.
func (p *GitHubProvider) Metadata(ctx context.Context, repo schema.Repository) (*schema.RemoteMetadata, error) {
	owner, name, ok := ParseGitHubURL(repo.URL)
	if !ok {
		return nil, nil
	}
	key := "github:" + strings.ToLower(owner+"/"+name)

	if md, ok := p.cached(key); ok {
		return md, nil
	}

	md, err := p.load(ctx, owner, name)
	if err != nil {
		return nil, p.wrap(repo.ID, err)
	}
	if md == nil {
		return nil, nil
	}
	p.store(key, md)
	return md, nil
}

func (p *GitHubProvider) load(ctx context.Context, owner, name string) (*schema.RemoteMetadata, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	r, _, err := p.client.Repositories.Get(ctx, owner, name)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	md := &schema.RemoteMetadata{
		Description:    r.GetDescription(),
		Homepage:       r.GetHomepage(),
		Topics:         r.Topics,
		DefaultBranch:  r.GetDefaultBranch(),
		Archived:       r.GetArchived(),
		HasDiscussions: r.GetHasDiscussions(),
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	releases, _, err := p.client.Repositories.ListReleases(ctx, owner, name, &github.ListOptions{PerPage: maxReleases})
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	for _, rel := range releases {
		if rel.GetDraft() || rel.GetPrerelease() {
			continue
		}
		info := schema.ReleaseInfo{
			Tag:         rel.GetTagName(),
			PublishedAt: rel.GetPublishedAt().Time,
		}
		for _, a := range rel.Assets {
			info.Assets = append(info.Assets, a.GetName())
		}
		md.Releases = append(md.Releases, info)
	}
	return md, nil
}

func (p *GitHubProvider) cached(key string) (*schema.RemoteMetadata, bool) {
	if p.cache == nil || p.ttl <= 0 {
		return nil, false
	}
	value, version, ts, err := p.cache.Get(key)
	if err != nil || version != cacheVersion {
		return nil, false
	}
	if p.now().Sub(time.Unix(ts, 0)) > p.ttl {
		return nil, false
	}
	var md schema.RemoteMetadata
	if err := json.Unmarshal(value, &md); err != nil {
		return nil, false
	}
	return &md, true
}

func (p *GitHubProvider) store(key string, md *schema.RemoteMetadata) {
	if p.cache == nil || p.ttl <= 0 {
		return
	}
	value, err := json.Marshal(md)
	if err != nil {
		return
	}
	if err := p.cache.Set(key, value, cacheVersion, p.now().Unix()); err != nil {
		p.log.Warn("metadata cache write failed", "key", key, "error", err)
	}
}

// wrap converts API failures into repository scoped fetch errors.
func (p *GitHubProvider) wrap(repoID string, err error) error {
	kind := fetch.KindProtocol
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		respErr  *github.ErrorResponse
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = fetch.KindTimeout
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		kind = fetch.KindNetwork
	case errors.As(err, &respErr) && respErr.Response != nil:
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			kind = fetch.KindAuth
		case code >= 500:
			kind = fetch.KindNetwork
		}
	default:
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			kind = fetch.KindNetwork
		}
	}
	return &fetch.FetchError{RepositoryID: repoID, Kind: kind, Err: fmt.Errorf("github metadata: %w", err)}
}

func isNotFound(err error) bool {
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound
}

// ParseGitHubURL extracts owner and repository name from a github.com URL.
// It accepts https, ssh and scp-like forms.
func ParseGitHubURL(raw string) (owner, name string, ok bool) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "git@github.com:"):
		s = strings.TrimPrefix(s, "git@github.com:")
	default:
		u, err := url.Parse(s)
		if err != nil || !strings.EqualFold(u.Hostname(), "github.com") {
			return "", "", false
		}
		s = u.Path
	}
	s = strings.Trim(s, "/")
	s = strings.TrimSuffix(s, ".git")
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
