// Package gateway discovers candidate repositories through the GitHub API,
// hiding the REST and GraphQL clients behind contract.Discoverer.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// searchPageSize is the largest page GitHub search accepts.
const searchPageSize = 100

// releaseCacheVersion is bumped when the cached release payload changes shape.
const releaseCacheVersion = 1

// GitHubGateway is the concrete implementation of contract.Discoverer.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	api           schema.DiscoveryAPI
	workers       int
	releases      contract.CacheStore
	ttl           time.Duration
	now           func() time.Time
}

var _ contract.Discoverer = &GitHubGateway{} // Compile-time check

// NewHTTPClient returns an authenticated client that sleeps through
// secondary rate limits instead of failing.
func NewHTTPClient(token string) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}, nil
}

// NewGitHubGateway builds a gateway from cfg. The release cache may be nil.
func NewGitHubGateway(cfg *contract.Config, releases contract.CacheStore) (*GitHubGateway, error) {
	if err := cfg.RequireGitHubToken(); err != nil {
		return nil, err
	}
	httpClient, err := NewHTTPClient(cfg.GitHubToken)
	if err != nil {
		return nil, err
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		api:           cfg.DiscoveryAPI,
		workers:       cfg.DiscoveryWorkers,
		releases:      releases,
		ttl:           cfg.CacheTTL,
		now:           time.Now,
	}, nil
}

// Discover returns up to limit repositories matching query, ordered by stars descending.
func (g *GitHubGateway) Discover(ctx context.Context, query string, limit int) ([]schema.RepositoryDescriptor, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > contract.MaxDiscoveryLimit {
		limit = contract.MaxDiscoveryLimit
	}
	if g.api == schema.GraphQLDiscovery {
		return g.discoverGraphQL(ctx, query, limit)
	}
	return g.discoverREST(ctx, query, limit)
}

// cachedReleaseCount looks up a fresh release count for fullName.
func (g *GitHubGateway) cachedReleaseCount(fullName string) (int, bool) {
	if g.releases == nil {
		return 0, false
	}
	value, version, ts, err := g.releases.Get(releaseCacheKey(fullName))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			contract.LogWarn("Release cache lookup failed", err)
		}
		return 0, false
	}
	if version != releaseCacheVersion || g.now().Sub(time.Unix(ts, 0)) > g.ttl {
		return 0, false
	}
	count, err := strconv.Atoi(string(value))
	if err != nil {
		return 0, false
	}
	return count, true
}

// storeReleaseCount remembers a release count; failures only warn.
func (g *GitHubGateway) storeReleaseCount(fullName string, count int) {
	if g.releases == nil {
		return
	}
	value := []byte(strconv.Itoa(count))
	if err := g.releases.Set(releaseCacheKey(fullName), value, releaseCacheVersion, g.now().Unix()); err != nil {
		contract.LogWarn("Release cache write failed", err)
	}
}

func releaseCacheKey(fullName string) string {
	return "releases:" + fullName
}
