package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
	"golang.org/x/sync/errgroup"
)

// discoverREST pages through the search API and then fills in release
// counts with a bounded number of concurrent lookups.
func (g *GitHubGateway) discoverREST(ctx context.Context, query string, limit int) ([]schema.RepositoryDescriptor, error) {
	opts := &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: searchPageSize},
	}

	var repos []schema.RepositoryDescriptor
	for len(repos) < limit {
		result, resp, err := g.restClient.Search.Repositories(ctx, query, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search repositories with REST API: %w", err)
		}
		now := g.now()
		for _, repo := range result.Repositories {
			if len(repos) == limit {
				break
			}
			repos = append(repos, descriptorFromREST(repo, now))
		}
		if resp.NextPage == 0 || len(result.Repositories) == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if err := g.fillReleaseCounts(ctx, repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// fillReleaseCounts sets ReleasesCount on every descriptor in place.
// A failed lookup leaves the count at zero.
func (g *GitHubGateway) fillReleaseCounts(ctx context.Context, repos []schema.RepositoryDescriptor) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(g.workers, 1))

	for i := range repos {
		repo := &repos[i]
		if count, ok := g.cachedReleaseCount(repo.FullName); ok {
			repo.ReleasesCount = count
			continue
		}
		eg.Go(func() error {
			count, err := g.countReleases(egCtx, repo.Owner, repo.Name)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				contract.LogWarn(fmt.Sprintf("Could not count releases for %s", repo.FullName), err)
				return nil
			}
			repo.ReleasesCount = count
			g.storeReleaseCount(repo.FullName, count)
			return nil
		})
	}
	return eg.Wait()
}

// countReleases asks for one release per page so the last page number is the total.
func (g *GitHubGateway) countReleases(ctx context.Context, owner, name string) (int, error) {
	releases, resp, err := g.restClient.Repositories.ListReleases(ctx, owner, name, &github.ListOptions{PerPage: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to list releases: %w", err)
	}
	if resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return len(releases), nil
}

func descriptorFromREST(repo *github.Repository, now time.Time) schema.RepositoryDescriptor {
	owner := repo.GetOwner().GetLogin()
	name := repo.GetName()
	if owner == "" {
		owner, name, _ = strings.Cut(repo.GetFullName(), "/")
	}
	created := repo.GetCreatedAt().Time
	return schema.RepositoryDescriptor{
		FullName:      repo.GetFullName(),
		Name:          name,
		Owner:         owner,
		Description:   repo.GetDescription(),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		SizeKB:        repo.GetSize(),
		Language:      repo.GetLanguage(),
		CreatedAt:     created,
		UpdatedAt:     repo.GetUpdatedAt().Time,
		AgeYears:      contract.YearsBetween(created, now),
		HasIssues:     repo.GetHasIssues(),
		HasWiki:       repo.GetHasWiki(),
		DefaultBranch: repo.GetDefaultBranch(),
		CloneURL:      repo.GetCloneURL(),
	}
}
