package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
	"github.com/shurcooL/githubv4"
)

// repoNode carries every descriptor field, including the release total,
// so GraphQL discovery needs no follow-up requests.
type repoNode struct {
	NameWithOwner string
	Name          string
	Owner         struct {
		Login string
	}
	Description      string
	StargazerCount   int
	ForkCount        int
	DiskUsage        int
	PrimaryLanguage  struct{ Name string }
	CreatedAt        githubv4.DateTime
	UpdatedAt        githubv4.DateTime
	HasIssuesEnabled bool
	HasWikiEnabled   bool
	DefaultBranchRef struct{ Name string }
	URL              string
	Releases         struct {
		TotalCount int
	}
}

// searchRepositoriesQuery is the cursor-paginated repository search.
type searchRepositoriesQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Nodes []struct {
			Repository repoNode `graphql:"... on Repository"`
		}
	} `graphql:"search(query: $query, type: REPOSITORY, first: $first, after: $cursor)"`
}

func (g *GitHubGateway) discoverGraphQL(ctx context.Context, query string, limit int) ([]schema.RepositoryDescriptor, error) {
	variables := map[string]interface{}{
		"query":  githubv4.String(query + " sort:stars-desc"),
		"first":  githubv4.Int(min(limit, searchPageSize)),
		"cursor": (*githubv4.String)(nil),
	}

	var repos []schema.RepositoryDescriptor
	for len(repos) < limit {
		var q searchRepositoriesQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL repository search: %w", err)
		}
		now := g.now()
		for _, node := range q.Search.Nodes {
			if len(repos) == limit {
				break
			}
			if node.Repository.NameWithOwner == "" {
				continue
			}
			repo := descriptorFromGraphQL(node.Repository, now)
			g.storeReleaseCount(repo.FullName, repo.ReleasesCount)
			repos = append(repos, repo)
		}
		if !q.Search.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Search.PageInfo.EndCursor)
	}
	return repos, nil
}

func descriptorFromGraphQL(node repoNode, now time.Time) schema.RepositoryDescriptor {
	created := node.CreatedAt.Time
	return schema.RepositoryDescriptor{
		FullName:      node.NameWithOwner,
		Name:          node.Name,
		Owner:         node.Owner.Login,
		Description:   node.Description,
		Stars:         node.StargazerCount,
		Forks:         node.ForkCount,
		SizeKB:        node.DiskUsage,
		Language:      node.PrimaryLanguage.Name,
		CreatedAt:     created,
		UpdatedAt:     node.UpdatedAt.Time,
		AgeYears:      contract.YearsBetween(created, now),
		ReleasesCount: node.Releases.TotalCount,
		HasIssues:     node.HasIssuesEnabled,
		HasWiki:       node.HasWikiEnabled,
		DefaultBranch: node.DefaultBranchRef.Name,
		CloneURL:      node.URL + ".git",
	}
}
