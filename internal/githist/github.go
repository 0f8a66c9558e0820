package githist

import (
	"context"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"
)

// AuthorResolver best-effort resolves a commit author's GitHub identity.
// get_code_authors calls it when a GitHub remote is configured; a failed
// or unconfigured lookup never fails the operation, it just leaves
// GitHubLogin/GitHubAvatar empty.
type AuthorResolver struct {
	client  *github.Client
	limiter *rate.Limiter
}

// NewAuthorResolver builds a resolver around an already-authenticated
// go-github client (oauth2-wrapped http.Client supplied by the caller).
// Lookups are rate-limited well under GitHub's secondary limits so a
// large author list cannot trip abuse detection.
func NewAuthorResolver(client *github.Client) *AuthorResolver {
	return &AuthorResolver{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Resolve annotates authors in place with GitHub login/avatar info by
// searching commits authored by each email within owner/repo. Lookups
// that error or find nothing are left unresolved.
func (r *AuthorResolver) Resolve(ctx context.Context, owner, repo string, authors []Author) []Author {
	if r == nil || r.client == nil {
		return authors
	}
	for i, a := range authors {
		if err := r.limiter.Wait(ctx); err != nil {
			return authors
		}
		commits, _, err := r.client.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
			Author:      a.Email,
			ListOptions: github.ListOptions{PerPage: 1},
		})
		if err != nil || len(commits) == 0 || commits[0].Author == nil {
			continue
		}
		authors[i].GitHubLogin = commits[0].Author.GetLogin()
		authors[i].GitHubAvatar = commits[0].Author.GetAvatarURL()
	}
	return authors
}
