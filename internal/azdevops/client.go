package azdevops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/J03Fr0st/ado-pr-review/internal/apierr"
	"github.com/J03Fr0st/ado-pr-review/internal/cache"
	"github.com/J03Fr0st/ado-pr-review/internal/config"
	"github.com/J03Fr0st/ado-pr-review/internal/domain"
	"github.com/J03Fr0st/ado-pr-review/internal/ratelimit"
	"github.com/J03Fr0st/ado-pr-review/internal/retry"
)

const (
	// Cache TTLs per operation. Lists refresh within five minutes; the
	// credential check is rechecked quickly so a revoked token surfaces.
	listTTL     = 5 * time.Minute
	detailTTL   = time.Minute
	threadsTTL  = time.Minute
	validateTTL = 30 * time.Second

	pageSize = 100
)

// Cache keys. Mutations invalidate by these prefixes.
const (
	keyPRList   = "prs/list"
	keyValidate = "auth/validate"
)

func keyPRDetail(id int) string  { return fmt.Sprintf("prs/%d", id) }
func keyPRThreads(id int) string { return fmt.Sprintf("prs/%d/threads", id) }

// Client is the public facade over the Azure DevOps pull request API.
// Reads follow cache -> retry -> rate limiter -> transport; mutations skip
// the cache, never retry on ambiguous outcomes, and invalidate the cache
// entries they could have made stale before returning.
type Client struct {
	transport Transport
	cache     *cache.Store
	limiter   *ratelimit.Limiter
	retry     *retry.Policy
	project   string
	logger    *slog.Logger
}

// New creates a client for the given credentials. The credentials are
// validated structurally here; ValidateCredentials checks them against the
// service.
func New(creds config.Credentials, logger *slog.Logger) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: newHTTPTransport(creds, logger),
		cache:     cache.New(),
		limiter:   ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow),
		retry:     retry.New(0, 0, 0, logger),
		project:   creds.Project,
		logger:    logger,
	}, nil
}

// NewWithTransport wires a custom transport; used by tests and by hosts
// that bring their own HTTP stack.
func NewWithTransport(t Transport, project string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: t,
		cache:     cache.New(),
		limiter:   ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow),
		retry:     retry.New(0, 0, 0, logger),
		project:   project,
		logger:    logger,
	}
}

func (c *Client) gitPath(suffix string) string {
	return "/" + url.PathEscape(c.project) + "/_apis/git/" + suffix
}

// send runs one transport exchange behind the rate limiter and feeds any
// remote retry-after hint back into it. It is the shared inner step for
// both the read and mutate paths.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if !c.limiter.Admit() {
		return &apierr.RateLimitError{
			RetryAfter: c.limiter.Delay(),
			Message:    "local request quota exhausted",
		}
	}
	err := c.transport.Do(ctx, method, path, query, body, out)
	if hint := apierr.RetryAfter(err); hint > 0 {
		// The service's signal is authoritative over local accounting.
		c.limiter.SetRetryAfter(hint)
	}
	return err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.retry.Execute(ctx, func() error {
		return c.send(ctx, http.MethodGet, path, query, nil, out)
	})
}

func (c *Client) mutate(ctx context.Context, method, path string, body, out any) error {
	return c.retry.ExecuteMutating(ctx, func() error {
		return c.send(ctx, method, path, nil, body, out)
	})
}

// failFast rejects a mutation locally when cached credential state already
// proves it cannot succeed, avoiding a round trip for a forbidden call.
// With nothing cached the request proceeds and the service decides.
func (c *Client) failFast() error {
	state, ok := cache.Peek[connectionState](c.cache, keyValidate)
	if ok && !state.Authorized {
		return &apierr.AuthenticationError{
			StatusCode: http.StatusUnauthorized,
			Message:    "credentials failed their last validation",
		}
	}
	return nil
}

func requirePullRequestID(id int) error {
	if id <= 0 {
		return &apierr.TerminalError{Message: "pull request id must be positive"}
	}
	return nil
}

// connectionState is the cached result of ValidateCredentials.
type connectionState struct {
	User       domain.Identity
	Authorized bool
}

// ListPullRequests returns all active pull requests in the project,
// following $skip pagination until the set is fully materialized. The
// result is cached; callers needing fresh data after a mutation get it
// automatically because mutations invalidate the list key.
func (c *Client) ListPullRequests(ctx context.Context) ([]domain.PullRequestSummary, error) {
	return cache.GetOrFetch(ctx, c.cache, keyPRList, listTTL, func(ctx context.Context) ([]domain.PullRequestSummary, error) {
		var all []domain.PullRequestSummary
		skip := 0
		for {
			query := url.Values{}
			query.Set("searchCriteria.status", string(domain.StatusActive))
			query.Set("$top", strconv.Itoa(pageSize))
			query.Set("$skip", strconv.Itoa(skip))

			var page listResponse[wirePullRequest]
			if err := c.get(ctx, c.gitPath("pullrequests"), query, &page); err != nil {
				return nil, err
			}
			for _, w := range page.Value {
				all = append(all, toPullRequest(w))
			}
			if len(page.Value) < pageSize {
				return all, nil
			}
			skip += len(page.Value)
		}
	})
}

// RefreshPullRequests drops the cached list and fetches a fresh one,
// repopulating the cache so interactive reads stay warm. The background
// sync loop polls through this so remote changes surface at the sync
// cadence instead of the list TTL.
func (c *Client) RefreshPullRequests(ctx context.Context) ([]domain.PullRequestSummary, error) {
	c.cache.Invalidate(keyPRList)
	return c.ListPullRequests(ctx)
}

// GetPullRequest returns one pull request by ID.
func (c *Client) GetPullRequest(ctx context.Context, id int) (domain.PullRequestSummary, error) {
	if err := requirePullRequestID(id); err != nil {
		return domain.PullRequestSummary{}, err
	}
	return cache.GetOrFetch(ctx, c.cache, keyPRDetail(id), detailTTL, func(ctx context.Context) (domain.PullRequestSummary, error) {
		var w wirePullRequest
		if err := c.get(ctx, c.gitPath("pullrequests/"+strconv.Itoa(id)), nil, &w); err != nil {
			return domain.PullRequestSummary{}, err
		}
		return toPullRequest(w), nil
	})
}

// ListThreads returns the comment threads on a pull request. Deleted
// threads are filtered out.
func (c *Client) ListThreads(ctx context.Context, prID int) ([]domain.CommentThread, error) {
	if err := requirePullRequestID(prID); err != nil {
		return nil, err
	}
	return cache.GetOrFetch(ctx, c.cache, keyPRThreads(prID), threadsTTL, func(ctx context.Context) ([]domain.CommentThread, error) {
		var resp listResponse[wireThread]
		if err := c.get(ctx, c.gitPath(fmt.Sprintf("pullrequests/%d/threads", prID)), nil, &resp); err != nil {
			return nil, err
		}
		threads := make([]domain.CommentThread, 0, len(resp.Value))
		for _, w := range resp.Value {
			if w.IsDeleted {
				continue
			}
			threads = append(threads, toThread(w))
		}
		return threads, nil
	})
}

// PostComment starts a new comment thread on a pull request.
func (c *Client) PostComment(ctx context.Context, prID int, text string) (domain.CommentThread, error) {
	if err := requirePullRequestID(prID); err != nil {
		return domain.CommentThread{}, err
	}
	if text == "" {
		return domain.CommentThread{}, &apierr.TerminalError{Message: "comment text must not be empty"}
	}
	if err := c.failFast(); err != nil {
		return domain.CommentThread{}, err
	}

	body := newThreadRequest{
		Status:   "active",
		Comments: []newCommentRequest{{Content: text, CommentType: "text"}},
	}
	var w wireThread
	err := c.mutate(ctx, http.MethodPost, c.gitPath(fmt.Sprintf("pullrequests/%d/threads", prID)), body, &w)
	if err != nil {
		return domain.CommentThread{}, err
	}
	c.invalidatePullRequest(prID)
	return toThread(w), nil
}

// ReplyToComment appends a comment to an existing thread.
func (c *Client) ReplyToComment(ctx context.Context, prID, threadID int, text string) (domain.Comment, error) {
	if err := requirePullRequestID(prID); err != nil {
		return domain.Comment{}, err
	}
	if threadID <= 0 {
		return domain.Comment{}, &apierr.TerminalError{Message: "thread id must be positive"}
	}
	if text == "" {
		return domain.Comment{}, &apierr.TerminalError{Message: "comment text must not be empty"}
	}
	if err := c.failFast(); err != nil {
		return domain.Comment{}, err
	}

	body := newCommentRequest{Content: text, CommentType: "text"}
	var w wireComment
	path := c.gitPath(fmt.Sprintf("pullrequests/%d/threads/%d/comments", prID, threadID))
	if err := c.mutate(ctx, http.MethodPost, path, body, &w); err != nil {
		return domain.Comment{}, err
	}
	c.invalidatePullRequest(prID)
	return toComment(w), nil
}

// Vote casts the authenticated user's vote on a pull request. The reviewer
// identity comes from ValidateCredentials, which is cached.
func (c *Client) Vote(ctx context.Context, prID int, vote domain.Vote) error {
	if err := requirePullRequestID(prID); err != nil {
		return err
	}
	if err := c.failFast(); err != nil {
		return err
	}
	user, err := c.ValidateCredentials(ctx)
	if err != nil {
		return err
	}

	path := c.gitPath(fmt.Sprintf("pullrequests/%d/reviewers/%s", prID, url.PathEscape(user.ID)))
	if err := c.mutate(ctx, http.MethodPut, path, voteRequest{Vote: int(vote)}, nil); err != nil {
		return err
	}
	c.invalidatePullRequest(prID)
	return nil
}

// Approve votes +10 on the pull request.
func (c *Client) Approve(ctx context.Context, prID int) error {
	return c.Vote(ctx, prID, domain.VoteApproved)
}

// Reject votes -10 on the pull request.
func (c *Client) Reject(ctx context.Context, prID int) error {
	return c.Vote(ctx, prID, domain.VoteRejected)
}

// Abandon moves the pull request to the abandoned state.
func (c *Client) Abandon(ctx context.Context, prID int) error {
	if err := requirePullRequestID(prID); err != nil {
		return err
	}
	if err := c.failFast(); err != nil {
		return err
	}

	path := c.gitPath("pullrequests/" + strconv.Itoa(prID))
	body := updateStatusRequest{Status: string(domain.StatusAbandoned)}
	if err := c.mutate(ctx, http.MethodPatch, path, body, nil); err != nil {
		return err
	}
	c.invalidatePullRequest(prID)
	return nil
}

// ValidateCredentials checks the configured token against the service and
// returns the authenticated identity. The result is cached briefly; an
// authentication failure is also cached so mutations can fail fast.
func (c *Client) ValidateCredentials(ctx context.Context) (domain.Identity, error) {
	state, err := cache.GetOrFetch(ctx, c.cache, keyValidate, validateTTL, func(ctx context.Context) (connectionState, error) {
		ctx, cancel := context.WithTimeout(ctx, ValidateTimeout)
		defer cancel()

		var data wireConnectionData
		err := c.get(ctx, "/_apis/connectionData", nil, &data)
		var authErr *apierr.AuthenticationError
		if errors.As(err, &authErr) {
			// Remember the rejection so mutations skip the round trip.
			return connectionState{Authorized: false}, nil
		}
		if err != nil {
			return connectionState{}, err
		}
		return connectionState{User: toIdentity(data.AuthenticatedUser), Authorized: true}, nil
	})
	if err != nil {
		return domain.Identity{}, err
	}
	if !state.Authorized {
		return domain.Identity{}, &apierr.AuthenticationError{
			StatusCode: http.StatusUnauthorized,
			Message:    "credentials rejected by the service",
		}
	}
	return state.User, nil
}

// invalidatePullRequest drops every cache entry a mutation on prID could
// have made stale: the list plus the PR's detail and thread entries.
func (c *Client) invalidatePullRequest(prID int) {
	c.cache.Invalidate(keyPRList)
	c.cache.Invalidate(keyPRDetail(prID))
	c.cache.Invalidate(keyPRThreads(prID))
	c.logger.Debug("invalidated cache after mutation", "pull_request", prID)
}
