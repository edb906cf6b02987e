// Package domain holds the projections of Azure DevOps resources that the
// rest of the codebase works with. Values are rebuilt fresh on every fetch
// and never mutated in place.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Vote is the signed reviewer vote value used by Azure DevOps.
type Vote int

const (
	VoteApproved                Vote = 10
	VoteApprovedWithSuggestions Vote = 5
	VoteNone                    Vote = 0
	VoteWaitingForAuthor        Vote = -5
	VoteRejected                Vote = -10
)

// String returns the human-readable vote label shown in listings.
func (v Vote) String() string {
	switch v {
	case VoteApproved:
		return "approved"
	case VoteApprovedWithSuggestions:
		return "approved with suggestions"
	case VoteWaitingForAuthor:
		return "waiting for author"
	case VoteRejected:
		return "rejected"
	default:
		return "no vote"
	}
}

// Status is the lifecycle state of a pull request.
type Status string

const (
	StatusActive    Status = "active"
	StatusAbandoned Status = "abandoned"
	StatusCompleted Status = "completed"
)

// Identity is a user reference as reported by the service.
type Identity struct {
	ID          string
	DisplayName string
	UniqueName  string
}

// Reviewer is a pull request reviewer together with their current vote.
type Reviewer struct {
	Identity
	Vote       Vote
	IsRequired bool
}

// PullRequestSummary is the immutable projection of a pull request used by
// listings and the sync loop.
type PullRequestSummary struct {
	ID          int
	Title       string
	Description string
	Status      Status
	IsDraft     bool
	CreatedBy   Identity
	CreatedAt   time.Time
	SourceRef   string
	TargetRef   string
	Reviewers   []Reviewer
	URL         string
}

// Fingerprint digests the fields the sync loop diffs on: status plus the
// reviewer vote set. Reviewers are sorted by ID so ordering differences in
// the API response do not register as changes.
func (pr PullRequestSummary) Fingerprint() string {
	votes := make([]string, 0, len(pr.Reviewers))
	for _, r := range pr.Reviewers {
		votes = append(votes, fmt.Sprintf("%s=%d", r.ID, r.Vote))
	}
	sort.Strings(votes)
	return string(pr.Status) + "|" + strings.Join(votes, ",")
}

// Comment is a single comment inside a thread.
type Comment struct {
	ID          int
	Author      Identity
	Content     string
	PublishedAt time.Time
}

// CommentThread is a conversation attached to a pull request.
type CommentThread struct {
	ID          int
	Status      string
	PublishedAt time.Time
	Comments    []Comment
}

// ChangeDelta describes what changed between two sync snapshots, expressed
// as pull request IDs.
type ChangeDelta struct {
	Added   []int
	Removed []int
	Updated []int
}

// Empty reports whether the delta carries no changes at all.
func (d ChangeDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}
