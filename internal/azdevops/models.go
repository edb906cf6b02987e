package azdevops

import (
	"time"

	"github.com/J03Fr0st/ado-pr-review/internal/domain"
)

// Wire shapes of the Azure DevOps REST API (api-version 7.1). Lists arrive
// in a count/value envelope; errors in a message/typeKey envelope.

type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type wireError struct {
	Message   string `json:"message"`
	TypeKey   string `json:"typeKey"`
	ErrorCode int    `json:"errorCode"`
}

type wireIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

type wireReviewer struct {
	wireIdentity
	Vote       int  `json:"vote"`
	IsRequired bool `json:"isRequired"`
}

type wirePullRequest struct {
	PullRequestID int            `json:"pullRequestId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        string         `json:"status"`
	IsDraft       bool           `json:"isDraft"`
	CreatedBy     wireIdentity   `json:"createdBy"`
	CreationDate  time.Time      `json:"creationDate"`
	SourceRefName string         `json:"sourceRefName"`
	TargetRefName string         `json:"targetRefName"`
	Reviewers     []wireReviewer `json:"reviewers"`
	URL           string         `json:"url"`
}

type wireComment struct {
	ID            int          `json:"id"`
	Author        wireIdentity `json:"author"`
	Content       string       `json:"content"`
	CommentType   string       `json:"commentType"`
	PublishedDate time.Time    `json:"publishedDate"`
}

type wireThread struct {
	ID            int           `json:"id"`
	Status        string        `json:"status"`
	PublishedDate time.Time     `json:"publishedDate"`
	IsDeleted     bool          `json:"isDeleted"`
	Comments      []wireComment `json:"comments"`
}

// Request bodies.

type newThreadRequest struct {
	Status   string              `json:"status"`
	Comments []newCommentRequest `json:"comments"`
}

type newCommentRequest struct {
	Content     string `json:"content"`
	CommentType string `json:"commentType"`
}

type voteRequest struct {
	Vote int `json:"vote"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type wireConnectionData struct {
	AuthenticatedUser wireIdentity `json:"authenticatedUser"`
}

func toIdentity(w wireIdentity) domain.Identity {
	return domain.Identity{ID: w.ID, DisplayName: w.DisplayName, UniqueName: w.UniqueName}
}

func toPullRequest(w wirePullRequest) domain.PullRequestSummary {
	reviewers := make([]domain.Reviewer, 0, len(w.Reviewers))
	for _, r := range w.Reviewers {
		reviewers = append(reviewers, domain.Reviewer{
			Identity:   toIdentity(r.wireIdentity),
			Vote:       domain.Vote(r.Vote),
			IsRequired: r.IsRequired,
		})
	}
	return domain.PullRequestSummary{
		ID:          w.PullRequestID,
		Title:       w.Title,
		Description: w.Description,
		Status:      domain.Status(w.Status),
		IsDraft:     w.IsDraft,
		CreatedBy:   toIdentity(w.CreatedBy),
		CreatedAt:   w.CreationDate,
		SourceRef:   w.SourceRefName,
		TargetRef:   w.TargetRefName,
		Reviewers:   reviewers,
		URL:         w.URL,
	}
}

func toComment(w wireComment) domain.Comment {
	return domain.Comment{
		ID:          w.ID,
		Author:      toIdentity(w.Author),
		Content:     w.Content,
		PublishedAt: w.PublishedDate,
	}
}

func toThread(w wireThread) domain.CommentThread {
	comments := make([]domain.Comment, 0, len(w.Comments))
	for _, c := range w.Comments {
		comments = append(comments, toComment(c))
	}
	return domain.CommentThread{
		ID:          w.ID,
		Status:      w.Status,
		PublishedAt: w.PublishedDate,
		Comments:    comments,
	}
}
