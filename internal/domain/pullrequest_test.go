package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pr(status Status, reviewers ...Reviewer) PullRequestSummary {
	return PullRequestSummary{ID: 1, Status: status, Reviewers: reviewers}
}

func reviewer(id string, vote Vote) Reviewer {
	return Reviewer{Identity: Identity{ID: id}, Vote: vote}
}

func TestFingerprint_StableAcrossReviewerOrder(t *testing.T) {
	a := pr(StatusActive, reviewer("u1", VoteApproved), reviewer("u2", VoteNone))
	b := pr(StatusActive, reviewer("u2", VoteNone), reviewer("u1", VoteApproved))

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_ChangesOnVote(t *testing.T) {
	before := pr(StatusActive, reviewer("u1", VoteNone))
	after := pr(StatusActive, reviewer("u1", VoteApproved))

	assert.NotEqual(t, before.Fingerprint(), after.Fingerprint())
}

func TestFingerprint_ChangesOnStatus(t *testing.T) {
	active := pr(StatusActive)
	abandoned := pr(StatusAbandoned)

	assert.NotEqual(t, active.Fingerprint(), abandoned.Fingerprint())
}

func TestFingerprint_IgnoresTitle(t *testing.T) {
	a := pr(StatusActive, reviewer("u1", VoteApproved))
	b := a
	b.Title = "renamed"

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestChangeDelta_Empty(t *testing.T) {
	assert.True(t, ChangeDelta{}.Empty())
	assert.False(t, ChangeDelta{Added: []int{1}}.Empty())
	assert.False(t, ChangeDelta{Updated: []int{1}}.Empty())
	assert.False(t, ChangeDelta{Removed: []int{1}}.Empty())
}

func TestVoteString(t *testing.T) {
	assert.Equal(t, "approved", VoteApproved.String())
	assert.Equal(t, "rejected", VoteRejected.String())
	assert.Equal(t, "no vote", VoteNone.String())
}
