package domain

import "time"

type EventKind string

const (
	EventPollCreated         EventKind = "poll.created"
	EventVoterRegistered     EventKind = "poll.voter_registered"
	EventContributionChanged EventKind = "poll.contribution_changed"
	EventVoteCast            EventKind = "poll.vote_cast"
	EventPollRemoved         EventKind = "poll.removed"
)

// Event - notification about a committed change of the poll store.
type Event struct {
	ID         string
	Kind       EventKind
	Poll       string
	Caller     Principal
	OccurredAt time.Time

	// Voter is set for voter related events.
	Voter *Voter
	// Vote is set for EventVoteCast.
	Vote *VotingDetail
}
