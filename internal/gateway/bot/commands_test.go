package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xausdorf/weighted-poll/internal/domain"
	"github.com/Xausdorf/weighted-poll/internal/usecase"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCommands() (*Commands, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	store := usecase.NewPollStore(usecase.DefaultMaxPolls, usecase.Dependencies{Clock: clock})
	return NewCommands(store), clock
}

func handle(t *testing.T, c *Commands, caller domain.Principal, message string) string {
	t.Helper()
	reply, ok := c.Handle(context.Background(), caller, message)
	require.True(t, ok, message)
	return reply
}

const createLunch = `/poll_create lunch "where to eat" 2026-10-19T13:00:00Z "pizza" "sushi"`

func TestNotACommand(t *testing.T) {
	c, _ := newTestCommands()

	for _, msg := range []string{"", "hello there", "/poll_start question"} {
		_, ok := c.Handle(context.Background(), "alice", msg)
		assert.False(t, ok, msg)
	}
}

func TestCreateCommand(t *testing.T) {
	c, _ := newTestCommands()

	reply := handle(t, c, "owner", `/poll_create lunch "where to eat" 2026-10-19T13:00:00Z`)
	assert.Equal(t, "Too few arguments. May be you didn't write the options?", reply)

	reply = handle(t, c, "owner", createLunch)
	assert.Equal(t, "Poll succesfully created!\nName: lunch\nCloses at: 2026-10-19T13:00:00Z\n0. pizza\n1. sushi", reply)

	reply = handle(t, c, "owner", createLunch)
	assert.Equal(t, "Failed to create poll: "+domain.ErrPollInUse.Error(), reply)

	reply = handle(t, c, "owner", `/poll_create dinner "later" tomorrow "pasta"`)
	assert.Equal(t, "Failed to create poll: "+domain.ErrInvalidDate.Error(), reply)

	reply = handle(t, c, "owner", `/poll_create dinner "later" 2026-10-19T11:00:00Z "pasta"`)
	assert.Equal(t, "Failed to create poll: "+domain.ErrPollClosingTimeMustFuture.Error(), reply)
}

func TestShowAndListCommands(t *testing.T) {
	c, _ := newTestCommands()

	assert.Equal(t, "There are no polls yet", handle(t, c, "alice", "/poll_list"))
	assert.Equal(t, "There must be 1 argument: poll name", handle(t, c, "alice", "/poll_show"))

	handle(t, c, "owner", createLunch)
	assert.Equal(t, "Registered as Alice with contribution 1.00", handle(t, c, "alice", "/poll_register lunch Alice"))

	reply := handle(t, c, "owner", "/poll_show lunch")
	assert.Contains(t, reply, "lunch: where to eat")
	assert.Contains(t, reply, "Voter Alice: 1.00")

	reply = handle(t, c, "alice", "/poll_show lunch")
	assert.Contains(t, reply, "1. sushi")
	assert.NotContains(t, reply, "Voter Alice")

	reply = handle(t, c, "alice", "/poll_list")
	assert.Contains(t, reply, "lunch: where to eat")

	reply = handle(t, c, "alice", "/poll_show dinner")
	assert.Equal(t, "Failed to show poll: "+domain.ErrPollNotExist.Error(), reply)
}

func TestVotingCommands(t *testing.T) {
	c, clock := newTestCommands()
	handle(t, c, "owner", createLunch)

	assert.Equal(t, "There must be 2 arguments: poll name and voter name", handle(t, c, "alice", "/poll_register lunch"))
	handle(t, c, "alice", "/poll_register lunch Alice")
	handle(t, c, "bob", "/poll_register lunch Bob")
	assert.Equal(t, "Failed to register: "+domain.ErrVoterInUse.Error(), handle(t, c, "alice", "/poll_register lunch Alice"))

	for _, value := range []string{"lots", "NaN", "Inf", "-Inf", "1e400"} {
		assert.Equal(t, "Contribution must be a number", handle(t, c, "owner", "/poll_contribution lunch Bob "+value), value)
	}
	assert.Equal(t, "Failed to change contribution: "+domain.ErrCallerNotPollOwner.Error(),
		handle(t, c, "alice", "/poll_contribution lunch Bob 2.5"))
	assert.Equal(t, "Contribution of Bob is now 2.50", handle(t, c, "owner", "/poll_contribution lunch Bob 2.5"))

	assert.Equal(t, "There must be 3 arguments: poll name, voter name and option", handle(t, c, "alice", "/poll_vote lunch sushi"))
	assert.Equal(t, "Failed to vote: "+domain.ErrVoterNotAuthorized.Error(), handle(t, c, "bob", "/poll_vote lunch Alice sushi"))
	assert.Equal(t, "Failed to vote: "+domain.ErrOptionNotExist.Error(), handle(t, c, "alice", "/poll_vote lunch Alice tacos"))
	assert.Equal(t, "Vote successfully registered", handle(t, c, "alice", "/poll_vote lunch Alice sushi"))
	assert.Equal(t, "Vote successfully registered", handle(t, c, "bob", "/poll_vote lunch Bob sushi"))

	assert.Equal(t, "Failed to obtain poll results: "+domain.ErrVotingNotClosed.Error(), handle(t, c, "owner", "/poll_results lunch"))

	clock.Advance(time.Hour)

	assert.Equal(t, "Failed to vote: "+domain.ErrVotingIsOver.Error(), handle(t, c, "alice", "/poll_vote lunch Alice pizza"))
	assert.Equal(t, "Failed to obtain poll results: "+domain.ErrOnlyVoterAndPollOwnerCanViewResults.Error(),
		handle(t, c, "stranger", "/poll_results lunch"))
	assert.Equal(t, "lunch\npizza: 0.00\nsushi: 3.50", handle(t, c, "bob", "/poll_results lunch"))
}

func TestCleanupCommand(t *testing.T) {
	c, clock := newTestCommands()
	handle(t, c, "owner", createLunch)

	assert.Equal(t, "There must be 1 argument: grace period in seconds", handle(t, c, "anyone", "/poll_cleanup"))
	assert.Equal(t, "Grace period must be an integer: seconds", handle(t, c, "anyone", "/poll_cleanup soon"))
	assert.Equal(t, "No expired polls", handle(t, c, "anyone", "/poll_cleanup 0"))

	clock.Advance(2 * time.Hour)

	assert.Equal(t, "No expired polls", handle(t, c, "anyone", "/poll_cleanup 7200"))
	assert.Equal(t, "Removed polls: lunch", handle(t, c, "anyone", "/poll_cleanup 60"))
	assert.Equal(t, "There are no polls yet", handle(t, c, "anyone", "/poll_list"))
}

func TestHelpCommand(t *testing.T) {
	c, _ := newTestCommands()
	assert.Contains(t, handle(t, c, "anyone", "/help"), "/poll_create")
}

func TestFailureHidesUnknownErrors(t *testing.T) {
	assert.Equal(t, "Failed to vote. Try again", failure("Failed to vote", assert.AnError))
}
