package bot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Xausdorf/weighted-poll/internal/domain"
	"github.com/Xausdorf/weighted-poll/internal/usecase"
)

const (
	pollCreateMinArgsCount   = 4
	pollRegisterArgsCount    = 2
	pollContributionArgCount = 3
	pollVoteArgsCount        = 3
)

type PollService interface {
	CreatePoll(ctx context.Context, caller domain.Principal, payload usecase.CreatePollPayload) (*domain.Poll, error)
	GetPollByName(ctx context.Context, caller domain.Principal, name string) (*domain.Poll, error)
	GetAllPolls(ctx context.Context, caller domain.Principal) []*domain.Poll
	RegisterVoterToPoll(ctx context.Context, caller domain.Principal, pollName, voterName string) (domain.Voter, error)
	ChangeVoterContribution(ctx context.Context, caller domain.Principal, pollName, voterName string, contribution float64) (domain.Voter, error)
	VoteToPoll(ctx context.Context, caller domain.Principal, pollName, voterName, option string) (domain.VotingDetail, error)
	GetVotingResult(ctx context.Context, caller domain.Principal, pollName string) ([]string, error)
	RemoveExpiredPolls(ctx context.Context, caller domain.Principal, graceSeconds int64) []*domain.Poll
}

// Commands turns chat messages into poll operations on behalf of their author.
type Commands struct {
	polls PollService
}

func NewCommands(polls PollService) *Commands {
	return &Commands{polls: polls}
}

// Handle returns the reply to message. ok is false when message is not a command.
func (c *Commands) Handle(ctx context.Context, caller domain.Principal, message string) (reply string, ok bool) {
	// CSV reading for splitting a string at spaces, except spaces inside quotation marks.
	r := csv.NewReader(strings.NewReader(message))
	r.Comma = ' '
	tokens, err := r.Read()
	if err != nil || len(tokens) == 0 {
		return "", false
	}

	args := tokens[1:]
	switch tokens[0] {
	case "/poll_create":
		return c.handleCreate(ctx, caller, args), true
	case "/poll_show":
		return c.handleShow(ctx, caller, args), true
	case "/poll_list":
		return c.handleList(ctx, caller), true
	case "/poll_register":
		return c.handleRegister(ctx, caller, args), true
	case "/poll_contribution":
		return c.handleContribution(ctx, caller, args), true
	case "/poll_vote":
		return c.handleVote(ctx, caller, args), true
	case "/poll_results":
		return c.handleResults(ctx, caller, args), true
	case "/poll_cleanup":
		return c.handleCleanup(ctx, caller, args), true
	case "/help":
		return helpMessage, true
	}
	return "", false
}

func (c *Commands) handleCreate(ctx context.Context, caller domain.Principal, args []string) string {
	// /poll_create [name] [description] [closing_time] "[option1]" "[option2]" ...
	if len(args) < pollCreateMinArgsCount {
		return "Too few arguments. May be you didn't write the options?"
	}

	poll, err := c.polls.CreatePoll(ctx, caller, usecase.CreatePollPayload{
		Name:        args[0],
		Description: args[1],
		ClosingTime: args[2],
		Options:     args[3:],
	})
	if err != nil {
		return failure("Failed to create poll", err)
	}

	var msgBuilder strings.Builder
	fmt.Fprintf(&msgBuilder, "Poll succesfully created!\nName: %s\nCloses at: %s", poll.Name, poll.ClosingTime.Format(time.RFC3339))
	for i, option := range poll.Options {
		fmt.Fprintf(&msgBuilder, "\n%d. %s", i, option)
	}
	return msgBuilder.String()
}

func (c *Commands) handleShow(ctx context.Context, caller domain.Principal, args []string) string {
	// /poll_show [name]
	if len(args) != 1 {
		return "There must be 1 argument: poll name"
	}

	poll, err := c.polls.GetPollByName(ctx, caller, args[0])
	if err != nil {
		return failure("Failed to show poll", err)
	}
	return formatPoll(poll)
}

func (c *Commands) handleList(ctx context.Context, caller domain.Principal) string {
	// /poll_list
	polls := c.polls.GetAllPolls(ctx, caller)
	if len(polls) == 0 {
		return "There are no polls yet"
	}

	formatted := make([]string, len(polls))
	for i, poll := range polls {
		formatted[i] = formatPoll(poll)
	}
	return strings.Join(formatted, "\n\n")
}

func (c *Commands) handleRegister(ctx context.Context, caller domain.Principal, args []string) string {
	// /poll_register [poll] [voter]
	if len(args) != pollRegisterArgsCount {
		return "There must be 2 arguments: poll name and voter name"
	}

	voter, err := c.polls.RegisterVoterToPoll(ctx, caller, args[0], args[1])
	if err != nil {
		return failure("Failed to register", err)
	}
	return fmt.Sprintf("Registered as %s with contribution %.2f", voter.Name, voter.Contribution)
}

func (c *Commands) handleContribution(ctx context.Context, caller domain.Principal, args []string) string {
	// /poll_contribution [poll] [voter] [value]
	if len(args) != pollContributionArgCount {
		return "There must be 3 arguments: poll name, voter name and contribution"
	}
	contribution, err := strconv.ParseFloat(args[2], 64)
	if err != nil || math.IsNaN(contribution) || math.IsInf(contribution, 0) {
		return "Contribution must be a number"
	}

	voter, err := c.polls.ChangeVoterContribution(ctx, caller, args[0], args[1], contribution)
	if err != nil {
		return failure("Failed to change contribution", err)
	}
	return fmt.Sprintf("Contribution of %s is now %.2f", voter.Name, voter.Contribution)
}

func (c *Commands) handleVote(ctx context.Context, caller domain.Principal, args []string) string {
	// /poll_vote [poll] [voter] [option]
	if len(args) != pollVoteArgsCount {
		return "There must be 3 arguments: poll name, voter name and option"
	}

	if _, err := c.polls.VoteToPoll(ctx, caller, args[0], args[1], args[2]); err != nil {
		return failure("Failed to vote", err)
	}
	return "Vote successfully registered"
}

func (c *Commands) handleResults(ctx context.Context, caller domain.Principal, args []string) string {
	// /poll_results [poll]
	if len(args) != 1 {
		return "There must be 1 argument: poll name"
	}

	results, err := c.polls.GetVotingResult(ctx, caller, args[0])
	if err != nil {
		return failure("Failed to obtain poll results", err)
	}
	return args[0] + "\n" + strings.Join(results, "\n")
}

func (c *Commands) handleCleanup(ctx context.Context, caller domain.Principal, args []string) string {
	// /poll_cleanup [grace_seconds]
	if len(args) != 1 {
		return "There must be 1 argument: grace period in seconds"
	}
	grace, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Grace period must be an integer: seconds"
	}

	removed := c.polls.RemoveExpiredPolls(ctx, caller, grace)
	if len(removed) == 0 {
		return "No expired polls"
	}
	names := make([]string, len(removed))
	for i, poll := range removed {
		names[i] = poll.Name
	}
	return "Removed polls: " + strings.Join(names, ", ")
}

func formatPoll(poll *domain.Poll) string {
	var msgBuilder strings.Builder
	fmt.Fprintf(&msgBuilder, "%s: %s\nCloses at: %s", poll.Name, poll.Description, poll.ClosingTime.Format(time.RFC3339))
	for i, option := range poll.Options {
		fmt.Fprintf(&msgBuilder, "\n%d. %s", i, option)
	}
	for _, voter := range poll.Voters {
		fmt.Fprintf(&msgBuilder, "\nVoter %s: %.2f", voter.Name, voter.Contribution)
	}
	if len(poll.VotingDetails) > 0 {
		fmt.Fprintf(&msgBuilder, "\nVotes: %d", len(poll.VotingDetails))
	}
	return msgBuilder.String()
}

func failure(prefix string, err error) string {
	var pollErr domain.PollError
	if errors.As(err, &pollErr) {
		return prefix + ": " + pollErr.Error()
	}
	return prefix + ". Try again"
}

const helpMessage = `Available commands:
	* /help - info about commands

	* /poll_create [name] [description] [closing_time] "[option1]" "[option2]" ... - creates a poll.
	closing_time is RFC3339, e.g. 2026-10-20T18:00:00Z. IMPORTANT: options must be quoted.

	* /poll_show [name] - shows a poll. Only the author sees voters and votes.

	* /poll_list - shows all polls.

	* /poll_register [poll] [voter] - registers you as a voter of the poll.

	* /poll_contribution [poll] [voter] [value] - author of poll changes a voter's weight.

	* /poll_vote [poll] [voter] [option] - casts a vote with your current weight.

	* /poll_results [poll] - shows weighted results once the poll is closed.

	* /poll_cleanup [grace_seconds] - removes polls closed longer than the grace period.`
