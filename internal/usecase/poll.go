package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/inconshreveable/log15"

	"github.com/Xausdorf/weighted-poll/internal/domain"
	applog "github.com/Xausdorf/weighted-poll/internal/logging"
	"github.com/Xausdorf/weighted-poll/internal/metrics"
)

// DefaultMaxPolls - how many polls the store keeps at most unless configured otherwise.
const DefaultMaxPolls = 3

const (
	opCreatePoll              = "create_poll"
	opGetPollByName           = "get_poll_by_name"
	opGetAllPolls             = "get_all_polls"
	opRegisterVoterToPoll     = "register_voter_to_poll"
	opChangeVoterContribution = "change_voter_contribution"
	opVoteToPoll              = "vote_to_poll"
	opGetVotingResult         = "get_voting_result"
	opRemoveExpiredPolls      = "remove_expired_polls"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// EventPublisher receives committed changes of the store. Publishing happens
// outside of the store lock and its failure never undoes a change.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error {
	return nil
}

type Dependencies struct {
	Clock   Clock
	Events  EventPublisher
	Metrics *metrics.StoreMetrics
	Logger  logging.Logger
}

type CreatePollPayload struct {
	Name        string
	Description string
	Options     []string
	// ClosingTime - RFC3339 timestamp with time zone.
	ClosingTime string
}

// PollStore holds every poll of the service and applies the poll lifecycle
// transitions. Each operation runs in one critical section and either applies
// all of its effects or none of them.
type PollStore struct {
	mu       sync.Mutex
	polls    map[string]*domain.Poll
	maxPolls int

	clock   Clock
	events  EventPublisher
	metrics *metrics.StoreMetrics
	log     logging.Logger
}

func NewPollStore(maxPolls int, deps Dependencies) *PollStore {
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	s := &PollStore{
		polls:    make(map[string]*domain.Poll),
		maxPolls: maxPolls,
		clock:    deps.Clock,
		events:   deps.Events,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NopStoreMetrics()
	}
	if s.log == nil {
		s.log = applog.Discard()
	}
	s.log = s.log.New("module", "poll-store")
	return s
}

func (s *PollStore) MaxPolls() int {
	return s.maxPolls
}

func (s *PollStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polls)
}

func (s *PollStore) CreatePoll(ctx context.Context, caller domain.Principal, payload CreatePollPayload) (*domain.Poll, error) {
	poll, err := func() (*domain.Poll, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if len(s.polls) >= s.maxPolls {
			return nil, domain.ErrTooManyPolls
		}

		closingTime, err := ParseClosingTime(payload.ClosingTime)
		if err != nil {
			return nil, err
		}
		if !closingTime.After(s.clock.Now()) {
			return nil, domain.ErrPollClosingTimeMustFuture
		}

		if _, ok := s.polls[payload.Name]; ok {
			return nil, domain.ErrPollInUse
		}

		poll := domain.NewPoll(payload.Name, payload.Description, payload.Options, closingTime, caller)
		s.polls[poll.Name] = poll
		s.metrics.SetPolls(len(s.polls))
		return poll.Clone(), nil
	}()
	if err != nil {
		s.reject(opCreatePoll, caller, err, "poll", payload.Name)
		return nil, err
	}

	s.log.Info("poll created", "poll", poll.Name, "owner", caller, "options", len(poll.Options), "closing_time", poll.ClosingTime)
	s.metrics.Succeeded(opCreatePoll)
	s.publish(ctx, domain.EventPollCreated, poll.Name, caller, nil, nil)
	return poll, nil
}

func (s *PollStore) GetPollByName(_ context.Context, caller domain.Principal, name string) (*domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[name]
	if !ok {
		s.reject(opGetPollByName, caller, domain.ErrPollNotExist, "poll", name)
		return nil, domain.ErrPollNotExist
	}
	return poll.CloneFor(caller), nil
}

// GetAllPolls returns every poll ordered by name, redacted for non-owners.
func (s *PollStore) GetAllPolls(_ context.Context, caller domain.Principal) []*domain.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.Poll, 0, len(s.polls))
	for _, name := range s.sortedNames() {
		result = append(result, s.polls[name].CloneFor(caller))
	}
	return result
}

func (s *PollStore) RegisterVoterToPoll(ctx context.Context, caller domain.Principal, pollName, voterName string) (domain.Voter, error) {
	voter, err := func() (domain.Voter, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		poll, ok := s.polls[pollName]
		if !ok {
			return domain.Voter{}, domain.ErrPollNotExist
		}
		if _, found := poll.VoterIndex(voterName); found {
			return domain.Voter{}, domain.ErrVoterInUse
		}
		if poll.HasVoterPrincipal(caller) {
			return domain.Voter{}, domain.ErrVoterPrincipalInUse
		}

		voter := domain.NewVoter(voterName, caller)
		poll.Voters = append(poll.Voters, voter)
		return voter, nil
	}()
	if err != nil {
		s.reject(opRegisterVoterToPoll, caller, err, "poll", pollName, "voter", voterName)
		return domain.Voter{}, err
	}

	s.log.Info("voter registered", "poll", pollName, "voter", voterName, "principal", caller)
	s.metrics.Succeeded(opRegisterVoterToPoll)
	s.publish(ctx, domain.EventVoterRegistered, pollName, caller, &voter, nil)
	return voter, nil
}

func (s *PollStore) ChangeVoterContribution(ctx context.Context, caller domain.Principal, pollName, voterName string, contribution float64) (domain.Voter, error) {
	voter, err := func() (domain.Voter, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		poll, ok := s.polls[pollName]
		if !ok {
			return domain.Voter{}, domain.ErrPollNotExist
		}
		if !poll.IsOwner(caller) {
			return domain.Voter{}, domain.ErrCallerNotPollOwner
		}
		i, found := poll.VoterIndex(voterName)
		if !found {
			return domain.Voter{}, domain.ErrVoterNotExist
		}
		// the owner may be registered as a voter of its own poll
		if poll.Voters[i].Voter == caller {
			return domain.Voter{}, domain.ErrPollOwnerCannotChangeContribution
		}

		poll.Voters[i].Contribution = contribution
		return poll.Voters[i], nil
	}()
	if err != nil {
		s.reject(opChangeVoterContribution, caller, err, "poll", pollName, "voter", voterName)
		return domain.Voter{}, err
	}

	s.log.Info("voter contribution changed", "poll", pollName, "voter", voterName, "contribution", contribution)
	s.metrics.Succeeded(opChangeVoterContribution)
	s.publish(ctx, domain.EventContributionChanged, pollName, caller, &voter, nil)
	return voter, nil
}

// VoteToPoll appends a vote of the named voter. A voter may vote more than once,
// every vote is tallied.
func (s *PollStore) VoteToPoll(ctx context.Context, caller domain.Principal, pollName, voterName, option string) (domain.VotingDetail, error) {
	detail, err := func() (domain.VotingDetail, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		poll, ok := s.polls[pollName]
		if !ok {
			return domain.VotingDetail{}, domain.ErrPollNotExist
		}
		if poll.IsClosed(s.clock.Now()) {
			return domain.VotingDetail{}, domain.ErrVotingIsOver
		}
		i, found := poll.VoterIndex(voterName)
		if !found {
			return domain.VotingDetail{}, domain.ErrVoterNotExist
		}
		voter := poll.Voters[i]
		if voter.Voter != caller {
			return domain.VotingDetail{}, domain.ErrVoterNotAuthorized
		}
		optionIndex, found := poll.OptionIndex(option)
		if !found {
			return domain.VotingDetail{}, domain.ErrOptionNotExist
		}

		detail := domain.VotingDetail{
			Name:         voter.Name,
			Option:       optionIndex,
			Contribution: voter.Contribution,
		}
		poll.VotingDetails = append(poll.VotingDetails, detail)
		return detail, nil
	}()
	if err != nil {
		s.reject(opVoteToPoll, caller, err, "poll", pollName, "voter", voterName, "option", option)
		return domain.VotingDetail{}, err
	}

	s.log.Info("vote cast", "poll", pollName, "voter", voterName, "option", detail.Option, "contribution", detail.Contribution)
	s.metrics.Succeeded(opVoteToPoll)
	s.metrics.VotesTotal.Add(1)
	s.publish(ctx, domain.EventVoteCast, pollName, caller, nil, &detail)
	return detail, nil
}

// GetVotingResult returns "<option>: <weighted sum>" per option once the poll is closed.
func (s *PollStore) GetVotingResult(_ context.Context, caller domain.Principal, pollName string) ([]string, error) {
	results, err := func() ([]string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		poll, ok := s.polls[pollName]
		if !ok {
			return nil, domain.ErrPollNotExist
		}
		if !poll.IsClosed(s.clock.Now()) {
			return nil, domain.ErrVotingNotClosed
		}
		if !poll.IsOwner(caller) && !poll.HasVoterPrincipal(caller) {
			return nil, domain.ErrOnlyVoterAndPollOwnerCanViewResults
		}
		return poll.Results(), nil
	}()
	if err != nil {
		s.reject(opGetVotingResult, caller, err, "poll", pollName)
		return nil, err
	}

	s.metrics.Succeeded(opGetVotingResult)
	return results, nil
}

// RemoveExpiredPolls removes every poll that closed more than graceSeconds ago
// and returns the removed polls ordered by name. Anyone may call it; caller is
// recorded only for the log.
func (s *PollStore) RemoveExpiredPolls(ctx context.Context, caller domain.Principal, graceSeconds int64) []*domain.Poll {
	grace := domain.GraceDuration(graceSeconds)

	removed := func() []*domain.Poll {
		s.mu.Lock()
		defer s.mu.Unlock()

		now := s.clock.Now()
		var removed []*domain.Poll
		for _, name := range s.sortedNames() {
			poll := s.polls[name]
			if !poll.IsExpired(now, grace) {
				continue
			}
			delete(s.polls, name)
			removed = append(removed, poll)
		}
		s.metrics.SetPolls(len(s.polls))
		return removed
	}()
	if removed == nil {
		removed = []*domain.Poll{}
	}

	s.metrics.Succeeded(opRemoveExpiredPolls)
	if len(removed) == 0 {
		return removed
	}

	s.log.Info("expired polls removed", "count", len(removed), "grace", grace, "caller", caller)
	s.metrics.RemovedPollsTotal.Add(float64(len(removed)))
	for _, poll := range removed {
		s.publish(ctx, domain.EventPollRemoved, poll.Name, caller, nil, nil)
	}
	return removed
}

// Snapshot returns deep copies of every poll ordered by name.
func (s *PollStore) Snapshot() []*domain.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.Poll, 0, len(s.polls))
	for _, name := range s.sortedNames() {
		result = append(result, s.polls[name].Clone())
	}
	return result
}

// Restore replaces the content of the store with polls. The store is left
// untouched if polls do not fit or contain a duplicate name.
func (s *PollStore) Restore(polls []*domain.Poll) error {
	if len(polls) > s.maxPolls {
		return domain.ErrTooManyPolls
	}
	restored := make(map[string]*domain.Poll, len(polls))
	for _, poll := range polls {
		if _, ok := restored[poll.Name]; ok {
			return domain.ErrPollInUse
		}
		restored[poll.Name] = poll.Clone()
	}

	s.mu.Lock()
	s.polls = restored
	s.metrics.SetPolls(len(restored))
	s.mu.Unlock()

	s.log.Info("polls restored", "count", len(restored))
	return nil
}

// ParseClosingTime parses an RFC3339 timestamp, fractional seconds allowed.
func ParseClosingTime(text string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return t, nil
}

func (s *PollStore) sortedNames() []string {
	names := make([]string, 0, len(s.polls))
	for name := range s.polls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *PollStore) reject(operation string, caller domain.Principal, err error, ctx ...interface{}) {
	var pollErr domain.PollError
	if !errors.As(err, &pollErr) {
		s.log.Error("operation failed", append([]interface{}{"operation", operation, "caller", caller, "error", err}, ctx...)...)
		return
	}
	s.log.Debug("operation rejected", append([]interface{}{"operation", operation, "caller", caller, "reason", pollErr.String()}, ctx...)...)
	s.metrics.Rejected(operation, pollErr.String())
}

func (s *PollStore) publish(ctx context.Context, kind domain.EventKind, pollName string, caller domain.Principal, voter *domain.Voter, vote *domain.VotingDetail) {
	event := domain.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Poll:       pollName,
		Caller:     caller,
		OccurredAt: s.clock.Now(),
		Voter:      voter,
		Vote:       vote,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("could not publish event", "event", kind, "poll", pollName, "error", err)
	}
}
