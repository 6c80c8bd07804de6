package domain

import (
	"fmt"
	"math"
	"time"
)

// DefaultContribution - weight every voter gets at registration.
const DefaultContribution = 1.0

// Principal - opaque caller identity supplied by the hosting environment.
// It is only ever compared for equality.
type Principal string

// Poll - structure for storing information about poll.
type Poll struct {
	// Name - unique key of the poll in the store.
	Name  string
	Owner Principal

	Description string
	Options     []string
	// ClosingTime - voting is disallowed from this instant on.
	ClosingTime time.Time

	Voters        []Voter
	VotingDetails []VotingDetail
}

// Voter - participant of a single poll bound to the principal that registered it.
type Voter struct {
	Name         string
	Voter        Principal
	Contribution float64
}

// VotingDetail - one cast vote. Name and Contribution are captured at cast time.
type VotingDetail struct {
	Name string
	// Option - index in the poll's list of options.
	Option       int
	Contribution float64
}

func NewPoll(name, description string, options []string, closingTime time.Time, owner Principal) *Poll {
	opts := make([]string, len(options))
	copy(opts, options)
	return &Poll{
		Name:          name,
		Owner:         owner,
		Description:   description,
		Options:       opts,
		ClosingTime:   closingTime,
		Voters:        []Voter{},
		VotingDetails: []VotingDetail{},
	}
}

func NewVoter(name string, principal Principal) Voter {
	return Voter{
		Name:         name,
		Voter:        principal,
		Contribution: DefaultContribution,
	}
}

// Clone returns a deep copy of the poll.
func (p *Poll) Clone() *Poll {
	c := *p
	c.Options = append([]string{}, p.Options...)
	c.Voters = append([]Voter{}, p.Voters...)
	c.VotingDetails = append([]VotingDetail{}, p.VotingDetails...)
	return &c
}

// CloneFor returns a deep copy of the poll as seen by caller: voters and voting
// details are cleared unless caller owns the poll.
func (p *Poll) CloneFor(caller Principal) *Poll {
	c := p.Clone()
	if !p.IsOwner(caller) {
		c.Voters = []Voter{}
		c.VotingDetails = []VotingDetail{}
	}
	return c
}

func (p *Poll) IsOwner(caller Principal) bool {
	return p.Owner == caller
}

// VoterIndex returns position of the voter with the given name.
func (p *Poll) VoterIndex(name string) (int, bool) {
	for i, v := range p.Voters {
		if v.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (p *Poll) HasVoterPrincipal(principal Principal) bool {
	for _, v := range p.Voters {
		if v.Voter == principal {
			return true
		}
	}
	return false
}

// OptionIndex returns position of the first option with the given label.
func (p *Poll) OptionIndex(label string) (int, bool) {
	for i, o := range p.Options {
		if o == label {
			return i, true
		}
	}
	return -1, false
}

// IsClosed reports whether voting is over at now.
func (p *Poll) IsClosed(now time.Time) bool {
	return !now.Before(p.ClosingTime)
}

// IsExpired reports whether the poll closed more than grace ago.
func (p *Poll) IsExpired(now time.Time, grace time.Duration) bool {
	return now.Sub(p.ClosingTime) > grace
}

const maxGraceSeconds = math.MaxInt64 / int64(time.Second)

// GraceDuration converts seconds to a duration, saturating instead of overflowing.
func GraceDuration(seconds int64) time.Duration {
	switch {
	case seconds > maxGraceSeconds:
		return math.MaxInt64
	case seconds < -maxGraceSeconds:
		return math.MinInt64
	}
	return time.Duration(seconds) * time.Second
}

// Tally sums contributions of voting details per option, in option order.
func (p *Poll) Tally() []float64 {
	sums := make([]float64, len(p.Options))
	for _, d := range p.VotingDetails {
		if d.Option < 0 || d.Option >= len(sums) {
			continue
		}
		sums[d.Option] += d.Contribution
	}
	return sums
}

// Results formats the tally as "<option>: <sum>" lines with two decimals.
func (p *Poll) Results() []string {
	sums := p.Tally()
	results := make([]string, len(p.Options))
	for i, option := range p.Options {
		results[i] = fmt.Sprintf("%s: %.2f", option, sums[i])
	}
	return results
}
