package httpapi

import (
	"time"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

type CreatePollRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
	// ClosingTime - RFC3339 timestamp with time zone.
	ClosingTime string `json:"closing_time"`
}

type RegisterVoterRequest struct {
	Name string `json:"name"`
}

type ChangeContributionRequest struct {
	Contribution *float64 `json:"contribution"`
}

type VoteRequest struct {
	Voter  string `json:"voter"`
	Option string `json:"option"`
}

type PollResponse struct {
	Name          string                 `json:"name"`
	Owner         string                 `json:"owner"`
	Description   string                 `json:"description"`
	Options       []string               `json:"options"`
	ClosingTime   string                 `json:"closing_time"`
	Voters        []VoterResponse        `json:"voters"`
	VotingDetails []VotingDetailResponse `json:"voting_details"`
}

type VoterResponse struct {
	Name         string  `json:"name"`
	Voter        string  `json:"voter"`
	Contribution float64 `json:"contribution"`
}

type VotingDetailResponse struct {
	Name         string  `json:"name"`
	Option       int     `json:"option"`
	Contribution float64 `json:"contribution"`
}

type ResultsResponse struct {
	Poll    string   `json:"poll"`
	Results []string `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewPollResponse(poll *domain.Poll) PollResponse {
	resp := PollResponse{
		Name:          poll.Name,
		Owner:         string(poll.Owner),
		Description:   poll.Description,
		Options:       append([]string{}, poll.Options...),
		ClosingTime:   poll.ClosingTime.Format(time.RFC3339Nano),
		Voters:        make([]VoterResponse, len(poll.Voters)),
		VotingDetails: make([]VotingDetailResponse, len(poll.VotingDetails)),
	}
	for i, v := range poll.Voters {
		resp.Voters[i] = NewVoterResponse(v)
	}
	for i, d := range poll.VotingDetails {
		resp.VotingDetails[i] = NewVotingDetailResponse(d)
	}
	return resp
}

func NewPollsResponse(polls []*domain.Poll) []PollResponse {
	resp := make([]PollResponse, len(polls))
	for i, poll := range polls {
		resp[i] = NewPollResponse(poll)
	}
	return resp
}

func NewVoterResponse(v domain.Voter) VoterResponse {
	return VoterResponse{Name: v.Name, Voter: string(v.Voter), Contribution: v.Contribution}
}

func NewVotingDetailResponse(d domain.VotingDetail) VotingDetailResponse {
	return VotingDetailResponse{Name: d.Name, Option: d.Option, Contribution: d.Contribution}
}
