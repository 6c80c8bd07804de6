package domain

// PollError - closed set of failures a poll operation can end with.
// Values are comparable, so errors.Is works against the Err* constants.
type PollError uint8

const (
	ErrTooManyPolls PollError = iota + 1
	ErrInvalidDate
	ErrPollClosingTimeMustFuture
	ErrPollInUse
	ErrPollNotExist
	ErrVoterInUse
	ErrVoterPrincipalInUse
	ErrVoterNotExist
	ErrVoterNotAuthorized
	ErrCallerNotPollOwner
	ErrPollOwnerCannotChangeContribution
	ErrOptionNotExist
	ErrVotingIsOver
	ErrOnlyVoterAndPollOwnerCanViewResults
	ErrVotingNotClosed
)

var pollErrorNames = map[PollError]string{
	ErrTooManyPolls:                        "TooManyPolls",
	ErrInvalidDate:                         "InvalidDate",
	ErrPollClosingTimeMustFuture:           "PollClosingTimeMustFuture",
	ErrPollInUse:                           "PollInUse",
	ErrPollNotExist:                        "PollNotExist",
	ErrVoterInUse:                          "VoterInUse",
	ErrVoterPrincipalInUse:                 "VoterPrincipalInUse",
	ErrVoterNotExist:                       "VoterNotExist",
	ErrVoterNotAuthorized:                  "VoterNotAuthorized",
	ErrCallerNotPollOwner:                  "CallerNotPollOwner",
	ErrPollOwnerCannotChangeContribution:   "PollOwnerCannotChangeContribution",
	ErrOptionNotExist:                      "OptionNotExist",
	ErrVotingIsOver:                        "VotingIsOver",
	ErrOnlyVoterAndPollOwnerCanViewResults: "OnlyVoterAndPollOwnerCanViewResults",
	ErrVotingNotClosed:                     "VotingNotClosed",
}

var pollErrorMessages = map[PollError]string{
	ErrTooManyPolls:                        "Too many polls created.",
	ErrInvalidDate:                         "Date format is invalid.",
	ErrPollClosingTimeMustFuture:           "Poll closing time must be in the future.",
	ErrPollInUse:                           "Poll already in use.",
	ErrPollNotExist:                        "Poll does not exist.",
	ErrVoterInUse:                          "Voter already in use.",
	ErrVoterPrincipalInUse:                 "Voter principal already in use.",
	ErrVoterNotExist:                       "Voter does not exist.",
	ErrVoterNotAuthorized:                  "Voter is not authorized.",
	ErrCallerNotPollOwner:                  "Caller is not the poll owner.",
	ErrPollOwnerCannotChangeContribution:   "Poll owner cannot change own contribution.",
	ErrOptionNotExist:                      "Option does not exist.",
	ErrVotingIsOver:                        "Voting is over.",
	ErrOnlyVoterAndPollOwnerCanViewResults: "Only the voter and the poll owner can view voting results.",
	ErrVotingNotClosed:                     "Voting is not closed.",
}

// Error returns the human-readable message shown to callers.
func (e PollError) Error() string {
	if msg, ok := pollErrorMessages[e]; ok {
		return msg
	}
	return "Unknown poll error."
}

// String returns the tag name, e.g. "PollNotExist".
func (e PollError) String() string {
	if name, ok := pollErrorNames[e]; ok {
		return name
	}
	return "Unknown"
}
