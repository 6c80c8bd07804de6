package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

var (
	errMissingPrincipal = errors.New("caller principal is required")
	errInvalidJSON      = errors.New("invalid JSON body")
	errInvalidGrace     = errors.New("grace must be a whole number of seconds")
	errMissingField     = errors.New("required field is missing")
	errInternal         = errors.New("internal error")
)

var statusByPollError = map[domain.PollError]int{
	domain.ErrTooManyPolls:                        http.StatusConflict,
	domain.ErrInvalidDate:                         http.StatusBadRequest,
	domain.ErrPollClosingTimeMustFuture:           http.StatusBadRequest,
	domain.ErrPollInUse:                           http.StatusConflict,
	domain.ErrPollNotExist:                        http.StatusNotFound,
	domain.ErrVoterInUse:                          http.StatusConflict,
	domain.ErrVoterPrincipalInUse:                 http.StatusConflict,
	domain.ErrVoterNotExist:                       http.StatusNotFound,
	domain.ErrVoterNotAuthorized:                  http.StatusForbidden,
	domain.ErrCallerNotPollOwner:                  http.StatusForbidden,
	domain.ErrPollOwnerCannotChangeContribution:   http.StatusForbidden,
	domain.ErrOptionNotExist:                      http.StatusNotFound,
	domain.ErrVotingIsOver:                        http.StatusConflict,
	domain.ErrOnlyVoterAndPollOwnerCanViewResults: http.StatusForbidden,
	domain.ErrVotingNotClosed:                     http.StatusConflict,
}

// StatusOf maps an error returned by the poll store to an HTTP status.
func StatusOf(err error) int {
	var pollErr domain.PollError
	if errors.As(err, &pollErr) {
		if status, ok := statusByPollError[pollErr]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v before touching the response, so an encoding failure
// still turns into a 500.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Error("could not encode response", "err", err)
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	writeBody(w, status, body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body, _ := json.Marshal(ErrorResponse{Error: err.Error()})
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writePollError(w http.ResponseWriter, err error) {
	writeError(w, StatusOf(err), err)
}
