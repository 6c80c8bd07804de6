package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	logging "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Xausdorf/weighted-poll/internal/domain"
	"github.com/Xausdorf/weighted-poll/internal/metrics"
	"github.com/Xausdorf/weighted-poll/internal/usecase"
)

const (
	CreatePollPattern         = "/polls"
	GetAllPollsPattern        = "/polls"
	RemoveExpiredPollsPattern = "/polls/expired"
	GetPollPattern            = "/polls/{name}"
	RegisterVoterPattern      = "/polls/{name}/voters"
	ChangeContributionPattern = "/polls/{name}/voters/{voter}/contribution"
	VotePattern               = "/polls/{name}/votes"
	ResultsPattern            = "/polls/{name}/results"
	MetricsPattern            = "/metrics"
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

type Handler struct {
	polls   PollService
	metrics *metrics.APIMetrics
	log     logging.Logger
}

func NewHandler(polls PollService, m *metrics.APIMetrics, log logging.Logger) *Handler {
	if m == nil {
		m = metrics.NopAPIMetrics()
	}
	return &Handler{
		polls:   polls,
		metrics: m,
		log:     log.New("module", "http-api"),
	}
}

// Router wires every poll operation. Poll routes require the caller principal header.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.observe, h.recoverPanic)
	router.Handle(MetricsPattern, promhttp.Handler()).Methods(http.MethodGet)

	polls := router.NewRoute().Subrouter()
	polls.Use(requirePrincipal)
	polls.HandleFunc(CreatePollPattern, h.CreatePollHandler).Methods(http.MethodPost)
	polls.HandleFunc(GetAllPollsPattern, h.GetAllPollsHandler).Methods(http.MethodGet)
	polls.HandleFunc(RemoveExpiredPollsPattern, h.RemoveExpiredPollsHandler).Methods(http.MethodDelete)
	polls.HandleFunc(GetPollPattern, h.GetPollHandler).Methods(http.MethodGet)
	polls.HandleFunc(RegisterVoterPattern, h.RegisterVoterHandler).Methods(http.MethodPost)
	polls.HandleFunc(ChangeContributionPattern, h.ChangeContributionHandler).Methods(http.MethodPut)
	polls.HandleFunc(VotePattern, h.VoteHandler).Methods(http.MethodPost)
	polls.HandleFunc(ResultsPattern, h.ResultsHandler).Methods(http.MethodGet)
	return router
}

func (h *Handler) CreatePollHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	poll, err := h.polls.CreatePoll(r.Context(), principalFrom(r.Context()), usecase.CreatePollPayload{
		Name:        req.Name,
		Description: req.Description,
		Options:     req.Options,
		ClosingTime: req.ClosingTime,
	})
	if err != nil {
		writePollError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewPollResponse(poll))
}

func (h *Handler) GetAllPollsHandler(w http.ResponseWriter, r *http.Request) {
	polls := h.polls.GetAllPolls(r.Context(), principalFrom(r.Context()))
	h.writeJSON(w, http.StatusOK, NewPollsResponse(polls))
}

func (h *Handler) GetPollHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poll, err := h.polls.GetPollByName(r.Context(), principalFrom(r.Context()), vars["name"])
	if err != nil {
		writePollError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewPollResponse(poll))
}

func (h *Handler) RegisterVoterHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req RegisterVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	voter, err := h.polls.RegisterVoterToPoll(r.Context(), principalFrom(r.Context()), vars["name"], req.Name)
	if err != nil {
		writePollError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewVoterResponse(voter))
}

func (h *Handler) ChangeContributionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req ChangeContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}
	if req.Contribution == nil {
		writeError(w, http.StatusBadRequest, errMissingField)
		return
	}

	voter, err := h.polls.ChangeVoterContribution(r.Context(), principalFrom(r.Context()), vars["name"], vars["voter"], *req.Contribution)
	if err != nil {
		writePollError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewVoterResponse(voter))
}

func (h *Handler) VoteHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return
	}

	detail, err := h.polls.VoteToPoll(r.Context(), principalFrom(r.Context()), vars["name"], req.Voter, req.Option)
	if err != nil {
		writePollError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewVotingDetailResponse(detail))
}

func (h *Handler) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	results, err := h.polls.GetVotingResult(r.Context(), principalFrom(r.Context()), vars["name"])
	if err != nil {
		writePollError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResultsResponse{Poll: vars["name"], Results: results})
}

// RemoveExpiredPollsHandler is open to every caller, like the operation itself.
func (h *Handler) RemoveExpiredPollsHandler(w http.ResponseWriter, r *http.Request) {
	var grace int64
	if raw := r.URL.Query().Get("grace"); raw != "" {
		var err error
		if grace, err = strconv.ParseInt(raw, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, errInvalidGrace)
			return
		}
	}

	removed := h.polls.RemoveExpiredPolls(r.Context(), principalFrom(r.Context()), grace)
	h.writeJSON(w, http.StatusOK, NewPollsResponse(removed))
}
