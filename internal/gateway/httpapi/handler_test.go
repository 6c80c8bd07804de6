package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	logging "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xausdorf/weighted-poll/internal/domain"
	applog "github.com/Xausdorf/weighted-poll/internal/logging"
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

type testServer struct {
	t      *testing.T
	clock  *fakeClock
	router *mux.Router
}

func newTestServer(t *testing.T) *testServer {
	clock := &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	store := usecase.NewPollStore(usecase.DefaultMaxPolls, usecase.Dependencies{Clock: clock})

	return &testServer{
		t:      t,
		clock:  clock,
		router: NewHandler(store, nil, discardLogger()).Router(),
	}
}

func discardLogger() logging.Logger {
	return applog.Discard()
}

func (s *testServer) do(method, path string, principal domain.Principal, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		req.Header.Set(PrincipalHeader, string(principal))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createLunch() {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/polls", "owner", CreatePollRequest{
		Name:        "lunch",
		Description: "where do we eat",
		Options:     []string{"pizza", "sushi"},
		ClosingTime: "2026-10-19T13:00:00Z",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, err error) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	var resp ErrorResponse
	decode(t, rec, &resp)
	require.Equal(t, err.Error(), resp.Error)
}

func TestMissingPrincipal(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/polls", "", nil)
	requireError(t, rec, http.StatusUnauthorized, errMissingPrincipal)

	rec = s.do(http.MethodDelete, "/polls/expired", "", nil)
	requireError(t, rec, http.StatusUnauthorized, errMissingPrincipal)
}

func TestCreatePollHandler(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/polls", "owner", CreatePollRequest{
		Name:        "lunch",
		Description: "where do we eat",
		Options:     []string{"pizza", "sushi"},
		ClosingTime: "2026-10-19T13:00:00.5Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var poll PollResponse
	decode(t, rec, &poll)
	assert.Equal(t, "lunch", poll.Name)
	assert.Equal(t, "owner", poll.Owner)
	assert.Equal(t, []string{"pizza", "sushi"}, poll.Options)
	assert.Equal(t, "2026-10-19T13:00:00.5Z", poll.ClosingTime)
	assert.NotNil(t, poll.Voters)
	assert.Empty(t, poll.Voters)

	rec = s.do(http.MethodPost, "/polls", "owner", CreatePollRequest{Name: "lunch", ClosingTime: "2026-10-19T14:00:00Z"})
	requireError(t, rec, http.StatusConflict, domain.ErrPollInUse)

	rec = s.do(http.MethodPost, "/polls", "owner", CreatePollRequest{Name: "late", ClosingTime: "yesterday"})
	requireError(t, rec, http.StatusBadRequest, domain.ErrInvalidDate)

	rec = s.do(http.MethodPost, "/polls", "owner", CreatePollRequest{Name: "late", ClosingTime: "2026-10-19T11:00:00Z"})
	requireError(t, rec, http.StatusBadRequest, domain.ErrPollClosingTimeMustFuture)

	rec = s.do(http.MethodPost, "/polls", "owner", "{not json")
	requireError(t, rec, http.StatusBadRequest, errInvalidJSON)
}

func TestGetPollHandlers(t *testing.T) {
	s := newTestServer(t)
	s.createLunch()
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/polls/lunch/voters", "alice", RegisterVoterRequest{Name: "Alice"}).Code)

	{
		var poll PollResponse
		rec := s.do(http.MethodGet, "/polls/lunch", "owner", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &poll)
		assert.Equal(t, []VoterResponse{{Name: "Alice", Voter: "alice", Contribution: 1}}, poll.Voters)
	}

	{
		var poll PollResponse
		rec := s.do(http.MethodGet, "/polls/lunch", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &poll)
		assert.Empty(t, poll.Voters)
		assert.Empty(t, poll.VotingDetails)
	}

	{
		var polls []PollResponse
		rec := s.do(http.MethodGet, "/polls", "stranger", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &polls)
		require.Len(t, polls, 1)
		assert.Empty(t, polls[0].Voters)
	}

	rec := s.do(http.MethodGet, "/polls/dinner", "owner", nil)
	requireError(t, rec, http.StatusNotFound, domain.ErrPollNotExist)
}

func TestVotingFlow(t *testing.T) {
	s := newTestServer(t)
	s.createLunch()

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/polls/lunch/voters", "alice", RegisterVoterRequest{Name: "Alice"}).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/polls/lunch/voters", "bob", RegisterVoterRequest{Name: "Bob"}).Code)

	rec := s.do(http.MethodPost, "/polls/lunch/voters", "alice", RegisterVoterRequest{Name: "Alice"})
	requireError(t, rec, http.StatusConflict, domain.ErrVoterInUse)

	rec = s.do(http.MethodPut, "/polls/lunch/voters/Bob/contribution", "alice", map[string]float64{"contribution": 2.5})
	requireError(t, rec, http.StatusForbidden, domain.ErrCallerNotPollOwner)

	rec = s.do(http.MethodPut, "/polls/lunch/voters/Bob/contribution", "owner", map[string]string{})
	requireError(t, rec, http.StatusBadRequest, errMissingField)

	rec = s.do(http.MethodPut, "/polls/lunch/voters/Bob/contribution", "owner", map[string]float64{"contribution": 2.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var voter VoterResponse
	decode(t, rec, &voter)
	assert.Equal(t, 2.5, voter.Contribution)

	rec = s.do(http.MethodPost, "/polls/lunch/votes", "bob", VoteRequest{Voter: "Alice", Option: "sushi"})
	requireError(t, rec, http.StatusForbidden, domain.ErrVoterNotAuthorized)

	rec = s.do(http.MethodPost, "/polls/lunch/votes", "alice", VoteRequest{Voter: "Alice", Option: "tacos"})
	requireError(t, rec, http.StatusNotFound, domain.ErrOptionNotExist)

	rec = s.do(http.MethodPost, "/polls/lunch/votes", "alice", VoteRequest{Voter: "Alice", Option: "sushi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var detail VotingDetailResponse
	decode(t, rec, &detail)
	assert.Equal(t, VotingDetailResponse{Name: "Alice", Option: 1, Contribution: 1}, detail)

	rec = s.do(http.MethodPost, "/polls/lunch/votes", "bob", VoteRequest{Voter: "Bob", Option: "sushi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/polls/lunch/results", "owner", nil)
	requireError(t, rec, http.StatusConflict, domain.ErrVotingNotClosed)

	s.clock.Advance(time.Hour)

	rec = s.do(http.MethodPost, "/polls/lunch/votes", "alice", VoteRequest{Voter: "Alice", Option: "pizza"})
	requireError(t, rec, http.StatusConflict, domain.ErrVotingIsOver)

	rec = s.do(http.MethodGet, "/polls/lunch/results", "stranger", nil)
	requireError(t, rec, http.StatusForbidden, domain.ErrOnlyVoterAndPollOwnerCanViewResults)

	rec = s.do(http.MethodGet, "/polls/lunch/results", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var results ResultsResponse
	decode(t, rec, &results)
	assert.Equal(t, ResultsResponse{Poll: "lunch", Results: []string{"pizza: 0.00", "sushi: 3.50"}}, results)
}

func TestRemoveExpiredPollsHandler(t *testing.T) {
	s := newTestServer(t)
	s.createLunch()

	rec := s.do(http.MethodDelete, "/polls/expired?grace=soon", "anyone", nil)
	requireError(t, rec, http.StatusBadRequest, errInvalidGrace)

	var removed []PollResponse
	rec = s.do(http.MethodDelete, "/polls/expired", "anyone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &removed)
	assert.Empty(t, removed)

	s.clock.Advance(2 * time.Hour)

	rec = s.do(http.MethodDelete, "/polls/expired?grace=7200", "anyone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &removed)
	assert.Empty(t, removed)

	// any principal may trigger the cleanup
	rec = s.do(http.MethodDelete, "/polls/expired?grace=60", "anyone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &removed)
	require.Len(t, removed, 1)
	assert.Equal(t, "lunch", removed[0].Name)

	rec = s.do(http.MethodGet, "/polls/lunch", "owner", nil)
	requireError(t, rec, http.StatusNotFound, domain.ErrPollNotExist)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusOf(t *testing.T) {
	for pollErr, status := range statusByPollError {
		assert.Equal(t, status, StatusOf(pollErr), pollErr.String())
	}
	assert.Equal(t, http.StatusInternalServerError, StatusOf(assert.AnError))
}

type panickyService struct {
	PollService
}

func (panickyService) GetAllPolls(context.Context, domain.Principal) []*domain.Poll {
	panic("boom")
}

func TestRecoverPanic(t *testing.T) {
	router := NewHandler(panickyService{}, nil, discardLogger()).Router()

	req := httptest.NewRequest(http.MethodGet, "/polls", nil)
	req.Header.Set(PrincipalHeader, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	requireError(t, rec, http.StatusInternalServerError, errInternal)
}

func TestHTTPHandlerCORS(t *testing.T) {
	var accessLog bytes.Buffer
	store := usecase.NewPollStore(usecase.DefaultMaxPolls, usecase.Dependencies{})
	handler := NewHandler(store, nil, discardLogger()).HTTPHandler(&accessLog)

	req := httptest.NewRequest(http.MethodGet, "/polls", nil)
	req.Header.Set(PrincipalHeader, "alice")
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, accessLog.String(), "GET /polls")
}

func TestUnencodableResponse(t *testing.T) {
	ctx := context.Background()
	store := usecase.NewPollStore(usecase.DefaultMaxPolls, usecase.Dependencies{})
	_, err := store.CreatePoll(ctx, "owner", usecase.CreatePollPayload{
		Name:        "lunch",
		Options:     []string{"pizza"},
		ClosingTime: time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	_, err = store.RegisterVoterToPoll(ctx, "alice", "lunch", "Alice")
	require.NoError(t, err)
	_, err = store.ChangeVoterContribution(ctx, "owner", "lunch", "Alice", math.NaN())
	require.NoError(t, err)

	router := NewHandler(store, nil, discardLogger()).Router()
	req := httptest.NewRequest(http.MethodGet, "/polls/lunch", nil)
	req.Header.Set(PrincipalHeader, "owner")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	requireError(t, rec, http.StatusInternalServerError, errInternal)
}
