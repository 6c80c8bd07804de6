package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

// PrincipalHeader carries the caller identity verified by the authenticating
// proxy in front of the service.
const PrincipalHeader = "X-Caller-Principal"

const RequestIDHeader = "X-Request-Id"

type principalKey struct{}

func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := r.Header.Get(PrincipalHeader)
		if principal == "" {
			writeError(w, http.StatusUnauthorized, errMissingPrincipal)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, domain.Principal(principal))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey{}).(domain.Principal)
	return p
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// observe logs and measures every request.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}
		status := strconv.Itoa(rec.status)
		elapsed := time.Since(begin)

		h.metrics.RequestsTotal.With("endpoint", endpoint, "method", r.Method, "status", status).Add(1)
		h.metrics.RequestDurationSeconds.With("endpoint", endpoint, "method", r.Method, "status", status).Observe(elapsed.Seconds())
		if rec.status >= http.StatusBadRequest {
			h.metrics.RequestErrorsTotal.With("endpoint", endpoint, "method", r.Method, "status", status).Add(1)
		}

		h.log.Debug("request served",
			"request_id", requestID,
			"method", r.Method,
			"endpoint", endpoint,
			"status", rec.status,
			"elapsed", elapsed,
			"principal", r.Header.Get(PrincipalHeader),
		)
	})
}

// recoverPanic turns a panicking handler into a 500 response.
func (h *Handler) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rcv := recover(); rcv != nil {
				err, ok := rcv.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rcv)
				}
				h.log.Error("recover a panic", "err", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, errInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// HTTPHandler wraps Router with CORS and, when accessLog is not nil, an access
// log in the combined log format.
func (h *Handler) HTTPHandler(accessLog io.Writer) http.Handler {
	allowedOrigins := ghandlers.AllowedOrigins([]string{"*"})
	allowedMethods := ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete})
	allowedHeaders := ghandlers.AllowedHeaders([]string{"Content-Type", PrincipalHeader, RequestIDHeader})

	var handler http.Handler = ghandlers.CORS(allowedOrigins, allowedMethods, allowedHeaders)(h.Router())
	if accessLog != nil {
		handler = ghandlers.CombinedLoggingHandler(accessLog, handler)
	}
	return handler
}
