package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"edudrive/internal/domain"
	"edudrive/internal/ratelimit"
)

type errorEnvelope struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Handler] Failed to encode response: %v", err)
	}
}

// writeError maps a service error to the HTTP envelope. Access denials are
// reported as not_found so resource existence cannot be probed across
// owners.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	msg := err.Error()

	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		status, kind = http.StatusUnauthorized, "authentication_required"
	case errors.Is(err, domain.ErrAccessDenied), errors.Is(err, domain.ErrNotFound):
		status, kind, msg = http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, domain.ErrInvalidName):
		status, kind = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrDuplicatePath):
		status, kind = http.StatusConflict, "duplicate_path"
	case errors.Is(err, domain.ErrInvalidMove):
		status, kind = http.StatusBadRequest, "invalid_move"
	case errors.Is(err, domain.ErrPathConflict):
		status, kind = http.StatusConflict, "path_conflict"
	case errors.Is(err, domain.ErrRootImmutable):
		status, kind = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrInvalidRange):
		status, kind = http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable"
	case errors.Is(err, domain.ErrQuotaExceeded):
		status, kind = http.StatusRequestEntityTooLarge, "quota_exceeded"
	case errors.Is(err, domain.ErrRateLimited):
		status, kind = http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrIOFailure):
		status, kind = http.StatusBadGateway, "io_failure"
	default:
		msg = "internal error"
		log.Printf("[Handler] Internal error: %v", err)
	}

	writeJSON(w, status, errorEnvelope{Error: msg, Kind: kind})
}

func writeInvalid(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: msg, Kind: "invalid_request"})
}

// allowRate checks an operation-specific budget and writes the 429 envelope
// when exhausted. The apiCall budget is handled by the router middleware.
func allowRate(w http.ResponseWriter, limiter *ratelimit.Limiter, actorID string, op ratelimit.Operation) bool {
	if limiter == nil {
		return true
	}
	res := limiter.Check(actorID, op)
	if res.Allowed {
		return true
	}

	retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
		Error: "rate limit exceeded for " + string(op),
		Kind:  "rate_limited",
	})
	return false
}
