package handler

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edudrive/internal/domain"
	"edudrive/internal/ratelimit"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"auth required", domain.ErrAuthRequired, 401, "authentication_required"},
		{"not found", domain.ErrNotFound, 404, "not_found"},
		{"access denied masked as not found", domain.ErrAccessDenied, 404, "not_found"},
		{"invalid name", domain.ErrInvalidName, 400, "invalid_request"},
		{"duplicate path", domain.ErrDuplicatePath, 409, "duplicate_path"},
		{"invalid move", domain.ErrInvalidMove, 400, "invalid_move"},
		{"path conflict", domain.ErrPathConflict, 409, "path_conflict"},
		{"root immutable", domain.ErrRootImmutable, 400, "invalid_request"},
		{"invalid range", domain.ErrInvalidRange, 416, "range_not_satisfiable"},
		{"quota exceeded", domain.ErrQuotaExceeded, 413, "quota_exceeded"},
		{"rate limited", domain.ErrRateLimited, 429, "rate_limited"},
		{"io failure", domain.ErrIOFailure, 502, "io_failure"},
		{"unknown", fmt.Errorf("boom"), 500, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, fmt.Errorf("wrapped: %w", tt.err))

			assert.Equal(t, tt.status, w.Code)

			var env errorEnvelope
			require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
			assert.Equal(t, tt.kind, env.Kind)
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("pq: connection refused to db-host:5432"))

	var env errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.Equal(t, "internal error", env.Error)
}

func TestWriteErrorMasksOwnership(t *testing.T) {
	// The envelope must not leak whose resource it was.
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("folder 42 owned by user-2: %w", domain.ErrAccessDenied))

	var env errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.Equal(t, "not found", env.Error)
}

func TestAllowRate(t *testing.T) {
	limiter := ratelimit.NewLimiter(map[ratelimit.Operation]ratelimit.Rule{
		ratelimit.OpFolderCreate: {Max: 2, Window: time.Minute},
		ratelimit.OpAPICall:      {Max: 100, Window: time.Minute},
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		assert.True(t, allowRate(w, limiter, "user-1", ratelimit.OpFolderCreate))
	}

	w := httptest.NewRecorder()
	assert.False(t, allowRate(w, limiter, "user-1", ratelimit.OpFolderCreate))
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var env errorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&env))
	assert.Equal(t, "rate_limited", env.Kind)

	// A different actor keeps their own budget.
	w = httptest.NewRecorder()
	assert.True(t, allowRate(w, limiter, "user-2", ratelimit.OpFolderCreate))
}

func TestAllowRateNilLimiter(t *testing.T) {
	w := httptest.NewRecorder()
	assert.True(t, allowRate(w, nil, "user-1", ratelimit.OpFolderCreate))
}
