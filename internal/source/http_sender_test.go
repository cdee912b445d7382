package source

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, UpdatePositionPath, r.URL.Path)
		assert.Equal(t, "Bearer token-w1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
	}))
	defer srv.Close()

	speed := 4.2
	err := NewHTTPSender(srv.URL+"/", "token-w1", srv.Client()).Send(t.Context(), Fix{Latitude: 53.5511, Longitude: 9.9937, Speed: &speed})
	require.NoError(t, err)

	assert.Equal(t, 53.5511, got["latitude"])
	assert.Equal(t, 9.9937, got["longitude"])
	assert.Equal(t, 4.2, got["speed"])
	assert.NotContains(t, got, "accuracy")
}

func TestHTTPSender_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"WORKER_NOT_FOUND","message":"worker \"W9\" not found"}}`))
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, "token", srv.Client()).Send(t.Context(), Fix{Latitude: 1, Longitude: 2})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "WORKER_NOT_FOUND", apiErr.Code)
}

func TestHTTPSender_SessionCalls(t *testing.T) {
	var paths []string
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(b))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "token", srv.Client())
	require.NoError(t, s.StartTracking(t.Context(), "R1", ""))
	require.NoError(t, s.StopTracking(t.Context()))

	assert.Equal(t, []string{StartTrackingPath, StopTrackingPath}, paths)
	assert.JSONEq(t, `{"routeId":"R1"}`, bodies[0])
	assert.Empty(t, bodies[1])
}
