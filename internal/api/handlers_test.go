package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gmsas95/caretrack/internal/config"
	"github.com/gmsas95/caretrack/internal/notify"
	"github.com/gmsas95/caretrack/internal/recordstore"
	"github.com/gmsas95/caretrack/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupServer(t *testing.T) *Server {
	cfg := &config.Config{}
	cfg.Server.ReadTimeout = 5
	cfg.Server.WriteTimeout = 5
	cfg.Server.RateLimit = 100
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.AllowOrigins = []string{"*"}

	logger := zap.NewNop()
	rs, err := recordstore.NewFileStore(filepath.Join(t.TempDir(), "records.json"), logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })

	hub := notify.NewHub(logger)
	dispatcher := notify.NewDispatcher(logger, notify.NewLogSink(logger))

	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local)
	sess := session.New(rs, dispatcher, logger, session.WithClock(func() time.Time { return now }))
	require.NoError(t, sess.Load(context.Background()))

	return New(cfg, sess, hub, logger)
}

func login(t *testing.T, s *Server) string {
	resp := doJSON(t, s, http.MethodPost, "/api/auth/login", map[string]string{"password": ""}, "")
	require.Equal(t, 200, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	decode(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func doJSON(t *testing.T, s *Server, method, path string, payload any, token string) *http.Response {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	s := setupServer(t)

	resp := doJSON(t, s, http.MethodGet, "/api/appointments", nil, "")
	assert.Equal(t, 401, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/appointments", nil, "not-a-token")
	assert.Equal(t, 401, resp.StatusCode)
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	s := setupServer(t)
	token := login(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/appointments", map[string]string{
		"title": "Dentist", "date": "2024-01-01", "time": "09:00",
	}, token)
	require.Equal(t, 201, resp.StatusCode)

	var appt map[string]any
	decode(t, resp, &appt)
	assert.Equal(t, "Dentist", appt["title"])
	assert.NotZero(t, appt["id"])
}

func TestCollisionReturns409WithSuggestion(t *testing.T) {
	s := setupServer(t)
	token := login(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/appointments", map[string]string{
		"title": "First", "date": "2024-01-01", "time": "09:00",
	}, token)
	require.Equal(t, 201, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, "/api/appointments", map[string]string{
		"title": "Second", "date": "2024-01-01", "time": "09:30",
	}, token)
	require.Equal(t, 409, resp.StatusCode)

	var body struct {
		Error     string `json:"error"`
		Suggested struct {
			Date string `json:"date"`
			Time string `json:"time"`
		} `json:"suggested"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "2024-01-01", body.Suggested.Date)
	assert.Equal(t, "10:00", body.Suggested.Time)
}

func TestValidationReturns400(t *testing.T) {
	s := setupServer(t)
	token := login(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/appointments", map[string]string{
		"title": "", "date": "2024-01-01", "time": "09:00",
	}, token)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestUpdateMissingAppointmentReturns404(t *testing.T) {
	s := setupServer(t)
	token := login(t, s)

	resp := doJSON(t, s, http.MethodPut, "/api/appointments/42", map[string]string{
		"title": "x", "date": "2024-01-01", "time": "09:00",
	}, token)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestMedicationLifecycle(t *testing.T) {
	s := setupServer(t)
	token := login(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/medications", map[string]string{
		"name": "Aspirin", "dosage": "100mg", "frequency": "daily", "time": "08:00",
	}, token)
	require.Equal(t, 201, resp.StatusCode)

	var med struct {
		ID int64 `json:"id"`
	}
	decode(t, resp, &med)

	resp = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/medications/%d/taken", med.ID), nil, token)
	require.Equal(t, 200, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/dashboard", nil, token)
	require.Equal(t, 200, resp.StatusCode)

	var dash struct {
		Adherence struct {
			Taken  int `json:"taken"`
			Active int `json:"active"`
		} `json:"adherence"`
	}
	decode(t, resp, &dash)
	assert.Equal(t, 1, dash.Adherence.Taken)
	assert.Equal(t, 1, dash.Adherence.Active)

	resp = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/medications/%d", med.ID), nil, token)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestCalendarEndpoint(t *testing.T) {
	s := setupServer(t)
	token := login(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/appointments", map[string]string{
		"title": "Dentist", "date": "2024-01-05", "time": "09:00",
	}, token)
	require.Equal(t, 201, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/calendar?year=2024&month=1", nil, token)
	require.Equal(t, 200, resp.StatusCode)

	var body struct {
		Events map[string][]map[string]any `json:"events"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Events["2024-01-05"], 1)

	resp = doJSON(t, s, http.MethodGet, "/api/calendar?year=2024&month=13", nil, token)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t)

	resp := doJSON(t, s, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, 200, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(data), "caretrack_uptime_seconds")
}
