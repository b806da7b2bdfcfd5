package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"officequeue/internal/config"
	"officequeue/internal/database"
	"officequeue/internal/domain"
	"officequeue/internal/events"
	"officequeue/internal/models"
	"officequeue/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	entries []*models.QueueEntry
	status  *models.OfficeStatus
	err     error
}

func (f *fakeQueue) Snapshot(context.Context) ([]*models.QueueEntry, error) {
	return f.entries, f.err
}

func (f *fakeQueue) GetStatus(context.Context) (*models.OfficeStatus, error) {
	return f.status, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func sampleQueue() *fakeQueue {
	joined := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return &fakeQueue{
		entries: []*models.QueueEntry{
			{UserID: 100, DisplayName: "Alice", JoinedAt: joined, Position: 1},
			{UserID: 200, DisplayName: "Bob", JoinedAt: joined.Add(time.Minute), Position: 2},
		},
		status: &models.OfficeStatus{Status: models.OfficeOpen, Message: "Кабинет открыт", UpdatedAt: joined},
	}
}

func newTestHTTPServer(cfg config.APIConfig, q QueueReader, p Pinger) *httptest.Server {
	logger := zerolog.Nop()
	srv := NewHTTPServer(&cfg, q, p, &logger)
	return httptest.NewServer(srv.Handler())
}

func getJSON(t *testing.T, url string, headers map[string]string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHTTPQueue(t *testing.T) {
	ts := newTestHTTPServer(config.APIConfig{}, sampleQueue(), fakePinger{})
	t.Cleanup(ts.Close)

	var body struct {
		Entries []queueEntryDTO `json:"entries"`
		Total   int             `json:"total"`
	}
	code := getJSON(t, ts.URL+"/api/v1/queue", nil, &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, 1, body.Entries[0].Position)
	assert.Equal(t, "Alice", body.Entries[0].DisplayName)
	assert.Equal(t, int64(200), body.Entries[1].UserID)
}

func TestHTTPStatus(t *testing.T) {
	ts := newTestHTTPServer(config.APIConfig{}, sampleQueue(), fakePinger{})
	t.Cleanup(ts.Close)

	var body statusDTO
	code := getJSON(t, ts.URL+"/api/v1/status", nil, &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "open", body.Status)
	assert.Equal(t, "Кабинет открыт", body.Message)
	assert.Equal(t, "2025-03-01T09:30:00Z", body.UpdatedAt)
}

func TestHTTPStoreUnavailable(t *testing.T) {
	q := &fakeQueue{err: domain.Unavailable("snapshot", errors.New("database is locked"))}
	ts := newTestHTTPServer(config.APIConfig{}, q, fakePinger{err: errors.New("down")})
	t.Cleanup(ts.Close)

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/v1/queue", nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/v1/status", nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/healthz", nil, nil))
}

func TestHTTPMethodNotAllowed(t *testing.T) {
	ts := newTestHTTPServer(config.APIConfig{}, sampleQueue(), fakePinger{})
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/v1/queue", "application/json", http.NoBody)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHTTPHealthAndMetricsArePublic(t *testing.T) {
	cfg := config.APIConfig{Auth: config.APIAuthConfig{Enabled: true, APIKeys: []config.APIClientKey{{Key: "k"}}}}
	ts := newTestHTTPServer(cfg, sampleQueue(), fakePinger{})
	t.Cleanup(ts.Close)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{Auth: config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{
			{Key: "full", Name: "dashboard"},
			{Key: "status-only", Name: "display", Permissions: []string{permReadStatus}},
		},
	}}
	ts := newTestHTTPServer(cfg, sampleQueue(), fakePinger{})
	t.Cleanup(ts.Close)

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"missing key", "/api/v1/queue", "", http.StatusUnauthorized},
		{"invalid key", "/api/v1/queue", "nope", http.StatusUnauthorized},
		{"allow all", "/api/v1/queue", "full", http.StatusOK},
		{"permission granted", "/api/v1/status", "status-only", http.StatusOK},
		{"permission denied", "/api/v1/queue", "status-only", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.key != "" {
				headers["X-Api-Key"] = tt.key
			}
			assert.Equal(t, tt.want, getJSON(t, ts.URL+tt.path, headers, nil))
		})
	}
}

func TestHTTPRateLimit(t *testing.T) {
	cfg := config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2}}
	ts := newTestHTTPServer(cfg, sampleQueue(), fakePinger{})
	t.Cleanup(ts.Close)

	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", nil, nil))
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, getJSON(t, ts.URL+"/api/v1/status", nil, nil))

	// другой ключ получает собственную квоту
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", map[string]string{"X-Api-Key": "other"}, nil))
}

// HTTP view reflects joins persisted through the queue service.
func TestHTTPQueueReflectsStore(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := service.NewQueueService(db, events.NewEventBus(), &logger)
	ts := newTestHTTPServer(config.APIConfig{}, svc, db)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	_, err = svc.Join(ctx, 100, "Alice")
	require.NoError(t, err)
	_, err = svc.Join(ctx, 200, "Bob")
	require.NoError(t, err)
	_, err = svc.Leave(ctx, 100)
	require.NoError(t, err)

	var body struct {
		Entries []queueEntryDTO `json:"entries"`
		Total   int             `json:"total"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/queue", nil, &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "Bob", body.Entries[0].DisplayName)
	assert.Equal(t, 1, body.Entries[0].Position)

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", nil, &health))
}
