package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/coursegate/internal/config"
	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

const testToken = "test-admin-token"

type memSettings struct {
	values map[string]json.RawMessage
	putErr error
}

func newMemSettings() *memSettings {
	return &memSettings{values: make(map[string]json.RawMessage)}
}

func (m *memSettings) GetSetting(_ context.Context, name string) (*store.Setting, error) {
	data, ok := m.values[name]
	if !ok {
		return nil, nil
	}
	return &store.Setting{Name: name, Data: data, UpdatedAt: time.Now()}, nil
}

func (m *memSettings) PutSetting(_ context.Context, name string, data json.RawMessage) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.values[name] = data
	return nil
}

func (m *memSettings) EnsureSetting(_ context.Context, name string, data json.RawMessage) error {
	if _, ok := m.values[name]; !ok {
		m.values[name] = data
	}
	return nil
}

type memActivity struct {
	entries []store.ActivityEntry
}

func (m *memActivity) InsertActivity(_ context.Context, entry store.ActivityEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memActivity) ListRecentActivity(_ context.Context, limit int) ([]store.ActivityEntry, error) {
	if len(m.entries) > limit {
		return m.entries[:limit], nil
	}
	return m.entries, nil
}

type fakeRebuilder struct {
	calls int
	err   error
}

func (f *fakeRebuilder) Rebuild(context.Context) error {
	f.calls++
	return f.err
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(context.Context) {
	f.calls++
}

type testFixture struct {
	server      *Server
	settings    *memSettings
	rebuilder   *fakeRebuilder
	invalidator *fakeInvalidator
}

func newTestServer(t *testing.T) *testFixture {
	t.Helper()

	fx := &testFixture{
		settings:    newMemSettings(),
		rebuilder:   &fakeRebuilder{},
		invalidator: &fakeInvalidator{},
	}

	srv, err := New(Deps{
		Config: config.ServerConfig{
			Port:       0,
			AdminToken: testToken,
		},
		Settings:   fx.settings,
		Activities: &memActivity{},
		Manager:    fx.rebuilder,
		Catalog:    fx.invalidator,
		Logger:     logger.NewNopLogger(),
	})
	require.NoError(t, err)

	fx.server = srv
	return fx
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:12345"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsAreUnauthenticated(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, fx.server.Handler(), http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAPIRequiresToken(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodGet, "/api/v1/settings/telegram", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, fx.server.Handler(), http.MethodGet, "/api/v1/settings/telegram", "wrong-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAPIUnavailableWithoutConfiguredToken(t *testing.T) {
	srv, err := New(Deps{
		Config:   config.ServerConfig{},
		Settings: newMemSettings(),
		Logger:   logger.NewNopLogger(),
	})
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/settings/telegram", testToken, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetSetting(t *testing.T) {
	fx := newTestServer(t)
	fx.settings.values["telegram"] = json.RawMessage(`{"bot_token":"123:abc"}`)

	rec := do(t, fx.server.Handler(), http.MethodGet, "/api/v1/settings/telegram", testToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp settingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "telegram", resp.Name)
	assert.JSONEq(t, `{"bot_token":"123:abc"}`, string(resp.Data))
}

func TestGetSettingNotFound(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodGet, "/api/v1/settings/commerce", testToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUnknownSettingRejected(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodGet, "/api/v1/settings/nonsense", testToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutTelegramSettingTriggersRebuild(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodPut, "/api/v1/settings/telegram", testToken,
		`{"bot_token":"456:def"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp putSettingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Saved)
	assert.True(t, resp.Rebuilt)
	assert.Equal(t, 1, fx.rebuilder.calls)
	assert.JSONEq(t, `{"bot_token":"456:def"}`, string(fx.settings.values["telegram"]))
}

func TestPutCommerceSettingDoesNotRebuild(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodPut, "/api/v1/settings/commerce", testToken,
		`{"store_url":"https://shop.example.com","consumer_key":"ck","consumer_secret":"cs"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, fx.rebuilder.calls)
}

func TestPutSettingRejectsMalformedPayload(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodPut, "/api/v1/settings/telegram", testToken,
		`{"unknown_field":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, fx.rebuilder.calls)
}

func TestPutSettingSavedEvenWhenRebuildFails(t *testing.T) {
	fx := newTestServer(t)
	fx.rebuilder.err = errors.New("bad token")

	rec := do(t, fx.server.Handler(), http.MethodPut, "/api/v1/settings/telegram", testToken,
		`{"bot_token":"789:ghi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"bot_token":"789:ghi"}`, string(fx.settings.values["telegram"]),
		"the setting persists so a corrected rebuild can pick it up")
}

func TestInvalidateCache(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodPost, "/api/v1/cache/invalidate", testToken, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, fx.invalidator.calls)
}

func TestListActivityLimitValidation(t *testing.T) {
	fx := newTestServer(t)

	rec := do(t, fx.server.Handler(), http.MethodGet, "/api/v1/activity?limit=0", testToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, fx.server.Handler(), http.MethodGet, "/api/v1/activity?limit=10", testToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFailedAuthIsRateLimited(t *testing.T) {
	settings := newMemSettings()
	srv, err := New(Deps{
		Config: config.ServerConfig{AdminToken: testToken},
		RateLimit: config.RateLimitConfig{
			LoginAttempts: 2,
			LoginWindow:   time.Hour,
		},
		Settings: settings,
		Logger:   logger.NewNopLogger(),
	})
	require.NoError(t, err)

	h := srv.Handler()
	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/api/v1/settings/telegram", "wrong", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/settings/telegram", "wrong", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRunClosesLimitersOnListenFailure(t *testing.T) {
	srv, err := New(Deps{
		Config: config.ServerConfig{AdminToken: testToken},
		RateLimit: config.RateLimitConfig{
			APIPerMinute:  10,
			LoginAttempts: 2,
			LoginWindow:   time.Hour,
		},
		Settings: newMemSettings(),
		Logger:   logger.NewNopLogger(),
	})
	require.NoError(t, err)

	// TEST-NET address, cannot be bound locally.
	srv.httpServer.Addr = "203.0.113.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.Error(t, srv.Run(ctx))
	assert.True(t, srv.apiLimiter.Closed())
	assert.True(t, srv.authLimiter.Closed())
}
