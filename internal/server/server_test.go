package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw-com/nw-patrol/config"
	"github.com/nw-com/nw-patrol/internal/adapter/handler"
	"github.com/nw-com/nw-patrol/internal/domain"
	"github.com/nw-com/nw-patrol/metrics"
	"github.com/nw-com/nw-patrol/middleware"
)

type stubLifecycle struct {
	credential string
}

func (s *stubLifecycle) Authorize(_ context.Context, credential string) error {
	s.credential = credential
	if credential == "" {
		return domain.NewError(domain.KindUnauthenticated, "authentication required")
	}
	return nil
}

func (s *stubLifecycle) CreateUser(_ context.Context, credential string, _ domain.CreateUserInput) (*domain.CreateUserResult, error) {
	s.credential = credential
	if credential == "" {
		return nil, domain.NewError(domain.KindUnauthenticated, "authentication required")
	}
	return &domain.CreateUserResult{Success: true, AccountID: "3f1d2c4b-5a6e-4f70-8b9c-0d1e2f3a4b5c"}, nil
}

func (s *stubLifecycle) UpdateUser(_ context.Context, credential string, _ domain.UpdateUserInput) (*domain.Result, error) {
	s.credential = credential
	return &domain.Result{Success: true}, nil
}

func (s *stubLifecycle) DeleteUser(_ context.Context, credential string, _ domain.DeleteUserInput) (*domain.Result, error) {
	s.credential = credential
	return &domain.Result{Success: true}, nil
}

type okPinger struct{}

func (okPinger) HealthCheck(context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		AuthTokenMode:   config.TokenModeKratos,
		UpstreamTimeout: 10 * time.Second,
		EnableHSTS:      true,
	}
}

func newTestEcho(t *testing.T, uc handler.UserLifecycle, opts func(*Options)) *echo.Echo {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := Options{
		Config:    testConfig(),
		Lifecycle: uc,
		Checks:    map[string]handler.Pinger{"postgres": okPinger{}},
		Logger:    logger,
	}
	if opts != nil {
		opts(&o)
	}
	return New(o)
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestNew_AdminRoute(t *testing.T) {
	uc := &stubLifecycle{}
	e := newTestEcho(t, uc, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/users", strings.NewReader(`{"email":"a@example.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Session-Token", "session-token")
	rec := do(e, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "session-token", uc.credential)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestNew_BodyLimit(t *testing.T) {
	e := newTestEcho(t, &stubLifecycle{}, nil)

	big := `{"email":"` + strings.Repeat("a", 70*1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/users", strings.NewReader(big))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := do(e, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid-argument", body.Code)
}

func TestNew_UnknownRoute(t *testing.T) {
	e := newTestEcho(t, &stubLifecycle{}, nil)

	rec := do(e, httptest.NewRequest(http.MethodGet, "/v1/admin/nothing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not-found", body.Code)
}

func TestNew_RateLimitSparesProbes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := newTestEcho(t, &stubLifecycle{}, func(o *Options) {
		o.RateLimiter = middleware.NewRateLimiter(1, 1, logger)
	})

	for range 3 {
		assert.Equal(t, http.StatusOK, do(e, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	}

	first := do(e, httptest.NewRequest(http.MethodDelete, "/v1/admin/users/3f1d2c4b-5a6e-4f70-8b9c-0d1e2f3a4b5c", nil))
	second := do(e, httptest.NewRequest(http.MethodDelete, "/v1/admin/users/3f1d2c4b-5a6e-4f70-8b9c-0d1e2f3a4b5c", nil))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestNew_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	recorder.RecordOperation("create_user", "ok", 0.01)

	e := newTestEcho(t, &stubLifecycle{}, func(o *Options) {
		o.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	})

	rec := do(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `user_admin_operations_total{operation="create_user",outcome="ok"} 1`)
}

func TestNew_NoMetricsRoute(t *testing.T) {
	e := newTestEcho(t, &stubLifecycle{}, nil)
	assert.Equal(t, http.StatusNotFound, do(e, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestCredentialFor(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		headers map[string]string
		want    string
	}{
		{
			name:    "kratos bearer",
			cfg:     &config.Config{AuthTokenMode: config.TokenModeKratos},
			headers: map[string]string{"Authorization": "Bearer tok"},
			want:    "tok",
		},
		{
			name:    "kratos session header",
			cfg:     &config.Config{AuthTokenMode: config.TokenModeKratos},
			headers: map[string]string{"X-Session-Token": "tok"},
			want:    "tok",
		},
		{
			name:    "backend jwt header",
			cfg:     &config.Config{AuthTokenMode: config.TokenModeBackendJWT},
			headers: map[string]string{"X-Patrol-Backend-Token": "jwt"},
			want:    "jwt",
		},
		{
			name:    "pinned header ignores bearer",
			cfg:     &config.Config{AuthTokenMode: config.TokenModeKratos, AuthTokenHeader: "X-Admin-Token"},
			headers: map[string]string{"Authorization": "Bearer tok"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, CredentialFor(tt.cfg)(c))
		})
	}
}
