package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw-com/nw-patrol/internal/domain"
)

const testIdentityID = "9a3e6c1d-2b4f-4e8a-9c7d-5f6a7b8c9d0e"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, handler http.Handler) *KratosGateway {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := NewKratosGateway(server.URL, server.URL, "default", 2*time.Second, testLogger())
	require.NoError(t, err)
	return gw
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func identityJSON(id string, traits map[string]any, state string) map[string]any {
	return map[string]any{
		"id":         id,
		"schema_id":  "default",
		"schema_url": "http://kratos/schemas/default",
		"state":      state,
		"traits":     traits,
	}
}

func kratosError(code int, status, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    code,
			"status":  status,
			"message": message,
		},
	}
}

func TestNewKratosGateway_InvalidURL(t *testing.T) {
	_, err := NewKratosGateway("not a url", "http://kratos:4434", "default", time.Second, testLogger())
	assert.Error(t, err)

	_, err = NewKratosGateway("http://kratos:4433", "", "default", time.Second, testLogger())
	assert.Error(t, err)
}

func TestKratosGateway_VerifyToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		status   int
		body     any
		wantID   string
		wantErr  error
	}{
		{
			name:   "active session",
			token:  "valid-token",
			status: http.StatusOK,
			body: map[string]any{
				"id":       "session-1",
				"active":   true,
				"identity": identityJSON(testIdentityID, map[string]any{"email": "a@example.com"}, "active"),
			},
			wantID: testIdentityID,
		},
		{
			name:   "inactive session",
			token:  "stale-token",
			status: http.StatusOK,
			body: map[string]any{
				"id":       "session-2",
				"active":   false,
				"identity": identityJSON(testIdentityID, map[string]any{"email": "a@example.com"}, "active"),
			},
			wantErr: domain.ErrCredentialInvalid,
		},
		{
			name:    "unknown token",
			token:   "bogus",
			status:  http.StatusUnauthorized,
			body:    kratosError(401, "Unauthorized", "No valid session credentials found in the request."),
			wantErr: domain.ErrCredentialInvalid,
		},
		{
			name:    "kratos failing",
			token:   "valid-token",
			status:  http.StatusInternalServerError,
			body:    kratosError(500, "Internal Server Error", "boom"),
			wantErr: domain.ErrIdentityProviderUnavailable,
		},
		{
			name:    "empty token never reaches kratos",
			token:   "",
			wantErr: domain.ErrCredentialInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				assert.Equal(t, "/sessions/whoami", r.URL.Path)
				assert.Equal(t, tt.token, r.Header.Get("X-Session-Token"))
				writeJSON(w, tt.status, tt.body)
			}))

			caller, err := gw.VerifyToken(context.Background(), tt.token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, caller)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, caller.ID)
				assert.True(t, caller.IsAuthenticated)
			}
			if tt.token == "" {
				assert.Zero(t, calls)
			}
		})
	}
}

func TestKratosGateway_VerifyToken_Unreachable(t *testing.T) {
	gw, err := NewKratosGateway("http://127.0.0.1:1", "http://127.0.0.1:1", "default", time.Second, testLogger())
	require.NoError(t, err)

	_, err = gw.VerifyToken(context.Background(), "token")
	assert.ErrorIs(t, err, domain.ErrIdentityProviderUnavailable)
}

func TestKratosGateway_CreateAccount(t *testing.T) {
	var received map[string]any
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/identities", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(w, http.StatusCreated, identityJSON(testIdentityID, received["traits"].(map[string]any), "active"))
	}))

	record, err := gw.CreateAccount(context.Background(), domain.NewAccount{
		Email:       "new@example.com",
		Password:    "correct horse battery staple",
		DisplayName: "New Patroller",
	})
	require.NoError(t, err)

	assert.Equal(t, testIdentityID, record.ID)
	assert.Equal(t, "new@example.com", record.Email)
	assert.Equal(t, "default", received["schema_id"])
	assert.Equal(t, map[string]any{"email": "new@example.com", "name": "New Patroller"}, received["traits"])

	credentials := received["credentials"].(map[string]any)
	password := credentials["password"].(map[string]any)["config"].(map[string]any)
	assert.Equal(t, "correct horse battery staple", password["password"])
}

func TestKratosGateway_CreateAccount_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
	}{
		{
			name:    "email conflict",
			status:  http.StatusConflict,
			body:    kratosError(409, "Conflict", "A resource with that value exists already."),
			wantErr: domain.ErrEmailTaken,
		},
		{
			name:    "password policy",
			status:  http.StatusBadRequest,
			body:    kratosError(400, "Bad Request", "The password does not fulfill the password policy because it is too short."),
			wantErr: domain.ErrPasswordRejected,
		},
		{
			name:    "schema violation",
			status:  http.StatusBadRequest,
			body:    kratosError(400, "Bad Request", "I[#/traits/email] validation failed"),
			wantErr: domain.ErrIdentityRejected,
		},
		{
			name:    "server failure",
			status:  http.StatusInternalServerError,
			body:    kratosError(500, "Internal Server Error", "database is down"),
			wantErr: domain.ErrIdentityProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))

			record, err := gw.CreateAccount(context.Background(), domain.NewAccount{
				Email:       "dup@example.com",
				Password:    "pw",
				DisplayName: "Dup",
			})
			assert.Nil(t, record)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestKratosGateway_UpdateAccount(t *testing.T) {
	tests := []struct {
		name         string
		password     string
		state        string
		wantPassword bool
	}{
		{name: "name only keeps credentials untouched", state: "active"},
		{name: "password replaced", password: "new-secret-value", state: "active", wantPassword: true},
		{name: "inactive identity stays inactive", state: "inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var put map[string]any
			gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/admin/identities/"+testIdentityID, r.URL.Path)
				existing := identityJSON(testIdentityID, map[string]any{"email": "m@example.com", "name": "Old", "locale": "ja"}, tt.state)
				switch r.Method {
				case http.MethodGet:
					writeJSON(w, http.StatusOK, existing)
				case http.MethodPut:
					assert.NoError(t, json.NewDecoder(r.Body).Decode(&put))
					writeJSON(w, http.StatusOK, existing)
				default:
					t.Errorf("unexpected method %s", r.Method)
				}
			}))

			err := gw.UpdateAccount(context.Background(), testIdentityID, domain.AccountChanges{
				DisplayName: "Renamed",
				Password:    tt.password,
			})
			require.NoError(t, err)

			require.NotNil(t, put)
			assert.Equal(t, tt.state, put["state"])
			assert.Equal(t, map[string]any{"email": "m@example.com", "name": "Renamed", "locale": "ja"}, put["traits"])
			_, hasCredentials := put["credentials"]
			assert.Equal(t, tt.wantPassword, hasCredentials)
		})
	}
}

func TestKratosGateway_UpdateAccount_KeepsMetadata(t *testing.T) {
	var put map[string]any
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		existing := identityJSON(testIdentityID, map[string]any{"email": "m@example.com", "name": "Old"}, "active")
		existing["metadata_public"] = map[string]any{"role": "admin", "tenant_id": "t-1"}
		existing["metadata_admin"] = map[string]any{"note": "keep"}
		existing["external_id"] = "ext-42"
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, existing)
		case http.MethodPut:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			writeJSON(w, http.StatusOK, existing)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	err := gw.UpdateAccount(context.Background(), testIdentityID, domain.AccountChanges{DisplayName: "New"})
	require.NoError(t, err)

	require.NotNil(t, put)
	assert.Equal(t, map[string]any{"role": "admin", "tenant_id": "t-1"}, put["metadata_public"])
	assert.Equal(t, map[string]any{"note": "keep"}, put["metadata_admin"])
	assert.Equal(t, "ext-42", put["external_id"])
	assert.Equal(t, "New", put["traits"].(map[string]any)["name"])
}

func TestKratosGateway_UpdateAccount_NotFound(t *testing.T) {
	var puts int
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts++
		}
		writeJSON(w, http.StatusNotFound, kratosError(404, "Not Found", "Unable to locate the resource"))
	}))

	err := gw.UpdateAccount(context.Background(), testIdentityID, domain.AccountChanges{DisplayName: "X"})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Zero(t, puts)
}

func TestKratosGateway_DeleteAccount(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "deleted", status: http.StatusNoContent},
		{name: "unknown id", status: http.StatusNotFound, wantErr: domain.ErrAccountNotFound},
		{name: "server failure", status: http.StatusBadGateway, wantErr: domain.ErrIdentityProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/admin/identities/"+testIdentityID, r.URL.Path)
				if tt.status == http.StatusNoContent {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				writeJSON(w, tt.status, kratosError(tt.status, http.StatusText(tt.status), "failed"))
			}))

			err := gw.DeleteAccount(context.Background(), testIdentityID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKratosGateway_HealthCheck(t *testing.T) {
	healthy := true
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		if healthy {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"errors": map[string]any{"database": "down"}})
	}))

	assert.NoError(t, gw.HealthCheck(context.Background()))

	healthy = false
	assert.Error(t, gw.HealthCheck(context.Background()))
}

func TestClassifyIdentityError_NoResponse(t *testing.T) {
	err := classifyIdentityError(errors.New("dial tcp: connection refused"), nil)
	assert.ErrorIs(t, err, domain.ErrIdentityProviderUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}
