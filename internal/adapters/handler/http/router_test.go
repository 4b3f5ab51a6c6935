package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/fintrack/internal/adapters/ratelimit"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
	"github.com/vncsmyrnk/fintrack/internal/logging"
)

const testCSRFToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type testRouter struct {
	handler    http.Handler
	auth       *stubAuth
	users      *stubUsers
	workspaces *stubWorkspaces
	items      *stubItems
	limiter    *stubLimiter
	trustProxy bool
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()
	tr := &testRouter{
		auth:       &stubAuth{},
		users:      &stubUsers{},
		workspaces: &stubWorkspaces{},
		items:      &stubItems{},
		limiter:    allowAll(),
	}
	tr.build()
	return tr
}

func (tr *testRouter) build() {
	tr.handler = NewHandler(
		RouterConfig{
			Session:           SessionCookie{Name: "session", Secure: true, MaxAge: 24 * time.Hour},
			CSRFCookieName:    "csrf_token",
			AllowedOrigins:    []string{"https://money.example.com"},
			TrustProxyHeaders: tr.trustProxy,
		},
		Services{Auth: tr.auth, Users: tr.users, Workspaces: tr.workspaces, Items: tr.items},
		tr.limiter,
		logging.Discard(),
	)
}

// do sends a request carrying a matching CSRF cookie and header. authed adds
// a valid session cookie.
func (tr *testRouter) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	if authed {
		req.AddCookie(&http.Cookie{Name: "session", Value: validToken})
	}
	rec := httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthz_IssuesCSRFCookie(t *testing.T) {
	tr := newTestRouter(t)

	rec := httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(rec, "csrf_token")
	require.NotNil(t, cookie)
	assert.Len(t, cookie.Value, 64)
	assert.False(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
}

func TestCSRF_KeepsExistingCookie(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/api/auth/csrf", "", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec, "csrf_token"))
	assert.JSONEq(t, `{"csrfToken":"`+testCSRFToken+`"}`, string(decode(t, rec).Data))
}

func TestCSRF_RejectsMutatingRequestsWithoutMatchingHeader(t *testing.T) {
	tr := newTestRouter(t)

	for name, header := range map[string]string{"missing": "", "mismatch": strings.Repeat("f", 64)} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
			req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
			if header != "" {
				req.Header.Set("X-CSRF-Token", header)
			}
			rec := httptest.NewRecorder()
			tr.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "Invalid CSRF token", decode(t, rec).Error)
		})
	}
}

func TestCSRF_SkipsSafeMethodsAndNonAPIPaths(t *testing.T) {
	csrf := NewCSRF("csrf_token", false)
	reached := 0
	h := csrf.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached++ }))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/workspaces", nil),
		httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil),
		httptest.NewRequest(http.MethodPost, "/webhooks/email", nil),
	} {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 3, reached)
}

func TestRegister_SetsSessionCookie(t *testing.T) {
	tr := newTestRouter(t)
	userID := uuid.New()
	tr.auth.register = func(in ports.RegisterInput) (*ports.AuthResult, error) {
		assert.Equal(t, "alice", in.Username)
		assert.Equal(t, "alice@example.com", in.Email)
		return &ports.AuthResult{User: domain.PublicUser{ID: userID, Username: "alice", DisplayName: "Alice"}, Token: "signed"}, nil
	}

	rec := tr.do(http.MethodPost, "/api/auth/register",
		`{"username":"alice","displayName":"Alice","password":"Secret123","email":"alice@example.com"}`, false)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"id":"`+userID.String()+`","username":"alice","displayName":"Alice"}`, string(env.Data))

	cookie := findCookie(rec, "session")
	require.NotNil(t, cookie)
	assert.Equal(t, "signed", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, 86400, cookie.MaxAge)
}

func TestRegister_Conflict(t *testing.T) {
	tr := newTestRouter(t)
	tr.auth.register = func(ports.RegisterInput) (*ports.AuthResult, error) {
		return nil, &domain.ConflictError{Message: "Username already taken"}
	}

	rec := tr.do(http.MethodPost, "/api/auth/register", `{"username":"alice"}`, false)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already taken", decode(t, rec).Error)
	assert.Nil(t, findCookie(rec, "session"))
}

func TestLogin(t *testing.T) {
	tr := newTestRouter(t)
	tr.auth.login = func(in ports.LoginInput) (*ports.AuthResult, error) {
		if in.Password != "Secret123" {
			return nil, domain.ErrInvalidCredentials
		}
		return &ports.AuthResult{User: domain.PublicUser{Username: in.Username}, Token: "signed"}, nil
	}

	tests := []struct {
		name   string
		body   string
		status int
		err    string
	}{
		{"missing fields", `{"username":"alice"}`, http.StatusBadRequest, "Username and password are required"},
		{"malformed body", `{"username":`, http.StatusBadRequest, "Invalid request body"},
		{"wrong password", `{"username":"alice","password":"nope"}`, http.StatusUnauthorized, "Invalid username or password"},
		{"success", `{"username":"alice","password":"Secret123"}`, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tr.do(http.MethodPost, "/api/auth/login", tt.body, false)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.err, decode(t, rec).Error)
		})
	}
}

func TestRateLimit_TooManyRequests(t *testing.T) {
	tr := newTestRouter(t)
	tr.limiter = denyAll(89200 * time.Millisecond)
	tr.build()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.RemoteAddr = "10.1.2.3:5555"
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	rec := httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many login attempts, please try again later", decode(t, rec).Error)
	assert.Equal(t, []string{"login:10.1.2.3"}, tr.limiter.keys)
}

func loginFrom(handler http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_IgnoresForwardedHeadersByDefault(t *testing.T) {
	handler := NewHandler(
		RouterConfig{Session: SessionCookie{Name: "session"}, CSRFCookieName: "csrf_token"},
		Services{Auth: &stubAuth{}, Users: &stubUsers{}, Workspaces: &stubWorkspaces{}, Items: &stubItems{}},
		ratelimit.NewMemoryLimiter(),
		logging.Discard(),
	)

	for i := 0; i < ratelimit.LoginRule.Limit; i++ {
		rec := loginFrom(handler, "203.0.113.7:4444", fmt.Sprintf("198.51.100.%d", i))
		require.Equal(t, http.StatusBadRequest, rec.Code, "attempt %d", i+1)
	}

	rec := loginFrom(handler, "203.0.113.7:4444", "198.51.100.200")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_UsesForwardedHeadersWhenTrusted(t *testing.T) {
	tr := newTestRouter(t)
	tr.trustProxy = true
	tr.build()

	loginFrom(tr.handler, "10.0.0.1:5555", "198.51.100.9")

	tr.trustProxy = false
	tr.build()

	loginFrom(tr.handler, "10.0.0.1:5555", "198.51.100.9")

	assert.Equal(t, []string{"login:198.51.100.9", "login:10.0.0.1"}, tr.limiter.keys)
}

func TestRateLimit_FailsClosed(t *testing.T) {
	tr := newTestRouter(t)
	tr.limiter = &stubLimiter{err: errors.New("redis: connection refused")}
	tr.build()

	rec := tr.do(http.MethodPost, "/api/auth/forgot-password", `{"username":"alice"}`, false)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestForgotPassword_AlwaysSucceeds(t *testing.T) {
	tr := newTestRouter(t)
	tr.auth.forgot = func(username string) error {
		if username == "" {
			return domain.NewValidationError("Username is required")
		}
		return nil
	}

	rec := tr.do(http.MethodPost, "/api/auth/forgot-password", `{"username":"nobody"}`, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)

	rec = tr.do(http.MethodPost, "/api/auth/forgot-password", `{}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username is required", decode(t, rec).Error)
}

func TestResetPassword(t *testing.T) {
	tr := newTestRouter(t)
	tr.auth.reset = func(token, _ string) error {
		if token != "good" {
			return domain.ErrInvalidOrExpiredToken
		}
		return nil
	}

	rec := tr.do(http.MethodPost, "/api/auth/reset-password", `{"newPassword":"Secret123"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Reset token is required", decode(t, rec).Error)

	rec = tr.do(http.MethodPost, "/api/auth/reset-password", `{"token":"bad","newPassword":"Secret123"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired reset token", decode(t, rec).Error)

	rec = tr.do(http.MethodPost, "/api/auth/reset-password", `{"token":"good","newPassword":"Secret123"}`, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/api/auth/me", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", decode(t, rec).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "stale"})
	rec = httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = tr.do(http.MethodGet, "/api/auth/me", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), sessionUserID.String())
}

func TestLogout_ClearsCookie(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodPost, "/api/auth/logout", "", true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{sessionUserID}, tr.auth.loggedOut)
	cookie := findCookie(rec, "session")
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestSession(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/api/auth/session", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+sessionUserID.String()+`","username":"alice"}`, string(decode(t, rec).Data))

	rec = tr.do(http.MethodGet, "/api/auth/session", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserEmail(t *testing.T) {
	tr := newTestRouter(t)
	tr.auth.changeEmail = func(in ports.ChangeEmailInput) (string, error) {
		if in.CurrentPassword != "Secret123" {
			return "", domain.ErrInvalidCredentials
		}
		return "b***@example.com", nil
	}

	rec := tr.do(http.MethodGet, "/api/users/me/email", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"maskedEmail":"a***@example.com"}`, string(decode(t, rec).Data))

	rec = tr.do(http.MethodPut, "/api/users/me/email", `{"newEmail":"bob@example.com"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is required", decode(t, rec).Error)

	rec = tr.do(http.MethodPut, "/api/users/me/email", `{"currentPassword":"wrong","newEmail":"bob@example.com"}`, true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Current password is incorrect", decode(t, rec).Error)

	rec = tr.do(http.MethodPut, "/api/users/me/email", `{"currentPassword":"Secret123","newEmail":"bob@example.com"}`, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"maskedEmail":"b***@example.com"}`, string(decode(t, rec).Data))
}

func TestUserSearch(t *testing.T) {
	tr := newTestRouter(t)
	bob := domain.PublicUser{ID: uuid.New(), Username: "bob", DisplayName: "Bob"}
	tr.users.search = func(username string) (*domain.PublicUser, error) {
		if username == "bob" {
			return &bob, nil
		}
		return nil, domain.ErrUserNotFound
	}

	rec := tr.do(http.MethodGet, "/api/users/search?username=bob", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"username":"bob"`)

	rec = tr.do(http.MethodGet, "/api/users/search?username=carol", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, tr.limiter.keys[0], "user-search:")
}

func TestWorkspaceSummary(t *testing.T) {
	tr := newTestRouter(t)
	wsID := uuid.New()
	tr.workspaces.summary = func(userID, workspaceID uuid.UUID) (*ports.WorkspaceSummary, error) {
		assert.Equal(t, sessionUserID, userID)
		if workspaceID != wsID {
			return nil, domain.ErrWorkspaceNotFound
		}
		return &ports.WorkspaceSummary{
			Workspace:  domain.Workspace{ID: wsID, Name: "Personal", Balance: 100},
			Permission: domain.PermissionOwner,
			Cards:      domain.BalanceCards{CurrentBalance: 100, ExpectedBalance: 6100, DeficitExcess: 2000},
		}, nil
	}

	rec := tr.do(http.MethodGet, "/api/workspaces/"+wsID.String(), "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Cards domain.BalanceCards `json:"cards"`
		Items []domain.Item       `json:"items"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &summary))
	assert.Equal(t, int64(6100), summary.Cards.ExpectedBalance)
	assert.NotNil(t, summary.Items)

	rec = tr.do(http.MethodGet, "/api/workspaces/"+uuid.NewString(), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Workspace not found", decode(t, rec).Error)

	rec = tr.do(http.MethodGet, "/api/workspaces/not-a-uuid", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkspaceList_EmptyArray(t *testing.T) {
	tr := newTestRouter(t)

	rec := tr.do(http.MethodGet, "/api/workspaces", "", true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode(t, rec).Data))
}

func TestWorkspaceItems(t *testing.T) {
	tr := newTestRouter(t)
	wsID, itemID := uuid.New(), uuid.New()

	rec := tr.do(http.MethodPost, "/api/workspaces/"+wsID.String()+"/items",
		`{"type":"RENT","label":"Rent","amount":120000,"dayOfMonth":10}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, tr.items.created, 1)
	assert.Equal(t, ports.CreateItemInput{
		UserID: sessionUserID, WorkspaceID: wsID, Type: domain.ItemTypeRent, Label: "Rent", Amount: 120000, DayOfMonth: 10,
	}, tr.items.created[0])

	rec = tr.do(http.MethodPatch, "/api/workspaces/"+wsID.String()+"/items/"+itemID.String(), `{"isPaid":true}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, tr.items.updated, 1)
	update := tr.items.updated[0]
	require.NotNil(t, update.IsPaid)
	assert.True(t, *update.IsPaid)
	assert.Nil(t, update.Label)
	assert.Nil(t, update.Amount)

	rec = tr.do(http.MethodPatch, "/api/workspaces/"+wsID.String()+"/items/nope", `{"isPaid":true}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid item id", decode(t, rec).Error)
}

func TestWorkspaceShare(t *testing.T) {
	tr := newTestRouter(t)
	wsID := uuid.New()

	rec := tr.do(http.MethodPost, "/api/workspaces/"+wsID.String()+"/members", `{"username":"bob","permission":"VIEWER"}`, true)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, tr.workspaces.shared, 1)
	assert.Equal(t, domain.PermissionViewer, tr.workspaces.shared[0].Permission)
	assert.Equal(t, sessionUserID, tr.workspaces.shared[0].OwnerID)
}

func TestWriteError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)

	writeError(rec, req, logging.Discard(), errors.New("pq: password authentication failed for user admin"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError("bad"), http.StatusBadRequest},
		{&domain.ConflictError{Message: "taken"}, http.StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrInvalidOrExpiredToken, http.StatusBadRequest},
		{domain.ErrNotAuthenticated, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrItemNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), logging.Discard(), tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
	}
}
