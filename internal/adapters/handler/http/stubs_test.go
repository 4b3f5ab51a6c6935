package http

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/fintrack/internal/adapters/ratelimit"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

const validToken = "valid-session"

var sessionUserID = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

type stubAuth struct {
	ports.AuthService
	register    func(ports.RegisterInput) (*ports.AuthResult, error)
	login       func(ports.LoginInput) (*ports.AuthResult, error)
	forgot      func(string) error
	reset       func(string, string) error
	changeEmail func(ports.ChangeEmailInput) (string, error)
	loggedOut   []uuid.UUID
}

func (s *stubAuth) Register(_ context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.register(in)
}

func (s *stubAuth) Login(_ context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	return s.login(in)
}

func (s *stubAuth) Logout(_ context.Context, id uuid.UUID) error {
	s.loggedOut = append(s.loggedOut, id)
	return nil
}

func (s *stubAuth) CheckSession(_ context.Context, token string) (*domain.Session, error) {
	if token != validToken {
		return nil, domain.ErrNotAuthenticated
	}
	return &domain.Session{UserID: sessionUserID, Username: "alice"}, nil
}

func (s *stubAuth) ForgotPassword(_ context.Context, username string) error {
	return s.forgot(username)
}

func (s *stubAuth) ResetPassword(_ context.Context, token, password string) error {
	return s.reset(token, password)
}

func (s *stubAuth) ChangeEmail(_ context.Context, in ports.ChangeEmailInput) (string, error) {
	return s.changeEmail(in)
}

type stubUsers struct {
	ports.UserService
	search func(string) (*domain.PublicUser, error)
}

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.PublicUser, error) {
	return &domain.PublicUser{ID: id, Username: "alice", DisplayName: "Alice"}, nil
}

func (s *stubUsers) GetMaskedEmail(context.Context, uuid.UUID) (string, error) {
	return "a***@example.com", nil
}

func (s *stubUsers) SearchByUsername(_ context.Context, username string) (*domain.PublicUser, error) {
	return s.search(username)
}

type stubWorkspaces struct {
	ports.WorkspaceService
	summary func(uuid.UUID, uuid.UUID) (*ports.WorkspaceSummary, error)
	shared  []ports.ShareWorkspaceInput
}

func (s *stubWorkspaces) List(context.Context, uuid.UUID) ([]domain.Membership, error) {
	return nil, nil
}

func (s *stubWorkspaces) Summary(_ context.Context, userID, workspaceID uuid.UUID) (*ports.WorkspaceSummary, error) {
	return s.summary(userID, workspaceID)
}

func (s *stubWorkspaces) Share(_ context.Context, in ports.ShareWorkspaceInput) error {
	s.shared = append(s.shared, in)
	return nil
}

type stubItems struct {
	ports.ItemService
	created []ports.CreateItemInput
	updated []ports.UpdateItemInput
}

func (s *stubItems) Create(_ context.Context, in ports.CreateItemInput) (*domain.Item, error) {
	s.created = append(s.created, in)
	return &domain.Item{ID: uuid.New(), WorkspaceID: in.WorkspaceID, Type: in.Type, Label: in.Label, Amount: in.Amount, DayOfMonth: in.DayOfMonth}, nil
}

func (s *stubItems) Update(_ context.Context, in ports.UpdateItemInput) (*domain.Item, error) {
	s.updated = append(s.updated, in)
	if in.ItemID == uuid.Nil {
		return nil, domain.ErrItemNotFound
	}
	return &domain.Item{ID: in.ItemID, WorkspaceID: in.WorkspaceID}, nil
}

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (l *stubLimiter) Allow(_ context.Context, rule ratelimit.Rule, key string) (ratelimit.Decision, error) {
	l.keys = append(l.keys, rule.Name+":"+key)
	return l.decision, l.err
}

func allowAll() *stubLimiter {
	return &stubLimiter{decision: ratelimit.Decision{Allowed: true}}
}

func denyAll(retryAfter time.Duration) *stubLimiter {
	return &stubLimiter{decision: ratelimit.Decision{RetryAfter: retryAfter}}
}
