package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/fintrack/internal/core/domain"
	"github.com/vncsmyrnk/fintrack/internal/core/ports"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]*domain.User{}}
}

func (r *fakeUserRepo) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) FindUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetUserTokenVersion(_ context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return u.TokenVersion, nil
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return &domain.UniqueViolationError{Constraint: domain.ConstraintUsersUsername}
		}
		if u.EmailHash != nil && user.EmailHash != nil && *u.EmailHash == *user.EmailHash {
			return &domain.UniqueViolationError{Constraint: domain.ConstraintUsersEmailHash}
		}
	}
	cp := *user
	cp.CreatedAt = time.Now()
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) IncrementTokenVersion(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.TokenVersion++
	return nil
}

func (r *fakeUserRepo) UpdatePasswordAndInvalidateSessions(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.TokenVersion++
	return nil
}

func (r *fakeUserRepo) UpdateEmail(_ context.Context, id uuid.UUID, emailHash, emailEncrypted string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for otherID, u := range r.users {
		if otherID != id && u.EmailHash != nil && *u.EmailHash == emailHash {
			return &domain.UniqueViolationError{Constraint: domain.ConstraintUsersEmailHash}
		}
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.EmailHash = &emailHash
	u.EmailEncrypted = &emailEncrypted
	return nil
}

type fakeResetTokenRepo struct {
	mu     sync.Mutex
	users  *fakeUserRepo
	tokens map[uuid.UUID]*domain.PasswordResetToken
	now    func() time.Time
}

func newFakeResetTokenRepo(users *fakeUserRepo) *fakeResetTokenRepo {
	return &fakeResetTokenRepo{users: users, tokens: map[uuid.UUID]*domain.PasswordResetToken{}, now: time.Now}
}

func (r *fakeResetTokenRepo) CreatePasswordResetToken(_ context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, t := range r.tokens {
		if t.UserID == token.UserID && t.UsedAt == nil {
			t.UsedAt = &now
		}
	}
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *fakeResetTokenRepo) FindValidResetToken(_ context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash && t.Usable(r.now()) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrResetTokenNotFound
}

func (r *fakeResetTokenRepo) MarkResetTokenUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return domain.ErrResetTokenNotFound
	}
	now := r.now()
	t.UsedAt = &now
	return nil
}

func (r *fakeResetTokenRepo) ConsumeResetToken(ctx context.Context, tokenID, userID uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok || !t.Usable(r.now()) {
		return domain.ErrInvalidOrExpiredToken
	}
	if err := r.users.UpdatePasswordAndInvalidateSessions(ctx, userID, passwordHash); err != nil {
		return err
	}
	now := r.now()
	t.UsedAt = &now
	return nil
}

func (r *fakeResetTokenRepo) all() []*domain.PasswordResetToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.PasswordResetToken, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	return out
}

type sentEmail struct {
	to  string
	url string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{to: to, url: resetURL})
	return nil
}

type fakeWorkspaceRepo struct {
	mu         sync.Mutex
	workspaces map[uuid.UUID]*domain.Workspace
	members    map[uuid.UUID]map[uuid.UUID]domain.Permission
	listErr    error
	cycleErr   error
}

func newFakeWorkspaceRepo() *fakeWorkspaceRepo {
	return &fakeWorkspaceRepo{
		workspaces: map[uuid.UUID]*domain.Workspace{},
		members:    map[uuid.UUID]map[uuid.UUID]domain.Permission{},
	}
}

func (r *fakeWorkspaceRepo) add(ws *domain.Workspace, owner uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces[ws.ID] = ws
	r.members[ws.ID] = map[uuid.UUID]domain.Permission{owner: domain.PermissionOwner}
}

func (r *fakeWorkspaceRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Membership
	for wsID, members := range r.members {
		if p, ok := members[userID]; ok {
			out = append(out, domain.Membership{Workspace: *r.workspaces[wsID], Permission: p})
		}
	}
	return out, nil
}

func (r *fakeWorkspaceRepo) GetPermission(_ context.Context, workspaceID, userID uuid.UUID) (domain.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[workspaceID][userID]
	if !ok {
		return "", domain.ErrWorkspaceNotFound
	}
	return p, nil
}

func (r *fakeWorkspaceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return nil, domain.ErrWorkspaceNotFound
	}
	cp := *ws
	return &cp, nil
}

func (r *fakeWorkspaceRepo) ListIDsWithCycle(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var ids []uuid.UUID
	for id, ws := range r.workspaces {
		if ws.HasCycle() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *fakeWorkspaceRepo) UpdateBalance(_ context.Context, id uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	if !ok {
		return domain.ErrWorkspaceNotFound
	}
	ws.Balance = balance
	return nil
}

func (r *fakeWorkspaceRepo) setCycleDays(id uuid.UUID, days domain.CycleDays) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cycleErr != nil {
		return r.cycleErr
	}
	ws, ok := r.workspaces[id]
	if !ok {
		return domain.ErrWorkspaceNotFound
	}
	ws.CycleStartDay = days.StartDay
	ws.CycleEndDay = days.EndDay
	return nil
}

func (r *fakeWorkspaceRepo) AddMember(_ context.Context, workspaceID, userID uuid.UUID, permission domain.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.members[workspaceID]
	if !ok {
		return domain.ErrWorkspaceNotFound
	}
	if _, exists := members[userID]; exists {
		return &domain.UniqueViolationError{Constraint: "workspace_members_pkey"}
	}
	members[userID] = permission
	return nil
}

// fakeItemRepo recomputes the workspace cycle days on every mutation and
// keeps the previous state when that fails, like the transactional repository.
type fakeItemRepo struct {
	mu         sync.Mutex
	items      map[uuid.UUID]*domain.Item
	workspaces *fakeWorkspaceRepo
}

func newFakeItemRepo(workspaces *fakeWorkspaceRepo) *fakeItemRepo {
	return &fakeItemRepo{items: map[uuid.UUID]*domain.Item{}, workspaces: workspaces}
}

func (r *fakeItemRepo) ListByWorkspace(_ context.Context, workspaceID uuid.UUID) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(workspaceID), nil
}

func (r *fakeItemRepo) list(workspaceID uuid.UUID) []domain.Item {
	var out []domain.Item
	for _, it := range r.items {
		if it.WorkspaceID == workspaceID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfMonth < out[j].DayOfMonth })
	return out
}

func (r *fakeItemRepo) Get(_ context.Context, workspaceID, itemID uuid.UUID) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.WorkspaceID != workspaceID {
		return nil, domain.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *fakeItemRepo) Create(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *item
	return r.mutate(item.WorkspaceID, func() { r.items[item.ID] = &cp })
}

func (r *fakeItemRepo) Update(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return domain.ErrItemNotFound
	}
	cp := *item
	return r.mutate(item.WorkspaceID, func() { r.items[item.ID] = &cp })
}

func (r *fakeItemRepo) Delete(_ context.Context, workspaceID, itemID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.WorkspaceID != workspaceID {
		return domain.ErrItemNotFound
	}
	return r.mutate(workspaceID, func() { delete(r.items, itemID) })
}

// mutate must be called with r.mu held.
func (r *fakeItemRepo) mutate(workspaceID uuid.UUID, apply func()) error {
	snapshot := make(map[uuid.UUID]*domain.Item, len(r.items))
	for id, it := range r.items {
		snapshot[id] = it
	}

	apply()
	if err := r.workspaces.setCycleDays(workspaceID, domain.CalculateCycleDays(r.list(workspaceID))); err != nil {
		r.items = snapshot
		return err
	}
	return nil
}

// fakeCycleRepo serializes archives with a single mutex, standing in for the row lock.
type fakeCycleRepo struct {
	mu         sync.Mutex
	workspaces *fakeWorkspaceRepo
	items      *fakeItemRepo
	cycles     []domain.CompletedCycle
	failFor    map[uuid.UUID]error
}

func newFakeCycleRepo(ws *fakeWorkspaceRepo, items *fakeItemRepo) *fakeCycleRepo {
	return &fakeCycleRepo{workspaces: ws, items: items, failFor: map[uuid.UUID]error{}}
}

func (r *fakeCycleRepo) ArchiveCycleIfNeeded(ctx context.Context, workspaceID uuid.UUID, decide ports.ArchiveDecider) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[workspaceID]; err != nil {
		return false, err
	}

	ws, err := r.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	items, _ := r.items.ListByWorkspace(ctx, workspaceID)

	cycle, ok := decide(ws, items)
	if !ok {
		return false, nil
	}
	r.cycles = append(r.cycles, *cycle)

	r.items.mu.Lock()
	for _, it := range r.items.items {
		if it.WorkspaceID == workspaceID {
			it.IsPaid = false
		}
	}
	r.items.mu.Unlock()
	return true, nil
}

func (r *fakeCycleRepo) ListCompletedCycles(_ context.Context, workspaceID uuid.UUID) ([]domain.CompletedCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CompletedCycle
	for i := len(r.cycles) - 1; i >= 0; i-- {
		if r.cycles[i].WorkspaceID == workspaceID {
			out = append(out, r.cycles[i])
		}
	}
	return out, nil
}

var errDatabaseDown = errors.New("database down")
