package application

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"dovita-portal/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (nopLogger) Debug(context.Context, string, ...any) {}

type providerMock struct{ mock.Mock }

func (m *providerMock) Session(ctx context.Context) (domain.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *providerMock) User(ctx context.Context) (domain.User, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *providerMock) SignInWithOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *providerMock) ResetPasswordForEmail(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *providerMock) Subscribe(fn func(domain.AuthEvent)) func() {
	m.Called(fn)
	return func() {}
}

func (m *providerMock) Emit(raw, userID string) {
	m.Called(raw, userID)
}

type identityMock struct{ mock.Mock }

func (m *identityMock) EnsureProfile(ctx context.Context, userID, email string) error {
	return m.Called(ctx, userID, email).Error(0)
}

func (m *identityMock) EnsureDefaultRole(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *identityMock) RolesByUser(ctx context.Context, userID string) ([]domain.Role, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Role), args.Error(1)
}

func (m *identityMock) PermissionsByUser(ctx context.Context, userID string) ([]domain.ModulePermission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ModulePermission), args.Error(1)
}

func (m *identityMock) AssignRole(ctx context.Context, userID string, role domain.Role) error {
	return m.Called(ctx, userID, role).Error(0)
}

func (m *identityMock) UpsertPermission(ctx context.Context, perm domain.ModulePermission) error {
	return m.Called(ctx, perm).Error(0)
}

// permStoreMem is an in-memory durable slot.
type permStoreMem struct {
	mu      sync.Mutex
	perms   []domain.ModulePermission
	present bool
	readErr error
}

func (s *permStoreMem) Read(context.Context) ([]domain.ModulePermission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, false, s.readErr
	}
	return s.perms, s.present, nil
}

func (s *permStoreMem) Write(_ context.Context, perms []domain.ModulePermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms = perms
	s.present = true
	return nil
}

func (s *permStoreMem) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms = nil
	s.present = false
	return nil
}

type ephemeralMem struct {
	mu      sync.Mutex
	project string
	preview bool
	cleared int
}

func (s *ephemeralMem) SetActiveProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = id
	return nil
}

func (s *ephemeralMem) ActiveProject(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project, nil
}

func (s *ephemeralMem) SetPreviewMode(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preview = on
	return nil
}

func (s *ephemeralMem) PreviewMode(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview, nil
}

func (s *ephemeralMem) ClearClientState(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = ""
	s.preview = false
	s.cleared++
	return nil
}
