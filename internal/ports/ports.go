package ports

import (
	"context"

	"dovita-portal/internal/domain"
)

type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	Debug(ctx context.Context, msg string, args ...any)
}

// AuthProvider is the managed platform's auth SDK surface. Session and User
// are point-in-time checks that may fail transiently while the provider is
// still hydrating; callers that need a reliable answer poll through the
// session oracle instead of calling these once.
type AuthProvider interface {
	Session(ctx context.Context) (domain.Session, error)
	User(ctx context.Context) (domain.User, error)
	SignInWithOTP(ctx context.Context, email string) error
	ResetPasswordForEmail(ctx context.Context, email string) error
	// Subscribe registers a callback for auth-state changes and returns an
	// unsubscribe handle. Callbacks must not call back into the provider
	// synchronously; consumers defer their side effects.
	Subscribe(fn func(domain.AuthEvent)) (unsubscribe func())
	// Emit feeds a raw auth-state change into the subscriber fan-out. The
	// platform delivers these as webhooks; the HTTP layer forwards them here.
	Emit(raw, userID string)
}

// IdentityStore is the platform's row store for user provisioning and
// authorization data. Ensure operations are idempotent upserts.
type IdentityStore interface {
	EnsureProfile(ctx context.Context, userID, email string) error
	EnsureDefaultRole(ctx context.Context, userID string) error
	RolesByUser(ctx context.Context, userID string) ([]domain.Role, error)
	PermissionsByUser(ctx context.Context, userID string) ([]domain.ModulePermission, error)
	AssignRole(ctx context.Context, userID string, role domain.Role) error
	UpsertPermission(ctx context.Context, perm domain.ModulePermission) error
}

// PermissionStore is the durable slot for the last-known-good permission
// set. Absence or corruption of the stored value reads as "no cached value",
// never as an error that blocks startup.
type PermissionStore interface {
	Read(ctx context.Context) ([]domain.ModulePermission, bool, error)
	Write(ctx context.Context, perms []domain.ModulePermission) error
	Delete(ctx context.Context) error
}

// EphemeralStore holds browser-session-equivalent client state that a
// sign-out wipes: the active project selection and the preview-mode flag.
type EphemeralStore interface {
	SetActiveProject(ctx context.Context, projectID string) error
	ActiveProject(ctx context.Context) (string, error)
	SetPreviewMode(ctx context.Context, enabled bool) error
	PreviewMode(ctx context.Context) (bool, error)
	ClearClientState(ctx context.Context) error
}
