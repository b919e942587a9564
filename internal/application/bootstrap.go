package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dovita-portal/internal/domain"
	"dovita-portal/internal/ports"
)

// DefaultMaxRetries is the number of bootstrap attempts before giving up.
const DefaultMaxRetries = 3

// backoffDelays is the wait schedule between failed attempts: increasing but
// capped, not pure exponential.
var backoffDelays = []time.Duration{
	250 * time.Millisecond,
	750 * time.Millisecond,
	1500 * time.Millisecond,
}

type bootstrapState int

const (
	stateNotStarted bootstrapState = iota
	stateAttempting
	stateSucceeded
	stateFailed
)

func (s bootstrapState) String() string {
	switch s {
	case stateAttempting:
		return "attempting"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// Sequencer runs the once-per-sign-in provisioning and authorization load:
// ensure profile, ensure default role, fetch roles, fetch permissions. The
// ensure steps are idempotent upserts whose failure is usually a harmless
// race, so they never abort an attempt; the two reads are authoritative and
// their failure retries the whole attempt.
type Sequencer struct {
	oracle   *SessionOracle
	identity ports.IdentityStore
	logger   ports.Logger

	maxRetries int
	sleep      func(ctx context.Context, d time.Duration)
}

func NewSequencer(oracle *SessionOracle, identity ports.IdentityStore, logger ports.Logger) *Sequencer {
	return &Sequencer{
		oracle:     oracle,
		identity:   identity,
		logger:     logger,
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
	}
}

// WithMaxRetries overrides the attempt count. Values below one are clamped.
func (s *Sequencer) WithMaxRetries(n int) *Sequencer {
	if n < 1 {
		n = 1
	}
	s.maxRetries = n
	return s
}

// Bootstrap never returns an error: every outcome is a BootstrapResult.
// Without a resolvable session it short-circuits immediately, since retrying
// cannot succeed.
func (s *Sequencer) Bootstrap(ctx context.Context) domain.BootstrapResult {
	sess := s.oracle.SessionOrNil(ctx)
	if sess == nil {
		return domain.BootstrapResult{
			OK:          false,
			Roles:       []domain.Role{},
			Permissions: []domain.ModulePermission{},
			Reason:      domain.ReasonNoSession,
		}
	}

	runID := uuid.NewString()
	state := stateNotStarted
	s.logger.Debug(ctx, "bootstrap starting",
		"run_id", runID, "state", state.String(), "user_id", sess.UserID)
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		state = stateAttempting
		roles, perms, err := s.attempt(ctx, sess.UserID, sess.Email)
		if err == nil {
			state = stateSucceeded
			s.logger.Info(ctx, "bootstrap complete",
				"run_id", runID, "state", state.String(), "attempt", attempt+1,
				"roles", len(roles), "permissions", len(perms))
			return domain.BootstrapResult{OK: true, Roles: roles, Permissions: perms}
		}
		s.logger.Warn(ctx, "bootstrap attempt failed",
			"run_id", runID, "state", state.String(), "attempt", attempt+1, "error", err)
		if attempt < s.maxRetries-1 {
			s.sleep(ctx, backoffDelay(attempt))
		}
	}

	state = stateFailed
	s.logger.Error(ctx, "bootstrap exhausted retries",
		"run_id", runID, "state", state.String(), "attempts", s.maxRetries)
	return domain.BootstrapResult{
		OK:          false,
		Roles:       []domain.Role{},
		Permissions: []domain.ModulePermission{},
		Reason:      domain.ReasonBootstrapFailed,
	}
}

func (s *Sequencer) attempt(ctx context.Context, userID, email string) ([]domain.Role, []domain.ModulePermission, error) {
	// Ensure steps: most failures here mean "already ensured", possibly by a
	// concurrent bootstrap, so they must not block the authoritative reads.
	if err := s.identity.EnsureProfile(ctx, userID, email); err != nil {
		s.logger.Warn(ctx, "ensure profile failed", "user_id", userID, "error", err)
	}
	if err := s.identity.EnsureDefaultRole(ctx, userID); err != nil {
		s.logger.Warn(ctx, "ensure default role failed", "user_id", userID, "error", err)
	}

	roles, err := s.identity.RolesByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load roles: %w", err)
	}
	perms, err := s.identity.PermissionsByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load permissions: %w", err)
	}
	return roles, perms, nil
}

func backoffDelay(attempt int) time.Duration {
	if attempt >= len(backoffDelays) {
		return backoffDelays[len(backoffDelays)-1]
	}
	return backoffDelays[attempt]
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
