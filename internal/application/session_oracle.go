package application

import (
	"context"
	"time"

	"dovita-portal/internal/domain"
	"dovita-portal/internal/ports"
)

const (
	// DefaultSessionWait bounds WaitForSession when the caller passes no
	// explicit timeout.
	DefaultSessionWait = 20 * time.Second

	sessionPollInterval = 300 * time.Millisecond
)

// SessionOracle answers "is there a valid session" with bounded polling.
// The provider hydrates asynchronously and can report no session right
// after startup even though one exists, so a single point check produces
// false negatives.
type SessionOracle struct {
	provider ports.AuthProvider
	logger   ports.Logger
	interval time.Duration
}

func NewSessionOracle(provider ports.AuthProvider, logger ports.Logger) *SessionOracle {
	return &SessionOracle{provider: provider, logger: logger, interval: sessionPollInterval}
}

// WaitForSession polls the provider until a session appears or timeout
// elapses. nil means "could not confirm", not "definitely unauthenticated";
// callers offer a retry path instead of a hard denial. Provider failures are
// logged and treated as "not yet available". Never returns an error.
func (o *SessionOracle) WaitForSession(ctx context.Context, timeout time.Duration) *domain.Session {
	if timeout <= 0 {
		timeout = DefaultSessionWait
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		if sess := o.SessionOrNil(ctx); sess != nil {
			return sess
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			o.logger.Warn(ctx, "session not confirmed before timeout", "timeout", timeout.String())
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// SessionOrNil is a single non-polling point check. A false negative is
// tolerable for its callers.
func (o *SessionOracle) SessionOrNil(ctx context.Context) *domain.Session {
	sess, err := o.provider.Session(ctx)
	if err != nil {
		o.logger.Debug(ctx, "session check failed", "error", err)
		return nil
	}
	if !sess.Valid() {
		return nil
	}
	return &sess
}

// UserIDOrEmpty is the best-effort identity lookup used where attaching an
// author id is optional.
func (o *SessionOracle) UserIDOrEmpty(ctx context.Context) string {
	if sess := o.SessionOrNil(ctx); sess != nil {
		return sess.UserID
	}
	return ""
}
