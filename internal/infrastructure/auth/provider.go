package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dovita-portal/internal/domain"
)

const jwksTTL = 15 * time.Minute

// TokenSource yields the current access token. Sources hydrate
// asynchronously: an empty token shortly after startup does not mean the
// principal is unauthenticated, which is why the session oracle polls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type StaticTokenSource struct{ Value string }

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return s.Value, nil
}

// FileTokenSource reads the token from a file kept fresh by an external
// refresher (mounted secret). A missing file reads as "not yet hydrated".
type FileTokenSource struct{ Path string }

func (s FileTokenSource) Token(context.Context) (string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Provider implements ports.AuthProvider against a Cognito-style identity
// platform: JWT sessions validated with the platform's JWKS, plus the OTP
// and password-recovery endpoints.
type Provider struct {
	baseURL string
	tokens  TokenSource
	cache   *jwkCache
	client  *http.Client

	mu      sync.Mutex
	subs    map[int]func(domain.AuthEvent)
	nextSub int
}

func NewProvider(baseURL string, tokens TokenSource) *Provider {
	baseURL = strings.TrimRight(baseURL, "/")
	client := &http.Client{Timeout: 10 * time.Second}
	return &Provider{
		baseURL: baseURL,
		tokens:  tokens,
		cache:   newJWKCache(baseURL+"/.well-known/jwks.json", jwksTTL, client),
		client:  client,
		subs:    map[int]func(domain.AuthEvent){},
	}
}

// Session validates the current token and reports the authenticated
// principal. An absent token maps to domain.ErrNoSession.
func (p *Provider) Session(ctx context.Context) (domain.Session, error) {
	tok, err := p.tokens.Token(ctx)
	if err != nil {
		return domain.Session{}, fmt.Errorf("read token: %w", err)
	}
	if tok == "" {
		return domain.Session{}, domain.ErrNoSession
	}
	claims, err := p.validate(tok)
	if err != nil {
		return domain.Session{}, err
	}
	sess := domain.Session{UserID: claims.sub, Email: claims.email}
	if claims.exp != nil {
		sess.ExpiresAt = *claims.exp
	}
	if sess.UserID == "" {
		return domain.Session{}, domain.ErrNoSession
	}
	return sess, nil
}

func (p *Provider) User(ctx context.Context) (domain.User, error) {
	sess, err := p.Session(ctx)
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: sess.UserID, Email: sess.Email}, nil
}

func (p *Provider) SignInWithOTP(ctx context.Context, email string) error {
	return p.post(ctx, "/otp", map[string]string{"email": email})
}

func (p *Provider) ResetPasswordForEmail(ctx context.Context, email string) error {
	return p.post(ctx, "/recover", map[string]string{"email": email})
}

func (p *Provider) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("auth provider %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// Subscribe registers a callback on the auth-state feed.
func (p *Provider) Subscribe(fn func(domain.AuthEvent)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Emit fans a raw provider event out to subscribers. Callbacks run on the
// emitter's goroutine; subscribers defer their own side effects.
func (p *Provider) Emit(raw, userID string) {
	ev := domain.ParseAuthEvent(raw, userID)
	p.mu.Lock()
	fns := make([]func(domain.AuthEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

type sessionClaims struct {
	sub   string
	email string
	exp   *time.Time
}

func (p *Provider) validate(tokenString string) (sessionClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid")
		}
		return p.cache.keyForKid(kid)
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil || !token.Valid {
		return sessionClaims{}, errors.New("invalid token")
	}
	out := sessionClaims{}
	out.sub, _ = claims["sub"].(string)
	out.email, _ = claims["email"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.exp = &t
	}
	return out, nil
}
