package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dovita-portal/internal/domain"
)

type routerFixture struct {
	router    *EventRouter
	cache     *PermissionCache
	queries   *QueryCache
	ephemeral *ephemeralMem
	identity  *identityMock
}

func newRouterFixture(provider *providerMock, identity *identityMock) routerFixture {
	oracle := NewSessionOracle(provider, nopLogger{})
	cache := NewPermissionCache(&permStoreMem{}, identity, oracle, nopLogger{})
	seq := NewSequencer(oracle, identity, nopLogger{})
	seq.sleep = func(context.Context, time.Duration) {}
	queries := NewQueryCache()
	ephemeral := &ephemeralMem{}
	return routerFixture{
		router:    NewEventRouter(seq, cache, queries, ephemeral, nopLogger{}),
		cache:     cache,
		queries:   queries,
		ephemeral: ephemeral,
		identity:  identity,
	}
}

func TestRouter_OnlySignOutClears(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{UserID: "u1", Email: "u1@dovita.mx"}, nil)
	identity := new(identityMock)
	identity.On("EnsureProfile", mock.Anything, "u1", "u1@dovita.mx").Return(nil)
	identity.On("EnsureDefaultRole", mock.Anything, "u1").Return(nil)
	identity.On("RolesByUser", mock.Anything, "u1").Return([]domain.Role{domain.RoleColaborador}, nil)
	identity.On("PermissionsByUser", mock.Anything, "u1").Return([]domain.ModulePermission{
		{UserID: "u1", Module: domain.ModulePresupuestos, CanView: true},
	}, nil)

	f := newRouterFixture(provider, identity)
	ctx := context.Background()

	f.router.Dispatch(ctx, domain.ParseAuthEvent("SIGNED_IN", "u1"))
	require.NotEmpty(t, f.cache.Snapshot())

	f.router.Dispatch(ctx, domain.ParseAuthEvent("TOKEN_REFRESHED", "u1"))
	assert.NotEmpty(t, f.cache.Snapshot())

	f.router.Dispatch(ctx, domain.ParseAuthEvent("USER_UPDATED", "u1"))
	assert.NotEmpty(t, f.cache.Snapshot())

	f.router.Dispatch(ctx, domain.ParseAuthEvent("MFA_CHALLENGE_VERIFIED", "u1"))
	assert.NotEmpty(t, f.cache.Snapshot())

	f.router.Dispatch(ctx, domain.ParseAuthEvent("SIGNED_OUT", "u1"))
	assert.Empty(t, f.cache.Snapshot())
	assert.Equal(t, 1, f.ephemeral.cleared)
}

func TestRouter_SignedInInvalidatesSessionQueries(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{UserID: "u1", Email: "u1@dovita.mx"}, nil)
	identity := new(identityMock)
	identity.On("EnsureProfile", mock.Anything, "u1", "u1@dovita.mx").Return(nil)
	identity.On("EnsureDefaultRole", mock.Anything, "u1").Return(nil)
	identity.On("RolesByUser", mock.Anything, "u1").Return([]domain.Role{domain.RoleCliente}, nil)
	identity.On("PermissionsByUser", mock.Anything, "u1").Return([]domain.ModulePermission{
		{UserID: "u1", Module: domain.ModuleFotos, CanView: true},
	}, nil)

	f := newRouterFixture(provider, identity)
	f.queries.Set(QueryProjects, []string{"p1"})
	f.queries.Set("unrelated", 42)

	f.router.Dispatch(context.Background(), domain.ParseAuthEvent("SIGNED_IN", "u1"))

	_, ok := f.queries.Get(QueryProjects)
	assert.False(t, ok)
	_, ok = f.queries.Get("unrelated")
	assert.True(t, ok)
}

func TestRouter_TokenRefreshIsLightweight(t *testing.T) {
	provider := new(providerMock)
	identity := new(identityMock)
	f := newRouterFixture(provider, identity)
	f.queries.Set(QuerySession, "tok")
	f.queries.Set(QueryCurrentUser, "u1")

	f.router.Dispatch(context.Background(), domain.ParseAuthEvent("TOKEN_REFRESHED", "u1"))

	_, ok := f.queries.Get(QuerySession)
	assert.False(t, ok)
	_, ok = f.queries.Get(QueryCurrentUser)
	assert.True(t, ok)
	// No bootstrap ran.
	identity.AssertNotCalled(t, "RolesByUser", mock.Anything, mock.Anything)
}

func TestRouter_SignInScenarioWithTransientRolesFailure(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{UserID: "u1", Email: "u1@dovita.mx"}, nil)
	identity := new(identityMock)
	identity.On("EnsureProfile", mock.Anything, "u1", "u1@dovita.mx").Return(nil)
	identity.On("EnsureDefaultRole", mock.Anything, "u1").Return(nil)
	identity.On("RolesByUser", mock.Anything, "u1").Return(nil, errors.New("network")).Once()
	identity.On("RolesByUser", mock.Anything, "u1").Return([]domain.Role{domain.RoleColaborador}, nil).Once()
	identity.On("PermissionsByUser", mock.Anything, "u1").Return([]domain.ModulePermission{
		{UserID: "u1", Module: domain.ModulePresupuestos, CanView: true},
	}, nil)

	f := newRouterFixture(provider, identity)
	f.router.Dispatch(context.Background(), domain.ParseAuthEvent("SIGNED_IN", "u1"))

	assert.True(t, f.cache.Allows(domain.ModulePresupuestos, domain.CapabilityView))
	assert.False(t, f.cache.Allows(domain.ModuleAdmin, domain.CapabilityView))
	identity.AssertNumberOfCalls(t, "RolesByUser", 2)
}

func TestRouter_HandleDefersOffCallback(t *testing.T) {
	provider := new(providerMock)
	identity := new(identityMock)
	f := newRouterFixture(provider, identity)
	f.queries.Set(QuerySession, "tok")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.router.Run(ctx)

	// Handle returns without applying anything synchronously.
	f.router.Handle(domain.ParseAuthEvent("TOKEN_REFRESHED", "u1"))

	require.Eventually(t, func() bool {
		_, ok := f.queries.Get(QuerySession)
		return !ok
	}, time.Second, 5*time.Millisecond)
}
