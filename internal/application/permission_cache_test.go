package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dovita-portal/internal/domain"
)

func newTestCache(store *permStoreMem, identity *identityMock, provider *providerMock) *PermissionCache {
	oracle := NewSessionOracle(provider, nopLogger{})
	return NewPermissionCache(store, identity, oracle, nopLogger{})
}

func TestSaveIfValid_NonRegression(t *testing.T) {
	store := &permStoreMem{}
	cache := newTestCache(store, new(identityMock), new(providerMock))
	ctx := context.Background()

	good := []domain.ModulePermission{{UserID: "u1", Module: "a", CanView: true}}
	cache.SaveIfValid(ctx, good)
	require.Equal(t, good, cache.Snapshot())

	// Empty and all-false candidates are transient-failure signals.
	cache.SaveIfValid(ctx, []domain.ModulePermission{})
	assert.Equal(t, good, cache.Snapshot())
	cache.SaveIfValid(ctx, []domain.ModulePermission{{UserID: "u1", Module: "a"}})
	assert.Equal(t, good, cache.Snapshot())

	replacement := []domain.ModulePermission{{UserID: "u1", Module: "b", CanView: true}}
	cache.SaveIfValid(ctx, replacement)
	assert.Equal(t, replacement, cache.Snapshot())

	stored, ok, err := store.Read(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, replacement, stored)
}

func TestLoad_CorruptStoreStartsEmpty(t *testing.T) {
	store := &permStoreMem{readErr: errors.New("corrupt json")}
	cache := newTestCache(store, new(identityMock), new(providerMock))

	perms := cache.Load(context.Background())
	assert.Empty(t, perms)
	assert.Equal(t, CacheIdle, cache.Status())
}

func TestLoad_RestoresLastKnownGood(t *testing.T) {
	store := &permStoreMem{}
	saved := []domain.ModulePermission{{UserID: "u1", Module: domain.ModuleFotos, CanView: true}}
	require.NoError(t, store.Write(context.Background(), saved))
	cache := newTestCache(store, new(identityMock), new(providerMock))

	perms := cache.Load(context.Background())
	assert.Equal(t, saved, perms)
	assert.Equal(t, CacheReady, cache.Status())
	assert.True(t, cache.Allows(domain.ModuleFotos, domain.CapabilityView))
	assert.False(t, cache.Allows(domain.ModuleFotos, domain.CapabilityDelete))
}

func TestClear_WipesDurableAndMemory(t *testing.T) {
	store := &permStoreMem{}
	cache := newTestCache(store, new(identityMock), new(providerMock))
	ctx := context.Background()
	cache.SaveIfValid(ctx, []domain.ModulePermission{{Module: "a", CanView: true}})

	cache.Clear(ctx)

	assert.Empty(t, cache.Snapshot())
	_, ok, _ := store.Read(ctx)
	assert.False(t, ok)
}

func TestFetchOnce_SecondCallerIsNoOp(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{UserID: "u1"}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	identity := new(identityMock)
	identity.On("PermissionsByUser", mock.Anything, "u1").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]domain.ModulePermission{{UserID: "u1", Module: "a", CanView: true}}, nil).Once()

	cache := newTestCache(&permStoreMem{}, identity, provider)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cache.FetchOnce(ctx)
	}()
	<-started

	// Arrives during the in-flight fetch: dropped, does not get its own
	// fetch.
	cache.FetchOnce(ctx)
	close(release)
	wg.Wait()

	identity.AssertNumberOfCalls(t, "PermissionsByUser", 1)
	assert.True(t, cache.Allows("a", domain.CapabilityView))
}

func TestFetchOnce_TimeoutStateWithoutCancellation(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{UserID: "u1"}, nil)

	release := make(chan struct{})
	identity := new(identityMock)
	identity.On("PermissionsByUser", mock.Anything, "u1").Run(func(mock.Arguments) {
		<-release
	}).Return([]domain.ModulePermission{{UserID: "u1", Module: "a", CanView: true}}, nil)

	cache := newTestCache(&permStoreMem{}, identity, provider)
	cache.timeout = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		cache.FetchOnce(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return cache.Status() == CacheTimeout
	}, time.Second, 5*time.Millisecond)

	// The fetch was not cancelled; its late result still lands.
	close(release)
	<-done
	assert.Equal(t, CacheReady, cache.Status())
	assert.True(t, cache.Allows("a", domain.CapabilityView))
}

func TestFetchOnce_NoSessionSkips(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{}, errors.New("no session"))
	identity := new(identityMock)
	cache := newTestCache(&permStoreMem{}, identity, provider)

	cache.FetchOnce(context.Background())

	identity.AssertNotCalled(t, "PermissionsByUser", mock.Anything, mock.Anything)
}
