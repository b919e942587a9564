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

func TestWaitForSession_TimeoutReturnsNil(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{}, nil)
	oracle := NewSessionOracle(provider, nopLogger{})

	started := time.Now()
	sess := oracle.WaitForSession(context.Background(), 500*time.Millisecond)
	elapsed := time.Since(started)

	assert.Nil(t, sess)
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestWaitForSession_SurvivesProviderErrors(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{}, errors.New("hydrating")).Twice()
	provider.On("Session", mock.Anything).Return(domain.Session{UserID: "u1", Email: "u1@dovita.mx"}, nil)
	oracle := NewSessionOracle(provider, nopLogger{})
	oracle.interval = 10 * time.Millisecond

	sess := oracle.WaitForSession(context.Background(), 2*time.Second)
	require.NotNil(t, sess)
	assert.Equal(t, "u1", sess.UserID)
}

func TestWaitForSession_ImmediateHit(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{UserID: "u1"}, nil)
	oracle := NewSessionOracle(provider, nopLogger{})

	started := time.Now()
	sess := oracle.WaitForSession(context.Background(), 20*time.Second)
	require.NotNil(t, sess)
	assert.Less(t, time.Since(started), time.Second)
}

func TestSessionOrNil_ExpiredSession(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{
		UserID:    "u1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil)
	oracle := NewSessionOracle(provider, nopLogger{})

	assert.Nil(t, oracle.SessionOrNil(context.Background()))
}

func TestUserIDOrEmpty(t *testing.T) {
	provider := new(providerMock)
	provider.On("Session", mock.Anything).Return(domain.Session{}, errors.New("down"))
	oracle := NewSessionOracle(provider, nopLogger{})

	assert.Equal(t, "", oracle.UserIDOrEmpty(context.Background()))
}
