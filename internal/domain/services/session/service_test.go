package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockAuthClient struct {
	mock.Mock
}

func (m *MockAuthClient) Login(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockAuthClient) Validate(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Load(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTokenStore) Save(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func TestEnsureLoggedIn_FreshLogin(t *testing.T) {
	auth := new(MockAuthClient)
	auth.On("Login", mock.Anything).Return("tok-1", nil)
	svc := NewService(auth, nil, zap.NewNop())

	err := svc.EnsureLoggedIn(context.Background())

	assert.NoError(t, err)
	assert.True(t, svc.LoggedIn())
	assert.Equal(t, "tok-1", svc.Token())
}

func TestEnsureLoggedIn_Idempotent(t *testing.T) {
	auth := new(MockAuthClient)
	auth.On("Login", mock.Anything).Return("tok-1", nil).Once()
	svc := NewService(auth, nil, zap.NewNop())

	assert.NoError(t, svc.EnsureLoggedIn(context.Background()))
	assert.NoError(t, svc.EnsureLoggedIn(context.Background()))
	auth.AssertNumberOfCalls(t, "Login", 1)
}

func TestEnsureLoggedIn_UsesValidPersistedToken(t *testing.T) {
	auth := new(MockAuthClient)
	store := new(MockTokenStore)
	store.On("Load", mock.Anything).Return("persisted-tok", nil)
	auth.On("Validate", mock.Anything, "persisted-tok").Return(nil)
	svc := NewService(auth, store, zap.NewNop())

	err := svc.EnsureLoggedIn(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "persisted-tok", svc.Token())
	auth.AssertNotCalled(t, "Login", mock.Anything)
}

func TestEnsureLoggedIn_ExpiredPersistedTokenFallsBackToLogin(t *testing.T) {
	auth := new(MockAuthClient)
	store := new(MockTokenStore)
	store.On("Load", mock.Anything).Return("stale-tok", nil)
	auth.On("Validate", mock.Anything, "stale-tok").Return(fmt.Errorf("401 unauthorized"))
	auth.On("Login", mock.Anything).Return("fresh-tok", nil)
	store.On("Save", mock.Anything, "fresh-tok").Return(nil)
	svc := NewService(auth, store, zap.NewNop())

	err := svc.EnsureLoggedIn(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "fresh-tok", svc.Token())
	store.AssertExpectations(t)
}

func TestEnsureLoggedIn_LoginFailureLeavesLoggedOut(t *testing.T) {
	auth := new(MockAuthClient)
	auth.On("Login", mock.Anything).Return("", fmt.Errorf("invalid credentials"))
	svc := NewService(auth, nil, zap.NewNop())

	err := svc.EnsureLoggedIn(context.Background())

	assert.Error(t, err)
	assert.False(t, svc.LoggedIn())
	assert.Empty(t, svc.Token())
}

func TestReauthenticate_DropsSessionAndLogsInAgain(t *testing.T) {
	auth := new(MockAuthClient)
	auth.On("Login", mock.Anything).Return("tok-1", nil).Once()
	auth.On("Login", mock.Anything).Return("tok-2", nil).Once()
	svc := NewService(auth, nil, zap.NewNop())

	assert.NoError(t, svc.EnsureLoggedIn(context.Background()))
	assert.NoError(t, svc.Reauthenticate(context.Background()))

	assert.Equal(t, "tok-2", svc.Token())
	auth.AssertNumberOfCalls(t, "Login", 2)
}

func TestKeepAlive_NoopWhenLoggedOut(t *testing.T) {
	auth := new(MockAuthClient)
	svc := NewService(auth, nil, zap.NewNop())

	assert.NoError(t, svc.KeepAlive(context.Background()))
	auth.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestKeepAlive_ValidSessionUntouched(t *testing.T) {
	auth := new(MockAuthClient)
	auth.On("Login", mock.Anything).Return("tok-1", nil).Once()
	auth.On("Validate", mock.Anything, "tok-1").Return(nil)
	svc := NewService(auth, nil, zap.NewNop())

	assert.NoError(t, svc.EnsureLoggedIn(context.Background()))
	assert.NoError(t, svc.KeepAlive(context.Background()))

	assert.Equal(t, "tok-1", svc.Token())
	auth.AssertNumberOfCalls(t, "Login", 1)
}

func TestKeepAlive_InvalidSessionReLogsIn(t *testing.T) {
	auth := new(MockAuthClient)
	auth.On("Login", mock.Anything).Return("tok-1", nil).Once()
	auth.On("Validate", mock.Anything, "tok-1").Return(fmt.Errorf("401 unauthorized"))
	auth.On("Login", mock.Anything).Return("tok-2", nil).Once()
	svc := NewService(auth, nil, zap.NewNop())

	assert.NoError(t, svc.EnsureLoggedIn(context.Background()))
	assert.NoError(t, svc.KeepAlive(context.Background()))

	assert.Equal(t, "tok-2", svc.Token())
}
