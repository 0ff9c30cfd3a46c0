package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nimasrn/ledger-book/internal/applock"
	xhttp "github.com/nimasrn/ledger-book/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLockGate struct {
	mock.Mock
}

func (m *MockLockGate) Status(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockLockGate) Setup(ctx context.Context, pin, confirm string) error {
	return m.Called(ctx, pin, confirm).Error(0)
}

func (m *MockLockGate) Remove(ctx context.Context, pin string) error {
	return m.Called(ctx, pin).Error(0)
}

func (m *MockLockGate) Unlock(ctx context.Context, pin string) (*applock.Session, error) {
	args := m.Called(ctx, pin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*applock.Session), args.Error(1)
}

func (m *MockLockGate) Verify(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func TestLockHandler(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		gate := new(MockLockGate)
		gate.On("Status", mock.Anything).Return(true, nil)

		ctx := setupTestContext("GET", "/lock", nil)
		NewLockHandler(gate).GetStatus(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"enabled":true}`, string(ctx.Response.Body()))
	})

	t.Run("setup mismatch", func(t *testing.T) {
		gate := new(MockLockGate)
		gate.On("Setup", mock.Anything, "1234", "4321").Return(applock.ErrPINMismatch)

		ctx := setupTestContext("POST", "/lock/setup", []byte(`{"pin":"1234","confirm":"4321"}`))
		NewLockHandler(gate).Setup(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Equal(t, applock.ErrPINMismatch.Error(), errorBody(t, ctx))
	})

	t.Run("setup twice", func(t *testing.T) {
		gate := new(MockLockGate)
		gate.On("Setup", mock.Anything, "1234", "1234").Return(applock.ErrAlreadyEnabled)

		ctx := setupTestContext("POST", "/lock/setup", []byte(`{"pin":"1234","confirm":"1234"}`))
		NewLockHandler(gate).Setup(ctx)
		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("unlock", func(t *testing.T) {
		gate := new(MockLockGate)
		expires := time.Date(2024, 3, 13, 11, 0, 0, 0, time.UTC)
		gate.On("Unlock", mock.Anything, "1234").Return(&applock.Session{Token: "tok", ExpiresAt: expires}, nil)

		ctx := setupTestContext("POST", "/lock/unlock", []byte(`{"pin":"1234"}`))
		NewLockHandler(gate).Unlock(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var session applock.Session
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &session))
		assert.Equal(t, "tok", session.Token)
		assert.True(t, expires.Equal(session.ExpiresAt))
	})

	t.Run("wrong pin", func(t *testing.T) {
		gate := new(MockLockGate)
		gate.On("Remove", mock.Anything, "0000").Return(applock.ErrWrongPIN)

		ctx := setupTestContext("POST", "/lock/remove", []byte(`{"pin":"0000"}`))
		NewLockHandler(gate).Remove(ctx)
		assert.Equal(t, 401, ctx.Response.StatusCode())
	})
}

func TestLockMiddleware(t *testing.T) {
	gate := new(MockLockGate)
	gate.On("Verify", mock.Anything, "good").Return(nil)
	gate.On("Verify", mock.Anything, "").Return(applock.ErrInvalidToken)

	reached := false
	h := LockMiddleware(gate, "/health", "/lock")(func(ctx *xhttp.RequestCtx) {
		reached = true
		ctx.SetStatusCode(200)
	})

	t.Run("rejects without token", func(t *testing.T) {
		reached = false
		ctx := setupTestContext("GET", "/api/v1/customers", nil)
		h(ctx)
		assert.False(t, reached)
		assert.Equal(t, 401, ctx.Response.StatusCode())
	})

	t.Run("accepts bearer token", func(t *testing.T) {
		reached = false
		ctx := setupTestContext("GET", "/api/v1/customers", nil)
		ctx.Request.Header.Set("Authorization", "Bearer good")
		h(ctx)
		assert.True(t, reached)
	})

	t.Run("exempt paths skip verification", func(t *testing.T) {
		for _, p := range []string{"/api/v1/health", "/api/v1/lock/unlock"} {
			reached = false
			h(setupTestContext("GET", p, nil))
			assert.True(t, reached, p)
		}
	})
}
