package routerware_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	authclient "github.com/aquapool/go-authclient"
	"github.com/aquapool/go-authclient/routerware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	msg  string
	args []any
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{msg: msg, args: args})
}

func newGuard(t *testing.T, sessionRoles ...string) *authclient.RouteGuard {
	t.Helper()

	machine := authclient.NewSessionStateMachine(
		authclient.NewTokenStore(authclient.NewMemoryStorage()),
		authclient.WithNavigator(authclient.NavigatorFunc(func(string) {})),
		authclient.WithLogger(quietLogger{}),
	)

	if len(sessionRoles) > 0 {
		claims := &authclient.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "marie",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UserRoles: sessionRoles,
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("routerware-test-key"))
		require.NoError(t, err)
		require.NoError(t, machine.CompleteLogin(context.Background(), signed, nil))
	}

	return authclient.NewRouteGuard(machine, authclient.WithGuardLogger(quietLogger{}))
}

func runHandler(mw router.MiddlewareFunc, ctx router.Context) (handled bool, err error) {
	handler := mw(func(c router.Context) error {
		handled = true
		return nil
	})
	err = handler(ctx)
	return handled, err
}

func TestMiddleware_AllowsUndeclaredRoles(t *testing.T) {
	guard := newGuard(t)
	mw := routerware.New(guard)

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/products")

	handled, err := runHandler(mw, ctx)

	require.NoError(t, err)
	assert.True(t, handled)
	ctx.AssertExpectations(t)
}

func TestMiddleware_AllowsMatchingRole(t *testing.T) {
	guard := newGuard(t, authclient.RoleClient)
	mw := routerware.New(guard, routerware.Config{
		Roles: []authclient.UserRole{authclient.RoleClient},
	})

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/account")

	handled, err := runHandler(mw, ctx)

	require.NoError(t, err)
	assert.True(t, handled)
	ctx.AssertExpectations(t)
}

func TestMiddleware_RedirectsAnonymousToLogin(t *testing.T) {
	guard := newGuard(t)
	mw := routerware.New(guard, routerware.Config{
		Roles: []authclient.UserRole{authclient.RoleClient},
	})

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/account")
	ctx.On("Method").Return("POST")
	ctx.On("Redirect", "/login", []int{http.StatusSeeOther}).Return(nil)

	handled, err := runHandler(mw, ctx)

	require.NoError(t, err)
	assert.False(t, handled)
	ctx.AssertExpectations(t)
}

func TestMiddleware_GETDenialUsesFound(t *testing.T) {
	guard := newGuard(t)
	mw := routerware.New(guard, routerware.Config{
		Roles: []authclient.UserRole{authclient.RoleClient},
	})

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/account")
	ctx.On("Method").Return("GET")
	ctx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	handled, err := runHandler(mw, ctx)

	require.NoError(t, err)
	assert.False(t, handled)
	ctx.AssertExpectations(t)
}

func TestMiddleware_MissingRoleGoesToForbidden(t *testing.T) {
	guard := newGuard(t, authclient.RoleClient)
	mw := routerware.New(guard, routerware.Config{
		Roles: []authclient.UserRole{authclient.RoleAdmin},
	})

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/admin")
	ctx.On("Method").Return("GET")
	ctx.On("Redirect", "/forbidden", []int{http.StatusFound}).Return(nil)

	handled, err := runHandler(mw, ctx)

	require.NoError(t, err)
	assert.False(t, handled)
	ctx.AssertExpectations(t)
}

func TestMiddleware_DenyHandlerOverride(t *testing.T) {
	guard := newGuard(t)
	denyErr := errors.New("handled elsewhere")

	var denied *authclient.Decision
	mw := routerware.New(guard, routerware.Config{
		Roles: []authclient.UserRole{authclient.RoleClient},
		DenyHandler: func(c router.Context, decision authclient.Decision) error {
			denied = &decision
			return denyErr
		},
	})

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/account")

	handled, err := runHandler(mw, ctx)

	assert.ErrorIs(t, err, denyErr)
	assert.False(t, handled)
	require.NotNil(t, denied)
	assert.False(t, denied.Allowed)
	assert.Equal(t, "/login", denied.Redirect)
	assert.True(t, authclient.IsTokenExpiredError(denied.Reason))
	// the redirect must stay with the override
	ctx.AssertNotCalled(t, "Redirect", "/login", []int{http.StatusSeeOther})
	ctx.AssertExpectations(t)
}

func TestMiddleware_LogsDenialMetadata(t *testing.T) {
	guard := newGuard(t)
	logger := &recordingLogger{}
	mw := routerware.New(guard, routerware.Config{
		Roles:  []authclient.UserRole{authclient.RoleClient},
		Logger: logger,
		DenyHandler: func(c router.Context, decision authclient.Decision) error {
			return nil
		},
	})

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/account")

	_, err := runHandler(mw, ctx)
	require.NoError(t, err)

	require.Len(t, logger.entries, 1)
	entry := logger.entries[0]
	assert.Equal(t, "route guard denial", entry.msg)
	assert.Contains(t, entry.args, "path")
	assert.Contains(t, entry.args, "/account")
	assert.Contains(t, entry.args, "text_code")
}

func TestMiddleware_ConsultsLiveState(t *testing.T) {
	machine := authclient.NewSessionStateMachine(
		authclient.NewTokenStore(authclient.NewMemoryStorage()),
		authclient.WithNavigator(authclient.NavigatorFunc(func(string) {})),
		authclient.WithLogger(quietLogger{}),
	)
	guard := authclient.NewRouteGuard(machine, authclient.WithGuardLogger(quietLogger{}))
	mw := routerware.New(guard, routerware.Config{
		Roles: []authclient.UserRole{authclient.RoleClient},
	})

	claims := &authclient.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "marie",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserRoles: []string{authclient.RoleClient},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("routerware-test-key"))
	require.NoError(t, err)
	require.NoError(t, machine.CompleteLogin(context.Background(), signed, nil))

	ctx := &MockContext{}
	ctx.On("OriginalURL").Return("/account")

	handled, err := runHandler(mw, ctx)
	require.NoError(t, err)
	assert.True(t, handled)

	// same middleware instance denies once the session is gone
	require.NoError(t, machine.Logout(context.Background()))

	denyCtx := &MockContext{}
	denyCtx.On("OriginalURL").Return("/account")
	denyCtx.On("Method").Return("GET")
	denyCtx.On("Redirect", "/login", []int{http.StatusFound}).Return(nil)

	handled, err = runHandler(mw, denyCtx)
	require.NoError(t, err)
	assert.False(t, handled)
	denyCtx.AssertExpectations(t)
}
