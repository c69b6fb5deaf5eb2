package authclient

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Storage is the persisted key/value surface the session artifacts live in,
// the Go analog of the browser's local storage. Writes are complete
// overwrites of a single key; implementations need no internal locking beyond
// what their backing medium requires.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Environment describes the execution context capabilities. Restore and
// persistence become no-ops when the environment is not interactive (e.g. a
// server-side rendering pass that must not touch storage).
type Environment interface {
	Interactive() bool
}

// Navigator performs client-side redirects (login view on logout, forbidden
// view on denied routes). Implementations are UI-specific.
type Navigator interface {
	NavigateTo(path string)
}

// CartMigrator moves an anonymous cart onto the authenticated account after
// login. It runs fire-and-forget: failures are logged and never affect the
// session state.
type CartMigrator interface {
	MigrateCart(ctx context.Context) error
}

// ProfileFetcher hydrates server-only profile fields (display name, picture)
// that the token claims do not carry.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (*UserProfile, error)
}

// Config holds client auth options
type Config interface {
	GetAuthScheme() string
	GetLoginRoute() string
	GetForbiddenRoute() string
	GetPublicEndpoints() []string
	GetExternalHosts() []string
	GetExpiryCheckInterval() time.Duration
}

// SimpleConfig is the default Config implementation.
type SimpleConfig struct {
	AuthScheme          string
	LoginRoute          string
	ForbiddenRoute      string
	PublicEndpoints     []string
	ExternalHosts       []string
	ExpiryCheckInterval time.Duration
}

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetLoginRoute() string {
	if c.LoginRoute == "" {
		return "/login"
	}
	return c.LoginRoute
}

func (c SimpleConfig) GetForbiddenRoute() string {
	if c.ForbiddenRoute == "" {
		return "/forbidden"
	}
	return c.ForbiddenRoute
}

func (c SimpleConfig) GetPublicEndpoints() []string {
	if c.PublicEndpoints == nil {
		return DefaultPublicEndpoints()
	}
	return c.PublicEndpoints
}

func (c SimpleConfig) GetExternalHosts() []string {
	return c.ExternalHosts
}

func (c SimpleConfig) GetExpiryCheckInterval() time.Duration {
	if c.ExpiryCheckInterval <= 0 {
		return time.Minute
	}
	return c.ExpiryCheckInterval
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHCLIENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type interactiveEnvironment struct{}

func (interactiveEnvironment) Interactive() bool { return true }

// NonInteractiveEnvironment reports a non-interactive execution context, used
// on rendering passes where storage must not be touched.
type NonInteractiveEnvironment struct{}

func (NonInteractiveEnvironment) Interactive() bool { return false }

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

func (f NavigatorFunc) NavigateTo(path string) {
	if f != nil {
		f(path)
	}
}

type noopNavigator struct{}

func (noopNavigator) NavigateTo(string) {}

// CartMigratorFunc adapts a function to the CartMigrator interface.
type CartMigratorFunc func(ctx context.Context) error

func (f CartMigratorFunc) MigrateCart(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}
