// Package routerware adapts the route guard to go-router middleware, for
// consumers that render protected views behind an HTTP router rather than a
// single-page shell.
package routerware

import (
	"net/http"

	authclient "github.com/aquapool/go-authclient"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Config customizes the middleware.
type Config struct {
	// Roles the wrapped routes require; empty means public.
	Roles []authclient.UserRole
	// DenyHandler overrides the redirect applied on denial.
	DenyHandler func(c router.Context, decision authclient.Decision) error
	Logger      authclient.Logger
}

// New wraps every request in a guard check against the live session state.
func New(guard *authclient.RouteGuard, config ...Config) router.MiddlewareFunc {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			decision := guard.Authorize(authclient.Route{
				Path:  c.OriginalURL(),
				Roles: cfg.Roles,
			})

			if decision.Allowed {
				return hf(c)
			}

			logDenial(cfg.Logger, c, decision)

			if cfg.DenyHandler != nil {
				return cfg.DenyHandler(c, decision)
			}

			statusCode := http.StatusSeeOther
			if c.Method() == string(router.GET) {
				statusCode = http.StatusFound
			}
			return c.Redirect(decision.Redirect, statusCode)
		}
	}
}

func logDenial(logger authclient.Logger, c router.Context, decision authclient.Decision) {
	if logger == nil {
		return
	}

	var richErr *goerrors.Error
	if goerrors.As(decision.Reason, &richErr) {
		logger.Info(
			"route guard denial",
			"path", c.OriginalURL(),
			"text_code", richErr.TextCode,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		return
	}

	logger.Info("route guard denial", "path", c.OriginalURL())
}
