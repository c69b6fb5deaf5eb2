package authclient

// Route is the navigation target metadata the guard reads. A route with no
// declared roles is public: admission is unconditional for any status.
type Route struct {
	Path  string
	Roles []UserRole
}

// Decision is the guard's verdict for a navigation attempt.
type Decision struct {
	Allowed bool
	// Redirect is the view the client should navigate to on denial: the
	// login view when no session is live, the forbidden view when the
	// session lacks the declared roles.
	Redirect string
	// Reason carries the denial error for logging, nil when allowed.
	Reason error
}

// RouteGuard decides route admission from the live session state. It is
// consulted at decision time, never from a snapshot taken earlier in the
// navigation lifecycle: expiry can occur between page loads.
type RouteGuard struct {
	machine *SessionStateMachine
	cfg     Config
	logger  Logger
}

// GuardOption customizes guard construction.
type GuardOption func(*RouteGuard)

// WithGuardLogger overrides the guard's logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *RouteGuard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGuardConfig overrides the guard's configuration.
func WithGuardConfig(cfg Config) GuardOption {
	return func(g *RouteGuard) {
		if cfg != nil {
			g.cfg = cfg
		}
	}
}

// NewRouteGuard creates a guard over the given state machine.
func NewRouteGuard(machine *SessionStateMachine, opts ...GuardOption) *RouteGuard {
	g := &RouteGuard{
		machine: machine,
		cfg:     SimpleConfig{},
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Authorize decides admission for a navigation target.
func (g *RouteGuard) Authorize(route Route) Decision {
	if len(route.Roles) == 0 {
		return Decision{Allowed: true}
	}

	current := g.machine.Current()

	if !current.Authenticated() {
		g.logger.Info("route denied, no live session", "path", route.Path)
		return Decision{
			Redirect: g.cfg.GetLoginRoute(),
			Reason: ErrSessionExpired.Clone().WithMetadata(map[string]any{
				"path": route.Path,
			}),
		}
	}

	if !HasAnyRole(current.Roles(), route.Roles) {
		g.logger.Info("route denied, missing role", "path", route.Path, "required", route.Roles)
		return Decision{
			Redirect: g.cfg.GetForbiddenRoute(),
			Reason: ErrRouteForbidden.Clone().WithMetadata(map[string]any{
				"path":     route.Path,
				"required": route.Roles,
			}),
		}
	}

	return Decision{Allowed: true}
}

// CanActivate is the boolean convenience form of Authorize; when denied, the
// configured navigator is pointed at the redirect view.
func (g *RouteGuard) CanActivate(route Route) bool {
	decision := g.Authorize(route)
	if !decision.Allowed {
		g.machine.nav.NavigateTo(decision.Redirect)
	}
	return decision.Allowed
}
