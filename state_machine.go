package authclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubscriberFunc receives session snapshots: the current value synchronously
// on subscribe, then every subsequent transition, in order, before the
// mutating call returns. Callbacks must not mutate the state machine.
type SubscriberFunc func(Session)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id          uuid.UUID
	unsubscribe func()
}

// Unsubscribe removes the subscriber. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*SessionStateMachine)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) StateMachineOption {
	return func(m *SessionStateMachine) {
		if clock != nil {
			m.now = clock
			m.codec = NewCodec(WithCodecClock(clock))
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger Logger) StateMachineOption {
	return func(m *SessionStateMachine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithEnvironment sets the execution context capability. Non-interactive
// environments never touch storage.
func WithEnvironment(env Environment) StateMachineOption {
	return func(m *SessionStateMachine) {
		if env != nil {
			m.env = env
		}
	}
}

// WithNavigator sets the redirect mechanism used on logout.
func WithNavigator(nav Navigator) StateMachineOption {
	return func(m *SessionStateMachine) {
		if nav != nil {
			m.nav = nav
		}
	}
}

// WithCartMigrator enables the fire-and-forget post-login cart migration.
func WithCartMigrator(migrator CartMigrator) StateMachineOption {
	return func(m *SessionStateMachine) {
		m.migrator = migrator
	}
}

// WithProfileFetcher enables best-effort profile hydration after login and
// restore.
func WithProfileFetcher(fetcher ProfileFetcher) StateMachineOption {
	return func(m *SessionStateMachine) {
		m.fetcher = fetcher
	}
}

// WithActivitySink sets the ActivitySink used to publish auth events.
func WithActivitySink(sink ActivitySink) StateMachineOption {
	return func(m *SessionStateMachine) {
		m.sink = normalizeActivitySink(sink)
	}
}

// WithConfig overrides the configuration.
func WithConfig(cfg Config) StateMachineOption {
	return func(m *SessionStateMachine) {
		if cfg != nil {
			m.cfg = cfg
		}
	}
}

type subscriberEntry struct {
	id uuid.UUID
	fn SubscriberFunc
}

// SessionStateMachine holds the authoritative client-side session: current
// status, derived claims, and the cached profile. Every mutation updates the
// externally observable state synchronously, so a guard consulting the
// machine never sees a mid-transition value.
type SessionStateMachine struct {
	store    *TokenStore
	codec    *Codec
	cfg      Config
	logger   Logger
	env      Environment
	nav      Navigator
	migrator CartMigrator
	fetcher  ProfileFetcher
	sink     ActivitySink
	now      func() time.Time

	// opMu serializes the teardown operations so a burst of concurrent 401s
	// collapses into a single logout.
	opMu sync.Mutex
	// transitionMu serializes whole transitions (mutate + notify) so no
	// subscriber observes changes out of order relative to another.
	transitionMu sync.Mutex
	mu           sync.RWMutex
	current      Session
	subscribers  []subscriberEntry
}

// NewSessionStateMachine builds the state machine over a token store.
func NewSessionStateMachine(store *TokenStore, opts ...StateMachineOption) *SessionStateMachine {
	if store == nil {
		store = NewTokenStore(nil)
	}

	m := &SessionStateMachine{
		store:   store,
		codec:   NewCodec(),
		cfg:     SimpleConfig{},
		logger:  defLogger{},
		env:     interactiveEnvironment{},
		nav:     noopNavigator{},
		sink:    noopActivitySink{},
		now:     time.Now,
		current: anonymousSession(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Use applies options after construction. Needed when a collaborator, like an
// HTTP client implementing ProfileFetcher, is itself built from the machine.
// Serialized against transitions.
func (m *SessionStateMachine) Use(opts ...StateMachineOption) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
}

// Codec exposes the codec sharing this machine's clock.
func (m *SessionStateMachine) Codec() *Codec {
	return m.codec
}

// Store exposes the token store.
func (m *SessionStateMachine) Store() *TokenStore {
	return m.store
}

// Current returns the live session snapshot.
func (m *SessionStateMachine) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Status returns the live session status.
func (m *SessionStateMachine) Status() SessionStatus {
	return m.Current().Status
}

// CurrentRoles returns the role set of the live session, empty when there is
// no authenticated session.
func (m *SessionStateMachine) CurrentRoles() []UserRole {
	current := m.Current()
	if !current.Authenticated() {
		return nil
	}
	return current.Roles()
}

// HasAnyRole reports whether the live session carries at least one of the
// required roles. An empty required set is always false.
func (m *SessionStateMachine) HasAnyRole(required ...UserRole) bool {
	return HasAnyRole(m.CurrentRoles(), required)
}

// Subscribe registers fn and invokes it synchronously with the current value.
func (m *SessionStateMachine) Subscribe(fn SubscriberFunc) *Subscription {
	if fn == nil {
		return &Subscription{}
	}

	m.transitionMu.Lock()
	m.mu.Lock()
	id := uuid.New()
	m.subscribers = append(m.subscribers, subscriberEntry{id: id, fn: fn})
	current := m.current
	m.mu.Unlock()

	// initial delivery is ordered against transitions: holding transitionMu
	// means no change can slip in between registration and first value
	fn(current)
	m.transitionMu.Unlock()

	return &Subscription{
		id: id,
		unsubscribe: func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, entry := range m.subscribers {
				if entry.id == id {
					m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
					return
				}
			}
		},
	}
}

// Restore loads the persisted session at process start. It no-ops on
// non-interactive rendering passes. A malformed or expired token results in a
// clean logout, never a raw decode error reaching the caller.
func (m *SessionStateMachine) Restore(ctx context.Context) error {
	if !m.env.Interactive() {
		return nil
	}

	token, ok := m.store.LoadToken()
	if !ok {
		return nil
	}

	claims, err := m.codec.Decode(token)
	if err != nil {
		m.logger.Info("dropping undecodable persisted token", "error", err)
		return m.Logout(ctx)
	}

	if !claims.Expires().After(m.now()) {
		m.emitEvent(ctx, ActivityEventSessionExpired, claims.Subject(), StatusAnonymous, StatusAnonymous, nil)
		return m.Logout(ctx)
	}

	profile := ProfileFromClaims(claims)
	if cached, found := m.store.LoadProfile(); found {
		profile = profile.Merge(cached)
	}

	m.transition(Session{
		Token:   token,
		Claims:  claims,
		Status:  StatusAuthenticated,
		Profile: profile,
	})

	m.emitEvent(ctx, ActivityEventSessionRestore, claims.Subject(), StatusAnonymous, StatusAuthenticated, nil)
	m.hydrateProfile(ctx)

	return nil
}

// CompleteLogin installs the token the server returned on a successful login
// or registration verification. The token is persisted before the
// authenticated state is published, and the optional server-provided user
// data wins over claim-derived fields. The cart migration side task runs
// fire-and-forget: its failure never affects auth state.
func (m *SessionStateMachine) CompleteLogin(ctx context.Context, rawToken string, serverUser *UserProfile) error {
	canonical := NormalizeToken(rawToken)

	claims, err := m.codec.Decode(canonical)
	if err != nil {
		m.emitEvent(ctx, ActivityEventLoginFailure, "", m.Status(), m.Status(), map[string]any{
			"error": err.Error(),
		})
		return err
	}

	profile := ProfileFromClaims(claims).Merge(serverUser)

	if m.env.Interactive() {
		if err := m.store.SaveToken(canonical); err != nil {
			return err
		}
		if err := m.store.SaveProfile(profile); err != nil {
			m.logger.Error("failed to cache user profile", "error", err)
		}
	}

	from := m.Status()
	m.transition(Session{
		Token:   canonical,
		Claims:  claims,
		Status:  StatusAuthenticated,
		Profile: profile,
	})

	m.emitEvent(ctx, ActivityEventLoginSuccess, claims.Subject(), from, StatusAuthenticated, nil)

	if m.migrator != nil {
		go func() {
			if err := m.migrator.MigrateCart(context.WithoutCancel(ctx)); err != nil {
				m.logger.Error("cart migration after login failed", "error", err)
			}
		}()
	}

	m.hydrateProfile(ctx)

	return nil
}

// RefreshToken swaps the live token for a newly issued one without touching
// the rest of the session: profile and subscriptions survive, the snapshot is
// re-published with the new claims. Only valid on a live session.
func (m *SessionStateMachine) RefreshToken(ctx context.Context, rawToken string) error {
	canonical := NormalizeToken(rawToken)

	claims, err := m.codec.Decode(canonical)
	if err != nil {
		return err
	}

	current := m.Current()
	if !current.Authenticated() {
		return ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"reason": "refresh without a live session",
		})
	}

	if m.env.Interactive() {
		if err := m.store.SaveToken(canonical); err != nil {
			return err
		}
	}

	next := current
	next.Token = canonical
	next.Claims = claims
	m.transition(next)

	m.emitEvent(ctx, ActivityEventTokenRefreshed, claims.Subject(), StatusAuthenticated, StatusAuthenticated, nil)
	return nil
}

// Logout destroys the session: persisted artifacts cleared, anonymous state
// published, client redirected to the login view. Idempotent, calling it
// while anonymous is an error-free no-op.
func (m *SessionStateMachine) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.logout(ctx)
}

func (m *SessionStateMachine) logout(ctx context.Context) error {
	if m.env.Interactive() {
		if err := m.store.Clear(); err != nil {
			m.logger.Error("failed to clear persisted session", "error", err)
		}
	}

	previous := m.Current()
	if previous.Anonymous() {
		return nil
	}

	m.transition(anonymousSession())
	m.emitEvent(ctx, ActivityEventLogout, subjectOf(previous), previous.Status, StatusAnonymous, nil)
	m.nav.NavigateTo(m.cfg.GetLoginRoute())

	return nil
}

// Expire marks a detected expiry and drops the session. Used by the periodic
// watcher and by the 401 interceptor stage.
func (m *SessionStateMachine) Expire(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	previous := m.Current()
	if !previous.Authenticated() {
		return m.logout(ctx)
	}

	expired := previous
	expired.Status = StatusExpired
	m.transition(expired)
	m.emitEvent(ctx, ActivityEventSessionExpired, subjectOf(previous), StatusAuthenticated, StatusExpired, nil)

	return m.logout(ctx)
}

// WatchExpiry re-checks the live token's expiry on every tick until ctx is
// done. Expiry is detected here or on a 401, whichever comes first.
func (m *SessionStateMachine) WatchExpiry(ctx context.Context) {
	interval := m.cfg.GetExpiryCheckInterval()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := m.Current()
			if current.Authenticated() && m.codec.IsExpired(current.Token) {
				if err := m.Expire(ctx); err != nil {
					m.logger.Error("failed to expire session", "error", err)
				}
			}
		}
	}
}

// transition installs next as the current session and notifies subscribers
// before returning. Illegal jumps are routed through the graph rather than
// rejected: the caller-facing operations only ever request legal targets.
func (m *SessionStateMachine) transition(next Session) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	from := m.current.Status
	if from == StatusExpired && next.Status == StatusAuthenticated {
		// expired sessions pass through anonymous before re-authenticating
		m.current = anonymousSession()
		subs, snapshot := m.deliveryLocked()
		m.mu.Unlock()
		notify(subs, snapshot)
		m.mu.Lock()
		from = StatusAnonymous
	}

	if from != next.Status && !canTransition(from, next.Status) {
		m.logger.Error("unexpected session transition", "from", string(from), "to", string(next.Status))
	}

	m.current = next
	subs, snapshot := m.deliveryLocked()
	m.mu.Unlock()

	notify(subs, snapshot)
}

// deliveryLocked copies the subscriber list and current snapshot under mu so
// callbacks run with no lock held: a subscriber is free to call the read
// accessors (Current, Status, HasAnyRole). Mutating operations are still off
// limits inside a callback, they would deadlock on transitionMu.
func (m *SessionStateMachine) deliveryLocked() ([]subscriberEntry, Session) {
	return append([]subscriberEntry(nil), m.subscribers...), m.current
}

// notify delivers the snapshot to every subscriber in registration order.
// Callers hold transitionMu, which preserves cross-transition ordering.
func notify(entries []subscriberEntry, snapshot Session) {
	for _, entry := range entries {
		entry.fn(snapshot)
	}
}

func (m *SessionStateMachine) hydrateProfile(ctx context.Context) {
	if m.fetcher == nil {
		return
	}

	go func() {
		fetched, err := m.fetcher.FetchProfile(context.WithoutCancel(ctx))
		if err != nil {
			m.logger.Debug("profile hydration failed", "error", err)
			return
		}
		if fetched == nil {
			return
		}

		m.transitionMu.Lock()
		defer m.transitionMu.Unlock()

		m.mu.Lock()
		if !m.current.Authenticated() {
			m.mu.Unlock()
			return
		}
		m.current.Profile = m.current.Profile.Merge(fetched)
		profile := m.current.Profile
		subs, snapshot := m.deliveryLocked()
		m.mu.Unlock()

		if m.env.Interactive() {
			if err := m.store.SaveProfile(profile); err != nil {
				m.logger.Debug("failed to cache hydrated profile", "error", err)
			}
		}
		notify(subs, snapshot)
	}()
}

func (m *SessionStateMachine) emitEvent(ctx context.Context, event ActivityEventType, subject string, from, to SessionStatus, metadata map[string]any) {
	record := ActivityEvent{
		EventType:  event,
		Subject:    subject,
		FromStatus: from,
		ToStatus:   to,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	if err := m.sink.Record(ctx, record); err != nil {
		m.logger.Error("activity sink failed to record auth event", "event", string(event), "error", err)
	}
}

func subjectOf(s Session) string {
	if s.Claims == nil {
		return ""
	}
	return s.Claims.Subject()
}
