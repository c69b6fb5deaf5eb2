package authclient

import (
	"context"
	"time"
)

// Reconciler converges the two persisted token representations. Independent
// writers (login flow, refresh flow, manual testing) may leave only one copy
// behind, and readers may expect either; without convergence the session
// status would flap between authenticated and anonymous depending on which
// copy a given reader checks.
type Reconciler struct {
	storage Storage
	logger  Logger
}

// NewReconciler creates a reconciler over the same storage the TokenStore uses
func NewReconciler(storage Storage, logger Logger) *Reconciler {
	if logger == nil {
		logger = defLogger{}
	}
	return &Reconciler{storage: storage, logger: logger}
}

// Reconcile applies the convergence rules once. Safe to invoke repeatedly:
//   - exactly one copy present: the missing one is reconstructed from it
//   - both present and disagreeing: the canonical copy is authoritative and
//     the prefixed copy is rewritten to match
//   - neither present (or both empty): nothing is invented
func (r *Reconciler) Reconcile() error {
	rawCanonical, hasCanonical := r.storage.Get(KeyToken)
	prefixed, hasPrefixed := r.storage.Get(KeyBearerToken)

	canonical := NormalizeToken(rawCanonical)
	hasCanonical = hasCanonical && canonical != ""
	fromPrefixed := NormalizeToken(prefixed)
	hasPrefixed = hasPrefixed && fromPrefixed != ""

	// a scheme prefix that leaked into the canonical slot is repaired first
	if hasCanonical && rawCanonical != canonical {
		if err := r.storage.Set(KeyToken, canonical); err != nil {
			return err
		}
	}

	switch {
	case hasCanonical && hasPrefixed:
		if canonical == fromPrefixed && prefixed == PrefixToken(canonical) {
			return nil
		}
		r.logger.Debug("reconciling diverged token copies")
		return r.storage.Set(KeyBearerToken, PrefixToken(canonical))

	case hasCanonical:
		r.logger.Debug("reconstructing bearer token copy")
		return r.storage.Set(KeyBearerToken, PrefixToken(canonical))

	case hasPrefixed:
		r.logger.Debug("reconstructing canonical token copy")
		return r.storage.Set(KeyToken, fromPrefixed)

	default:
		return nil
	}
}

// Run reconciles immediately, then on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	if err := r.Reconcile(); err != nil {
		r.logger.Error("session reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reconcile(); err != nil {
				r.logger.Error("session reconciliation failed", "error", err)
			}
		}
	}
}
