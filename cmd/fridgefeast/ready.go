package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/samber/lo"
)

type readyChecker interface {
	Ready(context.Context) error
}

// readiness answers /ready. Once every check has passed it stops checking,
// so a later storage hiccup does not take the instance out of rotation.
type readiness struct {
	passed atomic.Bool
	checks []func(context.Context) error
}

func newReadiness(checks ...func(context.Context) error) *readiness {
	return &readiness{checks: checks}
}

func (r *readiness) check(ctx context.Context) error {
	if r.passed.Load() {
		return nil
	}
	err := errors.Join(lo.Map(r.checks, func(check func(context.Context) error, _ int) error {
		return check(ctx)
	})...)
	if err == nil {
		r.passed.Store(true)
	}
	return err
}

func (r *readiness) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if err := r.check(req.Context()); err != nil {
		slog.WarnContext(req.Context(), "not ready", "error", err)
		http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("ready")); err != nil {
		slog.ErrorContext(req.Context(), "failed to write readiness response", "error", err)
	}
}
