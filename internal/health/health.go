// Package health reports readiness from dependency probes over gRPC health and HTTP.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"orgaccess/internal/platform/httputil"
)

// Pinger checks one dependency (e.g. the shared membership cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker aggregates named probes. With no probes it is always ready.
type Checker struct {
	probes  map[string]Pinger
	order   []string
	timeout time.Duration
	log     *logrus.Entry
}

// NewChecker returns a Checker whose probes each get timeout (default 2s).
func NewChecker(timeout time.Duration, l *logrus.Logger) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Checker{probes: map[string]Pinger{}, timeout: timeout, log: l.WithField("component", "health")}
}

// Add registers p under name. A nil p is ignored.
func (c *Checker) Add(name string, p Pinger) {
	if p == nil {
		return
	}
	if _, ok := c.probes[name]; !ok {
		c.order = append(c.order, name)
	}
	c.probes[name] = p
}

// Check runs every probe and joins their failures.
func (c *Checker) Check(ctx context.Context) error {
	var errs []error
	for _, name := range c.order {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.probes[name].Ping(pctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Status maps Check to a gRPC serving status.
func (c *Checker) Status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if err := c.Check(ctx); err != nil {
		c.log.WithError(err).Warn("readiness check failed")
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Watch sets hs's overall status now and then every interval until ctx is done.
func (c *Checker) Watch(ctx context.Context, hs *grpchealth.Server, interval time.Duration) {
	hs.SetServingStatus("", c.Status(ctx))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.SetServingStatus("", c.Status(ctx))
		}
	}
}

// ServeHTTP answers 200 {"status":"ok"} when ready and 503 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
