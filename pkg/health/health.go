// Package health aggregates dependency checks behind HTTP probe handlers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/openlearnhq/coursegate/pkg/logger"
)

// Check is a single dependency probe. A nil return means healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheck wraps a function as a named Check.
func NewCheck(name string, fn func(context.Context) error) Check {
	return &checkFunc{name: name, fn: fn}
}

func (c *checkFunc) Name() string                    { return c.name }
func (c *checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckStatus is one probe's result in the HTTP response.
type CheckStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Response is the JSON body served by the handlers.
type Response struct {
	Status string                 `json:"status"`
	Checks map[string]CheckStatus `json:"checks,omitempty"`
}

// Checker runs registered checks concurrently with a per-check timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  []Check
	timeout time.Duration
	log     logger.Logger
}

// NewChecker creates a health checker. timeout bounds each individual check.
func NewChecker(timeout time.Duration, log logger.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{timeout: timeout, log: log}
}

// Add registers a dependency check.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// Handler serves the readiness probe: 200 when every check passes, 503
// otherwise, with per-check detail in the body.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.mu.RLock()
		checks := c.checks
		c.mu.RUnlock()

		resp := Response{
			Status: "healthy",
			Checks: make(map[string]CheckStatus, len(checks)),
		}

		var wg sync.WaitGroup
		results := make([]CheckStatus, len(checks))
		names := make([]string, len(checks))
		for i, check := range checks {
			wg.Add(1)
			go func(idx int, chk Check) {
				defer wg.Done()
				names[idx] = chk.Name()
				results[idx] = c.run(r.Context(), chk)
			}(i, check)
		}
		wg.Wait()

		healthy := true
		for i, result := range results {
			resp.Checks[names[i]] = result
			if result.Status != "ok" {
				healthy = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			resp.Status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil && c.log != nil {
			c.log.Error("failed to encode health response", logger.ErrorField(err))
		}
	}
}

func (c *Checker) run(parent context.Context, check Check) CheckStatus {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	if err != nil {
		if c.log != nil {
			c.log.Warn("health check failed",
				logger.StringField("check", check.Name()),
				logger.ErrorField(err),
				logger.DurationField("latency", latency),
			)
		}
		return CheckStatus{Status: "error", Error: err.Error(), Latency: latency.String()}
	}
	return CheckStatus{Status: "ok", Latency: latency.String()}
}
