package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that the metadata store is reachable.
type Checker struct {
	metadataDB Pinger
	logger     *slog.Logger
	gauge      *prometheus.GaugeVec
}

// NewChecker creates a health checker and registers its Prometheus gauge.
func NewChecker(metadataDB Pinger, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "orchestrator",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		metadataDB: metadataDB,
		logger:     logger.With("component", "health"),
		gauge:      gauge,
	}
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings the metadata store and reports per-check status.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult),
	}

	if err := c.metadataDB.Ping(checkCtx); err != nil {
		c.logger.Warn("metadata store health check failed", "error", err)
		result.Status = "down"
		result.Checks["metadata_store"] = CheckResult{Status: "down", Error: err.Error()}
		c.gauge.WithLabelValues("metadata_store").Set(0)
	} else {
		result.Checks["metadata_store"] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues("metadata_store").Set(1)
	}

	return result
}

// ReadinessJSON satisfies metrics.ReadinessChecker.
func (c *Checker) ReadinessJSON(ctx context.Context) (bool, []byte) {
	result := c.Readiness(ctx)
	body, _ := json.Marshal(result)
	return result.Status == "up", body
}
