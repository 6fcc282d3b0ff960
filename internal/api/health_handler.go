package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/familyhub/aniversaris/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Version is reported by /health. Set at build time.
var Version = "dev"

const notConfigured = "not configured"

// probe is one dependency check. run returns the message reported when
// the dependency answers.
type probe struct {
	name    string
	timeout time.Duration
	slow    time.Duration // 0 never reports degraded on latency
	failed  string        // status when run errors
	run     func(ctx context.Context) (string, error)
}

// HealthChecker reports on the database, Redis and the photo bucket. Nil
// dependencies are reported as not configured.
type HealthChecker struct {
	probes    []probe
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, s3Client *s3.Client, s3Bucket string) *HealthChecker {
	hc := &HealthChecker{startTime: time.Now()}

	database := probe{name: "database", timeout: 3 * time.Second, slow: time.Second, failed: "down"}
	schema := probe{name: "schema", timeout: 3 * time.Second, failed: "degraded"}
	if db != nil {
		database.run = func(ctx context.Context) (string, error) {
			return "connected", db.PingContext(ctx)
		}
		// A missing table means the migrate command has not run yet.
		schema.run = func(ctx context.Context) (string, error) {
			var n int
			err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n)
			return fmt.Sprintf("%d migrations applied", n), err
		}
	}

	cache := probe{name: "redis", timeout: 2 * time.Second, slow: 500 * time.Millisecond, failed: "down"}
	if redisClient != nil {
		cache.run = func(ctx context.Context) (string, error) {
			return "connected", redisClient.Ping(ctx).Err()
		}
	}

	bucket := probe{name: "s3", timeout: 3 * time.Second, failed: "down"}
	if s3Client != nil && s3Bucket != "" {
		bucket.run = func(ctx context.Context) (string, error) {
			_, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s3Bucket})
			return fmt.Sprintf("bucket %q accessible", s3Bucket), err
		}
	}

	hc.probes = []probe{database, schema, cache, bucket}
	return hc
}

// HandleHealth returns the status of every component. It always answers
// 200; the body carries the verdict.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: Version,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness always returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 503 while the database is unreachable.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":  overall != "unhealthy",
		"status": overall,
		"checks": checks,
	})
}

// runAllChecks runs every probe concurrently.
func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, len(hc.probes))
	for _, p := range hc.probes {
		go func(p probe) { ch <- result{p.name, p.check(ctx)} }(p)
	}

	checks := make(map[string]ComponentCheck, len(hc.probes))
	for range hc.probes {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func (p probe) check(ctx context.Context) ComponentCheck {
	if p.run == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	msg, err := p.run(ctx)
	latency := time.Since(start)

	switch {
	case err != nil:
		return ComponentCheck{Status: p.failed, Latency: latency.String(), Message: fmt.Sprintf("%s check failed: %v", p.name, err)}
	case p.slow > 0 && latency > p.slow:
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	default:
		return ComponentCheck{Status: "up", Latency: latency.String(), Message: msg}
	}
}

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if the database is configured and down
//   - "degraded"  if any check is degraded or a configured check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == "down" && db.Message != notConfigured {
		return "unhealthy"
	}

	for _, c := range checks {
		if c.Status == "degraded" || (c.Status == "down" && c.Message != notConfigured) {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime renders d like "3d 4h 12m 5s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	units := []struct {
		n      int
		suffix string
	}{
		{total / 86400, "d"},
		{total / 3600 % 24, "h"},
		{total / 60 % 60, "m"},
		{total % 60, "s"},
	}

	var parts []string
	for i, u := range units {
		if len(parts) == 0 && u.n == 0 && i < len(units)-1 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", u.n, u.suffix))
	}
	return strings.Join(parts, " ")
}
