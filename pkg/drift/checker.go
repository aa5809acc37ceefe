package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/envlink/pkg/api"
	"github.com/platinummonkey/envlink/pkg/observability"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// lockKey guards against concurrent drift runs across daemon replicas.
const lockKey = "drift:run:lock"

// Locker is the distributed-lock primitive the checker needs. A nil
// Locker means runs are never skipped.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// ErrLockHeld is returned when another daemon replica holds the run lock.
var ErrLockHeld = fmt.Errorf("drift run lock held by another instance")

// Checker re-resolves exported projects and flags exports whose stored
// hash no longer matches a fresh resolution.
type Checker struct {
	storage     api.Storage
	locker      Locker
	metrics     *observability.Metrics
	log         *logrus.Entry
	concurrency int
	lockTTL     time.Duration
}

// Option configures a Checker
type Option func(*Checker)

// WithLocker enables the distributed run lock
func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(c *Checker) {
		c.locker = locker
		c.lockTTL = ttl
	}
}

// WithMetrics enables drift counters
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// WithConcurrency sets how many projects are checked in parallel
func WithConcurrency(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewChecker creates a drift checker over the given storage
func NewChecker(storage api.Storage, opts ...Option) *Checker {
	c := &Checker{
		storage:     storage,
		log:         logrus.WithField("component", "drift"),
		concurrency: 4,
		lockTTL:     10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExportStatus is the drift verdict for a single export
type ExportStatus struct {
	ExportID    string    `json:"export_id"`
	Project     string    `json:"project"`
	ExportPath  string    `json:"export_path"`
	ExportedAt  time.Time `json:"exported_at"`
	StoredHash  string    `json:"stored_hash"`
	CurrentHash string    `json:"current_hash,omitempty"`
	Stale       bool      `json:"stale"`
	Error       string    `json:"error,omitempty"`
}

// Report summarizes one drift run
type Report struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Checked   int            `json:"checked"`
	Stale     int            `json:"stale"`
	Errors    int            `json:"errors"`
	Exports   []ExportStatus `json:"exports"`
}

// Run performs one full drift check. Every export is compared against a
// fresh resolution of its project; projects are resolved once each, in
// parallel, from a single snapshot of the variable catalog.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	if c.locker != nil {
		acquired, err := c.locker.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), c.lockTTL)
		if err != nil {
			// A dead lock store shouldn't stop drift detection.
			c.log.WithError(err).Warn("lock check failed, proceeding without lock")
		} else if !acquired {
			return nil, ErrLockHeld
		}
	}

	start := time.Now()

	exports, err := c.storage.ListExports("")
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	report := &Report{
		StartedAt: start.UTC(),
		Exports:   make([]ExportStatus, 0, len(exports)),
	}
	if len(exports) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	envVars, err := c.storage.ListAllEnvVars()
	if err != nil {
		return nil, fmt.Errorf("failed to load variables: %w", err)
	}
	snap := api.SnapshotFromEnvVars(envVars)

	byProject := make(map[string][]*api.EnvExport)
	for _, export := range exports {
		byProject[export.Project] = append(byProject[export.Project], export)
	}

	hashes := c.resolveProjects(ctx, snap, byProject)

	for _, export := range exports {
		status := ExportStatus{
			ExportID:   export.ID,
			Project:    export.Project,
			ExportPath: export.ExportPath,
			ExportedAt: export.ExportedAt,
			StoredHash: export.ExportHash,
		}

		outcome := hashes[export.Project]
		switch {
		case outcome.err != nil:
			status.Error = outcome.err.Error()
			report.Errors++
			c.countCheck("error")
		case outcome.hash != export.ExportHash:
			status.CurrentHash = outcome.hash
			status.Stale = true
			report.Stale++
			c.countCheck("stale")
			if c.metrics != nil {
				c.metrics.DriftStaleExportsTotal.Inc()
			}
			c.log.WithFields(logrus.Fields{
				"export_id": export.ID,
				"project":   export.Project,
				"path":      export.ExportPath,
			}).Warn("export is stale")
		default:
			status.CurrentHash = outcome.hash
			c.countCheck("fresh")
		}

		report.Checked++
		report.Exports = append(report.Exports, status)
	}

	report.Duration = time.Since(start)
	c.log.WithFields(logrus.Fields{
		"checked":  report.Checked,
		"stale":    report.Stale,
		"errors":   report.Errors,
		"duration": report.Duration,
	}).Info("drift run completed")
	return report, nil
}

type hashOutcome struct {
	hash string
	err  error
}

// resolveProjects resolves each exported project once, in parallel, and
// returns the canonical hash (or resolution failure) per project.
func (c *Checker) resolveProjects(ctx context.Context, snap *resolver.Snapshot, byProject map[string][]*api.EnvExport) map[string]hashOutcome {
	type projectResult struct {
		project string
		outcome hashOutcome
	}

	results := make(chan projectResult, len(byProject))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for project := range byProject {
		project := project
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results <- projectResult{project, hashOutcome{err: err}}
				return nil
			}
			results <- projectResult{project, currentHash(snap, project)}
			return nil
		})
	}
	g.Wait()
	close(results)

	hashes := make(map[string]hashOutcome, len(byProject))
	for r := range results {
		hashes[r.project] = r.outcome
	}
	return hashes
}

// currentHash resolves one project from the snapshot and hashes the
// result. Any per-variable resolution error makes the hash undefined.
func currentHash(snap *resolver.Snapshot, project string) hashOutcome {
	result := resolver.Resolve(snap, resolver.ScopeProject(project))
	if len(result.Errors) > 0 {
		return hashOutcome{err: fmt.Errorf("project %q has %d unresolvable variable(s)", project, len(result.Errors))}
	}

	values := make(map[string]string, len(result.Resolved))
	for id, value := range result.Resolved {
		values[id.Name] = value
	}
	return hashOutcome{hash: api.HashResolvedValues(values)}
}

func (c *Checker) countCheck(status string) {
	if c.metrics != nil {
		c.metrics.DriftChecksTotal.WithLabelValues(status).Inc()
	}
}
