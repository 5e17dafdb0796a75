package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sis/scholaris-sis/internal/catalog"
	jobmetrics "github.com/scholaris-sis/scholaris-sis/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CatalogDriftScanJob inspects stored role permissions for keys that are
// no longer part of the catalog. Such keys are harmless at evaluation
// time, they are simply never granted, but they indicate a stale seed or
// a removed feature and should be cleaned up.
type CatalogDriftScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCatalogDriftScanJob initialises the drift scan handler.
func NewCatalogDriftScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogDriftScanJob {
	return &CatalogDriftScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the drift scan logic.
func (j *CatalogDriftScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("drift scan: handler not configured")
	}
	var payload CatalogDriftScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskCatalogDriftScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting catalog drift scan")

	assignments, err := j.loadAssignments(ctx)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	drift := findDrift(assignments)
	for _, d := range drift {
		logger.Warn("permission key missing from catalog",
			slog.String("key", d.Key),
			slog.Int64("role_id", d.RoleID),
			slog.String("role", d.RoleName),
		)
		j.metrics().AddDriftKeys(d.Key, 1)
	}

	logger.Info("completed catalog drift scan",
		slog.Int("assignments", len(assignments)),
		slog.Int("drift_keys", len(drift)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return nil
}

type roleAssignment struct {
	RoleID   int64
	RoleName string
	Key      string
}

func (j *CatalogDriftScanJob) loadAssignments(ctx context.Context) ([]roleAssignment, error) {
	if j.Pool == nil {
		return nil, errors.New("drift scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx,
		`SELECT r.id, r.name, rp.permission_key
		 FROM role_permissions rp
		 JOIN roles r ON r.id = rp.role_id
		 ORDER BY r.id, rp.permission_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []roleAssignment
	for rows.Next() {
		var a roleAssignment
		if err := rows.Scan(&a.RoleID, &a.RoleName, &a.Key); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// findDrift returns the assignments whose key is not in the catalog.
func findDrift(assignments []roleAssignment) []roleAssignment {
	var drift []roleAssignment
	for _, a := range assignments {
		if !catalog.Exists(a.Key) {
			drift = append(drift, a)
		}
	}
	return drift
}

func (j *CatalogDriftScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatalogDriftScan))
	}
	return slog.Default().With(slog.String("job", TaskCatalogDriftScan))
}

func (j *CatalogDriftScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CatalogDriftScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
