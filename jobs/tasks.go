package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogDriftScan checks stored role permissions against the catalog.
	TaskCatalogDriftScan = "catalog:drift_scan"
)

// CatalogDriftScanPayload carries scheduling metadata for a drift scan.
type CatalogDriftScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewCatalogDriftScanTask constructs an Asynq task for a catalog drift scan.
func NewCatalogDriftScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(CatalogDriftScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogDriftScan, body, asynq.Queue(QueueDefault)), nil
}
