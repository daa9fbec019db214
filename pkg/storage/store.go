package storage

import (
	"github.com/ternflow/tern/pkg/types"
)

// Store is the task ledger: it persists the lifecycle transitions the
// submitter observes so a restarted process can still report terminal states.
type Store interface {
	SaveTaskRecord(record *types.TaskRecord) error
	GetTaskRecord(taskID string) (*types.TaskRecord, error)
	ListTaskRecords() ([]*types.TaskRecord, error)
	DeleteTaskRecord(taskID string) error

	Close() error
}
