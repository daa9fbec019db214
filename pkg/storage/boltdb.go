package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/ternflow/tern/pkg/types"
)

var (
	bucketTasks = []byte("tasks")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "tern.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTasks); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketTasks, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveTaskRecord writes or overwrites the ledger row for a task
func (s *BoltStore) SaveTaskRecord(record *types.TaskRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal task record: %w", err)
		}
		return b.Put([]byte(record.TaskID), data)
	})
}

// GetTaskRecord retrieves the ledger row for a task
func (s *BoltStore) GetTaskRecord(taskID string) (*types.TaskRecord, error) {
	var record *types.TaskRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(taskID))
		if data == nil {
			return fmt.Errorf("task record not found: %s", taskID)
		}
		record = &types.TaskRecord{}
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListTaskRecords returns all ledger rows
func (s *BoltStore) ListTaskRecords() ([]*types.TaskRecord, error) {
	var records []*types.TaskRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.ForEach(func(k, v []byte) error {
			record := &types.TaskRecord{}
			if err := json.Unmarshal(v, record); err != nil {
				return fmt.Errorf("failed to unmarshal task record %s: %w", k, err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteTaskRecord removes the ledger row for a task
func (s *BoltStore) DeleteTaskRecord(taskID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.Delete([]byte(taskID))
	})
}
