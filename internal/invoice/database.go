package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "extractions"

// ErrNotFound is returned when no record has the requested ID
var ErrNotFound = errors.New("record not found")

// DB defines the interface for the extraction history
type DB interface {
	// SaveRecord saves a record to the database
	SaveRecord(record *Record) error

	// GetRecord retrieves a record by ID
	GetRecord(id string) (*Record, error)

	// ListRecords returns all records, newest first
	ListRecords() ([]*Record, error)

	// DeleteRecord removes a record from the database
	DeleteRecord(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveRecord saves a record to the database
func (b *BoltDB) SaveRecord(record *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetRecord retrieves a record by ID
func (b *BoltDB) GetRecord(id string) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecords returns all records, newest first
func (b *BoltDB) ListRecords() ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// DeleteRecord removes a record from the database
func (b *BoltDB) DeleteRecord(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
