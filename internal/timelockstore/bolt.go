package timelockstore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var timeLocksBucket = []byte("time_locks")

// Bolt is a bbolt-backed Store: pending grants and their cancellation
// state survive a gateway restart, which matters because a grant's wait
// can outlast the process that started it.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if necessary) a bbolt database at path and
// ensures the time-locks bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open time-lock db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(timeLocksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init time-lock bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Close releases the underlying database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Insert(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(timeLocksBucket)
		data, err := json.Marshal(Record{ID: id, Cancelled: false})
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), data)
	})
}

func (b *Bolt) Get(id string) (Record, error) {
	var rec Record
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(timeLocksBucket)
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

func (b *Bolt) SetCancelled(id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(timeLocksBucket)
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		rec.Cancelled = true
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(id), updated)
	})
}
