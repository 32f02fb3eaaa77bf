// Package cache stores previously-resolved MP4 metadata — the flat
// sample table and AVC configuration — keyed by source identity, so a
// second probe of the same remote file can skip re-walking moov.
//
// This mirrors the reference NVR codebase's bbolt-backed log database
// (one bucket, JSON-encoded values, keyed lookups) rather than
// inventing a new storage shape.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"mp4demux/pkg/h264"
	"mp4demux/pkg/mp4"
)

const bucketName = "resolved_v1"

// Key identifies a cached source by its URL plus whatever the server
// reported about its identity. ETag and ContentLength are optional; a
// Key with neither set is stored and looked up by URL alone.
type Key struct {
	URL           string
	ETag          string
	ContentLength int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d", k.URL, k.ETag, k.ContentLength)
}

// Entry is the cached, already-resolved form of a probed source.
type Entry struct {
	FlatTable []mp4.FlatSample
	AVCC      []byte
	Width     int
	Height    int
	Codec     string
	CachedAt  time.Time
}

// DB wraps a bbolt database holding Entry records.
type DB struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: could not open database: %w: %v", err, path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: could not create bucket: %w", err)
	}

	return &DB{db: db}, nil
}

// Close releases the underlying bbolt file.
func (c *DB) Close() error {
	return c.db.Close()
}

// Get looks up a previously-stored Entry for key. found is false when
// nothing is cached for it.
func (c *DB) Get(key Key) (entry Entry, found bool, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		raw := b.Get([]byte(key.String()))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: get: %w", err)
	}
	return entry, found, nil
}

// Put stores entry under key, overwriting any prior value.
func (c *DB) Put(key Key, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put([]byte(key.String()), raw)
	})
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// EntryFromConfig builds an Entry from a resolved flat sample table
// and the AVC configuration parsed out of avcC.
func EntryFromConfig(flat []mp4.FlatSample, avcc []byte, cfg *h264.Config, now time.Time) Entry {
	return Entry{
		FlatTable: flat,
		AVCC:      avcc,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Codec:     cfg.Codec,
		CachedAt:  now,
	}
}
