package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kdb-labs/kospi-chat/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	listingsBucket    = []byte("listings")
	latestListingsKey = []byte("latest")
)

// BoltDB keeps the reference security list in a BoltDB file, so a freshly opened dashboard can fill
// its security picker before the market backend answers. Only the latest list is kept; nothing else
// is stored.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with the required bucket and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(listingsBucket)
		return err
	})

	return BoltDB{db: db}, err
}

// Listings returns the stored security list in the order it was saved. An empty store yields a nil
// slice.
func (b BoltDB) Listings(context.Context) ([]models.SecurityListing, error) {
	var listings []models.SecurityListing
	err := b.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(listingsBucket)
		if b == nil {
			return nil
		}

		v := b.Get(latestListingsKey)
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &listings); err != nil {
			return fmt.Errorf("failed to unmarshal listings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// SaveListings replaces the stored security list with the given one.
func (b BoltDB) SaveListings(_ context.Context, listings []models.SecurityListing) error {
	v, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(listingsBucket)
		if err != nil {
			return fmt.Errorf("failed to create listings bucket: %w", err)
		}
		return b.Put(latestListingsKey, v)
	})
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
