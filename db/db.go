// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

// Package db persists sessions in a local BoltDB file so a later process
// can resume with the refresh-token grant instead of full credentials.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/AegisLabs/aegis/db/internal"
	"github.com/AegisLabs/aegis/global"
)

// Store is the persistent session store contract. It is a superset of
// the client's SessionStore interface, adding per-account lookup and
// lifecycle management.
type Store interface {
	// Session persistence
	Save(session *SessionRecord) error
	Get(accountID string) (*SessionRecord, error)
	Latest() (*SessionRecord, error)
	Delete(accountID string) error
	List() ([]SessionRecord, error)

	// Store management
	Close() error
	Backup(path string) error
}

// SessionRecord is the stored form of a session. The record carries the
// refresh material needed to resume plus enough metadata to pick the
// right account without decoding tokens.
type SessionRecord struct {
	AccountID        string    `json:"account_id"`
	DisplayName      string    `json:"display_name"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SavedAt          time.Time `json:"saved_at"`
}

// DB implements the Store interface using BoltDB
type DB struct {
	db      *bbolt.DB
	logger  global.Logger
	dataDir string
	mutex   sync.RWMutex
	closed  bool
}

// Config holds configuration options for the store
type Config struct {
	DataDir string
	Logger  global.Logger
}

// Option defines a configuration option for the store
type Option func(*Config)

// WithDataDir sets the data directory for the store
func WithDataDir(dataDir string) Option {
	return func(c *Config) {
		c.DataDir = dataDir
	}
}

// WithLogger sets the logger for the store
func WithLogger(logger global.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// New creates a new session store with functional options
func New(opts ...Option) (Store, error) {
	config := &Config{}

	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		return nil, NewValidationError("logger", nil, "logger is required")
	}

	d := &DB{
		logger: config.Logger,
	}

	if config.DataDir == "" {
		config.DataDir = d.determineDataDirectory()
	}
	d.dataDir = config.DataDir

	if err := os.MkdirAll(d.dataDir, 0755); err != nil {
		return nil, NewStoreError("create_data_dir",
			fmt.Errorf("failed to create data directory %s: %w", d.dataDir, err))
	}

	if err := d.openDatabase(); err != nil {
		return nil, err
	}

	if err := d.initializeSchema(); err != nil {
		_ = d.db.Close()
		return nil, NewStoreError("init_schema", err)
	}

	d.logger.Infof("Session store initialized at %s", filepath.Join(d.dataDir, "aegis.db"))
	return d, nil
}

// openDatabase opens the BoltDB database file
func (d *DB) openDatabase() error {
	dbPath := filepath.Join(d.dataDir, "aegis.db")
	options := &bbolt.Options{
		Timeout: 5 * time.Second,
	}

	db, err := bbolt.Open(dbPath, 0600, options)
	if err != nil {
		return NewStoreError("open_db",
			fmt.Errorf("failed to open database at %s: %w", dbPath, err))
	}

	d.db = db
	return nil
}

// determineDataDirectory determines the best data directory to use
func (d *DB) determineDataDirectory() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		d.logger.Warningf("Cannot determine home directory: %v", err)
		return filepath.Join(os.TempDir(), "aegis")
	}

	userDir := filepath.Join(homeDir, ".aegis")
	d.logger.Debugf("Using user data directory: %s", userDir)
	return userDir
}

// initializeSchema creates the initial bucket structure
func (d *DB) initializeSchema() error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		rootBuckets := []string{
			internal.BucketSessions,
			internal.BucketSystem,
		}

		for _, bucketName := range rootBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
			}
		}

		systemBucket := tx.Bucket([]byte(internal.BucketSystem))
		if err := systemBucket.Put([]byte(internal.KeySchemaVersion), []byte(internal.SchemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}

		return nil
	})
}

// Close closes the store
func (d *DB) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil
	}

	if d.db == nil {
		d.closed = true
		return nil
	}

	d.logger.Info("Closing session store")
	err := d.db.Close()
	d.closed = true

	if err != nil {
		return NewStoreError("close_db", err)
	}
	return nil
}

// Backup creates a backup of the store to the specified path
func (d *DB) Backup(path string) error {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if d.closed {
		return ErrStoreClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return NewStoreError("create_backup_dir", err)
	}

	return d.db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
}

// checkClosed verifies the store is not closed
func (d *DB) checkClosed() error {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if d.closed {
		return ErrStoreClosed
	}
	return nil
}
