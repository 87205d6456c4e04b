// Package credstore persists the session credential. The credential is
// the only artifact the client keeps on disk.
package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Key is the fixed storage key the credential lives under.
const Key = "token"

var bucket = []byte("session")

// Store — долговременное хранилище токена.
type Store interface {
	// Load returns the persisted credential, or "" when none is stored.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Bolt stores the credential in a single-bucket BoltDB file. The file is
// opened per call so that several CLI processes can share it.
type Bolt struct {
	path string
}

// NewBolt returns a Bolt store at path, creating the parent directory.
func NewBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, errors.New("credstore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("credstore: create dir: %w", err)
	}
	return &Bolt{path: path}, nil
}

func (b *Bolt) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("credstore: open %s: %w", b.path, err)
	}
	return db, nil
}

func (b *Bolt) Load() (string, error) {
	db, err := b.open()
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()
	var token string
	err = db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucket)
		if bk == nil {
			return nil
		}
		token = string(bk.Get([]byte(Key)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("credstore: load: %w", err)
	}
	return token, nil
}

func (b *Bolt) Save(token string) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	err = db.Update(func(tx *bolt.Tx) error {
		bk, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return bk.Put([]byte(Key), []byte(token))
	})
	if err != nil {
		return fmt.Errorf("credstore: save: %w", err)
	}
	return nil
}

func (b *Bolt) Clear() error {
	db, err := b.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	err = db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucket)
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(Key))
	})
	if err != nil {
		return fmt.Errorf("credstore: clear: %w", err)
	}
	return nil
}

// Memory is an in-process Store for tests and throwaway sessions.
type Memory struct {
	mu    sync.Mutex
	token string
	// Clears counts Clear calls.
	Clears int
}

func (m *Memory) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.Clears++
	return nil
}

// ClearCount returns Clears under the lock.
func (m *Memory) ClearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Clears
}
