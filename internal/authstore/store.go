// Package authstore persists the backend session token between runs in a
// local BoltDB file, so the daemon and one-shot commands can authenticate
// without re-prompting for credentials.
package authstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNoSession is returned by [Store.Session] when no login has been saved.
var ErrNoSession = errors.New("no saved session")

var (
	bucketSession = []byte("session")
	sessionKey    = []byte("current")
)

// Session is the persisted login state.
type Session struct {
	Token   string    `json:"token"`
	Email   string    `json:"email"`
	SavedAt time.Time `json:"saved_at"`
}

// Store is a BoltDB-backed session store. Create one with [Open] and close
// it with [Store.Close].
type Store struct {
	db *bbolt.DB
}

// DefaultDBPath returns the standard location for the session database:
// ~/.local/share/teesync/auth.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "teesync", "auth.db"), nil
}

// Open opens (creating if necessary) the session database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create auth store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open auth store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists the session, replacing any previous one.
func (s *Store) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Put(sessionKey, data)
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Session returns the saved session, or [ErrNoSession] if none exists.
func (s *Store) Session() (*Session, error) {
	var sess *Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(sessionKey)
		if data == nil {
			return ErrNoSession
		}
		sess = &Session{}
		return json.Unmarshal(data, sess)
	})
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, err
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// Clear removes the saved session (logout). It is a no-op when no session
// exists.
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(sessionKey)
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
