package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kipsunya/storefront-go/internal/api"
)

// Sentinel errors
var (
	// ErrNoSession is returned when no persisted session exists.
	ErrNoSession = errors.New("no persisted session")
)

// PersistedSession is the session state written to disk: the token pair
// and the cached account record. The three slots are written and cleared
// as a group; partial state is never persisted.
type PersistedSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         *api.User `json:"user,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// Store persists session state on the local filesystem. Only the session
// Manager writes to it; other components read tokens through the Manager.
type Store struct {
	baseDir string
}

// NewStore creates a session store.
// If baseDir is empty, uses ~/.kipsunya/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".kipsunya")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("session store initialized")

	return &Store{baseDir: baseDir}, nil
}

func (s *Store) sessionPath() string {
	return filepath.Join(s.baseDir, "session.json")
}

// Load reads the persisted session. Returns ErrNoSession when none has
// been saved.
func (s *Store) Load() (*PersistedSession, error) {
	data, err := os.ReadFile(s.sessionPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var ps PersistedSession
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	if ps.AccessToken == "" {
		return nil, ErrNoSession
	}

	return &ps, nil
}

// Save writes the session atomically.
func (s *Store) Save(ps *PersistedSession) error {
	ps.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write to temp file first
	path := s.sessionPath()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session: %w", err)
	}

	log.Debug().Str("path", path).Msg("session persisted")

	return nil
}

// Clear removes the persisted session. Missing state is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.sessionPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	log.Debug().Msg("session cleared")

	return nil
}
