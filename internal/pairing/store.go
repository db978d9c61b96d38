package pairing

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flklr-dev/eva-link/internal/infrastructure/database"
)

// Storage keys in the link_store table.
const (
	keyPairingCode = "pairing_code"
	keyDeviceRef   = "device_ref"

	// codeLength is the fixed pairing code size the device expects.
	codeLength = 5
)

// DeviceRef identifies the last-connected device for reconnection.
type DeviceRef struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"last_seen"`
}

// Store is the SQLite-backed pairing and device persistence layer.
// All methods are safe for concurrent use. Every value is mirrored in
// memory; a storage failure never invalidates the in-memory copy.
type Store struct {
	db     *database.DB
	logger *slog.Logger

	mu        sync.Mutex
	code      []byte
	ref       *DeviceRef
	refLoaded bool
}

// NewStore creates a Store on an opened database. logger may be nil.
func NewStore(db *database.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// PairingCode returns the installation's pairing code, generating and
// persisting a fresh 5-byte code on first use.
//
// A persistence failure is logged and swallowed: the generated code is
// still returned and reused for the rest of the process lifetime. Only a
// randomness failure is returned as an error.
func (s *Store) PairingCode(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.code != nil {
		return cloneBytes(s.code), nil
	}

	stored, err := s.getValue(ctx, keyPairingCode)
	if err == nil {
		code, decErr := hex.DecodeString(stored)
		if decErr == nil && len(code) == codeLength {
			s.code = code
			return cloneBytes(code), nil
		}
		s.logger.Warn("stored pairing code is malformed, regenerating",
			"value_length", len(stored))
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("reading pairing code failed, generating in-memory code",
			"error", err)
	}

	code := make([]byte, codeLength)
	if _, err := rand.Read(code); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodeGeneration, err)
	}
	s.code = code

	if err := s.setValue(ctx, keyPairingCode, hex.EncodeToString(code)); err != nil {
		s.logger.Warn("persisting pairing code failed, code valid for this process only",
			"error", err)
	}

	return cloneBytes(code), nil
}

// SaveDeviceRef records the last-connected device. The in-memory copy is
// updated unconditionally; a returned error wraps ErrPersistenceFailed
// and means only that the value will not survive a restart.
func (s *Store) SaveDeviceRef(ctx context.Context, ref DeviceRef) error {
	s.mu.Lock()
	r := ref
	s.ref = &r
	s.refLoaded = true
	s.mu.Unlock()

	encoded, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("%w: encoding device ref: %w", ErrPersistenceFailed, err)
	}
	if err := s.setValue(ctx, keyDeviceRef, string(encoded)); err != nil {
		return fmt.Errorf("%w: writing device ref: %w", ErrPersistenceFailed, err)
	}
	return nil
}

// LoadDeviceRef returns the stored device reference, preferring the
// in-memory copy. The second return is false when no device has been
// connected (or the stored entry was cleared).
func (s *Store) LoadDeviceRef(ctx context.Context) (DeviceRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refLoaded {
		if s.ref == nil {
			return DeviceRef{}, false, nil
		}
		return *s.ref, true, nil
	}

	stored, err := s.getValue(ctx, keyDeviceRef)
	if errors.Is(err, sql.ErrNoRows) {
		s.refLoaded = true
		return DeviceRef{}, false, nil
	}
	if err != nil {
		return DeviceRef{}, false, fmt.Errorf("%w: reading device ref: %w", ErrPersistenceFailed, err)
	}

	var ref DeviceRef
	if err := json.Unmarshal([]byte(stored), &ref); err != nil {
		s.logger.Warn("stored device ref is malformed, discarding", "error", err)
		s.refLoaded = true
		return DeviceRef{}, false, nil
	}

	s.ref = &ref
	s.refLoaded = true
	return ref, true, nil
}

// ClearDeviceRef forgets the stored device. Used on caller-initiated
// disconnect and on reconnection exhaustion.
func (s *Store) ClearDeviceRef(ctx context.Context) error {
	s.mu.Lock()
	s.ref = nil
	s.refLoaded = true
	s.mu.Unlock()

	if err := s.deleteValue(ctx, keyDeviceRef); err != nil {
		return fmt.Errorf("%w: clearing device ref: %w", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *Store) getValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM link_store WHERE key = ?", key).Scan(&value)
	return value, err
}

func (s *Store) setValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO link_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) deleteValue(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM link_store WHERE key = ?", key)
	return err
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
