// Package cache implements the local note cache: an embedded SQLite store
// with full-text search, schema versioning, and owner-binding integrity
// checks (§4.2).
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Config parameterizes Open with the values §4.2's startup sequence needs
// from process configuration.
type Config struct {
	Username      string
	EncryptionKey string
	KDFIterations int
}

// Store wraps the cache's *sql.DB. Writes are serialized through writeMu
// (§5: single writer, many concurrent WAL readers).
type Store struct {
	db      *sql.DB
	path    string
	cfg     Config
	cipher  *cipherBox
	logger  zerolog.Logger
	writeMu sync.Mutex
}

// Open performs the full §4.2 startup sequence against the cache file at
// path, returning the opened Store and whether a full resync is now
// required (any reset along the way sets this true).
func Open(path string, cfg Config, logger zerolog.Logger) (*Store, bool, error) {
	s := &Store{path: path, cfg: cfg, logger: logger}
	resync := false

	step := func(name string, fn func() error) error {
		logger.Debug().Str("step", name).Msg("cache open step")
		return fn()
	}

	if err := step("probe-or-recreate", func() error {
		reset, err := s.probeOrRecreate()
		if err != nil {
			return err
		}
		if reset {
			resync = true
		}
		return nil
	}); err != nil {
		return nil, false, err
	}

	isNew, err := s.isEmptyStore()
	if err != nil {
		return nil, false, err
	}

	if isNew {
		if err := step("create-schema", func() error {
			return s.createSchema(cfg)
		}); err != nil {
			return nil, false, err
		}
	} else {
		if err := step("integrity-check", func() error {
			ok, err := s.integrityCheck()
			if err != nil {
				return err
			}
			if !ok {
				logger.Warn().Msg("integrity check failed, resetting cache")
				if err := s.reset(); err != nil {
					return err
				}
				resync = true
				return s.createSchema(cfg)
			}
			return nil
		}); err != nil {
			return nil, false, err
		}

		if err := step("schema-version-check", func() error {
			version, err := s.userVersion()
			if err != nil {
				return err
			}
			if version == 0 || version != currentSchemaVersion {
				logger.Warn().Int("version", version).Msg("schema version mismatch, resetting cache")
				if err := s.reset(); err != nil {
					return err
				}
				resync = true
				return s.createSchema(cfg)
			}
			return nil
		}); err != nil {
			return nil, false, err
		}

		if err := step("owner-binding-check", func() error {
			reset, err := s.checkOwnerBinding(cfg.Username)
			if err != nil {
				return err
			}
			if reset {
				resync = true
				return s.createSchema(cfg)
			}
			return nil
		}); err != nil {
			return nil, false, err
		}
	}

	if cfg.EncryptionKey != "" {
		if err := step("apply-keying", func() error {
			return s.applyKeying(cfg)
		}); err != nil {
			return nil, false, err
		}
	}

	if err := step("apply-pragmas", func() error {
		return s.applyPragmas()
	}); err != nil {
		return nil, false, err
	}

	if resync {
		logger.Warn().Msg("full_resync_required")
	}

	return s, resync, nil
}

func (s *Store) probeOrRecreate() (bool, error) {
	if err := os.MkdirAll(dirOf(s.path), 0o700); err != nil {
		return false, fmt.Errorf("cache: creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return false, fmt.Errorf("cache: opening store: %w", err)
	}
	s.db = db

	_, probeErr := db.Exec("SELECT 1")
	if probeErr == nil {
		return false, nil
	}
	if !looksLikeCorruption(probeErr) {
		return false, fmt.Errorf("cache: probing store: %w", probeErr)
	}

	s.logger.Warn().Err(probeErr).Msg("cache file unusable, recreating")
	db.Close()
	if err := s.removeFiles(); err != nil {
		return false, err
	}
	db, err = sql.Open("sqlite", s.path)
	if err != nil {
		return false, err
	}
	s.db = db
	return true, nil
}

func looksLikeCorruption(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed") || strings.Contains(msg, "file is encrypted")
}

func (s *Store) isEmptyStore() (bool, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='notes'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: checking schema: %w", err)
	}
	return false, nil
}

func (s *Store) createSchema(cfg Config) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("cache: applying schema: %w", err)
	}

	ownerHash := computeOwnerHash(cfg.Username)
	if _, err := tx.Exec(`INSERT OR REPLACE INTO sync_meta(key, value) VALUES (?, ?)`, metaOwnerIdentityHash, ownerHash); err != nil {
		return err
	}

	if cfg.EncryptionKey != "" {
		salt, err := newSalt()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO sync_meta(key, value) VALUES (?, ?)`, metaDBKeySaltHex, salt); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) integrityCheck() (bool, error) {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return false, err
	}
	return result == "ok", nil
}

func (s *Store) userVersion() (int, error) {
	var v int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) checkOwnerBinding(username string) (reset bool, err error) {
	want := computeOwnerHash(username)
	var got string
	err = s.db.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, metaOwnerIdentityHash).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn().Msg("owner identity hash absent with existing tables, resetting cache")
		return true, s.reset()
	}
	if err != nil {
		return false, err
	}
	if got != want {
		s.logger.Warn().Msg("owner identity hash mismatch, resetting cache")
		return true, s.reset()
	}
	return false, nil
}

func (s *Store) applyKeying(cfg Config) error {
	var saltHex string
	err := s.db.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, metaDBKeySaltHex).Scan(&saltHex)
	if errors.Is(err, sql.ErrNoRows) {
		salt, genErr := newSalt()
		if genErr != nil {
			return genErr
		}
		if _, err := s.db.Exec(`INSERT INTO sync_meta(key, value) VALUES (?, ?)`, metaDBKeySaltHex, salt); err != nil {
			return err
		}
		saltHex = salt
	} else if err != nil {
		return err
	}

	box, err := newCipherBox(cfg.EncryptionKey, saltHex, cfg.KDFIterations)
	if err != nil {
		return fmt.Errorf("cache: deriving encryption key: %w", err)
	}
	s.cipher = box
	return nil
}

func (s *Store) applyPragmas() error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("cache: applying pragma %q: %w", p, err)
		}
	}
	return nil
}

// reset closes and removes the cache file and its WAL/SHM siblings, then
// opens a fresh, empty handle at the same path. It does not create the
// schema; callers inside Open set full_resync_required themselves.
func (s *Store) reset() error {
	if s.db != nil {
		s.db.Close()
	}
	if err := s.removeFiles(); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

// Reset implements the manage tool's reset_cache action (§4.8): close,
// delete, and recreate the cache file, replaying the schema-creation,
// keying, and pragma steps of Open in place so the running process keeps
// working against it without a restart — the next sync cycle sees no
// backend cursor and runs a full resync.
func (s *Store) Reset() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.reset(); err != nil {
		return err
	}
	if err := s.createSchema(s.cfg); err != nil {
		return err
	}
	if s.cfg.EncryptionKey != "" {
		if err := s.applyKeying(s.cfg); err != nil {
			return err
		}
	}
	return s.applyPragmas()
}

func (s *Store) removeFiles() error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := s.path + suffix
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cache: removing %s: %w", p, err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FileSize returns the on-disk size of the cache's main file, used by the
// get_stats manage action (§4.8).
func (s *Store) FileSize() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// SchemaVersion exposes the store's PRAGMA user_version for get_stats.
func (s *Store) SchemaVersion() (int, error) {
	return s.userVersion()
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
