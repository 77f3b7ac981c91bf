package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Note is the cached representation of a note row (§3).
type Note struct {
	ID            string
	LocalVersion  int
	ServerVersion *int
	Text          string
	Tags          []string
	ModifiedAt    int64
	CreatedAt     int64
	Trash         bool
	SyncDeleted   bool
}

var ErrNotFound = errors.New("cache: note not found")
var ErrVersionConflict = errors.New("cache: local_version does not match stored row")

func normalize(s string) string {
	return norm.NFC.String(s)
}

func (s *Store) encodeText(text string) (string, error) {
	text = normalize(text)
	if s.cipher != nil {
		return s.cipher.encrypt(text)
	}
	return text, nil
}

func (s *Store) decodeText(stored string) string {
	if s.cipher == nil {
		return stored
	}
	plain, err := s.cipher.decrypt(stored)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to decrypt note text")
		return ""
	}
	return plain
}

func (s *Store) encodeTags(tags []string) (string, error) {
	normalized := make([]string, len(tags))
	for i, t := range tags {
		normalized[i] = normalize(t)
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	if s.cipher != nil {
		return s.cipher.encrypt(string(raw))
	}
	return string(raw), nil
}

func (s *Store) decodeTags(stored string) []string {
	raw := stored
	if s.cipher != nil {
		plain, err := s.cipher.decrypt(stored)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to decrypt note tags")
			return []string{}
		}
		raw = plain
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		s.logger.Warn().Err(err).Msg("invalid tags JSON on read, defaulting to empty array")
		return []string{}
	}
	return tags
}

func (s *Store) scanNote(row interface {
	Scan(dest ...any) error
}) (Note, error) {
	var n Note
	var serverVersion sql.NullInt64
	var text, tags string
	var trash, syncDeleted int
	if err := row.Scan(&n.ID, &n.LocalVersion, &serverVersion, &text, &tags, &n.ModifiedAt, &n.CreatedAt, &trash, &syncDeleted); err != nil {
		return Note{}, err
	}
	if serverVersion.Valid {
		v := int(serverVersion.Int64)
		n.ServerVersion = &v
	}
	n.Text = s.decodeText(text)
	n.Tags = s.decodeTags(tags)
	n.Trash = trash != 0
	n.SyncDeleted = syncDeleted != 0
	return n, nil
}

const noteColumns = "id, local_version, server_version, text, tags, modified_at, created_at, trash, sync_deleted"

// GetByID reads a single note by its opaque identifier.
func (s *Store) GetByID(id string) (Note, error) {
	row := s.db.QueryRow(fmt.Sprintf("SELECT %s FROM notes WHERE id = ?", noteColumns), id)
	n, err := s.scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	return n, err
}

// GetByIDAndVersion reads a note, additionally requiring that its stored
// local_version matches, satisfying the save/trash/untrash path's optimistic
// read contract (§4.6, §4.8).
func (s *Store) GetByIDAndVersion(id string, localVersion int) (Note, error) {
	n, err := s.GetByID(id)
	if err != nil {
		return Note{}, err
	}
	if n.LocalVersion != localVersion {
		return Note{}, ErrVersionConflict
	}
	return n, nil
}

// InsertNew inserts a brand-new locally authored note (§4.6). local_version
// is always 1 on first insert.
func (s *Store) InsertNew(n Note) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	text, err := s.encodeText(n.Text)
	if err != nil {
		return err
	}
	tags, err := s.encodeTags(n.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO notes (id, local_version, server_version, text, tags, modified_at, created_at, trash, sync_deleted)
		 VALUES (?, 1, ?, ?, ?, ?, ?, ?, 0)`,
		n.ID, n.ServerVersion, text, tags, n.ModifiedAt, n.CreatedAt, boolToInt(n.Trash),
	)
	return err
}

// UpdateAfterSave writes the post-save canonical row (§4.6): bumps
// local_version and sets the confirmed server_version in one statement.
func (s *Store) UpdateAfterSave(n Note) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	text, err := s.encodeText(n.Text)
	if err != nil {
		return err
	}
	tags, err := s.encodeTags(n.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`UPDATE notes SET local_version = ?, server_version = ?, text = ?, tags = ?, modified_at = ?, trash = ?
		 WHERE id = ?`,
		n.LocalVersion, n.ServerVersion, text, tags, n.ModifiedAt, boolToInt(n.Trash), n.ID,
	)
	return err
}

// ApplyRemote upserts a note from the sync engine's server-wins conflict
// resolution (§4.4). Together with MarkTombstone it is the only writer of
// sync_deleted; only MarkTombstone sets it to true.
func (s *Store) ApplyRemote(n Note) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	text, err := s.encodeText(n.Text)
	if err != nil {
		return err
	}
	tags, err := s.encodeTags(n.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO notes (id, local_version, server_version, text, tags, modified_at, created_at, trash, sync_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   local_version = excluded.local_version,
		   server_version = excluded.server_version,
		   text = excluded.text,
		   tags = excluded.tags,
		   modified_at = excluded.modified_at,
		   trash = excluded.trash,
		   sync_deleted = excluded.sync_deleted`,
		n.ID, n.LocalVersion, n.ServerVersion, text, tags, n.ModifiedAt, n.CreatedAt, boolToInt(n.Trash), boolToInt(n.SyncDeleted),
	)
	return err
}

// MarkTombstone implements the sync engine's per-entry NotFoundError degrade
// path (§4.3): trash=true, sync_deleted=true, local_version+=1.
func (s *Store) MarkTombstone(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(
		`UPDATE notes SET trash = 1, sync_deleted = 1, local_version = local_version + 1 WHERE id = ?`,
		id,
	)
	return err
}

// DeletePermanently hard-removes a row, local-only (§4.8).
func (s *Store) DeletePermanently(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	return err
}

// CountAll returns total row counts in notes and notes_fts, used by tests
// asserting the FTS-row-count-equals-notes-row-count invariant (§8).
func (s *Store) CountAll() (notesCount, ftsCount int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&notesCount); err != nil {
		return
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM notes_fts`).Scan(&ftsCount)
	return
}

// TotalNotes returns the row count for get_stats (§4.8).
func (s *Store) TotalNotes() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
