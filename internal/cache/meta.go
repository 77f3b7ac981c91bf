package cache

import (
	"database/sql"
	"errors"
	"strconv"
)

// Meta provides typed access to the sync_meta singleton table. Only the
// sync engine writes attempt/success/status/error-count fields (§4.3); tool
// handlers only read them (for get_stats).
type Meta struct{ s *Store }

func (s *Store) Meta() *Meta { return &Meta{s: s} }

func (m *Meta) getString(key string) (string, bool, error) {
	var v string
	err := m.s.db.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (m *Meta) setString(key, value string) error {
	m.s.writeMu.Lock()
	defer m.s.writeMu.Unlock()
	_, err := m.s.db.Exec(`INSERT INTO sync_meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// BackendCursor returns the persisted cursor, or "" if absent (treated as a
// full-sync starting state).
func (m *Meta) BackendCursor() (string, error) {
	v, _, err := m.getString(metaBackendCursor)
	return v, err
}

func (m *Meta) SetBackendCursor(cursor string) error {
	return m.setString(metaBackendCursor, cursor)
}

// ClearBackendCursor removes the cursor, forcing the next sync cycle to run
// as a full sync.
func (m *Meta) ClearBackendCursor() error {
	m.s.writeMu.Lock()
	defer m.s.writeMu.Unlock()
	_, err := m.s.db.Exec(`DELETE FROM sync_meta WHERE key = ?`, metaBackendCursor)
	return err
}

type Status struct {
	LastAttemptAt     int64
	LastSuccessAt     int64
	LastDurationMs    int64
	LastStatus        string
	ConsecutiveErrors int
}

func (m *Meta) Status() (Status, error) {
	var st Status
	if v, ok, err := m.getString(metaLastSyncAttemptAt); err != nil {
		return st, err
	} else if ok {
		st.LastAttemptAt, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok, err := m.getString(metaLastSuccessSyncAt); err != nil {
		return st, err
	} else if ok {
		st.LastSuccessAt, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok, err := m.getString(metaLastSyncDurationMs); err != nil {
		return st, err
	} else if ok {
		st.LastDurationMs, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok, err := m.getString(metaLastSyncStatus); err != nil {
		return st, err
	} else if ok {
		st.LastStatus = v
	}
	if v, ok, err := m.getString(metaSyncErrorCount); err != nil {
		return st, err
	} else if ok {
		n, _ := strconv.Atoi(v)
		st.ConsecutiveErrors = n
	}
	return st, nil
}

func (m *Meta) RecordAttempt(atUnix int64) error {
	return m.setString(metaLastSyncAttemptAt, strconv.FormatInt(atUnix, 10))
}

func (m *Meta) RecordOutcome(successAtUnix int64, durationMs int64, status string, consecutiveErrors int) error {
	if successAtUnix > 0 {
		if err := m.setString(metaLastSuccessSyncAt, strconv.FormatInt(successAtUnix, 10)); err != nil {
			return err
		}
	}
	if err := m.setString(metaLastSyncDurationMs, strconv.FormatInt(durationMs, 10)); err != nil {
		return err
	}
	if err := m.setString(metaLastSyncStatus, status); err != nil {
		return err
	}
	return m.setString(metaSyncErrorCount, strconv.Itoa(consecutiveErrors))
}
