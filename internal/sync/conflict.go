package sync

import (
	"github.com/rs/zerolog"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
)

// resolveEntry implements the server-wins conflict resolution rules (§4.4)
// for a single incoming index entry against the locally cached row. It never
// returns an error from the comparison itself; store-layer errors propagate
// from the ApplyRemote call.
//
//   - no local row                         -> upsert
//   - local server_version absent or lower -> upsert, local_version bumped
//   - local server_version higher          -> keep local, log a warning
//   - equal                                -> no-op
func resolveEntry(store *cache.Store, logger zerolog.Logger, incoming backend.IndexEntry, remote backend.NoteData) error {
	local, err := store.GetByID(incoming.ID)
	if err == cache.ErrNotFound {
		return applyIncoming(store, local, incoming, remote, true)
	}
	if err != nil {
		return err
	}

	switch {
	case local.ServerVersion == nil || *local.ServerVersion < incoming.Version:
		return applyIncoming(store, local, incoming, remote, false)
	case *local.ServerVersion > incoming.Version:
		logger.Warn().
			Str("note_id", incoming.ID).
			Int("local_server_version", *local.ServerVersion).
			Int("incoming_version", incoming.Version).
			Msg("local server_version ahead of incoming index entry, keeping local row")
		return nil
	default:
		return nil
	}
}

func applyIncoming(store *cache.Store, local cache.Note, incoming backend.IndexEntry, remote backend.NoteData, isNew bool) error {
	version := incoming.Version
	n := cache.Note{
		ID:            incoming.ID,
		LocalVersion:  local.LocalVersion + 1,
		ServerVersion: &version,
		Text:          remote.Text,
		Tags:          remote.Tags,
		ModifiedAt:    remote.ModifiedAt,
		CreatedAt:     remote.CreatedAt,
		Trash:         remote.Deleted,
	}
	if isNew {
		n.LocalVersion = 1
		n.CreatedAt = remote.CreatedAt
	}
	return store.ApplyRemote(n)
}
