package tools

import (
	"time"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
)

// Context bundles everything a handler needs: the local cache, the remote
// client (used by save_note's write path, §4.6, and by manage_notes'
// trash/untrash), and process bookkeeping for manage_notes' get_stats action.
type Context struct {
	Store      *cache.Store
	Backend    backend.Client
	Bucket     string
	StartedAt  time.Time
}

func NewContext(store *cache.Store, client backend.Client, bucket string) *Context {
	return &Context{Store: store, Backend: client, Bucket: bucket, StartedAt: time.Now()}
}
