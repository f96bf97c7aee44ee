// Package store persists one structured document per conversation and the
// conversation audio next to it.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/speaklarity/platform/internal/config"
	apperrors "github.com/speaklarity/platform/internal/errors"
)

// Store is the document store. Merge is shallow: each field replaces the
// top-level key of the same name, keys not named in the patch are kept.
type Store interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	Put(ctx context.Context, c *Conversation) error
	Merge(ctx context.Context, id string, f Fields) error
	List(ctx context.Context) ([]*Conversation, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open selects the configured driver.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.DriverFile:
		return NewFileStore(cfg.DataDir)
	case config.DriverSQLite:
		return OpenSQLite(cfg.Store.SQLitePath)
	default:
		return nil, apperrors.Newf(apperrors.ConfigInvalid, "unknown store driver %q", cfg.Store.Driver)
	}
}

func notFound(id string) error {
	return apperrors.Newf(apperrors.NotFound, "conversation %s not found", id).WithMetadata("conversation_id", id)
}

func sortConversations(cs []*Conversation) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].UploadedAt.Equal(cs[j].UploadedAt) {
			return cs[i].UploadedAt.Before(cs[j].UploadedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

var now = time.Now
