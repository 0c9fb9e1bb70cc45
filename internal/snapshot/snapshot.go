// Package snapshot holds the immutable result of a successful build and the
// Store that publishes it to request handlers.
//
// A Snapshot is never mutated after Publish. Readers call Store.Current once
// per request and keep using that value, so a concurrent Publish can never
// expose a mix of two builds.
package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/hotserve/internal/config"
	"github.com/conneroisu/hotserve/internal/routes"
	"github.com/conneroisu/hotserve/internal/templates"
)

// Snapshot is one consistent generation of config, templates and routes.
type Snapshot struct {
	ID         string
	Generation uint64
	BuiltAt    time.Time
	Config     *config.Config
	Templates  *templates.Registry
	Routes     *routes.Table
}

// New assembles a snapshot. The generation is assigned by Store.Publish.
func New(cfg *config.Config, reg *templates.Registry, table *routes.Table) *Snapshot {
	return &Snapshot{
		ID:        uuid.NewString(),
		BuiltAt:   time.Now(),
		Config:    cfg,
		Templates: reg,
		Routes:    table,
	}
}

// Store publishes snapshots atomically. The zero value is ready to use and
// holds no snapshot.
type Store struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the live snapshot, or nil before the first Publish.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish stamps snap with the next generation and makes it current. It
// returns the snapshot it replaced.
func (s *Store) Publish(snap *Snapshot) *Snapshot {
	snap.Generation = s.generation.Add(1)
	return s.current.Swap(snap)
}

// Generation returns the generation of the last published snapshot.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}
