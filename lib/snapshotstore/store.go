// Package snapshotstore persists the result set of the last run and decides
// whether a new crawl should overwrite it.
package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/chrono"
	configlibsql "infojobs-candidatures/lib/configutil/libsql"
)

// ErrLocked is returned when another process holds the snapshot.
var ErrLocked = errors.New("snapshot is locked by another process")

// Store holds a single snapshot, every Save replaces the previous one.
// Loaded statuses are always re-derived from the events.
type Store interface {
	// Load returns the stored snapshot, ok is false if nothing was saved yet.
	Load(ctx context.Context) (snapshot []candidature.Candidature, ok bool, err error)
	Save(ctx context.Context, snapshot []candidature.Candidature) error
	// SavedAt returns when the snapshot was last saved.
	SavedAt(ctx context.Context) (at time.Time, ok bool, err error)
}

type Kind string

const (
	KindJSON Kind = "json"
	KindSQL  Kind = "sql"
)

type Config struct {
	Kind Kind `json:"kind"`
	// Path is the results file of the json store.
	Path     string              `json:"path"`
	Database configlibsql.Struct `json:"database"`
	// KeepRuns is the number of past runs the sql store retains.
	KeepRuns int `json:"keep_runs"`
}

// Open creates the store described by config, the returned closer
// releases it.
func Open(ctx context.Context, config Config, clock chrono.TimeAPI) (Store, func() error, error) {
	switch config.Kind {
	case KindJSON, "":
		if config.Path == "" {
			return nil, nil, fmt.Errorf("json snapshot store needs a path")
		}
		return NewJSONFile(config.Path), func() error { return nil }, nil
	case KindSQL:
		db, err := config.Database.OpenDB()
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot database: %w", err)
		}
		store, err := NewSQL(ctx, db, clock, config.KeepRuns)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot store kind %q", config.Kind)
	}
}
