package snapshotstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"infojobs-candidatures/internal/assert"
	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/chrono"
	"infojobs-candidatures/lib/snapshotstore/db"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultKeepRuns = 10

// SQL keeps the last few snapshots in a sqlite or libsql database, Load
// always returns the newest one.
type SQL struct {
	db       *sql.DB
	clock    chrono.TimeAPI
	keepRuns int
}

// NewSQL creates the schema if needed. keepRuns <= 0 uses DefaultKeepRuns.
func NewSQL(ctx context.Context, database *sql.DB, clock chrono.TimeAPI, keepRuns int) (*SQL, error) {
	assert.NotNil(database)
	assert.NotNil(clock)
	if keepRuns <= 0 {
		keepRuns = DefaultKeepRuns
	}
	_, err := database.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("create snapshot schema: %w", err)
	}
	return &SQL{db: database, clock: clock, keepRuns: keepRuns}, nil
}

type Run struct {
	ID      string
	SavedAt time.Time
	Count   int
}

func (s *SQL) latestRun(ctx context.Context) (Run, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`select id, saved_at from snapshot_run order by saved_at desc, rowid desc limit 1`,
	)
	var run Run
	var savedAt int64
	err := row.Scan(&run.ID, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	run.SavedAt = time.UnixMilli(savedAt)
	return run, true, nil
}

func (s *SQL) Load(ctx context.Context) ([]candidature.Candidature, bool, error) {
	ctx, span := tracer.Start(ctx, "SQL.Load")
	defer span.End()

	run, ok, err := s.latestRun(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	snapshot, err := s.LoadRun(ctx, run.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load run")
		return nil, false, err
	}
	return snapshot, true, nil
}

// LoadRun returns the snapshot saved by a specific run.
func (s *SQL) LoadRun(ctx context.Context, runID string) ([]candidature.Candidature, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select data from snapshot_candidature where run_id = ? order by position`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshot []candidature.Candidature
	for rows.Next() {
		var data string
		err := rows.Scan(&data)
		if err != nil {
			return nil, err
		}
		var c candidature.Candidature
		err = json.Unmarshal([]byte(data), &c)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		snapshot = append(snapshot, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return candidature.Rederive(snapshot)
}

// Runs lists the retained runs, newest first.
func (s *SQL) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select r.id, r.saved_at, count(c.position)
		from snapshot_run r
		left join snapshot_candidature c on c.run_id = r.id
		group by r.id, r.saved_at
		order by r.saved_at desc, r.rowid desc`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var savedAt int64
		err := rows.Scan(&run.ID, &savedAt, &run.Count)
		if err != nil {
			return nil, err
		}
		run.SavedAt = time.UnixMilli(savedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQL) Save(ctx context.Context, snapshot []candidature.Candidature) error {
	ctx, span := tracer.Start(ctx, "SQL.Save")
	defer span.End()

	runID := uuid.NewString()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("candidatures", len(snapshot)),
	)

	err := s.save(ctx, runID, snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save snapshot")
		return err
	}
	return nil
}

func (s *SQL) save(ctx context.Context, runID string, snapshot []candidature.Candidature) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`insert into snapshot_run (id, saved_at) values (?, ?)`,
		runID, s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return err
	}

	for i, c := range snapshot {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			`insert into snapshot_candidature (run_id, position, title, company_name, status, data)
			values (?, ?, ?, ?, ?, ?)`,
			runID, i, c.Title, c.CompanyName, c.Status.Name, string(data),
		)
		if err != nil {
			return err
		}
	}

	// sqlite does not enforce the cascade unless foreign keys are enabled
	// on the connection, so stale rows are pruned explicitly
	_, err = tx.ExecContext(
		ctx,
		`delete from snapshot_candidature where run_id in (
			select id from snapshot_run order by saved_at desc, rowid desc limit -1 offset ?
		)`,
		s.keepRuns,
	)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(
		ctx,
		`delete from snapshot_run where id in (
			select id from snapshot_run order by saved_at desc, rowid desc limit -1 offset ?
		)`,
		s.keepRuns,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQL) SavedAt(ctx context.Context) (time.Time, bool, error) {
	run, ok, err := s.latestRun(ctx)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return run.SavedAt, true, nil
}
