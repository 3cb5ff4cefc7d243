// Package repository stores tasks, users and sprints in SQLite and serves
// them as snapshot collections.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/pkg/logger"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore reads and replaces snapshot collections in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSQLiteStore returns a store over an opened and migrated database.
func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{db: db, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchTasks returns tasks in saved order. A NULL sprint reads as the
// backlog sentinel.
func (s *SQLiteStore) FetchTasks(ctx context.Context) ([]model.Task, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT id_task, description, state, hours_estimated, hours_real,
		id_sprint, assigned_to, story_points, created_at, updated_at, finishes_at
		FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: tasks: %v", ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Task
	for rows.Next() {
		var (
			t                   model.Task
			state               string
			est, act            sql.NullFloat64
			sprintID            sql.NullInt64
			created, upd, finis sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Description, &state, &est, &act,
			&sprintID, &t.AssignedTo, &t.StoryPoints, &created, &upd, &finis); err != nil {
			return nil, fmt.Errorf("%w: scanning task: %v", ErrQuery, err)
		}
		t.State = model.ParseTaskState(state)
		t.HoursEstimated = nullableHours(est)
		t.HoursReal = nullableHours(act)
		t.SprintID = model.BacklogSprintID
		if sprintID.Valid {
			t.SprintID = sprintID.Int64
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(upd); err != nil {
			return nil, err
		}
		if t.FinishesAt, err = parseTime(finis); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating tasks: %v", ErrQuery, err)
	}
	s.observe(ctx, "tasks", start, len(out))
	return out, nil
}

// FetchUsers returns users in saved order.
func (s *SQLiteStore) FetchUsers(ctx context.Context) ([]model.User, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT id_user, name, position FROM users ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: users: %v", ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Position); err != nil {
			return nil, fmt.Errorf("%w: scanning user: %v", ErrQuery, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating users: %v", ErrQuery, err)
	}
	s.observe(ctx, "users", start, len(out))
	return out, nil
}

// FetchSprints returns sprints in saved order.
func (s *SQLiteStore) FetchSprints(ctx context.Context) ([]model.Sprint, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT id_sprint, name, starts_at, ends_at FROM sprints ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: sprints: %v", ErrQuery, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Sprint
	for rows.Next() {
		var (
			sp           model.Sprint
			starts, ends sql.NullString
		)
		if err := rows.Scan(&sp.ID, &sp.Name, &starts, &ends); err != nil {
			return nil, fmt.Errorf("%w: scanning sprint: %v", ErrQuery, err)
		}
		if sp.StartsAt, err = parseTime(starts); err != nil {
			return nil, err
		}
		if sp.EndsAt, err = parseTime(ends); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating sprints: %v", ErrQuery, err)
	}
	s.observe(ctx, "sprints", start, len(out))
	return out, nil
}

// SaveSnapshot replaces all three collections in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrSave, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"tasks", "users", "sprints"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("%w: clearing %s: %v", ErrSave, table, err)
		}
	}

	for i, u := range snap.Users {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id_user, seq, name, position) VALUES (?, ?, ?, ?)`,
			u.ID, i, u.Name, u.Position); err != nil {
			return fmt.Errorf("%w: user %d: %v", ErrSave, u.ID, err)
		}
	}
	for i, sp := range snap.Sprints {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sprints (id_sprint, seq, name, starts_at, ends_at) VALUES (?, ?, ?, ?, ?)`,
			sp.ID, i, sp.Name, formatTime(sp.StartsAt), formatTime(sp.EndsAt)); err != nil {
			return fmt.Errorf("%w: sprint %d: %v", ErrSave, sp.ID, err)
		}
	}
	for i, t := range snap.Tasks {
		var sprintID any
		if !t.InBacklog() {
			sprintID = t.SprintID
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks (id_task, seq, description, state, hours_estimated, hours_real,
			id_sprint, assigned_to, story_points, created_at, updated_at, finishes_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, i, t.Description, string(t.State), hoursArg(t.HoursEstimated), hoursArg(t.HoursReal),
			sprintID, t.AssignedTo, t.StoryPoints, formatTime(t.CreatedAt), formatTime(t.UpdatedAt), formatTime(t.FinishesAt)); err != nil {
			return fmt.Errorf("%w: task %d: %v", ErrSave, t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSave, err)
	}
	committed = true
	s.logger.Info(ctx, "snapshot saved",
		logger.Int("tasks", len(snap.Tasks)),
		logger.Int("users", len(snap.Users)),
		logger.Int("sprints", len(snap.Sprints)),
	)
	return nil
}

func (s *SQLiteStore) observe(ctx context.Context, collection string, start time.Time, n int) {
	s.logger.Debug(ctx, "collection loaded",
		logger.String("collection", collection),
		logger.Int("rows", n),
		logger.Duration("took", time.Since(start)),
	)
}

func nullableHours(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Hours(v.Float64)
}

func hoursArg(h *float64) any {
	if h == nil {
		return nil
	}
	return *h
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(v sql.NullString) (time.Time, error) {
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %v", ErrQuery, v.String, err)
	}
	return t, nil
}
