package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dualbudget/internal/core"
)

var errMissingID = errors.New("missing id")

// metaColumns lead every soft-deletable table, in this order.
var metaColumns = []string{"id", "profile_id", "created_at", "updated_at", "deleted_at"}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// table maps one entity type onto its SQL table.
type table[T any] struct {
	name    string
	entity  string
	columns []string
	orderBy string

	meta     func(*T) *core.Meta
	dest     func(*T) []any // scan targets for columns
	args     func(*T) []any // bind values for columns
	validate func(*T) error

	budgetTyped bool
	dated       bool // has date and project_id columns
}

// Filter narrows active reads. Zero fields do not filter.
type Filter struct {
	ProfileID  string
	BudgetType core.BudgetType
	From, To   core.Date // inclusive; transactions only
	ProjectID  string    // transactions only
}

// Store reads and writes one soft-deletable entity type.
//
// Active reads (Get, List) hide soft-deleted rows. The ForSync accessors ignore the
// deletion state and exist for reconciliation with another store.
type Store[T any] struct {
	r *Repository
	t table[T]
}

func newStore[T any](r *Repository, t table[T]) *Store[T] {
	return &Store[T]{r: r, t: t}
}

// Table is the SQL table name, which also names the entity in change messages.
func (s *Store[T]) Table() string {
	return s.t.name
}

func (s *Store[T]) selectSQL() string {
	return "SELECT " + strings.Join(metaColumns, ", ") + ", " + strings.Join(s.t.columns, ", ") + " FROM " + s.t.name
}

func (s *Store[T]) insertSQL() string {
	cols := append(append([]string(nil), metaColumns...), s.t.columns...)
	return "INSERT INTO " + s.t.name + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
}

func (s *Store[T]) upsertSQL() string {
	set := []string{"profile_id = excluded.profile_id", "created_at = excluded.created_at", "updated_at = excluded.updated_at", "deleted_at = excluded.deleted_at"}
	for _, c := range s.t.columns {
		set = append(set, c+" = excluded."+c)
	}
	return s.insertSQL() + " ON CONFLICT(id) DO UPDATE SET " + strings.Join(set, ", ")
}

func (s *Store[T]) updateSQL() string {
	set := []string{"updated_at = ?", "deleted_at = ?"}
	for _, c := range s.t.columns {
		set = append(set, c+" = ?")
	}
	return "UPDATE " + s.t.name + " SET " + strings.Join(set, ", ") + " WHERE id = ?"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *Store[T]) scan(sc scanner) (T, error) {
	var rec T
	m := s.t.meta(&rec)
	dest := []any{&m.ID, &m.ProfileID, &timeColumn{&m.CreatedAt}, &timeColumn{&m.UpdatedAt}, &lifecycleColumn{&m.State}}
	if err := sc.Scan(append(dest, s.t.dest(&rec)...)...); err != nil {
		return rec, err
	}
	return rec, nil
}

// row returns the bind values of every column, meta columns first.
func (s *Store[T]) row(rec *T) []any {
	m := s.t.meta(rec)
	vals := []any{m.ID, m.ProfileID, formatTime(m.CreatedAt), formatTime(m.UpdatedAt), lifecycleValue(m.State)}
	return append(vals, s.t.args(rec)...)
}

func (s *Store[T]) query(ctx context.Context, q querier, where string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, s.selectSQL()+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store[T]) queryOne(ctx context.Context, q querier, where string, args ...any) (T, error) {
	return s.scan(q.QueryRowContext(ctx, s.selectSQL()+where, args...))
}

func (s *Store[T]) insert(ctx context.Context, q querier, rec *T) error {
	_, err := q.ExecContext(ctx, s.insertSQL(), s.row(rec)...)
	return err
}

func (s *Store[T]) overwrite(ctx context.Context, q querier, rec *T) error {
	m := s.t.meta(rec)
	args := append([]any{formatTime(m.UpdatedAt), lifecycleValue(m.State)}, s.t.args(rec)...)
	res, err := q.ExecContext(ctx, s.updateSQL(), append(args, m.ID)...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("update " + s.t.entity + " " + m.ID)
	}
	return nil
}

// prepare stamps a new record. A caller-supplied id is kept.
func (s *Store[T]) prepare(rec *T) error {
	m := s.t.meta(rec)
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}
	m.Init(id, m.ProfileID, s.r.now())
	if err := s.t.validate(rec); err != nil {
		return fmt.Errorf("invalid %s: %w", s.t.entity, err)
	}
	return nil
}

// Create stamps createdAt = updatedAt = now, assigns an id when none is set and
// inserts the record.
func (s *Store[T]) Create(ctx context.Context, rec *T) error {
	if err := s.prepare(rec); err != nil {
		return err
	}
	if err := s.insert(ctx, s.r.db, rec); err != nil {
		return wrap("create "+s.t.entity, err)
	}
	m := s.t.meta(rec)
	slog.InfoContext(ctx, "Record created", "entity", s.t.entity, "id", m.ID, "profile_id", m.ProfileID)
	return nil
}

// Get returns an active record.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	rec, err := s.queryOne(ctx, s.r.db, " WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return rec, wrap("get "+s.t.entity+" "+id, err)
	}
	return rec, nil
}

// List returns active records matching the filter.
func (s *Store[T]) List(ctx context.Context, f Filter) ([]T, error) {
	where, args, err := s.where(f)
	if err != nil {
		return nil, err
	}
	recs, err := s.query(ctx, s.r.db, where+" ORDER BY "+s.t.orderBy, args...)
	if err != nil {
		return nil, wrap("list "+s.t.name, err)
	}
	return recs, nil
}

func (s *Store[T]) where(f Filter) (string, []any, error) {
	conds := []string{"deleted_at IS NULL"}
	var args []any
	if f.ProfileID != "" {
		conds = append(conds, "profile_id = ?")
		args = append(args, f.ProfileID)
	}
	if f.BudgetType != "" {
		if !s.t.budgetTyped {
			return "", nil, fmt.Errorf("list %s: budget type filter not supported", s.t.name)
		}
		conds = append(conds, "budget_type = ?")
		args = append(args, string(f.BudgetType))
	}
	if !f.From.IsZero() || !f.To.IsZero() || f.ProjectID != "" {
		if !s.t.dated {
			return "", nil, fmt.Errorf("list %s: date or project filter not supported", s.t.name)
		}
	}
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// Update applies mutate to the active record and writes it back with a fresh
// updatedAt. Identity, creation time and deletion state cannot be changed this way.
func (s *Store[T]) Update(ctx context.Context, id string, mutate func(*T)) (T, error) {
	var (
		rec     T
		invalid error
	)
	err := s.r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = s.queryOne(ctx, tx, " WHERE id = ? AND deleted_at IS NULL", id)
		if err != nil {
			return err
		}
		m := s.t.meta(&rec)
		before := *m
		mutate(&rec)
		m.ID, m.ProfileID, m.CreatedAt, m.State = before.ID, before.ProfileID, before.CreatedAt, before.State

		if err := s.t.validate(&rec); err != nil {
			invalid = fmt.Errorf("invalid %s: %w", s.t.entity, err)
			return invalid
		}
		m.Touch(s.r.now())
		return s.overwrite(ctx, tx, &rec)
	})
	if invalid != nil {
		return rec, invalid
	}
	if err != nil {
		return rec, wrap("update "+s.t.entity+" "+id, err)
	}
	slog.InfoContext(ctx, "Record updated", "entity", s.t.entity, "id", id)
	return rec, nil
}

// Delete soft-deletes an active record.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := s.softDelete(ctx, s.r.db, id); err != nil {
		return wrap("delete "+s.t.entity+" "+id, err)
	}
	slog.InfoContext(ctx, "Record deleted", "entity", s.t.entity, "id", id)
	return nil
}

func (s *Store[T]) softDelete(ctx context.Context, q querier, id string) error {
	now := formatTime(s.r.now())
	res, err := q.ExecContext(ctx,
		"UPDATE "+s.t.name+" SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("delete " + s.t.entity + " " + id)
	}
	return nil
}

// ListForSync returns every row of the profile, soft-deleted ones included.
func (s *Store[T]) ListForSync(ctx context.Context, profileID string) ([]T, error) {
	recs, err := s.query(ctx, s.r.db, " WHERE profile_id = ? ORDER BY id", profileID)
	if err != nil {
		return nil, wrap("list "+s.t.name+" for sync", err)
	}
	return recs, nil
}

// GetForSync returns a row whatever its deletion state.
func (s *Store[T]) GetForSync(ctx context.Context, id string) (T, error) {
	rec, err := s.queryOne(ctx, s.r.db, " WHERE id = ?", id)
	if err != nil {
		return rec, wrap("get "+s.t.entity+" "+id+" for sync", err)
	}
	return rec, nil
}

// UpsertForSync writes a record verbatim: its own id, timestamps and deletion state
// are kept. An existing row is overwritten as a whole; there is no field merge.
func (s *Store[T]) UpsertForSync(ctx context.Context, rec T) error {
	m := s.t.meta(&rec)
	if m.ID == "" {
		return fmt.Errorf("upsert %s for sync: %w", s.t.entity, errMissingID)
	}
	if err := s.t.validate(&rec); err != nil {
		return fmt.Errorf("invalid %s: %w", s.t.entity, err)
	}
	if _, err := s.r.db.ExecContext(ctx, s.upsertSQL(), s.row(&rec)...); err != nil {
		return wrap("upsert "+s.t.entity+" "+m.ID+" for sync", err)
	}
	slog.DebugContext(ctx, "Record upserted for sync", "entity", s.t.entity, "id", m.ID, "deleted", m.State.IsDeleted())
	return nil
}

// Identity returns the record id and its last mutation time.
func (s *Store[T]) Identity(rec T) (string, time.Time) {
	m := s.t.meta(&rec)
	return m.ID, m.UpdatedAt
}

// Same reports whether two records would be stored identically.
func (s *Store[T]) Same(a, b T) bool {
	ra, rb := s.row(&a), s.row(&b)
	for i := range ra {
		if ra[i] != rb[i] {
			return false
		}
	}
	return true
}
