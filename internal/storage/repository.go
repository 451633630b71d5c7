package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

// Repository is the SQLite ledger store. It holds a single connection so that
// writes are serialized; multi-step mutations run in one transaction.
type Repository struct {
	db  *sql.DB
	now func() time.Time

	Accounts        *Store[core.Account]
	Categories      *Store[core.Category]
	Transactions    *Store[core.Transaction]
	IncomeSources   *Store[core.IncomeSource]
	Projects        *Store[core.Project]
	ProjectTypes    *Store[core.ProjectType]
	ProjectStatuses *Store[core.ProjectStatus]
	MonthlyBudgets  *MonthlyBudgetStore
}

// busyTimeout is how long a connection waits for another process's write lock
// before failing with SQLITE_BUSY.
const busyTimeout = 5 * time.Second

// dsn opens dbPath in WAL mode with a busy timeout. Transactions begin
// IMMEDIATE so a writer queues for the lock up front instead of failing when
// it upgrades from a read.
func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + q.Encode()
}

// NewSQLiteRepository opens the ledger at dbPath. Several processes may open the
// same file; writers wait for each other up to busyTimeout.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewRepository(db), nil
}

// NewRepository wraps an open database whose schema is already in place.
func NewRepository(db *sql.DB) *Repository {
	r := &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	r.Accounts = newStore(r, accountsTable)
	r.Categories = newStore(r, categoriesTable)
	r.Transactions = newStore(r, transactionsTable)
	r.IncomeSources = newStore(r, incomeSourcesTable)
	r.Projects = newStore(r, projectsTable)
	r.ProjectTypes = newStore(r, projectTypesTable)
	r.ProjectStatuses = newStore(r, projectStatusesTable)
	r.MonthlyBudgets = &MonthlyBudgetStore{r: r}
	return r
}

// SetClock replaces the time source used to stamp records.
func (r *Repository) SetClock(now func() time.Time) {
	r.now = func() time.Time { return now().UTC() }
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return wrap("ping", r.db.PingContext(ctx))
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateProfile creates a profile together with its settings. Zero settings fields
// take defaults. Both rows are written or neither is.
func (r *Repository) CreateProfile(ctx context.Context, name string, settings core.Settings) (core.Profile, core.Settings, error) {
	now := r.now()
	p := core.Profile{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := p.Validate(); err != nil {
		return core.Profile{}, core.Settings{}, fmt.Errorf("invalid profile: %w", err)
	}
	s := withDefaults(settings)
	s.ProfileID, s.CreatedAt, s.UpdatedAt = p.ID, now, now

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertProfile(ctx, tx, p, false); err != nil {
			return err
		}
		return insertSettings(ctx, tx, s, false)
	})
	if err != nil {
		return core.Profile{}, core.Settings{}, wrap("create profile", err)
	}

	slog.InfoContext(ctx, "Profile created", "profile_id", p.ID, "name", p.Name)
	return p, s, nil
}

func withDefaults(s core.Settings) core.Settings {
	if s.Currency == "" {
		s.Currency = "USD"
	}
	if !s.DefaultBudgetType.IsValid() {
		s.DefaultBudgetType = core.Household
	}
	if s.ForecastWindow <= 0 {
		s.ForecastWindow = 6
	}
	return s
}

func insertProfile(ctx context.Context, q querier, p core.Profile, upsert bool) error {
	query := "INSERT INTO profiles (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)"
	if upsert {
		query += " ON CONFLICT(id) DO UPDATE SET name = excluded.name, created_at = excluded.created_at, updated_at = excluded.updated_at"
	}
	_, err := q.ExecContext(ctx, query, p.ID, p.Name, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return err
}

func insertSettings(ctx context.Context, q querier, s core.Settings, upsert bool) error {
	query := `INSERT INTO settings (profile_id, currency, default_budget_type, forecast_window, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if upsert {
		query += ` ON CONFLICT(profile_id) DO UPDATE SET currency = excluded.currency,
			default_budget_type = excluded.default_budget_type, forecast_window = excluded.forecast_window,
			created_at = excluded.created_at, updated_at = excluded.updated_at`
	}
	_, err := q.ExecContext(ctx, query, s.ProfileID, s.Currency, string(s.DefaultBudgetType),
		int64(s.ForecastWindow), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

func (r *Repository) GetProfile(ctx context.Context, id string) (core.Profile, error) {
	var p core.Profile
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM profiles WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &timeColumn{&p.CreatedAt}, &timeColumn{&p.UpdatedAt})
	if err != nil {
		return core.Profile{}, wrap("get profile "+id, err)
	}
	return p, nil
}

func (r *Repository) ListProfiles(ctx context.Context) ([]core.Profile, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM profiles ORDER BY name, id")
	if err != nil {
		return nil, wrap("list profiles", err)
	}
	defer rows.Close()

	var out []core.Profile
	for rows.Next() {
		var p core.Profile
		if err := rows.Scan(&p.ID, &p.Name, &timeColumn{&p.CreatedAt}, &timeColumn{&p.UpdatedAt}); err != nil {
			return nil, wrap("list profiles", err)
		}
		out = append(out, p)
	}
	return out, wrap("list profiles", rows.Err())
}

func (r *Repository) GetSettings(ctx context.Context, profileID string) (core.Settings, error) {
	var s core.Settings
	err := r.db.QueryRowContext(ctx,
		`SELECT profile_id, currency, default_budget_type, forecast_window, created_at, updated_at
		FROM settings WHERE profile_id = ?`, profileID).
		Scan(&s.ProfileID, &s.Currency, &s.DefaultBudgetType, &s.ForecastWindow,
			&timeColumn{&s.CreatedAt}, &timeColumn{&s.UpdatedAt})
	if err != nil {
		return core.Settings{}, wrap("get settings "+profileID, err)
	}
	return s, nil
}

// UpsertProfileForSync writes a profile and its settings verbatim.
func (r *Repository) UpsertProfileForSync(ctx context.Context, p core.Profile, s core.Settings) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertProfile(ctx, tx, p, true); err != nil {
			return err
		}
		return insertSettings(ctx, tx, s, true)
	})
	return wrap("upsert profile "+p.ID+" for sync", err)
}

// Transfer moves money between two accounts of the same budget.
type Transfer struct {
	ProfileID     string
	BudgetType    core.BudgetType
	Date          core.Date
	Amount        decimal.Decimal // positive
	FromAccountID string
	ToAccountID   string
	CategoryID    string
	Description   string
}

var ErrInvalidTransfer = errors.New("invalid transfer")

// CreateTransfer writes the outgoing and incoming legs of a transfer, each linked to
// the other, in one transaction.
func (r *Repository) CreateTransfer(ctx context.Context, in Transfer) (out, incoming core.Transaction, err error) {
	if !in.Amount.IsPositive() || in.FromAccountID == in.ToAccountID {
		return out, incoming, ErrInvalidTransfer
	}

	out = core.Transaction{
		Meta:        core.Meta{ID: uuid.NewString(), ProfileID: in.ProfileID},
		BudgetType:  in.BudgetType,
		Date:        in.Date,
		Amount:      in.Amount.Neg(),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		AccountID:   in.FromAccountID,
	}
	incoming = out
	incoming.ID = uuid.NewString()
	incoming.Amount = in.Amount
	incoming.AccountID = in.ToAccountID
	out.LinkedTransactionID, incoming.LinkedTransactionID = incoming.ID, out.ID

	if err := r.Transactions.prepare(&out); err != nil {
		return core.Transaction{}, core.Transaction{}, err
	}
	if err := r.Transactions.prepare(&incoming); err != nil {
		return core.Transaction{}, core.Transaction{}, err
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.Transactions.insert(ctx, tx, &out); err != nil {
			return err
		}
		return r.Transactions.insert(ctx, tx, &incoming)
	})
	if err != nil {
		return core.Transaction{}, core.Transaction{}, wrap("create transfer", err)
	}

	slog.InfoContext(ctx, "Transfer created",
		"profile_id", in.ProfileID,
		"from_account", in.FromAccountID,
		"to_account", in.ToAccountID,
		"amount", in.Amount.StringFixed(2))
	return out, incoming, nil
}

// DeleteTransaction soft-deletes a transaction and, for a transfer, its linked leg.
// It returns the ids that were deleted.
func (r *Repository) DeleteTransaction(ctx context.Context, id string) ([]string, error) {
	deleted := []string{id}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		t, err := r.Transactions.queryOne(ctx, tx, " WHERE id = ? AND deleted_at IS NULL", id)
		if err != nil {
			return err
		}
		if err := r.Transactions.softDelete(ctx, tx, id); err != nil {
			return err
		}
		if t.LinkedTransactionID == "" {
			return nil
		}
		err = r.Transactions.softDelete(ctx, tx, t.LinkedTransactionID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err == nil {
			deleted = append(deleted, t.LinkedTransactionID)
		}
		return err
	})
	if err != nil {
		return nil, wrap("delete transaction "+id, err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "count", len(deleted))
	return deleted, nil
}
