package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"dualbudget/internal/core"
)

const monthlyBudgetColumns = "id, profile_id, month, category_id, amount, created_at, updated_at"

// MonthlyBudgetStore holds per-month budget overrides. Rows are identified by their
// natural key (profile, month, category) and are never deleted.
type MonthlyBudgetStore struct {
	r *Repository
}

func scanMonthlyBudget(sc scanner) (core.MonthlyBudget, error) {
	var (
		mb core.MonthlyBudget
		id string
	)
	err := sc.Scan(&id, &mb.ProfileID, &monthColumn{&mb.Month}, &mb.CategoryID, &mb.Amount,
		&timeColumn{&mb.CreatedAt}, &timeColumn{&mb.UpdatedAt})
	return mb, err
}

func monthlyBudgetRow(mb core.MonthlyBudget) []any {
	return []any{mb.Key(), mb.ProfileID, mb.Month.String(), mb.CategoryID, mb.Amount.String(),
		formatTime(mb.CreatedAt), formatTime(mb.UpdatedAt)}
}

func (s *MonthlyBudgetStore) query(ctx context.Context, q querier, where string, args ...any) ([]core.MonthlyBudget, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+monthlyBudgetColumns+" FROM monthly_budgets"+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.MonthlyBudget
	for rows.Next() {
		mb, err := scanMonthlyBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mb)
	}
	return out, rows.Err()
}

// Upsert sets the budget of a category for a month. An existing row for the same
// key has its amount updated in place.
func (s *MonthlyBudgetStore) Upsert(ctx context.Context, profileID string, month core.Month, categoryID string, amount decimal.Decimal) (core.MonthlyBudget, error) {
	now := s.r.now()
	mb := core.MonthlyBudget{
		ProfileID:  profileID,
		Month:      month,
		CategoryID: categoryID,
		Amount:     amount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := mb.Validate(); err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("invalid monthly budget: %w", err)
	}

	err := s.r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO monthly_budgets ("+monthlyBudgetColumns+") VALUES ("+placeholders(7)+")"+
				" ON CONFLICT(profile_id, month, category_id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at",
			monthlyBudgetRow(mb)...)
		if err != nil {
			return err
		}
		mb, err = scanMonthlyBudget(tx.QueryRowContext(ctx,
			"SELECT "+monthlyBudgetColumns+" FROM monthly_budgets WHERE id = ?", mb.Key()))
		return err
	})
	if err != nil {
		return core.MonthlyBudget{}, wrap("upsert monthly budget "+mb.Key(), err)
	}

	slog.InfoContext(ctx, "Monthly budget set",
		"profile_id", profileID,
		"month", month.String(),
		"category_id", categoryID,
		"amount", amount.StringFixed(2))
	return mb, nil
}

func (s *MonthlyBudgetStore) Get(ctx context.Context, profileID string, month core.Month, categoryID string) (core.MonthlyBudget, error) {
	return s.GetForSync(ctx, core.MonthlyBudgetKey(profileID, month, categoryID))
}

// List returns the overrides of a profile for months from..to inclusive.
func (s *MonthlyBudgetStore) List(ctx context.Context, profileID string, from, to core.Month) ([]core.MonthlyBudget, error) {
	out, err := s.query(ctx, s.r.db, " WHERE profile_id = ? AND month >= ? AND month <= ? ORDER BY month, category_id",
		profileID, from.String(), to.String())
	if err != nil {
		return nil, wrap("list monthly budgets", err)
	}
	return out, nil
}

func (s *MonthlyBudgetStore) ListForSync(ctx context.Context, profileID string) ([]core.MonthlyBudget, error) {
	out, err := s.query(ctx, s.r.db, " WHERE profile_id = ? ORDER BY id", profileID)
	if err != nil {
		return nil, wrap("list monthly budgets for sync", err)
	}
	return out, nil
}

// GetForSync looks a row up by its natural key.
func (s *MonthlyBudgetStore) GetForSync(ctx context.Context, key string) (core.MonthlyBudget, error) {
	mb, err := scanMonthlyBudget(s.r.db.QueryRowContext(ctx,
		"SELECT "+monthlyBudgetColumns+" FROM monthly_budgets WHERE id = ?", key))
	if err != nil {
		return core.MonthlyBudget{}, wrap("get monthly budget "+key, err)
	}
	return mb, nil
}

// UpsertForSync writes a row verbatim, timestamps included.
func (s *MonthlyBudgetStore) UpsertForSync(ctx context.Context, mb core.MonthlyBudget) error {
	if err := mb.Validate(); err != nil {
		return fmt.Errorf("invalid monthly budget: %w", err)
	}
	_, err := s.r.db.ExecContext(ctx,
		"INSERT INTO monthly_budgets ("+monthlyBudgetColumns+") VALUES ("+placeholders(7)+")"+
			" ON CONFLICT(profile_id, month, category_id) DO UPDATE SET amount = excluded.amount,"+
			" created_at = excluded.created_at, updated_at = excluded.updated_at",
		monthlyBudgetRow(mb)...)
	return wrap("upsert monthly budget "+mb.Key()+" for sync", err)
}

func (s *MonthlyBudgetStore) Identity(mb core.MonthlyBudget) (string, time.Time) {
	return mb.Key(), mb.UpdatedAt
}

func (s *MonthlyBudgetStore) Same(a, b core.MonthlyBudget) bool {
	ra, rb := monthlyBudgetRow(a), monthlyBudgetRow(b)
	for i := range ra {
		if ra[i] != rb[i] {
			return false
		}
	}
	return true
}

// Table is the SQL table name, which also names the entity in change messages.
func (s *MonthlyBudgetStore) Table() string {
	return "monthly_budgets"
}
