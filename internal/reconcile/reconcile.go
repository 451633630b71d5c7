// Package reconcile copies one ledger store's records into another through the
// for-sync accessors, soft-deleted records included.
//
// The base policy is last writer wins at whole-record granularity: the source record
// replaces the destination record unconditionally. NewerWins adds a timestamp gate
// that keeps destination records whose updatedAt is strictly later.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dualbudget/internal/core"
	"dualbudget/internal/storage"
)

type Policy string

const (
	Overwrite Policy = "overwrite"
	NewerWins Policy = "newer_wins"
)

var ErrUnknownEntity = errors.New("unknown entity")

// ParsePolicy accepts "overwrite" (or empty) and "newer_wins".
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", Overwrite:
		return Overwrite, nil
	case NewerWins:
		return NewerWins, nil
	default:
		return "", fmt.Errorf("unknown sync policy %q", s)
	}
}

// Table is the for-sync surface of one entity type.
type Table[T any] interface {
	ListForSync(ctx context.Context, profileID string) ([]T, error)
	GetForSync(ctx context.Context, id string) (T, error)
	UpsertForSync(ctx context.Context, rec T) error
	Identity(rec T) (id string, updatedAt time.Time)
	Same(a, b T) bool
}

// Counts tallies what happened to the source records of one entity type.
type Counts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

func (c Counts) Total() int {
	return c.Inserted + c.Updated + c.Unchanged + c.Skipped
}

// Report is the outcome of a push, keyed by entity table name.
type Report struct {
	ProfileID string            `json:"profile_id"`
	Policy    Policy            `json:"policy"`
	Entities  map[string]Counts `json:"entities"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
}

// Written is the number of records inserted or updated across all entities.
func (r Report) Written() int {
	n := 0
	for _, c := range r.Entities {
		n += c.Inserted + c.Updated
	}
	return n
}

type Reconciler struct {
	policy Policy
	now    func() time.Time
}

func New(policy Policy) *Reconciler {
	if policy == "" {
		policy = Overwrite
	}
	return &Reconciler{policy: policy, now: time.Now}
}

func (r *Reconciler) Policy() Policy {
	return r.policy
}

type entitySync struct {
	name string
	all  func(ctx context.Context, r *Reconciler, src, dst *storage.Repository, profileID string) (Counts, error)
	one  func(ctx context.Context, r *Reconciler, src, dst *storage.Repository, id string) (Counts, error)
}

func entity[T any](name string, table func(*storage.Repository) Table[T]) entitySync {
	return entitySync{
		name: name,
		all: func(ctx context.Context, r *Reconciler, src, dst *storage.Repository, profileID string) (Counts, error) {
			return pushTable(ctx, r, table(src), table(dst), profileID)
		},
		one: func(ctx context.Context, r *Reconciler, src, dst *storage.Repository, id string) (Counts, error) {
			return pushOne(ctx, r, table(src), table(dst), id)
		},
	}
}

// entities is the order Push applies: records that others refer to come first.
var entities = []entitySync{
	entity("project_statuses", func(s *storage.Repository) Table[core.ProjectStatus] { return s.ProjectStatuses }),
	entity("project_types", func(s *storage.Repository) Table[core.ProjectType] { return s.ProjectTypes }),
	entity("income_sources", func(s *storage.Repository) Table[core.IncomeSource] { return s.IncomeSources }),
	entity("accounts", func(s *storage.Repository) Table[core.Account] { return s.Accounts }),
	entity("categories", func(s *storage.Repository) Table[core.Category] { return s.Categories }),
	entity("projects", func(s *storage.Repository) Table[core.Project] { return s.Projects }),
	entity("transactions", func(s *storage.Repository) Table[core.Transaction] { return s.Transactions }),
	entity("monthly_budgets", func(s *storage.Repository) Table[core.MonthlyBudget] { return s.MonthlyBudgets }),
}

// ProfilesEntity names the profile-and-settings pair in reports and PushRecord.
const ProfilesEntity = "profiles"

// EntityNames returns the entity names PushRecord accepts, in push order.
func EntityNames() []string {
	names := []string{ProfilesEntity}
	for _, e := range entities {
		names = append(names, e.name)
	}
	return names
}

// Push applies every record of the profile in src to dst, soft-deleted records
// included. Callers must not run two pushes against the same destination concurrently.
func (r *Reconciler) Push(ctx context.Context, src, dst *storage.Repository, profileID string) (Report, error) {
	rep := Report{
		ProfileID: profileID,
		Policy:    r.policy,
		Entities:  make(map[string]Counts, len(entities)+1),
		Started:   r.now(),
	}

	c, err := r.pushProfile(ctx, src, dst, profileID)
	if err != nil {
		return rep, err
	}
	rep.Entities[ProfilesEntity] = c

	for _, e := range entities {
		c, err := e.all(ctx, r, src, dst, profileID)
		if err != nil {
			return rep, fmt.Errorf("push %s: %w", e.name, err)
		}
		rep.Entities[e.name] = c
	}

	rep.Finished = r.now()
	slog.InfoContext(ctx, "Reconciliation completed",
		"profile_id", profileID,
		"policy", r.policy,
		"written", rep.Written(),
		"duration", rep.Finished.Sub(rep.Started))
	return rep, nil
}

// PushRecord applies a single source record to dst, mirroring one change without a
// full pass. For ProfilesEntity the id is the profile id.
func (r *Reconciler) PushRecord(ctx context.Context, src, dst *storage.Repository, entityName, id string) (Counts, error) {
	if entityName == ProfilesEntity {
		return r.pushProfile(ctx, src, dst, id)
	}
	for _, e := range entities {
		if e.name == entityName {
			c, err := e.one(ctx, r, src, dst, id)
			if err != nil {
				return c, fmt.Errorf("push %s %s: %w", entityName, id, err)
			}
			return c, nil
		}
	}
	return Counts{}, fmt.Errorf("%w: %q", ErrUnknownEntity, entityName)
}

func (r *Reconciler) pushProfile(ctx context.Context, src, dst *storage.Repository, profileID string) (Counts, error) {
	var c Counts
	p, err := src.GetProfile(ctx, profileID)
	if err != nil {
		return c, fmt.Errorf("push profile: %w", err)
	}
	s, err := src.GetSettings(ctx, profileID)
	if err != nil {
		return c, fmt.Errorf("push profile settings: %w", err)
	}

	existing, err := dst.GetProfile(ctx, profileID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.Inserted++
	case err != nil:
		return c, fmt.Errorf("push profile: %w", err)
	default:
		same, err := sameProfile(ctx, dst, p, s, existing)
		if err != nil {
			return c, fmt.Errorf("push profile settings: %w", err)
		}
		switch {
		case same:
			c.Unchanged++
			return c, nil
		case r.policy == NewerWins && existing.UpdatedAt.After(p.UpdatedAt):
			c.Skipped++
			return c, nil
		}
		c.Updated++
	}
	if err := dst.UpsertProfileForSync(ctx, p, s); err != nil {
		return Counts{}, fmt.Errorf("push profile: %w", err)
	}
	return c, nil
}

// sameProfile reports whether dst already holds p and s field for field. A
// destination profile without settings is never the same.
func sameProfile(ctx context.Context, dst *storage.Repository, p core.Profile, s core.Settings, cur core.Profile) (bool, error) {
	if cur.Name != p.Name || !cur.CreatedAt.Equal(p.CreatedAt) || !cur.UpdatedAt.Equal(p.UpdatedAt) {
		return false, nil
	}
	curSettings, err := dst.GetSettings(ctx, p.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return curSettings.Currency == s.Currency &&
		curSettings.DefaultBudgetType == s.DefaultBudgetType &&
		curSettings.ForecastWindow == s.ForecastWindow &&
		curSettings.CreatedAt.Equal(s.CreatedAt) &&
		curSettings.UpdatedAt.Equal(s.UpdatedAt), nil
}

func pushTable[T any](ctx context.Context, r *Reconciler, src, dst Table[T], profileID string) (Counts, error) {
	var c Counts
	records, err := src.ListForSync(ctx, profileID)
	if err != nil {
		return c, err
	}
	existing, err := dst.ListForSync(ctx, profileID)
	if err != nil {
		return c, err
	}
	byID := make(map[string]T, len(existing))
	for _, rec := range existing {
		id, _ := dst.Identity(rec)
		byID[id] = rec
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		id, _ := src.Identity(rec)
		cur, found := byID[id]
		if err := apply(ctx, r.policy, dst, rec, cur, found, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

func pushOne[T any](ctx context.Context, r *Reconciler, src, dst Table[T], id string) (Counts, error) {
	var c Counts
	rec, err := src.GetForSync(ctx, id)
	if err != nil {
		return c, err
	}
	cur, err := dst.GetForSync(ctx, id)
	found := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return c, err
	}
	err = apply(ctx, r.policy, dst, rec, cur, found, &c)
	return c, err
}

// apply decides the fate of one source record against the destination's copy.
func apply[T any](ctx context.Context, policy Policy, dst Table[T], rec, cur T, found bool, c *Counts) error {
	switch {
	case !found:
		c.Inserted++
	case dst.Same(rec, cur):
		c.Unchanged++
		return nil
	case policy == NewerWins && newer(dst, cur, rec):
		c.Skipped++
		return nil
	default:
		c.Updated++
	}
	return dst.UpsertForSync(ctx, rec)
}

// newer reports whether a was modified strictly after b.
func newer[T any](t Table[T], a, b T) bool {
	_, at := t.Identity(a)
	_, bt := t.Identity(b)
	return at.After(bt)
}
