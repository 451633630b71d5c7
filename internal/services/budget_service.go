package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"dualbudget/internal/amqp"
	"dualbudget/internal/budget"
	"dualbudget/internal/buckets"
	"dualbudget/internal/cache"
	"dualbudget/internal/core"
	"dualbudget/internal/reconcile"
	"dualbudget/internal/storage"
)

var (
	// ErrNoPeer is returned by Reconcile when no peer store is configured.
	ErrNoPeer = errors.New("no peer store configured")
	// ErrInvalidReference is returned when a write names a record that does not
	// exist or belongs to another profile or budget.
	ErrInvalidReference = errors.New("invalid reference")
)

// Publisher announces ledger changes to other processes.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
	Close() error
}

const (
	summaryCacheSize = 256
	summaryCacheTTL  = 5 * time.Minute
)

// BudgetService orchestrates the ledger store, the budget engine and change
// notifications. Writes go to SQLite first; publishing is best effort.
type BudgetService struct {
	repo       *storage.Repository
	catalog    *buckets.Catalog
	publisher  Publisher
	peer       *storage.Repository
	reconciler *reconcile.Reconciler
	summaries  *cache.LRUCache[budget.BudgetSummary]

	forecastWindow int

	// syncMu guards syncLocks, one mutex per profile being reconciled.
	syncMu    sync.Mutex
	syncLocks map[string]*sync.Mutex
}

// NewBudgetService wires the service. publisher may be nil, in which case
// changes are not announced.
func NewBudgetService(repo *storage.Repository, catalog *buckets.Catalog, publisher Publisher) *BudgetService {
	if catalog == nil {
		catalog = buckets.Default()
	}
	return &BudgetService{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		summaries: cache.NewLRUCache[budget.BudgetSummary](summaryCacheSize, summaryCacheTTL),

		forecastWindow: budget.DefaultForecastWindow,
	}
}

// WithForecastWindow sets the trailing window used when a profile has none.
func (s *BudgetService) WithForecastWindow(months int) *BudgetService {
	if months > 0 {
		s.forecastWindow = months
	}
	return s
}

// WithPeer enables Reconcile against a second ledger store.
func (s *BudgetService) WithPeer(peer *storage.Repository, r *reconcile.Reconciler) *BudgetService {
	s.peer = peer
	s.reconciler = r
	return s
}

// SummaryCache exposes the summary cache for periodic cleanup.
func (s *BudgetService) SummaryCache() cache.Cleaner {
	return s.summaries
}

// Ping checks that the ledger store is reachable.
func (s *BudgetService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *BudgetService) CreateProfile(ctx context.Context, name string, settings core.Settings) (core.Profile, core.Settings, error) {
	p, st, err := s.repo.CreateProfile(ctx, name, settings)
	if err != nil {
		return p, st, fmt.Errorf("create profile: %w", err)
	}
	s.publish(ctx, p.ID, reconcile.ProfilesEntity, p.ID, amqp.OpUpsert)
	return p, st, nil
}

func (s *BudgetService) Settings(ctx context.Context, profileID string) (core.Settings, error) {
	return s.repo.GetSettings(ctx, profileID)
}

// Summary computes the bucket and category breakdown of one month.
// Results are cached per profile until the next write for that profile.
func (s *BudgetService) Summary(ctx context.Context, profileID string, bt core.BudgetType, month core.Month) (budget.BudgetSummary, error) {
	if !bt.IsValid() {
		return budget.BudgetSummary{}, fmt.Errorf("summary: %w: %q", core.ErrInvalidBudgetType, bt)
	}
	key := summaryKey(profileID, bt, month)
	if cached, ok := s.summaries.Get(key); ok {
		return cached, nil
	}

	var (
		txs        []core.Transaction
		categories []core.Category
		overrides  []core.MonthlyBudget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.repo.Transactions.List(gctx, storage.Filter{
			ProfileID:  profileID,
			BudgetType: bt,
			From:       month.Start(),
			To:         month.End(),
		})
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.categories(gctx, profileID)
		return err
	})
	g.Go(func() error {
		var err error
		overrides, err = s.repo.MonthlyBudgets.List(gctx, profileID, month, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return budget.BudgetSummary{}, fmt.Errorf("load summary snapshot: %w", err)
	}

	summary := budget.ComputeSummary(s.catalog, budget.SummaryInput{
		Transactions: txs,
		Categories:   categories,
		BudgetType:   bt,
		Month:        month,
		Overrides:    budget.NewOverrides(overrides),
	})
	s.summaries.Set(key, summary)

	slog.DebugContext(ctx, "Summary computed",
		"profile_id", profileID,
		"budget_type", bt,
		"month", month,
		"transactions", len(txs))
	return summary, nil
}

// categories returns the profile's categories including soft-deleted ones, so
// that historical spend keeps its bucket after a category is removed.
func (s *BudgetService) categories(ctx context.Context, profileID string) ([]core.Category, error) {
	return s.repo.Categories.ListForSync(ctx, profileID)
}

// Forecast suggests next-month budgets from the trailing window configured in the
// profile settings.
func (s *BudgetService) Forecast(ctx context.Context, profileID string, bt core.BudgetType, month core.Month, expectedIncome decimal.Decimal) (map[string]decimal.Decimal, error) {
	if !bt.IsValid() {
		return nil, fmt.Errorf("forecast: %w: %q", core.ErrInvalidBudgetType, bt)
	}
	if expectedIncome.IsNegative() {
		return nil, fmt.Errorf("forecast: %w: expected income is negative", core.ErrInvalidAmount)
	}

	window := s.forecastWindow
	settings, err := s.repo.GetSettings(ctx, profileID)
	switch {
	case err == nil && settings.ForecastWindow > 0:
		window = settings.ForecastWindow
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("forecast settings: %w", err)
	}

	var (
		history    []core.Transaction
		categories []core.Category
		overrides  []core.MonthlyBudget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.repo.Transactions.List(gctx, storage.Filter{
			ProfileID:  profileID,
			BudgetType: bt,
			From:       month.AddMonths(-window).Start(),
			To:         month.AddMonths(-1).End(),
		})
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.categories(gctx, profileID)
		return err
	})
	g.Go(func() error {
		var err error
		overrides, err = s.repo.MonthlyBudgets.List(gctx, profileID, month, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load forecast snapshot: %w", err)
	}

	return budget.SuggestBudgets(budget.ForecastInput{
		History:        history,
		Categories:     categories,
		Overrides:      budget.NewOverrides(overrides),
		BudgetType:     bt,
		ExpectedIncome: expectedIncome,
		Month:          month,
		Window:         window,
	}), nil
}

// SetBudget records the budgeted amount of a category for one month, replacing
// any earlier amount for the same month.
func (s *BudgetService) SetBudget(ctx context.Context, profileID string, month core.Month, categoryID string, amount decimal.Decimal) (core.MonthlyBudget, error) {
	c, err := s.repo.Categories.Get(ctx, categoryID)
	if err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("set budget: %w", err)
	}
	if c.ProfileID != profileID {
		return core.MonthlyBudget{}, fmt.Errorf("set budget: %w: category %s", ErrInvalidReference, categoryID)
	}

	mb, err := s.repo.MonthlyBudgets.Upsert(ctx, profileID, month, categoryID, amount)
	if err != nil {
		return mb, fmt.Errorf("set budget: %w", err)
	}
	s.changed(ctx, profileID, s.repo.MonthlyBudgets.Table(), mb.Key(), amqp.OpUpsert)
	return mb, nil
}

func (s *BudgetService) CreateAccount(ctx context.Context, a *core.Account) error {
	if err := s.repo.Accounts.Create(ctx, a); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	s.changed(ctx, a.ProfileID, s.repo.Accounts.Table(), a.ID, amqp.OpUpsert)
	return nil
}

// CreateCategory checks the bucket against the catalog before storing.
func (s *BudgetService) CreateCategory(ctx context.Context, c *core.Category) error {
	if err := s.catalog.ValidateCategory(*c); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	if err := s.repo.Categories.Create(ctx, c); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	s.changed(ctx, c.ProfileID, s.repo.Categories.Table(), c.ID, amqp.OpUpsert)
	return nil
}

func (s *BudgetService) UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) (core.Category, error) {
	current, err := s.repo.Categories.Get(ctx, id)
	if err != nil {
		return current, fmt.Errorf("update category: %w", err)
	}
	current.Apply(patch)
	if err := s.catalog.ValidateCategory(current); err != nil {
		return current, fmt.Errorf("update category: %w", err)
	}

	updated, err := s.repo.Categories.Update(ctx, id, func(c *core.Category) { c.Apply(patch) })
	if err != nil {
		return updated, fmt.Errorf("update category: %w", err)
	}
	s.changed(ctx, updated.ProfileID, s.repo.Categories.Table(), id, amqp.OpUpsert)
	return updated, nil
}

func (s *BudgetService) DeleteCategory(ctx context.Context, id string) error {
	c, err := s.repo.Categories.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := s.repo.Categories.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.changed(ctx, c.ProfileID, s.repo.Categories.Table(), id, amqp.OpDelete)
	return nil
}

// CreateTransaction stores a transaction after checking that its category and
// account exist and share its budget type.
func (s *BudgetService) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	if err := s.checkReferences(ctx, *t); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	if err := s.repo.Transactions.Create(ctx, t); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	s.changed(ctx, t.ProfileID, s.repo.Transactions.Table(), t.ID, amqp.OpUpsert)
	return nil
}

func (s *BudgetService) checkReferences(ctx context.Context, t core.Transaction) error {
	var (
		c core.Category
		a core.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c, err = s.repo.Categories.Get(gctx, t.CategoryID)
		return err
	})
	g.Go(func() error {
		var err error
		a, err = s.repo.Accounts.Get(gctx, t.AccountID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		return err
	}
	if c.ProfileID != t.ProfileID || a.ProfileID != t.ProfileID {
		return fmt.Errorf("%w: category or account belongs to another profile", ErrInvalidReference)
	}
	return core.CheckBudgetTypes(t, c, a)
}

// DeleteTransaction soft-deletes a transaction, and its counterpart when it is one
// leg of a transfer.
func (s *BudgetService) DeleteTransaction(ctx context.Context, id string) error {
	t, err := s.repo.Transactions.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	ids, err := s.repo.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	for _, deleted := range ids {
		s.changed(ctx, t.ProfileID, s.repo.Transactions.Table(), deleted, amqp.OpDelete)
	}
	return nil
}

// CreateTransfer moves money between two accounts of the same budget. The
// category must be excluded from budgeting so neither leg counts as spend.
func (s *BudgetService) CreateTransfer(ctx context.Context, in storage.Transfer) (core.Transaction, core.Transaction, error) {
	c, err := s.repo.Categories.Get(ctx, in.CategoryID)
	if err != nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("create transfer: %w", err)
	}
	if !c.ExcludeFromBudget || c.BudgetType != in.BudgetType || c.ProfileID != in.ProfileID {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("create transfer: %w: category %s must be an excluded %s category",
			storage.ErrInvalidTransfer, c.ID, in.BudgetType)
	}

	if err := s.checkTransferAccounts(ctx, in, c); err != nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("create transfer: %w", err)
	}

	out, incoming, err := s.repo.CreateTransfer(ctx, in)
	if err != nil {
		return out, incoming, fmt.Errorf("create transfer: %w", err)
	}
	s.changed(ctx, in.ProfileID, s.repo.Transactions.Table(), out.ID, amqp.OpUpsert)
	s.changed(ctx, in.ProfileID, s.repo.Transactions.Table(), incoming.ID, amqp.OpUpsert)
	return out, incoming, nil
}

// checkTransferAccounts applies the transaction reference rules to both legs.
func (s *BudgetService) checkTransferAccounts(ctx context.Context, in storage.Transfer, c core.Category) error {
	var from, to core.Account
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = s.repo.Accounts.Get(gctx, in.FromAccountID)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = s.repo.Accounts.Get(gctx, in.ToAccountID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		return err
	}

	for _, a := range []core.Account{from, to} {
		if a.ProfileID != in.ProfileID {
			return fmt.Errorf("%w: account %s belongs to another profile", ErrInvalidReference, a.ID)
		}
		leg := core.Transaction{BudgetType: in.BudgetType, CategoryID: c.ID, AccountID: a.ID}
		if err := core.CheckBudgetTypes(leg, c, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *BudgetService) CreateProject(ctx context.Context, p *core.Project) error {
	if err := s.repo.Projects.Create(ctx, p); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	s.changed(ctx, p.ProfileID, s.repo.Projects.Table(), p.ID, amqp.OpUpsert)
	return nil
}

func (s *BudgetService) ProjectReport(ctx context.Context, projectID string) (budget.ProjectReport, error) {
	p, err := s.repo.Projects.Get(ctx, projectID)
	if err != nil {
		return budget.ProjectReport{}, fmt.Errorf("project report: %w", err)
	}
	txs, err := s.repo.Transactions.List(ctx, storage.Filter{ProfileID: p.ProfileID, ProjectID: p.ID})
	if err != nil {
		return budget.ProjectReport{}, fmt.Errorf("project report: %w", err)
	}
	return budget.ComputeProjectReport(p, txs), nil
}

func (s *BudgetService) NetWorth(ctx context.Context, profileID string, bt core.BudgetType) (core.NetWorth, error) {
	accounts, err := s.repo.Accounts.List(ctx, storage.Filter{ProfileID: profileID, BudgetType: bt})
	if err != nil {
		return core.NetWorth{}, fmt.Errorf("net worth: %w", err)
	}
	return core.ComputeNetWorth(accounts), nil
}

// Reconcile pushes every record of the profile to the peer store.
func (s *BudgetService) Reconcile(ctx context.Context, profileID string) (reconcile.Report, error) {
	if s.peer == nil || s.reconciler == nil {
		return reconcile.Report{}, ErrNoPeer
	}
	mu := s.profileLock(profileID)
	mu.Lock()
	defer mu.Unlock()

	rep, err := s.reconciler.Push(ctx, s.repo, s.peer, profileID)
	if err != nil {
		return rep, fmt.Errorf("reconcile profile %s: %w", profileID, err)
	}
	return rep, nil
}

// profileLock returns the mutex that serializes reconciliation of one profile.
func (s *BudgetService) profileLock(profileID string) *sync.Mutex {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.syncLocks == nil {
		s.syncLocks = make(map[string]*sync.Mutex)
	}
	mu, ok := s.syncLocks[profileID]
	if !ok {
		mu = &sync.Mutex{}
		s.syncLocks[profileID] = mu
	}
	return mu
}

// changed drops cached summaries of the profile and announces the change.
func (s *BudgetService) changed(ctx context.Context, profileID, entity, id string, op amqp.Operation) {
	s.summaries.DeletePrefix(profileID + "|")
	s.publish(ctx, profileID, entity, id, op)
}

func (s *BudgetService) publish(ctx context.Context, profileID, entity, id string, op amqp.Operation) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping change message",
			"entity", entity, "id", id)
		return
	}
	if err := s.publisher.PublishChange(ctx, amqp.NewChangeMessage(profileID, entity, id, op)); err != nil {
		// The write is committed locally; the periodic reconciliation catches up.
		slog.ErrorContext(ctx, "Failed to publish change message",
			"entity", entity, "id", id, "error", err)
	}
}

func summaryKey(profileID string, bt core.BudgetType, month core.Month) string {
	return profileID + "|" + string(bt) + "|" + month.String()
}

// Close closes the store, the peer store and the publisher.
func (s *BudgetService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.peer != nil {
		if err := s.peer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("peer storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close budget service: %w", errors.Join(errs...))
	}
	return nil
}
