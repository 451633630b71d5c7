package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dualbudget/internal/amqp"
	"dualbudget/internal/reconcile"
	"dualbudget/internal/storage"
)

var ErrNotRunning = errors.New("sync worker is not running")

// Config holds configuration for the sync worker.
type Config struct {
	// Interval between full reconciliation passes (default: 5m).
	Interval time.Duration

	// ProfileIDs limits full passes to these profiles. Empty means every profile
	// in the source store.
	ProfileIDs []string
}

func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute}
}

// Stats describes the worker's progress since Start.
type Stats struct {
	Passes      int
	Mirrored    int
	Failures    int
	LastPass    time.Time
	LastWritten int
	LastPassErr string
}

type request struct {
	msg    *amqp.ChangeMessage
	result chan error
}

// SyncWorker mirrors the local ledger store into a peer store. Change messages
// and periodic full passes are handled by one goroutine, so no two pushes ever
// run against the peer at the same time.
type SyncWorker struct {
	src        *storage.Repository
	dst        *storage.Repository
	reconciler *reconcile.Reconciler
	config     Config
	requests   chan request

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   Stats
}

func NewSyncWorker(src, dst *storage.Repository, reconciler *reconcile.Reconciler, config Config) *SyncWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &SyncWorker{
		src:        src,
		dst:        dst,
		reconciler: reconciler,
		config:     config,
		requests:   make(chan request),
	}
}

// Start runs a full pass, then serves change messages and periodic passes until
// Stop is called or ctx is cancelled. Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Sync worker started",
		"interval", w.config.Interval,
		"policy", w.reconciler.Policy())
	return nil
}

// Stop gracefully stops the worker and waits for the current push to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the worker is between Start and Stop.
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// HandleChange hands a change message to the worker goroutine and waits for the
// outcome. It is the AMQP consumer's handler.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.mu.Lock()
	running, stopCh := w.running, w.stopCh
	w.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	req := request{msg: msg, result: make(chan error, 1)}
	select {
	case w.requests <- req:
	case <-stopCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Catch up on anything missed while the worker was down.
	w.fullPass(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case req := <-w.requests:
			req.result <- w.process(ctx, req.msg)
		case <-ticker.C:
			w.fullPass(ctx)
		}
	}
}

func (w *SyncWorker) process(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.Operation == amqp.OpReconcile {
		_, err := w.pushProfile(ctx, msg.ProfileID)
		return classify(err)
	}

	c, err := w.reconciler.PushRecord(ctx, w.src, w.dst, msg.Entity, msg.RecordID)
	w.mu.Lock()
	if err != nil {
		w.stats.Failures++
	} else {
		w.stats.Mirrored += c.Inserted + c.Updated
	}
	w.mu.Unlock()
	if err != nil {
		return classify(err)
	}

	slog.InfoContext(ctx, "Change mirrored to peer",
		"entity", msg.Entity,
		"record_id", msg.RecordID,
		"operation", msg.Operation,
		"inserted", c.Inserted,
		"updated", c.Updated,
		"skipped", c.Skipped)
	return nil
}

// classify marks errors that redelivery cannot fix.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, reconcile.ErrUnknownEntity) || errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", amqp.ErrPermanent, err)
	}
	return err
}

func (w *SyncWorker) fullPass(ctx context.Context) {
	profiles := w.config.ProfileIDs
	if len(profiles) == 0 {
		all, err := w.src.ListProfiles(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list profiles for reconciliation", "error", err)
			w.recordPass(0, err)
			return
		}
		for _, p := range all {
			profiles = append(profiles, p.ID)
		}
	}

	written := 0
	var errs []error
	for _, id := range profiles {
		if ctx.Err() != nil {
			return
		}
		rep, err := w.pushProfile(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Periodic reconciliation failed", "profile_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		written += rep.Written()
	}
	w.recordPass(written, errors.Join(errs...))
}

func (w *SyncWorker) pushProfile(ctx context.Context, profileID string) (reconcile.Report, error) {
	return w.reconciler.Push(ctx, w.src, w.dst, profileID)
}

func (w *SyncWorker) recordPass(written int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Passes++
	w.stats.LastPass = time.Now()
	w.stats.LastWritten = written
	w.stats.LastPassErr = ""
	if err != nil {
		w.stats.Failures++
		w.stats.LastPassErr = err.Error()
	}
}
