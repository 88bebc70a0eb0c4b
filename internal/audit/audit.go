// SPDX-License-Identifier: Apache-2.0

// Package audit writes the per-run SyncLog/SyncLogDetail trail described in
// spec section 4.E: a log is opened at run start, detail rows are appended
// as the Reconciler makes decisions, and the log is sealed exactly once at
// run end.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/ldapsync/internal/model"
)

// Repository is the subset of the Repository contract (spec section 6) that
// the audit writer needs: creating a SyncLog, appending detail rows, and
// sealing the log.
type Repository interface {
	CreateSyncLog(ctx context.Context, log model.SyncLog) error
	InsertSyncLogDetail(ctx context.Context, detail model.SyncLogDetail) error
	SealSyncLog(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error
}

// Writer is the contract the Reconciler uses to report its decisions.
type Writer interface {
	Open(ctx context.Context, cfg model.SyncConfig) (*model.SyncLog, error)
	Record(ctx context.Context, logID string, detail model.SyncLogDetail) error
	Seal(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error
}

// repoWriter is the direct, synchronous Writer implementation: every Record
// call blocks on the repository write. Most callers should wrap this in a
// BufferedWriter so the Reconciler is never blocked by audit I/O.
type repoWriter struct {
	repo Repository
}

// NewWriter returns a Writer that writes straight through to repo.
func NewWriter(repo Repository) Writer {
	return &repoWriter{repo: repo}
}

func (w *repoWriter) Open(ctx context.Context, cfg model.SyncConfig) (*model.SyncLog, error) {
	log := model.SyncLog{
		ID:           uuid.NewString(),
		SyncConfigID: cfg.ID,
		StartedAt:    time.Now(),
		Success:      false,
	}
	if err := w.repo.CreateSyncLog(ctx, log); err != nil {
		return nil, err
	}
	return &log, nil
}

func (w *repoWriter) Record(ctx context.Context, logID string, detail model.SyncLogDetail) error {
	detail.ID = uuid.NewString()
	detail.SyncLogID = logID
	detail.CreatedAt = time.Now()
	return w.repo.InsertSyncLogDetail(ctx, detail)
}

func (w *repoWriter) Seal(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error {
	return w.repo.SealSyncLog(ctx, logID, success, usersSynced, departmentsSynced)
}

// logEntry pairs a detail row with the log it belongs to, for the
// BufferedWriter's internal channel.
type logEntry struct {
	logID  string
	detail model.SyncLogDetail
}

// BufferedWriter decorates a Writer so Record never blocks the Reconciler on
// repository I/O: writes are pushed onto a buffered channel and drained by
// one background goroutine per writer instance, mirroring the teacher's
// channel-serialized Adapter.Run pattern. Close drains the channel
// synchronously so every write is durable before the caller proceeds to
// Seal.
type BufferedWriter struct {
	inner   Writer
	entries chan logEntry
	done    chan struct{}
	errs    chan error
}

// NewBufferedWriter wraps inner with a background-draining queue of the
// given depth.
func NewBufferedWriter(inner Writer, depth int) *BufferedWriter {
	w := &BufferedWriter{
		inner:   inner,
		entries: make(chan logEntry, depth),
		done:    make(chan struct{}),
		errs:    make(chan error, depth),
	}
	go w.drain()
	return w
}

func (w *BufferedWriter) drain() {
	defer close(w.done)
	for e := range w.entries {
		if err := w.inner.Record(context.Background(), e.logID, e.detail); err != nil {
			logg.Error("audit: buffered record failed for %s/%s: %s", e.logID, e.detail.ObjectID, err.Error())
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Open delegates directly; opening a log is infrequent and the caller
// already needs its result synchronously to learn the log ID.
func (w *BufferedWriter) Open(ctx context.Context, cfg model.SyncConfig) (*model.SyncLog, error) {
	return w.inner.Open(ctx, cfg)
}

// Record enqueues detail for background writing and returns once it is
// queued. While the queue is full it waits for room or for ctx to end.
func (w *BufferedWriter) Record(ctx context.Context, logID string, detail model.SyncLogDetail) error {
	select {
	case w.entries <- logEntry{logID: logID, detail: detail}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains all queued writes synchronously. It must be called before
// Seal so every detail row is durable before the run is marked sealed.
func (w *BufferedWriter) Close() {
	close(w.entries)
	<-w.done
}

// Seal drains the queue, then seals the underlying log.
func (w *BufferedWriter) Seal(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error {
	w.Close()
	return w.inner.Seal(ctx, logID, success, usersSynced, departmentsSynced)
}
