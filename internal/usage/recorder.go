package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nextier/copilot-engine/internal/model"
)

const recordWriteTimeout = 5 * time.Second

// Recorder decouples usage writes from the request path. Records are
// queued on a bounded channel and drained by a single worker; a full
// queue drops the record rather than blocking the caller.
type Recorder struct {
	tracker *Tracker
	ch      chan model.UsageRecord
	wg      sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewRecorder starts a Recorder with the given queue size.
func NewRecorder(tracker *Tracker, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &Recorder{
		tracker: tracker,
		ch:      make(chan model.UsageRecord, queueSize),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Record enqueues one usage record without blocking. Records offered
// after Close, or while the queue is full, are dropped with a log.
func (r *Recorder) Record(rec model.UsageRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(rec, "recorder closed")
		return
	}
	select {
	case r.ch <- rec:
	default:
		r.drop(rec, "queue full")
	}
}

// Close stops accepting records and waits for the queue to drain.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Dropped returns how many records have been discarded.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) drop(rec model.UsageRecord, why string) {
	r.dropped.Add(1)
	zap.L().Warn("usage: dropping record",
		zap.String("reason", why),
		zap.String("tenant_id", rec.TenantID),
		zap.String("provider", string(rec.Provider)),
	)
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for rec := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), recordWriteTimeout)
		r.tracker.Track(ctx, rec)
		cancel()
	}
}
