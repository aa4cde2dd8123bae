package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the number of pending writes a Writer buffers.
const DefaultQueueSize = 256

// WriterOptions configures a Writer.
type WriterOptions struct {
	// QueueSize bounds the number of pending writes. Zero selects
	// DefaultQueueSize.
	QueueSize int

	// OnError is called when a write is dropped or fails. It must not block.
	OnError func(key string, err error)
}

type writeOp struct {
	key      string
	value    []byte
	storedAt time.Time
	epoch    uint64
	barrier  chan struct{}
}

// Writer applies cache writes in the background, after the response that
// produced them has been returned.
//
// Contract:
//   - Writes are applied one at a time, in the order they were enqueued.
//   - Enqueue never blocks; a full queue drops the write and reports ErrQueueFull.
//   - A write enqueued before Clear is never applied after it.
type Writer struct {
	cache   Cache
	queue   chan writeOp
	onError func(string, error)
	done    chan struct{}

	// mu guards closed and orders sends on queue against Close.
	mu     sync.RWMutex
	closed bool

	// applyMu serializes individual Sets with Clear so the epoch check and the
	// write happen together.
	applyMu sync.Mutex
	epoch   atomic.Uint64

	writes    atomic.Int64
	dropped   atomic.Int64
	failures  atomic.Int64
	discarded atomic.Int64
}

// NewWriter starts a writer draining into c. Close stops it.
func NewWriter(c Cache, opts WriterOptions) (*Writer, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	w := &Writer{
		cache:   c,
		queue:   make(chan writeOp, size),
		onError: opts.OnError,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Epoch returns the current clear epoch. Each Clear advances it.
func (w *Writer) Epoch() uint64 {
	return w.epoch.Load()
}

// Enqueue schedules a write under the current epoch.
func (w *Writer) Enqueue(key string, value []byte, storedAt time.Time) error {
	return w.EnqueueAt(w.Epoch(), key, value, storedAt)
}

// EnqueueAt schedules a write that is discarded if a Clear happens after epoch
// was observed.
func (w *Writer) EnqueueAt(epoch uint64, key string, value []byte, storedAt time.Time) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}

	select {
	case w.queue <- writeOp{key: key, value: value, storedAt: storedAt, epoch: epoch}:
		return nil
	default:
		w.dropped.Add(1)
		w.report(key, ErrQueueFull)
		return ErrQueueFull
	}
}

// Flush blocks until every write enqueued before the call has been applied, or
// ctx is done.
func (w *Writer) Flush(ctx context.Context) error {
	barrier := make(chan struct{})

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	select {
	case w.queue <- writeOp{barrier: barrier}:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear empties the cache and invalidates every pending write.
func (w *Writer) Clear(ctx context.Context) error {
	w.applyMu.Lock()
	defer w.applyMu.Unlock()
	w.epoch.Add(1)
	return w.cache.Clear(ctx)
}

// Close stops accepting writes, applies the ones already queued and waits for
// the writer goroutine to exit.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Writes returns the number of writes applied.
func (w *Writer) Writes() int64 { return w.writes.Load() }

// Dropped returns the number of writes rejected because the queue was full.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Failures returns the number of writes the cache refused.
func (w *Writer) Failures() int64 { return w.failures.Load() }

// Discarded returns the number of writes invalidated by Clear.
func (w *Writer) Discarded() int64 { return w.discarded.Load() }

func (w *Writer) run() {
	defer close(w.done)
	for op := range w.queue {
		if op.barrier != nil {
			close(op.barrier)
			continue
		}
		w.apply(op)
	}
}

func (w *Writer) apply(op writeOp) {
	w.applyMu.Lock()
	defer w.applyMu.Unlock()

	if op.epoch != w.epoch.Load() {
		w.discarded.Add(1)
		return
	}
	if err := w.cache.Set(context.Background(), op.key, op.value, op.storedAt); err != nil {
		w.failures.Add(1)
		w.report(op.key, err)
		return
	}
	w.writes.Add(1)
}

func (w *Writer) report(key string, err error) {
	if w.onError != nil {
		w.onError(key, err)
	}
}
