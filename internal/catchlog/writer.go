package catchlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/domocarroll/dannicraft/internal/config"
	"github.com/domocarroll/dannicraft/internal/fishing"
)

// BatchSender is satisfied by *pgxpool.Pool.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // input channel capacity
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     config.DefaultBatchSize,
		FlushInterval: config.DefaultFlushInterval,
		BufferSize:    1000,
	}
}

// NewWriterConfig builds a WriterConfig from the database configuration.
func NewWriterConfig(cfg config.DBConfig) WriterConfig {
	wc := DefaultWriterConfig()
	if cfg.BatchSize > 0 {
		wc.BatchSize = cfg.BatchSize
	}
	if cfg.FlushInterval > 0 {
		wc.FlushInterval = cfg.FlushInterval
	}
	return wc
}

// WriterMetrics tracks write statistics.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64 // records discarded because the input buffer was full
	Sessions  int64
}

type catchRow struct {
	SessionID string
	Seq       int
	Bot       string
	Item      string
	Kind      string
	CaughtAt  time.Time
}

type sessionRow struct {
	SessionID  string
	Bot        string
	StartedAt  time.Time
	EndedAt    time.Time
	Catches    int
	Treasures  int
	StopReason string
}

// Writer consumes catch records and session summaries and writes them to the
// fishing_catches and fishing_sessions tables. It implements fishing.Recorder.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger
	db     BatchSender

	// Input from fishing sessions
	catches  chan fishing.CatchRecord
	sessions chan fishing.Snapshot

	// Batching
	batch       []catchRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle. ctx carries values only; done is closed by Stop, so an
	// insert already in flight at shutdown still completes.
	ctx      context.Context
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

var _ fishing.Recorder = (*Writer)(nil)

// NewWriter creates a new Writer.
func NewWriter(cfg WriterConfig, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = config.DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = config.DefaultFlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultWriterConfig().BufferSize
	}

	return &Writer{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		catches:  make(chan fishing.CatchRecord, cfg.BufferSize),
		sessions: make(chan fishing.Snapshot, 64),
		batch:    make([]catchRow, 0, cfg.BatchSize),
	}
}

// RecordCatch queues a catch. It never blocks; when the buffer is full the
// record is dropped and counted.
func (w *Writer) RecordCatch(rec fishing.CatchRecord) {
	select {
	case w.catches <- rec:
	default:
		w.drop("catch", rec.SessionID.String())
	}
}

// RecordSession queues a finished session summary.
func (w *Writer) RecordSession(snap fishing.Snapshot) {
	select {
	case w.sessions <- snap:
	default:
		w.drop("session", snap.ID.String())
	}
}

func (w *Writer) drop(kind, session string) {
	w.batchMu.Lock()
	w.metrics.Dropped++
	w.batchMu.Unlock()
	w.logger.Warn("catch log buffer full, dropping record", "kind", kind, "session", session)
}

// Start begins consuming records and writing to the database. Cancelling ctx
// does not stop the writer; call Stop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx = context.WithoutCancel(ctx)
	w.done = make(chan struct{})
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("catch log writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer, writing whatever is still queued using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping catch log writer")

	if w.done != nil {
		w.stopOnce.Do(func() { close(w.done) })
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("catch log writer stop timed out")
		return ctx.Err()
	}

	// Drain and final flush
	for {
		select {
		case rec := <-w.catches:
			w.addCatch(ctx, rec)
			continue
		case snap := <-w.sessions:
			w.flush(ctx)
			w.writeSession(ctx, snap)
			continue
		default:
		}
		break
	}
	w.flush(ctx)

	w.logger.Info("catch log writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads queued records and accumulates batches.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case rec := <-w.catches:
			w.addCatch(w.ctx, rec)
		case snap := <-w.sessions:
			// Catches of the session go in before its summary.
			w.flush(w.ctx)
			w.writeSession(w.ctx, snap)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *Writer) addCatch(ctx context.Context, rec fishing.CatchRecord) {
	row := transformCatch(rec)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(ctx)
	}
}

func transformCatch(rec fishing.CatchRecord) catchRow {
	return catchRow{
		SessionID: rec.SessionID.String(),
		Seq:       rec.Seq,
		Bot:       rec.Bot,
		Item:      rec.Item,
		Kind:      string(rec.Kind),
		CaughtAt:  rec.Timestamp.UTC(),
	}
}

func transformSession(snap fishing.Snapshot) sessionRow {
	ended := snap.EndedAt
	if ended.IsZero() {
		ended = snap.StartedAt.Add(snap.Elapsed)
	}
	return sessionRow{
		SessionID:  snap.ID.String(),
		Bot:        snap.Bot,
		StartedAt:  snap.StartedAt.UTC(),
		EndedAt:    ended.UTC(),
		Catches:    len(snap.Catches),
		Treasures:  len(snap.Treasures),
		StopReason: snap.StopReason,
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]catchRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.insertCatches(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed catches",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// insertCatches inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) insertCatches(ctx context.Context, rows []catchRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO fishing_catches (session_id, seq, bot, item, kind, caught_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (session_id, seq) DO NOTHING
		`, r.SessionID, r.Seq, r.Bot, r.Item, r.Kind, r.CaughtAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

func (w *Writer) writeSession(ctx context.Context, snap fishing.Snapshot) {
	r := transformSession(snap)

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO fishing_sessions (session_id, bot, started_at, ended_at, catches, treasures, stop_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING
	`, r.SessionID, r.Bot, r.StartedAt, r.EndedAt, r.Catches, r.Treasures, r.StopReason)

	results := w.db.SendBatch(ctx, batch)
	_, err := results.Exec()
	results.Close()

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	if err != nil {
		w.logger.Error("session insert failed", "error", err, "session", r.SessionID)
		w.metrics.Errors++
		return
	}
	w.metrics.Sessions++
}
