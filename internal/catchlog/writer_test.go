package catchlog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/domocarroll/dannicraft/internal/config"
	"github.com/domocarroll/dannicraft/internal/fishing"
)

type fakeResults struct {
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

// fakeDB records every batch it receives. When gate is set, SendBatch
// signals entered and then blocks until gate is closed, failing if ctx was
// cancelled meanwhile.
type fakeDB struct {
	mu      sync.Mutex
	err     error
	batches [][]*pgx.QueuedQuery

	entered chan struct{}
	gate    chan struct{}
}

func (d *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	if d.gate != nil {
		select {
		case d.entered <- struct{}{}:
		default:
		}
		<-d.gate
		if err := ctx.Err(); err != nil {
			return &fakeResults{err: err}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, b.QueuedQueries)
	return &fakeResults{err: d.err}
}

func (d *fakeDB) sent() [][]*pgx.QueuedQuery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]*pgx.QueuedQuery(nil), d.batches...)
}

func testCatch(id uuid.UUID, seq int, item string) fishing.CatchRecord {
	return fishing.CatchRecord{
		SessionID: id,
		Seq:       seq,
		Bot:       "danniCRAFT",
		Catch: fishing.Catch{
			Item:      item,
			Kind:      fishing.Classify(item),
			Timestamp: time.Date(2024, 6, 1, 12, 0, seq, 0, time.UTC),
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestTransformCatch(t *testing.T) {
	id := uuid.New()
	row := transformCatch(testCatch(id, 3, "enchanted_book"))

	if row.SessionID != id.String() {
		t.Errorf("SessionID = %s, want %s", row.SessionID, id)
	}
	if row.Seq != 3 {
		t.Errorf("Seq = %d, want 3", row.Seq)
	}
	if row.Kind != "treasure" {
		t.Errorf("Kind = %s, want treasure", row.Kind)
	}
	if row.CaughtAt.Second() != 3 {
		t.Errorf("CaughtAt = %v", row.CaughtAt)
	}
}

func TestTransformSession(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := fishing.Snapshot{
		ID:         uuid.New(),
		Bot:        "danniCRAFT",
		StartedAt:  start,
		Elapsed:    90 * time.Second,
		Catches:    make([]fishing.Catch, 4),
		Treasures:  []string{"saddle"},
		StopReason: fishing.StopReasonStopped,
	}

	row := transformSession(snap)
	if !row.EndedAt.Equal(start.Add(90 * time.Second)) {
		t.Errorf("EndedAt = %v, want start+90s", row.EndedAt)
	}
	if row.Catches != 4 || row.Treasures != 1 {
		t.Errorf("Catches/Treasures = %d/%d, want 4/1", row.Catches, row.Treasures)
	}
}

func TestWriter_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, db, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop(context.Background())

	id := uuid.New()
	w.RecordCatch(testCatch(id, 1, "cod"))
	w.RecordCatch(testCatch(id, 2, "salmon"))

	waitFor(t, "flush", func() bool { return len(db.sent()) == 1 })

	batch := db.sent()[0]
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}
	if !strings.Contains(batch[0].SQL, "INSERT INTO fishing_catches") {
		t.Errorf("SQL = %q", batch[0].SQL)
	}
	if !strings.Contains(batch[0].SQL, "ON CONFLICT (session_id, seq) DO NOTHING") {
		t.Error("catch insert should be idempotent")
	}
	if got := batch[1].Arguments[3]; got != "salmon" {
		t.Errorf("item argument = %v, want salmon", got)
	}

	waitFor(t, "metrics", func() bool { return w.Stats().Inserts == 2 })
}

func TestWriter_SessionAfterCatches(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop(context.Background())

	id := uuid.New()
	w.RecordCatch(testCatch(id, 1, "cod"))
	w.RecordSession(fishing.Snapshot{ID: id, Bot: "danniCRAFT", StartedAt: time.Now()})

	waitFor(t, "two batches", func() bool { return len(db.sent()) == 2 })

	batches := db.sent()
	if !strings.Contains(batches[0][0].SQL, "fishing_catches") {
		t.Errorf("first batch = %q, want catches", batches[0][0].SQL)
	}
	if !strings.Contains(batches[1][0].SQL, "fishing_sessions") {
		t.Errorf("second batch = %q, want session", batches[1][0].SQL)
	}
	waitFor(t, "session metric", func() bool { return w.Stats().Sessions == 1 })
}

func TestWriter_StopFlushesPending(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: time.Hour}, db, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.RecordCatch(testCatch(uuid.New(), 1, "cod"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if n := len(db.sent()); n != 1 {
		t.Errorf("batches sent = %d, want 1", n)
	}
}

func TestWriter_InsertError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	w := NewWriter(WriterConfig{BatchSize: 1, FlushInterval: time.Hour}, db, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop(context.Background())

	w.RecordCatch(testCatch(uuid.New(), 1, "cod"))

	waitFor(t, "error metric", func() bool { return w.Stats().Errors == 1 })
	if got := w.Stats().Inserts; got != 0 {
		t.Errorf("Inserts = %d, want 0", got)
	}
}

func TestWriter_DropsWhenFull(t *testing.T) {
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 1}, &fakeDB{}, nil)

	id := uuid.New()
	w.RecordCatch(testCatch(id, 1, "cod"))
	w.RecordCatch(testCatch(id, 2, "cod"))

	if got := w.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestNewWriterConfig(t *testing.T) {
	wc := NewWriterConfig(config.DBConfig{BatchSize: 25})
	if wc.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", wc.BatchSize)
	}
	if wc.FlushInterval != DefaultWriterConfig().FlushInterval {
		t.Errorf("FlushInterval = %v, want default", wc.FlushInterval)
	}
}

func TestWriter_InFlightFlushSurvivesCancel(t *testing.T) {
	db := &fakeDB{
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}
	w := NewWriter(WriterConfig{BatchSize: 1, FlushInterval: time.Hour}, db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.RecordCatch(testCatch(uuid.New(), 1, "cod"))

	select {
	case <-db.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for batch insert")
	}

	// Shutdown signal arrives while the insert is running.
	cancel()
	close(db.gate)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := w.Stats()
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}
	if stats.Inserts != 1 {
		t.Errorf("Inserts = %d, want 1", stats.Inserts)
	}
	if got := len(db.sent()); got != 1 {
		t.Errorf("batches sent = %d, want 1", got)
	}
}
