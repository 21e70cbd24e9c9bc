package fishing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/domocarroll/dannicraft/internal/bridge"
	"github.com/domocarroll/dannicraft/internal/config"
)

// Errors
var (
	ErrAlreadyFishing = errors.New("already fishing")
	ErrNotFishing     = errors.New("not fishing")
	ErrNoRod          = errors.New("no fishing rod in inventory")
)

// Stop reasons recorded on a finished session.
const (
	StopReasonStopped     = "stopped"
	StopReasonInterrupted = "interrupted"
	StopReasonShutdown    = "shutdown"
)

// Bot is the subset of the bridge client the loop needs.
type Bot interface {
	Inventory(ctx context.Context) ([]bridge.Item, error)
	Equip(ctx context.Context, item bridge.Item, destination string) error
	Fish(ctx context.Context) error
	Chat(ctx context.Context, message string) error
}

// Catch is one recorded catch.
type Catch struct {
	Item       string
	Kind       Kind
	Timestamp  time.Time
	IsTreasure bool
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         uuid.UUID
	Bot        string
	Active     bool
	StartedAt  time.Time
	EndedAt    time.Time
	Elapsed    time.Duration
	Catches    []Catch
	Treasures  []string
	StopReason string
}

// CatchRecord is a catch handed to a Recorder.
type CatchRecord struct {
	SessionID uuid.UUID
	Seq       int // 1-based position within the session
	Bot       string
	Catch
}

// Recorder persists catches and finished sessions. Implementations must not block.
type Recorder interface {
	RecordCatch(rec CatchRecord)
	RecordSession(snap Snapshot)
}

// Options configures fishing sessions.
type Options struct {
	CastDelay              time.Duration // pause between casts
	CastTimeout            time.Duration // upper bound on one cast
	ErrorPause             time.Duration // first pause after a failed cast
	MaxErrorPause          time.Duration // cap for the doubling pause
	MaxConsecutiveFailures int           // 0 disables the force stop

	Recorder Recorder
	Logger   *slog.Logger

	Now  func() time.Time
	Pick func(n int) int // chooses a flavor message
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		CastDelay:              config.DefaultCastDelay,
		CastTimeout:            config.DefaultCastTimeout,
		ErrorPause:             config.DefaultErrorPause,
		MaxErrorPause:          config.DefaultMaxErrorPause,
		MaxConsecutiveFailures: config.DefaultMaxConsecutiveFailures,
	}
}

// NewOptions builds Options from the loaded configuration.
func NewOptions(cfg config.FishingConfig) Options {
	return Options{
		CastDelay:              cfg.CastDelay,
		CastTimeout:            cfg.CastTimeout,
		ErrorPause:             cfg.ErrorPause,
		MaxErrorPause:          cfg.MaxErrorPause,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}
}

func (o *Options) applyDefaults() {
	if o.CastDelay <= 0 {
		o.CastDelay = config.DefaultCastDelay
	}
	if o.CastTimeout <= 0 {
		o.CastTimeout = config.DefaultCastTimeout
	}
	if o.ErrorPause <= 0 {
		o.ErrorPause = config.DefaultErrorPause
	}
	if o.MaxErrorPause < o.ErrorPause {
		o.MaxErrorPause = o.ErrorPause
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Pick == nil {
		o.Pick = rand.IntN
	}
}

// Session is the fishing state of one bot identity.
type Session struct {
	bot    string
	opts   Options
	logger *slog.Logger
	base   context.Context
	wg     *sync.WaitGroup

	mu         sync.Mutex
	active     bool
	id         uuid.UUID
	startTime  time.Time
	endTime    time.Time
	catches    []Catch
	treasures  []string
	stopReason string
	unreported bool // ended by the loop itself, not yet summarized by Stop
	cancel     context.CancelFunc
}

// Start equips a rod and starts the loop. The returned text is the tool
// response; err is set when the session was not started.
func (s *Session) Start(ctx context.Context, bot Bot, announce bool) (string, error) {
	if s.IsActive() {
		return alreadyFishingText, ErrAlreadyFishing
	}

	items, err := bot.Inventory(ctx)
	if err != nil {
		return fmt.Sprintf("Couldn't check my inventory: %v", err), fmt.Errorf("inventory: %w", err)
	}

	rod, ok := findRod(items)
	if !ok {
		return noRodText, ErrNoRod
	}

	if err := bot.Equip(ctx, rod, "hand"); err != nil {
		return fmt.Sprintf("Couldn't equip the fishing rod: %v", err), fmt.Errorf("equip rod: %w", err)
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return alreadyFishingText, ErrAlreadyFishing
	}
	loopCtx, cancel := context.WithCancel(s.base)
	id := uuid.New()
	s.active = true
	s.id = id
	s.startTime = s.opts.Now()
	s.endTime = time.Time{}
	s.catches = nil
	s.treasures = nil
	s.stopReason = ""
	s.unreported = false
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("fishing session started",
		"session", id,
		"rod", rod.Name,
		"announce", announce,
	)

	s.say(ctx, bot, openingLine)

	s.wg.Add(1)
	go s.run(loopCtx, bot, announce, id)

	return startText(rod.Name, rod.Enchanted, announce), nil
}

// Stop ends the session and returns its summary. It does nothing but
// report when no session is running.
func (s *Session) Stop(ctx context.Context, bot Bot) (string, error) {
	s.mu.Lock()
	if !s.active {
		if !s.unreported {
			s.mu.Unlock()
			return notFishingText, ErrNotFishing
		}
		// The loop ended on its own; report that session once.
		s.unreported = false
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return summaryText(snap), nil
	}

	s.active = false
	s.endTime = s.opts.Now()
	s.stopReason = StopReasonStopped
	cancel := s.cancel
	snap := s.snapshotLocked()
	s.mu.Unlock()

	cancel()
	s.logger.Info("fishing session stopped",
		"session", snap.ID,
		"catches", len(snap.Catches),
		"treasures", len(snap.Treasures),
		"duration", snap.Elapsed,
	)
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordSession(snap)
	}

	if bot != nil {
		s.say(ctx, bot, farewellLine)
	}

	return summaryText(snap), nil
}

// Status returns the in-progress report.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		if s.unreported && s.stopReason != "" {
			return notFishingHintText + "\nLast session ended: " + s.stopReason
		}
		return notFishingHintText
	}
	return statusText(s.snapshotLocked())
}

// IsActive reports whether the loop is running.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	end := s.endTime
	if s.active || end.IsZero() {
		end = s.opts.Now()
	}

	snap := Snapshot{
		ID:         s.id,
		Bot:        s.bot,
		Active:     s.active,
		StartedAt:  s.startTime,
		EndedAt:    s.endTime,
		Catches:    append([]Catch(nil), s.catches...),
		Treasures:  append([]string(nil), s.treasures...),
		StopReason: s.stopReason,
	}
	if !s.startTime.IsZero() {
		snap.Elapsed = end.Sub(s.startTime)
	}
	return snap
}

// run is the cast loop. The active flag is checked before each cast and
// again as soon as the cast returns.
func (s *Session) run(ctx context.Context, bot Bot, announce bool, id uuid.UUID) {
	defer s.wg.Done()

	failures := 0
	pause := s.opts.ErrorPause

	for {
		if !s.current(id) {
			return
		}

		castCtx, cancel := context.WithTimeout(ctx, s.opts.CastTimeout)
		err := bot.Fish(castCtx)
		cancel()

		if !s.current(id) {
			return
		}

		if err != nil {
			if ctx.Err() != nil || isInterrupt(err) {
				s.logger.Info("fishing interrupted", "session", id, "error", err)
				s.finish(id, interruptReason(ctx))
				return
			}

			failures++
			s.logger.Warn("cast failed",
				"session", id,
				"error", err,
				"consecutive_failures", failures,
			)

			if limit := s.opts.MaxConsecutiveFailures; limit > 0 && failures >= limit {
				reason := fmt.Sprintf("stopped after %d consecutive failed casts (last error: %v)", failures, err)
				s.logger.Error("fishing force-stopped", "session", id, "failures", failures)
				s.finish(id, reason)
				return
			}

			if !sleep(ctx, pause) {
				s.finish(id, interruptReason(ctx))
				return
			}
			pause *= 2
			if pause > s.opts.MaxErrorPause {
				pause = s.opts.MaxErrorPause
			}
			continue
		}

		failures = 0
		pause = s.opts.ErrorPause

		s.recordCatch(ctx, bot, announce, id)

		if !sleep(ctx, s.opts.CastDelay) {
			s.finish(id, interruptReason(ctx))
			return
		}
	}
}

// recordCatch classifies the newest inventory item as the catch.
func (s *Session) recordCatch(ctx context.Context, bot Bot, announce bool, id uuid.UUID) {
	items, err := bot.Inventory(ctx)
	if err != nil {
		s.logger.Warn("failed to read inventory after catch", "session", id, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	item := items[len(items)-1].Name
	kind := Classify(item)
	c := Catch{
		Item:       item,
		Kind:       kind,
		Timestamp:  s.opts.Now(),
		IsTreasure: kind == KindTreasure,
	}

	s.mu.Lock()
	if !s.active || s.id != id {
		s.mu.Unlock()
		return
	}
	s.catches = append(s.catches, c)
	if c.IsTreasure {
		s.treasures = append(s.treasures, item)
	}
	seq := len(s.catches)
	s.mu.Unlock()

	s.logger.Debug("catch", "session", id, "item", item, "kind", kind)

	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordCatch(CatchRecord{SessionID: id, Seq: seq, Bot: s.bot, Catch: c})
	}

	if line := announcement(item, kind, announce, s.opts.Pick); line != "" {
		s.say(ctx, bot, line)
	}
}

// current reports whether session id is still the active one.
func (s *Session) current(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.id == id
}

// finish freezes a session that ended without fish-stop.
func (s *Session) finish(id uuid.UUID, reason string) {
	s.mu.Lock()
	if !s.active || s.id != id {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.endTime = s.opts.Now()
	s.stopReason = reason
	s.unreported = true
	if s.cancel != nil {
		s.cancel()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordSession(snap)
	}
}

func (s *Session) say(ctx context.Context, bot Bot, line string) {
	if err := bot.Chat(ctx, line); err != nil {
		s.logger.Warn("failed to send chat", "error", err)
	}
}

func findRod(items []bridge.Item) (bridge.Item, bool) {
	for _, it := range items {
		if strings.Contains(it.Name, "fishing_rod") {
			return it, true
		}
	}
	return bridge.Item{}, false
}

// isInterrupt reports whether a cast error means the cast was deliberately cut short.
func isInterrupt(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupt") || strings.Contains(msg, "stop")
}

func interruptReason(ctx context.Context) string {
	if context.Cause(ctx) == errShutdown {
		return StopReasonShutdown
	}
	return StopReasonInterrupted
}

// sleep waits for d or until ctx is done. It returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
