package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bot-builder-go/internal/config"
	"bot-builder-go/internal/models"
	"bot-builder-go/internal/program"
	"bot-builder-go/internal/runstate"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("a bot is already running")

// Engine is the execution coordinator. It compiles workspace snapshots, runs
// them on an Executor and tells subscribers about every run-state
// transition: idle, running, stopping and back to idle.
type Engine struct {
	logger   *zap.Logger
	cfg      config.Runner
	db       *gorm.DB
	executor Executor
	codec    program.Codec
	types    program.TypeCatalog

	mu       sync.Mutex
	state    runstate.State
	snapshot []byte
	run      *models.RunRecord
	cancel   context.CancelFunc
	done     chan struct{}
	subs     map[uint64]func(runstate.Signal)
	nextSub  uint64

	// pending holds signals in the order their transitions happened. It is
	// guarded by mu and drained by whichever caller holds delivering.
	pending    []runstate.Signal
	delivering sync.Mutex
}

var _ runstate.Coordinator = (*Engine)(nil)

// NewEngine creates an idle engine. Runs are recorded in db.
func NewEngine(logger *zap.Logger, cfg config.Runner, db *gorm.DB, executor Executor) *Engine {
	return &Engine{
		logger:   logger.Named("runner"),
		cfg:      cfg,
		db:       db,
		executor: executor,
		codec:    program.XMLCodec{},
		types:    program.DefaultTypes(),
		subs:     make(map[uint64]func(runstate.Signal)),
	}
}

// RunState returns the current run state.
func (e *Engine) RunState() runstate.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers fn for future signals. Signals are delivered outside
// the engine's lock, in the order of the transitions they describe, so fn may
// call back into the engine.
func (e *Engine) Subscribe(fn func(runstate.Signal)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSub++
	id := e.nextSub
	e.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// Snapshot returns the document of the current or last run.
func (e *Engine) Snapshot() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Current returns the record of the run in progress, if any.
func (e *Engine) Current() (models.RunRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return models.RunRecord{}, false
	}
	return *e.run, true
}

// Start compiles snapshot and starts running it in the background. The run
// ends when the executor completes or fails, when max ticks is reached, or
// when Stop is called. ctx only bounds compilation and bookkeeping.
func (e *Engine) Start(ctx context.Context, snapshot []byte) (string, error) {
	graph, err := e.codec.Decode(snapshot, e.types)
	if err != nil {
		return "", fmt.Errorf("compile snapshot: %w", err)
	}

	e.mu.Lock()
	if e.state != runstate.Idle {
		e.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	record := &models.RunRecord{
		UUID:      uuid.NewString(),
		Snapshot:  string(snapshot),
		Blocks:    graph.Len(),
		Outcome:   models.OutcomeRunning,
		StartedAt: time.Now(),
	}
	if err := e.db.WithContext(ctx).Create(record).Error; err != nil {
		e.mu.Unlock()
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e.state = runstate.Running
	e.snapshot = snapshot
	e.run = record
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.enqueue(runstate.Signal{State: runstate.Running})
	e.mu.Unlock()

	e.logger.Info("Bot started", zap.String("run", record.UUID), zap.Int("blocks", record.Blocks))
	e.flush()

	go e.loop(runCtx, graph, record, done)
	return record.UUID, nil
}

// Stop asks the running bot to stop and waits until it is idle or ctx ends.
// Stopping an idle engine does nothing.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state == runstate.Idle {
		e.mu.Unlock()
		return nil
	}
	changed := e.state == runstate.Running
	e.state = runstate.Stopping
	cancel, done := e.cancel, e.done
	if changed {
		e.enqueue(runstate.Signal{State: runstate.Stopping})
	}
	e.mu.Unlock()

	if changed {
		e.logger.Info("Stopping bot")
	}
	e.flush()
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestReset tells subscribers the user acknowledged that edits will not
// reach the running bot.
func (e *Engine) RequestReset() {
	e.mu.Lock()
	state := e.state
	e.enqueue(runstate.Signal{State: state, ResetRequested: true})
	e.mu.Unlock()

	e.logger.Info("Reset requested", zap.Stringer("state", state))
	e.flush()
}

// Done returns a channel closed when the current run ends. It is nil when
// nothing has run.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Runs returns the most recent run records, newest first.
func (e *Engine) Runs(limit int) ([]models.RunRecord, error) {
	var runs []models.RunRecord
	if err := e.db.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (e *Engine) loop(ctx context.Context, graph *program.Graph, record *models.RunRecord, done chan struct{}) {
	defer close(done)

	interval := time.Duration(e.cfg.TickIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l := e.logger.With(zap.String("run", record.UUID))
	ticks := 0
	outcome := models.OutcomeStopped
	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			ticks++
			finished, err := e.executor.Tick(ctx, graph, ticks)
			if err != nil {
				l.Error("Tick failed", zap.Int("tick", ticks), zap.Error(err))
				outcome, runErr = models.OutcomeFailed, err
				break loop
			}
			if finished || (e.cfg.MaxTicks > 0 && ticks >= e.cfg.MaxTicks) {
				outcome = models.OutcomeCompleted
				break loop
			}
		}
	}

	e.finish(l, record, ticks, outcome, runErr)
}

func (e *Engine) finish(l *zap.Logger, record *models.RunRecord, ticks int, outcome string, runErr error) {
	e.mu.Lock()
	if e.state == runstate.Running {
		e.enqueue(runstate.Signal{State: runstate.Stopping})
	}
	e.state = runstate.Stopping
	e.mu.Unlock()
	e.flush()

	stopped := time.Now()
	record.Ticks = ticks
	record.Outcome = outcome
	record.StoppedAt = &stopped
	if runErr != nil {
		record.Error = runErr.Error()
	}
	if err := e.db.Save(record).Error; err != nil {
		l.Error("Failed to save run record", zap.Error(err))
	}

	e.mu.Lock()
	e.state = runstate.Idle
	e.run = nil
	e.enqueue(runstate.Signal{State: runstate.Idle})
	e.mu.Unlock()

	l.Info("Bot stopped", zap.String("outcome", outcome), zap.Int("ticks", ticks))
	e.flush()
}

// enqueue records sig for delivery. e.mu must be held, so the queue order
// matches the order of state changes.
func (e *Engine) enqueue(sig runstate.Signal) {
	e.pending = append(e.pending, sig)
}

// flush delivers queued signals unless another caller is already doing so,
// in which case that caller delivers them. Subscribers are resolved per
// signal, in subscription order.
func (e *Engine) flush() {
	for e.delivering.TryLock() {
		for {
			e.mu.Lock()
			if len(e.pending) == 0 {
				e.mu.Unlock()
				break
			}
			sig := e.pending[0]
			e.pending = e.pending[1:]
			subs := make([]func(runstate.Signal), 0, len(e.subs))
			for id := uint64(1); id <= e.nextSub; id++ {
				if fn, ok := e.subs[id]; ok {
					subs = append(subs, fn)
				}
			}
			e.mu.Unlock()

			for _, fn := range subs {
				fn(sig)
			}
		}
		e.delivering.Unlock()

		e.mu.Lock()
		empty := len(e.pending) == 0
		e.mu.Unlock()
		if empty {
			return
		}
	}
}
