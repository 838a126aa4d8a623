package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rednet.ai/internal/sim/grid"
	"rednet.ai/internal/sim/voxel"
)

const tracerName = "rednet.ai/internal/sim/engine"

var ErrStopped = errors.New("engine stopped")

type Config struct {
	RunID      string
	TickRateHz int

	Logger            *log.Logger
	Debug             bool
	SweepWarnConduits int
	Metrics           grid.Metrics

	// IncludeMembers lists every conduit position in the network summaries.
	IncludeMembers bool

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Command mutates the world. It runs on the simulation goroutine at a tick
// boundary.
type Command func(s *voxel.Store) error

type cmdReq struct {
	fn   Command
	resp chan error
}

// Engine drives a voxel store and its networks at a fixed tick rate.
type Engine struct {
	cfg    Config
	log    *log.Logger
	store  *voxel.Store
	tracer trace.Tracer

	cmds  chan cmdReq
	stop  chan struct{}
	once  sync.Once
	sinks []Sink

	tick atomic.Uint64

	mu     sync.RWMutex
	latest TickEntry
	has    bool
}

func New(cfg Config) *Engine {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[engine] ", log.LstdFlags)
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Engine{
		cfg: cfg,
		log: logger,
		store: voxel.NewStore(grid.HandlerConfig{
			Logger:            logger,
			Debug:             cfg.Debug,
			Metrics:           cfg.Metrics,
			SweepWarnConduits: cfg.SweepWarnConduits,
		}),
		tracer: tp.Tracer(tracerName),
		cmds:   make(chan cmdReq, 256),
		stop:   make(chan struct{}),
	}
}

func (e *Engine) RunID() string       { return e.cfg.RunID }
func (e *Engine) TickRateHz() int     { return e.cfg.TickRateHz }
func (e *Engine) CurrentTick() uint64 { return e.tick.Load() }

// Store exposes the world for callers that own the simulation goroutine (tests,
// scenario replays). Concurrent callers go through Do.
func (e *Engine) Store() *voxel.Store { return e.store }

// AddSink registers s. Call before Run.
func (e *Engine) AddSink(s Sink) {
	if s != nil {
		e.sinks = append(e.sinks, s)
	}
}

// Latest returns the most recent tick entry.
func (e *Engine) Latest() (TickEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest, e.has
}

// Do queues fn for the next tick boundary and waits for its result.
func (e *Engine) Do(ctx context.Context, fn Command) error {
	req := cmdReq{fn: fn, resp: make(chan error, 1)}
	select {
	case e.cmds <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stop:
		return ErrStopped
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stop:
		return ErrStopped
	}
}

func (e *Engine) Stop() { e.once.Do(func() { close(e.stop) }) }

func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []cmdReq
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case req := <-e.cmds:
			pending = append(pending, req)
		case <-ticker.C:
			e.apply(ctx, pending)
			pending = pending[:0]
			e.StepOnce(ctx)
		}
	}
}

func (e *Engine) apply(ctx context.Context, reqs []cmdReq) {
	if len(reqs) == 0 {
		return
	}
	_, span := e.tracer.Start(ctx, "engine.apply_commands",
		trace.WithAttributes(attribute.Int("commands", len(reqs))))
	defer span.End()
	for _, req := range reqs {
		err := req.fn(e.store)
		if err != nil {
			span.RecordError(err)
		}
		req.resp <- err
	}
}

// StepOnce advances one tick and publishes its entry to every sink. It is the
// deterministic path used by Run, replays and tests.
func (e *Engine) StepOnce(ctx context.Context) TickEntry {
	ctx, span := e.tracer.Start(ctx, "engine.tick")
	defer span.End()

	_, gs := e.tracer.Start(ctx, "grid.tick")
	st := e.store.Handler().Tick()
	gs.SetAttributes(
		attribute.Int("placed", st.Placed),
		attribute.Int("sweeps", st.Sweeps),
		attribute.Int("merges", st.Merges),
		attribute.Int("notifications", st.Notifications),
		attribute.Int("deferred", st.Deferred),
	)
	gs.End()

	entry := TickEntry{
		RunID:    e.cfg.RunID,
		Tick:     st.Tick,
		Stats:    st,
		Networks: summarize(e.store.Handler(), e.cfg.IncludeMembers),
		Digest:   e.store.Digest(),
	}

	_, ps := e.tracer.Start(ctx, "engine.publish", trace.WithAttributes(attribute.Int("sinks", len(e.sinks))))
	for _, s := range e.sinks {
		if err := s.WriteTick(entry); err != nil {
			ps.RecordError(err)
			e.log.Printf("tick %d: sink %T: %v", st.Tick, s, err)
		}
	}
	ps.End()

	span.SetAttributes(
		attribute.Int64("tick", int64(st.Tick)),
		attribute.Int("networks", st.Networks),
		attribute.Int("conduits", st.Conduits),
	)

	e.mu.Lock()
	e.latest, e.has = entry, true
	e.mu.Unlock()
	e.tick.Store(st.Tick + 1)
	return entry
}
