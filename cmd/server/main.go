package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rednet.ai/internal/observability"
	persistlog "rednet.ai/internal/persistence/log"
	"rednet.ai/internal/scenario"
	"rednet.ai/internal/sim/engine"
	"rednet.ai/internal/sim/tuning"
	"rednet.ai/internal/transport/observer"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		dataDir      = flag.String("data", "./data", "runtime data directory (used when log.events_dir is empty)")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		scenarioPath = flag.String("scenario", "", "scenario to preload before the tick loop starts (optional)")
		runID        = flag.String("run", "", "run id (default: random)")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite read-model index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	ctx, cancel := signalContext()
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     tune.Tracing.Enabled,
		ServiceName: "rednet-server",
		SampleRatio: tune.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("init tracing: %v", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	metrics, err := observability.NewGridCollector(nil)
	if err != nil {
		logger.Fatalf("metrics: %v", err)
	}

	eng := engine.New(engine.Config{
		RunID:             strings.TrimSpace(*runID),
		TickRateHz:        tune.TickRateHz,
		Logger:            log.New(os.Stdout, "[rednet] ", log.LstdFlags|log.Lmicroseconds),
		Debug:             tune.Debug,
		SweepWarnConduits: tune.SweepWarnConduits,
		Metrics:           metrics,
	})
	runDir := filepath.Join(*dataDir, "runs", eng.RunID())
	if tune.Log.EventsDir != "" {
		runDir = filepath.Join(tune.Log.EventsDir, eng.RunID())
	}
	logger.Printf("run=%s tick_rate_hz=%d dir=%s", eng.RunID(), tune.TickRateHz, runDir)

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(tune, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertRunMeta(eng.RunID(), tune); err != nil {
			logger.Printf("index backend: upsert run meta: %v", err)
		}
		eng.AddSink(idx)
	}

	tickLog := persistlog.NewTickLogger(runDir)
	defer tickLog.Close()
	eng.AddSink(tickLog)

	obsSrv := observer.NewServer(eng, logger, tune.Observer.MaxClients)
	eng.AddSink(obsSrv)

	if p := strings.TrimSpace(*scenarioPath); p != "" {
		sc, err := scenario.Load(p)
		if err != nil {
			logger.Fatalf("load scenario: %v", err)
		}
		opLog := persistlog.NewOpLogger(runDir)
		runner := scenario.NewRunner(eng, logger)
		runner.RecordOps(opLog)
		res, err := runner.Run(ctx, sc)
		_ = opLog.Close()
		switch {
		case errors.Is(err, scenario.ErrExpectations):
			logger.Printf("scenario %s: %v", sc.Name, err)
		case err != nil:
			logger.Fatalf("scenario %s: %v", sc.Name, err)
		default:
			logger.Printf("scenario %s: %d steps, %d ticks, %d expectations ok", res.Name, res.Steps, res.Ticks, res.Expectations)
		}
	}

	go func() {
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	go func() {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := idx.Stats()
				metrics.ObserveSink("index", st.DropTickTotal, st.QueueDepth)
				metrics.ObserveSink("observer", obsSrv.Dropped(), 0)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())

	if envBool("RN_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (RN_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		eng.Stop()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
