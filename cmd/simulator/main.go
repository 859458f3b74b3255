package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/drone-delivery-sim/core"
	"github.com/signalsfoundry/drone-delivery-sim/internal/logging"
	"github.com/signalsfoundry/drone-delivery-sim/internal/observability"
	"github.com/signalsfoundry/drone-delivery-sim/internal/observer"
	"github.com/signalsfoundry/drone-delivery-sim/internal/sim/entity"
	"github.com/signalsfoundry/drone-delivery-sim/kb"
	"github.com/signalsfoundry/drone-delivery-sim/timectrl"
)

type config struct {
	Duration    time.Duration
	Tick        time.Duration
	Accelerated bool
	Scenario    string
	Listen      string
	Journal     string
}

func main() {
	var cfg config
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "total simulated duration (0 runs until interrupted)")
	flag.DurationVar(&cfg.Tick, "tick", 1*time.Second, "simulated time per tick")
	flag.BoolVar(&cfg.Accelerated, "accelerated", true, "run in accelerated mode (vs real-time)")
	flag.StringVar(&cfg.Scenario, "scenario", "configs/scenario.yaml", "path to the YAML scenario")
	flag.StringVar(&cfg.Listen, "listen", ":8080", "address serving /metrics and /ws (empty disables)")
	flag.StringVar(&cfg.Journal, "journal", "", "write a zstd JSONL notification journal to this path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logging.NewFromEnv()
	ctx, _ = logging.EnsureRunID(ctx)

	if err := run(ctx, cfg, log, prometheus.NewRegistry(), os.Stdout); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

// run loads the scenario, wires observers, metrics and tracing, and drives
// the engine until the configured duration elapses or ctx is cancelled.
func run(ctx context.Context, cfg config, log logging.Logger, reg *prometheus.Registry, out io.Writer) error {
	if cfg.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", cfg.Tick)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewDeliveryCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	f, err := os.Open(cfg.Scenario)
	if err != nil {
		return fmt.Errorf("open scenario %q: %w", cfg.Scenario, err)
	}
	scenario, err := core.LoadScenario(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("load scenario %q: %w", cfg.Scenario, err)
	}

	hub := observer.NewHub(log)
	defer hub.Close()
	sinks := observer.Fanout{observer.LogSink{Log: log}, hub, printSink{out: out}}
	if cfg.Journal != "" {
		journal, err := observer.OpenJournal(cfg.Journal, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := journal.Close(); err != nil {
				log.Error(ctx, "journal close failed", logging.Err(err))
			}
		}()
		sinks = append(sinks, journal)
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.Tick, mode)

	engine := core.NewSimulationEngine(kb.NewRegistry(),
		core.WithTickRecorder(collector),
		core.WithLogger(log),
		core.WithClock(tc),
	)
	// Registry changes go to metrics, logs and the live stream, but not
	// to the console or the journal, which carry agent notifications.
	stopWatch := core.WatchRegistry(engine.Registry, collector, observer.Fanout{observer.LogSink{Log: log}, hub})
	defer stopWatch()

	if err := scenario.Populate(engine, log,
		entity.WithObserver(sinks),
		entity.WithRecorder(collector),
	); err != nil {
		return fmt.Errorf("populate scenario: %w", err)
	}
	log.Info(ctx, "scenario loaded",
		logging.Int("drones", len(scenario.Drones)),
		logging.Int("pirates", len(scenario.Pirates)),
		logging.Bool("robot", scenario.Robot != nil),
		logging.Int("packages", len(scenario.Packages)),
	)

	if cfg.Listen != "" {
		srv, err := serve(cfg.Listen, collector, hub, log)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	tc.AddListener(func(_ time.Time, dt time.Duration) {
		engine.Step(ctx, dt.Seconds())
	})

	log.Info(ctx, "starting simulation",
		logging.String("duration", cfg.Duration.String()),
		logging.String("tick", cfg.Tick.String()),
		logging.String("mode", mode.String()),
	)
	<-tc.Start(ctx, cfg.Duration)
	fmt.Fprintf(out, "Simulation complete: %d ticks, %d packages pending.\n", engine.Ticks(), engine.Registry.Len())
	return nil
}

func serve(addr string, collector *observability.DeliveryCollector, hub *observer.Hub, log logging.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/ws", hub.Handler())

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(context.Background(), "http server stopped", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving metrics and observer stream", logging.String("addr", lis.Addr().String()))
	return srv, nil
}

// printSink echoes lifecycle notifications to the console.
type printSink struct {
	out io.Writer
}

func (p printSink) Notify(_, message string) {
	fmt.Fprintln(p.out, message)
}
