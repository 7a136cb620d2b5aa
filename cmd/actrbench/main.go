// Command actrbench drives an actor system with request/response, fan-out
// and delayed traffic and reports throughput. Configuration comes from
// actr.yaml and ACTR_* environment variables; see core/config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/actr-go/adapters/prometheus"
	"github.com/codewandler/actr-go/core/actor"
	"github.com/codewandler/actr-go/core/config"
)

type (
	square struct{ N int }
	tick   struct{}
	ticks  struct{}
)

type stats struct {
	requests atomic.Int64
	fanouts  atomic.Int64
	delayed  atomic.Int64
	failures atomic.Int64
}

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := cfg.Logger(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("benchmark failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()

	opts := cfg.Options()
	opts.Context = ctx
	opts.Logger = log
	opts.Metrics = reg.Actor
	sys := actor.NewSystem(opts)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sys.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", slog.Any("error", err))
		}
	}()

	if cfg.Metrics.Enabled {
		srv := serveMetrics(cfg.Metrics.Addr, reg, log)
		defer func() { _ = srv.Close() }()
	}

	workers := spawnWorkers(sys, max(cfg.Bench.Fanout, 1))
	counter := spawnCounter(sys)

	var st stats
	startAt := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	perClient := cfg.Bench.Requests / cfg.Bench.Clients
	for i := range cfg.Bench.Clients {
		g.Go(func() error {
			return client(gctx, sys, i, perClient, workers, counter, cfg.Bench, &st)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	took := time.Since(startAt)

	// let the delayed ticks land before asking for the count
	time.Sleep(cfg.Bench.Delay)
	b := sys.Scoped(actor.WithName("report"))
	delivered, err := actor.RequestSync[int](b, counter, cfg.Bench.Timeout, ticks{}).Wait()
	b.Close()
	if err != nil {
		return fmt.Errorf("query tick counter: %w", err)
	}

	report(took, &st, int64(delivered))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
	return srv
}

func spawnWorkers(sys *actor.System, n int) []actor.Handle {
	workers := make([]actor.Handle, n)
	for i := range workers {
		workers[i] = sys.Spawn(func(self *actor.Self) actor.Behavior {
			return actor.NewBehavior(
				actor.Reply(func(m square) (int, error) { return m.N * m.N, nil }),
			)
		}, actor.WithName(fmt.Sprintf("worker-%d", i)))
	}
	return workers
}

func spawnCounter(sys *actor.System) actor.Handle {
	return sys.Spawn(func(self *actor.Self) actor.Behavior {
		n := 0
		return actor.NewBehavior(
			actor.Do(func(tick) error { n++; return nil }),
			actor.Reply(func(ticks) (int, error) { return n, nil }),
		)
	}, actor.WithName("ticks"))
}

func client(ctx context.Context, sys *actor.System, id, requests int, workers []actor.Handle, counter actor.Handle, cfg config.BenchConfig, st *stats) error {
	b := sys.Scoped(actor.WithName(fmt.Sprintf("client-%d", id)))
	defer b.Close()

	fail := func(error) { st.failures.Add(1) }

	for i := range requests {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w := workers[(id+i)%len(workers)]
		v, err := actor.RequestSync[int](b, w, cfg.Timeout, square{N: i}).Wait()
		switch {
		case err != nil:
			fail(err)
		case v != i*i:
			return fmt.Errorf("client %d: square(%d) = %d", id, i, v)
		default:
			st.requests.Add(1)
		}

		if cfg.Fanout > 0 && i%100 == 0 {
			actor.FanOutSync[int](b, workers, cfg.Timeout, square{N: i}).SelectAll().Receive(
				func([]int) { st.fanouts.Add(1) },
				fail,
			)
		}

		if i%1000 == 0 {
			if _, err := b.DelayedSend(counter, cfg.Delay, tick{}); err != nil {
				fail(err)
				continue
			}
			st.delayed.Add(1)
		}
	}
	return nil
}

func report(took time.Duration, st *stats, delivered int64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	fmt.Println("==========================================")
	fmt.Printf("total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("     requests: %d (%d/s)\n", st.requests.Load(), int(float64(st.requests.Load())/took.Seconds()))
	fmt.Printf("      fanouts: %d\n", st.fanouts.Load())
	fmt.Printf("delayed sends: %d sent, %d delivered\n", st.delayed.Load(), delivered)
	fmt.Printf("     failures: %d\n", st.failures.Load())
	fmt.Printf("       memory: %d / %d MiB (alloc / sys), %d gc\n", m.Alloc/1024/1024, m.Sys/1024/1024, m.NumGC)
}
