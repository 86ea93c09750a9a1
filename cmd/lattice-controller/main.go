// Command lattice-controller is the reconciliation core's daemon: it loads
// configuration, wires the Store/Bus/Lattice Client capabilities, and runs
// the State Projector, Scaler Manager, Event Worker, Command Worker, and
// Reaper until terminated (teacher `ais/daemon.go` bootstrap shape).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wasmCloud/lattice-controller/internal/bus"
	"github.com/wasmCloud/lattice-controller/internal/bus/membus"
	"github.com/wasmCloud/lattice-controller/internal/bus/redisbus"
	"github.com/wasmCloud/lattice-controller/internal/cmn"
	"github.com/wasmCloud/lattice-controller/internal/latticeclient"
	"github.com/wasmCloud/lattice-controller/internal/latticeclient/mocklattice"
	"github.com/wasmCloud/lattice-controller/internal/logging"
	"github.com/wasmCloud/lattice-controller/internal/projector"
	"github.com/wasmCloud/lattice-controller/internal/reaper"
	"github.com/wasmCloud/lattice-controller/internal/scalermanager"
	"github.com/wasmCloud/lattice-controller/internal/stats"
	"github.com/wasmCloud/lattice-controller/internal/store"
	"github.com/wasmCloud/lattice-controller/internal/store/memstore"
	"github.com/wasmCloud/lattice-controller/internal/store/redisstore"
	"github.com/wasmCloud/lattice-controller/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	loadConfig := cmn.LoadConfigFlags(flag.CommandLine)
	flag.Parse()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lattice-controller: %v\n", err)
		return 1
	}
	cmn.GCO.Put(config)
	cmn.InitShortID(uint64(os.Getpid()))
	logging.Init(config.LogLevel, os.Stderr)
	log := logging.ForLattice(config.LatticeID)

	s, b, err := buildCapabilities(config)
	if err != nil {
		log.Error().Err(err).Msg("failed to build store/bus capabilities")
		return 1
	}
	client := buildLatticeClient(config)

	tracker := stats.NewTracker()
	if config.MetricsAddr != "" {
		go serveMetrics(config.MetricsAddr, tracker, log)
	}

	prefix := bus.AccountPrefix(config.Multitenant, config.AccountID)
	p := projector.New(s, client)
	manager := scalermanager.New(config.LatticeID, s, b, bus.NotificationsSubject(config.LatticeID), config.CleanupTimeout)
	r := reaper.New(config.LatticeID, s, config.ReapWarnAfter(), config.ReapRemoveAfter(), tracker)

	statusFor := func(manifest string) bus.Subject {
		return bus.StatusSubject(prefix, config.LatticeID, manifest)
	}
	eventWorker := worker.NewEventWorker(config.LatticeID, b,
		bus.EventsSubject(prefix, config.LatticeID), bus.CommandsSubject(prefix, config.LatticeID),
		statusFor, p, manager)
	commandWorker := worker.NewCommandWorker(config.LatticeID, b, bus.CommandsSubject(prefix, config.LatticeID), client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.Start(ctx)

	errCh := make(chan error, 2)
	go func() { errCh <- eventWorker.Run(ctx) }()
	go func() { errCh <- commandWorker.Run(ctx) }()

	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("a worker exited with an error, shutting down")
		stop()
		<-errCh
		return 1
	}
	stop()
	<-errCh
	log.Info().Msg("terminated OK")
	return 0
}

// buildCapabilities picks the Store and Bus implementation named by
// config.Backend; "mem" is for single-process/embedded runs, "redis" is the
// shared, multi-replica deployment (§6).
func buildCapabilities(config *cmn.Config) (store.Store, bus.Bus, error) {
	switch config.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		return redisstore.New(rdb), redisbus.New(rdb, config.Consumer), nil
	default:
		s, err := memstore.Open(config.MemStorePath)
		if err != nil {
			return nil, nil, cmn.Wrapf(err, "opening memstore at %s", config.MemStorePath)
		}
		return s, membus.New(), nil
	}
}

// buildLatticeClient wires the reference Lattice Client. A production
// deployment replaces this with a client that speaks its lattice's own
// control API (see DESIGN.md).
func buildLatticeClient(_ *cmn.Config) latticeclient.Client {
	return mocklattice.New()
}

func serveMetrics(addr string, tracker *stats.Tracker, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(tracker.Registry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("metrics server exited")
	}
}
