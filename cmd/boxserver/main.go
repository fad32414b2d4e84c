package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boxworld/box/internal/config"
	"github.com/boxworld/box/internal/console"
	"github.com/boxworld/box/internal/core/bus"
	coresys "github.com/boxworld/box/internal/core/system"
	gonet "github.com/boxworld/box/internal/net"
	"github.com/boxworld/box/internal/sim"
	"github.com/boxworld/box/internal/system"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/server.toml"
	if p := os.Getenv("BOX_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := config.NewLogger("boxserver", cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	console.Banner(cfg.Server.Name+" server", "v"+cfg.Server.Version)

	console.Section("Network")
	srv, err := gonet.NewServer(cfg.Network.Address, gonet.NewSessionConfig(cfg.Network), log)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Network.Address, err)
	}
	console.OK("listening on " + srv.Addr().String())
	if cfg.Network.FramesPerSecond > 0 {
		console.Stat("frame limit per second", cfg.Network.FramesPerSecond)
	}
	fmt.Println()

	simCtx := sim.NewContext(cfg.Simulation.Timestep, sim.NewStore(), sim.NewResources(nil), bus.New())
	netSys := system.NewServerNetworkSystem(srv, cfg.Server.Version, cfg.Server.Motd, log)

	runner := coresys.NewRunner(cfg.Simulation.Parallel, log)
	runner.Register(system.NewMovementSystem(cfg.Movement.TravelTime))
	runner.Register(system.NewSpawnSystem(system.RoleServer, log))
	runner.Register(netSys)
	runner.Register(system.NewCleanupSystem(log))

	sched, err := coresys.NewScheduler(runner, simCtx, cfg.Simulation.Timestep, cfg.Simulation.SimRate, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	console.Section("Simulation")
	console.Stat("timestep", cfg.Simulation.Timestep)
	console.Stat("sim rate cap", cfg.Simulation.SimRate)
	console.Stat("systems", len(runner.Systems()))
	console.Stat("stages", len(runner.Stages()))
	fmt.Println()
	console.Ready("server ready")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.AcceptLoop)
	g.Go(func() error {
		defer srv.Shutdown()
		err := sched.Run(gctx)
		log.Info("shutting down", zap.Int("clients", len(netSys.Clients())))
		netSys.Shutdown("server shutting down", shutdownGrace)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
