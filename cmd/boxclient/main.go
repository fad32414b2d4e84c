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
	"github.com/boxworld/box/internal/gamemath"
	"github.com/boxworld/box/internal/message"
	gonet "github.com/boxworld/box/internal/net"
	"github.com/boxworld/box/internal/scripting"
	"github.com/boxworld/box/internal/sim"
	"github.com/boxworld/box/internal/system"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const goodbyeGrace = time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := "config/client.toml"
	if p := os.Getenv("BOX_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := config.NewLogger("boxclient", cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	console.Banner(cfg.Server.Name+" client", "v"+cfg.Server.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console.Section("Network")
	sess, err := gonet.Dial(ctx, cfg.Network.Address, cfg.Network.DialTimeout, gonet.NewSessionConfig(cfg.Network), log)
	if err != nil {
		// The client still starts; its network system reports Disconnected.
		log.Error("connect failed", zap.Error(err))
		console.Warn("no server at " + cfg.Network.Address)
	} else {
		console.OK("connected to " + cfg.Network.Address)
	}
	fmt.Println()

	cc := cfg.Camera
	cam := gamemath.NewCamera(cc.WindowWidth, cc.WindowHeight, cc.Fov, mgl32.Vec3(cc.Eye), mgl32.Vec3(cc.Target))
	simCtx := sim.NewContext(cfg.Simulation.Timestep, sim.NewStore(), sim.NewResources(cam), bus.New())

	runner := coresys.NewRunner(cfg.Simulation.Parallel, log)
	console.Section("Input")
	if cfg.Script.Enabled {
		engine, err := scripting.NewEngine(cfg.Script.Path, log)
		if err != nil {
			return fmt.Errorf("script: %w", err)
		}
		defer engine.Close()
		if !engine.HasFunction(scripting.AutopilotFunc) {
			return fmt.Errorf("script %s defines no %s function", cfg.Script.Path, scripting.AutopilotFunc)
		}
		runner.Register(system.NewScriptInputSystem(engine, log))
		console.OK("autopilot " + cfg.Script.Path)
	} else {
		console.Warn("no input source, watching only")
	}
	fmt.Println()

	netSys := system.NewClientNetworkSystem(sess, cfg.Server.Version, cfg.Client.QuitOnDisconnect, log)
	runner.Register(system.NewSelectionSystem(log))
	runner.Register(system.NewMovementSystem(cfg.Movement.TravelTime))
	runner.Register(system.NewSpawnSystem(system.RoleClient, log))
	runner.Register(netSys)
	runner.Register(system.NewCleanupSystem(log))

	sched, err := coresys.NewScheduler(runner, simCtx, cfg.Simulation.Timestep, cfg.Simulation.SimRate, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	console.Section("Simulation")
	console.Stat("timestep", cfg.Simulation.Timestep)
	console.Stat("systems", len(runner.Systems()))
	console.Stat("stages", len(runner.Stages()))
	fmt.Println()
	console.Ready("client running")

	err = sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		// Interrupted: let the network system say goodbye.
		simCtx.Post(message.Quit{})
		sched.Tick(0)
		err = nil
	}
	if sess != nil {
		select {
		case <-sess.Closed():
		case <-time.After(goodbyeGrace):
		}
		sess.Close()
	}
	log.Info("client stopped", zap.Stringer("state", netSys.State()))
	return err
}
