package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rmax-ai/spawnlord/pkg/api"
	"github.com/rmax-ai/spawnlord/pkg/blob"
	"github.com/rmax-ai/spawnlord/pkg/engine"
	"github.com/rmax-ai/spawnlord/pkg/pool"
	"github.com/rmax-ai/spawnlord/pkg/store"
	redisstore "github.com/rmax-ai/spawnlord/pkg/store/redis"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	lvl.UnmarshalText([]byte(level))
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel).With("component", "spawnlord-d")
	slog.SetDefault(logger)
	logger.Info("system_started", "world_path", cfg.WorldPath, "addr", cfg.Addr)

	world, err := engine.LoadWorldConfig(cfg.WorldPath)
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed_to_close_store", "error", err)
		}
	}()
	logger.Info("store_initialized", "path", cfg.DBPath)

	var (
		leases store.LeaseStore = st
		tiers  engine.TierStoreFactory
	)
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		leases = redisstore.NewLeaseStore(rdb)
		// Each node publishes its own schedulers' tiers; elapsed time is
		// local, so tier state is never shared between nodes.
		tiers = func(worldName, schedulerID string) pool.TierStore {
			return redisstore.NewTierStore(rdb, worldName+":"+schedulerID+":"+cfg.AdvertiseURL)
		}
		logger.Info("redis_connected", "addr", cfg.RedisAddr)
	}

	instances, err := world.Build(tiers)
	if err != nil {
		return fmt.Errorf("build world: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := engine.NewDriver(world.World, cfg.TickInterval)
	driver.SetLogger(logger)
	recorder := engine.NewRecorder(st, world.World, cfg.AdvertiseURL)
	recorder.SetLogger(logger)
	hub := api.NewHub()
	hub.SetLogger(logger)

	election := engine.NewElectionManager(
		leases,
		cfg.AdvertiseURL,
		"spawnlord:"+world.World,
		cfg.LeaseTTL,
		func() { recorder.OnLeadershipChanged(ctx, true) },
		func() { recorder.OnLeadershipChanged(ctx, false) },
	)
	election.SetLogger(logger)
	driver.SetLeaderFunc(election.IsLeader)
	recorder.SetEpochFunc(election.Epoch)

	driver.AddObserver(recorder)
	driver.AddObserver(hub)
	for _, inst := range instances {
		inst.Scheduler.SetLogger(logger.With("scheduler_id", inst.ID))
		if err := driver.Register(ctx, inst); err != nil {
			return err
		}
	}

	election.Start(ctx)

	server := api.NewServer(driver, st, hub, cfg.Addr)
	server.SetLogger(logger)
	server.SetElectionManager(election)

	go driver.Start(ctx)
	if cfg.ArchiveDir != "" {
		archiver := engine.NewArchiveWorker(st, blob.NewLocalBlobStore(cfg.ArchiveDir), world.World,
			engine.ArchiveConfig{Retention: cfg.Retention, Interval: cfg.PruneInterval})
		archiver.SetLogger(logger)
		go archiver.Run(ctx)
	} else {
		pruner := engine.NewPruneWorker(st, engine.RetentionConfig{Retention: cfg.Retention, Interval: cfg.PruneInterval})
		pruner.SetLogger(logger)
		go pruner.Run(ctx)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_initiated")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server_failed", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	election.Stop(shutdownCtx)

	logger.Info("shutdown_complete")
	return nil
}
