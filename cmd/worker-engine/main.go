// Command worker-engine is the fleet's entry point: it loads
// configuration, wires every collaborator (document store, cloud
// provider, lab API, throttle, event relay, job scheduler), starts the
// admin/health surface, and blocks for a graceful shutdown signal.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/cml-fleet/worker-engine/adminserver"
	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/commands"
	"github.com/cml-fleet/worker-engine/internal/config"
	"github.com/cml-fleet/worker-engine/internal/logging"
	"github.com/cml-fleet/worker-engine/internal/metrics"
	"github.com/cml-fleet/worker-engine/labclient"
	"github.com/cml-fleet/worker-engine/metricsvc"
	"github.com/cml-fleet/worker-engine/relay"
	"github.com/cml-fleet/worker-engine/repository"
	"github.com/cml-fleet/worker-engine/repository/docstore"
	"github.com/cml-fleet/worker-engine/resilience"
	"github.com/cml-fleet/worker-engine/scheduler"
	"github.com/cml-fleet/worker-engine/throttle"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	appLog := logging.New("worker-engine", cfg.LogLevel, cfg.LogFormat)
	stats := metrics.New("worker_engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, closeDocs, err := openDocumentStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open document store: %v", err)
	}
	if closeDocs != nil {
		defer closeDocs()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("parse REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	cloudCB := resilience.New(resilience.LenientCollaboratorCBConfig(appLog))
	cloud, err := cloudprovider.NewAzureClient(
		cfg.WorkerProvisioning.CloudAccessKey,
		cfg.WorkerProvisioning.CloudSecretKey,
		cfg.WorkerProvisioning.CloudTenantID,
		cfg.WorkerProvisioning.CloudSubscriptionID,
		cfg.WorkerProvisioning.CloudResourceGroup,
		cloudCB,
	)
	if err != nil {
		log.Fatalf("build azure client: %v", err)
	}

	labCB := resilience.New(resilience.StrictCollaboratorCBConfig(appLog))
	labFactory := func(httpsEndpoint string) labclient.API {
		return labclient.New(httpsEndpoint, cfg.LabAPIUsername, cfg.LabAPIPassword,
			cfg.LabAPIInsecureSkipVerify, cfg.Monitoring.LabAPICallTimeout, labCB)
	}

	rel := relay.New(redisClient, zerolog.New(os.Stdout).With().Timestamp().Logger(), stats)
	rel.Start(ctx)
	defer rel.Stop()

	workers := repository.NewWorkerRepository(docs, rel)
	labs := repository.NewLabRepository(docs, rel)

	metricsSvc := metricsvc.New(cloud, cfg.Monitoring.FleetJobInterval, nil, appLog, stats)
	thr := throttle.New(cfg.Monitoring.RefreshThrottleInterval)

	registry := scheduler.NewRegistry()
	scheduler.RegisterJobKinds(registry)

	jobStore, err := scheduler.NewStore(cfg.JobStoreBackend, docs, redisClient)
	if err != nil {
		log.Fatalf("build job store: %v", err)
	}

	var cmdSvc *commands.Service
	depsFn := func() scheduler.Deps {
		return scheduler.Deps{Commands: cmdSvc, Workers: workers, Cloud: cloud, Config: cfg}
	}

	sched := scheduler.New(registry, jobStore, depsFn, scheduler.NewLoggerFromEnv(), stats)
	cmdSvc = commands.New(workers, labs, cloud, labFactory, metricsSvc, thr, sched, cfg, appLog, stats)

	if err := sched.Start(ctx, scheduler.DefaultRecurrentSpecs(cfg)); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer sched.Stop(context.Background())

	admin := adminserver.New(adminserver.Config{
		Addr:     fmt.Sprintf(":%d", cfg.AdminPort),
		Commands: cmdSvc,
		Log:      appLog,
		Version:  version,
		StorePing: adminserver.PingFunc(func(ctx context.Context) error {
			return docs.DB().PingContext(ctx)
		}),
		CloudPing: adminserver.PingFunc(func(ctx context.Context) error {
			_, err := cloud.ListInstances(ctx, cloudprovider.InstanceFilter{})
			return err
		}),
	})
	admin.Start()
	appLog.WithFields(map[string]interface{}{"port": cfg.AdminPort}).Info("admin server listening")

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("admin server shutdown error")
	}
}

// openDocumentStore connects to Postgres and applies every pending
// migration. Worker and lab state always lives in the document store
// regardless of which backend JOB_STORE_BACKEND selects for scheduler
// records, so DATABASE_URL is required unconditionally.
func openDocumentStore(ctx context.Context, cfg *config.Config) (*docstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	docs, err := docstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := docs.Migrate(); err != nil {
		docs.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return docs, func() { docs.Close() }, nil
}
