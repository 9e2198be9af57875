package main

import (
	"fmt"
	"time"

	"go_domainlink/internal/auth"
	"go_domainlink/internal/cache"
	"go_domainlink/internal/config"
	"go_domainlink/internal/db"
	"go_domainlink/internal/linking"
	"go_domainlink/internal/lock"
	"go_domainlink/internal/metrics"
	"go_domainlink/internal/notify"
	"go_domainlink/internal/provisioning"
	"go_domainlink/internal/provisioning/cloudflare"
	"go_domainlink/internal/resolver"
	"go_domainlink/internal/verification"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const intentLeaseTTL = 30 * time.Second

// app is the wired service shared by serve and sweep
type app struct {
	cfg          *config.Config
	registry     *prometheus.Registry
	orchestrator *linking.Orchestrator
	worker       *verification.Worker
}

// connect opens MySQL and Redis and migrates when configured
func connect(cfg *config.Config) (func(), error) {
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := db.Migrate(db.GetDB()); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := cache.InitRedis(cfg.Redis); err != nil {
		db.Close()
		return nil, err
	}

	return func() {
		if err := cache.Close(); err != nil {
			logrus.Warnf("Failed to close Redis: %v", err)
		}
		if err := db.Close(); err != nil {
			logrus.Warnf("Failed to close MySQL: %v", err)
		}
	}, nil
}

// buildApp wires the orchestrator and the sweep worker. extra messengers
// are added to the log and Redis channels.
func buildApp(cfg *config.Config, extra ...notify.Messenger) (*app, error) {
	logger := logrus.NewEntry(logrus.StandardLogger())
	auth.InitJWT(cfg.JWT.Secret, cfg.JWT.Issuer)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	messengers := notify.MultiMessenger{notify.NewLogMessenger(logger)}
	var lease lock.Locker
	if cache.Client != nil {
		messengers = append(messengers, notify.NewRedisMessenger(cache.Client, cfg.Notify.RedisChannelPrefix, logger))
		lease = lock.NewRedisLease(cache.Client, "domainlink:intent-lock:", intentLeaseTTL, logger)
	}
	messengers = append(messengers, extra...)

	provisioner, err := buildProvisioner(cfg, logger)
	if err != nil {
		return nil, err
	}

	o := linking.New(linking.Deps{
		DB: db.GetDB(),
		Resolver: resolver.NewClient(resolver.Config{
			Servers: cfg.Resolver.Servers,
			Timeout: cfg.Resolver.Timeout(),
			Logger:  logger,
		}),
		Messenger:   messengers,
		Provisioner: provisioner,
		Lease:       lease,
		Metrics:     metrics.New(registry),
		Logger:      logger,
	}, linkingConfig(cfg))

	worker := verification.NewWorker(o.Verifications(), o, verification.WorkerConfig{
		Enabled:     cfg.Verification.SweepEnabled,
		IntervalSec: cfg.Verification.SweepIntervalSec,
		BatchSize:   cfg.Verification.BatchSize,
		MaxAge:      cfg.Verification.MaxAge(),
	}, logger)

	return &app{
		cfg:          cfg,
		registry:     registry,
		orchestrator: o,
		worker:       worker,
	}, nil
}

func buildProvisioner(cfg *config.Config, logger *logrus.Entry) (provisioning.Provisioner, error) {
	if !cfg.Cloudflare.Enabled {
		return provisioning.NewLogProvisioner(logger), nil
	}
	if cfg.Linking.HostingIP == "" {
		return nil, fmt.Errorf("HOSTING_IP is required when cloudflare is enabled")
	}
	client := cloudflare.NewClient(cfg.Cloudflare.Email, cfg.Cloudflare.APIKey)
	return provisioning.NewCloudflareProvisioner(client, cfg.Linking.HostingIP, logger), nil
}

func linkingConfig(cfg *config.Config) linking.Config {
	return linking.Config{
		PlatformNameservers:   cfg.Linking.PlatformNameservers,
		HostingIP:             cfg.Linking.HostingIP,
		VerifyPrefix:          cfg.Linking.VerifyPrefix,
		CheckInterval:         cfg.Linking.CheckInterval(),
		NameserverMaxAttempts: cfg.Linking.NameserverMaxAttempts,
		TXTMaxAttempts:        cfg.Linking.TXTMaxAttempts,
		AutoRetryLimit:        cfg.Linking.AutoRetryLimit,
		AutoRetryDelay:        cfg.Linking.AutoRetryDelay(),
		StaleIntentAfter:      cfg.Linking.StaleIntentAfter(),
		RecoveryBatchSize:     cfg.Verification.BatchSize,
	}
}
