package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/consecutive"
	"github.com/forbearing/docxfer/execution"
	"github.com/forbearing/docxfer/facade"
	"github.com/forbearing/docxfer/logger"
	"github.com/forbearing/docxfer/logger/zap"
	"github.com/forbearing/docxfer/metrics"
	"github.com/forbearing/docxfer/store"
	"github.com/forbearing/docxfer/tracker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// app bundles every wired component a subcommand needs, assembled once by
// bootstrap() following the teacher's init-everything-in-main style
// (forbearing-gst/cmd/gg/migrate.go's initComponents, simplified since
// docxfer has no router/model/module registries to wait on).
type app struct {
	engine      *execution.Engine
	consecutive consecutive.Service
	audit       *execution.AuditWriter
	sweeper     *consecutive.Sweeper
}

func bootstrap() (*app, error) {
	if len(configFile) > 0 {
		config.SetConfigFile(configFile)
	}
	if err := config.Init(); err != nil {
		return nil, errors.Wrap(err, "docxferctl: config init failed")
	}
	if err := zap.Init(); err != nil {
		return nil, errors.Wrap(err, "docxferctl: logger init failed")
	}
	metrics.Init()

	if err := store.Init(); err != nil {
		return nil, errors.Wrap(err, "docxferctl: store init failed")
	}

	repo := store.NewRepository(store.DB)
	execStore := store.NewExecutionStore(store.DB)
	counterStore := store.NewConsecutiveStore(store.DB)

	var lock consecutive.Lock
	if config.App.Redis.Enable {
		rc := redis.NewClient(&redis.Options{
			Addr: config.App.Redis.Addr, Password: config.App.Redis.Password, DB: config.App.Redis.DB,
		})
		lock = consecutive.NewRedisLock(rc, config.App.AppInfo.Name+"-"+uuid.NewString())
	}
	svc := consecutive.NewService(counterStore, lock, config.App.Consecutive.ReservationTTL)

	sweeper, err := consecutive.NewSweeper(svc, "@every "+config.App.Consecutive.SweepInterval.String())
	if err != nil {
		return nil, errors.Wrap(err, "docxferctl: sweeper init failed")
	}

	f := facade.New(config.App.Servers, config.App.Server.ConnectRetries, config.App.Server.ConnectBackoff)
	trk := tracker.New()

	audit := execution.NewAuditWriter(execStore, config.App.Audit.QueueSize, config.App.Audit.BatchSize, config.App.Audit.FlushInterval)

	eng, err := execution.New(repo, f, svc, trk, audit)
	if err != nil {
		return nil, errors.Wrap(err, "docxferctl: engine init failed")
	}

	return &app{engine: eng, consecutive: svc, audit: audit, sweeper: sweeper}, nil
}

func (a *app) startBackground() {
	a.audit.Start(context.Background())
	a.sweeper.Start()
}

func (a *app) stop() {
	a.sweeper.Stop()
	a.audit.Stop()
	a.engine.Close()
	logger.Clean()
}
