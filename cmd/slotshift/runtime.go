package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	wfsqlite "github.com/cschleiden/go-workflows/backend/sqlite"
	wfclient "github.com/cschleiden/go-workflows/client"
	"github.com/cschleiden/go-workflows/worker"
	"github.com/dbos-inc/dbos-transact-golang/dbos"

	"github.com/slotshift/slotshift/internal/application"
	"github.com/slotshift/slotshift/internal/config"
	"github.com/slotshift/slotshift/internal/domain"
	"github.com/slotshift/slotshift/internal/infrastructure/dbosworkflows"
	"github.com/slotshift/slotshift/internal/infrastructure/diskstore"
	"github.com/slotshift/slotshift/internal/infrastructure/goworkflows"
	"github.com/slotshift/slotshift/internal/infrastructure/httpprobe"
	"github.com/slotshift/slotshift/internal/infrastructure/nginx"
	"github.com/slotshift/slotshift/internal/infrastructure/sqlite"
	"github.com/slotshift/slotshift/internal/infrastructure/syncworkflow"
	"github.com/slotshift/slotshift/internal/infrastructure/systemd"
	"github.com/slotshift/slotshift/internal/infrastructure/telegram"
)

// runtime is the assembled dependency graph behind every subcommand.
type runtime struct {
	cfg      config.Config
	db       *sql.DB
	store    *diskstore.Store
	pointer  *diskstore.Pointer
	history  *sqlite.AttemptLogRepo
	gate     *httpprobe.Gate
	workflow *domain.ReleaseWorkflow

	statusSvc  *application.StatusService
	releaseSvc *application.ReleaseService
}

func (opts *rootOpts) runtime() (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open attempt log: %w", err)
	}

	rt := &runtime{
		cfg:     cfg,
		db:      db,
		store:   &diskstore.Store{Root: cfg.Root, Logger: opts.Logger},
		pointer: &diskstore.Pointer{Root: cfg.Root},
		history: &sqlite.AttemptLogRepo{DB: db},
		gate:    &httpprobe.Gate{Logger: opts.Logger},
	}

	notifier, err := rt.notifier(opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	rt.workflow = &domain.ReleaseWorkflow{
		App:          cfg.App,
		Layout:       cfg.Layout(),
		AssetRoot:    cfg.AssetRoot(),
		EnvFile:      cfg.EnvFile,
		Probe:        cfg.ProbeSpec(),
		GraceDelay:   cfg.GraceDelay(),
		KeepReleases: cfg.KeepReleases,
		HistoryKeep:  cfg.HistoryKeep,
		Store:        rt.store,
		Pointer:      rt.pointer,
		Supervisor:   &systemd.Supervisor{Logger: opts.Logger},
		Gate:         rt.gate,
		Proxy: &nginx.Proxy{
			App:           cfg.App,
			UpstreamFile:  cfg.Nginx.UpstreamFile,
			CheckCommand:  cfg.Nginx.CheckCommand,
			ReloadCommand: cfg.Nginx.ReloadCommand,
			Logger:        opts.Logger,
		},
		Launch: domain.CommandLaunchFactory{
			BundleCommand: cfg.Launch.Bundle,
			SourceCommand: cfg.Launch.Source,
		},
		History:  rt.history,
		Notifier: notifier,
		Logger:   opts.Logger,
	}

	rt.statusSvc = &application.StatusService{
		Layout:  cfg.Layout(),
		Pointer: rt.pointer,
		Store:   rt.store,
		History: rt.history,
	}
	rt.releaseSvc = &application.ReleaseService{Store: rt.store}
	return rt, nil
}

func (rt *runtime) notifier(opts *rootOpts) (domain.Notifier, error) {
	if rt.cfg.Telegram.Token != "" {
		n, err := telegram.New(rt.cfg.Telegram.Token, rt.cfg.Telegram.ChatID, rt.cfg.App)
		if err != nil {
			return nil, fmt.Errorf("configure telegram notifier: %w", err)
		}
		return n, nil
	}
	logger := opts.Logger
	return domain.NotifierFunc(func(_ context.Context, rec domain.AttemptRecord) error {
		return logger.Log("msg", "deployment finished",
			"attempt", rec.ID, "outcome", rec.Outcome,
			"release", rec.ReleaseID, "target", rec.Target)
	}), nil
}

func (rt *runtime) Close() error {
	return rt.db.Close()
}

// deployService builds the configured workflow engine and a deploy
// service on top of it. The returned stop function releases engine
// resources and must run after the attempt completes.
func (rt *runtime) deployService(ctx context.Context) (*application.DeployService, func(), error) {
	runner, stop, err := rt.releaseRunner(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &application.DeployService{Runner: runner}, stop, nil
}

func (rt *runtime) releaseRunner(ctx context.Context) (domain.ReleaseRunner, func(), error) {
	switch rt.cfg.Engine {
	case "goworkflows":
		return rt.goWorkflowsRunner(ctx)
	case "dbos":
		return rt.dbosRunner(ctx)
	default:
		engine := &syncworkflow.Engine{}
		runner, err := engine.ReleaseRunner(rt.workflow)
		if err != nil {
			return nil, nil, err
		}
		return runner, func() {}, nil
	}
}

func (rt *runtime) goWorkflowsRunner(ctx context.Context) (domain.ReleaseRunner, func(), error) {
	backendPath := filepath.Join(filepath.Dir(rt.cfg.HistoryDB), "workflows.db")
	b := wfsqlite.NewSqliteBackend(backendPath)

	w := worker.New(b, nil)
	engine := &goworkflows.Engine{
		Worker:  w,
		Client:  wfclient.New(b),
		Timeout: time.Duration(rt.cfg.Health.TimeoutSeconds+60) * time.Second,
	}
	runner, err := engine.ReleaseRunner(rt.workflow)
	if err != nil {
		return nil, nil, err
	}

	workerCtx, cancel := context.WithCancel(ctx)
	if err := w.Start(workerCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("start workflow worker: %w", err)
	}
	stop := func() {
		cancel()
		_ = w.WaitForCompletion()
	}
	return runner, stop, nil
}

func (rt *runtime) dbosRunner(ctx context.Context) (domain.ReleaseRunner, func(), error) {
	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		AppName:     "slotshift",
		DatabaseURL: rt.cfg.DatabaseURL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create DBOS context: %w", err)
	}

	engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
	runner, err := engine.ReleaseRunner(rt.workflow)
	if err != nil {
		return nil, nil, err
	}

	if err := dbos.Launch(dbosCtx); err != nil {
		return nil, nil, fmt.Errorf("launch DBOS: %w", err)
	}
	stop := func() { dbos.Shutdown(dbosCtx, 5*time.Second) }
	return runner, stop, nil
}
