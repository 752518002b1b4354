package dbosworkflows_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/slotshift/slotshift/internal/application"
	"github.com/slotshift/slotshift/internal/domain"
	"github.com/slotshift/slotshift/internal/infrastructure/dbosworkflows"
	"github.com/slotshift/slotshift/internal/infrastructure/diskstore"
	"github.com/slotshift/slotshift/internal/infrastructure/sqlite"
)

func startPostgres(t *testing.T) string {
	t.Helper()

	// Ryuk (the reaper) requires a Docker bridge network that does not
	// exist on Podman. We handle cleanup via t.Cleanup instead.
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dbos_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get postgres connection string: %v", err)
	}
	return connStr
}

type memSupervisor struct {
	running map[domain.Slot]bool
}

func (m *memSupervisor) Start(_ context.Context, spec domain.ProcessSpec) error {
	if m.running == nil {
		m.running = make(map[domain.Slot]bool)
	}
	m.running[spec.Slot] = true
	return nil
}

func (m *memSupervisor) Stop(_ context.Context, _ string, slot domain.Slot) error {
	delete(m.running, slot)
	return nil
}

func (m *memSupervisor) Kill(_ context.Context, _ string, slot domain.Slot) error {
	delete(m.running, slot)
	return nil
}

type healthyGate struct{}

func (healthyGate) Probe(_ context.Context, _ domain.ProbeSpec) (domain.ProbeReport, error) {
	return domain.ProbeReport{Healthy: true, Attempts: 1, LastStatus: 200}, nil
}

type memProxy struct{ port int }

func (p *memProxy) Route(_ context.Context, port int, _ string) error {
	p.port = port
	return nil
}

func buildArtifact(t *testing.T, timestamp string) string {
	t.Helper()
	meta, _ := json.Marshal(domain.ArtifactMeta{Timestamp: timestamp, BuildMode: "bundle"})

	path := filepath.Join(t.TempDir(), "bundle.tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: "release.json", Mode: 0o644, Size: int64(len(meta))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(meta); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRelease_DBOS(t *testing.T) {
	connStr := startPostgres(t)

	ctx := context.Background()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		AppName:     "slotshift-dbos-test",
		DatabaseURL: connStr,
	})
	if err != nil {
		t.Fatalf("NewDBOSContext: %v", err)
	}

	root := t.TempDir()
	db := sqlite.OpenTestDB(t)
	store := &diskstore.Store{Root: root}
	pointer := &diskstore.Pointer{Root: root}
	sup := &memSupervisor{}
	proxy := &memProxy{}

	wf := &domain.ReleaseWorkflow{
		App: "myapp",
		Layout: domain.Layout{
			A: domain.SlotBinding{Port: 3001, Dir: filepath.Join(root, "slots", "a")},
			B: domain.SlotBinding{Port: 3002, Dir: filepath.Join(root, "slots", "b")},
		},
		Probe:        domain.ProbeSpec{Path: "/healthz", ExpectStatus: 200, Attempts: 3, Interval: time.Millisecond},
		KeepReleases: 5,
		HistoryKeep:  50,
		Store:        store,
		Pointer:      pointer,
		Supervisor:   sup,
		Gate:         healthyGate{},
		Proxy:        proxy,
		Launch:       domain.CommandLaunchFactory{BundleCommand: []string{"./server"}, SourceCommand: []string{"npm", "run", "start"}},
		History:      &sqlite.AttemptLogRepo{DB: db},
		Notifier:     domain.NotifierFunc(func(context.Context, domain.AttemptRecord) error { return nil }),
	}

	engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
	runner, err := engine.ReleaseRunner(wf)
	if err != nil {
		t.Fatalf("ReleaseRunner: %v", err)
	}

	if err := dbos.Launch(dbosCtx); err != nil {
		t.Fatalf("dbos.Launch: %v", err)
	}
	t.Cleanup(func() { dbos.Shutdown(dbosCtx, 5*time.Second) })

	deploy := &application.DeployService{Runner: runner}

	res, err := deploy.Deploy(ctx, application.DeployInput{ArchivePath: buildArtifact(t, "20260830120000")})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess || !res.Promoted {
		t.Errorf("result = %+v, want promoted success", res)
	}
	if res.Target != domain.SlotB {
		t.Errorf("Target = %s, want b", res.Target)
	}

	live, ok, err := pointer.Current(ctx)
	if err != nil || !ok || live != domain.SlotB {
		t.Errorf("live pointer = (%s, %v, %v), want slot b", live, ok, err)
	}
	if proxy.port != 3002 {
		t.Errorf("proxy port = %d, want 3002", proxy.port)
	}
	if !sup.running[domain.SlotB] {
		t.Error("slot b process must be running")
	}

	recent, err := wf.History.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Outcome != domain.OutcomeSuccess {
		t.Errorf("history = %+v, want one success row", recent)
	}
}
