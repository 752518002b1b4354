package application_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slotshift/slotshift/internal/application"
	"github.com/slotshift/slotshift/internal/domain"
	"github.com/slotshift/slotshift/internal/infrastructure/diskstore"
	"github.com/slotshift/slotshift/internal/infrastructure/sqlite"
	"github.com/slotshift/slotshift/internal/infrastructure/syncworkflow"
)

// fakeSupervisor tracks running slot processes in memory.
type fakeSupervisor struct {
	running  map[domain.Slot]bool
	startErr error
	stopErr  error
}

func (f *fakeSupervisor) Start(_ context.Context, spec domain.ProcessSpec) error {
	if f.startErr != nil {
		return f.startErr
	}
	if f.running == nil {
		f.running = make(map[domain.Slot]bool)
	}
	f.running[spec.Slot] = true
	return nil
}

func (f *fakeSupervisor) Stop(_ context.Context, _ string, slot domain.Slot) error {
	if f.stopErr != nil && f.running[slot] {
		return f.stopErr
	}
	delete(f.running, slot)
	return nil
}

func (f *fakeSupervisor) Kill(_ context.Context, _ string, slot domain.Slot) error {
	delete(f.running, slot)
	return nil
}

type fakeGate struct {
	report domain.ProbeReport
}

func (g *fakeGate) Probe(_ context.Context, _ domain.ProbeSpec) (domain.ProbeReport, error) {
	return g.report, nil
}

type fakeProxy struct {
	port int
	err  error
}

func (p *fakeProxy) Route(_ context.Context, port int, _ string) error {
	if p.err != nil {
		return p.err
	}
	p.port = port
	return nil
}

type testHarness struct {
	root    string
	deploy  *application.DeployService
	status  *application.StatusService
	release *application.ReleaseService
	store   *diskstore.Store
	pointer *diskstore.Pointer
	sup     *fakeSupervisor
	gate    *fakeGate
	proxy   *fakeProxy
	history *sqlite.AttemptLogRepo
}

func setup(t *testing.T) *testHarness {
	t.Helper()
	root := t.TempDir()
	db := sqlite.OpenTestDB(t)

	h := &testHarness{
		root:    root,
		store:   &diskstore.Store{Root: root},
		pointer: &diskstore.Pointer{Root: root},
		sup:     &fakeSupervisor{},
		gate:    &fakeGate{report: domain.ProbeReport{Healthy: true, Attempts: 1, LastStatus: 200}},
		proxy:   &fakeProxy{},
		history: &sqlite.AttemptLogRepo{DB: db},
	}

	wf := &domain.ReleaseWorkflow{
		App: "myapp",
		Layout: domain.Layout{
			A: domain.SlotBinding{Port: 3001, Dir: filepath.Join(root, "slots", "a")},
			B: domain.SlotBinding{Port: 3002, Dir: filepath.Join(root, "slots", "b")},
		},
		Probe:        domain.ProbeSpec{Path: "/healthz", ExpectStatus: 200, Attempts: 5, Interval: time.Millisecond},
		GraceDelay:   time.Millisecond,
		KeepReleases: 3,
		HistoryKeep:  50,
		Store:        h.store,
		Pointer:      h.pointer,
		Supervisor:   h.sup,
		Gate:         h.gate,
		Proxy:        h.proxy,
		Launch:       domain.CommandLaunchFactory{BundleCommand: []string{"./server"}, SourceCommand: []string{"npm", "run", "start"}},
		History:      h.history,
		Notifier:     domain.NotifierFunc(func(context.Context, domain.AttemptRecord) error { return nil }),
	}

	engine := &syncworkflow.Engine{}
	runner, err := engine.ReleaseRunner(wf)
	if err != nil {
		t.Fatalf("ReleaseRunner: %v", err)
	}

	h.deploy = &application.DeployService{Runner: runner}
	h.status = &application.StatusService{
		Layout:  wf.Layout,
		Pointer: h.pointer,
		Store:   h.store,
		History: h.history,
	}
	h.release = &application.ReleaseService{Store: h.store}
	return h
}

func writeArtifact(t *testing.T, timestamp string) string {
	t.Helper()
	meta, _ := json.Marshal(domain.ArtifactMeta{Timestamp: timestamp, BuildMode: "bundle"})

	path := filepath.Join(t.TempDir(), "app-"+timestamp+".tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, content := range map[string]string{
		"release.json": string(meta),
		"server.js":    "// " + timestamp,
	} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func readPointer(t *testing.T, root string) string {
	t.Helper()
	target, err := os.Readlink(filepath.Join(root, "current"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ""
		}
		t.Fatalf("readlink: %v", err)
	}
	return target
}

func TestDeploy_FirstDeploymentEndToEnd(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	res, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830120000")})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if res.Outcome != domain.OutcomeSuccess || res.Target != domain.SlotB {
		t.Errorf("result = %+v, want success on slot b", res)
	}

	if got := filepath.Base(readPointer(t, h.root)); got != "b" {
		t.Errorf("live pointer = %q, want .../slots/b", got)
	}
	if h.proxy.port != 3002 {
		t.Errorf("proxy port = %d, want 3002", h.proxy.port)
	}
	if h.sup.running[domain.SlotA] {
		t.Error("slot a has no process; nothing should be running there")
	}
	if !h.sup.running[domain.SlotB] {
		t.Error("slot b process must be running")
	}

	recent, err := h.history.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Outcome != domain.OutcomeSuccess {
		t.Errorf("history = %+v, want one success row", recent)
	}
}

func TestDeploy_SecondDeploymentAlternatesAndDrainsOldSlot(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	if _, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830120000")}); err != nil {
		t.Fatalf("first Deploy: %v", err)
	}
	res, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830130000")})
	if err != nil {
		t.Fatalf("second Deploy: %v", err)
	}

	if res.Current != domain.SlotB || res.Target != domain.SlotA {
		t.Errorf("second attempt = (%s -> %s), want (b -> a)", res.Current, res.Target)
	}
	if got := filepath.Base(readPointer(t, h.root)); got != "a" {
		t.Errorf("live pointer = %q, want .../slots/a", got)
	}
	if h.sup.running[domain.SlotB] {
		t.Error("old slot b process must be stopped after the grace delay")
	}
	if !h.sup.running[domain.SlotA] {
		t.Error("new slot a process must be running")
	}
}

func TestDeploy_HealthFailureLeavesPointerByteForByte(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	if _, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830120000")}); err != nil {
		t.Fatalf("first Deploy: %v", err)
	}
	before := readPointer(t, h.root)

	h.gate.report = domain.ProbeReport{Healthy: false, Attempts: 10, LastStatus: 503}
	_, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830130000")})
	if !errors.Is(err, domain.ErrHealthGate) {
		t.Fatalf("err = %v, want ErrHealthGate", err)
	}

	if after := readPointer(t, h.root); after != before {
		t.Errorf("live pointer changed on failure: %q -> %q", before, after)
	}
	if h.sup.running[domain.SlotA] {
		t.Error("unhealthy target process must be force-stopped")
	}
	if !h.sup.running[domain.SlotB] {
		t.Error("previously live slot must keep serving")
	}

	recent, _ := h.history.Recent(ctx, 1)
	if len(recent) != 1 || recent[0].Outcome != domain.OutcomeHealthFailed {
		t.Errorf("history = %+v, want a health-failed row", recent)
	}
}

func TestDeploy_CleanupFailureSurfacesAsCleanupError(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	if _, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830120000")}); err != nil {
		t.Fatalf("first Deploy: %v", err)
	}

	h.sup.stopErr = errors.New("unit stuck in deactivating")
	res, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830130000")})

	var cleanup *domain.CleanupError
	if !errors.As(err, &cleanup) {
		t.Fatalf("err = %v, want *domain.CleanupError", err)
	}
	if !res.Promoted {
		t.Error("promotion must stand despite cleanup failure")
	}
	if got := filepath.Base(readPointer(t, h.root)); got != "a" {
		t.Errorf("live pointer = %q, want the new slot a", got)
	}
}

func TestDeploy_MissingArchivePathIsRejected(t *testing.T) {
	h := setup(t)
	if _, err := h.deploy.Deploy(context.Background(), application.DeployInput{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestRollback_RepromotesIdleSlot(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	if _, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830120000")}); err != nil {
		t.Fatalf("first Deploy: %v", err)
	}
	if _, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830130000")}); err != nil {
		t.Fatalf("second Deploy: %v", err)
	}

	// Live is a (release ...13), idle b still holds ...12. Rolling back
	// re-promotes b's release.
	res, err := h.deploy.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if res.Release.ID != "20260830120000" || res.Target != domain.SlotB {
		t.Errorf("rollback = release %s on slot %s, want 20260830120000 on b", res.Release.ID, res.Target)
	}
	if got := filepath.Base(readPointer(t, h.root)); got != "b" {
		t.Errorf("live pointer = %q, want .../slots/b", got)
	}
}

func TestStatus_ReflectsLiveAndIdleSlots(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	st, err := h.status.Status(ctx)
	if err != nil {
		t.Fatalf("Status before any deploy: %v", err)
	}
	if st.LiveSet {
		t.Error("no slot is live before the first deploy")
	}

	if _, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, "20260830120000")}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	st, err = h.status.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.LiveSet || st.LiveSlot != domain.SlotB {
		t.Errorf("live = %v %s, want slot b", st.LiveSet, st.LiveSlot)
	}
	for _, ss := range st.Slots {
		switch ss.Slot {
		case domain.SlotB:
			if !ss.Live || !ss.Bound || ss.Release != "20260830120000" {
				t.Errorf("slot b status = %+v", ss)
			}
		case domain.SlotA:
			if ss.Live || ss.Bound {
				t.Errorf("slot a status = %+v, want idle and unbound", ss)
			}
		}
	}
	if len(st.Recent) != 1 {
		t.Errorf("recent history = %d rows, want 1", len(st.Recent))
	}
}

func TestReleaseService_PruneProtectsBothSlots(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	// Five releases; the first two end up bound to the slots as the
	// deploys alternate.
	var ids []domain.ReleaseID
	for i := 1; i <= 5; i++ {
		ts := fmt.Sprintf("2026083012%02d00", i)
		if _, err := h.deploy.Deploy(ctx, application.DeployInput{ArchivePath: writeArtifact(t, ts)}); err != nil {
			t.Fatalf("Deploy %d: %v", i, err)
		}
		ids = append(ids, domain.ReleaseID(ts))
	}

	report, err := h.release.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}

	// Slots hold the 4th and 5th releases; keep=1 covers the 5th, so
	// releases 1-3 go and the 4th survives as protected.
	left, _ := h.release.List(ctx)
	if len(left) != 2 {
		t.Fatalf("after prune: %d releases, want 2 (both slot-backed), report %+v", len(left), report)
	}
	if left[0].ID != ids[4] || left[1].ID != ids[3] {
		t.Errorf("survivors = [%s %s], want [%s %s]", left[0].ID, left[1].ID, ids[4], ids[3])
	}
	if len(report.Kept) != 1 || report.Kept[0] != ids[3] {
		t.Errorf("Kept = %v, want the idle slot's release %s", report.Kept, ids[3])
	}
}
