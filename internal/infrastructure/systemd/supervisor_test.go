package systemd_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/slotshift/slotshift/internal/domain"
	"github.com/slotshift/slotshift/internal/infrastructure/systemd"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type fakeRunner struct {
	cmds [][]string
	out  []byte
	err  error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.cmds = append(f.cmds, append([]string{name}, args...))
	return f.out, f.err
}

func TestSupervisor_StartBuildsTransientUnit(t *testing.T) {
	runner := &fakeRunner{}
	sup := &systemd.Supervisor{Runner: runner}
	envFile := writeEnvFile(t, "DATABASE_URL=postgres://localhost/myapp\nSECRET=shh\n")

	err := sup.Start(context.Background(), domain.ProcessSpec{
		App:        "myapp",
		Slot:       domain.SlotB,
		WorkingDir: "/srv/myapp/slots/b",
		Entrypoint: "./server",
		Args:       []string{"--cluster"},
		Port:       3002,
		EnvFile:    envFile,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(runner.cmds) != 1 {
		t.Fatalf("commands = %v, want one systemd-run", runner.cmds)
	}
	cmd := strings.Join(runner.cmds[0], " ")
	for _, want := range []string{
		"systemd-run",
		"--unit myapp-b",
		"WorkingDirectory=/srv/myapp/slots/b",
		"PORT=3002",
		"EnvironmentFile=" + envFile,
		"./server --cluster",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("command %q missing %q", cmd, want)
		}
	}
}

func TestSupervisor_StartRejectsEnvFilePortOverride(t *testing.T) {
	runner := &fakeRunner{}
	sup := &systemd.Supervisor{Runner: runner}

	// EnvironmentFile= wins over the forced PORT, so a file assigning it
	// must abort the start before any unit exists.
	for _, content := range []string{
		"PORT=4000\n",
		"DATABASE_URL=postgres://localhost/myapp\nexport PORT=4000\n",
		"  PORT=4000\n",
	} {
		err := sup.Start(context.Background(), domain.ProcessSpec{
			App: "myapp", Slot: domain.SlotB, Entrypoint: "./server", Port: 3002,
			EnvFile: writeEnvFile(t, content),
		})
		if !errors.Is(err, domain.ErrSupervisor) {
			t.Errorf("env file %q: err = %v, want ErrSupervisor", content, err)
		}
	}
	if len(runner.cmds) != 0 {
		t.Errorf("no unit may be started with a PORT override, got %v", runner.cmds)
	}
}

func TestSupervisor_StartAllowsPortLikeNames(t *testing.T) {
	runner := &fakeRunner{}
	sup := &systemd.Supervisor{Runner: runner}

	err := sup.Start(context.Background(), domain.ProcessSpec{
		App: "myapp", Slot: domain.SlotA, Entrypoint: "./server", Port: 3001,
		EnvFile: writeEnvFile(t, "PORT_POOL=5000-6000\n# PORT=4000\nMETRICS_PORT=9090\n"),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestSupervisor_StartFailureWrapsSupervisorError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), out: []byte("Failed to start transient service unit")}
	sup := &systemd.Supervisor{Runner: runner}

	err := sup.Start(context.Background(), domain.ProcessSpec{App: "myapp", Slot: domain.SlotA, Entrypoint: "./server", Port: 3001})
	if !errors.Is(err, domain.ErrSupervisor) {
		t.Fatalf("err = %v, want ErrSupervisor", err)
	}
}

func TestSupervisor_StopAbsentUnitIsSuccess(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 5"), out: []byte("Failed to stop myapp-a.service: Unit myapp-a.service not loaded.")}
	sup := &systemd.Supervisor{Runner: runner}

	if err := sup.Stop(context.Background(), "myapp", domain.SlotA); err != nil {
		t.Fatalf("stopping an absent unit must succeed, got %v", err)
	}
}

func TestSupervisor_StopRealFailureIsAnError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), out: []byte("Job for myapp-a.service canceled.")}
	sup := &systemd.Supervisor{Runner: runner}

	if err := sup.Stop(context.Background(), "myapp", domain.SlotA); !errors.Is(err, domain.ErrSupervisor) {
		t.Fatalf("err = %v, want ErrSupervisor", err)
	}
}

func TestSupervisor_KillSignalsThenStops(t *testing.T) {
	runner := &fakeRunner{}
	sup := &systemd.Supervisor{Runner: runner}

	if err := sup.Kill(context.Background(), "myapp", domain.SlotB); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if len(runner.cmds) != 2 {
		t.Fatalf("commands = %v, want kill then stop", runner.cmds)
	}
	kill := strings.Join(runner.cmds[0], " ")
	if !strings.Contains(kill, "kill") || !strings.Contains(kill, "SIGKILL") || !strings.Contains(kill, "myapp-b") {
		t.Errorf("first command = %q, want systemctl kill --signal=SIGKILL myapp-b", kill)
	}
	stop := strings.Join(runner.cmds[1], " ")
	if !strings.Contains(stop, "stop myapp-b") {
		t.Errorf("second command = %q, want systemctl stop myapp-b", stop)
	}
}
