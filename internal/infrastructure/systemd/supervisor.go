// Package systemd implements the process supervisor port with transient
// systemd units: one unit per slot, named <app>-<slot>.
package systemd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log"

	"github.com/slotshift/slotshift/internal/domain"
)

// CommandRunner executes a host command and returns its combined output.
// It exists so tests can run against a fake instead of systemctl.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Supervisor implements [domain.ProcessSupervisor] by driving systemd-run
// and systemctl.
type Supervisor struct {
	Runner CommandRunner
	Logger log.Logger
}

func (s *Supervisor) runner() CommandRunner {
	if s.Runner != nil {
		return s.Runner
	}
	return ExecRunner{}
}

// Start launches the slot process as a transient unit. The unit runs from
// the slot's working-directory alias with PORT forced to the slot's fixed
// port; whatever port the release itself would prefer is irrelevant. The
// environment file must not define PORT: systemd applies EnvironmentFile=
// after Environment=, so a PORT there would override the forced value.
// Start rejects such a file instead of letting the unit bind elsewhere.
func (s *Supervisor) Start(ctx context.Context, spec domain.ProcessSpec) error {
	if spec.EnvFile != "" {
		if err := rejectPortOverride(spec.EnvFile); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSupervisor, err)
		}
	}

	args := []string{
		"--unit", spec.UnitName(),
		"--collect",
		"--property", "WorkingDirectory=" + spec.WorkingDir,
		"--property", "Restart=on-failure",
		"--setenv", "PORT=" + strconv.Itoa(spec.Port),
	}
	if spec.EnvFile != "" {
		args = append(args, "--property", "EnvironmentFile="+spec.EnvFile)
	}
	args = append(args, spec.Entrypoint)
	args = append(args, spec.Args...)

	out, err := s.runner().Run(ctx, "systemd-run", args...)
	if err != nil {
		return fmt.Errorf("%w: start unit %s: %v: %s", domain.ErrSupervisor, spec.UnitName(), err, strings.TrimSpace(string(out)))
	}
	s.log("event", "unit started", "unit", spec.UnitName(), "port", spec.Port)
	return nil
}

// Stop gracefully stops the slot's unit. A unit that is not loaded or not
// active is success: teardown is idempotent.
func (s *Supervisor) Stop(ctx context.Context, app string, slot domain.Slot) error {
	return s.stopUnit(ctx, unitName(app, slot))
}

// Kill forcibly terminates the slot's unit, then clears it. Used on the
// failed-health path; the staging port must be free for the next attempt.
func (s *Supervisor) Kill(ctx context.Context, app string, slot domain.Slot) error {
	unit := unitName(app, slot)
	out, err := s.runner().Run(ctx, "systemctl", "kill", "--signal=SIGKILL", unit)
	if err != nil && !absentUnit(out) {
		return fmt.Errorf("%w: kill unit %s: %v: %s", domain.ErrSupervisor, unit, err, strings.TrimSpace(string(out)))
	}
	return s.stopUnit(ctx, unit)
}

func (s *Supervisor) stopUnit(ctx context.Context, unit string) error {
	out, err := s.runner().Run(ctx, "systemctl", "stop", unit)
	if err != nil {
		if absentUnit(out) {
			return nil
		}
		return fmt.Errorf("%w: stop unit %s: %v: %s", domain.ErrSupervisor, unit, err, strings.TrimSpace(string(out)))
	}
	s.log("event", "unit stopped", "unit", unit)
	return nil
}

func unitName(app string, slot domain.Slot) string {
	return app + "-" + string(slot)
}

// rejectPortOverride fails when the environment file assigns PORT.
func rejectPortOverride(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read environment file %s: %v", path, err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "export ")
		if strings.HasPrefix(line, "PORT=") {
			return fmt.Errorf("environment file %s sets PORT; the slot's fixed port must stay in force", path)
		}
	}
	return nil
}

// absentUnit recognizes systemctl's "nothing to stop" answers.
func absentUnit(out []byte) bool {
	msg := string(out)
	return strings.Contains(msg, "not loaded") || strings.Contains(msg, "could not be found")
}

func (s *Supervisor) log(kv ...any) {
	if s.Logger != nil {
		s.Logger.Log(kv...)
	}
}
