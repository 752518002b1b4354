package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
)

// ReleaseInput is the caller-provided input for one deployment attempt.
type ReleaseInput struct {
	AttemptID string
	// ArchivePath is the packaged artifact to deploy. Ignored when
	// Rollback is set.
	ArchivePath string
	// Rollback re-promotes the release already staged in the idle slot
	// instead of staging a new artifact. The health gate and cutover
	// apply unchanged.
	Rollback  bool
	StartedAt time.Time
}

// StepResult reports one best-effort step of the pipeline tail. Failures
// here never change the deployment outcome, but they are always reported,
// never silently dropped.
type StepResult struct {
	Name string
	// Err is empty when the step succeeded.
	Err string
}

// ReleaseResult is the outcome of one deployment attempt.
type ReleaseResult struct {
	AttemptID string
	Outcome   Outcome
	// Promoted is true once the traffic switch completed; from then on
	// any failure is post-promotion cleanup, not a deployment failure.
	Promoted bool
	Current  Slot
	Target   Slot
	Release  Release
	Probe    ProbeReport
	Steps    []StepResult
}

// FailedSteps returns the best-effort steps that reported an error.
func (r ReleaseResult) FailedSteps() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != "" {
			failed = append(failed, s)
		}
	}
	return failed
}

// CleanupError reports a promotion that succeeded but whose post-promotion
// tail (old-slot teardown, retention, history, notification) partially
// failed. Traffic is on the new slot; the failure must be surfaced, not
// rolled back.
type CleanupError struct {
	Steps []StepResult
}

func (e *CleanupError) Error() string {
	names := make([]string, len(e.Steps))
	for i, s := range e.Steps {
		names[i] = s.Name
	}
	return fmt.Sprintf("promoted, but cleanup failed: %s", strings.Join(names, ", "))
}

// ReleaseWorkflow sequences one blue-green deployment attempt:
//
//	resolve-slots -> stage-release -> bind-target -> start-target ->
//	probe-health -> {cutover | halt-target} -> stop-previous ->
//	record-attempt -> prune-releases -> trim-history -> notify
//
// Failures before the health probe abort without touching the live
// pointer, the proxy, or the previously live slot. An unhealthy probe
// force-stops the target and leaves the current slot serving. Everything
// after a successful cutover is best-effort: reported, never fatal.
type ReleaseWorkflow struct {
	App       string
	Layout    Layout
	AssetRoot string
	EnvFile   string
	Probe     ProbeSpec // Port is filled per attempt
	// GraceDelay is how long in-flight requests to the old slot get to
	// drain before its process is stopped.
	GraceDelay   time.Duration
	KeepReleases int
	HistoryKeep  int

	Store      ReleaseStore
	Pointer    LivePointer
	Supervisor ProcessSupervisor
	Gate       HealthGate
	Proxy      Proxy
	Launch     LaunchPlanFactory
	History    AttemptLog
	Notifier   Notifier
	Logger     log.Logger
}

// Name returns the stable workflow name used by durable engines.
func (w *ReleaseWorkflow) Name() string { return "release" }

// ResolveInput is the (empty) input of the resolve-slots activity.
type ResolveInput struct{}

// StageInput is the input of the stage-release activity.
type StageInput struct {
	ArchivePath string
}

// ResolveStagedInput is the input of the resolve-staged activity.
type ResolveStagedInput struct {
	Slot Slot
}

// BindInput is the input of the bind-target activity.
type BindInput struct {
	Slot    Slot
	Release Release
}

// StartInput is the input of the start-target activity.
type StartInput struct {
	Slot    Slot
	Release Release
	Port    int
}

// ProbeInput is the input of the probe-health activity.
type ProbeInput struct {
	Port int
}

// CutoverInput is the input of the cutover activity.
type CutoverInput struct {
	Slot Slot
	Port int
}

// SlotInput names a slot for the halt-target and stop-previous activities.
type SlotInput struct {
	Slot Slot
}

// PruneInput is the input of the prune-releases activity.
type PruneInput struct {
	Keep int
}

// TrimInput is the input of the trim-history activity.
type TrimInput struct {
	Keep int
}

// ResolveSlots reads the live pointer and plans the attempt's slots.
func (w *ReleaseWorkflow) ResolveSlots() Activity[ResolveInput, SlotPlan] {
	return NewActivity("resolve-slots", func(ctx context.Context, _ ResolveInput) (SlotPlan, error) {
		current, ok, err := w.Pointer.Current(ctx)
		if err != nil {
			return SlotPlan{}, fmt.Errorf("read live pointer: %w", err)
		}
		return PlanSlots(w.Layout, current, ok), nil
	})
}

// StageRelease extracts the artifact into the release store.
func (w *ReleaseWorkflow) StageRelease() Activity[StageInput, Release] {
	return NewActivity("stage-release", func(ctx context.Context, in StageInput) (Release, error) {
		rel, err := w.Store.Stage(ctx, in.ArchivePath)
		if err != nil {
			return Release{}, err
		}
		w.log("event", "staged", "release", rel.ID, "mode", rel.Mode)
		return rel, nil
	})
}

// ResolveStaged looks up the release already bound to a slot, for rollback.
func (w *ReleaseWorkflow) ResolveStaged() Activity[ResolveStagedInput, Release] {
	return NewActivity("resolve-staged", func(ctx context.Context, in ResolveStagedInput) (Release, error) {
		rel, ok, err := w.Store.BoundRelease(ctx, in.Slot)
		if err != nil {
			return Release{}, fmt.Errorf("read slot %s binding: %w", in.Slot, err)
		}
		if !ok {
			return Release{}, fmt.Errorf("%w: slot %s has no staged release to roll back to", ErrNotFound, in.Slot)
		}
		return rel, nil
	})
}

// BindTarget points the target slot's working-directory alias at the release.
func (w *ReleaseWorkflow) BindTarget() Activity[BindInput, struct{}] {
	return NewActivity("bind-target", func(ctx context.Context, in BindInput) (struct{}, error) {
		return struct{}{}, w.Store.Bind(ctx, in.Slot, in.Release)
	})
}

// StartTarget stops any stale process occupying the target slot, then
// starts the slot process on its fixed port. The stale stop makes an
// attempt interrupted mid-probe recoverable: the abandoned process is
// cleared before the port is needed again.
func (w *ReleaseWorkflow) StartTarget() Activity[StartInput, struct{}] {
	return NewActivity("start-target", func(ctx context.Context, in StartInput) (struct{}, error) {
		if err := w.Supervisor.Stop(ctx, w.App, in.Slot); err != nil {
			return struct{}{}, fmt.Errorf("stop stale process in slot %s: %w", in.Slot, err)
		}
		plan, err := w.Launch.Plan(in.Release.Mode)
		if err != nil {
			return struct{}{}, err
		}
		spec := ProcessSpec{
			App:        w.App,
			Slot:       in.Slot,
			WorkingDir: w.Layout.Binding(in.Slot).Dir,
			Entrypoint: plan.Entrypoint,
			Args:       plan.Args,
			Port:       in.Port,
			EnvFile:    w.EnvFile,
		}
		if err := w.Supervisor.Start(ctx, spec); err != nil {
			return struct{}{}, err
		}
		w.log("event", "started", "slot", in.Slot, "port", in.Port)
		return struct{}{}, nil
	})
}

// ProbeHealth runs the health gate against the target port. An unhealthy
// report is a normal return, not an error; only cancellation errors out.
func (w *ReleaseWorkflow) ProbeHealth() Activity[ProbeInput, ProbeReport] {
	return NewActivity("probe-health", func(ctx context.Context, in ProbeInput) (ProbeReport, error) {
		spec := w.Probe
		spec.Port = in.Port
		return w.Gate.Probe(ctx, spec)
	})
}

// CutoverTraffic rewires the proxy and then the live pointer.
func (w *ReleaseWorkflow) CutoverTraffic() Activity[CutoverInput, struct{}] {
	return NewActivity("cutover", func(ctx context.Context, in CutoverInput) (struct{}, error) {
		if err := Cutover(ctx, w.Proxy, w.Pointer, in.Slot, in.Port, w.AssetRoot); err != nil {
			return struct{}{}, err
		}
		w.log("event", "promoted", "slot", in.Slot, "port", in.Port)
		return struct{}{}, nil
	})
}

// HaltTarget forcibly terminates the unhealthy target process.
func (w *ReleaseWorkflow) HaltTarget() Activity[SlotInput, struct{}] {
	return NewActivity("halt-target", func(ctx context.Context, in SlotInput) (struct{}, error) {
		return struct{}{}, w.Supervisor.Kill(ctx, w.App, in.Slot)
	})
}

// StopPrevious waits out the grace delay, then gracefully stops the
// previously live slot's process.
func (w *ReleaseWorkflow) StopPrevious() Activity[SlotInput, struct{}] {
	return NewActivity("stop-previous", func(ctx context.Context, in SlotInput) (struct{}, error) {
		select {
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		case <-time.After(w.GraceDelay):
		}
		return struct{}{}, w.Supervisor.Stop(ctx, w.App, in.Slot)
	})
}

// RecordAttempt appends the finished attempt to the history log.
func (w *ReleaseWorkflow) RecordAttempt() Activity[AttemptRecord, struct{}] {
	return NewActivity("record-attempt", func(ctx context.Context, rec AttemptRecord) (struct{}, error) {
		if rec.FinishedAt.IsZero() {
			rec.FinishedAt = time.Now().UTC()
		}
		return struct{}{}, w.History.Append(ctx, rec)
	})
}

// PruneReleases applies retention, protecting whatever either slot is
// currently bound to.
func (w *ReleaseWorkflow) PruneReleases() Activity[PruneInput, PruneReport] {
	return NewActivity("prune-releases", func(ctx context.Context, in PruneInput) (PruneReport, error) {
		protected := make(map[ReleaseID]bool, 2)
		for _, s := range []Slot{SlotA, SlotB} {
			rel, ok, err := w.Store.BoundRelease(ctx, s)
			if err != nil {
				return PruneReport{}, fmt.Errorf("read slot %s binding: %w", s, err)
			}
			if ok {
				protected[rel.ID] = true
			}
		}
		return w.Store.Prune(ctx, in.Keep, protected)
	})
}

// TrimHistory bounds the attempt log.
func (w *ReleaseWorkflow) TrimHistory() Activity[TrimInput, int] {
	return NewActivity("trim-history", func(ctx context.Context, in TrimInput) (int, error) {
		return w.History.Trim(ctx, in.Keep)
	})
}

// SendNotice announces the finished attempt.
func (w *ReleaseWorkflow) SendNotice() Activity[AttemptRecord, struct{}] {
	return NewActivity("notify", func(ctx context.Context, rec AttemptRecord) (struct{}, error) {
		return struct{}{}, w.Notifier.Notify(ctx, rec)
	})
}

// Run executes one deployment attempt on the given runner.
func (w *ReleaseWorkflow) Run(runner DurableRunner, in ReleaseInput) (ReleaseResult, error) {
	res := ReleaseResult{AttemptID: in.AttemptID, Outcome: OutcomeAborted}

	plan, err := RunActivity(runner, w.ResolveSlots(), ResolveInput{})
	if err != nil {
		return res, fmt.Errorf("resolve slots: %w", err)
	}
	res.Current, res.Target = plan.Current, plan.Target

	var rel Release
	if in.Rollback {
		rel, err = RunActivity(runner, w.ResolveStaged(), ResolveStagedInput{Slot: plan.Target})
	} else {
		rel, err = RunActivity(runner, w.StageRelease(), StageInput{ArchivePath: in.ArchivePath})
	}
	if err != nil {
		w.settle(runner, &res, in, err)
		return res, fmt.Errorf("stage release: %w", err)
	}
	res.Release = rel

	if _, err := RunActivity(runner, w.BindTarget(), BindInput{Slot: plan.Target, Release: rel}); err != nil {
		w.settle(runner, &res, in, err)
		return res, fmt.Errorf("bind slot %s: %w", plan.Target, err)
	}

	if _, err := RunActivity(runner, w.StartTarget(), StartInput{Slot: plan.Target, Release: rel, Port: plan.TargetPort}); err != nil {
		w.settle(runner, &res, in, err)
		return res, fmt.Errorf("start slot %s: %w", plan.Target, err)
	}

	probe, err := RunActivity(runner, w.ProbeHealth(), ProbeInput{Port: plan.TargetPort})
	if err != nil {
		// Cancellation mid-probe: the target process is deliberately
		// left running; the next attempt's start-target clears it.
		return res, fmt.Errorf("probe health: %w", err)
	}
	res.Probe = probe

	if !probe.Healthy {
		res.Outcome = OutcomeHealthFailed
		gateErr := fmt.Errorf("%w: slot %s not healthy after %d attempts (last status %d)",
			ErrHealthGate, plan.Target, probe.Attempts, probe.LastStatus)
		bestEffort(w, runner, &res, w.HaltTarget(), SlotInput{Slot: plan.Target})
		w.settle(runner, &res, in, gateErr)
		return res, gateErr
	}

	if _, err := RunActivity(runner, w.CutoverTraffic(), CutoverInput{Slot: plan.Target, Port: plan.TargetPort}); err != nil {
		w.settle(runner, &res, in, err)
		return res, fmt.Errorf("cutover to slot %s: %w", plan.Target, err)
	}
	res.Promoted = true
	res.Outcome = OutcomeSuccess

	bestEffort(w, runner, &res, w.StopPrevious(), SlotInput{Slot: plan.Current})
	w.settle(runner, &res, in, nil)
	return res, nil
}

// settle runs the best-effort tail shared by every exit path: record the
// attempt, apply retention, trim the log, notify. Retention runs after
// failed attempts too; only the releases backing a slot are protected.
func (w *ReleaseWorkflow) settle(runner DurableRunner, res *ReleaseResult, in ReleaseInput, attemptErr error) {
	rec := AttemptRecord{
		ID:        res.AttemptID,
		Source:    res.Current,
		Target:    res.Target,
		ReleaseID: res.Release.ID,
		Outcome:   res.Outcome,
		StartedAt: in.StartedAt,
	}
	if attemptErr != nil {
		rec.Error = attemptErr.Error()
	}
	bestEffort(w, runner, res, w.RecordAttempt(), rec)
	bestEffort(w, runner, res, w.PruneReleases(), PruneInput{Keep: w.KeepReleases})
	bestEffort(w, runner, res, w.TrimHistory(), TrimInput{Keep: w.HistoryKeep})
	bestEffort(w, runner, res, w.SendNotice(), rec)
}

// bestEffort runs an activity whose failure must be reported but never
// change the attempt outcome.
func bestEffort[I, O any](w *ReleaseWorkflow, runner DurableRunner, res *ReleaseResult, activity Activity[I, O], in I) {
	step := StepResult{Name: activity.Name()}
	if _, err := RunActivity(runner, activity, in); err != nil {
		step.Err = err.Error()
		w.log("event", "best-effort step failed", "step", step.Name, "err", err)
	}
	res.Steps = append(res.Steps, step)
}

func (w *ReleaseWorkflow) log(kv ...any) {
	if w.Logger != nil {
		w.Logger.Log(kv...)
	}
}
