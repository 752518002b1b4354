package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotshift/slotshift/internal/domain"
)

// DeployInput is the caller-provided input for a deployment.
type DeployInput struct {
	ArchivePath string
}

// DeployService runs the release pipeline as a workflow and interprets its
// result into the caller-facing error taxonomy: nil for a clean promotion,
// [*domain.CleanupError] for a promotion whose tail partially failed, and
// the pipeline's own error otherwise.
type DeployService struct {
	Runner domain.ReleaseRunner
}

// Deploy stages and promotes the given artifact.
func (s *DeployService) Deploy(ctx context.Context, in DeployInput) (domain.ReleaseResult, error) {
	if in.ArchivePath == "" {
		return domain.ReleaseResult{}, fmt.Errorf("%w: artifact archive path is required", domain.ErrInvalidArgument)
	}
	return s.run(ctx, domain.ReleaseInput{
		AttemptID:   uuid.NewString(),
		ArchivePath: in.ArchivePath,
		StartedAt:   time.Now().UTC(),
	})
}

// Rollback re-promotes the release staged in the idle slot, health gate
// and all.
func (s *DeployService) Rollback(ctx context.Context) (domain.ReleaseResult, error) {
	return s.run(ctx, domain.ReleaseInput{
		AttemptID: uuid.NewString(),
		Rollback:  true,
		StartedAt: time.Now().UTC(),
	})
}

func (s *DeployService) run(ctx context.Context, in domain.ReleaseInput) (domain.ReleaseResult, error) {
	handle, err := s.Runner.Run(ctx, in)
	if err != nil {
		return domain.ReleaseResult{}, fmt.Errorf("start release workflow: %w", err)
	}
	res, err := handle.AwaitResult(ctx)
	if err != nil {
		return res, err
	}
	if failed := res.FailedSteps(); res.Promoted && len(failed) > 0 {
		return res, &domain.CleanupError{Steps: failed}
	}
	return res, nil
}
