package domain

import "context"

// Notifier is the port through which finished attempts are announced.
// Notification is a best-effort step: failures are reported in the attempt
// result but never affect the deployment outcome.
type Notifier interface {
	Notify(ctx context.Context, rec AttemptRecord) error
}

// NotifierFunc adapts a function to the [Notifier] interface.
type NotifierFunc func(ctx context.Context, rec AttemptRecord) error

func (f NotifierFunc) Notify(ctx context.Context, rec AttemptRecord) error {
	return f(ctx, rec)
}
