package domain

import (
	"context"
	"fmt"
)

// Proxy is the port to the reverse proxy's backend configuration: a single
// upstream target plus the static-asset root derived from the live slot's
// working directory. Implementations must validate a new configuration
// before applying it to the running proxy, and must leave the previous
// configuration in force when validation or reload fails.
type Proxy interface {
	Route(ctx context.Context, port int, assetRoot string) error
}

// Cutover atomically redirects traffic to the target slot. The proxy
// backend is rewired and reloaded first; the live pointer is updated only
// once the proxy accepted the new route. When the proxy rejects the
// configuration the pointer is untouched, so the invariant "the live
// pointer always names a slot whose proxy route is wired" holds across
// failures.
func Cutover(ctx context.Context, proxy Proxy, pointer LivePointer, slot Slot, port int, assetRoot string) error {
	if err := proxy.Route(ctx, port, assetRoot); err != nil {
		return fmt.Errorf("route %s to port %d: %w", slot, port, err)
	}
	if err := pointer.Set(ctx, slot); err != nil {
		return fmt.Errorf("repoint live pointer to %s: %w", slot, err)
	}
	return nil
}
