package domain

import (
	"context"
	"time"
)

// ProbeSpec configures one health-gate run against a slot's local endpoint.
type ProbeSpec struct {
	Port         int
	Path         string
	ExpectStatus int
	// Attempts bounds the probe loop; one request is issued per
	// Interval. The loop ends unhealthy only when this many attempts
	// have been made without an exact status match.
	Attempts int
	Interval time.Duration
}

// ProbeReport is the outcome of a health-gate run. An unhealthy report is
// not an error: it is an expected protocol outcome that routes the
// orchestrator onto the rollback path. Probe only returns a non-nil error
// for cancellation.
type ProbeReport struct {
	Healthy  bool
	Attempts int
	// LastStatus is the final HTTP status observed, 0 when the last
	// attempt failed at the transport level.
	LastStatus int
	// LastError is the final transport error observed, empty when the
	// last attempt got an HTTP response.
	LastError string
}

// HealthGate polls a slot's health endpoint until it responds with the
// expected status, the attempt budget is exhausted, or the context is
// cancelled. There is deliberately no distinction between "not yet
// listening" and "listening but unhealthy": connection refused while the
// process is still starting retries exactly like a 503.
type HealthGate interface {
	Probe(ctx context.Context, spec ProbeSpec) (ProbeReport, error)
}
