// Package httpprobe implements the health gate with plain HTTP GETs
// against the slot's local port.
package httpprobe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/slotshift/slotshift/internal/domain"
)

// Gate implements [domain.HealthGate]. One GET is issued per interval;
// the loop ends healthy on the first exact status match, and unhealthy
// only when the attempt budget runs out. Connection refused while the
// process is still starting is indistinguishable from an unhealthy
// response on purpose; the operator sizes the attempt budget accordingly.
type Gate struct {
	// Client defaults to an http.Client whose per-request timeout is the
	// probe interval, so a hanging request cannot eat the whole budget.
	Client *http.Client
	Logger log.Logger
	// OnAttempt, when set, is called after every probe attempt. The CLI
	// uses it for progress feedback; it must not block.
	OnAttempt func(attempt int, status int, err error)
}

func (g *Gate) client(interval time.Duration) *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return &http.Client{Timeout: interval}
}

// Probe polls until healthy, out of attempts, or cancelled. Only
// cancellation returns an error; an exhausted budget is a normal
// unhealthy report.
func (g *Gate) Probe(ctx context.Context, spec domain.ProbeSpec) (domain.ProbeReport, error) {
	if spec.Attempts <= 0 {
		return domain.ProbeReport{}, fmt.Errorf("%w: probe attempts must be positive", domain.ErrInvalidArgument)
	}

	url := fmt.Sprintf("http://localhost:%d%s", spec.Port, spec.Path)
	client := g.client(spec.Interval)

	report := domain.ProbeReport{}
	for attempt := 1; attempt <= spec.Attempts; attempt++ {
		report.Attempts = attempt
		status, err := g.once(ctx, client, url)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.LastStatus = 0
			report.LastError = err.Error()
		} else {
			report.LastStatus = status
			report.LastError = ""
		}
		if g.OnAttempt != nil {
			g.OnAttempt(attempt, report.LastStatus, err)
		}
		if status == spec.ExpectStatus {
			report.Healthy = true
			return report, nil
		}
		g.log("event", "probe attempt", "attempt", attempt, "status", report.LastStatus, "err", report.LastError)

		if attempt == spec.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(spec.Interval):
		}
	}
	return report, nil
}

func (g *Gate) once(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close() // status is all that matters; the body is ignored
	return resp.StatusCode, nil
}

func (g *Gate) log(kv ...any) {
	if g.Logger != nil {
		g.Logger.Log(kv...)
	}
}
