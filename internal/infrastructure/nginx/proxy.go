// Package nginx implements the reverse-proxy port by rewriting a single
// include file holding the app's upstream definition, validating the new
// configuration, and reloading the running proxy. The server block that
// includes the file is provisioned outside this tool and never touched.
package nginx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log"

	"github.com/slotshift/slotshift/internal/domain"
)

// CommandRunner executes a host command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Proxy implements [domain.Proxy] for nginx.
type Proxy struct {
	// App names the upstream block: "<app>_backend".
	App string
	// UpstreamFile is the include file this adapter owns.
	UpstreamFile string
	// CheckCommand validates the full proxy configuration before reload.
	// Defaults to "nginx -t".
	CheckCommand []string
	// ReloadCommand applies the validated configuration. Defaults to
	// "systemctl reload nginx".
	ReloadCommand []string
	Runner        CommandRunner
	Logger        log.Logger
}

func (p *Proxy) runner() CommandRunner {
	if p.Runner != nil {
		return p.Runner
	}
	return ExecRunner{}
}

func (p *Proxy) checkCommand() []string {
	if len(p.CheckCommand) > 0 {
		return p.CheckCommand
	}
	return []string{"nginx", "-t"}
}

func (p *Proxy) reloadCommand() []string {
	if len(p.ReloadCommand) > 0 {
		return p.ReloadCommand
	}
	return []string{"systemctl", "reload", "nginx"}
}

// Route rewires the upstream to the given port. The new file is validated
// before the proxy is reloaded; on any failure the previous file is put
// back, so the file on disk always matches the configuration the running
// proxy accepted last.
func (p *Proxy) Route(ctx context.Context, port int, assetRoot string) error {
	prev, prevErr := os.ReadFile(p.UpstreamFile)
	hadPrev := prevErr == nil
	if prevErr != nil && !errors.Is(prevErr, os.ErrNotExist) {
		return fmt.Errorf("%w: read upstream file: %v", domain.ErrProxyReload, prevErr)
	}

	if err := os.WriteFile(p.UpstreamFile, []byte(p.render(port, assetRoot)), 0o644); err != nil {
		return fmt.Errorf("%w: write upstream file: %v", domain.ErrProxyReload, err)
	}

	restore := func() {
		if hadPrev {
			os.WriteFile(p.UpstreamFile, prev, 0o644)
		} else {
			os.Remove(p.UpstreamFile)
		}
	}

	if err := p.runCmd(ctx, p.checkCommand()); err != nil {
		restore()
		return fmt.Errorf("%w: config check: %v", domain.ErrProxyReload, err)
	}
	if err := p.runCmd(ctx, p.reloadCommand()); err != nil {
		restore()
		return fmt.Errorf("%w: reload: %v", domain.ErrProxyReload, err)
	}

	p.log("event", "proxy routed", "port", port)
	return nil
}

func (p *Proxy) runCmd(ctx context.Context, cmd []string) error {
	out, err := p.runner().Run(ctx, cmd[0], cmd[1:]...)
	if err != nil {
		return fmt.Errorf("%s: %v: %s", strings.Join(cmd, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (p *Proxy) render(port int, assetRoot string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Managed by slotshift; rewritten on every promotion.\n")
	fmt.Fprintf(&b, "upstream %s_backend {\n", p.App)
	fmt.Fprintf(&b, "    server 127.0.0.1:%d;\n", port)
	fmt.Fprintf(&b, "}\n")
	if assetRoot != "" {
		// The server block keys cache-control for static assets off
		// this variable.
		fmt.Fprintf(&b, "\nmap $host $%s_assets {\n", p.App)
		fmt.Fprintf(&b, "    default %q;\n", assetRoot)
		fmt.Fprintf(&b, "}\n")
	}
	return b.String()
}

func (p *Proxy) log(kv ...any) {
	if p.Logger != nil {
		p.Logger.Log(kv...)
	}
}
