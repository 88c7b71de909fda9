package bootstrap

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kbukum/lexstream/component"
)

// Summary prints the startup banner: components, routes and live health.
type Summary struct {
	serviceName     string
	version         string
	out             io.Writer
	startupDuration time.Duration
}

// NewSummary creates a summary writing to out. A nil out disables it.
func NewSummary(serviceName, version string, out io.Writer) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: out}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// Display writes the banner for the components in registry.
func (s *Summary) Display(ctx context.Context, registry *component.Registry) {
	if s.out == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry != nil {
		descs := registry.Describe()
		if len(descs) > 0 {
			b.WriteString("\nComponents\n")
			for i, d := range descs {
				fmt.Fprintf(&b, "  %s %-16s %-10s %s\n", treePrefix(i, len(descs)), d.Name, d.Type, d.Details)
			}
		}

		routes := registry.Routes()
		if len(routes) > 0 {
			fmt.Fprintf(&b, "\nRoutes (%d)\n", len(routes))
			for i, r := range routes {
				fmt.Fprintf(&b, "  %s %-7s %s -> %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
			}
		}

		health := registry.HealthAll(ctx)
		if len(health) > 0 {
			b.WriteString("\nHealth\n")
			for i, h := range health {
				msg := ""
				if h.Message != "" {
					msg = " (" + h.Message + ")"
				}
				fmt.Fprintf(&b, "  %s %s %s: %s%s\n", treePrefix(i, len(health)), healthMark(h.Status), h.Name, h.Status, msg)
			}
		}
	}
	b.WriteString("\n")
	_, _ = io.WriteString(s.out, b.String())
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthMark(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "[ok]"
	case component.StatusDegraded:
		return "[!!]"
	default:
		return "[xx]"
	}
}
