package cli

import (
	"fmt"
	"io"

	"github.com/Miyamura80/CLI-Template/internal/invocation"
	"github.com/Miyamura80/CLI-Template/pkg/state"
)

const firstRunNotice = "mycli records anonymous usage data on this machine only; run 'mycli telemetry disable' to opt out."

// showFirstRunNotice prints the telemetry notice once per install. The shown
// marker is not persisted under dry-run, so the notice reappears until a
// normal invocation records it. Failures here never block a command.
func (a *App) showFirstRunNotice(w io.Writer, inv *invocation.Context) {
	if inv.Quiet() || bool(a.settings.TelemetryDisabled) {
		return
	}
	manager := state.NewManager(a.stateFile)
	record, err := manager.Load()
	if err != nil || record.TelemetryNoticeShown || !record.TelemetryOn() {
		return
	}
	fmt.Fprintln(w, firstRunNotice)
	if inv.DryRun() {
		return
	}
	_, _ = manager.Update(func(r *state.Record) { r.TelemetryNoticeShown = true })
}
