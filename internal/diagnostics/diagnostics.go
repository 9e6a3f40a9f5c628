// Package diagnostics explains why a solve attempt did not produce
// OPTIMAL/FEASIBLE: precheck (pure structural), assumption-core
// (deletion-based minimal-core search), and soft-slack (relaxed
// re-solve reporting violated constraint groups), run in that order
// per §4.5, each against a freshly built model over the same Instance
// with objective weights set to zero.
package diagnostics

import (
	"fmt"

	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/schedmodel"
)

// Run executes all three diagnostic strategies and returns both the
// flattened, prefixed list and the per-method breakdown that §4.6's
// SolveResult requires. weights is accepted to match the solve driver's
// DiagnosticsRunner signature but is unused: all three diagnostics run
// with objective weights zeroed per §4.5.
func Run(inst *instance.Instance, weights schedmodel.ObjectiveWeights) ([]string, map[string][]string) {
	byMethod := map[string][]string{}

	precheckMsgs := runPrecheck(inst)
	byMethod["prechecks"] = precheckMsgs

	byMethod["assumptions"] = AssumptionCore(inst)
	byMethod["soft"] = SoftSlack(inst)

	var flat []string
	for _, msg := range byMethod["prechecks"] {
		flat = append(flat, "precheck: "+msg)
	}
	for _, msg := range byMethod["assumptions"] {
		flat = append(flat, "assumption-core: "+msg)
	}
	for _, msg := range byMethod["soft"] {
		flat = append(flat, "soft-slack: "+msg)
	}

	return flat, byMethod
}

func runPrecheck(inst *instance.Instance) []string {
	m := cpengine.NewModel()
	vs, err := schedmodel.BuildVariables(m, inst)
	if err != nil {
		return []string{fmt.Sprintf("precheck unavailable: %v", err)}
	}
	return Precheck(vs, inst)
}
