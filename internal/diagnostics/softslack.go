package diagnostics

import (
	"context"
	"fmt"

	"github.com/clinicsched/scheduler/internal/boolcon"
	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/schedmodel"
)

// softSlackMessageCap is the 20-message-plus-"and N more" cap from §4.5.3.
const softSlackMessageCap = 20

// SoftSlack rebuilds the model with every softenable constraint group
// relaxed by a slack variable (per §4.5.3), minimizes the sum of all
// slacks, and reports one message per non-zero slack naming the
// violated entity and the deficit amount, capped at 20 messages plus an
// "and N more" tail.
func SoftSlack(inst *instance.Instance) []string {
	m := cpengine.NewModel()
	vs, err := schedmodel.BuildVariables(m, inst)
	if err != nil {
		return []string{fmt.Sprintf("soft-slack unavailable: %v", err)}
	}

	e := boolcon.NewEmitter(m, boolcon.Soft)
	if err := schedmodel.BuildConstraints(e, vs, inst); err != nil {
		return []string{fmt.Sprintf("soft-slack unavailable: %v", err)}
	}

	if len(e.Slacks) == 0 {
		return []string{"no softenable constraint groups were posted for this instance"}
	}

	slackSum := buildSlackSumObjective(m, e.Slacks)

	solver := cpengine.NewSolver(m)
	solution, _, err := solver.SolveOptimalWithOptions(context.Background(), slackSum, true)
	if err != nil {
		return []string{fmt.Sprintf("soft-slack solve failed: %v", err)}
	}
	if solution == nil {
		return []string{"soft-slack model itself is infeasible (some constraint group cannot be softened further)"}
	}

	var messages []string
	for _, rec := range e.Slacks {
		val := solution[rec.Slack.ID()] - 1
		if val == 0 {
			continue
		}
		messages = append(messages, fmt.Sprintf("%s: violated by %d", rec.Label, val))
	}

	if len(messages) <= softSlackMessageCap {
		return messages
	}
	capped := append([]string{}, messages[:softSlackMessageCap]...)
	capped = append(capped, fmt.Sprintf("and %d more", len(messages)-softSlackMessageCap))
	return capped
}

// buildSlackSumObjective posts Σ slacks = objective and returns the
// objective FDVariable to minimize.
func buildSlackSumObjective(m *cpengine.Model, slacks []boolcon.SlackRecord) *cpengine.FDVariable {
	vars := make([]*cpengine.FDVariable, 0, len(slacks))
	coeffs := make([]int, 0, len(slacks))
	maxValue := 0
	for _, rec := range slacks {
		vars = append(vars, rec.Slack)
		coeffs = append(coeffs, 1)
		maxValue += rec.Slack.Domain().Max() - 1
	}

	objVar := boolcon.NewIntVar(m, 0, maxValue, "soft_slack_sum")
	allVars := append(append([]*cpengine.FDVariable{}, vars...), objVar)
	allCoeffs := append(append([]int{}, coeffs...), -1)

	lin, err := boolcon.NewLinear("soft_slack_sum_linkage", allVars, allCoeffs, boolcon.EQ, 0)
	if err == nil {
		m.AddConstraint(lin)
	}
	return objVar
}
