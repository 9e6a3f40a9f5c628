package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicsched/scheduler/internal/boolcon"
	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/schedmodel"
)

// coreSolveTimeLimit bounds each re-solve the deletion-based search
// performs; the core search itself may perform many of these.
const coreSolveTimeLimit = 2 * time.Second

// AssumptionCore runs the deletion-based minimal-core search from
// §4.5.2. It repeatedly rebuilds the model with a different Excluded
// set of labeled constraint groups and re-solves (objective weights 0)
// to find a minimal subset of groups whose presence is jointly
// responsible for infeasibility.
//
// cpengine has no native assumption-literal/unsat-core primitive, so
// this is a from-scratch QuickXplain-style search over group labels
// rather than a solver-native assumption call.
func AssumptionCore(inst *instance.Instance) []string {
	allLabels, err := collectLabels(inst, nil)
	if err != nil {
		return []string{fmt.Sprintf("assumption-core unavailable: %v", err)}
	}
	if len(allLabels) == 0 {
		return []string{"infeasibility stems from unconditional constraints (no labeled groups to exclude)"}
	}

	excluded := map[string]bool{}
	if feasible(inst, excluded) {
		return []string{"infeasibility stems from unconditional constraints"}
	}

	core := quickXplain(inst, allLabels, excluded)
	if len(core) == 0 {
		return []string{"infeasibility stems from unconditional constraints"}
	}

	out := make([]string, 0, len(core))
	for _, label := range core {
		out = append(out, fmt.Sprintf("required: %s", label))
	}
	return out
}

// quickXplain finds a minimal subset of candidates whose joint presence
// keeps the model infeasible. It is the classic linear deletion loop:
// for each label, exclude it together with every label already dropped;
// if the model stays infeasible the label is not needed and stays
// excluded, otherwise it belongs to the core and stays posted. The loop
// is bounded to O(n) re-solves rather than true binary-search
// QuickXplain, since cpengine's solver has no incremental assumption
// push/pop to amortize repeated rebuilds.
func quickXplain(inst *instance.Instance, candidates []string, baseExcluded map[string]bool) []string {
	var core []string
	working := map[string]bool{}
	for k, v := range baseExcluded {
		working[k] = v
	}

	for _, label := range candidates {
		trial := map[string]bool{}
		for k, v := range working {
			trial[k] = v
		}
		trial[label] = true

		if feasible(inst, trial) {
			// Excluding this label restores feasibility: it is part of the
			// minimal core, so it stays posted for subsequent trials.
			core = append(core, label)
		} else {
			// Still infeasible without it: not needed, keep it excluded.
			working[label] = true
		}
	}
	return core
}

// feasible rebuilds the model with the given labels excluded (in
// AssumptionGuarded mode) and objective weights zeroed, and reports
// whether a short bounded solve finds any solution.
func feasible(inst *instance.Instance, excluded map[string]bool) bool {
	m := cpengine.NewModel()
	vs, err := schedmodel.BuildVariables(m, inst)
	if err != nil {
		return false
	}
	e := boolcon.NewEmitter(m, boolcon.AssumptionGuarded)
	for k, v := range excluded {
		e.Excluded[k] = v
	}
	if err := schedmodel.BuildConstraints(e, vs, inst); err != nil {
		return false
	}

	solver := cpengine.NewSolver(m)
	ctx, cancel := context.WithTimeout(context.Background(), coreSolveTimeLimit)
	defer cancel()
	solutions, err := solver.Solve(ctx, 1)
	if err != nil {
		return false
	}
	return len(solutions) > 0
}

// collectLabels builds the model once (any Excluded set, since Labels
// is populated regardless of exclusion) purely to harvest the full
// constraint-group label inventory for the search.
func collectLabels(inst *instance.Instance, excluded map[string]bool) ([]string, error) {
	m := cpengine.NewModel()
	vs, err := schedmodel.BuildVariables(m, inst)
	if err != nil {
		return nil, err
	}
	e := boolcon.NewEmitter(m, boolcon.AssumptionGuarded)
	for k, v := range excluded {
		e.Excluded[k] = v
	}
	if err := schedmodel.BuildConstraints(e, vs, inst); err != nil {
		return nil, err
	}
	return e.Labels, nil
}
