package schedmodel

import (
	"fmt"

	"github.com/clinicsched/scheduler/internal/boolcon"
	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/timegrid"
)

// ObjectiveWeights scales the two preference terms of the objective:
// minimize (WDays * Σ patient_day_used) + (WGap * Σ idle_gap). Staffing
// and attendance are already pinned to exact targets by hard/soft
// constraints, so the objective only ever trades off these two
// preferences against each other.
type ObjectiveWeights struct {
	WDays int
	WGap  int
}

// DefaultObjectiveWeights favors consolidating a patient's week onto
// fewer days somewhat more than closing idle gaps within a day.
func DefaultObjectiveWeights() ObjectiveWeights {
	return ObjectiveWeights{WDays: 3, WGap: 1}
}

// Objective holds every indicator variable built for the weighted sum,
// so callers (notably diagnostics' soft-slack strategy) can inspect
// individual indicators if needed.
type Objective struct {
	Value           *cpengine.FDVariable
	PatientDayUsed  map[string]map[timegrid.Day]*cpengine.FDVariable
	TherapistBusy   map[string]map[timegrid.Day]map[int]*cpengine.FDVariable
	IdleGap         map[string]map[timegrid.Day]map[int]*cpengine.FDVariable
}

// BuildObjective constructs patient_day_used, therapist_busy, and
// idle_gap indicators per §4.3 and ties them to a single weighted-sum
// objective FDVariable via e.
func BuildObjective(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance, weights ObjectiveWeights) (*Objective, error) {
	obj := &Objective{
		PatientDayUsed: make(map[string]map[timegrid.Day]*cpengine.FDVariable),
		TherapistBusy:  make(map[string]map[timegrid.Day]map[int]*cpengine.FDVariable),
		IdleGap:        make(map[string]map[timegrid.Day]map[int]*cpengine.FDVariable),
	}

	if err := buildPatientDayUsed(e, vs, inst, obj); err != nil {
		return nil, err
	}
	if err := buildTherapistBusy(e, vs, inst, obj); err != nil {
		return nil, err
	}
	if err := buildIdleGap(e, vs, inst, obj); err != nil {
		return nil, err
	}

	var vars []*cpengine.FDVariable
	var coeffs []int
	for _, p := range sortedPatientIDs(inst) {
		for _, d := range timegrid.DayOrder() {
			if v, ok := obj.PatientDayUsed[p][d]; ok {
				vars = append(vars, v)
				coeffs = append(coeffs, weights.WDays)
			}
		}
	}
	for _, tau := range sortedTherapistIDs(inst) {
		for _, d := range timegrid.DayOrder() {
			for b := 0; b < timegrid.NumBlocks; b++ {
				if v, ok := obj.IdleGap[tau][d][b]; ok {
					vars = append(vars, v)
					coeffs = append(coeffs, weights.WGap)
				}
			}
		}
	}

	maxValue := 0
	for _, c := range coeffs {
		maxValue += c
	}
	objVar := boolcon.NewIntVar(e.Model, 0, maxValue, "objective_value")
	obj.Value = objVar

	allVars := append(append([]*cpengine.FDVariable{}, vars...), objVar)
	allCoeffs := append(append([]int{}, coeffs...), -1)
	if err := e.Post("objective_linkage", allVars, allCoeffs, boolcon.EQ, 0, boolcon.SlackNone); err != nil {
		return nil, err
	}

	return obj, nil
}

// buildPatientDayUsed posts patient_day_used[p,d] = 1 iff patient p
// attends any session on day d (§4.3's day-consolidation indicator).
func buildPatientDayUsed(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance, obj *Objective) error {
	for _, p := range sortedPatientIDs(inst) {
		byDay := make(map[timegrid.Day]*cpengine.FDVariable)
		obj.PatientDayUsed[p] = byDay
		byDayBlk := vs.PatientVarsByPatientDayBlk[p]
		for _, d := range timegrid.DayOrder() {
			var vars []*cpengine.FDVariable
			for b := 0; b < timegrid.NumBlocks; b++ {
				vars = append(vars, byDayBlk[d][b]...)
			}
			if len(vars) == 0 {
				continue
			}
			ind := boolcon.NewBoolVar(e.Model, fmt.Sprintf("patient_day_used|%s|%s", p, d))
			label := fmt.Sprintf("patient_day_used|%s|%s", p, d)
			if err := boolcon.Indicator(e, label, vars, ind); err != nil {
				return err
			}
			byDay[d] = ind
		}
	}
	return nil
}

// buildTherapistBusy posts therapist_busy[tau,d,b] = 1 iff therapist tau
// is staffing any session at (d,b).
func buildTherapistBusy(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance, obj *Objective) error {
	for _, tau := range sortedTherapistIDs(inst) {
		byDay := make(map[timegrid.Day]map[int]*cpengine.FDVariable)
		obj.TherapistBusy[tau] = byDay
		byDayBlk := vs.StaffVarsByTherapistDayBlk[tau]
		for _, d := range timegrid.DayOrder() {
			byBlk := make(map[int]*cpengine.FDVariable)
			byDay[d] = byBlk
			for b := 0; b < timegrid.NumBlocks; b++ {
				vars := byDayBlk[d][b]
				if len(vars) == 0 {
					continue
				}
				ind := boolcon.NewBoolVar(e.Model, fmt.Sprintf("therapist_busy|%s|%s|%d", tau, d, b))
				label := fmt.Sprintf("therapist_busy|%s|%s|%d", tau, d, b)
				if err := boolcon.Indicator(e, label, vars, ind); err != nil {
					return err
				}
				byBlk[b] = ind
			}
		}
	}
	return nil
}

// buildIdleGap posts idle_gap[tau,d,b] per §4.3's three upper bounds:
// idle_gap <= (busy before), idle_gap <= (busy after), and
// idle_gap <= 1 - busy(b) (posted as idle_gap + busy(b) <= 1 when a
// busy(b) indicator exists at all; when it doesn't, busy(b) is
// structurally 0 and the bound is non-binding, so it's omitted). No
// reverse/lower bound is posted: per spec.md's literal formula, that
// direction is left as an open, optional extension. Only considers b
// strictly within a single morning/afternoon segment: block 4 and block
// 5 straddle the lunch gap and are never "before"/"after" neighbors of
// each other, per timegrid's segment definition.
func buildIdleGap(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance, obj *Objective) error {
	for _, tau := range sortedTherapistIDs(inst) {
		byDay := make(map[timegrid.Day]map[int]*cpengine.FDVariable)
		obj.IdleGap[tau] = byDay
		busyByDay := obj.TherapistBusy[tau]
		for _, d := range timegrid.DayOrder() {
			byBlk := make(map[int]*cpengine.FDVariable)
			byDay[d] = byBlk
			busy := busyByDay[d]
			for _, segment := range timegrid.Segments() {
				for b := segment[0] + 1; b < segment[1]; b++ {
					before, hasBefore := busy[b-1]
					after, hasAfter := busy[b+1]
					if !hasBefore || !hasAfter {
						continue
					}
					curr, hasCurr := busy[b]

					ind := boolcon.NewBoolVar(e.Model, fmt.Sprintf("idle_gap|%s|%s|%d", tau, d, b))
					prefix := fmt.Sprintf("idle_gap|%s|%s|%d", tau, d, b)

					// ind <= before
					if err := boolcon.LinkLE(e, prefix+"|le_before", ind, before, boolcon.SlackNone); err != nil {
						return err
					}
					// ind <= after
					if err := boolcon.LinkLE(e, prefix+"|le_after", ind, after, boolcon.SlackNone); err != nil {
						return err
					}

					if hasCurr {
						// ind <= 1 - busy(b), i.e. ind + busy(b) <= 1
						if err := e.Post(prefix+"|le_notbusy", []*cpengine.FDVariable{ind, curr}, []int{1, 1}, boolcon.LE, 1, boolcon.SlackNone); err != nil {
							return err
						}
					}

					byBlk[b] = ind
				}
			}
		}
	}
	return nil
}
