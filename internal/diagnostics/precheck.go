package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/schedmodel"
	"github.com/clinicsched/scheduler/internal/timegrid"
)

// Precheck runs the purely structural checks from §4.5.1: no solver
// run, only variable counts and Instance structure. vs is a VariableSet
// already built over inst (with objective weights irrelevant here).
func Precheck(vs *schedmodel.VariableSet, inst *instance.Instance) []string {
	var out []string
	out = append(out, precheckTherapyRoomCoverage(vs, inst)...)
	out = append(out, precheckPatientRequirements(vs, inst)...)
	out = append(out, precheckStaffing(vs, inst)...)
	out = append(out, precheckFixedTherapists(vs, inst)...)
	out = append(out, precheckPins(vs, inst)...)
	return out
}

func precheckTherapyRoomCoverage(vs *schedmodel.VariableSet, inst *instance.Instance) []string {
	var out []string
	for _, u := range sortedTherapyIDs(inst) {
		th := inst.Therapies[u]
		if !anyRoomAllows(inst, u) {
			out = append(out, fmt.Sprintf("therapy|%s: no room allows this therapy", u))
			continue
		}
		if th.MinPatients > 0 {
			candidates := 0
			for _, sk := range vs.SessionKeys {
				if sk.Therapy == u {
					candidates += len(vs.PatientVarsBySession[sk])
				}
			}
			if candidates == 0 {
				out = append(out, fmt.Sprintf("therapy|%s: requires patients but has zero candidate patient_in_session variables", u))
			}
		}
	}
	return out
}

func precheckPatientRequirements(vs *schedmodel.VariableSet, inst *instance.Instance) []string {
	var out []string
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		for _, u := range sortedTherapyIDs(inst) {
			required, ok := pat.Therapies[u]
			if !ok || required == 0 {
				continue
			}
			candidates := vs.PatientVarsByPatientTherapy[p][u]
			if len(candidates) >= required {
				continue
			}
			if len(candidates) == 0 {
				if !anyRoomAllows(inst, u) {
					out = append(out, fmt.Sprintf("patient_requirement|%s|%s: zero candidate slots because no room allows therapy %q", p, u, u))
					continue
				}
				if !hasAnyAvailability(pat) {
					out = append(out, fmt.Sprintf("patient_requirement|%s|%s: zero candidate slots because patient %q has no availability", p, u, p))
					continue
				}
			}
			out = append(out, fmt.Sprintf("patient_requirement|%s|%s: requires %d sessions but only %d candidate slots exist%s",
				p, u, required, len(candidates), perDayBreakdown(vs.PatientVarsByPatientTherDay[p][u])))

			if pat.NoSameDayTherapies[u] {
				days := 0
				for _, d := range timegrid.DayOrder() {
					if len(vs.PatientVarsByPatientTherDay[p][u][d]) > 0 {
						days++
					}
				}
				if days < required {
					out = append(out, fmt.Sprintf("no_same_day_week_cap|%s|%s: requires %d sessions across distinct days but only %d days have a feasible slot", p, u, required, days))
				}
			}
		}
	}
	return out
}

// perDayBreakdown renders "(Monday: 2, Wednesday: 1)" for every day
// with a nonzero candidate count, per §4.5.1's "per-day breakdown of
// feasible-slot counts".
func perDayBreakdown(byDay map[timegrid.Day][]*cpengine.FDVariable) string {
	var parts []string
	for _, d := range timegrid.DayOrder() {
		n := len(byDay[d])
		if n == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d", d, n))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func anyRoomAllows(inst *instance.Instance, u string) bool {
	for _, r := range inst.Rooms {
		if r.AllowedTherapies[u] {
			return true
		}
	}
	return false
}

func hasAnyAvailability(p *instance.Patient) bool {
	for _, blocks := range p.Availability {
		for _, v := range blocks {
			if v {
				return true
			}
		}
	}
	return false
}

func precheckStaffing(vs *schedmodel.VariableSet, inst *instance.Instance) []string {
	var out []string
	for _, u := range sortedTherapyIDs(inst) {
		th := inst.Therapies[u]
		for _, sigma := range sortedSpecialties(th) {
			found := false
			for _, sk := range vs.SessionKeys {
				if sk.Therapy != u {
					continue
				}
				if len(vs.StaffVarsBySessionSpecialty[sk][sigma]) > 0 {
					found = true
					break
				}
			}
			if !found {
				out = append(out, fmt.Sprintf("staffing|%s|%s: zero candidate staff variables for any session of this therapy", u, sigma))
			}
		}
	}
	return out
}

func precheckFixedTherapists(vs *schedmodel.VariableSet, inst *instance.Instance) []string {
	var out []string
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		for _, u := range sortedTherapyIDs(inst) {
			bySpec, ok := pat.FixedTherapists[u]
			if !ok {
				continue
			}
			for _, sigma := range sortedFixedSpecialties(bySpec) {
				for _, tau := range bySpec[sigma] {
					therapist, ok := inst.Therapists[tau]
					if !ok {
						out = append(out, fmt.Sprintf("fixed_therapist|%s|%s|%s|%s: unknown therapist", p, u, sigma, tau))
						continue
					}
					if !therapist.Specialties[sigma] {
						out = append(out, fmt.Sprintf("fixed_therapist|%s|%s|%s|%s: therapist lacks specialty %q", p, u, sigma, tau, sigma))
						continue
					}
					if !fixedTherapistHasOverlap(vs, p, u, tau, sigma) {
						out = append(out, fmt.Sprintf("fixed_therapist|%s|%s|%s|%s: no (room,day,block) exists where both the patient can attend and the therapist can staff", p, u, sigma, tau))
					}
				}
			}
		}
	}
	return out
}

func fixedTherapistHasOverlap(vs *schedmodel.VariableSet, p, u, tau string, sigma instance.Specialty) bool {
	for key := range vs.PatientInSession {
		if key.Patient != p || key.Therapy != u {
			continue
		}
		staffKey := schedmodel.StaffKey{Therapist: tau, SessionKey: key.SessionKey, Specialty: sigma}
		if _, ok := vs.Staff[staffKey]; ok {
			return true
		}
	}
	return false
}

func precheckPins(vs *schedmodel.VariableSet, inst *instance.Instance) []string {
	var out []string
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		for _, u := range sortedTherapyIDs(inst) {
			for _, pin := range pat.PinnedSessions[u] {
				found := false
				for key := range vs.PatientInSession {
					if key.Patient == p && key.Therapy == u && key.Day == pin.Day && key.Block == pin.Block {
						found = true
						break
					}
				}
				if !found {
					out = append(out, fmt.Sprintf("pinned_session|%s|%s|%s|%d: no candidate patient_in_session variable exists for this exact slot", p, u, pin.Day, pin.Block))
				}
			}
		}
	}
	return out
}

func sortedTherapyIDs(inst *instance.Instance) []string {
	ids := make([]string, 0, len(inst.Therapies))
	for id := range inst.Therapies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedPatientIDs(inst *instance.Instance) []string {
	ids := make([]string, 0, len(inst.Patients))
	for id := range inst.Patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedSpecialties(th *instance.TherapyInfo) []instance.Specialty {
	out := make([]instance.Specialty, 0, len(th.Requirements))
	for s := range th.Requirements {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedFixedSpecialties(bySpec map[instance.Specialty][]string) []instance.Specialty {
	out := make([]instance.Specialty, 0, len(bySpec))
	for s := range bySpec {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
