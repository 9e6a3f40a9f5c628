package schedmodel

import (
	"fmt"

	"github.com/clinicsched/scheduler/internal/boolcon"
	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/timegrid"
)

// BuildConstraints posts every constraint group from §4.2 through e,
// letting e's Mode decide whether each group is posted hard, assumption-
// guarded, or softened. Groups that §4.5.3's Open Question keeps hard
// even in Soft mode (pinning, one-at-a-time, continuous-hours, and the
// session-active linking constraints) are posted with SlackNone.
func BuildConstraints(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	if err := buildLinking(e, vs); err != nil {
		return err
	}
	if err := buildCapacityAndStaffing(e, vs, inst); err != nil {
		return err
	}
	if err := buildPatientRequirements(e, vs, inst); err != nil {
		return err
	}
	if err := buildPinning(e, vs, inst); err != nil {
		return err
	}
	if err := buildFixedTherapists(e, vs, inst); err != nil {
		return err
	}
	if err := buildNoSameDay(e, vs, inst); err != nil {
		return err
	}
	if err := buildOneAtATime(e, vs, inst); err != nil {
		return err
	}
	if err := buildContinuousHours(e, vs, inst); err != nil {
		return err
	}
	return nil
}

// buildLinking posts patient_in_session ≤ session_active and staff ≤
// session_active for every candidate variable. Both stay hard (SlackNone)
// even in Soft mode, per §4.5.3's "session-active linking" exception.
func buildLinking(e *boolcon.Emitter, vs *VariableSet) error {
	for key, v := range vs.PatientInSession {
		active := vs.SessionActive[key.SessionKey]
		if active == nil {
			return fmt.Errorf("schedmodel: patient_in_session %s has no matching session_active variable", key.SessionKey)
		}
		label := "link_patient|" + key.Patient + "|" + key.SessionKey.String()
		if err := boolcon.LinkLE(e, label, v, active, boolcon.SlackNone); err != nil {
			return err
		}
	}
	for key, v := range vs.Staff {
		active := vs.SessionActive[key.SessionKey]
		if active == nil {
			return fmt.Errorf("schedmodel: staff %s has no matching session_active variable", key.SessionKey)
		}
		label := "link_staff|" + key.Therapist + "|" + key.SessionKey.String() + "|" + string(key.Specialty)
		if err := boolcon.LinkLE(e, label, v, active, boolcon.SlackNone); err != nil {
			return err
		}
	}
	return nil
}

// buildCapacityAndStaffing posts, per active session: the capacity band
// (P_S <= min(max_patients, room.capacity), P_S >= min_patients*active)
// and staffing exactness for each required specialty.
func buildCapacityAndStaffing(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	for _, sk := range vs.SessionKeys {
		active := vs.SessionActive[sk]
		th := inst.Therapies[sk.Therapy]
		room := inst.Rooms[sk.Room]

		maxPatients := th.MaxPatients
		if room.Capacity < maxPatients {
			maxPatients = room.Capacity
		}
		patientVars := vs.PatientVarsBySession[sk]

		if room.Capacity < th.MinPatients {
			// Room too small to ever host a min-viable session: force
			// inactive rather than post an unsatisfiable capacity band.
			if err := boolcon.ForceFalse(e, "capacity_infeasible_room|"+sk.String(), active); err != nil {
				return err
			}
			continue
		}

		if len(patientVars) > 0 {
			if err := boolcon.AtMostM(e, "capacity_max|"+sk.String(), patientVars, maxPatients); err != nil {
				return err
			}
		}
		if err := boolcon.AtLeastKTimesActive(e, "capacity_min|"+sk.String(), patientVars, th.MinPatients, active); err != nil {
			return err
		}

		for sigma, k := range th.Requirements {
			staffVars := vs.StaffVarsBySessionSpecialty[sk][sigma]
			label := "staffing|" + sk.String() + "|" + string(sigma)
			if len(staffVars) == 0 && k > 0 {
				if err := boolcon.ForceFalse(e, "staffing_unavailable|"+label, active); err != nil {
					return err
				}
				continue
			}
			allVars := append(append([]*cpengine.FDVariable{}, staffVars...), active)
			coeffs := make([]int, len(staffVars)+1)
			for i := range staffVars {
				coeffs[i] = 1
			}
			coeffs[len(staffVars)] = -k
			if err := e.Post(label, allVars, coeffs, boolcon.EQ, 0, boolcon.SlackBounded); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildPatientRequirements posts, per (patient, therapy) with required n,
// Σ patient_in_session[p,u,*,*,*] = n.
func buildPatientRequirements(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		for _, u := range sortedTherapyIDs(inst) {
			n, ok := pat.Therapies[u]
			if !ok {
				continue
			}
			vars := vs.PatientVarsByPatientTherapy[p][u]
			label := "patient_requirement|" + p + "|" + u
			if len(vars) == 0 {
				if n == 0 {
					continue
				}
				// No candidate session exists: post the requirement over a
				// variable fixed to 0, so the group stays labeled and is
				// unsatisfiable (Σ = 0 < n).
				vars = []*cpengine.FDVariable{boolcon.NewIntVar(e.Model, 0, 0, "no_candidates|"+label)}
			}
			if err := boolcon.ExactlyN(e, label, vars, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildPinning posts, per pin (u,d,b), Σ patient_in_session[p,u,*,d,b] = 1.
func buildPinning(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		for _, u := range sortedTherapyIDs(inst) {
			for _, pin := range pat.PinnedSessions[u] {
				var vars []*cpengine.FDVariable
				for key, v := range vs.PatientInSession {
					if key.Patient == p && key.Therapy == u && key.Day == pin.Day && key.Block == pin.Block {
						vars = append(vars, v)
					}
				}
				label := fmt.Sprintf("pinned_session|%s|%s|%s|%d", p, u, pin.Day, pin.Block)
				if len(vars) == 0 {
					return fmt.Errorf("schedmodel: pin %s has no candidate patient_in_session variable (should have been caught by precheck)", label)
				}
				if err := boolcon.ExactlyOne(e, label, vars); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// buildFixedTherapists posts, for each (u, sigma, tau) fixed binding and
// each existing patient_in_session variable x for that therapy, x <=
// staff[tau,...,sigma] (or x = 0 if that staff variable does not exist).
func buildFixedTherapists(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		for _, u := range sortedTherapyIDs(inst) {
			bySpec, ok := pat.FixedTherapists[u]
			if !ok {
				continue
			}
			for sigma, taus := range bySpec {
				for _, tau := range taus {
					for key, x := range vs.PatientInSession {
						if key.Patient != p || key.Therapy != u {
							continue
						}
						staffKey := StaffKey{Therapist: tau, SessionKey: key.SessionKey, Specialty: sigma}
						label := fmt.Sprintf("fixed_therapist|%s|%s|%s|%s|d=%s|b=%d", p, u, sigma, tau, key.Day, key.Block)
						if staffVar, ok := vs.Staff[staffKey]; ok {
							if err := boolcon.LinkLE(e, label, x, staffVar, boolcon.SlackBool); err != nil {
								return err
							}
						} else {
							if err := boolcon.ForceFalse(e, label, x); err != nil {
								return err
							}
						}
					}
				}
			}
		}
	}
	return nil
}

// buildNoSameDay posts, per therapy in no_same_day_therapies and per day,
// Σ patient_in_session[p,u,*,d,*] <= 1.
func buildNoSameDay(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		for _, u := range sortedTherapyIDs(inst) {
			if !pat.NoSameDayTherapies[u] {
				continue
			}
			for _, d := range timegrid.DayOrder() {
				vars := vs.PatientVarsByPatientTherDay[p][u][d]
				if len(vars) == 0 {
					continue
				}
				label := fmt.Sprintf("no_same_day|%s|%s|%s", p, u, d)
				if err := boolcon.AtMostM(e, label, vars, 1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// buildOneAtATime posts the patient/therapist/room one-session-at-a-time
// constraints.
func buildOneAtATime(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	for _, p := range sortedPatientIDs(inst) {
		for _, d := range timegrid.DayOrder() {
			for b := 0; b < timegrid.NumBlocks; b++ {
				vars := vs.PatientVarsByPatientDayBlk[p][d][b]
				if len(vars) == 0 {
					continue
				}
				label := fmt.Sprintf("patient_one_at_a_time|%s|%s|%d", p, d, b)
				if err := boolcon.AtMostOne(e, label, vars); err != nil {
					return err
				}
			}
		}
	}
	for _, tau := range sortedTherapistIDs(inst) {
		for _, d := range timegrid.DayOrder() {
			for b := 0; b < timegrid.NumBlocks; b++ {
				vars := vs.StaffVarsByTherapistDayBlk[tau][d][b]
				if len(vars) == 0 {
					continue
				}
				label := fmt.Sprintf("therapist_one_at_a_time|%s|%s|%d", tau, d, b)
				if err := boolcon.AtMostOne(e, label, vars); err != nil {
					return err
				}
			}
		}
	}
	for _, r := range sortedRoomIDs(inst) {
		for _, d := range timegrid.DayOrder() {
			for b := 0; b < timegrid.NumBlocks; b++ {
				vars := vs.SessionVarsByRoomDayBlk[r][d][b]
				if len(vars) == 0 {
					continue
				}
				label := fmt.Sprintf("room_one_at_a_time|%s|%s|%d", r, d, b)
				if err := boolcon.AtMostOne(e, label, vars); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// buildContinuousHours posts, per patient and per sliding window of
// length 4 within a segment, Σ patient_in_session within the window on
// that day <= max_continuous_hours.
func buildContinuousHours(e *boolcon.Emitter, vs *VariableSet, inst *instance.Instance) error {
	for _, p := range sortedPatientIDs(inst) {
		pat := inst.Patients[p]
		byDayBlk := vs.PatientVarsByPatientDayBlk[p]
		for _, segment := range timegrid.Segments() {
			for _, window := range timegrid.SlidingWindows(segment, 4) {
				for _, d := range timegrid.DayOrder() {
					var vars []*cpengine.FDVariable
					for _, b := range window {
						vars = append(vars, byDayBlk[d][b]...)
					}
					if len(vars) == 0 {
						continue
					}
					label := fmt.Sprintf("continuous_hours|%s|%s|%v", p, d, window)
					coeffs := make([]int, len(vars))
					for i := range coeffs {
						coeffs[i] = 1
					}
					if err := e.Post(label, vars, coeffs, boolcon.LE, pat.MaxContinuousHours, boolcon.SlackNone); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
