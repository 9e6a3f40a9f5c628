// Package schedmodel materializes the three decision-variable families
// over feasible tuples (variable builder), and posts the capacity,
// staffing, requirement, pinning, fixed-therapist, no-same-day,
// one-at-a-time, continuous-hours, and objective-indicator constraint
// groups (constraint set + objective) against them.
package schedmodel

import (
	"fmt"
	"sort"

	"github.com/clinicsched/scheduler/internal/boolcon"
	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/timegrid"
)

// SessionKey identifies one candidate (therapy, room, day, block) slot.
type SessionKey struct {
	Therapy string
	Room    string
	Day     timegrid.Day
	Block   int
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.Therapy, k.Room, k.Day, k.Block)
}

// PatientSessionKey identifies one candidate patient-in-session variable.
type PatientSessionKey struct {
	Patient string
	SessionKey
}

// StaffKey identifies one candidate staff-assignment variable.
type StaffKey struct {
	Therapist string
	SessionKey
	Specialty instance.Specialty
}

// VariableSet holds every decision variable the builder creates, plus
// the reverse indices the constraint and objective builders need to sum
// over related variables without re-scanning the whole tuple space.
type VariableSet struct {
	SessionActive    map[SessionKey]*cpengine.FDVariable
	PatientInSession map[PatientSessionKey]*cpengine.FDVariable
	Staff            map[StaffKey]*cpengine.FDVariable

	// Reverse indices, all populated by BuildVariables.
	PatientVarsBySession        map[SessionKey][]*cpengine.FDVariable
	StaffVarsBySessionSpecialty map[SessionKey]map[instance.Specialty][]*cpengine.FDVariable
	PatientVarsByPatientTherapy map[string]map[string][]*cpengine.FDVariable
	PatientVarsByPatientDayBlk  map[string]map[timegrid.Day]map[int][]*cpengine.FDVariable
	PatientVarsByPatientTherDay map[string]map[string]map[timegrid.Day][]*cpengine.FDVariable
	StaffVarsByTherapistDayBlk  map[string]map[timegrid.Day]map[int][]*cpengine.FDVariable
	SessionVarsByRoomDayBlk     map[string]map[timegrid.Day]map[int][]*cpengine.FDVariable

	// SessionKeys is every session key in deterministic order, used by
	// every pass that iterates "for each active session".
	SessionKeys []SessionKey
}

func sortedPatientIDs(inst *instance.Instance) []string {
	ids := make([]string, 0, len(inst.Patients))
	for id := range inst.Patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedTherapyIDs(inst *instance.Instance) []string {
	ids := make([]string, 0, len(inst.Therapies))
	for id := range inst.Therapies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedRoomIDs(inst *instance.Instance) []string {
	ids := make([]string, 0, len(inst.Rooms))
	for id := range inst.Rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedTherapistIDs(inst *instance.Instance) []string {
	ids := make([]string, 0, len(inst.Therapists))
	for id := range inst.Therapists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildVariables creates session_active, patient_in_session, and staff
// variables over every a-priori feasible tuple (per §4.1), in
// deterministic (sorted-id, canonical-day, ascending-block) order, and
// populates the reverse indices the constraint/objective builders need.
func BuildVariables(m *cpengine.Model, inst *instance.Instance) (*VariableSet, error) {
	vs := &VariableSet{
		SessionActive:               make(map[SessionKey]*cpengine.FDVariable),
		PatientInSession:            make(map[PatientSessionKey]*cpengine.FDVariable),
		Staff:                       make(map[StaffKey]*cpengine.FDVariable),
		PatientVarsBySession:        make(map[SessionKey][]*cpengine.FDVariable),
		StaffVarsBySessionSpecialty: make(map[SessionKey]map[instance.Specialty][]*cpengine.FDVariable),
		PatientVarsByPatientTherapy: make(map[string]map[string][]*cpengine.FDVariable),
		PatientVarsByPatientDayBlk:  make(map[string]map[timegrid.Day]map[int][]*cpengine.FDVariable),
		PatientVarsByPatientTherDay: make(map[string]map[string]map[timegrid.Day][]*cpengine.FDVariable),
		StaffVarsByTherapistDayBlk:  make(map[string]map[timegrid.Day]map[int][]*cpengine.FDVariable),
		SessionVarsByRoomDayBlk:     make(map[string]map[timegrid.Day]map[int][]*cpengine.FDVariable),
	}

	therapyIDs := sortedTherapyIDs(inst)
	roomIDs := sortedRoomIDs(inst)
	patientIDs := sortedPatientIDs(inst)
	therapistIDs := sortedTherapistIDs(inst)

	// session_active[u, r, d, b]: room must allow the therapy.
	for _, u := range therapyIDs {
		for _, r := range roomIDs {
			room := inst.Rooms[r]
			if !room.AllowedTherapies[u] {
				continue
			}
			for _, d := range timegrid.DayOrder() {
				for b := 0; b < timegrid.NumBlocks; b++ {
					key := SessionKey{Therapy: u, Room: r, Day: d, Block: b}
					v := boolcon.NewBoolVar(m, "session_active|"+key.String())
					vs.SessionActive[key] = v
					vs.SessionKeys = append(vs.SessionKeys, key)
				}
			}
		}
	}

	// patient_in_session[p, u, r, d, b]: room allows therapy AND (block in
	// patient availability for day OR patient pinned (u,d,b)).
	for _, p := range patientIDs {
		pat := inst.Patients[p]
		pinSet := pinnedSet(pat)
		for _, u := range therapyIDs {
			for _, r := range roomIDs {
				room := inst.Rooms[r]
				if !room.AllowedTherapies[u] {
					continue
				}
				for _, d := range timegrid.DayOrder() {
					for b := 0; b < timegrid.NumBlocks; b++ {
						available := pat.Availability.Has(d, b)
						_, pinned := pinSet[pinKey{u, d, b}]
						if !available && !pinned {
							continue
						}
						sk := SessionKey{Therapy: u, Room: r, Day: d, Block: b}
						key := PatientSessionKey{Patient: p, SessionKey: sk}
						v := boolcon.NewBoolVar(m, "patient_in_session|"+p+"|"+sk.String())
						vs.PatientInSession[key] = v
						vs.PatientVarsBySession[sk] = append(vs.PatientVarsBySession[sk], v)

						byTherapy := vs.PatientVarsByPatientTherapy[p]
						if byTherapy == nil {
							byTherapy = make(map[string][]*cpengine.FDVariable)
							vs.PatientVarsByPatientTherapy[p] = byTherapy
						}
						byTherapy[u] = append(byTherapy[u], v)

						byDayBlk := vs.PatientVarsByPatientDayBlk[p]
						if byDayBlk == nil {
							byDayBlk = make(map[timegrid.Day]map[int][]*cpengine.FDVariable)
							vs.PatientVarsByPatientDayBlk[p] = byDayBlk
						}
						if byDayBlk[d] == nil {
							byDayBlk[d] = make(map[int][]*cpengine.FDVariable)
						}
						byDayBlk[d][b] = append(byDayBlk[d][b], v)

						byTherDay := vs.PatientVarsByPatientTherDay[p]
						if byTherDay == nil {
							byTherDay = make(map[string]map[timegrid.Day][]*cpengine.FDVariable)
							vs.PatientVarsByPatientTherDay[p] = byTherDay
						}
						if byTherDay[u] == nil {
							byTherDay[u] = make(map[timegrid.Day][]*cpengine.FDVariable)
						}
						byTherDay[u][d] = append(byTherDay[u][d], v)
					}
				}
			}
		}
	}

	// staff[tau, u, r, d, b, sigma]: therapist must hold sigma and be
	// available at (d,b); session must be a valid (u,r) pair.
	for _, tau := range therapistIDs {
		therapist := inst.Therapists[tau]
		for _, u := range therapyIDs {
			th := inst.Therapies[u]
			for _, r := range roomIDs {
				room := inst.Rooms[r]
				if !room.AllowedTherapies[u] {
					continue
				}
				for _, d := range timegrid.DayOrder() {
					for b := 0; b < timegrid.NumBlocks; b++ {
						if !therapist.Availability.Has(d, b) {
							continue
						}
						sk := SessionKey{Therapy: u, Room: r, Day: d, Block: b}
						for sigma := range th.Requirements {
							if !therapist.Specialties[sigma] {
								continue
							}
							key := StaffKey{Therapist: tau, SessionKey: sk, Specialty: sigma}
							v := boolcon.NewBoolVar(m, "staff|"+tau+"|"+sk.String()+"|"+string(sigma))
							vs.Staff[key] = v

							bySpec := vs.StaffVarsBySessionSpecialty[sk]
							if bySpec == nil {
								bySpec = make(map[instance.Specialty][]*cpengine.FDVariable)
								vs.StaffVarsBySessionSpecialty[sk] = bySpec
							}
							bySpec[sigma] = append(bySpec[sigma], v)

							byDayBlk := vs.StaffVarsByTherapistDayBlk[tau]
							if byDayBlk == nil {
								byDayBlk = make(map[timegrid.Day]map[int][]*cpengine.FDVariable)
								vs.StaffVarsByTherapistDayBlk[tau] = byDayBlk
							}
							if byDayBlk[d] == nil {
								byDayBlk[d] = make(map[int][]*cpengine.FDVariable)
							}
							byDayBlk[d][b] = append(byDayBlk[d][b], v)
						}
					}
				}
			}
		}
	}

	// SessionVarsByRoomDayBlk: room one-at-a-time index over
	// session_active.
	for key, v := range vs.SessionActive {
		byDayBlk := vs.SessionVarsByRoomDayBlk[key.Room]
		if byDayBlk == nil {
			byDayBlk = make(map[timegrid.Day]map[int][]*cpengine.FDVariable)
			vs.SessionVarsByRoomDayBlk[key.Room] = byDayBlk
		}
		if byDayBlk[key.Day] == nil {
			byDayBlk[key.Day] = make(map[int][]*cpengine.FDVariable)
		}
		byDayBlk[key.Day][key.Block] = append(byDayBlk[key.Day][key.Block], v)
	}

	return vs, nil
}

type pinKey struct {
	Therapy string
	Day     timegrid.Day
	Block   int
}

func pinnedSet(p *instance.Patient) map[pinKey]bool {
	out := make(map[pinKey]bool)
	for u, pins := range p.PinnedSessions {
		for _, pin := range pins {
			out[pinKey{u, pin.Day, pin.Block}] = true
		}
	}
	return out
}
