// Package instance defines the validated in-memory problem the scheduler
// solves: therapists, patients, rooms, therapies, and the specialty set,
// together with every cross-entity invariant that must hold before a model
// is built from them.
package instance

import (
	"fmt"
	"sort"

	"github.com/clinicsched/scheduler/internal/timegrid"
)

// Specialty is a skill tag: therapies require specific counts of
// specialties, therapists carry a set of specialties.
type Specialty string

// Pin is a patient's hard preassignment of a particular (day, block) slot
// for one therapy.
type Pin struct {
	Day   timegrid.Day
	Block int
}

// Availability maps a day to the set of blocks available that day.
type Availability map[timegrid.Day]map[int]bool

// Has reports whether block b on day d is available.
func (a Availability) Has(d timegrid.Day, b int) bool {
	blocks, ok := a[d]
	if !ok {
		return false
	}
	return blocks[b]
}

// Clone returns a deep copy of the availability map.
func (a Availability) Clone() Availability {
	out := make(Availability, len(a))
	for d, blocks := range a {
		bc := make(map[int]bool, len(blocks))
		for b, v := range blocks {
			bc[b] = v
		}
		out[d] = bc
	}
	return out
}

// Therapist is a unique clinician with a set of specialties and a weekly
// availability grid.
type Therapist struct {
	ID           string
	Specialties  map[Specialty]bool
	Availability Availability
}

// Patient is a unique client with required therapy session counts,
// availability, and optional hard preferences (pins, fixed therapists,
// no-same-day restrictions, continuous-hours cap).
type Patient struct {
	ID                 string
	Therapies          map[string]int // therapy id -> required session count
	Availability       Availability
	MaxContinuousHours int
	NoSameDayTherapies map[string]bool
	// FixedTherapists[therapy][specialty] is an ordered list of therapist
	// ids the patient requires for that specialty role in that therapy.
	FixedTherapists map[string]map[Specialty][]string
	// PinnedSessions[therapy] is the list of (day, block) hard
	// preassignments for that therapy.
	PinnedSessions map[string][]Pin
}

// Room is a unique physical space allowing a subset of therapies, with a
// patient-attendance capacity.
type Room struct {
	ID               string
	AllowedTherapies map[string]bool
	Capacity         int
}

// TherapyInfo describes a group therapy type: its specialty staffing
// requirements and its attendance band.
type TherapyInfo struct {
	ID           string
	Requirements map[Specialty]int
	MinPatients  int
	MaxPatients  int
}

// Instance is the fully validated, immutable problem a single solve
// attempt operates on.
type Instance struct {
	Specialties map[Specialty]bool
	Therapists  map[string]*Therapist
	Patients    map[string]*Patient
	Rooms       map[string]*Room
	Therapies   map[string]*TherapyInfo
}

// ValidationError reports a single invariant violation found while
// constructing an Instance. It is the one error kind §3/§7 require:
// a human-readable reason tied to the offending entity id.
type ValidationError struct {
	EntityID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("instance validation failed for %q: %s", e.EntityID, e.Reason)
}

func validationErr(id, format string, args ...interface{}) *ValidationError {
	return &ValidationError{EntityID: id, Reason: fmt.Sprintf(format, args...)}
}

// Clone returns a deep copy of the Instance. Used by diagnostics to build
// independent auxiliary models without aliasing the primary instance.
func (inst *Instance) Clone() *Instance {
	out := &Instance{
		Specialties: make(map[Specialty]bool, len(inst.Specialties)),
		Therapists:  make(map[string]*Therapist, len(inst.Therapists)),
		Patients:    make(map[string]*Patient, len(inst.Patients)),
		Rooms:       make(map[string]*Room, len(inst.Rooms)),
		Therapies:   make(map[string]*TherapyInfo, len(inst.Therapies)),
	}
	for k, v := range inst.Specialties {
		out.Specialties[k] = v
	}
	for id, t := range inst.Therapists {
		specs := make(map[Specialty]bool, len(t.Specialties))
		for s, v := range t.Specialties {
			specs[s] = v
		}
		out.Therapists[id] = &Therapist{ID: t.ID, Specialties: specs, Availability: t.Availability.Clone()}
	}
	for id, p := range inst.Patients {
		therapies := make(map[string]int, len(p.Therapies))
		for k, v := range p.Therapies {
			therapies[k] = v
		}
		noSame := make(map[string]bool, len(p.NoSameDayTherapies))
		for k, v := range p.NoSameDayTherapies {
			noSame[k] = v
		}
		fixed := make(map[string]map[Specialty][]string, len(p.FixedTherapists))
		for u, bySpec := range p.FixedTherapists {
			cp := make(map[Specialty][]string, len(bySpec))
			for s, ids := range bySpec {
				idsCopy := make([]string, len(ids))
				copy(idsCopy, ids)
				cp[s] = idsCopy
			}
			fixed[u] = cp
		}
		pins := make(map[string][]Pin, len(p.PinnedSessions))
		for u, ps := range p.PinnedSessions {
			psCopy := make([]Pin, len(ps))
			copy(psCopy, ps)
			pins[u] = psCopy
		}
		out.Patients[id] = &Patient{
			ID:                 p.ID,
			Therapies:          therapies,
			Availability:       p.Availability.Clone(),
			MaxContinuousHours: p.MaxContinuousHours,
			NoSameDayTherapies: noSame,
			FixedTherapists:    fixed,
			PinnedSessions:     pins,
		}
	}
	for id, r := range inst.Rooms {
		allowed := make(map[string]bool, len(r.AllowedTherapies))
		for k, v := range r.AllowedTherapies {
			allowed[k] = v
		}
		out.Rooms[id] = &Room{ID: r.ID, AllowedTherapies: allowed, Capacity: r.Capacity}
	}
	for id, th := range inst.Therapies {
		reqs := make(map[Specialty]int, len(th.Requirements))
		for s, n := range th.Requirements {
			reqs[s] = n
		}
		out.Therapies[id] = &TherapyInfo{ID: th.ID, Requirements: reqs, MinPatients: th.MinPatients, MaxPatients: th.MaxPatients}
	}
	return out
}

// sortedKeys returns the keys of a string-keyed map in sorted order, used
// throughout validation to keep reported errors deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks every cross-entity invariant from §3 and returns the
// first violation found, in deterministic (sorted-id) traversal order.
func (inst *Instance) Validate() error {
	if err := inst.validateTherapists(); err != nil {
		return err
	}
	if err := inst.validateTherapies(); err != nil {
		return err
	}
	if err := inst.validateRooms(); err != nil {
		return err
	}
	if err := inst.validatePatients(); err != nil {
		return err
	}
	return nil
}

func (inst *Instance) validateTherapists() error {
	for _, id := range sortedKeys(inst.Therapists) {
		t := inst.Therapists[id]
		for spec := range t.Specialties {
			if !inst.Specialties[spec] {
				return validationErr(id, "therapist references unknown specialty %q", spec)
			}
		}
	}
	return nil
}

func (inst *Instance) validateTherapies() error {
	for _, id := range sortedKeys(inst.Therapies) {
		th := inst.Therapies[id]
		for spec := range th.Requirements {
			if !inst.Specialties[spec] {
				return validationErr(id, "therapy requirement references unknown specialty %q", spec)
			}
		}
		if th.MinPatients < 1 {
			return validationErr(id, "min_patients must be >= 1, got %d", th.MinPatients)
		}
		if th.MaxPatients < th.MinPatients {
			return validationErr(id, "max_patients (%d) must be >= min_patients (%d)", th.MaxPatients, th.MinPatients)
		}
	}
	return nil
}

func (inst *Instance) validateRooms() error {
	for _, id := range sortedKeys(inst.Rooms) {
		r := inst.Rooms[id]
		if r.Capacity < 1 {
			return validationErr(id, "capacity must be >= 1, got %d", r.Capacity)
		}
		for u := range r.AllowedTherapies {
			if _, ok := inst.Therapies[u]; !ok {
				return validationErr(id, "room allows unknown therapy %q", u)
			}
		}
	}
	return nil
}

func (inst *Instance) validatePatients() error {
	for _, id := range sortedKeys(inst.Patients) {
		p := inst.Patients[id]
		if p.MaxContinuousHours < 1 {
			return validationErr(id, "max_continuous_hours must be >= 1, got %d", p.MaxContinuousHours)
		}
		for u, n := range p.Therapies {
			if _, ok := inst.Therapies[u]; !ok {
				return validationErr(id, "requires unknown therapy %q", u)
			}
			if n < 0 {
				return validationErr(id, "negative required session count for therapy %q", u)
			}
		}
		for u := range p.NoSameDayTherapies {
			if _, ok := inst.Therapies[u]; !ok {
				return validationErr(id, "no_same_day_therapies references unknown therapy %q", u)
			}
		}
		if err := inst.validatePatientFixedTherapists(p); err != nil {
			return err
		}
		if err := inst.validatePatientPins(p); err != nil {
			return err
		}
	}
	return nil
}

func (inst *Instance) validatePatientFixedTherapists(p *Patient) error {
	for u, bySpec := range p.FixedTherapists {
		th, ok := inst.Therapies[u]
		if !ok {
			return validationErr(p.ID, "fixed_therapists references unknown therapy %q", u)
		}
		for spec, ids := range bySpec {
			required, ok := th.Requirements[spec]
			if !ok {
				return validationErr(p.ID, "fixed_therapists[%s] references specialty %q not required by that therapy", u, spec)
			}
			if len(ids) > required {
				return validationErr(p.ID, "fixed_therapists[%s][%s] lists %d therapists, exceeding the required count %d", u, spec, len(ids), required)
			}
			seen := make(map[string]bool, len(ids))
			for _, tid := range ids {
				if seen[tid] {
					return validationErr(p.ID, "fixed_therapists[%s][%s] lists therapist %q more than once", u, spec, tid)
				}
				seen[tid] = true
				therapist, ok := inst.Therapists[tid]
				if !ok {
					return validationErr(p.ID, "fixed_therapists[%s][%s] references unknown therapist %q", u, spec, tid)
				}
				if !therapist.Specialties[spec] {
					return validationErr(p.ID, "fixed_therapists[%s][%s] names therapist %q who lacks specialty %q", u, spec, tid, spec)
				}
			}
		}
	}
	return nil
}

func (inst *Instance) validatePatientPins(p *Patient) error {
	for u, pins := range p.PinnedSessions {
		if _, ok := inst.Therapies[u]; !ok {
			return validationErr(p.ID, "pinned_sessions references unknown therapy %q", u)
		}
		required := p.Therapies[u]
		if len(pins) > required {
			return validationErr(p.ID, "pinned_sessions[%s] has %d pins, exceeding the required count %d", u, len(pins), required)
		}
		seen := make(map[Pin]bool, len(pins))
		for _, pin := range pins {
			if seen[pin] {
				return validationErr(p.ID, "pinned_sessions[%s] duplicates pin (%s, block %d)", u, pin.Day, pin.Block)
			}
			seen[pin] = true
			if !timegrid.ValidBlock(pin.Block) {
				return validationErr(p.ID, "pinned_sessions[%s] has out-of-range block %d", u, pin.Block)
			}
		}
	}
	return nil
}
