package instance

import (
	"fmt"

	"github.com/clinicsched/scheduler/internal/timegrid"
)

// This file is the JSON boundary for Instance. The collaborators out of
// scope for the core (HTTP surface, persistence, spreadsheet export) all
// speak this DTO shape; §6 calls it "language-neutral dictionaries". Only
// NewInstance, not the DTOs themselves, is part of the core's contract.

// PinDTO is a wire-level (day, block) pair.
type PinDTO struct {
	Day   string `json:"day"`
	Block int    `json:"block"`
}

// TherapistDTO is the wire shape for a Therapist.
type TherapistDTO struct {
	ID           string              `json:"id"`
	Specialties  []string            `json:"specialties"`
	Availability map[string][]string `json:"availability"`
}

// PatientDTO is the wire shape for a Patient.
type PatientDTO struct {
	ID                 string                       `json:"id"`
	Therapies          map[string]int               `json:"therapies"`
	Availability       map[string][]string          `json:"availability"`
	MaxContinuousHours int                           `json:"max_continuous_hours"`
	NoSameDayTherapies []string                      `json:"no_same_day_therapies"`
	FixedTherapists    map[string]map[string][]string `json:"fixed_therapists"`
	PinnedSessions     map[string][]PinDTO           `json:"pinned_sessions"`
}

// RoomDTO is the wire shape for a Room.
type RoomDTO struct {
	ID               string   `json:"id"`
	AllowedTherapies []string `json:"allowed_therapies"`
	Capacity         int      `json:"capacity"`
}

// TherapyInfoDTO is the wire shape for a TherapyInfo.
type TherapyInfoDTO struct {
	ID           string         `json:"id"`
	Requirements map[string]int `json:"requirements"`
	MinPatients  int            `json:"min_patients"`
	MaxPatients  int            `json:"max_patients"`
}

// InstanceDTO is the wire shape for an Instance, the sole JSON boundary
// surrounding collaborators use to hand the core a problem to solve.
type InstanceDTO struct {
	Specialties []string         `json:"specialties"`
	Therapists  []TherapistDTO   `json:"therapists"`
	Patients    []PatientDTO     `json:"patients"`
	Rooms       []RoomDTO        `json:"rooms"`
	Therapies   []TherapyInfoDTO `json:"therapies"`
}

// defaultMaxContinuousHours is applied when a patient DTO omits the field
// (zero value), per §3's "max_continuous_hours >= 1 (default 3)".
const defaultMaxContinuousHours = 3

// NewInstance parses and validates a DTO into an immutable Instance. It
// refuses to construct an Instance with any invariant violation from §3,
// returning a *ValidationError naming the offending entity and reason.
func NewInstance(dto InstanceDTO) (*Instance, error) {
	inst := &Instance{
		Specialties: make(map[Specialty]bool, len(dto.Specialties)),
		Therapists:  make(map[string]*Therapist, len(dto.Therapists)),
		Patients:    make(map[string]*Patient, len(dto.Patients)),
		Rooms:       make(map[string]*Room, len(dto.Rooms)),
		Therapies:   make(map[string]*TherapyInfo, len(dto.Therapies)),
	}
	for _, s := range dto.Specialties {
		inst.Specialties[Specialty(s)] = true
	}

	for _, t := range dto.Therapists {
		if _, dup := inst.Therapists[t.ID]; dup {
			return nil, validationErr(t.ID, "duplicate therapist id")
		}
		avail, err := parseAvailability(t.Availability)
		if err != nil {
			return nil, &ValidationError{EntityID: t.ID, Reason: err.Error()}
		}
		specs := make(map[Specialty]bool, len(t.Specialties))
		for _, s := range t.Specialties {
			specs[Specialty(s)] = true
		}
		inst.Therapists[t.ID] = &Therapist{ID: t.ID, Specialties: specs, Availability: avail}
	}

	for _, th := range dto.Therapies {
		if _, dup := inst.Therapies[th.ID]; dup {
			return nil, validationErr(th.ID, "duplicate therapy id")
		}
		reqs := make(map[Specialty]int, len(th.Requirements))
		for s, n := range th.Requirements {
			reqs[Specialty(s)] = n
		}
		inst.Therapies[th.ID] = &TherapyInfo{ID: th.ID, Requirements: reqs, MinPatients: th.MinPatients, MaxPatients: th.MaxPatients}
	}

	for _, r := range dto.Rooms {
		if _, dup := inst.Rooms[r.ID]; dup {
			return nil, validationErr(r.ID, "duplicate room id")
		}
		allowed := make(map[string]bool, len(r.AllowedTherapies))
		for _, u := range r.AllowedTherapies {
			allowed[u] = true
		}
		inst.Rooms[r.ID] = &Room{ID: r.ID, AllowedTherapies: allowed, Capacity: r.Capacity}
	}

	for _, p := range dto.Patients {
		if _, dup := inst.Patients[p.ID]; dup {
			return nil, validationErr(p.ID, "duplicate patient id")
		}
		avail, err := parseAvailability(p.Availability)
		if err != nil {
			return nil, &ValidationError{EntityID: p.ID, Reason: err.Error()}
		}
		maxHours := p.MaxContinuousHours
		if maxHours == 0 {
			maxHours = defaultMaxContinuousHours
		}
		noSame := make(map[string]bool, len(p.NoSameDayTherapies))
		for _, u := range p.NoSameDayTherapies {
			noSame[u] = true
		}
		fixed := make(map[string]map[Specialty][]string, len(p.FixedTherapists))
		for u, bySpec := range p.FixedTherapists {
			cp := make(map[Specialty][]string, len(bySpec))
			for s, ids := range bySpec {
				idsCopy := make([]string, len(ids))
				copy(idsCopy, ids)
				cp[Specialty(s)] = idsCopy
			}
			fixed[u] = cp
		}
		pins := make(map[string][]Pin, len(p.PinnedSessions))
		for u, dtoPins := range p.PinnedSessions {
			parsed := make([]Pin, 0, len(dtoPins))
			for _, pd := range dtoPins {
				day, err := timegrid.ParseDay(pd.Day)
				if err != nil {
					return nil, &ValidationError{EntityID: p.ID, Reason: fmt.Sprintf("pinned_sessions[%s]: %s", u, err.Error())}
				}
				parsed = append(parsed, Pin{Day: day, Block: pd.Block})
			}
			pins[u] = parsed
		}
		inst.Patients[p.ID] = &Patient{
			ID:                 p.ID,
			Therapies:          p.Therapies,
			Availability:       avail,
			MaxContinuousHours: maxHours,
			NoSameDayTherapies: noSame,
			FixedTherapists:    fixed,
			PinnedSessions:     pins,
		}
	}

	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// parseAvailability expands a day -> list-of-ranges map into the
// block-level Availability the core reasons over, per §6: "a block is
// considered available iff some interval fully contains it".
func parseAvailability(raw map[string][]string) (Availability, error) {
	out := make(Availability, len(raw))
	for dayStr, ranges := range raw {
		day, err := timegrid.ParseDay(dayStr)
		if err != nil {
			return nil, err
		}
		blocks := make(map[int]bool)
		for _, rng := range ranges {
			start, end, err := timegrid.ParseRange(rng)
			if err != nil {
				return nil, fmt.Errorf("availability[%s]: %w", dayStr, err)
			}
			for b := start; b < end; b++ {
				blocks[b] = true
			}
		}
		out[day] = blocks
	}
	return out, nil
}
