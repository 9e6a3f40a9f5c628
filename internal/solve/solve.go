// Package solve drives a single end-to-end solve: build the model from a
// validated instance, run branch-and-bound optimization, and translate
// the outcome into a SolveResult. A solve is a pure function of its
// inputs; the package holds no shared mutable state.
package solve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicsched/scheduler/internal/boolcon"
	"github.com/clinicsched/scheduler/internal/cpengine"
	"github.com/clinicsched/scheduler/internal/instance"
	"github.com/clinicsched/scheduler/internal/schedmodel"
	"github.com/clinicsched/scheduler/internal/timegrid"
)

// Status is one of the five labels §4.6 requires a SolveResult to carry.
type Status string

const (
	StatusOptimal      Status = "OPTIMAL"
	StatusFeasible     Status = "FEASIBLE"
	StatusInfeasible   Status = "INFEASIBLE"
	StatusUnknown      Status = "UNKNOWN"
	StatusModelInvalid Status = "MODEL_INVALID"
)

// StaffRecord names one therapist's specialty assignment within a
// session record.
type StaffRecord struct {
	Specialty  instance.Specialty `json:"specialty"`
	TherapistID string            `json:"therapist_id"`
}

// SessionRecord is one active, staffed, attended session in the
// resulting schedule, per §4.4's emitted record shape.
type SessionRecord struct {
	TherapyID  string        `json:"therapy_id"`
	RoomID     string        `json:"room_id"`
	Day        string        `json:"day"`
	TimeRange  string        `json:"time_range"`
	PatientIDs []string      `json:"patient_ids"`
	Staff      []StaffRecord `json:"staff"`
}

// Result is the SolveResult the solve driver returns, matching §4.6's
// external output schema.
type Result struct {
	Status               Status              `json:"status"`
	ObjectiveValue        int                `json:"objective_value"`
	Schedule              []SessionRecord    `json:"schedule"`
	Diagnostics           []string           `json:"diagnostics"`
	DiagnosticsByMethod   map[string][]string `json:"diagnostics_by_method"`
}

// Options configures one solve attempt.
type Options struct {
	TimeLimit time.Duration
	Weights   schedmodel.ObjectiveWeights
	Logger    *zap.Logger
}

// DiagnosticsRunner is invoked on a non-success outcome to populate
// Result.Diagnostics/DiagnosticsByMethod. internal/diagnostics.Run
// satisfies this signature; it is injected here rather than imported
// directly so solve and diagnostics can each be tested in isolation.
type DiagnosticsRunner func(inst *instance.Instance, weights schedmodel.ObjectiveWeights) (flat []string, byMethod map[string][]string)

// Solve builds the model for inst, runs branch-and-bound minimization of
// the weighted objective within opts.TimeLimit, and returns a SolveResult.
// On INFEASIBLE/UNKNOWN/MODEL_INVALID, diagnose (if non-nil) is invoked to
// populate the diagnostic fields.
func Solve(ctx context.Context, inst *instance.Instance, opts Options, diagnose DiagnosticsRunner) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	solveID := uuid.New().String()
	logger = logger.With(zap.String("solve_id", solveID))

	if err := inst.Validate(); err != nil {
		logger.Warn("instance failed validation before solve", zap.Error(err))
		return diagnosticResult(StatusModelInvalid, inst, opts, diagnose), nil
	}

	m := cpengine.NewModel()
	vs, err := schedmodel.BuildVariables(m, inst)
	if err != nil {
		logger.Error("variable construction failed", zap.Error(err))
		return diagnosticResult(StatusModelInvalid, inst, opts, diagnose), nil
	}

	e := boolcon.NewEmitter(m, boolcon.Hard)
	if err := schedmodel.BuildConstraints(e, vs, inst); err != nil {
		logger.Error("constraint construction failed", zap.Error(err))
		return diagnosticResult(StatusModelInvalid, inst, opts, diagnose), nil
	}

	obj, err := schedmodel.BuildObjective(e, vs, inst, opts.Weights)
	if err != nil {
		logger.Error("objective construction failed", zap.Error(err))
		return diagnosticResult(StatusModelInvalid, inst, opts, diagnose), nil
	}

	solver := cpengine.NewSolver(m)
	var solveOpts []cpengine.OptimizeOption
	if opts.TimeLimit > 0 {
		solveOpts = append(solveOpts, cpengine.WithTimeLimit(opts.TimeLimit))
	}

	solution, objVal, err := solver.SolveOptimalWithOptions(ctx, obj.Value, true, solveOpts...)
	switch {
	case err == context.DeadlineExceeded || err == cpengine.ErrSearchLimitReached:
		logger.Info("solve stopped by limit with incumbent", zap.Error(err), zap.Bool("has_incumbent", solution != nil))
		if solution == nil {
			return diagnosticResult(StatusUnknown, inst, opts, diagnose), nil
		}
		return buildResult(StatusFeasible, solution, objVal, m, vs, inst), nil
	case err != nil:
		logger.Error("solve failed", zap.Error(err))
		return diagnosticResult(StatusUnknown, inst, opts, diagnose), nil
	case solution == nil:
		logger.Info("instance is infeasible")
		return diagnosticResult(StatusInfeasible, inst, opts, diagnose), nil
	default:
		return buildResult(StatusOptimal, solution, objVal, m, vs, inst), nil
	}
}

func diagnosticResult(status Status, inst *instance.Instance, opts Options, diagnose DiagnosticsRunner) *Result {
	r := &Result{Status: status, DiagnosticsByMethod: map[string][]string{}}
	if diagnose == nil {
		return r
	}
	flat, byMethod := diagnose(inst, opts.Weights)
	r.Diagnostics = flat
	r.DiagnosticsByMethod = byMethod
	return r
}

// buildResult extracts the schedule from a found solution: for each
// active session, the attending patients (sorted) and staffing
// therapists (sorted by specialty then id), emitting records sorted by
// (day index, time, room, therapy) per §4.4, then validates the
// collaborator guard that every emitted session's therapy is allowed in
// its room.
func buildResult(status Status, solution []int, objVal int, m *cpengine.Model, vs *schedmodel.VariableSet, inst *instance.Instance) *Result {
	var records []SessionRecord

	sessionKeys := append([]schedmodel.SessionKey{}, vs.SessionKeys...)
	sort.Slice(sessionKeys, func(i, j int) bool {
		return sessionKeyLess(sessionKeys[i], sessionKeys[j])
	})

	for _, sk := range sessionKeys {
		active := vs.SessionActive[sk]
		if solution[active.ID()]-1 != 1 {
			continue
		}

		var patientIDs []string
		for key, v := range vs.PatientInSession {
			if key.SessionKey != sk {
				continue
			}
			if solution[v.ID()]-1 == 1 {
				patientIDs = append(patientIDs, key.Patient)
			}
		}
		sort.Strings(patientIDs)

		var staff []StaffRecord
		for key, v := range vs.Staff {
			if key.SessionKey != sk {
				continue
			}
			if solution[v.ID()]-1 == 1 {
				staff = append(staff, StaffRecord{Specialty: key.Specialty, TherapistID: key.Therapist})
			}
		}
		sort.Slice(staff, func(i, j int) bool {
			if staff[i].Specialty != staff[j].Specialty {
				return staff[i].Specialty < staff[j].Specialty
			}
			return staff[i].TherapistID < staff[j].TherapistID
		})

		timeRange, err := timegrid.BlockTimeRange(sk.Block)
		if err != nil {
			timeRange = fmt.Sprintf("block %d", sk.Block)
		}

		room := inst.Rooms[sk.Room]
		if room == nil || !room.AllowedTherapies[sk.Therapy] {
			// Collaborator guard from §4.4: an emitted session must always
			// honor the room/therapy compatibility invariant the variable
			// builder itself enforced at construction time.
			continue
		}

		records = append(records, SessionRecord{
			TherapyID:  sk.Therapy,
			RoomID:     sk.Room,
			Day:        sk.Day.String(),
			TimeRange:  timeRange,
			PatientIDs: patientIDs,
			Staff:      staff,
		})
	}

	return &Result{
		Status:              status,
		ObjectiveValue:       objVal - 1,
		Schedule:             records,
		DiagnosticsByMethod:  map[string][]string{},
	}
}

func sessionKeyLess(a, b schedmodel.SessionKey) bool {
	if a.Day.Index() != b.Day.Index() {
		return a.Day.Index() < b.Day.Index()
	}
	if a.Block != b.Block {
		return a.Block < b.Block
	}
	if a.Room != b.Room {
		return a.Room < b.Room
	}
	return a.Therapy < b.Therapy
}
