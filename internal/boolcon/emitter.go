package boolcon

import (
	"fmt"

	"github.com/clinicsched/scheduler/internal/cpengine"
)

// Mode selects how an Emitter treats a posted constraint group.
type Mode int

const (
	// Hard posts every group as a regular constraint.
	Hard Mode = iota
	// AssumptionGuarded posts every group not named in Excluded, and
	// records every label seen. Used to drive the deletion-based
	// minimal-core search in internal/diagnostics: repeatedly rebuild
	// the model with a different Excluded set and see which groups are
	// required to regain feasibility.
	AssumptionGuarded
	// Soft relaxes every group with a slack variable instead of posting
	// it directly, and accumulates the slacks for a slack-sum objective.
	Soft
)

// SlackKind selects the shape of slack variable a Soft-mode Post
// introduces for a constraint group, per §4.5.3.
type SlackKind int

const (
	// SlackNone means the group is never softened (always posted hard),
	// e.g. pinning, one-per-time, continuous-hours, session-active
	// linking, per the Open Question preserved in DESIGN.md.
	SlackNone SlackKind = iota
	// SlackBool is a {0,1} slack, used for fixed-therapist per-assignment
	// relaxation.
	SlackBool
	// SlackBounded is an integer slack bounded by the largest deficit (EQ,
	// GE) or overflow (LE) the group's left-hand side can reach (e.g. a
	// requirement's target count, or a capacity overflow bound).
	SlackBounded
)

// SlackRecord names a slack variable introduced by a Soft-mode Post, for
// softslack.go to report non-zero slacks back as diagnostic messages.
type SlackRecord struct {
	Label string
	Slack *cpengine.FDVariable
	Kind  SlackKind
}

// Emitter posts one labeled constraint group at a time, in one of three
// modes, so that C4/C5/C7's constraint-building passes do not need to
// duplicate their traversal of the index space for hard, assumption-
// guarded, and soft variants (spec.md §9).
type Emitter struct {
	Mode  Mode
	Model *cpengine.Model

	// Excluded holds labels to skip posting in AssumptionGuarded mode.
	Excluded map[string]bool

	// Labels accumulates every label seen, in post order, regardless of
	// mode or exclusion - the full constraint-group inventory.
	Labels []string

	// Slacks accumulates every slack variable introduced in Soft mode.
	Slacks []SlackRecord

	nextSlackID int
}

// NewEmitter constructs an Emitter in the given mode.
func NewEmitter(m *cpengine.Model, mode Mode) *Emitter {
	return &Emitter{Mode: mode, Model: m, Excluded: map[string]bool{}}
}

// Post adds one labeled linear constraint group: Σ coeffs[i]*real(vars[i])
// ∘ rhs. slackKind is only consulted in Soft mode.
func (e *Emitter) Post(label string, vars []*cpengine.FDVariable, coeffs []int, cmp Cmp, rhs int, slackKind SlackKind) error {
	e.Labels = append(e.Labels, label)

	switch e.Mode {
	case Hard:
		return e.postHard(label, vars, coeffs, cmp, rhs)

	case AssumptionGuarded:
		if e.Excluded[label] {
			return nil
		}
		return e.postHard(label, vars, coeffs, cmp, rhs)

	case Soft:
		return e.postSoft(label, vars, coeffs, cmp, rhs, slackKind)

	default:
		return fmt.Errorf("boolcon.Emitter: unknown mode %d", e.Mode)
	}
}

func (e *Emitter) postHard(label string, vars []*cpengine.FDVariable, coeffs []int, cmp Cmp, rhs int) error {
	c, err := NewLinear(label, vars, coeffs, cmp, rhs)
	if err != nil {
		return err
	}
	e.Model.AddConstraint(c)
	return nil
}

// postSoft rewrites the group per §4.5.3:
//   Σ = n        -> Σ + slack = n           (slack bounded [0,n])
//   Σ >= k*active -> Σ + slack >= k*active   (slack bounded [0,k])
//   Σ <= m        -> Σ <= m + slack          (slack bounded [0, Σ positive coeffs - m])
// SlackNone groups (pinning, one-per-time, continuous-hours, linking)
// are posted hard even in Soft mode, per the Open Question preserved in
// DESIGN.md: softening every hard constraint can make the relaxed model
// itself pathological, so a fixed subset always stays hard.
func (e *Emitter) postSoft(label string, vars []*cpengine.FDVariable, coeffs []int, cmp Cmp, rhs int, kind SlackKind) error {
	if kind == SlackNone {
		return e.postHard(label, vars, coeffs, cmp, rhs)
	}

	// Largest deficit (EQ, GE) or overflow (LE) over {0,1} variables.
	posSum, negSum := 0, 0
	for _, c := range coeffs {
		if c > 0 {
			posSum += c
		} else {
			negSum -= c
		}
	}
	bound := rhs + negSum
	if cmp == LE {
		bound = posSum - rhs
	}
	if bound < 0 {
		bound = 0
	}
	if kind == SlackBool {
		bound = 1
	}

	e.nextSlackID++
	slack := NewIntVar(e.Model, 0, bound, fmt.Sprintf("slack|%s|%d", label, e.nextSlackID))

	allVars := make([]*cpengine.FDVariable, 0, len(vars)+1)
	allVars = append(allVars, vars...)
	allCoeffs := make([]int, 0, len(coeffs)+1)
	allCoeffs = append(allCoeffs, coeffs...)

	var newCmp Cmp
	switch cmp {
	case EQ:
		// Σ + slack = n
		allVars = append(allVars, slack)
		allCoeffs = append(allCoeffs, 1)
		newCmp = EQ
	case GE:
		// Σ + slack >= rhs
		allVars = append(allVars, slack)
		allCoeffs = append(allCoeffs, 1)
		newCmp = GE
	case LE:
		// Σ - slack <= rhs  (i.e. Σ <= rhs + slack)
		allVars = append(allVars, slack)
		allCoeffs = append(allCoeffs, -1)
		newCmp = LE
	default:
		return fmt.Errorf("boolcon.Emitter: unsupported comparator %s for soft mode", cmp)
	}

	if err := e.postHard(label, allVars, allCoeffs, newCmp, rhs); err != nil {
		return err
	}
	e.Slacks = append(e.Slacks, SlackRecord{Label: label, Slack: slack, Kind: kind})
	return nil
}
