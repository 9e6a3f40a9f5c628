// Package boolcon extends internal/cpengine with a boolean-linear
// constraint, built entirely against cpengine's exported surface the way
// a downstream caller of the engine would, and a small "constraint
// emitter" that can post a group of linear constraints in one of three
// modes (hard, assumption-guarded, soft) from a single traversal of the
// index space.
//
// Every boolean decision variable in this module is created with domain
// [1,2] (cpengine's BitSetDomain has no native 0/1 representation since
// DomainRange collapses to [1,max] whenever min<=1). By convention, domain
// value 2 means true and domain value 1 means false; Real translates
// between the two. This mirrors the convention cpengine's own Count and
// reification constraints already use internally.
package boolcon

import (
	"fmt"

	"github.com/clinicsched/scheduler/internal/cpengine"
)

// NewBoolVar creates a boolean decision variable: an FDVariable whose
// domain is {1,2}, where 2 means true and 1 means false.
func NewBoolVar(m *cpengine.Model, name string) *cpengine.FDVariable {
	return m.IntVar(1, 2, name)
}

// NewIntVar creates an integer decision variable whose domain encodes
// [lo,hi] as [lo+1,hi+1], consistent with the {real = domain-1}
// convention boolean variables use. Used for bounded slack variables and
// the objective variable.
func NewIntVar(m *cpengine.Model, lo, hi int, name string) *cpengine.FDVariable {
	return m.IntVar(lo+1, hi+1, name)
}

// Real translates a bound variable's domain value back to its real value
// (0/1 for a bool var, lo..hi for an int var created via NewIntVar).
func Real(v *cpengine.FDVariable) int {
	return v.Value() - 1
}

// IsTrue reports whether a bound boolean variable is true.
func IsTrue(v *cpengine.FDVariable) bool {
	return v.Value() == 2
}

// Cmp is the comparator of a Linear constraint.
type Cmp int

const (
	LE Cmp = iota
	GE
	EQ
)

func (c Cmp) String() string {
	switch c {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "?"
	}
}

// Linear is a bounds-consistent constraint over the real (domain-1)
// values of a set of FDVariables: Σ coeff[i]*real(var[i]) ∘ rhs.
//
// This generalizes cpengine's own LinearSum (Σ a[i]*x[i] = total) from
// "equals an FDVariable" to "compares, under a fixed offset convention,
// against a constant", reusing LinearSum's bounds-propagation shape:
// derive [sumMin,sumMax] for the whole expression from each term's
// current bounds, check it against rhs, then derive and prune a tighter
// bound on each individual term.
type Linear struct {
	vars   []*cpengine.FDVariable
	coeffs []int
	cmp    Cmp
	rhs    int
	label  string
}

// NewLinear constructs a Linear constraint. len(vars) must equal
// len(coeffs) and be nonzero.
func NewLinear(label string, vars []*cpengine.FDVariable, coeffs []int, cmp Cmp, rhs int) (*Linear, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("boolcon.Linear %s: vars cannot be empty", label)
	}
	if len(vars) != len(coeffs) {
		return nil, fmt.Errorf("boolcon.Linear %s: len(vars) != len(coeffs)", label)
	}
	vcopy := make([]*cpengine.FDVariable, len(vars))
	copy(vcopy, vars)
	ccopy := make([]int, len(coeffs))
	copy(ccopy, coeffs)
	return &Linear{vars: vcopy, coeffs: ccopy, cmp: cmp, rhs: rhs, label: label}, nil
}

// Variables implements cpengine.ModelConstraint.
func (l *Linear) Variables() []*cpengine.FDVariable {
	out := make([]*cpengine.FDVariable, len(l.vars))
	copy(out, l.vars)
	return out
}

// Type implements cpengine.ModelConstraint.
func (l *Linear) Type() string { return "boolcon.Linear" }

// String implements cpengine.ModelConstraint.
func (l *Linear) String() string {
	return fmt.Sprintf("Linear[%s](%d terms %s %d)", l.label, len(l.vars), l.cmp, l.rhs)
}

// realBounds returns the [min,max] real-value bounds of variable i's
// domain given its current cpengine domain (which is offset by +1).
func realBounds(d cpengine.Domain) (int, int) {
	return d.Min() - 1, d.Max() - 1
}

// Propagate implements cpengine.PropagationConstraint, using the same
// bounds-consistency shape as cpengine's LinearSum: compute admissible
// sum bounds from term bounds, then derive and prune a tighter interval
// for each term from the others' bounds.
func (l *Linear) Propagate(solver *cpengine.Solver, state *cpengine.SolverState) (*cpengine.SolverState, error) {
	n := len(l.vars)
	doms := make([]cpengine.Domain, n)
	mins := make([]int, n)
	maxs := make([]int, n)
	for i, v := range l.vars {
		d := solver.GetDomain(state, v.ID())
		if d == nil || d.Count() == 0 {
			return nil, fmt.Errorf("boolcon.Linear %s: variable %d has empty domain", l.label, v.ID())
		}
		doms[i] = d
		mins[i], maxs[i] = realBounds(d)
	}

	// sumMin/sumMax: the admissible range of Σ coeff[i]*real(var[i]).
	sumMin, sumMax := 0, 0
	for i := 0; i < n; i++ {
		c := l.coeffs[i]
		if c == 0 {
			continue
		}
		if c > 0 {
			sumMin += c * mins[i]
			sumMax += c * maxs[i]
		} else {
			sumMin += c * maxs[i]
			sumMax += c * mins[i]
		}
	}

	// Target interval the whole expression must land in. Where the
	// comparator imposes no restriction on one edge, that edge is left at
	// the sum's own natural bound (no new information to propagate from
	// that side), which keeps all arithmetic below on concrete, finite
	// values instead of sentinels.
	loTarget, hiTarget := sumMin, sumMax
	switch l.cmp {
	case LE:
		hiTarget = l.rhs
	case GE:
		loTarget = l.rhs
	case EQ:
		loTarget, hiTarget = l.rhs, l.rhs
	}
	if sumMin > hiTarget || sumMax < loTarget {
		return nil, fmt.Errorf("boolcon.Linear %s: no assignment satisfies %s %d (range [%d,%d])", l.label, l.cmp, l.rhs, sumMin, sumMax)
	}

	for i := 0; i < n; i++ {
		c := l.coeffs[i]
		if c == 0 {
			continue
		}
		// otherMin/otherMax: the achievable range of every term except i.
		otherMin, otherMax := 0, 0
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cj := l.coeffs[j]
			if cj == 0 {
				continue
			}
			if cj > 0 {
				otherMin += cj * mins[j]
				otherMax += cj * maxs[j]
			} else {
				otherMin += cj * maxs[j]
				otherMax += cj * mins[j]
			}
		}

		// c*real(var[i]) = total - others, and total ∈ [loTarget,hiTarget],
		// others ∈ [otherMin,otherMax], so:
		lowC := loTarget - otherMax
		highC := hiTarget - otherMin

		var lowReal, highReal int
		if c > 0 {
			lowReal, highReal = ceilDiv(lowC, c), floorDiv(highC, c)
		} else {
			// Dividing by a negative flips which edge produces which bound.
			lowReal, highReal = ceilDiv(highC, c), floorDiv(lowC, c)
		}

		d := doms[i]
		changed := false
		if lowReal > mins[i] {
			nd := d.RemoveBelow(lowReal + 1)
			if nd.Count() == 0 {
				return nil, fmt.Errorf("boolcon.Linear %s: variable %d pruned to empty", l.label, l.vars[i].ID())
			}
			d, changed = nd, true
		}
		if highReal < maxs[i] {
			nd := d.RemoveAbove(highReal + 1)
			if nd.Count() == 0 {
				return nil, fmt.Errorf("boolcon.Linear %s: variable %d pruned to empty", l.label, l.vars[i].ID())
			}
			d, changed = nd, true
		}
		if changed {
			var ok bool
			state, ok = solver.SetDomain(state, l.vars[i].ID(), d)
			if !ok {
				return nil, fmt.Errorf("boolcon.Linear %s: failed to set domain for variable %d", l.label, l.vars[i].ID())
			}
		}
	}

	return state, nil
}

// floorDiv returns floor(a/b) for b != 0, rounding toward negative
// infinity instead of Go's truncating integer division.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ceilDiv returns ceil(a/b) for b != 0.
func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
