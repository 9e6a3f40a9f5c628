package cpengine

// This file provides a thin, additive high-level API over the FD model/solver
// primitives. It reduces boilerplate for common tasks like building FD models
// and running them to a solution, while delegating all heavy lifting to the
// production core.

import (
	"context"
	"fmt"
)

// DomainRange returns a domain representing the inclusive range [min..max].
// If min <= 1, this is equivalent to NewBitSetDomain(max). For min>1, values
// outside the range are removed in one bulk operation. Empty ranges return an
// empty domain.
func DomainRange(min, max int) Domain {
	if max <= 0 || min > max {
		return NewBitSetDomain(0)
	}
	if min <= 1 {
		return NewBitSetDomain(max)
	}
	// Build base domain [1..max], then remove below min.
	return NewBitSetDomain(max).RemoveBelow(min)
}

// DomainValues returns a domain containing only the provided values. Values
// out of range are ignored. Empty input yields an empty domain.
func DomainValues(vals ...int) Domain {
	if len(vals) == 0 {
		return NewBitSetDomain(0)
	}
	// Compute max to size the domain efficiently
	max := 0
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return NewBitSetDomain(0)
	}
	return NewBitSetDomainFromValues(max, vals)
}

// IntVar creates a new FD variable with integer domain [min..max]. If name is
// non-empty a named variable is created (useful in debugging and formatted output).
func (m *Model) IntVar(min, max int, name string) *FDVariable {
	d := DomainRange(min, max)
	if name != "" {
		return m.NewVariableWithName(d, name)
	}
	return m.NewVariable(d)
}

// IntVars creates count FD variables with domain [min..max]. If baseName is
// non-empty, variables are named baseName1, baseName2, ... baseNameN; otherwise
// anonymous variables are created.
func (m *Model) IntVars(count, min, max int, baseName string) []*FDVariable {
	if count <= 0 {
		return nil
	}
	d := DomainRange(min, max)
	if baseName == "" {
		return m.NewVariables(count, d)
	}
	names := make([]string, count)
	for i := 0; i < count; i++ {
		names[i] = fmt.Sprintf("%s%d", baseName, i+1)
	}
	return m.NewVariablesWithNames(names, d)
}

// IntVarsWithNames creates FD variables with domain [min..max] using the given
// names. Handy for small models that benefit from explicit names.
func (m *Model) IntVarsWithNames(names []string, min, max int) []*FDVariable {
	d := DomainRange(min, max)
	return m.NewVariablesWithNames(names, d)
}

// AllDifferent posts an AllDifferent constraint over vars.
func (m *Model) AllDifferent(vars ...*FDVariable) error {
	if len(vars) == 0 {
		return fmt.Errorf("AllDifferent: need at least one variable")
	}
	c, err := NewAllDifferent(vars)
	if err != nil {
		return err
	}
	m.AddConstraint(c)
	return nil
}

// LinearSum posts Σ coeffs[i]*vars[i] = total, using bounds-consistent propagation.
func (m *Model) LinearSum(vars []*FDVariable, coeffs []int, total *FDVariable) error {
	c, err := NewLinearSum(vars, coeffs, total)
	if err != nil {
		return err
	}
	m.AddConstraint(c)
	return nil
}

// SolveN solves the model and returns up to maxSolutions solutions using the
// default sequential solver. For advanced control, use NewSolver(m) directly.
func SolveN(ctx context.Context, m *Model, maxSolutions int) ([][]int, error) {
	solver := NewSolver(m)
	return solver.Solve(ctx, maxSolutions)
}

// Solve is SolveN with context.Background().
func Solve(m *Model, maxSolutions int) ([][]int, error) {
	return SolveN(context.Background(), m, maxSolutions)
}
