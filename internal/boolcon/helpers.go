package boolcon

import "github.com/clinicsched/scheduler/internal/cpengine"

// AtMostOne posts Σ vars ≤ 1 via e. Used for every one-at-a-time
// constraint group (patient, therapist, room).
func AtMostOne(e *Emitter, label string, vars []*cpengine.FDVariable) error {
	coeffs := onesLike(vars)
	return e.Post(label, vars, coeffs, LE, 1, SlackNone)
}

// ExactlyOne posts Σ vars = 1 via e. Used for pinning constraints.
func ExactlyOne(e *Emitter, label string, vars []*cpengine.FDVariable) error {
	coeffs := onesLike(vars)
	return e.Post(label, vars, coeffs, EQ, 1, SlackNone)
}

// ExactlyN posts Σ vars = n via e, with a bounded integer slack in Soft
// mode. Used for requirement and staffing-exactness constraint groups.
func ExactlyN(e *Emitter, label string, vars []*cpengine.FDVariable, n int) error {
	coeffs := onesLike(vars)
	return e.Post(label, vars, coeffs, EQ, n, SlackBounded)
}

// AtLeastKTimesActive posts Σ vars - k*active ≥ 0 via e (i.e. Σ vars ≥
// k·active), with a bounded integer slack in Soft mode. Used for the
// min-attendance half of the capacity band.
func AtLeastKTimesActive(e *Emitter, label string, vars []*cpengine.FDVariable, k int, active *cpengine.FDVariable) error {
	allVars := append(append([]*cpengine.FDVariable{}, vars...), active)
	coeffs := append(onesLike(vars), -k)
	return e.Post(label, allVars, coeffs, GE, 0, SlackBounded)
}

// AtMostM posts Σ vars ≤ m via e, with a bounded integer slack in Soft
// mode. Used for the max-attendance half of the capacity band and for
// no-same-day.
func AtMostM(e *Emitter, label string, vars []*cpengine.FDVariable, m int) error {
	coeffs := onesLike(vars)
	return e.Post(label, vars, coeffs, LE, m, SlackBounded)
}

// Indicator posts the two-sided linearization from §4.3:
// indicator ≤ Σ vars ≤ |vars|·indicator, i.e. indicator is 1 iff any
// var in vars is 1.
func Indicator(e *Emitter, label string, vars []*cpengine.FDVariable, indicator *cpengine.FDVariable) error {
	// indicator - Σ vars ≤ 0
	lowVars := append(append([]*cpengine.FDVariable{}, vars...), indicator)
	lowCoeffs := append(negOnesLike(vars), 1)
	if err := e.Post(label+"|lower", lowVars, lowCoeffs, LE, 0, SlackNone); err != nil {
		return err
	}
	// Σ vars - |vars|*indicator ≤ 0
	highVars := append(append([]*cpengine.FDVariable{}, vars...), indicator)
	highCoeffs := append(onesLike(vars), -len(vars))
	return e.Post(label+"|upper", highVars, highCoeffs, LE, 0, SlackNone)
}

// LinkLE posts child ≤ parent via e (the patient_in_session/staff ≤
// session_active linking constraint, and fixed-therapist x ≤ staff).
// kind lets callers choose SlackNone for groups that must stay hard even
// in Soft mode (e.g. session-active linking) versus SlackBool for
// legitimately softenable ones (e.g. fixed-therapist binding).
func LinkLE(e *Emitter, label string, child, parent *cpengine.FDVariable, kind SlackKind) error {
	return e.Post(label, []*cpengine.FDVariable{child, parent}, []int{1, -1}, LE, 0, kind)
}

// ForceFalse posts var = 0 via e. Used when a required staff/patient
// variable does not exist at all, forcing the dependent variable off.
func ForceFalse(e *Emitter, label string, v *cpengine.FDVariable) error {
	return e.Post(label, []*cpengine.FDVariable{v}, []int{1}, EQ, 0, SlackNone)
}

func onesLike(vars []*cpengine.FDVariable) []int {
	c := make([]int, len(vars))
	for i := range c {
		c[i] = 1
	}
	return c
}

func negOnesLike(vars []*cpengine.FDVariable) []int {
	c := make([]int, len(vars))
	for i := range c {
		c[i] = -1
	}
	return c
}
