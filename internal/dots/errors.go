package dots

import "fmt"

// ErrorKind classifies layout failures. Every kind is recoverable by the
// caller; none of them indicates a programming error.
type ErrorKind int

const (
	// PlacementExhausted means a single circle could not be placed within
	// the attempts limit. Retry with a fresh draw or looser constraints.
	PlacementExhausted ErrorKind = iota + 1
	// ScalingInfeasible means uniform scaling would break the boundary or
	// overlap invariants. Equalization falls back to incremental growth.
	ScalingInfeasible
	// EqualizationInfeasible means neither scaling nor growth reached the
	// tolerance without breaking an invariant.
	EqualizationInfeasible
	// InvalidRequest means the inputs themselves are malformed.
	InvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case PlacementExhausted:
		return "placement exhausted"
	case ScalingInfeasible:
		return "scaling infeasible"
	case EqualizationInfeasible:
		return "equalization infeasible"
	case InvalidRequest:
		return "invalid request"
	default:
		return "unknown layout error"
	}
}

// LayoutError is returned by every engine and equalizer operation.
type LayoutError struct {
	Kind ErrorKind
	Msg  string
}

func (e *LayoutError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is matches any LayoutError of the same kind, so errors.Is works against
// the sentinels below.
func (e *LayoutError) Is(target error) bool {
	t, ok := target.(*LayoutError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrPlacementExhausted     = &LayoutError{Kind: PlacementExhausted}
	ErrScalingInfeasible      = &LayoutError{Kind: ScalingInfeasible}
	ErrEqualizationInfeasible = &LayoutError{Kind: EqualizationInfeasible}
	ErrInvalidRequest         = &LayoutError{Kind: InvalidRequest}
)

func layoutErrorf(kind ErrorKind, format string, args ...any) *LayoutError {
	return &LayoutError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
